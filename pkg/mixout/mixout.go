// Package mixout mixes events from multiple prioritized sources (live
// input, the channel-config track, song tracks) onto one output
// stream, keeping a state list so a higher-priority source can
// pre-empt and cancel a lower-priority one producing conflicting
// events for the same (dev, ch, v0) key.
package mixout

import (
	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/logger"
	"github.com/zurustar/midicore/pkg/state"
	"github.com/zurustar/midicore/pkg/timeq"
)

// Source IDs, lower wins: live input has the highest priority, then
// the channel-config track, then the song tracks.
const (
	PrioInput Source = 0
	PrioChan  Source = 1
	PrioTrack Source = 2
)

// Source identifies who produced an event handed to Put.
type Source uint

// Timo is the purge sweep period: 1 second, in wall-clock 1/24us
// units.
const Timo uint32 = 1000000 * 24

// MaxTics is how many purge sweeps a FIRST|LAST (continuous
// controller) state may sit idle before being freed, releasing its
// priority slot for a lower-priority source.
const MaxTics = 24

// Mixer holds the shared state list conflicting sources are resolved
// against.
type Mixer struct {
	states *state.StateList
	queue  *timeq.Queue
	timo   timeq.Timo

	// OnEvent receives every event that wins the mix.
	OnEvent func(ev event.Event)
}

// New returns a Mixer backed by q for its idle-purge sweep.
func New(q *timeq.Queue) *Mixer {
	m := &Mixer{states: state.New(128), queue: q}
	m.timo.Set(func(any) { m.onTimeout() }, nil)
	return m
}

// Start arms the idle-purge sweep.
func (m *Mixer) Start() {
	m.states.Empty()
	m.queue.Add(&m.timo, Timo)
}

// Stop disarms the sweep and discards all tracked state.
func (m *Mixer) Stop() {
	m.queue.Del(&m.timo)
	m.states.Empty()
}

// Put mixes ev, attributed to source id, into the output stream: a
// conflicting lower-priority (higher id)
// occupant is cancelled and kicked out first; a conflicting
// higher-priority (lower id) occupant causes ev to be dropped.
func (m *Mixer) Put(ev event.Event, id Source) {
	if os := m.states.Lookup(ev); os != nil && Source(os.Tag) != id {
		if Source(os.Tag) < id {
			logger.GetLogger().Debug("mixout: dropped, higher-priority source active", "event", ev, "source", id, "holder", os.Tag)
			return
		}
		if ca, ok := os.Cancel(); ok {
			out := m.states.Update(ca)
			m.put(out.Ev)
		}
	}

	st := m.states.Update(ev)
	st.Tag = uint(id)
	st.Tic = 0
	if st.Flags&(state.Bogus|state.Nested) == 0 {
		m.put(ev)
	}
}

func (m *Mixer) put(ev event.Event) {
	if m.OnEvent != nil {
		m.OnEvent(ev)
	}
}

func (m *Mixer) onTimeout() {
	for _, st := range append([]*state.State(nil), m.states.All()...) {
		switch {
		case st.Phase == event.PhaseLast:
			m.states.RemoveMatching(func(s *state.State) bool { return s == st })
		case st.Phase == event.PhaseFirst|event.PhaseLast:
			if st.Tic >= MaxTics {
				m.states.RemoveMatching(func(s *state.State) bool { return s == st })
			} else {
				st.Flags &^= state.Changed
				st.Tic++
			}
		}
	}
	m.queue.Add(&m.timo, Timo)
}
