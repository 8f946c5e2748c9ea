// Package norm is the stateful input normalizer: it sits between a
// device's decoded events and the rest of the engine, dropping bogus
// or nested frames, throttling how many events per tick a single
// frame can push downstream, and cancelling in-flight frames on stop.
package norm

import (
	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/logger"
	"github.com/zurustar/midicore/pkg/state"
	"github.com/zurustar/midicore/pkg/timeq"
)

// tag bits, stored in state.State.Tag.
const (
	tagPass    uint = 1 << iota // frame selected for output
	tagPending                  // throttled this tick, release on timeout
)

// MaxEv bounds how many non-phase-changing events per throttle window
// a single frame may push downstream.
const MaxEv = 1

// Timo is the throttle window: one tick at 120 BPM / 24 TPB, i.e.
// 60*24000000/(120*24) in 1/24us units.
const Timo uint32 = 500000

// Normalizer tracks one input stream's frames and decides, per
// received event, whether it should reach the rest of the engine.
type Normalizer struct {
	states *state.StateList
	queue  *timeq.Queue
	timo   timeq.Timo

	// OnEvent receives every event the normalizer lets through
	// (this package is agnostic to what's downstream).
	OnEvent func(ev event.Event)
}

// New returns a normalizer backed by q for its throttle timeout.
func New(q *timeq.Queue) *Normalizer {
	n := &Normalizer{
		states: state.New(64),
		queue:  q,
	}
	n.timo.Set(func(any) { n.onTimeout() }, nil)
	return n
}

// Start arms the throttle timeout.
func (n *Normalizer) Start() {
	n.states.Empty()
	n.queue.Add(&n.timo, Timo)
}

// Stop cancels every currently tagged (passed-through) frame and
// disarms the throttle timeout.
func (n *Normalizer) Stop() {
	for _, st := range append([]*state.State(nil), n.states.All()...) {
		if st.Tag&tagPass == 0 {
			continue
		}
		if ca, ok := st.Cancel(); ok {
			out := n.states.Update(ca)
			n.emit(out.Ev)
		}
	}
	n.queue.Del(&n.timo)
	n.states.Empty()
}

// Shut cancels every tagged frame and untags it, without tearing the
// normalizer down: used to silence all output (e.g. on transport
// stop) while staying ready to resume.
func (n *Normalizer) Shut() {
	for _, st := range append([]*state.State(nil), n.states.All()...) {
		if st.Tag&tagPass == 0 {
			continue
		}
		if ca, ok := st.Cancel(); ok {
			out := n.states.Update(ca)
			n.emit(out.Ev)
			st = out
		}
		st.Tag &^= tagPass
	}
}

// kill cancels and untags every tagged frame matching ev, because ev
// itself was just flagged bogus or nested.
func (n *Normalizer) kill(ev event.Event) {
	for _, st := range append([]*state.State(nil), n.states.All()...) {
		if !event.Match(st.Ev, ev) || st.Tag&tagPass == 0 || st.Phase&event.PhaseLast != 0 {
			continue
		}
		if ca, ok := st.Cancel(); ok {
			out := n.states.Update(ca)
			n.emit(out.Ev)
			st = out
		}
		st.Tag &^= tagPass
		logger.GetLogger().Debug("norm: killed", "event", st.Ev)
	}
}

// PutEv feeds one decoded event through the normalizer.
func (n *Normalizer) PutEv(ev event.Event) {
	st := n.states.Update(ev)
	if st.Phase&event.PhaseFirst != 0 {
		if st.Flags&state.Fresh != 0 {
			st.Tic = 0
		}
		if st.Flags&(state.Bogus|state.Nested) != 0 {
			st.Tag = 0
			n.kill(ev)
		} else {
			st.Tag = tagPass
		}
	}

	if st.Tag&tagPass == 0 {
		return
	}

	if st.Tic > MaxEv && (st.Phase == event.PhaseNext || st.Phase == event.PhaseFirst|event.PhaseLast) {
		st.Tag |= tagPending
		return
	}

	n.emit(st.Ev)
	st.Tic++
}

func (n *Normalizer) onTimeout() {
	n.states.Outdate()
	for _, st := range n.states.All() {
		st.Tic = 0
		if st.Tag&tagPending != 0 {
			st.Tag &^= tagPending
			n.emit(st.Ev)
			st.Tic++
		}
	}
	n.queue.Add(&n.timo, Timo)
}

func (n *Normalizer) emit(ev event.Event) {
	if !ev.Cmd.IsVoice() && !ev.Cmd.IsSysex() {
		return
	}
	if n.OnEvent != nil {
		n.OnEvent(ev)
	}
}
