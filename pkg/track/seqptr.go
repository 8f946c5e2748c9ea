package track

import (
	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/state"
)

// SeqPtr is a playback cursor over a Track: the event it is currently
// sitting in front of, how many tics have elapsed since that event's
// delta started counting, the cursor's absolute position in the song,
// and a StateList snapshotting everything the cursor has played so
// far (so a filter or mixer downstream can be primed without rewinding
// the track).
type SeqPtr struct {
	Track         *Track
	States        *state.StateList
	index         int
	ticsIntoDelta uint
	AbsoluteTic   uint
}

// NewSeqPtr returns a cursor at the start of t, recording played
// events into states.
func NewSeqPtr(t *Track, states *state.StateList) *SeqPtr {
	return &SeqPtr{Track: t, States: states}
}

// Next reports the next due event, if any, without consuming tics;
// otherwise it reports how many tics remain before one becomes due (0
// once the cursor has reached end of track).
func (p *SeqPtr) Next() (ev event.Event, tillNext uint, ok bool) {
	if p.index >= len(p.Track.events) {
		return event.Event{}, 0, false
	}
	se := p.Track.events[p.index]
	if p.ticsIntoDelta >= se.Delta {
		p.index++
		p.ticsIntoDelta = 0
		if p.States != nil {
			p.States.Update(se.Ev)
		}
		return se.Ev, 0, true
	}
	return event.Event{}, se.Delta - p.ticsIntoDelta, false
}

// Advance moves the cursor forward by ntics, calling emit for every
// event due at the cursor's position before each tic it steps over:
// events at the starting position are emitted, while an event landing
// exactly on the final position is left for the next call.
func (p *SeqPtr) Advance(ntics uint, emit func(event.Event)) {
	for ntics > 0 {
		ev, till, ok := p.Next()
		if ok {
			emit(ev)
			continue
		}
		if till == 0 {
			p.ticsIntoDelta += ntics
			p.AbsoluteTic += ntics
			return
		}
		step := till
		if step > ntics {
			step = ntics
		}
		p.ticsIntoDelta += step
		p.AbsoluteTic += step
		ntics -= step
	}
}

// AtEnd reports whether the cursor has consumed every event on the
// track (it may still be sitting inside the trailing blank space).
func (p *SeqPtr) AtEnd() bool { return p.index >= len(p.Track.events) }

// insertHere splices ev into the cursor's track exactly where the
// cursor currently sits, stealing however many tics have already
// elapsed in the current gap as ev's delta, and leaves the cursor
// positioned just after it.
func (p *SeqPtr) insertHere(ev event.Event) {
	delta := p.ticsIntoDelta
	t := p.Track
	if p.index < len(t.events) {
		t.events[p.index].Delta -= delta
	} else if t.eot >= delta {
		t.eot -= delta
	} else {
		// The cursor has run past the track's recorded length (a
		// recording cursor ticking over an empty tail); the elapsed
		// tics become the new event's delta and no blank space is
		// left to consume.
		t.eot = 0
	}
	t.events = append(t.events, SeqEv{})
	copy(t.events[p.index+1:], t.events[p.index:])
	t.events[p.index] = SeqEv{Delta: delta, Ev: ev}
	p.index++
	p.ticsIntoDelta = 0
}

// Evmerge1 records st's current event onto the cursor's track if it
// differs from whatever the cursor has already recorded for that
// frame, so that re-recording over a pass only ever stores the edits.
// It returns the state actually written, or nil if nothing changed.
func (p *SeqPtr) Evmerge1(st *state.State) *state.State {
	if existing := p.States.Lookup(st.Ev); existing != nil && existing.Eq(st.Ev) {
		return nil
	}
	p.insertHere(st.Ev)
	return p.States.Update(st.Ev)
}

// Evmerge2 is Evmerge1 for an event with no State of its own (for
// instance a note-off synthesized to close a frame at a loop
// boundary): ev is compared against baseline instead of p.States, and
// always gets inserted when it differs.
func (p *SeqPtr) Evmerge2(baseline *state.StateList, ev event.Event) bool {
	if existing := baseline.Lookup(ev); existing != nil && existing.Eq(ev) {
		return false
	}
	p.insertHere(ev)
	if p.States != nil {
		p.States.Update(ev)
	}
	return true
}
