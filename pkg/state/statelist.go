package state

import (
	"github.com/zurustar/midicore/pkg/event"
)

// StateList is the complete state of one MIDI stream: every sounding
// note, the last value of every controller, the pending bender, tempo
// and time signature. States are purged as their frames terminate.
type StateList struct {
	states  []*State
	changed bool
}

// New returns an empty StateList. capHint sizes the backing slice up
// front, so steady-state playback allocates nothing on the hot path.
func New(capHint int) *StateList {
	return &StateList{states: make([]*State, 0, capHint)}
}

// Len returns the number of states currently tracked.
func (l *StateList) Len() int { return len(l.states) }

// All returns the tracked states. The slice is owned by the list and
// must not be retained across a call to Update/Outdate/Empty.
func (l *StateList) All() []*State { return l.states }

// Dup returns an independent copy of l; mutating the copy's states
// does not affect l's.
func (l *StateList) Dup() *StateList {
	out := New(len(l.states))
	for _, s := range l.states {
		cp := *s
		out.states = append(out.states, &cp)
	}
	return out
}

func (l *StateList) add(st *State) {
	l.states = append(l.states, st)
}

func (l *StateList) removeAt(i int) {
	l.states = append(l.states[:i], l.states[i+1:]...)
}

// Lookup returns the first state matching ev, or nil if none does.
func (l *StateList) Lookup(ev event.Event) *State {
	for _, st := range l.states {
		if event.Match(st.Ev, ev) {
			return st
		}
	}
	return nil
}

// Find returns the first tracked state for which pred holds, or nil.
// Used by callers (pkg/codec) that track simplified state of their own
// shape instead of going through Update's frame/phase bookkeeping.
func (l *StateList) Find(pred func(*State) bool) *State {
	for _, st := range l.states {
		if pred(st) {
			return st
		}
	}
	return nil
}

// Add inserts a fully-formed state directly, bypassing Update's
// frame/phase bookkeeping.
func (l *StateList) Add(st *State) {
	l.add(st)
}

// RemoveMatching removes and discards the first tracked state for
// which pred holds, if any.
func (l *StateList) RemoveMatching(pred func(*State) bool) {
	for i, st := range l.states {
		if pred(st) {
			l.removeAt(i)
			return
		}
	}
}

// Empty removes and discards every tracked state.
func (l *StateList) Empty() {
	l.states = l.states[:0]
}

// Update records a newly-received event, creating a new State if ev
// starts a frame with no existing match, reusing an existing match in
// place (its position in iteration order is unchanged), or flagging the
// frame Bogus if its opening event was never seen.
func (l *StateList) Update(ev event.Event) *State {
	phase := ev.Phase()

	var st *State
	for i := 0; i < len(l.states); {
		cand := l.states[i]
		if !event.Match(cand.Ev, ev) {
			i++
			continue
		}
		if cand.Phase != event.PhaseLast && cand.Flags&Bogus == 0 {
			cand.Flags &^= Fresh
			st = cand
			break
		}
		l.removeAt(i)
	}
	if st == nil {
		st = &State{Flags: Fresh}
		l.add(st)
	}

	switch phase {
	case event.PhaseFirst:
		if st.Flags != Fresh {
			st = &State{Flags: Fresh | Nested}
			l.add(st)
		}
	case event.PhaseNext, event.PhaseLast:
		if st.Flags == Fresh {
			st.Flags |= Bogus
			phase |= event.PhaseFirst
			phase &^= event.PhaseNext
		}
	case event.PhaseFirst | event.PhaseNext:
		if st.Flags == Fresh {
			phase &^= event.PhaseNext
		} else {
			phase &^= event.PhaseFirst
		}
	case event.PhaseFirst | event.PhaseLast:
		// nothing: single-event frame
	default:
		panic("state.Update: bad phase")
	}

	st.copyEvent(ev, phase)
	l.changed = true
	return st
}

// Outdate clears the Changed flag on every surviving state and purges
// any whose frame fully terminated (Phase == PhaseLast) this tick.
// States that are both FIRST and LAST (unknown controllers, tempo
// changes, ...) are kept — they have no "next" event to wait for, but
// they still represent the current value of something.
func (l *StateList) Outdate() {
	if !l.changed {
		return
	}
	l.changed = false
	for i := 0; i < len(l.states); {
		st := l.states[i]
		if st.Phase == event.PhaseLast {
			l.removeAt(i)
			continue
		}
		st.Flags &^= Changed
		i++
	}
}
