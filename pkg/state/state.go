// Package state tracks per-stream "frames": notes being held, the last
// value sent on a controller, pending RPN/NRPN edits, tempo and time
// signature, each as a State kept in a StateList. It is the engine that
// makes cancel/restore of an arbitrary stream position possible.
package state

import (
	"fmt"

	"github.com/zurustar/midicore/pkg/event"
)

// Flags records how a State was produced and whether it is trustworthy.
type Flags uint8

const (
	Fresh   Flags = 1 << iota // just created, never updated
	Changed                   // updated within the current tick
	Bogus                     // frame detected as bogus (missing FIRST)
	Nested                    // nested frame (FIRST seen while already open)
)

// State is the last known event of one frame, plus the bookkeeping
// Update/Outdate use to manage its lifetime.
type State struct {
	Ev    event.Event
	Phase event.Phase
	Flags Flags

	// Tag, Tic and Pos are general-purpose fields ignored by this
	// package; other subsystems (norm, mixout, song) use them
	// privately for their own bookkeeping. See their docs for what
	// each one means there.
	Tag uint
	Tic uint
	Pos any
}

// copyEvent records ev into st as the new current event of the frame,
// at the given phase, and marks it Changed.
func (st *State) copyEvent(ev event.Event, phase event.Phase) {
	st.Ev = ev
	st.Phase = phase
	st.Flags |= Changed
}

// InSpec reports whether st's event falls within spec. A nil spec
// matches everything.
func (st *State) InSpec(spec *event.EventSpec) bool {
	if spec == nil {
		return true
	}
	return spec.MatchesEvent(st.Ev)
}

// Eq compares st to an event known to Match it: same value
// fields, ignoring anything Match() didn't already establish as equal.
func (st *State) Eq(ev event.Event) bool {
	switch {
	case st.Ev.Cmd.IsVoice() && (st.Ev.Cmd == event.ChanAt || st.Ev.Cmd == event.Bend):
		return st.Ev.V0 == ev.V0
	case st.Ev.Cmd.IsVoice():
		return st.Ev.Cmd == ev.Cmd && st.Ev.V0 == ev.V0 && st.Ev.V1 == ev.V1
	case st.Ev.Cmd.IsSysex():
		if st.Ev.Cmd != ev.Cmd {
			return false
		}
		n := st.Ev.Cmd.NumParams()
		if n >= 1 && st.Ev.V0 != ev.V0 {
			return false
		}
		if n >= 2 && st.Ev.V1 != ev.V1 {
			return false
		}
		return true
	case st.Ev.Cmd == event.Tempo:
		return st.Ev.TempoUsec24() == ev.TempoUsec24()
	case st.Ev.Cmd == event.TimeSig:
		return st.Ev.TimeSigBeats() == ev.TimeSigBeats() && st.Ev.TimeSigTics() == ev.TimeSigTics()
	default:
		panic(fmt.Sprintf("state.Eq: %v is not defined", st.Ev.Cmd))
	}
}

// Cancel produces the event that would undo st's effect, as if the
// frame had never started: a note-off for a held note, a return to the
// default value for a non-terminated controller/bender/aftertouch
// frame. It returns false if nothing needs to be played (the frame is
// already at its last phase).
func (st *State) Cancel() (event.Event, bool) {
	if st.Phase&event.PhaseLast != 0 {
		return event.Event{}, false
	}
	var rev event.Event
	switch st.Ev.Cmd {
	case event.NoteOn, event.KeyAt:
		rev = event.Event{Cmd: event.NoteOff, Dev: st.Ev.Dev, Ch: st.Ev.Ch, V0: st.Ev.NoteNum(), V1: event.NoteOffDefVel}
	case event.ChanAt:
		rev = event.Event{Cmd: event.ChanAt, Dev: st.Ev.Dev, Ch: st.Ev.Ch, V0: event.ChanAtDefault}
	case event.XCtl:
		rev = event.Event{Cmd: event.XCtl, Dev: st.Ev.Dev, Ch: st.Ev.Ch, V0: st.Ev.CtlNum(), V1: event.ControllerDefault(st.Ev.CtlNum())}
	case event.Bend:
		rev = event.Event{Cmd: event.Bend, Dev: st.Ev.Dev, Ch: st.Ev.Ch, V0: event.BendDefault}
	default:
		// Every other kind always carries PhaseLast, so Cancel is
		// never called on it; reaching here is a programming error.
		panic(fmt.Sprintf("state.Cancel: %v cannot be cancelled", st.Ev.Cmd))
	}
	return rev, true
}

// Restore produces the event that would recreate st's current value,
// e.g. after a relocation lands in the middle of a frame. It returns
// false if the frame doesn't need restoring: it is BOGUS, or a
// terminated, non-restartable frame. Notes are never restored through
// Restore: calling it on a non-BOGUS note state panics.
func (st *State) Restore() (event.Event, bool) {
	if st.Flags&Bogus != 0 {
		return event.Event{}, false
	}
	if st.Ev.Cmd.IsNote() {
		panic("state.Restore: note events are never restored through Restore")
	}
	if st.Phase&event.PhaseLast != 0 && st.Phase&event.PhaseFirst == 0 {
		return event.Event{}, false
	}
	return st.Ev, true
}
