// Package codec converts between raw MIDI events (CTL, PC) and
// context-free events (XCTL, NRPN, RPN, XPC) whose meaning doesn't
// depend on prior bank-select/RPN-address/NRPN-address controllers
// having already been seen. Packing collapses a raw bank-select +
// program-change pair (or RPN/NRPN address + data-entry pair, or a
// 14-bit coarse/fine controller pair) into one context-free event;
// unpacking expands a context-free event back into the controller
// sequence a real device expects.
//
// Per-stream partial sequences (a bank-select MSB seen but no LSB yet,
// an RPN address set but no data entry yet) are tracked in a
// *state.StateList supplied by the caller — one per direction, since
// an input stream and an output stream of the same device can be at
// different points in their respective sequences.
package codec

import (
	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/state"
)

// Flags selects which context-free conversions are enabled, mirroring
// a device's configured input/output conversion sets.
type Flags uint8

const (
	XPC Flags = 1 << iota
	NRPN
	RPN
)

// Controller numbers with special, non-parameter meaning: the
// high/low halves of bank-select, NRPN/RPN address selection, and data
// entry.
const (
	bankHi    uint16 = 0
	dataEntHi uint16 = 6
	nrpnLo    uint16 = 98
	nrpnHi    uint16 = 99
	rpnLo     uint16 = 100
	rpnHi     uint16 = 101
	bankLo    uint16 = 32
	dataEntLo uint16 = 38
)

// MaxRevEvents bounds how many raw events a single Unpack call can
// produce: bank hi, bank lo, program change, with one slot to spare;
// or two address bytes plus two data-entry bytes for RPN/NRPN.
const MaxRevEvents = 4

func chanMatch(a, b event.Event) bool { return a.Ch == b.Ch && a.Dev == b.Dev }

func setCtl(l *state.StateList, ev event.Event) {
	num := ev.CtlNum()
	if st := l.Find(func(s *state.State) bool {
		return s.Ev.CtlNum() == num && chanMatch(s.Ev, ev)
	}); st != nil {
		st.Ev = event.Event{Cmd: event.Ctl, Dev: ev.Dev, Ch: ev.Ch, V0: num, V1: ev.CtlVal()}
		return
	}
	l.Add(&state.State{Ev: event.Event{Cmd: event.Ctl, Dev: ev.Dev, Ch: ev.Ch, V0: num, V1: ev.CtlVal()}})
}

func getCtl(l *state.StateList, ev event.Event, num uint16) (uint16, bool) {
	st := l.Find(func(s *state.State) bool {
		return s.Ev.CtlNum() == num && chanMatch(s.Ev, ev)
	})
	if st == nil {
		return 0, false
	}
	return st.Ev.CtlVal(), true
}

func rmCtl(l *state.StateList, ev event.Event, num uint16) {
	l.RemoveMatching(func(s *state.State) bool {
		return s.Ev.CtlNum() == num && chanMatch(s.Ev, ev)
	})
}

// getCtx reconstructs the 14-bit value of a tracked (hi, lo) controller
// pair. Both halves must be present or the context is incomplete.
func getCtx(l *state.StateList, ev event.Event, hi, lo uint16) (uint16, bool) {
	vlo, ok := getCtl(l, ev, lo)
	if !ok {
		return 0, false
	}
	vhi, ok := getCtl(l, ev, hi)
	if !ok {
		return 0, false
	}
	return vlo + vhi<<7, true
}

func ctl(dev, ch uint8, num, val uint16) event.Event {
	return event.Event{Cmd: event.Ctl, Dev: dev, Ch: ch, V0: num, V1: val}
}

// getCtxVal and getCtlVal mirror getCtx/getCtl but return event.Undef
// instead of an ok bool, so Pack/Unpack's branches can compare against
// the sentinel directly.
func getCtxVal(l *state.StateList, ev event.Event, hi, lo uint16) uint16 {
	if v, ok := getCtx(l, ev, hi, lo); ok {
		return v
	}
	return event.Undef
}

func getCtlVal(l *state.StateList, ev event.Event, num uint16) uint16 {
	if v, ok := getCtl(l, ev, num); ok {
		return v
	}
	return event.Undef
}
