package codec

import (
	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/state"
)

// Pack converts a raw event (PC, CTL) into a context-free one (XPC,
// XCTL, NRPN, RPN) if enough context has accumulated in l, tracking
// partial bank-select/RPN/NRPN/coarse-fine sequences along the way.
// It returns false when ev only updated the tracked context and no
// event should be emitted yet (e.g. a bank-select MSB with no program
// change following it).  Events that are already context-free, or
// that Pack doesn't touch at all, pass through unchanged.
func Pack(l *state.StateList, xctlset uint32, flags Flags, ev event.Event) (event.Event, bool) {
	switch ev.Cmd {
	case event.PC:
		rev := event.Event{Cmd: event.XPC, Dev: ev.Dev, Ch: ev.Ch, V1: ev.PCProg()}
		if flags&XPC != 0 {
			rev.V0 = getCtxVal(l, ev, bankHi, bankLo)
		}
		return rev, true
	case event.Ctl:
		return packCtl(l, xctlset, flags, ev)
	default:
		return ev, true
	}
}

func packCtl(l *state.StateList, xctlset uint32, flags Flags, ev event.Event) (event.Event, bool) {
	switch ev.CtlNum() {
	case bankHi:
		if flags&XPC != 0 {
			rmCtl(l, ev, bankLo)
			setCtl(l, ev)
			return event.Event{}, false
		}
	case rpnHi:
		if flags&RPN != 0 {
			rmCtl(l, ev, nrpnLo)
			rmCtl(l, ev, rpnLo)
			setCtl(l, ev)
			return event.Event{}, false
		}
	case nrpnHi:
		if flags&NRPN != 0 {
			rmCtl(l, ev, rpnLo)
			rmCtl(l, ev, nrpnLo)
			setCtl(l, ev)
			return event.Event{}, false
		}
	case dataEntHi:
		if flags&(RPN|NRPN) != 0 {
			rmCtl(l, ev, dataEntLo)
			setCtl(l, ev)
			return event.Event{}, false
		}
	case bankLo:
		if flags&XPC != 0 {
			setCtl(l, ev)
			return event.Event{}, false
		}
	case nrpnLo:
		if flags&NRPN != 0 {
			rmCtl(l, ev, rpnLo)
			setCtl(l, ev)
			return event.Event{}, false
		}
	case rpnLo:
		if flags&RPN != 0 {
			rmCtl(l, ev, nrpnLo)
			setCtl(l, ev)
			return event.Event{}, false
		}
	case dataEntLo:
		if flags&(RPN|NRPN) != 0 {
			return packDataEntryLo(l, ev)
		}
	}
	return packPlainCtl(l, xctlset, ev)
}

// packDataEntryLo completes a pending RPN or NRPN edit once its data
// entry LSB arrives. It tries the NRPN context first, then the RPN
// context (the RPN MSB/LSB address pair).
func packDataEntryLo(l *state.StateList, ev event.Event) (event.Event, bool) {
	var cmd event.Cmd
	num := getCtxVal(l, ev, nrpnHi, nrpnLo)
	if num != event.Undef {
		cmd = event.NRPN
	} else {
		num = getCtxVal(l, ev, rpnHi, rpnLo)
		if num == event.Undef {
			return event.Event{}, false
		}
		cmd = event.RPN
	}
	val := getCtlVal(l, ev, dataEntHi)
	if val == event.Undef {
		return event.Event{}, false
	}
	return event.Event{Cmd: cmd, Dev: ev.Dev, Ch: ev.Ch, V0: num, V1: ev.CtlVal() + val<<7}, true
}

// packPlainCtl handles any controller number not claimed by one of the
// special bank/RPN/NRPN/data-entry slots: a configured coarse/fine
// pair collapses into one 14-bit XCTL, everything else becomes a
// 14-bit XCTL with only its coarse half populated.
func packPlainCtl(l *state.StateList, xctlset uint32, ev event.Event) (event.Event, bool) {
	num := ev.CtlNum()
	if num < 32 {
		if event.IsFineController(xctlset, num) {
			setCtl(l, ev)
			return event.Event{}, false
		}
	} else if num < 64 {
		coarseNum := num - 32
		if event.IsFineController(xctlset, coarseNum) {
			val := getCtlVal(l, ev, coarseNum)
			if val == event.Undef {
				return event.Event{}, false
			}
			return event.Event{Cmd: event.XCtl, Dev: ev.Dev, Ch: ev.Ch, V0: coarseNum, V1: ev.CtlVal() + val<<7}, true
		}
	}
	return event.Event{Cmd: event.XCtl, Dev: ev.Dev, Ch: ev.Ch, V0: num, V1: ev.CtlVal() << 7}, true
}
