package codec

import (
	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/state"
)

// Unpack converts a context-free event (XCTL, XPC, NRPN, RPN) back
// into the raw controller/program-change sequence a real device
// expects, recording whatever context future unpacks will need (the
// bank currently in effect, the RPN/NRPN address currently selected).
// It returns at most MaxRevEvents events. Events Unpack doesn't touch
// pass through unchanged.
func Unpack(l *state.StateList, xctlset uint32, flags Flags, ev event.Event) []event.Event {
	switch ev.Cmd {
	case event.XCtl:
		return unpackXCtl(l, xctlset, flags, ev)
	case event.XPC:
		return unpackXPC(l, flags, ev)
	case event.NRPN:
		if flags&NRPN == 0 {
			return nil
		}
		return unpackAddressed(l, ev, nrpnHi, nrpnLo, rpnHi, rpnLo)
	case event.RPN:
		if flags&RPN == 0 {
			return nil
		}
		return unpackAddressed(l, ev, rpnHi, rpnLo, nrpnHi, nrpnLo)
	default:
		return []event.Event{ev}
	}
}

func unpackXCtl(l *state.StateList, xctlset uint32, flags Flags, ev event.Event) []event.Event {
	num := ev.CtlNum()
	switch num {
	case bankHi, bankLo:
		if flags&XPC != 0 {
			return nil
		}
	case nrpnHi, nrpnLo:
		if flags&NRPN != 0 {
			return nil
		}
	case rpnHi, rpnLo:
		if flags&RPN != 0 {
			return nil
		}
	case dataEntHi, dataEntLo:
		if flags&(NRPN|RPN) != 0 {
			return nil
		}
	}
	if num < 32 && event.IsFineController(xctlset, num) {
		hi := ev.CtlVal() >> 7
		val := getCtlVal(l, ev, num)
		var out []event.Event
		if val != hi {
			c := ctl(ev.Dev, ev.Ch, num, hi)
			setCtl(l, c)
			out = append(out, c)
		}
		out = append(out, ctl(ev.Dev, ev.Ch, num+32, ev.CtlVal()&0x7f))
		return out
	}
	return []event.Event{ctl(ev.Dev, ev.Ch, num, ev.CtlVal()>>7)}
}

func unpackXPC(l *state.StateList, flags Flags, ev event.Event) []event.Event {
	var out []event.Event
	bank := ev.PCBank()
	if flags&XPC != 0 {
		val := getCtxVal(l, ev, bankHi, bankLo)
		if val != bank && bank != event.Undef {
			hi := ctl(ev.Dev, ev.Ch, bankHi, bank>>7)
			setCtl(l, hi)
			out = append(out, hi)
			lo := ctl(ev.Dev, ev.Ch, bankLo, bank&0x7f)
			setCtl(l, lo)
			out = append(out, lo)
		}
	}
	out = append(out, event.Event{Cmd: event.PC, Dev: ev.Dev, Ch: ev.Ch, V0: ev.PCProg()})
	return out
}

// unpackAddressed emits the NRPN/RPN address pair (hi, lo) only if the
// tracked address changed, clearing the other family's tracked address
// (otherHi, otherLo) since the two are mutually exclusive contexts,
// then always emits the data-entry pair -- the tail the NRPN and RPN
// paths share.
func unpackAddressed(l *state.StateList, ev event.Event, hi, lo, otherHi, otherLo uint16) []event.Event {
	var out []event.Event
	val := getCtxVal(l, ev, hi, lo)
	num := ev.RPNNum()
	if val != num {
		rmCtl(l, ev, otherHi)
		rmCtl(l, ev, otherLo)
		h := ctl(ev.Dev, ev.Ch, hi, num>>7)
		setCtl(l, h)
		out = append(out, h)
		lo2 := ctl(ev.Dev, ev.Ch, lo, num&0x7f)
		setCtl(l, lo2)
		out = append(out, lo2)
	}
	val1 := ev.RPNVal()
	out = append(out, ctl(ev.Dev, ev.Ch, dataEntHi, val1>>7))
	out = append(out, ctl(ev.Dev, ev.Ch, dataEntLo, val1&0x7f))
	return out
}
