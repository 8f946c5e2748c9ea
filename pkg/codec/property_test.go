package codec

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/state"
)

// For a plain (non-fine) controller, unpacking what was just packed
// from a raw controller event reconstructs the original event exactly,
// and the unpack/pack pair for an isolated voice event is a no-op on
// both sides.
func TestPackUnpackRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("unpack(pack(ctl)) reconstructs the original plain controller", prop.ForAllNoShrink(
		func(num, val, dev, ch int) bool {
			packL, unpackL := state.New(4), state.New(4)
			ev := event.Event{
				Cmd: event.Ctl,
				Dev: uint8(dev % 4), Ch: uint8(ch % 16),
				V0: uint16(num % 128), V1: uint16(val % 128),
			}
			packed, ok := Pack(packL, 0, 0, ev)
			if !ok {
				return false
			}
			back := Unpack(unpackL, 0, 0, packed)
			return len(back) == 1 && back[0] == ev
		},
		gen.IntRange(0, 127),
		gen.IntRange(0, 127),
		gen.IntRange(0, 15),
		gen.IntRange(0, 15),
	))

	properties.Property("a voice event survives Pack/Unpack untouched", prop.ForAllNoShrink(
		func(note, vel, dev, ch int) bool {
			l := state.New(4)
			ev := event.Event{
				Cmd: event.NoteOn,
				Dev: uint8(dev % 4), Ch: uint8(ch % 16),
				V0: uint16(note % 128), V1: uint16(vel%126 + 1),
			}
			packed, ok := Pack(l, 0, 0, ev)
			if !ok || packed != ev {
				return false
			}
			back := Unpack(l, 0, 0, packed)
			return len(back) == 1 && back[0] == ev
		},
		gen.IntRange(0, 127),
		gen.IntRange(0, 126),
		gen.IntRange(0, 15),
		gen.IntRange(0, 15),
	))

	properties.TestingRun(t)
}

// A bank-select MSB/LSB pair followed by a program change packs to a
// single XPC carrying the combined bank, and unpacking it re-emits
// the same two controllers plus the program change.
func TestBankProgramChangePriming(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("bank select + program change primes and round-trips through XPC", prop.ForAllNoShrink(
		func(hiIn, loIn, progIn int) bool {
			hi, lo, prog := uint16(hiIn%128), uint16(loIn%128), uint16(progIn%128)
			packL := state.New(4)
			if _, ok := Pack(packL, 0, XPC, event.Event{Cmd: event.Ctl, V0: bankHi, V1: hi}); ok {
				return false
			}
			if _, ok := Pack(packL, 0, XPC, event.Event{Cmd: event.Ctl, V0: bankLo, V1: lo}); ok {
				return false
			}
			xpc, ok := Pack(packL, 0, XPC, event.Event{Cmd: event.PC, V0: prog})
			if !ok || xpc.Cmd != event.XPC || xpc.PCBank() != lo+hi<<7 || xpc.PCProg() != prog {
				return false
			}

			unpackL := state.New(4)
			out := Unpack(unpackL, 0, XPC, xpc)
			if len(out) != 3 {
				return false
			}
			return out[0].CtlNum() == bankHi && out[0].CtlVal() == hi &&
				out[1].CtlNum() == bankLo && out[1].CtlVal() == lo &&
				out[2].Cmd == event.PC && out[2].V0 == prog
		},
		gen.IntRange(0, 127),
		gen.IntRange(0, 127),
		gen.IntRange(0, 127),
	))

	properties.TestingRun(t)
}
