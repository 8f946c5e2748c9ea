package event

import "fmt"

// EventSpec describes a rectangular range of events: a command kind
// (or SpecAny/SpecNote, which span several kinds) together with
// min/max bounds on device, channel and the value fields that kind
// uses. It is the selector type used by filter rules (map/transp/vcurve)
// to describe which events a rule applies to.
type EventSpec struct {
	Cmd                  Cmd
	DevMin, DevMax       uint8
	ChMin, ChMax         uint8
	V0Min, V0Max         uint16
	V1Min, V1Max         uint16
}

// Reset returns es to "matches any event, any device, any channel".
func (es *EventSpec) Reset() {
	es.Cmd = SpecAny
	es.DevMin, es.DevMax = 0, MaxDev
	es.ChMin, es.ChMax = 0, MaxCh
	es.V0Min, es.V0Max = infoTable[SpecAny].v0min, infoTable[SpecAny].v0max
	es.V1Min, es.V1Max = infoTable[SpecAny].v1min, infoTable[SpecAny].v1max
}

// Any returns an EventSpec matching every event, any device/channel.
func Any() EventSpec {
	var es EventSpec
	es.Reset()
	return es
}

func (es EventSpec) String() string {
	name := infoTable[es.Cmd].spec
	if name == "" {
		name = fmt.Sprintf("bad(%d)", es.Cmd)
	}
	s := name
	if es.Cmd.HasDev() {
		s += fmt.Sprintf(" %d:%d", es.DevMin, es.DevMax)
	}
	if es.Cmd.HasCh() {
		s += fmt.Sprintf(" %d:%d", es.ChMin, es.ChMax)
	}
	if es.Cmd.NumParams() >= 1 {
		s += fmt.Sprintf(" %d:%d", es.V0Min, es.V0Max)
	}
	if es.Cmd.NumParams() >= 2 {
		s += fmt.Sprintf(" %d:%d", es.V1Min, es.V1Max)
	}
	return s
}

// MatchesEvent reports whether ev falls within es's ranges.
func (es EventSpec) MatchesEvent(ev Event) bool {
	if es.Cmd == SpecEmpty {
		return false
	}
	if es.Cmd == SpecNote {
		if !ev.Cmd.IsNote() {
			return false
		}
	} else if es.Cmd != SpecAny {
		if es.Cmd != ev.Cmd {
			return false
		}
	}
	if es.Cmd.HasDev() && ev.Cmd.HasDev() {
		if uint8(ev.Dev) < es.DevMin || uint8(ev.Dev) > es.DevMax {
			return false
		}
	}
	if es.Cmd.HasCh() && ev.Cmd.HasCh() {
		if ev.Ch < es.ChMin || ev.Ch > es.ChMax {
			return false
		}
	}
	if es.Cmd.NumParams() > 0 && ev.Cmd.NumParams() > 0 {
		if ev.V0 < es.V0Min || ev.V0 > es.V0Max {
			return false
		}
	}
	if es.Cmd.NumParams() > 1 && ev.Cmd.NumParams() > 1 {
		if ev.V1 < es.V1Min || ev.V1 > es.V1Max {
			return false
		}
	}
	return true
}

// Eq reports whether es1 and es2 describe exactly the same range.
func (es1 EventSpec) Eq(es2 EventSpec) bool {
	if es1.Cmd != es2.Cmd {
		return false
	}
	if es1.Cmd.HasDev() && (es1.DevMin != es2.DevMin || es1.DevMax != es2.DevMax) {
		return false
	}
	if es1.Cmd.HasCh() && (es1.ChMin != es2.ChMin || es1.ChMax != es2.ChMax) {
		return false
	}
	if es1.Cmd.NumParams() > 0 && (es1.V0Min != es2.V0Min || es1.V0Max != es2.V0Max) {
		return false
	}
	if es1.Cmd.NumParams() > 1 && (es1.V1Min != es2.V1Min || es1.V1Max != es2.V1Max) {
		return false
	}
	return true
}

// Isec reports whether es1 and es2's ranges overlap.
func (es1 EventSpec) Isec(es2 EventSpec) bool {
	if es1.Cmd == SpecEmpty || es2.Cmd == SpecEmpty {
		return false
	}
	if es1.Cmd != SpecAny && es2.Cmd != SpecAny && es1.Cmd != es2.Cmd {
		return false
	}
	if es1.Cmd.HasDev() && es2.Cmd.HasDev() {
		if es1.DevMin > es2.DevMax || es1.DevMax < es2.DevMin {
			return false
		}
	}
	if es1.Cmd.HasCh() && es2.Cmd.HasCh() {
		if es1.ChMin > es2.ChMax || es1.ChMax < es2.ChMin {
			return false
		}
	}
	if es1.Cmd.NumParams() > 0 && es2.Cmd.NumParams() > 0 {
		if es1.V0Min > es2.V0Max || es1.V0Max < es2.V0Min {
			return false
		}
	}
	if es1.Cmd.NumParams() > 1 && es2.Cmd.NumParams() > 1 {
		if es1.V1Min > es2.V1Max || es1.V1Max < es2.V1Min {
			return false
		}
	}
	return true
}

// In reports whether es1's range is entirely contained in es2's (every
// EventSpec contains itself). Filter rule trees require that any two
// sibling rules' specs either be disjoint (Isec false) or related by In
// one way or the other — this is the "narrowness ordering" invariant.
func (es1 EventSpec) In(es2 EventSpec) bool {
	if es1.Cmd == SpecEmpty {
		return true
	}
	if es2.Cmd == SpecEmpty {
		return false
	}
	if es1.Cmd == SpecAny && es2.Cmd != SpecAny {
		return false
	}
	if es2.Cmd != SpecAny && es2.Cmd != es1.Cmd {
		return false
	}
	if es1.Cmd.HasDev() && es2.Cmd.HasDev() {
		if es1.DevMin < es2.DevMin || es1.DevMax > es2.DevMax {
			return false
		}
	}
	if es1.Cmd.HasCh() && es2.Cmd.HasCh() {
		if es1.ChMin < es2.ChMin || es1.ChMax > es2.ChMax {
			return false
		}
	}
	if es1.Cmd.NumParams() > 0 && es2.Cmd.NumParams() > 0 {
		if es1.V0Min < es2.V0Min || es1.V0Max > es2.V0Max {
			return false
		}
	}
	if es1.Cmd.NumParams() > 1 && es2.Cmd.NumParams() > 1 {
		if es1.V1Min < es2.V1Min || es1.V1Max > es2.V1Max {
			return false
		}
	}
	return true
}

// IsAMap reports whether (from, to) is a valid argument pair for Map:
// "note" and "any" may only be paired with themselves, device/channel
// ranges must have matching sizes, and value ranges must either match
// in size or (when the arity changes) be a single point.
func IsAMap(from, to EventSpec) (bool, error) {
	if (from.Cmd == SpecNote) != (to.Cmd == SpecNote) {
		return false, fmt.Errorf("%w: note may only be mapped to note", ErrBadCardinality)
	}
	if (from.Cmd == SpecAny) != (to.Cmd == SpecAny) {
		return false, fmt.Errorf("%w: any may only be mapped to any", ErrBadCardinality)
	}
	if from.Cmd.HasDev() && (from.DevMax-from.DevMin) != (to.DevMax-to.DevMin) {
		return false, fmt.Errorf("%w: device ranges must have the same size", ErrBadCardinality)
	}
	if from.Cmd.HasCh() && (from.ChMax-from.ChMin) != (to.ChMax-to.ChMin) {
		return false, fmt.Errorf("%w: channel ranges must have the same size", ErrBadCardinality)
	}
	switch from.Cmd.NumParams() {
	case 0:
		switch to.Cmd.NumParams() {
		case 1:
			if to.V0Max != to.V0Min {
				return false, fmt.Errorf("%w: v0 range must be empty", ErrBadCardinality)
			}
		case 2:
			if to.V0Max != to.V0Min || to.V1Max != to.V1Min {
				return false, fmt.Errorf("%w: v0/v1 ranges must be empty", ErrBadCardinality)
			}
		}
	case 1:
		switch to.Cmd.NumParams() {
		case 0:
			if from.V0Max != from.V0Min {
				return false, fmt.Errorf("%w: v0 range must be empty", ErrBadCardinality)
			}
		case 1:
			if from.V0Max-from.V0Min != to.V0Max-to.V0Min {
				return false, fmt.Errorf("%w: v0 ranges must have the same size", ErrBadCardinality)
			}
		case 2:
			if to.V0Max != to.V0Min {
				return false, fmt.Errorf("%w: v0 range must be empty", ErrBadCardinality)
			}
			if from.V0Max-from.V0Min != to.V1Max-to.V1Min {
				return false, fmt.Errorf("%w: v0/v1 ranges must have the same size", ErrBadCardinality)
			}
		}
	case 2:
		switch to.Cmd.NumParams() {
		case 0:
			if from.V0Max != from.V0Min || from.V1Max != from.V1Min {
				return false, fmt.Errorf("%w: v0/v1 ranges must be empty", ErrBadCardinality)
			}
		case 1:
			if from.V0Max != from.V0Min {
				return false, fmt.Errorf("%w: v0 range must be empty", ErrBadCardinality)
			}
			if from.V1Max-from.V1Min != to.V0Max-to.V0Min {
				return false, fmt.Errorf("%w: v1/v0 ranges must have the same size", ErrBadCardinality)
			}
		case 2:
			if from.V0Max-from.V0Min != to.V0Max-to.V0Min ||
				from.V1Max-from.V1Min != to.V1Max-to.V1Min {
				return false, fmt.Errorf("%w: v0/v1 ranges must have the same size", ErrBadCardinality)
			}
		}
	}
	return true, nil
}

// Map translates ev (which must fall within from) into the
// corresponding event within to. from and to must have passed IsAMap.
func Map(ev Event, from, to EventSpec) Event {
	var out Event
	if from.Cmd == SpecAny {
		out.Cmd = ev.Cmd
		out.Dev = ev.Dev - uint8(from.DevMin) + uint8(to.DevMin)
		out.Ch = ev.Ch - from.ChMin + to.ChMin
		out.V0, out.V1 = ev.V0, ev.V1
		return out
	}
	if from.Cmd == SpecNote {
		out.Cmd = ev.Cmd
	} else {
		out.Cmd = to.Cmd
	}
	if out.Cmd.HasDev() {
		out.Dev = uint8(to.DevMin)
		if from.Cmd.HasDev() {
			out.Dev += ev.Dev - uint8(from.DevMin)
		}
	}
	if out.Cmd.HasCh() {
		out.Ch = to.ChMin
		if from.Cmd.HasCh() {
			out.Ch += ev.Ch - from.ChMin
		}
	}
	switch from.Cmd.NumParams() {
	case 0:
		switch to.Cmd.NumParams() {
		case 1:
			out.V0 = to.V0Min
		case 2:
			out.V0, out.V1 = to.V0Min, to.V1Min
		}
	case 1:
		switch to.Cmd.NumParams() {
		case 1:
			out.V0 = ev.V0 - from.V0Min + to.V0Min
		case 2:
			out.V0 = to.V0Min
			out.V1 = ev.V0 - from.V0Min + to.V1Min
		}
	case 2:
		switch to.Cmd.NumParams() {
		case 1:
			out.V0 = ev.V1 - from.V1Min + to.V0Min
		case 2:
			out.V0 = ev.V0 - from.V0Min + to.V0Min
			out.V1 = ev.V1 - from.V1Min + to.V1Min
		}
	}
	return out
}

// MapSpec translates the range in spec "in" (which must be included in
// from) into the corresponding range included in to. Same semantics and
// constraints as Map, but operating on whole ranges instead of single
// events; used to propagate filter rule ranges through a map rule.
func MapSpec(in, from, to EventSpec) EventSpec {
	var out EventSpec
	if from.Cmd == SpecAny {
		out.Cmd = in.Cmd
		devOffs := int(to.DevMin) - int(from.DevMin)
		out.DevMin = uint8(int(in.DevMin) + devOffs)
		out.DevMax = uint8(int(in.DevMax) + devOffs)
		chOffs := int(to.ChMin) - int(from.ChMin)
		out.ChMin = uint8(int(in.ChMin) + chOffs)
		out.ChMax = uint8(int(in.ChMax) + chOffs)
		out.V0Min, out.V0Max = in.V0Min, in.V0Max
		out.V1Min, out.V1Max = in.V1Min, in.V1Max
		return out
	}
	if from.Cmd == SpecNote {
		out.Cmd = in.Cmd
	} else {
		out.Cmd = to.Cmd
	}
	if out.Cmd.HasDev() {
		out.DevMin, out.DevMax = to.DevMin, to.DevMax
		if from.Cmd.HasDev() {
			out.DevMin += in.DevMin - from.DevMin
			out.DevMax += in.DevMax - from.DevMax
		}
	}
	if out.Cmd.HasCh() {
		out.ChMin, out.ChMax = to.ChMin, to.ChMax
		if from.Cmd.HasCh() {
			out.ChMin += in.ChMin - from.ChMin
			out.ChMax += in.ChMax - from.ChMax
		}
	}
	switch from.Cmd.NumParams() {
	case 0:
		switch to.Cmd.NumParams() {
		case 1:
			out.V0Min, out.V0Max = to.V0Min, to.V0Max
		case 2:
			out.V0Min, out.V0Max = to.V0Min, to.V0Max
			out.V1Min, out.V1Max = to.V1Min, to.V1Max
		}
	case 1:
		switch to.Cmd.NumParams() {
		case 1:
			offs := int(to.V0Min) - int(from.V0Min)
			out.V0Min = uint16(int(in.V0Min) + offs)
			out.V0Max = uint16(int(in.V0Max) + offs)
		case 2:
			out.V0Min, out.V0Max = to.V0Min, to.V0Max
			offs := int(to.V1Min) - int(from.V0Min)
			out.V1Min = uint16(int(in.V0Min) + offs)
			out.V1Max = uint16(int(in.V0Max) + offs)
		}
	case 2:
		switch to.Cmd.NumParams() {
		case 1:
			offs := int(to.V0Min) - int(from.V1Min)
			out.V0Min = uint16(int(in.V1Min) + offs)
			out.V0Max = uint16(int(in.V1Max) + offs)
		case 2:
			offs := int(to.V0Min) - int(from.V0Min)
			out.V0Min = uint16(int(in.V0Min) + offs)
			out.V0Max = uint16(int(in.V0Max) + offs)
			// Unlike the v0 branch just above, the v1 offset is
			// subtracted here, not added.
			offs = int(to.V1Min) - int(from.V1Min)
			out.V1Min = uint16(int(in.V1Min) - offs)
			out.V1Max = uint16(int(in.V1Max) - offs)
		}
	}
	return out
}
