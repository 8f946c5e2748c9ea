// Package filt rewrites events according to user-configured rules: a
// tree of source->destination event specs (Map), plus two note-only
// modifiers applied after mapping (Transp, a modular semitone shift;
// Vcurve, a non-linear velocity curve).
package filt

import "github.com/zurustar/midicore/pkg/event"

// node is one entry of a rule tree: a source spec plus whatever the
// tree attaches to it (destination specs for Map, a single payload
// for Transp/Vcurve).
type node struct {
	spec event.EventSpec
	dsts []event.EventSpec // Map only
	plus int               // Transp only
	nwgt int               // Vcurve only, 0..127, see vcurve()
}

// Filter holds the three rule trees a chain of events passes through:
// map first, then (for notes only) vcurve and transp, in that order.
type Filter struct {
	mapSrcs    []*node
	transpSrcs []*node
	vcurveSrcs []*node
}

// New returns an empty filter. Do passes on only events matched by a
// map rule, so an empty filter produces no output for any event.
func New() *Filter { return &Filter{} }

// Reset removes every rule from all three trees.
func (f *Filter) Reset() {
	f.mapSrcs = nil
	f.transpSrcs = nil
	f.vcurveSrcs = nil
}

// mksrc finds the source node for spec in tree, creating it if
// missing, first discarding any existing node whose spec intersects
// spec without containing it -- those would make "first match wins"
// ambiguous. Nodes are kept ordered by narrowness: spec is inserted
// just before the first existing node it is contained in.
func mksrc(tree *[]*node, spec event.EventSpec) *node {
	kept := (*tree)[:0]
	for _, s := range *tree {
		if s.spec.Isec(spec) && !spec.In(s.spec) {
			continue
		}
		kept = append(kept, s)
	}
	*tree = kept

	for i, s := range *tree {
		if s.spec.Eq(spec) {
			return s
		}
		if spec.In(s.spec) {
			n := &node{spec: spec}
			*tree = append(*tree, nil)
			copy((*tree)[i+1:], (*tree)[i:])
			(*tree)[i] = n
			return n
		}
	}
	n := &node{spec: spec}
	*tree = append(*tree, n)
	return n
}

// MapNew adds a rule mapping events in from to events in to. to may be
// event.SpecEmpty to mean "drop matching events". If to isn't Empty
// and (from, to) isn't a structurally valid bijective mapping, the
// rule is rejected with the error event.IsAMap reports.
func (f *Filter) MapNew(from, to event.EventSpec) error {
	if to.Cmd != event.SpecEmpty {
		ok, err := event.IsAMap(from, to)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	s := mksrc(&f.mapSrcs, from)
	mkdst(s, to)
	return nil
}

// mkdst inserts to into s's destination list, first discarding any
// existing destination that intersects it. An Empty "drop" entry and
// any other destination always displace each other.
func mkdst(s *node, to event.EventSpec) {
	kept := s.dsts[:0]
	for _, d := range s.dsts {
		if d.Eq(to) {
			return
		}
		if d.Isec(to) || to.Cmd == event.SpecEmpty || d.Cmd == event.SpecEmpty {
			continue
		}
		kept = append(kept, d)
	}
	s.dsts = append(kept, to)
}

// Transp adds a modular semitone-shift rule for notes matching from.
// from must be Any or a full-range Note spec: partial note ranges
// can't express "every note, whatever pitch, shifts by the same
// amount".
func (f *Filter) Transp(from event.EventSpec, plus int) error {
	if from.Cmd != event.SpecAny && from.Cmd != event.SpecNote {
		return ErrNotNoteSpec
	}
	if from.Cmd == event.SpecNote && (from.V0Min != 0 || from.V0Max != event.MaxCoarse) {
		return ErrPartialNoteRange
	}
	s := mksrc(&f.transpSrcs, from)
	s.plus = plus & 0x7f
	return nil
}

// Vcurve adds a velocity-curve rule for notes matching from. weight is
// stored as (64-weight)&0x7f, the value vcurve() itself receives;
// vcurve's own neutral point is 64, so weight==0 reshapes nothing.
func (f *Filter) Vcurve(from event.EventSpec, weight int) error {
	if from.Cmd != event.SpecAny && from.Cmd != event.SpecNote {
		return ErrNotNoteSpec
	}
	s := mksrc(&f.vcurveSrcs, from)
	s.nwgt = (64 - weight) & 0x7f
	return nil
}

// Do runs ev through the filter: the first matching map source
// produces zero or more output events (one per non-Empty destination,
// with Empty destinations suppressing that branch); each output event
// that is a note is then passed through the first matching vcurve and
// then the first matching transp rule, in that order.
func (f *Filter) Do(ev event.Event) []event.Event {
	var out []event.Event
	for _, s := range f.mapSrcs {
		if !s.spec.MatchesEvent(ev) {
			continue
		}
		for _, d := range s.dsts {
			if d.Cmd == event.SpecEmpty {
				continue
			}
			out = append(out, event.Map(ev, s.spec, d))
		}
		break
	}
	if !ev.Cmd.IsNote() {
		return out
	}
	for i := range out {
		for _, s := range f.vcurveSrcs {
			if !s.spec.MatchesEvent(out[i]) {
				continue
			}
			out[i].V1 = uint16(vcurve(s.nwgt, int(out[i].V1)))
			break
		}
		for _, s := range f.transpSrcs {
			if !s.spec.MatchesEvent(out[i]) {
				continue
			}
			out[i].V0 = (out[i].V0 + uint16(s.plus)) & 0x7f
			break
		}
	}
	return out
}

// vcurve reshapes velocity x through a curve pivoting on nweight, which
// falls in 0..127; 64 is the neutral, linear curve.
func vcurve(nweight, x int) int {
	if x == 0 {
		return 0
	}
	nweight--
	if x <= nweight {
		if nweight == 0 {
			return 127
		}
		return 1 + (126-nweight)*(x-1)/nweight
	}
	if nweight == 126 {
		return 1
	}
	return 127 - nweight*(127-x)/(126-nweight)
}
