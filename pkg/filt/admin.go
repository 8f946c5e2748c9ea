package filt

import "github.com/zurustar/midicore/pkg/event"

// MapDel removes every destination contained in to from sources
// contained in from, pruning any source left with no destinations.
func (f *Filter) MapDel(from, to event.EventSpec) {
	kept := f.mapSrcs[:0]
	for _, s := range f.mapSrcs {
		if s.spec.In(from) {
			dsts := s.dsts[:0]
			for _, d := range s.dsts {
				if !d.In(to) {
					dsts = append(dsts, d)
				}
			}
			s.dsts = dsts
		}
		if len(s.dsts) > 0 {
			kept = append(kept, s)
		}
	}
	f.mapSrcs = kept
}

// Detach removes every map rule from the filter, returning them as
// (from, to) pairs for the caller to reinsert. ChgIn/ChgOut use this
// to rebuild the whole tree, since remapping a source or destination
// can change its narrowness ordering relative to its siblings.
func (f *Filter) Detach() [][2]event.EventSpec {
	var rules [][2]event.EventSpec
	for _, s := range f.mapSrcs {
		for _, d := range s.dsts {
			rules = append(rules, [2]event.EventSpec{s.spec, d})
		}
	}
	f.mapSrcs = nil
	return rules
}

// ChgIn rewrites every map rule whose source is contained in from to
// the corresponding range in to: used when a device or channel's live
// configuration changes and existing filter rules must follow it.
// When swap is set, sources contained in to are instead rewritten
// back to from, undoing that change.
func (f *Filter) ChgIn(from, to event.EventSpec, swap bool) {
	for _, r := range f.Detach() {
		src, dst := r[0], r[1]
		if swap {
			if src.In(to) {
				src = event.MapSpec(src, to, from)
			}
		} else if src.In(from) {
			src = event.MapSpec(src, from, to)
		}
		_ = f.MapNew(src, dst)
	}
}

// ChgOut is ChgIn's mirror image: it rewrites destinations instead of
// sources.
func (f *Filter) ChgOut(from, to event.EventSpec, swap bool) {
	for _, r := range f.Detach() {
		src, dst := r[0], r[1]
		if swap {
			if dst.In(to) {
				dst = event.MapSpec(dst, to, from)
			}
		} else if dst.In(from) {
			dst = event.MapSpec(dst, from, to)
		}
		_ = f.MapNew(src, dst)
	}
}
