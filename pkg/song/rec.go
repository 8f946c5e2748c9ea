package song

import (
	"sort"

	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/filt"
	"github.com/zurustar/midicore/pkg/mixout"
	"github.com/zurustar/midicore/pkg/state"
	"github.com/zurustar/midicore/pkg/track"
	"github.com/zurustar/midicore/pkg/undo"
)

// Arm selects tr as the recording target: the next time the
// transport raises into REC, live input gets merged into it.
func (s *Song) Arm(tr *Track) { s.recTarget = tr }

// Armed reports the currently armed track, or nil.
func (s *Song) Armed() *Track { return s.recTarget }

// startRecording begins a fresh recording overlay on top of the armed
// track, called when the transport raises into REC.
func (s *Song) startRecording() {
	if s.recTarget == nil {
		return
	}
	if s.recTarget.cursor == nil {
		s.recTarget.cursor = track.NewSeqPtr(s.recTarget.Track, state.New(32))
	}
	s.rec = track.New()
	s.recCursor = track.NewSeqPtr(s.rec, state.New(32))
	s.recStartAbs = s.AbsTic
}

// HandleInput is the per-input event callback (pkg/mux's OnEvent):
// ev has already been packed/normalized. It is routed through the
// matching channel's filter, always played live at input priority and, in
// REC, merged into the recording overlay against the armed track's
// currently replayed value.
func (s *Song) HandleInput(unit int, ev event.Event) {
	if s.handleTap(ev) {
		return
	}
	c := s.findChan(unit, ev)
	f := s.filterForChan(c)
	for _, out := range f.Do(ev) {
		s.Mixer.Put(out, mixout.PrioInput)
		s.mergeLiveInput(out)
	}
}

func (s *Song) mergeLiveInput(ev event.Event) {
	if s.Mode != Rec || s.recCursor == nil || s.recTarget == nil || s.recTarget.cursor == nil {
		return
	}
	baseline := s.recTarget.cursor.States
	if existing := baseline.Lookup(ev); existing != nil && existing.Eq(ev) {
		return
	}
	s.recCursor.Evmerge2(baseline, ev)
}

func (s *Song) findChan(unit int, ev event.Event) *Chan {
	for _, c := range s.Chans {
		if c.Input && int(c.Dev) == unit && c.Ch == ev.Ch {
			return c
		}
	}
	return nil
}

func (s *Song) filterForChan(c *Chan) *filt.Filter {
	if c == nil {
		return s.passthrough
	}
	return s.Filter(c.FiltName)
}

// mergeRecord closes out the recording overlay (terminating any
// frame left open by the user letting go exactly as REC ended) and
// three-way-merges it into the armed track, pushing one undo entry
// for the whole operation.
func (s *Song) mergeRecord() {
	if s.recTarget == nil || s.rec == nil {
		return
	}
	for _, st := range append([]*state.State(nil), s.recCursor.States.All()...) {
		if ev, ok := st.Cancel(); ok {
			s.recCursor.Evmerge2(state.New(0), ev)
		}
	}

	tr := s.recTarget
	patch := s.rec
	startAbs := s.recStartAbs
	undo.Record(s.Undo, tr.Track, "record", tr.Name, func() {
		mergeRecordedPatch(tr.Track, patch, startAbs)
	})

	s.rec = nil
	s.recCursor = nil
	s.recTarget = nil
	tr.cursor = nil
}

// framesConflict reports whether a and b identify the same frame (the
// same note, the same controller number, the same bender/aftertouch
// channel) without requiring their current values to match -- used to
// decide whether a patch event should replace a target event sharing
// its tic, rather than coexist alongside it.
func framesConflict(a, b event.Event) bool {
	if a.Cmd != b.Cmd {
		return false
	}
	if a.Cmd.HasDev() && a.Dev != b.Dev {
		return false
	}
	if a.Cmd.HasCh() && a.Ch != b.Ch {
		return false
	}
	switch a.Cmd {
	case event.NoteOn, event.NoteOff, event.KeyAt:
		return a.NoteNum() == b.NoteNum()
	case event.XCtl, event.NRPN, event.RPN:
		return a.V0 == b.V0
	default:
		return true
	}
}

// mergeRecordedPatch splices patch onto target: every target event
// falling at the same absolute tic as a patch event for the same
// frame is dropped in favor of the patch's, then everything is
// resorted by absolute position and rebuilt as a delta-time track.
// patch's own deltas are relative to startAbs, the tic recording
// began at.
func mergeRecordedPatch(target, patch *track.Track, startAbs uint) {
	type posEv struct {
		pos uint
		ev  event.Event
	}

	var kept []posEv
	abs := uint(0)
	targetEvs := target.Events()
	pos := make([]uint, len(targetEvs))
	for i, se := range targetEvs {
		abs += se.Delta
		pos[i] = abs
	}

	patchEvents := map[uint][]event.Event{}
	pabs := startAbs
	for _, se := range patch.Events() {
		pabs += se.Delta
		patchEvents[pabs] = append(patchEvents[pabs], se.Ev)
	}

	for i, se := range targetEvs {
		overridden := false
		for _, pev := range patchEvents[pos[i]] {
			if framesConflict(pev, se.Ev) {
				overridden = true
				break
			}
		}
		if !overridden {
			kept = append(kept, posEv{pos[i], se.Ev})
		}
	}
	for p, evs := range patchEvents {
		for _, ev := range evs {
			kept = append(kept, posEv{p, ev})
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].pos < kept[j].pos })

	target.Clear()
	var built []track.SeqEv
	last := uint(0)
	for _, pe := range kept {
		built = append(built, track.SeqEv{Delta: pe.pos - last, Ev: pe.ev})
		last = pe.pos
	}
	target.Insert(0, built)
}
