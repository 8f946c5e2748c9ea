package song

import (
	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/mixout"
	"github.com/zurustar/midicore/pkg/mtc"
	"github.com/zurustar/midicore/pkg/state"
	"github.com/zurustar/midicore/pkg/track"
)

// seekGuard bounds seekAll/TicAtMeasure's walk so a pathological
// target can never spin forever; song positions in practice are a few
// tens of thousands of tics at most.
const seekGuard = 1 << 24

// seekAll silently replays the meta-track and every track from the
// start up to target, leaving every cursor positioned exactly there
// with no event emitted to the mixer along the way -- the shared
// machinery behind both entering a loop and an explicit relocation.
func (s *Song) seekAll(target uint) {
	tpb, bpm := DefaultTicsPerBeat, DefaultBeatsPerMeasure
	tempo := defaultTempoFallback
	measure, beat, tic := uint(0), uint(0), uint(0)

	mp := track.NewSeqPtr(s.Meta, state.New(8))
	for i := uint(0); i < target && i < seekGuard; i++ {
		mp.Advance(1, func(ev event.Event) {
			switch ev.Cmd {
			case event.Tempo:
				tempo = ev.TempoUsec24()
			case event.TimeSig:
				bpm, tpb = uint(ev.TimeSigBeats()), uint(ev.TimeSigTics())
			}
		})
		tic++
		if tic >= tpb {
			tic = 0
			beat++
			if beat >= bpm {
				beat = 0
				measure++
			}
		}
	}
	s.metaCursor = mp
	s.TempoUsec24, s.TicsPerBeat, s.BeatsPerMeasure = tempo, tpb, bpm
	if s.Mux != nil {
		s.Mux.SetTicLength(tempo)
		s.Mux.SetTicsPerBeat(uint32(tpb))
	}
	s.AbsTic, s.Measure, s.Beat, s.Tic = target, measure, beat, tic

	for _, tr := range s.Tracks {
		p := track.NewSeqPtr(tr.Track, state.New(32))
		p.Advance(target, func(event.Event) {})
		tr.cursor = p
	}
}

// TicAtMeasure resolves a (measure, beat, tic) position to an
// absolute tic count by walking the meta-track forward from the
// start: every TIMESIG on the way changes how many tics make up a
// beat and a measure from that point on.
func (s *Song) TicAtMeasure(measure, beat, tic uint) uint {
	tpb, bpm := DefaultTicsPerBeat, DefaultBeatsPerMeasure
	mp := track.NewSeqPtr(s.Meta, state.New(8))
	m, b, t, abs := uint(0), uint(0), uint(0), uint(0)
	for (m != measure || b != beat || t != tic) && abs < seekGuard {
		mp.Advance(1, func(ev event.Event) {
			if ev.Cmd == event.TimeSig {
				bpm, tpb = uint(ev.TimeSigBeats()), uint(ev.TimeSigTics())
			}
		})
		t++
		abs++
		if t >= tpb {
			t = 0
			b++
			if b >= bpm {
				b = 0
				m++
			}
		}
	}
	return abs
}

// TicAtMTC resolves an absolute MTC position (in mtc.Sec units) to a
// tic count by walking the meta-track and charging each tic at the
// tempo in force when it elapses, so tempo changes between the start
// and the target all weigh in.
func (s *Song) TicAtMTC(pos uint32) uint {
	target := uint64(pos) * (24000000 / mtc.Sec)
	tempo := defaultTempoFallback
	mp := track.NewSeqPtr(s.Meta, state.New(8))
	var elapsed uint64
	tic := uint(0)
	for elapsed < target && tic < seekGuard {
		mp.Advance(1, func(ev event.Event) {
			if ev.Cmd == event.Tempo {
				tempo = ev.TempoUsec24()
			}
		})
		elapsed += uint64(tempo)
		tic++
	}
	return tic
}

// LocMTC relocates to an absolute MTC position, the form an MMC LOCATE
// round-trip (pkg/mux's OnRelocate) delivers.
func (s *Song) LocMTC(pos uint32) { s.Loc(s.TicAtMTC(pos)) }

// LocSPP relocates to a song position pointer value, counted in
// sixteenth notes.
func (s *Song) LocSPP(spp uint) { s.Loc(spp * s.TicsPerUnit / 16) }

// Loc relocates the song to absolute tic target: every track's
// in-flight frames are cancelled, cursors are silently reseeked, and
// every surviving non-note frame is restored through the mixer so a
// relocation into the middle of a controller sweep or bend doesn't
// leave the wrong value sounding. Notes are deliberately not replayed
// here -- a relocation should never resume a note landing mid-hold.
func (s *Song) Loc(target uint) {
	for _, tr := range s.Tracks {
		if tr.cursor == nil {
			continue
		}
		for _, st := range append([]*state.State(nil), tr.cursor.States.All()...) {
			if ev, ok := st.Cancel(); ok {
				s.Mixer.Put(ev, mixout.PrioTrack)
			}
		}
	}

	s.seekAll(target)

	for _, tr := range s.Tracks {
		for _, st := range tr.cursor.States.All() {
			if st.Ev.Cmd.IsNote() || st.Flags&state.Bogus != 0 {
				continue
			}
			if ev, ok := st.Restore(); ok {
				s.Mixer.Put(ev, mixout.PrioTrack)
			}
		}
	}
}

// armLoop is called whenever the transport raises past PLAY with Loop
// enabled: it seeks every cursor to loop_start and snapshots the
// resulting StateLists, the baseline doLoopWrap diffs against on
// every pass.
func (s *Song) armLoop() {
	if !s.Loop {
		return
	}
	s.seekAll(s.LoopStart)
	s.loopStartMeasure, s.loopStartBeat, s.loopStartTic = s.Measure, s.Beat, s.Tic

	for _, tr := range s.Tracks {
		cp := *tr.cursor
		cp.States = tr.cursor.States.Dup()
		tr.loopSaved = &cp
	}
	cpm := *s.metaCursor
	cpm.States = s.metaCursor.States.Dup()
	s.metaLoopSaved = &cpm
}

// doLoopWrap runs once per tick that crosses loop_end: for every
// track (and the meta-track), it restores whatever the loop-start
// snapshot had that the live state no longer matches, cancels
// whatever the live state holds that the snapshot never had, then
// resets the cursor back to that snapshot so the next pass starts
// identical to the first.
func (s *Song) doLoopWrap() {
	for _, tr := range s.Tracks {
		wrapLoop(tr.cursor, tr.loopSaved, func(ev event.Event) { s.Mixer.Put(ev, mixout.PrioTrack) })
		cp := *tr.loopSaved
		cp.States = tr.loopSaved.States.Dup()
		tr.cursor = &cp
	}

	wrapLoop(s.metaCursor, s.metaLoopSaved, s.applyMetaEvent)
	cpm := *s.metaLoopSaved
	cpm.States = s.metaLoopSaved.States.Dup()
	s.metaCursor = &cpm
	if st := cpm.States.Find(func(st *state.State) bool { return st.Ev.Cmd == event.Tempo }); st != nil {
		s.applyMetaEvent(st.Ev)
	}
	if st := cpm.States.Find(func(st *state.State) bool { return st.Ev.Cmd == event.TimeSig }); st != nil {
		s.applyMetaEvent(st.Ev)
	}

	s.AbsTic = s.LoopStart
	s.Measure, s.Beat, s.Tic = s.loopStartMeasure, s.loopStartBeat, s.loopStartTic
}

// wrapLoop restores/cancels live against saved and calls emit for
// every event produced, leaving both cursors untouched -- the caller
// replaces live with a fresh copy of saved afterward.
func wrapLoop(live, saved *track.SeqPtr, emit func(event.Event)) {
	for _, sst := range saved.States.All() {
		lst := live.States.Lookup(sst.Ev)
		if lst != nil && lst.Eq(sst.Ev) {
			continue
		}
		if ev, ok := restoreFrame(sst); ok {
			emit(ev)
		}
	}
	for _, lst := range live.States.All() {
		if saved.States.Lookup(lst.Ev) != nil {
			continue
		}
		if ev, ok := lst.Cancel(); ok {
			emit(ev)
		}
	}
}

// restoreFrame returns the event that re-establishes st's value and
// whether one is needed at all: never for a note (notes are only ever
// cancelled, and a note still open at the loop start is re-sounded by
// the cursor replaying its NOTE ON from the reset position, not by
// us), everything else goes through state.Restore.
func restoreFrame(st *state.State) (event.Event, bool) {
	if st.Ev.Cmd.IsNote() {
		return event.Event{}, false
	}
	return st.Restore()
}
