package song

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/track"
)

func TestTicAtMeasureWithDefaults(t *testing.T) {
	s, _ := newTestSong()
	assert.Equal(t, uint(0), s.TicAtMeasure(0, 0, 0))
	assert.Equal(t, uint(4*24), s.TicAtMeasure(1, 0, 0))
	assert.Equal(t, uint(4*4*24), s.TicAtMeasure(4, 0, 0))
	assert.Equal(t, uint(24+3), s.TicAtMeasure(0, 1, 3))
}

func TestTicAtMeasureFollowsTimeSig(t *testing.T) {
	s, _ := newTestSong()
	s.Meta.Insert(0, []track.SeqEv{
		{Delta: 0, Ev: event.Event{Cmd: event.TimeSig, V0: 3, V1: 24}},
	})
	assert.Equal(t, uint(2*3*24), s.TicAtMeasure(2, 0, 0))
}

func TestTicAtMTCWalksTempoMap(t *testing.T) {
	s, _ := newTestSong()
	s.Meta.Insert(0, []track.SeqEv{
		{Delta: 0, Ev: event.NewTempo(500000)},
		{Delta: 48, Ev: event.NewTempo(250000)},
	})

	// 48 tics at 500000 plus 24 tics at 250000 is 30000000 usec24,
	// i.e. 1.25s, i.e. 3000 mtc units.
	assert.Equal(t, uint(72), s.TicAtMTC(3000))
	assert.Equal(t, uint(0), s.TicAtMTC(0))
}

func TestLocSPPCountsSixteenths(t *testing.T) {
	s, _ := newTestSong()
	s.LocSPP(4)
	assert.Equal(t, uint(24), s.AbsTic)
	s.LocSPP(16)
	assert.Equal(t, uint(96), s.AbsTic)
}

// A relocation past a held note must close the note and re-establish
// the controller value that was set before the jump target.
func TestRelocateCancelsNotesAndRestoresControllers(t *testing.T) {
	s, out := newTestSong()
	tr := s.AddTrack("t1")
	xctl := event.Event{Cmd: event.XCtl, V0: 64, V1: 127}
	tr.Track.Insert(0, []track.SeqEv{
		{Delta: 0, Ev: xctl},
		{Delta: 10, Ev: testNon},
	})

	require.NoError(t, s.StartReq(Play))
	for i := 0; i < 20; i++ {
		s.Tick()
	}
	require.Len(t, *out, 2)
	*out = nil

	target := s.TicAtMeasure(4, 0, 0)
	s.Loc(target)

	require.Len(t, *out, 2)
	assert.Equal(t, event.NoteOff, (*out)[0].Cmd)
	assert.Equal(t, uint16(0x3c), (*out)[0].NoteNum())
	assert.Equal(t, xctl, (*out)[1])

	assert.Equal(t, target, s.AbsTic)
	assert.Equal(t, uint(4), s.Measure)
	assert.Equal(t, uint(0), s.Beat)
	assert.Equal(t, uint(0), s.Tic)
}

// Crossing the loop end must terminate whatever the pass left hanging
// before the cursor snaps back, and the next pass replays from the
// loop start as if it were the first.
func TestLoopWrapTerminatesHeldNote(t *testing.T) {
	s, out := newTestSong()
	tr := s.AddTrack("t1")
	tr.Track.Insert(0, []track.SeqEv{
		{Delta: 0, Ev: testNon},
		{Delta: 200, Ev: testNoff},
	})
	s.Loop = true
	s.LoopStart = 0
	s.LoopEnd = 96

	require.NoError(t, s.StartReq(Play))
	for i := 0; i < 96; i++ {
		s.Tick()
	}

	require.Len(t, *out, 2)
	assert.Equal(t, event.NoteOn, (*out)[0].Cmd)
	assert.Equal(t, event.NoteOff, (*out)[1].Cmd)
	assert.Equal(t, uint16(0x3c), (*out)[1].NoteNum())
	assert.Equal(t, uint(0), s.AbsTic)

	s.Tick()
	require.Len(t, *out, 3)
	assert.Equal(t, event.NoteOn, (*out)[2].Cmd)
	assert.Equal(t, uint(1), s.AbsTic)
}

// A note already sounding at the loop start (so present in the
// loop-start snapshot) that gets turned off during the loop must stay
// off at the wrap: notes are only ever cancelled, never restored.
func TestLoopWrapNeverRestoresNoteHeldAcrossLoopStart(t *testing.T) {
	s, out := newTestSong()
	tr := s.AddTrack("t1")
	tr.Track.Insert(0, []track.SeqEv{
		{Delta: 10, Ev: testNon},
		{Delta: 40, Ev: testNoff},
	})
	s.Loop = true
	s.LoopStart = 24
	s.LoopEnd = 96

	require.NoError(t, s.StartReq(Play))
	require.Equal(t, uint(24), s.AbsTic)

	for i := 24; i < 96; i++ {
		s.Tick()
	}
	require.Equal(t, uint(24), s.AbsTic)

	// Nothing sounds at all: the note-on was seeked over silently, so
	// the mixer swallows the pass's frameless note-off, and the wrap
	// must not re-sound the note the snapshot still holds open.
	for _, ev := range *out {
		assert.NotEqual(t, event.NoteOn, ev.Cmd)
	}
	assert.Empty(t, *out)
}

func TestLoopWrapReappliesMetaState(t *testing.T) {
	s, _ := newTestSong()
	s.AddTrack("t1")
	s.Meta.Insert(0, []track.SeqEv{
		{Delta: 0, Ev: event.NewTempo(300000)},
		{Delta: 48, Ev: event.NewTempo(600000)},
	})
	s.Loop = true
	s.LoopStart = 0
	s.LoopEnd = 96

	require.NoError(t, s.StartReq(Play))
	for i := 0; i < 60; i++ {
		s.Tick()
	}
	require.Equal(t, uint32(600000), s.TempoUsec24)

	for i := 60; i < 96; i++ {
		s.Tick()
	}
	require.Equal(t, uint(0), s.AbsTic)

	// The tempo event at the loop start sits just past the snapshot
	// point, so the first tick of the new pass replays it.
	s.Tick()
	assert.Equal(t, uint32(300000), s.TempoUsec24)
}
