package song

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zurustar/midicore/pkg/device"
	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/mux"
	"github.com/zurustar/midicore/pkg/timeq"
)

func newTapSong() (*Song, *mux.Mux, *timeq.Queue) {
	q := timeq.New()
	m := mux.New(device.NewTable(q), q)
	s := New(q, m)
	m.OnStart = func() { _ = s.StartReq(Play) }
	m.OnTick = s.Tick
	return s, m, q
}

func TestSetTempoClamps(t *testing.T) {
	s, _ := newTestSong()
	s.SetTempo(1)
	assert.Equal(t, event.TempoMin(), s.TempoUsec24)
	s.SetTempo(0xffffffff)
	assert.Equal(t, event.TempoMax(), s.TempoUsec24)
	s.SetTempo(500000)
	assert.Equal(t, uint32(500000), s.TempoUsec24)
}

func TestTapStartTriggersPlayback(t *testing.T) {
	s, m, _ := newTapSong()
	s.SetTap(TapStart, event.Any())

	m.StartRequest()
	require.Equal(t, mux.Start, m.Phase())
	require.Equal(t, Off, s.Mode)

	s.HandleInput(0, testNon)
	assert.Equal(t, Play, s.Mode)
	assert.Equal(t, mux.Next, m.Phase())
	assert.Equal(t, uint(1), s.AbsTic)
}

func TestTapIgnoresNonOpeningEvents(t *testing.T) {
	s, m, _ := newTapSong()
	s.SetTap(TapStart, event.Any())

	m.StartRequest()
	s.HandleInput(0, testNoff)
	assert.Equal(t, Off, s.Mode)
	assert.Equal(t, mux.Start, m.Phase())
}

func TestTapTempoMeasuresBeatSpacing(t *testing.T) {
	s, m, q := newTapSong()
	s.SetTap(TapTempo, event.Any())

	m.StartRequest()
	s.HandleInput(0, testNon)
	require.Equal(t, Off, s.Mode)

	// One beat of 120bpm: 24 tics of 500000 usec24 each.
	q.Advance(24 * 500000)
	s.HandleInput(0, testNon)

	assert.Equal(t, uint32(500000), s.TempoUsec24)
	assert.Equal(t, Play, s.Mode)
	assert.Equal(t, mux.Next, m.Phase())
}

func TestTapTempoOutOfRangeAborts(t *testing.T) {
	s, m, q := newTapSong()
	s.SetTap(TapTempo, event.Any())
	before := s.TempoUsec24

	m.StartRequest()
	s.HandleInput(0, testNon)
	q.Advance(100 * 24000000) // far slower than 20bpm
	s.HandleInput(0, testNon)

	assert.Equal(t, Off, s.Mode)
	assert.Equal(t, before, s.TempoUsec24)
	assert.Equal(t, mux.Start, m.Phase())
}
