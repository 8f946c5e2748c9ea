package filt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zurustar/midicore/pkg/event"
)

func noteSpec(chMin, chMax uint8) event.EventSpec {
	es := event.Any()
	es.Cmd = event.SpecNote
	es.ChMin, es.ChMax = chMin, chMax
	es.V0Min, es.V0Max = 0, event.MaxCoarse
	es.V1Min, es.V1Max = 0, event.MaxCoarse
	return es
}

func TestDoWithNoRulesProducesNoOutput(t *testing.T) {
	f := New()
	ev := event.Event{Cmd: event.NoteOn, Ch: 0, V0: 60, V1: 100}
	out := f.Do(ev)
	assert.Empty(t, out)
}

func TestMapRewritesChannel(t *testing.T) {
	f := New()
	from := noteSpec(0, 0)
	to := noteSpec(1, 1)
	require.NoError(t, f.MapNew(from, to))

	ev := event.Event{Cmd: event.NoteOn, Ch: 0, V0: 60, V1: 100}
	out := f.Do(ev)
	require.Len(t, out, 1)
	assert.Equal(t, uint8(1), out[0].Ch)
	assert.Equal(t, uint16(60), out[0].V0)
}

func TestMapToEmptyDropsEvent(t *testing.T) {
	f := New()
	from := noteSpec(0, 0)
	require.NoError(t, f.MapNew(from, event.EventSpec{Cmd: event.SpecEmpty}))

	out := f.Do(event.Event{Cmd: event.NoteOn, Ch: 0, V0: 60, V1: 100})
	assert.Empty(t, out)
}

func TestMapNewRejectsMismatchedCardinality(t *testing.T) {
	f := New()
	from := noteSpec(0, 0)
	to := event.Any()
	to.Cmd = event.Ctl
	err := f.MapNew(from, to)
	assert.Error(t, err)
}

func TestUnmatchedEventProducesNoOutput(t *testing.T) {
	f := New()
	from := noteSpec(2, 2)
	to := noteSpec(3, 3)
	require.NoError(t, f.MapNew(from, to))

	out := f.Do(event.Event{Cmd: event.NoteOn, Ch: 0, V0: 60, V1: 100})
	assert.Empty(t, out)
}

func TestTranspShiftsNoteNumberModularly(t *testing.T) {
	f := New()
	require.NoError(t, f.Transp(event.Any(), -2))
	require.NoError(t, f.MapNew(event.Any(), event.Any()))

	out := f.Do(event.Event{Cmd: event.NoteOn, Ch: 0, V0: 1, V1: 100})
	require.Len(t, out, 1)
	assert.Equal(t, uint16(0x7f), out[0].V0)
}

func TestTranspRejectsPartialNoteRange(t *testing.T) {
	f := New()
	partial := noteSpec(0, 0)
	partial.V0Min, partial.V0Max = 0, 10
	err := f.Transp(partial, 1)
	assert.ErrorIs(t, err, ErrPartialNoteRange)
}

func TestVcurveNeutralWeightLeavesVelocityUnchanged(t *testing.T) {
	f := New()
	// weight=0 stores nwgt=(64-0)&0x7f=64, vcurve's own neutral point.
	require.NoError(t, f.Vcurve(event.Any(), 0))
	require.NoError(t, f.MapNew(event.Any(), event.Any()))

	for _, vel := range []uint16{1, 63, 64, 100, 127} {
		out := f.Do(event.Event{Cmd: event.NoteOn, Ch: 0, V0: 60, V1: vel})
		require.Len(t, out, 1)
		assert.Equal(t, vel, out[0].V1)
	}
}

func TestVcurveThenTranspOrder(t *testing.T) {
	f := New()
	require.NoError(t, f.Vcurve(event.Any(), 1))
	require.NoError(t, f.Transp(event.Any(), 1))
	require.NoError(t, f.MapNew(event.Any(), event.Any()))

	out := f.Do(event.Event{Cmd: event.NoteOn, Ch: 0, V0: 60, V1: 64})
	require.Len(t, out, 1)
	assert.NotEqual(t, uint16(64), out[0].V1)
	assert.Equal(t, uint16(61), out[0].V0)
}

func TestVcurveAndTranspSkipNonNoteEvents(t *testing.T) {
	f := New()
	require.NoError(t, f.Vcurve(event.Any(), 1))
	require.NoError(t, f.Transp(event.Any(), 5))
	require.NoError(t, f.MapNew(event.Any(), event.Any()))

	out := f.Do(event.Event{Cmd: event.XCtl, Ch: 0, V0: 7, V1: 50})
	require.Len(t, out, 1)
	assert.Equal(t, uint16(50), out[0].V1)
}

func TestMksrcNarrowerRuleWinsOverWiderOne(t *testing.T) {
	f := New()
	wide := noteSpec(0, 15)
	narrow := noteSpec(3, 3)
	require.NoError(t, f.MapNew(wide, noteSpec(0, 15)))
	require.NoError(t, f.MapNew(narrow, noteSpec(10, 10)))

	out := f.Do(event.Event{Cmd: event.NoteOn, Ch: 3, V0: 60, V1: 100})
	require.Len(t, out, 1)
	assert.Equal(t, uint8(10), out[0].Ch)
}

func TestMksrcOverlapWithoutContainmentEvictsEarlierRule(t *testing.T) {
	f := New()
	a := noteSpec(0, 5)
	b := noteSpec(3, 8)
	require.NoError(t, f.MapNew(a, noteSpec(0, 5)))
	require.NoError(t, f.MapNew(b, noteSpec(3, 8)))

	out := f.Do(event.Event{Cmd: event.NoteOn, Ch: 1, V0: 60, V1: 100})
	assert.Empty(t, out)
}

func TestMapDelPrunesEmptySource(t *testing.T) {
	f := New()
	from := noteSpec(0, 0)
	to := noteSpec(1, 1)
	require.NoError(t, f.MapNew(from, to))
	f.MapDel(from, to)

	out := f.Do(event.Event{Cmd: event.NoteOn, Ch: 0, V0: 60, V1: 100})
	assert.Empty(t, out)
}

func TestDetachClearsMapRules(t *testing.T) {
	f := New()
	require.NoError(t, f.MapNew(noteSpec(0, 0), noteSpec(1, 1)))
	rules := f.Detach()
	require.Len(t, rules, 1)
	out := f.Do(event.Event{Cmd: event.NoteOn, Ch: 0, V0: 60, V1: 100})
	assert.Empty(t, out)
}

func TestChgInRemapsSourceContainedInFrom(t *testing.T) {
	f := New()
	require.NoError(t, f.MapNew(noteSpec(2, 2), noteSpec(5, 5)))

	f.ChgIn(noteSpec(0, 3), noteSpec(10, 13), false)

	out := f.Do(event.Event{Cmd: event.NoteOn, Ch: 12, V0: 60, V1: 100})
	require.Len(t, out, 1)
	assert.Equal(t, uint8(5), out[0].Ch)
}

func TestVcurveBoundaries(t *testing.T) {
	assert.Equal(t, 0, vcurve(63, 0))
	assert.Equal(t, 127, vcurve(0, 1))
	assert.Equal(t, 1, vcurve(127, 127))
	for x := 1; x <= 127; x++ {
		assert.Equal(t, x, vcurve(64, x), "vcurve(64, %d) should be the identity curve", x)
	}
}
