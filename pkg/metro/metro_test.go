package metro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/timeq"
)

func TestDefaultMaskOnlyClicksInRecMode(t *testing.T) {
	q := timeq.New()
	m := New(q)
	var got []event.Event
	m.OnEvent = func(ev event.Event) { got = append(got, ev) }

	m.SetMode(Play)
	m.Tic(0, 0)
	assert.Empty(t, got, "default mask only enables Rec")

	m.SetMode(Rec)
	m.Tic(0, 0)
	require.Len(t, got, 1)
	assert.Equal(t, event.NoteOn, got[0].Cmd)
}

func TestBeatZeroPlaysHiOtherBeatsPlayLo(t *testing.T) {
	q := timeq.New()
	m := New(q)
	m.SetMode(Rec)
	var got []event.Event
	m.OnEvent = func(ev event.Event) { got = append(got, ev) }

	m.Tic(0, 0)
	require.Len(t, got, 1)
	assert.Equal(t, m.Hi.V0, got[0].V0)

	q.Advance(ClickLen)
	got = nil
	m.Tic(1, 0)
	require.Len(t, got, 1)
	assert.Equal(t, m.Lo.V0, got[0].V0)
}

func TestNonZeroTicWithinBeatNeverClicks(t *testing.T) {
	q := timeq.New()
	m := New(q)
	m.SetMode(Rec)
	called := false
	m.OnEvent = func(ev event.Event) { called = true }

	m.Tic(0, 1)
	assert.False(t, called)
}

func TestClickLenTimeoutFiresNoteOff(t *testing.T) {
	q := timeq.New()
	m := New(q)
	m.SetMode(Rec)
	var got []event.Event
	m.OnEvent = func(ev event.Event) { got = append(got, ev) }

	m.Tic(0, 0)
	got = nil
	q.Advance(ClickLen)
	require.Len(t, got, 1)
	assert.Equal(t, event.NoteOff, got[0].Cmd)
}

func TestNestedClickCutsPreviousClickShort(t *testing.T) {
	q := timeq.New()
	m := New(q)
	m.SetMode(Rec)
	var got []event.Event
	m.OnEvent = func(ev event.Event) { got = append(got, ev) }

	m.Tic(0, 0)
	got = nil
	m.Tic(1, 0) // before the first click's timeout fires
	require.Len(t, got, 2)
	assert.Equal(t, event.NoteOff, got[0].Cmd, "the first click must be cut short before the second starts")
	assert.Equal(t, event.NoteOn, got[1].Cmd)
}

func TestSetModeOutsideMaskShutsSoundingClick(t *testing.T) {
	q := timeq.New()
	m := New(q)
	m.SetMode(Rec)
	m.Tic(0, 0)

	var got []event.Event
	m.OnEvent = func(ev event.Event) { got = append(got, ev) }
	m.SetMode(Idle)
	require.Len(t, got, 1)
	assert.Equal(t, event.NoteOff, got[0].Cmd)
}

func TestStr2Mask(t *testing.T) {
	on, ok := Str2Mask("on")
	require.True(t, ok)
	assert.Equal(t, uint(1<<Play|1<<Rec), on)

	rec, ok := Str2Mask("rec")
	require.True(t, ok)
	assert.Equal(t, uint(1<<Rec), rec)

	off, ok := Str2Mask("off")
	require.True(t, ok)
	assert.Equal(t, uint(0), off)

	_, ok = Str2Mask("bogus")
	assert.False(t, ok)
}
