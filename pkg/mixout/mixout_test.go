package mixout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/timeq"
)

func newStarted() (*Mixer, *timeq.Queue) {
	q := timeq.New()
	m := New(q)
	m.Start()
	return m, q
}

func ctl(val uint16) event.Event {
	return event.Event{Cmd: event.XCtl, Ch: 0, V0: 7, V1: val}
}

func TestFirstEventOnAnEmptySlotPasses(t *testing.T) {
	m, _ := newStarted()
	var got []event.Event
	m.OnEvent = func(ev event.Event) { got = append(got, ev) }

	m.Put(ctl(10), PrioTrack)
	require.Len(t, got, 1)
	assert.Equal(t, uint16(10), got[0].V1)
}

func TestHigherPrioritySourceWinsAndLowerIsDropped(t *testing.T) {
	m, _ := newStarted()
	var got []event.Event
	m.OnEvent = func(ev event.Event) { got = append(got, ev) }

	m.Put(ctl(10), PrioTrack)
	got = nil
	m.Put(ctl(20), PrioInput)
	require.Len(t, got, 1)
	assert.Equal(t, uint16(20), got[0].V1)

	got = nil
	m.Put(ctl(99), PrioTrack)
	assert.Empty(t, got, "a lower-priority source must not override the higher-priority occupant")
}

func TestHigherPrioritySourceTakingOverCancelsOccupantFirst(t *testing.T) {
	m, _ := newStarted()
	m.Put(event.Event{Cmd: event.NoteOn, Ch: 0, V0: 60, V1: 100}, PrioTrack)

	var got []event.Event
	m.OnEvent = func(ev event.Event) { got = append(got, ev) }
	m.Put(event.Event{Cmd: event.NoteOn, Ch: 0, V0: 60, V1: 80}, PrioInput)

	require.Len(t, got, 2)
	assert.Equal(t, event.NoteOff, got[0].Cmd, "the lower-priority occupant must be cancelled before the new source plays")
	assert.Equal(t, event.NoteOn, got[1].Cmd)
	assert.Equal(t, uint16(80), got[1].V1)
}

func TestSameSourceRetriggerDoesNotCountAsConflict(t *testing.T) {
	m, _ := newStarted()
	count := 0
	m.OnEvent = func(ev event.Event) { count++ }

	m.Put(ctl(10), PrioTrack)
	m.Put(ctl(20), PrioTrack)
	assert.Equal(t, 2, count)
}

func TestIdlePurgeFreesContinuousControllerAfterMaxTics(t *testing.T) {
	m, q := newStarted()
	m.Put(ctl(10), PrioInput)

	for i := 0; i < MaxTics+1; i++ {
		q.Advance(Timo)
	}

	var got []event.Event
	m.OnEvent = func(ev event.Event) { got = append(got, ev) }
	m.Put(ctl(50), PrioTrack)
	require.Len(t, got, 1, "after the idle purge, the priority slot should be free for a lower-priority source")
	assert.Equal(t, uint16(50), got[0].V1)
}
