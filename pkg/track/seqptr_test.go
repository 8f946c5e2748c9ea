package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/state"
)

func TestSeqPtrAdvanceEmitsDueEvents(t *testing.T) {
	tr := New()
	tr.Append(event.Event{Cmd: event.NoteOn, V0: 60, V1: 100})
	tr.events[0].Delta = 4
	tr.Append(event.Event{Cmd: event.NoteOff, V0: 60})
	tr.events[1].Delta = 2

	p := NewSeqPtr(tr, state.New(4))
	var got []event.Event
	p.Advance(5, func(ev event.Event) { got = append(got, ev) })
	require.Len(t, got, 1)
	assert.Equal(t, event.NoteOn, got[0].Cmd)

	p.Advance(2, func(ev event.Event) { got = append(got, ev) })
	require.Len(t, got, 2)
	assert.Equal(t, event.NoteOff, got[1].Cmd)
	assert.True(t, p.AtEnd())
}

func TestSeqPtrAdvancePartialDoesNotEmit(t *testing.T) {
	tr := New()
	tr.Append(event.Event{Cmd: event.NoteOn, V0: 60, V1: 100})
	tr.events[0].Delta = 10

	p := NewSeqPtr(tr, state.New(4))
	var got []event.Event
	p.Advance(5, func(ev event.Event) { got = append(got, ev) })
	assert.Empty(t, got)
	assert.Equal(t, uint(5), p.AbsoluteTic)
}

func TestEvmerge1SkipsUnchangedFrame(t *testing.T) {
	tr := New()
	states := state.New(4)
	p := NewSeqPtr(tr, states)

	st := &state.State{Ev: event.Event{Cmd: event.NoteOn, V0: 60, V1: 100}}
	p.States.Update(st.Ev)
	got := p.Evmerge1(st)
	assert.Nil(t, got)
	assert.Equal(t, 0, tr.NumEv())
}

func TestEvmerge1RecordsChangedFrame(t *testing.T) {
	tr := New()
	p := NewSeqPtr(tr, state.New(4))

	st := &state.State{Ev: event.Event{Cmd: event.XCtl, V0: 7, V1: 50}}
	got := p.Evmerge1(st)
	require.NotNil(t, got)
	assert.Equal(t, 1, tr.NumEv())
}

func TestEvmerge2InsertsDifferingEvent(t *testing.T) {
	tr := New()
	baseline := state.New(4)
	p := NewSeqPtr(tr, state.New(4))

	changed := p.Evmerge2(baseline, event.Event{Cmd: event.NoteOff, V0: 60, V1: 64})
	assert.True(t, changed)
	assert.Equal(t, 1, tr.NumEv())
}
