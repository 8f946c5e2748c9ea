package undo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/track"
)

func TestRecordThenPopUndoesASingleEdit(t *testing.T) {
	tr := track.New()
	tr.Append(event.Event{Cmd: event.NoteOn, V0: 60, V1: 100})

	s := NewStack()
	Record(s, tr, "note", "60", func() {
		tr.Append(event.Event{Cmd: event.NoteOff, V0: 60})
	})
	require.Equal(t, 2, tr.NumEv())

	label, name, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, "note", label)
	assert.Equal(t, "60", name)
	assert.Equal(t, 1, tr.NumEv())
}

func TestPopOnEmptyStackReportsNotOk(t *testing.T) {
	s := NewStack()
	_, _, ok := s.Pop()
	assert.False(t, ok)
}

func TestPopGroupsAnonymousEntriesUnderThePrecedingLabel(t *testing.T) {
	tr := track.New()
	s := NewStack()

	Record(s, tr, "chord", "c-major", func() {
		tr.Append(event.Event{Cmd: event.NoteOn, V0: 60, V1: 100})
	})
	Record(s, tr, "", "", func() {
		tr.Append(event.Event{Cmd: event.NoteOn, V0: 64, V1: 100})
	})
	require.Equal(t, 2, tr.NumEv())

	label, name, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, "chord", label)
	assert.Equal(t, "c-major", name)
	assert.Equal(t, 0, tr.NumEv(), "both the labelled and the anonymous edit above it are undone")
}

func TestPushTrimsOldestEntriesPastMaxSize(t *testing.T) {
	s := NewStack()
	s.Push(NewEntry("a", "", MaxSize, func() {}))
	s.Push(NewEntry("b", "", MaxSize, func() {}))
	require.Equal(t, 1, s.Len(), "pushing past the cap drops everything but the newest entry")

	label, _, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", label)

	_, _, ok = s.Pop()
	assert.False(t, ok)
}

func TestPushAlwaysKeepsTheEntryJustPushedEvenIfOversize(t *testing.T) {
	s := NewStack()
	s.Push(NewEntry("huge", "", MaxSize*2, func() {}))
	assert.Equal(t, 1, s.Len())
}

func TestRenameRestoresThePreviousName(t *testing.T) {
	name := "after"
	e := Rename("rename", "after", "before", func(n string) { name = n })

	label, _, ok := func() (string, string, bool) {
		s := NewStack()
		s.Push(e)
		return s.Pop()
	}()
	require.True(t, ok)
	assert.Equal(t, "rename", label)
	assert.Equal(t, "before", name)
}

func TestDeleteRestoresByCallingTheGivenFunc(t *testing.T) {
	restored := false
	e := Delete("tdel", "drums", 128, func() { restored = true })

	s := NewStack()
	s.Push(e)
	_, _, ok := s.Pop()
	require.True(t, ok)
	assert.True(t, restored)
}

func TestCreatedRemovesByCallingTheGivenFunc(t *testing.T) {
	removed := false
	e := Created("tnew", "drums", func() { removed = true })

	s := NewStack()
	s.Push(e)
	_, _, ok := s.Pop()
	require.True(t, ok)
	assert.True(t, removed)
}
