// Package undo is a size-capped history of edits. A caller records an
// edit by bracketing it with a saved snapshot and the edit itself;
// undo compacts that into a diff, pushes it, and later a pop walks
// the stack backwards restoring prior states one user-visible step
// at a time.
package undo

import "github.com/zurustar/midicore/pkg/track"

// MaxSize caps the stack's total tracked cost; pushing past it drops
// history from the old end.
const MaxSize = 1 << 20

// seqEvCost approximates the retained cost of one track.SeqEv, for
// Stack size accounting (stands in for sizeof(struct seqev_data)).
const seqEvCost = 24

// Entry is one undoable change. Label and Name identify it for
// logging when a pop stops at it; Label
// empty marks an anonymous step folded into the nearest labelled entry
// pushed before it -- popping that entry restores it too, silently.
type Entry struct {
	Label string
	Name  string
	size  int
	undo  func()
}

// NewEntry builds an Entry that calls fn to restore the state it
// captured, at an accounting cost of size.
func NewEntry(label, name string, size int, fn func()) *Entry {
	return &Entry{Label: label, Name: name, size: size, undo: fn}
}

// Stack is a LIFO history of Entries. Pushing past MaxSize drops the
// oldest entries first; the entry just pushed is never dropped,
// however large.
type Stack struct {
	entries []*Entry
	size    int
}

// NewStack returns an empty Stack.
func NewStack() *Stack { return &Stack{} }

// Push adds e to the stack, trimming older entries if the total cost
// now exceeds MaxSize.
func (s *Stack) Push(e *Entry) {
	s.entries = append(s.entries, e)
	s.size += e.size
	for s.size > MaxSize && len(s.entries) > 1 {
		dropped := s.entries[0]
		s.entries = s.entries[1:]
		s.size -= dropped.size
	}
}

// Pop restores the most recently pushed entries, walking back until
// it reaches one with a non-empty Label, and reports that entry's
// Label and Name. Entries above it (pushed after it) with an empty
// Label are restored
// silently along the way, letting several anonymous steps collapse
// into one user-visible undo. ok is false if the stack was already
// empty.
func (s *Stack) Pop() (label, name string, ok bool) {
	for len(s.entries) > 0 {
		e := s.entries[len(s.entries)-1]
		s.entries = s.entries[:len(s.entries)-1]
		s.size -= e.size
		if e.undo != nil {
			e.undo()
		}
		ok = true
		if e.Label != "" {
			return e.Label, e.Name, true
		}
	}
	return "", "", ok
}

// Len returns the number of entries currently on the stack.
func (s *Stack) Len() int { return len(s.entries) }

// Record snapshots t, runs edit, computes the resulting diff and
// pushes an Entry onto s that restores t to its pre-edit state when
// popped.
func Record(s *Stack, t *track.Track, label, name string, edit func()) {
	orig := t.Snapshot()
	edit()
	d := t.DiffSnapshot(orig)
	s.Push(NewEntry(label, name, len(d.Removed)*seqEvCost, func() {
		t.Restore(d)
	}))
}

// Rename returns an Entry that restores prevName via setName when
// popped.
func Rename(label, name, prevName string, setName func(string)) *Entry {
	return NewEntry(label, name, len(prevName), func() { setName(prevName) })
}

// Delete returns an Entry that re-adds a removed track or filter by
// calling restore when popped.
func Delete(label, name string, size int, restore func()) *Entry {
	return NewEntry(label, name, size, restore)
}

// Created returns an Entry that undoes the creation of a track or
// filter by calling remove when popped.
func Created(label, name string, remove func()) *Entry {
	return NewEntry(label, name, 0, remove)
}
