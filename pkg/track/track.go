// Package track holds ordered, timed sequences of events: the unit a
// song's tracks, the clipboard and the undo stack all move around.
// Each event carries a delta -- the number of tics since the previous
// one -- and the track itself carries a trailing delta, the blank
// space after its last event, standing in for an explicit
// end-of-track marker.
package track

import "github.com/zurustar/midicore/pkg/event"

// MaxDevs and MaxChansPerDev bound the dev/ch pairs ChanMap reports
// on: 16 devices of 16 channels each.
const (
	MaxDevs        = 16
	MaxChansPerDev = 16
)

// SeqEv is one scheduled event: Ev occurs Delta tics after whatever
// precedes it (the previous event, or the track's start).
type SeqEv struct {
	Delta uint
	Ev    event.Event
}

// Track is an ordered sequence of timed events, plus the blank space
// (in tics) trailing the last one. Events live in a plain slice
// rather than a linked list: the splicing a linked list buys is only
// needed by interactive editing (rare, and already O(n) to locate a
// position by tic count), not by playback, which only ever walks
// forward.
type Track struct {
	events []SeqEv
	eot    uint
}

// New returns an empty track.
func New() *Track { return &Track{} }

// IsEmpty reports whether the track has no events and no trailing
// blank space.
func (t *Track) IsEmpty() bool { return len(t.events) == 0 && t.eot == 0 }

// Chomp removes the track's trailing blank space.
func (t *Track) Chomp() { t.eot = 0 }

// Shift moves the track's origin forward by ntics, padding before the
// first event (or extending the trailing blank space, if the track
// has no events).
func (t *Track) Shift(ntics uint) {
	if len(t.events) == 0 {
		t.eot += ntics
		return
	}
	t.events[0].Delta += ntics
}

// Swap exchanges the contents of t and other.
func (t *Track) Swap(other *Track) { *t, *other = *other, *t }

// NumEv returns the number of events in the track.
func (t *Track) NumEv() int { return len(t.events) }

// NumTic returns the track's length in tics, trailing blank space
// included.
func (t *Track) NumTic() uint {
	total := t.eot
	for _, se := range t.events {
		total += se.Delta
	}
	return total
}

// Clear removes every event from the track, keeping its trailing
// blank space.
func (t *Track) Clear() { t.events = nil }

// Events returns the track's events in order. The slice is owned by
// the track and must not be retained across a mutating call.
func (t *Track) Events() []SeqEv { return t.events }

// EOT returns the track's trailing blank space, in tics.
func (t *Track) EOT() uint { return t.eot }

// SetChan rewrites the device/channel of every voice event in the
// track.
func (t *Track) SetChan(dev, ch uint8) {
	for i := range t.events {
		if t.events[i].Ev.Cmd.IsVoice() {
			t.events[i].Ev.Dev = dev
			t.events[i].Ev.Ch = ch
		}
	}
}

// ChanMap reports which (dev, ch) pairs the track's voice events use,
// indexed as dev*MaxChansPerDev+ch.
func (t *Track) ChanMap() [MaxDevs * MaxChansPerDev]bool {
	var used [MaxDevs * MaxChansPerDev]bool
	for _, se := range t.events {
		if !se.Ev.Cmd.IsVoice() {
			continue
		}
		dev, ch := int(se.Ev.Dev), int(se.Ev.Ch)
		if dev >= MaxDevs || ch >= MaxChansPerDev {
			continue
		}
		used[dev*MaxChansPerDev+ch] = true
	}
	return used
}

// EvCnt returns the number of events of the given command.
func (t *Track) EvCnt(cmd event.Cmd) int {
	n := 0
	for _, se := range t.events {
		if se.Ev.Cmd == cmd {
			n++
		}
	}
	return n
}

// Insert splices evs before index i (0 <= i <= NumEv()). Timing of
// everything at or after i is unaffected: evs keeps its own deltas,
// and the event previously at i keeps counting from where evs now
// ends.
func (t *Track) Insert(i int, evs []SeqEv) {
	if len(evs) == 0 {
		return
	}
	inserted := append([]SeqEv(nil), evs...)
	tail := append([]SeqEv(nil), t.events[i:]...)
	head := t.events[:i:i]
	t.events = append(append(head, inserted...), tail...)
}

// Remove deletes the event at index i, folding its delta into the
// following event (or the trailing blank space, if i was the last
// event) so absolute timing after i is unaffected.
func (t *Track) Remove(i int) SeqEv {
	removed := t.events[i]
	if i+1 < len(t.events) {
		t.events[i+1].Delta += removed.Delta
	} else {
		t.eot += removed.Delta
	}
	t.events = append(t.events[:i], t.events[i+1:]...)
	return removed
}

// Append adds an event at the end of the track, consuming the track's
// trailing blank space as the new event's delta.
func (t *Track) Append(ev event.Event) {
	t.events = append(t.events, SeqEv{Delta: t.eot, Ev: ev})
	t.eot = 0
}

// Snapshot is a flat, point-in-time copy of a track's events plus its
// trailing blank space, used to compute undo diffs. The blank space
// is carried as a final entry holding a Null event, so that a change
// to the trailing space alone still shows up in the diff.
type Snapshot []SeqEv

// Snapshot captures t's current state.
func (t *Track) Snapshot() Snapshot {
	snap := make(Snapshot, 0, len(t.events)+1)
	snap = append(snap, t.events...)
	snap = append(snap, SeqEv{Delta: t.eot, Ev: event.Event{Cmd: event.Null}})
	return snap
}

func seqEvEq(a, b SeqEv) bool { return a.Delta == b.Delta && a.Ev.Eq(b.Ev) }

// Diff is the compacted record of how a track changed between two
// snapshots taken before and after an edit: Pos is where they first
// diverge, NIns is how many events occupy that divergence in the
// later snapshot, and Removed is the run of events the earlier
// snapshot had there instead.
type Diff struct {
	Pos     int
	NIns    int
	Removed Snapshot
}

// DiffSnapshot computes how the track changed between orig and the
// track's current state. orig is normally one captured by Snapshot
// before whatever edit has since happened.
func (t *Track) DiffSnapshot(orig Snapshot) Diff {
	mod := t.Snapshot()

	start := 0
	for start < len(orig) && start < len(mod) && seqEvEq(orig[start], mod[start]) {
		start++
	}
	end1, end2 := len(orig), len(mod)
	for end1 > start && end2 > start && seqEvEq(orig[end1-1], mod[end2-1]) {
		end1--
		end2--
	}

	return Diff{
		Pos:     start,
		NIns:    end2 - start,
		Removed: append(Snapshot(nil), orig[start:end1]...),
	}
}

// Restore undoes whatever DiffSnapshot captured, splicing d.Removed
// back in at d.Pos after removing the d.NIns events currently
// occupying it. A trailing Null entry in d.Removed restores the
// track's blank space rather than being spliced in as an event.
func (t *Track) Restore(d Diff) {
	for n := d.NIns; n > 0; n-- {
		if d.Pos >= len(t.events) {
			t.eot = 0
			break
		}
		t.Remove(d.Pos)
	}

	evs := d.Removed
	if n := len(evs); n > 0 && evs[n-1].Ev.Cmd == event.Null {
		t.eot = evs[n-1].Delta
		evs = evs[:n-1]
	}
	t.Insert(d.Pos, evs)
}
