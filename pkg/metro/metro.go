// Package metro is the metronome: a tick-stream consumer that plays a
// high click on beat 0 and a low click on every other beat, gated by
// the current song mode and a configurable mask of modes it should
// sound in.
package metro

import (
	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/timeq"
)

// Mode is the song transport mode the metronome is gated by. Ordered
// OFF < IDLE < PLAY < REC so callers can compare with >=. pkg/song
// uses the same type for its own transport state.
type Mode uint

const (
	Off Mode = iota
	Idle
	Play
	Rec
)

// ClickLen is how long a click note sounds before its note-off: 30ms,
// in 1/24us units.
const ClickLen uint32 = 24 * 1000 * 30

// Default click note-on events: high and low agogo (GM notes 67 and
// 68) on the percussion channel.
var (
	DefaultHi = event.Event{Cmd: event.NoteOn, Dev: 0, Ch: 9, V0: 67, V1: 127}
	DefaultLo = event.Event{Cmd: event.NoteOn, Dev: 0, Ch: 9, V0: 68, V1: 90}
)

// Metro is one metronome instance: which modes it clicks in, the two
// click events, and the pending note-off timeout for whichever click
// is currently sounding.
type Metro struct {
	mode Mode
	mask uint // bit i set: click while mode == i

	Hi, Lo event.Event

	sounding *event.Event // points at Hi or Lo, nil if none sounding
	to       timeq.Timo
	queue    *timeq.Queue

	// OnEvent receives every click note-on/note-off.
	OnEvent func(ev event.Event)
}

// New returns a metronome that clicks only in Rec mode.
func New(q *timeq.Queue) *Metro {
	m := &Metro{
		mask:  1 << Rec,
		Hi:    DefaultHi,
		Lo:    DefaultLo,
		queue: q,
	}
	m.to.Set(func(any) { m.onTimeout() }, nil)
	return m
}

func (m *Metro) emit(ev event.Event) {
	if m.OnEvent != nil {
		m.OnEvent(ev)
	}
}

func (m *Metro) onTimeout() {
	if m.sounding == nil {
		return
	}
	ev := *m.sounding
	m.emit(event.Event{Cmd: event.NoteOff, Dev: ev.Dev, Ch: ev.Ch, V0: ev.NoteNum(), V1: event.NoteOffDefVel})
	m.sounding = nil
}

// Tic reports one tick at the given beat/tic-within-beat position; a
// click plays when tic == 0 and the current mode is enabled in the
// mask. A click already sounding (nested clicks, e.g. a very short
// beat) is cut short first.
func (m *Metro) Tic(beat, tic uint) {
	if m.mask&(1<<m.mode) == 0 || tic != 0 {
		return
	}
	if m.sounding != nil {
		m.queue.Del(&m.to)
		m.onTimeout()
	}
	if beat == 0 {
		m.sounding = &m.Hi
	} else {
		m.sounding = &m.Lo
	}
	m.emit(*m.sounding)
	m.queue.Add(&m.to, ClickLen)
}

// Shut silences any currently sounding click immediately.
func (m *Metro) Shut() {
	if m.sounding != nil {
		m.queue.Del(&m.to)
		m.onTimeout()
	}
}

// SetMode changes the gating mode, shutting a sounding click first if
// the new mode falls outside the mask.
func (m *Metro) SetMode(mode Mode) {
	if m.mask&(1<<m.mode) != 0 && m.mask&(1<<mode) == 0 {
		m.Shut()
	}
	m.mode = mode
}

// SetMask changes which modes the metronome clicks in, shutting a
// sounding click first if the current mode falls outside the new
// mask.
func (m *Metro) SetMask(mask uint) {
	if m.mask&(1<<m.mode) != 0 && mask&(1<<m.mode) == 0 {
		m.Shut()
	}
	m.mask = mask
}

// Str2Mask parses the three mask names the metro setting accepts.
func Str2Mask(s string) (mask uint, ok bool) {
	switch s {
	case "on":
		return 1<<Play | 1<<Rec, true
	case "rec":
		return 1 << Rec, true
	case "off":
		return 0, true
	default:
		return 0, false
	}
}
