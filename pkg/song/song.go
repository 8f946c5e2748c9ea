// Package song is the top-level aggregate: tracks, channels, filters,
// a meta-track carrying tempo/time-signature changes, the transport
// mode/cursor/loop state, and the recording overlay, all wired onto
// pkg/mixout for conflict-free output and pkg/mux for the tick clock
// they're driven by.
package song

import (
	"errors"

	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/filt"
	"github.com/zurustar/midicore/pkg/logger"
	"github.com/zurustar/midicore/pkg/metro"
	"github.com/zurustar/midicore/pkg/mixout"
	"github.com/zurustar/midicore/pkg/mux"
	"github.com/zurustar/midicore/pkg/state"
	"github.com/zurustar/midicore/pkg/timeq"
	"github.com/zurustar/midicore/pkg/track"
	"github.com/zurustar/midicore/pkg/undo"
)

// Mode is the transport mode. It reuses pkg/metro's own Mode type and
// ordering (OFF < IDLE < PLAY < REC) instead of declaring a parallel
// one, since the metronome needs to compare against exactly the same
// values song.Mode ever takes.
type Mode = metro.Mode

const (
	Off  = metro.Off
	Idle = metro.Idle
	Play = metro.Play
	Rec  = metro.Rec
)

// Defaults applied until a TIMESIG/TEMPO event on the meta-track says
// otherwise: 24 tics per beat (standard MIDI clock resolution), 4
// beats per measure, 120bpm.
const (
	DefaultTicsPerBeat     uint = 24
	DefaultBeatsPerMeasure uint = 4
	DefaultTicsPerUnit     uint = 96
)

// defaultTempoFallback is the tick period of 120bpm at the default
// tics-per-beat, the song's tempo until a TEMPO event on the
// meta-track says otherwise.
const defaultTempoFallback uint32 = 60 * 24000000 / (120 * 24)

// ErrModeMustIncreaseViaStartReq is returned by SetMode when asked to
// raise the transport mode directly: only StartReq (driven by the
// multiplexer's phase machine entering First) may do that.
var ErrModeMustIncreaseViaStartReq = errors.New("song: mode may only increase via StartReq")

// TapMode selects what a matching tap event does.
type TapMode int

const (
	TapOff TapMode = iota
	TapStart
	TapTempo
)

// Track is one song track: its name, event data, the filter it plays
// through (referenced by name into Song.Filters, "" meaning an
// internal always-pass-through default) and whether it is muted.
type Track struct {
	Name     string
	Track    *track.Track
	FiltName string
	Mute     bool

	cursor    *track.SeqPtr
	loopSaved *track.SeqPtr
}

// Chan is one configured device/channel pair: its role (input,
// output, or both), the filter live input through it passes through,
// and a config track holding whatever patch/controller setup should
// be sent whenever the channel is (re)activated.
type Chan struct {
	Name     string
	Dev, Ch  uint8
	Input    bool
	Output   bool
	FiltName string
	Conf     *track.Track
}

// Song is the aggregate described above. Build with New, then
// register tracks/channels before driving it with Tick and the
// transport methods in loc.go/rec.go/tempo.go.
type Song struct {
	Tracks  []*Track
	Chans   []*Chan
	Filters map[string]*filt.Filter

	Meta *track.Track

	Mode                         Mode
	Measure, Beat, Tic           uint
	AbsTic                       uint
	TicsPerBeat, BeatsPerMeasure uint
	TicsPerUnit                  uint
	TempoUsec24                  uint32

	Loop               bool
	LoopStart, LoopEnd uint

	Quant uint

	TapMode TapMode
	TapSpec event.EventSpec

	// CountIn is how many measures the metronome counts before the
	// cursors start moving on a transport start; 0 disables it.
	CountIn uint

	Undo  *undo.Stack
	Mixer *mixout.Mixer
	Metro *metro.Metro
	Mux   *mux.Mux

	passthrough *filt.Filter

	metaCursor    *track.SeqPtr
	metaLoopSaved *track.SeqPtr

	loopStartMeasure, loopStartBeat, loopStartTic uint

	rec         *track.Track
	recCursor   *track.SeqPtr
	recTarget   *Track
	recStartAbs uint

	tapCnt  int
	tapTime uint32

	countRemaining      uint
	countBeat, countTic uint

	queue *timeq.Queue
}

// newPassthroughFilter returns a filter with the one rule "anything
// maps to itself": pkg/filt's Filter.Do drops events with no matching
// map rule, so an unconfigured channel or track needs this to behave
// as transparent pass-through rather than silence.
func newPassthroughFilter() *filt.Filter {
	f := filt.New()
	_ = f.MapNew(event.Any(), event.Any())
	return f
}

// New returns an empty Song driven by mx (its tick clock) and sharing
// q (mx's own timeout queue) for the mixer's idle-purge sweep, the
// metronome's click timeout, and tap-tempo's wall-clock spacing.
func New(q *timeq.Queue, mx *mux.Mux) *Song {
	s := &Song{
		Filters:         make(map[string]*filt.Filter),
		Meta:            track.New(),
		TicsPerBeat:     DefaultTicsPerBeat,
		BeatsPerMeasure: DefaultBeatsPerMeasure,
		TicsPerUnit:     DefaultTicsPerUnit,
		TempoUsec24:     defaultTempoFallback,
		Undo:            undo.NewStack(),
		Mixer:           mixout.New(q),
		Metro:           metro.New(q),
		Mux:             mx,
		passthrough:     newPassthroughFilter(),
		queue:           q,
	}
	s.Mixer.OnEvent = func(ev event.Event) {
		if s.Mux != nil {
			s.Mux.PutOutput(int(ev.Dev), ev)
		}
	}
	s.Metro.OnEvent = func(ev event.Event) { s.Mixer.Put(ev, mixout.PrioTrack) }
	s.metaCursor = track.NewSeqPtr(s.Meta, state.New(8))
	if mx != nil {
		mx.SetTicLength(s.TempoUsec24)
		mx.SetTicsPerBeat(uint32(s.TicsPerBeat))
	}
	return s
}

// Filter returns the named filter, creating it (as pass-through) if
// it doesn't exist yet. name == "" always returns the shared internal
// pass-through filter.
func (s *Song) Filter(name string) *filt.Filter {
	if name == "" {
		return s.passthrough
	}
	f := s.Filters[name]
	if f == nil {
		f = newPassthroughFilter()
		s.Filters[name] = f
	}
	return f
}

// AddTrack appends a new, empty track named name and returns it,
// pushing an undo entry that removes it again when popped.
func (s *Song) AddTrack(name string) *Track {
	tr := &Track{Name: name, Track: track.New()}
	s.Tracks = append(s.Tracks, tr)
	s.Undo.Push(undo.Created("new track", name, func() { s.removeTrack(tr) }))
	return tr
}

func (s *Song) removeTrack(tr *Track) {
	for i, t := range s.Tracks {
		if t == tr {
			s.Tracks = append(s.Tracks[:i], s.Tracks[i+1:]...)
			return
		}
	}
}

// AddChan registers a device/channel pair and returns it.
func (s *Song) AddChan(name string, dev, ch uint8, input, output bool) *Chan {
	c := &Chan{Name: name, Dev: dev, Ch: ch, Input: input, Output: output, Conf: track.New()}
	s.Chans = append(s.Chans, c)
	return c
}

// Tick advances the song by one internal tick: it's pkg/mux's OnTick
// hook. It steps the meta-track cursor (applying any due tempo/timesig
// change), advances the musical cursor, clicks the metronome, and --
// in PLAY or REC -- advances every unmuted track's cursor, mixing its
// output in at track priority, and in REC additionally keeps the recording
// cursor's own clock running so later merges land at the right tic.
func (s *Song) Tick() {
	if s.countRemaining > 0 {
		s.tickCountIn()
		return
	}

	s.metaCursor.Advance(1, s.applyMetaEvent)

	s.Tic++
	if s.Tic >= s.TicsPerBeat {
		s.Tic = 0
		s.Beat++
		if s.Beat >= s.BeatsPerMeasure {
			s.Beat = 0
			s.Measure++
		}
	}
	s.AbsTic++

	s.Metro.Tic(s.Beat, s.Tic)

	if s.Mode == Play || s.Mode == Rec {
		for _, tr := range s.Tracks {
			if !tr.Mute {
				s.advanceTrack(tr)
			}
		}
		if s.Mode == Rec && s.recCursor != nil {
			s.recCursor.Advance(1, func(event.Event) {})
		}
	}

	if s.Loop && s.Mode >= Play && s.AbsTic >= s.LoopEnd {
		s.doLoopWrap()
	}
}

// tickCountIn consumes one tick of the pending count-in: the metronome
// keeps clicking its own beat counter while the song position, the
// cursors and the tracks all stay put.
func (s *Song) tickCountIn() {
	s.countRemaining--
	s.Metro.Tic(s.countBeat, s.countTic)
	s.countTic++
	if s.countTic >= s.TicsPerBeat {
		s.countTic = 0
		s.countBeat++
		if s.countBeat >= s.BeatsPerMeasure {
			s.countBeat = 0
		}
	}
}

func (s *Song) advanceTrack(tr *Track) {
	if tr.cursor == nil {
		tr.cursor = track.NewSeqPtr(tr.Track, state.New(32))
	}
	f := s.Filter(tr.FiltName)
	tr.cursor.Advance(1, func(ev event.Event) {
		for _, out := range f.Do(ev) {
			s.Mixer.Put(out, mixout.PrioTrack)
		}
	})
}

func (s *Song) applyMetaEvent(ev event.Event) {
	switch ev.Cmd {
	case event.Tempo:
		s.TempoUsec24 = ev.TempoUsec24()
		if s.Mux != nil {
			s.Mux.SetTicLength(s.TempoUsec24)
		}
	case event.TimeSig:
		s.BeatsPerMeasure = uint(ev.TimeSigBeats())
		s.TicsPerBeat = uint(ev.TimeSigTics())
		if s.Mux != nil {
			s.Mux.SetTicsPerBeat(uint32(s.TicsPerBeat))
		}
	}
}

// StartReq raises the transport mode to target; it is the only path
// by which Mode may increase -- mode raises always come from the
// multiplexer's phase machine, never from user commands directly.
// pkg/mux's OnStart hook calls this.
func (s *Song) StartReq(target Mode) error {
	if target <= s.Mode {
		return ErrModeMustIncreaseViaStartReq
	}
	s.setMode(target)
	return nil
}

// SetMode lowers the transport mode (a user-driven stop, or dropping
// out of REC back to PLAY); raising it this way is rejected.
func (s *Song) SetMode(target Mode) error {
	if target > s.Mode {
		return ErrModeMustIncreaseViaStartReq
	}
	s.setMode(target)
	return nil
}

func (s *Song) setMode(target Mode) {
	old := s.Mode
	if target == old {
		return
	}
	logger.GetLogger().Debug("song: mode change", "from", old, "to", target)

	if old == Rec && target != Rec {
		s.mergeRecord()
	}
	if target >= Play && old < Play {
		s.Mixer.Start()
		s.armLoop()
		s.countRemaining = s.CountIn * s.BeatsPerMeasure * s.TicsPerBeat
		s.countBeat, s.countTic = 0, 0
	}
	if target < Play && old >= Play {
		s.countRemaining = 0
		s.cancelAll()
		s.Mixer.Stop()
	}
	if target == Rec && old != Rec {
		s.startRecording()
	}

	s.Mode = target
	s.Metro.SetMode(target)
}

// cancelAll releases every note and resets every open controller/
// bender frame currently in flight across every track, matching the
// "never leave hanging notes or stuck controllers" guarantee a stop
// must provide.
func (s *Song) cancelAll() {
	for _, tr := range s.Tracks {
		if tr.cursor == nil {
			continue
		}
		for _, st := range append([]*state.State(nil), tr.cursor.States.All()...) {
			if ev, ok := st.Cancel(); ok {
				s.Mixer.Put(ev, mixout.PrioTrack)
			}
		}
	}
}
