package song

import (
	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/logger"
)

// SetTempo changes the current tempo to the given tick period,
// clamped to the valid range, and retunes the multiplexer's internal
// clock to match.
func (s *Song) SetTempo(usec24 uint32) {
	if usec24 < event.TempoMin() {
		usec24 = event.TempoMin()
	}
	if usec24 > event.TempoMax() {
		usec24 = event.TempoMax()
	}
	s.TempoUsec24 = usec24
	if s.Mux != nil {
		s.Mux.SetTicLength(usec24)
	}
}

// SetTap configures what a live event matching spec does while the
// transport is armed: nothing, trigger the start, or (two taps) set
// the tempo and then trigger the start.
func (s *Song) SetTap(mode TapMode, spec event.EventSpec) {
	s.TapMode = mode
	s.TapSpec = spec
	s.tapCnt = 0
}

// handleTap gives a received event to the tap machinery; it reports
// whether the event was consumed (any event matching TapSpec is, while
// tap mode is active, whether or not it triggered anything). Only a
// frame-opening event counts as a tap, and taps are ignored once the
// music has started.
func (s *Song) handleTap(ev event.Event) bool {
	if s.TapMode == TapOff || !s.TapSpec.MatchesEvent(ev) {
		return false
	}
	if ev.Phase()&event.PhaseFirst == 0 || s.Mode >= Play {
		return true
	}
	switch {
	case s.tapCnt == 0:
		if s.TapMode == TapStart {
			logger.GetLogger().Debug("song: start triggered by tap")
			s.tapCnt = -1
			s.forceStart()
		} else {
			logger.GetLogger().Debug("song: measuring tap tempo")
			s.tapTime = s.queue.Now()
		}
	case s.TapMode == TapTempo && s.tapCnt == 1:
		usec24 := (s.queue.Now() - s.tapTime) / uint32(s.TicsPerBeat)
		if usec24 < event.TempoMin() || usec24 > event.TempoMax() {
			logger.GetLogger().Debug("song: tapped tempo out of range, aborted", "usec24", usec24)
			s.tapCnt = 0
			return true
		}
		logger.GetLogger().Debug("song: start triggered by tap", "tempo", 60*24000000/(uint32(s.TicsPerBeat)*usec24))
		s.SetTempo(usec24)
		s.tapCnt = -1
		s.forceStart()
	}
	s.tapCnt++
	return true
}

// forceStart injects the tick the armed transport is waiting for, so
// playback begins on the tap itself.
func (s *Song) forceStart() {
	if s.Mux != nil {
		s.Mux.TicCB()
	}
}
