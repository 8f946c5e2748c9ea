// Package mux is the multiplexer: the cooperative, single-threaded
// scheduler that drives a tick clock (internal, external MIDI clock,
// or MTC-slaved), fans decoded device input through the per-device
// context-free codec and input normalizer, and fans mixed output back
// through the codec and onto the wire. It owns the transport phase
// state machine (STARTWAIT/START/FIRST/NEXT/STOP) and the MMC/MTC
// relocation handshake; it knows nothing about tracks, filters or
// recording -- those are pkg/song's job, reached only through the
// OnTick/OnEvent/OnRelocate callbacks below.
package mux

import (
	"github.com/zurustar/midicore/pkg/codec"
	"github.com/zurustar/midicore/pkg/device"
	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/logger"
	"github.com/zurustar/midicore/pkg/mtc"
	"github.com/zurustar/midicore/pkg/norm"
	"github.com/zurustar/midicore/pkg/state"
	"github.com/zurustar/midicore/pkg/timeq"
)

// Phase is the transport's position within one start/stop cycle.
type Phase int

const (
	StartWait Phase = iota // armed, waiting for the start event
	Start                  // start event received, waiting for the first tick
	First                  // first tick consumed, music begins this tick
	Next                   // steady state
	Stop                   // idle, syncs ignored
)

func (p Phase) String() string {
	switch p {
	case StartWait:
		return "startwait"
	case Start:
		return "start"
	case First:
		return "first"
	case Next:
		return "next"
	case Stop:
		return "stop"
	default:
		return "bad"
	}
}

// Source identifies which of the three mutually exclusive clocks
// drives tick generation.
type Source int

const (
	Internal Source = iota // derived from monotonic wall-clock deltas
	External                // MIDI clock ticks from a device marked clksrc
	MTCSlave                // MTC quarter/full-frame from a device marked mtcsrc
)

// StartDelay is how long the internal clock waits in the Start phase
// before entering First, in 1/24us units (1/3 second).
const StartDelay uint32 = 24000000 / 3

// MTCLossTimeout is how long the multiplexer waits for a quarter-frame
// from the MTC master before declaring sync lost.
const MTCLossTimeout uint32 = 24000000

// Mux is the multiplexer. Construct with New; set the On* callbacks
// before driving it.
type Mux struct {
	Devices *device.Table
	Queue   *timeq.Queue

	phase  Phase
	source Source

	ticLength uint32 // current tick period, 1/24us units; set by SetTicLength
	curpos    uint32

	// ticsPerBeat is the engine's own tick resolution (pkg/song's
	// current tics-per-beat, from the active TIMESIG); it's the
	// denominator clkAcc divides each device's TicRate by to decide
	// how many wire clock bytes one internal tick is worth.
	ticsPerBeat uint32
	clkAcc      map[int]uint32

	mtcLossTo timeq.Timo

	inStates  map[int]*state.StateList
	outStates map[int]*state.StateList
	norms     map[int]*norm.Normalizer

	// OnTick fires once per internal tick, after any clock bytes due
	// this tick have been queued but before device buffers are
	// flushed; pkg/song's Tick hooks in here.
	OnTick func()
	// OnStart/OnStop fire on phase transitions into First (the first
	// time a cycle actually starts playing) and into Stop.
	OnStart func()
	OnStop  func()
	// OnPhase fires on every phase transition, for logging/diagnostics.
	OnPhase func(p Phase)
	// OnEvent delivers a canonical (context-free) event received from
	// device unit, after codec.Pack and normalizer throttling.
	OnEvent func(unit int, ev event.Event)
	// OnRelocate fires when an MTC full-frame locks (or re-locks) a
	// position, in mtc.Sec units; pkg/song's relocation logic hooks
	// in here.
	OnRelocate func(pos uint32)
}

// New returns a Mux driving devices, with its clock and timeouts
// scheduled on q (which must be the same queue devices was built
// with).
func New(devices *device.Table, q *timeq.Queue) *Mux {
	m := &Mux{
		Devices:   devices,
		Queue:     q,
		phase:       Stop,
		source:      Internal,
		ticsPerBeat: 24,
		clkAcc:      make(map[int]uint32),
		inStates:    make(map[int]*state.StateList),
		outStates:   make(map[int]*state.StateList),
		norms:       make(map[int]*norm.Normalizer),
	}
	m.mtcLossTo.Set(func(any) { m.onMTCLossTimeout() }, nil)
	return m
}

// Phase reports the multiplexer's current transport phase.
func (m *Mux) Phase() Phase { return m.phase }

// Source reports the multiplexer's current clock source.
func (m *Mux) Source() Source { return m.source }

// SetTicLength sets the wall-clock length of one internal tick, in
// 1/24us units (the current tempo's period); pkg/song calls this
// whenever a TEMPO event changes the song's tempo.
func (m *Mux) SetTicLength(usec24 uint32) { m.ticLength = usec24 }

// SetTicsPerBeat records the engine's current tics-per-beat (from the
// active TIMESIG); pkg/song calls this whenever a TIMESIG event
// changes it. It is the unit every device's TicRate is resolved
// against in fireTick's per-device clock divider.
func (m *Mux) SetTicsPerBeat(tpb uint32) {
	if tpb == 0 {
		tpb = 24
	}
	m.ticsPerBeat = tpb
}

func (m *Mux) setPhase(p Phase) {
	if m.phase == p {
		return
	}
	m.phase = p
	if m.OnPhase != nil {
		m.OnPhase(p)
	}
}

// SetClockSource configures which of the three clocks drives tick
// generation; the sources are mutually exclusive. For External and
// MTCSlave, unit must already be attached. For MTCSlave its MTC
// parser's hooks are wired here to drive this Mux; an External
// source's OnTic reaches the Mux through WireDevice.
func (m *Mux) SetClockSource(src Source, unit int) error {
	switch src {
	case Internal:
		m.source = Internal
		m.Devices.ClkSrc = -1
		m.Devices.MTCSrc = -1
	case External:
		d := m.Devices.ByUnit(unit)
		if d == nil {
			return device.ErrUnitNotFound
		}
		m.source = External
		m.Devices.ClkSrc = unit
		m.Devices.MTCSrc = -1
	case MTCSlave:
		d := m.Devices.ByUnit(unit)
		if d == nil {
			return device.ErrUnitNotFound
		}
		m.source = MTCSlave
		m.Devices.MTCSrc = unit
		m.Devices.ClkSrc = -1
		d.MTC.OnStart = func(pos uint32) { m.onMTCStart(pos) }
		d.MTC.OnTick = func(delta uint32) { m.onMTCTick(delta) }
		d.MTC.OnStop = func() { m.onMTCStop() }
	}
	return nil
}

// WireDevice hooks a device's input/output callbacks into the
// multiplexer: received bytes are packed (codec.Pack) and normalized
// (pkg/norm) before reaching OnEvent; PutOutput unpacks canonical
// events back through this device's codec context before writing
// them to the wire. A device configured as the clock or MTC source
// also has its transport callbacks (OnStart/OnStop/OnTic) wired to
// drive the phase machine. Call once per attached device.
func (m *Mux) WireDevice(d *device.Device) {
	if d.Mode&device.ModeIn != 0 {
		ist := state.New(32)
		m.inStates[d.Unit] = ist

		nrm := norm.New(m.Queue)
		nrm.Start()
		m.norms[d.Unit] = nrm
		unit := d.Unit
		nrm.OnEvent = func(ev event.Event) {
			if m.OnEvent != nil {
				m.OnEvent(unit, ev)
			}
		}

		d.OnEvent = func(ev event.Event) {
			packed, ok := codec.Pack(ist, d.IXCtlSet, d.IEvSet, ev)
			if !ok {
				return
			}
			nrm.PutEv(packed)
		}
		d.OnStart = func() { m.handleDeviceStart(unit) }
		d.OnStop = func() { m.handleDeviceStop(unit) }
		d.OnTic = func() { m.handleDeviceTic(unit) }
	}
	if d.Mode&device.ModeOut != 0 {
		m.outStates[d.Unit] = state.New(32)
	}
}

// PutOutput unpacks a canonical event back into the raw controller
// sequence device unit expects and queues it for sending. Unknown
// units and meta events (TEMPO/TIMESIG, which never reach the wire)
// are silently dropped.
func (m *Mux) PutOutput(unit int, ev event.Event) {
	d := m.Devices.ByUnit(unit)
	if d == nil {
		logger.GetLogger().Debug("mux: output for unattached unit dropped", "unit", unit, "event", ev)
		return
	}
	if ev.Cmd.IsMeta() {
		return
	}
	ost := m.outStates[unit]
	if ost == nil {
		ost = state.New(32)
		m.outStates[unit] = ost
	}
	for _, raw := range codec.Unpack(ost, d.OXCtlSet, d.OEvSet, ev) {
		d.PutEv(raw)
	}
}

// handleDeviceStart/Stop/Tic react to realtime bytes received from the
// device currently acting as the external MIDI clock source; they are
// no-ops for any other device or clock source.
func (m *Mux) handleDeviceStart(unit int) {
	if m.source == External && unit == m.Devices.ClkSrc && m.phase == StartWait {
		m.setPhase(Start)
		m.curpos = 0
	}
}

func (m *Mux) handleDeviceStop(unit int) {
	if m.source == External && unit == m.Devices.ClkSrc {
		m.doStop()
	}
}

func (m *Mux) handleDeviceTic(unit int) {
	if m.source != External || unit != m.Devices.ClkSrc {
		return
	}
	m.TicCB()
}

// TicCB forces one tick transition by hand, outside any clock source:
// in Start it begins playback immediately, in First/Next it advances
// the song by one tic. Tap-start uses it so the music begins on the
// tap itself rather than on the next scheduled tick.
func (m *Mux) TicCB() {
	switch m.phase {
	case Start:
		m.enterFirst()
	case First, Next:
		m.fireTick()
	}
	m.flushAll()
}

// enterFirst transitions Start -> First -> Next in one step: the
// phase spends exactly one tick in First (the tick music actually
// begins on), firing OnStart before that tick is processed so a
// caller's OnTick-driven logic (pkg/song's Tick) already sees the
// raised transport mode.
func (m *Mux) enterFirst() {
	m.setPhase(First)
	if m.OnStart != nil {
		m.OnStart()
	}
	m.fireTick()
	m.setPhase(Next)
}

// onMTCStart handles a locked MTC full-frame, whether it arrived from
// a real external master or was synthesized by GotoRequest against an
// internal clock.
func (m *Mux) onMTCStart(pos uint32) {
	m.curpos = 0
	if m.phase == StartWait {
		m.setPhase(Start)
	}
	m.rearmMTCLoss()
	if m.OnRelocate != nil {
		m.OnRelocate(pos)
	}
}

func (m *Mux) onMTCTick(delta uint32) {
	if m.source != MTCSlave {
		return
	}
	m.rearmMTCLoss()
	switch m.phase {
	case Start:
		m.curpos = 0
		m.enterFirst()
	case First, Next:
		m.curpos += delta
		for m.ticLength > 0 && m.curpos >= m.ticLength {
			m.curpos -= m.ticLength
			m.fireTick()
		}
	}
	m.flushAll()
}

func (m *Mux) onMTCStop() {
	m.doStop()
}

func (m *Mux) rearmMTCLoss() {
	m.Queue.Del(&m.mtcLossTo)
	m.Queue.Add(&m.mtcLossTo, MTCLossTimeout)
}

func (m *Mux) onMTCLossTimeout() {
	d := m.Devices.ByUnit(m.Devices.MTCSrc)
	if d == nil {
		return
	}
	logger.GetLogger().Warn("mux: mtc master silent, declaring stop", "unit", m.Devices.MTCSrc)
	d.MTC.Timeout()
}

func (m *Mux) doStop() {
	m.Queue.Del(&m.mtcLossTo)
	m.setPhase(Stop)
	if m.OnStop != nil {
		m.OnStop()
	}
	m.flushAll()
}

// fireTick sends a MIDI clock tick to every device forwarding it
// (excluding the clock source itself, which already produced it) and
// invokes OnTick; callers flush devices afterward. Each device's
// TicRate divides against the engine's own tics-per-beat to decide how
// many wire clock bytes this one internal tick is worth: a device
// whose wire resolution is finer than the engine's gets more than one
// byte, one coarser gets a byte only once every few internal ticks.
// The remainder carries over in clkAcc so the average rate matches
// exactly over time even when the ratio isn't a whole number.
func (m *Mux) fireTick() {
	for _, d := range m.Devices.All() {
		if !d.SendClk || d.Unit == m.Devices.ClkSrc {
			continue
		}
		acc := m.clkAcc[d.Unit] + d.TicRate
		for acc >= m.ticsPerBeat {
			acc -= m.ticsPerBeat
			d.PutTic()
		}
		m.clkAcc[d.Unit] = acc
	}
	if m.OnTick != nil {
		m.OnTick()
	}
}

// Flush writes out every attached device's pending output buffer:
// everything produced while processing one tick or one batch of
// device reads must hit the wire before the next wait. Callers
// driving device input outside of TimerCB/WireDevice's own tick paths
// (an event-loop host processing a batch of reads) call this once
// after the batch.
func (m *Mux) Flush() { m.flushAll() }

func (m *Mux) flushAll() {
	for _, d := range m.Devices.All() {
		d.Flush()
	}
}

// StartRequest arms the transport: STARTWAIT, or immediately Start if
// the internal clock is the source (it needs no external start
// event). MMC START is sent to every device marked sendmmc.
func (m *Mux) StartRequest() {
	m.setPhase(StartWait)
	m.curpos = 0
	for unit := range m.clkAcc {
		m.clkAcc[unit] = 0
	}
	if m.source == Internal {
		m.setPhase(Start)
	}
	for _, d := range m.Devices.All() {
		if d.SendMMC {
			d.SendRaw(mtc.EncodeMMCStart())
		}
	}
	m.flushAll()
}

// StopRequest halts the transport: MMC STOP is always sent; MIDI STOP
// additionally goes to sendclk devices if playback had actually begun
// (phase was First or Next).
func (m *Mux) StopRequest() {
	wasPastStart := m.phase == First || m.phase == Next
	for _, d := range m.Devices.All() {
		if d.SendMMC {
			d.SendRaw(mtc.EncodeMMCStop())
		}
		if wasPastStart && d.SendClk {
			d.PutStop()
		}
	}
	m.doStop()
}

// GotoRequest emits an MMC LOCATE targeting pos (in mtc.Sec units) to
// every device marked sendmmc. Against a real external MTC master,
// relocation only actually happens once its full-frame reply reaches
// OnRelocate; with the internal clock there is no master to reply, so
// the full-frame is synthesized immediately.
func (m *Mux) GotoRequest(pos uint32) {
	hh, mm, ss, ff := mtc.SplitPos(pos, mtc.FPS30)
	for _, d := range m.Devices.All() {
		if d.SendMMC {
			d.SendRaw(mtc.EncodeMMCLocate(mtc.FPS30, hh, mm, ss, ff, 0))
		}
	}
	m.flushAll()
	if m.source == Internal {
		m.onMTCStart(pos)
	}
}

// TimerCB is invoked once per OS timer tick with the elapsed wall time
// in 1/24us units: it advances the shared timeout queue and, if the
// internal clock is the source, accumulates elapsed time and fires
// every tick now due.
func (m *Mux) TimerCB(delta uint32) {
	m.Queue.Advance(delta)
	if m.source != Internal {
		m.flushAll()
		return
	}
	switch m.phase {
	case Start:
		m.curpos += delta
		if m.curpos >= StartDelay {
			m.curpos = 0
			m.enterFirst()
		}
	case First, Next:
		m.curpos += delta
		for m.ticLength > 0 && m.curpos >= m.ticLength {
			m.curpos -= m.ticLength
			m.fireTick()
		}
	}
	m.flushAll()
}
