// Package device is the generic MIDI device layer: it owns nothing
// device-specific (that's Ops, supplied by a concrete transport such
// as ptydev), but converts the raw byte stream to and from events,
// tracks running status and active-sense timeouts, and maintains the
// unit-indexed device table every other package looks devices up in.
package device

import (
	"errors"
	"io"

	"github.com/zurustar/midicore/pkg/codec"
	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/logger"
	"github.com/zurustar/midicore/pkg/mtc"
	"github.com/zurustar/midicore/pkg/timeq"
)

// MaxUnits bounds the device table, matching track.MaxDevs.
const MaxUnits = 16

// BufLen is the size of a device's output buffer: it is flushed once
// full even if the caller hasn't asked for a flush yet.
const BufLen = 1024

// Active-sense timing, following the MIDI convention: devices that
// use active sensing send a sense byte roughly every 300ms, and
// receivers give a grace period before declaring the link dead.
const (
	OSensTo uint32 = 24000000 * 3 / 10 // 300ms, in 1/24us units
	ISensTo uint32 = 24000000 * 3 / 2  // 1.5s
)

// Mode is the bitmask of directions a device is open in.
type Mode uint8

const (
	ModeIn Mode = 1 << iota
	ModeOut
)

// Ops is the capability surface a concrete transport (a pty, a raw
// character device, an ALSA/sndio client) must implement. The core
// never reaches past this interface into transport specifics.
type Ops interface {
	// Open prepares the transport for Read/Write.
	Open() error
	// Close releases the transport. The caller has already drained
	// any pending output.
	Close() error
	// Read fills buf with bytes read from the wire, returning the
	// count read. io.EOF (or any other error) marks the device dead.
	Read(buf []byte) (int, error)
	// Write sends buf, returning the number of bytes actually
	// written; a short write is retried by the caller.
	Write(buf []byte) (int, error)
}

var (
	ErrUnitRange    = errors.New("device: unit out of range")
	ErrUnitTaken    = errors.New("device: unit already attached")
	ErrUnitNotFound = errors.New("device: no such unit")
	ErrUnitIsMaster = errors.New("device: unit is the clock or MTC source, detach that role first")
)

// Device is one attached MIDI endpoint: unit number, direction, the
// realtime/MMC options a caller configured for it, and the per-device
// framing state (running status, in-flight sysex, active-sense
// deadlines).
type Device struct {
	Unit    int
	Mode    Mode
	SendClk bool // forward MIDI start/stop/tick to this device
	SendMMC bool
	TicRate uint32 // ticks per quarter note this device expects on the wire

	// IXCtlSet/OXCtlSet mark which controller numbers are the low
	// half of a 14-bit pair on input/output; IEvSet/OEvSet select
	// which context-free conversions (codec.Flags) are enabled in
	// each direction. Device only carries these; pkg/mux is the
	// layer that actually calls codec.Pack/Unpack with them.
	IXCtlSet, OXCtlSet uint32
	IEvSet, OEvSet     codec.Flags

	RunningStatus bool // mirrors mididev's runst: on by default

	EOF bool

	ops Ops
	dec *event.Decoder
	enc *event.Encoder
	MTC *mtc.Parser

	obuf []byte

	queue    *timeq.Queue
	oSenseTo timeq.Timo
	iSenseTo timeq.Timo
	oSent    bool // at least one byte sent since the last OSensTo timeout
	iSeen    bool // at least one byte (incl. 0xfe) seen since the last ISensTo timeout

	OnEvent func(ev event.Event)
	OnTic   func()
	OnStart func()
	OnStop  func()
	OnAck   func(unit int)
	OnSysex func(unit int, raw []byte)
}

// New returns a Device for unit, backed by ops, open in the given
// mode, with the usual framing defaults: no realtime
// forwarding, MMC forwarding on, running status on, all controllers
// treated as plain 7-bit.
func New(unit int, ops Ops, mode Mode, q *timeq.Queue) *Device {
	d := &Device{
		Unit:          unit,
		Mode:          mode,
		SendMMC:       true,
		TicRate:       96,
		IEvSet:        codec.XPC | codec.NRPN | codec.RPN,
		OEvSet:        codec.XPC | codec.NRPN | codec.RPN,
		RunningStatus: true,
		EOF:           true,
		ops:           ops,
		dec:           event.NewDecoder(uint8(unit)),
		enc:           event.NewEncoder(),
		MTC:           mtc.New(),
		obuf:          make([]byte, 0, BufLen),
		queue:         q,
	}
	d.oSenseTo.Set(func(any) { d.onOSenseTo() }, nil)
	d.iSenseTo.Set(func(any) { d.onISenseTo() }, nil)
	d.dec.RealtimeHandler = d.handleRealtime
	d.dec.SysexHandler = d.handleSysex
	d.dec.QFrameHandler = d.handleQFrame
	return d
}

// Open opens the underlying transport and resets the framing state.
func (d *Device) Open() error {
	d.EOF = false
	d.obuf = d.obuf[:0]
	d.dec = event.NewDecoder(uint8(d.Unit))
	d.dec.RealtimeHandler = d.handleRealtime
	d.dec.SysexHandler = d.handleSysex
	d.dec.QFrameHandler = d.handleQFrame
	d.enc = event.NewEncoder()
	d.enc.RunningStatus = d.RunningStatus
	d.MTC = mtc.New()
	return d.ops.Open()
}

// Close flushes any pending output, closes the transport, and
// disarms the active-sense timeouts.
func (d *Device) Close() error {
	d.Flush()
	err := d.ops.Close()
	d.queue.Del(&d.oSenseTo)
	d.queue.Del(&d.iSenseTo)
	d.EOF = true
	return err
}

// Flush writes out the pending output buffer. A short Write is
// retried until the buffer drains or the device goes into EOF.
func (d *Device) Flush() {
	if d.EOF || len(d.obuf) == 0 {
		d.obuf = d.obuf[:0]
		return
	}
	buf := d.obuf
	for len(buf) > 0 {
		n, err := d.ops.Write(buf)
		if err != nil {
			d.EOF = true
			break
		}
		buf = buf[n:]
	}
	d.obuf = d.obuf[:0]
	d.armOSense()
}

func (d *Device) out(b byte) {
	if d.Mode&ModeOut == 0 {
		return
	}
	if len(d.obuf) == BufLen {
		d.Flush()
	}
	d.obuf = append(d.obuf, b)
}

// PutStart/PutStop/PutTic/PutAck queue the corresponding realtime
// byte.
func (d *Device) PutStart() { d.out(event.Start) }
func (d *Device) PutStop()  { d.out(event.Stop) }
func (d *Device) PutTic()   { d.out(event.Tic) }
func (d *Device) PutAck()   { d.out(event.Ack) }

// PutEv queues a raw voice or sysex event for sending. ev must
// already be in wire form (no XCTL/NRPN/RPN/XPC
// — pkg/mux unpacks those to raw events before handing them here).
// Non-voice, non-sysex commands (TEMPO, TIMESIG, ...) are silently
// dropped: they never reach the wire.
func (d *Device) PutEv(ev event.Event) {
	if !ev.Cmd.IsSysex() && (!ev.Cmd.IsVoice() || ev.Cmd == event.NRPN || ev.Cmd == event.RPN || ev.Cmd == event.XCtl || ev.Cmd == event.XPC) {
		return
	}
	if d.Mode&ModeOut == 0 {
		return
	}
	for _, b := range d.enc.Encode(nil, ev) {
		d.out(b)
	}
}

// SendRaw queues already-encoded bytes, breaking running status since
// the caller bypasses the Encoder.
func (d *Device) SendRaw(buf []byte) {
	if d.Mode&ModeOut == 0 {
		return
	}
	for _, b := range buf {
		d.out(b)
	}
	d.enc = event.NewEncoder()
	d.enc.RunningStatus = d.RunningStatus
}

// InputCB feeds freshly read bytes through the framing state machine:
// voice events reach OnEvent, realtime bytes and sysex reach the
// corresponding On* callback. It is a no-op on a device not open for
// input.
func (d *Device) InputCB(buf []byte) {
	if d.Mode&ModeIn == 0 {
		return
	}
	if len(buf) > 0 {
		d.iSeen = true
		d.armISense()
	}
	d.dec.Feed(buf, func(ev event.Event) {
		if d.OnEvent != nil {
			d.OnEvent(ev)
		}
	})
}

func (d *Device) handleRealtime(_ uint8, b byte) {
	switch b {
	case event.Tic:
		if d.OnTic != nil {
			d.OnTic()
		}
	case event.Start:
		if d.OnStart != nil {
			d.OnStart()
		}
	case event.Stop:
		if d.OnStop != nil {
			d.OnStop()
		}
	case event.Ack:
		if d.OnAck != nil {
			d.OnAck(d.Unit)
		}
	default:
		logger.GetLogger().Debug("device: unimplemented realtime byte", "unit", d.Unit, "byte", b)
	}
}

func (d *Device) handleSysex(unit uint8, raw []byte) {
	d.MTC.FullFrame(raw)
	if d.OnSysex != nil {
		d.OnSysex(int(unit), raw)
	}
}

func (d *Device) handleQFrame(_ uint8, data byte) {
	d.MTC.QuarterFrame(data)
}

// ReadFrom pumps ops.Read once and feeds whatever was read through
// InputCB; io.EOF (or any other read error) marks the device dead.
func (d *Device) ReadFrom() error {
	buf := make([]byte, 256)
	n, err := d.ops.Read(buf)
	if n > 0 {
		d.InputCB(buf[:n])
	}
	if err != nil {
		d.EOF = true
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func (d *Device) armOSense() {
	if d.queue == nil {
		return
	}
	d.queue.Del(&d.oSenseTo)
	d.queue.Add(&d.oSenseTo, OSensTo)
}

func (d *Device) onOSenseTo() {
	d.out(event.Ack)
	d.Flush()
}

func (d *Device) armISense() {
	if d.queue == nil {
		return
	}
	d.queue.Del(&d.iSenseTo)
	d.queue.Add(&d.iSenseTo, ISensTo)
}

func (d *Device) onISenseTo() {
	logger.GetLogger().Warn("device: input stuck, disabling", "unit", d.Unit)
	d.Mode &^= ModeIn
}
