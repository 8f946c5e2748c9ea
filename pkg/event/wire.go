package event

import "fmt"

// Realtime and system-common status bytes recognized on the wire,
// outside of running status.
const (
	SysexStart byte = 0xf0
	QFrame     byte = 0xf1
	SysexStop  byte = 0xf7
	Tic        byte = 0xf8
	Start      byte = 0xfa
	Stop       byte = 0xfc
	Ack        byte = 0xfe
)

// evlen gives the number of data bytes following a voice status byte,
// indexed by (status>>4)&7: NOFF/NON/KAT/CTL take 2, PC/CAT take 1,
// BEND takes 2, and index 7 is unused (0xf0-0xff are not voice status).
var evlen = [8]int{2, 2, 2, 2, 1, 1, 2, 0}

func voiceDataLen(status byte) int { return evlen[(status>>4)&7] }

// Decoder turns a raw MIDI byte stream from one device into Events,
// tracking running status and reassembling multi-byte messages. It
// has no notion of XCTL/NRPN/RPN/XPC — that
// context-free layer is pkg/codec's job, one level up.
type Decoder struct {
	Dev uint8

	status       byte
	data         [2]byte
	count        int
	inSysex      bool
	sysexBuf     []byte
	SysexHandler    func(dev uint8, raw []byte)
	RealtimeHandler func(dev uint8, b byte)
	QFrameHandler   func(dev uint8, data byte)
}

// NewDecoder returns a Decoder for device dev.
func NewDecoder(dev uint8) *Decoder {
	return &Decoder{Dev: dev}
}

// Feed decodes buf, invoking fn for every complete voice event and, if
// set, SysexHandler/RealtimeHandler for sysex messages and realtime
// bytes. It may be called repeatedly across buffer boundaries.
func (d *Decoder) Feed(buf []byte, fn func(Event)) {
	for _, b := range buf {
		d.feedByte(b, fn)
	}
}

func (d *Decoder) feedByte(b byte, fn func(Event)) {
	switch {
	case b >= 0xf8:
		if d.RealtimeHandler != nil {
			d.RealtimeHandler(d.Dev, b)
		}
	case b >= 0x80:
		d.status = b
		d.count = 0
		switch b {
		case SysexStart:
			d.inSysex = true
			d.sysexBuf = append(d.sysexBuf[:0], b)
		case SysexStop:
			if d.inSysex {
				d.sysexBuf = append(d.sysexBuf, b)
				if d.SysexHandler != nil {
					d.SysexHandler(d.Dev, d.sysexBuf)
				}
				d.inSysex = false
			}
			d.status = 0
		default:
			if d.inSysex {
				// sysex aborted by another status byte
				d.inSysex = false
			}
		}
	case d.status >= 0x80 && d.status < 0xf0:
		d.data[d.count] = b
		d.count++
		if d.count == voiceDataLen(d.status) {
			d.count = 0
			fn(d.decodeVoice())
		}
	case d.status == SysexStart:
		if d.inSysex {
			d.sysexBuf = append(d.sysexBuf, b)
		}
	case d.status == QFrame:
		// MTC quarter-frame data byte; pkg/mtc owns interpretation.
		if d.QFrameHandler != nil {
			d.QFrameHandler(d.Dev, b)
		}
		d.status = 0
	}
}

func (d *Decoder) decodeVoice() Event {
	cmd := Cmd(d.status >> 4)
	ch := d.status & 0x0f
	ev := Event{Cmd: cmd, Dev: d.Dev, Ch: ch}
	switch cmd {
	case NoteOn:
		if d.data[1] == 0 {
			ev.Cmd = NoteOff
			ev.V0 = uint16(d.data[0])
			ev.V1 = NoteOffDefVel
		} else {
			ev.V0 = uint16(d.data[0])
			ev.V1 = uint16(d.data[1])
		}
	case Bend:
		ev.V0 = uint16(d.data[0]) | uint16(d.data[1])<<7
	default:
		ev.V0 = uint16(d.data[0])
		if voiceDataLen(d.status) == 2 {
			ev.V1 = uint16(d.data[1])
		}
	}
	return ev
}

// Encoder serializes raw voice Events to bytes with running status.
// It does not understand XCTL/NRPN/RPN/XPC;
// those must be unpacked to raw CTL/PC events by pkg/codec first.
type Encoder struct {
	RunningStatus bool // if false, a status byte precedes every message
	ostatus       byte
}

// NewEncoder returns an Encoder with running-status optimisation
// enabled, the device default.
func NewEncoder() *Encoder {
	return &Encoder{RunningStatus: true}
}

// Encode appends the wire bytes for ev to out and returns the result.
// ev must be a raw voice event (NOFF/NON/KAT/CTL/PC/CAT/BEND) or a
// configured sysex pattern; anything else (XCTL, NRPN, RPN, XPC, TEMPO,
// TIMESIG) is a programming error — those never reach the wire.
func (e *Encoder) Encode(out []byte, ev Event) []byte {
	if ev.Cmd.IsSysex() {
		return e.encodeSysex(out, ev)
	}
	if !ev.Cmd.IsVoice() || ev.Cmd == NRPN || ev.Cmd == RPN || ev.Cmd == XCtl || ev.Cmd == XPC {
		panic(fmt.Sprintf("event.Encode: %v cannot be written to the wire directly", ev.Cmd))
	}
	var status byte
	switch ev.Cmd {
	case NoteOff:
		status = ev.Ch + byte(NoteOn)<<4
	default:
		status = ev.Ch + byte(ev.Cmd)<<4
	}
	if !e.RunningStatus || status != e.ostatus {
		e.ostatus = status
		out = append(out, status)
	}
	switch ev.Cmd {
	case NoteOff:
		out = append(out, byte(ev.V0), 0)
	case Bend:
		out = append(out, byte(ev.V0&0x7f), byte(ev.V0>>7))
	default:
		out = append(out, byte(ev.V0))
		if voiceDataLen(status) == 2 {
			out = append(out, byte(ev.V1))
		}
	}
	return out
}

func (e *Encoder) encodeSysex(out []byte, ev Event) []byte {
	pattern := Pattern(ev.Cmd)
	if pattern == nil {
		panic(fmt.Sprintf("event.Encode: sysex pattern %v not registered", ev.Cmd))
	}
	for _, p := range pattern {
		switch p {
		case PatV0Hi:
			out = append(out, byte(ev.V0>>7))
		case PatV0Lo:
			out = append(out, byte(ev.V0&0x7f))
		case PatV1Hi:
			out = append(out, byte(ev.V1>>7))
		case PatV1Lo:
			out = append(out, byte(ev.V1&0x7f))
		default:
			out = append(out, p)
		}
	}
	e.ostatus = 0 // sysex always breaks running status
	return out
}
