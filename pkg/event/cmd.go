// Package event implements the canonical event model: the in-memory
// representation of MIDI and midicore-specific events (tempo changes,
// user sysex patterns), independent of both the wire encoding and of any
// stream-state tracking.
package event

// Cmd identifies the kind of an Event or, for EventSpec, a range of
// Event kinds. The numeric values double as an index into the info
// table, so new commands must be added in the reserved ranges.
type Cmd uint8

const (
	Null    Cmd = 0x0 // end-of-track / no event
	specAny Cmd = 0x1 // EventSpec-only: matches anything (see SpecAny)
	Tempo   Cmd = 0x2 // tempo change
	TimeSig Cmd = 0x3 // time signature change
	NRPN    Cmd = 0x4 // NRPN address + data entry, context-free
	RPN     Cmd = 0x5 // RPN address + data entry, context-free
	XCtl    Cmd = 0x6 // 14-bit controller, context-free
	XPC     Cmd = 0x7 // program change + bank select, context-free
	NoteOff Cmd = 0x8
	NoteOn  Cmd = 0x9
	KeyAt   Cmd = 0xa // key (polyphonic) aftertouch
	Ctl     Cmd = 0xb // raw 7-bit MIDI controller
	PC      Cmd = 0xc // raw MIDI program change
	ChanAt  Cmd = 0xd // channel aftertouch
	Bend    Cmd = 0xe // pitch bend

	Pat0 Cmd = 0x10 // first user-configurable sysex pattern slot
)

// NPat is the number of user-configurable sysex pattern slots.
const NPat = 16

// NumCmd is one past the highest valid Cmd value.
const NumCmd = int(Pat0) + NPat

// EventSpec sentinels. Most reuse the Cmd of the event kind they
// describe; SpecAny and SpecNote have no corresponding Event.Cmd value
// of their own (SpecNote shares NoteOn's slot, since specs only ever
// describe ranges, never concrete events).
const (
	SpecEmpty = Null
	SpecAny   = specAny
	SpecNote  = NoteOn
	SpecCtl   = Ctl
	SpecPC    = PC
	SpecCat   = ChanAt
	SpecBend  = Bend
	SpecNRPN  = NRPN
	SpecRPN   = RPN
	SpecXCtl  = XCtl
	SpecXPC   = XPC
)

// Sentinel and default values shared across event kinds.
const (
	Undef           uint16 = 0xffff
	MaxDev          uint8  = 15 // highest addressable device unit
	MaxCh           uint8  = 15
	MaxCoarse       uint16 = 0x7f
	MaxFine         uint16 = 0x3fff
	NoteOffDefVel   uint16 = 100
	BendDefault     uint16 = 0x2000
	ChanAtDefault   uint16 = 0
	CtlUnknown      uint16 = 255
)

// Phase bitmasks describe where an event sits within a "frame" (a
// logically grouped run of events for the same note/controller/bender).
type Phase uint8

const (
	PhaseFirst Phase = 1 << iota // can start a frame
	PhaseNext                    // can continue a frame, not end it
	PhaseLast                    // can end a frame
)

// Per-command attribute flags consulted through HasDev/HasCh.
type infoFlags uint8

const (
	hasDev infoFlags = 0x01
	hasCh  infoFlags = 0x02
)

// info holds the static per-command metadata: which fields apply, how
// many value parameters are used, and their valid ranges.
type info struct {
	name, spec      string // "" if unused/unnamed
	flags           infoFlags
	nparams         int
	v0min, v0max    uint16
	v1min, v1max    uint16
	pattern         []byte // non-nil only for configured sysex patterns
}

// infoTable is indexed by Cmd. Slots Pat0..Pat0+NPat-1 start unconfigured
// (name == "") and are populated by RegisterPattern.
var infoTable = [NumCmd]info{
	Null:    {name: "nil"},
	specAny: {name: "", spec: "any", flags: hasDev | hasCh},
	Tempo:   {name: "tempo", nparams: 2, v0min: 0, v0max: 0xffff, v1min: 0, v1max: 0xffff},
	TimeSig: {name: "timesig", nparams: 2, v0min: 1, v0max: 16, v1min: 1, v1max: 32},
	NRPN:    {name: "nrpn", spec: "nrpn", flags: hasDev | hasCh, nparams: 2, v0min: 0, v0max: MaxFine, v1min: 0, v1max: MaxFine},
	RPN:     {name: "rpn", spec: "rpn", flags: hasDev | hasCh, nparams: 2, v0min: 0, v0max: MaxFine, v1min: 0, v1max: MaxFine},
	XCtl:    {name: "xctl", spec: "xctl", flags: hasDev | hasCh, nparams: 2, v0min: 0, v0max: MaxCoarse, v1min: 0, v1max: MaxFine},
	XPC:     {name: "xpc", spec: "xpc", flags: hasDev | hasCh, nparams: 2, v0min: 0, v0max: MaxFine, v1min: 0, v1max: MaxCoarse},
	NoteOff: {name: "noff", flags: hasDev | hasCh, nparams: 2, v0min: 0, v0max: MaxCoarse, v1min: 0, v1max: MaxCoarse},
	NoteOn:  {name: "non", spec: "note", flags: hasDev | hasCh, nparams: 2, v0min: 0, v0max: MaxCoarse, v1min: 0, v1max: MaxCoarse},
	KeyAt:   {name: "kat", flags: hasDev | hasCh, nparams: 2, v0min: 0, v0max: MaxCoarse, v1min: 0, v1max: MaxCoarse},
	Ctl:     {name: "ctl", spec: "ctl", flags: hasDev | hasCh, nparams: 2, v0min: 0, v0max: MaxCoarse, v1min: 0, v1max: MaxCoarse},
	PC:      {name: "pc", spec: "pc", flags: hasDev | hasCh, nparams: 1, v0min: 0, v0max: MaxCoarse},
	ChanAt:  {name: "cat", spec: "cat", flags: hasDev | hasCh, nparams: 1, v0min: 0, v0max: MaxCoarse},
	Bend:    {name: "bend", spec: "bend", flags: hasDev | hasCh, nparams: 1, v0min: 0, v0max: MaxFine},
}

// Tempo range plumbing: a tempo of N bpm at T tics per beat has a
// tick period of 60e6*24/(N*T) 1/24us units. The largest tic count a
// time signature can carry is a quarter of the 96*40 tics-per-unit
// ceiling.
const (
	tpuMax         = 96 * 40
	timeSigTicsMax = tpuMax / 4
)

// The usec24 value is split across V0/V1 (16 bits each), so the info
// table's per-half ranges are the full 16 bits; the real musical bounds
// live here and are enforced by whoever sets a tempo.
var (
	tempoMin = tempoToUsec24(240, timeSigTicsMax)
	tempoMax = tempoToUsec24(20, 24)
)

func tempoToUsec24(tempo, tpb uint32) uint32 {
	return 60 * 24000000 / (tempo * tpb)
}

// TempoMin and TempoMax are the usec24 tempo-period bounds tap-tempo
// and any other tempo input must clamp to.
func TempoMin() uint32 { return tempoMin }
func TempoMax() uint32 { return tempoMax }

// Sysex pattern marker bytes. RegisterPattern accepts the value
// placeholders (PatV0Hi..PatV1Lo) and rejects the checksum markers
// PatSum and PatNegSum like any other byte above 0x7f.
const (
	PatV0Hi    byte = 0x80
	PatV0Lo    byte = 0x81
	PatV1Hi    byte = 0x82
	PatV1Lo    byte = 0x83
	PatSum     byte = 0x84
	PatNegSum  byte = 0x85
	PatMaxSize      = 32
)

// IsVoice reports whether cmd is one of the "voice" commands (NRPN
// through Bend), raw and context-free alike.
func (c Cmd) IsVoice() bool { return c >= NRPN && c <= Bend }

// IsMeta reports whether cmd is TEMPO or TIMESIG.
func (c Cmd) IsMeta() bool { return c >= Tempo && c <= TimeSig }

// IsNote reports whether cmd is NON, NOFF or KAT.
func (c Cmd) IsNote() bool { return c == NoteOn || c == NoteOff || c == KeyAt }

// IsSysex reports whether cmd is one of the user-configurable sysex
// pattern slots.
func (c Cmd) IsSysex() bool { return c >= Pat0 && int(c) < int(Pat0)+NPat }

// HasDev reports whether events of this kind carry a device field.
func (c Cmd) HasDev() bool { return infoTable[c].flags&hasDev != 0 }

// HasCh reports whether events of this kind carry a channel field.
func (c Cmd) HasCh() bool { return infoTable[c].flags&hasCh != 0 }

// NumParams returns how many of V0/V1 are meaningful for this kind (0, 1 or 2).
func (c Cmd) NumParams() int { return infoTable[c].nparams }

// String returns the event-kind's name, or "" if the slot has no name
// (reserved / unconfigured sysex pattern).
func (c Cmd) String() string {
	if int(c) >= NumCmd {
		return ""
	}
	return infoTable[c].name
}
