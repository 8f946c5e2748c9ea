// Package mtc implements the MIDI Time Code quarter-frame/full-frame
// parser and the MMC (MIDI Machine Control) SysEx encoders the
// transport state machine uses to drive, and be driven by, an
// external MTC master.
package mtc

// Sec is the number of position units per second: absolute positions
// throughout this package and its callers are expressed in these
// units, not in wall-clock time or in SMPTE frames directly.
const Sec = 2400

// Period is the modulus MTC positions wrap at: 24 hours, the longest
// span SMPTE time code can address.
const Period = 24 * 60 * 60 * Sec

// FPS identifies one of the SMPTE frame rates MTC carries in the
// rate-id field of a full-frame message (bits 5-6 of its hour byte)
// and, duplicated, in the top bits of quarter-frame piece 7.
type FPS uint8

const (
	FPS24 FPS = 0
	FPS25 FPS = 1
	FPS30 FPS = 3
)

// tps returns the number of Sec units one quarter-frame (a quarter of
// one SMPTE frame) represents at this rate, or 0 if fps isn't one of
// the supported rates.
func (fps FPS) tps() uint32 {
	switch fps {
	case FPS24:
		return Sec / (24 * 4)
	case FPS25:
		return Sec / (25 * 4)
	case FPS30:
		return Sec / (30 * 4)
	default:
		return 0
	}
}

// State is the parser's lock state.
type State int

const (
	// Stop: no master detected yet, or sync was lost. Quarter-frames
	// are ignored until a full-frame message arrives.
	Stop State = iota
	// Start: a full-frame message set the position, but no
	// quarter-frame has confirmed it running yet.
	Start
	// Run: quarter-frames are arriving and advancing the position.
	Run
)

// Parser tracks position from a stream of quarter-frame and
// full-frame MTC messages. Construct with New; the zero value is not
// usable (its OnStart/OnTick/OnStop stay nil, but State/tps would
// also be wrong -- Stop with tps 0 happens to be safe, so a zero
// Parser silently ignores every quarter-frame, which is the "not
// receiving MTC" state it should default to).
type Parser struct {
	tps    uint32
	qfr    int
	nibble [8]byte
	pos    uint32
	state  State

	// OnStart fires when a full-frame message locks the parser to a
	// new position. OnTick fires on every quarter-frame once running,
	// with the time the position just advanced, in 1/24us units (0 on
	// the very first quarter-frame after Start). OnStop fires when
	// sync is lost (either by internal drift detection, or by the
	// caller invoking Timeout after no quarter-frame for 1s).
	OnStart func(pos uint32)
	OnTick  func(delta uint32)
	OnStop  func()
}

// New returns a parser in the Stop state.
func New() *Parser {
	return &Parser{state: Stop}
}

// State reports the parser's current lock state.
func (p *Parser) State() State { return p.state }

// Pos reports the parser's current position, in Sec units.
func (p *Parser) Pos() uint32 { return p.pos }

func (p *Parser) fireTick(delta uint32) {
	if p.OnTick != nil {
		p.OnTick(delta)
	}
}

func (p *Parser) fireStop() {
	if p.OnStop != nil {
		p.OnStop()
	}
}

// Timeout puts the parser back in the Stop state: call this when no
// quarter-frame has arrived for 1 second.
func (p *Parser) Timeout() {
	p.state = Stop
	p.fireStop()
}

// QuarterFrame handles one quarter-frame message (the status byte's
// data argument: a 3-bit piece index in the high nibble, 4 data bits
// in the low nibble). Quarter-frames are ignored entirely while
// stopped -- only a full-frame message can (re)lock the parser.
func (p *Parser) QuarterFrame(data byte) {
	if p.state == Stop {
		return
	}
	piece := int(data >> 4)
	if piece != p.qfr {
		return
	}
	if p.state == Run {
		p.pos += p.tps
		if p.pos >= Period {
			p.pos -= Period
		}
		p.fireTick(p.tps * (24000000 / Sec))
	} else {
		p.state = Run
		p.fireTick(0)
	}
	p.nibble[p.qfr] = data & 0xf
	p.qfr++
	if p.qfr < 8 {
		return
	}
	pos := p.tps*4*(uint32(p.nibble[0])+(uint32(p.nibble[1])<<4)) +
		Sec*(uint32(p.nibble[2])+(uint32(p.nibble[3])<<4)) +
		Sec*60*(uint32(p.nibble[4])+(uint32(p.nibble[5])<<4)) +
		Sec*3600*(uint32(p.nibble[6])+((uint32(p.nibble[7])&1)<<4))
	pos += 7 * p.tps
	if pos >= Period {
		pos -= Period
	}
	if pos != p.pos {
		delta := int64(pos) - int64(p.pos)
		if delta < Period/2 {
			delta += Period
		}
		if delta >= Period/2 {
			delta -= Period
		}
		if delta > 0 && delta < Sec/6 {
			p.fireTick(uint32(delta) * (24000000 / Sec))
			p.pos = pos
		} else {
			p.state = Stop
			p.fireStop()
		}
	}
	p.qfr = 0
}

// FullFrame handles a full-frame MTC SysEx message: data is the
// payload between F0 and F7 inclusive. It locks the parser to the
// encoded position and rate, discarding any in-progress quarter-frame
// sequence. Malformed messages (wrong length, wrong header bytes, or
// an unsupported frame rate) are ignored.
func (p *Parser) FullFrame(data []byte) {
	if len(data) != 10 ||
		data[0] != 0xf0 || data[1] != 0x7f || data[2] != 0x7f ||
		data[3] != 0x01 || data[4] != 0x01 || data[9] != 0xf7 {
		return
	}
	fps := FPS(data[5] >> 5)
	tps := fps.tps()
	if tps == 0 {
		return
	}
	p.tps = tps
	p.qfr = 0
	p.pos = Sec*3600*uint32(data[5]&0x1f) +
		Sec*60*uint32(data[6]) +
		Sec*uint32(data[7]) +
		tps*4*uint32(data[8])
	p.state = Start
	if p.OnStart != nil {
		p.OnStart(p.pos)
	}
}
