package event

import "fmt"

// RegisterPattern configures the sysex pattern slot cmd (must be in
// Pat0..Pat0+NPat-1) from a byte template. The template must start with
// 0xf0 and end with 0xf7; in between it may contain at most one each of
// PatV0Hi/PatV0Lo/PatV1Hi/PatV1Lo marker bytes (all other bytes must be
// plain 7-bit data, 0x00-0x7f). PatV0Lo requires PatV0Hi to also be
// present (likewise PatV1Lo/PatV1Hi), since the low byte of a split
// 14-bit value is meaningless without its high byte.
func RegisterPattern(cmd Cmd, name string, pattern []byte) error {
	if cmd < Pat0 || int(cmd) >= int(Pat0)+NPat {
		return fmt.Errorf("%w: %d is not a sysex pattern slot", ErrBadCardinality, cmd)
	}
	if len(pattern) < 2 || pattern[0] != 0xf0 || pattern[len(pattern)-1] != 0xf7 {
		return fmt.Errorf("%w: must start with 0xf0 and end with 0xf7", ErrBadPattern)
	}

	var hasV0Hi, hasV0Lo, hasV1Hi, hasV1Lo int
	for _, b := range pattern[1 : len(pattern)-1] {
		switch b {
		case PatV0Hi:
			hasV0Hi++
		case PatV0Lo:
			hasV0Lo++
		case PatV1Hi:
			hasV1Hi++
		case PatV1Lo:
			hasV1Lo++
		default:
			if b > 0x7f {
				return fmt.Errorf("%w: data byte 0x%02x out of range", ErrBadPattern, b)
			}
		}
	}
	if hasV0Hi > 1 || hasV0Lo > 1 || hasV1Hi > 1 || hasV1Lo > 1 {
		return fmt.Errorf("%w: duplicate placeholder", ErrBadPattern)
	}
	if hasV0Lo > 0 && hasV0Hi == 0 {
		return fmt.Errorf("%w: v0_lo without v0_hi", ErrBadPattern)
	}
	if hasV1Lo > 0 && hasV1Hi == 0 {
		return fmt.Errorf("%w: v1_lo without v1_hi", ErrBadPattern)
	}

	cp := make([]byte, len(pattern))
	copy(cp, pattern)

	infoTable[cmd] = info{
		name:    name,
		spec:    name,
		flags:   hasDev,
		nparams: hasV0Hi + hasV1Hi,
		v0min:   0, v0max: MaxFine,
		v1min: 0, v1max: MaxFine,
		pattern: cp,
	}
	return nil
}

// UnregisterPattern clears the configuration of sysex pattern slot cmd.
func UnregisterPattern(cmd Cmd) {
	if cmd < Pat0 || int(cmd) >= int(Pat0)+NPat {
		return
	}
	infoTable[cmd] = info{}
}

// ResetPatterns clears every configured sysex pattern.
func ResetPatterns() {
	for cmd := Pat0; int(cmd) < int(Pat0)+NPat; cmd++ {
		infoTable[cmd] = info{}
	}
}

// LookupPattern returns the sysex pattern slot configured with the
// given name.
func LookupPattern(name string) (Cmd, bool) {
	for cmd := Pat0; int(cmd) < int(Pat0)+NPat; cmd++ {
		if infoTable[cmd].name == name {
			return cmd, true
		}
	}
	return 0, false
}

// Pattern returns the byte template configured for sysex pattern slot
// cmd, or nil if unconfigured.
func Pattern(cmd Cmd) []byte {
	return infoTable[cmd].pattern
}
