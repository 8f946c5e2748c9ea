package device

import "github.com/zurustar/midicore/pkg/timeq"

// Table is the unit-indexed device registry. ClkSrc and MTCSrc
// record which
// attached unit (if any) drives the internal clock and MTC state
// machines; detaching either one is rejected until the role is
// cleared first.
type Table struct {
	byUnit [MaxUnits]*Device
	queue  *timeq.Queue

	ClkSrc int // -1: no external clock source, drive internally
	MTCSrc int // -1: no external MTC source
}

// NewTable returns an empty table backed by q for active-sense
// scheduling.
func NewTable(q *timeq.Queue) *Table {
	return &Table{queue: q, ClkSrc: -1, MTCSrc: -1}
}

// Attach registers ops as unit, open in mode, and returns the Device.
// Callers construct the transport themselves and hand it in already
// built.
func (t *Table) Attach(unit int, ops Ops, mode Mode) (*Device, error) {
	if unit < 0 || unit >= MaxUnits {
		return nil, ErrUnitRange
	}
	if t.byUnit[unit] != nil {
		return nil, ErrUnitTaken
	}
	d := New(unit, ops, mode, t.queue)
	t.byUnit[unit] = d
	return d, nil
}

// Detach unregisters unit, closing it first. Detaching the current
// clock or MTC source is rejected.
func (t *Table) Detach(unit int) error {
	if unit < 0 || unit >= MaxUnits || t.byUnit[unit] == nil {
		return ErrUnitNotFound
	}
	if unit == t.ClkSrc || unit == t.MTCSrc {
		return ErrUnitIsMaster
	}
	d := t.byUnit[unit]
	_ = d.Close()
	t.byUnit[unit] = nil
	return nil
}

// ByUnit returns the device registered as unit, or nil.
func (t *Table) ByUnit(unit int) *Device {
	if unit < 0 || unit >= MaxUnits {
		return nil
	}
	return t.byUnit[unit]
}

// All returns every currently attached device, in unit order.
func (t *Table) All() []*Device {
	out := make([]*Device, 0, MaxUnits)
	for _, d := range t.byUnit {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

// DoneAll closes and unregisters every attached device.
func (t *Table) DoneAll() {
	for i, d := range t.byUnit {
		if d != nil {
			_ = d.Close()
			t.byUnit[i] = nil
		}
	}
	t.ClkSrc = -1
	t.MTCSrc = -1
}
