package event

import "fmt"

// Controller describes a configured MIDI controller number: its name
// (used for lookup by name) and its default value. A controller with
// DefVal == Undef is a "parameter" controller (its value is only
// meaningful as a delta/setting, never compared to a rest state); any
// other DefVal marks it as a "frame" controller, whose value returning
// to DefVal ends a frame (see Event.Phase).
type Controller struct {
	Name   string
	DefVal uint16
}

// controllerTable is indexed by controller number, 0..MaxCoarse.
var controllerTable [int(MaxCoarse) + 1]Controller

func init() {
	ResetControllers()
}

// ResetControllers clears all controller configuration back to
// "unknown" (no name, DefVal == Undef).
func ResetControllers() {
	for i := range controllerTable {
		controllerTable[i] = Controller{DefVal: Undef}
	}
}

// ConfigureController names a controller number and sets its default
// (rest) value. Pass Undef as defVal to mark it a parameter controller.
func ConfigureController(num uint16, name string, defVal uint16) error {
	if num > uint16(MaxCoarse) {
		return fmt.Errorf("controller number %d out of range: %w", num, ErrBadCardinality)
	}
	controllerTable[num] = Controller{Name: name, DefVal: defVal}
	return nil
}

// LookupController returns the controller number configured with the
// given name.
func LookupController(name string) (num uint16, ok bool) {
	for i, c := range controllerTable {
		if c.Name == name {
			return uint16(i), true
		}
	}
	return 0, false
}

// IsParamController reports whether ctlNum has no rest value (its
// DefVal is Undef).
func IsParamController(ctlNum uint16) bool {
	return controllerTable[ctlNum].DefVal == Undef
}

// IsFrameController reports whether ctlNum has a rest value: returning
// to it ends the controller's frame.
func IsFrameController(ctlNum uint16) bool {
	return controllerTable[ctlNum].DefVal != Undef
}

// ControllerDefault returns the configured rest value for ctlNum.
func ControllerDefault(ctlNum uint16) uint16 {
	return controllerTable[ctlNum].DefVal
}

// IsFineController reports whether controller number num is
// transmitted as a 14-bit coarse/fine pair on a device whose
// fine-controller bitmap is xctlset.
func IsFineController(xctlset uint32, num uint16) bool {
	if num > 31 {
		return false
	}
	return xctlset&(1<<num) != 0
}
