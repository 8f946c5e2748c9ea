package event

import "errors"

// Sentinel errors for the fixed error taxonomy. Programming errors
// (bogus cmd values passed where the caller is expected to have
// validated them already) panic instead of returning one of these.
var (
	// ErrBadCardinality is returned when a value is outside the
	// range its kind allows (device number, controller number, ...).
	ErrBadCardinality = errors.New("value out of range")

	// ErrDuplicateName reports a name already in use. RegisterPattern
	// and ConfigureController do not check names and never return it.
	ErrDuplicateName = errors.New("name already in use")

	// ErrBadPattern is returned by RegisterPattern when the supplied
	// byte template is malformed.
	ErrBadPattern = errors.New("malformed sysex pattern")
)
