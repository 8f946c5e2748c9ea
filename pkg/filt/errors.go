package filt

import "errors"

var (
	// ErrNotNoteSpec is returned by Transp/Vcurve when from isn't Any or Note.
	ErrNotNoteSpec = errors.New("transp/vcurve rule must apply to note or any events")
	// ErrPartialNoteRange is returned by Transp when from is a Note spec
	// that doesn't span the full note-number range.
	ErrPartialNoteRange = errors.New("transp rule must cover the full note range")
)
