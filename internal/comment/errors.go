package comment

import "errors"

var (
	ErrValidation = errors.New("invalid input")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	// ErrEditWindowClosed is a forbidden edit past EditWindow.
	ErrEditWindowClosed = errors.New("edit timeframe exceeded (10 minutes)")
	ErrOwnerUnknown     = errors.New("idea owner unknown")
)
