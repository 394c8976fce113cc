package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound           = errors.New("not found")
	ErrNotLoaded          = errors.New("board not loaded")
	ErrNothingSelected    = errors.New("nothing selected")
	ErrDragInactive       = errors.New("no drag in progress")
	ErrPartitionInvariant = errors.New("partition invariant violated")
	ErrLoopClosed         = errors.New("event loop closed")
)

// PermanentError is a delivery failure that retrying cannot fix.
type PermanentError interface {
	error
	Permanent() bool
}

// IsPermanent reports whether err, or an error it wraps, is permanent.
func IsPermanent(err error) bool {
	var p PermanentError
	return errors.As(err, &p) && p.Permanent()
}
