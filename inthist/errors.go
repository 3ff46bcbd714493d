package inthist

import "github.com/zeebo/errs"

// Error classes returned by this package. StateCorruption is not meant
// to be returned as an error; it panics, since it signals a broken
// invariant rather than a caller mistake. See
// ConcurrentHistogram.ValidateQuiesced.
var (
	OutOfRange = errs.Class("out of range")
	Validation = errs.Class("validation")
	Underflow  = errs.Class("underflow")
)

func stateCorrupted(msg string) {
	panic("inthist: state corruption: " + msg)
}
