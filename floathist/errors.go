package floathist

import "github.com/zeebo/errs"

// Error classes returned by this package.
var (
	OutOfRange = errs.Class("out of range")
	Validation = errs.Class("validation")
)
