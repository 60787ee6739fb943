package lifecycle

import "errors"

// Error taxonomy for lifecycle and bid operations. Handlers map these to
// HTTP statuses with errors.Is; none is ever retried automatically except
// ErrConcurrencyConflict, which is safe to retry once with a fresh status.
var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrForbidden           = errors.New("forbidden")
	ErrPreconditionFailed  = errors.New("precondition failed")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)
