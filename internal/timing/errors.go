package timing

import (
	"fmt"

	"reelsmith/internal/services"
)

// Error reports inputs that cannot produce a plan. It classifies as a
// validation failure.
type Error struct {
	Op     string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("timing %s: %s", e.Op, e.Reason)
}

func (e *Error) Unwrap() error { return services.ErrValidation }

func errorf(op, format string, args ...any) error {
	return &Error{Op: op, Reason: fmt.Sprintf(format, args...)}
}
