package render

import (
	"fmt"

	"reelsmith/internal/services"
)

// ValidationError reports an artifact or input that does not meet the render
// contract. It classifies as a validation failure and is never retried.
type ValidationError struct {
	Path   string
	Check  string
	Want   float64
	Got    float64
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("render validation %s failed for %s: %s", e.Check, e.Path, e.Detail)
	}
	return fmt.Sprintf("render validation %s failed for %s: want %.3f, got %.3f", e.Check, e.Path, e.Want, e.Got)
}

func (e *ValidationError) Unwrap() error { return services.ErrValidation }
