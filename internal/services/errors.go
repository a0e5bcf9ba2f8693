package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	// ErrUnknownOutcome marks a publish call whose result could not be
	// confirmed. It is neither success nor a safe-to-retry failure.
	ErrUnknownOutcome = errors.New("unknown outcome")
)

// ErrorKind is a stable label for the marker carried by an error.
type ErrorKind string

const (
	KindExternalTool   ErrorKind = "external_tool"
	KindValidation     ErrorKind = "validation"
	KindConfiguration  ErrorKind = "configuration"
	KindNotFound       ErrorKind = "not_found"
	KindTimeout        ErrorKind = "timeout"
	KindTransient      ErrorKind = "transient"
	KindUnknownOutcome ErrorKind = "unknown_outcome"
	KindCanceled       ErrorKind = "canceled"
	KindUnknown        ErrorKind = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return &wrappedError{
			marker:    marker,
			stage:     strings.TrimSpace(stage),
			operation: strings.TrimSpace(operation),
			message:   strings.TrimSpace(message),
			err:       fmt.Errorf("%w: %s: %w", marker, detail, err),
			cause:     err,
		}
	}
	return &wrappedError{
		marker:    marker,
		stage:     strings.TrimSpace(stage),
		operation: strings.TrimSpace(operation),
		message:   strings.TrimSpace(message),
		err:       fmt.Errorf("%w: %s", marker, detail),
	}
}

type wrappedError struct {
	marker    error
	stage     string
	operation string
	message   string
	err       error
	cause     error
}

func (e *wrappedError) Error() string { return e.err.Error() }

func (e *wrappedError) Unwrap() error { return e.err }

// ErrorDetails is the structured view of a wrapped error used for logging.
type ErrorDetails struct {
	Kind      ErrorKind
	Stage     string
	Operation string
	Message   string
	Cause     error
}

// Details extracts the outermost Wrap context from err. Errors that were never
// wrapped still report a Kind derived from any marker they carry.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindUnknown}
	}
	details := ErrorDetails{Kind: KindOf(err), Message: err.Error()}
	var wrapped *wrappedError
	if errors.As(err, &wrapped) {
		details.Stage = wrapped.stage
		details.Operation = wrapped.operation
		if wrapped.message != "" {
			details.Message = wrapped.message
		}
		details.Cause = wrapped.cause
	}
	return details
}

// KindOf reports the classification of err.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrUnknownOutcome):
		return KindUnknownOutcome
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrExternalTool):
		return KindExternalTool
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}

// Retryable reports whether a stage failure may succeed on another attempt.
// Validation, configuration, not-found and unknown-outcome failures are
// deterministic or unsafe to repeat; cancellation stops the run.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindConfiguration, KindNotFound, KindUnknownOutcome, KindCanceled:
		return false
	default:
		return err != nil
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// Hint returns a short operator-facing next step for an error kind.
func Hint(kind ErrorKind) string {
	switch kind {
	case KindExternalTool:
		return "check ffmpeg/ffprobe installation and stderr output"
	case KindValidation:
		return "inspect the rendered artifact and validation thresholds"
	case KindConfiguration:
		return "run reelsmith config validate"
	case KindNotFound:
		return "check asset directories and configured paths"
	case KindTimeout:
		return "raise retry.stage_timeout or check provider latency"
	case KindTransient:
		return "retry later; the provider may be rate limiting"
	case KindUnknownOutcome:
		return "verify the post on Instagram and run reelsmith reconcile"
	default:
		return ""
	}
}
