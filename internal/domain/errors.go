package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a stage failure for the orchestrator's retry policy.
type ErrorKind string

const (
	KindTransientNetwork ErrorKind = "transient_network"
	KindRateLimited      ErrorKind = "rate_limited"
	KindNotAvailable     ErrorKind = "not_available"
	KindValidation       ErrorKind = "validation"
	KindAuth             ErrorKind = "auth"
	KindGuardrailFail    ErrorKind = "guardrail_fail"
	KindTimeout          ErrorKind = "timeout"
)

// Retryable reports whether the orchestrator may retry a failure of this
// kind within the stage's attempt budget.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTransientNetwork, KindRateLimited, KindTimeout:
		return true
	}
	return false
}

// StageError is a failure classified by an adapter before it reaches the
// orchestrator.
type StageError struct {
	Kind ErrorKind
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with a classification.
func NewStageError(kind ErrorKind, err error) *StageError {
	return &StageError{Kind: kind, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind ErrorKind, format string, args ...any) *StageError {
	return &StageError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the classification from err. Unclassified errors report
// an empty kind; the orchestrator treats those as unrecoverable.
func KindOf(err error) ErrorKind {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Kind
	}
	return ""
}
