package casa

import (
	"errors"
	"fmt"
)

// Stage names the pipeline stage an error originated in.
type Stage string

const (
	StageIngest         Stage = "ingest"
	StageTracking       Stage = "tracking"
	StageKinematics     Stage = "kinematics"
	StageClassification Stage = "classification"
	StageReport         Stage = "report"
)

// Kind classifies why a run failed. Every kind is terminal for the run.
type Kind string

const (
	KindInputNotFound     Kind = "input_not_found"
	KindMalformedInput    Kind = "malformed_input"
	KindValidationFailure Kind = "validation_failure"
	KindCancelled         Kind = "cancelled"
	KindInternal          Kind = "internal"
)

// Sentinels for errors.Is matching against an AnalysisError's kind.
var (
	ErrInputNotFound     = errors.New("input not found")
	ErrMalformedInput    = errors.New("malformed input")
	ErrValidationFailure = errors.New("validation failure")
	ErrCancelled         = errors.New("analysis cancelled")
	ErrInternal          = errors.New("internal error")
)

// AnalysisError is the error type returned by every engine layer.
type AnalysisError struct {
	Stage Stage
	Kind  Kind
	Err   error
}

// NewError builds an AnalysisError.
func NewError(stage Stage, kind Kind, err error) *AnalysisError {
	return &AnalysisError{Stage: stage, Kind: kind, Err: err}
}

// Errorf builds an AnalysisError with a formatted cause.
func Errorf(stage Stage, kind Kind, format string, args ...any) *AnalysisError {
	return NewError(stage, kind, fmt.Errorf(format, args...))
}

func (e *AnalysisError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *AnalysisError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func (k Kind) sentinel() error {
	switch k {
	case KindInputNotFound:
		return ErrInputNotFound
	case KindMalformedInput:
		return ErrMalformedInput
	case KindValidationFailure:
		return ErrValidationFailure
	case KindCancelled:
		return ErrCancelled
	default:
		return ErrInternal
	}
}

// AsAnalysisError unwraps err into an AnalysisError, wrapping foreign
// errors as an internal failure of the given stage.
func AsAnalysisError(err error, stage Stage) *AnalysisError {
	if err == nil {
		return nil
	}
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae
	}
	return NewError(stage, KindInternal, err)
}
