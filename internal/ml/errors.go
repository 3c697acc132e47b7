package ml

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable is returned for every request after the artifact
	// failed to load. The load is not retried.
	ErrModelUnavailable = errors.New("model is not available")

	// ErrInternal is the only detail callers see for unexpected failures.
	ErrInternal = errors.New("an internal error occurred")
)

// ArtifactLoadError reports a missing or corrupt model artifact.
type ArtifactLoadError struct {
	Path string
	Err  error
}

func (e *ArtifactLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load model artifact: %v", e.Err)
	}
	return fmt.Sprintf("load model artifact %s: %v", e.Path, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error { return e.Err }

// TransformError reports a shape or encoding mismatch between a request and
// the fitted pipeline.
type TransformError struct {
	Op     string
	Field  string
	Detail string
}

func (e *TransformError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("transform %s (%s): %s", e.Op, e.Field, e.Detail)
	}
	return fmt.Sprintf("transform %s: %s", e.Op, e.Detail)
}

func shapeError(op string, want, got int) error {
	return &TransformError{Op: op, Detail: fmt.Sprintf("expected %d dimensions, got %d", want, got)}
}
