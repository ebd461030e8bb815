package policy

import (
	"errors"
	"fmt"
)

var (
	ErrModelLoad = errors.New("policy model could not be loaded")
	ErrInference = errors.New("policy inference failed")
)

// ModelLoadError reports a missing, corrupt or incompatible model.
type ModelLoadError struct {
	Path string // empty when loaded from memory
	Err  error
}

func (e *ModelLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("loading model: %v", e.Err)
	}
	return fmt.Sprintf("loading model %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error        { return e.Err }
func (e *ModelLoadError) Is(target error) bool { return target == ErrModelLoad }

// InferenceError reports a failed forward pass.
type InferenceError struct {
	Node string
	Err  error
}

func (e *InferenceError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("inference: %v", e.Err)
	}
	return fmt.Sprintf("inference at %s: %v", e.Node, e.Err)
}

func (e *InferenceError) Unwrap() error        { return e.Err }
func (e *InferenceError) Is(target error) bool { return target == ErrInference }

func loadErrorf(format string, args ...any) error {
	return &ModelLoadError{Err: fmt.Errorf(format, args...)}
}
