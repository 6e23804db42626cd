package generator

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a generator that cannot run because it is
	// missing configuration (the service credential).
	ErrConfiguration = errors.New("generator is not configured")

	// ErrGeneration marks a failed call to the generation backend.
	ErrGeneration = errors.New("prompt generation failed")

	// ErrEmptyInput is returned when the task description is blank.
	ErrEmptyInput = errors.New("input is empty")
)

// ConfigurationError reports what is missing before any call is attempted.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfiguration.Error(), e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// GenerationError wraps a transport or service failure from the backend.
type GenerationError struct {
	Engine string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrGeneration.Error(), e.Engine, e.Err)
}

func (e *GenerationError) Unwrap() []error {
	return []error{ErrGeneration, e.Err}
}
