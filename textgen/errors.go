package textgen

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is wrapped by every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid generation config")

	// ErrClosed is returned by a Service after Close.
	ErrClosed = errors.New("generation service closed")
)

// DecodeError reports a model backend failure during autoregressive decoding.
type DecodeError struct {
	// Step is the number of tokens generated before the failure.
	Step int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding failed at step %d: %v", e.Step, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
