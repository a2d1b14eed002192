package onnx

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error checking via errors.Is().
var (
	// ErrMalformed indicates truncated or corrupt protobuf input.
	ErrMalformed = errors.New("malformed model")

	// ErrCycle indicates a graph whose nodes cannot be ordered topologically.
	ErrCycle = errors.New("graph contains a cycle")
)

// DecodeError reports where decoding failed. Wraps ErrMalformed.
type DecodeError struct {
	Path   string // Message path, e.g. "model.graph.node[3].attribute[0]"
	Offset int    // Byte offset in the input buffer
	Err    error  // Underlying wire error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s at offset %d: %v", ErrMalformed.Error(), e.Path, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrMalformed, e.Err} }
