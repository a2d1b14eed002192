package compose

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for programmatic error checking via errors.Is(). Every *ComposeError wraps
// ErrCompose and one kind sentinel.
var (
	// ErrCompose is wrapped by every composition failure.
	ErrCompose = errors.New("compose failed")

	// ErrInvalidInput: one of the models to merge fails validation.
	ErrInvalidInput = errors.New("invalid input model")

	// ErrUnresolvedInput: a required input of the second model is not bound by the io map.
	ErrUnresolvedInput = errors.New("unresolved input")

	// ErrIncompatibleIR: the models declare different IR versions.
	ErrIncompatibleIR = errors.New("incompatible IR version")

	// ErrIncompatibleOpset: a model is not valid under the merged (per-domain maximum) opsets.
	ErrIncompatibleOpset = errors.New("incompatible opset")

	// ErrInvalidIOMap: an io map entry does not name a declared output/input, or binds an
	// input twice.
	ErrInvalidIOMap = errors.New("invalid io map")

	// ErrTypeMismatch: an io map pair connects tensors of incompatible types.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInternalInconsistency: the merged model fails validation. This is a defect in the
	// composer, not in the inputs.
	ErrInternalInconsistency = errors.New("internal inconsistency")
)

// Side names which input model an error is about.
type Side string

// Model sides.
const (
	First  Side = "first"
	Second Side = "second"
)

// ComposeError describes why two models could not be merged.
// Wraps ErrCompose, Kind and Err for errors.Is() compatibility.
type ComposeError struct {
	Kind   error  // One of the kind sentinels above
	Side   Side   // Model the error is about, if any
	Tensor string // Offending tensor name, if any
	Msg    string // Deterministic error message
	Err    error  // Underlying error, e.g. a *checker.ValidationError
}

func (e *ComposeError) Error() string {
	if e == nil {
		return ""
	}
	parts := []string{ErrCompose.Error()}
	if e.Kind != nil {
		parts = append(parts, e.Kind.Error())
	}
	if e.Side != "" {
		parts = append(parts, string(e.Side)+" model")
	}
	if e.Tensor != "" {
		parts = append(parts, fmt.Sprintf("%q", e.Tensor))
	}
	if e.Msg != "" {
		parts = append(parts, e.Msg)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ComposeError) Unwrap() []error {
	errs := []error{ErrCompose}
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
