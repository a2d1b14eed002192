package convert

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for programmatic error checking via errors.Is(). Every *ConvertError wraps
// ErrConvert and one kind sentinel.
var (
	// ErrConvert is wrapped by every conversion failure.
	ErrConvert = errors.New("convert failed")

	// ErrInvalidInput: the model fails validation before conversion.
	ErrInvalidInput = errors.New("invalid input model")

	// ErrInvalidTarget: the target opset is outside the known range, or the model does not
	// import the default domain.
	ErrInvalidTarget = errors.New("invalid target opset")

	// ErrUnsupportedDowngrade: an operator cannot be expressed at the older opset.
	ErrUnsupportedDowngrade = errors.New("unsupported downgrade")

	// ErrUnsupportedUpgrade: an operator cannot be expressed at the newer opset.
	ErrUnsupportedUpgrade = errors.New("unsupported upgrade")

	// ErrPostconditionViolated: the converted model fails validation. This is a defect in an
	// adapter, not in the input.
	ErrPostconditionViolated = errors.New("postcondition violated")
)

// ConvertError describes why a model could not be converted.
// Wraps ErrConvert, Kind and Err for errors.Is() compatibility.
type ConvertError struct {
	Kind   error // One of the kind sentinels above
	OpType string
	Domain string
	From   int64  // Source default-domain opset
	To     int64  // Target default-domain opset
	Msg    string // Deterministic error message
	Err    error  // Underlying error, e.g. a *checker.ValidationError
}

func (e *ConvertError) Error() string {
	if e == nil {
		return ""
	}
	parts := []string{ErrConvert.Error()}
	if e.Kind != nil {
		parts = append(parts, e.Kind.Error())
	}
	if e.From != 0 || e.To != 0 {
		parts = append(parts, fmt.Sprintf("opset %d -> %d", e.From, e.To))
	}
	if e.OpType != "" {
		op := e.OpType
		if e.Domain != "" {
			op = e.Domain + "." + op
		}
		parts = append(parts, op)
	}
	if e.Msg != "" {
		parts = append(parts, e.Msg)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ConvertError) Unwrap() []error {
	errs := []error{ErrConvert}
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
