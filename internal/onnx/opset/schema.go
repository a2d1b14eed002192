// Package opset holds the operator schemas and the release table that tie ONNX releases,
// IR versions and opset versions together.
package opset

import (
	"math"

	"github.com/born-ml/onnxkit/internal/onnx"
)

// Unbounded is the MaxInputs/MaxOutputs value of a variadic operator.
const Unbounded = -1

// Attribute describes one attribute an operator version accepts.
type Attribute struct {
	Name     string
	Type     onnx.AttributeType
	Required bool
	Default  any // int64, float64 or string; nil when the attribute has no default
}

// Schema is the signature of an operator from SinceVersion until the next entry.
type Schema struct {
	Domain       string
	Name         string
	SinceVersion int64
	Deprecated   bool
	Attributes   map[string]Attribute
	MinInputs    int
	MaxInputs    int
	MinOutputs   int
	MaxOutputs   int
}

// AcceptsInputs reports whether n inputs (trailing omitted ones excluded) fit the schema.
func (s *Schema) AcceptsInputs(n int) bool {
	return withinArity(n, s.MinInputs, s.MaxInputs)
}

// AcceptsOutputs reports whether n outputs fit the schema.
func (s *Schema) AcceptsOutputs(n int) bool {
	return withinArity(n, s.MinOutputs, s.MaxOutputs)
}

func withinArity(n, lo, hi int) bool {
	return n >= lo && (hi == Unbounded || n <= hi)
}

// HasAttribute reports whether name is a declared attribute.
func (s *Schema) HasAttribute(name string) bool {
	_, ok := s.Attributes[name]
	return ok
}

// DefaultInt returns the declared default of an integer attribute, or fallback.
func (s *Schema) DefaultInt(name string, fallback int64) int64 {
	if a, ok := s.Attributes[name]; ok {
		switch v := a.Default.(type) {
		case int64:
			return v
		case float64:
			if v == math.Trunc(v) {
				return int64(v)
			}
		}
	}
	return fallback
}

// DefaultFloat returns the declared default of a float attribute, or fallback.
func (s *Schema) DefaultFloat(name string, fallback float64) float64 {
	if a, ok := s.Attributes[name]; ok {
		switch v := a.Default.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		}
	}
	return fallback
}

// DefaultString returns the declared default of a string attribute, or fallback.
func (s *Schema) DefaultString(name, fallback string) string {
	if a, ok := s.Attributes[name]; ok {
		if v, ok := a.Default.(string); ok {
			return v
		}
	}
	return fallback
}
