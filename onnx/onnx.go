// Package onnx provides ONNX graph composition and opset conversion for Go programs.
//
// Models are decoded from the ONNX protobuf wire format into plain Go structs, validated
// against the operator sets they import, and can be merged into one pipeline or migrated to
// another opset version. No model is ever executed.
//
// # Example Usage
//
//	import "github.com/born-ml/onnxkit/onnx"
//
//	features, err := onnx.ReadFile("features.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	head, err := onnx.ReadFile("head.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Feed the "feat" output of features into the "X" input of head.
//	merged, err := onnx.Merge(features, head, []onnx.Pair{{First: "feat", Second: "X"}}, onnx.MergeOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Express the merged model at opset 13.
//	converted, err := onnx.Convert(merged, 13)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := onnx.WriteFile("pipeline.onnx", converted); err != nil {
//	    log.Fatal(err)
//	}
//
// # Errors
//
// Every operation returns typed errors that match the exported sentinels with [errors.Is]:
// [ErrMalformed] and [ErrCycle] for the codec, [ErrInvalidModel] for validation,
// [ErrCompose] for merging and [ErrConvert] for conversion.
package onnx

import (
	"github.com/born-ml/onnxkit/internal/checker"
	"github.com/born-ml/onnxkit/internal/compose"
	"github.com/born-ml/onnxkit/internal/convert"
	"github.com/born-ml/onnxkit/internal/inspect"
	internalonnx "github.com/born-ml/onnxkit/internal/onnx"
	"github.com/born-ml/onnxkit/internal/onnx/opset"
)

// Graph model.
type (
	Model         = internalonnx.ModelProto
	Graph         = internalonnx.GraphProto
	Node          = internalonnx.NodeProto
	Attribute     = internalonnx.AttributeProto
	Tensor        = internalonnx.TensorProto
	ValueInfo     = internalonnx.ValueInfoProto
	Type          = internalonnx.TypeProto
	Dimension     = internalonnx.DimensionProto
	OperatorSetID = internalonnx.OperatorSetID
	DataType      = internalonnx.DataType
	ModelOption   = internalonnx.ModelOption
)

// Operation inputs and results.
type (
	// Pair binds an output of the first model to an input of the second.
	Pair = compose.Pair
	// MergeOptions relaxes what Merge requires of the io map.
	MergeOptions = compose.Options
	// Report is the result of a successful Check.
	Report = checker.Report
	// Summary describes the input/output contract of a model.
	Summary = inspect.Summary
	// Release is an ONNX release with the IR and opset versions it introduced.
	Release = opset.Release
)

// Typed errors.
type (
	DecodeError     = internalonnx.DecodeError
	ValidationError = checker.ValidationError
	ComposeError    = compose.ComposeError
	ConvertError    = convert.ConvertError
)

// Error sentinels.
var (
	ErrMalformed    = internalonnx.ErrMalformed
	ErrCycle        = internalonnx.ErrCycle
	ErrInvalidModel = checker.ErrInvalidModel
	ErrCompose      = compose.ErrCompose
	ErrConvert      = convert.ErrConvert
)

// DefaultDomain names the default operator domain.
const DefaultDomain = internalonnx.DefaultDomain

// Element types used by the builders.
const (
	Float  = internalonnx.TensorProtoFloat
	Double = internalonnx.TensorProtoDouble
	Int32  = internalonnx.TensorProtoInt32
	Int64  = internalonnx.TensorProtoInt64
	Bool   = internalonnx.TensorProtoBool
)

// Decode parses an ONNX model from its protobuf encoding.
func Decode(data []byte) (*Model, error) { return internalonnx.Decode(data) }

// Encode serializes a model. Decode(Encode(m)) is structurally equal to m.
func Encode(m *Model) []byte { return internalonnx.Encode(m) }

// ReadFile reads and decodes the model stored at path.
func ReadFile(path string) (*Model, error) { return internalonnx.ReadFile(path) }

// WriteFile encodes m and writes it to path.
func WriteFile(path string, m *Model) error { return internalonnx.WriteFile(path, m) }

// Check validates m against the reference operator sets.
func Check(m *Model) (*Report, error) { return checker.Check(m) }

// Merge composes first and second into one model. See [compose.Composer.Merge].
func Merge(first, second *Model, ioMap []Pair, opts MergeOptions) (*Model, error) {
	return compose.Merge(first, second, ioMap, opts)
}

// Convert migrates the default-domain nodes of m to opset target.
//
// Round trips are not guaranteed to be lossless: converting a converted model back may
// yield a structurally different graph computing the same function.
func Convert(m *Model, target int64) (*Model, error) { return convert.Convert(m, target) }

// Summarize describes the inputs, outputs and operator sets of m.
func Summarize(m *Model) *Summary { return inspect.Summarize(m) }

// SortTopologically returns a copy of g whose nodes follow their producers.
func SortTopologically(g *Graph) (*Graph, error) { return internalonnx.SortTopologically(g) }

// LatestOpset returns the newest known opset version of domain, or 0 for unknown domains.
func LatestOpset(domain string) int64 { return opset.LatestOpset(domain) }

// Releases lists the known ONNX releases, oldest first.
func Releases() []Release { return opset.Releases() }

// Builders.

// MakeNode creates a node of the default domain.
func MakeNode(opType string, inputs, outputs []string, attrs ...Attribute) Node {
	return internalonnx.MakeNode(opType, inputs, outputs, attrs...)
}

// MakeTensorValueInfo declares a tensor. Nil dims leave the rank unknown.
func MakeTensorValueInfo(name string, elem DataType, dims []Dimension) ValueInfo {
	return internalonnx.MakeTensorValueInfo(name, elem, dims)
}

// MakeGraph assembles a graph.
func MakeGraph(name string, nodes []Node, inputs, outputs []ValueInfo, initializers ...Tensor) *Graph {
	return internalonnx.MakeGraph(name, nodes, inputs, outputs, initializers...)
}

// MakeModel wraps graph in a model importing the newest default-domain opset.
func MakeModel(graph *Graph, opts ...ModelOption) *Model {
	return internalonnx.MakeModel(graph, opts...)
}

// WithOpset imports version of domain.
func WithOpset(domain string, version int64) ModelOption {
	return internalonnx.WithOpset(domain, version)
}

// WithIRVersion sets the IR version.
func WithIRVersion(v int64) ModelOption { return internalonnx.WithIRVersion(v) }

// WithProducer sets the producer metadata.
func WithProducer(name, version string) ModelOption {
	return internalonnx.WithProducer(name, version)
}

// Dims returns static dimensions.
func Dims(values ...int64) []Dimension { return internalonnx.Dims(values...) }

// SymbolicDim returns a named dimension such as "N".
func SymbolicDim(param string) Dimension { return internalonnx.SymbolicDim(param) }

// Attribute constructors.

func AttrInt(name string, v int64) Attribute         { return internalonnx.AttrInt(name, v) }
func AttrFloat(name string, v float32) Attribute     { return internalonnx.AttrFloat(name, v) }
func AttrString(name, v string) Attribute            { return internalonnx.AttrString(name, v) }
func AttrInts(name string, v ...int64) Attribute     { return internalonnx.AttrInts(name, v...) }
func AttrFloats(name string, v ...float32) Attribute { return internalonnx.AttrFloats(name, v...) }
func AttrGraph(name string, g *Graph) Attribute      { return internalonnx.AttrGraph(name, g) }

// Float32Tensor creates an initializer.
func Float32Tensor(name string, dims []int64, values []float32) Tensor {
	return internalonnx.Float32Tensor(name, dims, values)
}

// Int64Tensor creates an initializer.
func Int64Tensor(name string, dims []int64, values []int64) Tensor {
	return internalonnx.Int64Tensor(name, dims, values)
}
