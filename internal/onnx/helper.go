package onnx

import (
	"encoding/binary"
	"math"
)

// Producer metadata written by MakeModel.
const (
	ProducerName    = "onnxkit"
	ProducerVersion = "0.1.0"
)

// MakeNode builds a node in the default domain.
//
// Example:
//
//	softmax := onnx.MakeNode("Softmax", []string{"X"}, []string{"Y"}, onnx.AttrInt("axis", -1))
func MakeNode(opType string, inputs, outputs []string, attrs ...AttributeProto) NodeProto {
	node := NodeProto{
		OpType:  opType,
		Inputs:  inputs,
		Outputs: outputs,
	}
	if len(attrs) > 0 {
		node.Attributes = attrs
	}
	return node
}

// Dim returns a static dimension.
func Dim(v int64) DimensionProto {
	return DimensionProto{DimValue: v, HasValue: true}
}

// SymbolicDim returns a named symbolic dimension.
func SymbolicDim(param string) DimensionProto {
	return DimensionProto{DimParam: param}
}

// Dims returns static dimensions for every value.
func Dims(values ...int64) []DimensionProto {
	dims := make([]DimensionProto, len(values))
	for i, v := range values {
		dims[i] = Dim(v)
	}
	return dims
}

// MakeTensorType builds a tensor type. A nil dims slice leaves the rank unknown; use an
// empty non-nil slice for a scalar.
func MakeTensorType(elemType DataType, dims []DimensionProto) *TypeProto {
	tt := &TensorTypeProto{ElemType: elemType}
	if dims != nil {
		tt.Shape = &TensorShapeProto{}
		if len(dims) > 0 {
			tt.Shape.Dims = dims
		}
	}
	return &TypeProto{TensorType: tt}
}

// MakeTensorValueInfo builds a value info for a tensor.
func MakeTensorValueInfo(name string, elemType DataType, dims []DimensionProto) ValueInfoProto {
	return ValueInfoProto{Name: name, Type: MakeTensorType(elemType, dims)}
}

// MakeGraph builds a graph.
func MakeGraph(name string, nodes []NodeProto, inputs, outputs []ValueInfoProto, initializers ...TensorProto) *GraphProto {
	g := &GraphProto{
		Name:    name,
		Nodes:   nodes,
		Inputs:  inputs,
		Outputs: outputs,
	}
	if len(initializers) > 0 {
		g.Initializers = initializers
	}
	return g
}

// ModelOption customizes MakeModel.
type ModelOption func(*ModelProto)

// WithIRVersion sets the model IR version.
func WithIRVersion(v int64) ModelOption {
	return func(m *ModelProto) { m.IRVersion = v }
}

// WithOpset sets the imported version of a domain.
func WithOpset(domain string, version int64) ModelOption {
	return func(m *ModelProto) { m.SetOpsetVersion(domain, version) }
}

// WithProducer overrides the producer metadata.
func WithProducer(name, version string) ModelOption {
	return func(m *ModelProto) {
		m.ProducerName = name
		m.ProducerVersion = version
	}
}

// Defaults used by MakeModel when no option overrides them. They are those of ONNX 1.16.
const (
	DefaultIRVersion    int64 = 10
	DefaultOpsetVersion int64 = 21
)

// MakeModel wraps graph in a model envelope importing the default domain.
func MakeModel(graph *GraphProto, opts ...ModelOption) *ModelProto {
	m := &ModelProto{
		IRVersion:       DefaultIRVersion,
		ProducerName:    ProducerName,
		ProducerVersion: ProducerVersion,
		Graph:           graph,
		OpsetImport:     []OperatorSetID{{Domain: DefaultDomain, Version: DefaultOpsetVersion}},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AttrInt builds an INT attribute.
func AttrInt(name string, v int64) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoInt, I: v}
}

// AttrFloat builds a FLOAT attribute.
func AttrFloat(name string, v float32) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoFloat, F: v}
}

// AttrString builds a STRING attribute.
func AttrString(name, v string) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoString, S: []byte(v)}
}

// AttrInts builds an INTS attribute.
func AttrInts(name string, v ...int64) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoInts, Ints: v}
}

// AttrFloats builds a FLOATS attribute.
func AttrFloats(name string, v ...float32) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoFloats, Floats: v}
}

// AttrTensor builds a TENSOR attribute.
func AttrTensor(name string, t TensorProto) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoTensor, T: &t}
}

// AttrGraph builds a GRAPH attribute.
func AttrGraph(name string, g *GraphProto) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoGraph, G: g}
}

// Int64Tensor builds an INT64 tensor stored as raw little-endian bytes.
func Int64Tensor(name string, dims []int64, values []int64) TensorProto {
	raw := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[8*i:], uint64(v)) //nolint:gosec // G115: two's complement bit pattern.
	}
	return TensorProto{Name: name, DataType: TensorProtoInt64, Dims: dims, RawData: nilIfEmpty(raw)}
}

// Float32Tensor builds a FLOAT tensor stored as raw little-endian bytes.
func Float32Tensor(name string, dims []int64, values []float32) TensorProto {
	raw := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	return TensorProto{Name: name, DataType: TensorProtoFloat, Dims: dims, RawData: nilIfEmpty(raw)}
}

// Float64Tensor builds a DOUBLE tensor stored as raw little-endian bytes.
func Float64Tensor(name string, dims []int64, values []float64) TensorProto {
	raw := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
	}
	return TensorProto{Name: name, DataType: TensorProtoDouble, Dims: dims, RawData: nilIfEmpty(raw)}
}

func nilIfEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
