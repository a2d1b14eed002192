package onnx

import (
	"strconv"
	"strings"
)

// ONNX model structures. Field numbers follow onnx.proto; every message keeps the raw bytes of
// fields it does not model in Unknown so they survive a decode/encode round trip.

// ModelProto is the model envelope: producer metadata, IR version, opset imports and graph.
type ModelProto struct {
	IRVersion       int64               // IR version (e.g., 7, 8, 9)
	ProducerName    string              // Framework name (e.g., "pytorch", "tf")
	ProducerVersion string              // Framework version
	Domain          string              // Model domain
	ModelVersion    int64               // Model version number
	DocString       string              // Model description
	Graph           *GraphProto         // Computation graph
	OpsetImport     []OperatorSetID     // Opset version(s), at most one per domain
	MetadataProps   []StringStringEntry // Key-value metadata
	Unknown         []byte
}

// GraphProto is the computation graph. Nodes are in topological order.
type GraphProto struct {
	Nodes        []NodeProto      // Operation nodes
	Name         string           // Graph name
	Initializers []TensorProto    // Constant tensors
	DocString    string           // Graph description
	Inputs       []ValueInfoProto // Graph inputs
	Outputs      []ValueInfoProto // Graph outputs
	ValueInfo    []ValueInfoProto // Intermediate tensor info (advisory)
	Unknown      []byte
}

// NodeProto is a single operator application. Tensor names are edges; an empty input name
// denotes an omitted optional input.
type NodeProto struct {
	Inputs     []string         // Input tensor names
	Outputs    []string         // Output tensor names
	Name       string           // Node name (optional)
	OpType     string           // Operator type (e.g., "Conv", "MatMul", "Relu")
	Attributes []AttributeProto // Operator attributes
	DocString  string           // Node description
	Domain     string           // Operator domain (empty for default)
	Unknown    []byte
}

// TensorProto is a constant tensor (initializer or attribute value).
type TensorProto struct {
	Dims       []int64   // Tensor shape
	DataType   DataType  // Element data type
	FloatData  []float32 // FLOAT/COMPLEX64 data
	Int32Data  []int32   // INT32/INT16/INT8/UINT16/UINT8/BOOL/FLOAT16 data
	StringData [][]byte  // STRING data
	Int64Data  []int64   // INT64 data
	Name       string    // Tensor name
	RawData    []byte    // Little-endian raw bytes
	DoubleData []float64 // DOUBLE/COMPLEX128 data
	Uint64Data []uint64  // UINT32/UINT64 data
	DocString  string    // Tensor description
	Unknown    []byte
}

// ValueInfoProto names a tensor and declares its type.
type ValueInfoProto struct {
	Name      string     // Tensor name
	Type      *TypeProto // Type information
	DocString string     // Description
	Unknown   []byte
}

// TypeProto describes a value type. Only tensor types are modeled; sequence, map, optional
// and sparse types are preserved opaquely in Unknown.
type TypeProto struct {
	TensorType *TensorTypeProto
	Denotation string
	Unknown    []byte
}

// TensorTypeProto describes tensor element type and shape. A nil Shape means the rank is
// unknown; an empty one is a scalar.
type TensorTypeProto struct {
	ElemType DataType
	Shape    *TensorShapeProto
	Unknown  []byte
}

// TensorShapeProto describes tensor dimensions.
type TensorShapeProto struct {
	Dims    []DimensionProto
	Unknown []byte
}

// DimensionProto is a single dimension: a static value, a symbolic parameter, or neither
// (unbound).
type DimensionProto struct {
	DimValue   int64  // Static dimension value (e.g., 224 for image size)
	DimParam   string // Symbolic dimension name (e.g., "batch_size")
	Denotation string
	HasValue   bool // dim_value is set; distinguishes a static 0 from an unbound dimension
	Unknown    []byte
}

// AttributeProto is a named, typed attribute literal.
type AttributeProto struct {
	Name      string        // Attribute name
	F         float32       // FLOAT value
	I         int64         // INT value
	S         []byte        // STRING value
	T         *TensorProto  // TENSOR value
	G         *GraphProto   // GRAPH value
	Floats    []float32     // FLOATS array
	Ints      []int64       // INTS array
	Strings   [][]byte      // STRINGS array
	Tensors   []TensorProto // TENSORS array
	Graphs    []GraphProto  // GRAPHS array
	DocString string        // Description
	Type      AttributeType // Attribute type
	Unknown   []byte
}

// OperatorSetID identifies an imported opset version.
type OperatorSetID struct {
	Domain  string // Operator domain (empty for default)
	Version int64  // Opset version number
	Unknown []byte
}

// StringStringEntry is a key-value metadata entry.
type StringStringEntry struct {
	Key     string
	Value   string
	Unknown []byte
}

// DataType is a tensor element type (TensorProto.DataType).
type DataType int32

// ONNX data types.
const (
	TensorProtoUndefined      DataType = 0
	TensorProtoFloat          DataType = 1  // float32
	TensorProtoUint8          DataType = 2  // uint8
	TensorProtoInt8           DataType = 3  // int8
	TensorProtoUint16         DataType = 4  // uint16
	TensorProtoInt16          DataType = 5  // int16
	TensorProtoInt32          DataType = 6  // int32
	TensorProtoInt64          DataType = 7  // int64
	TensorProtoString         DataType = 8  // string
	TensorProtoBool           DataType = 9  // bool
	TensorProtoFloat16        DataType = 10 // float16
	TensorProtoDouble         DataType = 11 // float64
	TensorProtoUint32         DataType = 12 // uint32
	TensorProtoUint64         DataType = 13 // uint64
	TensorProtoComplex64      DataType = 14 // complex64
	TensorProtoComplex128     DataType = 15 // complex128
	TensorProtoBfloat16       DataType = 16 // bfloat16
	TensorProtoFloat8E4M3FN   DataType = 17
	TensorProtoFloat8E4M3FNUZ DataType = 18
	TensorProtoFloat8E5M2     DataType = 19
	TensorProtoFloat8E5M2FNUZ DataType = 20
	TensorProtoUint4          DataType = 21
	TensorProtoInt4           DataType = 22
	TensorProtoFloat4E2M1     DataType = 23
)

var dataTypeNames = map[DataType]string{
	TensorProtoFloat:          "FLOAT",
	TensorProtoUint8:          "UINT8",
	TensorProtoInt8:           "INT8",
	TensorProtoUint16:         "UINT16",
	TensorProtoInt16:          "INT16",
	TensorProtoInt32:          "INT32",
	TensorProtoInt64:          "INT64",
	TensorProtoString:         "STRING",
	TensorProtoBool:           "BOOL",
	TensorProtoFloat16:        "FLOAT16",
	TensorProtoDouble:         "DOUBLE",
	TensorProtoUint32:         "UINT32",
	TensorProtoUint64:         "UINT64",
	TensorProtoComplex64:      "COMPLEX64",
	TensorProtoComplex128:     "COMPLEX128",
	TensorProtoBfloat16:       "BFLOAT16",
	TensorProtoFloat8E4M3FN:   "FLOAT8E4M3FN",
	TensorProtoFloat8E4M3FNUZ: "FLOAT8E4M3FNUZ",
	TensorProtoFloat8E5M2:     "FLOAT8E5M2",
	TensorProtoFloat8E5M2FNUZ: "FLOAT8E5M2FNUZ",
	TensorProtoUint4:          "UINT4",
	TensorProtoInt4:           "INT4",
	TensorProtoFloat4E2M1:     "FLOAT4E2M1",
}

// onnxruntime-style element names used in "tensor(<name>)" strings.
var dataTypeTypeStrings = map[DataType]string{
	TensorProtoFloat:      "float",
	TensorProtoUint8:      "uint8",
	TensorProtoInt8:       "int8",
	TensorProtoUint16:     "uint16",
	TensorProtoInt16:      "int16",
	TensorProtoInt32:      "int32",
	TensorProtoInt64:      "int64",
	TensorProtoString:     "string",
	TensorProtoBool:       "bool",
	TensorProtoFloat16:    "float16",
	TensorProtoDouble:     "double",
	TensorProtoUint32:     "uint32",
	TensorProtoUint64:     "uint64",
	TensorProtoComplex64:  "complex64",
	TensorProtoComplex128: "complex128",
	TensorProtoBfloat16:   "bfloat16",
}

// Valid reports whether t is one of the enumerated element types.
func (t DataType) Valid() bool {
	_, ok := dataTypeNames[t]
	return ok
}

// String returns the TensorProto enum name (e.g. "FLOAT").
func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	if t == TensorProtoUndefined {
		return "UNDEFINED"
	}
	return "DataType(" + strconv.FormatInt(int64(t), 10) + ")"
}

// TypeString returns the runtime-style type name, e.g. "tensor(float)".
func (t DataType) TypeString() string {
	if name, ok := dataTypeTypeStrings[t]; ok {
		return "tensor(" + name + ")"
	}
	return "tensor(" + strings.ToLower(t.String()) + ")"
}

// IsFloat reports whether t is a floating point element type.
func (t DataType) IsFloat() bool {
	switch t {
	case TensorProtoFloat, TensorProtoDouble, TensorProtoFloat16, TensorProtoBfloat16:
		return true
	default:
		return false
	}
}

// AttributeType is the attribute value kind (AttributeProto.Type).
type AttributeType int32

// ONNX attribute types.
const (
	AttributeProtoUndefined AttributeType = 0
	AttributeProtoFloat     AttributeType = 1  // FLOAT
	AttributeProtoInt       AttributeType = 2  // INT
	AttributeProtoString    AttributeType = 3  // STRING
	AttributeProtoTensor    AttributeType = 4  // TENSOR
	AttributeProtoGraph     AttributeType = 5  // GRAPH
	AttributeProtoFloats    AttributeType = 6  // FLOATS
	AttributeProtoInts      AttributeType = 7  // INTS
	AttributeProtoStrings   AttributeType = 8  // STRINGS
	AttributeProtoTensors   AttributeType = 9  // TENSORS
	AttributeProtoGraphs    AttributeType = 10 // GRAPHS
)

var attributeTypeNames = [...]string{
	"UNDEFINED", "FLOAT", "INT", "STRING", "TENSOR", "GRAPH",
	"FLOATS", "INTS", "STRINGS", "TENSORS", "GRAPHS",
}

func (t AttributeType) String() string {
	if t >= 0 && int(t) < len(attributeTypeNames) {
		return attributeTypeNames[t]
	}
	return "AttributeType(" + strconv.FormatInt(int64(t), 10) + ")"
}

// ParseAttributeType maps a lower-case type name ("int", "floats", ...) to its AttributeType.
func ParseAttributeType(name string) (AttributeType, bool) {
	for i, n := range attributeTypeNames {
		if i > 0 && strings.ToLower(n) == name {
			return AttributeType(i), true
		}
	}
	return AttributeProtoUndefined, false
}
