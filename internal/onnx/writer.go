package onnx

import (
	"fmt"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// WriteFile encodes model and writes it to path.
func WriteFile(path string, model *ModelProto) error {
	if err := os.WriteFile(path, Encode(model), 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Encode serializes model to the ONNX protobuf encoding.
//
// Fields are written in ascending field-number order with each message's unknown fields last,
// using the packing onnx.proto declares, so Decode(Encode(m)) reproduces m field-for-field and
// Encode(Decode(Encode(m))) reproduces the same bytes. Encode never fails.
func Encode(model *ModelProto) []byte {
	if model == nil {
		return nil
	}
	return appendModelProto(nil, model)
}

func appendModelProto(b []byte, m *ModelProto) []byte {
	b = appendInt64(b, 1, m.IRVersion)
	b = appendString(b, 2, m.ProducerName)
	b = appendString(b, 3, m.ProducerVersion)
	b = appendString(b, 4, m.Domain)
	b = appendInt64(b, 5, m.ModelVersion)
	b = appendString(b, 6, m.DocString)
	if m.Graph != nil {
		b = appendMessage(b, 7, appendGraphProto(nil, m.Graph))
	}
	for i := range m.OpsetImport {
		b = appendMessage(b, 8, appendOperatorSetID(nil, &m.OpsetImport[i]))
	}
	for i := range m.MetadataProps {
		b = appendMessage(b, 14, appendStringStringEntry(nil, &m.MetadataProps[i]))
	}
	return append(b, m.Unknown...)
}

func appendGraphProto(b []byte, m *GraphProto) []byte {
	for i := range m.Nodes {
		b = appendMessage(b, 1, appendNodeProto(nil, &m.Nodes[i]))
	}
	b = appendString(b, 2, m.Name)
	for i := range m.Initializers {
		b = appendMessage(b, 5, appendTensorProto(nil, &m.Initializers[i]))
	}
	b = appendString(b, 10, m.DocString)
	for i := range m.Inputs {
		b = appendMessage(b, 11, appendValueInfoProto(nil, &m.Inputs[i]))
	}
	for i := range m.Outputs {
		b = appendMessage(b, 12, appendValueInfoProto(nil, &m.Outputs[i]))
	}
	for i := range m.ValueInfo {
		b = appendMessage(b, 13, appendValueInfoProto(nil, &m.ValueInfo[i]))
	}
	return append(b, m.Unknown...)
}

func appendNodeProto(b []byte, m *NodeProto) []byte {
	// Inputs and outputs are positional: empty names are written, not skipped.
	for _, in := range m.Inputs {
		b = appendAlwaysString(b, 1, in)
	}
	for _, out := range m.Outputs {
		b = appendAlwaysString(b, 2, out)
	}
	b = appendString(b, 3, m.Name)
	b = appendString(b, 4, m.OpType)
	for i := range m.Attributes {
		b = appendMessage(b, 5, appendAttributeProto(nil, &m.Attributes[i]))
	}
	b = appendString(b, 6, m.DocString)
	b = appendString(b, 7, m.Domain)
	return append(b, m.Unknown...)
}

func appendTensorProto(b []byte, m *TensorProto) []byte {
	for _, d := range m.Dims {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d)) //nolint:gosec // G115: protobuf int64 two's complement.
	}
	b = appendInt64(b, 2, int64(m.DataType))
	if len(m.FloatData) > 0 {
		packed := make([]byte, 0, 4*len(m.FloatData))
		for _, f := range m.FloatData {
			packed = protowire.AppendFixed32(packed, math.Float32bits(f))
		}
		b = appendMessage(b, 4, packed)
	}
	b = appendPackedVarints(b, 5, m.Int32Data)
	for _, s := range m.StringData {
		b = protowire.AppendTag(b, 6, protowire.BytesType)
		b = protowire.AppendBytes(b, s)
	}
	b = appendPackedVarints(b, 7, m.Int64Data)
	b = appendString(b, 8, m.Name)
	if len(m.RawData) > 0 {
		b = appendMessage(b, 9, m.RawData)
	}
	if len(m.DoubleData) > 0 {
		packed := make([]byte, 0, 8*len(m.DoubleData))
		for _, f := range m.DoubleData {
			packed = protowire.AppendFixed64(packed, math.Float64bits(f))
		}
		b = appendMessage(b, 10, packed)
	}
	b = appendPackedVarints(b, 11, m.Uint64Data)
	b = appendString(b, 12, m.DocString)
	return append(b, m.Unknown...)
}

func appendValueInfoProto(b []byte, m *ValueInfoProto) []byte {
	b = appendString(b, 1, m.Name)
	if m.Type != nil {
		b = appendMessage(b, 2, appendTypeProto(nil, m.Type))
	}
	b = appendString(b, 3, m.DocString)
	return append(b, m.Unknown...)
}

func appendTypeProto(b []byte, m *TypeProto) []byte {
	if m.TensorType != nil {
		b = appendMessage(b, 1, appendTensorTypeProto(nil, m.TensorType))
	}
	b = appendString(b, 6, m.Denotation)
	return append(b, m.Unknown...)
}

func appendTensorTypeProto(b []byte, m *TensorTypeProto) []byte {
	b = appendInt64(b, 1, int64(m.ElemType))
	if m.Shape != nil {
		b = appendMessage(b, 2, appendTensorShapeProto(nil, m.Shape))
	}
	return append(b, m.Unknown...)
}

func appendTensorShapeProto(b []byte, m *TensorShapeProto) []byte {
	for i := range m.Dims {
		b = appendMessage(b, 1, appendDimensionProto(nil, &m.Dims[i]))
	}
	return append(b, m.Unknown...)
}

func appendDimensionProto(b []byte, m *DimensionProto) []byte {
	if m.HasValue {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.DimValue)) //nolint:gosec // G115: protobuf int64 two's complement.
	}
	b = appendString(b, 2, m.DimParam)
	b = appendString(b, 3, m.Denotation)
	return append(b, m.Unknown...)
}

//nolint:gocyclo,cyclop // One branch per attribute field.
func appendAttributeProto(b []byte, m *AttributeProto) []byte {
	b = appendString(b, 1, m.Name)
	// Scalar values are written whenever the attribute type says they are the value, even
	// when zero.
	if m.Type == AttributeProtoFloat || (m.Type == AttributeProtoUndefined && m.F != 0) {
		b = protowire.AppendTag(b, 2, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(m.F))
	}
	if m.Type == AttributeProtoInt || (m.Type == AttributeProtoUndefined && m.I != 0) {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.I)) //nolint:gosec // G115: protobuf int64 two's complement.
	}
	// A nil S is absent, an empty non-nil S is a present empty string.
	if m.Type == AttributeProtoString || m.S != nil {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, m.S)
	}
	if m.T != nil {
		b = appendMessage(b, 5, appendTensorProto(nil, m.T))
	}
	if m.G != nil {
		b = appendMessage(b, 6, appendGraphProto(nil, m.G))
	}
	for _, f := range m.Floats {
		b = protowire.AppendTag(b, 7, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(f))
	}
	for _, v := range m.Ints {
		b = protowire.AppendTag(b, 8, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v)) //nolint:gosec // G115: protobuf int64 two's complement.
	}
	for _, s := range m.Strings {
		b = protowire.AppendTag(b, 9, protowire.BytesType)
		b = protowire.AppendBytes(b, s)
	}
	for i := range m.Tensors {
		b = appendMessage(b, 10, appendTensorProto(nil, &m.Tensors[i]))
	}
	for i := range m.Graphs {
		b = appendMessage(b, 11, appendGraphProto(nil, &m.Graphs[i]))
	}
	b = appendString(b, 13, m.DocString)
	b = appendInt64(b, 20, int64(m.Type))
	return append(b, m.Unknown...)
}

func appendOperatorSetID(b []byte, m *OperatorSetID) []byte {
	b = appendAlwaysString(b, 1, m.Domain)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Version)) //nolint:gosec // G115: protobuf int64 two's complement.
	return append(b, m.Unknown...)
}

func appendStringStringEntry(b []byte, m *StringStringEntry) []byte {
	b = appendAlwaysString(b, 1, m.Key)
	b = appendAlwaysString(b, 2, m.Value)
	return append(b, m.Unknown...)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	return appendAlwaysString(b, num, s)
}

func appendAlwaysString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v)) //nolint:gosec // G115: protobuf int64 two's complement.
}

func appendPackedVarints[T int32 | int64 | uint64](b []byte, num protowire.Number, vals []T) []byte {
	if len(vals) == 0 {
		return b
	}
	var packed []byte
	for _, v := range vals {
		packed = protowire.AppendVarint(packed, uint64(v)) //nolint:gosec // G115: protobuf sign extension.
	}
	return appendMessage(b, num, packed)
}
