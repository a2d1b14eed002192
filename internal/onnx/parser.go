package onnx

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// maxDepth bounds message nesting (graphs inside attributes inside graphs...).
const maxDepth = 100

// ReadFile decodes an ONNX model from file.
//
//nolint:gosec // G304: Path is provided by user, file inclusion is intentional for ONNX model loading
func ReadFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Decode(data)
}

// Decode parses an ONNX model from its protobuf encoding.
//
// Fields this package does not model are kept verbatim in the Unknown slot of the enclosing
// message. Decoded byte slices never alias data.
func Decode(data []byte) (*ModelProto, error) {
	p := &parser{data: data, path: "model"}
	model := &ModelProto{}
	if err := p.readModelProto(model); err != nil {
		return nil, err
	}
	return model, nil
}

// parser decodes one length-delimited message. base is the offset of data inside the
// top-level buffer, used for error reporting.
type parser struct {
	data  []byte
	pos   int
	base  int
	path  string
	depth int
}

func (p *parser) errorf(format string, args ...any) error {
	return &DecodeError{Path: p.path, Offset: p.base + p.pos, Err: fmt.Errorf(format, args...)}
}

func (p *parser) wireError(n int) error {
	return &DecodeError{Path: p.path, Offset: p.base + p.pos, Err: protowire.ParseError(n)}
}

// readModelProto reads ModelProto message.
//
//nolint:gocognit,gocyclo,cyclop,funlen // Protobuf parsing requires field-by-field switch logic
func (p *parser) readModelProto(m *ModelProto) error {
	for p.pos < len(p.data) {
		num, typ, start, err := p.readTag()
		if err != nil {
			return err
		}

		switch {
		case num == 1 && typ == protowire.VarintType: // ir_version
			m.IRVersion, err = p.readInt64()
		case num == 2 && typ == protowire.BytesType: // producer_name
			m.ProducerName, err = p.readString()
		case num == 3 && typ == protowire.BytesType: // producer_version
			m.ProducerVersion, err = p.readString()
		case num == 4 && typ == protowire.BytesType: // domain
			m.Domain, err = p.readString()
		case num == 5 && typ == protowire.VarintType: // model_version
			m.ModelVersion, err = p.readInt64()
		case num == 6 && typ == protowire.BytesType: // doc_string
			m.DocString, err = p.readString()
		case num == 7 && typ == protowire.BytesType: // graph
			sub, err2 := p.readSub("graph")
			if err2 != nil {
				return err2
			}
			m.Graph = &GraphProto{}
			err = sub.readGraphProto(m.Graph)
		case num == 8 && typ == protowire.BytesType: // opset_import
			sub, err2 := p.readSub(fmt.Sprintf("opset_import[%d]", len(m.OpsetImport)))
			if err2 != nil {
				return err2
			}
			opset := OperatorSetID{}
			if err = sub.readOperatorSetID(&opset); err == nil {
				m.OpsetImport = append(m.OpsetImport, opset)
			}
		case num == 14 && typ == protowire.BytesType: // metadata_props
			sub, err2 := p.readSub(fmt.Sprintf("metadata_props[%d]", len(m.MetadataProps)))
			if err2 != nil {
				return err2
			}
			entry := StringStringEntry{}
			if err = sub.readStringStringEntry(&entry); err == nil {
				m.MetadataProps = append(m.MetadataProps, entry)
			}
		default:
			m.Unknown, err = p.skipField(m.Unknown, num, typ, start)
		}

		if err != nil {
			return err
		}
	}
	return nil
}

// readGraphProto reads GraphProto message.
//
//nolint:gocognit,gocyclo,cyclop,funlen // Protobuf parsing requires field-by-field switch logic
func (p *parser) readGraphProto(m *GraphProto) error {
	for p.pos < len(p.data) {
		num, typ, start, err := p.readTag()
		if err != nil {
			return err
		}

		switch {
		case num == 1 && typ == protowire.BytesType: // node
			sub, err2 := p.readSub(fmt.Sprintf("node[%d]", len(m.Nodes)))
			if err2 != nil {
				return err2
			}
			node := NodeProto{}
			if err = sub.readNodeProto(&node); err == nil {
				m.Nodes = append(m.Nodes, node)
			}
		case num == 2 && typ == protowire.BytesType: // name
			m.Name, err = p.readString()
		case num == 5 && typ == protowire.BytesType: // initializer
			sub, err2 := p.readSub(fmt.Sprintf("initializer[%d]", len(m.Initializers)))
			if err2 != nil {
				return err2
			}
			tensor := TensorProto{}
			if err = sub.readTensorProto(&tensor); err == nil {
				m.Initializers = append(m.Initializers, tensor)
			}
		case num == 10 && typ == protowire.BytesType: // doc_string
			m.DocString, err = p.readString()
		case num == 11 && typ == protowire.BytesType: // input
			m.Inputs, err = p.readValueInfoList(m.Inputs, "input")
		case num == 12 && typ == protowire.BytesType: // output
			m.Outputs, err = p.readValueInfoList(m.Outputs, "output")
		case num == 13 && typ == protowire.BytesType: // value_info
			m.ValueInfo, err = p.readValueInfoList(m.ValueInfo, "value_info")
		default:
			m.Unknown, err = p.skipField(m.Unknown, num, typ, start)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) readValueInfoList(list []ValueInfoProto, field string) ([]ValueInfoProto, error) {
	sub, err := p.readSub(fmt.Sprintf("%s[%d]", field, len(list)))
	if err != nil {
		return list, err
	}
	vi := ValueInfoProto{}
	if err := sub.readValueInfoProto(&vi); err != nil {
		return list, err
	}
	return append(list, vi), nil
}

// readNodeProto reads NodeProto message.
//
//nolint:gocognit,gocyclo,cyclop // Protobuf parsing requires field-by-field switch logic
func (p *parser) readNodeProto(m *NodeProto) error {
	for p.pos < len(p.data) {
		num, typ, start, err := p.readTag()
		if err != nil {
			return err
		}

		switch {
		case num == 1 && typ == protowire.BytesType: // input
			var s string
			if s, err = p.readString(); err == nil {
				m.Inputs = append(m.Inputs, s)
			}
		case num == 2 && typ == protowire.BytesType: // output
			var s string
			if s, err = p.readString(); err == nil {
				m.Outputs = append(m.Outputs, s)
			}
		case num == 3 && typ == protowire.BytesType: // name
			m.Name, err = p.readString()
		case num == 4 && typ == protowire.BytesType: // op_type
			m.OpType, err = p.readString()
		case num == 5 && typ == protowire.BytesType: // attribute
			sub, err2 := p.readSub(fmt.Sprintf("attribute[%d]", len(m.Attributes)))
			if err2 != nil {
				return err2
			}
			attr := AttributeProto{}
			if err = sub.readAttributeProto(&attr); err == nil {
				m.Attributes = append(m.Attributes, attr)
			}
		case num == 6 && typ == protowire.BytesType: // doc_string
			m.DocString, err = p.readString()
		case num == 7 && typ == protowire.BytesType: // domain
			m.Domain, err = p.readString()
		default:
			m.Unknown, err = p.skipField(m.Unknown, num, typ, start)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readTensorProto reads TensorProto message.
//
//nolint:gocognit,gocyclo,cyclop,funlen // Protobuf parsing requires field-by-field switch logic
func (p *parser) readTensorProto(m *TensorProto) error {
	for p.pos < len(p.data) {
		num, typ, start, err := p.readTag()
		if err != nil {
			return err
		}

		switch {
		case num == 1 && isVarintList(typ): // dims
			m.Dims, err = readVarints(p, typ, m.Dims, func(v uint64) int64 { return int64(v) }) //nolint:gosec // G115: protobuf int64 two's complement.
		case num == 2 && typ == protowire.VarintType: // data_type
			var v int64
			v, err = p.readInt64()
			m.DataType = DataType(v) //nolint:gosec // G115: enum fits in int32.
		case num == 4 && (typ == protowire.BytesType || typ == protowire.Fixed32Type): // float_data
			m.FloatData, err = p.readFloats(typ, m.FloatData)
		case num == 5 && isVarintList(typ): // int32_data
			m.Int32Data, err = readVarints(p, typ, m.Int32Data, func(v uint64) int32 { return int32(v) }) //nolint:gosec // G115: protobuf int32 truncation.
		case num == 6 && typ == protowire.BytesType: // string_data
			var b []byte
			if b, err = p.readBytes(); err == nil {
				m.StringData = append(m.StringData, b)
			}
		case num == 7 && isVarintList(typ): // int64_data
			m.Int64Data, err = readVarints(p, typ, m.Int64Data, func(v uint64) int64 { return int64(v) }) //nolint:gosec // G115: protobuf int64 two's complement.
		case num == 8 && typ == protowire.BytesType: // name
			m.Name, err = p.readString()
		case num == 9 && typ == protowire.BytesType: // raw_data
			m.RawData, err = p.readBytes()
		case num == 10 && (typ == protowire.BytesType || typ == protowire.Fixed64Type): // double_data
			m.DoubleData, err = p.readDoubles(typ, m.DoubleData)
		case num == 11 && isVarintList(typ): // uint64_data
			m.Uint64Data, err = readVarints(p, typ, m.Uint64Data, func(v uint64) uint64 { return v })
		case num == 12 && typ == protowire.BytesType: // doc_string
			m.DocString, err = p.readString()
		default:
			m.Unknown, err = p.skipField(m.Unknown, num, typ, start)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readValueInfoProto reads ValueInfoProto message.
func (p *parser) readValueInfoProto(m *ValueInfoProto) error {
	for p.pos < len(p.data) {
		num, typ, start, err := p.readTag()
		if err != nil {
			return err
		}

		switch {
		case num == 1 && typ == protowire.BytesType: // name
			m.Name, err = p.readString()
		case num == 2 && typ == protowire.BytesType: // type
			sub, err2 := p.readSub("type")
			if err2 != nil {
				return err2
			}
			m.Type = &TypeProto{}
			err = sub.readTypeProto(m.Type)
		case num == 3 && typ == protowire.BytesType: // doc_string
			m.DocString, err = p.readString()
		default:
			m.Unknown, err = p.skipField(m.Unknown, num, typ, start)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readTypeProto reads TypeProto message.
func (p *parser) readTypeProto(m *TypeProto) error {
	for p.pos < len(p.data) {
		num, typ, start, err := p.readTag()
		if err != nil {
			return err
		}

		switch {
		case num == 1 && typ == protowire.BytesType: // tensor_type
			sub, err2 := p.readSub("tensor_type")
			if err2 != nil {
				return err2
			}
			m.TensorType = &TensorTypeProto{}
			err = sub.readTensorTypeProto(m.TensorType)
		case num == 6 && typ == protowire.BytesType: // denotation
			m.Denotation, err = p.readString()
		default:
			m.Unknown, err = p.skipField(m.Unknown, num, typ, start)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readTensorTypeProto reads TypeProto.Tensor message.
func (p *parser) readTensorTypeProto(m *TensorTypeProto) error {
	for p.pos < len(p.data) {
		num, typ, start, err := p.readTag()
		if err != nil {
			return err
		}

		switch {
		case num == 1 && typ == protowire.VarintType: // elem_type
			var v int64
			v, err = p.readInt64()
			m.ElemType = DataType(v) //nolint:gosec // G115: enum fits in int32.
		case num == 2 && typ == protowire.BytesType: // shape
			sub, err2 := p.readSub("shape")
			if err2 != nil {
				return err2
			}
			m.Shape = &TensorShapeProto{}
			err = sub.readTensorShapeProto(m.Shape)
		default:
			m.Unknown, err = p.skipField(m.Unknown, num, typ, start)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readTensorShapeProto reads TensorShapeProto message.
func (p *parser) readTensorShapeProto(m *TensorShapeProto) error {
	for p.pos < len(p.data) {
		num, typ, start, err := p.readTag()
		if err != nil {
			return err
		}

		switch {
		case num == 1 && typ == protowire.BytesType: // dim
			sub, err2 := p.readSub(fmt.Sprintf("dim[%d]", len(m.Dims)))
			if err2 != nil {
				return err2
			}
			dim := DimensionProto{}
			if err = sub.readDimensionProto(&dim); err == nil {
				m.Dims = append(m.Dims, dim)
			}
		default:
			m.Unknown, err = p.skipField(m.Unknown, num, typ, start)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readDimensionProto reads TensorShapeProto.Dimension message.
func (p *parser) readDimensionProto(m *DimensionProto) error {
	for p.pos < len(p.data) {
		num, typ, start, err := p.readTag()
		if err != nil {
			return err
		}

		switch {
		case num == 1 && typ == protowire.VarintType: // dim_value
			m.DimValue, err = p.readInt64()
			m.HasValue = true
		case num == 2 && typ == protowire.BytesType: // dim_param
			m.DimParam, err = p.readString()
		case num == 3 && typ == protowire.BytesType: // denotation
			m.Denotation, err = p.readString()
		default:
			m.Unknown, err = p.skipField(m.Unknown, num, typ, start)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readAttributeProto reads AttributeProto message.
//
//nolint:gocognit,gocyclo,cyclop,funlen // Protobuf parsing requires field-by-field switch logic
func (p *parser) readAttributeProto(m *AttributeProto) error {
	for p.pos < len(p.data) {
		num, typ, start, err := p.readTag()
		if err != nil {
			return err
		}

		switch {
		case num == 1 && typ == protowire.BytesType: // name
			m.Name, err = p.readString()
		case num == 2 && typ == protowire.Fixed32Type: // f
			m.F, err = p.readFloat32()
		case num == 3 && typ == protowire.VarintType: // i
			m.I, err = p.readInt64()
		case num == 4 && typ == protowire.BytesType: // s
			m.S, err = p.readBytes()
		case num == 5 && typ == protowire.BytesType: // t
			sub, err2 := p.readSub("t")
			if err2 != nil {
				return err2
			}
			m.T = &TensorProto{}
			err = sub.readTensorProto(m.T)
		case num == 6 && typ == protowire.BytesType: // g
			sub, err2 := p.readSub("g")
			if err2 != nil {
				return err2
			}
			m.G = &GraphProto{}
			err = sub.readGraphProto(m.G)
		case num == 7 && (typ == protowire.BytesType || typ == protowire.Fixed32Type): // floats
			m.Floats, err = p.readFloats(typ, m.Floats)
		case num == 8 && isVarintList(typ): // ints
			m.Ints, err = readVarints(p, typ, m.Ints, func(v uint64) int64 { return int64(v) }) //nolint:gosec // G115: protobuf int64 two's complement.
		case num == 9 && typ == protowire.BytesType: // strings
			var b []byte
			if b, err = p.readBytes(); err == nil {
				m.Strings = append(m.Strings, b)
			}
		case num == 10 && typ == protowire.BytesType: // tensors
			sub, err2 := p.readSub(fmt.Sprintf("tensors[%d]", len(m.Tensors)))
			if err2 != nil {
				return err2
			}
			t := TensorProto{}
			if err = sub.readTensorProto(&t); err == nil {
				m.Tensors = append(m.Tensors, t)
			}
		case num == 11 && typ == protowire.BytesType: // graphs
			sub, err2 := p.readSub(fmt.Sprintf("graphs[%d]", len(m.Graphs)))
			if err2 != nil {
				return err2
			}
			g := GraphProto{}
			if err = sub.readGraphProto(&g); err == nil {
				m.Graphs = append(m.Graphs, g)
			}
		case num == 13 && typ == protowire.BytesType: // doc_string
			m.DocString, err = p.readString()
		case num == 20 && typ == protowire.VarintType: // type
			var v int64
			v, err = p.readInt64()
			m.Type = AttributeType(v) //nolint:gosec // G115: enum fits in int32.
		default:
			m.Unknown, err = p.skipField(m.Unknown, num, typ, start)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readOperatorSetID reads OperatorSetIdProto message.
func (p *parser) readOperatorSetID(m *OperatorSetID) error {
	for p.pos < len(p.data) {
		num, typ, start, err := p.readTag()
		if err != nil {
			return err
		}

		switch {
		case num == 1 && typ == protowire.BytesType: // domain
			m.Domain, err = p.readString()
		case num == 2 && typ == protowire.VarintType: // version
			m.Version, err = p.readInt64()
		default:
			m.Unknown, err = p.skipField(m.Unknown, num, typ, start)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readStringStringEntry reads StringStringEntryProto message.
func (p *parser) readStringStringEntry(m *StringStringEntry) error {
	for p.pos < len(p.data) {
		num, typ, start, err := p.readTag()
		if err != nil {
			return err
		}

		switch {
		case num == 1 && typ == protowire.BytesType: // key
			m.Key, err = p.readString()
		case num == 2 && typ == protowire.BytesType: // value
			m.Value, err = p.readString()
		default:
			m.Unknown, err = p.skipField(m.Unknown, num, typ, start)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readTag reads a field tag and returns the position where the field started.
func (p *parser) readTag() (protowire.Number, protowire.Type, int, error) {
	start := p.pos
	num, typ, n := protowire.ConsumeTag(p.data[p.pos:])
	if n < 0 {
		return 0, 0, start, p.wireError(n)
	}
	p.pos += n
	return num, typ, start, nil
}

// readInt64 reads a varint-encoded int64.
func (p *parser) readInt64() (int64, error) {
	v, n := protowire.ConsumeVarint(p.data[p.pos:])
	if n < 0 {
		return 0, p.wireError(n)
	}
	p.pos += n
	return int64(v), nil //nolint:gosec // G115: protobuf int64 two's complement.
}

// readBytes reads a length-delimited field and copies it out of the input buffer.
func (p *parser) readBytes() ([]byte, error) {
	v, n := protowire.ConsumeBytes(p.data[p.pos:])
	if n < 0 {
		return nil, p.wireError(n)
	}
	p.pos += n
	return bytes.Clone(v), nil
}

func (p *parser) readString() (string, error) {
	v, n := protowire.ConsumeBytes(p.data[p.pos:])
	if n < 0 {
		return "", p.wireError(n)
	}
	p.pos += n
	return string(v), nil
}

// readFloat32 reads a fixed32 float.
func (p *parser) readFloat32() (float32, error) {
	v, n := protowire.ConsumeFixed32(p.data[p.pos:])
	if n < 0 {
		return 0, p.wireError(n)
	}
	p.pos += n
	return math.Float32frombits(v), nil
}

// readSub consumes an embedded message and returns a parser scoped to it.
func (p *parser) readSub(field string) (*parser, error) {
	v, n := protowire.ConsumeBytes(p.data[p.pos:])
	if n < 0 {
		return nil, p.wireError(n)
	}
	off := p.pos + n - len(v)
	p.pos += n
	if p.depth+1 > maxDepth {
		return nil, p.errorf("message nesting exceeds %d levels", maxDepth)
	}
	return &parser{
		data:  v,
		base:  p.base + off,
		path:  p.path + "." + field,
		depth: p.depth + 1,
	}, nil
}

// readFloats reads a packed or unpacked repeated float field.
func (p *parser) readFloats(typ protowire.Type, dst []float32) ([]float32, error) {
	if typ == protowire.Fixed32Type {
		v, err := p.readFloat32()
		if err != nil {
			return dst, err
		}
		return append(dst, v), nil
	}
	data, n := protowire.ConsumeBytes(p.data[p.pos:])
	if n < 0 {
		return dst, p.wireError(n)
	}
	if len(data)%4 != 0 {
		return dst, p.errorf("packed float field has %d trailing bytes", len(data)%4)
	}
	p.pos += n
	for len(data) > 0 {
		v, m := protowire.ConsumeFixed32(data)
		dst = append(dst, math.Float32frombits(v))
		data = data[m:]
	}
	return dst, nil
}

// readDoubles reads a packed or unpacked repeated double field.
func (p *parser) readDoubles(typ protowire.Type, dst []float64) ([]float64, error) {
	if typ == protowire.Fixed64Type {
		v, n := protowire.ConsumeFixed64(p.data[p.pos:])
		if n < 0 {
			return dst, p.wireError(n)
		}
		p.pos += n
		return append(dst, math.Float64frombits(v)), nil
	}
	data, n := protowire.ConsumeBytes(p.data[p.pos:])
	if n < 0 {
		return dst, p.wireError(n)
	}
	if len(data)%8 != 0 {
		return dst, p.errorf("packed double field has %d trailing bytes", len(data)%8)
	}
	p.pos += n
	for len(data) > 0 {
		v, m := protowire.ConsumeFixed64(data)
		dst = append(dst, math.Float64frombits(v))
		data = data[m:]
	}
	return dst, nil
}

// readVarints reads a packed or unpacked repeated varint field.
func readVarints[T int32 | int64 | uint64](p *parser, typ protowire.Type, dst []T, conv func(uint64) T) ([]T, error) {
	if typ == protowire.VarintType {
		v, n := protowire.ConsumeVarint(p.data[p.pos:])
		if n < 0 {
			return dst, p.wireError(n)
		}
		p.pos += n
		return append(dst, conv(v)), nil
	}
	data, n := protowire.ConsumeBytes(p.data[p.pos:])
	if n < 0 {
		return dst, p.wireError(n)
	}
	p.pos += n
	for len(data) > 0 {
		v, m := protowire.ConsumeVarint(data)
		if m < 0 {
			return dst, p.wireError(m)
		}
		dst = append(dst, conv(v))
		data = data[m:]
	}
	return dst, nil
}

func isVarintList(typ protowire.Type) bool {
	return typ == protowire.VarintType || typ == protowire.BytesType
}

// skipField consumes a field this package does not model and appends its raw encoding,
// tag included, to unknown.
func (p *parser) skipField(unknown []byte, num protowire.Number, typ protowire.Type, start int) ([]byte, error) {
	n := protowire.ConsumeFieldValue(num, typ, p.data[p.pos:])
	if n < 0 {
		return unknown, p.wireError(n)
	}
	p.pos += n
	return append(unknown, p.data[start:p.pos]...), nil
}
