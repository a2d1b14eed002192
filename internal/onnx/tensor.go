package onnx

import (
	"encoding/binary"
	"math"
)

// NumElements returns the element count implied by Dims (1 for a scalar).
func (t *TensorProto) NumElements() int64 {
	n := int64(1)
	for _, d := range t.Dims {
		n *= d
	}
	return n
}

// Int64s returns the values of an INT32 or INT64 tensor from whichever data field is
// populated.
func (t *TensorProto) Int64s() ([]int64, bool) {
	switch t.DataType {
	case TensorProtoInt64:
		if len(t.RawData) > 0 {
			if len(t.RawData)%8 != 0 {
				return nil, false
			}
			out := make([]int64, len(t.RawData)/8)
			for i := range out {
				out[i] = int64(binary.LittleEndian.Uint64(t.RawData[8*i:])) //nolint:gosec // G115: two's complement bit pattern.
			}
			return out, true
		}
		return t.Int64Data, true
	case TensorProtoInt32:
		if len(t.RawData) > 0 {
			if len(t.RawData)%4 != 0 {
				return nil, false
			}
			out := make([]int64, len(t.RawData)/4)
			for i := range out {
				out[i] = int64(int32(binary.LittleEndian.Uint32(t.RawData[4*i:]))) //nolint:gosec // G115: two's complement bit pattern.
			}
			return out, true
		}
		out := make([]int64, len(t.Int32Data))
		for i, v := range t.Int32Data {
			out[i] = int64(v)
		}
		return out, true
	default:
		return nil, false
	}
}

// Float64s returns the values of a FLOAT or DOUBLE tensor widened to float64.
func (t *TensorProto) Float64s() ([]float64, bool) {
	switch t.DataType {
	case TensorProtoFloat:
		if len(t.RawData) > 0 {
			if len(t.RawData)%4 != 0 {
				return nil, false
			}
			out := make([]float64, len(t.RawData)/4)
			for i := range out {
				out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(t.RawData[4*i:])))
			}
			return out, true
		}
		out := make([]float64, len(t.FloatData))
		for i, v := range t.FloatData {
			out[i] = float64(v)
		}
		return out, true
	case TensorProtoDouble:
		if len(t.RawData) > 0 {
			if len(t.RawData)%8 != 0 {
				return nil, false
			}
			out := make([]float64, len(t.RawData)/8)
			for i := range out {
				out[i] = math.Float64frombits(binary.LittleEndian.Uint64(t.RawData[8*i:]))
			}
			return out, true
		}
		return t.DoubleData, true
	default:
		return nil, false
	}
}
