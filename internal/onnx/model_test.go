package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsIndependent(t *testing.T) {
	orig := richModel()
	clone := orig.Clone()
	require.Equal(t, orig, clone)

	clone.Graph.Nodes[0].Inputs[0] = "renamed"
	clone.Graph.Nodes[2].Subgraphs()[0].Nodes[0].OpType = "Neg"
	clone.Graph.Inputs[0].Type.TensorType.Shape.Dims[0].DimParam = "M"
	clone.Graph.Initializers[0].Dims = []int64{1}
	clone.SetOpsetVersion(DefaultDomain, 13)

	assert.Equal(t, "x", orig.Graph.Nodes[0].Inputs[0])
	assert.Equal(t, "Identity", orig.Graph.Nodes[2].Subgraphs()[0].Nodes[0].OpType)
	assert.Equal(t, "N", orig.Graph.Inputs[0].Type.TensorType.Shape.Dims[0].DimParam)
	assert.Nil(t, orig.Graph.Initializers[0].Dims)
	v, _ := orig.OpsetVersion(DefaultDomain)
	assert.Equal(t, DefaultOpsetVersion, v)
}

func TestCloneSharesTensorPayload(t *testing.T) {
	orig := richModel()
	clone := orig.Clone()

	a := orig.Graph.Initializers[1].RawData
	b := clone.Graph.Initializers[1].RawData
	require.NotEmpty(t, a)
	assert.Same(t, &a[0], &b[0])
}

func TestOpsetVersionAlias(t *testing.T) {
	m := MakeModel(MakeGraph("g", nil, nil, nil))

	v, ok := m.OpsetVersion("ai.onnx")
	require.True(t, ok)
	assert.Equal(t, DefaultOpsetVersion, v)

	_, ok = m.OpsetVersion("com.microsoft")
	assert.False(t, ok)

	m.SetOpsetVersion("ai.onnx", 9)
	m.SetOpsetVersion("com.microsoft", 1)
	assert.Equal(t, []OperatorSetID{{Domain: "", Version: 9}, {Domain: "com.microsoft", Version: 1}}, m.OpsetImport)
}

func TestNodeAttributes(t *testing.T) {
	n := MakeNode("Gemm", []string{"A", "B"}, []string{"Y"}, AttrFloat("alpha", 0.5), AttrInt("transB", 1))

	assert.Equal(t, float32(0.5), n.AttrFloat("alpha", 1))
	assert.Equal(t, float32(1), n.AttrFloat("beta", 1))
	assert.Equal(t, int64(1), n.AttrInt("transB", 0))
	assert.Equal(t, "x", n.AttrString("mode", "x"))

	n.SetAttribute(AttrInt("transB", 0))
	assert.Equal(t, int64(0), n.AttrInt("transB", 1))
	assert.Len(t, n.Attributes, 2)

	assert.True(t, n.RemoveAttribute("alpha"))
	assert.True(t, n.RemoveAttribute("transB"))
	assert.False(t, n.RemoveAttribute("transB"))
	assert.Nil(t, n.Attributes)
}

func TestEffectiveType(t *testing.T) {
	tests := []struct {
		name string
		attr AttributeProto
		want AttributeType
	}{
		{"declared", AttributeProto{Type: AttributeProtoInts}, AttributeProtoInts},
		{"int", AttributeProto{I: 3}, AttributeProtoInt},
		{"float", AttributeProto{F: 0.1}, AttributeProtoFloat},
		{"string", AttributeProto{S: []byte{}}, AttributeProtoString},
		{"graph", AttributeProto{G: &GraphProto{}}, AttributeProtoGraph},
		{"ints", AttributeProto{Ints: []int64{1}}, AttributeProtoInts},
		{"empty", AttributeProto{}, AttributeProtoUndefined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.attr.EffectiveType())
		})
	}
}

func TestGraphLookups(t *testing.T) {
	g := richModel().Graph

	assert.Equal(t, []string{"x", "cond"}, g.InputNames())
	assert.Equal(t, []string{"z"}, g.OutputNames())

	_, ok := g.Initializer("axes")
	assert.True(t, ok)
	_, ok = g.Initializer("x")
	assert.False(t, ok)

	typ, ok := g.DeclaredType("clipped")
	require.True(t, ok)
	assert.Equal(t, TensorProtoFloat, typ.TensorType.ElemType)
	_, ok = g.DeclaredType("squeezed")
	assert.False(t, ok)
}

func TestTensorValues(t *testing.T) {
	ints := Int64Tensor("shape", []int64{2}, []int64{-1, 4})
	got, ok := ints.Int64s()
	require.True(t, ok)
	assert.Equal(t, []int64{-1, 4}, got)
	assert.Equal(t, int64(2), ints.NumElements())

	typed := TensorProto{DataType: TensorProtoInt32, Int32Data: []int32{7, -7}}
	got, ok = typed.Int64s()
	require.True(t, ok)
	assert.Equal(t, []int64{7, -7}, got)

	floats := Float32Tensor("min", nil, []float32{-1.5})
	vals, ok := floats.Float64s()
	require.True(t, ok)
	assert.Equal(t, []float64{-1.5}, vals)
	assert.Equal(t, int64(1), floats.NumElements())

	_, ok = floats.Int64s()
	assert.False(t, ok)
}

func TestDataTypeNames(t *testing.T) {
	assert.Equal(t, "FLOAT", TensorProtoFloat.String())
	assert.Equal(t, "tensor(float)", TensorProtoFloat.TypeString())
	assert.Equal(t, "tensor(int64)", TensorProtoInt64.TypeString())
	assert.True(t, TensorProtoDouble.IsFloat())
	assert.False(t, TensorProtoInt64.IsFloat())
	assert.False(t, DataType(99).Valid())

	typ, ok := ParseAttributeType("ints")
	require.True(t, ok)
	assert.Equal(t, AttributeProtoInts, typ)
}
