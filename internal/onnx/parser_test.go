package onnx

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// softmaxModel builds the classifier head used throughout the tests:
// probabilities = Softmax(logits, axis=1) with a float[1,1000] input.
func softmaxModel() *ModelProto {
	graph := MakeGraph("head",
		[]NodeProto{MakeNode("Softmax", []string{"logits"}, []string{"probabilities"}, AttrInt("axis", 1))},
		[]ValueInfoProto{MakeTensorValueInfo("logits", TensorProtoFloat, Dims(1, 1000))},
		[]ValueInfoProto{MakeTensorValueInfo("probabilities", TensorProtoFloat, Dims(1, 1000))},
	)
	return MakeModel(graph, WithOpset(DefaultDomain, 13), WithIRVersion(7))
}

func richModel() *ModelProto {
	then := MakeGraph("then",
		[]NodeProto{MakeNode("Identity", []string{"x"}, []string{"y"})},
		nil,
		[]ValueInfoProto{MakeTensorValueInfo("y", TensorProtoFloat, nil)},
	)
	graph := MakeGraph("rich",
		[]NodeProto{
			MakeNode("Clip", []string{"x", "", "hi"}, []string{"clipped"}),
			MakeNode("Squeeze", []string{"clipped", "axes"}, []string{"squeezed"}),
			MakeNode("If", []string{"cond"}, []string{"y"}, AttrGraph("then_branch", then), AttrGraph("else_branch", then.Clone())),
			MakeNode("Cast", []string{"squeezed"}, []string{"z"}, AttrInt("to", 0), AttrFloats("scales", 1, 2.5), AttrString("mode", "")),
		},
		[]ValueInfoProto{
			MakeTensorValueInfo("x", TensorProtoFloat, []DimensionProto{SymbolicDim("N"), Dim(0), {}}),
			MakeTensorValueInfo("cond", TensorProtoBool, []DimensionProto{}),
		},
		[]ValueInfoProto{MakeTensorValueInfo("z", TensorProtoFloat, nil)},
		Float32Tensor("hi", nil, []float32{6}),
		Int64Tensor("axes", []int64{1}, []int64{-1}),
	)
	graph.ValueInfo = []ValueInfoProto{MakeTensorValueInfo("clipped", TensorProtoFloat, nil)}
	m := MakeModel(graph, WithOpset("ai.onnx.ml", 3))
	m.ModelVersion = 4
	m.DocString = "fixture"
	m.MetadataProps = []StringStringEntry{{Key: "author", Value: ""}}
	return m
}

func TestDecodeSoftmaxModel(t *testing.T) {
	model, err := Decode(Encode(softmaxModel()))
	require.NoError(t, err)

	assert.Equal(t, int64(7), model.IRVersion)
	assert.Equal(t, ProducerName, model.ProducerName)
	v, ok := model.OpsetVersion("ai.onnx")
	require.True(t, ok)
	assert.Equal(t, int64(13), v)

	require.NotNil(t, model.Graph)
	require.Len(t, model.Graph.Nodes, 1)
	node := model.Graph.Nodes[0]
	assert.Equal(t, "Softmax", node.OpType)
	assert.Equal(t, []string{"logits"}, node.Inputs)
	assert.Equal(t, int64(1), node.AttrInt("axis", -1))

	in := model.Graph.Inputs[0]
	require.NotNil(t, in.Type.TensorType)
	assert.Equal(t, TensorProtoFloat, in.Type.TensorType.ElemType)
	assert.Equal(t, Dims(1, 1000), in.Type.TensorType.Shape.Dims)
}

func TestRoundTripPreservesModel(t *testing.T) {
	want := richModel()
	data := Encode(want)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Re-encoding a decoded model reproduces the same bytes.
	assert.Equal(t, data, Encode(got))
}

func TestRoundTripKeepsPositionalAndZeroValues(t *testing.T) {
	got, err := Decode(Encode(richModel()))
	require.NoError(t, err)
	g := got.Graph

	assert.Equal(t, []string{"x", "", "hi"}, g.Nodes[0].Inputs)

	to, ok := g.Nodes[3].Attribute("to")
	require.True(t, ok)
	assert.Equal(t, AttributeProtoInt, to.Type)
	assert.Zero(t, to.I)

	mode, ok := g.Nodes[3].Attribute("mode")
	require.True(t, ok)
	assert.Equal(t, AttributeProtoString, mode.EffectiveType())

	dims := g.Inputs[0].Type.TensorType.Shape.Dims
	assert.Equal(t, "N", dims[0].DimParam)
	assert.True(t, dims[1].HasValue)
	assert.Zero(t, dims[1].DimValue)
	assert.False(t, dims[2].HasValue)

	scalar := g.Inputs[1].Type.TensorType.Shape
	require.NotNil(t, scalar)
	assert.Empty(t, scalar.Dims)
	assert.Nil(t, g.Outputs[0].Type.TensorType.Shape)

	assert.Equal(t, []StringStringEntry{{Key: "author", Value: ""}}, got.MetadataProps)
}

func TestRoundTripKeepsEmptyUntypedString(t *testing.T) {
	graph := MakeGraph("g",
		[]NodeProto{{
			OpType:     "Custom",
			Inputs:     []string{"x"},
			Outputs:    []string{"y"},
			Attributes: []AttributeProto{{Name: "tag", S: []byte{}}, {Name: "unset"}},
		}},
		[]ValueInfoProto{MakeTensorValueInfo("x", TensorProtoFloat, nil)},
		[]ValueInfoProto{MakeTensorValueInfo("y", TensorProtoFloat, nil)},
	)
	data := Encode(MakeModel(graph))

	got, err := Decode(data)
	require.NoError(t, err)
	attrs := got.Graph.Nodes[0].Attributes
	require.Len(t, attrs, 2)

	assert.Equal(t, AttributeProtoUndefined, attrs[0].Type)
	assert.NotNil(t, attrs[0].S)
	assert.Equal(t, AttributeProtoString, attrs[0].EffectiveType())
	assert.Nil(t, attrs[1].S)
	assert.Equal(t, AttributeProtoUndefined, attrs[1].EffectiveType())
	assert.Equal(t, data, Encode(got))
}

func TestUnknownFieldsSurvive(t *testing.T) {
	extra := protowire.AppendTag(nil, 99, protowire.BytesType)
	extra = protowire.AppendString(extra, "opaque")

	m := softmaxModel()
	m.Graph.Nodes[0].Unknown = extra
	m.Graph.Inputs[0].Type.Unknown = extra
	m.Graph.Nodes[0].Attributes[0].Unknown = extra

	data := Encode(m)
	// A trailing unknown varint on the model envelope.
	data = protowire.AppendTag(data, 21, protowire.VarintType)
	data = protowire.AppendVarint(data, 300)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, extra, got.Graph.Nodes[0].Unknown)
	assert.Equal(t, extra, got.Graph.Inputs[0].Type.Unknown)
	assert.Equal(t, extra, got.Graph.Nodes[0].Attributes[0].Unknown)
	assert.NotEmpty(t, got.Unknown)

	assert.Equal(t, data, Encode(got))
}

func TestWrongWireTypeIsPreserved(t *testing.T) {
	// ir_version written as a string is not ir_version.
	var data []byte
	data = protowire.AppendTag(data, 1, protowire.BytesType)
	data = protowire.AppendString(data, "7")

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Zero(t, got.IRVersion)
	assert.Equal(t, data, got.Unknown)
	assert.Equal(t, data, Encode(got))
}

func TestDecodeAcceptsPackedAndUnpacked(t *testing.T) {
	// Tensor dims written packed, attribute ints written packed: both are legal encodings.
	var packedDims []byte
	packedDims = protowire.AppendVarint(packedDims, 2)
	packedDims = protowire.AppendVarint(packedDims, 3)

	var tensor []byte
	tensor = protowire.AppendTag(tensor, 1, protowire.BytesType)
	tensor = protowire.AppendBytes(tensor, packedDims)
	tensor = protowire.AppendTag(tensor, 2, protowire.VarintType)
	tensor = protowire.AppendVarint(tensor, uint64(TensorProtoInt64))
	// int64_data unpacked
	for _, v := range []uint64{1, 2, 3, 4, 5, 6} {
		tensor = protowire.AppendTag(tensor, 7, protowire.VarintType)
		tensor = protowire.AppendVarint(tensor, v)
	}
	tensor = protowire.AppendTag(tensor, 8, protowire.BytesType)
	tensor = protowire.AppendString(tensor, "w")

	var attr []byte
	attr = protowire.AppendTag(attr, 1, protowire.BytesType)
	attr = protowire.AppendString(attr, "perm")
	attr = protowire.AppendTag(attr, 8, protowire.BytesType)
	attr = protowire.AppendBytes(attr, packedDims)

	var node []byte
	node = protowire.AppendTag(node, 4, protowire.BytesType)
	node = protowire.AppendString(node, "Transpose")
	node = protowire.AppendTag(node, 5, protowire.BytesType)
	node = protowire.AppendBytes(node, attr)

	var graph []byte
	graph = protowire.AppendTag(graph, 1, protowire.BytesType)
	graph = protowire.AppendBytes(graph, node)
	graph = protowire.AppendTag(graph, 5, protowire.BytesType)
	graph = protowire.AppendBytes(graph, tensor)

	var model []byte
	model = protowire.AppendTag(model, 7, protowire.BytesType)
	model = protowire.AppendBytes(model, graph)

	got, err := Decode(model)
	require.NoError(t, err)

	w, ok := got.Graph.Initializer("w")
	require.True(t, ok)
	assert.Equal(t, []int64{2, 3}, w.Dims)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, w.Int64Data)
	assert.Equal(t, []int64{2, 3}, got.Graph.Nodes[0].AttrInts("perm"))
}

func TestDecodeTruncated(t *testing.T) {
	data := Encode(richModel())

	_, err := Decode(data[:len(data)/2])
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "model", decodeErr.Path)
	assert.GreaterOrEqual(t, decodeErr.Offset, 0)
}

func TestDecodeReportsNestedPath(t *testing.T) {
	// A node whose op_type claims 10 bytes but carries 2.
	node := protowire.AppendTag(nil, 4, protowire.BytesType)
	node = append(node, 10, 'A', 'd')

	graph := protowire.AppendTag(nil, 1, protowire.BytesType)
	graph = protowire.AppendBytes(graph, node)

	model := protowire.AppendTag(nil, 1, protowire.VarintType)
	model = protowire.AppendVarint(model, 8)
	model = protowire.AppendTag(model, 7, protowire.BytesType)
	model = protowire.AppendBytes(model, graph)

	_, err := Decode(model)
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "model.graph.node[0]", decodeErr.Path)
	assert.Contains(t, err.Error(), "model.graph.node[0]")
}

func TestDecodeRejectsDeepNesting(t *testing.T) {
	g := MakeGraph("leaf", nil, nil, nil)
	for i := 0; i < 40; i++ {
		g = MakeGraph("g", []NodeProto{MakeNode("If", []string{"c"}, nil, AttrGraph("then_branch", g))}, nil, nil)
	}

	_, err := Decode(Encode(MakeModel(g)))
	require.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "nesting")
}

func TestDecodeEmpty(t *testing.T) {
	got, err := Decode(nil)
	require.NoError(t, err)
	assert.Nil(t, got.Graph)
	assert.Nil(t, Encode(nil))
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "head.onnx")
	require.NoError(t, WriteFile(path, softmaxModel()))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, softmaxModel(), got)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.onnx"))
	assert.Error(t, err)
}
