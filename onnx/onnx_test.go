package onnx_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/onnxkit/onnx"
)

func model(name, op, in, out string, opts ...onnx.ModelOption) *onnx.Model {
	return onnx.MakeModel(onnx.MakeGraph(name,
		[]onnx.Node{onnx.MakeNode(op, []string{in}, []string{out})},
		[]onnx.ValueInfo{onnx.MakeTensorValueInfo(in, onnx.Float, onnx.Dims(1, 10))},
		[]onnx.ValueInfo{onnx.MakeTensorValueInfo(out, onnx.Float, onnx.Dims(1, 10))},
	), opts...)
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relu.onnx")
	m := model("g", "Relu", "X", "Y")

	require.NoError(t, onnx.WriteFile(path, m))
	got, err := onnx.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, onnx.Encode(m), onnx.Encode(got))

	_, err = onnx.Check(got)
	assert.NoError(t, err)
}

func TestPipeline(t *testing.T) {
	features := model("features", "Relu", "img", "feat")
	head := model("head", "Softmax", "X", "Y")

	merged, err := onnx.Merge(features, head, []onnx.Pair{{First: "feat", Second: "X"}}, onnx.MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"img"}, merged.Graph.InputNames())
	assert.Equal(t, []string{"Y"}, merged.Graph.OutputNames())

	converted, err := onnx.Convert(merged, 13)
	require.NoError(t, err)
	v, ok := converted.OpsetVersion(onnx.DefaultDomain)
	require.True(t, ok)
	assert.Equal(t, int64(13), v)

	summary := onnx.Summarize(converted)
	assert.Equal(t, "features_head", summary.GraphName)
	require.Len(t, summary.Inputs, 1)
	assert.Equal(t, "img", summary.Inputs[0].Name)
}

func TestErrorsMatchSentinels(t *testing.T) {
	_, err := onnx.Decode([]byte{0x0a})
	assert.ErrorIs(t, err, onnx.ErrMalformed)
	var decodeErr *onnx.DecodeError
	assert.True(t, errors.As(err, &decodeErr))

	broken := model("g", "Relu", "X", "Y")
	broken.Graph.Nodes[0].Inputs = []string{"nope"}
	_, err = onnx.Check(broken)
	assert.ErrorIs(t, err, onnx.ErrInvalidModel)
	var validationErr *onnx.ValidationError
	assert.True(t, errors.As(err, &validationErr))

	_, err = onnx.Merge(model("a", "Relu", "X", "Y"), model("b", "Relu", "X", "Y"),
		[]onnx.Pair{{First: "missing", Second: "X"}}, onnx.MergeOptions{})
	assert.ErrorIs(t, err, onnx.ErrCompose)

	_, err = onnx.Convert(model("g", "Relu", "X", "Y"), onnx.LatestOpset(onnx.DefaultDomain)+1)
	assert.ErrorIs(t, err, onnx.ErrConvert)
	var convertErr *onnx.ConvertError
	assert.True(t, errors.As(err, &convertErr))
}

func TestSortTopologically(t *testing.T) {
	g := onnx.MakeGraph("g",
		[]onnx.Node{
			onnx.MakeNode("Sigmoid", []string{"H"}, []string{"Y"}),
			onnx.MakeNode("Relu", []string{"X"}, []string{"H"}),
		},
		[]onnx.ValueInfo{onnx.MakeTensorValueInfo("X", onnx.Float, onnx.Dims(4))},
		[]onnx.ValueInfo{onnx.MakeTensorValueInfo("Y", onnx.Float, onnx.Dims(4))},
	)
	_, err := onnx.Check(onnx.MakeModel(g))
	require.Error(t, err)

	sorted, err := onnx.SortTopologically(g)
	require.NoError(t, err)
	assert.Equal(t, "Relu", sorted.Nodes[0].OpType)

	_, err = onnx.Check(onnx.MakeModel(sorted))
	assert.NoError(t, err)
}

func TestReleases(t *testing.T) {
	releases := onnx.Releases()
	require.NotEmpty(t, releases)
	latest := releases[len(releases)-1]
	assert.Equal(t, onnx.LatestOpset(onnx.DefaultDomain), latest.Opset)
}
