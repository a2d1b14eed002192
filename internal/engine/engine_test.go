package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/onnxkit/internal/checker"
	"github.com/born-ml/onnxkit/internal/compose"
	"github.com/born-ml/onnxkit/internal/convert"
	"github.com/born-ml/onnxkit/internal/logging"
	"github.com/born-ml/onnxkit/internal/metrics"
	"github.com/born-ml/onnxkit/internal/onnx"
)

func floatTensor(name string, dims ...int64) onnx.ValueInfoProto {
	return onnx.MakeTensorValueInfo(name, onnx.TensorProtoFloat, onnx.Dims(dims...))
}

func encode(m *onnx.ModelProto) []byte { return onnx.Encode(m) }

// reluModel is img -> Relu -> feat.
func reluModel() *onnx.ModelProto {
	return onnx.MakeModel(onnx.MakeGraph("features",
		[]onnx.NodeProto{onnx.MakeNode("Relu", []string{"img"}, []string{"feat"})},
		[]onnx.ValueInfoProto{floatTensor("img", 1, 10)},
		[]onnx.ValueInfoProto{floatTensor("feat", 1, 10)},
	))
}

// softmaxModel is X -> Softmax -> Y.
func softmaxModel() *onnx.ModelProto {
	return onnx.MakeModel(onnx.MakeGraph("head",
		[]onnx.NodeProto{onnx.MakeNode("Softmax", []string{"X"}, []string{"Y"})},
		[]onnx.ValueInfoProto{floatTensor("X", 1, 10)},
		[]onnx.ValueInfoProto{floatTensor("Y", 1, 10)},
	))
}

func newTestEngine(t *testing.T) (*Engine, *prometheus.Registry, *bytes.Buffer) {
	t.Helper()
	reg := prometheus.NewRegistry()
	var logs bytes.Buffer
	e := New(
		WithMetrics(metrics.New(reg)),
		WithLogger(logging.NewWithWriter(&logs, slog.LevelDebug, logging.FormatText)),
	)
	return e, reg, &logs
}

func TestCheck(t *testing.T) {
	e, reg, logs := newTestEngine(t)

	report, err := e.Check(context.Background(), encode(softmaxModel()))
	require.NoError(t, err)
	assert.Contains(t, report.Types, "Y")
	assert.Contains(t, logs.String(), "operation completed")
	assert.Contains(t, logs.String(), "op=check")

	_, err = e.Check(context.Background(), []byte{0xff, 0xff})
	assert.ErrorIs(t, err, onnx.ErrMalformed)

	count, err := testutil.GatherAndCount(reg, "onnxkit_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Contains(t, logs.String(), "operation rejected")
}

func TestMerge(t *testing.T) {
	e, _, _ := newTestEngine(t)

	out, err := e.Merge(context.Background(), encode(reluModel()), encode(softmaxModel()),
		[]compose.Pair{{First: "feat", Second: "X"}}, compose.Options{})
	require.NoError(t, err)

	merged, err := onnx.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, "features_head", merged.Graph.Name)
	assert.Equal(t, []string{"img"}, merged.Graph.InputNames())
	assert.Equal(t, []string{"Y"}, merged.Graph.OutputNames())
	require.Len(t, merged.Graph.Nodes, 2)
	assert.Equal(t, []string{"feat"}, merged.Graph.Nodes[1].Inputs)
}

func TestMergeReportsSide(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.Merge(context.Background(), encode(reluModel()), []byte{0x0a}, nil, compose.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, onnx.ErrMalformed)
	assert.Contains(t, err.Error(), "second model")

	_, err = e.Merge(context.Background(), encode(reluModel()), encode(softmaxModel()),
		[]compose.Pair{{First: "nope", Second: "X"}}, compose.Options{})
	assert.ErrorIs(t, err, compose.ErrInvalidIOMap)
	assert.False(t, IsDefect(err))
}

func TestConvert(t *testing.T) {
	e, _, _ := newTestEngine(t)

	out, err := e.Convert(context.Background(), encode(reluModel()), 13)
	require.NoError(t, err)
	converted, err := onnx.Decode(out)
	require.NoError(t, err)
	v, _ := converted.OpsetVersion(onnx.DefaultDomain)
	assert.Equal(t, int64(13), v)
	assert.Equal(t, int64(7), converted.IRVersion)

	_, err = e.Convert(context.Background(), encode(reluModel()), 0)
	assert.ErrorIs(t, err, convert.ErrInvalidTarget)
}

func TestInspect(t *testing.T) {
	e, _, _ := newTestEngine(t)

	s, err := e.Inspect(context.Background(), encode(softmaxModel()))
	require.NoError(t, err)
	assert.Equal(t, "head", s.GraphName)
	require.Len(t, s.Inputs, 1)
	assert.Equal(t, []string{"1", "10"}, s.Inputs[0].Shape)

	broken := softmaxModel()
	broken.Graph.Nodes[0].Inputs = []string{"missing"}
	_, err = e.Inspect(context.Background(), encode(broken))
	assert.ErrorIs(t, err, checker.ErrUnresolvedReference)
}

func TestSort(t *testing.T) {
	e, _, _ := newTestEngine(t)

	m := onnx.MakeModel(onnx.MakeGraph("g",
		[]onnx.NodeProto{
			onnx.MakeNode("Sigmoid", []string{"H"}, []string{"Y"}),
			onnx.MakeNode("Relu", []string{"X"}, []string{"H"}),
		},
		[]onnx.ValueInfoProto{floatTensor("X", 4)},
		[]onnx.ValueInfoProto{floatTensor("Y", 4)},
	))
	_, err := e.Check(context.Background(), encode(m))
	require.ErrorIs(t, err, checker.ErrUnresolvedReference)

	out, err := e.Sort(context.Background(), encode(m))
	require.NoError(t, err)
	sorted, err := onnx.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, "Relu", sorted.Graph.Nodes[0].OpType)
	assert.Equal(t, "Sigmoid", sorted.Graph.Nodes[1].OpType)

	m.Graph.Nodes[1].Inputs = []string{"Y"}
	_, err = e.Sort(context.Background(), encode(m))
	assert.ErrorIs(t, err, onnx.ErrCycle)
}

func TestCanceledContext(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Check(ctx, encode(softmaxModel()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsDefect(t *testing.T) {
	assert.True(t, IsDefect(&compose.ComposeError{Kind: compose.ErrInternalInconsistency}))
	assert.True(t, IsDefect(&convert.ConvertError{Kind: convert.ErrPostconditionViolated}))
	assert.False(t, IsDefect(&convert.ConvertError{Kind: convert.ErrUnsupportedDowngrade}))
	assert.False(t, IsDefect(errors.New("boom")))
}
