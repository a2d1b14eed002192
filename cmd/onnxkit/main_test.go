package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/onnxkit/internal/compose"
	"github.com/born-ml/onnxkit/internal/onnx"
)

// resetFlags restores every flag to its default; the command tree is shared between tests.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func writeRelu(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "features.onnx")
	m := onnx.MakeModel(onnx.MakeGraph("features",
		[]onnx.NodeProto{onnx.MakeNode("Relu", []string{"img"}, []string{"972"})},
		[]onnx.ValueInfoProto{onnx.MakeTensorValueInfo("img", onnx.TensorProtoFloat, onnx.Dims(1, 1000))},
		[]onnx.ValueInfoProto{onnx.MakeTensorValueInfo("972", onnx.TensorProtoFloat, onnx.Dims(1, 1000))},
	))
	require.NoError(t, onnx.WriteFile(path, m))
	return path
}

func TestCreateSoftmaxAndCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "softmax.onnx")

	out, err := run(t, "create", "softmax", path, "--dims", "N,1000")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved Softmax graph to "+path)

	m, err := onnx.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"squeezenet0_flatten0_reshape0"}, m.Graph.InputNames())
	assert.Equal(t, []string{"probabilities"}, m.Graph.OutputNames())
	assert.Equal(t, "N", m.Graph.Inputs[0].Type.TensorType.Shape.Dims[0].DimParam)

	out, err = run(t, "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, path+" is valid")
}

func TestCheckRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.onnx")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xff, 0xff}, 0o600))

	_, err := run(t, "check", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, onnx.ErrMalformed)
	assert.Contains(t, err.Error(), path)

	_, err = run(t, "check", filepath.Join(t.TempDir(), "missing.onnx"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMergeConvertInspectSort(t *testing.T) {
	dir := t.TempDir()
	features := writeRelu(t, dir)
	softmax := filepath.Join(dir, "softmax.onnx")
	merged := filepath.Join(dir, "merged.onnx")
	converted := filepath.Join(dir, "converted.onnx")
	sorted := filepath.Join(dir, "sorted.onnx")

	_, err := run(t, "create", "softmax", softmax)
	require.NoError(t, err)

	out, err := run(t, "merge", features, softmax, merged, "--io-map", "972:squeezenet0_flatten0_reshape0")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved merged model to "+merged)

	out, err = run(t, "convert", merged, converted, "--target", "13")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved opset 13 model")

	out, err = run(t, "inspect", converted, "--json")
	require.NoError(t, err)
	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "features_softmax", summary["graph_name"])

	out, err = run(t, "inspect", converted)
	require.NoError(t, err)
	assert.Contains(t, out, "# Model `features_softmax`")
	assert.Contains(t, out, "| `probabilities` | [1, 1000] | tensor(float) |")

	out, err = run(t, "inspect", converted, "--text")
	require.NoError(t, err)
	assert.Contains(t, out, "IR Version:")

	_, err = run(t, "sort", converted, sorted)
	require.NoError(t, err)
	_, err = os.Stat(sorted)
	assert.NoError(t, err)
}

func TestMergeFailures(t *testing.T) {
	dir := t.TempDir()
	features := writeRelu(t, dir)
	softmax := filepath.Join(dir, "softmax.onnx")
	_, err := run(t, "create", "softmax", softmax)
	require.NoError(t, err)

	_, err = run(t, "merge", features, softmax, filepath.Join(dir, "out.onnx"), "--io-map", "972")
	assert.ErrorContains(t, err, "FIRST_OUTPUT:SECOND_INPUT")

	_, err = run(t, "merge", features, softmax, filepath.Join(dir, "out.onnx"), "--io-map", "nope:squeezenet0_flatten0_reshape0")
	assert.ErrorIs(t, err, compose.ErrInvalidIOMap)
}

func TestConvertRequiresTarget(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "convert", writeRelu(t, dir), filepath.Join(dir, "out.onnx"))
	assert.ErrorContains(t, err, "target")
}

func TestMetricsTextfile(t *testing.T) {
	dir := t.TempDir()
	textfile := filepath.Join(dir, "onnxkit.prom")

	_, err := run(t, "check", writeRelu(t, dir), "--metrics-textfile", textfile)
	require.NoError(t, err)

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `onnxkit_operations_total{op="check",outcome="ok"} 1`)
}

func TestConfigErrors(t *testing.T) {
	_, err := run(t, "version", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = run(t, "version", "--log-level", "loud")
	assert.ErrorContains(t, err, "log.level")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "onnxkit version "+onnx.ProducerVersion)
	assert.Contains(t, out, "opset 22")
}

func TestParseDims(t *testing.T) {
	dims, err := parseDims("N, 3,224")
	require.NoError(t, err)
	require.Len(t, dims, 3)
	assert.Equal(t, "N", dims[0].DimParam)
	assert.Equal(t, int64(224), dims[2].DimValue)

	dims, err = parseDims("")
	require.NoError(t, err)
	assert.NotNil(t, dims)
	assert.Empty(t, dims)

	_, err = parseDims("1,,3")
	assert.Error(t, err)
	_, err = parseDims("-1")
	assert.Error(t, err)
}

func TestParseIOMap(t *testing.T) {
	pairs, err := parseIOMap([]string{"a:b", "c:d"})
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "c", pairs[1].First)
	assert.Equal(t, "d", pairs[1].Second)

	for _, bad := range []string{"a", ":b", "a:"} {
		_, err := parseIOMap([]string{bad})
		assert.Error(t, err, bad)
	}
}
