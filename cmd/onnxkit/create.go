package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/onnxkit/internal/onnx"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Build small models from scratch",
}

var createSoftmaxCmd = &cobra.Command{
	Use:   "softmax OUT",
	Short: "Write a model made of a single Softmax node",
	Long: `Builds a graph with one Softmax node, checks it and writes it to OUT. The result is
meant to be appended to a classifier with "onnxkit merge".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		rawDims, _ := cmd.Flags().GetString("dims")
		version, _ := cmd.Flags().GetInt64("opset")

		dims, err := parseDims(rawDims)
		if err != nil {
			return err
		}
		m := buildSoftmax(input, output, dims, version)
		if _, err := state.engine.Checker().Check(m); err != nil {
			return err
		}
		if err := onnx.WriteFile(args[0], m); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved Softmax graph to %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.AddCommand(createSoftmaxCmd)
	createSoftmaxCmd.Flags().String("input", "squeezenet0_flatten0_reshape0", "Input tensor name")
	createSoftmaxCmd.Flags().String("output", "probabilities", "Output tensor name")
	createSoftmaxCmd.Flags().String("dims", "1,1000", "Comma separated input shape; non-numeric entries are symbolic")
	createSoftmaxCmd.Flags().Int64("opset", onnx.DefaultOpsetVersion, "Default domain opset version")
}

func buildSoftmax(input, output string, dims []onnx.DimensionProto, version int64) *onnx.ModelProto {
	graph := onnx.MakeGraph("softmax",
		[]onnx.NodeProto{onnx.MakeNode("Softmax", []string{input}, []string{output})},
		[]onnx.ValueInfoProto{onnx.MakeTensorValueInfo(input, onnx.TensorProtoFloat, dims)},
		[]onnx.ValueInfoProto{onnx.MakeTensorValueInfo(output, onnx.TensorProtoFloat, dims)},
	)
	return onnx.MakeModel(graph, onnx.WithOpset(onnx.DefaultDomain, version))
}

// parseDims turns "N,1000" into a symbolic and a static dimension.
func parseDims(s string) ([]onnx.DimensionProto, error) {
	if strings.TrimSpace(s) == "" {
		return []onnx.DimensionProto{}, nil
	}
	var dims []onnx.DimensionProto
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("invalid dims %q: empty dimension", s)
		}
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			dims = append(dims, onnx.SymbolicDim(part))
			continue
		}
		if v < 0 {
			return nil, fmt.Errorf("invalid dims %q: negative dimension %d", s, v)
		}
		dims = append(dims, onnx.Dim(v))
	}
	return dims, nil
}
