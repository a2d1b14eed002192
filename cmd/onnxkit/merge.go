package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/onnxkit/internal/compose"
)

var mergeCmd = &cobra.Command{
	Use:   "merge FIRST SECOND OUT",
	Short: "Merge two models into one pipeline",
	Long: `Feeds outputs of FIRST into inputs of SECOND and writes the combined model to OUT.
Each --io-map takes the form FIRST_OUTPUT:SECOND_INPUT. Without --io-map the models are
placed side by side.`,
	Example: `  onnxkit merge squeezenet.onnx softmax.onnx out.onnx --io-map 972:squeezenet0_flatten0_reshape0`,
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawPairs, _ := cmd.Flags().GetStringArray("io-map")
		keepInputs, _ := cmd.Flags().GetBool("keep-unbound-inputs")
		keepOutputs, _ := cmd.Flags().GetBool("keep-bridge-outputs")

		ioMap, err := parseIOMap(rawPairs)
		if err != nil {
			return err
		}
		first, err := readModel(args[0])
		if err != nil {
			return err
		}
		second, err := readModel(args[1])
		if err != nil {
			return err
		}
		merged, err := state.engine.Merge(cmd.Context(), first, second, ioMap, compose.Options{
			KeepUnboundInputs: keepInputs,
			KeepBridgeOutputs: keepOutputs,
		})
		if err != nil {
			return err
		}
		if err := writeModel(args[2], merged); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved merged model to %s\n", args[2])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().StringArray("io-map", nil, "FIRST_OUTPUT:SECOND_INPUT binding (repeatable)")
	mergeCmd.Flags().Bool("keep-unbound-inputs", false, "Keep inputs of SECOND that the io map does not bind")
	mergeCmd.Flags().Bool("keep-bridge-outputs", false, "Keep outputs of FIRST consumed by the io map as outputs")
}

func parseIOMap(raw []string) ([]compose.Pair, error) {
	pairs := make([]compose.Pair, 0, len(raw))
	for _, r := range raw {
		first, second, ok := strings.Cut(r, ":")
		if !ok || first == "" || second == "" {
			return nil, fmt.Errorf("invalid --io-map %q: want FIRST_OUTPUT:SECOND_INPUT", r)
		}
		pairs = append(pairs, compose.Pair{First: first, Second: second})
	}
	return pairs, nil
}
