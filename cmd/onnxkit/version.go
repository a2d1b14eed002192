package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/onnxkit/internal/onnx"
	"github.com/born-ml/onnxkit/internal/onnx/opset"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of onnxkit",
	Run: func(cmd *cobra.Command, args []string) {
		latest := opset.LatestRelease()
		fmt.Fprintf(cmd.OutOrStdout(), "onnxkit version %s\n", onnx.ProducerVersion)
		fmt.Fprintf(cmd.OutOrStdout(), "ONNX %s (IR %d, opset %d, ai.onnx.ml %d)\n",
			latest.Version, latest.IR, latest.Opset, latest.MLOpset)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
