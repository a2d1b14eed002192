package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert IN OUT",
	Short: "Up- or downgrade a model to another opset version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetInt64("target")
		data, err := readModel(args[0])
		if err != nil {
			return err
		}
		converted, err := state.engine.Convert(cmd.Context(), data, target)
		if err != nil {
			return err
		}
		if err := writeModel(args[1], converted); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved opset %d model to %s\n", target, args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().Int64("target", 0, "Default domain opset version to convert to")
	_ = convertCmd.MarkFlagRequired("target")
}
