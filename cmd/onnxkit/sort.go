package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sortCmd = &cobra.Command{
	Use:   "sort IN OUT",
	Short: "Reorder the nodes of a model topologically",
	Long:  `Rewrites IN so every node follows the nodes producing its inputs. Fails when the graph has a cycle.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readModel(args[0])
		if err != nil {
			return err
		}
		sorted, err := state.engine.Sort(cmd.Context(), data)
		if err != nil {
			return err
		}
		if err := writeModel(args[1], sorted); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved sorted model to %s\n", args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sortCmd)
}
