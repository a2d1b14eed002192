package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/born-ml/onnxkit/internal/inspect"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect IN",
	Short: "Describe the inputs, outputs and graph of a model",
	Long: `Prints the model version, IR version, operator sets, graph, inputs and outputs of IN.
Markdown output is rendered when stdout is a terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		asText, _ := cmd.Flags().GetBool("text")

		data, err := readModel(args[0])
		if err != nil {
			return err
		}
		summary, err := state.engine.Inspect(cmd.Context(), data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		switch {
		case asJSON:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		case asText:
			_, err := io.WriteString(out, summary.Text())
			return err
		default:
			return writeMarkdown(out, summary)
		}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Bool("json", false, "Print the summary as JSON")
	inspectCmd.Flags().Bool("text", false, "Print the summary as plain text")
	inspectCmd.MarkFlagsMutuallyExclusive("json", "text")
}

// writeMarkdown renders through glamour only when out is the terminal.
func writeMarkdown(out io.Writer, s *inspect.Summary) error {
	md := s.Markdown()
	if f, ok := out.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		_, err := io.WriteString(out, md)
		return err
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return err
	}
	rendered, err := r.Render(md)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, rendered)
	return err
}
