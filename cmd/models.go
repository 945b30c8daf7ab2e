package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/KaramelBytes/pipeflow-cli/internal/ai"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models [provider]",
	Short: "List known models with context size and pricing",
	Example: `  pipeflow models
  pipeflow models openrouter
  pipeflow models ollama`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := resolveProvider(cfg, "")
		if len(args) == 1 {
			provider = resolveProvider(nil, args[0])
		}
		return listModels(cmd.OutOrStdout(), provider)
	},
}

func listModels(w io.Writer, provider string) error {
	models := ai.ModelsFor(provider)
	if len(models) == 0 {
		return fmt.Errorf("no known models for provider %q", provider)
	}
	def := ai.DefaultModel(provider)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tCONTEXT\tINPUT $/1K\tOUTPUT $/1K\t")
	for _, m := range models {
		name := m.Name
		if name == def {
			name += " (default)"
		}
		fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.4f\t\n", name, m.ContextTokens, m.InputPerK, m.OutputPerK)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
