package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [dir]",
	Short: "Check whether a preprocessed store is complete",
	Long: `Status reports whether dir (default: the configured output_dir) holds the
table and all lookup files a run needs. A complete store is reused as is by
the next run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "data"
		if cfg != nil && cfg.OutputDir != "" {
			dir = cfg.OutputDir
		}
		if len(args) == 1 {
			dir = args[0]
		}
		if !describeStore(cmd.OutOrStdout(), dir) {
			return fmt.Errorf("store at %s is incomplete; the next run will rebuild it", dir)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
