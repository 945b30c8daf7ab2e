package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/pipeflow-cli/internal/agent"
	"github.com/KaramelBytes/pipeflow-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/pipeflow-cli/internal/config"
	"github.com/KaramelBytes/pipeflow-cli/internal/logger"
	"github.com/KaramelBytes/pipeflow-cli/internal/pipeline"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Run flags
	flagProvider string
	flagModel    string
	flagAgent    string

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "pipeflow",
	Short: "Pipeflow: ask questions about pipeline gas-flow data",
	Long: `Pipeflow preprocesses a pipeline gas-flow dataset (parquet or csv) into a
numeric table with lookup files, then hands your question to a code-execution
agent that analyzes the table and writes a report.

Run it without arguments and answer the prompts.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runInteractive(ctx, os.Stdin, cmd.OutOrStdout())
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.pipeflow/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")

	rootCmd.Flags().StringVar(&flagProvider, "provider", "", "model provider: openai, openrouter or ollama (overrides config)")
	rootCmd.Flags().StringVar(&flagModel, "model", "", "model the agent drives (overrides config)")
	rootCmd.Flags().StringVar(&flagAgent, "agent", "", "agent runtime: exec or chat (overrides config)")
}

func loadConfig() {
	if err := cfgpkg.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v\n", err)
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}

	lvl := logger.ParseLevel(cfg.LogLevel)
	if debug {
		lvl = slog.LevelDebug
	}
	logger.SetLevel(lvl)
}

// runInteractive collects the inputs, preprocesses the source when needed
// and prints the agent's report.
func runInteractive(ctx context.Context, in io.Reader, out io.Writer) error {
	if cfg == nil {
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = c
	}
	provider := resolveProvider(cfg, flagProvider)
	model := selectModel(cfg, provider, flagModel)

	inputs, err := collectInputs(newPrompter(in, out), cfg, provider)
	if err != nil {
		return err
	}
	handle := agent.Model{Provider: provider, ID: model, APIKey: inputs.APIKey}
	if provider == ai.ProviderOpenAI {
		handle.BaseURL = cfg.OpenAIBaseURL
	}
	runner, err := buildRunner(cfg, runnerOptions{
		Runtime: flagAgent,
		Model:   handle,
		Events:  printEvent(out),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "⚙ Using %s (%s)\n", model, provider)
	res, err := pipeline.Run(ctx, pipeline.Options{
		Query:            inputs.Query,
		SourcePath:       inputs.SourcePath,
		OutputDir:        inputs.OutputDir,
		Model:            handle,
		PlanningInterval: cfg.PlanningInterval,
	}, pipeline.Deps{
		Runner: runner,
		OnPreprocessed: func(kept, dropped int) {
			fmt.Fprintf(out, "✓ Preprocessed %d rows into %s (%d incomplete rows dropped)\n", kept, inputs.OutputDir, dropped)
		},
	})
	if err != nil {
		return explainError(err, provider, model)
	}
	printResult(out, res, model)
	return nil
}
