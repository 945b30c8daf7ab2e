package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/pipeflow-cli/internal/agent"
	"github.com/KaramelBytes/pipeflow-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/pipeflow-cli/internal/config"
	"github.com/KaramelBytes/pipeflow-cli/internal/dataset"
	"github.com/KaramelBytes/pipeflow-cli/internal/store"
)

type runtimeOptions struct {
	Provider string
	APIKey   string
}

// resolveProvider normalizes the provider from flag or config.
func resolveProvider(cfg *cfgpkg.Global, flag string) string {
	p := strings.ToLower(strings.TrimSpace(flag))
	if p == "" && cfg != nil {
		p = strings.ToLower(cfg.DefaultProvider)
	}
	switch p {
	case "":
		return ai.ProviderOpenAI
	case ai.ProviderLocal:
		return ai.ProviderOllama
	}
	return p
}

func selectModel(cfg *cfgpkg.Global, provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.DefaultModel != "" {
		// The configured model belongs to the configured provider.
		if provider == resolveProvider(cfg, "") {
			return cfg.DefaultModel
		}
	}
	return ai.DefaultModel(provider)
}

func runtimeConfig(cfg *cfgpkg.Global, provider, apiKey string) ai.RuntimeConfig {
	rc := ai.RuntimeConfig{
		HTTPTimeout: 120 * time.Second,
		RetryMax:    1,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    4 * time.Second,
		APIKey:      apiKey,
	}
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		if cfg.RetryMaxAttempts > 0 {
			rc.RetryMax = cfg.RetryMaxAttempts
		}
		if cfg.RetryBaseDelayMs > 0 {
			rc.BaseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
		}
		if cfg.RetryMaxDelayMs > 0 {
			rc.MaxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
		}
		if provider == ai.ProviderOpenAI {
			rc.BaseURL = cfg.OpenAIBaseURL
		}
	}
	if provider == ai.ProviderOllama {
		rc.Host = "http://127.0.0.1:11434"
		if v := os.Getenv("PIPEFLOW_OLLAMA_HOST"); v != "" {
			rc.Host = v
		} else if cfg != nil && cfg.OllamaHost != "" {
			rc.Host = cfg.OllamaHost
		}
		if v := os.Getenv("PIPEFLOW_OLLAMA_TIMEOUT_SEC"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				rc.HTTPTimeout = time.Duration(n) * time.Second
			}
		} else if cfg != nil && cfg.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
		}
	}
	return rc
}

func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	provider := resolveProvider(cfg, opts.Provider)
	client, ok := ai.GetRuntime(provider, runtimeConfig(cfg, provider, opts.APIKey))
	if !ok {
		return nil, provider, fmt.Errorf("provider not supported: %s", provider)
	}
	return client, provider, nil
}

type runnerOptions struct {
	Runtime  string // exec or chat
	Model    agent.Model
	Events   agent.EventFunc
	Stderr   io.Writer
	MaxSteps int
}

// buildRunner returns the agent runner selected by agent_runtime.
func buildRunner(cfg *cfgpkg.Global, opts runnerOptions) (agent.Runner, error) {
	name := strings.ToLower(strings.TrimSpace(opts.Runtime))
	if name == "" && cfg != nil {
		name = cfg.AgentRuntime
	}
	switch name {
	case "", cfgpkg.RuntimeExec:
		var argv []string
		if cfg != nil {
			argv = cfg.AgentArgv()
		}
		if len(argv) == 0 {
			return nil, errors.New("agent_command is empty; set it with 'pipeflow config set agent_command \"<cmd>\"'")
		}
		return &agent.ExecRunner{Command: argv, Stderr: opts.Stderr, OnEvent: opts.Events}, nil
	case cfgpkg.RuntimeChat:
		rt, _, err := buildRuntime(cfg, runtimeOptions{Provider: opts.Model.Provider, APIKey: opts.Model.APIKey})
		if err != nil {
			return nil, err
		}
		steps := opts.MaxSteps
		if steps <= 0 && cfg != nil {
			steps = cfg.AgentMaxSteps
		}
		return &agent.ChatRunner{Runtime: rt, MaxSteps: steps, OnEvent: opts.Events}, nil
	}
	return nil, fmt.Errorf("unknown agent runtime: %s (use exec or chat)", name)
}

// explainError adds a user-facing hint to common failures.
func explainError(err error, provider, model string) error {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
		missing *dataset.MissingColumnError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &missing):
		return fmt.Errorf("source is missing column %q. Expected columns: %s: %w", missing.Column, strings.Join(dataset.RequiredColumns, ", "), err)
	case errors.Is(err, dataset.ErrUnsupported):
		return fmt.Errorf("unsupported source file. Use a .parquet or .csv file: %w", err)
	case errors.As(err, &unreach):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running (see https://ollama.com) and host is correct. You can set PIPEFLOW_OLLAMA_HOST or config 'ollama_host'. Detail: %w", unreach.Host, err)
		}
		return fmt.Errorf("endpoint unreachable. Check your network and provider settings: %w", err)
	case errors.As(err, &authErr):
		env := ai.APIKeyEnv(provider)
		return fmt.Errorf("authentication failed: enter a valid key at the prompt, set %s or add api_key in config (~/.pipeflow/config.yaml): %w", env, err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by provider, please retry: %w", err)
	case errors.As(err, &nfErr):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model. %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s). Verify the model name with 'pipeflow models': %w", model, err)
	case errors.As(err, &brErr):
		return fmt.Errorf("request invalid. Try a shorter query or a model with a larger context: %w", err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider appears unavailable (server error). Please retry later: %w", err)
	case errors.Is(err, agent.ErrMaxSteps):
		return fmt.Errorf("the agent ran out of steps. Raise agent_max_steps or narrow the query: %w", err)
	}
	return err
}

// printEvent relays agent progress to w with the usual prefixes.
func printEvent(w io.Writer) agent.EventFunc {
	return func(ev agent.Event) {
		switch ev.Kind {
		case "plan":
			fmt.Fprintf(w, "⚙ Plan: %s\n", ev.Message)
		case "tool_call":
			fmt.Fprintf(w, "⚙ Tool call: %s\n", ev.Message)
		default:
			fmt.Fprintf(w, "  %s\n", ev.Message)
		}
	}
}

func printResult(w io.Writer, res *agent.Result, model string) {
	fmt.Fprintln(w, "\n=== Agent Report ===")
	fmt.Fprintln(w, res.Answer)
	if res.Usage.TotalTokens > 0 {
		fmt.Fprintf(w, "\n⚙ Tokens: prompt=%d completion=%d", res.Usage.PromptTokens, res.Usage.CompletionTokens)
		if cost, ok := ai.EstimateCostUSD(model, res.Usage.PromptTokens, res.Usage.CompletionTokens); ok && cost > 0 {
			fmt.Fprintf(w, " (est. ~$%.4f)", cost)
		}
		fmt.Fprintln(w)
	}
}

// describeStore prints the completeness of the store in dir.
func describeStore(w io.Writer, dir string) bool {
	missing := store.Missing(dir)
	if len(missing) > 0 {
		fmt.Fprintf(w, "⚠ Store at %s is incomplete (%d of 13 files missing):\n", dir, len(missing))
		for _, m := range missing {
			fmt.Fprintf(w, "  - %s\n", m)
		}
		return false
	}
	fmt.Fprintf(w, "✓ Store at %s is complete\n", dir)
	for _, col := range dataset.CategoricalColumns {
		v, err := store.LoadVocab(dir, col)
		if err != nil {
			fmt.Fprintf(w, "  %-18s ⚠ %v\n", col+":", err)
			continue
		}
		fmt.Fprintf(w, "  %-18s %d values\n", col+":", v.Len())
	}
	return true
}
