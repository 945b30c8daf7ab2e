package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/pipeflow-cli/internal/ai"
)

// Agent runtimes.
const (
	RuntimeExec = "exec"
	RuntimeChat = "chat"
)

// Global configuration structure.
type Global struct {
	APIKey          string `mapstructure:"api_key" yaml:"api_key"`
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`
	DefaultModel    string `mapstructure:"default_model" yaml:"default_model"`
	OpenAIBaseURL   string `mapstructure:"openai_base_url" yaml:"openai_base_url"`

	// Run defaults offered at the prompts
	SourcePath string `mapstructure:"source_path" yaml:"source_path"`
	OutputDir  string `mapstructure:"output_dir" yaml:"output_dir"`

	// Agent
	AgentRuntime     string `mapstructure:"agent_runtime" yaml:"agent_runtime"`
	AgentCommand     string `mapstructure:"agent_command" yaml:"agent_command"`
	AgentMaxSteps    int    `mapstructure:"agent_max_steps" yaml:"agent_max_steps"`
	PlanningInterval int    `mapstructure:"planning_interval" yaml:"planning_interval"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Dir returns ~/.pipeflow.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".pipeflow"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.pipeflow/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	// The file may hold an API key.
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file (cfgFile or ~/.pipeflow/config.yaml) > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("PIPEFLOW")
	v.AutomaticEnv()

	v.SetDefault("default_provider", ai.ProviderOpenAI)
	v.SetDefault("default_model", ai.DefaultModel(ai.ProviderOpenAI))
	v.SetDefault("openai_base_url", "")
	v.SetDefault("source_path", "pipeline_data.parquet")
	v.SetDefault("output_dir", "data")
	v.SetDefault("agent_runtime", RuntimeExec)
	v.SetDefault("agent_command", "python3 -m pipeflow_agent")
	v.SetDefault("agent_max_steps", 20)
	v.SetDefault("planning_interval", 1)
	// HTTP/retry defaults. One attempt: failed requests surface immediately.
	v.SetDefault("http_timeout_sec", 120)
	v.SetDefault("retry_max_attempts", 1)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	// Ollama defaults
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_timeout_sec", 120)
	v.SetDefault("log_level", "info")

	optional := true
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		// config set may name a file that does not exist yet
		_, err := os.Stat(cfgFile)
		optional = err == nil
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if optional {
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// ResolveAPIKey picks the key for provider: an explicit value first, then
// the provider's environment variable, then the config file.
func (c *Global) ResolveAPIKey(provider, explicit string) string {
	if k := strings.TrimSpace(explicit); k != "" {
		return k
	}
	if env := ai.APIKeyEnv(provider); env != "" {
		if k := os.Getenv(env); k != "" {
			return k
		}
	}
	return c.APIKey
}

// AgentArgv splits agent_command into argv.
func (c *Global) AgentArgv() []string { return strings.Fields(c.AgentCommand) }

// Keys lists the settable keys in name order.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var setters = map[string]func(c *Global, v string) error{
	"api_key":         func(c *Global, v string) error { c.APIKey = v; return nil },
	"default_model":   func(c *Global, v string) error { c.DefaultModel = v; return nil },
	"openai_base_url": func(c *Global, v string) error { c.OpenAIBaseURL = v; return nil },
	"source_path":     func(c *Global, v string) error { c.SourcePath = v; return nil },
	"output_dir":      func(c *Global, v string) error { c.OutputDir = v; return nil },
	"agent_command":   func(c *Global, v string) error { c.AgentCommand = v; return nil },
	"ollama_host":     func(c *Global, v string) error { c.OllamaHost = v; return nil },
	"default_provider": func(c *Global, v string) error {
		switch strings.ToLower(v) {
		case ai.ProviderOpenAI:
			c.DefaultProvider = ai.ProviderOpenAI
		case ai.ProviderOpenRouter:
			c.DefaultProvider = ai.ProviderOpenRouter
		case ai.ProviderOllama, ai.ProviderLocal:
			c.DefaultProvider = ai.ProviderOllama
		default:
			return fmt.Errorf("invalid default_provider: %s (use openai, openrouter or ollama)", v)
		}
		return nil
	},
	"agent_runtime": func(c *Global, v string) error {
		switch strings.ToLower(v) {
		case RuntimeExec, RuntimeChat:
			c.AgentRuntime = strings.ToLower(v)
		default:
			return fmt.Errorf("invalid agent_runtime: %s (use exec or chat)", v)
		}
		return nil
	},
	"log_level": func(c *Global, v string) error {
		switch strings.ToLower(v) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(v)
		default:
			return fmt.Errorf("invalid log_level: %s", v)
		}
		return nil
	},
	"agent_max_steps":     intSetter("agent_max_steps", 1, func(c *Global) *int { return &c.AgentMaxSteps }),
	"planning_interval":   intSetter("planning_interval", 0, func(c *Global) *int { return &c.PlanningInterval }),
	"http_timeout_sec":    intSetter("http_timeout_sec", 1, func(c *Global) *int { return &c.HTTPTimeoutSec }),
	"retry_max_attempts":  intSetter("retry_max_attempts", 1, func(c *Global) *int { return &c.RetryMaxAttempts }),
	"retry_base_delay_ms": intSetter("retry_base_delay_ms", 0, func(c *Global) *int { return &c.RetryBaseDelayMs }),
	"retry_max_delay_ms":  intSetter("retry_max_delay_ms", 0, func(c *Global) *int { return &c.RetryMaxDelayMs }),
	"ollama_timeout_sec":  intSetter("ollama_timeout_sec", 1, func(c *Global) *int { return &c.OllamaTimeoutSec }),
}

func intSetter(key string, lo int, field func(*Global) *int) func(*Global, string) error {
	return func(c *Global, v string) error {
		i, err := strconv.Atoi(v)
		if err != nil || i < lo {
			return fmt.Errorf("invalid int for %s: %v (minimum %d)", key, v, lo)
		}
		*field(c) = i
		return nil
	}
}

// Set assigns key from its string form.
func (c *Global) Set(key, val string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown key: %s", key)
	}
	return set(c, val)
}
