package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai", c.DefaultProvider)
	assert.Equal(t, "gpt-5", c.DefaultModel)
	assert.Equal(t, "pipeline_data.parquet", c.SourcePath)
	assert.Equal(t, "data", c.OutputDir)
	assert.Equal(t, RuntimeExec, c.AgentRuntime)
	assert.Equal(t, 1, c.RetryMaxAttempts)
	assert.Equal(t, 1, c.PlanningInterval)
	assert.Equal(t, []string{"python3", "-m", "pipeflow_agent"}, c.AgentArgv())
}

func TestSaveLoadRoundTripAndEnvOverride(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	c, err := Load(p)
	require.NoError(t, err)
	require.NoError(t, c.Set("output_dir", "cache"))
	require.NoError(t, c.Set("agent_runtime", "CHAT"))
	require.NoError(t, c.Set("agent_max_steps", "7"))
	require.NoError(t, Save(c, p))

	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	t.Setenv("PIPEFLOW_AGENT_MAX_STEPS", "9")
	got, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "cache", got.OutputDir)
	assert.Equal(t, RuntimeChat, got.AgentRuntime)
	assert.Equal(t, 9, got.AgentMaxSteps)
}

func TestSetRejectsBadValues(t *testing.T) {
	c := &Global{}
	assert.Error(t, c.Set("nope", "x"))
	assert.Error(t, c.Set("default_provider", "anthropic"))
	assert.Error(t, c.Set("agent_runtime", "docker"))
	assert.Error(t, c.Set("retry_max_attempts", "0"))
	assert.Error(t, c.Set("planning_interval", "soon"))

	require.NoError(t, c.Set("default_provider", "local"))
	assert.Equal(t, "ollama", c.DefaultProvider)
	assert.Contains(t, Keys(), "api_key")
	assert.IsIncreasing(t, Keys())
}

func TestResolveAPIKey(t *testing.T) {
	c := &Global{APIKey: "from-config"}
	t.Setenv("OPENAI_API_KEY", "")
	assert.Equal(t, "from-config", c.ResolveAPIKey("openai", ""))

	t.Setenv("OPENAI_API_KEY", "from-env")
	assert.Equal(t, "from-env", c.ResolveAPIKey("openai", " "))
	assert.Equal(t, "typed", c.ResolveAPIKey("openai", "typed"))

	t.Setenv("OPENROUTER_API_KEY", "router")
	assert.Equal(t, "router", c.ResolveAPIKey("openrouter", ""))
	assert.Equal(t, "from-config", c.ResolveAPIKey("ollama", ""))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, LoadDotEnv(filepath.Join(dir, ".env")), "missing file is fine")

	p := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(p, []byte("PIPEFLOW_TEST_DOTENV=hello\n"), 0o644))
	t.Setenv("PIPEFLOW_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("PIPEFLOW_TEST_DOTENV"))
	require.NoError(t, LoadDotEnv(p))
	assert.Equal(t, "hello", os.Getenv("PIPEFLOW_TEST_DOTENV"))
}
