package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Runner.MaxSteps)
	assert.Equal(t, "memory", cfg.Checkpoint.Backend)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
runner:
  max_steps: 5
  tool_timeout: 30s
  parallel_tools: true
checkpoint:
  backend: sqlite
  path: threads.db
model:
  provider: anthropic
  name: claude-3-5-sonnet-20241022
logging:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Runner.MaxSteps)
	assert.True(t, cfg.Runner.ParallelTools)
	assert.Equal(t, "sqlite", cfg.Checkpoint.Backend)
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, "debug", cfg.Logging.Level)

	d, err := cfg.Runner.ToolTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TL_TEST_KEY", "sk-test-123")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  provider: openai
  api_key: ${TL_TEST_KEY}
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", cfg.Model.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown backend",
			yaml: "checkpoint:\n  backend: redis\n",
			want: "checkpoint.backend",
		},
		{
			name: "sqlite without path",
			yaml: "checkpoint:\n  backend: sqlite\n",
			want: "checkpoint.path",
		},
		{
			name: "unknown provider",
			yaml: "model:\n  provider: cohere\n",
			want: "model.provider",
		},
		{
			name: "bad timeout",
			yaml: "runner:\n  tool_timeout: soon\n",
			want: "tool_timeout",
		},
		{
			name: "mcp server without name",
			yaml: "mcp_servers:\n  - transport: stdio\n    command: uvx\n",
			want: "name is required",
		},
		{
			name: "mcp duplicate names",
			yaml: "mcp_servers:\n  - name: files\n    transport: stdio\n    command: a\n  - name: files\n    transport: stdio\n    command: b\n",
			want: "duplicate name",
		},
		{
			name: "mcp stdio without command",
			yaml: "mcp_servers:\n  - name: files\n    transport: stdio\n",
			want: "command is required",
		},
		{
			name: "mcp http without url",
			yaml: "mcp_servers:\n  - name: web\n    transport: http\n",
			want: "url is required",
		},
		{
			name: "mcp unknown transport",
			yaml: "mcp_servers:\n  - name: web\n    transport: grpc\n",
			want: "unsupported transport",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoggingBuild(t *testing.T) {
	logger := LoggingConfig{Level: "debug", Format: "json"}.Build()
	require.NotNil(t, logger)
	logger.Debug("config logger smoke", "ok", true)
}
