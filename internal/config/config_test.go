package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.Translator.Model)
	assert.Equal(t, 3, cfg.Translator.MaxRetries)
	assert.Equal(t, 4, cfg.Translator.QPS)
	assert.Equal(t, 4, cfg.Translator.Parallelism)
	assert.Equal(t, 4000, cfg.Batch.MaxTokensPerCall)
	assert.Equal(t, 200, cfg.Batch.PromptOverheadTokens)
	assert.Equal(t, 500, cfg.Batch.SplitStride)
	assert.Equal(t, "keep_source", cfg.Reflow.FallbackPolicy)
	assert.Equal(t, 0.6, cfg.Reflow.MinScale)
	assert.NotEmpty(t, cfg.Fonts.FallbackChain)
	assert.Equal(t, 100000, cfg.Cache.MaxEntries)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
translator:
  model: custom-model
  qps: 2
reflow:
  fallback_policy: omit
  min_scale: 0.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "custom-model", cfg.Translator.Model)
	assert.Equal(t, 2, cfg.Translator.QPS)
	assert.Equal(t, "omit", cfg.Reflow.FallbackPolicy)
	assert.Equal(t, 0.5, cfg.Reflow.MinScale)
	// Untouched sections keep defaults.
	assert.Equal(t, 4000, cfg.Batch.MaxTokensPerCall)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PDFTRANS_MODEL", "env-model")
	t.Setenv("PDFTRANS_FALLBACK_POLICY", "omit")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-model", cfg.Translator.Model)
	assert.Equal(t, "omit", cfg.Reflow.FallbackPolicy)
}

func TestValidateRejectsBadValues(t *testing.T) {
	testCases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"port too high", "server:\n  port: 70000\n", "server.port"},
		{"empty model", "translator:\n  model: \"\"\n", "translator.model"},
		{"zero token budget", "batch:\n  max_tokens_per_call: 0\n", "max_tokens_per_call"},
		{"overhead eats budget", "batch:\n  max_tokens_per_call: 100\n  prompt_overhead_tokens: 100\n", "prompt_overhead_tokens"},
		{"unknown policy", "reflow:\n  fallback_policy: retry\n", "fallback_policy"},
		{"scale above one", "reflow:\n  min_scale: 1.5\n", "min_scale"},
		{"zero parallelism", "translator:\n  parallelism: 0\n", "parallelism"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
