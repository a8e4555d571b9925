package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "labouractor.yaml"), []byte(contents), 0o644))
}

func TestInitializeAppliesBuiltinDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "system: {}\n")

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPPort, cfg.HTTPPort)
	assert.Equal(t, DefaultInternalUserPrefix, cfg.InternalUserPrefix)
	assert.Equal(t, DefaultMaxRetryAttempts, cfg.MaxRetryAttempts)
	assert.Equal(t, DefaultMaxProjectorErrorCount, cfg.MaxProjectorErrorCount)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, 4, cfg.PhaseThresholds.WindowSize)
}

func TestInitializeOverridesFromYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
system:
  http_port: "9090"
  allowed_ws_origins:
    - https://app.example.com
  internal_auth:
    user_prefix: "internal_"
  process_manager:
    max_retry_attempts: 3
    batch_size: 500
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.AllowedWSOrigins)
	assert.Equal(t, "internal_", cfg.InternalUserPrefix)
	assert.Equal(t, 3, cfg.MaxRetryAttempts)
	assert.Equal(t, 500, cfg.BatchSize)
}

func TestInitializeResolvesSecretsFromEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
system:
  webhook:
    secret_env: MY_WEBHOOK_SECRET
  internal_auth:
    shared_secret_env: MY_INTERNAL_SECRET
`)
	t.Setenv("MY_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("MY_INTERNAL_SECRET", "topsecret")

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "whsec_test", cfg.WebhookSecret)
	assert.Equal(t, "topsecret", cfg.InternalAuthSecret)
}

func TestInitializeConfigNotFound(t *testing.T) {
	_, err := Initialize(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestInitializeRejectsInvertedThresholds(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
system:
  phase_thresholds:
    transition_duration_seconds: 30
    active_duration_seconds: 60
`)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}
