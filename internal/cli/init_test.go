package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizdash/internal/config"
)

func setEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("SESSION_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("AMQP_URL", "")
}

func TestLoadConfig(t *testing.T) {
	setEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, config.BackendMemory, cfg.DataBackend)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfigRunsExtraChecks(t *testing.T) {
	setEnv(t)

	_, err := LoadConfig((*config.Config).ValidateExport)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AMQP_URL is required")

	boom := errors.New("boom")
	_, err = LoadConfig(func(*config.Config) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	setEnv(t)
	t.Setenv("PORT", "http")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port 'http'")
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("warn", "json", &buf)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"key":"value"`)
}

func TestGracefulShutdownWaitsForSignal(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("info", "text", &buf)

	calls := 0
	ctx, done := GracefulShutdown(logger, time.Second, func(ctx context.Context) error {
		calls++
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	})
	select {
	case <-ctx.Done():
		t.Fatal("context cancelled before any signal")
	case <-time.After(10 * time.Millisecond):
	}
	select {
	case <-done:
		t.Fatal("done closed before any signal")
	default:
	}
	assert.Zero(t, calls)
}
