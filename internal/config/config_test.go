package config_test

import (
	"flagwatch/backend/internal/config"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", "")
	t.Setenv("SCAN_WORKERS", "")

	cfg, err := config.Load(quietLogger())
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "exact", cfg.BlacklistMode)
	assert.Equal(t, "file", cfg.LedgerBackend)
	assert.Equal(t, config.DefaultScanThreshold, cfg.Scan.Threshold)
	assert.Equal(t, config.DefaultScanWorkers, cfg.Scan.Workers)
	assert.Equal(t, config.DefaultScanTimeout, cfg.Scan.Timeout)
	assert.Equal(t, config.DefaultWebhookTimeout, cfg.WebhookTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SCAN_WORKERS", "12")
	t.Setenv("SCAN_THRESHOLD", "3")
	t.Setenv("SCAN_TIMEOUT", "90s")
	t.Setenv("BLACKLIST_MODE", "CONTAINS")
	t.Setenv("WEBHOOK_HIGH", "https://example.com/hook")

	cfg, err := config.Load(quietLogger())
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Scan.Workers)
	assert.Equal(t, 3, cfg.Scan.Threshold)
	assert.Equal(t, 90*time.Second, cfg.Scan.Timeout)
	assert.Equal(t, "contains", cfg.BlacklistMode)
	assert.Equal(t, "https://example.com/hook", cfg.Webhooks.High)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"too many workers", "SCAN_WORKERS", "50"},
		{"non-numeric workers", "SCAN_WORKERS", "many"},
		{"bad blacklist mode", "BLACKLIST_MODE", "fuzzy"},
		{"bad duration", "SCAN_TIMEOUT", "soon"},
		{"postgres without dsn", "LEDGER_BACKEND", "postgres"},
		{"bad webhook url", "WEBHOOK_LOW", "not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_DSN", "")
			t.Setenv(tt.key, tt.val)
			_, err := config.Load(quietLogger())
			assert.Error(t, err)
		})
	}
}
