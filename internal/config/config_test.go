package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/compliance-intelligence/internal/common"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "anthropic", cfg.Reasoning.Provider)
	assert.Equal(t, "env-key", cfg.Reasoning.APIKey)
	assert.InDelta(t, 0.1, cfg.Cache.Alpha, 1e-9)
	assert.InDelta(t, 0.8, cfg.Cache.SuccessPrior, 1e-9)
	assert.Equal(t, 3, cfg.Cache.Fuzzy.MinSharedTokens)
	assert.Zero(t, cfg.Cache.Fuzzy.MinScore)
	assert.Equal(t, 24*time.Hour, cfg.Learning.Interval)
	assert.Equal(t, 30*24*time.Hour, cfg.Learning.Lookback)
	assert.Equal(t, 5, cfg.Learning.MinSampleSize)
	assert.Equal(t, 90*24*time.Hour, cfg.Feedback.Retention)
	assert.Equal(t, "cie.db", filepath.Base(cfg.Database.Path))
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  path: ` + filepath.Join(dir, "data.db") + `
server:
  addr: 127.0.0.1:9000
reasoning:
  api_key: file-key
  rate_limit: 10
cache:
  alpha: 0.2
  wait_timeout: 5s
  fuzzy:
    min_shared_tokens: 4
learning:
  incremental: true
  interval: 1h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data.db"), cfg.Database.Path)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "file-key", cfg.Reasoning.APIKey)
	assert.Equal(t, 10, cfg.Reasoning.RateLimit)
	assert.InDelta(t, 0.2, cfg.Cache.Alpha, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.Cache.WaitTimeout)
	assert.Equal(t, 4, cfg.Cache.Fuzzy.MinSharedTokens)
	assert.True(t, cfg.Learning.Incremental)
	assert.Equal(t, time.Hour, cfg.Learning.Interval)

	opts := cfg.CacheOptions(nil)
	assert.Equal(t, 4, opts.MinSharedTokens)
	assert.Equal(t, 5*time.Second, opts.WaitTimeout)
	assert.Equal(t, "file-key", cfg.ReasoningOptions().APIKey)
	assert.True(t, cfg.LearningOptions(nil).Incremental)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		value any
		name  string
		key   string
	}{
		{name: "log level", key: "logging.level", value: "loud"},
		{name: "log format", key: "logging.format", value: "xml"},
		{name: "provider", key: "reasoning.provider", value: "oracle"},
		{name: "alpha zero", key: "cache.alpha", value: 0.0},
		{name: "alpha above one", key: "cache.alpha", value: 1.5},
		{name: "prior", key: "cache.success_prior", value: 2.0},
		{name: "min score", key: "cache.fuzzy.min_score", value: -0.1},
		{name: "sample size", key: "learning.min_sample_size", value: 0},
		{name: "temperature", key: "reasoning.temperature", value: 3.0},
		{name: "queue size", key: "feedback.queue_size", value: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)
			_, err := Load(v)
			require.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("CIE_TEST_DIR", "/var/lib/cie")

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "~", want: home},
		{in: "~/cie.db", want: filepath.Join(home, "cie.db")},
		{in: "$CIE_TEST_DIR/cie.db", want: "/var/lib/cie/cie.db"},
		{in: "/abs/cie.db", want: "/abs/cie.db"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandPath(tt.in), tt.in)
	}
}
