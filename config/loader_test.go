package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 160, cfg.Engine.Compliance.MaxLength)
	assert.Equal(t, 2, cfg.Engine.Qualification.VagueStreakThreshold)
	assert.Equal(t, 0.7, cfg.Engine.Handoff.ConfidenceThreshold)
	assert.Contains(t, cfg.Engine.Compliance.OptOutPhrases, "stop")
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  addr: ":9999"
engine:
  compliance:
    max_length: 320
  handoff:
    cooldown_window: 2h
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 320, cfg.Engine.Compliance.MaxLength)
	assert.Equal(t, 2*time.Hour, cfg.Engine.Handoff.CooldownWindow)
	// Untouched sections keep defaults.
	assert.Equal(t, 4, cfg.Engine.RateLimit.PerHour)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LEADFLOW_REDIS_ADDR", "redis-prod:6379")
	t.Setenv("LEADFLOW_ENGINE_COMPLIANCE_MAX_LENGTH", "140")
	t.Setenv("LEADFLOW_ENGINE_DEDUP_LEASE_TTL", "45s")
	t.Setenv("LEADFLOW_ENGINE_COMPLIANCE_OPT_OUT_PHRASES", "stop, basta")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "redis-prod:6379", cfg.Redis.Addr)
	assert.Equal(t, 140, cfg.Engine.Compliance.MaxLength)
	assert.Equal(t, 45*time.Second, cfg.Engine.Dedup.LeaseTTL)
	assert.Equal(t, []string{"stop", "basta"}, cfg.Engine.Compliance.OptOutPhrases)
}

func TestValidatorFailure(t *testing.T) {
	_, err := NewLoader().WithValidator(func(c *Config) error {
		if c.Engine.Compliance.MaxLength < 1 {
			return os.ErrInvalid
		}
		return nil
	}).Load()
	require.NoError(t, err)

	t.Setenv("LEADFLOW_ENGINE_COMPLIANCE_MAX_LENGTH", "0")
	_, err = NewLoader().WithValidator(func(c *Config) error {
		if c.Engine.Compliance.MaxLength < 1 {
			return os.ErrInvalid
		}
		return nil
	}).Load()
	assert.Error(t, err)
}
