package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "card-duel", cfg.JWTIssuer)
	assert.Empty(t, cfg.DatabaseURL)
	assert.InDelta(t, 5.0, cfg.ChallengeRange, 1e-9)
	assert.Equal(t, 15*time.Second, cfg.PendingDuelTTL)
	assert.Equal(t, 100, cfg.VictoryReward)
	assert.Equal(t, 5*time.Second, cfg.RewardTimeout)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 2*time.Minute, cfg.SessionIdleTimeout)
	assert.True(t, cfg.Dev())
}

func TestLoadDotEnvFile(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CARD_DUEL_UNUSED=1\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CARD_DUEL_UNUSED") })

	_, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1", os.Getenv("CARD_DUEL_UNUSED"))
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CHALLENGE_RANGE", "7.5")
	t.Setenv("PENDING_DUEL_TTL", "30s")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)
	assert.InDelta(t, 7.5, cfg.ChallengeRange, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.PendingDuelTTL)
	assert.False(t, cfg.Dev())
}

func TestLoadParseError(t *testing.T) {
	t.Setenv("PENDING_DUEL_TTL", "soon")

	_, err := Load(filepath.Join(t.TempDir(), "none.env"))
	require.Error(t, err)
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := Config{AppEnv: "prod", JWTSecret: "k", ChallengeRange: 5, PendingDuelTTL: time.Second, VictoryReward: 1}
	require.NoError(t, base.Validate())

	cases := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{"zero range", func(c *Config) { c.ChallengeRange = 0 }, ErrInvalidRange},
		{"negative ttl", func(c *Config) { c.PendingDuelTTL = -time.Second }, ErrInvalidTTL},
		{"zero reward", func(c *Config) { c.VictoryReward = 0 }, ErrInvalidReward},
		{"no secret in prod", func(c *Config) { c.JWTSecret = "" }, ErrMissingSecret},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			assert.ErrorIs(t, c.Validate(), tc.want)
		})
	}

	dev := base
	dev.AppEnv = "dev"
	dev.JWTSecret = ""
	assert.NoError(t, dev.Validate())
}
