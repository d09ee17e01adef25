// Package config loads process configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrInvalidRange  = errors.New("CHALLENGE_RANGE must be positive")
	ErrInvalidTTL    = errors.New("PENDING_DUEL_TTL must be positive")
	ErrInvalidReward = errors.New("VICTORY_REWARD must be positive")
	ErrMissingSecret = errors.New("JWT_SECRET is required outside dev")
)

type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	AppEnv   string `env:"APP_ENV" envDefault:"prod"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Empty keeps collections in memory.
	DatabaseURL string `env:"DATABASE_URL"`

	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"card-duel"`

	ChallengeRange     float64       `env:"CHALLENGE_RANGE" envDefault:"5"`
	PendingDuelTTL     time.Duration `env:"PENDING_DUEL_TTL" envDefault:"15s"`
	VictoryReward      int           `env:"VICTORY_REWARD" envDefault:"100"`
	RewardTimeout      time.Duration `env:"REWARD_TIMEOUT" envDefault:"5s"`
	StoreTimeout       time.Duration `env:"STORE_TIMEOUT" envDefault:"3s"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"2m"`
}

func (c Config) Dev() bool { return c.AppEnv == "dev" }

// Load reads the named .env files (".env" when none are given) if they exist,
// then parses the environment. Variables already set win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ChallengeRange <= 0 {
		return ErrInvalidRange
	}
	if c.PendingDuelTTL <= 0 {
		return ErrInvalidTTL
	}
	if c.VictoryReward <= 0 {
		return ErrInvalidReward
	}
	if c.JWTSecret == "" && !c.Dev() {
		return ErrMissingSecret
	}
	return nil
}
