package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every environment key.
const Prefix = "NYX_"

// Config is the process configuration.
type Config struct {
	Addr            string        `env:"ADDR"             envDefault:":8080"`
	StoryPath       string        `env:"STORY_PATH"       envDefault:"stories/default.json"`
	StoryStart      string        `env:"STORY_START"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS"  envDefault:"*" envSeparator:","`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	CountdownSeconds  int           `env:"COUNTDOWN_SECONDS"  envDefault:"3"`
	CountdownInterval time.Duration `env:"COUNTDOWN_INTERVAL" envDefault:"1s"`
	RequireReady      bool          `env:"REQUIRE_READY"      envDefault:"false"`
	MinCapacity       int           `env:"MIN_CAPACITY"       envDefault:"1"`
	MaxCapacity       int           `env:"MAX_CAPACITY"       envDefault:"8"`
	CodeLength        int           `env:"CODE_LENGTH"        envDefault:"6"`

	TokenSecret string        `env:"TOKEN_SECRET"`
	TokenTTL    time.Duration `env:"TOKEN_TTL"    envDefault:"2h"`

	ValkeyAddr  string `env:"VALKEY_ADDR"`
	ArchiveSize int    `env:"ARCHIVE_SIZE" envDefault:"100"`

	EventsPerSecond float64 `env:"EVENTS_PER_SECOND" envDefault:"10"`
	EventBurst      int     `env:"EVENT_BURST"       envDefault:"20"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("ADDR is required"))
	}
	if c.StoryPath == "" {
		errs = append(errs, errors.New("STORY_PATH is required"))
	}
	if c.MinCapacity < 1 {
		errs = append(errs, fmt.Errorf("MIN_CAPACITY must be at least 1, got %d", c.MinCapacity))
	}
	if c.MaxCapacity < c.MinCapacity {
		errs = append(errs, fmt.Errorf("MAX_CAPACITY %d is below MIN_CAPACITY %d", c.MaxCapacity, c.MinCapacity))
	}
	if c.CodeLength < 4 || c.CodeLength > 6 {
		errs = append(errs, fmt.Errorf("CODE_LENGTH must be between 4 and 6, got %d", c.CodeLength))
	}
	if c.CountdownSeconds < 0 {
		errs = append(errs, fmt.Errorf("COUNTDOWN_SECONDS must not be negative, got %d", c.CountdownSeconds))
	}
	if c.CountdownInterval <= 0 {
		errs = append(errs, errors.New("COUNTDOWN_INTERVAL must be positive"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.ArchiveSize < 1 {
		errs = append(errs, fmt.Errorf("ARCHIVE_SIZE must be at least 1, got %d", c.ArchiveSize))
	}
	if c.EventsPerSecond <= 0 || c.EventBurst < 1 {
		errs = append(errs, errors.New("EVENTS_PER_SECOND and EVENT_BURST must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
