// Package config loads service configuration from defaults, an optional YAML
// file, a .env file, TEXTO_DIAGRAMA_* environment variables and flags, in
// that order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fredericrous/texto-diagrama/internal/ai"
	"github.com/fredericrous/texto-diagrama/internal/pipeline"
	"github.com/fredericrous/texto-diagrama/internal/server"
	"github.com/fredericrous/texto-diagrama/internal/session"
)

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore: TEXTO_DIAGRAMA_AI__API_KEY sets ai.api_key.
const EnvPrefix = "TEXTO_DIAGRAMA_"

type Config struct {
	Server   server.Config   `koanf:"server"`
	Log      LogConfig       `koanf:"log"`
	AI       ai.Config       `koanf:"ai"`
	Pipeline pipeline.Config `koanf:"pipeline"`
	Session  session.Config  `koanf:"session"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // text | json
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: server.Config{
			Port:            8080,
			MaxInputBytes:   64 << 10,
			ShutdownTimeout: 5 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		AI: ai.Config{
			Provider:    "gemini",
			Temperature: 0.3,
			Timeout:     30 * time.Second,
		},
		Pipeline: pipeline.Config{
			Fallback:        pipeline.PolicyHeuristic,
			Styling:         true,
			AITimeout:       30 * time.Second,
			MaxConcurrentAI: 4,
		},
		Session: session.Config{
			TTL:           24 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
	}
}

// Load builds the configuration for the given command-line arguments
// (without the program name).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("texto-diagrama", flag.ContinueOnError)
	path := fs.String("config", "", "path to a YAML config file")
	port := fs.Int("port", 0, "HTTP server port (overrides config)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if *path != "" {
		if err := k.Load(file.Provider(*path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading %s: %w", *path, err)
		}
	}

	// Best-effort: a missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("ignoring unreadable .env", "error", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if *port != 0 {
		cfg.Server.Port = *port
	}
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = providerKey(cfg.AI.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps TEXTO_DIAGRAMA_SESSION__SWEEP_INTERVAL to session.sweep_interval.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// providerKey reads the conventional per-provider key variable.
func providerKey(provider string) string {
	switch provider {
	case "openrouter":
		return strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	default:
		return strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.MaxInputBytes <= 0 {
		return fmt.Errorf("server.max_input_bytes must be positive")
	}
	switch c.AI.Provider {
	case "gemini", "openrouter":
	default:
		return fmt.Errorf("unknown ai.provider %q", c.AI.Provider)
	}
	switch c.Pipeline.Fallback {
	case pipeline.PolicyHeuristic, pipeline.PolicyNone:
	default:
		return fmt.Errorf("unknown pipeline.fallback %q", c.Pipeline.Fallback)
	}
	if c.Pipeline.MaxConcurrentAI <= 0 {
		return fmt.Errorf("pipeline.max_concurrent_ai must be positive")
	}
	if c.Session.TTL <= 0 || c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session.ttl and session.sweep_interval must be positive")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}

// ParseLevel maps a level name to its slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log.level %q", s)
	}
	return l, nil
}

// Logger builds the process logger described by c.
func (c LogConfig) Logger() *slog.Logger {
	level, err := ParseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
