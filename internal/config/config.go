package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config is the runtime configuration. Values are layered: flag defaults,
// then an optional YAML file, then WORDSUB_* environment variables, then
// explicitly set flags.
type Config struct {
	Database      string        `koanf:"database" validate:"required"`
	ReposDir      string        `koanf:"repos-dir" validate:"required"`
	Listen        string        `koanf:"listen" validate:"required,hostname_port"`
	SessionLimit  int           `koanf:"session-limit" validate:"gt=0,lte=500"`
	SessionMaxAge time.Duration `koanf:"session-max-age" validate:"gt=0"`
}

// Load merges all configuration layers and validates the result. The path
// of the optional YAML file is taken from the flag set's "config" flag.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, err := flags.GetString("config"); err == nil && path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	// WORDSUB_SESSION_LIMIT becomes session-limit, etc.
	if err := k.Load(env.Provider("WORDSUB_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "WORDSUB_")), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Flags defines the flag set every subcommand shares, with the defaults
// the rest of the configuration layers override.
func Flags(name string) *pflag.FlagSet {
	f := pflag.NewFlagSet(name, pflag.ExitOnError)
	f.String("config", "", "path to an optional YAML config file")
	f.String("database", "wordsub.db", "path to the SQLite database file")
	f.String("repos-dir", "repos", "directory for mirrored git deck sources")
	f.String("listen", "127.0.0.1:8080", "address for the study API server")
	f.Int("session-limit", 20, "maximum cards per study session")
	f.Duration("session-max-age", 72*time.Hour, "age after which an unfinished session is discarded")
	f.String("deck", "", "deck to study (default: all decks)")
	f.Bool("reversed", false, "show translations first")
	return f
}
