// Package config loads engine configuration from defaults, an optional
// YAML file, DECKARD_-prefixed environment variables, and command-line
// flags, in that order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds everything the binary needs to wire the engine.
type Config struct {
	DatabasePath   string `koanf:"database_path"     validate:"required"`
	GatewayURL     string `koanf:"gateway_url"       validate:"required,url"`
	ReposDir       string `koanf:"repos_dir"         validate:"required"`
	SyncEndpoint   string `koanf:"sync_endpoint"     validate:"omitempty,url"`
	SyncToken      string `koanf:"sync_token"`
	NewCardsPerDay int    `koanf:"new_cards_per_day" validate:"gte=0"`
	LogLevel       string `koanf:"log_level"         validate:"oneof=debug info warn error"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		DatabasePath:   "deckard.db",
		GatewayURL:     "https://public.w3ipfs.storage",
		ReposDir:       "repos",
		NewCardsPerDay: 20,
		LogLevel:       "info",
	}
}

var validate = validator.New()

// Load layers file, environment, and flag values over the defaults and
// validates the result. path may be empty to skip the file layer;
// flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// DECKARD_SYNC_ENDPOINT -> sync_endpoint
	err := k.Load(env.Provider("DECKARD_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "DECKARD_"))
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("load environment config: %w", err)
	}

	if flags != nil {
		// Flags beat file and env values, but an unchanged flag does
		// not clobber them.
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("load flag config: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
