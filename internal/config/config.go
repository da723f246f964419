// Package config loads settings from defaults, a YAML file, the environment
// and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/skillcadence/internal/fsrs"
	"github.com/conorfennell/skillcadence/internal/interval"
)

// EnvPrefix marks environment variables read into the config. A double
// underscore separates sections: SKILLCADENCE_ORACLE__API_KEY is oracle.api_key.
const EnvPrefix = "SKILLCADENCE_"

type Config struct {
	Store  StoreConfig        `koanf:"store"`
	Server ServerConfig       `koanf:"server"`
	Oracle OracleConfig       `koanf:"oracle"`
	Quota  QuotaConfig        `koanf:"quota"`
	FSRS   FSRSConfig         `koanf:"fsrs"`
	Floors map[string]float64 `koanf:"floors" validate:"required,dive,gte=0"`
	Log    LogConfig          `koanf:"log"`
}

type StoreConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite badger"`
	Path   string `koanf:"path" validate:"required"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

type OracleConfig struct {
	Provider    string        `koanf:"provider" validate:"oneof=openai gemini static"`
	APIKey      string        `koanf:"api_key" validate:"required_unless=Provider static"`
	BaseURL     string        `koanf:"base_url" validate:"omitempty,url"`
	Model       string        `koanf:"model"`
	Temperature float32       `koanf:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int           `koanf:"max_tokens" validate:"gte=1"`
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
	// Fallback substitutes a neutral analysis when a reply cannot be parsed.
	Fallback bool `koanf:"fallback"`
}

type QuotaConfig struct {
	// DailyLimit of zero disables the quota.
	DailyLimit int    `koanf:"daily_limit" validate:"gte=0"`
	RedisURL   string `koanf:"redis_url" validate:"omitempty,url"`
	KeyPrefix  string `koanf:"key_prefix"`
}

type FSRSConfig struct {
	// Weights left empty use the built-in defaults.
	Weights          []float64 `koanf:"weights" validate:"omitempty,len=17"`
	DesiredRetention float64   `koanf:"desired_retention" validate:"gt=0,lt=1"`
	MaximumInterval  int       `koanf:"maximum_interval" validate:"gte=1,lte=36500"`
	EnableFuzz       bool      `koanf:"enable_fuzz"`
	FuzzSeed         uint64    `koanf:"fuzz_seed"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	p := fsrs.DefaultParams()
	return Config{
		Store:  StoreConfig{Driver: "sqlite", Path: "skillcadence.db"},
		Server: ServerConfig{Addr: ":8080"},
		Oracle: OracleConfig{
			Provider:    "static",
			Temperature: 0.7,
			MaxTokens:   200,
			Timeout:     30 * time.Second,
		},
		Quota: QuotaConfig{KeyPrefix: "skillcadence:"},
		FSRS: FSRSConfig{
			DesiredRetention: p.DesiredRetention,
			MaximumInterval:  p.MaximumInterval,
			EnableFuzz:       p.EnableFuzz,
		},
		Floors: map[string]float64{interval.DefaultCategory: 1, "practical": 2},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Options says where Load looks.
type Options struct {
	// File is a YAML config file. A missing file is not an error.
	File string
	// EnvFiles are .env files loaded into the process environment first.
	EnvFiles []string
	// Flags are applied last; only flags set on the command line count.
	Flags *pflag.FlagSet
	// FlagKeys maps flag names to config keys, e.g. "db" to "store.path".
	FlagKeys map[string]string
}

// Load builds and validates a Config.
func Load(opts Options) (*Config, error) {
	for _, f := range opts.EnvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	k := koanf.New(".")

	if opts.File != "" {
		if _, err := os.Stat(opts.File); err == nil {
			if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", opts.File, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.File, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := opts.FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

var validate = validator.New()

// Validate checks field constraints and the floor table.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.FloorPolicy(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.FSRSParams(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// FSRSParams converts the fsrs section into model parameters.
func (c *Config) FSRSParams() (fsrs.Params, error) {
	p := fsrs.DefaultParams()
	if len(c.FSRS.Weights) > 0 {
		if len(c.FSRS.Weights) != len(p.Weights) {
			return fsrs.Params{}, fmt.Errorf("%w: need %d weights, got %d", fsrs.ErrInvalidParams, len(p.Weights), len(c.FSRS.Weights))
		}
		copy(p.Weights[:], c.FSRS.Weights)
	}
	p.DesiredRetention = c.FSRS.DesiredRetention
	p.MaximumInterval = c.FSRS.MaximumInterval
	p.EnableFuzz = c.FSRS.EnableFuzz
	p.FuzzSeed = c.FSRS.FuzzSeed
	return p, p.Validate()
}

// FloorPolicy converts the floors table.
func (c *Config) FloorPolicy() (interval.FloorPolicy, error) {
	return interval.NewFloorPolicy(c.Floors)
}

// NewLogger builds the slog logger described by the log section.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
