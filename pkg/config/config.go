// Package config loads keyintel settings from defaults, an optional
// keyintel.yaml, KEYINTEL_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/creasty/defaults"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key: server.addr is read from
// KEYINTEL_SERVER_ADDR.
const EnvPrefix = "KEYINTEL"

// FileName is the config file looked up in the working directory when no
// explicit path is given.
const FileName = "keyintel"

// Server holds the HTTP API settings.
type Server struct {
	Addr           string  `mapstructure:"addr" default:":8080"`
	CORSOrigin     string  `mapstructure:"cors_origin" default:"*"`
	RateLimit      float64 `mapstructure:"rate_limit" default:"20"`
	RateBurst      int     `mapstructure:"rate_burst" default:"40"`
	MaxUploadBytes int64   `mapstructure:"max_upload_bytes" default:"10485760"`
}

// Config is the full runtime configuration. LogFormat "auto" means JSON for
// the server and text for interactive commands.
type Config struct {
	DataDir   string `mapstructure:"data_dir" default:"data"`
	ImagesDir string `mapstructure:"images_dir" default:"Key_Images"`
	LogLevel  string `mapstructure:"log_level" default:"info"`
	LogFormat string `mapstructure:"log_format" default:"auto"`
	Server    Server `mapstructure:"server"`
}

// Default returns a Config with every default applied.
func Default() Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config: defaults: %v", err))
	}
	return c
}

// FlagKeys maps flag names to config keys for Load.
var FlagKeys = map[string]string{
	"data-dir":   "data_dir",
	"images-dir": "images_dir",
	"log-level":  "log_level",
	"log-format": "log_format",
	"addr":       "server.addr",
}

// Load builds the configuration. path names an explicit config file; when
// empty, ./keyintel.yaml is used if it exists. flags may be nil; only the
// flags listed in FlagKeys are bound.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return cfg, fmt.Errorf("config: read %s.yaml: %w", FileName, err)
			}
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return cfg, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setDefaults registers every key with viper so AutomaticEnv can see keys
// that appear in no config file.
func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("data_dir", c.DataDir)
	v.SetDefault("images_dir", c.ImagesDir)
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("log_format", c.LogFormat)
	v.SetDefault("server.addr", c.Server.Addr)
	v.SetDefault("server.cors_origin", c.Server.CORSOrigin)
	v.SetDefault("server.rate_limit", c.Server.RateLimit)
	v.SetDefault("server.rate_burst", c.Server.RateBurst)
	v.SetDefault("server.max_upload_bytes", c.Server.MaxUploadBytes)
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("config: log_format must be auto, text or json, got %q", c.LogFormat)
	}
	if c.DataDir == "" {
		return errors.New("config: data_dir is required")
	}
	if c.ImagesDir == "" {
		return errors.New("config: images_dir is required")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("config: server.rate_limit must be >= 0, got %v", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		return fmt.Errorf("config: server.rate_burst must be >= 1, got %d", c.Server.RateBurst)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: server.max_upload_bytes must be > 0, got %d", c.Server.MaxUploadBytes)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("config: log_level: %w", err)
	}
	return l, nil
}
