// SPDX-License-Identifier: GPL-3.0-only

// Package config loads daemon and CLI settings from file, environment and
// flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/shini4i/ddc-brightness-daemon/internal/display"
)

const (
	// EnvPrefix prefixes every environment override, e.g. DDC_BRIGHTNESS_VERBOSE.
	EnvPrefix = "DDC_BRIGHTNESS"

	// AppName names the configuration directory.
	AppName = "ddc-brightness"
)

// Config holds all settings.
type Config struct {
	Verbose     bool       `mapstructure:"verbose"`
	Backends    []string   `mapstructure:"backends" validate:"min=1,dive,oneof=i2c winapi nvapi usb-hid"`
	PreferNvapi bool       `mapstructure:"prefer_nvapi"`
	I2C         I2CConfig  `mapstructure:"i2c"`
	DBus        DBusConfig `mapstructure:"dbus"`
}

// I2CConfig configures the I2C backend.
type I2CConfig struct {
	// IgnoreAdapters lists adapter name fragments to skip in addition to SMBus.
	IgnoreAdapters []string `mapstructure:"ignore_adapters"`
}

// DBusConfig configures the D-Bus service.
type DBusConfig struct {
	RateLimit float64 `mapstructure:"rate_limit" validate:"gt=0"`
	Burst     int     `mapstructure:"burst" validate:"min=1"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("verbose", false)
	v.SetDefault("backends", []string{"i2c", "winapi", "usb-hid"})
	v.SetDefault("prefer_nvapi", true)
	v.SetDefault("i2c.ignore_adapters", []string{})
	v.SetDefault("dbus.rate_limit", 20.0)
	v.SetDefault("dbus.burst", 5)
}

// DefaultPath returns the configuration file location under the user's
// config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, AppName, "config.yaml"), nil
}

// Load reads the configuration into v and decodes it. An explicit path must
// exist; the default path is optional.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case !explicit && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)):
			log.Debug().Str("path", path).Msg("No config file, using defaults")
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Watch calls onChange with the re-decoded configuration every time the
// config file changes. Invalid edits are logged and ignored.
func Watch(v *viper.Viper, onChange func(*Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name).Msg("Ignoring invalid config change")
			return
		}
		log.Info().Str("file", e.Name).Msg("Config reloaded")
		onChange(cfg)
	})
	v.WatchConfig()
}

// EnabledBackends resolves the configured backend names in order.
func (c *Config) EnabledBackends() ([]display.Backend, error) {
	backends := make([]display.Backend, 0, len(c.Backends))
	for _, name := range c.Backends {
		b, err := display.ParseBackend(name)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}
	return backends, nil
}

// Policy returns the backend tie-break policy.
func (c *Config) Policy() display.Policy {
	if c.PreferNvapi {
		return display.PreferNvapi
	}
	return display.KeepAll
}
