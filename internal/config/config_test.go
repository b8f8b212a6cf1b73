// SPDX-License-Identifier: GPL-3.0-only

package config_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shini4i/ddc-brightness-daemon/internal/config"
	"github.com/shini4i/ddc-brightness-daemon/internal/display"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)

	assert.False(t, cfg.Verbose)
	assert.Equal(t, []string{"i2c", "winapi", "usb-hid"}, cfg.Backends)
	assert.True(t, cfg.PreferNvapi)
	assert.Empty(t, cfg.I2C.IgnoreAdapters)
	assert.InDelta(t, 20.0, cfg.DBus.RateLimit, 0.001)
	assert.Equal(t, 5, cfg.DBus.Burst)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
verbose: true
backends: [i2c]
prefer_nvapi: false
i2c:
  ignore_adapters: ["AUX", "i915 gmbus"]
dbus:
  rate_limit: 5
  burst: 2
`)

	cfg, err := config.Load(viper.New(), path)
	require.NoError(t, err)

	assert.True(t, cfg.Verbose)
	assert.Equal(t, []string{"i2c"}, cfg.Backends)
	assert.False(t, cfg.PreferNvapi)
	assert.Equal(t, []string{"AUX", "i915 gmbus"}, cfg.I2C.IgnoreAdapters)
	assert.InDelta(t, 5.0, cfg.DBus.RateLimit, 0.001)
	assert.Equal(t, 2, cfg.DBus.Burst)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "verbose: false\n")
	t.Setenv("DDC_BRIGHTNESS_VERBOSE", "true")
	t.Setenv("DDC_BRIGHTNESS_DBUS_BURST", "9")

	cfg, err := config.Load(viper.New(), path)
	require.NoError(t, err)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, 9, cfg.DBus.Burst)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown backend", content: "backends: [serial]\n"},
		{name: "no backends", content: "backends: []\n"},
		{name: "zero rate limit", content: "dbus:\n  rate_limit: 0\n"},
		{name: "zero burst", content: "dbus:\n  burst: 0\n"},
		{name: "malformed yaml", content: "backends: [i2c\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := config.Load(viper.New(), path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_EnabledBackends(t *testing.T) {
	cfg := &config.Config{Backends: []string{"usb-hid", "i2c"}}

	backends, err := cfg.EnabledBackends()
	require.NoError(t, err)
	assert.Equal(t, []display.Backend{display.BackendUSBHID, display.BackendI2C}, backends)

	cfg.Backends = []string{"i2c", "bogus"}
	_, err = cfg.EnabledBackends()
	assert.Error(t, err)
}

func TestConfig_Policy(t *testing.T) {
	prefer := (&config.Config{PreferNvapi: true}).Policy()
	keep := (&config.Config{PreferNvapi: false}).Policy()

	assert.Equal(t, reflect.ValueOf(display.PreferNvapi).Pointer(), reflect.ValueOf(prefer).Pointer())
	assert.Equal(t, reflect.ValueOf(display.KeepAll).Pointer(), reflect.ValueOf(keep).Pointer())
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "verbose: false\n")

	v := viper.New()
	_, err := config.Load(v, path)
	require.NoError(t, err)

	changes := make(chan *config.Config, 16)
	config.Watch(v, func(cfg *config.Config) {
		select {
		case changes <- cfg:
		default:
		}
	})

	// replace atomically so the watcher never sees a truncated file
	tmp := filepath.Join(dir, "config.yaml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("verbose: true\n"), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Verbose {
				return
			}
		case <-timeout:
			t.Fatal("timeout waiting for config change")
		}
	}
}
