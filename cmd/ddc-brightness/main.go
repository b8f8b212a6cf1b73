// SPDX-License-Identifier: GPL-3.0-only

// Package main provides the entry point for the DDC/CI brightness tool and daemon.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shini4i/ddc-brightness-daemon/internal/config"
	"github.com/shini4i/ddc-brightness-daemon/internal/display"
	"github.com/shini4i/ddc-brightness-daemon/internal/hid"
	"github.com/shini4i/ddc-brightness-daemon/internal/i2c"
	"github.com/shini4i/ddc-brightness-daemon/internal/winapi"
)

var (
	verbose    bool
	configPath string

	v   = viper.New()
	cfg *config.Config

	// newManager builds the display manager used by every command.
	// Tests replace it to inject fake backends.
	newManager = buildManager

	rootCmd = &cobra.Command{
		Use:   "ddc-brightness",
		Short: "Control monitor brightness over DDC/CI",
		Long: `ddc-brightness reads and writes monitor brightness and other MCCS
VCP features over DDC/CI.

Displays are found through the enabled backends (I2C on Linux, the
Windows monitor configuration API and Apple Studio Display USB HID) and
addressed by their index in the list command output. The daemon command
exposes the same operations as a D-Bus service and emits signals when
displays are connected or disconnected.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the config file")

	rootCmd.AddCommand(listCmd, getCmd, setCmd, vcpCmd, capabilitiesCmd, daemonCmd)
}

// initConfig loads the configuration and configures logging. The --verbose
// flag takes precedence over the config file when it is set explicitly.
func initConfig(cmd *cobra.Command) error {
	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return fmt.Errorf("failed to bind verbose flag: %w", err)
	}

	loaded, err := config.Load(v, configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	setupLogging(cfg.Verbose)
	return nil
}

func setupLogging(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// buildManager registers an enumerator for every enabled backend.
func buildManager(c *config.Config) (*display.Manager, error) {
	backends, err := c.EnabledBackends()
	if err != nil {
		return nil, err
	}

	opts := []display.ManagerOption{display.WithPolicy(c.Policy())}
	for _, b := range backends {
		switch b {
		case display.BackendI2C:
			e := i2c.NewEnumerator(i2c.WithIgnoredAdapters(c.I2C.IgnoreAdapters...))
			opts = append(opts, display.WithEnumerator(b, e.Enumerate))
		case display.BackendWinAPI:
			opts = append(opts, display.WithEnumerator(b, winapi.Enumerate))
		case display.BackendUSBHID:
			opts = append(opts, display.WithEnumerator(b, hid.NewEnumerator().Enumerate))
		default:
			log.Warn().Str("backend", b.String()).Msg("Backend is not available in this build, skipping")
		}
	}
	return display.NewManager(opts...), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}
