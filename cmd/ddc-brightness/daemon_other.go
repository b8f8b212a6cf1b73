// SPDX-License-Identifier: GPL-3.0-only

//go:build !linux

package main

import (
	"errors"
	"runtime"

	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the D-Bus brightness service (Linux only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return errors.New("the daemon requires D-Bus and udev and is not supported on " + runtime.GOOS)
	},
}
