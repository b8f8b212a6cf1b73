// SPDX-License-Identifier: GPL-3.0-only

package hid

import (
	"errors"
	"strings"
	"syscall"
)

// IsDeviceGoneError reports whether err indicates that the device behind a
// handle has been disconnected and the display list should be refreshed.
func IsDeviceGoneError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDisplayClosed) ||
		errors.Is(err, syscall.ENODEV) ||
		errors.Is(err, syscall.ENXIO) ||
		errors.Is(err, syscall.EIO) {
		return true
	}
	// hidapi reports errors as plain strings
	return strings.Contains(err.Error(), "No such device")
}
