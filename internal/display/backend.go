// SPDX-License-Identifier: GPL-3.0-only

package display

import (
	"fmt"
	"strings"
)

// Backend identifies the platform transport a Display was found through.
type Backend int

const (
	// BackendI2C is DDC/CI over a Linux /dev/i2c-N adapter.
	BackendI2C Backend = iota + 1
	// BackendWinAPI is DDC/CI through the Windows dxva2 monitor configuration API.
	BackendWinAPI
	// BackendNvapi is DDC/CI through the NVIDIA driver API.
	BackendNvapi
	// BackendUSBHID is a monitor controlled through USB HID feature reports.
	BackendUSBHID
)

var backendNames = map[Backend]string{
	BackendI2C:    "i2c",
	BackendWinAPI: "winapi",
	BackendNvapi:  "nvapi",
	BackendUSBHID: "usb-hid",
}

func (b Backend) String() string {
	if name, ok := backendNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

// MarshalText implements encoding.TextMarshaler.
func (b Backend) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Backend) UnmarshalText(text []byte) error {
	parsed, err := ParseBackend(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseBackend resolves a backend by its name.
func ParseBackend(name string) (Backend, error) {
	for b, n := range backendNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown backend %q", name)
}
