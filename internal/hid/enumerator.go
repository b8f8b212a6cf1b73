// SPDX-License-Identifier: GPL-3.0-only

package hid

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/shini4i/ddc-brightness-daemon/internal/display"
)

// appleManufacturerID is Apple's EDID PNP id.
const appleManufacturerID = "APP"

// Enumerator opens every connected HID monitor as a display.
type Enumerator struct {
	enumerator DeviceEnumerator
	opener     DeviceOpener
}

// EnumeratorOption is a functional option for configuring an Enumerator.
type EnumeratorOption func(*Enumerator)

// WithDeviceEnumerator sets a custom device enumerator for testing.
func WithDeviceEnumerator(fn DeviceEnumerator) EnumeratorOption {
	return func(e *Enumerator) {
		e.enumerator = fn
	}
}

// WithOpener sets a custom device opener for testing.
func WithOpener(fn DeviceOpener) EnumeratorOption {
	return func(e *Enumerator) {
		e.opener = fn
	}
}

// NewEnumerator creates an enumerator for Apple Studio Displays.
func NewEnumerator(opts ...EnumeratorOption) *Enumerator {
	e := &Enumerator{
		enumerator: StudioDisplays,
		opener:     OpenDevice,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enumerate opens all connected devices. Devices that fail to open are
// logged and skipped.
func (e *Enumerator) Enumerate() ([]*display.Display, error) {
	infos, err := e.enumerator()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate displays: %w", err)
	}

	displays := make([]*display.Display, 0, len(infos))
	for _, info := range infos {
		device, err := e.opener(info)
		if err != nil {
			log.Error().Err(err).Str("serial", info.Serial).Msg("Failed to open display")
			continue
		}

		displays = append(displays, &display.Display{
			Info: display.Info{
				Backend:        display.BackendUSBHID,
				ID:             "usb-hid-" + info.Serial,
				SerialNumber:   info.Serial,
				ModelID:        info.ProductID,
				ModelName:      info.Product,
				ManufacturerID: appleManufacturerID,
			},
			Handle: NewDisplay(device),
		})
	}
	return displays, nil
}
