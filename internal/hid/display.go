// SPDX-License-Identifier: GPL-3.0-only

package hid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/shini4i/ddc-brightness-daemon/internal/brightness"
	"github.com/shini4i/ddc-brightness-daemon/internal/ddc"
	"github.com/shini4i/ddc-brightness-daemon/internal/mccs"
)

const (
	// ReportID is the HID report ID for brightness control.
	ReportID byte = 0x01

	// ReportSize is the size of the HID feature report in bytes.
	ReportSize = 7

	// AppleVendorID is the USB vendor ID for Apple.
	AppleVendorID uint16 = 0x05ac

	// StudioDisplayProductID is the USB product ID for Apple Studio Display.
	StudioDisplayProductID uint16 = 0x1114

	// BrightnessInterface is the USB interface number for brightness control.
	BrightnessInterface = 0x07

	// MaxLuminance is the maximum Luminance value reported. Values are percent.
	MaxLuminance uint16 = 100
)

// capabilities advertises Luminance as the only feature.
const capabilities = "(prot(monitor)type(lcd)model(Studio Display)cmds(01 02 03)vcp(10)mccs_ver(2.2))"

// ErrDisplayClosed is returned when an operation is attempted on a closed display.
var ErrDisplayClosed = errors.New("display is closed")

// Display is a HID monitor presented as a DDC handle with a single
// Luminance feature. All methods are safe for concurrent use.
type Display struct {
	device Device
	mu     sync.Mutex
	closed bool
}

// NewDisplay creates a new Display instance wrapping the given HID device.
func NewDisplay(device Device) *Display {
	return &Display{device: device}
}

// GetVCPFeature reads the brightness in percent. Only Luminance is supported.
func (d *Display) GetVCPFeature(code byte) (ddc.VCPValue, error) {
	if code != byte(mccs.Luminance) {
		return ddc.VCPValue{}, fmt.Errorf("%w: 0x%02x", ddc.ErrUnsupportedCode, code)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ddc.VCPValue{}, ErrDisplayClosed
	}

	data := make([]byte, ReportSize)
	data[0] = ReportID

	if _, err := d.device.GetFeatureReport(data); err != nil {
		return ddc.VCPValue{}, fmt.Errorf("failed to get feature report: %w", err)
	}

	nits := binary.LittleEndian.Uint32(data[1:5])
	return ddc.NewVCPValue(uint16(brightness.NitsToPercent(nits)), MaxLuminance), nil
}

// SetVCPFeature sets the brightness in percent. Values above 100 are clamped.
func (d *Display) SetVCPFeature(code byte, value uint16) error {
	if code != byte(mccs.Luminance) {
		return fmt.Errorf("%w: 0x%02x", ddc.ErrUnsupportedCode, code)
	}
	if value > MaxLuminance {
		value = MaxLuminance
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDisplayClosed
	}

	data := make([]byte, ReportSize)
	data[0] = ReportID
	binary.LittleEndian.PutUint32(data[1:5], brightness.PercentToNits(uint8(value)))

	if _, err := d.device.SendFeatureReport(data); err != nil {
		return fmt.Errorf("failed to send feature report: %w", err)
	}
	return nil
}

// SetTableVCPFeature always fails; HID monitors have no table features.
func (d *Display) SetTableVCPFeature(code byte, _ []byte, _ uint16) error {
	return fmt.Errorf("%w: 0x%02x", ddc.ErrUnsupportedCode, code)
}

// Capabilities returns a fixed capability string listing Luminance only.
func (d *Display) Capabilities() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return "", ErrDisplayClosed
	}
	return capabilities, nil
}

// Sleep does nothing; feature reports need no pacing.
func (d *Display) Sleep() {}

// Serial returns the serial number of the display.
// This method does not require locking as device info is immutable.
func (d *Display) Serial() string {
	return d.device.Info().Serial
}

// ProductName returns the product name of the display.
// This method does not require locking as device info is immutable.
func (d *Display) ProductName() string {
	return d.device.Info().Product
}

// Close closes the underlying HID device.
func (d *Display) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil // Already closed
	}

	d.closed = true
	return d.device.Close()
}
