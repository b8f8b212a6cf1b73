// SPDX-License-Identifier: GPL-3.0-only

package hid

import (
	"fmt"

	karalabehid "github.com/karalabe/hid"
)

// HIDAPIDevice wraps a karalabe/hid device to implement the Device interface.
type HIDAPIDevice struct {
	device karalabehid.Device // karalabe/hid.Device is an interface
	info   DeviceInfo
}

// Verify HIDAPIDevice implements Device interface.
var _ Device = (*HIDAPIDevice)(nil)

// GetFeatureReport reads a feature report from the device.
func (d *HIDAPIDevice) GetFeatureReport(data []byte) (int, error) {
	return d.device.GetFeatureReport(data)
}

// SendFeatureReport writes a feature report to the device.
func (d *HIDAPIDevice) SendFeatureReport(data []byte) (int, error) {
	return d.device.SendFeatureReport(data)
}

// Close closes the device handle.
func (d *HIDAPIDevice) Close() error {
	return d.device.Close()
}

// Info returns information about the device.
func (d *HIDAPIDevice) Info() DeviceInfo {
	return d.info
}

// StudioDisplays lists the brightness interfaces of all connected Apple
// Studio Displays.
func StudioDisplays() ([]DeviceInfo, error) {
	devices, err := karalabehid.Enumerate(AppleVendorID, StudioDisplayProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate HID devices: %w", err)
	}

	var infos []DeviceInfo
	for _, device := range devices {
		if device.Interface != BrightnessInterface {
			continue
		}
		infos = append(infos, DeviceInfo{
			Path:         device.Path,
			VendorID:     device.VendorID,
			ProductID:    device.ProductID,
			Serial:       device.Serial,
			Manufacturer: device.Manufacturer,
			Product:      device.Product,
			Interface:    device.Interface,
		})
	}
	return infos, nil
}

// OpenDevice opens the HID interface described by info. The device is
// looked up again by path so a stale info fails cleanly.
func OpenDevice(info DeviceInfo) (Device, error) {
	devices, err := karalabehid.Enumerate(info.VendorID, info.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	for _, candidate := range devices {
		if candidate.Path != info.Path {
			continue
		}
		device, err := candidate.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open display %s: %w", info.Serial, err)
		}
		return &HIDAPIDevice{device: device, info: info}, nil
	}
	return nil, fmt.Errorf("device %s is no longer connected", info.Path)
}
