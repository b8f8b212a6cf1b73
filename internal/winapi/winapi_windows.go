// SPDX-License-Identifier: GPL-3.0-only

//go:build windows

package winapi

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/windows"

	"github.com/shini4i/ddc-brightness-daemon/internal/ddc"
	"github.com/shini4i/ddc-brightness-daemon/internal/display"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")
	dxva2  = windows.NewLazySystemDLL("dxva2.dll")

	procEnumDisplayMonitors                     = user32.NewProc("EnumDisplayMonitors")
	procGetNumberOfPhysicalMonitorsFromHMONITOR = dxva2.NewProc("GetNumberOfPhysicalMonitorsFromHMONITOR")
	procGetPhysicalMonitorsFromHMONITOR         = dxva2.NewProc("GetPhysicalMonitorsFromHMONITOR")
	procDestroyPhysicalMonitor                  = dxva2.NewProc("DestroyPhysicalMonitor")
	procGetVCPFeatureAndVCPFeatureReply         = dxva2.NewProc("GetVCPFeatureAndVCPFeatureReply")
	procSetVCPFeature                           = dxva2.NewProc("SetVCPFeature")
	procGetCapabilitiesStringLength             = dxva2.NewProc("GetCapabilitiesStringLength")
	procCapabilitiesRequestAndCapabilitiesReply = dxva2.NewProc("CapabilitiesRequestAndCapabilitiesReply")
)

// mcMomentary is MC_MOMENTARY in MC_VCP_CODE_TYPE.
const mcMomentary = 0

// physicalMonitor mirrors PHYSICAL_MONITOR.
type physicalMonitor struct {
	Handle      windows.Handle
	Description [128]uint16
}

// Enumerate returns every physical monitor of every display monitor.
func Enumerate() ([]*display.Display, error) {
	if err := dxva2.Load(); err != nil {
		return nil, fmt.Errorf("failed to load dxva2: %w", err)
	}

	var monitors []uintptr
	cb := windows.NewCallback(func(hMonitor, hdc, rect, data uintptr) uintptr {
		monitors = append(monitors, hMonitor)
		return 1
	})
	if ret, _, err := procEnumDisplayMonitors.Call(0, 0, cb, 0); ret == 0 {
		return nil, fmt.Errorf("failed to enumerate display monitors: %w", err)
	}

	var displays []*display.Display
	for i, hMonitor := range monitors {
		physical, err := physicalMonitors(hMonitor)
		if err != nil {
			log.Warn().Err(err).Int("monitor", i).Msg("Failed to get physical monitors")
			continue
		}
		for j, pm := range physical {
			displays = append(displays, &display.Display{
				Info: display.Info{
					Backend:   display.BackendWinAPI,
					ID:        displayID(i, j),
					ModelName: windows.UTF16ToString(pm.Description[:]),
				},
				Handle: &handle{monitor: pm.Handle},
			})
		}
	}
	return displays, nil
}

func physicalMonitors(hMonitor uintptr) ([]physicalMonitor, error) {
	var count uint32
	if ret, _, err := procGetNumberOfPhysicalMonitorsFromHMONITOR.Call(hMonitor, uintptr(unsafe.Pointer(&count))); ret == 0 {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	physical := make([]physicalMonitor, count)
	if ret, _, err := procGetPhysicalMonitorsFromHMONITOR.Call(hMonitor, uintptr(count), uintptr(unsafe.Pointer(&physical[0]))); ret == 0 {
		return nil, err
	}
	return physical, nil
}

// handle drives one physical monitor. dxva2 enforces the DDC/CI timing
// itself, so Sleep does nothing.
type handle struct {
	monitor windows.Handle
}

func (h *handle) GetVCPFeature(code byte) (ddc.VCPValue, error) {
	var codeType, current, maximum uint32
	ret, _, err := procGetVCPFeatureAndVCPFeatureReply.Call(
		uintptr(h.monitor),
		uintptr(code),
		uintptr(unsafe.Pointer(&codeType)),
		uintptr(unsafe.Pointer(&current)),
		uintptr(unsafe.Pointer(&maximum)),
	)
	if ret == 0 {
		return ddc.VCPValue{}, fmt.Errorf("failed to get vcp feature 0x%02x: %w", code, err)
	}

	value := ddc.NewVCPValue(uint16(current), uint16(maximum))
	if codeType == mcMomentary {
		value.Type = ddc.TypeMomentary
	}
	return value, nil
}

func (h *handle) SetVCPFeature(code byte, value uint16) error {
	if ret, _, err := procSetVCPFeature.Call(uintptr(h.monitor), uintptr(code), uintptr(value)); ret == 0 {
		return fmt.Errorf("failed to set vcp feature 0x%02x: %w", code, err)
	}
	return nil
}

func (h *handle) SetTableVCPFeature(code byte, data []byte, offset uint16) error {
	return errors.New("table writes are not available through the monitor configuration api")
}

func (h *handle) Capabilities() (string, error) {
	var length uint32
	if ret, _, err := procGetCapabilitiesStringLength.Call(uintptr(h.monitor), uintptr(unsafe.Pointer(&length))); ret == 0 {
		return "", fmt.Errorf("failed to get capabilities length: %w", err)
	}
	if length == 0 {
		return "", errors.New("empty capabilities string")
	}

	buf := make([]byte, length)
	if ret, _, err := procCapabilitiesRequestAndCapabilitiesReply.Call(uintptr(h.monitor), uintptr(unsafe.Pointer(&buf[0])), uintptr(length)); ret == 0 {
		return "", fmt.Errorf("failed to read capabilities: %w", err)
	}
	return windows.ByteSliceToString(buf), nil
}

func (h *handle) Sleep() {}

func (h *handle) Close() error {
	if ret, _, err := procDestroyPhysicalMonitor.Call(uintptr(h.monitor)); ret == 0 {
		return fmt.Errorf("failed to destroy physical monitor: %w", err)
	}
	return nil
}
