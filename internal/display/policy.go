// SPDX-License-Identifier: GPL-3.0-only

package display

// Policy decides which enumerated displays are kept when backends overlap.
// Displays it drops are closed by the Manager.
type Policy func(displays []*Display) (kept, dropped []*Display)

// PreferNvapi prefers Nvapi over WinAPI when both report the same physical
// display. The two backends cannot be correlated reliably, so the presence of
// any Nvapi display drops every WinAPI display. Without Nvapi all displays
// are kept. Order is preserved.
func PreferNvapi(displays []*Display) (kept, dropped []*Display) {
	hasNvapi := false
	for _, d := range displays {
		if d.Info.Backend == BackendNvapi {
			hasNvapi = true
			break
		}
	}
	if !hasNvapi {
		return displays, nil
	}

	for _, d := range displays {
		if d.Info.Backend == BackendWinAPI {
			dropped = append(dropped, d)
			continue
		}
		kept = append(kept, d)
	}
	return kept, dropped
}

// KeepAll keeps every display.
func KeepAll(displays []*Display) (kept, dropped []*Display) {
	return displays, nil
}
