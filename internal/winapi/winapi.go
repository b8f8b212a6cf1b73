// SPDX-License-Identifier: GPL-3.0-only

// Package winapi finds monitors through the Windows monitor configuration
// API (dxva2). On other platforms it reports no displays.
package winapi

import "fmt"

func displayID(monitor, physical int) string {
	return fmt.Sprintf("winapi-%d.%d", monitor, physical)
}
