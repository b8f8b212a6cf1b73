// SPDX-License-Identifier: GPL-3.0-only

package display

import "strings"

// Query selects displays by their Info.
type Query func(Info) bool

// ByBackend matches displays found through backend.
func ByBackend(backend Backend) Query {
	return func(i Info) bool { return i.Backend == backend }
}

// ByID matches the backend-specific display id.
func ByID(id string) Query {
	return func(i Info) bool { return i.ID == id }
}

// BySerialNumber matches the EDID serial number string.
func BySerialNumber(serial string) Query {
	return func(i Info) bool { return i.SerialNumber == serial }
}

// ByModelName matches the model name, case-insensitively.
func ByModelName(name string) Query {
	return func(i Info) bool { return strings.EqualFold(i.ModelName, name) }
}

// ByManufacturerID matches the three-letter EDID manufacturer id.
func ByManufacturerID(id string) Query {
	return func(i Info) bool { return strings.EqualFold(i.ManufacturerID, id) }
}

// Matches reports whether the info satisfies every query.
func (i Info) Matches(queries ...Query) bool {
	for _, q := range queries {
		if !q(i) {
			return false
		}
	}
	return true
}
