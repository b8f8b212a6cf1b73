// SPDX-License-Identifier: GPL-3.0-only

package mccs

import (
	"fmt"
	"slices"
)

// Descriptor describes a VCP feature a specific display supports.
type Descriptor struct {
	Code  FeatureCode
	Name  string
	Group Group
	// Values lists the allowed values of a non-continuous feature.
	// It is nil for continuous features.
	Values []byte
}

// Database maps the feature codes a display supports to their descriptors.
// A nil Database is valid and empty.
type Database map[FeatureCode]Descriptor

// NewDatabase builds a feature database from parsed capabilities. Names come
// from the display's vcpname entries when present, then the static table.
func NewDatabase(caps *Capabilities) Database {
	db := make(Database, len(caps.VCP))
	for code, values := range caps.VCP {
		desc := Descriptor{Code: code, Values: values}
		if f, ok := Describe(code); ok {
			desc.Name = f.Name
			desc.Group = f.Group
		}
		if name, ok := caps.VCPNames[code]; ok {
			desc.Name = name
		}
		if desc.Name == "" {
			desc.Name = fmt.Sprintf("Unknown%02X", uint8(code))
		}
		db[code] = desc
	}
	return db
}

// Get returns the descriptor for a code.
func (db Database) Get(code FeatureCode) (Descriptor, bool) {
	d, ok := db[code]
	return d, ok
}

// Codes returns the supported codes in ascending order.
func (db Database) Codes() []FeatureCode {
	codes := make([]FeatureCode, 0, len(db))
	for code := range db {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}
