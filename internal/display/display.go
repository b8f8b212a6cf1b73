// SPDX-License-Identifier: GPL-3.0-only

// Package display resolves connected monitors across backends and performs
// brightness and VCP operations on them.
package display

//go:generate mockgen -source=display.go -destination=mocks/handle_mock.go -package=mocks

import (
	"fmt"

	"github.com/shini4i/ddc-brightness-daemon/internal/ddc"
	"github.com/shini4i/ddc-brightness-daemon/internal/mccs"
)

// Handle is the control channel of a single display.
// This interface allows for mocking in tests.
type Handle interface {
	// GetVCPFeature reads the current and maximum value of a feature.
	GetVCPFeature(code byte) (ddc.VCPValue, error)

	// SetVCPFeature writes a feature value.
	SetVCPFeature(code byte, value uint16) error

	// SetTableVCPFeature writes table data for a table-type feature.
	SetTableVCPFeature(code byte, data []byte, offset uint16) error

	// Capabilities reads the raw capability string.
	Capabilities() (string, error)

	// Sleep blocks until the display accepts the next command.
	Sleep()

	// Close releases the underlying transport.
	Close() error
}

// Info describes a display. Identification fields are filled from EDID when
// the backend can read it; MCCSVersion, Capabilities and Database are only
// set after a capability refresh.
type Info struct {
	Index           int                `json:"index"`
	Backend         Backend            `json:"backend"`
	ID              string             `json:"displayId"`
	EDID            []byte             `json:"edidData,omitempty"`
	Version         string             `json:"version,omitempty"`
	MCCSVersion     string             `json:"mccsVersion,omitempty"`
	Serial          uint32             `json:"serial,omitempty"`
	SerialNumber    string             `json:"serialNumber,omitempty"`
	ModelID         uint16             `json:"modelId,omitempty"`
	ModelName       string             `json:"modelName,omitempty"`
	ManufacturerID  string             `json:"manufacturerId,omitempty"`
	ManufactureYear int                `json:"manufactureYear,omitempty"`
	ManufactureWeek uint8              `json:"manufactureWeek,omitempty"`
	Capabilities    *mccs.Capabilities `json:"-"`
	Database        mccs.Database      `json:"-"`
}

// ApplyEDID copies the identification fields of an EDID block.
func (i *Info) ApplyEDID(e *ddc.EDID) {
	i.EDID = e.Raw
	i.Version = fmt.Sprintf("%d.%d", e.Version, e.Revision)
	i.Serial = e.Serial
	i.SerialNumber = e.SerialNumber
	i.ModelID = e.ProductCode
	i.ModelName = e.ModelName
	i.ManufacturerID = e.ManufacturerID
	i.ManufactureYear = e.Year
	i.ManufactureWeek = e.Week
}

// Display is a connected monitor and its control handle.
type Display struct {
	Info   Info
	Handle Handle
}

// UpdateCapabilities reads and parses the capability string and replaces
// the display's feature database.
func (d *Display) UpdateCapabilities() error {
	raw, err := d.Handle.Capabilities()
	if err != nil {
		return fmt.Errorf("failed to read capabilities of %s: %w", d.Info.ID, err)
	}

	caps, err := mccs.ParseCapabilities(raw)
	if err != nil {
		return fmt.Errorf("failed to parse capabilities of %s: %w", d.Info.ID, err)
	}

	d.Info.Capabilities = caps
	d.Info.Database = mccs.NewDatabase(caps)
	if caps.MCCSVersion != nil {
		d.Info.MCCSVersion = caps.MCCSVersion.String()
	}
	if d.Info.ModelName == "" {
		d.Info.ModelName = caps.Model
	}
	return nil
}

// Close closes the display handle.
func (d *Display) Close() error {
	return d.Handle.Close()
}
