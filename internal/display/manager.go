// SPDX-License-Identifier: GPL-3.0-only

package display

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/shini4i/ddc-brightness-daemon/internal/ddc"
	"github.com/shini4i/ddc-brightness-daemon/internal/mccs"
)

// EnumerateFunc lists the displays reachable through one backend.
// Ownership of the returned displays passes to the caller.
type EnumerateFunc func() ([]*Display, error)

type enumerator struct {
	backend Backend
	fn      EnumerateFunc
}

// Manager resolves displays across backends and runs single-attempt
// operations on them. Every call re-enumerates from scratch; no display
// outlives the call that opened it unless it is returned to the caller.
type Manager struct {
	enumerators []enumerator
	policy      Policy
}

// ManagerOption is a functional option for configuring a Manager.
type ManagerOption func(*Manager)

// WithEnumerator registers a backend enumerator. Enumerators are queried in
// registration order, which defines display ids.
func WithEnumerator(backend Backend, fn EnumerateFunc) ManagerOption {
	return func(m *Manager) {
		m.enumerators = append(m.enumerators, enumerator{backend: backend, fn: fn})
	}
}

// WithPolicy replaces the default PreferNvapi policy.
func WithPolicy(policy Policy) ManagerOption {
	return func(m *Manager) {
		m.policy = policy
	}
}

// NewManager creates a new display manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		policy: PreferNvapi,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// enumerate collects displays from every backend. A failing backend is
// logged and skipped.
func (m *Manager) enumerate() []*Display {
	var all []*Display
	for _, e := range m.enumerators {
		displays, err := e.fn()
		if err != nil {
			log.Warn().Err(err).Str("backend", e.backend.String()).Msg("Failed to enumerate displays")
			continue
		}
		log.Debug().Str("backend", e.backend.String()).Int("count", len(displays)).Msg("Enumerated displays")
		all = append(all, displays...)
	}
	return all
}

// Displays enumerates all displays, applies the backend policy and, when
// needsCaps is set, refreshes every kept display's capabilities. A failed
// refresh closes all displays and returns a KindTimedOut error.
func (m *Manager) Displays(needsCaps bool) ([]*Display, error) {
	kept, dropped := m.policy(m.enumerate())
	if len(dropped) > 0 {
		log.Debug().Int("count", len(dropped)).Msg("Dropping displays shadowed by a preferred backend")
		closeDisplays(dropped)
	}
	index(kept)

	if needsCaps {
		if err := refresh(kept); err != nil {
			return nil, err
		}
	}
	return kept, nil
}

// EnhancedDisplays enumerates all displays without applying the backend
// policy and refreshes the capabilities of each.
func (m *Manager) EnhancedDisplays() ([]*Display, error) {
	all := m.enumerate()
	index(all)
	if err := refresh(all); err != nil {
		return nil, err
	}
	return all, nil
}

// Display returns the display at position id of Displays(needsCaps).
func (m *Manager) Display(needsCaps bool, id int) (*Display, error) {
	displays, err := m.Displays(needsCaps)
	if err != nil {
		return nil, err
	}
	return pick(displays, id)
}

// EnhancedDisplay returns the display at position id of EnhancedDisplays.
func (m *Manager) EnhancedDisplay(id int) (*Display, error) {
	displays, err := m.EnhancedDisplays()
	if err != nil {
		return nil, err
	}
	return pick(displays, id)
}

// GetBrightness reads the luminance of display id.
func (m *Manager) GetBrightness(id int) (ddc.VCPValue, error) {
	d, err := m.Display(true, id)
	if err != nil {
		return ddc.VCPValue{}, err
	}
	defer release(d)

	var value ddc.VCPValue
	feature, ok := d.Info.Database.Get(mccs.Luminance)
	if !ok {
		err = unsupported("this display doesn't support brightness operations")
	} else if value, err = d.Handle.GetVCPFeature(byte(feature.Code)); err != nil {
		err = timedOut(err)
	}
	d.Handle.Sleep()

	if err == nil {
		log.Debug().Int("id", id).Uint16("value", value.Value()).Uint16("max", value.Maximum()).Msg("Got brightness")
	}
	return value, err
}

// SetBrightness writes the luminance of display id.
func (m *Manager) SetBrightness(id int, value uint16) error {
	d, err := m.Display(true, id)
	if err != nil {
		return err
	}
	defer release(d)

	feature, ok := d.Info.Database.Get(mccs.Luminance)
	if !ok {
		err = unsupported("this display doesn't support brightness operations")
	} else if err = d.Handle.SetVCPFeature(byte(feature.Code), value); err != nil {
		err = timedOut(err)
	}
	d.Handle.Sleep()

	if err == nil {
		log.Debug().Int("id", id).Uint16("value", value).Msg("Set brightness")
	}
	return err
}

// GetVCPFeature reads an arbitrary feature without consulting the
// capability database.
func (m *Manager) GetVCPFeature(id int, code mccs.FeatureCode) (ddc.VCPValue, error) {
	d, err := m.Display(false, id)
	if err != nil {
		return ddc.VCPValue{}, err
	}
	defer release(d)

	value, err := d.Handle.GetVCPFeature(byte(code))
	d.Handle.Sleep()
	if err != nil {
		return ddc.VCPValue{}, timedOut(err)
	}
	return value, nil
}

// SetVCPFeature writes an arbitrary feature without consulting the
// capability database.
func (m *Manager) SetVCPFeature(id int, code mccs.FeatureCode, value uint16) error {
	d, err := m.Display(false, id)
	if err != nil {
		return err
	}
	defer release(d)

	err = d.Handle.SetVCPFeature(byte(code), value)
	d.Handle.Sleep()
	if err != nil {
		return timedOut(err)
	}
	return nil
}

// SetTableVCPFeature writes table data for a table-type feature.
func (m *Manager) SetTableVCPFeature(id int, code mccs.FeatureCode, data []byte, offset uint16) error {
	d, err := m.Display(false, id)
	if err != nil {
		return err
	}
	defer release(d)

	err = d.Handle.SetTableVCPFeature(byte(code), data, offset)
	d.Handle.Sleep()
	if err != nil {
		return timedOut(err)
	}
	return nil
}

// List returns the info of every display matching all queries. Capabilities
// are not refreshed.
func (m *Manager) List(queries ...Query) ([]Info, error) {
	displays, err := m.Displays(false)
	if err != nil {
		return nil, err
	}
	defer closeDisplays(displays)

	infos := make([]Info, 0, len(displays))
	for _, d := range displays {
		if d.Info.Matches(queries...) {
			infos = append(infos, d.Info)
		}
	}
	return infos, nil
}

// Describe returns the info of display id with its capabilities refreshed.
// Only the addressed display is queried.
func (m *Manager) Describe(id int) (Info, error) {
	d, err := m.Display(false, id)
	if err != nil {
		return Info{}, err
	}
	defer release(d)

	err = d.UpdateCapabilities()
	d.Handle.Sleep()
	if err != nil {
		return Info{}, timedOut(err)
	}
	return d.Info, nil
}

// Capabilities returns the parsed capability string of display id.
func (m *Manager) Capabilities(id int) (*mccs.Capabilities, error) {
	info, err := m.Describe(id)
	if err != nil {
		return nil, err
	}
	return info.Capabilities, nil
}

func index(displays []*Display) {
	for i, d := range displays {
		d.Info.Index = i
	}
}

func refresh(displays []*Display) error {
	for _, d := range displays {
		if err := d.UpdateCapabilities(); err != nil {
			closeDisplays(displays)
			return timedOut(err)
		}
	}
	return nil
}

// pick keeps the display at id and closes the others.
func pick(displays []*Display, id int) (*Display, error) {
	if id < 0 || id >= len(displays) {
		closeDisplays(displays)
		return nil, unsupported(fmt.Sprintf("there is no display with id: %d", id))
	}

	selected := displays[id]
	for i, d := range displays {
		if i != id {
			release(d)
		}
	}
	return selected, nil
}

func release(d *Display) {
	if err := d.Close(); err != nil {
		log.Warn().Err(err).Str("display", d.Info.ID).Msg("Failed to close display")
	}
}

func closeDisplays(displays []*Display) {
	for _, d := range displays {
		release(d)
	}
}
