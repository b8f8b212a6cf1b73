// SPDX-License-Identifier: GPL-3.0-only

// Package i2c finds DDC/CI capable monitors on Linux I2C adapters.
package i2c

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/shini4i/ddc-brightness-daemon/internal/ddc"
	"github.com/shini4i/ddc-brightness-daemon/internal/display"
)

// DefaultSysfsRoot is where the kernel exposes adapter names.
const DefaultSysfsRoot = "/sys/bus/i2c/devices"

// defaultIgnored are adapter name fragments that never carry a DDC channel.
var defaultIgnored = []string{"SMBus", "smbus"}

// Adapter is an I2C bus that may have a monitor behind it.
type Adapter struct {
	Number int
	Open   func() (i2c.BusCloser, error)
}

// AdapterLister returns the I2C adapters available on the host.
type AdapterLister func() ([]Adapter, error)

// Enumerator probes I2C adapters for monitors.
type Enumerator struct {
	list      AdapterLister
	sysfsRoot string
	ignored   []string
	handleOps []ddc.Option
}

// Option is a functional option for configuring an Enumerator.
type Option func(*Enumerator)

// WithAdapterLister replaces periph's adapter registry.
func WithAdapterLister(list AdapterLister) Option {
	return func(e *Enumerator) {
		e.list = list
	}
}

// WithSysfsRoot overrides the sysfs directory used to read adapter names.
func WithSysfsRoot(root string) Option {
	return func(e *Enumerator) {
		e.sysfsRoot = root
	}
}

// WithIgnoredAdapters skips adapters whose name contains any of names.
func WithIgnoredAdapters(names ...string) Option {
	return func(e *Enumerator) {
		e.ignored = append(e.ignored, names...)
	}
}

// WithHandleOptions passes options to every DDC handle created.
func WithHandleOptions(opts ...ddc.Option) Option {
	return func(e *Enumerator) {
		e.handleOps = append(e.handleOps, opts...)
	}
}

// NewEnumerator creates an enumerator backed by periph's host drivers.
func NewEnumerator(opts ...Option) *Enumerator {
	e := &Enumerator{
		list:      registeredAdapters,
		sysfsRoot: DefaultSysfsRoot,
		ignored:   append([]string(nil), defaultIgnored...),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func registeredAdapters() ([]Adapter, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	refs := i2creg.All()
	adapters := make([]Adapter, 0, len(refs))
	for _, ref := range refs {
		if ref.Number < 0 {
			continue
		}
		adapters = append(adapters, Adapter{Number: ref.Number, Open: ref.Open})
	}
	return adapters, nil
}

// Enumerate returns one display per adapter with a readable EDID.
func (e *Enumerator) Enumerate() ([]*display.Display, error) {
	adapters, err := e.list()
	if err != nil {
		return nil, err
	}

	var displays []*display.Display
	for _, a := range adapters {
		name := e.adapterName(a.Number)
		if e.isIgnored(name) {
			log.Debug().Int("adapter", a.Number).Str("name", name).Msg("Skipping ignored I2C adapter")
			continue
		}

		d, err := e.probe(a)
		if err != nil {
			log.Debug().Err(err).Int("adapter", a.Number).Msg("No monitor on I2C adapter")
			continue
		}
		displays = append(displays, d)
	}
	return displays, nil
}

func (e *Enumerator) probe(a Adapter) (*display.Display, error) {
	bus, err := a.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open adapter: %w", err)
	}

	raw, err := ddc.ReadEDID(&i2c.Dev{Bus: bus, Addr: ddc.EDIDAddress})
	if err == nil {
		var edid *ddc.EDID
		if edid, err = ddc.ParseEDID(raw); err == nil {
			d := &display.Display{
				Info: display.Info{
					Backend: display.BackendI2C,
					ID:      fmt.Sprintf("i2c-%d", a.Number),
				},
				Handle: &handle{
					Handle: ddc.NewHandle(&i2c.Dev{Bus: bus, Addr: ddc.Address}, e.handleOps...),
					bus:    bus,
				},
			}
			d.Info.ApplyEDID(edid)
			return d, nil
		}
	}

	if cerr := bus.Close(); cerr != nil {
		log.Warn().Err(cerr).Int("adapter", a.Number).Msg("Failed to close I2C adapter")
	}
	return nil, err
}

func (e *Enumerator) adapterName(number int) string {
	data, err := os.ReadFile(filepath.Join(e.sysfsRoot, fmt.Sprintf("i2c-%d", number), "name"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (e *Enumerator) isIgnored(name string) bool {
	if name == "" {
		return false
	}
	for _, ignored := range e.ignored {
		if ignored != "" && strings.Contains(name, ignored) {
			return true
		}
	}
	return false
}

// handle is a DDC handle that owns its bus.
type handle struct {
	*ddc.Handle
	bus i2c.BusCloser
}

func (h *handle) Close() error {
	return h.bus.Close()
}
