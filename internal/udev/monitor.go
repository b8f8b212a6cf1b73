// SPDX-License-Identifier: GPL-3.0-only

//go:build linux

// Package udev provides hot-plug detection for displays via netlink/udev events.
// It reports DRM connector hot-plugs, I2C adapter changes and USB HID monitor
// connects and disconnects.
package udev

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pilebones/go-udev/netlink"
	"github.com/rs/zerolog/log"
)

const (
	// netlinkBufferSize is the receive buffer size for the netlink socket.
	// A larger buffer prevents ENOBUFS errors during USB hot-plug events.
	// USB hot-plug generates many netlink messages rapidly; 2MB handles typical scenarios.
	netlinkBufferSize = 2 * 1024 * 1024 // 2 MB

	// debounceWindow collapses bursts of events for the same device.
	debounceWindow = 2 * time.Second

	// debounceRetention is how long debounce entries are kept.
	debounceRetention = time.Minute
)

const (
	// AppleVendorIDPattern matches the Apple USB vendor ID as udev reports it.
	// Kernels differ on leading zeros and case.
	AppleVendorIDPattern = "0?5[aA][cC]"

	// StudioDisplayProductID is the USB product ID for Apple Studio Display.
	StudioDisplayProductID = "1114"
)

// EventType represents the type of device event.
type EventType int

const (
	// EventAdd indicates a device was connected.
	EventAdd EventType = iota
	// EventRemove indicates a device was disconnected.
	EventRemove
	// EventChange indicates a connector changed state, e.g. a monitor was
	// plugged into a GPU output.
	EventChange
)

// Source identifies the subsystem an event came from.
type Source int

const (
	// SourceUSB is a USB HID monitor.
	SourceUSB Source = iota
	// SourceDRM is a GPU connector.
	SourceDRM
	// SourceI2C is an I2C adapter device node.
	SourceI2C
)

func (s Source) String() string {
	switch s {
	case SourceUSB:
		return "usb"
	case SourceDRM:
		return "drm"
	case SourceI2C:
		return "i2c"
	default:
		return "unknown"
	}
}

// Event represents a device hot-plug event.
type Event struct {
	Type   EventType
	Source Source
}

// EventHandler is called when a device event occurs.
type EventHandler func(event Event)

// RecoveryHandler is called when the monitor recovers from an error condition
// (e.g., netlink buffer overflow) and needs to trigger a refresh.
type RecoveryHandler func()

// Monitor watches for display connect/disconnect events.
type Monitor struct {
	conn            *netlink.UEventConn
	handler         EventHandler
	recoveryHandler RecoveryHandler
	clock           clockwork.Clock
	lastEventTime   map[string]time.Time
	quit            chan struct{}
	stopped         bool
	mu              sync.Mutex
}

// MonitorOption is a functional option for configuring a Monitor.
type MonitorOption func(*Monitor)

// WithClock sets the clock used for debouncing.
func WithClock(clock clockwork.Clock) MonitorOption {
	return func(m *Monitor) {
		m.clock = clock
	}
}

// NewMonitor creates a new udev monitor with the given event handler.
func NewMonitor(handler EventHandler, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		handler:       handler,
		clock:         clockwork.NewRealClock(),
		lastEventTime: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetRecoveryHandler sets the handler called when the monitor recovers from errors.
// This should trigger a display refresh to recover from potentially missed events.
func (m *Monitor) SetRecoveryHandler(handler RecoveryHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recoveryHandler = handler
}

// Start begins monitoring for device events.
// This method is non-blocking; events are processed in a background goroutine.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return fmt.Errorf("monitor already started")
	}

	m.conn = &netlink.UEventConn{}
	if err := m.conn.Connect(netlink.UdevEvent); err != nil {
		m.conn = nil
		return fmt.Errorf("failed to connect to netlink: %w", err)
	}

	// Increase socket receive buffer to prevent ENOBUFS during rapid hot-plug events
	if err := setSocketBufferSize(m.conn.Fd, netlinkBufferSize); err != nil {
		log.Warn().Err(err).Int("size", netlinkBufferSize).Msg("Failed to set netlink buffer size")
		// Continue anyway - the default buffer may still work for most cases
	} else {
		log.Debug().Int("size", netlinkBufferSize).Msg("Netlink socket buffer size configured")
	}

	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.quit = m.conn.Monitor(queue, errs, m.createMatcher())
	m.stopped = false

	go m.processEvents(queue, errs)

	log.Info().Msg("udev monitor started")
	return nil
}

// Stop stops the monitor and releases resources.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil || m.stopped {
		return nil
	}

	m.stopped = true

	// Signal the monitor goroutine to stop
	select {
	case m.quit <- struct{}{}:
	default:
	}

	if err := m.conn.Close(); err != nil {
		return fmt.Errorf("failed to close netlink connection: %w", err)
	}

	m.conn = nil
	log.Info().Msg("udev monitor stopped")
	return nil
}

// createMatcher creates a matcher for display related events.
func (m *Monitor) createMatcher() *netlink.RuleDefinitions {
	rules := &netlink.RuleDefinitions{}

	addAction := "add"
	removeAction := "remove"
	changeAction := "change"

	// The PRODUCT env var format is "vendorId/productId/bcdDevice" (e.g., "5ac/1114/157").
	// Anchored so that "5ac/11149" does not match.
	productPattern := fmt.Sprintf("^%s/%s/[^/]+$", AppleVendorIDPattern, StudioDisplayProductID)

	for _, action := range []*string{&addAction, &removeAction} {
		rules.AddRule(netlink.RuleDefinition{
			Action: action,
			Env: map[string]string{
				"SUBSYSTEM": "^usb$",
				"PRODUCT":   productPattern,
			},
		})
	}

	// A connector hot-plug on any GPU.
	rules.AddRule(netlink.RuleDefinition{
		Action: &changeAction,
		Env: map[string]string{
			"SUBSYSTEM": "^drm$",
			"HOTPLUG":   "^1$",
		},
	})

	// New or removed /dev/i2c-N nodes, e.g. when a GPU driver loads.
	for _, action := range []*string{&addAction, &removeAction} {
		rules.AddRule(netlink.RuleDefinition{
			Action: action,
			Env: map[string]string{
				"SUBSYSTEM": "^i2c-dev$",
			},
		})
	}

	return rules
}

// processEvents handles incoming udev events.
func (m *Monitor) processEvents(queue chan netlink.UEvent, errs chan error) {
	for {
		select {
		case event, ok := <-queue:
			if !ok {
				return
			}
			m.handleEvent(event)
		case err, ok := <-errs:
			if !ok {
				return
			}
			// Check if we're stopping
			m.mu.Lock()
			stopped := m.stopped
			recoveryHandler := m.recoveryHandler
			m.mu.Unlock()
			if stopped {
				return
			}

			// Events may have been dropped on ENOBUFS, so trigger a
			// recovery refresh to re-enumerate displays.
			if isBufferOverflowError(err) {
				log.Warn().Msg("Netlink buffer overflow detected, triggering recovery refresh")
				if recoveryHandler != nil {
					go recoveryHandler()
				}
				continue
			}

			log.Error().Err(err).Msg("udev monitor error")
		}
	}
}

// setSocketBufferSize sets the receive buffer size for a socket.
// It first tries SO_RCVBUFFORCE (requires CAP_NET_ADMIN), then falls back to SO_RCVBUF.
func setSocketBufferSize(fd int, size int) error {
	// SO_RCVBUFFORCE bypasses rmem_max (requires CAP_NET_ADMIN)
	err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_RCVBUFFORCE, size)
	if err == nil {
		return nil
	}

	// SO_RCVBUF is capped at net.core.rmem_max
	return syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_RCVBUF, size)
}

// isBufferOverflowError checks if the error is a netlink buffer overflow (ENOBUFS).
func isBufferOverflowError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ENOBUFS) {
		return true
	}
	// the udev library does not always wrap the errno
	return strings.Contains(strings.ToLower(err.Error()), "no buffer space available")
}

// shouldDebounce records an event for key and reports whether an event with
// the same key was seen within debounceWindow. Stale entries are dropped.
func (m *Monitor) shouldDebounce(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	for k, t := range m.lastEventTime {
		if now.Sub(t) > debounceRetention {
			delete(m.lastEventTime, k)
		}
	}

	last, seen := m.lastEventTime[key]
	m.lastEventTime[key] = now
	return seen && now.Sub(last) < debounceWindow
}

// shouldDebounceRemove collapses the per-interface REMOVE events the kernel
// sends for one unplugged USB device.
func (m *Monitor) shouldDebounceRemove(product string) bool {
	return m.shouldDebounce("remove:" + product)
}

// handleEvent processes a single udev event.
func (m *Monitor) handleEvent(uevent netlink.UEvent) {
	var event Event
	switch uevent.Env["SUBSYSTEM"] {
	case "drm":
		if uevent.Action != netlink.CHANGE || uevent.Env["HOTPLUG"] != "1" {
			return
		}
		if m.shouldDebounce("change:" + uevent.KObj) {
			return
		}
		event = Event{Type: EventChange, Source: SourceDRM}
		log.Info().Str("devpath", uevent.KObj).Msg("Display connector changed")

	case "i2c-dev":
		switch uevent.Action {
		case netlink.ADD:
			event = Event{Type: EventAdd, Source: SourceI2C}
		case netlink.REMOVE:
			event = Event{Type: EventRemove, Source: SourceI2C}
		default:
			return
		}
		log.Debug().Str("action", string(uevent.Action)).Str("devpath", uevent.KObj).Msg("I2C adapter event")

	default:
		var ok bool
		if event, ok = m.usbEvent(uevent); !ok {
			return
		}
	}

	if m.handler != nil {
		m.handler(event)
	}
}

func (m *Monitor) usbEvent(uevent netlink.UEvent) (Event, bool) {
	// For REMOVE events, DEVTYPE may not be present since the device is
	// already gone, so only ADD events are filtered to usb_device.
	product := uevent.Env["PRODUCT"]
	if uevent.Action == netlink.ADD && uevent.Env["DEVTYPE"] != "usb_device" {
		return Event{}, false
	}

	log.Debug().
		Str("action", string(uevent.Action)).
		Str("devpath", uevent.KObj).
		Str("product", product).
		Msg("USB device event")

	switch uevent.Action {
	case netlink.ADD:
		log.Info().Str("product", product).Msg("USB display connected")
		return Event{Type: EventAdd, Source: SourceUSB}, true
	case netlink.REMOVE:
		if m.shouldDebounceRemove(product) {
			log.Debug().Str("product", product).Msg("Debounced duplicate REMOVE event")
			return Event{}, false
		}
		log.Info().Str("product", product).Msg("USB display disconnected")
		return Event{Type: EventRemove, Source: SourceUSB}, true
	default:
		return Event{}, false
	}
}
