// SPDX-License-Identifier: GPL-3.0-only

//go:build linux

package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shini4i/ddc-brightness-daemon/internal/config"
	"github.com/shini4i/ddc-brightness-daemon/internal/dbus"
	"github.com/shini4i/ddc-brightness-daemon/internal/ddc"
	"github.com/shini4i/ddc-brightness-daemon/internal/display"
	"github.com/shini4i/ddc-brightness-daemon/internal/mccs"
	"github.com/shini4i/ddc-brightness-daemon/internal/udev"
)

const (
	// settleDelay gives a newly connected device time to enumerate all of its
	// interfaces before it is probed.
	settleDelay = 500 * time.Millisecond

	refreshRetries = 3
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the D-Bus brightness service",
	Long: `Run a D-Bus service on the session bus that exposes brightness and VCP
operations for all connected displays.

The service emits DisplayAdded and DisplayRemoved signals when displays are
connected or disconnected and BrightnessChanged after every change.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

func runDaemon() error {
	log.Info().Msg("Starting ddc-brightness daemon")

	m, err := newManager(cfg)
	if err != nil {
		return err
	}
	manager := &lockedManager{manager: m}

	tracker := newDisplayTracker(manager)
	_, _ = tracker.refresh(0, true)
	if count := tracker.count(); count == 0 {
		log.Warn().Msg("No displays found")
	} else {
		log.Info().Int("count", count).Msg("Found displays")
	}

	// Initialize D-Bus server
	server := dbus.NewServer(manager, dbus.WithRateLimit(cfg.DBus.RateLimit, cfg.DBus.Burst))
	if err := server.Start(); err != nil {
		return err
	}
	tracker.server = server
	server.SetDeviceErrorHandler(func(id uint32, err error) {
		tracker.recoverDisplays()
	})

	config.Watch(v, func(c *config.Config) {
		setupLogging(c.Verbose)
	})

	// Initialize udev monitor for hot-plug detection
	monitor := udev.NewMonitor(tracker.handleEvent)
	monitor.SetRecoveryHandler(tracker.recoverDisplays)
	if err := monitor.Start(); err != nil {
		log.Error().Err(err).Msg("Failed to start udev monitor (hot-plug detection disabled)")
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Msg("Daemon running, press Ctrl+C to stop")
	<-sigChan

	log.Info().Msg("Shutting down...")
	if err := monitor.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop udev monitor")
	}
	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop D-Bus server")
	}

	log.Info().Msg("Daemon stopped")
	return nil
}

// lockedManager serializes access to the display manager so hot-plug
// refreshes never interleave with D-Bus requests on the same bus.
type lockedManager struct {
	mu      sync.Mutex
	manager dbus.DisplayManager
}

func (l *lockedManager) List(queries ...display.Query) ([]display.Info, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.manager.List(queries...)
}

func (l *lockedManager) GetBrightness(id int) (ddc.VCPValue, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.manager.GetBrightness(id)
}

func (l *lockedManager) SetBrightness(id int, value uint16) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.manager.SetBrightness(id, value)
}

func (l *lockedManager) GetVCPFeature(id int, code mccs.FeatureCode) (ddc.VCPValue, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.manager.GetVCPFeature(id, code)
}

func (l *lockedManager) SetVCPFeature(id int, code mccs.FeatureCode, value uint16) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.manager.SetVCPFeature(id, code, value)
}

// displayLister lists the currently connected displays.
type displayLister interface {
	List(queries ...display.Query) ([]display.Info, error)
}

// signalEmitter publishes display connect and disconnect signals.
type signalEmitter interface {
	EmitDisplayAdded(displayID, modelName string)
	EmitDisplayRemoved(displayID string)
}

// displayTracker remembers the last known set of displays and emits signals
// for the differences found by each refresh.
//
// The mutex serializes refreshes so hotplug and recovery handlers never
// race on the snapshot.
type displayTracker struct {
	mu      sync.Mutex
	manager displayLister
	server  signalEmitter
	known   map[string]display.Info

	settle  time.Duration
	backoff time.Duration
}

func newDisplayTracker(manager displayLister) *displayTracker {
	return &displayTracker{
		manager: manager,
		known:   make(map[string]display.Info),
		settle:  settleDelay,
		backoff: 500 * time.Millisecond,
	}
}

func (t *displayTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.known)
}

// handleEvent refreshes displays after a hot-plug event.
func (t *displayTracker) handleEvent(event udev.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	log.Debug().
		Str("source", event.Source.String()).
		Int("type", int(event.Type)).
		Msg("Refreshing displays after hot-plug event")

	// A removal is final: the device is already gone, so there is nothing to
	// wait for and an empty result is trusted.
	if event.Type == udev.EventRemove {
		t.refreshLocked(0, true)
		return
	}

	time.Sleep(t.settle)
	t.refreshLocked(refreshRetries, false)
}

// recoverDisplays refreshes displays after missed udev events or a device error.
func (t *displayTracker) recoverDisplays() {
	t.mu.Lock()
	defer t.mu.Unlock()

	log.Info().Msg("Performing recovery refresh")

	// Wait a moment for any pending USB operations to settle
	time.Sleep(t.settle)

	t.refreshLocked(refreshRetries, false)
	log.Info().Int("displays", len(t.known)).Msg("Recovery refresh completed")
}

// refresh lists displays, updates the snapshot and emits signals for the
// changes.
func (t *displayTracker) refresh(maxRetries int, trustEmpty bool) (displayChanges, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refreshLocked(maxRetries, trustEmpty)
}

// refreshLocked must be called with t.mu held. Unless trustEmpty is set, an
// empty result keeps the previous snapshot: it is indistinguishable from a
// display that has not finished initializing and must not produce spurious
// DisplayRemoved signals.
func (t *displayTracker) refreshLocked(maxRetries int, trustEmpty bool) (displayChanges, error) {
	snapshot, found, err := refreshDisplaysWithRetry(t.manager, maxRetries, t.backoff)
	if err != nil {
		log.Error().Err(err).Msg("Failed to refresh displays (all retries exhausted)")
		return displayChanges{}, err
	}
	if !found && !trustEmpty {
		log.Debug().Msg("No displays found, keeping previous snapshot")
		return displayChanges{}, nil
	}
	if snapshot == nil {
		snapshot = make(map[string]display.Info)
	}

	changes := diffDisplays(t.known, snapshot)
	t.known = snapshot
	emitDisplayChanges(t.server, changes)
	return changes, nil
}

// getDisplaysSnapshot returns the connected displays keyed by display id.
func getDisplaysSnapshot(manager displayLister) (map[string]display.Info, error) {
	infos, err := manager.List()
	if err != nil {
		return nil, err
	}
	snapshot := make(map[string]display.Info, len(infos))
	for _, info := range infos {
		snapshot[info.ID] = info
	}
	return snapshot, nil
}

// refreshDisplaysWithRetry lists displays with linear backoff. Retries happen
// on errors and on empty results, since a display that is still initializing
// may not answer yet. found is false when every attempt came back empty.
func refreshDisplaysWithRetry(manager displayLister, maxRetries int, backoff time.Duration) (map[string]display.Info, bool, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Linear backoff: 500ms, 1000ms, 1500ms, ...
			delay := time.Duration(attempt) * backoff
			log.Debug().
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("Retrying display refresh")
			time.Sleep(delay)
		}

		snapshot, err := getDisplaysSnapshot(manager)
		if err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Int("maxRetries", maxRetries+1).
				Msg("Display refresh failed")
			continue
		}
		lastErr = nil

		if len(snapshot) > 0 {
			if attempt > 0 {
				log.Info().Int("attempts", attempt+1).Msg("Display refresh succeeded after retry")
			}
			return snapshot, true, nil
		}
	}
	return nil, false, lastErr
}

// displayChanges is the difference between two display snapshots.
type displayChanges struct {
	added   []display.Info
	removed []string
}

func diffDisplays(oldDisplays, newDisplays map[string]display.Info) displayChanges {
	var changes displayChanges
	for id, info := range newDisplays {
		if _, exists := oldDisplays[id]; !exists {
			changes.added = append(changes.added, info)
		}
	}
	for id := range oldDisplays {
		if _, exists := newDisplays[id]; !exists {
			changes.removed = append(changes.removed, id)
		}
	}
	return changes
}

func emitDisplayChanges(server signalEmitter, changes displayChanges) {
	if server == nil {
		return
	}
	for _, info := range changes.added {
		server.EmitDisplayAdded(info.ID, info.ModelName)
	}
	for _, id := range changes.removed {
		server.EmitDisplayRemoved(id)
	}
}
