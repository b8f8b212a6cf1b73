// SPDX-License-Identifier: GPL-3.0-only

// Package dbus provides the D-Bus service implementation for DDC/CI display brightness control.
package dbus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/shini4i/ddc-brightness-daemon/internal/brightness"
	"github.com/shini4i/ddc-brightness-daemon/internal/ddc"
	"github.com/shini4i/ddc-brightness-daemon/internal/display"
	"github.com/shini4i/ddc-brightness-daemon/internal/hid"
	"github.com/shini4i/ddc-brightness-daemon/internal/mccs"
)

// ErrRateLimitExceeded is returned when brightness change requests exceed the rate limit.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// ErrInvalidStep is returned when an invalid brightness step value is provided.
var ErrInvalidStep = errors.New("step must be between 1 and 100")

const (
	// DefaultRateLimit is the default maximum number of set requests per second.
	DefaultRateLimit = 20

	// DefaultBurst is the default burst size for set requests.
	DefaultBurst = 5
)

const (
	// ServiceName is the D-Bus service name.
	ServiceName = "io.github.shini4i.DdcBrightness"

	// ObjectPath is the D-Bus object path.
	ObjectPath = "/io/github/shini4i/DdcBrightness"

	// InterfaceName is the D-Bus interface name.
	InterfaceName = "io.github.shini4i.DdcBrightness"

	// ErrorUnsupported is the D-Bus error name for a missing display or feature.
	ErrorUnsupported = InterfaceName + ".Error.Unsupported"

	// ErrorTimedOut is the D-Bus error name for a display that did not respond.
	ErrorTimedOut = InterfaceName + ".Error.TimedOut"
)

// IntrospectXML is the D-Bus introspection XML for the service.
const IntrospectXML = `
<node name="` + ObjectPath + `">
  <interface name="` + InterfaceName + `">
    <method name="ListDisplays">
      <arg name="displays" type="a(ussss)" direction="out"/>
    </method>
    <method name="GetBrightness">
      <arg name="id" type="u" direction="in"/>
      <arg name="value" type="u" direction="out"/>
      <arg name="max" type="u" direction="out"/>
    </method>
    <method name="SetBrightness">
      <arg name="id" type="u" direction="in"/>
      <arg name="value" type="u" direction="in"/>
    </method>
    <method name="IncreaseBrightness">
      <arg name="id" type="u" direction="in"/>
      <arg name="step" type="u" direction="in"/>
    </method>
    <method name="DecreaseBrightness">
      <arg name="id" type="u" direction="in"/>
      <arg name="step" type="u" direction="in"/>
    </method>
    <method name="SetAllBrightness">
      <arg name="percent" type="u" direction="in"/>
    </method>
    <method name="GetVCPFeature">
      <arg name="id" type="u" direction="in"/>
      <arg name="code" type="y" direction="in"/>
      <arg name="value" type="u" direction="out"/>
      <arg name="max" type="u" direction="out"/>
    </method>
    <method name="SetVCPFeature">
      <arg name="id" type="u" direction="in"/>
      <arg name="code" type="y" direction="in"/>
      <arg name="value" type="u" direction="in"/>
    </method>
    <signal name="DisplayAdded">
      <arg name="displayId" type="s"/>
      <arg name="modelName" type="s"/>
    </signal>
    <signal name="DisplayRemoved">
      <arg name="displayId" type="s"/>
    </signal>
    <signal name="BrightnessChanged">
      <arg name="id" type="u"/>
      <arg name="value" type="u"/>
    </signal>
  </interface>
  ` + introspect.IntrospectDataString + `
</node>
`

// DisplayManager is the subset of display.Manager the service uses.
// This allows for mocking in tests.
type DisplayManager interface {
	List(queries ...display.Query) ([]display.Info, error)
	GetBrightness(id int) (ddc.VCPValue, error)
	SetBrightness(id int, value uint16) error
	GetVCPFeature(id int, code mccs.FeatureCode) (ddc.VCPValue, error)
	SetVCPFeature(id int, code mccs.FeatureCode, value uint16) error
}

// DeviceErrorHandler is called when a device error (e.g., device disconnected) is detected.
// This allows the caller to trigger recovery actions like re-enumerating displays.
type DeviceErrorHandler func(id uint32, err error)

// DisplayInfo represents display information returned via D-Bus.
// Serializes to D-Bus type (ussss).
type DisplayInfo struct {
	Index        uint32
	DisplayID    string
	Backend      string
	ModelName    string
	SerialNumber string
}

// Server implements the D-Bus service for brightness control.
//
// Thread safety:
//   - The opMu mutex serializes every manager call so DDC transactions of
//     concurrent callers never interleave on the bus.
//   - The connMu mutex protects the D-Bus connection field for signal emission.
//   - The handlerMu mutex protects the deviceErrorHandler field.
type Server struct {
	conn               *dbus.Conn
	connMu             sync.RWMutex // Protects conn field only
	opMu               sync.Mutex
	manager            DisplayManager
	rateLimiter        *rate.Limiter
	handlerMu          sync.RWMutex // Protects deviceErrorHandler
	deviceErrorHandler DeviceErrorHandler
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithRateLimit overrides the default rate limit for set requests.
func WithRateLimit(perSecond float64, burst int) ServerOption {
	return func(s *Server) {
		s.rateLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewServer creates a new D-Bus server with the given display manager.
func NewServer(manager DisplayManager, opts ...ServerOption) *Server {
	s := &Server{
		manager:     manager,
		rateLimiter: rate.NewLimiter(DefaultRateLimit, DefaultBurst),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start connects to the session bus and exports the service.
func (s *Server) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	// Ensure connection is closed if setup fails
	success := false
	defer func() {
		if !success {
			if closeErr := conn.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("Failed to close D-Bus connection during cleanup")
			}
		}
	}()

	if err = conn.Export(s, ObjectPath, InterfaceName); err != nil {
		return fmt.Errorf("failed to export server: %w", err)
	}

	err = conn.Export(introspect.Introspectable(IntrospectXML), ObjectPath, "org.freedesktop.DBus.Introspectable")
	if err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", ServiceName)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	success = true
	log.Info().Str("service", ServiceName).Msg("D-Bus service started")
	return nil
}

// Stop disconnects from the session bus.
func (s *Server) Stop() error {
	s.connMu.Lock()
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// SetDeviceErrorHandler sets the callback invoked when device errors are detected.
// This is typically used to trigger recovery actions like re-enumerating displays
// when a device is found to be disconnected during brightness operations.
//
// This method is thread-safe and can be called at any time.
func (s *Server) SetDeviceErrorHandler(handler DeviceErrorHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.deviceErrorHandler = handler
}

// handleDeviceError checks if the error indicates a disconnected device and triggers recovery.
// Returns true if the error was a device error and recovery was triggered.
func (s *Server) handleDeviceError(id uint32, err error) bool {
	if err == nil || !hid.IsDeviceGoneError(err) {
		return false
	}

	log.Warn().
		Err(err).
		Uint32("id", id).
		Msg("Device error detected, triggering recovery")

	s.handlerMu.RLock()
	handler := s.deviceErrorHandler
	s.handlerMu.RUnlock()

	if handler != nil {
		// Run recovery asynchronously to not block the D-Bus response
		go handler(id, err)
	}

	return true
}

// makeError maps display errors to their D-Bus error names.
func makeError(err error) *dbus.Error {
	switch {
	case errors.Is(err, display.ErrUnsupported):
		return dbus.NewError(ErrorUnsupported, []any{err.Error()})
	case errors.Is(err, display.ErrTimedOut):
		return dbus.NewError(ErrorTimedOut, []any{err.Error()})
	default:
		return dbus.MakeFailedError(err)
	}
}

// ListDisplays returns a list of all connected displays.
func (s *Server) ListDisplays() ([]DisplayInfo, *dbus.Error) {
	s.opMu.Lock()
	infos, err := s.manager.List()
	s.opMu.Unlock()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list displays")
		return nil, makeError(err)
	}

	result := make([]DisplayInfo, len(infos))
	for i, info := range infos {
		result[i] = DisplayInfo{
			Index:        uint32(info.Index), // #nosec G115 -- index is a small slice position
			DisplayID:    info.ID,
			Backend:      info.Backend.String(),
			ModelName:    info.ModelName,
			SerialNumber: info.SerialNumber,
		}
	}

	log.Debug().Int("count", len(result)).Msg("Listed displays")
	return result, nil
}

// GetBrightness returns the current and maximum Luminance of a display.
func (s *Server) GetBrightness(id uint32) (uint32, uint32, *dbus.Error) {
	s.opMu.Lock()
	value, err := s.manager.GetBrightness(int(id))
	s.opMu.Unlock()
	if err != nil {
		s.handleDeviceError(id, err)
		log.Error().Err(err).Uint32("id", id).Msg("Failed to get brightness")
		return 0, 0, makeError(err)
	}

	log.Debug().Uint32("id", id).Uint16("value", value.Value()).Uint16("max", value.Maximum()).Msg("Got brightness")
	return uint32(value.Value()), uint32(value.Maximum()), nil
}

// SetBrightness sets the Luminance of a display. Values above the display
// maximum are clamped.
func (s *Server) SetBrightness(id uint32, value uint32) *dbus.Error {
	if !s.rateLimiter.Allow() {
		log.Warn().Msg("Rate limit exceeded for SetBrightness")
		return dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	current, err := s.manager.GetBrightness(int(id))
	if err != nil {
		s.handleDeviceError(id, err)
		log.Error().Err(err).Uint32("id", id).Msg("Failed to get brightness")
		return makeError(err)
	}

	target := min(value, uint32(current.Maximum()))
	// #nosec G115 -- target is clamped to a uint16 maximum
	return s.apply(id, uint16(target))
}

// IncreaseBrightness increases the brightness of a display by step percent.
// The step parameter must be between 1 and 100.
func (s *Server) IncreaseBrightness(id uint32, step uint32) *dbus.Error {
	return s.stepBrightness(id, step, 1)
}

// DecreaseBrightness decreases the brightness of a display by step percent.
// The step parameter must be between 1 and 100.
func (s *Server) DecreaseBrightness(id uint32, step uint32) *dbus.Error {
	return s.stepBrightness(id, step, -1)
}

func (s *Server) stepBrightness(id, step uint32, sign int) *dbus.Error {
	if !s.rateLimiter.Allow() {
		log.Warn().Msg("Rate limit exceeded for brightness step")
		return dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	if step == 0 || step > 100 {
		return dbus.MakeFailedError(ErrInvalidStep)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	current, err := s.manager.GetBrightness(int(id))
	if err != nil {
		s.handleDeviceError(id, err)
		return makeError(err)
	}

	target := brightness.Step(current.Value(), current.Maximum(), sign*int(step))
	log.Debug().Uint32("id", id).Int("step", sign*int(step)).Uint16("new", target).Msg("Stepping brightness")
	return s.apply(id, target)
}

// apply writes value and emits BrightnessChanged. Callers hold opMu.
func (s *Server) apply(id uint32, value uint16) *dbus.Error {
	if err := s.manager.SetBrightness(int(id), value); err != nil {
		s.handleDeviceError(id, err)
		log.Error().Err(err).Uint32("id", id).Msg("Failed to set brightness")
		return makeError(err)
	}

	log.Debug().Uint32("id", id).Uint16("value", value).Msg("Set brightness")
	s.emitBrightnessChanged(id, uint32(value))
	return nil
}

// SetAllBrightness sets every display to a percentage (0-100) of its own
// maximum. Displays that fail are logged and skipped.
func (s *Server) SetAllBrightness(percent uint32) *dbus.Error {
	if !s.rateLimiter.Allow() {
		log.Warn().Msg("Rate limit exceeded for SetAllBrightness")
		return dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	percent = min(percent, 100)

	s.opMu.Lock()
	defer s.opMu.Unlock()

	infos, err := s.manager.List()
	if err != nil {
		return makeError(err)
	}

	for _, info := range infos {
		id := uint32(info.Index) // #nosec G115 -- index is a small slice position
		current, err := s.manager.GetBrightness(info.Index)
		if err != nil {
			s.handleDeviceError(id, err)
			log.Error().Err(err).Str("display", info.ID).Msg("Failed to get brightness")
			continue
		}

		// #nosec G115 -- percent is clamped to 0-100
		value := brightness.FromPercent(uint8(percent), current.Maximum())
		if err := s.manager.SetBrightness(info.Index, value); err != nil {
			s.handleDeviceError(id, err)
			log.Error().Err(err).Str("display", info.ID).Msg("Failed to set brightness")
			continue
		}
		s.emitBrightnessChanged(id, uint32(value))
	}

	log.Debug().Uint32("percent", percent).Int("count", len(infos)).Msg("Set all brightness")
	return nil
}

// GetVCPFeature reads an arbitrary VCP feature.
func (s *Server) GetVCPFeature(id uint32, code byte) (uint32, uint32, *dbus.Error) {
	s.opMu.Lock()
	value, err := s.manager.GetVCPFeature(int(id), mccs.FeatureCode(code))
	s.opMu.Unlock()
	if err != nil {
		s.handleDeviceError(id, err)
		log.Error().Err(err).Uint32("id", id).Uint8("code", code).Msg("Failed to get VCP feature")
		return 0, 0, makeError(err)
	}
	return uint32(value.Value()), uint32(value.Maximum()), nil
}

// SetVCPFeature writes an arbitrary VCP feature.
func (s *Server) SetVCPFeature(id uint32, code byte, value uint32) *dbus.Error {
	if !s.rateLimiter.Allow() {
		log.Warn().Msg("Rate limit exceeded for SetVCPFeature")
		return dbus.MakeFailedError(ErrRateLimitExceeded)
	}
	if value > 0xffff {
		return dbus.MakeFailedError(fmt.Errorf("value %d exceeds 16 bits", value))
	}

	s.opMu.Lock()
	err := s.manager.SetVCPFeature(int(id), mccs.FeatureCode(code), uint16(value))
	s.opMu.Unlock()
	if err != nil {
		s.handleDeviceError(id, err)
		log.Error().Err(err).Uint32("id", id).Uint8("code", code).Msg("Failed to set VCP feature")
		return makeError(err)
	}

	log.Debug().Uint32("id", id).Uint8("code", code).Uint32("value", value).Msg("Set VCP feature")
	if mccs.FeatureCode(code) == mccs.Luminance {
		s.emitBrightnessChanged(id, value)
	}
	return nil
}

// emitBrightnessChanged emits the BrightnessChanged signal.
func (s *Server) emitBrightnessChanged(id uint32, value uint32) {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()

	if conn == nil {
		return
	}

	if err := conn.Emit(ObjectPath, InterfaceName+".BrightnessChanged", id, value); err != nil {
		log.Error().Err(err).Msg("Failed to emit BrightnessChanged signal")
	}
}

// EmitDisplayAdded emits the DisplayAdded signal.
func (s *Server) EmitDisplayAdded(displayID, modelName string) {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()

	if conn == nil {
		return
	}

	if err := conn.Emit(ObjectPath, InterfaceName+".DisplayAdded", displayID, modelName); err != nil {
		log.Error().Err(err).Msg("Failed to emit DisplayAdded signal")
	}
	log.Info().Str("display", displayID).Str("model", modelName).Msg("Display added")
}

// EmitDisplayRemoved emits the DisplayRemoved signal.
func (s *Server) EmitDisplayRemoved(displayID string) {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()

	if conn == nil {
		return
	}

	if err := conn.Emit(ObjectPath, InterfaceName+".DisplayRemoved", displayID); err != nil {
		log.Error().Err(err).Msg("Failed to emit DisplayRemoved signal")
	}
	log.Info().Str("display", displayID).Msg("Display removed")
}
