// SPDX-License-Identifier: GPL-3.0-only

package dbus

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/shini4i/ddc-brightness-daemon/internal/ddc"
	"github.com/shini4i/ddc-brightness-daemon/internal/display"
	"github.com/shini4i/ddc-brightness-daemon/internal/mccs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeature struct {
	value   uint16
	maximum uint16
}

// mockDisplayManager implements DisplayManager for testing.
type mockDisplayManager struct {
	mu       sync.Mutex
	infos    []display.Info
	features map[int]map[mccs.FeatureCode]*fakeFeature
	listErr  error
	getErr   map[int]error
	setErr   map[int]error
	sets     []string
}

func newMockDisplayManager(brightness ...fakeFeature) *mockDisplayManager {
	m := &mockDisplayManager{
		features: make(map[int]map[mccs.FeatureCode]*fakeFeature),
		getErr:   make(map[int]error),
		setErr:   make(map[int]error),
	}
	for i, b := range brightness {
		b := b
		m.infos = append(m.infos, display.Info{
			Index:     i,
			Backend:   display.BackendI2C,
			ID:        fmt.Sprintf("i2c-%d", i),
			ModelName: "TEST",
		})
		m.features[i] = map[mccs.FeatureCode]*fakeFeature{mccs.Luminance: &b}
	}
	return m
}

func (m *mockDisplayManager) List(_ ...display.Query) ([]display.Info, error) {
	return m.infos, m.listErr
}

func (m *mockDisplayManager) GetBrightness(id int) (ddc.VCPValue, error) {
	return m.GetVCPFeature(id, mccs.Luminance)
}

func (m *mockDisplayManager) SetBrightness(id int, value uint16) error {
	return m.SetVCPFeature(id, mccs.Luminance, value)
}

func (m *mockDisplayManager) GetVCPFeature(id int, code mccs.FeatureCode) (ddc.VCPValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.getErr[id]; err != nil {
		return ddc.VCPValue{}, err
	}
	f, ok := m.features[id][code]
	if !ok {
		return ddc.VCPValue{}, &display.Error{Kind: display.KindUnsupported, Msg: "unsupported"}
	}
	return ddc.NewVCPValue(f.value, f.maximum), nil
}

func (m *mockDisplayManager) SetVCPFeature(id int, code mccs.FeatureCode, value uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.setErr[id]; err != nil {
		return err
	}
	f, ok := m.features[id][code]
	if !ok {
		return &display.Error{Kind: display.KindUnsupported, Msg: "unsupported"}
	}
	f.value = value
	m.sets = append(m.sets, fmt.Sprintf("%d:%02x=%d", id, byte(code), value))
	return nil
}

func (m *mockDisplayManager) value(id int) uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.features[id][mccs.Luminance].value
}

func TestNewServer(t *testing.T) {
	manager := newMockDisplayManager()
	server := NewServer(manager)
	assert.NotNil(t, server)
	assert.Equal(t, manager, server.manager)
}

func TestServer_ListDisplays(t *testing.T) {
	manager := newMockDisplayManager(fakeFeature{50, 100}, fakeFeature{10, 255})
	manager.infos[1].SerialNumber = "ABC123"
	server := NewServer(manager)

	result, err := server.ListDisplays()
	require.Nil(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, DisplayInfo{Index: 0, DisplayID: "i2c-0", Backend: "i2c", ModelName: "TEST"}, result[0])
	assert.Equal(t, uint32(1), result[1].Index)
	assert.Equal(t, "ABC123", result[1].SerialNumber)
}

func TestServer_ListDisplays_Empty(t *testing.T) {
	server := NewServer(newMockDisplayManager())

	result, err := server.ListDisplays()
	require.Nil(t, err)
	assert.Empty(t, result)
}

func TestServer_GetBrightness(t *testing.T) {
	server := NewServer(newMockDisplayManager(fakeFeature{70, 100}))

	value, maximum, err := server.GetBrightness(0)
	require.Nil(t, err)
	assert.Equal(t, uint32(70), value)
	assert.Equal(t, uint32(100), maximum)
}

func TestServer_GetBrightness_ErrorNames(t *testing.T) {
	tests := []struct {
		name     string
		id       uint32
		err      error
		expected string
	}{
		{
			name:     "unsupported",
			id:       0,
			err:      &display.Error{Kind: display.KindUnsupported, Msg: "there is no display with id: 0"},
			expected: ErrorUnsupported,
		},
		{
			name:     "timed out",
			id:       0,
			err:      &display.Error{Kind: display.KindTimedOut, Msg: "display did not respond"},
			expected: ErrorTimedOut,
		},
		{
			name:     "other",
			id:       0,
			err:      errors.New("boom"),
			expected: "org.freedesktop.DBus.Error.Failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := newMockDisplayManager(fakeFeature{0, 100})
			manager.getErr[0] = tt.err
			server := NewServer(manager)

			_, _, err := server.GetBrightness(tt.id)
			require.NotNil(t, err)
			assert.Equal(t, tt.expected, err.Name)
		})
	}
}

func TestServer_SetBrightness(t *testing.T) {
	manager := newMockDisplayManager(fakeFeature{10, 100})
	server := NewServer(manager)

	err := server.SetBrightness(0, 75)
	assert.Nil(t, err)
	assert.Equal(t, uint16(75), manager.value(0))
}

func TestServer_SetBrightness_ClampsToMaximum(t *testing.T) {
	manager := newMockDisplayManager(fakeFeature{10, 80})
	server := NewServer(manager)

	err := server.SetBrightness(0, 150)
	assert.Nil(t, err)
	assert.Equal(t, uint16(80), manager.value(0))
}

func TestServer_SetBrightness_Unsupported(t *testing.T) {
	manager := newMockDisplayManager()
	server := NewServer(manager)

	err := server.SetBrightness(3, 50)
	require.NotNil(t, err)
	assert.Equal(t, ErrorUnsupported, err.Name)
}

func TestServer_IncreaseBrightness(t *testing.T) {
	manager := newMockDisplayManager(fakeFeature{100, 200})
	server := NewServer(manager)

	err := server.IncreaseBrightness(0, 10)
	assert.Nil(t, err)
	assert.Equal(t, uint16(120), manager.value(0))
}

func TestServer_IncreaseBrightness_ClampsAtMaximum(t *testing.T) {
	manager := newMockDisplayManager(fakeFeature{95, 100})
	server := NewServer(manager)

	err := server.IncreaseBrightness(0, 10)
	assert.Nil(t, err)
	assert.Equal(t, uint16(100), manager.value(0))
}

func TestServer_DecreaseBrightness(t *testing.T) {
	manager := newMockDisplayManager(fakeFeature{50, 100})
	server := NewServer(manager)

	err := server.DecreaseBrightness(0, 20)
	assert.Nil(t, err)
	assert.Equal(t, uint16(30), manager.value(0))
}

func TestServer_DecreaseBrightness_ClampsAt0(t *testing.T) {
	manager := newMockDisplayManager(fakeFeature{5, 100})
	server := NewServer(manager)

	err := server.DecreaseBrightness(0, 10)
	assert.Nil(t, err)
	assert.Equal(t, uint16(0), manager.value(0))
}

func TestServer_StepBrightness_InvalidStep(t *testing.T) {
	server := NewServer(newMockDisplayManager(fakeFeature{50, 100}))

	for _, step := range []uint32{0, 101} {
		err := server.IncreaseBrightness(0, step)
		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "step must be between")

		err = server.DecreaseBrightness(0, step)
		require.NotNil(t, err)
	}
}

func TestServer_SetAllBrightness(t *testing.T) {
	manager := newMockDisplayManager(fakeFeature{0, 100}, fakeFeature{0, 200}, fakeFeature{0, 100})
	// a failing display is skipped
	manager.getErr[2] = &display.Error{Kind: display.KindTimedOut}
	server := NewServer(manager, WithRateLimit(100, 100))

	err := server.SetAllBrightness(50)
	assert.Nil(t, err)
	assert.Equal(t, uint16(50), manager.value(0))
	assert.Equal(t, uint16(100), manager.value(1))
	assert.Equal(t, uint16(0), manager.value(2))
}

func TestServer_SetAllBrightness_ClampsOver100(t *testing.T) {
	manager := newMockDisplayManager(fakeFeature{0, 255})
	server := NewServer(manager)

	err := server.SetAllBrightness(150)
	assert.Nil(t, err)
	assert.Equal(t, uint16(255), manager.value(0))
}

func TestServer_VCPFeature(t *testing.T) {
	manager := newMockDisplayManager(fakeFeature{50, 100})
	manager.features[0][mccs.InputSource] = &fakeFeature{0x0f, 0x12}
	server := NewServer(manager)

	value, maximum, err := server.GetVCPFeature(0, byte(mccs.InputSource))
	require.Nil(t, err)
	assert.Equal(t, uint32(0x0f), value)
	assert.Equal(t, uint32(0x12), maximum)

	require.Nil(t, server.SetVCPFeature(0, byte(mccs.InputSource), 0x11))
	assert.Equal(t, []string{"0:60=17"}, manager.sets)

	err = server.SetVCPFeature(0, byte(mccs.InputSource), 0x10000)
	require.NotNil(t, err)

	_, _, err = server.GetVCPFeature(0, byte(mccs.Contrast))
	require.NotNil(t, err)
	assert.Equal(t, ErrorUnsupported, err.Name)
}

func TestServer_Constants(t *testing.T) {
	assert.Equal(t, "io.github.shini4i.DdcBrightness", ServiceName)
	assert.Equal(t, "/io/github/shini4i/DdcBrightness", ObjectPath)
	assert.Equal(t, "io.github.shini4i.DdcBrightness", InterfaceName)
	assert.Equal(t, "io.github.shini4i.DdcBrightness.Error.Unsupported", ErrorUnsupported)
	assert.Equal(t, "io.github.shini4i.DdcBrightness.Error.TimedOut", ErrorTimedOut)
}

func TestServer_RateLimiting(t *testing.T) {
	server := NewServer(newMockDisplayManager(fakeFeature{0, 100}))

	// Exhaust the burst limit (DefaultBurst = 5)
	var rateLimitHit bool
	for i := 0; i < 20; i++ {
		err := server.SetBrightness(0, 50)
		if err != nil {
			rateLimitHit = true
			assert.Contains(t, err.Error(), "rate limit exceeded")
			break
		}
	}

	assert.True(t, rateLimitHit, "Rate limiter should have been triggered")
}

func TestServer_SetDeviceErrorHandler(t *testing.T) {
	server := NewServer(newMockDisplayManager())

	// Initially nil
	assert.Nil(t, server.deviceErrorHandler)

	var handlerCalled bool
	server.SetDeviceErrorHandler(func(id uint32, err error) {
		handlerCalled = true
	})

	assert.NotNil(t, server.deviceErrorHandler)

	// Verify handler is stored correctly by calling it directly
	server.deviceErrorHandler(0, errors.New("test error"))
	assert.True(t, handlerCalled)
}

func TestServer_handleDeviceError_NilError(t *testing.T) {
	server := NewServer(newMockDisplayManager())

	handlerCalled := false
	server.SetDeviceErrorHandler(func(id uint32, err error) {
		handlerCalled = true
	})

	triggered := server.handleDeviceError(0, nil)
	assert.False(t, triggered)

	// Give async handler time to run (if it were called)
	time.Sleep(10 * time.Millisecond)
	assert.False(t, handlerCalled)
}

func TestServer_handleDeviceError_NonDeviceError(t *testing.T) {
	server := NewServer(newMockDisplayManager())

	handlerCalled := false
	server.SetDeviceErrorHandler(func(id uint32, err error) {
		handlerCalled = true
	})

	triggered := server.handleDeviceError(0, errors.New("random error"))
	assert.False(t, triggered)

	time.Sleep(10 * time.Millisecond)
	assert.False(t, handlerCalled)
}

func TestServer_handleDeviceError_TriggersRecovery(t *testing.T) {
	server := NewServer(newMockDisplayManager())

	var mu sync.Mutex
	var receivedID uint32
	var receivedErr error
	handlerCalled := make(chan struct{}, 1)

	server.SetDeviceErrorHandler(func(id uint32, err error) {
		mu.Lock()
		receivedID = id
		receivedErr = err
		mu.Unlock()
		handlerCalled <- struct{}{}
	})

	// a timed out transfer on a vanished adapter
	gone := &display.Error{Kind: display.KindTimedOut, Msg: "display did not respond", Err: syscall.ENXIO}
	triggered := server.handleDeviceError(2, gone)
	assert.True(t, triggered)

	select {
	case <-handlerCalled:
		mu.Lock()
		assert.Equal(t, uint32(2), receivedID)
		assert.Equal(t, gone, receivedErr)
		mu.Unlock()
	case <-time.After(100 * time.Millisecond):
		t.Fatal("handler was not called within timeout")
	}
}

func TestServer_GetBrightness_DeviceGoneTriggersRecovery(t *testing.T) {
	manager := newMockDisplayManager(fakeFeature{0, 100})
	manager.getErr[0] = &display.Error{Kind: display.KindTimedOut, Err: syscall.ENODEV}
	server := NewServer(manager)

	handlerCalled := make(chan struct{}, 1)
	server.SetDeviceErrorHandler(func(id uint32, err error) {
		handlerCalled <- struct{}{}
	})

	_, _, err := server.GetBrightness(0)
	require.NotNil(t, err)
	assert.Equal(t, ErrorTimedOut, err.Name)

	select {
	case <-handlerCalled:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("handler was not called within timeout")
	}
}

func TestServer_handleDeviceError_NilHandler(t *testing.T) {
	server := NewServer(newMockDisplayManager())
	// Don't set a handler - deviceErrorHandler is nil

	// Should return true (error detected) but not panic
	triggered := server.handleDeviceError(0, syscall.ENODEV)
	assert.True(t, triggered)
}

// TestServer_ConcurrentSetDeviceErrorHandler tests that SetDeviceErrorHandler
// is thread-safe when called concurrently with handleDeviceError.
func TestServer_ConcurrentSetDeviceErrorHandler(t *testing.T) {
	server := NewServer(newMockDisplayManager())

	var wg sync.WaitGroup
	const numGoroutines = 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			server.SetDeviceErrorHandler(func(id uint32, err error) {})
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			server.handleDeviceError(0, syscall.ENODEV)
		}()
	}

	wg.Wait()
}

// TestServer_ConcurrentSetBrightness checks that concurrent callers are
// serialized and every step lands.
func TestServer_ConcurrentSetBrightness(t *testing.T) {
	manager := newMockDisplayManager(fakeFeature{0, 100})
	server := NewServer(manager, WithRateLimit(1000, 100))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Nil(t, server.IncreaseBrightness(0, 5))
		}()
	}
	wg.Wait()

	assert.Equal(t, uint16(50), manager.value(0))
}

// TestServer_ConcurrentStopAndEmit tests that Stop and signal emission
// methods don't race when called concurrently.
func TestServer_ConcurrentStopAndEmit(t *testing.T) {
	server := NewServer(newMockDisplayManager())
	// Note: conn is nil, but we're testing mutex protection, not actual D-Bus calls

	var wg sync.WaitGroup
	const numGoroutines = 50

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			server.EmitDisplayAdded("i2c-4", "Test Display")
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			server.EmitDisplayRemoved("i2c-4")
		}()
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = server.Stop()
		}()
	}

	wg.Wait()
}
