// SPDX-License-Identifier: GPL-3.0-only

package hid_test

import (
	"errors"
	"testing"

	"github.com/shini4i/ddc-brightness-daemon/internal/ddc"
	"github.com/shini4i/ddc-brightness-daemon/internal/display"
	"github.com/shini4i/ddc-brightness-daemon/internal/hid"
	"github.com/shini4i/ddc-brightness-daemon/internal/hid/mocks"
	"github.com/shini4i/ddc-brightness-daemon/internal/mccs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const luminance = byte(mccs.Luminance)

// Verify Display can be used as a display handle.
var _ display.Handle = (*hid.Display)(nil)

func TestDisplay_GetVCPFeature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockDevice := mocks.NewMockDevice(ctrl)

	tests := []struct {
		name            string
		setupMock       func()
		expectedPercent uint16
		expectedError   bool
	}{
		{
			name: "successfully reads minimum brightness",
			setupMock: func() {
				mockDevice.EXPECT().GetFeatureReport(gomock.Any()).DoAndReturn(
					func(data []byte) (int, error) {
						// Return 400 nits (0x190) in little-endian
						data[0] = 0x01 // report ID
						data[1] = 0x90 // lo byte
						data[2] = 0x01 // mid_lo byte
						data[3] = 0x00 // mid_hi byte
						data[4] = 0x00 // hi byte
						return 7, nil
					},
				)
			},
			expectedPercent: 0,
		},
		{
			name: "successfully reads maximum brightness",
			setupMock: func() {
				mockDevice.EXPECT().GetFeatureReport(gomock.Any()).DoAndReturn(
					func(data []byte) (int, error) {
						// Return 60000 nits (0xEA60) in little-endian
						data[0] = 0x01
						data[1] = 0x60
						data[2] = 0xEA
						return 7, nil
					},
				)
			},
			expectedPercent: 100,
		},
		{
			name: "successfully reads 50% brightness",
			setupMock: func() {
				mockDevice.EXPECT().GetFeatureReport(gomock.Any()).DoAndReturn(
					func(data []byte) (int, error) {
						// Return 30200 nits (0x75F8) in little-endian
						data[0] = 0x01
						data[1] = 0xF8
						data[2] = 0x75
						return 7, nil
					},
				)
			},
			expectedPercent: 50,
		},
		{
			name: "returns error when device fails",
			setupMock: func() {
				mockDevice.EXPECT().GetFeatureReport(gomock.Any()).Return(0, errors.New("device error"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()
			d := hid.NewDisplay(mockDevice)

			value, err := d.GetVCPFeature(luminance)

			if tt.expectedError {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedPercent, value.Value())
				assert.Equal(t, hid.MaxLuminance, value.Maximum())
			}
		})
	}
}

func TestDisplay_SetVCPFeature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockDevice := mocks.NewMockDevice(ctrl)

	tests := []struct {
		name          string
		percent       uint16
		setupMock     func()
		expectedError bool
	}{
		{
			name:    "successfully sets minimum brightness",
			percent: 0,
			setupMock: func() {
				mockDevice.EXPECT().SendFeatureReport(gomock.Any()).DoAndReturn(
					func(data []byte) (int, error) {
						// Verify the data is correct for 400 nits (0x190)
						assert.Equal(t, byte(0x01), data[0], "report ID should be 0x01")
						assert.Equal(t, byte(0x90), data[1], "lo byte should be 0x90")
						assert.Equal(t, byte(0x01), data[2], "mid_lo byte should be 0x01")
						return 7, nil
					},
				)
			},
		},
		{
			name:    "successfully sets 50% brightness",
			percent: 50,
			setupMock: func() {
				mockDevice.EXPECT().SendFeatureReport(gomock.Any()).DoAndReturn(
					func(data []byte) (int, error) {
						// Verify the data is correct for 30200 nits (0x75F8)
						assert.Equal(t, byte(0xF8), data[1], "lo byte should be 0xF8")
						assert.Equal(t, byte(0x75), data[2], "mid_lo byte should be 0x75")
						return 7, nil
					},
				)
			},
		},
		{
			name:    "clamps values above 100",
			percent: 250,
			setupMock: func() {
				mockDevice.EXPECT().SendFeatureReport(gomock.Any()).DoAndReturn(
					func(data []byte) (int, error) {
						// 60000 nits (0xEA60)
						assert.Equal(t, byte(0x60), data[1], "lo byte should be 0x60")
						assert.Equal(t, byte(0xEA), data[2], "mid_lo byte should be 0xEA")
						return 7, nil
					},
				)
			},
		},
		{
			name:    "returns error when device fails",
			percent: 50,
			setupMock: func() {
				mockDevice.EXPECT().SendFeatureReport(gomock.Any()).Return(0, errors.New("device error"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()
			d := hid.NewDisplay(mockDevice)

			err := d.SetVCPFeature(luminance, tt.percent)

			if tt.expectedError {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDisplay_UnsupportedFeatures(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// the device must never be touched
	d := hid.NewDisplay(mocks.NewMockDevice(ctrl))

	_, err := d.GetVCPFeature(byte(mccs.Contrast))
	assert.ErrorIs(t, err, ddc.ErrUnsupportedCode)

	err = d.SetVCPFeature(byte(mccs.InputSource), 0x0f)
	assert.ErrorIs(t, err, ddc.ErrUnsupportedCode)

	err = d.SetTableVCPFeature(0x73, []byte{1}, 0)
	assert.ErrorIs(t, err, ddc.ErrUnsupportedCode)
}

func TestDisplay_Capabilities(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d := hid.NewDisplay(mocks.NewMockDevice(ctrl))

	raw, err := d.Capabilities()
	require.NoError(t, err)

	caps, err := mccs.ParseCapabilities(raw)
	require.NoError(t, err)
	assert.Equal(t, "Studio Display", caps.Model)
	assert.Len(t, caps.VCP, 1)
	assert.Contains(t, caps.VCP, mccs.Luminance)
}

func TestDisplay_Serial(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockDevice := mocks.NewMockDevice(ctrl)
	mockDevice.EXPECT().Info().Return(hid.DeviceInfo{
		Serial:  "C02ABC123",
		Product: "Studio Display",
	}).Times(2)

	d := hid.NewDisplay(mockDevice)
	assert.Equal(t, "C02ABC123", d.Serial())
	assert.Equal(t, "Studio Display", d.ProductName())
}

func TestDisplay_AfterClose(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockDevice := mocks.NewMockDevice(ctrl)
	mockDevice.EXPECT().Close().Return(nil)

	d := hid.NewDisplay(mockDevice)
	require.NoError(t, d.Close())

	_, err := d.GetVCPFeature(luminance)
	assert.ErrorIs(t, err, hid.ErrDisplayClosed)

	err = d.SetVCPFeature(luminance, 50)
	assert.ErrorIs(t, err, hid.ErrDisplayClosed)

	_, err = d.Capabilities()
	assert.ErrorIs(t, err, hid.ErrDisplayClosed)
}

func TestDisplay_Close_Idempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockDevice := mocks.NewMockDevice(ctrl)
	mockDevice.EXPECT().Close().Return(nil).Times(1) // Only called once

	d := hid.NewDisplay(mockDevice)
	require.NoError(t, d.Close())

	// Second close should be no-op
	require.NoError(t, d.Close())
}
