// SPDX-License-Identifier: GPL-3.0-only

package brightness_test

import (
	"testing"

	"github.com/shini4i/ddc-brightness-daemon/internal/brightness"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercent(t *testing.T) {
	assert.Equal(t, uint8(0), brightness.Percent(0, 100))
	assert.Equal(t, uint8(50), brightness.Percent(50, 100))
	assert.Equal(t, uint8(50), brightness.Percent(127, 255))
	assert.Equal(t, uint8(100), brightness.Percent(300, 255))
	assert.Equal(t, uint8(0), brightness.Percent(10, 0))
}

func TestFromPercent(t *testing.T) {
	assert.Equal(t, uint16(0), brightness.FromPercent(0, 255))
	assert.Equal(t, uint16(128), brightness.FromPercent(50, 255))
	assert.Equal(t, uint16(255), brightness.FromPercent(100, 255))
	assert.Equal(t, uint16(100), brightness.FromPercent(150, 100))
}

func TestStep(t *testing.T) {
	assert.Equal(t, uint16(60), brightness.Step(50, 100, 10))
	assert.Equal(t, uint16(100), brightness.Step(95, 100, 10))
	assert.Equal(t, uint16(0), brightness.Step(5, 100, -10))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		current  uint16
		maximum  uint16
		expected uint16
		wantErr  bool
	}{
		{name: "absolute", input: "30", current: 70, maximum: 100, expected: 30},
		{name: "absolute with spaces", input: " 42 ", current: 0, maximum: 100, expected: 42},
		{name: "percent of wider scale", input: "50%", current: 0, maximum: 200, expected: 100},
		{name: "relative increase", input: "+10", current: 70, maximum: 100, expected: 80},
		{name: "relative decrease", input: "-5", current: 70, maximum: 100, expected: 65},
		{name: "relative percent", input: "+10%", current: 100, maximum: 200, expected: 120},
		{name: "relative percent decrease", input: "-5%", current: 50, maximum: 100, expected: 45},
		{name: "increase clamps to maximum", input: "+50", current: 70, maximum: 100, expected: 100},
		{name: "decrease clamps to zero", input: "-50%", current: 10, maximum: 100, expected: 0},
		{name: "absolute above maximum", input: "120", maximum: 100, wantErr: true},
		{name: "percent above 100", input: "150%", maximum: 100, wantErr: true},
		{name: "negative without sign handling", input: "--5", maximum: 100, wantErr: true},
		{name: "not a number", input: "bright", maximum: 100, wantErr: true},
		{name: "empty", input: "", maximum: 100, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := brightness.ParseLevel(tt.input, tt.current, tt.maximum)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, brightness.ErrInvalidLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}
