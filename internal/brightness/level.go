// SPDX-License-Identifier: GPL-3.0-only

package brightness

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidLevel is returned when a level string cannot be parsed.
var ErrInvalidLevel = errors.New("invalid brightness level")

// Percent converts a Luminance value to a percentage of maximum.
func Percent(value, maximum uint16) uint8 {
	if maximum == 0 {
		return 0
	}
	if value > maximum {
		value = maximum
	}
	return uint8(math.Round(float64(value) * 100 / float64(maximum)))
}

// FromPercent converts a percentage to a Luminance value on a 0..maximum
// scale. Percentages above 100 are treated as 100%.
func FromPercent(percent uint8, maximum uint16) uint16 {
	if percent > 100 {
		percent = 100
	}
	return uint16(math.Round(float64(percent) * float64(maximum) / 100))
}

// Step moves current by delta percent of maximum, clamped to 0..maximum.
func Step(current, maximum uint16, delta int) uint16 {
	step := math.Round(float64(delta) * float64(maximum) / 100)
	return clamp(float64(current)+step, maximum)
}

// ParseLevel resolves a level relative to the current value.
//
// Accepted forms are an absolute value ("30"), a percentage of maximum
// ("50%"), and signed relative steps in raw units ("+10", "-5") or percent
// ("+10%", "-5%"). Relative results are clamped to 0..maximum.
func ParseLevel(s string, current, maximum uint16) (uint16, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidLevel)
	}

	relative := s[0] == '+' || s[0] == '-'
	percent := strings.HasSuffix(s, "%")
	number := strings.TrimSuffix(s, "%")

	n, err := strconv.Atoi(number)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}

	switch {
	case relative && percent:
		return Step(current, maximum, n), nil
	case relative:
		return clamp(float64(current)+float64(n), maximum), nil
	case percent:
		if n > 100 {
			return 0, fmt.Errorf("%w: %d%% exceeds 100%%", ErrInvalidLevel, n)
		}
		return FromPercent(uint8(n), maximum), nil
	default:
		if n > int(maximum) {
			return 0, fmt.Errorf("%w: %d exceeds maximum %d", ErrInvalidLevel, n, maximum)
		}
		return uint16(n), nil
	}
}

func clamp(v float64, maximum uint16) uint16 {
	if v < 0 {
		return 0
	}
	if v > float64(maximum) {
		return maximum
	}
	return uint16(v)
}
