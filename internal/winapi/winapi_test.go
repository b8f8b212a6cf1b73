// SPDX-License-Identifier: GPL-3.0-only

package winapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayID(t *testing.T) {
	assert.Equal(t, "winapi-0.0", displayID(0, 0))
	assert.Equal(t, "winapi-2.1", displayID(2, 1))
}
