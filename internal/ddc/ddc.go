// SPDX-License-Identifier: GPL-3.0-only

// Package ddc implements the DDC/CI monitor control protocol on top of an
// I2C-like transport.
package ddc

//go:generate mockgen -source=ddc.go -destination=mocks/conn_mock.go -package=mocks

import (
	"errors"
	"fmt"
)

const (
	// Address is the 7-bit I2C address of the DDC/CI command interface.
	Address uint16 = 0x37

	// EDIDAddress is the 7-bit I2C address of the EDID EEPROM.
	EDIDAddress uint16 = 0x50

	hostAddress    byte = 0x51
	displayAddress byte = 0x6e
	replySeed      byte = 0x50
	lengthFlag     byte = 0x80

	// MaxPayload is the largest payload a single DDC/CI message may carry.
	MaxPayload = 32
)

// Command opcodes.
const (
	opGetVCP           byte = 0x01
	opGetVCPReply      byte = 0x02
	opSetVCP           byte = 0x03
	opCapabilities     byte = 0xf3
	opCapabilitiesResp byte = 0xe3
	opTableWrite       byte = 0xe7
)

var (
	// ErrChecksum is returned when a reply fails checksum validation.
	ErrChecksum = errors.New("ddc reply checksum mismatch")

	// ErrInvalidReply is returned when a reply is malformed or unexpected.
	ErrInvalidReply = errors.New("invalid ddc reply")

	// ErrNullMessage is returned when the display answers with a null message.
	ErrNullMessage = errors.New("display returned a null message")

	// ErrUnsupportedCode is returned when the display rejects a VCP code.
	ErrUnsupportedCode = errors.New("unsupported vcp code")
)

// Conn is an I2C-like connection bound to a single slave address.
// periph.io's i2c.Dev satisfies it.
type Conn interface {
	// Tx writes w and then reads len(r) bytes into r. Either may be empty.
	Tx(w, r []byte) error
}

// encode frames a payload for transmission to the display.
func encode(payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+3)
	frame = append(frame, hostAddress, lengthFlag|byte(len(payload)))
	frame = append(frame, payload...)
	return append(frame, checksum(displayAddress, frame))
}

// decode validates a reply frame and returns its payload.
func decode(reply []byte) ([]byte, error) {
	if len(reply) < 3 {
		return nil, fmt.Errorf("%w: short frame of %d bytes", ErrInvalidReply, len(reply))
	}
	if reply[0] != displayAddress {
		return nil, fmt.Errorf("%w: unexpected source address 0x%02x", ErrInvalidReply, reply[0])
	}
	if reply[1]&lengthFlag == 0 {
		return nil, fmt.Errorf("%w: length byte 0x%02x lacks protocol flag", ErrInvalidReply, reply[1])
	}

	n := int(reply[1] &^ lengthFlag)
	if n+3 > len(reply) {
		return nil, fmt.Errorf("%w: length %d exceeds frame", ErrInvalidReply, n)
	}
	if sum := checksum(replySeed, reply[:n+2]); sum != reply[n+2] {
		return nil, fmt.Errorf("%w: got 0x%02x, want 0x%02x", ErrChecksum, reply[n+2], sum)
	}
	if n == 0 {
		return nil, ErrNullMessage
	}
	return reply[2 : n+2], nil
}

func checksum(seed byte, data []byte) byte {
	for _, b := range data {
		seed ^= b
	}
	return seed
}
