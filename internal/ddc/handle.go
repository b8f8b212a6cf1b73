// SPDX-License-Identifier: GPL-3.0-only

package ddc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// replyDelay is the time the display needs between a request and its reply.
	replyDelay = 40 * time.Millisecond

	// commandDelay is the time the display needs after a command before the next one.
	commandDelay = 50 * time.Millisecond

	// maxCapabilitiesLength bounds the capability string to guard against
	// displays that never send the terminating empty fragment.
	maxCapabilitiesLength = 16 * 1024

	// tableChunk is the largest table fragment sent per write.
	tableChunk = MaxPayload - 4
)

// VCP value types reported by Get VCP Feature replies.
const (
	TypeSetParameter byte = 0x00
	TypeMomentary    byte = 0x01
)

// VCPValue is the reply to a Get VCP Feature request.
type VCPValue struct {
	Type byte
	MH   byte
	ML   byte
	SH   byte
	SL   byte
}

// NewVCPValue builds a continuous VCPValue from a current and maximum value.
func NewVCPValue(value, maximum uint16) VCPValue {
	return VCPValue{
		Type: TypeSetParameter,
		MH:   byte(maximum >> 8),
		ML:   byte(maximum),
		SH:   byte(value >> 8),
		SL:   byte(value),
	}
}

// Value returns the current value.
func (v VCPValue) Value() uint16 {
	return uint16(v.SH)<<8 | uint16(v.SL)
}

// Maximum returns the maximum value.
func (v VCPValue) Maximum() uint16 {
	return uint16(v.MH)<<8 | uint16(v.ML)
}

// Handle issues DDC/CI commands over a Conn and enforces the inter-command
// delays the protocol requires. A Handle is not safe for concurrent use.
type Handle struct {
	conn    Conn
	clock   clockwork.Clock
	readyAt time.Time
}

// Option configures a Handle.
type Option func(*Handle)

// WithClock sets the clock used for command pacing.
func WithClock(clock clockwork.Clock) Option {
	return func(h *Handle) {
		h.clock = clock
	}
}

// NewHandle creates a Handle talking to the DDC/CI address behind conn.
func NewHandle(conn Conn, opts ...Option) *Handle {
	h := &Handle{
		conn:  conn,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Sleep blocks until the display is ready to accept another command.
func (h *Handle) Sleep() {
	if d := h.readyAt.Sub(h.clock.Now()); d > 0 {
		h.clock.Sleep(d)
	}
}

func (h *Handle) delay(d time.Duration) {
	h.readyAt = h.clock.Now().Add(d)
}

func (h *Handle) write(payload []byte, next time.Duration) error {
	h.Sleep()
	err := h.conn.Tx(encode(payload), nil)
	h.delay(next)
	if err != nil {
		return fmt.Errorf("failed to write ddc command 0x%02x: %w", payload[0], err)
	}
	return nil
}

func (h *Handle) read(size int) ([]byte, error) {
	h.Sleep()
	buf := make([]byte, size)
	err := h.conn.Tx(nil, buf)
	h.delay(commandDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to read ddc reply: %w", err)
	}
	return decode(buf)
}

// GetVCPFeature reads the current and maximum value of a VCP feature.
func (h *Handle) GetVCPFeature(code byte) (VCPValue, error) {
	if err := h.write([]byte{opGetVCP, code}, replyDelay); err != nil {
		return VCPValue{}, err
	}

	payload, err := h.read(11)
	if err != nil {
		return VCPValue{}, err
	}
	if len(payload) != 8 || payload[0] != opGetVCPReply {
		return VCPValue{}, fmt.Errorf("%w: unexpected get vcp reply % x", ErrInvalidReply, payload)
	}

	switch payload[1] {
	case 0x00:
	case 0x01:
		return VCPValue{}, fmt.Errorf("%w: 0x%02x", ErrUnsupportedCode, code)
	default:
		return VCPValue{}, fmt.Errorf("%w: result code 0x%02x", ErrInvalidReply, payload[1])
	}
	if payload[2] != code {
		return VCPValue{}, fmt.Errorf("%w: reply for code 0x%02x, requested 0x%02x", ErrInvalidReply, payload[2], code)
	}

	return VCPValue{
		Type: payload[3],
		MH:   payload[4],
		ML:   payload[5],
		SH:   payload[6],
		SL:   payload[7],
	}, nil
}

// SetVCPFeature writes a new value for a VCP feature.
func (h *Handle) SetVCPFeature(code byte, value uint16) error {
	return h.write([]byte{opSetVCP, code, byte(value >> 8), byte(value)}, commandDelay)
}

// SetTableVCPFeature writes table data for a table-type VCP feature starting
// at offset. Data is split into fragments that fit a single message.
func (h *Handle) SetTableVCPFeature(code byte, data []byte, offset uint16) error {
	for {
		n := min(len(data), tableChunk)
		payload := make([]byte, 4, 4+n)
		payload[0] = opTableWrite
		payload[1] = code
		binary.BigEndian.PutUint16(payload[2:], offset)
		payload = append(payload, data[:n]...)

		if err := h.write(payload, commandDelay); err != nil {
			return err
		}

		data = data[n:]
		offset += uint16(n)
		if len(data) == 0 {
			return nil
		}
	}
}

// Capabilities reads the raw capability string of the display.
func (h *Handle) Capabilities() (string, error) {
	var caps bytes.Buffer

	for {
		// #nosec G115 -- bounded by maxCapabilitiesLength
		offset := uint16(caps.Len())
		if err := h.write([]byte{opCapabilities, byte(offset >> 8), byte(offset)}, commandDelay); err != nil {
			return "", err
		}

		payload, err := h.read(MaxPayload + 6)
		if err != nil {
			return "", fmt.Errorf("failed to read capabilities at offset %d: %w", offset, err)
		}
		if len(payload) < 3 || payload[0] != opCapabilitiesResp {
			return "", fmt.Errorf("%w: unexpected capabilities reply % x", ErrInvalidReply, payload)
		}
		if got := binary.BigEndian.Uint16(payload[1:3]); got != offset {
			return "", fmt.Errorf("%w: capabilities offset %d, requested %d", ErrInvalidReply, got, offset)
		}

		fragment := payload[3:]
		if len(fragment) == 0 {
			break
		}
		caps.Write(fragment)

		if caps.Len() > maxCapabilitiesLength {
			return "", fmt.Errorf("%w: capability string exceeds %d bytes", ErrInvalidReply, maxCapabilitiesLength)
		}
	}

	return string(bytes.TrimRight(caps.Bytes(), "\x00")), nil
}
