// SPDX-License-Identifier: GPL-3.0-only

package ddc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// EDIDSize is the size of the base EDID block.
const EDIDSize = 128

// ErrInvalidEDID is returned when an EDID block fails validation.
var ErrInvalidEDID = errors.New("invalid edid")

var edidHeader = []byte{0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x00}

// Display descriptor tags.
const (
	descriptorSerial byte = 0xff
	descriptorName   byte = 0xfc
)

// EDID holds the identification fields of a base EDID block.
type EDID struct {
	Raw            []byte
	ManufacturerID string
	ProductCode    uint16
	Serial         uint32
	Week           uint8
	Year           int
	Version        uint8
	Revision       uint8
	ModelName      string
	SerialNumber   string
}

// ReadEDID reads the base EDID block from the EEPROM behind conn.
func ReadEDID(conn Conn) ([]byte, error) {
	buf := make([]byte, EDIDSize)
	if err := conn.Tx([]byte{0x00}, buf); err != nil {
		return nil, fmt.Errorf("failed to read edid: %w", err)
	}
	return buf, nil
}

// ParseEDID validates and decodes a base EDID block.
func ParseEDID(raw []byte) (*EDID, error) {
	if len(raw) < EDIDSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrInvalidEDID, len(raw), EDIDSize)
	}
	block := raw[:EDIDSize]
	if !bytes.Equal(block[:8], edidHeader) {
		return nil, fmt.Errorf("%w: bad header", ErrInvalidEDID)
	}

	var sum byte
	for _, b := range block {
		sum += b
	}
	if sum != 0 {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidEDID)
	}

	mfg := binary.BigEndian.Uint16(block[8:10])
	e := &EDID{
		Raw: append([]byte(nil), block...),
		ManufacturerID: string([]byte{
			byte(mfg>>10&0x1f) + '@',
			byte(mfg>>5&0x1f) + '@',
			byte(mfg&0x1f) + '@',
		}),
		ProductCode: binary.LittleEndian.Uint16(block[10:12]),
		Serial:      binary.LittleEndian.Uint32(block[12:16]),
		Week:        block[16],
		Year:        int(block[17]) + 1990,
		Version:     block[18],
		Revision:    block[19],
	}

	for off := 54; off+18 <= 126; off += 18 {
		d := block[off : off+18]
		// detailed timing descriptors have a non-zero pixel clock
		if d[0] != 0 || d[1] != 0 || d[2] != 0 {
			continue
		}
		switch d[3] {
		case descriptorName:
			e.ModelName = descriptorString(d[5:])
		case descriptorSerial:
			e.SerialNumber = descriptorString(d[5:])
		}
	}

	return e, nil
}

func descriptorString(b []byte) string {
	if i := bytes.IndexByte(b, 0x0a); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}
