// SPDX-License-Identifier: GPL-3.0-only

package mccs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidCapabilities is returned when a capability string cannot be parsed.
var ErrInvalidCapabilities = errors.New("invalid capability string")

// MCCSVersion is the MCCS revision a display claims to implement.
type MCCSVersion struct {
	Major uint8
	Minor uint8
}

func (v MCCSVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Capabilities is the parsed form of a display's capability string, e.g.
//
//	(prot(monitor)type(lcd)model(P2415Q)cmds(01 02 03 07 0C E3 F3)vcp(02 10 12 60(0F 11))mccs_ver(2.1))
type Capabilities struct {
	Protocol    string
	Type        string
	Model       string
	Commands    []byte
	VCP         map[FeatureCode][]byte
	VCPNames    map[FeatureCode]string
	MCCSVersion *MCCSVersion
	Unknown     map[string]string
}

type capEntry struct {
	key   string
	value string
}

// ParseCapabilities parses a raw capability string as returned by a display.
// Missing whitespace between hex values and a missing outer closing
// parenthesis are tolerated, both are common in the wild.
func ParseCapabilities(raw string) (*Capabilities, error) {
	s := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidCapabilities)
	}
	if s[0] == '(' {
		s = s[1:]
	}

	entries, err := splitEntries(s)
	if err != nil {
		return nil, err
	}

	caps := &Capabilities{
		VCP:      make(map[FeatureCode][]byte),
		VCPNames: make(map[FeatureCode]string),
		Unknown:  make(map[string]string),
	}

	for _, e := range entries {
		switch strings.ToLower(e.key) {
		case "prot":
			caps.Protocol = strings.TrimSpace(e.value)
		case "type":
			caps.Type = strings.TrimSpace(e.value)
		case "model":
			caps.Model = strings.TrimSpace(e.value)
		case "cmds":
			cmds, err := parseHexBytes(e.value)
			if err != nil {
				return nil, fmt.Errorf("failed to parse cmds: %w", err)
			}
			caps.Commands = append(caps.Commands, cmds...)
		case "vcp":
			if err := parseVCP(e.value, caps.VCP); err != nil {
				return nil, fmt.Errorf("failed to parse vcp: %w", err)
			}
		case "vcpname":
			if err := parseVCPNames(e.value, caps.VCPNames); err != nil {
				return nil, fmt.Errorf("failed to parse vcpname: %w", err)
			}
		case "mccs_ver":
			version, err := parseMCCSVersion(e.value)
			if err != nil {
				return nil, err
			}
			caps.MCCSVersion = version
		default:
			caps.Unknown[e.key] = e.value
		}
	}

	return caps, nil
}

// splitEntries splits "key(value)key(value)..." into entries. It stops at an
// unbalanced closing parenthesis, which terminates the outer group.
func splitEntries(s string) ([]capEntry, error) {
	var entries []capEntry

	p := 0
	for p < len(s) {
		p = skipSpaces(s, p)
		if p >= len(s) || s[p] == ')' {
			break
		}

		start := p
		for p < len(s) && s[p] != '(' && s[p] != ')' {
			p++
		}
		key := strings.TrimSpace(s[start:p])
		if p >= len(s) || s[p] == ')' {
			if key == "" {
				break
			}
			return nil, fmt.Errorf("%w: entry %q has no value", ErrInvalidCapabilities, key)
		}

		end := matchParen(s, p)
		entries = append(entries, capEntry{key: key, value: s[p+1 : end]})
		p = end + 1
	}

	return entries, nil
}

// matchParen returns the index of the parenthesis closing the one at open,
// or len(s) for a truncated string.
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(s)
}

func skipSpaces(s string, p int) int {
	for p < len(s) && (s[p] == ' ' || s[p] == '\t' || s[p] == '\r' || s[p] == '\n') {
		p++
	}
	return p
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// readHexByte reads exactly two hex digits at p.
func readHexByte(s string, p int) (byte, error) {
	if p+1 >= len(s) || !isHex(s[p]) || !isHex(s[p+1]) {
		return 0, fmt.Errorf("%w: expected hex byte at %q", ErrInvalidCapabilities, s[p:])
	}
	v, err := strconv.ParseUint(s[p:p+2], 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidCapabilities, err)
	}
	return byte(v), nil
}

func parseHexBytes(s string) ([]byte, error) {
	var out []byte
	p := 0
	for {
		p = skipSpaces(s, p)
		if p >= len(s) {
			return out, nil
		}
		b, err := readHexByte(s, p)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
		p += 2
	}
}

func parseVCP(s string, into map[FeatureCode][]byte) error {
	p := 0
	for {
		p = skipSpaces(s, p)
		if p >= len(s) {
			return nil
		}

		code, err := readHexByte(s, p)
		if err != nil {
			return err
		}
		p = skipSpaces(s, p+2)

		if p < len(s) && s[p] == '(' {
			end := matchParen(s, p)
			values, err := parseHexBytes(s[p+1 : end])
			if err != nil {
				return err
			}
			into[FeatureCode(code)] = append(into[FeatureCode(code)], values...)
			p = end + 1
			continue
		}

		if _, ok := into[FeatureCode(code)]; !ok {
			into[FeatureCode(code)] = nil
		}
	}
}

func parseVCPNames(s string, into map[FeatureCode]string) error {
	p := 0
	for {
		p = skipSpaces(s, p)
		if p >= len(s) {
			return nil
		}

		code, err := readHexByte(s, p)
		if err != nil {
			return err
		}
		p = skipSpaces(s, p+2)
		if p >= len(s) || s[p] != '(' {
			return fmt.Errorf("%w: vcpname %02X has no name", ErrInvalidCapabilities, code)
		}

		end := matchParen(s, p)
		name := strings.TrimSpace(s[p+1 : end])
		// value names only, e.g. 14((9300 6500))
		if !strings.HasPrefix(name, "(") && name != "" {
			into[FeatureCode(code)] = name
		}
		p = end + 1
	}
}

func parseMCCSVersion(s string) (*MCCSVersion, error) {
	major, minor, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return nil, fmt.Errorf("%w: malformed mccs_ver %q", ErrInvalidCapabilities, s)
	}
	ma, err := strconv.ParseUint(strings.TrimSpace(major), 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed mccs_ver %q", ErrInvalidCapabilities, s)
	}
	mi, err := strconv.ParseUint(strings.TrimSpace(minor), 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed mccs_ver %q", ErrInvalidCapabilities, s)
	}
	return &MCCSVersion{Major: uint8(ma), Minor: uint8(mi)}, nil
}
