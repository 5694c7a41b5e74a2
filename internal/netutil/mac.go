// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netutil

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

// macPattern accepts exactly six colon-separated hex octets.
// net.ParseMAC is looser (dashes, dots, 20-octet IPoIB) so it is not used for validation.
var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

// IsValidMAC reports whether s is a colon-separated 48-bit MAC, any letter case.
func IsValidMAC(s string) bool {
	return macPattern.MatchString(s)
}

// NormalizeMAC lowercases a MAC for use as a set key. It does not validate.
func NormalizeMAC(s string) string {
	return strings.ToLower(s)
}

// ParseMAC validates s and returns its six bytes.
func ParseMAC(s string) (net.HardwareAddr, error) {
	if !IsValidMAC(s) {
		return nil, fmt.Errorf("invalid MAC address: %q", s)
	}
	return net.ParseMAC(s)
}

// FormatMAC renders a 6-byte address in canonical lowercase form.
func FormatMAC(mac []byte) string {
	if len(mac) != 6 {
		return ""
	}
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}
