// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package validation

import (
	"net"
	"regexp"
	"strings"

	"grimm.is/macwall/internal/errors"
	"grimm.is/macwall/internal/netutil"
)

// MACPlaceholder is substituted with the address in enforcement command templates.
const MACPlaceholder = "{mac}"

var (
	// Valid identifier: alphanumeric, dash, underscore
	identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// Valid hostname label sequence (RFC 1123, relaxed)
	hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9.-]{0,252}[a-zA-Z0-9])?$`)

	// Dangerous characters that should never appear in identifiers
	dangerousChars = []string{";", "|", "&", "$", "`", "(", ")", "<", ">", "\\", "\"", "'", "\n", "\r"}
)

// ValidateMAC checks s against the colon-separated six-octet form.
// The error message is the one clients see on the wire.
func ValidateMAC(s string) error {
	if netutil.IsValidMAC(s) {
		return nil
	}
	err := errors.Errorf(errors.KindValidation, "Invalid MAC address format: %s", s)
	return errors.Attr(err, "mac", s)
}

// ValidateIdentifier validates a general identifier (nftables table, chain, family names)
func ValidateIdentifier(id string) error {
	if id == "" {
		return errors.New(errors.KindValidation, "identifier cannot be empty")
	}

	if len(id) > 255 {
		return errors.New(errors.KindValidation, "identifier too long (max 255 characters)")
	}

	if !identifierRegex.MatchString(id) {
		return errors.Errorf(errors.KindValidation, "invalid identifier: %s (must be alphanumeric with -_)", id)
	}

	return nil
}

// ValidateListenHost accepts an IP literal or a hostname.
func ValidateListenHost(host string) error {
	if host == "" {
		return errors.New(errors.KindValidation, "listen host cannot be empty")
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	if !hostnameRegex.MatchString(host) {
		return errors.Errorf(errors.KindValidation, "invalid listen host: %s", host)
	}
	return nil
}

// ValidateCommandTemplate requires the {mac} placeholder exactly where the address goes.
func ValidateCommandTemplate(tmpl string) error {
	if strings.TrimSpace(tmpl) == "" {
		return errors.New(errors.KindValidation, "command template cannot be empty")
	}
	if !strings.Contains(tmpl, MACPlaceholder) {
		return errors.Errorf(errors.KindValidation, "command template %q is missing %s", tmpl, MACPlaceholder)
	}
	return nil
}

// ValidateAllowlist checks if a value is in an allowed list
func ValidateAllowlist(value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return errors.Errorf(errors.KindValidation, "value not in allowlist: %s (must be one of: %s)", value, strings.Join(allowed, ", "))
}

// ValidatePortNumber validates a port number
func ValidatePortNumber(port int) error {
	if port < 1 || port > 65535 {
		return errors.Errorf(errors.KindValidation, "invalid port number: %d (must be 1-65535)", port)
	}
	return nil
}

// SanitizeString removes dangerous characters from a string (for display purposes)
func SanitizeString(s string) string {
	for _, char := range dangerousChars {
		s = strings.ReplaceAll(s, char, "")
	}
	return s
}
