// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"grimm.is/macwall/internal/errors"
	"grimm.is/macwall/internal/logging"
	"grimm.is/macwall/internal/validation"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationErrors) add(field string, err error) {
	if err != nil {
		*e = append(*e, ValidationError{Field: field, Message: err.Error()})
	}
}

var (
	validBackends = []string{BackendExec, BackendNFTables, BackendNone}
	validFamilies = []string{"inet", "ip", "ip6", "bridge", "netdev"}
	validFormats  = []string{"text", "logfmt", "json"}
)

// Validate checks a defaulted config. The returned error is KindValidation wrapping ValidationErrors.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.SchemaVersion != CurrentSchemaVersion {
		errs.add("schema_version", fmt.Errorf("unsupported version %q (want %s)", c.SchemaVersion, CurrentSchemaVersion))
	}
	if c.Listen != nil {
		errs.add("listen.host", validation.ValidateListenHost(c.Listen.Host))
		errs.add("listen.port", validation.ValidatePortNumber(c.Listen.Port))
	}
	if c.Blocklist != nil && strings.TrimSpace(c.Blocklist.Path) == "" {
		errs.add("blocklist.path", fmt.Errorf("path cannot be empty"))
	}

	if e := c.Enforcement; e != nil {
		errs.add("enforcement.backend", validation.ValidateAllowlist(e.Backend, validBackends))
		if d, err := time.ParseDuration(e.Timeout); err != nil {
			errs.add("enforcement.timeout", err)
		} else if d <= 0 {
			errs.add("enforcement.timeout", fmt.Errorf("must be positive"))
		}
		switch e.Backend {
		case BackendExec:
			if strings.TrimSpace(e.Shell) == "" {
				errs.add("enforcement.shell", fmt.Errorf("shell cannot be empty"))
			}
			errs.add("enforcement.block_command", validation.ValidateCommandTemplate(e.BlockCommand))
			errs.add("enforcement.unblock_command", validation.ValidateCommandTemplate(e.UnblockCommand))
		case BackendNFTables:
			errs.add("enforcement.family", validation.ValidateAllowlist(e.Family, validFamilies))
			errs.add("enforcement.table", validation.ValidateIdentifier(e.Table))
			errs.add("enforcement.chain", validation.ValidateIdentifier(e.Chain))
		}
	}

	if s := c.Session; s != nil {
		if d, err := time.ParseDuration(s.DrainTimeout); err != nil {
			errs.add("session.drain_timeout", err)
		} else if d < 0 {
			errs.add("session.drain_timeout", fmt.Errorf("cannot be negative"))
		}
		if s.MaxLineBytes < 64 {
			errs.add("session.max_line_bytes", fmt.Errorf("must be at least 64"))
		}
	}

	if l := c.Logging; l != nil {
		_, err := logging.ParseLevel(l.Level)
		errs.add("logging.level", err)
		errs.add("logging.format", validation.ValidateAllowlist(l.Format, validFormats))
		if l.Syslog != nil && l.Syslog.Enabled && l.Syslog.Host == "" {
			errs.add("logging.syslog.host", fmt.Errorf("host is required when syslog is enabled"))
		}
	}

	if m := c.Metrics; m != nil && m.Enabled {
		if _, _, err := net.SplitHostPort(m.Listen); err != nil {
			errs.add("metrics.listen", err)
		}
	}
	if a := c.Audit; a != nil && a.Enabled && strings.TrimSpace(a.Path) == "" {
		errs.add("audit.path", fmt.Errorf("path cannot be empty"))
	}

	if len(errs) > 0 {
		return errors.Wrap(errs, errors.KindValidation, "invalid configuration")
	}
	return nil
}

// SyslogSettings converts the decoded block into logging settings, starting from logging defaults.
func (l *LoggingConfig) SyslogSettings() logging.SyslogConfig {
	out := logging.DefaultSyslogConfig()
	if l == nil || l.Syslog == nil {
		return out
	}
	s := l.Syslog
	out.Enabled = s.Enabled
	out.Host = s.Host
	if s.Port != 0 {
		out.Port = s.Port
	}
	if s.Protocol != "" {
		out.Protocol = s.Protocol
	}
	if s.Tag != "" {
		out.Tag = s.Tag
	}
	if s.Facility != 0 {
		out.Facility = s.Facility
	}
	return out
}
