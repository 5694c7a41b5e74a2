// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import "fmt"

// SyslogConfig describes a remote syslog receiver.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string // udp or tcp
	Tag      string
	Facility int // syslog facility number, 1 = user
}

// DefaultSyslogConfig returns a disabled UDP/514 configuration.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "macwall",
		Facility: 1,
	}
}

func (c SyslogConfig) normalize() (SyslogConfig, error) {
	if c.Host == "" {
		return c, fmt.Errorf("syslog host is required")
	}
	if c.Port == 0 {
		c.Port = 514
	}
	if c.Protocol == "" {
		c.Protocol = "udp"
	}
	if c.Protocol != "udp" && c.Protocol != "tcp" {
		return c, fmt.Errorf("unsupported syslog protocol %q", c.Protocol)
	}
	if c.Tag == "" {
		c.Tag = "macwall"
	}
	if c.Facility < 0 || c.Facility > 23 {
		return c, fmt.Errorf("syslog facility %d out of range", c.Facility)
	}
	return c, nil
}
