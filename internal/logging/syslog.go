// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !windows && !plan9

package logging

import (
	"fmt"
	"io"
	"log/syslog"
	"net"
	"strconv"
)

// NewSyslogWriter dials the remote syslog receiver described by cfg.
// The returned writer is usually teed next to the local output with io.MultiWriter.
func NewSyslogWriter(cfg SyslogConfig) (io.WriteCloser, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	priority := syslog.Priority(cfg.Facility<<3) | syslog.LOG_INFO
	w, err := syslog.Dial(cfg.Protocol, addr, priority, cfg.Tag)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to syslog %s/%s: %w", cfg.Protocol, addr, err)
	}
	return w, nil
}
