// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"io"
	"os"

	"grimm.is/macwall/internal/config"
	"grimm.is/macwall/internal/logging"
)

// setupLogging builds the process logger from cfg and installs it as the default.
// The returned closer releases the syslog connection, if any.
func setupLogging(cfg *config.LoggingConfig) (*logging.Logger, io.Closer, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	sys := cfg.SyslogSettings()
	var syslogErr error
	if sys.Enabled {
		w, err := logging.NewSyslogWriter(sys)
		if err != nil {
			syslogErr = err
		} else {
			out = io.MultiWriter(os.Stderr, w)
			closer = w
		}
	}

	logger := logging.New(logging.Config{
		Output: out,
		Level:  level,
		Format: logging.Format(cfg.Format),
	})
	logging.SetDefault(logger)

	if syslogErr != nil {
		logger.WithError(syslogErr).Warn("Remote syslog disabled")
	}
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
