// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package enforcement

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"grimm.is/macwall/internal/config"
	ierrors "grimm.is/macwall/internal/errors"
	"grimm.is/macwall/internal/logging"
	"grimm.is/macwall/internal/netutil"
	"grimm.is/macwall/internal/validation"
)

// Shell exit statuses for "not executable" and "not found".
const (
	exitNotExecutable = 126
	exitNotFound      = 127
)

// ExecOptions configures an ExecGateway.
type ExecOptions struct {
	Shell          string
	BlockCommand   string
	UnblockCommand string
	Timeout        time.Duration
	Logger         *logging.Logger
}

// ExecGateway runs a shell command template per request, e.g.
// "nft add rule inet filter input ether saddr {mac} drop".
type ExecGateway struct {
	shell   string
	block   string
	unblock string
	timeout time.Duration
	logger  *logging.Logger
}

// NewExecGateway fills unset options from the config defaults.
func NewExecGateway(opts ExecOptions) *ExecGateway {
	if opts.Shell == "" {
		opts.Shell = config.DefaultShell
	}
	if opts.BlockCommand == "" {
		opts.BlockCommand = config.DefaultBlockCommand
	}
	if opts.UnblockCommand == "" {
		opts.UnblockCommand = config.DefaultUnblockCommand
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.WithComponent("enforcement")
	}
	return &ExecGateway{
		shell:   opts.Shell,
		block:   opts.BlockCommand,
		unblock: opts.UnblockCommand,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
}

func (g *ExecGateway) Name() string { return config.BackendExec }

func (g *ExecGateway) Block(ctx context.Context, mac string) Outcome {
	return g.run(ctx, "block", g.block, mac)
}

func (g *ExecGateway) Unblock(ctx context.Context, mac string) Outcome {
	return g.run(ctx, "unblock", g.unblock, mac)
}

func (g *ExecGateway) run(ctx context.Context, op, tmpl, mac string) Outcome {
	// The address is spliced into a shell line, so only the strict form is accepted.
	if !netutil.IsValidMAC(mac) {
		g.logger.Warn("Refusing to enforce malformed address", "op", op, "mac", validation.SanitizeString(mac))
		return CommandFailed
	}

	line := strings.ReplaceAll(tmpl, validation.MACPlaceholder, mac)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.shell, "-c", line)
	cmd.Stderr = &stderr
	// Orphaned grandchildren can hold stderr open after a timeout kill.
	cmd.WaitDelay = 500 * time.Millisecond

	err := cmd.Run()
	outcome := classify(err)
	if err != nil && ctx.Err() != nil {
		outcome = CommandFailed
	}

	log := g.logger.With("op", op, "mac", mac, "outcome", outcome.String())
	switch outcome {
	case Applied:
		log.Debug("Enforcement command succeeded")
	default:
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			log = log.With("stderr", msg)
		}
		if ctx.Err() != nil {
			log = log.With("timeout", g.timeout)
		}
		log.WithError(ierrors.Wrapf(err, ierrors.KindEnforcement, "%s command", op)).Warn("Enforcement command did not apply")
	}
	return outcome
}

func classify(err error) Outcome {
	if err == nil {
		return Applied
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		switch exitErr.ExitCode() {
		case exitNotExecutable, exitNotFound:
			return ToolUnavailable
		}
		return CommandFailed
	}
	// The shell itself could not be started.
	return ToolUnavailable
}
