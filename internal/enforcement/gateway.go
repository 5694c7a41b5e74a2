// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package enforcement pushes blocklist changes into the kernel packet filter.
//
// Enforcement is best effort. A Gateway never returns an error; it reports an
// Outcome and logs the detail. The blocklist itself stays authoritative.
package enforcement

import (
	"context"
	"fmt"

	"grimm.is/macwall/internal/config"
	"grimm.is/macwall/internal/logging"
)

// Outcome is the result of a single enforcement request.
type Outcome int

const (
	Applied Outcome = iota
	CommandFailed
	ToolUnavailable
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case CommandFailed:
		return "command_failed"
	case ToolUnavailable:
		return "tool_unavailable"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Gateway adds and removes drop rules for a normalized MAC address.
// Implementations must be safe for concurrent use.
type Gateway interface {
	Block(ctx context.Context, mac string) Outcome
	Unblock(ctx context.Context, mac string) Outcome
	Name() string
}

// Closer is implemented by gateways holding kernel resources.
type Closer interface {
	Close() error
}

// Noop accepts every request. Used for backend "none" and in tests.
type Noop struct{}

func (Noop) Block(context.Context, string) Outcome   { return Applied }
func (Noop) Unblock(context.Context, string) Outcome { return Applied }
func (Noop) Name() string                            { return config.BackendNone }

// Unavailable reports ToolUnavailable for every request. Used when the
// configured backend could not be initialized at startup.
type Unavailable struct {
	Backend string
}

func (Unavailable) Block(context.Context, string) Outcome   { return ToolUnavailable }
func (Unavailable) Unblock(context.Context, string) Outcome { return ToolUnavailable }
func (u Unavailable) Name() string                          { return u.Backend }

// New builds the gateway selected by cfg.Backend.
func New(cfg *config.EnforcementConfig, logger *logging.Logger) (Gateway, error) {
	if logger == nil {
		logger = logging.WithComponent("enforcement")
	}
	switch cfg.Backend {
	case config.BackendExec, "":
		return NewExecGateway(ExecOptions{
			Shell:          cfg.Shell,
			BlockCommand:   cfg.BlockCommand,
			UnblockCommand: cfg.UnblockCommand,
			Timeout:        cfg.TimeoutDuration(),
			Logger:         logger,
		}), nil
	case config.BackendNFTables:
		g, err := NewNFTablesGateway(NFTablesOptions{
			Family: cfg.Family,
			Table:  cfg.Table,
			Chain:  cfg.Chain,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	case config.BackendNone:
		return Noop{}, nil
	}
	return nil, fmt.Errorf("unknown enforcement backend %q", cfg.Backend)
}
