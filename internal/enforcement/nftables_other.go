// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package enforcement

import (
	"context"
	"errors"

	"grimm.is/macwall/internal/metrics"
)

// NFTablesGateway is only available on Linux.
type NFTablesGateway struct{}

// NewNFTablesGateway always fails off Linux.
func NewNFTablesGateway(NFTablesOptions) (*NFTablesGateway, error) {
	return nil, errors.New("nftables backend requires linux")
}

func (*NFTablesGateway) Name() string                            { return "nftables" }
func (*NFTablesGateway) Block(context.Context, string) Outcome   { return ToolUnavailable }
func (*NFTablesGateway) Unblock(context.Context, string) Outcome { return ToolUnavailable }
func (*NFTablesGateway) Close() error                            { return nil }

func (*NFTablesGateway) Counters() ([]metrics.RuleCounters, error) {
	return nil, errors.New("nftables backend requires linux")
}
