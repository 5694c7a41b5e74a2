// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package enforcement

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/nftables"
	"github.com/google/nftables/binaryutil"
	"github.com/google/nftables/expr"
	"golang.org/x/sys/unix"

	"grimm.is/macwall/internal/brand"
	"grimm.is/macwall/internal/config"
	ierrors "grimm.is/macwall/internal/errors"
	"grimm.is/macwall/internal/logging"
	"grimm.is/macwall/internal/metrics"
	"grimm.is/macwall/internal/netutil"
)

// nftConn is the subset of *nftables.Conn the gateway uses.
type nftConn interface {
	AddRule(r *nftables.Rule) *nftables.Rule
	DelRule(r *nftables.Rule) error
	GetRules(t *nftables.Table, c *nftables.Chain) ([]*nftables.Rule, error)
	Flush() error
}

// NFTablesGateway installs "ether saddr <mac> drop" rules over netlink.
// The table and chain must already exist.
type NFTablesGateway struct {
	mu     sync.Mutex // one batch in flight per connection
	conn   nftConn
	table  *nftables.Table
	chain  *nftables.Chain
	logger *logging.Logger
}

// NewNFTablesGateway opens a netlink connection to nf_tables.
func NewNFTablesGateway(opts NFTablesOptions) (*NFTablesGateway, error) {
	conn, err := nftables.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create nftables connection: %w", err)
	}
	return newNFTablesGateway(conn, opts)
}

func newNFTablesGateway(conn nftConn, opts NFTablesOptions) (*NFTablesGateway, error) {
	family, err := tableFamily(opts.Family)
	if err != nil {
		return nil, err
	}
	if opts.Table == "" {
		opts.Table = config.DefaultTable
	}
	if opts.Chain == "" {
		opts.Chain = config.DefaultChain
	}
	if opts.Logger == nil {
		opts.Logger = logging.WithComponent("enforcement")
	}

	table := &nftables.Table{Name: opts.Table, Family: family}
	return &NFTablesGateway{
		conn:   conn,
		table:  table,
		chain:  &nftables.Chain{Name: opts.Chain, Table: table},
		logger: opts.Logger.With("table", opts.Table, "chain", opts.Chain),
	}, nil
}

func tableFamily(name string) (nftables.TableFamily, error) {
	switch name {
	case "", "inet":
		return nftables.TableFamilyINet, nil
	case "ip":
		return nftables.TableFamilyIPv4, nil
	case "ip6":
		return nftables.TableFamilyIPv6, nil
	case "bridge":
		return nftables.TableFamilyBridge, nil
	case "netdev":
		return nftables.TableFamilyNetdev, nil
	}
	return 0, fmt.Errorf("unsupported nftables family %q", name)
}

func (g *NFTablesGateway) Name() string { return config.BackendNFTables }

// Block appends a drop rule matching the Ethernet source address.
func (g *NFTablesGateway) Block(_ context.Context, mac string) Outcome {
	hw, err := netutil.ParseMAC(mac)
	if err != nil {
		g.logger.WithError(err).Warn("Refusing to enforce malformed address", "op", "block")
		return CommandFailed
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.conn.AddRule(&nftables.Rule{
		Table:    g.table,
		Chain:    g.chain,
		Exprs:    etherSaddrDrop(hw),
		UserData: ruleTag(mac),
	})
	if err := g.conn.Flush(); err != nil {
		return g.failed("block", mac, err)
	}
	g.logger.Debug("Drop rule installed", "mac", mac)
	return Applied
}

// Unblock deletes every rule tagged for mac.
func (g *NFTablesGateway) Unblock(_ context.Context, mac string) Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	rules, err := g.conn.GetRules(g.table, g.chain)
	if err != nil {
		return g.failed("unblock", mac, err)
	}

	tag := ruleTag(mac)
	var matched []*nftables.Rule
	for _, r := range rules {
		if !bytes.Equal(r.UserData, tag) {
			continue
		}
		if r.Handle == 0 {
			return g.failed("unblock", mac, fmt.Errorf("rule for %s has no handle", mac))
		}
		matched = append(matched, r)
	}
	if len(matched) == 0 {
		g.logger.Warn("No drop rule found to remove", "mac", mac)
		return CommandFailed
	}

	for _, r := range matched {
		if err := g.conn.DelRule(r); err != nil {
			// Deletes already queued would otherwise ride along with the next batch.
			if ferr := g.conn.Flush(); ferr != nil {
				g.logger.WithError(ferr).Warn("Failed to flush partial unblock batch", "mac", mac)
			}
			return g.failed("unblock", mac, err)
		}
	}
	if err := g.conn.Flush(); err != nil {
		return g.failed("unblock", mac, err)
	}
	g.logger.Debug("Drop rule removed", "mac", mac, "rules", len(matched))
	return Applied
}

// Counters lists the daemon's drop rules with their packet counters, for the metrics collector.
func (g *NFTablesGateway) Counters() ([]metrics.RuleCounters, error) {
	g.mu.Lock()
	rules, err := g.conn.GetRules(g.table, g.chain)
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	prefix := brand.RuleTag + ":"
	var out []metrics.RuleCounters
	for _, rule := range rules {
		userData := string(rule.UserData)
		if !strings.HasPrefix(userData, prefix) {
			continue
		}

		rc := metrics.RuleCounters{MAC: strings.TrimPrefix(userData, prefix)}
		for _, e := range rule.Exprs {
			if counter, ok := e.(*expr.Counter); ok {
				rc.Packets = counter.Packets
				rc.Bytes = counter.Bytes
				break
			}
		}
		out = append(out, rc)
	}
	return out, nil
}

// Close releases the netlink socket when the connection is lasting.
func (g *NFTablesGateway) Close() error {
	if c, ok := g.conn.(*nftables.Conn); ok {
		return c.CloseLasting()
	}
	return nil
}

func (g *NFTablesGateway) failed(op, mac string, err error) Outcome {
	outcome := CommandFailed
	if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPROTONOSUPPORT) {
		outcome = ToolUnavailable
	}
	err = ierrors.Wrapf(err, ierrors.KindEnforcement, "nftables %s", op)
	g.logger.WithError(err).Warn("nftables request failed", "op", op, "mac", mac, "outcome", outcome.String())
	return outcome
}

// etherSaddrDrop is the expression list for "meta iiftype ether ether saddr <hw> counter drop".
func etherSaddrDrop(hw []byte) []expr.Any {
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyIIFTYPE, Register: 1},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     binaryutil.NativeEndian.PutUint16(unix.ARPHRD_ETHER),
		},
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseLLHeader,
			Offset:       6,
			Len:          6,
		},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     hw,
		},
		&expr.Counter{},
		&expr.Verdict{Kind: expr.VerdictDrop},
	}
}
