// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package enforcement

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/nftables"
	"github.com/google/nftables/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeConn keeps committed rules in memory and stages pending ones until Flush.
type fakeConn struct {
	rules    []*nftables.Rule
	pending  []*nftables.Rule
	deleting []*nftables.Rule
	flushErr error
	flushes  int
	handle   uint64
	// delErrAt fails the DelRule call with this 1-based index when non-zero.
	delErrAt int
	delCalls int
}

func (f *fakeConn) AddRule(r *nftables.Rule) *nftables.Rule {
	f.pending = append(f.pending, r)
	return r
}

func (f *fakeConn) DelRule(r *nftables.Rule) error {
	f.delCalls++
	if f.delErrAt != 0 && f.delCalls == f.delErrAt {
		return unix.EINVAL
	}
	f.deleting = append(f.deleting, r)
	return nil
}

func (f *fakeConn) GetRules(*nftables.Table, *nftables.Chain) ([]*nftables.Rule, error) {
	return append([]*nftables.Rule(nil), f.rules...), nil
}

func (f *fakeConn) Flush() error {
	f.flushes++
	if f.flushErr != nil {
		f.pending, f.deleting = nil, nil
		return f.flushErr
	}
	for _, r := range f.pending {
		f.handle++
		r.Handle = f.handle
	}
	f.rules = append(f.rules, f.pending...)
	for _, d := range f.deleting {
		for i, r := range f.rules {
			if r == d {
				f.rules = append(f.rules[:i], f.rules[i+1:]...)
				break
			}
		}
	}
	f.pending, f.deleting = nil, nil
	return nil
}

func newTestNFT(t *testing.T, conn *fakeConn) *NFTablesGateway {
	t.Helper()
	g, err := newNFTablesGateway(conn, NFTablesOptions{Family: "inet", Table: "filter", Chain: "input", Logger: testLogger()})
	require.NoError(t, err)
	return g
}

func TestNFTablesGateway_BlockAndUnblock(t *testing.T) {
	conn := &fakeConn{}
	g := newTestNFT(t, conn)
	ctx := context.Background()

	require.Equal(t, Applied, g.Block(ctx, "aa:bb:cc:dd:ee:ff"))
	require.Equal(t, Applied, g.Block(ctx, "11:22:33:44:55:66"))
	require.Len(t, conn.rules, 2)

	r := conn.rules[0]
	assert.Equal(t, "filter", r.Table.Name)
	assert.Equal(t, nftables.TableFamilyINet, r.Table.Family)
	assert.Equal(t, "input", r.Chain.Name)
	assert.Equal(t, []byte("macwall:aa:bb:cc:dd:ee:ff"), r.UserData)

	require.Len(t, r.Exprs, 6)
	payload, ok := r.Exprs[2].(*expr.Payload)
	require.True(t, ok)
	assert.Equal(t, expr.PayloadBaseLLHeader, payload.Base)
	assert.Equal(t, uint32(6), payload.Offset)
	cmp, ok := r.Exprs[3].(*expr.Cmp)
	require.True(t, ok)
	assert.True(t, bytes.Equal([]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}, cmp.Data))
	_, ok = r.Exprs[4].(*expr.Counter)
	require.True(t, ok)
	verdict, ok := r.Exprs[5].(*expr.Verdict)
	require.True(t, ok)
	assert.Equal(t, expr.VerdictDrop, verdict.Kind)

	require.Equal(t, Applied, g.Unblock(ctx, "aa:bb:cc:dd:ee:ff"))
	require.Len(t, conn.rules, 1)
	assert.Equal(t, []byte("macwall:11:22:33:44:55:66"), conn.rules[0].UserData)
}

func TestNFTablesGateway_Counters(t *testing.T) {
	conn := &fakeConn{rules: []*nftables.Rule{
		{UserData: []byte("macwall:aa:bb:cc:dd:ee:ff"), Exprs: []expr.Any{
			&expr.Counter{Packets: 7, Bytes: 420},
			&expr.Verdict{Kind: expr.VerdictDrop},
		}},
		{UserData: []byte("other:11:22:33:44:55:66"), Exprs: []expr.Any{&expr.Counter{Packets: 1}}},
		{Exprs: []expr.Any{&expr.Verdict{Kind: expr.VerdictAccept}}},
	}}
	g := newTestNFT(t, conn)

	got, err := g.Counters()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", got[0].MAC)
	assert.Equal(t, uint64(7), got[0].Packets)
	assert.Equal(t, uint64(420), got[0].Bytes)
}

func TestNFTablesGateway_UnblockMissingRule(t *testing.T) {
	conn := &fakeConn{}
	g := newTestNFT(t, conn)
	assert.Equal(t, CommandFailed, g.Unblock(context.Background(), "aa:bb:cc:dd:ee:ff"))
	assert.Equal(t, 0, conn.flushes)
}

func TestNFTablesGateway_UnblockDeleteErrorDrainsBatch(t *testing.T) {
	conn := &fakeConn{}
	g := newTestNFT(t, conn)
	ctx := context.Background()
	mac := "aa:bb:cc:dd:ee:ff"

	require.Equal(t, Applied, g.Block(ctx, mac))
	require.Equal(t, Applied, g.Block(ctx, mac))
	require.Len(t, conn.rules, 2)

	conn.delErrAt = 2
	assert.Equal(t, CommandFailed, g.Unblock(ctx, mac))
	assert.Empty(t, conn.deleting, "queued deletes must not linger in the batch")

	// The next unrelated request commits only its own change.
	before := len(conn.rules)
	require.Equal(t, Applied, g.Block(ctx, "11:22:33:44:55:66"))
	assert.Len(t, conn.rules, before+1)
}

func TestNFTablesGateway_UnblockRuleWithoutHandle(t *testing.T) {
	conn := &fakeConn{rules: []*nftables.Rule{{UserData: ruleTag("aa:bb:cc:dd:ee:ff")}}}
	g := newTestNFT(t, conn)
	assert.Equal(t, CommandFailed, g.Unblock(context.Background(), "aa:bb:cc:dd:ee:ff"))
	assert.Equal(t, 0, conn.delCalls)
	assert.Equal(t, 0, conn.flushes)
}

func TestNFTablesGateway_FlushErrors(t *testing.T) {
	conn := &fakeConn{flushErr: unix.ENOENT}
	g := newTestNFT(t, conn)
	assert.Equal(t, CommandFailed, g.Block(context.Background(), "aa:bb:cc:dd:ee:ff"))

	conn.flushErr = unix.EPERM
	assert.Equal(t, ToolUnavailable, g.Block(context.Background(), "aa:bb:cc:dd:ee:ff"))
	assert.Empty(t, conn.rules)
}

func TestNFTablesGateway_RejectsMalformedAddress(t *testing.T) {
	conn := &fakeConn{}
	g := newTestNFT(t, conn)
	assert.Equal(t, CommandFailed, g.Block(context.Background(), "not-a-mac"))
	assert.Equal(t, 0, conn.flushes)
}

func TestTableFamily(t *testing.T) {
	for name, want := range map[string]nftables.TableFamily{
		"inet":   nftables.TableFamilyINet,
		"ip":     nftables.TableFamilyIPv4,
		"ip6":    nftables.TableFamilyIPv6,
		"bridge": nftables.TableFamilyBridge,
		"netdev": nftables.TableFamilyNetdev,
	} {
		got, err := tableFamily(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := tableFamily("arp")
	assert.Error(t, err)
}
