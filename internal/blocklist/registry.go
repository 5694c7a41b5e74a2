// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package blocklist holds the authoritative set of blocked MAC addresses.
//
// The Registry guards the set with one mutex held only for the in-memory
// read or mutation. Persistence and packet filter calls happen after the
// lock is released. Each save snapshots the set under its own brief lock,
// and saves are serialized, so the last save to finish always writes the
// latest state.
package blocklist

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"grimm.is/macwall/internal/enforcement"
	"grimm.is/macwall/internal/errors"
	"grimm.is/macwall/internal/logging"
	"grimm.is/macwall/internal/metrics"
	"grimm.is/macwall/internal/netutil"
	"grimm.is/macwall/internal/validation"
)

// Mutation results, used for metrics and audit rows.
const (
	ResultAdded      = "added"
	ResultAlready    = "already_blocked"
	ResultRemoved    = "removed"
	ResultNotBlocked = "not_blocked"
	ResultInvalid    = "invalid"
)

// Auditor receives every block and unblock attempt.
type Auditor interface {
	LogMutation(ctx context.Context, op, mac, result string)
}

// Options wires a Registry's collaborators. Only Store is required.
type Options struct {
	Store   Store
	Gateway enforcement.Gateway
	Logger  *logging.Logger
	Metrics *metrics.Metrics
	Auditor Auditor
}

// Registry is the shared blocklist state.
type Registry struct {
	mu  sync.Mutex
	set map[string]struct{}

	// saveMu orders snapshot+write pairs so an older snapshot never lands last.
	saveMu sync.Mutex

	store   Store
	gateway enforcement.Gateway
	logger  *logging.Logger
	metrics *metrics.Metrics
	auditor Auditor
}

// NewRegistry creates an empty registry. Call Load to restore persisted state.
func NewRegistry(opts Options) *Registry {
	if opts.Gateway == nil {
		opts.Gateway = enforcement.Noop{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.WithComponent("blocklist")
	}
	return &Registry{
		set:     make(map[string]struct{}),
		store:   opts.Store,
		gateway: opts.Gateway,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		auditor: opts.Auditor,
	}
}

// IsInvalidFormat reports whether err came from a malformed address.
func IsInvalidFormat(err error) bool {
	return errors.IsKind(err, errors.KindValidation)
}

// IsNotBlocked reports whether err came from unblocking an absent address.
func IsNotBlocked(err error) bool {
	return errors.IsKind(err, errors.KindNotFound)
}

// Load replaces the set with the stored record. Entries that fail validation
// are dropped. A read or parse failure leaves the set empty and is returned
// as a warning; the registry stays usable either way.
func (r *Registry) Load() (int, error) {
	if r.store == nil {
		return 0, nil
	}

	macs, err := r.store.Load()

	loaded := make(map[string]struct{}, len(macs))
	var dropped []string
	for _, m := range macs {
		if !netutil.IsValidMAC(m) {
			dropped = append(dropped, m)
			continue
		}
		loaded[netutil.NormalizeMAC(m)] = struct{}{}
	}

	r.mu.Lock()
	r.set = loaded
	n := len(r.set)
	r.mu.Unlock()
	r.metrics.SetBlocked(n)

	if len(dropped) > 0 {
		r.logger.Warn("Dropped malformed entries from stored blocklist", "count", len(dropped), "entries", dropped)
	}
	return n, err
}

// Block adds raw to the set and asks the gateway to enforce it.
// The returned message describes the enforcement outcome.
func (r *Registry) Block(ctx context.Context, raw string) (string, error) {
	if err := validation.ValidateMAC(raw); err != nil {
		r.observe(ctx, "block", raw, ResultInvalid)
		return "", err
	}
	mac := netutil.NormalizeMAC(raw)

	r.mu.Lock()
	if _, ok := r.set[mac]; ok {
		n := len(r.set)
		r.mu.Unlock()
		r.observe(ctx, "block", mac, ResultAlready)
		return fmt.Sprintf("MAC %s already blocked (total: %d)", raw, n), nil
	}
	r.set[mac] = struct{}{}
	n := len(r.set)
	r.mu.Unlock()
	r.metrics.SetBlocked(n)

	r.persist()

	outcome := r.gateway.Block(ctx, mac)
	r.metrics.ObserveEnforcement("block", outcome.String())
	r.observe(ctx, "block", mac, ResultAdded)

	var msg string
	switch outcome {
	case enforcement.Applied:
		msg = fmt.Sprintf("Successfully added %s to blocklist (total: %d)", raw, r.Count())
		r.logger.Info("Added to blocklist", "mac", mac, "enforcement", outcome.String())
	case enforcement.ToolUnavailable:
		msg = fmt.Sprintf("Added %s to blocklist, but nftables unavailable", raw)
		r.logger.Warn("Added to blocklist without enforcement", "mac", mac, "enforcement", outcome.String())
	default:
		msg = fmt.Sprintf("Added %s to blocklist, but nftables rule failed", raw)
		r.logger.Warn("Added to blocklist without enforcement", "mac", mac, "enforcement", outcome.String())
	}
	return msg, nil
}

// Unblock removes raw from the set. The gateway outcome is logged only.
func (r *Registry) Unblock(ctx context.Context, raw string) (string, error) {
	if err := validation.ValidateMAC(raw); err != nil {
		r.observe(ctx, "unblock", raw, ResultInvalid)
		return "", err
	}
	mac := netutil.NormalizeMAC(raw)

	r.mu.Lock()
	if _, ok := r.set[mac]; !ok {
		r.mu.Unlock()
		r.observe(ctx, "unblock", mac, ResultNotBlocked)
		err := errors.Errorf(errors.KindNotFound, "MAC %s not in blocklist", raw)
		return "", errors.Attr(err, "mac", mac)
	}
	delete(r.set, mac)
	n := len(r.set)
	r.mu.Unlock()
	r.metrics.SetBlocked(n)

	r.persist()

	outcome := r.gateway.Unblock(ctx, mac)
	r.metrics.ObserveEnforcement("unblock", outcome.String())
	r.observe(ctx, "unblock", mac, ResultRemoved)
	r.logger.Info("Removed from blocklist", "mac", mac, "enforcement", outcome.String())

	return fmt.Sprintf("Removed %s from blocklist", raw), nil
}

// IsBlocked is a membership read. raw must be well formed.
func (r *Registry) IsBlocked(raw string) (bool, error) {
	if err := validation.ValidateMAC(raw); err != nil {
		return false, err
	}
	mac := netutil.NormalizeMAC(raw)

	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.set[mac]
	return ok, nil
}

// List returns a sorted copy of the set.
func (r *Registry) List() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.set))
	for mac := range r.set {
		out = append(out, mac)
	}
	r.mu.Unlock()

	sort.Strings(out)
	return out
}

// Count returns the number of blocked addresses.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.set)
}

// Save writes the current set to the store.
func (r *Registry) Save() error {
	if r.store == nil {
		return nil
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	return r.store.Save(r.List())
}

// persist saves and downgrades failure to a warning.
func (r *Registry) persist() {
	if err := r.Save(); err != nil {
		r.metrics.ObserveSaveFailure()
		r.logger.WithError(err).Warn("Failed to save blocklist")
	}
}

func (r *Registry) observe(ctx context.Context, op, mac, result string) {
	r.metrics.ObserveMutation(op, result)
	if r.auditor != nil {
		r.auditor.LogMutation(ctx, op, mac, result)
	}
}
