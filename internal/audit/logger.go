// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package audit records blocklist changes and daemon lifecycle events.
package audit

import (
	"context"

	"grimm.is/macwall/internal/clock"
	"grimm.is/macwall/internal/logging"
)

// EventType defines the type of audit event
type EventType string

const (
	EventBlock       EventType = "block"
	EventUnblock     EventType = "unblock"
	EventSystemStart EventType = "system_start"
	EventSystemStop  EventType = "system_stop"
)

// Severity defines the severity level of an audit event
type Severity string

const (
	SeverityInfo Severity = "info"
	SeverityWarn Severity = "warn"
)

type ctxKey int

const (
	sessionKey ctxKey = iota
	peerKey
)

// WithSession tags ctx with the session id and client address.
func WithSession(ctx context.Context, sessionID, peer string) context.Context {
	ctx = context.WithValue(ctx, sessionKey, sessionID)
	return context.WithValue(ctx, peerKey, peer)
}

// SessionFromContext returns the values set by WithSession.
func SessionFromContext(ctx context.Context) (sessionID, peer string) {
	sessionID, _ = ctx.Value(sessionKey).(string)
	peer, _ = ctx.Value(peerKey).(string)
	return sessionID, peer
}

// Logger writes audit events to the store and the structured log.
// A nil *Logger discards everything.
type Logger struct {
	store  *Store
	logger *logging.Logger
}

// NewLogger creates a new audit logger. store may be nil for log-only auditing.
func NewLogger(store *Store, logger *logging.Logger) *Logger {
	if logger == nil {
		logger = logging.WithComponent("audit")
	}
	return &Logger{
		store:  store,
		logger: logger,
	}
}

// LogEvent fills timestamp and session fields from ctx and persists the event.
func (l *Logger) LogEvent(ctx context.Context, event Event) error {
	if l == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = clock.Now()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}
	if event.SessionID == "" && event.Peer == "" {
		event.SessionID, event.Peer = SessionFromContext(ctx)
	}

	l.logger.Debug("AUDIT",
		"event_type", string(event.Type),
		"mac", event.MAC,
		"result", event.Result,
		"session", event.SessionID,
		"peer", event.Peer,
	)

	if l.store == nil {
		return nil
	}
	if err := l.store.Write(context.WithoutCancel(ctx), event); err != nil {
		l.logger.Error("Failed to persist audit event", "error", err)
		return err
	}
	return nil
}

// LogMutation records a block or unblock attempt. op is "block" or "unblock".
func (l *Logger) LogMutation(ctx context.Context, op, mac, result string) {
	severity := SeverityInfo
	switch result {
	case "invalid", "not_blocked":
		severity = SeverityWarn
	}
	_ = l.LogEvent(ctx, Event{
		Type:     EventType(op),
		Severity: severity,
		MAC:      mac,
		Result:   result,
	})
}

// LogSystem records a lifecycle event such as start or stop.
func (l *Logger) LogSystem(ctx context.Context, eventType EventType, detail string) {
	_ = l.LogEvent(ctx, Event{Type: eventType, Detail: detail})
}
