// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"grimm.is/macwall/internal/netutil"
)

// Event is one row of the audit trail.
type Event struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"event_type"`
	Severity  Severity  `json:"severity"`
	SessionID string    `json:"session_id,omitempty"`
	Peer      string    `json:"peer,omitempty"`
	MAC       string    `json:"mac,omitempty"`
	Result    string    `json:"result,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Store handles persistence of audit events to SQLite
type Store struct {
	db *sql.DB
}

// Open opens or creates the audit database
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit db: %w", err)
	}
	// Single writer avoids SQLITE_BUSY between sessions.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL, -- Unix nanoseconds
		event_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		session_id TEXT,
		peer TEXT,
		mac TEXT,
		result TEXT,
		detail TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_audit_events_ts ON audit_events(ts);
	CREATE INDEX IF NOT EXISTS idx_audit_events_mac ON audit_events(mac);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to init audit schema: %w", err)
	}
	return nil
}

// Write appends an event.
func (s *Store) Write(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (ts, event_type, severity, session_id, peer, mac, result, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.UnixNano(), string(e.Type), string(e.Severity),
		e.SessionID, e.Peer, e.MAC, e.Result, e.Detail,
	)
	if err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first. An empty mac matches all addresses.
func (s *Store) Recent(ctx context.Context, limit int, mac string) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, ts, event_type, severity, session_id, peer, mac, result, detail FROM audit_events`
	args := []any{}
	if netutil.IsValidMAC(mac) {
		mac = netutil.NormalizeMAC(mac)
	}
	if mac != "" {
		query += ` WHERE mac = ?`
		args = append(args, mac)
	}
	query += ` ORDER BY ts DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e                                   Event
			ts                                  int64
			eventType, severity                 string
			session, peer, addr, result, detail sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &eventType, &severity, &session, &peer, &addr, &result, &detail); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, ts)
		e.Type = EventType(eventType)
		e.Severity = Severity(severity)
		e.SessionID = session.String
		e.Peer = peer.String
		e.MAC = addr.String
		e.Result = result.String
		e.Detail = detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}
