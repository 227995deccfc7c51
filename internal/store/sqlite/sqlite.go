// Package sqlite implements store.Store on a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"whodis/internal/domain"
	"whodis/internal/store"
)

// Store implements store.Store using SQLite
type Store struct {
	db *sql.DB

	// Stream ID generator state. IDs are "<unix-ms>-<seq>": seq breaks ties
	// within one millisecond, and the clock component never moves backwards,
	// so IDs are strictly increasing even under concurrent producers.
	mu      sync.Mutex
	lastMS  int64
	lastSeq int64
}

// New opens (or creates) the database at path and runs migrations.
// ":memory:" gives an ephemeral store for tests.
func New(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", store.ErrUnavailable, err)
	}

	// Single connection: the pipeline is the only writer, and it keeps
	// ":memory:" databases from silently splitting across pool connections
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate database: %v", store.ErrUnavailable, err)
	}
	if err := s.seedStreamID(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: read last stream id: %v", store.ErrUnavailable, err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS presence_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		stream_id TEXT NOT NULL UNIQUE,
		mac TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('appeared', 'still_present', 'disappeared')),
		ip TEXT,
		vendor TEXT,
		observed_at DATETIME NOT NULL,
		cycle_id TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS device_state (
		mac TEXT PRIMARY KEY,
		last_seen_at DATETIME NOT NULL,
		last_ip TEXT,
		present INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS scan_cycles (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		outcome TEXT NOT NULL,
		event_count INTEGER NOT NULL DEFAULT 0,
		skipped_lines INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS mac_aliases (
		mac TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_observed ON presence_events(observed_at, mac);
	CREATE INDEX IF NOT EXISTS idx_events_mac ON presence_events(mac);
	`

	_, err := s.db.Exec(schema)
	return err
}

// seedStreamID resumes the ID generator past the highest stored stream ID so
// a restart never reissues an identifier.
func (s *Store) seedStreamID() error {
	var last string
	err := s.db.QueryRow(`SELECT stream_id FROM presence_events ORDER BY seq DESC LIMIT 1`).Scan(&last)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}

	ms, seq, err := parseStreamID(last)
	if err != nil {
		return err
	}
	s.lastMS, s.lastSeq = ms, seq
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// nextStreamID generates a strictly increasing identifier
func (s *Store) nextStreamID(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := now.UnixMilli()
	if ms <= s.lastMS {
		s.lastSeq++
	} else {
		s.lastMS = ms
		s.lastSeq = 0
	}
	return fmt.Sprintf("%d-%d", s.lastMS, s.lastSeq)
}

// parseStreamID splits "<unix-ms>-<seq>" back into its components
func parseStreamID(id string) (ms, seq int64, err error) {
	idx := strings.LastIndexByte(id, '-')
	if idx <= 0 {
		return 0, 0, fmt.Errorf("malformed stream id %q", id)
	}
	if _, err := fmt.Sscanf(id[:idx], "%d", &ms); err != nil {
		return 0, 0, fmt.Errorf("malformed stream id %q: %v", id, err)
	}
	if _, err := fmt.Sscanf(id[idx+1:], "%d", &seq); err != nil {
		return 0, 0, fmt.Errorf("malformed stream id %q: %v", id, err)
	}
	return ms, seq, nil
}

// AppendEvents appends events in order, one record each. Records are written
// individually (not in one transaction): a mid-batch failure leaves the
// already-written prefix in place and is reported with its count, matching
// the retry contract - the coordinator recomputes a failed cycle from
// uncommitted state rather than replaying the same list.
func (s *Store) AppendEvents(ctx context.Context, events []domain.PresenceEvent) ([]string, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	ids := make([]string, 0, len(events))
	for _, ev := range events {
		id := s.nextStreamID(time.Now())
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO presence_events (stream_id, mac, kind, ip, vendor, observed_at, cycle_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, ev.MAC, string(ev.Kind), stringToNull(ev.IP), stringToNull(ev.Vendor),
			ev.Timestamp.UTC(), ev.CycleID,
		)
		if err != nil {
			return ids, &store.AppendError{Appended: len(ids), Err: err}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LoadDeviceStates reads the full committed device state map
func (s *Store) LoadDeviceStates(ctx context.Context) (map[string]domain.DeviceState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT mac, last_seen_at, last_ip, present FROM device_state`)
	if err != nil {
		return nil, fmt.Errorf("%w: query device state: %v", store.ErrUnavailable, err)
	}
	defer rows.Close()

	states := make(map[string]domain.DeviceState)
	for rows.Next() {
		var (
			st      domain.DeviceState
			ip      sql.NullString
			present int64
		)
		if err := rows.Scan(&st.MAC, &st.LastSeenAt, &ip, &present); err != nil {
			return nil, fmt.Errorf("scan device state: %w", err)
		}
		st.LastIP = nullToString(ip)
		st.Present = present != 0
		states[st.MAC] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device state: %w", err)
	}

	return states, nil
}

// SaveDeviceStates commits the full state map in one transaction, so a crash
// mid-commit never leaves a half-updated map behind.
func (s *Store) SaveDeviceStates(ctx context.Context, states map[string]domain.DeviceState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin state commit: %v", store.ErrUnavailable, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO device_state (mac, last_seen_at, last_ip, present)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(mac) DO UPDATE SET
			last_seen_at = excluded.last_seen_at,
			last_ip = excluded.last_ip,
			present = excluded.present`)
	if err != nil {
		return fmt.Errorf("%w: prepare state upsert: %v", store.ErrWrite, err)
	}
	defer stmt.Close()

	for _, st := range states {
		if _, err := stmt.ExecContext(ctx, st.MAC, st.LastSeenAt.UTC(), stringToNull(st.LastIP), boolToInt(st.Present)); err != nil {
			return fmt.Errorf("%w: upsert state for %s: %v", store.ErrWrite, st.MAC, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit state: %v", store.ErrWrite, err)
	}
	return nil
}

// RecordCycle persists one scan cycle record
func (s *Store) RecordCycle(ctx context.Context, cycle domain.ScanCycle) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_cycles (id, started_at, finished_at, outcome, event_count, skipped_lines)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			outcome = excluded.outcome,
			event_count = excluded.event_count,
			skipped_lines = excluded.skipped_lines`,
		cycle.ID, cycle.StartedAt.UTC(), cycle.FinishedAt.UTC(), string(cycle.Outcome),
		cycle.EventCount, cycle.SkippedLines,
	)
	if err != nil {
		return fmt.Errorf("%w: record cycle %s: %v", store.ErrWrite, cycle.ID, err)
	}
	return nil
}

// SetAlias assigns a human name to a hardware address
func (s *Store) SetAlias(ctx context.Context, mac, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mac_aliases (mac, name) VALUES (?, ?)
		ON CONFLICT(mac) DO UPDATE SET name = excluded.name, updated_at = CURRENT_TIMESTAMP`,
		mac, name,
	)
	if err != nil {
		return fmt.Errorf("%w: set alias for %s: %v", store.ErrWrite, mac, err)
	}
	return nil
}

// Alias returns the assigned name for a MAC, or the MAC itself when unset
func (s *Store) Alias(ctx context.Context, mac string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM mac_aliases WHERE mac = ?`, mac).Scan(&name)
	if err == sql.ErrNoRows {
		return mac, nil
	}
	if err != nil {
		return "", fmt.Errorf("query alias for %s: %w", mac, err)
	}
	return name, nil
}

// Aliases returns every assigned alias
func (s *Store) Aliases(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT mac, name FROM mac_aliases`)
	if err != nil {
		return nil, fmt.Errorf("query aliases: %w", err)
	}
	defer rows.Close()

	aliases := make(map[string]string)
	for rows.Next() {
		var mac, name string
		if err := rows.Scan(&mac, &name); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		aliases[mac] = name
	}
	return aliases, rows.Err()
}

// DeleteAlias removes the alias for a hardware address
func (s *Store) DeleteAlias(ctx context.Context, mac string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM mac_aliases WHERE mac = ?`, mac); err != nil {
		return fmt.Errorf("%w: delete alias for %s: %v", store.ErrWrite, mac, err)
	}
	return nil
}

// RecentEvents returns up to limit events, oldest first
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]store.StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stream_id, mac, kind, ip, vendor, observed_at, cycle_id
		FROM presence_events
		ORDER BY seq DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []store.StoredEvent
	for rows.Next() {
		var (
			ev         store.StoredEvent
			kind       string
			ip, vendor sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.MAC, &kind, &ip, &vendor, &ev.Timestamp, &ev.CycleID); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = domain.EventKind(kind)
		ev.IP = nullToString(ip)
		ev.Vendor = nullToString(vendor)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	// Read newest-first for the LIMIT, return oldest-first
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// EventCount returns the total number of stored events
func (s *Store) EventCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM presence_events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// KnownMACs lists every hardware address ever seen, sorted
func (s *Store) KnownMACs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT mac FROM device_state`)
	if err != nil {
		return nil, fmt.Errorf("query known macs: %w", err)
	}
	defer rows.Close()

	var macs []string
	for rows.Next() {
		var mac string
		if err := rows.Scan(&mac); err != nil {
			return nil, fmt.Errorf("scan mac: %w", err)
		}
		macs = append(macs, mac)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Strings(macs)
	return macs, nil
}
