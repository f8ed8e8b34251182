// Package persistence implements the append-only event log, current-state
// map, and intent/action log described in spec.md §4.A, backed by SQLite via
// modernc.org/sqlite (pure Go, no cgo), grounded on the retrieved pack's
// SQLite receipt-store pattern (store/receipt_store_sqlite.go).
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// Store is the thread-safe persistence façade. database/sql's *sql.DB is
// already safe for concurrent use; the extra mutex here only serializes the
// ULID entropy source, which is not itself concurrency-safe.
type Store struct {
	db *sql.DB

	idMu      sync.Mutex
	idEntropy *ulid.MonotonicEntropy
}

// Open creates (or opens) the SQLite database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY churn
	s := &Store{
		db:        db,
		idEntropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// NewID returns a new monotonically-increasing ULID string, used for event
// IDs and for the request IDs POST /assist mints, so they sort
// lexicographically by creation order.
func (s *Store) NewID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), s.idEntropy)
	return id.String()
}

// AppendEvent is total: callers in the assist chain must never see it fail
// silently. A write error is returned, never swallowed.
func (s *Store) AppendEvent(ctx context.Context, e Event) error {
	if e.EventID == "" {
		e.EventID = s.NewID()
	}
	if e.TimestampUTC == "" {
		e.TimestampUTC = nowISO()
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (event_id, timestamp_utc, event_type, source, severity, session_id, correlation_id, mode, payload, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.TimestampUTC, e.EventType, e.Source, e.Severity,
		nullIfEmpty(e.SessionID), nullIfEmpty(e.CorrelationID), nullIfEmpty(e.Mode), string(payload), string(tags),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// SetState upserts key and, when emitEvent is true, appends a state-changed
// event IFF the canonical-JSON value actually changed.
func (s *Store) SetState(ctx context.Context, item StateItem, emitEvent bool) (changed bool, err error) {
	canonical, err := json.Marshal(item.Value)
	if err != nil {
		return false, fmt.Errorf("marshal value: %w", err)
	}

	var previous sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, item.Key).Scan(&previous)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("read previous state: %w", err)
	}
	changed = !previous.Valid || !canonicalEqual(previous.String, string(canonical))

	now := nowISO()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO state (key, value, source, observed_at, confidence, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, source=excluded.source,
			observed_at=excluded.observed_at, confidence=excluded.confidence, updated_at=excluded.updated_at`,
		item.Key, string(canonical), nullIfEmpty(item.Source), nullIfEmpty(item.ObservedAt), item.Confidence, now,
	)
	if err != nil {
		return false, fmt.Errorf("upsert state: %w", err)
	}

	if emitEvent && changed {
		if err := s.AppendEvent(ctx, Event{
			EventType: "STATE_CHANGED",
			Severity:  "info",
			Payload: map[string]interface{}{
				"key":   item.Key,
				"value": item.Value,
			},
		}); err != nil {
			return changed, err
		}
	}
	return changed, nil
}

// BatchSetState applies items atomically and emits events only for keys
// whose value actually changed, per spec.md §4.A.
func (s *Store) BatchSetState(ctx context.Context, items []StateItem, emitEvents bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	type changedItem struct {
		key   string
		value interface{}
	}
	var changes []changedItem

	for _, item := range items {
		canonical, err := json.Marshal(item.Value)
		if err != nil {
			return fmt.Errorf("marshal value for %s: %w", item.Key, err)
		}
		var previous sql.NullString
		err = tx.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, item.Key).Scan(&previous)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("read previous state for %s: %w", item.Key, err)
		}
		changed := !previous.Valid || !canonicalEqual(previous.String, string(canonical))

		now := nowISO()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO state (key, value, source, observed_at, confidence, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value=excluded.value, source=excluded.source,
				observed_at=excluded.observed_at, confidence=excluded.confidence, updated_at=excluded.updated_at`,
			item.Key, string(canonical), nullIfEmpty(item.Source), nullIfEmpty(item.ObservedAt), item.Confidence, now,
		)
		if err != nil {
			return fmt.Errorf("upsert state for %s: %w", item.Key, err)
		}
		if changed {
			changes = append(changes, changedItem{item.Key, item.Value})
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	if emitEvents {
		for _, c := range changes {
			if err := s.AppendEvent(ctx, Event{
				EventType: "STATE_CHANGED",
				Severity:  "info",
				Payload:   map[string]interface{}{"key": c.key, "value": c.value},
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) GetState(ctx context.Context, key string) (*StateItem, error) {
	var (
		value      string
		source     sql.NullString
		observedAt sql.NullString
		confidence sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `SELECT value, source, observed_at, confidence FROM state WHERE key = ?`, key).
		Scan(&value, &source, &observedAt, &confidence)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state %s: %w", key, err)
	}
	item := &StateItem{Key: key, Source: source.String, ObservedAt: observedAt.String}
	if err := json.Unmarshal([]byte(value), &item.Value); err != nil {
		return nil, fmt.Errorf("unmarshal state value for %s: %w", key, err)
	}
	if confidence.Valid {
		c := confidence.Float64
		item.Confidence = &c
	}
	return item, nil
}

func (s *Store) ListState(ctx context.Context) ([]StateItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, source, observed_at, confidence FROM state ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list state: %w", err)
	}
	defer rows.Close()

	var items []StateItem
	for rows.Next() {
		var (
			key, value string
			source     sql.NullString
			observedAt sql.NullString
			confidence sql.NullFloat64
		)
		if err := rows.Scan(&key, &value, &source, &observedAt, &confidence); err != nil {
			return nil, fmt.Errorf("scan state row: %w", err)
		}
		item := StateItem{Key: key, Source: source.String, ObservedAt: observedAt.String}
		if err := json.Unmarshal([]byte(value), &item.Value); err != nil {
			return nil, fmt.Errorf("unmarshal state value for %s: %w", key, err)
		}
		if confidence.Valid {
			c := confidence.Float64
			item.Confidence = &c
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListEvents applies filter.Limit capped at 1000 per spec.md §4.A.
func (s *Store) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	query := `SELECT event_id, timestamp_utc, event_type, source, severity, session_id, correlation_id, mode, payload, tags
		FROM events WHERE 1=1`
	var args []interface{}
	if filter.EventType != "" {
		query += " AND event_type = ?"
		args = append(args, filter.EventType)
	}
	if filter.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	if filter.CorrelationID != "" {
		query += " AND correlation_id = ?"
		args = append(args, filter.CorrelationID)
	}
	if filter.Since != "" {
		query += " AND timestamp_utc >= ?"
		args = append(args, filter.Since)
	}
	query += " ORDER BY log_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e                                    Event
			source, sessionID, correlationID, mode sql.NullString
			payload, tags                         sql.NullString
		)
		if err := rows.Scan(&e.EventID, &e.TimestampUTC, &e.EventType, &source, &e.Severity, &sessionID, &correlationID, &mode, &payload, &tags); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.Source = source.String
		e.SessionID = sessionID.String
		e.CorrelationID = correlationID.String
		e.Mode = mode.String
		if payload.Valid && payload.String != "" {
			_ = json.Unmarshal([]byte(payload.String), &e.Payload)
		}
		if tags.Valid && tags.String != "" {
			_ = json.Unmarshal([]byte(tags.String), &e.Tags)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func canonicalEqual(a, b string) bool {
	var va, vb interface{}
	if json.Unmarshal([]byte(a), &va) != nil || json.Unmarshal([]byte(b), &vb) != nil {
		return a == b
	}
	ca, errA := json.Marshal(va)
	cb, errB := json.Marshal(vb)
	if errA != nil || errB != nil {
		return a == b
	}
	return string(ca) == string(cb)
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
}
