package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/saturn/pkg/decision"
	"mercator-hq/saturn/pkg/pdl/ast"
)

const schema = `
CREATE TABLE IF NOT EXISTS decision_events (
	event_id         TEXT PRIMARY KEY,
	request_id       TEXT NOT NULL,
	timestamp_ms     INTEGER NOT NULL,
	policy_id        TEXT NOT NULL,
	policy_version   TEXT NOT NULL,
	agent_id         TEXT NOT NULL,
	operation        TEXT NOT NULL,
	verdict          TEXT NOT NULL,
	reason           TEXT NOT NULL,
	matched_rules    TEXT NOT NULL,
	fallback_applied INTEGER NOT NULL,
	latency_us       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_policy ON decision_events(policy_id, timestamp_ms);
CREATE INDEX IF NOT EXISTS idx_events_agent ON decision_events(agent_id, timestamp_ms);
`

// SQLiteConfig contains configuration for the SQLite audit store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// Query selects decision events. Zero-valued fields do not filter.
type Query struct {
	PolicyID string
	AgentID  string
	Verdict  ast.Verdict

	// Since and Until bound the event timestamp (inclusive lower,
	// exclusive upper).
	Since time.Time
	Until time.Time

	// Limit caps the result size. Default: 100.
	Limit int
}

// SQLiteStore persists decision events in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	closeOnce sync.Once
}

// NewSQLiteStore opens (creating if needed) the audit database at the
// configured path.
func NewSQLiteStore(cfg SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", cfg.BusyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.With("component", "decision.audit"),
	}
	s.logger.Info("audit store initialized", "path", cfg.Path)
	return s, nil
}

// Record writes one event.
func (s *SQLiteStore) Record(ctx context.Context, event *decision.Event) error {
	rules, err := json.Marshal(event.MatchedRuleIDs)
	if err != nil {
		return fmt.Errorf("failed to encode matched rules: %w", err)
	}

	fallback := 0
	if event.FallbackApplied {
		fallback = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decision_events (
			event_id, request_id, timestamp_ms, policy_id, policy_version,
			agent_id, operation, verdict, reason, matched_rules,
			fallback_applied, latency_us
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.EventID,
		event.RequestID,
		event.Timestamp.UnixMilli(),
		event.PolicyID,
		event.PolicyVersion,
		event.AgentID,
		event.Operation,
		string(event.Verdict),
		string(event.Reason),
		string(rules),
		fallback,
		event.Latency.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// Events returns events matching q, newest first.
func (s *SQLiteStore) Events(ctx context.Context, q Query) ([]*decision.Event, error) {
	var (
		where []string
		args  []interface{}
	)
	if q.PolicyID != "" {
		where = append(where, "policy_id = ?")
		args = append(args, q.PolicyID)
	}
	if q.AgentID != "" {
		where = append(where, "agent_id = ?")
		args = append(args, q.AgentID)
	}
	if q.Verdict != "" {
		where = append(where, "verdict = ?")
		args = append(args, string(q.Verdict))
	}
	if !q.Since.IsZero() {
		where = append(where, "timestamp_ms >= ?")
		args = append(args, q.Since.UnixMilli())
	}
	if !q.Until.IsZero() {
		where = append(where, "timestamp_ms < ?")
		args = append(args, q.Until.UnixMilli())
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_id, request_id, timestamp_ms, policy_id, policy_version,
		agent_id, operation, verdict, reason, matched_rules, fallback_applied, latency_us
		FROM decision_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp_ms DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*decision.Event
	for rows.Next() {
		var (
			ev        decision.Event
			tsMillis  int64
			verdict   string
			reason    string
			rulesJSON string
			fallback  int
			latencyUs int64
		)
		if err := rows.Scan(
			&ev.EventID, &ev.RequestID, &tsMillis, &ev.PolicyID, &ev.PolicyVersion,
			&ev.AgentID, &ev.Operation, &verdict, &reason, &rulesJSON,
			&fallback, &latencyUs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Timestamp = time.UnixMilli(tsMillis).UTC()
		ev.Verdict = ast.Verdict(verdict)
		ev.Reason = decision.ReasonCode(reason)
		ev.FallbackApplied = fallback != 0
		ev.Latency = time.Duration(latencyUs) * time.Microsecond
		if err := json.Unmarshal([]byte(rulesJSON), &ev.MatchedRuleIDs); err != nil {
			return nil, fmt.Errorf("failed to decode matched rules: %w", err)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// Count returns the number of stored events.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM decision_events").Scan(&n)
	return n, err
}

// Prune deletes events older than the cutoff and returns how many were
// removed.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM decision_events WHERE timestamp_ms < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database. Safe to call more than once.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}
