package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements Store using SQLite for persistence. Suitable for
// single-instance deployments where bucket state must survive restarts.
//
// The version check and write happen in one guarded UPDATE, so the CAS is
// atomic at the statement level; no explicit transaction is needed.
type SQLiteStore struct {
	db        *sql.DB
	dbPath    string
	closeOnce sync.Once

	// preparedStatements contains pre-compiled SQL statements
	loadStmt    *sql.Stmt
	insertStmt  *sql.Stmt
	updateStmt  *sql.Stmt
	deleteStmt  *sql.Stmt
	cleanupStmt *sql.Stmt
}

// SQLiteStoreConfig configures the SQLite store.
type SQLiteStoreConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore creates a SQLite store with default settings.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteStoreConfig{DBPath: dbPath})
}

// NewSQLiteStoreWithConfig creates a SQLite store with custom
// configuration.
func NewSQLiteStoreWithConfig(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return s, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rate_limit_states (
		limit_id TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		tokens REAL NOT NULL,
		last_refill INTEGER NOT NULL,
		version INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (limit_id, subject_id)
	);

	CREATE INDEX IF NOT EXISTS idx_rate_limit_updated ON rate_limit_states(updated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.loadStmt, err = s.db.Prepare(`
		SELECT tokens, last_refill, version, updated_at, created_at
		FROM rate_limit_states
		WHERE limit_id = ? AND subject_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare load: %w", err)
	}

	s.insertStmt, err = s.db.Prepare(`
		INSERT INTO rate_limit_states (limit_id, subject_id, tokens, last_refill, version, updated_at, created_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (limit_id, subject_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}

	s.updateStmt, err = s.db.Prepare(`
		UPDATE rate_limit_states
		SET tokens = ?, last_refill = ?, version = version + 1, updated_at = ?
		WHERE limit_id = ? AND subject_id = ? AND version = ?`)
	if err != nil {
		return fmt.Errorf("prepare update: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`
		DELETE FROM rate_limit_states WHERE limit_id = ? AND subject_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}

	s.cleanupStmt, err = s.db.Prepare(`
		DELETE FROM rate_limit_states WHERE updated_at < ?`)
	if err != nil {
		return fmt.Errorf("prepare cleanup: %w", err)
	}

	return nil
}

// Load retrieves the state for a bucket.
func (s *SQLiteStore) Load(ctx context.Context, limitID, subjectID string) (*RateLimitState, error) {
	state := &RateLimitState{LimitID: limitID, SubjectID: subjectID}
	var lastRefill, updatedAt, createdAt int64

	err := s.loadStmt.QueryRowContext(ctx, limitID, subjectID).Scan(
		&state.Tokens, &lastRefill, &state.Version, &updatedAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	state.LastRefillAt = time.UnixMilli(lastRefill).UTC()
	state.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	state.CreatedAt = time.UnixMilli(createdAt).UTC()
	return state, nil
}

// CompareAndSwap persists state if the stored version matches.
func (s *SQLiteStore) CompareAndSwap(ctx context.Context, state *RateLimitState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if state.LimitID == "" || state.SubjectID == "" {
		return fmt.Errorf("limit id and subject id cannot be empty")
	}

	now := time.Now().UTC()
	if state.Version == 0 {
		result, err := s.insertStmt.ExecContext(ctx,
			state.LimitID, state.SubjectID, state.Tokens,
			state.LastRefillAt.UnixMilli(), now.UnixMilli(), now.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to insert state: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read insert result: %w", err)
		}
		if affected == 0 {
			return &ConflictError{LimitID: state.LimitID, SubjectID: state.SubjectID, Expected: 0}
		}
		state.Version = 1
		state.CreatedAt = now
		state.UpdatedAt = now
		return nil
	}

	result, err := s.updateStmt.ExecContext(ctx,
		state.Tokens, state.LastRefillAt.UnixMilli(), now.UnixMilli(),
		state.LimitID, state.SubjectID, state.Version)
	if err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return &ConflictError{LimitID: state.LimitID, SubjectID: state.SubjectID, Expected: state.Version}
	}
	state.Version++
	state.UpdatedAt = now
	return nil
}

// Delete removes a bucket.
func (s *SQLiteStore) Delete(ctx context.Context, limitID, subjectID string) error {
	if _, err := s.deleteStmt.ExecContext(ctx, limitID, subjectID); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}

// Cleanup removes buckets not updated since olderThan.
func (s *SQLiteStore) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := s.cleanupStmt.ExecContext(ctx, olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup states: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read cleanup result: %w", err)
	}
	return int(affected), nil
}

// Close closes the database and prepared statements.
func (s *SQLiteStore) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.loadStmt, s.insertStmt, s.updateStmt, s.deleteStmt, s.cleanupStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		closeErr = s.db.Close()
	})
	return closeErr
}
