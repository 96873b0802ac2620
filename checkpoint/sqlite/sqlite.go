// Package sqlite provides a Store backed by a local SQLite database, giving
// checkpoints durability across process restarts without an external service.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/threadloop/threadloop/checkpoint"
	"github.com/threadloop/threadloop/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id  TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	state      BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Store persists checkpoints in a SQLite database. Versioning rides on a
// compare-and-swap UPDATE, so concurrent writers from separate processes
// are handled the same way as in-process ones.
type Store struct {
	db *sql.DB
}

var _ checkpoint.Store = (*Store)(nil)

// New opens (or creates) the database at path and bootstraps the schema.
// WAL mode keeps readers unblocked by the single writer.
func New(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Get returns the latest state and version for a thread.
func (s *Store) Get(ctx context.Context, threadID string) (core.ConversationState, int64, error) {
	var (
		version int64
		blob    []byte
	)

	row := s.db.QueryRowContext(ctx, `SELECT version, state FROM checkpoints WHERE thread_id = ?`, threadID)
	if err := row.Scan(&version, &blob); err != nil {
		if err == sql.ErrNoRows {
			return core.ConversationState{}, 0, fmt.Errorf("thread %q: %w", threadID, checkpoint.ErrNotFound)
		}
		return core.ConversationState{}, 0, fmt.Errorf("query checkpoint: %w", err)
	}

	var state core.ConversationState
	if err := json.Unmarshal(blob, &state); err != nil {
		return core.ConversationState{}, 0, fmt.Errorf("decode checkpoint for thread %q: %w", threadID, err)
	}

	return state, version, nil
}

// Put writes a new state. expectedVersion 0 creates the thread; any other
// value must match the stored version exactly.
func (s *Store) Put(ctx context.Context, threadID string, state core.ConversationState, expectedVersion int64) (int64, error) {
	blob, err := json.Marshal(state)
	if err != nil {
		return 0, fmt.Errorf("encode checkpoint for thread %q: %w", threadID, err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	next := expectedVersion + 1

	var res sql.Result
	if expectedVersion == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO checkpoints (thread_id, version, state, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(thread_id) DO NOTHING`,
			threadID, next, blob, now)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE checkpoints SET version = ?, state = ?, updated_at = ? WHERE thread_id = ? AND version = ?`,
			next, blob, now, threadID, expectedVersion)
	}
	if err != nil {
		return 0, fmt.Errorf("write checkpoint: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("write checkpoint: %w", err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("thread %q: expected version %d: %w", threadID, expectedVersion, checkpoint.ErrVersionConflict)
	}

	return next, nil
}

// Delete removes a thread's checkpoint. Deleting an unknown thread is a no-op.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}

	return nil
}

// Threads lists all thread identifiers with a stored checkpoint.
func (s *Store) Threads(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT thread_id FROM checkpoints ORDER BY thread_id`)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan thread id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
