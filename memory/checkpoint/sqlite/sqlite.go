// Package sqlite provides a durable CheckpointStore backed by an
// embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/sentientlabs/companion-sdk/core"
	"github.com/sentientlabs/companion-sdk/memory"
)

// Store persists one checkpoint row per thread. Upserts make Put
// last-writer-wins; Delete is idempotent.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the checkpoint database at path, enabling
// WAL mode for concurrent readers.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		thread_id  TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize checkpoint schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Get returns the checkpoint for a thread, or (nil, false, nil) when
// none exists.
func (s *Store) Get(ctx context.Context, threadID string) (*memory.Checkpoint, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM checkpoints WHERE thread_id = ?", threadID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &core.StorageError{Op: "checkpoint get", Err: err}
	}

	var cp memory.Checkpoint
	if err := json.Unmarshal([]byte(payload), &cp); err != nil {
		return nil, false, &core.StorageError{Op: "checkpoint decode", Err: err}
	}
	return &cp, true, nil
}

// Put durably overwrites the checkpoint for a thread.
func (s *Store) Put(ctx context.Context, threadID string, cp *memory.Checkpoint) error {
	payload, err := json.Marshal(cp)
	if err != nil {
		return &core.StorageError{Op: "checkpoint encode", Err: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		threadID, string(payload), cp.UpdatedAt)
	if err != nil {
		return &core.StorageError{Op: "checkpoint put", Err: err}
	}
	return nil
}

// Delete removes the checkpoint for a thread. Absent keys are a
// no-op.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM checkpoints WHERE thread_id = ?", threadID)
	if err != nil {
		return &core.StorageError{Op: "checkpoint delete", Err: err}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
