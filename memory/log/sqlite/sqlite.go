// Package sqlite provides the durable MessageLog backed by an
// embedded SQLite database. The log is append-only: rows are never
// updated, only inserted and (on an explicit clear) deleted.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sentientlabs/companion-sdk/core"
)

// Log stores conversation turns with a (thread_id, created_at)
// index for recency queries.
type Log struct {
	db   *sql.DB
	path string
}

// Open creates or opens the message log database at path.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open log database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id         TEXT PRIMARY KEY,
		thread_id  TEXT NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_thread_created
		ON messages(thread_id, created_at);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize log schema: %w", err)
	}

	return &Log{db: db, path: path}, nil
}

// Append inserts one turn. Inserts are independent, so concurrent
// appends for the same thread keep the log chronologically
// consistent without locking.
func (l *Log) Append(ctx context.Context, threadID string, turn core.Turn) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO messages (id, thread_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		turn.ID, threadID, string(turn.Role), turn.Content, turn.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return &core.StorageError{Op: "log append", Err: err}
	}
	return nil
}

// Query returns the `limit` most recent turns after skipping the
// `offset` newest, in chronological order (oldest first).
func (l *Log) Query(ctx context.Context, threadID string, limit, offset int) ([]core.Turn, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, role, content, created_at
		FROM messages
		WHERE thread_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		threadID, limit, offset)
	if err != nil {
		return nil, &core.StorageError{Op: "log query", Err: err}
	}
	defer rows.Close()

	var newestFirst []core.Turn
	for rows.Next() {
		var turn core.Turn
		var role, createdAt string
		if err := rows.Scan(&turn.ID, &role, &turn.Content, &createdAt); err != nil {
			return nil, &core.StorageError{Op: "log scan", Err: err}
		}
		turn.Role = core.Role(role)
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, &core.StorageError{Op: "log timestamp decode", Err: err}
		}
		turn.CreatedAt = ts
		newestFirst = append(newestFirst, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: "log query", Err: err}
	}

	// Reverse into chronological order.
	turns := make([]core.Turn, len(newestFirst))
	for i, turn := range newestFirst {
		turns[len(newestFirst)-1-i] = turn
	}
	return turns, nil
}

// Count returns the total turn count for a thread.
func (l *Log) Count(ctx context.Context, threadID string) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE thread_id = ?", threadID,
	).Scan(&n)
	if err != nil {
		return 0, &core.StorageError{Op: "log count", Err: err}
	}
	return n, nil
}

// CountByRole returns the number of turns with the given role.
func (l *Log) CountByRole(ctx context.Context, threadID string, role core.Role) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE thread_id = ? AND role = ?",
		threadID, string(role),
	).Scan(&n)
	if err != nil {
		return 0, &core.StorageError{Op: "log count by role", Err: err}
	}
	return n, nil
}

// DeleteAll removes every turn for a thread. Deleting an empty
// thread is a no-op.
func (l *Log) DeleteAll(ctx context.Context, threadID string) error {
	_, err := l.db.ExecContext(ctx,
		"DELETE FROM messages WHERE thread_id = ?", threadID)
	if err != nil {
		return &core.StorageError{Op: "log delete", Err: err}
	}
	return nil
}

// Close releases the database handle.
func (l *Log) Close() error {
	return l.db.Close()
}
