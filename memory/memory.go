package memory

import (
	"context"

	"github.com/sentientlabs/companion-sdk/core"
)

// CheckpointStore is the durable key/value store for conversation
// working state, keyed by thread ID.
//
// Each thread ID is logically independent; the store never locks
// across keys. Concurrent Puts to the same thread race and the store
// applies last-writer-wins. Callers needing stronger ordering must
// serialize externally.
//
// Implementations: mem.Store (in-process), sqlite.Store (durable).
type CheckpointStore interface {
	// Get returns the current checkpoint for a thread. A missing
	// checkpoint is not an error: Get returns (nil, false, nil).
	Get(ctx context.Context, threadID string) (*Checkpoint, bool, error)

	// Put overwrites the checkpoint for a thread. It must be durable
	// before returning; backend unavailability surfaces as a
	// *core.StorageError.
	Put(ctx context.Context, threadID string, cp *Checkpoint) error

	// Delete removes the checkpoint for a thread. Deleting an absent
	// key is not an error.
	Delete(ctx context.Context, threadID string) error
}

// SemanticIndex is the similarity index over message text.
//
// Results are always scoped to one thread; clearing a thread removes
// every entry inserted under it so cleared content can never leak
// back through search.
//
// Implementations: chromem.Index (embedded vector database).
type SemanticIndex interface {
	// Insert embeds text and adds it to the thread's partition.
	// A failed insert (embedding provider down, backend error) leaves
	// prior entries untouched.
	Insert(ctx context.Context, threadID, text string) error

	// Query returns up to k entries most similar to text, most
	// similar first. An index with fewer than k eligible entries
	// returns what it has; an empty index returns an empty result,
	// never an error.
	Query(ctx context.Context, threadID, text string, k int) ([]string, error)

	// Clear removes all entries scoped to the thread.
	Clear(ctx context.Context, threadID string) error
}

// MessageLog is the durable, append-only record of conversation
// turns. It is the source of truth for history and statistics; the
// checkpoint is only a working-state snapshot derived from it.
//
// Implementations: sqlite.Log.
type MessageLog interface {
	// Append writes one turn. Appends are independent inserts, never
	// read-modify-write, so the log stays chronologically consistent
	// under concurrent writers.
	Append(ctx context.Context, threadID string, turn core.Turn) error

	// Query returns the `limit` most recent turns after skipping the
	// `offset` newest, in chronological order (oldest first).
	Query(ctx context.Context, threadID string, limit, offset int) ([]core.Turn, error)

	// Count returns the total number of turns for a thread.
	Count(ctx context.Context, threadID string) (int, error)

	// CountByRole returns the number of turns with the given role.
	CountByRole(ctx context.Context, threadID string, role core.Role) (int, error)

	// DeleteAll removes every turn for a thread.
	DeleteAll(ctx context.Context, threadID string) error
}

// Embedder converts text to vector embeddings. It is an
// implementation detail of the SemanticIndex; the response pipeline
// never sees it.
//
// Implementations: mock.Embedder (testing), onnx.Embedder (local,
// all-MiniLM-L6-v2).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
