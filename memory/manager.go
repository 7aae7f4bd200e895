package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sentientlabs/companion-sdk/core"
)

// Config holds Manager tuning knobs.
type Config struct {
	// WindowSize is the number of recent turns kept in the
	// checkpoint snapshot. Default: 10.
	WindowSize int

	// MaxSearchResults caps the k accepted by Search. Default: 20.
	MaxSearchResults int
}

// DefaultConfig returns the defaults used when no config is given.
var DefaultConfig = &Config{
	WindowSize:       10,
	MaxSearchResults: 20,
}

// Manager owns all reads and writes of one conversation's memory.
// It composes the checkpoint store, semantic index, and durable
// message log behind a single per-key surface; nothing else in the
// SDK touches those backends directly.
//
// A Manager is cheap to construct and is scoped to exactly one
// ConversationKey. Construct one per request; the backends behind it
// are the shared, durable state.
type Manager struct {
	key         ConversationKey
	checkpoints CheckpointStore
	index       SemanticIndex
	journal     MessageLog
	config      *Config
}

// NewManager wires a Manager for one conversation. All three
// backends are required; config may be nil for defaults.
func NewManager(key ConversationKey, checkpoints CheckpointStore, index SemanticIndex, journal MessageLog, config *Config) *Manager {
	if config == nil {
		config = DefaultConfig
	}
	return &Manager{
		key:         key,
		checkpoints: checkpoints,
		index:       index,
		journal:     journal,
		config:      config,
	}
}

// Key returns the conversation key this manager is scoped to.
func (m *Manager) Key() ConversationKey { return m.key }

// Append validates and records one turn: durable log first, then a
// best-effort semantic index insert, then a refreshed checkpoint
// window. Index and checkpoint failures are logged, not fatal; a
// conversation turn must not fail because recall bookkeeping did.
func (m *Manager) Append(ctx context.Context, role core.Role, content string) (core.Turn, error) {
	if err := core.ValidateRole(role); err != nil {
		return core.Turn{}, err
	}
	if err := core.ValidateContent(content); err != nil {
		return core.Turn{}, err
	}

	turn := core.Turn{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	threadID := m.key.ThreadID()
	if err := m.journal.Append(ctx, threadID, turn); err != nil {
		return core.Turn{}, &core.StorageError{Op: "append turn", Err: err}
	}

	if err := m.index.Insert(ctx, threadID, content); err != nil {
		log.Printf("[MEMORY] Index insert failed for %s: %v", threadID, err)
	}

	if err := m.refreshCheckpoint(ctx); err != nil {
		log.Printf("[MEMORY] Checkpoint refresh failed for %s: %v", threadID, err)
	}

	return turn, nil
}

// refreshCheckpoint rebuilds the recent-turn window from the log and
// overwrites the thread's checkpoint. Last-writer-wins: concurrent
// refreshes for the same thread may interleave, but each snapshot is
// internally consistent because it is read from the log.
func (m *Manager) refreshCheckpoint(ctx context.Context) error {
	threadID := m.key.ThreadID()
	window, err := m.journal.Query(ctx, threadID, m.config.WindowSize, 0)
	if err != nil {
		return fmt.Errorf("read window: %w", err)
	}
	cp := &Checkpoint{
		ThreadID:  threadID,
		Window:    window,
		UpdatedAt: time.Now().UTC(),
	}
	if err := m.checkpoints.Put(ctx, threadID, cp); err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}

// RecentHistory returns at most limit of the most recent turns,
// oldest first. The durable log is the source of truth; the
// checkpoint window is only consulted when the log is unreachable.
func (m *Manager) RecentHistory(ctx context.Context, limit int) ([]core.Turn, error) {
	if limit <= 0 {
		limit = m.config.WindowSize
	}
	threadID := m.key.ThreadID()

	turns, err := m.journal.Query(ctx, threadID, limit, 0)
	if err == nil {
		return turns, nil
	}
	log.Printf("[MEMORY] Log query failed for %s, falling back to checkpoint: %v", threadID, err)

	cp, ok, cpErr := m.checkpoints.Get(ctx, threadID)
	if cpErr != nil || !ok {
		return nil, &core.StorageError{Op: "recent history", Err: err}
	}
	window := cp.Window
	if len(window) > limit {
		window = window[len(window)-limit:]
	}
	return window, nil
}

// History returns a page of turns (chronological within the page)
// plus the total turn count, for paging through a conversation.
func (m *Manager) History(ctx context.Context, limit, offset int) ([]core.Turn, int, error) {
	if limit <= 0 {
		limit = m.config.WindowSize
	}
	if offset < 0 {
		offset = 0
	}
	threadID := m.key.ThreadID()

	turns, err := m.journal.Query(ctx, threadID, limit, offset)
	if err != nil {
		return nil, 0, &core.StorageError{Op: "query history", Err: err}
	}
	total, err := m.journal.Count(ctx, threadID)
	if err != nil {
		return nil, 0, &core.StorageError{Op: "count history", Err: err}
	}
	return turns, total, nil
}

// Search returns up to k past texts semantically similar to query,
// most similar first. k is clamped to [1, MaxSearchResults]. The
// index initializes its thread partition lazily on first use, so
// searching a fresh conversation returns an empty result.
func (m *Manager) Search(ctx context.Context, query string, k int) ([]string, error) {
	if k < 1 {
		k = 1
	}
	if k > m.config.MaxSearchResults {
		k = m.config.MaxSearchResults
	}
	results, err := m.index.Query(ctx, m.key.ThreadID(), query, k)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	return results, nil
}

// ClearAll erases the conversation: checkpoint, index entries, and
// log rows. The checkpoint is deleted first and unconditionally:
// it is the pipeline's primary recall source, so it must be gone
// before the clear can be considered even partially successful.
// Remaining sub-step failures are joined and reported; the operation
// is idempotent, so callers can simply retry.
func (m *Manager) ClearAll(ctx context.Context) error {
	threadID := m.key.ThreadID()

	if err := m.checkpoints.Delete(ctx, threadID); err != nil {
		return &core.StorageError{Op: "delete checkpoint", Err: err}
	}

	var errs []error
	if err := m.index.Clear(ctx, threadID); err != nil {
		errs = append(errs, fmt.Errorf("clear index: %w", err))
	}
	if err := m.journal.DeleteAll(ctx, threadID); err != nil {
		errs = append(errs, fmt.Errorf("clear log: %w", err))
	}
	if len(errs) > 0 {
		return &core.StorageError{Op: "clear conversation", Err: errors.Join(errs...)}
	}

	log.Printf("[MEMORY] Cleared conversation %s", threadID)
	return nil
}

// Stats is a read-only aggregate over one conversation. Counts come
// from the durable log, not the possibly-stale checkpoint.
type Stats struct {
	ThreadID          string `json:"thread_id"`
	TotalMessages     int    `json:"total_messages"`
	UserMessages      int    `json:"user_messages"`
	AssistantMessages int    `json:"assistant_messages"`
	HasCheckpoint     bool   `json:"has_checkpoint"`
}

// Statistics reports message counts and checkpoint presence for the
// conversation. Backend failures propagate: there is no safe
// fallback value for an administrative read.
func (m *Manager) Statistics(ctx context.Context) (Stats, error) {
	threadID := m.key.ThreadID()

	total, err := m.journal.Count(ctx, threadID)
	if err != nil {
		return Stats{}, &core.StorageError{Op: "count messages", Err: err}
	}
	userCount, err := m.journal.CountByRole(ctx, threadID, core.RoleUser)
	if err != nil {
		return Stats{}, &core.StorageError{Op: "count user messages", Err: err}
	}
	assistantCount, err := m.journal.CountByRole(ctx, threadID, core.RoleAssistant)
	if err != nil {
		return Stats{}, &core.StorageError{Op: "count assistant messages", Err: err}
	}
	_, hasCheckpoint, err := m.checkpoints.Get(ctx, threadID)
	if err != nil {
		return Stats{}, &core.StorageError{Op: "read checkpoint", Err: err}
	}

	return Stats{
		ThreadID:          threadID,
		TotalMessages:     total,
		UserMessages:      userCount,
		AssistantMessages: assistantCount,
		HasCheckpoint:     hasCheckpoint,
	}, nil
}
