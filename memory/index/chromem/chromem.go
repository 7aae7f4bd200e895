// Package chromem implements the SemanticIndex on chromem-go, a
// pure Go embedded vector database.
package chromem

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/sentientlabs/companion-sdk/core"
	"github.com/sentientlabs/companion-sdk/memory"
)

// Index partitions inserted text into one chromem collection per
// thread, so query results can never cross conversations. Embeddings
// are produced by the injected Embedder; chromem only stores and
// searches them.
type Index struct {
	db          *chromem.DB
	embedder    memory.Embedder
	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

// New creates an in-memory index. Contents are lost on restart; use
// NewPersistent when the index should survive one.
func New(embedder memory.Embedder) *Index {
	return &Index{
		db:          chromem.NewDB(),
		embedder:    embedder,
		collections: make(map[string]*chromem.Collection),
	}
}

// NewPersistent creates an index backed by an on-disk chromem
// database at path.
func NewPersistent(path string, embedder memory.Embedder) (*Index, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open persistent index: %w", err)
	}
	return &Index{
		db:          db,
		embedder:    embedder,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func collectionName(threadID string) string {
	return "thread_" + threadID
}

// getOrCreateCollection returns the thread's collection, creating it
// lazily on first use.
func (x *Index) getOrCreateCollection(threadID string) (*chromem.Collection, error) {
	x.mu.RLock()
	col, ok := x.collections[threadID]
	x.mu.RUnlock()
	if ok {
		return col, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if col, ok := x.collections[threadID]; ok {
		return col, nil
	}
	col, err := x.db.GetOrCreateCollection(collectionName(threadID), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	x.collections[threadID] = col
	return col, nil
}

// Insert embeds text and adds it to the thread's partition. An
// embedding failure surfaces as a *core.ProviderError and leaves the
// partition untouched.
func (x *Index) Insert(ctx context.Context, threadID, text string) error {
	embedding, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return &core.ProviderError{Op: "embed text", Err: err}
	}

	col, err := x.getOrCreateCollection(threadID)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        uuid.New().String(),
		Content:   text,
		Embedding: embedding,
		Metadata: map[string]string{
			"thread_id":  threadID,
			"created_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Query returns up to k texts most similar to the query text, most
// similar first. An empty or absent partition returns an empty
// result; k is capped at the partition size because chromem rejects
// nResults larger than the document count.
func (x *Index) Query(ctx context.Context, threadID, text string, k int) ([]string, error) {
	x.mu.RLock()
	col, ok := x.collections[threadID]
	x.mu.RUnlock()
	if !ok {
		// Check for a partition persisted by a previous process.
		if col = x.db.GetCollection(collectionName(threadID), nil); col == nil {
			return nil, nil
		}
		x.mu.Lock()
		x.collections[threadID] = col
		x.mu.Unlock()
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	embedding, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &core.ProviderError{Op: "embed query", Err: err}
	}

	results, err := col.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	texts := make([]string, 0, len(results))
	for _, result := range results {
		texts = append(texts, result.Content)
	}
	log.Printf("[CHROMEM] Query for %s returned %d of %d entries", threadID, len(texts), count)
	return texts, nil
}

// Clear drops the thread's partition entirely. Clearing an absent
// partition is a no-op.
func (x *Index) Clear(ctx context.Context, threadID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.db.DeleteCollection(collectionName(threadID)); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	delete(x.collections, threadID)
	return nil
}
