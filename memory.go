package recollect

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recollect/internal/repository/memstore"
)

const loadBatchSize = 64

// Memory is one stored memory. Embedding may be empty when the store has an
// Embedder; it is then computed on Put.
type Memory struct {
	ID         string
	Content    string
	OwnerID    string
	Tags       []string
	CreatedAt  time.Time
	Importance float64
	Embedding  []float32
}

// MemoryStore is an in-process store serving every strategy from a full-text
// index and a vector collection. Pass it to WithMemoryStore.
type MemoryStore struct {
	store       *memstore.Store
	hasEmbedder bool
}

// NewMemoryStore creates an empty store. embedder may be nil, in which case
// memories without embeddings are only searchable by text.
func NewMemoryStore(embedder Embedder, logger *zap.Logger) (*MemoryStore, error) {
	s, err := memstore.New(toDomainEmbedder(embedder), logger)
	if err != nil {
		return nil, fmt.Errorf("memory store: %w", err)
	}
	return &MemoryStore{store: s, hasEmbedder: embedder != nil}, nil
}

// Put indexes memories. An empty ID is an error.
func (m *MemoryStore) Put(ctx context.Context, mems ...Memory) error {
	recs := make([]memstore.Record, len(mems))
	for i, mem := range mems {
		recs[i] = memstore.Record(mem)
	}
	return m.store.Put(ctx, recs...)
}

// Load reads JSON-lines memories from r and returns how many were indexed.
func (m *MemoryStore) Load(ctx context.Context, r io.Reader) (int, error) {
	return m.store.Load(ctx, r, loadBatchSize)
}

// Count returns the number of stored memories.
func (m *MemoryStore) Count() int { return m.store.Count() }

// Close releases the indexes.
func (m *MemoryStore) Close() error { return m.store.Close() }
