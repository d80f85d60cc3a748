// Package chromem is an in-process vector memory store built on chromem-go.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/query"
)

const (
	collectionName = "memories"

	metaOwner      = "owner_id"
	metaTags       = "tags"
	metaCreatedAt  = "created_at"
	metaImportance = "importance"
)

// Memory is a document with a precomputed embedding.
type Memory struct {
	ID         string
	Content    string
	Embedding  []float32
	OwnerID    string
	Tags       []string
	CreatedAt  time.Time
	Importance float64
}

// Store serves cosine-similarity search over embedded memories.
type Store struct {
	db  *chromem.DB
	col *chromem.Collection
}

// New creates an empty store. Embeddings are always supplied by the caller.
func New() (*Store, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection(collectionName, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Store{db: db, col: col}, nil
}

var errNoEmbedding = errors.New("chromem store requires precomputed embeddings")

func noEmbedding(context.Context, string) ([]float32, error) { return nil, errNoEmbedding }

// Put adds or replaces memories.
func (s *Store) Put(ctx context.Context, mems ...Memory) error {
	for _, m := range mems {
		if m.ID == "" {
			return fmt.Errorf("memory ID is required")
		}
		if len(m.Embedding) == 0 {
			return fmt.Errorf("memory %s: %w", m.ID, errNoEmbedding)
		}
		doc := chromem.Document{
			ID:        m.ID,
			Content:   m.Content,
			Embedding: append([]float32(nil), m.Embedding...),
			Metadata:  encodeMetadata(m),
		}
		if err := s.col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add memory %s: %w", m.ID, err)
		}
	}
	return nil
}

// Delete removes memories by ID.
func (s *Store) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("delete memories: %w", err)
	}
	return nil
}

// Count returns the number of stored memories.
func (s *Store) Count() int { return s.col.Count() }

// SearchVector returns up to limit memories sorted by descending similarity in [0,1].
// Filters are applied after the exhaustive scan, so the limit holds after filtering.
func (s *Store) SearchVector(
	ctx context.Context, vec []float32, limit int, filters query.Filters,
) ([]candidate.Hit, error) {
	total := s.col.Count()
	if limit <= 0 || total == 0 || len(vec) == 0 {
		return nil, nil
	}

	n := min(limit, total)
	if !filters.IsEmpty() {
		n = total
	}

	results, err := s.col.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	hits := make([]candidate.Hit, 0, min(limit, len(results)))
	for _, r := range results {
		m := decodeMetadata(r.Metadata)
		if !filters.IsEmpty() && !filters.Match(m.OwnerID, m.Tags, m.CreatedAt) {
			continue
		}
		hits = append(hits, candidate.Hit{
			ID:         r.ID,
			Content:    r.Content,
			Score:      min(1, max(0, float64(r.Similarity))),
			CreatedAt:  m.CreatedAt,
			Importance: m.Importance,
		})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

func encodeMetadata(m Memory) map[string]string {
	meta := map[string]string{
		metaOwner:      m.OwnerID,
		metaTags:       strings.Join(m.Tags, ","),
		metaImportance: strconv.FormatFloat(m.Importance, 'f', -1, 64),
	}
	if !m.CreatedAt.IsZero() {
		meta[metaCreatedAt] = m.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return meta
}

func decodeMetadata(meta map[string]string) Memory {
	m := Memory{OwnerID: meta[metaOwner]}
	if tags := meta[metaTags]; tags != "" {
		m.Tags = strings.Split(tags, ",")
	}
	if v, err := strconv.ParseFloat(meta[metaImportance], 64); err == nil {
		m.Importance = v
	}
	if v, err := time.Parse(time.RFC3339Nano, meta[metaCreatedAt]); err == nil {
		m.CreatedAt = v
	}
	return m
}
