// Package memstore combines the in-process bleve and chromem backends into a
// single memory store serving vector, full-text and fuzzy strategies.
package memstore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recollect/internal/db/bleve"
	"github.com/kailas-cloud/recollect/internal/db/chromem"
	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/query"
)

const maxLineSize = 1 << 20

// Record is the seed format of a memory (one JSON object per line).
type Record struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	OwnerID    string    `json:"owner_id,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Importance float64   `json:"importance"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// Store holds memories in a bleve index and a chromem collection.
type Store struct {
	text     *bleve.Index
	vec      *chromem.Store
	embedder domain.Embedder
	logger   *zap.Logger
}

// New creates an empty store. embedder fills missing embeddings on Put and may be nil,
// in which case records without embeddings are only indexed for text search.
func New(embedder domain.Embedder, logger *zap.Logger) (*Store, error) {
	text, err := bleve.NewIndex()
	if err != nil {
		return nil, fmt.Errorf("text index: %w", err)
	}
	vec, err := chromem.New()
	if err != nil {
		_ = text.Close()
		return nil, fmt.Errorf("vector store: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{text: text, vec: vec, embedder: embedder, logger: logger}, nil
}

// Put indexes records in both backends.
func (s *Store) Put(ctx context.Context, recs ...Record) error {
	textDocs := make([]bleve.Memory, 0, len(recs))
	vecDocs := make([]chromem.Memory, 0, len(recs))

	for _, r := range recs {
		if r.ID == "" {
			return fmt.Errorf("memory ID is required")
		}
		textDocs = append(textDocs, bleve.Memory{
			ID:         r.ID,
			Content:    r.Content,
			OwnerID:    r.OwnerID,
			Tags:       r.Tags,
			CreatedAt:  r.CreatedAt,
			Importance: r.Importance,
		})

		emb := r.Embedding
		if len(emb) == 0 && s.embedder != nil {
			res, err := s.embedder.Embed(ctx, r.Content)
			if err != nil {
				return fmt.Errorf("embed memory %s: %w", r.ID, err)
			}
			emb = res.Embedding
		}
		if len(emb) == 0 {
			continue
		}
		vecDocs = append(vecDocs, chromem.Memory{
			ID:         r.ID,
			Content:    r.Content,
			Embedding:  emb,
			OwnerID:    r.OwnerID,
			Tags:       r.Tags,
			CreatedAt:  r.CreatedAt,
			Importance: r.Importance,
		})
	}

	if err := s.text.Put(ctx, textDocs...); err != nil {
		return fmt.Errorf("put text: %w", err)
	}
	if err := s.vec.Put(ctx, vecDocs...); err != nil {
		return fmt.Errorf("put vectors: %w", err)
	}
	return nil
}

// Load reads JSON-lines records from r and indexes them in batches. Blank lines are skipped.
func (s *Store) Load(ctx context.Context, r io.Reader, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		batch  []Record
		loaded int
		line   int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.Put(ctx, batch...); err != nil {
			return err
		}
		loaded += len(batch)
		batch = batch[:0]
		return nil
	}

	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return loaded, fmt.Errorf("line %d: %w", line, err)
		}
		batch = append(batch, rec)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return loaded, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return loaded, fmt.Errorf("read seed: %w", err)
	}
	if err := flush(); err != nil {
		return loaded, err
	}

	s.logger.Info("Memories loaded",
		zap.Int("count", loaded),
		zap.Int("vectors", s.vec.Count()),
	)
	return loaded, nil
}

// Count returns the number of memories in the text index (every memory is indexed there).
func (s *Store) Count() int { return s.text.Count() }

// SearchVector implements strategy.VectorBackend.
func (s *Store) SearchVector(
	ctx context.Context, vec []float32, limit int, filters query.Filters,
) ([]candidate.Hit, error) {
	return s.vec.SearchVector(ctx, vec, limit, filters)
}

// SearchText implements strategy.TextBackend.
func (s *Store) SearchText(ctx context.Context, text string, limit int, filters query.Filters) ([]candidate.Hit, error) {
	return s.text.SearchText(ctx, text, limit, filters)
}

// SearchFuzzy implements strategy.FuzzyBackend.
func (s *Store) SearchFuzzy(
	ctx context.Context, text string, limit, fuzziness int, filters query.Filters,
) ([]candidate.Hit, error) {
	return s.text.SearchFuzzy(ctx, text, limit, fuzziness, filters)
}

// Ping reports whether the store is usable. In-process backends are always reachable.
func (s *Store) Ping(context.Context) error { return nil }

// Close releases the text index.
func (s *Store) Close() error {
	return s.text.Close()
}
