package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/recollect/internal/db"
	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/query"
)

// Hash fields of a stored memory.
const (
	FieldContent    = "content"
	FieldOwner      = "owner_id"
	FieldTags       = "tags"
	FieldCreatedAt  = "created_at" // unix milliseconds
	FieldImportance = "importance"
	FieldVector     = "vector"
)

var returnFields = []string{FieldContent, FieldCreatedAt, FieldImportance}

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Repo reads memories from an FT.SEARCH index. It serves both the vector and
// the full-text strategy.
type Repo struct {
	store  store
	index  string
	prefix string
}

// New creates a search repository over the index holding hashes under prefix.
func New(s store, index, prefix string) *Repo {
	return &Repo{store: s, index: index, prefix: prefix}
}

// IndexDefinition returns the memory index schema for vectors of dim dimensions.
func (r *Repo) IndexDefinition(dim int) (*db.IndexDefinition, error) {
	return db.NewIndex(r.index).
		Prefix(r.prefix).
		Text(FieldContent).
		Tag(FieldOwner, "").
		Tag(FieldTags, ",").
		Numeric(FieldCreatedAt).
		Numeric(FieldImportance).
		Vector(FieldVector, dim, db.DistanceCosine, 16, 200).
		Build()
}

// EnsureIndex creates the memory index unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context, dim int) error {
	exists, err := r.store.IndexExists(ctx, r.index)
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.index, err)
	}
	if exists {
		return nil
	}

	def, err := r.IndexDefinition(dim)
	if err != nil {
		return fmt.Errorf("index definition: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", r.index, err)
	}
	return nil
}

// SearchVector performs a KNN search with filter pre-filtering.
func (r *Repo) SearchVector(
	ctx context.Context, vec []float32, limit int, filters query.Filters,
) ([]candidate.Hit, error) {
	if limit <= 0 || len(vec) == 0 {
		return nil, nil
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.index,
		Filter:       toDBFilter(filters),
		Vector:       vec,
		K:            limit,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", r.index, err)
	}
	return r.toHits(sr), nil
}

// SearchText performs a BM25 search over memory content.
func (r *Repo) SearchText(
	ctx context.Context, text string, limit int, filters query.Filters,
) ([]candidate.Hit, error) {
	if limit <= 0 || strings.TrimSpace(text) == "" {
		return nil, nil
	}

	sr, err := r.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    r.index,
		Query:        text,
		Filter:       toDBFilter(filters),
		TopK:         limit,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search bm25 %s: %w", r.index, err)
	}
	return r.toHits(sr), nil
}

func (r *Repo) toHits(sr *db.SearchResult) []candidate.Hit {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	hits := make([]candidate.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		h := candidate.Hit{
			ID:      strings.TrimPrefix(e.Key, r.prefix),
			Content: e.Fields[FieldContent],
			Score:   e.Score,
		}
		if ms, err := strconv.ParseInt(e.Fields[FieldCreatedAt], 10, 64); err == nil {
			h.CreatedAt = time.UnixMilli(ms).UTC()
		}
		if imp, err := strconv.ParseFloat(e.Fields[FieldImportance], 64); err == nil {
			h.Importance = imp
		}
		hits = append(hits, h)
	}
	return hits
}

// toDBFilter translates query filters into FT pre-filters.
func toDBFilter(f query.Filters) db.Filter {
	var out db.Filter
	if len(f.OwnerIDs) > 0 {
		out.Tags = append(out.Tags, db.TagFilter{Field: FieldOwner, Values: f.OwnerIDs})
	}
	if len(f.Tags) > 0 {
		out.Tags = append(out.Tags, db.TagFilter{Field: FieldTags, Values: f.Tags})
	}
	if !f.Created.IsZero() {
		r := db.NumericRange{Field: FieldCreatedAt}
		if !f.Created.From.IsZero() {
			v := float64(f.Created.From.UnixMilli())
			r.Min = &v
		}
		if !f.Created.To.IsZero() {
			v := float64(f.Created.To.UnixMilli())
			r.Max = &v
		}
		out.Ranges = append(out.Ranges, r)
	}
	return out
}
