// Package bleve is an in-process full-text and fuzzy memory index built on bleve.
package bleve

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/query"
)

// Field names in the index mapping.
const (
	fieldContent    = "content"
	fieldOwner      = "owner_id"
	fieldTags       = "tags"
	fieldCreatedAt  = "created_at"
	fieldImportance = "importance"
)

// MaxFuzziness is the largest edit distance bleve accepts.
const MaxFuzziness = 2

// Memory is a document stored in the index.
type Memory struct {
	ID         string
	Content    string
	OwnerID    string
	Tags       []string
	CreatedAt  time.Time
	Importance float64
}

// Index serves full-text (match) and fuzzy queries over memories held in memory.
type Index struct {
	index bleve.Index

	mu   sync.RWMutex
	docs map[string]Memory
}

// NewIndex creates an empty in-memory index.
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &Index{index: idx, docs: make(map[string]Memory)}, nil
}

func buildMapping() mapping.IndexMapping {
	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	content.IncludeTermVectors = true

	keyword := bleve.NewKeywordFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false
	doc.AddFieldMappingsAt(fieldContent, content)
	doc.AddFieldMappingsAt(fieldOwner, keyword)
	doc.AddFieldMappingsAt(fieldTags, keyword)
	doc.AddFieldMappingsAt(fieldCreatedAt, bleve.NewDateTimeFieldMapping())
	doc.AddFieldMappingsAt(fieldImportance, bleve.NewNumericFieldMapping())

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

// Put indexes or replaces memories in a single batch.
func (i *Index) Put(ctx context.Context, mems ...Memory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(mems) == 0 {
		return nil
	}

	batch := i.index.NewBatch()
	for _, m := range mems {
		if m.ID == "" {
			return fmt.Errorf("memory ID is required")
		}
		doc := map[string]any{
			fieldContent:    m.Content,
			fieldOwner:      m.OwnerID,
			fieldTags:       m.Tags,
			fieldImportance: m.Importance,
		}
		if !m.CreatedAt.IsZero() {
			doc[fieldCreatedAt] = m.CreatedAt
		}
		if err := batch.Index(m.ID, doc); err != nil {
			return fmt.Errorf("index memory %s: %w", m.ID, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("apply batch: %w", err)
	}

	i.mu.Lock()
	for _, m := range mems {
		i.docs[m.ID] = m
	}
	i.mu.Unlock()
	return nil
}

// Delete removes a memory. Unknown IDs are ignored.
func (i *Index) Delete(id string) error {
	if err := i.index.Delete(id); err != nil {
		return fmt.Errorf("delete memory %s: %w", id, err)
	}
	i.mu.Lock()
	delete(i.docs, id)
	i.mu.Unlock()
	return nil
}

// Count returns the number of indexed memories.
func (i *Index) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs)
}

// Close releases the index.
func (i *Index) Close() error {
	return i.index.Close()
}

// SearchText runs a match query (terms OR-ed, BM25-style scoring) over content.
func (i *Index) SearchText(ctx context.Context, text string, limit int, filters query.Filters) ([]candidate.Hit, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	mq := bleve.NewMatchQuery(text)
	mq.SetField(fieldContent)
	mq.SetOperator(bleveQuery.MatchQueryOperatorOr)
	return i.search(ctx, mq, limit, filters)
}

// SearchFuzzy ORs one fuzzy term query per query word, tolerating up to
// fuzziness edits (clamped to [1, MaxFuzziness]).
func (i *Index) SearchFuzzy(
	ctx context.Context, text string, limit, fuzziness int, filters query.Filters,
) ([]candidate.Hit, error) {
	terms := fuzzyTerms(text)
	if len(terms) == 0 {
		return nil, nil
	}
	fuzziness = max(1, min(fuzziness, MaxFuzziness))

	clauses := make([]bleveQuery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetField(fieldContent)
		fq.SetFuzziness(fuzziness)
		clauses = append(clauses, fq)
	}
	return i.search(ctx, bleve.NewDisjunctionQuery(clauses...), limit, filters)
}

func (i *Index) search(
	ctx context.Context, q bleveQuery.Query, limit int, filters query.Filters,
) ([]candidate.Hit, error) {
	if limit <= 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(withFilters(q, filters), limit, 0, false)
	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	hits := make([]candidate.Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		m, ok := i.docs[h.ID]
		if !ok {
			continue
		}
		hits = append(hits, candidate.Hit{
			ID:         m.ID,
			Content:    m.Content,
			Score:      h.Score,
			CreatedAt:  m.CreatedAt,
			Importance: m.Importance,
		})
	}
	return hits, nil
}

// withFilters ANDs the text query with owner, tag and creation-time restrictions.
func withFilters(q bleveQuery.Query, f query.Filters) bleveQuery.Query {
	if f.IsEmpty() {
		return q
	}

	must := []bleveQuery.Query{q}
	if len(f.OwnerIDs) > 0 {
		must = append(must, anyTerm(fieldOwner, f.OwnerIDs))
	}
	if len(f.Tags) > 0 {
		must = append(must, anyTerm(fieldTags, f.Tags))
	}
	if !f.Created.IsZero() {
		inclusive := true
		dq := bleve.NewDateRangeInclusiveQuery(f.Created.From, f.Created.To, &inclusive, &inclusive)
		dq.SetField(fieldCreatedAt)
		must = append(must, dq)
	}
	return bleve.NewConjunctionQuery(must...)
}

func anyTerm(field string, values []string) bleveQuery.Query {
	terms := make([]bleveQuery.Query, 0, len(values))
	for _, v := range values {
		tq := bleve.NewTermQuery(v)
		tq.SetField(field)
		terms = append(terms, tq)
	}
	return bleve.NewDisjunctionQuery(terms...)
}

// fuzzyTerms lower-cases and strips punctuation; fuzzy queries bypass the analyzer.
func fuzzyTerms(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}
