package db

// TagFilter matches documents whose tag field holds any of Values.
type TagFilter struct {
	Field  string
	Values []string
}

// NumericRange bounds a numeric field (inclusive). Nil bounds are open.
type NumericRange struct {
	Field string
	Min   *float64
	Max   *float64
}

// Filter is a conjunction of tag and numeric pre-filters.
type Filter struct {
	Tags   []TagFilter
	Ranges []NumericRange
}

// IsEmpty reports whether the filter has no conditions.
func (f Filter) IsEmpty() bool { return len(f.Tags) == 0 && len(f.Ranges) == 0 }

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filter       Filter
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for BM25 text search.
type TextQuery struct {
	IndexName    string
	Query        string
	Filter       Filter
	TopK         int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
