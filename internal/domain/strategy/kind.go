package strategy

// Kind identifies a retrieval signal.
type Kind string

// Supported retrieval signals.
const (
	Vector   Kind = "vector"
	FullText Kind = "fulltext"
	Fuzzy    Kind = "fuzzy"
)

// All lists every supported kind in fusion order.
var All = []Kind{Vector, FullText, Fuzzy}

// IsValid reports whether k is a supported kind.
func (k Kind) IsValid() bool {
	switch k {
	case Vector, FullText, Fuzzy:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (k Kind) String() string { return string(k) }
