package query

import (
	"regexp"
	"strings"
	"unicode"
)

// LengthBucket is a coarse query length class.
type LengthBucket string

// Length buckets by word count.
const (
	Short  LengthBucket = "short"  // ≤3 words
	Medium LengthBucket = "medium" // ≤8 words
	Long   LengthBucket = "long"
)

var (
	identifierRe = regexp.MustCompile(`^(?:[A-Za-z0-9]+(?:[_.:/][A-Za-z0-9]+)+|[a-z]+[A-Z][A-Za-z0-9]*)$`)
	dateRe       = regexp.MustCompile(`^\d{4}-\d{2}(-\d{2})?$`)

	temporalWords = set(
		"today", "yesterday", "tomorrow", "tonight", "now", "recent", "recently", "latest",
		"last", "ago", "earlier", "before", "after", "since", "when", "during",
		"morning", "evening", "week", "weeks", "month", "months", "year", "years",
		"day", "days", "hour", "hours", "monday", "tuesday", "wednesday", "thursday",
		"friday", "saturday", "sunday",
	)
	questionWords = set(
		"what", "who", "whom", "whose", "where", "when", "why", "how", "which",
		"is", "are", "was", "were", "do", "does", "did", "can", "could", "should", "would", "will",
	)
	connectiveWords = set(
		"and", "or", "but", "because", "although", "while", "whereas", "unless", "versus", "vs",
		"how", "why", "compare", "between",
	)
)

// Features is a read-only projection of a query used for routing and learning.
type Features struct {
	HasExactTerms bool    `json:"has_exact_terms"`
	Complexity    float64 `json:"complexity"`
	HasTemporal   bool    `json:"has_temporal"`
	EntityCount   int     `json:"entity_count"`
	Length        int     `json:"length"`
	IsQuestion    bool    `json:"is_question"`
}

// LengthBucket classifies Length.
func (f Features) LengthBucket() LengthBucket {
	switch {
	case f.Length <= 3:
		return Short
	case f.Length <= 8:
		return Medium
	default:
		return Long
	}
}

// BucketKey groups features into a learning pattern: length bucket × temporal × question.
func (f Features) BucketKey() string {
	temporal := "atemporal"
	if f.HasTemporal {
		temporal = "temporal"
	}
	kind := "statement"
	if f.IsQuestion {
		kind = "question"
	}
	return string(f.LengthBucket()) + "|" + temporal + "|" + kind
}

// ExtractFeatures derives Features from query text.
func ExtractFeatures(text string) Features {
	text = strings.TrimSpace(text)
	words := strings.Fields(text)
	if len(words) == 0 {
		return Features{}
	}

	f := Features{
		Length:        len(words),
		HasExactTerms: strings.Count(text, `"`) >= 2,
		IsQuestion:    strings.HasSuffix(text, "?"),
	}

	connectives := 0
	letters := 0
	sentenceStart := true
	for i, raw := range words {
		w := strings.TrimFunc(raw, func(r rune) bool {
			return unicode.IsPunct(r) && r != '_' && r != '/'
		})
		lower := strings.ToLower(w)

		if i == 0 && questionWords[lower] {
			f.IsQuestion = true
		}
		if temporalWords[lower] || dateRe.MatchString(w) {
			f.HasTemporal = true
		}
		if connectiveWords[lower] {
			connectives++
		}
		if identifierRe.MatchString(w) {
			f.HasExactTerms = true
		}
		if isNumber(w) || (!sentenceStart && startsUpper(w)) {
			f.EntityCount++
		}

		letters += len([]rune(w))
		sentenceStart = strings.ContainsAny(raw[len(raw)-1:], ".!?")
	}

	lengthScore := min(float64(len(words))/15, 1)
	connectiveScore := min(float64(connectives)/2, 1)
	wordLenScore := min(float64(letters)/float64(len(words))/10, 1)
	f.Complexity = clamp01(0.5*lengthScore + 0.3*connectiveScore + 0.2*wordLenScore)

	return f
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func startsUpper(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}

func isNumber(w string) bool {
	if w == "" {
		return false
	}
	digits := 0
	for _, r := range w {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '.' || r == ',' || r == '-':
		default:
			return false
		}
	}
	return digits > 0
}

func clamp01(v float64) float64 {
	return max(0, min(v, 1))
}
