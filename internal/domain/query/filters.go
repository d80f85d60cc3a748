package query

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// TimeRange bounds creation time. A zero bound is open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether both bounds are open.
func (r TimeRange) IsZero() bool { return r.From.IsZero() && r.To.IsZero() }

// Contains reports whether t lies within the range (inclusive).
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Filters restrict the candidate set. Owner IDs and tags match if any value matches.
type Filters struct {
	OwnerIDs []string
	Tags     []string
	Created  TimeRange
}

// IsEmpty reports whether no restriction is set.
func (f Filters) IsEmpty() bool {
	return len(f.OwnerIDs) == 0 && len(f.Tags) == 0 && f.Created.IsZero()
}

// Match reports whether a memory with the given attributes passes the filters.
func (f Filters) Match(ownerID string, tags []string, created time.Time) bool {
	if len(f.OwnerIDs) > 0 && !slices.Contains(f.OwnerIDs, ownerID) {
		return false
	}
	if len(f.Tags) > 0 {
		found := false
		for _, t := range tags {
			if slices.Contains(f.Tags, t) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.Created.IsZero() && !created.IsZero() && !f.Created.Contains(created) {
		return false
	}
	return true
}

// Canonical renders the filters in an order-independent form for cache keys.
func (f Filters) Canonical() string {
	if f.IsEmpty() {
		return ""
	}
	var b strings.Builder
	b.WriteString("owners=")
	b.WriteString(strings.Join(sortedUnique(f.OwnerIDs), ","))
	b.WriteString(";tags=")
	b.WriteString(strings.Join(sortedUnique(f.Tags), ","))
	b.WriteString(";created=")
	b.WriteString(unixOrEmpty(f.Created.From))
	b.WriteByte('-')
	b.WriteString(unixOrEmpty(f.Created.To))
	return b.String()
}

func sortedUnique(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

func unixOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}
