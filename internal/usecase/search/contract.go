package search

import (
	"context"
	"time"

	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/feedback"
	"github.com/kailas-cloud/recollect/internal/domain/query"
	"github.com/kailas-cloud/recollect/internal/domain/strategy"
	"github.com/kailas-cloud/recollect/internal/usecase/fusion"
	"github.com/kailas-cloud/recollect/internal/usecase/router"
)

// ResultCache stores fused result lists by query key. Failures are absorbed by the implementation.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]candidate.Scored, bool)
	Set(ctx context.Context, key string, cands []candidate.Scored)
}

// Keyer derives the cache key of a query.
type Keyer interface {
	Key(q *query.Query) string
}

// ProfileSelector picks the weight profile for a query and writes its weights.
type ProfileSelector interface {
	Select(q *query.Query) (router.Profile, error)
}

// Fuser merges per-strategy ranked lists.
type Fuser interface {
	Fuse(lists []fusion.Ranked, w query.Weights) ([]candidate.Scored, error)
}

// FeedbackSink receives search outcomes for asynchronous learning. Must not block.
type FeedbackSink interface {
	Publish(rec feedback.Record)
}

// Observer records per-strategy outcomes.
type Observer interface {
	Observe(kind strategy.Kind, elapsed time.Duration, err error)
}

// Trimmer performs the final top-k selection over fused candidates.
type Trimmer interface {
	Trim(cands []candidate.Scored, k int) ([]candidate.Scored, error)
}
