package recollect

import "github.com/kailas-cloud/recollect/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrConfig              = domain.ErrConfig
	ErrBackendUnavailable  = domain.ErrBackendUnavailable
	ErrTimeout             = domain.ErrTimeout
	ErrAllStrategiesFailed = domain.ErrAllStrategiesFailed
	ErrEmbedding           = domain.ErrEmbedding
	ErrCache               = domain.ErrCache
	ErrUnknownProfile      = domain.ErrUnknownProfile
)
