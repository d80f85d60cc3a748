package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/query"
)

// keyVersion prefixes every key; bump it when the payload format changes.
const keyVersion = "v1"

// DefaultKeyPrecision is the number of decimals vectors are quantized to.
const DefaultKeyPrecision = 4

// KeyBuilder derives deterministic cache keys from queries.
type KeyBuilder struct {
	precision int
}

// NewKeyBuilder creates a key builder. Non-positive precision falls back to DefaultKeyPrecision.
func NewKeyBuilder(precision int) KeyBuilder {
	if precision <= 0 {
		precision = DefaultKeyPrecision
	}
	return KeyBuilder{precision: precision}
}

// Key hashes normalized text, the quantized vector, limit, threshold and canonical filters.
// Weights are not part of the key: they are chosen by the router per request.
func (b KeyBuilder) Key(q *query.Query) string {
	var sb strings.Builder
	sb.WriteString(domain.NormalizeText(q.Text()))
	sb.WriteByte(0)
	sb.WriteString(b.quantize(q.Vector()))
	sb.WriteByte(0)
	sb.WriteString(strconv.Itoa(q.Limit()))
	sb.WriteByte(0)
	if t, ok := q.Threshold(); ok {
		sb.WriteString(strconv.FormatFloat(t, 'f', -1, 64))
	} else {
		sb.WriteString("none")
	}
	sb.WriteByte(0)
	sb.WriteString(q.Filters().Canonical())

	h := sha256.Sum256([]byte(sb.String()))
	return keyVersion + ":" + hex.EncodeToString(h[:])
}

func (b KeyBuilder) quantize(vec []float32) string {
	if len(vec) == 0 {
		return ""
	}
	scale := math.Pow10(b.precision)
	parts := make([]string, len(vec))
	for i, v := range vec {
		q := math.Round(float64(v)*scale) / scale
		if q == 0 {
			q = 0 // fold -0
		}
		parts[i] = strconv.FormatFloat(q, 'f', b.precision, 64)
	}
	return strings.Join(parts, ",")
}
