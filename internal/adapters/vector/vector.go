// Package vector stores and queries session embeddings in clickhouse
// nearest-neighbor runs as a cosineDistance scan over session_vectors,
// which is plenty at this table's cardinality
package vector

import (
	"context"
	"time"

	perr "devlog/internal/platform/errors"
	"devlog/internal/platform/store"
)

// Match is one similarity result; Score is normalized to [0,1]
// where 1 means identical direction
type Match struct {
	SessionID string
	Score     float64
}

// Index is the vector index adapter over the clickhouse seam
type Index struct {
	ch store.Clickhouse
}

// New constructs the index
func New(ch store.Clickhouse) *Index { return &Index{ch: ch} }

// ddl keeps the table shape next to the queries that depend on it
// ReplacingMergeTree collapses re-upserts for the same session
const ddl = `
CREATE TABLE IF NOT EXISTS session_vectors (
    session_id String,
    owner_id   Int64,
    language   String,
    vec        Array(Float32),
    updated_at DateTime
) ENGINE = ReplacingMergeTree(updated_at)
ORDER BY (session_id)
`

// EnsureSchema creates the backing table when missing
func (x *Index) EnsureSchema(ctx context.Context) error {
	if x.ch == nil {
		return perr.Unavailablef("vector index disabled (no clickhouse)")
	}
	return x.ch.Exec(ctx, ddl)
}

// Upsert writes (or rewrites) a session's embedding with filter metadata
func (x *Index) Upsert(ctx context.Context, sessionID string, ownerID int64, language string, vec []float32) error {
	if x.ch == nil {
		return perr.Unavailablef("vector index disabled (no clickhouse)")
	}
	rows := [][]any{{sessionID, ownerID, language, vec, time.Now().UTC()}}
	if err := x.ch.Insert(ctx, "session_vectors", rows); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "vector upsert failed")
	}
	return nil
}

// Query returns the topK nearest sessions to vec, excluding excludeID.
// ownerID > 0 restricts matches to that owner. cosineDistance is in [0,2];
// the score maps it onto [0,1] with 1 best
func (x *Index) Query(ctx context.Context, vec []float32, topK int, ownerID int64, excludeID string) ([]Match, error) {
	if x.ch == nil {
		return nil, perr.Unavailablef("vector index disabled (no clickhouse)")
	}
	if topK <= 0 {
		topK = 5
	}

	const q = `
SELECT session_id, cosineDistance(vec, ?) AS dist
FROM session_vectors FINAL
WHERE session_id != ?
  AND (? = 0 OR owner_id = ?)
ORDER BY dist ASC
LIMIT ?
`
	rows, err := x.ch.Query(ctx, q, vec, excludeID, ownerID, ownerID, topK)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "vector query failed")
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var id string
		var dist float64
		if err := rows.Scan(&id, &dist); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "vector scan failed")
		}
		out = append(out, Match{SessionID: id, Score: scoreFromDistance(dist)})
	}
	return out, rows.Err()
}

// scoreFromDistance converts cosine distance to a [0,1] similarity score
func scoreFromDistance(d float64) float64 {
	s := 1 - d
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
