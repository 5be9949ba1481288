// Package http provides http transport for owner insights
package http

import (
	stdhttp "net/http"
	"strconv"

	"devlog/internal/modkit/httpkit"
	perr "devlog/internal/platform/errors"
	"devlog/internal/services/insights/domain"

	"github.com/go-chi/chi/v5"
)

// Register mounts the insight read and recompute endpoints
func Register(r httpkit.Router, reader domain.ReaderPort, recompute domain.RecomputePort) {
	h := &handlers{reader: reader, recompute: recompute}
	httpkit.Get(r, "/{ownerID}", h.get)
	httpkit.Post(r, "/{ownerID}/recompute", h.refresh)
}

type handlers struct {
	reader    domain.ReaderPort
	recompute domain.RecomputePort
}

func ownerParam(r *stdhttp.Request) (int64, error) {
	ownerID, err := strconv.ParseInt(chi.URLParam(r, "ownerID"), 10, 64)
	if err != nil || ownerID <= 0 {
		return 0, perr.InvalidArgf("owner id must be a positive integer")
	}
	return ownerID, nil
}

func (h *handlers) get(r *stdhttp.Request) (any, error) {
	ownerID, err := ownerParam(r)
	if err != nil {
		return nil, err
	}
	return h.reader.Insights(r.Context(), ownerID)
}

// refresh recomputes synchronously; the scheduled sweep covers the
// steady state, this exists for backfill and support work
func (h *handlers) refresh(r *stdhttp.Request) (any, error) {
	ownerID, err := ownerParam(r)
	if err != nil {
		return nil, err
	}
	return h.recompute.Recompute(r.Context(), ownerID)
}
