// Package http provides http transport for sessions
package http

import (
	stdhttp "net/http"
	"strconv"

	"devlog/internal/modkit/httpkit"
	perr "devlog/internal/platform/errors"
	enrichdom "devlog/internal/services/enrich/domain"
	svc "devlog/internal/services/sessions/service"

	"github.com/go-chi/chi/v5"
)

// Register mounts session read and enrichment endpoints
// narrative and similar may be nil when the process has no enrichment
// wiring; the endpoints then answer 503
func Register(r httpkit.Router, s svc.Service, narrative enrichdom.NarrativePort, similar enrichdom.SimilarPort, weekly enrichdom.WeeklyPort) {
	h := &handlers{svc: s, narrative: narrative, similar: similar, weekly: weekly}
	httpkit.Get(r, "/", h.list)
	httpkit.Get(r, "/{id}", h.get)
	httpkit.Get(r, "/{id}/similar", h.similarTo)
	httpkit.Post(r, "/{id}/narrative", h.generate)
	httpkit.Get(r, "/weekly/{ownerID}", h.weeklySummary)
}

type handlers struct {
	svc       svc.Service
	narrative enrichdom.NarrativePort
	similar   enrichdom.SimilarPort
	weekly    enrichdom.WeeklyPort
}

func (h *handlers) list(r *stdhttp.Request) (any, error) {
	q := r.URL.Query()
	ownerID, err := strconv.ParseInt(q.Get("owner_id"), 10, 64)
	if err != nil || ownerID <= 0 {
		return nil, perr.InvalidArgf("owner_id is required and must be a positive integer")
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return h.svc.ListByOwner(r.Context(), ownerID, limit, offset)
}

func (h *handlers) get(r *stdhttp.Request) (any, error) {
	return h.svc.Get(r.Context(), chi.URLParam(r, "id"))
}

func (h *handlers) similarTo(r *stdhttp.Request) (any, error) {
	if h.similar == nil {
		return nil, perr.Unavailablef("similarity search not configured")
	}
	k, _ := strconv.Atoi(r.URL.Query().Get("k"))
	sameOwner := r.URL.Query().Get("same_owner") == "true"
	return h.similar.Similar(r.Context(), chi.URLParam(r, "id"), k, sameOwner)
}

// generate produces the narrative on demand
// repeated requests while one is running coalesce on the enrich side
func (h *handlers) generate(r *stdhttp.Request) (any, error) {
	if h.narrative == nil {
		return nil, perr.Unavailablef("narrative generation not configured")
	}
	return h.narrative.Narrative(r.Context(), chi.URLParam(r, "id"))
}

func (h *handlers) weeklySummary(r *stdhttp.Request) (any, error) {
	if h.weekly == nil {
		return nil, perr.Unavailablef("weekly summaries not configured")
	}
	ownerID, err := strconv.ParseInt(chi.URLParam(r, "ownerID"), 10, 64)
	if err != nil || ownerID <= 0 {
		return nil, perr.InvalidArgf("owner id must be a positive integer")
	}
	return h.weekly.WeeklySummary(r.Context(), ownerID)
}
