// Package http provides http transport for ingest
package http

import (
	"encoding/json"
	"io"
	stdhttp "net/http"
	"strconv"

	"devlog/internal/core/ghsig"
	"devlog/internal/modkit/httpkit"
	perr "devlog/internal/platform/errors"
	"devlog/internal/platform/net/http/bind"
	"devlog/internal/services/ingest/domain"
	svc "devlog/internal/services/ingest/service"

	"github.com/go-chi/chi/v5"
)

// webhook bodies are small; anything past this is not a push we track
const maxWebhookBody = 5 << 20

// RegisterWebhooks mounts the provider-facing webhook endpoint
func RegisterWebhooks(r httpkit.Router, s svc.Service, secret string) {
	h := &handlers{svc: s, secret: secret}
	r.Post("/github", httpkit.Handle(h.github))
}

// RegisterRepos mounts repository management endpoints
func RegisterRepos(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}
	httpkit.PostJSON[domain.RegisterRepoInput](r, "/", h.register)
	httpkit.Get(r, "/", h.list)
	httpkit.PatchJSON[domain.ToggleTrackingInput](r, "/{id}/tracking", h.toggle)
}

type handlers struct {
	svc    svc.Service
	secret string
}

// github handles one push delivery
// the signature is computed over the raw bytes, so the body is read
// before any JSON decoding and rejected before any processing
func (h *handlers) github(r *stdhttp.Request) httpkit.Response {
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return httpkit.Error(perr.Validationf("read body: %v", err))
	}
	if !ghsig.Verify(body, r.Header.Get("X-Hub-Signature-256"), h.secret) {
		return httpkit.Error(perr.Unauthorizedf("signature verification failed"))
	}

	switch r.Header.Get("X-GitHub-Event") {
	case "", "push":
	case "ping":
		return httpkit.OK(map[string]any{"pong": true})
	default:
		// authenticated but not a push; acknowledge so the provider
		// does not redeliver
		return httpkit.OK(domain.PushResult{Ignored: true})
	}

	var p domain.PushPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return httpkit.Error(perr.JSONErrf("invalid push payload: %v", err))
	}
	if err := bind.Get().Validator.Struct(p); err != nil {
		_, msg := bind.ValidationFieldAndMessage(err)
		return httpkit.Error(perr.Validationf("%s", msg))
	}

	out, err := h.svc.ProcessPush(r.Context(), p)
	if err != nil {
		return httpkit.Error(err)
	}
	return httpkit.OK(out)
}

func (h *handlers) register(r *stdhttp.Request, in domain.RegisterRepoInput) (any, error) {
	out, err := h.svc.RegisterRepo(r.Context(), in)
	if err != nil {
		return nil, err
	}
	return httpkit.Created(out), nil
}

func (h *handlers) list(r *stdhttp.Request) (any, error) {
	var in domain.ListReposInput
	q := r.URL.Query()
	if v := q.Get("owner_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, perr.InvalidArgf("owner_id must be an integer")
		}
		in.OwnerID = id
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, perr.InvalidArgf("limit must be an integer")
		}
		in.Limit = n
	}
	return h.svc.ListRepos(r.Context(), in)
}

func (h *handlers) toggle(r *stdhttp.Request, in domain.ToggleTrackingInput) (any, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return nil, perr.InvalidArgf("repository id must be an integer")
	}
	return h.svc.SetTracking(r.Context(), id, *in.Enabled)
}
