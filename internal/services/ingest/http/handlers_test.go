package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"devlog/internal/core/ghsig"
	"devlog/internal/modkit/httpkit"
	phttp "devlog/internal/platform/net/http"
	"devlog/internal/services/ingest/domain"

	"github.com/go-chi/chi/v5"
)

type fakeSvc struct {
	pushes    int
	registers int
	last      domain.PushPayload
}

func (f *fakeSvc) ProcessPush(_ context.Context, p domain.PushPayload) (domain.PushResult, error) {
	f.pushes++
	f.last = p
	return domain.PushResult{CommitsProcessed: len(p.Commits), SessionsCreated: 1}, nil
}

func (f *fakeSvc) RegisterRepo(context.Context, domain.RegisterRepoInput) (domain.Repository, error) {
	f.registers++
	return domain.Repository{}, nil
}

func (f *fakeSvc) ListRepos(context.Context, domain.ListReposInput) ([]domain.Repository, error) {
	return nil, nil
}

func (f *fakeSvc) SetTracking(context.Context, int64, bool) (domain.Repository, error) {
	return domain.Repository{}, nil
}

const secret = "hook-secret"

func deliver(t *testing.T, f *fakeSvc, body []byte, sig, event string) *httptest.ResponseRecorder {
	t.Helper()
	h := &handlers{svc: f, secret: secret}
	req := httptest.NewRequest(stdhttp.MethodPost, "/webhooks/github", bytes.NewReader(body))
	if sig != "" {
		req.Header.Set("X-Hub-Signature-256", sig)
	}
	if event != "" {
		req.Header.Set("X-GitHub-Event", event)
	}
	rec := httptest.NewRecorder()
	stdhttp.HandlerFunc(httpkit.Handle(h.github)).ServeHTTP(rec, req)
	return rec
}

func validPush(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(domain.PushPayload{
		Ref: "refs/heads/main",
		Repository: domain.PushRepository{
			ID:       7,
			FullName: "acme/widgets",
		},
		Commits: []domain.PushCommit{{
			ID:        "a1b2c3d",
			Message:   "fix flaky retry",
			Timestamp: "2026-03-02T09:00:00Z",
			Author:    domain.PushAuthor{Name: "Dev", Email: "dev@acme.io"},
			Added:     []string{"retry.go"},
		}},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()

	f := &fakeSvc{}
	body := validPush(t)

	for _, sig := range []string{
		"",
		"sha256=deadbeef",
		ghsig.Sign(body, "wrong-secret"),
	} {
		rec := deliver(t, f, body, sig, "push")
		if rec.Code != stdhttp.StatusUnauthorized {
			t.Fatalf("sig %q: status %d, want 401", sig, rec.Code)
		}
	}
	if f.pushes != 0 {
		t.Fatalf("rejected deliveries must not reach the service, got %d", f.pushes)
	}
}

func TestWebhookAcceptsSignedPush(t *testing.T) {
	t.Parallel()

	f := &fakeSvc{}
	body := validPush(t)

	rec := deliver(t, f, body, ghsig.Sign(body, secret), "push")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if f.pushes != 1 {
		t.Fatalf("push not processed")
	}
	if f.last.Repository.ID != 7 || len(f.last.Commits) != 1 {
		t.Fatalf("payload mangled: %+v", f.last)
	}
}

func TestWebhookSignatureIsOverRawBytes(t *testing.T) {
	t.Parallel()

	f := &fakeSvc{}
	body := validPush(t)
	sig := ghsig.Sign(body, secret)

	// flip one byte after signing
	tampered := bytes.Replace(body, []byte("acme/widgets"), []byte("acme/gadgets"), 1)
	rec := deliver(t, f, tampered, sig, "push")
	if rec.Code != stdhttp.StatusUnauthorized {
		t.Fatalf("tampered body accepted: %d", rec.Code)
	}
	if f.pushes != 0 {
		t.Fatal("tampered delivery must not be processed")
	}
}

func TestWebhookPingAndOtherEvents(t *testing.T) {
	t.Parallel()

	f := &fakeSvc{}
	body := []byte(`{"zen":"Keep it logically awesome."}`)

	rec := deliver(t, f, body, ghsig.Sign(body, secret), "ping")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("ping: %d", rec.Code)
	}

	rec = deliver(t, f, body, ghsig.Sign(body, secret), "issues")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("non-push event should be acknowledged: %d", rec.Code)
	}
	if f.pushes != 0 {
		t.Fatal("non-push events must not be ingested")
	}
}

func registerRepo(t *testing.T, f *fakeSvc, body string) *httptest.ResponseRecorder {
	t.Helper()
	m := chi.NewRouter()
	RegisterRepos(phttp.AdaptChi(m), f)
	req := httptest.NewRequest(stdhttp.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)
	return rec
}

func TestRegisterRepoValidatesInput(t *testing.T) {
	t.Parallel()

	f := &fakeSvc{}
	rec := registerRepo(t, f, `{"github_id":7,"full_name":"acme/widgets","owner_id":3}`)
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("valid input: status %d body %s", rec.Code, rec.Body.String())
	}
	if f.registers != 1 {
		t.Fatalf("valid input must reach the service, got %d calls", f.registers)
	}

	for _, body := range []string{
		`{"full_name":"acme/widgets","owner_id":3}`,               // missing github_id
		`{"github_id":7,"full_name":"acme/widgets"}`,              // missing owner_id
		`{"github_id":7,"full_name":"acme","owner_id":3}`,         // no owner/name split
		`{"github_id":7,"full_name":"acme/wid gets","owner_id":3}`, // whitespace in name
		`{"github_id":7,"full_name":"a/b/c","owner_id":3}`,        // extra separator
	} {
		rec := registerRepo(t, f, body)
		if rec.Code != stdhttp.StatusBadRequest {
			t.Fatalf("body %s: status %d, want 400", body, rec.Code)
		}
	}
	if f.registers != 1 {
		t.Fatalf("invalid input reached the service, %d calls", f.registers)
	}
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	t.Parallel()

	f := &fakeSvc{}
	body := []byte(`{"ref": 12`)

	rec := deliver(t, f, body, ghsig.Sign(body, secret), "push")
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("malformed payload: %d", rec.Code)
	}

	// well-formed JSON failing validation (no repository id)
	body = []byte(`{"ref":"refs/heads/main","repository":{"full_name":"a/b"}}`)
	rec = deliver(t, f, body, ghsig.Sign(body, secret), "push")
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("invalid payload: %d", rec.Code)
	}
	if f.pushes != 0 {
		t.Fatal("invalid payloads must not be processed")
	}
}
