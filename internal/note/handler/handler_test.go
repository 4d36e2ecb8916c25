package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	claimservice "hearth/internal/claim/service"
	"hearth/internal/mention"
	"hearth/internal/note"
	"hearth/internal/note/service"
	"hearth/internal/person"
	"hearth/internal/platform/metrics"
	id "hearth/pkg/domain"
	"hearth/pkg/requestcontext"
)

type fixture struct {
	router  *chi.Mux
	persons *person.InMemoryStore
	author  id.ContributorID
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	notes := note.NewInMemoryStore()
	persons := person.NewInMemoryStore()
	mentions := mention.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewService(
		notes,
		persons,
		mentions,
		claimservice.NewMemoryBoundary(),
		metrics.NewWith(prometheus.NewRegistry()),
		logger,
	)
	h := New(svc, logger)

	f := &fixture{
		persons: persons,
		author:  id.NewContributorID(),
		now:     time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), f.now)
			// The test driver impersonates via headers instead of running
			// the full auth stack.
			if r.Header.Get("X-Test-Contributor") != "" {
				ctx = requestcontext.WithContributorID(ctx, f.author)
			}
			if r.Header.Get("X-Test-Admin") != "" {
				ctx = requestcontext.WithAdmin(ctx, true)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Group(h.PublicRoutes)
	router.Group(h.ContributorRoutes)
	f.router = router
	return f
}

func (f *fixture) do(t *testing.T, method, path string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) submitNote(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/notes", map[string]any{
		"body": "Rosa brought the canoe.",
		"references": []map[string]string{
			{"name": "Rosa Delgado", "relationship_to_subject": "aunt"},
		},
	}, map[string]string{"X-Test-Contributor": "1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		NoteID string `json:"note_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	return resp.NoteID
}

func TestSubmitAndReadBack(t *testing.T) {
	f := newFixture(t)
	noteID := f.submitNote(t)

	rec := f.do(t, http.MethodGet, "/notes/"+noteID+"/references", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		References []struct {
			RenderLabel   string          `json:"render_label"`
			Visibility    string          `json:"visibility"`
			AuthorPayload json.RawMessage `json:"author_payload"`
		} `json:"references"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.References) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(resp.References))
	}
	if resp.References[0].RenderLabel != "someone" {
		t.Errorf("public label = %q, want placeholder", resp.References[0].RenderLabel)
	}
	if len(resp.References[0].AuthorPayload) != 0 {
		t.Errorf("author payload leaked to public read: %s", resp.References[0].AuthorPayload)
	}
}

func TestAuthorSeesOwnLabels(t *testing.T) {
	f := newFixture(t)
	noteID := f.submitNote(t)

	rec := f.do(t, http.MethodGet, "/notes/"+noteID+"/references", nil,
		map[string]string{"X-Test-Contributor": "1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		References []struct {
			AuthorPayload *struct {
				AuthorLabel string `json:"author_label"`
			} `json:"author_payload"`
		} `json:"references"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.References) != 1 || resp.References[0].AuthorPayload == nil {
		t.Fatalf("expected author payload on owner read, got %s", rec.Body.String())
	}
	if got := resp.References[0].AuthorPayload.AuthorLabel; got != "Rosa Delgado" {
		t.Errorf("author label = %q", got)
	}
}

func TestCompareIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	noteID := f.submitNote(t)

	rec := f.do(t, http.MethodGet, "/notes/"+noteID+"/references?compare=1", nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous compare: status %d, want 403", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/notes/"+noteID+"/references?compare=1", nil,
		map[string]string{"X-Test-Admin": "1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("admin compare: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Owner  []json.RawMessage `json:"owner"`
		Public []json.RawMessage `json:"public"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Owner) != 1 || len(resp.Public) != 1 {
		t.Fatalf("expected both channels, got owner=%d public=%d", len(resp.Owner), len(resp.Public))
	}
}

func TestSubmitRequiresAuth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/notes", map[string]any{"body": "x"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
}

func TestReadUnknownNoteIs404(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/notes/"+id.NewNoteID().String()+"/references", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}
