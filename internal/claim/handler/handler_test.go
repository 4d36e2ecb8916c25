package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"hearth/internal/claim"
	"hearth/internal/claim/service"
	"hearth/internal/person"
	"hearth/internal/platform/metrics"
	id "hearth/pkg/domain"
	"hearth/pkg/platform/audit"
	auditmemory "hearth/pkg/platform/audit/store/memory"
	"hearth/pkg/requestcontext"
)

type fixture struct {
	router  *chi.Mux
	persons *person.InMemoryStore
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	persons := person.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewService(
		claim.NewInMemoryStore(),
		persons,
		service.NewMemoryBoundary(),
		audit.NewPublisher(auditmemory.NewInMemoryStore()),
		metrics.NewWith(prometheus.NewRegistry()),
		logger,
		"https://hearth.example",
		time.Hour,
	)
	h := New(svc, logger)

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now)
			ctx = requestcontext.WithContributorID(ctx, id.NewContributorID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Group(h.PublicRoutes)
	router.Group(h.ContributorRoutes)

	return &fixture{router: router, persons: persons, now: now}
}

func (f *fixture) seedReference(t *testing.T) *person.PersonReference {
	t.Helper()
	p := &person.Person{
		ID:            id.NewPersonID(),
		CanonicalName: "June Alvarez",
		Visibility:    id.VisibilityPending,
	}
	if err := f.persons.CreatePerson(context.Background(), p); err != nil {
		t.Fatalf("seed person: %v", err)
	}
	ref := &person.PersonReference{
		ID:          id.NewReferenceID(),
		NoteID:      id.NewNoteID(),
		PersonID:    p.ID,
		Role:        person.RoleWitness,
		Visibility:  id.VisibilityPending,
		AuthorLabel: "June Alvarez",
	}
	if err := f.persons.CreateReference(context.Background(), ref); err != nil {
		t.Fatalf("seed reference: %v", err)
	}
	return ref
}

func TestIssueAndConsumeViaHandlers(t *testing.T) {
	f := newFixture(t)
	ref := f.seedReference(t)

	payload := map[string]string{
		"note_id":        ref.NoteID.String(),
		"person_id":      ref.PersonID.String(),
		"reference_id":   ref.ID.String(),
		"recipient_name": "Aunt June",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/invites", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 issuing invite, got %d: %s", rec.Code, rec.Body.String())
	}

	var issued struct {
		InviteID string `json:"invite_id"`
		ClaimURL string `json:"claim_url"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&issued); err != nil {
		t.Fatalf("decode issue response: %v", err)
	}
	if issued.ClaimURL == "" || issued.InviteID == "" {
		t.Fatalf("expected claim_url and invite_id in response")
	}

	claimPath := issued.ClaimURL[len("https://hearth.example"):]
	consumeBody, _ := json.Marshal(map[string]string{"choice": "initials_only"})
	consumeReq := httptest.NewRequest(http.MethodPost, claimPath, bytes.NewReader(consumeBody))
	consumeReq.Header.Set("Content-Type", "application/json")
	consumeRec := httptest.NewRecorder()
	f.router.ServeHTTP(consumeRec, consumeReq)
	if consumeRec.Code != http.StatusOK {
		t.Fatalf("expected 200 consuming token, got %d: %s", consumeRec.Code, consumeRec.Body.String())
	}

	var consumed struct {
		OK                bool   `json:"ok"`
		VisibilityApplied string `json:"visibility_applied"`
		InitialsOnly      bool   `json:"initials_only"`
	}
	if err := json.NewDecoder(consumeRec.Body).Decode(&consumed); err != nil {
		t.Fatalf("decode consume response: %v", err)
	}
	if !consumed.OK || consumed.VisibilityApplied != "blurred" || !consumed.InitialsOnly {
		t.Fatalf("unexpected consume response: %+v", consumed)
	}
}

func TestConsumeUnknownTokenIs404(t *testing.T) {
	f := newFixture(t)

	body, _ := json.Marshal(map[string]string{"choice": "full_name"})
	req := httptest.NewRequest(http.MethodPost, "/claim/not-a-token", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown token, got %d", rec.Code)
	}
	var errBody map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody["error"] != "token_invalid" {
		t.Fatalf("expected token_invalid, got %q", errBody["error"])
	}
}

func TestConsumeReplayedTokenLooksIdentical(t *testing.T) {
	f := newFixture(t)
	ref := f.seedReference(t)

	payload := map[string]string{
		"note_id":        ref.NoteID.String(),
		"person_id":      ref.PersonID.String(),
		"reference_id":   ref.ID.String(),
		"recipient_name": "Aunt June",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/invites", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var issued struct {
		ClaimURL string `json:"claim_url"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&issued); err != nil {
		t.Fatalf("decode issue response: %v", err)
	}
	claimPath := issued.ClaimURL[len("https://hearth.example"):]

	consume := func() *httptest.ResponseRecorder {
		b, _ := json.Marshal(map[string]string{"choice": "full_name"})
		r := httptest.NewRequest(http.MethodPost, claimPath, bytes.NewReader(b))
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, r)
		return w
	}

	if first := consume(); first.Code != http.StatusOK {
		t.Fatalf("expected first consume to succeed, got %d", first.Code)
	}
	replay := consume()
	if replay.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on replay, got %d", replay.Code)
	}
	var errBody map[string]string
	if err := json.NewDecoder(replay.Body).Decode(&errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody["error"] != "token_invalid" {
		t.Fatalf("replay must be indistinguishable from unknown token, got %q", errBody["error"])
	}
}

func TestIssueRejectsBadIDs(t *testing.T) {
	f := newFixture(t)

	body, _ := json.Marshal(map[string]string{
		"note_id":        "not-a-uuid",
		"person_id":      id.NewPersonID().String(),
		"reference_id":   id.NewReferenceID().String(),
		"recipient_name": "Aunt June",
	})
	req := httptest.NewRequest(http.MethodPost, "/invites", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed note_id, got %d", rec.Code)
	}
}
