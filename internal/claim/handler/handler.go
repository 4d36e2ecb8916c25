// Package handler exposes the claim flow over HTTP: contributors issue
// invites, and recipients consume the claim link anonymously.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hearth/internal/claim"
	"hearth/internal/claim/service"
	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
	"hearth/pkg/platform/httputil"
	"hearth/pkg/requestcontext"
)

type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(service *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// PublicRoutes mounts the anonymous claim endpoint. No auth: the recipient
// of a claim link has no account.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Post("/claim/{token}", h.consume)
}

// ContributorRoutes mounts the authenticated invite endpoint.
func (h *Handler) ContributorRoutes(r chi.Router) {
	r.Post("/invites", h.issue)
}

type issueRequest struct {
	NoteID         string `json:"note_id"`
	PersonID       string `json:"person_id"`
	ReferenceID    string `json:"reference_id"`
	RecipientName  string `json:"recipient_name"`
	RecipientPhone string `json:"recipient_phone"`
}

type issueResponse struct {
	InviteID  string    `json:"invite_id"`
	ClaimURL  string    `json:"claim_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return
	}

	noteID, err := id.ParseNoteID(req.NoteID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	personID, err := id.ParsePersonID(req.PersonID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	refID, err := id.ParseReferenceID(req.ReferenceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	issued, err := h.service.Issue(r.Context(), service.IssueInput{
		NoteID:         noteID,
		PersonID:       personID,
		ReferenceID:    refID,
		ContributorID:  requestcontext.ContributorID(r.Context()),
		RecipientName:  req.RecipientName,
		RecipientPhone: req.RecipientPhone,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, issueResponse{
		InviteID:  issued.InviteID.String(),
		ClaimURL:  issued.ClaimURL,
		ExpiresAt: issued.ExpiresAt,
	})
}

type consumeRequest struct {
	Choice string `json:"choice"`
}

type consumeResponse struct {
	OK                bool   `json:"ok"`
	VisibilityApplied string `json:"visibility_applied"`
	InitialsOnly      bool   `json:"initials_only,omitempty"`
}

func (h *Handler) consume(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "token")

	var req consumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return
	}

	result, err := h.service.Consume(r.Context(), raw, claim.Choice(req.Choice))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, consumeResponse{
		OK:                true,
		VisibilityApplied: string(result.VisibilityApplied),
		InitialsOnly:      result.InitialsOnly,
	})
}
