// Package handler exposes the note boundary over HTTP: authenticated
// submission and the public redacted read path.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hearth/internal/note/service"
	"hearth/internal/person"
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

// PublicRoutes mounts the redacted read path. Anonymous readers get the
// public projection; the note's author gets their own labels back.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/notes/{noteID}/references", h.references)
}

// ContributorRoutes mounts the authenticated submission endpoint.
func (h *Handler) ContributorRoutes(r chi.Router) {
	r.Post("/notes", h.submit)
}

type referenceRequest struct {
	Name                  string `json:"name"`
	RelationshipToSubject string `json:"relationship_to_subject"`
	Role                  string `json:"role"`
	Phone                 string `json:"phone"`
}

type submitRequest struct {
	Title      string             `json:"title"`
	Body       string             `json:"body"`
	References []referenceRequest `json:"references"`
	Mentions   []string           `json:"mentions"`
}

type submitResponse struct {
	NoteID       string   `json:"note_id"`
	ReferenceIDs []string `json:"reference_ids"`
	MentionIDs   []string `json:"mention_ids"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return
	}
	if req.Body == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "note body must not be empty"))
		return
	}

	in := service.SubmitInput{
		Title:    req.Title,
		Body:     req.Body,
		Mentions: req.Mentions,
	}
	for _, ref := range req.References {
		in.References = append(in.References, service.ReferenceInput{
			Name:                  ref.Name,
			RelationshipToSubject: ref.RelationshipToSubject,
			Role:                  person.Role(ref.Role),
			Phone:                 ref.Phone,
		})
	}

	result, err := h.service.SubmitNote(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := submitResponse{
		NoteID:       result.NoteID.String(),
		ReferenceIDs: make([]string, 0, len(result.ReferenceIDs)),
		MentionIDs:   make([]string, 0, len(result.MentionIDs)),
	}
	for _, refID := range result.ReferenceIDs {
		resp.ReferenceIDs = append(resp.ReferenceIDs, refID.String())
	}
	for _, mentionID := range result.MentionIDs {
		resp.MentionIDs = append(resp.MentionIDs, mentionID.String())
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) references(w http.ResponseWriter, r *http.Request) {
	noteID, err := id.ParseNoteID(chi.URLParam(r, "noteID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// compare=1 returns both channels side by side. Admin only: the owner
	// labels of arbitrary notes must not be reachable from the public path.
	if r.URL.Query().Get("compare") == "1" {
		if !requestcontext.IsAdmin(r.Context()) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "compare requires an admin session"))
			return
		}
		result, err := h.service.Compare(r.Context(), noteID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, result)
		return
	}

	refs, err := h.service.References(r.Context(), noteID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"references": refs})
}
