// Package handler exposes mention resolution: contributors promote, ignore,
// or keep mentions as plain context.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hearth/internal/mention/service"
	"hearth/internal/person"
	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
	"hearth/pkg/platform/httputil"
)

type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(service *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes mounts the mention endpoints; all of them require a contributor.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/mentions/{mentionID}", func(r chi.Router) {
		r.Post("/promote", h.promote)
		r.Post("/ignore", h.ignore)
		r.Post("/keep", h.keep)
	})
}

func mentionIDFrom(r *http.Request) (id.MentionID, error) {
	return id.ParseMentionID(chi.URLParam(r, "mentionID"))
}

type promoteRequest struct {
	PersonID              string `json:"person_id,omitempty"`
	Role                  string `json:"role,omitempty"`
	RelationshipToSubject string `json:"relationship_to_subject,omitempty"`
}

type promoteResponse struct {
	PersonID      string `json:"person_id"`
	ReferenceID   string `json:"reference_id"`
	CreatedPerson bool   `json:"created_person"`
}

type candidateResponse struct {
	PersonID      string   `json:"person_id"`
	CanonicalName string   `json:"canonical_name"`
	Aliases       []string `json:"aliases,omitempty"`
}

type ambiguousResponse struct {
	Error       string              `json:"error"`
	Description string              `json:"error_description"`
	Candidates  []candidateResponse `json:"candidates"`
}

func (h *Handler) promote(w http.ResponseWriter, r *http.Request) {
	mentionID, err := mentionIDFrom(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req promoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return
	}

	in := service.PromoteInput{
		Role:                  person.Role(req.Role),
		RelationshipToSubject: req.RelationshipToSubject,
	}
	if req.PersonID != "" {
		personID, err := id.ParsePersonID(req.PersonID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		in.PersonID = &personID
	}

	result, err := h.service.Promote(r.Context(), mentionID, in)
	if dErrors.HasCode(err, dErrors.CodeAmbiguousPerson) {
		h.writeAmbiguous(w, r, mentionID, err)
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, promoteResponse{
		PersonID:      result.PersonID.String(),
		ReferenceID:   result.ReferenceID.String(),
		CreatedPerson: result.CreatedPerson,
	})
}

// writeAmbiguous renders the disambiguation payload: the conflict plus the
// people the name could refer to.
func (h *Handler) writeAmbiguous(w http.ResponseWriter, r *http.Request, mentionID id.MentionID, cause error) {
	candidates, err := h.service.Candidates(r.Context(), mentionID)
	if err != nil {
		httputil.WriteError(w, cause)
		return
	}
	httputil.WriteJSON(w, http.StatusConflict, ambiguousResponse{
		Error:       "ambiguous_person",
		Description: dErrors.Message(cause),
		Candidates:  toCandidates(candidates),
	})
}

func toCandidates(people []*person.Person) []candidateResponse {
	out := make([]candidateResponse, 0, len(people))
	for _, p := range people {
		out = append(out, candidateResponse{
			PersonID:      p.ID.String(),
			CanonicalName: p.CanonicalName,
			Aliases:       p.Aliases,
		})
	}
	return out
}

func (h *Handler) ignore(w http.ResponseWriter, r *http.Request) {
	mentionID, err := mentionIDFrom(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Ignore(r.Context(), mentionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type keepRequest struct {
	DisplayLabel string `json:"display_label"`
}

func (h *Handler) keep(w http.ResponseWriter, r *http.Request) {
	mentionID, err := mentionIDFrom(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req keepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return
	}

	if err := h.service.KeepAsContext(r.Context(), mentionID, req.DisplayLabel); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
