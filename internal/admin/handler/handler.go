// Package handler exposes the moderation endpoints. The router mounts these
// behind the admin middleware; the service re-checks the admin flag anyway.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hearth/internal/admin/service"
	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
	"hearth/pkg/platform/audit"
	"hearth/pkg/platform/httputil"
)

type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(service *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/admin/references/{referenceID}/visibility", h.overrideReference)
	r.Post("/admin/persons/{personID}/visibility", h.overridePerson)
	r.Get("/admin/persons/{personID}/audit", h.auditTrail)
}

type overrideRequest struct {
	Visibility string `json:"visibility"`
	Reason     string `json:"reason"`
}

func (h *Handler) decodeOverride(r *http.Request) (service.OverrideInput, error) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return service.OverrideInput{}, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body")
	}
	return service.OverrideInput{
		Visibility: id.Visibility(req.Visibility),
		Reason:     req.Reason,
	}, nil
}

func (h *Handler) overrideReference(w http.ResponseWriter, r *http.Request) {
	refID, err := id.ParseReferenceID(chi.URLParam(r, "referenceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	in, err := h.decodeOverride(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.OverrideReference(r.Context(), refID, in); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) overridePerson(w http.ResponseWriter, r *http.Request) {
	personID, err := id.ParsePersonID(chi.URLParam(r, "personID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	in, err := h.decodeOverride(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.OverridePerson(r.Context(), personID, in); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type auditTrailResponse struct {
	Events []audit.Event `json:"events"`
}

func (h *Handler) auditTrail(w http.ResponseWriter, r *http.Request) {
	personID, err := id.ParsePersonID(chi.URLParam(r, "personID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.service.AuditTrail(r.Context(), personID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, auditTrailResponse{Events: events})
}
