// Package httputil maps domain errors onto HTTP responses. It is the only
// place response status codes are decided, so handlers stay thin.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "hearth/pkg/domain-errors"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// statusFor maps domain error codes to HTTP status codes. Token errors map
// to 404 so the claim endpoint reveals nothing about which tokens exist.
func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound, dErrors.CodeTokenInvalid:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeAmbiguousPerson:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// wireCode is the stable machine-readable error string for each code.
func wireCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeBadRequest:
		return "bad_request"
	case dErrors.CodeInvalidInput:
		return "invalid_input"
	case dErrors.CodeValidation:
		return "validation_failed"
	case dErrors.CodeUnauthorized:
		return "unauthorized"
	case dErrors.CodeForbidden:
		return "forbidden"
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeTokenInvalid:
		return "token_invalid"
	case dErrors.CodeConflict:
		return "conflict"
	case dErrors.CodeAmbiguousPerson:
		return "ambiguous_person"
	case dErrors.CodeTimeout:
		return "timeout"
	default:
		return "internal_error"
	}
}

// WriteError renders err as a JSON error response. Internal failures never
// leak their message to the client.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := statusFor(code)

	body := errorBody{Error: wireCode(code)}
	if status < http.StatusInternalServerError {
		body.Description = dErrors.Message(err)
	}
	WriteJSON(w, status, body)
}

// WriteJSON renders v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
