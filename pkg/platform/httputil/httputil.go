// Package httputil centralizes JSON response writing and request decoding
// for all handlers. Error responses use the envelope
// {"error": code, "error_description": message}; descriptions are
// suppressed for internal error classes so implementation details never
// reach clients.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "vitae/pkg/domain-errors"
)

// ErrorResponse is the wire shape of every error envelope.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Validatable is implemented by request structs that normalize and check
// themselves after decoding.
type Validatable interface {
	Validate() error
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// WriteError translates a domain error into the JSON error envelope.
// Non-domain errors are treated as internal.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Error: string(code)}
	var de *dErrors.Error
	if !isInternalClass(code) && errors.As(err, &de) {
		resp.ErrorDescription = de.Message
	}
	WriteJSON(w, ToHTTPStatus(code), resp)
}

// DecodeAndPrepare decodes a JSON request body into T and runs its
// Validate method. On failure it writes the error response and returns
// ok=false; handlers should simply return.
func DecodeAndPrepare[T Validatable](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode request body", "error", err)
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body"))
		return req, false
	}
	if err := req.Validate(); err != nil {
		WriteError(w, err)
		return req, false
	}
	return req, true
}

// ToHTTPStatus maps a domain error code to its HTTP status.
func ToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeCallerNotOwner, dErrors.CodePermissionDenied:
		return http.StatusForbidden
	case dErrors.CodeNotFound, dErrors.CodeNonexistentClaim:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeDuplicateClaim, dErrors.CodeDuplicateEndorsement,
		dErrors.CodeDataTooLarge, dErrors.CodeZeroBalance:
		return http.StatusConflict
	case dErrors.CodePayoutFailed:
		return http.StatusBadGateway
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// isInternalClass reports whether the code belongs to the internal family
// whose messages must not leak to clients.
func isInternalClass(code dErrors.Code) bool {
	return code == dErrors.CodeInternal || code == dErrors.CodeInvariantViolation
}
