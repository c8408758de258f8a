package web

// errors.go maps core error kinds to HTTP responses. Technical details are
// logged server-side with the request id; clients get a stable code plus a
// human-readable message. Ownership failures surface as 404, not 403, so
// the API never leaks whether a foreign upload exists.

import (
	"errors"
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/datasheet-app/datasheet/internal/core"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error      string   `json:"error"`
	Code       string   `json:"code"`
	Violations []string `json:"violations,omitempty"`
}

// statusForError resolves the HTTP status from the error taxonomy.
func statusForError(err error) int {
	switch core.KindOf(err) {
	case core.KindBusy:
		return http.StatusServiceUnavailable
	case core.KindParse, core.KindValidation, core.KindCapacity, core.KindQuery:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the failure and writes the mapped JSON response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"kind", string(core.KindOf(err)),
		"request_id", middleware.GetReqID(r.Context()),
	)

	resp := ErrorResponse{
		Error: err.Error(),
		Code:  string(core.KindOf(err)),
	}

	// Surface the full violation list for structural failures.
	var ve *core.StructuralValidationError
	if errors.As(err, &ve) {
		resp.Violations = ve.Violations
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// respondJSON writes a JSON success response.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
