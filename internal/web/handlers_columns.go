package web

// handlers_columns.go covers the derived views: column catalogs, dashboard
// stats, and calculated-column CRUD.

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/datasheet-app/datasheet/internal/core"
	ownmw "github.com/datasheet-app/datasheet/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// optionalUploadID reads an optional uploadId query parameter.
func optionalUploadID(r *http.Request) (*uuid.UUID, error) {
	raw := r.URL.Query().Get("uploadId")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, core.ErrNotFound
	}
	return &id, nil
}

// handleColumnInfo returns the derived column catalog, optionally scoped to
// one upload.
func (s *Server) handleColumnInfo(w http.ResponseWriter, r *http.Request) {
	userID := ownmw.UserID(r.Context())

	uploadID, err := optionalUploadID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	infos, err := s.service.GetColumnInfo(r.Context(), userID, uploadID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if infos == nil {
		infos = []core.ColumnInfo{}
	}
	respondJSON(w, http.StatusOK, infos)
}

// handleStats returns dashboard aggregates for the user.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID := ownmw.UserID(r.Context())

	stats, err := s.service.GetDashboardStats(r.Context(), userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// calculatedColumnRequest is the create/update payload.
type calculatedColumnRequest struct {
	UploadID *uuid.UUID `json:"uploadId,omitempty"`
	Name     string     `json:"name"`
	Formula  string     `json:"formula"`
}

// handleListCalculatedColumns lists the user's calculated columns,
// optionally scoped to one upload.
func (s *Server) handleListCalculatedColumns(w http.ResponseWriter, r *http.Request) {
	userID := ownmw.UserID(r.Context())

	uploadID, err := optionalUploadID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	cols, err := s.service.GetCalculatedColumns(r.Context(), userID, uploadID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if cols == nil {
		cols = []core.CalculatedColumn{}
	}
	respondJSON(w, http.StatusOK, cols)
}

// handleCreateCalculatedColumn stores a new formula definition.
func (s *Server) handleCreateCalculatedColumn(w http.ResponseWriter, r *http.Request) {
	userID := ownmw.UserID(r.Context())

	var req calculatedColumnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, &core.QueryError{Reason: "invalid request body: " + err.Error()})
		return
	}

	col, err := s.service.CreateCalculatedColumn(r.Context(), userID, req.UploadID, req.Name, req.Formula)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, col)
}

// handleUpdateCalculatedColumn replaces a definition's name and formula.
func (s *Server) handleUpdateCalculatedColumn(w http.ResponseWriter, r *http.Request) {
	userID := ownmw.UserID(r.Context())
	columnID, err := uuid.Parse(chi.URLParam(r, "columnID"))
	if err != nil {
		s.respondError(w, r, core.ErrNotFound)
		return
	}

	var req calculatedColumnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, &core.QueryError{Reason: "invalid request body: " + err.Error()})
		return
	}

	col, err := s.service.UpdateCalculatedColumn(r.Context(), userID, columnID, req.Name, req.Formula)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, col)
}

// handleDeleteCalculatedColumn removes a definition.
func (s *Server) handleDeleteCalculatedColumn(w http.ResponseWriter, r *http.Request) {
	userID := ownmw.UserID(r.Context())
	columnID, err := uuid.Parse(chi.URLParam(r, "columnID"))
	if err != nil {
		s.respondError(w, r, core.ErrNotFound)
		return
	}

	deleted, err := s.service.DeleteCalculatedColumn(r.Context(), userID, columnID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if !deleted {
		s.respondError(w, r, core.ErrNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
