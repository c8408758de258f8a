package web

// handlers_data.go covers the query endpoints: paginated, filtered, sorted
// reads across all uploads or within one upload.

import (
	"net/http"
	"strconv"

	"github.com/datasheet-app/datasheet/internal/core"
	ownmw "github.com/datasheet-app/datasheet/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// queryOptions decodes common filter/sort/pagination query parameters.
// Filters arrive as a JSON array in the "filters" parameter.
func queryOptions(r *http.Request) (core.QueryOptions, error) {
	filters, err := core.ParseFilters([]byte(r.URL.Query().Get("filters")))
	if err != nil {
		return core.QueryOptions{}, err
	}
	return core.QueryOptions{
		Filters:   filters,
		SortBy:    r.URL.Query().Get("sortBy"),
		SortOrder: r.URL.Query().Get("sortOrder"),
		Page:      queryInt(r, "page", 1),
		Limit:     queryInt(r, "limit", 0),
	}, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// handleUserData queries rows across all of the user's uploads.
func (s *Server) handleUserData(w http.ResponseWriter, r *http.Request) {
	userID := ownmw.UserID(r.Context())

	opts, err := queryOptions(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	page, err := s.service.GetUserData(r.Context(), userID, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// handleUploadData queries rows within one upload and annotates them with
// the user's calculated columns for that upload.
func (s *Server) handleUploadData(w http.ResponseWriter, r *http.Request) {
	userID := ownmw.UserID(r.Context())
	uploadID, err := uuid.Parse(chi.URLParam(r, "uploadID"))
	if err != nil {
		s.respondError(w, r, core.ErrNotFound)
		return
	}

	opts, err := queryOptions(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	page, err := s.service.GetUploadData(r.Context(), userID, uploadID, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	calcCols, err := s.service.GetCalculatedColumns(r.Context(), userID, &uploadID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	core.ApplyCalculatedColumns(page, calcCols)

	respondJSON(w, http.StatusOK, page)
}
