package web

// handlers_upload.go covers the ingestion endpoints: uploading a CSV and
// managing the resulting upload records.

import (
	"context"
	"io"
	"net/http"

	"github.com/datasheet-app/datasheet/internal/core"
	ownmw "github.com/datasheet-app/datasheet/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// handleUpload ingests one CSV file from a multipart form.
//
// The ingest slot is acquired first so concurrent uploads cannot blow the
// memory ceiling; the store attempt runs under the explicit retry wrapper,
// which only retries transient store-busy failures.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	userID := ownmw.UserID(r.Context())

	if err := r.ParseMultipartForm(s.cfg.Upload.MaxFileSize); err != nil {
		s.respondError(w, r, &core.QueryError{Reason: "invalid multipart form: " + err.Error()})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, &core.QueryError{Reason: "missing file field"})
		return
	}
	defer file.Close()

	if header.Size > s.cfg.Upload.MaxFileSize {
		s.respondError(w, r, &core.CapacityError{Reason: "file exceeds maximum upload size"})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(file, s.cfg.Upload.MaxFileSize+1))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if int64(len(raw)) > s.cfg.Upload.MaxFileSize {
		s.respondError(w, r, &core.CapacityError{Reason: "file exceeds maximum upload size"})
		return
	}

	if err := s.service.Limiter().Acquire(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.service.Limiter().Release()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()

	result, err := core.WithRetry(ctx, core.DefaultStoragePolicy(),
		func(ctx context.Context) (*core.IngestResult, error) {
			return s.service.Ingest(ctx, userID, header.Filename, raw)
		})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// handleListUploads returns the user's uploads, most recent first.
func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	userID := ownmw.UserID(r.Context())
	limit := queryInt(r, "limit", 50)

	uploads, err := s.service.GetUserUploads(r.Context(), userID, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if uploads == nil {
		uploads = []core.Upload{}
	}
	respondJSON(w, http.StatusOK, uploads)
}

// handleGetUpload returns one upload's metadata.
func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	userID := ownmw.UserID(r.Context())
	uploadID, err := uuid.Parse(chi.URLParam(r, "uploadID"))
	if err != nil {
		s.respondError(w, r, core.ErrNotFound)
		return
	}

	upload, err := s.service.GetUploadMetadata(r.Context(), uploadID, userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if upload == nil {
		s.respondError(w, r, core.ErrNotFound)
		return
	}
	respondJSON(w, http.StatusOK, upload)
}

// handleDeleteUpload removes an upload with its rows and scoped calculated
// columns.
func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	userID := ownmw.UserID(r.Context())
	uploadID, err := uuid.Parse(chi.URLParam(r, "uploadID"))
	if err != nil {
		s.respondError(w, r, core.ErrNotFound)
		return
	}

	deleted, err := s.service.DeleteUpload(r.Context(), uploadID, userID)
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
