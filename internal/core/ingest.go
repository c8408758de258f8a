package core

// ingest.go runs the full ingestion pipeline for one uploaded file:
// parse -> validate -> infer (metadata only) -> chunked transactional store.

import (
	"context"
	"log/slog"
	"time"
)

// IngestResult is the outcome of a successful ingestion. ColumnTypes is the
// advisory classification of each column, returned as a formatting hint.
type IngestResult struct {
	UploadID    string                `json:"uploadId"`
	RowCount    int                   `json:"rowCount"`
	Columns     []string              `json:"columns"`
	ColumnTypes map[string]ColumnType `json:"columnTypes"`
}

// Ingest parses, validates, and stores one uploaded CSV file.
//
// Failures before the store step have no side effects: a ParseError,
// StructuralValidationError, or CapacityError leaves nothing behind. The
// store step itself is all-or-nothing.
func (s *Service) Ingest(ctx context.Context, userID int64, filename string, raw []byte) (*IngestResult, error) {
	start := time.Now()

	parsed, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	if err := ValidateStructure(parsed).Err(); err != nil {
		return nil, err
	}

	types := InferTypes(parsed)

	result, err := s.StoreData(ctx, userID, filename, parsed)
	if err != nil {
		return nil, err
	}

	slog.Info("upload ingested",
		"upload_id", result.UploadID,
		"user_id", userID,
		"filename", filename,
		"rows", result.RowCount,
		"columns", len(parsed.Headers),
		"duration", time.Since(start),
	)

	return &IngestResult{
		UploadID:    result.UploadID.String(),
		RowCount:    result.RowCount,
		Columns:     parsed.Headers,
		ColumnTypes: types,
	}, nil
}
