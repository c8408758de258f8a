package core

// store.go persists uploads and their rows. Storage is all-or-nothing per
// upload: the metadata record and every data row are written inside a single
// transaction, batched per chunk, and any failure rolls the whole thing back.
// A reader never observes a partially-stored upload.

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DefaultPageSize is used when a caller passes a zero or negative limit.
var DefaultPageSize = 50

// StoreData persists a parsed CSV as one Upload plus one DataRow per data
// row, all inside a single transaction.
//
// The size ceiling is checked before the transaction opens, so capacity
// rejections have no side effects. Rows are written in fixed-size chunks,
// each chunk as one batched write, preserving every row's original index in
// the full sequence as its ordering key.
func (s *Service) StoreData(ctx context.Context, userID int64, filename string, parsed *ParsedCSV) (*StoreResult, error) {
	if err := s.chunker.ValidateSize(parsed.Rows); err != nil {
		return nil, err
	}

	uploadID := uuid.New()
	uploadedAt := time.Now().UTC()

	columnsJSON, err := json.Marshal(parsed.Headers)
	if err != nil {
		return nil, &StorageError{Op: "serialize column list", Cause: err}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, &StorageError{Op: "begin transaction", Cause: err}
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO uploads (id, user_id, filename, row_count, column_names, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uploadID, userID, filename, len(parsed.Rows), columnsJSON, uploadedAt,
	)
	if err != nil {
		return nil, &StorageError{Op: "insert upload metadata", Cause: err}
	}

	err = s.chunker.ProcessInChunks(ctx, parsed.Rows, func(ctx context.Context, chunk []Row, offset int) error {
		return insertChunk(ctx, tx, userID, uploadID, chunk, offset, uploadedAt)
	})
	if err != nil {
		var se *StorageError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, &StorageError{Op: "store rows", Cause: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &StorageError{Op: "commit upload", Cause: err}
	}

	return &StoreResult{UploadID: uploadID, RowCount: len(parsed.Rows)}, nil
}

// insertChunk writes one chunk of rows in a single batched round trip.
// offset is the chunk's position in the full row sequence; each row keeps
// its original index, not the batch-local one.
func insertChunk(ctx context.Context, tx pgx.Tx, userID int64, uploadID uuid.UUID, chunk []Row, offset int, uploadedAt time.Time) error {
	batch := &pgx.Batch{}
	for i, row := range chunk {
		rowJSON, err := json.Marshal(row)
		if err != nil {
			return &StorageError{Op: fmt.Sprintf("serialize row %d", offset+i), Cause: err}
		}
		batch.Queue(
			`INSERT INTO data_rows (id, user_id, upload_id, row_index, row_data, uploaded_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), userID, uploadID, offset+i, rowJSON, uploadedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return &StorageError{Op: fmt.Sprintf("insert row %d", offset+i), Cause: err}
		}
	}
	return results.Close()
}

// GetUploadMetadata returns the upload owned by userID, or nil when it does
// not exist or belongs to someone else.
func (s *Service) GetUploadMetadata(ctx context.Context, uploadID uuid.UUID, userID int64) (*Upload, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, user_id, filename, row_count, column_names, uploaded_at
		 FROM uploads WHERE id = $1 AND user_id = $2`,
		uploadID, userID,
	)

	upload, err := scanUpload(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "load upload metadata", Cause: err}
	}
	return upload, nil
}

// GetUserUploads returns the user's uploads, most recent first.
func (s *Service) GetUserUploads(ctx context.Context, userID int64, limit int) ([]Upload, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, filename, row_count, column_names, uploaded_at
		 FROM uploads WHERE user_id = $1
		 ORDER BY uploaded_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, &StorageError{Op: "list uploads", Cause: err}
	}
	defer rows.Close()

	var uploads []Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, &StorageError{Op: "scan upload", Cause: err}
		}
		uploads = append(uploads, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list uploads", Cause: err}
	}
	return uploads, nil
}

// DeleteUpload removes an upload, its rows, and calculated columns scoped to
// it, all in one transaction. Returns false with no side effects when the
// upload does not exist or is not owned by userID.
func (s *Service) DeleteUpload(ctx context.Context, uploadID uuid.UUID, userID int64) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, &StorageError{Op: "begin transaction", Cause: err}
	}
	defer tx.Rollback(ctx)

	var owned bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM uploads WHERE id = $1 AND user_id = $2)`,
		uploadID, userID,
	).Scan(&owned)
	if err != nil {
		return false, &StorageError{Op: "check upload ownership", Cause: err}
	}
	if !owned {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM data_rows WHERE upload_id = $1 AND user_id = $2`, uploadID, userID); err != nil {
		return false, &StorageError{Op: "delete data rows", Cause: err}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM calculated_columns WHERE upload_id = $1 AND user_id = $2`, uploadID, userID); err != nil {
		return false, &StorageError{Op: "delete calculated columns", Cause: err}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM uploads WHERE id = $1 AND user_id = $2`, uploadID, userID); err != nil {
		return false, &StorageError{Op: "delete upload", Cause: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, &StorageError{Op: "commit delete", Cause: err}
	}
	return true, nil
}

// GetDataRows is the ownership-checked paginated read over one upload,
// sorted but unfiltered.
func (s *Service) GetDataRows(ctx context.Context, uploadID uuid.UUID, userID int64, page, limit int, sortBy, sortOrder string) (*DataPage, error) {
	return s.GetUploadData(ctx, userID, uploadID, QueryOptions{
		Page:      page,
		Limit:     limit,
		SortBy:    sortBy,
		SortOrder: sortOrder,
	})
}

// GetUserStorageStats returns aggregate upload and row counts for a user.
func (s *Service) GetUserStorageStats(ctx context.Context, userID int64) (*StorageStats, error) {
	return s.GetDashboardStats(ctx, userID)
}

// scanUpload reads one uploads row; column_names is stored as a JSONB array.
func scanUpload(row pgx.Row) (*Upload, error) {
	var u Upload
	var columnsJSON []byte
	if err := row.Scan(&u.ID, &u.UserID, &u.Filename, &u.RowCount, &columnsJSON, &u.UploadedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(columnsJSON, &u.Columns); err != nil {
		return nil, fmt.Errorf("decode column list: %w", err)
	}
	return &u, nil
}
