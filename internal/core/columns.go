package core

// columns.go derives cross-upload column catalogs and dashboard aggregates.
// ColumnInfo is recomputed on demand from sampled row values, never stored.

import (
	"context"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// columnSampleWindow is how many leading cells are scanned per column when
// deriving type and nullability. At most InferSampleSize non-null values
// feed the inferencer.
var columnSampleWindow = 50

// GetColumnInfo returns the column catalog for one upload (ownership
// checked) or across all of the user's uploads, sorted by column name.
//
// Column names are unioned and deduplicated across the considered uploads;
// the first upload declaring a column serves as its sample source. Sampling
// failures degrade that column to text rather than failing the request.
func (s *Service) GetColumnInfo(ctx context.Context, userID int64, uploadID *uuid.UUID) ([]ColumnInfo, error) {
	var uploads []Upload
	if uploadID != nil {
		upload, err := s.GetUploadMetadata(ctx, *uploadID, userID)
		if err != nil {
			return nil, err
		}
		if upload == nil {
			return nil, ErrNotFound
		}
		uploads = []Upload{*upload}
	} else {
		var err error
		uploads, err = s.listAllUploads(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	// Union columns; remember which upload first declared each one.
	sampleSource := make(map[string]uuid.UUID)
	var names []string
	for _, u := range uploads {
		for _, col := range u.Columns {
			if _, seen := sampleSource[col]; !seen {
				sampleSource[col] = u.ID
				names = append(names, col)
			}
		}
	}

	infos := make([]ColumnInfo, 0, len(names))
	for _, name := range names {
		samples, sawNull, err := s.sampleColumn(ctx, sampleSource[name], userID, name)
		if err != nil {
			// Degrade to text instead of failing the whole catalog.
			infos = append(infos, ColumnInfo{Name: name, Type: TypeText, Nullable: true})
			continue
		}
		infos = append(infos, ColumnInfo{
			Name:     name,
			Type:     InferColumnType(samples),
			Nullable: sawNull,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// sampleColumn scans the leading cells of one column in one upload,
// returning up to InferSampleSize non-null values plus whether any null
// was seen inside the window.
func (s *Service) sampleColumn(ctx context.Context, uploadID uuid.UUID, userID int64, column string) ([]string, bool, error) {
	rows, err := s.db.Query(ctx,
		`SELECT dr.row_data ->> $3
		 FROM data_rows dr
		 WHERE dr.upload_id = $1 AND dr.user_id = $2
		 ORDER BY dr.row_index ASC
		 LIMIT $4`,
		uploadID, userID, column, columnSampleWindow,
	)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var samples []string
	sawNull := false
	for rows.Next() {
		var v *string
		if err := rows.Scan(&v); err != nil {
			return nil, false, err
		}
		if v == nil {
			sawNull = true
			continue
		}
		if len(samples) < InferSampleSize {
			samples = append(samples, *v)
		}
	}
	return samples, sawNull, rows.Err()
}

// GetDashboardStats aggregates a user's stored data: upload count, total
// rows, last upload timestamp (nil when none), and distinct column count.
func (s *Service) GetDashboardStats(ctx context.Context, userID int64) (*StorageStats, error) {
	stats := &StorageStats{}
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(row_count), 0), MAX(uploaded_at)
		 FROM uploads WHERE user_id = $1`,
		userID,
	).Scan(&stats.UploadCount, &stats.TotalRows, &stats.LastUploadedAt)
	if err != nil {
		return nil, &StorageError{Op: "aggregate uploads", Cause: err}
	}

	rows, err := s.db.Query(ctx, `SELECT column_names FROM uploads WHERE user_id = $1`, userID)
	if err != nil {
		return nil, &StorageError{Op: "load column lists", Cause: err}
	}
	defer rows.Close()

	distinct := make(map[string]struct{})
	for rows.Next() {
		var columnsJSON []byte
		if err := rows.Scan(&columnsJSON); err != nil {
			return nil, &StorageError{Op: "scan column list", Cause: err}
		}
		var cols []string
		if err := json.Unmarshal(columnsJSON, &cols); err != nil {
			return nil, &StorageError{Op: "decode column list", Cause: err}
		}
		for _, c := range cols {
			distinct[c] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "load column lists", Cause: err}
	}

	stats.DistinctCols = len(distinct)
	return stats, nil
}

// listAllUploads loads every upload of a user, newest first.
func (s *Service) listAllUploads(ctx context.Context, userID int64) ([]Upload, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, filename, row_count, column_names, uploaded_at
		 FROM uploads WHERE user_id = $1
		 ORDER BY uploaded_at DESC`,
		userID,
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
	return uploads, rows.Err()
}
