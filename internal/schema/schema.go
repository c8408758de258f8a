// Package schema owns the DDL for the datasheet tables and applies it at
// startup. Row payloads are semi-structured JSONB; the parent-child
// invariant between uploads and data_rows is enforced by the storage writer
// at write time, so data_rows carries no foreign key constraint.
package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS uploads (
		id           UUID PRIMARY KEY,
		user_id      BIGINT NOT NULL,
		filename     TEXT NOT NULL,
		row_count    INTEGER NOT NULL,
		column_names JSONB NOT NULL,
		uploaded_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_uploads_user_uploaded
		ON uploads (user_id, uploaded_at DESC)`,

	`CREATE TABLE IF NOT EXISTS data_rows (
		id          UUID PRIMARY KEY,
		user_id     BIGINT NOT NULL,
		upload_id   UUID NOT NULL,
		row_index   INTEGER NOT NULL,
		row_data    JSONB NOT NULL,
		uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (upload_id, row_index)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_data_rows_user
		ON data_rows (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_data_rows_upload_index
		ON data_rows (upload_id, row_index)`,

	`CREATE TABLE IF NOT EXISTS calculated_columns (
		id          UUID PRIMARY KEY,
		user_id     BIGINT NOT NULL,
		upload_id   UUID,
		column_name TEXT NOT NULL,
		formula     TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_calculated_columns_user
		ON calculated_columns (user_id)`,
}

// Ensure creates the tables and indexes if they do not exist.
func Ensure(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
