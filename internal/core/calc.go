package core

// calc.go manages user-defined calculated columns: formulas over existing
// column names, evaluated at display time. Stored row content is never
// mutated; evaluation annotates query results only.
//
// Formulas use govaluate syntax; column names containing spaces are
// referenced as [column name].

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/casbin/govaluate"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateCalculatedColumn validates the formula and stores the definition.
// uploadID nil means the column applies across all of the user's uploads.
func (s *Service) CreateCalculatedColumn(ctx context.Context, userID int64, uploadID *uuid.UUID, name, formula string) (*CalculatedColumn, error) {
	if name == "" {
		return nil, &QueryError{Reason: "calculated column needs a name"}
	}
	if _, err := govaluate.NewEvaluableExpression(formula); err != nil {
		return nil, &QueryError{Reason: fmt.Sprintf("invalid formula: %v", err)}
	}

	if uploadID != nil {
		upload, err := s.GetUploadMetadata(ctx, *uploadID, userID)
		if err != nil {
			return nil, err
		}
		if upload == nil {
			return nil, ErrNotFound
		}
	}

	col := &CalculatedColumn{
		ID:        uuid.New(),
		UserID:    userID,
		UploadID:  uploadID,
		Name:      name,
		Formula:   formula,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO calculated_columns (id, user_id, upload_id, column_name, formula, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		col.ID, col.UserID, col.UploadID, col.Name, col.Formula, col.CreatedAt,
	)
	if err != nil {
		return nil, &StorageError{Op: "insert calculated column", Cause: err}
	}
	return col, nil
}

// GetCalculatedColumns lists the user's calculated columns. When uploadID is
// given, upload-scoped columns for that upload AND cross-upload columns are
// returned; otherwise everything.
func (s *Service) GetCalculatedColumns(ctx context.Context, userID int64, uploadID *uuid.UUID) ([]CalculatedColumn, error) {
	query := `SELECT id, user_id, upload_id, column_name, formula, created_at
	          FROM calculated_columns WHERE user_id = $1`
	args := []interface{}{userID}
	if uploadID != nil {
		query += ` AND (upload_id = $2 OR upload_id IS NULL)`
		args = append(args, *uploadID)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "list calculated columns", Cause: err}
	}
	defer rows.Close()

	var cols []CalculatedColumn
	for rows.Next() {
		var c CalculatedColumn
		if err := rows.Scan(&c.ID, &c.UserID, &c.UploadID, &c.Name, &c.Formula, &c.CreatedAt); err != nil {
			return nil, &StorageError{Op: "scan calculated column", Cause: err}
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// UpdateCalculatedColumn replaces the name and formula of an existing
// definition owned by userID.
func (s *Service) UpdateCalculatedColumn(ctx context.Context, userID int64, id uuid.UUID, name, formula string) (*CalculatedColumn, error) {
	if name == "" {
		return nil, &QueryError{Reason: "calculated column needs a name"}
	}
	if _, err := govaluate.NewEvaluableExpression(formula); err != nil {
		return nil, &QueryError{Reason: fmt.Sprintf("invalid formula: %v", err)}
	}

	row := s.db.QueryRow(ctx,
		`UPDATE calculated_columns SET column_name = $3, formula = $4
		 WHERE id = $1 AND user_id = $2
		 RETURNING id, user_id, upload_id, column_name, formula, created_at`,
		id, userID, name, formula,
	)

	var c CalculatedColumn
	err := row.Scan(&c.ID, &c.UserID, &c.UploadID, &c.Name, &c.Formula, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "update calculated column", Cause: err}
	}
	return &c, nil
}

// DeleteCalculatedColumn removes a definition owned by userID. Returns
// false when nothing matched.
func (s *Service) DeleteCalculatedColumn(ctx context.Context, userID int64, id uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM calculated_columns WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, &StorageError{Op: "delete calculated column", Cause: err}
	}
	return tag.RowsAffected() > 0, nil
}

// EvaluateFormula evaluates a formula against one row's cells. Cells that
// parse as numbers are bound as float64 so arithmetic works on CSV text;
// null cells bind as nil. A formula that fails to evaluate for a row yields
// a null cell rather than an error: a calculated value is a display-time
// derivation and one bad row must not break the page.
func EvaluateFormula(formula string, row Row) Cell {
	expr, err := govaluate.NewEvaluableExpression(formula)
	if err != nil {
		return NullCell
	}

	params := make(map[string]interface{}, len(row))
	for name, cell := range row {
		params[name] = cellParameter(cell)
	}

	result, err := expr.Evaluate(params)
	if err != nil {
		return NullCell
	}

	switch v := result.(type) {
	case float64:
		return NumberCell(v)
	case bool:
		return TextCell(strconv.FormatBool(v))
	case string:
		return TextCell(v)
	default:
		return NullCell
	}
}

// ApplyCalculatedColumns annotates every row of a page with the evaluated
// calculated columns. Stored data is untouched; only the in-memory page
// gains cells.
func ApplyCalculatedColumns(page *DataPage, cols []CalculatedColumn) {
	if len(cols) == 0 {
		return
	}
	for i := range page.Rows {
		for _, col := range cols {
			page.Rows[i].Data[col.Name] = EvaluateFormula(col.Formula, page.Rows[i].Data)
		}
	}
}

func cellParameter(c Cell) interface{} {
	switch c.Kind {
	case CellNumber:
		return c.Number
	case CellText:
		if f, err := strconv.ParseFloat(c.Text, 64); err == nil {
			return f
		}
		return c.Text
	default:
		return nil
	}
}
