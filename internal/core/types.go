// Package core provides the business logic for CSV ingestion and querying.
// This package has no HTTP dependencies and can be used by any frontend.
package core

import (
	"context"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx (where Begin opens a savepoint).
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// CellKind tags the value stored in a Cell.
type CellKind int

const (
	CellNull CellKind = iota
	CellText
	CellNumber
)

// Cell is one CSV cell as a tagged value union: text, number, or null.
// Row payloads never contain nested structures.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
}

// NullCell is the canonical null cell (trimmed-empty input).
var NullCell = Cell{Kind: CellNull}

// TextCell returns a text-valued cell.
func TextCell(s string) Cell { return Cell{Kind: CellText, Text: s} }

// NumberCell returns a number-valued cell.
func NumberCell(f float64) Cell { return Cell{Kind: CellNumber, Number: f} }

// IsNull reports whether the cell holds no value.
func (c Cell) IsNull() bool { return c.Kind == CellNull }

// String returns the cell rendered as a string; null renders as "".
func (c Cell) String() string {
	switch c.Kind {
	case CellText:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON encodes the cell as a bare JSON string, number, or null.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellText:
		return json.Marshal(c.Text)
	case CellNumber:
		return json.Marshal(c.Number)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a bare JSON string, number, or null back into a cell.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*c = NullCell
	case float64:
		*c = NumberCell(t)
	case string:
		*c = TextCell(t)
	default:
		// Structured values never come from the parser; flatten anything
		// hand-edited to its text form rather than failing the read.
		raw, _ := json.Marshal(t)
		*c = TextCell(string(raw))
	}
	return nil
}

// Row is one CSV row as a mapping of header name to cell value.
// Ordering is carried by the companion header slice, not the map.
type Row map[string]Cell

// ParsedCSV is the parser's output: ordered headers plus ordered rows.
type ParsedCSV struct {
	Headers []string
	Rows    []Row
}

// ColumnType is the advisory classification produced by the inferencer.
type ColumnType string

const (
	TypeDate    ColumnType = "date"
	TypeInteger ColumnType = "integer"
	TypeDecimal ColumnType = "decimal"
	TypeText    ColumnType = "text"
)

// Upload is the metadata record for one ingested CSV file.
// Immutable after creation except by deletion.
type Upload struct {
	ID         uuid.UUID `json:"id"`
	UserID     int64     `json:"userId"`
	Filename   string    `json:"filename"`
	RowCount   int       `json:"rowCount"`
	Columns    []string  `json:"columns"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// HasColumn reports whether the upload declared the named column.
func (u *Upload) HasColumn(name string) bool {
	for _, c := range u.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// DataRow is one persisted row of an upload's content plus its stable
// zero-based position within the upload.
type DataRow struct {
	ID         uuid.UUID `json:"id"`
	UserID     int64     `json:"userId"`
	UploadID   uuid.UUID `json:"uploadId"`
	RowIndex   int       `json:"rowIndex"`
	Data       Row       `json:"data"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// CalculatedColumn is a user-defined formula over existing columns,
// evaluated at display time; it never mutates stored rows.
type CalculatedColumn struct {
	ID        uuid.UUID  `json:"id"`
	UserID    int64      `json:"userId"`
	UploadID  *uuid.UUID `json:"uploadId,omitempty"` // nil = applies across uploads
	Name      string     `json:"name"`
	Formula   string     `json:"formula"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ColumnInfo describes one column derived across a user's uploads.
// Recomputed on demand, never persisted.
type ColumnInfo struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable"`
}

// StoreResult is returned by StoreData on success.
type StoreResult struct {
	UploadID uuid.UUID `json:"uploadId"`
	RowCount int       `json:"rowCount"`
}

// StorageStats aggregates a user's stored data for the dashboard.
type StorageStats struct {
	UploadCount    int64      `json:"uploadCount"`
	TotalRows      int64      `json:"totalRows"`
	LastUploadedAt *time.Time `json:"lastUploadedAt,omitempty"`
	DistinctCols   int        `json:"distinctColumns"`
}

// FilterOperator represents a comparison operator for column filters.
type FilterOperator string

const (
	OpEquals   FilterOperator = "eq"
	OpGreater  FilterOperator = "gt"
	OpLess     FilterOperator = "lt"
	OpContains FilterOperator = "contains"
)

// Filter is a single filter condition, combined with AND logic.
type Filter struct {
	Column   string         `json:"column"`
	Operator FilterOperator `json:"operator"`
	Value    string         `json:"value"`
}

// QueryOptions carries filter, sort, and pagination settings for reads.
// Page is 1-indexed; Limit falls back to DefaultPageSize when zero.
type QueryOptions struct {
	Filters   []Filter
	SortBy    string
	SortOrder string // "asc" or "desc"
	Page      int
	Limit     int
}

// DataPage is one page of query results. TotalCount is computed with the
// same predicate as the page so callers can trust it for pagination.
type DataPage struct {
	Rows       []DataRow `json:"rows"`
	TotalCount int64     `json:"totalCount"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	TotalPages int       `json:"totalPages"`
}
