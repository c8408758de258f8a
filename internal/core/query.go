package core

// query.go composes parameterized queries over stored rows: cross-upload
// (GetUserData) and single-upload (GetUploadData), each with filtering,
// sorting, and pagination.
//
// Every user-supplied value is a bound parameter, including the column name
// handed to the JSONB ->> extraction; nothing is interpolated into query
// text. The count query and the page query share the exact same predicate
// so totalCount is always consistent with the returned page.

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// numericCellPattern guards the numeric cast in gt/lt data-column filters so
// rows with non-numeric cells compare as NULL instead of failing the query.
const numericCellPattern = `^-?[0-9]+(\.[0-9]+)?$`

const dataRowColumns = `dr.id, dr.user_id, dr.upload_id, dr.row_index, dr.row_data, dr.uploaded_at`

// ParseFilters decodes a JSON filter payload. Malformed payloads and
// unknown operators are rejected with a QueryError before any query is
// constructed.
func ParseFilters(raw []byte) ([]Filter, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var filters []Filter
	if err := json.Unmarshal(raw, &filters); err != nil {
		return nil, &QueryError{Reason: fmt.Sprintf("unparseable filter payload: %v", err)}
	}
	for _, f := range filters {
		if f.Column == "" {
			return nil, &QueryError{Reason: "filter is missing a column"}
		}
		switch f.Operator {
		case OpEquals, OpGreater, OpLess, OpContains:
		default:
			return nil, &QueryError{Reason: fmt.Sprintf("unknown filter operator %q", f.Operator)}
		}
	}
	return filters, nil
}

// whereBuilder accumulates AND-combined conditions with an ordered,
// parallel parameter list.
type whereBuilder struct {
	conds []string
	args  []interface{}
}

// bind appends a parameter and returns its 1-based placeholder index.
func (b *whereBuilder) bind(v interface{}) int {
	b.args = append(b.args, v)
	return len(b.args)
}

func (b *whereBuilder) add(cond string) {
	b.conds = append(b.conds, cond)
}

// clause renders the WHERE clause (with leading space) and its parameters.
func (b *whereBuilder) clause() (string, []interface{}) {
	if len(b.conds) == 0 {
		return "", b.args
	}
	return " WHERE " + strings.Join(b.conds, " AND "), b.args
}

// nextIndex is the placeholder index the next bind would receive.
func (b *whereBuilder) nextIndex() int { return len(b.args) + 1 }

// applyFilter appends one filter's predicate.
//
// System columns (filename, uploaded_at) compare against metadata fields.
// Data columns go through JSONB extraction. scope controls the missing-column
// behavior: nil means cross-upload (rows whose upload lacks the column pass
// the filter unaffected); non-nil means single-upload (filters on undeclared
// columns are silently dropped).
func (b *whereBuilder) applyFilter(f Filter, scope *Upload) error {
	switch f.Column {
	case "filename":
		switch f.Operator {
		case OpEquals:
			b.add(fmt.Sprintf("u.filename = $%d", b.bind(f.Value)))
		case OpContains:
			b.add(fmt.Sprintf("u.filename ILIKE $%d", b.bind("%"+escapeLike(f.Value)+"%")))
		default:
			return &QueryError{Reason: fmt.Sprintf("operator %q not supported for filename", f.Operator)}
		}
		return nil

	case "uploaded_at":
		switch f.Operator {
		case OpGreater, OpLess:
			if !parsesAsTimestamp(f.Value) {
				return &QueryError{Reason: fmt.Sprintf("filter on uploaded_at needs a timestamp value, got %q", f.Value)}
			}
			op := ">"
			if f.Operator == OpLess {
				op = "<"
			}
			b.add(fmt.Sprintf("dr.uploaded_at %s $%d::timestamptz", op, b.bind(f.Value)))
		default:
			return &QueryError{Reason: fmt.Sprintf("operator %q not supported for uploaded_at", f.Operator)}
		}
		return nil
	}

	// Data column.
	if scope != nil && !scope.HasColumn(f.Column) {
		return nil
	}

	col := b.bind(f.Column)
	var cmp string
	switch f.Operator {
	case OpEquals:
		cmp = fmt.Sprintf("dr.row_data ->> $%d = $%d", col, b.bind(f.Value))
	case OpContains:
		cmp = fmt.Sprintf("dr.row_data ->> $%d ILIKE $%d", col, b.bind("%"+escapeLike(f.Value)+"%"))
	case OpGreater, OpLess:
		num, err := strconv.ParseFloat(f.Value, 64)
		if err != nil {
			return &QueryError{Reason: fmt.Sprintf("filter on %q needs a numeric value, got %q", f.Column, f.Value)}
		}
		op := ">"
		if f.Operator == OpLess {
			op = "<"
		}
		cmp = fmt.Sprintf(
			"(CASE WHEN dr.row_data ->> $%d ~ '%s' THEN (dr.row_data ->> $%d)::numeric END) %s $%d",
			col, numericCellPattern, col, op, b.bind(num),
		)
	}

	if scope == nil {
		// Cross-upload: only constrain rows whose upload declares the column.
		cmp = fmt.Sprintf("(NOT (u.column_names ? $%d) OR %s)", col, cmp)
	}
	b.add(cmp)
	return nil
}

// likeEscaper neutralizes LIKE metacharacters so a contains filter matches
// its value as a literal substring, never as a wildcard pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// parsesAsTimestamp reports whether a filter value parses under one of the
// accepted date/datetime layouts. Checked before binding so malformed input
// is rejected as a QueryError instead of failing at execution.
func parsesAsTimestamp(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// sortDirection normalizes a direction string against a default.
func sortDirection(dir, fallback string) string {
	switch strings.ToLower(dir) {
	case "asc":
		return "ASC"
	case "desc":
		return "DESC"
	default:
		return fallback
	}
}

// userDataOrderBy resolves the ORDER BY clause for cross-upload queries.
// Recognized keys: uploaded_at (default newest first) and filename; any
// other key falls back to row-index ordering.
func userDataOrderBy(sortBy, sortOrder string) string {
	switch sortBy {
	case "uploaded_at":
		return fmt.Sprintf("u.uploaded_at %s, dr.row_index ASC", sortDirection(sortOrder, "DESC"))
	case "filename":
		return fmt.Sprintf("u.filename %s, dr.row_index ASC", sortDirection(sortOrder, "ASC"))
	case "":
		return "u.uploaded_at DESC, dr.row_index ASC"
	default:
		return fmt.Sprintf("dr.row_index %s", sortDirection(sortOrder, "ASC"))
	}
}

// uploadDataOrderBy resolves the ORDER BY clause for single-upload queries.
// row_index sorts directly; a known column of the upload sorts via JSONB
// extraction; everything else falls back to row-index ascending.
func uploadDataOrderBy(b *whereBuilder, upload *Upload, sortBy, sortOrder string) string {
	switch {
	case sortBy == "row_index":
		return fmt.Sprintf("dr.row_index %s", sortDirection(sortOrder, "ASC"))
	case sortBy != "" && upload.HasColumn(sortBy):
		idx := b.bind(sortBy)
		return fmt.Sprintf("dr.row_data ->> $%d %s, dr.row_index ASC", idx, sortDirection(sortOrder, "ASC"))
	default:
		return "dr.row_index ASC"
	}
}

// GetUserData queries rows across all of the user's uploads with filtering,
// sorting, and 1-indexed pagination.
func (s *Service) GetUserData(ctx context.Context, userID int64, opts QueryOptions) (*DataPage, error) {
	b := &whereBuilder{}
	b.add(fmt.Sprintf("dr.user_id = $%d", b.bind(userID)))
	for _, f := range opts.Filters {
		if err := b.applyFilter(f, nil); err != nil {
			return nil, err
		}
	}

	orderBy := func(*whereBuilder) string {
		return userDataOrderBy(opts.SortBy, opts.SortOrder)
	}
	return s.runPagedQuery(ctx, b, orderBy, opts)
}

// GetUploadData queries rows of one upload, enforcing ownership first: a
// missing or foreign upload fails with ErrNotFound, which distinguishes
// "no such upload" from "no matching rows".
func (s *Service) GetUploadData(ctx context.Context, userID int64, uploadID uuid.UUID, opts QueryOptions) (*DataPage, error) {
	upload, err := s.GetUploadMetadata(ctx, uploadID, userID)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, ErrNotFound
	}

	b := &whereBuilder{}
	b.add(fmt.Sprintf("dr.user_id = $%d", b.bind(userID)))
	b.add(fmt.Sprintf("dr.upload_id = $%d", b.bind(uploadID)))
	for _, f := range opts.Filters {
		if err := b.applyFilter(f, upload); err != nil {
			return nil, err
		}
	}

	orderBy := func(b *whereBuilder) string {
		return uploadDataOrderBy(b, upload, opts.SortBy, opts.SortOrder)
	}
	return s.runPagedQuery(ctx, b, orderBy, opts)
}

// runPagedQuery executes the count and page queries over the same predicate
// and assembles the page. orderBy is resolved after the count runs because
// it may bind additional parameters the count query does not reference.
func (s *Service) runPagedQuery(ctx context.Context, b *whereBuilder, orderBy func(*whereBuilder) string, opts QueryOptions) (*DataPage, error) {
	where, countArgs := b.clause()

	countQuery := "SELECT COUNT(*) FROM data_rows dr JOIN uploads u ON dr.upload_id = u.id" + where
	var total int64
	if err := s.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, &StorageError{Op: "count rows", Cause: err}
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	offset := (page - 1) * limit

	order := orderBy(b)
	query := fmt.Sprintf(
		"SELECT %s FROM data_rows dr JOIN uploads u ON dr.upload_id = u.id%s ORDER BY %s LIMIT $%d OFFSET $%d",
		dataRowColumns, where, order, b.nextIndex(), b.nextIndex()+1,
	)
	args := append(b.args, limit, offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "query rows", Cause: err}
	}
	defer rows.Close()

	var result []DataRow
	for rows.Next() {
		dr, err := scanDataRow(rows)
		if err != nil {
			return nil, &StorageError{Op: "scan row", Cause: err}
		}
		result = append(result, *dr)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "query rows", Cause: err}
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	if totalPages < 1 {
		totalPages = 1
	}

	return &DataPage{
		Rows:       result,
		TotalCount: total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

// scanDataRow reads one data_rows row; row_data is stored as JSONB.
func scanDataRow(row pgx.Row) (*DataRow, error) {
	var dr DataRow
	var dataJSON []byte
	if err := row.Scan(&dr.ID, &dr.UserID, &dr.UploadID, &dr.RowIndex, &dataJSON, &dr.UploadedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(dataJSON, &dr.Data); err != nil {
		return nil, fmt.Errorf("decode row data: %w", err)
	}
	return &dr, nil
}
