package core

import (
	"errors"
	"strings"
	"testing"
)

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{
			name: "valid filters",
			raw:  `[{"column":"price","operator":"gt","value":"100"},{"column":"symbol","operator":"eq","value":"AAPL"}]`,
			want: 2,
		},
		{
			name: "empty payload",
			raw:  "",
			want: 0,
		},
		{
			name:    "malformed json",
			raw:     `[{"column":`,
			wantErr: true,
		},
		{
			name:    "missing column",
			raw:     `[{"operator":"eq","value":"x"}]`,
			wantErr: true,
		},
		{
			name:    "unknown operator",
			raw:     `[{"column":"a","operator":"between","value":"x"}]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filters, err := ParseFilters([]byte(tt.raw))
			if tt.wantErr {
				var qe *QueryError
				if !errors.As(err, &qe) {
					t.Fatalf("error = %v, want *QueryError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(filters) != tt.want {
				t.Errorf("got %d filters, want %d", len(filters), tt.want)
			}
		})
	}
}

func TestApplyFilter_SystemColumns(t *testing.T) {
	tests := []struct {
		name     string
		filter   Filter
		wantCond string
		wantArgs []interface{}
		wantErr  bool
	}{
		{
			name:     "filename equals",
			filter:   Filter{Column: "filename", Operator: OpEquals, Value: "trades.csv"},
			wantCond: "u.filename = $1",
			wantArgs: []interface{}{"trades.csv"},
		},
		{
			name:     "filename contains",
			filter:   Filter{Column: "filename", Operator: OpContains, Value: "trade"},
			wantCond: "u.filename ILIKE $1",
			wantArgs: []interface{}{"%trade%"},
		},
		{
			name:    "filename greater rejected",
			filter:  Filter{Column: "filename", Operator: OpGreater, Value: "x"},
			wantErr: true,
		},
		{
			name:     "uploaded_at after",
			filter:   Filter{Column: "uploaded_at", Operator: OpGreater, Value: "2024-01-01"},
			wantCond: "dr.uploaded_at > $1::timestamptz",
			wantArgs: []interface{}{"2024-01-01"},
		},
		{
			name:     "uploaded_at before",
			filter:   Filter{Column: "uploaded_at", Operator: OpLess, Value: "2024-06-01"},
			wantCond: "dr.uploaded_at < $1::timestamptz",
			wantArgs: []interface{}{"2024-06-01"},
		},
		{
			name:    "uploaded_at contains rejected",
			filter:  Filter{Column: "uploaded_at", Operator: OpContains, Value: "2024"},
			wantErr: true,
		},
		{
			name:     "uploaded_at accepts datetime values",
			filter:   Filter{Column: "uploaded_at", Operator: OpGreater, Value: "2024-01-01T00:00:00Z"},
			wantCond: "dr.uploaded_at > $1::timestamptz",
			wantArgs: []interface{}{"2024-01-01T00:00:00Z"},
		},
		{
			name:    "uploaded_at non-timestamp value rejected",
			filter:  Filter{Column: "uploaded_at", Operator: OpGreater, Value: "banana"},
			wantErr: true,
		},
		{
			name:    "uploaded_at partial timestamp rejected",
			filter:  Filter{Column: "uploaded_at", Operator: OpLess, Value: "2024-13"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &whereBuilder{}
			err := b.applyFilter(tt.filter, nil)
			if tt.wantErr {
				var qe *QueryError
				if !errors.As(err, &qe) {
					t.Fatalf("error = %v, want *QueryError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(b.conds) != 1 || b.conds[0] != tt.wantCond {
				t.Errorf("cond = %v, want [%s]", b.conds, tt.wantCond)
			}
			if len(b.args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", b.args, tt.wantArgs)
			}
			for i := range tt.wantArgs {
				if b.args[i] != tt.wantArgs[i] {
					t.Errorf("arg %d = %v, want %v", i, b.args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestApplyFilter_DataColumnCrossUpload(t *testing.T) {
	b := &whereBuilder{}
	if err := b.applyFilter(Filter{Column: "price", Operator: OpGreater, Value: "100"}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cond := b.conds[0]
	// Rows whose upload never declared the column must pass the filter.
	if !strings.Contains(cond, "NOT (u.column_names ? $1)") {
		t.Errorf("cross-upload filter must exempt uploads without the column: %s", cond)
	}
	// The numeric comparison must be guarded so text cells compare as NULL.
	if !strings.Contains(cond, "CASE WHEN dr.row_data ->> $1 ~ ") {
		t.Errorf("numeric comparison must be regex guarded: %s", cond)
	}
	if len(b.args) != 2 {
		t.Fatalf("args = %v, want column name and numeric value", b.args)
	}
	if b.args[0] != "price" {
		t.Errorf("column name must be a bound parameter, got %v", b.args[0])
	}
	if b.args[1] != float64(100) {
		t.Errorf("numeric value = %v, want 100 as float64", b.args[1])
	}
}

func TestApplyFilter_DataColumnSingleUpload(t *testing.T) {
	upload := &Upload{Columns: []string{"symbol", "price"}}

	t.Run("declared column", func(t *testing.T) {
		b := &whereBuilder{}
		if err := b.applyFilter(Filter{Column: "symbol", Operator: OpEquals, Value: "AAPL"}, upload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "dr.row_data ->> $1 = $2"
		if len(b.conds) != 1 || b.conds[0] != want {
			t.Errorf("cond = %v, want [%s]", b.conds, want)
		}
		if !strings.Contains(b.conds[0], "->> $") {
			t.Errorf("column name must be parameterized: %s", b.conds[0])
		}
	})

	t.Run("undeclared column silently dropped", func(t *testing.T) {
		b := &whereBuilder{}
		if err := b.applyFilter(Filter{Column: "ghost", Operator: OpEquals, Value: "x"}, upload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(b.conds) != 0 || len(b.args) != 0 {
			t.Errorf("filter on undeclared column must add nothing, got conds=%v args=%v", b.conds, b.args)
		}
	})

	t.Run("contains uses ILIKE with wrapped value", func(t *testing.T) {
		b := &whereBuilder{}
		if err := b.applyFilter(Filter{Column: "symbol", Operator: OpContains, Value: "AA"}, upload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if b.conds[0] != "dr.row_data ->> $1 ILIKE $2" {
			t.Errorf("cond = %s", b.conds[0])
		}
		if b.args[1] != "%AA%" {
			t.Errorf("value = %v, want %%AA%%", b.args[1])
		}
	})

	t.Run("contains escapes pattern metacharacters", func(t *testing.T) {
		b := &whereBuilder{}
		if err := b.applyFilter(Filter{Column: "symbol", Operator: OpContains, Value: `50%_a\b`}, upload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := `%50\%\_a\\b%`
		if b.args[1] != want {
			t.Errorf("bound value = %q, want %q (metacharacters escaped)", b.args[1], want)
		}
	})

	t.Run("non-numeric value for gt rejected", func(t *testing.T) {
		b := &whereBuilder{}
		err := b.applyFilter(Filter{Column: "price", Operator: OpGreater, Value: "expensive"}, upload)
		var qe *QueryError
		if !errors.As(err, &qe) {
			t.Fatalf("error = %v, want *QueryError", err)
		}
	})
}

func TestWhereBuilder_Clause(t *testing.T) {
	b := &whereBuilder{}
	if clause, _ := b.clause(); clause != "" {
		t.Errorf("empty builder clause = %q, want empty", clause)
	}

	b.add("dr.user_id = $1")
	b.bind(int64(7))
	b.add("u.filename = $2")
	b.bind("trades.csv")

	clause, args := b.clause()
	want := " WHERE dr.user_id = $1 AND u.filename = $2"
	if clause != want {
		t.Errorf("clause = %q, want %q", clause, want)
	}
	if len(args) != 2 {
		t.Errorf("args = %v, want 2 entries", args)
	}
	if b.nextIndex() != 3 {
		t.Errorf("nextIndex = %d, want 3", b.nextIndex())
	}
}

func TestUserDataOrderBy(t *testing.T) {
	tests := []struct {
		name      string
		sortBy    string
		sortOrder string
		want      string
	}{
		{"default newest first", "", "", "u.uploaded_at DESC, dr.row_index ASC"},
		{"uploaded_at ascending", "uploaded_at", "asc", "u.uploaded_at ASC, dr.row_index ASC"},
		{"filename default", "filename", "", "u.filename ASC, dr.row_index ASC"},
		{"filename descending", "filename", "desc", "u.filename DESC, dr.row_index ASC"},
		{"unknown key falls back to row index", "price", "desc", "dr.row_index DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := userDataOrderBy(tt.sortBy, tt.sortOrder); got != tt.want {
				t.Errorf("userDataOrderBy(%q, %q) = %q, want %q", tt.sortBy, tt.sortOrder, got, tt.want)
			}
		})
	}
}

func TestUploadDataOrderBy(t *testing.T) {
	upload := &Upload{Columns: []string{"symbol", "price"}}

	t.Run("row_index direct", func(t *testing.T) {
		b := &whereBuilder{}
		if got := uploadDataOrderBy(b, upload, "row_index", "desc"); got != "dr.row_index DESC" {
			t.Errorf("got %q", got)
		}
		if len(b.args) != 0 {
			t.Errorf("row_index sort must not bind parameters, got %v", b.args)
		}
	})

	t.Run("declared column binds a parameter", func(t *testing.T) {
		b := &whereBuilder{}
		got := uploadDataOrderBy(b, upload, "price", "desc")
		if got != "dr.row_data ->> $1 DESC, dr.row_index ASC" {
			t.Errorf("got %q", got)
		}
		if len(b.args) != 1 || b.args[0] != "price" {
			t.Errorf("sort column must be bound, args = %v", b.args)
		}
	})

	t.Run("undeclared column falls back", func(t *testing.T) {
		b := &whereBuilder{}
		if got := uploadDataOrderBy(b, upload, "ghost", "asc"); got != "dr.row_index ASC" {
			t.Errorf("got %q", got)
		}
		if len(b.args) != 0 {
			t.Errorf("fallback must not bind parameters, got %v", b.args)
		}
	})
}

func TestSortDirection(t *testing.T) {
	tests := []struct {
		dir, fallback, want string
	}{
		{"asc", "DESC", "ASC"},
		{"ASC", "DESC", "ASC"},
		{"desc", "ASC", "DESC"},
		{"", "DESC", "DESC"},
		{"sideways", "ASC", "ASC"},
	}
	for _, tt := range tests {
		if got := sortDirection(tt.dir, tt.fallback); got != tt.want {
			t.Errorf("sortDirection(%q, %q) = %q, want %q", tt.dir, tt.fallback, got, tt.want)
		}
	}
}
