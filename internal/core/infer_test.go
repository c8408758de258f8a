package core

import "testing"

func TestInferColumnType(t *testing.T) {
	tests := []struct {
		name    string
		samples []string
		want    ColumnType
	}{
		{
			name:    "iso dates",
			samples: []string{"2024-01-01", "2024-01-02"},
			want:    TypeDate,
		},
		{
			name:    "slash dates",
			samples: []string{"1/2/2024", "12/31/2023"},
			want:    TypeDate,
		},
		{
			name:    "iso datetimes",
			samples: []string{"2024-01-01T09:30:00", "2024-06-15 17:00:00"},
			want:    TypeDate,
		},
		{
			name:    "integers",
			samples: []string{"1", "2", "3"},
			want:    TypeInteger,
		},
		{
			name:    "negative integers",
			samples: []string{"-5", "0", "42"},
			want:    TypeInteger,
		},
		{
			name:    "decimals",
			samples: []string{"1.5", "2.0"},
			want:    TypeDecimal,
		},
		{
			name:    "decimal without leading digit",
			samples: []string{".5", "-0.25"},
			want:    TypeDecimal,
		},
		{
			name:    "mixed integer and decimal falls to text",
			samples: []string{"1", "2.5"},
			want:    TypeText,
		},
		{
			name:    "plain text",
			samples: []string{"AAPL", "MSFT"},
			want:    TypeText,
		},
		{
			name:    "one stray text value poisons numerics",
			samples: []string{"1", "2", "n/a"},
			want:    TypeText,
		},
		{
			name:    "date shaped but impossible calendar date",
			samples: []string{"2024-13-45"},
			want:    TypeText,
		},
		{
			name:    "year out of plausible range",
			samples: []string{"1600-01-01"},
			want:    TypeText,
		},
		{
			name:    "no samples",
			samples: nil,
			want:    TypeText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferColumnType(tt.samples); got != tt.want {
				t.Errorf("InferColumnType(%v) = %q, want %q", tt.samples, got, tt.want)
			}
		})
	}
}

func TestInferColumnType_Deterministic(t *testing.T) {
	samples := []string{"2024-01-01", "2024-01-02", "2024-01-03"}
	first := InferColumnType(samples)
	for i := 0; i < 10; i++ {
		if got := InferColumnType(samples); got != first {
			t.Fatalf("classification changed between runs: %q then %q", first, got)
		}
	}
}

func TestInferColumnType_SampleWindow(t *testing.T) {
	// A text value beyond the sample window must not affect the result.
	samples := make([]string, InferSampleSize+1)
	for i := range samples {
		samples[i] = "7"
	}
	samples[InferSampleSize] = "not a number"

	if got := InferColumnType(samples); got != TypeInteger {
		t.Errorf("value outside sample window changed classification to %q", got)
	}
}

func TestSampleColumn_SkipsNulls(t *testing.T) {
	rows := []Row{
		{"a": NullCell},
		{"a": TextCell("x")},
		{"a": NullCell},
		{"a": TextCell("y")},
	}

	samples := SampleColumn(rows, "a", 10)
	if len(samples) != 2 || samples[0] != "x" || samples[1] != "y" {
		t.Errorf("SampleColumn = %v, want [x y]", samples)
	}
}

func TestSampleColumn_StopsAtMax(t *testing.T) {
	rows := make([]Row, 20)
	for i := range rows {
		rows[i] = Row{"a": TextCell("v")}
	}
	if got := len(SampleColumn(rows, "a", 5)); got != 5 {
		t.Errorf("got %d samples, want 5", got)
	}
}

func TestInferTypes_AllColumns(t *testing.T) {
	p := &ParsedCSV{
		Headers: []string{"symbol", "price", "traded_on"},
		Rows: []Row{
			{"symbol": TextCell("AAPL"), "price": TextCell("150.25"), "traded_on": TextCell("2024-01-02")},
			{"symbol": TextCell("MSFT"), "price": TextCell("300.10"), "traded_on": TextCell("2024-01-03")},
		},
	}

	types := InferTypes(p)
	want := map[string]ColumnType{
		"symbol":    TypeText,
		"price":     TypeDecimal,
		"traded_on": TypeDate,
	}
	for col, wt := range want {
		if types[col] != wt {
			t.Errorf("column %q = %q, want %q", col, types[col], wt)
		}
	}
}
