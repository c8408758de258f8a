package core

// infer.go classifies columns by sampling early values. The classification
// is advisory (display and formatting hints); stored cells are never coerced.

import (
	"regexp"
	"time"
)

// InferSampleSize is how many non-null values are sampled per column.
var InferSampleSize = 10

// Date shapes accepted by the inferencer. Order does not matter here; every
// sampled value must match one shape AND parse to a real calendar date.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),                          // ISO date
	regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`),                      // slash-separated
	regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{4}$`),                      // dash-separated
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}(:\d{2})?.*$`), // ISO datetime
}

var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"1-2-2006",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.RFC3339,
}

var (
	integerPattern = regexp.MustCompile(`^-?\d+$`)
	decimalPattern = regexp.MustCompile(`^-?\d*\.\d+$`)
)

// InferColumnType classifies a column from its sampled non-null values.
//
// The date check runs before the numeric checks so date-shaped strings are
// never misclassified as integers. A column with no samples is text.
func InferColumnType(samples []string) ColumnType {
	if len(samples) == 0 {
		return TypeText
	}
	if len(samples) > InferSampleSize {
		samples = samples[:InferSampleSize]
	}

	if allMatch(samples, looksLikeDate) {
		return TypeDate
	}
	if allMatch(samples, integerPattern.MatchString) {
		return TypeInteger
	}
	if allMatch(samples, decimalPattern.MatchString) {
		return TypeDecimal
	}
	return TypeText
}

// InferTypes classifies every column of a parsed CSV, sampling the first
// InferSampleSize non-null values per column.
func InferTypes(p *ParsedCSV) map[string]ColumnType {
	types := make(map[string]ColumnType, len(p.Headers))
	for _, header := range p.Headers {
		types[header] = InferColumnType(SampleColumn(p.Rows, header, InferSampleSize))
	}
	return types
}

// SampleColumn collects up to max non-null values for one column, in row order.
func SampleColumn(rows []Row, column string, max int) []string {
	var samples []string
	for _, row := range rows {
		cell, ok := row[column]
		if !ok || cell.IsNull() {
			continue
		}
		samples = append(samples, cell.String())
		if len(samples) >= max {
			break
		}
	}
	return samples
}

func allMatch(samples []string, match func(string) bool) bool {
	for _, s := range samples {
		if !match(s) {
			return false
		}
	}
	return true
}

// looksLikeDate reports whether a value matches a known date shape and
// parses to a real calendar date with a year strictly between 1900 and 2100.
func looksLikeDate(s string) bool {
	shaped := false
	for _, p := range datePatterns {
		if p.MatchString(s) {
			shaped = true
			break
		}
	}
	if !shaped {
		return false
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return t.Year() > 1900 && t.Year() < 2100
	}
	return false
}
