package core

// parser.go turns raw file bytes into ordered headers plus row mappings.
//
// The parser only cleans values (trim, empty -> null) and captures whatever
// shape each line has; structural problems like column-count mismatches are
// deferred to the validator so the caller gets every violation at once.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Parse decodes raw CSV bytes into headers and rows.
//
// The first record supplies the headers (trimmed, source order preserved).
// Every cell is trimmed and empty cells become null so that downstream type
// inference and storage treat "absent" uniformly. A row longer than the
// header list keeps its extra cells under positional column_N keys rather
// than being rejected here.
//
// Returns a ParseError when the underlying decode fails.
func Parse(raw []byte) (*ParsedCSV, error) {
	raw = skipBOM(raw)
	raw = sanitizeUTF8(raw)

	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, &ParseError{Cause: err}
	}

	if len(records) == 0 {
		return &ParsedCSV{}, nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(record))
		for i, raw := range record {
			key := keyForPosition(headers, i)
			row[key] = cleanCell(raw)
		}
		rows = append(rows, row)
	}

	return &ParsedCSV{Headers: headers, Rows: rows}, nil
}

// keyForPosition maps a cell position to its header name, falling back to a
// positional key for cells beyond the declared headers.
func keyForPosition(headers []string, i int) string {
	if i < len(headers) {
		return headers[i]
	}
	return fmt.Sprintf("column_%d", i)
}

// cleanCell trims a raw cell and normalizes empty to null.
func cleanCell(raw string) Cell {
	s := strings.TrimSpace(raw)
	if s == "" {
		return NullCell
	}
	return TextCell(s)
}

// skipBOM removes a UTF-8 byte order mark, commonly added by Windows tools.
func skipBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with the replacement
// character so the CSV decoder never sees broken encodings.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
