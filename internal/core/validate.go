package core

// validate.go checks header/row integrity of parsed CSV data before any
// storage attempt. Violations accumulate so the caller sees every problem
// in one pass; only the two fatal structural cases short-circuit.

import (
	"fmt"
	"strings"
)

// MaxDataRows is the ceiling on rows per upload.
var MaxDataRows = 1000

// MaxHeaderLength is the ceiling on a single header's length.
var MaxHeaderLength = 100

// unsafeHeaderChars are characters rejected in headers because the header
// is later used as an extraction key inside query predicates.
const unsafeHeaderChars = ";\"'`\\"

// ValidationResult is the validator's verdict plus its ordered violations.
type ValidationResult struct {
	Valid      bool
	Violations []string
}

// Err converts an invalid result into a StructuralValidationError.
// Returns nil for a valid result.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &StructuralValidationError{Violations: r.Violations}
}

// ValidateStructure checks parsed CSV data for structural problems.
//
// Fatal cases (no further checks): missing headers entirely, zero data rows.
// Everything else accumulates: duplicate headers, empty headers, row/column
// count mismatches, row-count ceiling, unsafe or oversized header names.
func ValidateStructure(p *ParsedCSV) ValidationResult {
	if len(p.Headers) == 0 {
		return ValidationResult{Violations: []string{"CSV has no header row"}}
	}
	if len(p.Rows) == 0 {
		return ValidationResult{Violations: []string{"CSV has no data rows"}}
	}

	var violations []string

	seen := make(map[string]bool, len(p.Headers))
	for i, h := range p.Headers {
		if strings.TrimSpace(h) == "" {
			violations = append(violations, fmt.Sprintf("header %d is empty", i+1))
			continue
		}
		if seen[h] {
			violations = append(violations, fmt.Sprintf("duplicate header %q", h))
		}
		seen[h] = true

		if strings.ContainsAny(h, unsafeHeaderChars) {
			violations = append(violations, fmt.Sprintf("header %q contains unsafe characters", h))
		}
		if len(h) > MaxHeaderLength {
			violations = append(violations, fmt.Sprintf("header %q exceeds %d characters", truncate(h, 20), MaxHeaderLength))
		}
	}

	for i, row := range p.Rows {
		if len(row) != len(p.Headers) {
			violations = append(violations, fmt.Sprintf("row %d has %d columns, expected %d", i+1, len(row), len(p.Headers)))
		}
	}

	if len(p.Rows) > MaxDataRows {
		violations = append(violations, fmt.Sprintf("CSV has %d rows, maximum is %d", len(p.Rows), MaxDataRows))
	}

	return ValidationResult{Valid: len(violations) == 0, Violations: violations}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
