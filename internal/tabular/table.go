// Package tabular loads uploaded tables and classifies their columns into
// numeric and categorical groups for the visualization builder.
package tabular

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// classificationSampleRows bounds how many rows are inspected when deciding
// whether a column is numeric.
const classificationSampleRows = 1000

// Common errors
var (
	ErrNoHeader           = errors.New("table has no header row")
	ErrUnsupportedContent = errors.New("unsupported content type")
	ErrMalformedRow       = errors.New("malformed row")
)

// ParseError is returned when an uploaded table cannot be read or parsed.
// Callers are expected to fall back to synthetic data rather than abort.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse table %q: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Table is an in-memory table with classified columns. It is read-only after
// construction and safe for concurrent readers.
type Table struct {
	headers     []string
	rows        [][]string
	index       map[string]int
	numeric     []string
	categorical []string
}

// New builds a Table from a header row and data rows. Rows shorter than the
// header are padded with empty cells; longer rows are rejected.
func New(headers []string, rows [][]string) (*Table, error) {
	if len(headers) == 0 {
		return nil, ErrNoHeader
	}

	t := &Table{
		headers: normalizeHeaders(headers),
		rows:    make([][]string, 0, len(rows)),
	}
	t.index = make(map[string]int, len(t.headers))
	for i, h := range t.headers {
		t.index[h] = i
	}

	for i, row := range rows {
		if len(row) > len(t.headers) {
			return nil, fmt.Errorf("%w: row %d has %d fields, header has %d",
				ErrMalformedRow, i+1, len(row), len(t.headers))
		}
		if isBlankRow(row) {
			continue
		}
		padded := make([]string, len(t.headers))
		copy(padded, row)
		t.rows = append(t.rows, padded)
	}

	t.classify()
	return t, nil
}

// Headers returns the column names in file order.
func (t *Table) Headers() []string {
	return append([]string(nil), t.headers...)
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// NumericColumns returns the numeric columns in file order.
func (t *Table) NumericColumns() []string {
	return append([]string(nil), t.numeric...)
}

// CategoricalColumns returns the categorical columns in file order.
func (t *Table) CategoricalColumns() []string {
	return append([]string(nil), t.categorical...)
}

// Value returns the trimmed cell at row/column. Empty cells report false.
func (t *Table) Value(row int, column string) (string, bool) {
	col, ok := t.index[column]
	if !ok || row < 0 || row >= len(t.rows) {
		return "", false
	}
	v := strings.TrimSpace(t.rows[row][col])
	return v, v != ""
}

// Float returns the cell at row/column as a finite float. Missing or
// non-numeric cells report false.
func (t *Table) Float(row int, column string) (float64, bool) {
	v, ok := t.Value(row, column)
	if !ok {
		return 0, false
	}
	return parseFloat(v)
}

// classify splits columns into numeric and categorical groups. A column is
// numeric when it has at least one numeric value and no non-numeric value
// among the sampled rows.
func (t *Table) classify() {
	sample := min(len(t.rows), classificationSampleRows)

	for col, name := range t.headers {
		numericSeen := false
		categorical := false
		for r := 0; r < sample; r++ {
			v := strings.TrimSpace(t.rows[r][col])
			if v == "" || isMissingMarker(v) {
				continue
			}
			if _, ok := parseFloat(v); !ok {
				categorical = true
				break
			}
			numericSeen = true
		}

		if numericSeen && !categorical {
			t.numeric = append(t.numeric, name)
		} else {
			t.categorical = append(t.categorical, name)
		}
	}
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// isMissingMarker reports spreadsheet spellings of a missing value.
func isMissingMarker(s string) bool {
	switch strings.ToLower(s) {
	case "nan", "na", "n/a", "null", "none":
		return true
	}
	return false
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// normalizeHeaders trims names, names empty headers by position and
// suffixes duplicates so every column can be addressed by name.
func normalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		}
		seen[name] = 0
		out[i] = name
	}
	return out
}
