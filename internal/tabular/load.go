package tabular

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

// candidate delimiters, in order of preference on ties
var delimiters = []rune{',', ';', '\t', '|'}

var spreadsheetMimeTypes = []string{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Load reads a delimited text file or an .xlsx workbook (first sheet) into a
// Table. Any failure is reported as a *ParseError.
func Load(path string) (*Table, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("failed to detect content type: %w", err)}
	}

	var t *Table
	switch {
	case isSpreadsheet(mtype, path):
		t, err = loadSpreadsheet(path)
	case isText(mtype):
		t, err = loadDelimited(path)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedContent, mtype.String())
	}
	if err != nil {
		var pErr *ParseError
		if errors.As(err, &pErr) {
			return nil, err
		}
		return nil, &ParseError{Path: path, Err: err}
	}
	return t, nil
}

func isSpreadsheet(mtype *mimetype.MIME, path string) bool {
	if slices.ContainsFunc(spreadsheetMimeTypes, mtype.Is) {
		return true
	}
	// Some writers produce workbooks that sniff as plain zip archives.
	return mtype.Is("application/zip") && strings.EqualFold(filepath.Ext(path), ".xlsx")
}

func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func loadSpreadsheet(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	header := rows[0]
	body := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		// stray cells right of the header carry no column name
		if len(row) > len(header) {
			row = row[:len(header)]
		}
		body = append(body, row)
	}
	return New(header, body)
}

func loadDelimited(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, err := br.Peek(br.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	r := csv.NewReader(br)
	r.Comma = sniffDelimiter(string(head))
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoHeader
	}
	return New(records[0], records[1:])
}

// sniffDelimiter picks the candidate that occurs most often in the header line.
func sniffDelimiter(sample string) rune {
	if i := strings.IndexAny(sample, "\r\n"); i >= 0 {
		sample = sample[:i]
	}
	best, bestCount := delimiters[0], 0
	for _, d := range delimiters {
		if n := strings.Count(sample, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
