package tabular

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew_ClassifiesColumns(t *testing.T) {
	t.Parallel()

	table, err := New(
		[]string{"region", "amount", "note", "score"},
		[][]string{
			{"north", "10", "first", "1.5"},
			{"south", "20", "", "nan"},
			{"north", "30", "x"},
			{"", "", "", ""},
		},
	)
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len(), "blank rows are skipped")
	assert.Equal(t, []string{"amount", "score"}, table.NumericColumns())
	assert.Equal(t, []string{"region", "note"}, table.CategoricalColumns())

	v, ok := table.Float(1, "amount")
	require.True(t, ok)
	assert.Equal(t, 20.0, v)

	_, ok = table.Float(1, "score")
	assert.False(t, ok, "missing marker is not a number")

	_, ok = table.Value(2, "score")
	assert.False(t, ok, "short rows are padded with empty cells")

	_, ok = table.Value(0, "unknown")
	assert.False(t, ok)
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	_, err := New(nil, nil)
	assert.ErrorIs(t, err, ErrNoHeader)

	_, err = New([]string{"a"}, [][]string{{"1", "2"}})
	assert.ErrorIs(t, err, ErrMalformedRow)
}

func TestNew_NormalizesHeaders(t *testing.T) {
	t.Parallel()

	table, err := New([]string{"\ufeffid", "", "id", " name "}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "Unnamed: 1", "id.1", "name"}, table.Headers())
}

func TestLoad_CSV(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "sales.csv", "region,amount\nnorth,10\nsouth,20\nnorth,30\n")

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []string{"amount"}, table.NumericColumns())
	assert.Equal(t, []string{"region"}, table.CategoricalColumns())
}

func TestLoad_SniffsDelimiter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "semicolon", content: "region;amount\nnorth;10\n"},
		{name: "tab", content: "region\tamount\nnorth\t10\n"},
		{name: "pipe", content: "region|amount\nnorth|10\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Load(writeFile(t, "data.txt", tt.content))
			require.NoError(t, err)
			assert.Equal(t, []string{"region", "amount"}, table.Headers())
			v, ok := table.Float(0, "amount")
			require.True(t, ok)
			assert.Equal(t, 10.0, v)
		})
	}
}

func TestLoad_XLSX(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"region", "amount"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"north", 10}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"south", 20, "stray"}))

	path := filepath.Join(t.TempDir(), "sales.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"region", "amount"}, table.Headers())
	assert.Equal(t, []string{"amount"}, table.NumericColumns())
}

func TestLoad_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr error
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.csv") },
			wantErr: os.ErrNotExist,
		},
		{
			name:    "empty file",
			path:    func(t *testing.T) string { return writeFile(t, "empty.csv", "\n\n") },
			wantErr: ErrNoHeader,
		},
		{
			name: "binary content",
			path: func(t *testing.T) string {
				return writeFile(t, "image.png", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
			},
			wantErr: ErrUnsupportedContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path(t)
			_, err := Load(path)
			require.Error(t, err)

			var pErr *ParseError
			require.True(t, errors.As(err, &pErr))
			assert.Equal(t, path, pErr.Path)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_RaggedCSV(t *testing.T) {
	t.Parallel()

	_, err := Load(writeFile(t, "ragged.csv", "a,b\n1,2,3\n"))
	var pErr *ParseError
	assert.True(t, errors.As(err, &pErr))
}
