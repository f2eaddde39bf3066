package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChartKindForStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		step int
		want ChartKind
	}{
		{step: 1, want: ChartLine},
		{step: 2, want: ChartScatter},
		{step: 3, want: ChartPie},
		{step: 4, want: ChartTable},
		{step: 5, want: ChartBar},
		{step: 6, want: ChartLine},
		{step: 9, want: ChartTable},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ChartKindForStep(tt.step), "step %d", tt.step)
	}
	assert.Equal(t, "Scatter", ChartScatter.DisplayName())
}

func TestVisualization_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		viz     Visualization
		wantErr bool
	}{
		{
			name: "bar with series",
			viz:  Visualization{Kind: ChartBar, Title: "t", Series: []CategoryValue{{Name: "a", Value: 1}}},
		},
		{
			name:    "bar without series",
			viz:     Visualization{Kind: ChartBar, Title: "t"},
			wantErr: true,
		},
		{
			name: "pie with points",
			viz: Visualization{
				Kind:   ChartPie,
				Title:  "t",
				Series: []CategoryValue{{Name: "a", Value: 1}},
				Points: []Point{{X: 1, Y: 2}},
			},
			wantErr: true,
		},
		{
			name:    "line with NaN",
			viz:     Visualization{Kind: ChartLine, Title: "t", Series: []CategoryValue{{Name: "0", Value: math.NaN()}}},
			wantErr: true,
		},
		{
			name: "scatter with points",
			viz:  Visualization{Kind: ChartScatter, Title: "t", Points: []Point{{X: 1, Y: 2}}},
		},
		{
			name: "table complete rows",
			viz: Visualization{Kind: ChartTable, Title: "t", Table: &Table{
				Columns: []TableColumn{{Key: "id", Header: "ID"}},
				Rows:    []map[string]any{{"id": 1}},
			}},
		},
		{
			name: "table row missing a column",
			viz: Visualization{Kind: ChartTable, Title: "t", Table: &Table{
				Columns: []TableColumn{{Key: "id", Header: "ID"}, {Key: "name", Header: "Name"}},
				Rows:    []map[string]any{{"id": 1}},
			}},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			viz:     Visualization{Kind: "radar", Title: "t", Series: []CategoryValue{{Name: "a"}}},
			wantErr: true,
		},
		{
			name:    "empty title",
			viz:     Visualization{Kind: ChartBar, Series: []CategoryValue{{Name: "a"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.viz.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestVisualization_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	original := Visualization{
		Kind:  ChartTable,
		Title: "Analysis 5 (Table Chart)",
		Table: &Table{
			Columns: []TableColumn{{Key: "column", Header: "Column"}, {Key: "mean", Header: "Mean"}},
			Rows:    []map[string]any{{"column": "amount", "mean": 12.5}},
		},
	}

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, "table", wire["type"])
	assert.IsType(t, []any{}, wire["data"])

	var decoded Visualization
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NoError(t, decoded.Validate())
	assert.Equal(t, original.Table.Columns, decoded.Table.Columns)
	assert.Equal(t, 12.5, decoded.Table.Rows[0]["mean"])

	scatter := Visualization{Kind: ChartScatter, Title: "s", Points: []Point{{X: 1, Y: 2}}}
	raw, err = json.Marshal(scatter)
	require.NoError(t, err)
	var decodedScatter Visualization
	require.NoError(t, json.Unmarshal(raw, &decodedScatter))
	assert.Equal(t, scatter, decodedScatter)
}

func TestVisualization_UnmarshalRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	var v Visualization
	err := json.Unmarshal([]byte(`{"type":"radar","title":"x","data":[]}`), &v)
	assert.ErrorIs(t, err, ErrInvalidChartKind)
}

func TestSubmission_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Submission{Kind: RequestKindPrompt, Content: "show me sales"}.Validate())

	err := Submission{Kind: RequestKindPrompt, Content: "  "}.Validate()
	assert.True(t, errors.Is(err, ErrValidation))
	assert.True(t, errors.Is(err, ErrEmptyContent))

	var vErr *ValidationError
	err = Submission{Kind: RequestKindFile}.Validate()
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "file", vErr.Field)

	err = Submission{Kind: "audio", Content: "x"}.Validate()
	assert.ErrorIs(t, err, ErrInvalidRequestKind)
}

func TestTaskState_RemainingTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.April, 1, 12, 0, 0, 0, time.UTC)
	state := TaskState{}
	assert.Equal(t, DefaultRemainingEstimate, state.RemainingTime(now))

	eta := now.Add(90 * time.Second)
	state.EstimatedCompletionTime = &eta
	assert.Equal(t, 90*time.Second, state.RemainingTime(now))

	past := now.Add(-time.Minute)
	state.EstimatedCompletionTime = &past
	assert.Equal(t, time.Duration(0), state.RemainingTime(now))
}

func TestNewPartialResult_Progress(t *testing.T) {
	t.Parallel()

	r := NewPartialResult(3, 8, RequestKindFile, time.Now(), nil)
	assert.Equal(t, 3.0/8.0, r.Progress)
	assert.Equal(t, RequestKindFile, r.Kind)
	assert.True(t, TaskStatusCancelled.IsTerminal())
	assert.False(t, TaskStatusProcessing.IsTerminal())
}
