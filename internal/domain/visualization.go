package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ChartKind is the tag of a Visualization. It fully determines which payload
// field is populated.
type ChartKind string

// Supported chart kinds
const (
	ChartBar     ChartKind = "bar"
	ChartLine    ChartKind = "line"
	ChartScatter ChartKind = "scatter"
	ChartPie     ChartKind = "pie"
	ChartTable   ChartKind = "table"
)

// ChartKinds lists every chart kind in rotation order.
var ChartKinds = []ChartKind{ChartBar, ChartLine, ChartScatter, ChartPie, ChartTable}

// ChartKindForStep picks the chart kind produced by a task step.
func ChartKindForStep(step int) ChartKind {
	return ChartKinds[step%len(ChartKinds)]
}

// Validate checks that the kind is known.
func (k ChartKind) Validate() error {
	switch k {
	case ChartBar, ChartLine, ChartScatter, ChartPie, ChartTable:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidChartKind, string(k))
	}
}

// DisplayName returns the capitalized kind, e.g. "Scatter".
func (k ChartKind) DisplayName() string {
	if k == "" {
		return ""
	}
	s := string(k)
	return strings.ToUpper(s[:1]) + s[1:]
}

// CategoryValue is one entry of a bar, line or pie payload.
type CategoryValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Point is one entry of a scatter payload.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TableColumn describes one column of a table payload.
type TableColumn struct {
	Key    string `json:"key"`
	Header string `json:"header"`
}

// Table is the payload of a table visualization. Every row carries a value
// for every column key.
type Table struct {
	Columns []TableColumn
	Rows    []map[string]any
}

// Visualization is a self-describing, chart-ready descriptor. Exactly one of
// Series, Points or Table is set, as dictated by Kind.
type Visualization struct {
	Kind   ChartKind
	Title  string
	Series []CategoryValue
	Points []Point
	Table  *Table
}

// Validate checks that the payload shape matches the chart kind.
func (v Visualization) Validate() error {
	if err := v.Kind.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(v.Title) == "" {
		return fmt.Errorf("%w: empty title", ErrInvalidPayload)
	}

	switch v.Kind {
	case ChartBar, ChartLine, ChartPie:
		if len(v.Series) == 0 || v.Points != nil || v.Table != nil {
			return fmt.Errorf("%w: %s chart needs category/value pairs only", ErrInvalidPayload, v.Kind)
		}
		for _, cv := range v.Series {
			if !isFinite(cv.Value) {
				return fmt.Errorf("%w: non-finite value for %q", ErrInvalidPayload, cv.Name)
			}
		}
	case ChartScatter:
		if len(v.Points) == 0 || v.Series != nil || v.Table != nil {
			return fmt.Errorf("%w: scatter chart needs x/y points only", ErrInvalidPayload)
		}
		for _, p := range v.Points {
			if !isFinite(p.X) || !isFinite(p.Y) {
				return fmt.Errorf("%w: non-finite scatter point", ErrInvalidPayload)
			}
		}
	case ChartTable:
		if v.Table == nil || v.Series != nil || v.Points != nil {
			return fmt.Errorf("%w: table chart needs a table only", ErrInvalidPayload)
		}
		if len(v.Table.Columns) == 0 || len(v.Table.Rows) == 0 {
			return fmt.Errorf("%w: table has no columns or rows", ErrInvalidPayload)
		}
		for i, row := range v.Table.Rows {
			for _, col := range v.Table.Columns {
				if _, ok := row[col.Key]; !ok {
					return fmt.Errorf("%w: row %d is missing column %q", ErrInvalidPayload, i, col.Key)
				}
			}
		}
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// visualizationJSON is the wire form: {type, title, data[, columns]}.
type visualizationJSON struct {
	Kind    ChartKind       `json:"type"`
	Title   string          `json:"title"`
	Data    json.RawMessage `json:"data"`
	Columns []TableColumn   `json:"columns,omitempty"`
}

// MarshalJSON encodes the kind-specific payload under "data".
func (v Visualization) MarshalJSON() ([]byte, error) {
	var (
		data any
		cols []TableColumn
	)
	switch v.Kind {
	case ChartScatter:
		data = v.Points
	case ChartTable:
		if v.Table != nil {
			data = v.Table.Rows
			cols = v.Table.Columns
		}
	default:
		data = v.Series
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", v.Kind, err)
	}

	return json.Marshal(visualizationJSON{
		Kind:    v.Kind,
		Title:   v.Title,
		Data:    raw,
		Columns: cols,
	})
}

// UnmarshalJSON decodes "data" according to "type".
func (v *Visualization) UnmarshalJSON(b []byte) error {
	var wire visualizationJSON
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	if err := wire.Kind.Validate(); err != nil {
		return err
	}

	out := Visualization{Kind: wire.Kind, Title: wire.Title}
	switch wire.Kind {
	case ChartScatter:
		if err := json.Unmarshal(wire.Data, &out.Points); err != nil {
			return fmt.Errorf("failed to decode scatter payload: %w", err)
		}
	case ChartTable:
		table := &Table{Columns: wire.Columns}
		if err := json.Unmarshal(wire.Data, &table.Rows); err != nil {
			return fmt.Errorf("failed to decode table payload: %w", err)
		}
		out.Table = table
	default:
		if err := json.Unmarshal(wire.Data, &out.Series); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", wire.Kind, err)
		}
	}

	*v = out
	return nil
}
