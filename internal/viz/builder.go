// Package viz turns a chart kind plus an optional tabular source into a
// validated domain.Visualization. Real-data computation never fails the
// caller: any error or panic is replaced by synthetic data of the same shape.
package viz

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"

	"github.com/phrazzld/analysis-api/internal/domain"
	"github.com/samber/lo"
)

// Limits applied to data-driven charts.
const (
	MaxBarGroups     = 10
	MaxLinePoints    = 50
	MaxScatterPoints = 50
	MaxPieSegments   = 7
	MaxTableColumns  = 5
)

// Common errors
var (
	ErrInsufficientColumns = errors.New("source lacks the columns this chart needs")
	ErrNoData              = errors.New("source has no usable values")
)

// Source is the read-only view of a table the builder needs.
// *tabular.Table satisfies it.
type Source interface {
	Len() int
	NumericColumns() []string
	CategoricalColumns() []string
	Value(row int, column string) (string, bool)
	Float(row int, column string) (float64, bool)
}

// Builder produces visualizations. It is stateless apart from its logger and
// safe for concurrent use.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a Builder. A nil logger falls back to slog.Default.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger.With("component", "viz_builder")}
}

// Build returns a visualization of the given kind. When src is nil, or the
// data cannot support the chart, the kind's synthetic fallback is returned.
// The result always passes Validate for a known kind.
func (b *Builder) Build(kind domain.ChartKind, title string, src Source) domain.Visualization {
	if src != nil {
		v, err := b.fromSource(kind, title, src)
		if err == nil {
			return v
		}
		b.logger.Debug("using synthetic data for chart",
			"chart_type", kind,
			"reason", err.Error())
	}
	return Fallback(kind, title)
}

// fromSource computes the chart from real data. Panics are converted to errors.
func (b *Builder) fromSource(kind domain.ChartKind, title string, src Source) (v domain.Visualization, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while building %s chart: %v", kind, r)
		}
	}()

	v = domain.Visualization{Kind: kind, Title: title}
	switch kind {
	case domain.ChartBar:
		v.Series, err = barSeries(src)
	case domain.ChartLine:
		v.Series, err = lineSeries(src)
	case domain.ChartScatter:
		v.Points, err = scatterPoints(src)
	case domain.ChartPie:
		v.Series, err = pieSeries(src)
	case domain.ChartTable:
		v.Table, err = summaryTable(src)
	default:
		err = kind.Validate()
	}
	if err != nil {
		return domain.Visualization{}, err
	}
	if err := v.Validate(); err != nil {
		return domain.Visualization{}, err
	}
	return v, nil
}

// barSeries averages the first numeric column per value of the first
// categorical column and keeps the highest groups.
func barSeries(src Source) ([]domain.CategoryValue, error) {
	cats, nums := src.CategoricalColumns(), src.NumericColumns()
	if len(cats) == 0 || len(nums) == 0 {
		return nil, ErrInsufficientColumns
	}
	category, measure := cats[0], nums[0]

	type acc struct {
		sum   float64
		count int
	}
	groups := make(map[string]*acc)
	for row, n := 0, src.Len(); row < n; row++ {
		name, ok := src.Value(row, category)
		if !ok {
			continue
		}
		value, ok := src.Float(row, measure)
		if !ok {
			continue
		}
		g, exists := groups[name]
		if !exists {
			g = &acc{}
			groups[name] = g
		}
		g.sum += value
		g.count++
	}
	if len(groups) == 0 {
		return nil, ErrNoData
	}

	series := make([]domain.CategoryValue, 0, len(groups))
	for name, g := range groups {
		series = append(series, domain.CategoryValue{Name: name, Value: g.sum / float64(g.count)})
	}
	sortDescending(series)
	return truncate(series, MaxBarGroups), nil
}

// lineSeries emits the first numeric column of the leading rows, indexed by
// row position. Rows without a value are skipped.
func lineSeries(src Source) ([]domain.CategoryValue, error) {
	nums := src.NumericColumns()
	if len(nums) == 0 {
		return nil, ErrInsufficientColumns
	}

	var series []domain.CategoryValue
	for row, n := 0, min(src.Len(), MaxLinePoints); row < n; row++ {
		if value, ok := src.Float(row, nums[0]); ok {
			series = append(series, domain.CategoryValue{Name: strconv.Itoa(row), Value: value})
		}
	}
	if len(series) == 0 {
		return nil, ErrNoData
	}
	return series, nil
}

// scatterPoints samples rows without replacement and pairs the first two
// numeric columns.
func scatterPoints(src Source) ([]domain.Point, error) {
	nums := src.NumericColumns()
	if len(nums) < 2 {
		return nil, ErrInsufficientColumns
	}

	var points []domain.Point
	for row, n := 0, src.Len(); row < n; row++ {
		x, okX := src.Float(row, nums[0])
		y, okY := src.Float(row, nums[1])
		if okX && okY {
			points = append(points, domain.Point{X: x, Y: y})
		}
	}
	if len(points) == 0 {
		return nil, ErrNoData
	}
	return lo.Samples(points, MaxScatterPoints), nil
}

// pieSeries counts the values of the first categorical column.
func pieSeries(src Source) ([]domain.CategoryValue, error) {
	cats := src.CategoricalColumns()
	if len(cats) == 0 {
		return nil, ErrInsufficientColumns
	}

	var values []string
	for row, n := 0, src.Len(); row < n; row++ {
		if v, ok := src.Value(row, cats[0]); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil, ErrNoData
	}

	series := lo.MapToSlice(lo.CountValues(values), func(name string, count int) domain.CategoryValue {
		return domain.CategoryValue{Name: name, Value: float64(count)}
	})
	sortDescending(series)
	return truncate(series, MaxPieSegments), nil
}

// summaryTable describes up to the first few numeric columns with mean,
// sample standard deviation, min and max.
func summaryTable(src Source) (*domain.Table, error) {
	nums := src.NumericColumns()
	if len(nums) == 0 {
		return nil, ErrInsufficientColumns
	}

	table := &domain.Table{Columns: []domain.TableColumn{
		{Key: "column", Header: "Column"},
		{Key: "mean", Header: "Mean"},
		{Key: "std", Header: "Std Dev"},
		{Key: "min", Header: "Min"},
		{Key: "max", Header: "Max"},
	}}
	for _, col := range truncate(nums, MaxTableColumns) {
		var values []float64
		for row, n := 0, src.Len(); row < n; row++ {
			if v, ok := src.Float(row, col); ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		s := describe(values)
		table.Rows = append(table.Rows, map[string]any{
			"column": col,
			"mean":   s.mean,
			"std":    s.std,
			"min":    s.min,
			"max":    s.max,
		})
	}
	if len(table.Rows) == 0 {
		return nil, ErrNoData
	}
	return table, nil
}

type stats struct {
	mean, std, min, max float64
}

// describe computes summary statistics. std is the sample standard deviation
// and is zero for fewer than two values.
func describe(values []float64) stats {
	s := stats{min: values[0], max: values[0]}
	var sum float64
	for _, v := range values {
		sum += v
		s.min = math.Min(s.min, v)
		s.max = math.Max(s.max, v)
	}
	s.mean = sum / float64(len(values))

	if len(values) > 1 {
		var sq float64
		for _, v := range values {
			d := v - s.mean
			sq += d * d
		}
		s.std = math.Sqrt(sq / float64(len(values)-1))
	}
	return s
}

// sortDescending orders by value, highest first, breaking ties by name.
func sortDescending(series []domain.CategoryValue) {
	slices.SortFunc(series, func(a, b domain.CategoryValue) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

func truncate[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
