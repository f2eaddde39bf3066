package viz

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/phrazzld/analysis-api/internal/domain"
	"github.com/samber/lo"
)

// Sizes of the synthetic payloads.
const (
	fallbackBarGroups     = 5
	fallbackLinePoints    = 5
	fallbackScatterPoints = 20
	fallbackPieSegments   = 3
	fallbackTableRows     = 5
)

// Fallback returns synthetic data shaped like the real chart of the same
// kind. An unknown kind yields a bar chart so callers always get something
// renderable.
func Fallback(kind domain.ChartKind, title string) domain.Visualization {
	v := domain.Visualization{Kind: kind, Title: title}
	switch kind {
	case domain.ChartLine:
		v.Series = lo.Times(fallbackLinePoints, func(i int) domain.CategoryValue {
			return domain.CategoryValue{Name: fmt.Sprintf("%d", i+1), Value: randomValue(10, 100)}
		})
	case domain.ChartScatter:
		v.Points = lo.Times(fallbackScatterPoints, func(int) domain.Point {
			return domain.Point{X: randomValue(0, 100), Y: randomValue(0, 100)}
		})
	case domain.ChartPie:
		v.Series = lo.Times(fallbackPieSegments, func(i int) domain.CategoryValue {
			return domain.CategoryValue{Name: fmt.Sprintf("Segment %c", 'A'+i), Value: randomValue(10, 50)}
		})
	case domain.ChartTable:
		v.Table = &domain.Table{
			Columns: []domain.TableColumn{
				{Key: "id", Header: "ID"},
				{Key: "name", Header: "Name"},
				{Key: "value", Header: "Value"},
			},
			Rows: lo.Times(fallbackTableRows, func(i int) map[string]any {
				return map[string]any{
					"id":    i + 1,
					"name":  fmt.Sprintf("Item %d", i+1),
					"value": randomValue(10, 1000),
				}
			}),
		}
	default:
		v.Kind = domain.ChartBar
		v.Series = lo.Times(fallbackBarGroups, func(i int) domain.CategoryValue {
			return domain.CategoryValue{Name: fmt.Sprintf("Category %c", 'A'+i), Value: randomValue(10, 100)}
		})
	}
	return v
}

// randomValue returns a value in [lo, hi) rounded to two decimals.
func randomValue(low, high float64) float64 {
	return math.Round((low+rand.Float64()*(high-low))*100) / 100
}
