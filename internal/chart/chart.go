// Package chart renders backtest curves and allocations as PNG images.
package chart

import (
	"fmt"
	"math"

	charts "github.com/vicanso/go-charts/v2"
	"gonum.org/v1/gonum/floats"

	"github.com/Alias1177/Allocator/internal/backtest"
	"github.com/Alias1177/Allocator/internal/model"
)

const (
	width  = 1000
	height = 600
)

// RenderBacktest draws the portfolio value curve, with the benchmark when one was aligned
func RenderBacktest(result *backtest.Result) ([]byte, error) {
	if result == nil || len(result.Curve.Values) == 0 {
		return nil, fmt.Errorf("%w: empty backtest curve", model.ErrInvalidInput)
	}

	values := [][]float64{result.Curve.Values}
	names := []string{result.Strategy}
	if len(result.Curve.Benchmark) == len(result.Curve.Values) {
		values = append(values, result.Curve.Benchmark)
		names = append(names, result.Curve.BenchmarkName)
	}

	labels := make([]string, len(result.Curve.Dates))
	for i, d := range result.Curve.Dates {
		labels[i] = d.Format("Jan '06")
	}
	yMin, yMax := paddedRange(values)

	summary := result.Summary()
	title := fmt.Sprintf("%s walk-forward backtest", result.Strategy)
	subtitle := fmt.Sprintf("Return: %.2f%% | Sharpe: %.2f | Vol: %.2f%% | MaxDD: %.2f%%",
		summary.TotalReturn*100, summary.SharpeRatio, summary.AnnualVolatility*100, summary.MaxDrawdown*100)

	p, err := charts.LineRender(
		values,
		charts.TitleTextOptionFunc(title, subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			SplitNumber: splitNumber(len(labels)),
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: names,
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(width),
		charts.HeightOptionFunc(height),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render backtest chart: %w", err)
	}
	return p.Bytes()
}

// RenderAllocations draws one bar series per strategy over the asset axis
func RenderAllocations(allocs []model.Allocation) ([]byte, error) {
	if len(allocs) == 0 {
		return nil, fmt.Errorf("%w: no allocations to render", model.ErrInvalidInput)
	}
	assets := allocs[0].Assets

	values := make([][]float64, len(allocs))
	names := make([]string, len(allocs))
	for i, a := range allocs {
		if len(a.Weights) != len(assets) {
			return nil, fmt.Errorf("%w: %s has %d weights for %d assets", model.ErrInvalidInput, a.Strategy, len(a.Weights), len(assets))
		}
		values[i] = a.Weights
		names[i] = a.Strategy
	}

	seriesList := charts.NewSeriesListDataFromValues(values, charts.ChartTypeBar)
	for i := range seriesList {
		seriesList[i].Name = names[i]
	}

	yMin, yMax := 0.0, 1.0
	p, err := charts.Render(charts.ChartOption{SeriesList: seriesList},
		charts.TitleTextOptionFunc("Portfolio weights by strategy"),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: assets}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names, Top: charts.PositionTop}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(width),
		charts.HeightOptionFunc(height),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render allocation chart: %w", err)
	}
	return p.Bytes()
}

// RenderRiskContributions draws each asset's share of portfolio volatility as a pie
func RenderRiskContributions(alloc model.Allocation, contributions []float64) ([]byte, error) {
	if len(contributions) != len(alloc.Assets) {
		return nil, fmt.Errorf("%w: %d contributions for %d assets", model.ErrInvalidInput, len(contributions), len(alloc.Assets))
	}

	// pie slices must be non-negative; hedging assets are drawn as empty
	shares := make([]float64, len(contributions))
	for i, c := range contributions {
		shares[i] = math.Max(c, 0)
	}
	if floats.Sum(shares) == 0 {
		return nil, fmt.Errorf("%w: portfolio has no risk to attribute", model.ErrInvalidInput)
	}

	p, err := charts.PieRender(
		shares,
		charts.TitleTextOptionFunc(fmt.Sprintf("Risk contributions (%s)", alloc.Strategy)),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: alloc.Assets,
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(800),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render risk chart: %w", err)
	}
	return p.Bytes()
}

func paddedRange(series [][]float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		lo = math.Min(lo, floats.Min(s))
		hi = math.Max(hi, floats.Max(s))
	}
	padding := (hi - lo) * 0.05
	if padding == 0 {
		padding = math.Abs(hi) * 0.05
	}
	if padding == 0 {
		padding = 1
	}
	return lo - padding, hi + padding
}

func splitNumber(points int) int {
	if points > 30 {
		return 6
	}
	return max(points/3, 3)
}
