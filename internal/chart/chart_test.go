package chart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/Allocator/internal/backtest"
	"github.com/Alias1177/Allocator/internal/model"
)

func TestRenderBacktest(t *testing.T) {
	d0 := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	var dates []time.Time
	values := []float64{}
	bench := []float64{}
	v := 1.0
	for i := 0; i < 40; i++ {
		dates = append(dates, d0.AddDate(0, 0, i))
		v *= 1.001
		values = append(values, v)
		bench = append(bench, 1+float64(i)*0.0005)
	}

	result := &backtest.Result{
		Strategy: "HRP",
		Dates:    dates,
		Metrics:  map[string]model.BacktestMetrics{"HRP": {TotalReturn: v - 1, SharpeRatio: 1.2}},
		Curve:    backtest.Curve{Dates: dates, Values: values, BenchmarkName: "SPY", Benchmark: bench},
	}

	png, err := RenderBacktest(result)
	require.NoError(t, err)
	assert.NotEmpty(t, png)

	_, err = RenderBacktest(&backtest.Result{})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestRenderAllocations(t *testing.T) {
	allocs := []model.Allocation{
		{Strategy: "max_sharpe", Assets: []string{"SPY", "TLT", "GLD"}, Weights: []float64{0.5, 0.3, 0.2}},
		{Strategy: "HRP", Assets: []string{"SPY", "TLT", "GLD"}, Weights: []float64{0.2, 0.5, 0.3}},
	}
	png, err := RenderAllocations(allocs)
	require.NoError(t, err)
	assert.NotEmpty(t, png)

	_, err = RenderAllocations(nil)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	allocs[1].Weights = []float64{1}
	_, err = RenderAllocations(allocs)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestRenderRiskContributions(t *testing.T) {
	alloc := model.Allocation{Strategy: "ERC", Assets: []string{"SPY", "TLT"}, Weights: []float64{0.4, 0.6}}

	png, err := RenderRiskContributions(alloc, []float64{0.05, 0.05})
	require.NoError(t, err)
	assert.NotEmpty(t, png)

	_, err = RenderRiskContributions(alloc, []float64{0, 0})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = RenderRiskContributions(alloc, []float64{0.1})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestPaddedRange(t *testing.T) {
	lo, hi := paddedRange([][]float64{{1, 2}, {0.5, 1.5}})
	assert.InDelta(t, 0.425, lo, 1e-12)
	assert.InDelta(t, 2.075, hi, 1e-12)

	lo, hi = paddedRange([][]float64{{0, 0}})
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 1.0, hi)
}
