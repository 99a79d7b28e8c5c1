package backtest

import (
	"fmt"
	"time"

	"github.com/Alias1177/Allocator/internal/dataset"
	"github.com/Alias1177/Allocator/internal/model"
)

// Result is the immutable output of one walk-forward run
type Result struct {
	Strategy   string
	Assets     []string
	Config     Config
	Dates      []time.Time // one per held-out period
	Returns    []float64   // realized, cost-adjusted portfolio returns
	Cumulative []float64   // ∏(1+r) − 1
	Metrics    map[string]model.BacktestMetrics
	Rebalances []model.Rebalance
	Curve      Curve
}

// Curve is the plottable portfolio value path with an optional benchmark overlay
type Curve struct {
	Dates         []time.Time
	Values        []float64 // ∏(1+r), starting from 1
	BenchmarkName string
	Benchmark     []float64 // same index as Values, empty without a benchmark
}

// Summary returns the metrics record of the run's strategy
func (r *Result) Summary() model.BacktestMetrics {
	return r.Metrics[r.Strategy]
}

// TotalReturn returns the last cumulative return
func (r *Result) TotalReturn() float64 {
	if len(r.Cumulative) == 0 {
		return 0
	}
	return r.Cumulative[len(r.Cumulative)-1]
}

// WeightHistory maps each rebalance date to the weights chosen on it
func (r *Result) WeightHistory() map[time.Time][]float64 {
	history := make(map[time.Time][]float64, len(r.Rebalances))
	for _, rb := range r.Rebalances {
		history[rb.Date] = append([]float64(nil), rb.Weights...)
	}
	return history
}

func buildCurve(dates []time.Time, returns []float64, benchmark *dataset.Series) (Curve, error) {
	curve := Curve{
		Dates:  dates,
		Values: compound(returns),
	}
	if benchmark == nil {
		return curve, nil
	}

	aligned, err := benchmark.Align(dates)
	if err != nil {
		return Curve{}, fmt.Errorf("aligning benchmark: %w", err)
	}
	curve.BenchmarkName = benchmark.Name
	curve.Benchmark = compound(aligned)
	return curve, nil
}

func compound(returns []float64) []float64 {
	values := make([]float64, len(returns))
	value := 1.0
	for i, r := range returns {
		value *= 1 + r
		values[i] = value
	}
	return values
}
