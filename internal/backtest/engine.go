package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"

	"github.com/Alias1177/Allocator/internal/dataset"
	"github.com/Alias1177/Allocator/internal/metrics"
	"github.com/Alias1177/Allocator/internal/model"
	"github.com/Alias1177/Allocator/internal/optimizer"
)

// Allocator produces weights for one training window
type Allocator interface {
	Optimize(ds *dataset.Dataset, riskFreeRate float64, s optimizer.Strategy) (model.Allocation, error)
}

// Config describes one walk-forward run
type Config struct {
	Start           time.Time // inclusive, zero means first observation
	End             time.Time // inclusive, zero means last observation
	TrainWindow     int
	RebalancePeriod int
	Strategy        optimizer.Strategy
	TransactionCost float64 // fraction of the slice return lost per unit of turnover
	Benchmark       *dataset.Series
}

// DefaultConfig returns yearly training windows rebalanced quarterly
func DefaultConfig() Config {
	return Config{
		TrainWindow:     252,
		RebalancePeriod: 63,
		Strategy:        optimizer.MaxSharpe,
	}
}

func (c Config) validate() error {
	if c.TrainWindow < 1 {
		return fmt.Errorf("%w: train window must be positive, got %d", model.ErrInvalidInput, c.TrainWindow)
	}
	if c.RebalancePeriod < 1 {
		return fmt.Errorf("%w: rebalance period must be positive, got %d", model.ErrInvalidInput, c.RebalancePeriod)
	}
	if math.IsNaN(c.TransactionCost) || c.TransactionCost < 0 || c.TransactionCost > 1 {
		return fmt.Errorf("%w: transaction cost must be within [0, 1], got %v", model.ErrInvalidInput, c.TransactionCost)
	}
	return nil
}

// Engine handles walk-forward backtests
type Engine struct {
	allocator    Allocator
	riskFreeRate float64
	logger       zerolog.Logger
}

// NewEngine creates a new backtesting engine
func NewEngine(allocator Allocator, riskFreeRate float64) *Engine {
	return &Engine{
		allocator:    allocator,
		riskFreeRate: riskFreeRate,
		logger:       log.With().Str("component", "backtest").Logger(),
	}
}

// Run re-optimizes on each trailing training window and holds the weights
// over the following rebalance period. Windows share the covariance of ds
// instead of re-estimating it from their own rows. The next training window
// starts where a test slice ends, so the TrainWindow rows after each slice
// are never tested.
func (e *Engine) Run(ctx context.Context, ds *dataset.Dataset, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	data, err := ds.Between(cfg.Start, cfg.End)
	if err != nil {
		return nil, err
	}
	n := data.Len()
	if cfg.TrainWindow >= n {
		return nil, fmt.Errorf("%w: train window %d needs more than %d observations",
			model.ErrInsufficientData, cfg.TrainWindow, n)
	}

	result := &Result{
		Strategy: cfg.Strategy.String(),
		Assets:   data.Assets(),
		Config:   cfg,
		Dates:    make([]time.Time, 0, n-cfg.TrainWindow),
		Returns:  make([]float64, 0, n-cfg.TrainWindow),
		Metrics:  make(map[string]model.BacktestMetrics),
	}

	var prevWeights []float64
	for i := 0; i+cfg.TrainWindow < n; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		train, err := data.Window(i, i+cfg.TrainWindow)
		if err != nil {
			return nil, err
		}
		rebalanceDate := data.Date(i + cfg.TrainWindow - 1)

		alloc, err := e.allocator.Optimize(train, e.riskFreeRate, cfg.Strategy)
		if err != nil {
			return nil, fmt.Errorf("rebalance at %s: %w", rebalanceDate.Format(time.DateOnly), err)
		}
		weights := append([]float64(nil), alloc.Weights...)

		// Charge turnover cost as a flat multiplier on the whole test slice
		turnover := 0.0
		costAdjustment := 1.0
		if prevWeights != nil {
			turnover = Turnover(prevWeights, weights)
			costAdjustment = 1 - turnover*cfg.TransactionCost
		}

		testStart := i + cfg.TrainWindow
		testEnd := min(testStart+cfg.RebalancePeriod, n)
		test, err := data.Window(testStart, testEnd)
		if err != nil {
			return nil, err
		}

		sliceReturns := test.PortfolioReturns(weights)
		floats.Scale(costAdjustment, sliceReturns)
		result.Returns = append(result.Returns, sliceReturns...)
		result.Dates = append(result.Dates, test.Dates()...)

		result.Rebalances = append(result.Rebalances, model.Rebalance{
			Date:           rebalanceDate,
			Weights:        weights,
			Turnover:       turnover,
			CostAdjustment: costAdjustment,
			TestPeriods:    testEnd - testStart,
			Warning:        alloc.Warning,
		})

		e.logger.Debug().
			Time("rebalance_date", rebalanceDate).
			Floats64("weights", weights).
			Float64("turnover", turnover).
			Int("test_periods", testEnd-testStart).
			Msg("Rebalanced")

		prevWeights = weights
		i = testEnd
	}

	if len(result.Returns) == 0 {
		return nil, fmt.Errorf("%w: no test segments produced", model.ErrInsufficientData)
	}

	result.Cumulative = metrics.CumulativeReturns(result.Returns)
	result.Metrics[result.Strategy] = CalculatePerformanceMetrics(result.Returns, result.Rebalances, e.riskFreeRate, data.PeriodsPerYear())

	curve, err := buildCurve(result.Dates, result.Returns, cfg.Benchmark)
	if err != nil {
		return nil, err
	}
	result.Curve = curve

	summary := result.Summary()
	e.logger.Info().
		Str("strategy", result.Strategy).
		Int("rebalances", summary.Rebalances).
		Float64("total_return", summary.TotalReturn).
		Float64("sharpe", summary.SharpeRatio).
		Msg("Backtest complete")

	return result, nil
}

// Turnover returns the one-way turnover sum(|b-a|)/2
func Turnover(a, b []float64) float64 {
	return floats.Distance(a, b, 1) / 2
}

// FormatResults creates a human-readable summary of backtest results
func (e *Engine) FormatResults(result *Result) string {
	if result == nil {
		return "No backtest results available"
	}
	m := result.Summary()

	var b strings.Builder
	b.WriteString("\n===== BACKTEST RESULTS =====\n")
	fmt.Fprintf(&b, "Strategy: %s\n", result.Strategy)
	fmt.Fprintf(&b, "Periods tested: %d (%s to %s)\n", len(result.Returns),
		result.Dates[0].Format(time.DateOnly), result.Dates[len(result.Dates)-1].Format(time.DateOnly))
	fmt.Fprintf(&b, "Total return: %.2f%%\n", m.TotalReturn*100)
	fmt.Fprintf(&b, "Annualized return: %.2f%%\n", m.AnnualReturn*100)
	fmt.Fprintf(&b, "Annualized volatility: %.2f%%\n", m.AnnualVolatility*100)
	fmt.Fprintf(&b, "Sharpe ratio: %.2f\n", m.SharpeRatio)
	fmt.Fprintf(&b, "Maximum drawdown: %.2f%%\n", m.MaxDrawdown*100)
	fmt.Fprintf(&b, "Rebalances: %d (average turnover %.2f%%)\n", m.Rebalances, m.AverageTurnover*100)

	if result.Curve.BenchmarkName != "" && len(result.Curve.Benchmark) > 0 {
		last := result.Curve.Benchmark[len(result.Curve.Benchmark)-1]
		fmt.Fprintf(&b, "Benchmark %s total return: %.2f%%\n", result.Curve.BenchmarkName, (last-1)*100)
	}

	if len(result.Rebalances) > 0 {
		b.WriteString("\nWeight history:\n")

		history := result.WeightHistory()
		dates := make([]time.Time, 0, len(history))
		for d := range history {
			dates = append(dates, d)
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

		for _, d := range dates {
			parts := make([]string, len(result.Assets))
			for i, w := range history[d] {
				parts[i] = fmt.Sprintf("%s %.2f", result.Assets[i], w)
			}
			fmt.Fprintf(&b, "- %s: %s\n", d.Format(time.DateOnly), strings.Join(parts, ", "))
		}
	}

	return b.String()
}
