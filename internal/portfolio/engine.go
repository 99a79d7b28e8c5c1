// Package portfolio is the entry point that composes the dataset, the
// optimizer, the backtester and the sensitivity runner behind one engine.
package portfolio

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Alias1177/Allocator/internal/backtest"
	"github.com/Alias1177/Allocator/internal/dataset"
	"github.com/Alias1177/Allocator/internal/metrics"
	"github.com/Alias1177/Allocator/internal/model"
	"github.com/Alias1177/Allocator/internal/optimizer"
	"github.com/Alias1177/Allocator/internal/sensitivity"
)

type options struct {
	solver  optimizer.SolverSettings
	workers int
}

// Option configures an Engine
type Option func(*options)

// WithSolverSettings overrides the optimizer's iteration caps
func WithSolverSettings(s optimizer.SolverSettings) Option {
	return func(o *options) { o.solver = s }
}

// WithWorkers bounds the goroutines used by OptimizeAll, Sensitivity and
// SimulateRandomPortfolios; 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// Engine owns one returns dataset for its lifetime and answers every
// optimization, backtest and sensitivity request over it.
type Engine struct {
	ds           *dataset.Dataset
	riskFreeRate float64
	calc         *metrics.Calculator
	optimizer    *optimizer.Optimizer
	backtester   *backtest.Engine
	sensitivity  *sensitivity.Runner
	workers      int
	logger       zerolog.Logger

	mu       sync.Mutex
	last     *model.Allocation
	recorded map[string]model.Allocation
}

// New creates an engine over ds
func New(ds *dataset.Dataset, riskFreeRate float64, opts ...Option) (*Engine, error) {
	if ds == nil {
		return nil, fmt.Errorf("%w: nil dataset", model.ErrInvalidInput)
	}
	if ds.NumAssets() < 2 || ds.Len() < 1 {
		return nil, fmt.Errorf("%w: need at least 2 assets and 1 observation", model.ErrInvalidInput)
	}

	o := options{solver: optimizer.DefaultSolverSettings()}
	for _, opt := range opts {
		opt(&o)
	}

	opt := optimizer.New(o.solver)
	bt := backtest.NewEngine(opt, riskFreeRate)
	return &Engine{
		ds:           ds,
		riskFreeRate: riskFreeRate,
		calc:         metrics.NewCalculator(ds, riskFreeRate),
		optimizer:    opt,
		backtester:   bt,
		sensitivity:  sensitivity.NewRunner(bt, o.workers),
		workers:      o.workers,
		logger:       log.With().Str("component", "portfolio").Logger(),
		recorded:     make(map[string]model.Allocation),
	}, nil
}

// Dataset returns the engine's dataset
func (e *Engine) Dataset() *dataset.Dataset { return e.ds }

// Metrics returns the calculator bound to the full dataset
func (e *Engine) Metrics() *metrics.Calculator { return e.calc }

// Optimize runs the strategy named by key
func (e *Engine) Optimize(key string) (model.Allocation, error) {
	s, err := optimizer.ParseStrategy(key)
	if err != nil {
		return model.Allocation{}, err
	}
	return e.OptimizeStrategy(s)
}

// OptimizeStrategy runs s over the full dataset and remembers the result for RecordWeights
func (e *Engine) OptimizeStrategy(s optimizer.Strategy) (model.Allocation, error) {
	alloc, err := e.optimizer.Optimize(e.ds, e.riskFreeRate, s)
	if err != nil {
		return model.Allocation{}, err
	}
	e.mu.Lock()
	e.last = &alloc
	e.mu.Unlock()
	return alloc, nil
}

// OptimizeAll runs the seven strategies concurrently and returns them in canonical order.
// It does not change the allocation seen by RecordWeights.
func (e *Engine) OptimizeAll(ctx context.Context) ([]model.Allocation, error) {
	strategies := optimizer.Strategies()
	out := make([]model.Allocation, len(strategies))

	g, gCtx := errgroup.WithContext(ctx)
	if e.workers > 0 {
		g.SetLimit(e.workers)
	}
	for i, s := range strategies {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			alloc, err := e.optimizer.Optimize(e.ds, e.riskFreeRate, s)
			if err != nil {
				return fmt.Errorf("%s: %w", s, err)
			}
			out[i] = alloc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordWeights stores the most recent single-strategy allocation under label
func (e *Engine) RecordWeights(label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return fmt.Errorf("%w: empty label", model.ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return fmt.Errorf("%w: no allocation computed yet", model.ErrInvalidInput)
	}
	alloc := *e.last
	alloc.Weights = append([]float64(nil), alloc.Weights...)
	e.recorded[label] = alloc
	return nil
}

// RecordedWeights returns a copy of every labelled allocation
func (e *Engine) RecordedWeights() map[string]model.Allocation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]model.Allocation, len(e.recorded))
	for k, v := range e.recorded {
		v.Weights = append([]float64(nil), v.Weights...)
		out[k] = v
	}
	return out
}

// Report returns the rounded metrics of w over the full dataset
func (e *Engine) Report(w []float64) (model.MetricsReport, error) {
	if err := e.checkWeights(w); err != nil {
		return model.MetricsReport{}, err
	}
	return e.calc.Report(w), nil
}

// RiskContributions returns each asset's share of portfolio volatility under w
func (e *Engine) RiskContributions(w []float64) ([]float64, error) {
	if err := e.checkWeights(w); err != nil {
		return nil, err
	}
	return e.calc.RiskContributions(w), nil
}

func (e *Engine) checkWeights(w []float64) error {
	if len(w) != e.ds.NumAssets() {
		return fmt.Errorf("%w: %d weights for %d assets", model.ErrInvalidInput, len(w), e.ds.NumAssets())
	}
	return nil
}

// Backtest runs a walk-forward backtest of cfg.Strategy
func (e *Engine) Backtest(ctx context.Context, cfg backtest.Config) (*backtest.Result, error) {
	return e.backtester.Run(ctx, e.ds, cfg)
}

// FormatBacktest renders a backtest result as text
func (e *Engine) FormatBacktest(result *backtest.Result) string {
	return e.backtester.FormatResults(result)
}

// Sensitivity sweeps the backtest over the grid of train windows and rebalance
// periods for the strategy named by key. Empty lists use the defaults.
func (e *Engine) Sensitivity(ctx context.Context, trainWindows, rebalancePeriods []int, key string, base backtest.Config) ([]model.SensitivityRow, error) {
	s, err := optimizer.ParseStrategy(key)
	if err != nil {
		return nil, err
	}
	if len(trainWindows) == 0 {
		trainWindows = sensitivity.DefaultTrainWindows()
	}
	if len(rebalancePeriods) == 0 {
		rebalancePeriods = sensitivity.DefaultRebalancePeriods()
	}
	base.Strategy = s
	return e.sensitivity.Run(ctx, e.ds, trainWindows, rebalancePeriods, base)
}
