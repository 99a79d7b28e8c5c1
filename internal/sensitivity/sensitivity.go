// Package sensitivity sweeps walk-forward backtests over a grid of train windows and rebalance periods.
package sensitivity

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Alias1177/Allocator/internal/backtest"
	"github.com/Alias1177/Allocator/internal/dataset"
	"github.com/Alias1177/Allocator/internal/model"
)

// Backtester runs a single walk-forward backtest
type Backtester interface {
	Run(ctx context.Context, ds *dataset.Dataset, cfg backtest.Config) (*backtest.Result, error)
}

// DefaultTrainWindows are the train windows swept when none are given
func DefaultTrainWindows() []int { return []int{252, 126} }

// DefaultRebalancePeriods are the rebalance periods swept when none are given
func DefaultRebalancePeriods() []int { return []int{63, 21} }

// Runner evaluates every grid point as an independent backtest
type Runner struct {
	backtester Backtester
	workers    int
	logger     zerolog.Logger
}

// NewRunner creates a runner; workers <= 0 uses GOMAXPROCS
func NewRunner(b Backtester, workers int) *Runner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Runner{
		backtester: b,
		workers:    workers,
		logger:     log.With().Str("component", "sensitivity").Logger(),
	}
}

// Run backtests every (train window, rebalance period) pair with the rest of
// base held fixed. Rows come back in Cartesian order, train window outer.
// Any failing grid point fails the whole sweep.
func (r *Runner) Run(ctx context.Context, ds *dataset.Dataset, trainWindows, rebalancePeriods []int, base backtest.Config) ([]model.SensitivityRow, error) {
	if len(trainWindows) == 0 || len(rebalancePeriods) == 0 {
		return nil, fmt.Errorf("%w: sensitivity grid needs at least one train window and one rebalance period", model.ErrInvalidInput)
	}

	rows := make([]model.SensitivityRow, len(trainWindows)*len(rebalancePeriods))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, tw := range trainWindows {
		for j, rp := range rebalancePeriods {
			idx := i*len(rebalancePeriods) + j
			cfg := base
			cfg.TrainWindow = tw
			cfg.RebalancePeriod = rp

			g.Go(func() error {
				result, err := r.backtester.Run(gCtx, ds, cfg)
				if err != nil {
					return fmt.Errorf("train window %d, rebalance period %d: %w", tw, rp, err)
				}
				m := result.Summary()
				rows[idx] = model.SensitivityRow{
					TrainWindow:      tw,
					RebalancePeriod:  rp,
					AnnualReturn:     m.AnnualReturn,
					AnnualVolatility: m.AnnualVolatility,
					SharpeRatio:      m.SharpeRatio,
					MaxDrawdown:      m.MaxDrawdown,
				}
				r.logger.Debug().Int("train_window", tw).Int("rebalance_period", rp).Float64("sharpe", m.SharpeRatio).Msg("Grid point done")
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Info().Int("grid_points", len(rows)).Str("strategy", base.Strategy.String()).Msg("Sensitivity sweep complete")
	return rows, nil
}

// FormatTable renders rows as a fixed-width text table
func FormatTable(rows []model.SensitivityRow) string {
	if len(rows) == 0 {
		return "No sensitivity results available"
	}

	var b strings.Builder
	b.WriteString("\n===== SENSITIVITY ANALYSIS =====\n")
	fmt.Fprintf(&b, "%-12s %-16s %12s %12s %8s %12s\n",
		"Train Window", "Rebalance Period", "Ann. Return", "Ann. Vol", "Sharpe", "Max DD")
	for _, row := range rows {
		fmt.Fprintf(&b, "%-12d %-16d %11.2f%% %11.2f%% %8.2f %11.2f%%\n",
			row.TrainWindow, row.RebalancePeriod,
			row.AnnualReturn*100, row.AnnualVolatility*100, row.SharpeRatio, row.MaxDrawdown*100)
	}
	return b.String()
}
