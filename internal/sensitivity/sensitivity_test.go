package sensitivity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/Allocator/internal/backtest"
	"github.com/Alias1177/Allocator/internal/dataset"
	"github.com/Alias1177/Allocator/internal/dataset/datasettest"
	"github.com/Alias1177/Allocator/internal/model"
	"github.com/Alias1177/Allocator/internal/optimizer"
)

// recordingBacktester reports the grid point back through the metrics
type recordingBacktester struct {
	mu    sync.Mutex
	calls []backtest.Config
	fail  int // train window that fails, 0 for none
}

func (b *recordingBacktester) Run(_ context.Context, _ *dataset.Dataset, cfg backtest.Config) (*backtest.Result, error) {
	b.mu.Lock()
	b.calls = append(b.calls, cfg)
	b.mu.Unlock()

	if cfg.TrainWindow == b.fail {
		return nil, model.ErrInsufficientData
	}
	key := cfg.Strategy.String()
	return &backtest.Result{
		Strategy: key,
		Metrics: map[string]model.BacktestMetrics{
			key: {
				AnnualReturn:     float64(cfg.TrainWindow),
				AnnualVolatility: float64(cfg.RebalancePeriod),
				SharpeRatio:      float64(cfg.TrainWindow) / float64(cfg.RebalancePeriod),
				MaxDrawdown:      -0.1,
			},
		},
	}, nil
}

func TestRunCartesianOrder(t *testing.T) {
	bt := &recordingBacktester{}
	runner := NewRunner(bt, 3)
	base := backtest.Config{Strategy: optimizer.HRP, TransactionCost: 0.002}

	rows, err := runner.Run(context.Background(), nil, []int{252, 126, 60}, []int{63, 21}, base)
	require.NoError(t, err)
	require.Len(t, rows, 6)

	want := [][2]int{{252, 63}, {252, 21}, {126, 63}, {126, 21}, {60, 63}, {60, 21}}
	for i, row := range rows {
		assert.Equal(t, want[i][0], row.TrainWindow)
		assert.Equal(t, want[i][1], row.RebalancePeriod)
		assert.Equal(t, float64(row.TrainWindow), row.AnnualReturn)
		assert.Equal(t, float64(row.RebalancePeriod), row.AnnualVolatility)
		assert.Equal(t, -0.1, row.MaxDrawdown)
	}

	require.Len(t, bt.calls, 6)
	for _, cfg := range bt.calls {
		assert.Equal(t, optimizer.HRP, cfg.Strategy)
		assert.Equal(t, 0.002, cfg.TransactionCost)
	}
}

func TestRunFailsWhenAnyGridPointFails(t *testing.T) {
	runner := NewRunner(&recordingBacktester{fail: 126}, 2)
	rows, err := runner.Run(context.Background(), nil, DefaultTrainWindows(), DefaultRebalancePeriods(), backtest.Config{})
	assert.Nil(t, rows)
	assert.ErrorIs(t, err, model.ErrInsufficientData)
	assert.Contains(t, err.Error(), "train window 126")
}

func TestRunRejectsEmptyGrid(t *testing.T) {
	runner := NewRunner(&recordingBacktester{}, 0)
	_, err := runner.Run(context.Background(), nil, nil, []int{21}, backtest.Config{})
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
	_, err = runner.Run(context.Background(), nil, []int{21}, []int{}, backtest.Config{})
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestRunWithBacktestEngine(t *testing.T) {
	ds := datasettest.New(datasettest.Sinusoidal(160, []float64{0.001, 0.0005, 0.0008}, []float64{0.01, 0.02, 0.015}))
	engine := backtest.NewEngine(optimizer.New(optimizer.DefaultSolverSettings()), 0)
	runner := NewRunner(engine, 0)

	rows, err := runner.Run(context.Background(), ds, []int{60, 40}, []int{30, 20}, backtest.Config{Strategy: optimizer.EqualWeight})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for _, row := range rows {
		assert.LessOrEqual(t, row.MaxDrawdown, 0.0)
		assert.Greater(t, row.AnnualVolatility, 0.0)
	}

	_, err = runner.Run(context.Background(), ds, []int{200}, []int{20}, backtest.Config{Strategy: optimizer.EqualWeight})
	assert.ErrorIs(t, err, model.ErrInsufficientData)
}

func TestFormatTable(t *testing.T) {
	assert.Equal(t, "No sensitivity results available", FormatTable(nil))

	out := FormatTable([]model.SensitivityRow{{TrainWindow: 252, RebalancePeriod: 63, AnnualReturn: 0.1, AnnualVolatility: 0.2, SharpeRatio: 0.45, MaxDrawdown: -0.15}})
	assert.Contains(t, out, "Train Window")
	assert.Contains(t, out, "252")
	assert.Contains(t, out, "10.00%")
	assert.Contains(t, out, "-15.00%")
	assert.Contains(t, out, "0.45")
}
