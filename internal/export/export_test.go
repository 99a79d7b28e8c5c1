package export

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/Allocator/internal/backtest"
	"github.com/Alias1177/Allocator/internal/model"
)

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func sampleResult() *backtest.Result {
	d0 := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	return &backtest.Result{
		Strategy:   "HRP",
		Assets:     []string{"SPY", "TLT"},
		Dates:      []time.Time{d0, d0.AddDate(0, 0, 1)},
		Returns:    []float64{0.01, -0.02},
		Cumulative: []float64{0.01, -0.0102},
		Rebalances: []model.Rebalance{
			{Date: d0.AddDate(0, 0, -1), Weights: []float64{0.6, 0.4}, CostAdjustment: 1},
		},
		Curve: backtest.Curve{
			Values:        []float64{1.01, 0.9898},
			BenchmarkName: "SPY",
			Benchmark:     []float64{1.005, 1.0},
		},
	}
}

func TestWriteAllocations(t *testing.T) {
	allocs := []model.Allocation{
		{Strategy: "max_sharpe", Assets: []string{"SPY", "TLT"}, Weights: []float64{0.7, 0.3}, AnnualReturn: 0.12, AnnualVolatility: 0.15, Converged: true},
		{Strategy: "HRP", Assets: []string{"SPY", "TLT"}, Weights: []float64{0.4, 0.6}, Converged: true},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAllocations(&buf, allocs))

	got := lines(buf.String())
	require.Len(t, got, 5)
	assert.Equal(t, "strategy,asset,weight,annual_return,annual_volatility,converged,warning", got[0])
	assert.Equal(t, "max_sharpe,SPY,0.7,0.12,0.15,true,", got[1])
	assert.True(t, strings.HasPrefix(got[4], "HRP,TLT,0.6,"))
}

func TestWriteBacktest(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBacktest(&buf, sampleResult()))

	got := lines(buf.String())
	require.Len(t, got, 3)
	assert.Equal(t, "date,return,cumulative_return,value,benchmark_value", got[0])
	assert.Equal(t, "2021-03-01,0.01,0.01,1.01,1.005", got[1])
	assert.Equal(t, "2021-03-02,-0.02,-0.0102,0.9898,1", got[2])
}

func TestWriteRebalances(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRebalances(&buf, sampleResult()))

	got := lines(buf.String())
	require.Len(t, got, 3)
	assert.Equal(t, "date,asset,weight,turnover,cost_adjustment", got[0])
	assert.Equal(t, "2021-02-28,SPY,0.6,0,1", got[1])
	assert.Equal(t, "2021-02-28,TLT,0.4,0,1", got[2])
}

func TestWriteSensitivity(t *testing.T) {
	rows := []model.SensitivityRow{
		{TrainWindow: 252, RebalancePeriod: 63, AnnualReturn: 0.1, AnnualVolatility: 0.2, SharpeRatio: 0.45, MaxDrawdown: -0.3},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSensitivity(&buf, rows))

	got := lines(buf.String())
	require.Len(t, got, 2)
	assert.Equal(t, "train_window,rebalance_period,annual_return,annual_volatility,sharpe_ratio,max_drawdown", got[0])
	assert.Equal(t, "252,63,0.1,0.2,0.45,-0.3", got[1])
}

func TestWriteSimulation(t *testing.T) {
	points := []model.SimulationPoint{{Weights: []float64{0.25, 0.75}, AnnualReturn: 0.08, AnnualVolatility: 0.1, SharpeRatio: 0.7}}
	var buf bytes.Buffer
	require.NoError(t, WriteSimulation(&buf, points))

	got := lines(buf.String())
	require.Len(t, got, 2)
	assert.Equal(t, "0.08,0.1,0.7,0.250000;0.750000", got[1])
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path, err := WriteFile(dir, "rows.csv", func(w io.Writer) error {
		return WriteSensitivity(w, []model.SensitivityRow{{TrainWindow: 126, RebalancePeriod: 21}})
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "126,21,")
}
