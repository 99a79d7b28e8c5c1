package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/Allocator/internal/dataset"
	"github.com/Alias1177/Allocator/internal/dataset/datasettest"
	"github.com/Alias1177/Allocator/internal/metrics"
	"github.com/Alias1177/Allocator/internal/model"
)

func correlatedDataset() *dataset.Dataset {
	mu := []float64{0.0006, 0.0003, 0.0004, 0.0002}
	cov := [][]float64{
		{1.0e-4, 6.0e-5, 1.0e-5, 0},
		{6.0e-5, 2.0e-4, 2.0e-5, 1.0e-5},
		{1.0e-5, 2.0e-5, 1.5e-4, 4.0e-5},
		{0, 1.0e-5, 4.0e-5, 0.5e-4},
	}
	return datasettest.New(datasettest.Normal(42, 300, mu, cov))
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		key  string
		want Strategy
	}{
		{"max_sharpe", MaxSharpe},
		{"MIN_VOL", MinVolatility},
		{"Eq", EqualWeight},
		{"equal_weight", EqualWeight},
		{"max_div", MaxDiversification},
		{"ERC", EqualRiskContribution},
		{"min_cvar", MinCVaR},
		{"hrp", HRP},
		{" black_litterman ", BlackLitterman},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := ParseStrategy(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseStrategy("momentum")
	assert.ErrorIs(t, err, model.ErrUnsupportedStrategy)
}

func TestStrategyKeysRoundTrip(t *testing.T) {
	for _, s := range append(Strategies(), BlackLitterman) {
		got, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
		assert.NotEmpty(t, s.DisplayName())
	}
	assert.Len(t, Strategies(), 7)
}

func TestUnknownStrategyValue(t *testing.T) {
	_, err := New(DefaultSolverSettings()).Optimize(correlatedDataset(), 0, Strategy(99))
	assert.ErrorIs(t, err, model.ErrUnsupportedStrategy)
}

func TestSimplexInvariant(t *testing.T) {
	ds := correlatedDataset()
	opt := New(DefaultSolverSettings())

	for _, s := range append(Strategies(), BlackLitterman) {
		t.Run(s.String(), func(t *testing.T) {
			alloc, err := opt.Optimize(ds, 0.01, s)
			require.NoError(t, err)
			require.Len(t, alloc.Weights, ds.NumAssets())

			var sum float64
			for _, w := range alloc.Weights {
				assert.GreaterOrEqual(t, w, 0.0)
				assert.LessOrEqual(t, w, 1.0)
				sum += w
			}
			assert.InDelta(t, 1.0, sum, 1e-6)
			assert.Equal(t, s.String(), alloc.Strategy)
			assert.Equal(t, ds.Assets(), alloc.Assets)
		})
	}
}

func TestEqualWeight(t *testing.T) {
	for _, n := range []int{2, 3, 5} {
		means := make([]float64, n)
		amps := make([]float64, n)
		for i := range means {
			means[i] = float64(i) * 0.001
			amps[i] = float64(i+1) * 0.01
		}
		ds := datasettest.New(datasettest.Sinusoidal(60, means, amps))
		alloc, err := New(DefaultSolverSettings()).Optimize(ds, 0, EqualWeight)
		require.NoError(t, err)
		for _, w := range alloc.Weights {
			assert.InDelta(t, 1/float64(n), w, 1e-12)
		}
		assert.True(t, alloc.Converged)
	}
}

func TestSolverImprovesOnUniformStart(t *testing.T) {
	ds := correlatedDataset()
	calc := metrics.NewCalculator(ds, 0.01)
	opt := New(DefaultSolverSettings())
	start := uniform(ds.NumAssets())

	sharpe, err := opt.Optimize(ds, 0.01, MaxSharpe)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calc.SharpeRatio(sharpe.Weights), calc.SharpeRatio(start)-1e-9)

	minVol, err := opt.Optimize(ds, 0.01, MinVolatility)
	require.NoError(t, err)
	assert.LessOrEqual(t, calc.Volatility(minVol.Weights), calc.Volatility(start)+1e-9)

	cvar, err := opt.Optimize(ds, 0.01, MinCVaR)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calc.ConditionalVaR(cvar.Weights, metrics.DefaultAlpha),
		calc.ConditionalVaR(start, metrics.DefaultAlpha)-1e-9)

	div, err := opt.Optimize(ds, 0.01, MaxDiversification)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calc.DiversificationRatio(div.Weights), calc.DiversificationRatio(start)-1e-9)
}

func TestMinCVaRReducesTailLoss(t *testing.T) {
	tests := []struct {
		name string
		ds   *dataset.Dataset
	}{
		{"correlated", correlatedDataset()},
		{"one volatile asset", datasettest.New(datasettest.Normal(7, 250,
			[]float64{0.0004, 0.0003, 0.0002},
			[][]float64{{4e-4, 0, 0}, {0, 1e-4, 0}, {0, 0, 2.5e-5}}))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := metrics.NewCalculator(tt.ds, 0.01)
			n := tt.ds.NumAssets()

			// CVaR is the mean tail return, so a losing tail is negative
			base := calc.ConditionalVaR(uniform(n), metrics.DefaultAlpha)
			require.Less(t, base, 0.0)

			alloc, err := New(DefaultSolverSettings()).Optimize(tt.ds, 0.01, MinCVaR)
			require.NoError(t, err)
			got := calc.ConditionalVaR(alloc.Weights, metrics.DefaultAlpha)
			assert.GreaterOrEqual(t, got, base-1e-9)

			worst := 0.0
			for i := 0; i < n; i++ {
				corner := make([]float64, n)
				corner[i] = 1
				worst = min(worst, calc.ConditionalVaR(corner, metrics.DefaultAlpha))
			}
			assert.Greater(t, got, worst)
		})
	}
}

func TestEndToEndUncorrelatedAssets(t *testing.T) {
	means := []float64{0.001, 0.0005, 0.0008}
	opt := New(DefaultSolverSettings())

	t.Run("max sharpe prefers the higher mean", func(t *testing.T) {
		ds := datasettest.New(datasettest.Sinusoidal(300, means, []float64{0.01, 0.01, 0.01}))
		alloc, err := opt.Optimize(ds, 0, MaxSharpe)
		require.NoError(t, err)
		assert.Greater(t, alloc.Weights[0], alloc.Weights[1])
		// with equal variances the tangency weights are proportional to the means
		assert.InDelta(t, 0.4348, alloc.Weights[0], 0.03)
		assert.InDelta(t, 0.2174, alloc.Weights[1], 0.03)
		assert.InDelta(t, 0.3478, alloc.Weights[2], 0.03)
	})

	t.Run("min volatility is inverse to variance", func(t *testing.T) {
		ds := datasettest.New(datasettest.Sinusoidal(300, means, []float64{0.01, 0.02, 0.03}))
		alloc, err := opt.Optimize(ds, 0, MinVolatility)
		require.NoError(t, err)
		assert.InDelta(t, 0.7347, alloc.Weights[0], 0.02)
		assert.InDelta(t, 0.1837, alloc.Weights[1], 0.02)
		assert.InDelta(t, 0.0816, alloc.Weights[2], 0.02)
	})

	t.Run("risk contributions equalize at inverse volatility", func(t *testing.T) {
		ds := datasettest.New(datasettest.Sinusoidal(300, means, []float64{0.01, 0.02, 0.04}))
		alloc, err := opt.Optimize(ds, 0, EqualRiskContribution)
		require.NoError(t, err)
		assert.InDelta(t, 0.5714, alloc.Weights[0], 0.02)
		assert.InDelta(t, 0.2857, alloc.Weights[1], 0.02)
		assert.InDelta(t, 0.1429, alloc.Weights[2], 0.02)
	})
}

func TestNonConvergenceIsAWarning(t *testing.T) {
	settings := DefaultSolverSettings()
	settings.MaxIterations = 1
	settings.Restarts = 0

	alloc, err := New(settings).Optimize(correlatedDataset(), 0.01, MinVolatility)
	require.NoError(t, err)
	assert.False(t, alloc.Converged)
	assert.Contains(t, alloc.Warning, model.ErrSolverNonConvergence.Error())

	var sum float64
	for _, w := range alloc.Weights {
		assert.GreaterOrEqual(t, w, 0.0)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestHRPOnUncorrelatedAssets(t *testing.T) {
	ds := datasettest.New(datasettest.Walsh(10, 0.01))
	alloc, err := New(DefaultSolverSettings()).Optimize(ds, 0, HRP)
	require.NoError(t, err)
	for _, w := range alloc.Weights {
		assert.InDelta(t, 0.25, w, 1e-9)
	}
}

func TestHRPPositiveWeights(t *testing.T) {
	w := hierarchicalRiskParity(correlatedDataset())
	var sum float64
	for _, v := range w {
		assert.Greater(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestSingleLinkageOrder(t *testing.T) {
	tests := []struct {
		name string
		dist [][]float64
		want []int
	}{
		{
			name: "single asset",
			dist: [][]float64{{0}},
			want: []int{0},
		},
		{
			name: "two tight pairs",
			dist: [][]float64{
				{0, 0.9, 0.1, 0.9},
				{0.9, 0, 0.9, 0.2},
				{0.1, 0.9, 0, 0.9},
				{0.9, 0.2, 0.9, 0},
			},
			want: []int{0, 2, 1, 3},
		},
		{
			name: "leaf joins existing cluster on the left",
			dist: [][]float64{
				{0, 0.5, 0.6},
				{0.5, 0, 0.1},
				{0.6, 0.1, 0},
			},
			want: []int{0, 1, 2},
		},
		{
			name: "chaining uses the nearest member",
			dist: [][]float64{
				{0, 0.8, 0.3, 0.9},
				{0.8, 0, 0.7, 0.2},
				{0.3, 0.7, 0, 0.95},
				{0.9, 0.2, 0.95, 0},
			},
			// merges: (1,3)->4, (0,2)->5, (4,5)->6 at 0.7
			want: []int{1, 3, 0, 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, singleLinkageOrder(tt.dist))
		})
	}
}

func TestClusterRisk(t *testing.T) {
	ds := datasettest.New(datasettest.Walsh(2, 0.01))
	cov := ds.Covariance()
	single := clusterRisk(cov, []int{0})
	pair := clusterRisk(cov, []int{0, 1})
	// two uncorrelated equal-variance assets halve the variance
	assert.InDelta(t, single/pair, 1.4142135623730951, 1e-9)
}
