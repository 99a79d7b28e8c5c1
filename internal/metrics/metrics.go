package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/Alias1177/Allocator/internal/dataset"
	"github.com/Alias1177/Allocator/internal/model"
)

const (
	// DegenerateRatio is returned by ratio metrics whose denominator is zero.
	DegenerateRatio = 0.001

	// DefaultAlpha is the tail probability used for VaR and CVaR.
	DefaultAlpha = 0.05

	// ReportPrecision is the number of decimals kept by reporting-facing values.
	ReportPrecision = 2
)

// Calculator evaluates risk and return statistics of weight vectors over one dataset.
// Raw methods are meant for solvers; Report and RoundedPerformance are for callers.
type Calculator struct {
	ds           *dataset.Dataset
	riskFreeRate float64
	means        []float64
}

// NewCalculator creates a calculator bound to ds and an annual risk-free rate
func NewCalculator(ds *dataset.Dataset, riskFreeRate float64) *Calculator {
	return &Calculator{
		ds:           ds,
		riskFreeRate: riskFreeRate,
		means:        ds.MeanReturns(),
	}
}

// Dataset returns the dataset the calculator reads from
func (c *Calculator) Dataset() *dataset.Dataset { return c.ds }

// RiskFreeRate returns the annual risk-free rate
func (c *Calculator) RiskFreeRate() float64 { return c.riskFreeRate }

// Performance returns the unrounded annualized return and volatility of w
func (c *Calculator) Performance(w []float64) (float64, float64) {
	return c.annualReturn(w), c.Volatility(w)
}

// RoundedPerformance is Performance rounded for reporting
func (c *Calculator) RoundedPerformance(w []float64) (float64, float64) {
	ret, vol := c.Performance(w)
	return Round(ret), Round(vol)
}

func (c *Calculator) annualReturn(w []float64) float64 {
	return floats.Dot(c.means, w) * c.ds.PeriodsPerYear()
}

// Volatility returns sqrt(wᵗ·Σ·w) using the dataset's annualized covariance
func (c *Calculator) Volatility(w []float64) float64 {
	v := mat.NewVecDense(len(w), append([]float64(nil), w...))
	variance := mat.Inner(v, c.ds.Covariance(), v)
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// SharpeRatio returns the excess return per unit of volatility
func (c *Calculator) SharpeRatio(w []float64) float64 {
	ret, vol := c.Performance(w)
	if vol == 0 {
		return DegenerateRatio
	}
	return (ret - c.riskFreeRate) / vol
}

// SortinoRatio is the Sharpe analogue using only below-target periodic returns.
func (c *Calculator) SortinoRatio(w []float64, target float64) float64 {
	ret := c.annualReturn(w)
	var sumSquares float64
	returns := c.ds.PortfolioReturns(w)
	for _, r := range returns {
		if d := r - target; d < 0 {
			sumSquares += d * d
		}
	}
	downside := math.Sqrt(sumSquares/float64(len(returns))) * math.Sqrt(c.ds.PeriodsPerYear())
	if downside == 0 {
		return DegenerateRatio
	}
	return (ret - target) / downside
}

// MaxDrawdown returns the largest fall of the cumulative-return path from its
// running peak, as a positive fraction. Points where the peak is not positive count as 0.
func (c *Calculator) MaxDrawdown(w []float64) float64 {
	return CumulativeDrawdown(c.ds.PortfolioReturns(w))
}

// ValueAtRisk returns the alpha lower-tail quantile of periodic portfolio returns
func (c *Calculator) ValueAtRisk(w []float64, alpha float64) float64 {
	return Percentile(c.ds.PortfolioReturns(w), alpha)
}

// ConditionalVaR returns the mean periodic return at or below the VaR threshold
func (c *Calculator) ConditionalVaR(w []float64, alpha float64) float64 {
	returns := c.ds.PortfolioReturns(w)
	threshold := Percentile(returns, alpha)

	var sum float64
	var count int
	for _, r := range returns {
		if r <= threshold {
			sum += r
			count++
		}
	}
	if count == 0 {
		return DegenerateRatio
	}
	return sum / float64(count)
}

// RiskContributions returns w_i·(Σw)_i / σ_p for every asset.
// The contributions sum to the portfolio volatility.
func (c *Calculator) RiskContributions(w []float64) []float64 {
	rc := make([]float64, len(w))
	vol := c.Volatility(w)
	if vol == 0 {
		return rc
	}
	var marginal mat.VecDense
	marginal.MulVec(c.ds.Covariance(), mat.NewVecDense(len(w), append([]float64(nil), w...)))
	for i := range rc {
		rc[i] = w[i] * marginal.AtVec(i) / vol
	}
	return rc
}

// DiversificationRatio returns (w·σ) / σ_p, where σ holds the per-asset annualized std devs
func (c *Calculator) DiversificationRatio(w []float64) float64 {
	vol := c.Volatility(w)
	if vol == 0 {
		return DegenerateRatio
	}
	return floats.Dot(w, c.ds.AnnualizedStdDev()) / vol
}

// Report returns every metric of w rounded to ReportPrecision decimals
func (c *Calculator) Report(w []float64) model.MetricsReport {
	ret, vol := c.RoundedPerformance(w)
	return model.MetricsReport{
		AnnualReturn:     ret,
		AnnualVolatility: vol,
		SharpeRatio:      Round(c.SharpeRatio(w)),
		SortinoRatio:     Round(c.SortinoRatio(w, 0)),
		MaxDrawdown:      Round(c.MaxDrawdown(w)),
		ValueAtRisk:      Round(c.ValueAtRisk(w, DefaultAlpha)),
		ConditionalVaR:   Round(c.ConditionalVaR(w, DefaultAlpha)),
	}
}

// Round rounds v half away from zero to ReportPrecision decimals
func Round(v float64) float64 {
	scale := math.Pow(10, ReportPrecision)
	return math.Round(v*scale) / scale
}

// Percentile returns the p-quantile (0 <= p <= 1) of values by linear
// interpolation between closest ranks. The input is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	h := p * float64(len(sorted)-1)
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	if lo < 0 {
		return sorted[0]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// CumulativeReturns returns the compounded path ∏(1+r) − 1
func CumulativeReturns(returns []float64) []float64 {
	out := make([]float64, len(returns))
	value := 1.0
	for i, r := range returns {
		value *= 1 + r
		out[i] = value - 1
	}
	return out
}

// CumulativeDrawdown measures drawdowns on the cumulative-return path against
// its running peak and returns the largest, as a value >= 0.
func CumulativeDrawdown(returns []float64) float64 {
	var maxDrawdown float64
	peak := math.Inf(-1)
	for _, cum := range CumulativeReturns(returns) {
		if cum > peak {
			peak = cum
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - cum) / peak; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// ValueDrawdown measures drawdowns on the value path ∏(1+r) and returns the
// most negative one, as a value <= 0.
func ValueDrawdown(returns []float64) float64 {
	var worst float64
	peak := math.Inf(-1)
	value := 1.0
	for _, r := range returns {
		value *= 1 + r
		if value > peak {
			peak = value
		}
		if peak <= 0 {
			continue
		}
		if dd := (value - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst
}

// AnnualizedReturn returns mean(returns)·periodsPerYear
func AnnualizedReturn(returns []float64, periodsPerYear float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return stat.Mean(returns, nil) * periodsPerYear
}

// AnnualizedVolatility returns the sample std dev of returns scaled by sqrt(periodsPerYear)
func AnnualizedVolatility(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(periodsPerYear)
}

// SeriesSharpe returns the Sharpe ratio of a realized return series
func SeriesSharpe(returns []float64, riskFreeRate, periodsPerYear float64) float64 {
	vol := AnnualizedVolatility(returns, periodsPerYear)
	if vol == 0 {
		return DegenerateRatio
	}
	return (AnnualizedReturn(returns, periodsPerYear) - riskFreeRate) / vol
}
