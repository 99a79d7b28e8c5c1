package dataset

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/Alias1177/Allocator/internal/model"
)

// DefaultPeriodsPerYear is the number of trading days used to annualize daily returns.
const DefaultPeriodsPerYear = 252

// CovarianceEstimator builds an annualized covariance matrix from a periods×assets returns matrix.
type CovarianceEstimator func(returns mat.Matrix, periodsPerYear float64) (*mat.SymDense, error)

type options struct {
	periodsPerYear float64
	estimator      CovarianceEstimator
}

// Option configures a Dataset at construction time.
type Option func(*options)

// WithPeriodsPerYear overrides the annualization multiplier.
func WithPeriodsPerYear(n float64) Option {
	return func(o *options) { o.periodsPerYear = n }
}

// WithCovarianceEstimator replaces the sample covariance estimator.
func WithCovarianceEstimator(est CovarianceEstimator) Option {
	return func(o *options) { o.estimator = est }
}

// Dataset is an immutable dates×assets view over periodic returns and
// their annualized covariance.
type Dataset struct {
	dates          []time.Time
	assets         []string
	returns        *mat.Dense
	cov            *mat.SymDense
	periodsPerYear float64
}

// New validates the returns table, orders it by date and derives the covariance.
// rows[t][j] is the return of assets[j] at dates[t].
func New(dates []time.Time, assets []string, rows [][]float64, opts ...Option) (*Dataset, error) {
	o := options{periodsPerYear: DefaultPeriodsPerYear}
	for _, opt := range opts {
		opt(&o)
	}
	if o.periodsPerYear <= 0 || math.IsNaN(o.periodsPerYear) {
		return nil, fmt.Errorf("%w: periods per year must be positive, got %v", model.ErrInvalidInput, o.periodsPerYear)
	}

	n := len(assets)
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 assets, got %d", model.ErrInvalidInput, n)
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: empty return series", model.ErrInvalidInput)
	}
	if len(rows) != len(dates) {
		return nil, fmt.Errorf("%w: %d dates but %d rows", model.ErrInvalidInput, len(dates), len(rows))
	}

	seen := make(map[string]struct{}, n)
	for _, a := range assets {
		if a == "" {
			return nil, fmt.Errorf("%w: empty asset name", model.ErrInvalidInput)
		}
		if _, dup := seen[a]; dup {
			return nil, fmt.Errorf("%w: duplicate asset %q", model.ErrInvalidInput, a)
		}
		seen[a] = struct{}{}
	}

	order := make([]int, len(dates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return dates[order[i]].Before(dates[order[j]]) })

	sortedDates := make([]time.Time, len(dates))
	data := make([]float64, 0, len(dates)*n)
	for t, idx := range order {
		sortedDates[t] = dates[idx]
		if t > 0 && !sortedDates[t].After(sortedDates[t-1]) {
			return nil, fmt.Errorf("%w: duplicate date %s", model.ErrInvalidInput, sortedDates[t].Format(time.DateOnly))
		}
		row := rows[idx]
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %s has %d values, want %d",
				model.ErrInvalidInput, dates[idx].Format(time.DateOnly), len(row), n)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite return for %s at %s",
					model.ErrInvalidInput, assets[j], dates[idx].Format(time.DateOnly))
			}
		}
		data = append(data, row...)
	}

	ds := &Dataset{
		dates:          sortedDates,
		assets:         append([]string(nil), assets...),
		returns:        mat.NewDense(len(sortedDates), n, data),
		periodsPerYear: o.periodsPerYear,
	}

	if o.estimator == nil {
		ds.cov = SampleCovariance(ds.returns, o.periodsPerYear)
		return ds, nil
	}

	cov, err := o.estimator(ds.returns, o.periodsPerYear)
	if err != nil {
		return nil, fmt.Errorf("%w: covariance estimator: %v", model.ErrInvalidInput, err)
	}
	if cov == nil || cov.SymmetricDim() != n {
		return nil, fmt.Errorf("%w: covariance estimator returned wrong shape", model.ErrInvalidInput)
	}
	ds.cov = mat.NewSymDense(n, nil)
	ds.cov.CopySym(cov)
	return ds, nil
}

// SampleCovariance is the default estimator: the unbiased sample covariance
// scaled by periodsPerYear. A single observation yields a zero matrix.
func SampleCovariance(returns mat.Matrix, periodsPerYear float64) *mat.SymDense {
	r, c := returns.Dims()
	cov := mat.NewSymDense(c, nil)
	if r < 2 {
		return cov
	}
	stat.CovarianceMatrix(cov, returns, nil)
	cov.ScaleSym(periodsPerYear, cov)
	return cov
}

// Len returns the number of observations.
func (d *Dataset) Len() int { return len(d.dates) }

// NumAssets returns the number of assets.
func (d *Dataset) NumAssets() int { return len(d.assets) }

// PeriodsPerYear returns the annualization multiplier.
func (d *Dataset) PeriodsPerYear() float64 { return d.periodsPerYear }

// Assets returns a copy of the asset names in canonical order.
func (d *Dataset) Assets() []string { return append([]string(nil), d.assets...) }

// Dates returns a copy of the observation dates.
func (d *Dataset) Dates() []time.Time { return append([]time.Time(nil), d.dates...) }

// Date returns the i-th observation date.
func (d *Dataset) Date(i int) time.Time { return d.dates[i] }

// Returns exposes the returns matrix read-only.
func (d *Dataset) Returns() mat.Matrix { return d.returns }

// Covariance exposes the annualized covariance read-only.
func (d *Dataset) Covariance() mat.Symmetric { return d.cov }

// Column returns a copy of the return series of asset j.
func (d *Dataset) Column(j int) []float64 { return mat.Col(nil, j, d.returns) }

// MeanReturns returns the per-asset mean periodic return.
func (d *Dataset) MeanReturns() []float64 {
	means := make([]float64, d.NumAssets())
	for j := range means {
		means[j] = stat.Mean(d.Column(j), nil)
	}
	return means
}

// AnnualizedStdDev returns the per-asset sample standard deviation scaled by sqrt(periodsPerYear).
func (d *Dataset) AnnualizedStdDev() []float64 {
	sd := make([]float64, d.NumAssets())
	if d.Len() < 2 {
		return sd
	}
	scale := math.Sqrt(d.periodsPerYear)
	for j := range sd {
		sd[j] = stat.StdDev(d.Column(j), nil) * scale
	}
	return sd
}

// Correlation returns the sample correlation of the window's own returns.
// Undefined entries (a constant series) become 0 off the diagonal and 1 on it.
func (d *Dataset) Correlation() *mat.SymDense {
	n := d.NumAssets()
	corr := mat.NewSymDense(n, nil)
	if d.Len() >= 2 {
		stat.CorrelationMatrix(corr, d.returns, nil)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := corr.At(i, j)
			switch {
			case i == j:
				corr.SetSym(i, j, 1)
			case math.IsNaN(v) || d.Len() < 2:
				corr.SetSym(i, j, 0)
			}
		}
	}
	return corr
}

// PortfolioReturns returns the periodic portfolio return series returns·w.
func (d *Dataset) PortfolioReturns(w []float64) []float64 {
	var out mat.VecDense
	out.MulVec(d.returns, mat.NewVecDense(len(w), append([]float64(nil), w...)))
	return out.RawVector().Data
}

// Window returns rows [from, to) as a new Dataset. The window keeps the
// parent's full-period covariance instead of re-estimating it, so anything
// computed from Covariance on a window (portfolio volatility, ERC risk
// contributions, HRP cluster risk) matches the parent, not the window's own
// rows. Means, std devs, correlation and PortfolioReturns do use the window's
// rows. A Dataset built with New from the same rows gives different figures.
func (d *Dataset) Window(from, to int) (*Dataset, error) {
	if from < 0 || to > d.Len() || from >= to {
		return nil, fmt.Errorf("%w: window [%d, %d) outside %d observations", model.ErrInvalidInput, from, to, d.Len())
	}
	return &Dataset{
		dates:          d.dates[from:to:to],
		assets:         d.assets,
		returns:        mat.DenseCopyOf(d.returns.Slice(from, to, 0, d.NumAssets())),
		cov:            d.cov,
		periodsPerYear: d.periodsPerYear,
	}, nil
}

// Between restricts the dataset to the inclusive date range [start, end].
// A zero start or end leaves that side unbounded.
func (d *Dataset) Between(start, end time.Time) (*Dataset, error) {
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", model.ErrInvalidInput,
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	from := 0
	if !start.IsZero() {
		from = sort.Search(d.Len(), func(i int) bool { return !d.dates[i].Before(start) })
	}
	to := d.Len()
	if !end.IsZero() {
		to = sort.Search(d.Len(), func(i int) bool { return d.dates[i].After(end) })
	}
	if from >= to {
		return nil, fmt.Errorf("%w: no observations between %s and %s", model.ErrInsufficientData,
			start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return d.Window(from, to)
}
