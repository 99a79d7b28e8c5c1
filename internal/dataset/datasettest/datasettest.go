// Package datasettest builds synthetic return datasets for tests.
package datasettest

import (
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/Alias1177/Allocator/internal/dataset"
)

// Start is the first date of every generated series.
var Start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Dates returns n consecutive daily dates beginning at Start.
func Dates(n int) []time.Time {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = Start.AddDate(0, 0, i)
	}
	return dates
}

// Names returns asset names A, B, C, ...
func Names(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = string(rune('A' + i))
	}
	return names
}

// Sinusoidal returns periods×assets returns r[t][j] = means[j] + amps[j]*sqrt(2)*sin(2π(j+1)t/periods).
// Over whole cycles each column has exactly the requested mean, variance close to
// amps[j]² and zero correlation with every other column.
func Sinusoidal(periods int, means, amps []float64) [][]float64 {
	rows := make([][]float64, periods)
	for t := range rows {
		row := make([]float64, len(means))
		for j := range means {
			phase := 2 * math.Pi * float64(j+1) * float64(t) / float64(periods)
			row[j] = means[j] + amps[j]*math.Sqrt2*math.Sin(phase)
		}
		rows[t] = row
	}
	return rows
}

// Walsh returns 8·reps rows of four mutually orthogonal, zero-mean ±scale columns.
func Walsh(reps int, scale float64) [][]float64 {
	rows := make([][]float64, 0, 8*reps)
	for r := 0; r < reps; r++ {
		for t := 0; t < 8; t++ {
			a := bit(t, 2)
			b := bit(t, 1)
			c := bit(t, 0)
			rows = append(rows, []float64{a * scale, b * scale, c * scale, a * b * scale})
		}
	}
	return rows
}

func bit(t, k int) float64 {
	if t>>k&1 == 1 {
		return -1
	}
	return 1
}

// Normal draws periods rows from a multivariate normal with the given mean and
// covariance, using a Cholesky factor of cov.
func Normal(seed int64, periods int, mu []float64, cov [][]float64) [][]float64 {
	n := len(mu)
	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sigma.SetSym(i, j, cov[i][j])
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(sigma); !ok {
		panic("datasettest: covariance is not positive definite")
	}
	var lower mat.TriDense
	chol.LTo(&lower)

	rng := rand.New(rand.NewSource(seed))
	rows := make([][]float64, periods)
	z := mat.NewVecDense(n, nil)
	for t := range rows {
		for i := 0; i < n; i++ {
			z.SetVec(i, rng.NormFloat64())
		}
		var x mat.VecDense
		x.MulVec(&lower, z)
		row := make([]float64, n)
		for i := range row {
			row[i] = mu[i] + x.AtVec(i)
		}
		rows[t] = row
	}
	return rows
}

// New wraps rows into a Dataset with generated dates and names, panicking on error.
func New(rows [][]float64, opts ...dataset.Option) *dataset.Dataset {
	ds, err := dataset.New(Dates(len(rows)), Names(len(rows[0])), rows, opts...)
	if err != nil {
		panic(err)
	}
	return ds
}
