package portfolio

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Alias1177/Allocator/internal/metrics"
	"github.com/Alias1177/Allocator/internal/model"
)

// Simulation holds random long-only portfolios and the best one by Sharpe ratio
type Simulation struct {
	Points []model.SimulationPoint
	Best   model.SimulationPoint
}

// SimulateRandomPortfolios draws n random weight vectors and scores them.
// The draw is split into chunks seeded from seed, so results do not depend on scheduling.
func (e *Engine) SimulateRandomPortfolios(ctx context.Context, n int, seed int64) (*Simulation, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: number of portfolios must be positive, got %d", model.ErrInvalidInput, n)
	}

	workers := e.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := (n + workers - 1) / workers

	points := make([]model.SimulationPoint, n)
	g, gCtx := errgroup.WithContext(ctx)
	for c, start := 0, 0; start < n; c, start = c+1, start+chunk {
		end := min(start+chunk, n)
		rng := rand.New(rand.NewSource(seed + int64(c)))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%256 == 0 {
					if err := gCtx.Err(); err != nil {
						return err
					}
				}
				points[i] = e.samplePoint(rng)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := 0
	for i := range points {
		if points[i].SharpeRatio > points[best].SharpeRatio {
			best = i
		}
	}

	e.logger.Info().
		Int("portfolios", n).
		Float64("best_sharpe", points[best].SharpeRatio).
		Msg("Random portfolio simulation complete")

	return &Simulation{Points: points, Best: points[best]}, nil
}

func (e *Engine) samplePoint(rng *rand.Rand) model.SimulationPoint {
	w := make([]float64, e.ds.NumAssets())
	var sum float64
	for i := range w {
		w[i] = rng.Float64()
		sum += w[i]
	}
	if sum == 0 {
		w[0], sum = 1, 1
	}
	for i := range w {
		w[i] /= sum
	}

	ret, vol := e.calc.RoundedPerformance(w)
	return model.SimulationPoint{
		Weights:          w,
		AnnualReturn:     ret,
		AnnualVolatility: vol,
		SharpeRatio:      metrics.Round(e.calc.SharpeRatio(w)),
	}
}
