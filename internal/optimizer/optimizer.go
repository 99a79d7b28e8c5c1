// Package optimizer computes long-only allocation weights for a returns dataset.
package optimizer

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"

	"github.com/Alias1177/Allocator/internal/dataset"
	"github.com/Alias1177/Allocator/internal/metrics"
	"github.com/Alias1177/Allocator/internal/model"
)

// Optimizer evaluates strategies. It holds no per-call state and is safe for concurrent use.
type Optimizer struct {
	settings SolverSettings
	logger   zerolog.Logger
}

// New creates an optimizer with the given solver caps
func New(settings SolverSettings) *Optimizer {
	return &Optimizer{
		settings: settings,
		logger:   log.With().Str("component", "optimizer").Logger(),
	}
}

type strategyFunc func(o *Optimizer, c *metrics.Calculator) solution

var strategyTable = map[Strategy]strategyFunc{
	MaxSharpe:             (*Optimizer).maxSharpe,
	MinVolatility:         (*Optimizer).minVolatility,
	EqualWeight:           (*Optimizer).equalWeight,
	MaxDiversification:    (*Optimizer).maxDiversification,
	EqualRiskContribution: (*Optimizer).equalRiskContribution,
	MinCVaR:               (*Optimizer).minCVaR,
	HRP:                   (*Optimizer).hrp,
	BlackLitterman:        (*Optimizer).maxSharpe,
}

// Optimize runs strategy s on ds. Solver non-convergence is not an error:
// the best weights found are returned with Converged=false and a Warning.
func (o *Optimizer) Optimize(ds *dataset.Dataset, riskFreeRate float64, s Strategy) (model.Allocation, error) {
	fn, ok := strategyTable[s]
	if !ok {
		return model.Allocation{}, fmt.Errorf("%w: %v", model.ErrUnsupportedStrategy, s)
	}
	if s == BlackLitterman {
		o.logger.Info().Msg("Black-Litterman views not configured, using max Sharpe weights")
	}

	calc := metrics.NewCalculator(ds, riskFreeRate)
	sol := fn(o, calc)

	weights := normalize(clampUnit(sol.weights))
	ret, vol := calc.RoundedPerformance(weights)
	alloc := model.Allocation{
		Strategy:         s.String(),
		Assets:           ds.Assets(),
		Weights:          weights,
		AnnualReturn:     ret,
		AnnualVolatility: vol,
		Converged:        sol.converged,
		Iterations:       sol.iterations,
	}
	if !sol.converged {
		warn := fmt.Errorf("%w: %s", model.ErrSolverNonConvergence, sol.describe())
		alloc.Warning = warn.Error()
		o.logger.Warn().
			Str("strategy", s.String()).
			Int("iterations", sol.iterations).
			Err(warn).
			Msg("Solver did not converge, returning best weights found")
	}
	return alloc, nil
}

func closedForm(w []float64) solution {
	return solution{weights: w, converged: true}
}

func (o *Optimizer) minimize(c *metrics.Calculator, objective func(w []float64) float64) solution {
	return minimizeOnSimplex(c.Dataset().NumAssets(), objective, o.settings)
}

func (o *Optimizer) maxSharpe(c *metrics.Calculator) solution {
	return o.minimize(c, func(w []float64) float64 { return -c.SharpeRatio(w) })
}

func (o *Optimizer) minVolatility(c *metrics.Calculator) solution {
	return o.minimize(c, c.Volatility)
}

func (o *Optimizer) equalWeight(c *metrics.Calculator) solution {
	return closedForm(uniform(c.Dataset().NumAssets()))
}

func (o *Optimizer) maxDiversification(c *metrics.Calculator) solution {
	sigma := c.Dataset().AnnualizedStdDev()
	return o.minimize(c, func(w []float64) float64 {
		vol := c.Volatility(w)
		if vol == 0 {
			return -metrics.DegenerateRatio
		}
		return -floats.Dot(w, sigma) / vol
	})
}

func (o *Optimizer) equalRiskContribution(c *metrics.Calculator) solution {
	return o.minimize(c, func(w []float64) float64 {
		rc := c.RiskContributions(w)
		mean := floats.Sum(rc) / float64(len(rc))
		var dispersion float64
		for _, v := range rc {
			dispersion += (v - mean) * (v - mean)
		}
		return dispersion
	})
}

// minCVaR minimizes the expected tail loss. ConditionalVaR reports the mean
// tail return, which is negative for a losing tail, so the objective is its
// negation: minimizing ConditionalVaR itself would seek the worst tail.
func (o *Optimizer) minCVaR(c *metrics.Calculator) solution {
	return o.minimize(c, func(w []float64) float64 {
		return -c.ConditionalVaR(w, metrics.DefaultAlpha)
	})
}

func (o *Optimizer) hrp(c *metrics.Calculator) solution {
	return closedForm(hierarchicalRiskParity(c.Dataset()))
}
