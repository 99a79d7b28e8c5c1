package optimizer

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// SolverSettings bounds the constrained minimizer
type SolverSettings struct {
	MaxIterations  int     // major iterations per attempt
	MaxEvaluations int     // objective evaluations per attempt
	Penalty        float64 // weight of the budget and bound penalties
	Tolerance      float64 // absolute objective improvement treated as converged
	Restarts       int     // extra attempts started from the previous best point
}

// DefaultSolverSettings returns the caps used when none are configured
func DefaultSolverSettings() SolverSettings {
	return SolverSettings{
		MaxIterations:  2000,
		MaxEvaluations: 20000,
		Penalty:        1000,
		Tolerance:      1e-10,
		Restarts:       1,
	}
}

// solution is the best point found by the minimizer
type solution struct {
	weights    []float64
	converged  bool
	iterations int
	status     optimize.Status
	err        error
}

var acceptedStatuses = map[optimize.Status]bool{
	optimize.Success:             true,
	optimize.FunctionConvergence: true,
	optimize.MethodConverge:      true,
	optimize.StepConvergence:     true,
	optimize.GradientThreshold:   true,
	optimize.FunctionThreshold:   true,
}

var errObjectiveNotFinite = errors.New("objective is not finite at the starting point")

// minimizeOnSimplex minimizes objective over long-only weights summing to 1.
//
// The solver works on unconstrained x. Each evaluation projects x onto
// [0,1], normalizes the projection to sum to 1 and adds quadratic penalties
// for the distance to the box and for the unnormalized budget.
func minimizeOnSimplex(n int, objective func(w []float64) float64, settings SolverSettings) solution {
	initial := uniform(n)
	if f := objective(initial); math.IsNaN(f) || math.IsInf(f, 0) {
		return solution{weights: initial, err: errObjectiveNotFinite}
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			p := clampUnit(x)
			var sum, boxPenalty float64
			for i := range p {
				sum += p[i]
				d := x[i] - p[i]
				boxPenalty += d * d
			}
			obj := objective(normalize(p))
			if math.IsNaN(obj) || math.IsInf(obj, 0) {
				obj = math.MaxFloat64 / 4
			}
			return obj + settings.Penalty*(sum-1)*(sum-1) + settings.Penalty*boxPenalty
		},
	}

	opts := &optimize.Settings{
		MajorIterations: settings.MaxIterations,
		FuncEvaluations: settings.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   settings.Tolerance,
			Iterations: 100,
		},
	}

	best := solution{weights: initial}
	bestF := math.Inf(1)
	start := initial
	for attempt := 0; attempt <= settings.Restarts; attempt++ {
		result, err := optimize.Minimize(problem, start, opts, &optimize.NelderMead{})
		if result == nil {
			best.err = err
			break
		}
		best.iterations += result.Stats.MajorIterations
		if result.F <= bestF {
			bestF = result.F
			best.weights = normalize(clampUnit(result.X))
			best.status = result.Status
			best.err = err
		}
		if err == nil && acceptedStatuses[result.Status] {
			best.converged = true
			break
		}
		start = result.X
	}
	return best
}

// describe renders a non-converged solution for Allocation.Warning
func (s solution) describe() string {
	if s.err != nil {
		return fmt.Sprintf("status %v after %d iterations: %v", s.status, s.iterations, s.err)
	}
	return fmt.Sprintf("status %v after %d iterations", s.status, s.iterations)
}

func uniform(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

func clampUnit(x []float64) []float64 {
	p := make([]float64, len(x))
	for i, v := range x {
		p[i] = math.Min(1, math.Max(0, v))
	}
	return p
}

// normalize scales p to sum to 1, falling back to uniform weights when p is all zero
func normalize(p []float64) []float64 {
	var sum float64
	for _, v := range p {
		sum += v
	}
	if sum <= 0 {
		return uniform(len(p))
	}
	w := make([]float64, len(p))
	for i, v := range p {
		w[i] = v / sum
	}
	return w
}
