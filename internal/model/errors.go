package model

import "errors"

// Error taxonomy shared by every package of the engine. Callers match with errors.Is.
var (
	// ErrInvalidInput reports a malformed or too small returns matrix or request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedStrategy reports an unknown strategy key.
	ErrUnsupportedStrategy = errors.New("unsupported strategy")
	// ErrInsufficientData reports a backtest window longer than the available history.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrSolverNonConvergence is never returned by a strategy call. It is carried
	// as Allocation.Warning next to the best weights the solver found.
	ErrSolverNonConvergence = errors.New("solver did not converge")
)
