package model

// Allocation is the outcome of one optimization strategy.
type Allocation struct {
	Strategy         string    `json:"strategy"`
	Assets           []string  `json:"assets"`
	Weights          []float64 `json:"weights"`
	AnnualReturn     float64   `json:"annual_return"`
	AnnualVolatility float64   `json:"annual_volatility"`
	Converged        bool      `json:"converged"`
	Iterations       int       `json:"iterations,omitempty"`
	Warning          string    `json:"warning,omitempty"`
}

// WeightOf returns the weight held in asset, or 0 when the asset is unknown.
func (a Allocation) WeightOf(asset string) float64 {
	for i, name := range a.Assets {
		if name == asset {
			return a.Weights[i]
		}
	}
	return 0
}

// MetricsReport is the rounded, reporting-facing snapshot of a weight vector.
type MetricsReport struct {
	AnnualReturn     float64 `json:"annual_return"`
	AnnualVolatility float64 `json:"annual_volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	ValueAtRisk      float64 `json:"value_at_risk"`
	ConditionalVaR   float64 `json:"conditional_var"`
}

// SimulationPoint is one random portfolio drawn by the Monte-Carlo explorer.
type SimulationPoint struct {
	Weights          []float64 `json:"weights"`
	AnnualReturn     float64   `json:"annual_return"`
	AnnualVolatility float64   `json:"annual_volatility"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
}
