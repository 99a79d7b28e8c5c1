package model

import "time"

// BacktestMetrics stores the aggregate statistics of a walk-forward run
type BacktestMetrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualReturn     float64 `json:"annual_return"`
	AnnualVolatility float64 `json:"annual_volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"` // most negative drawdown, <= 0
	Rebalances       int     `json:"rebalances"`
	AverageTurnover  float64 `json:"average_turnover"`
}

// Rebalance records the weights chosen at the end of one training window
type Rebalance struct {
	Date           time.Time `json:"date"`
	Weights        []float64 `json:"weights"`
	Turnover       float64   `json:"turnover"`
	CostAdjustment float64   `json:"cost_adjustment"`
	TestPeriods    int       `json:"test_periods"`
	Warning        string    `json:"warning,omitempty"`
}
