package model

// SensitivityRow is one grid point of a sensitivity sweep
type SensitivityRow struct {
	TrainWindow      int     `json:"train_window" csv:"train_window"`
	RebalancePeriod  int     `json:"rebalance_period" csv:"rebalance_period"`
	AnnualReturn     float64 `json:"annual_return" csv:"annual_return"`
	AnnualVolatility float64 `json:"annual_volatility" csv:"annual_volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio" csv:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown" csv:"max_drawdown"`
}
