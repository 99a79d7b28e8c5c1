package backtest

import (
	"github.com/Alias1177/Allocator/internal/metrics"
	"github.com/Alias1177/Allocator/internal/model"
)

// CalculatePerformanceMetrics computes aggregate statistics of a realized return series
func CalculatePerformanceMetrics(returns []float64, rebalances []model.Rebalance, riskFreeRate, periodsPerYear float64) model.BacktestMetrics {
	if len(returns) == 0 {
		return model.BacktestMetrics{Rebalances: len(rebalances)}
	}

	cumulative := metrics.CumulativeReturns(returns)
	m := model.BacktestMetrics{
		TotalReturn:      cumulative[len(cumulative)-1],
		AnnualReturn:     metrics.AnnualizedReturn(returns, periodsPerYear),
		AnnualVolatility: metrics.AnnualizedVolatility(returns, periodsPerYear),
		SharpeRatio:      metrics.SeriesSharpe(returns, riskFreeRate, periodsPerYear),
		MaxDrawdown:      metrics.ValueDrawdown(returns),
		Rebalances:       len(rebalances),
	}

	// The first rebalance opens the book and carries no turnover
	if len(rebalances) > 1 {
		var total float64
		for _, r := range rebalances[1:] {
			total += r.Turnover
		}
		m.AverageTurnover = total / float64(len(rebalances)-1)
	}

	return m
}
