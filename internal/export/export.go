// Package export writes engine results as CSV tables.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/Alias1177/Allocator/internal/backtest"
	"github.com/Alias1177/Allocator/internal/model"
)

// AllocationRecord is one (strategy, asset) weight in long format
type AllocationRecord struct {
	Strategy         string  `csv:"strategy"`
	Asset            string  `csv:"asset"`
	Weight           float64 `csv:"weight"`
	AnnualReturn     float64 `csv:"annual_return"`
	AnnualVolatility float64 `csv:"annual_volatility"`
	Converged        bool    `csv:"converged"`
	Warning          string  `csv:"warning"`
}

// SeriesRecord is one held-out period of a backtest
type SeriesRecord struct {
	Date       string  `csv:"date"`
	Return     float64 `csv:"return"`
	Cumulative float64 `csv:"cumulative_return"`
	Value      float64 `csv:"value"`
	Benchmark  string  `csv:"benchmark_value"`
}

// RebalanceRecord is one asset weight chosen at a rebalance date
type RebalanceRecord struct {
	Date           string  `csv:"date"`
	Asset          string  `csv:"asset"`
	Weight         float64 `csv:"weight"`
	Turnover       float64 `csv:"turnover"`
	CostAdjustment float64 `csv:"cost_adjustment"`
}

// SimulationRecord is one random portfolio, weights joined with ';' in asset order
type SimulationRecord struct {
	AnnualReturn     float64 `csv:"annual_return"`
	AnnualVolatility float64 `csv:"annual_volatility"`
	SharpeRatio      float64 `csv:"sharpe_ratio"`
	Weights          string  `csv:"weights"`
}

// WriteAllocations writes allocations in long format, one row per asset
func WriteAllocations(w io.Writer, allocs []model.Allocation) error {
	var records []*AllocationRecord
	for _, a := range allocs {
		for i, asset := range a.Assets {
			records = append(records, &AllocationRecord{
				Strategy:         a.Strategy,
				Asset:            asset,
				Weight:           a.Weights[i],
				AnnualReturn:     a.AnnualReturn,
				AnnualVolatility: a.AnnualVolatility,
				Converged:        a.Converged,
				Warning:          a.Warning,
			})
		}
	}
	return marshal(w, &records)
}

// WriteBacktest writes the realized series of a backtest with its value curve
func WriteBacktest(w io.Writer, result *backtest.Result) error {
	records := make([]*SeriesRecord, len(result.Returns))
	for i := range result.Returns {
		rec := &SeriesRecord{
			Date:       result.Dates[i].Format(time.DateOnly),
			Return:     result.Returns[i],
			Cumulative: result.Cumulative[i],
			Value:      result.Curve.Values[i],
		}
		if i < len(result.Curve.Benchmark) {
			rec.Benchmark = strconv.FormatFloat(result.Curve.Benchmark[i], 'f', -1, 64)
		}
		records[i] = rec
	}
	return marshal(w, &records)
}

// WriteRebalances writes the weight history of a backtest
func WriteRebalances(w io.Writer, result *backtest.Result) error {
	var records []*RebalanceRecord
	for _, rb := range result.Rebalances {
		for i, weight := range rb.Weights {
			records = append(records, &RebalanceRecord{
				Date:           rb.Date.Format(time.DateOnly),
				Asset:          result.Assets[i],
				Weight:         weight,
				Turnover:       rb.Turnover,
				CostAdjustment: rb.CostAdjustment,
			})
		}
	}
	return marshal(w, &records)
}

// WriteSensitivity writes one row per grid point
func WriteSensitivity(w io.Writer, rows []model.SensitivityRow) error {
	return marshal(w, &rows)
}

// WriteSimulation writes every simulated portfolio
func WriteSimulation(w io.Writer, points []model.SimulationPoint) error {
	records := make([]*SimulationRecord, len(points))
	for i, p := range points {
		parts := make([]string, len(p.Weights))
		for j, v := range p.Weights {
			parts[j] = strconv.FormatFloat(v, 'f', 6, 64)
		}
		records[i] = &SimulationRecord{
			AnnualReturn:     p.AnnualReturn,
			AnnualVolatility: p.AnnualVolatility,
			SharpeRatio:      p.SharpeRatio,
			Weights:          strings.Join(parts, ";"),
		}
	}
	return marshal(w, &records)
}

// WriteFile creates dir/name and hands it to write
func WriteFile(dir, name string, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return path, nil
}

func marshal(w io.Writer, records interface{}) error {
	if err := gocsv.Marshal(records, w); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}
