package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Alias1177/Allocator/internal/backtest"
	"github.com/Alias1177/Allocator/internal/chart"
	"github.com/Alias1177/Allocator/internal/dataset"
	"github.com/Alias1177/Allocator/internal/export"
	"github.com/Alias1177/Allocator/internal/insights"
	"github.com/Alias1177/Allocator/internal/model"
	"github.com/Alias1177/Allocator/internal/optimizer"
	"github.com/Alias1177/Allocator/internal/portfolio"
	"github.com/Alias1177/Allocator/internal/sensitivity"
)

// session is one CLI invocation: the engine plus where its artifacts go
type session struct {
	id     string
	outDir string
	engine *portfolio.Engine
}

func newSession() (*session, error) {
	if cfg.DataPath == "" {
		return nil, fmt.Errorf("%w: no returns file, set DATA_PATH or --data", model.ErrInvalidInput)
	}
	ds, err := dataset.LoadFile(cfg.DataPath, dataset.WithPeriodsPerYear(float64(cfg.PeriodsPerYear)))
	if err != nil {
		return nil, err
	}
	engine, err := portfolio.New(ds, cfg.RiskFreeRate, portfolio.WithWorkers(cfg.Workers))
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s := &session{id: id, outDir: filepath.Join(cfg.OutputDir, id), engine: engine}
	log.Info().
		Str("run_id", id).
		Int("observations", ds.Len()).
		Strs("assets", ds.Assets()).
		Msg("Dataset loaded")
	return s, nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt)
}

func (s *session) write(name string, fn func(io.Writer) error) error {
	path, err := export.WriteFile(s.outDir, name, fn)
	if err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("Artifact written")
	return nil
}

func (s *session) writePNG(name string, render func() ([]byte, error)) error {
	png, err := render()
	if err != nil {
		return err
	}
	return s.write(name, func(w io.Writer) error {
		_, err := w.Write(png)
		return err
	})
}

func backtestConfig() (backtest.Config, error) {
	bc := backtest.Config{
		TrainWindow:     cfg.TrainWindow,
		RebalancePeriod: cfg.RebalancePeriod,
		TransactionCost: cfg.TransactionCost,
	}
	var err error
	if startDate != "" {
		if bc.Start, err = dataset.ParseDate(startDate); err != nil {
			return bc, fmt.Errorf("%w: start date: %v", model.ErrInvalidInput, err)
		}
	}
	if endDate != "" {
		if bc.End, err = dataset.ParseDate(endDate); err != nil {
			return bc, fmt.Errorf("%w: end date: %v", model.ErrInvalidInput, err)
		}
	}
	if cfg.BenchmarkPath != "" {
		series, err := dataset.LoadSeriesFile(cfg.BenchmarkPath)
		if err != nil {
			return bc, fmt.Errorf("loading benchmark: %w", err)
		}
		bc.Benchmark = &series
	}
	return bc, nil
}

func runOptimize(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	strategies := optimizer.Strategies()
	if len(args) == 1 {
		st, err := optimizer.ParseStrategy(args[0])
		if err != nil {
			return err
		}
		strategies = []optimizer.Strategy{st}
	}
	allocs, err := recordAllocations(ctx, s.engine, strategies)
	if err != nil {
		return err
	}

	fmt.Print(formatAllocations(allocs))
	return s.exportAllocations(allocs)
}

// recordAllocations optimizes each strategy in turn, records the weights under
// the strategy key and returns the recorded allocations in the given order.
func recordAllocations(ctx context.Context, engine *portfolio.Engine, strategies []optimizer.Strategy) ([]model.Allocation, error) {
	for _, st := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := engine.OptimizeStrategy(st); err != nil {
			return nil, fmt.Errorf("%s: %w", st, err)
		}
		if err := engine.RecordWeights(st.String()); err != nil {
			return nil, err
		}
	}

	recorded := engine.RecordedWeights()
	out := make([]model.Allocation, 0, len(strategies))
	for _, st := range strategies {
		if a, ok := recorded[st.String()]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *session) exportAllocations(allocs []model.Allocation) error {
	if err := s.write("allocations.csv", func(w io.Writer) error { return export.WriteAllocations(w, allocs) }); err != nil {
		return err
	}
	return s.writePNG("allocations.png", func() ([]byte, error) { return chart.RenderAllocations(allocs) })
}

func runBacktest(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()
	_, err = s.runBacktest(ctx)
	return err
}

func (s *session) runBacktest(ctx context.Context) (*backtest.Result, error) {
	bc, err := backtestConfig()
	if err != nil {
		return nil, err
	}
	bc.Strategy, err = optimizer.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Backtest(ctx, bc)
	if err != nil {
		return nil, err
	}
	fmt.Print(s.engine.FormatBacktest(result))

	if err := s.write("backtest.csv", func(w io.Writer) error { return export.WriteBacktest(w, result) }); err != nil {
		return nil, err
	}
	if err := s.write("rebalances.csv", func(w io.Writer) error { return export.WriteRebalances(w, result) }); err != nil {
		return nil, err
	}
	if err := s.writePNG("backtest.png", func() ([]byte, error) { return chart.RenderBacktest(result) }); err != nil {
		return nil, err
	}
	return result, nil
}

func runSensitivity(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()
	_, err = s.sensitivity(ctx)
	return err
}

func (s *session) sensitivity(ctx context.Context) ([]model.SensitivityRow, error) {
	base, err := backtestConfig()
	if err != nil {
		return nil, err
	}
	rows, err := s.engine.Sensitivity(ctx, cfg.SensitivityTrainWindows, cfg.SensitivityRebalancePeriods, cfg.Strategy, base)
	if err != nil {
		return nil, err
	}
	fmt.Print(sensitivity.FormatTable(rows))
	if err := s.write("sensitivity.csv", func(w io.Writer) error { return export.WriteSensitivity(w, rows) }); err != nil {
		return nil, err
	}
	return rows, nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()
	return s.simulate(ctx)
}

func (s *session) simulate(ctx context.Context) error {
	sim, err := s.engine.SimulateRandomPortfolios(ctx, cfg.RandomPortfolios, cfg.RandomSeed)
	if err != nil {
		return err
	}

	assets := s.engine.Dataset().Assets()
	output := fmt.Sprintf("Best of %d random portfolios: return %.2f%%, volatility %.2f%%, Sharpe %.2f\n",
		len(sim.Points), sim.Best.AnnualReturn*100, sim.Best.AnnualVolatility*100, sim.Best.SharpeRatio)
	output += "  " + formatWeights(assets, sim.Best.Weights) + "\n"
	fmt.Print(output)

	return s.write("simulation.csv", func(w io.Writer) error { return export.WriteSimulation(w, sim.Points) })
}

func runAll(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	started := time.Now()
	allocs, err := s.engine.OptimizeAll(ctx)
	if err != nil {
		return err
	}
	fmt.Print(formatAllocations(allocs))
	if err := s.exportAllocations(allocs); err != nil {
		return err
	}
	if err := s.riskChart(allocs); err != nil {
		return err
	}

	result, err := s.runBacktest(ctx)
	if err != nil {
		return err
	}
	rows, err := s.sensitivity(ctx)
	if err != nil {
		return err
	}
	if err := s.simulate(ctx); err != nil {
		return err
	}

	if cfg.InsightsEnabled() {
		s.insights(ctx, insights.Results{
			Assets:      s.engine.Dataset().Assets(),
			Allocations: allocs,
			Backtests:   result.Metrics,
			Sensitivity: rows,
		})
	}

	log.Info().
		Str("run_id", s.id).
		Str("output", s.outDir).
		Dur("elapsed", time.Since(started)).
		Msg("Run complete")
	return nil
}

// riskChart draws the risk split of the configured strategy's allocation
func (s *session) riskChart(allocs []model.Allocation) error {
	strategy, err := optimizer.ParseStrategy(cfg.Strategy)
	if err != nil {
		return err
	}
	for _, a := range allocs {
		if a.Strategy != strategy.String() {
			continue
		}
		rc, err := s.engine.RiskContributions(a.Weights)
		if err != nil {
			return err
		}
		return s.writePNG("risk_contributions.png", func() ([]byte, error) { return chart.RenderRiskContributions(a, rc) })
	}
	return nil
}

// insights failures are logged and never fail the run
func (s *session) insights(ctx context.Context, results insights.Results) {
	client, err := insights.NewClient(insights.Config{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.Timeout(),
	})
	if err != nil {
		log.Warn().Err(err).Msg("Insights disabled")
		return
	}
	text, err := client.Generate(ctx, results)
	if err != nil {
		log.Warn().Err(err).Msg("Insights request failed")
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	fmt.Printf("\n===== INSIGHTS =====\n%s\n", text)
	if err := s.write("insights.txt", func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	}); err != nil {
		log.Warn().Err(err).Msg("Failed to save insights")
	}
}
