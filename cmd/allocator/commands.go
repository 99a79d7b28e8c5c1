package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Alias1177/Allocator/internal/config"
)

// --- Global Command Variables ---
var (
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "allocator",
		Short: "Portfolio optimization and walk-forward backtesting over a returns CSV",
		Long: `allocator computes long-only portfolio weights with seven strategies,
backtests them walk-forward and sweeps the backtest parameters.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := zerolog.ParseLevel(cfg.LogLevel)
			if err != nil {
				lvl = zerolog.InfoLevel
			}
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)
			return nil
		},
	}

	optimizeCmd = &cobra.Command{
		Use:   "optimize [strategy]",
		Short: "Optimize weights with one strategy, or all of them when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runOptimize,
	}

	backtestCmd = &cobra.Command{
		Use:   "backtest",
		Short: "Run a walk-forward backtest of the configured strategy",
		RunE:  runBacktest,
	}

	sensitivityCmd = &cobra.Command{
		Use:   "sensitivity",
		Short: "Sweep the backtest over train windows and rebalance periods",
		RunE:  runSensitivity,
	}

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Score random long-only portfolios",
		RunE:  runSimulate,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run every stage and export all artifacts",
		RunE:  runAll,
	}

	startDate string
	endDate   string
)

func init() {
	var err error
	if cfg, err = config.Load(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DataPath, "data", cfg.DataPath, "returns CSV (date column followed by one column per asset)")
	pf.StringVar(&cfg.BenchmarkPath, "benchmark", cfg.BenchmarkPath, "optional benchmark returns CSV (date,return)")
	pf.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "directory for exported artifacts")
	pf.Float64Var(&cfg.RiskFreeRate, "risk-free-rate", cfg.RiskFreeRate, "annual risk-free rate")
	pf.IntVar(&cfg.PeriodsPerYear, "periods-per-year", cfg.PeriodsPerYear, "observations per year used for annualization")
	pf.StringVar(&cfg.Strategy, "strategy", cfg.Strategy, "strategy key (max_sharpe, min_vol, equal_weight, max_div, ERC, min_cvar, HRP)")
	pf.IntVar(&cfg.Workers, "workers", cfg.Workers, "parallel workers, 0 means GOMAXPROCS")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "zerolog level")

	for _, cmd := range []*cobra.Command{backtestCmd, sensitivityCmd, runCmd} {
		f := cmd.Flags()
		f.IntVar(&cfg.TrainWindow, "train-window", cfg.TrainWindow, "observations per training window")
		f.IntVar(&cfg.RebalancePeriod, "rebalance-period", cfg.RebalancePeriod, "observations held between rebalances")
		f.Float64Var(&cfg.TransactionCost, "cost", cfg.TransactionCost, "cost per unit of turnover")
		f.StringVar(&startDate, "start", "", "first date of the backtest range (inclusive)")
		f.StringVar(&endDate, "end", "", "last date of the backtest range (inclusive)")
	}
	for _, cmd := range []*cobra.Command{sensitivityCmd, runCmd} {
		f := cmd.Flags()
		f.IntSliceVar(&cfg.SensitivityTrainWindows, "train-windows", cfg.SensitivityTrainWindows, "train windows to sweep")
		f.IntSliceVar(&cfg.SensitivityRebalancePeriods, "rebalance-periods", cfg.SensitivityRebalancePeriods, "rebalance periods to sweep")
	}
	for _, cmd := range []*cobra.Command{simulateCmd, runCmd} {
		f := cmd.Flags()
		f.IntVar(&cfg.RandomPortfolios, "portfolios", cfg.RandomPortfolios, "number of random portfolios")
		f.Int64Var(&cfg.RandomSeed, "seed", cfg.RandomSeed, "random seed")
	}
	runCmd.Flags().BoolVar(&cfg.EnableInsights, "insights", cfg.EnableInsights, "ask the configured model for commentary")

	rootCmd.AddCommand(optimizeCmd, backtestCmd, sensitivityCmd, simulateCmd, runCmd)
}
