package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mnqlab/fractal/internal/config"
	"github.com/mnqlab/fractal/internal/core"
	"github.com/mnqlab/fractal/internal/engine"
	"github.com/mnqlab/fractal/internal/feed"
	"github.com/mnqlab/fractal/internal/grid"
	"github.com/mnqlab/fractal/internal/logger"
	"github.com/mnqlab/fractal/internal/metrics"
	"github.com/mnqlab/fractal/internal/position"
	"github.com/mnqlab/fractal/internal/regime"
	"github.com/mnqlab/fractal/internal/session"
	"github.com/mnqlab/fractal/internal/storage/archive"
	"github.com/mnqlab/fractal/internal/strategy"
	"github.com/mnqlab/fractal/internal/strategy/meanrev"
	"github.com/mnqlab/fractal/internal/strategy/pullback"
	"github.com/mnqlab/fractal/internal/tradelog"
)

var runOutput string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one backtest",
	Long:  "Replay the configured bar feed through the selected strategy and print summary statistics",
	RunE:  runBacktest,
}

func init() {
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "write the trade log CSV to this path")
	rootCmd.AddCommand(runCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	bars, err := loadBars(cfg)
	if err != nil {
		return err
	}
	log.Info("bars loaded",
		zap.String("path", cfg.Data.Path),
		zap.Int("count", len(bars)))

	gen, err := buildGenerator(cfg, log)
	if err != nil {
		return err
	}
	eng, err := engine.New(engineConfig(cfg), gen,
		engine.WithLogger(log),
		engine.WithMetrics(metrics.NewRegistry()))
	if err != nil {
		return err
	}

	res, err := eng.Run(bars)
	if err != nil {
		return err
	}

	printSummary(res)

	if runOutput != "" {
		if err := tradelog.WriteFile(runOutput, res.Trades); err != nil {
			return err
		}
		fmt.Printf("\nTrade log written to %s\n", runOutput)
	}

	if cfg.Archive.Enabled {
		store, err := buildArchive(cfg)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		paths, err := archive.NewArchiver(store, log).SaveRun(ctx, res)
		if err != nil {
			return err
		}
		fmt.Printf("Archived: %v\n", paths)
	}
	return nil
}

func loadBars(cfg *config.Config) ([]core.Bar, error) {
	loc := time.UTC
	if cfg.Data.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Data.Timezone)
		if err != nil {
			return nil, err
		}
	}
	return feed.LoadCSV(cfg.Data.Path, loc)
}

// buildGenerator assembles the configured generator, wrapped in the grid
// filter when enabled.
func buildGenerator(cfg *config.Config, log *zap.Logger) (strategy.Generator, error) {
	reg := strategy.NewRegistry(log)
	reg.Register("pullback", func(c strategy.Config) (strategy.Generator, error) {
		return pullback.New(c)
	})
	reg.Register("meanrev", func(c strategy.Config) (strategy.Generator, error) {
		return meanrev.New(c)
	})

	gen, err := reg.New(cfg.Strategy.Name, strategy.Config{
		Params: cfg.StrategyParams(cfg.Strategy.Name),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Grid.Enabled {
		mode := grid.ModeFine
		if cfg.Grid.Mode == "ultra" {
			mode = grid.ModeUltra
		}
		var table grid.Table
		if len(cfg.Grid.Cells) > 0 {
			table = grid.NewTable(cfg.Grid.Cells)
		}
		gen = grid.NewFilter(gen, table, mode, log)
	}
	return gen, nil
}

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		SwingStrength:   cfg.Engine.SwingStrength,
		ATRPeriod:       cfg.Engine.ATRPeriod,
		EMAPeriod:       cfg.Engine.EMAPeriod,
		ZScorePeriod:    cfg.Engine.ZScorePeriod,
		EMAConfirmation: cfg.Engine.EMAConfirmation,
		Chop: regime.ChopConfig{
			Window:           cfg.Engine.ChopWindow,
			AmpThreshold:     cfg.Engine.ChopAmpThreshold,
			ChopThreshold:    cfg.Engine.ChopThreshold,
			EnergyPercentile: cfg.Engine.ChopEnergyPercentile,
		},
		Slippage: cfg.Engine.Slippage,
		Session:  session.Window{Start: cfg.Session.Start, End: cfg.Session.End},
		Position: position.Policy{
			GraceBars:      cfg.Position.GraceBars,
			MaxHold:        cfg.Position.MaxHold,
			TrailBufferATR: cfg.Position.TrailBufferATR,
			UseBreakeven:   cfg.Position.UseBreakeven,
			StopFill:       position.StopFillPolicy(cfg.Position.StopFill),
			Commission:     cfg.Engine.Commission,
			PointValue:     cfg.Data.PointValue,
		},
		DailyLossLimit:  cfg.Breaker.DailyLossLimit,
		WeeklyLossLimit: cfg.Breaker.WeeklyLossLimit,
		MaxConsecLosses: cfg.Breaker.MaxConsecLosses,
	}
}

func buildArchive(cfg *config.Config) (archive.Storage, error) {
	if cfg.Archive.Type == "s3" {
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.Archive.S3.Bucket,
			Endpoint:  cfg.Archive.S3.Endpoint,
			Region:    cfg.Archive.S3.Region,
			AccessKey: cfg.Archive.S3.AccessKey,
			SecretKey: cfg.Archive.S3.SecretKey,
			Prefix:    cfg.Archive.S3.Prefix,
		})
	}
	return archive.NewLocalFS(cfg.Archive.Path)
}

func printSummary(res *engine.Result) {
	s := res.Stats
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Run:       %s\n", res.RunID)
	fmt.Printf("Strategy:  %s\n", res.Strategy)
	fmt.Printf("Period:    %s to %s (%d bars)\n",
		res.Start.Format("2006-01-02"), res.End.Format("2006-01-02"), res.Bars)
	fmt.Println()
	fmt.Printf("Trades:        %d (%d W / %d L, %.1f%% win rate)\n",
		s.Trades, s.Wins, s.Losses, s.WinRate*100)
	fmt.Printf("Net P&L:       %.2f\n", s.NetPnL)
	if math.IsInf(s.ProfitFactor, 1) {
		fmt.Println("Profit factor: inf (no losing trades)")
	} else {
		fmt.Printf("Profit factor: %.2f\n", s.ProfitFactor)
	}
	fmt.Printf("Avg win/loss:  %.2f / %.2f\n", s.AvgWin, s.AvgLoss)
	fmt.Printf("Max drawdown:  %.2f\n", s.MaxDrawdown)
	fmt.Printf("Avg bars held: %.1f\n", s.AvgBarsHeld)

	organic := engine.WithoutForced(res.Trades)
	if len(organic) != len(res.Trades) {
		o := engine.Compute(organic)
		fmt.Printf("\nExcluding the forced end-of-data close: %d trades, net %.2f\n",
			o.Trades, o.NetPnL)
	}

	byType := engine.ByEntryType(res.Trades)
	for _, et := range []int{1, 2} {
		if st, ok := byType[et]; ok {
			fmt.Printf("Entry %d:       %d trades, net %.2f\n", et, st.Trades, st.NetPnL)
		}
	}

	byDir := engine.ByDirection(res.Trades)
	for _, dir := range []core.Direction{core.Long, core.Short} {
		if st, ok := byDir[dir]; ok {
			fmt.Printf("%-14s %d trades, net %.2f\n", string(dir)+":", st.Trades, st.NetPnL)
		}
	}
}
