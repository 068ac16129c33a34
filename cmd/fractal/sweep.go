package main

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mnqlab/fractal/internal/config"
	"github.com/mnqlab/fractal/internal/core"
	"github.com/mnqlab/fractal/internal/engine"
	"github.com/mnqlab/fractal/internal/logger"
)

var (
	sweepParam   string
	sweepValues  string
	sweepWorkers int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Sensitivity sweep over one parameter",
	Long: `Run the configured backtest once per parameter value, in parallel.
Each run owns fully independent state; only the chosen parameter varies.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepParam, "param", "", "parameter to vary (grace_bars, max_hold, trail_buffer_atr, swing_strength)")
	sweepCmd.Flags().StringVar(&sweepValues, "values", "", "comma-separated values")
	sweepCmd.Flags().IntVar(&sweepWorkers, "workers", 4, "concurrent runs")
	sweepCmd.MarkFlagRequired("param")
	sweepCmd.MarkFlagRequired("values")
	rootCmd.AddCommand(sweepCmd)
}

type sweepResult struct {
	value float64
	stats engine.Stats
	err   error
}

func runSweep(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	base, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := base.Validate(); err != nil {
		return err
	}

	values, err := parseValues(sweepValues)
	if err != nil {
		return err
	}

	bars, err := loadBars(base)
	if err != nil {
		return err
	}

	if sweepWorkers < 1 {
		sweepWorkers = 1
	}
	jobs := make(chan float64)
	results := make(chan sweepResult, len(values))

	var wg sync.WaitGroup
	for w := 0; w < sweepWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for v := range jobs {
				results <- runOne(base, v, bars, log)
			}
		}()
	}
	for _, v := range values {
		jobs <- v
	}
	close(jobs)
	wg.Wait()
	close(results)

	collected := make([]sweepResult, 0, len(values))
	for r := range results {
		collected = append(collected, r)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].value < collected[j].value })

	fmt.Printf("=== Sweep: %s ===\n", sweepParam)
	fmt.Printf("%12s %8s %8s %10s %8s %10s\n", "value", "trades", "winrate", "net", "pf", "maxdd")
	for _, r := range collected {
		if r.err != nil {
			fmt.Printf("%12g run failed: %v\n", r.value, r.err)
			continue
		}
		pf := fmt.Sprintf("%.2f", r.stats.ProfitFactor)
		if math.IsInf(r.stats.ProfitFactor, 1) {
			pf = "inf"
		}
		fmt.Printf("%12g %8d %7.1f%% %10.2f %8s %10.2f\n",
			r.value, r.stats.Trades, r.stats.WinRate*100, r.stats.NetPnL, pf, r.stats.MaxDrawdown)
	}
	return nil
}

// runOne executes a single sweep point. Every run builds its own engine
// and generator: no state is shared between concurrent runs.
func runOne(base *config.Config, value float64, bars []core.Bar, log *zap.Logger) sweepResult {
	cfg := *base
	if err := applyParam(&cfg, sweepParam, value); err != nil {
		return sweepResult{value: value, err: err}
	}
	log = logger.ForRun(log, fmt.Sprintf("%s=%g", sweepParam, value))

	gen, err := buildGenerator(&cfg, log)
	if err != nil {
		return sweepResult{value: value, err: err}
	}
	eng, err := engine.New(engineConfig(&cfg), gen, engine.WithLogger(log))
	if err != nil {
		return sweepResult{value: value, err: err}
	}
	res, err := eng.Run(bars)
	if err != nil {
		return sweepResult{value: value, err: err}
	}
	return sweepResult{value: value, stats: res.Stats}
}

func applyParam(cfg *config.Config, name string, v float64) error {
	switch name {
	case "grace_bars":
		cfg.Position.GraceBars = int(v)
	case "max_hold":
		cfg.Position.MaxHold = int(v)
	case "trail_buffer_atr":
		cfg.Position.TrailBufferATR = v
	case "swing_strength":
		cfg.Engine.SwingStrength = int(v)
	case "slippage":
		cfg.Engine.Slippage = v
	case "daily_loss_limit":
		cfg.Breaker.DailyLossLimit = v
	default:
		return fmt.Errorf("unknown sweep parameter %q", name)
	}
	return nil
}

func parseValues(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bad sweep value %q: %w", p, err)
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no sweep values")
	}
	return values, nil
}
