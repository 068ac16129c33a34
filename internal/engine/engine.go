// Package engine is the bar-by-bar backtest driver. Processing is
// single-threaded and strictly sequential: every derived value consumed on
// bar N was computed from bars up to and including N. The per-bar OnBar
// API is the same contract a live host would drive, so historical and live
// execution share all core logic.
package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mnqlab/fractal/internal/breaker"
	"github.com/mnqlab/fractal/internal/core"
	"github.com/mnqlab/fractal/internal/fill"
	"github.com/mnqlab/fractal/internal/indicator"
	"github.com/mnqlab/fractal/internal/metrics"
	"github.com/mnqlab/fractal/internal/position"
	"github.com/mnqlab/fractal/internal/regime"
	"github.com/mnqlab/fractal/internal/session"
	"github.com/mnqlab/fractal/internal/strategy"
	"github.com/mnqlab/fractal/internal/swing"
)

// atrRatioWindow is the rolling-mean window for the volatility-regime
// ratio fed to generators.
const atrRatioWindow = 50

// Config holds the engine-level knobs. Generator-specific parameters live
// in the strategy config, position handling in the Position policy.
type Config struct {
	SwingStrength   int
	ATRPeriod       int
	EMAPeriod       int
	ZScorePeriod    int
	EMAConfirmation bool
	Chop            regime.ChopConfig

	Slippage float64
	Session  session.Window
	Position position.Policy

	DailyLossLimit  float64
	WeeklyLossLimit float64
	MaxConsecLosses int
}

// Result is the output of one complete run.
type Result struct {
	RunID    string       `json:"run_id"`
	Strategy string       `json:"strategy"`
	Start    time.Time    `json:"start"`
	End      time.Time    `json:"end"`
	Bars     int          `json:"bars"`
	Trades   []core.Trade `json:"trades"`
	Stats    Stats        `json:"stats"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics attaches a metrics registry.
func WithMetrics(m *metrics.Registry) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine owns one run's entire mutable state. Instances are not safe for
// concurrent use; parallel sweeps run one Engine per goroutine.
type Engine struct {
	cfg Config
	gen strategy.Generator

	detector   *swing.Detector
	history    *swing.History
	classifier *regime.Classifier
	chop       *regime.ChopDetector
	atr        *indicator.ATR
	ema        *indicator.EMA
	closeStd   *indicator.RollingStd
	atrMean    *indicator.RollingMean
	fills      *fill.Model
	manager    *position.Manager
	brk        *breaker.Breaker

	logger  *zap.Logger
	metrics *metrics.Registry

	index       int
	lastTime    time.Time
	lastSession time.Time
	pending     *core.Signal
	pos         *core.Position
	trades      []core.Trade
	chopOn      bool
}

// New creates an engine for one run.
func New(cfg Config, gen strategy.Generator, opts ...Option) (*Engine, error) {
	if gen == nil {
		return nil, core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("no signal generator"))
	}
	if cfg.ATRPeriod <= 0 || cfg.EMAPeriod <= 0 || cfg.ZScorePeriod <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("indicator periods must be positive"))
	}
	if cfg.Session.End <= cfg.Session.Start {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("session window [%v, %v) is empty", cfg.Session.Start, cfg.Session.End))
	}
	if cfg.Chop.Window <= 0 {
		cfg.Chop = regime.DefaultChopConfig()
	}

	detector, err := swing.NewDetector(cfg.SwingStrength)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		gen:        gen,
		detector:   detector,
		history:    swing.NewHistory(),
		classifier: regime.NewClassifier(cfg.EMAConfirmation),
		chop:       regime.NewChopDetector(cfg.Chop),
		atr:        indicator.NewATR(cfg.ATRPeriod),
		ema:        indicator.NewEMA(cfg.EMAPeriod),
		closeStd:   indicator.NewRollingStd(cfg.ZScorePeriod),
		atrMean:    indicator.NewRollingMean(atrRatioWindow),
		fills:      fill.NewModel(cfg.Slippage),
		brk:        breaker.New(cfg.DailyLossLimit, cfg.WeeklyLossLimit, cfg.MaxConsecLosses),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.manager = position.NewManager(cfg.Position, e.logger)
	return e, nil
}

// OnBar processes one bar and returns the signal generated on it (if any)
// and the trade closed on it (if any). This is the parity API: a live host
// drives it with the same contract as Run.
func (e *Engine) OnBar(bar core.Bar) (*core.Signal, *core.Trade, error) {
	if !bar.IsValid() {
		return nil, nil, core.WrapError(core.ErrDataInvalid,
			fmt.Errorf("malformed bar at index %d (%s)", e.index, bar.Time))
	}
	if e.index > 0 && !bar.Time.After(e.lastTime) {
		return nil, nil, core.WrapError(core.ErrDataInvalid,
			fmt.Errorf("bar %d at %s is not after %s", e.index, bar.Time, e.lastTime))
	}
	// At most one of {open position, pending signal} may exist.
	if e.pos != nil && e.pending != nil {
		return nil, nil, core.WrapError(core.ErrStateViolation,
			fmt.Errorf("open position and pending signal at bar %d", e.index))
	}

	// Session-boundary resets fire on the first in-session bar of a new
	// day or week; pre-session bars of a fresh date leave the breaker
	// untouched.
	hour := session.Hour(bar.Time)
	if e.cfg.Session.Contains(hour) {
		if !e.lastSession.IsZero() {
			switch {
			case !session.SameTradingWeek(e.lastSession, bar.Time):
				e.brk.NewTradingWeek()
			case !session.SameTradingDay(e.lastSession, bar.Time):
				e.brk.NewTradingDay()
			}
		}
		e.lastSession = bar.Time
	}
	e.lastTime = bar.Time
	index := e.index
	e.index++
	if e.metrics != nil {
		e.metrics.RecordBar()
	}

	// Derived state, strictly causal.
	points := e.detector.Push(bar)
	e.history.Observe(points)
	var newHigh, newLow *core.SwingPoint
	for i := range points {
		if points[i].Kind == core.SwingHigh {
			newHigh = &points[i]
		} else {
			newLow = &points[i]
		}
	}

	e.atr.Push(bar)
	atr := e.atr.Value()
	e.ema.Push(bar.Close)
	ema := e.ema.Value()
	e.closeStd.Push(bar.Close)
	std := e.closeStd.Value()
	if !math.IsNaN(atr) {
		e.atrMean.Push(atr)
	}

	trend := e.classifier.Update(e.history, bar.Close, ema)
	e.chopOn = e.chop.Push(bar, atr)

	z := math.NaN()
	if !math.IsNaN(std) && std > 0 && !math.IsNaN(ema) {
		z = (bar.Close - ema) / std
	}
	atrRatio := math.NaN()
	if mean := e.atrMean.Value(); !math.IsNaN(mean) && mean > 0 && !math.IsNaN(atr) {
		atrRatio = atr / mean
	}

	ctx := position.BarContext{
		Bar:         bar,
		Index:       index,
		ATR:         atr,
		EMA:         ema,
		NewHigh:     newHigh,
		NewLow:      newLow,
		RegimeGated: e.gen.RegimeGated(),
		RegimeOK:    e.chopOn,
	}

	// Open position: manage it and stop. The circuit breaker is never
	// consulted here.
	if e.pos != nil {
		if trade := e.manager.Update(e.pos, ctx); trade != nil {
			e.pos = nil
			e.recordTrade(trade)
			return nil, trade, nil
		}
		return nil, nil, nil
	}

	// Pending signal: attempt the fill.
	if e.pending != nil {
		pos, expired := e.fills.TryFill(e.pending, bar, index)
		if expired {
			if e.metrics != nil {
				e.metrics.RecordExpiry(e.pending.Strategy)
			}
			e.pending = nil
		}
		if pos != nil {
			e.pending = nil
			e.pos = pos
			// The fill bar itself can take the position straight out.
			if trade := e.manager.Update(e.pos, ctx); trade != nil {
				e.pos = nil
				e.recordTrade(trade)
				return nil, trade, nil
			}
			return nil, nil, nil
		}
	}

	// Entry gates: breaker first, then the session window.
	if !e.brk.Allow() {
		return nil, nil, nil
	}
	if !e.cfg.Session.Contains(hour) {
		return nil, nil, nil
	}

	snap := strategy.Snapshot{
		Bar:         bar,
		Index:       index,
		ATR:         atr,
		EMA:         ema,
		ZScore:      z,
		ATRRatio:    atrRatio,
		Trend:       trend,
		Chop:        e.chopOn,
		NewHigh:     newHigh,
		NewLow:      newLow,
		Swings:      e.history,
		SessionHour: hour,
	}
	sig, err := e.gen.Generate(snap)
	if err != nil {
		return nil, nil, err
	}
	if sig != nil {
		// A new signal replaces any unfilled one.
		e.pending = sig
		if e.metrics != nil {
			e.metrics.RecordSignal(sig.Strategy, string(sig.Direction))
		}
		e.logger.Debug("signal generated",
			zap.String("strategy", sig.Strategy),
			zap.String("direction", string(sig.Direction)),
			zap.Int("bar", index))
		return sig, nil, nil
	}
	return nil, nil, nil
}

// Run drives the engine over a complete bar series, force-closing any open
// position at the final close.
func (e *Engine) Run(bars []core.Bar) (*Result, error) {
	if len(bars) == 0 {
		return nil, core.ErrNoData
	}
	started := time.Now()

	for _, bar := range bars {
		if _, _, err := e.OnBar(bar); err != nil {
			if e.metrics != nil {
				e.metrics.RecordRun(e.gen.Name(), "error")
			}
			return nil, err
		}
	}

	last := bars[len(bars)-1]
	if e.pos != nil {
		trade := e.manager.Close(e.pos, last, e.index-1, last.Close, core.ExitForced)
		e.pos = nil
		e.recordTrade(trade)
	}

	result := &Result{
		RunID:    uuid.NewString(),
		Strategy: e.gen.Name(),
		Start:    bars[0].Time,
		End:      last.Time,
		Bars:     len(bars),
		Trades:   e.trades,
		Stats:    Compute(e.trades),
	}
	if e.metrics != nil {
		e.metrics.RecordRun(e.gen.Name(), "ok")
		e.metrics.ObserveRunDuration(time.Since(started).Seconds())
	}
	e.logger.Info("run complete",
		zap.String("run_id", result.RunID),
		zap.String("strategy", result.Strategy),
		zap.Int("bars", result.Bars),
		zap.Int("trades", len(result.Trades)),
		zap.Float64("net_pnl", result.Stats.NetPnL))
	return result, nil
}

// Trades returns the trades closed so far. Useful for a live host driving
// OnBar directly.
func (e *Engine) Trades() []core.Trade {
	return e.trades
}

func (e *Engine) recordTrade(t *core.Trade) {
	e.trades = append(e.trades, *t)

	allowedBefore := e.brk.Allow()
	e.brk.RecordTrade(t.PnL)
	if allowedBefore && !e.brk.Allow() {
		e.logger.Warn("entries halted", zap.String("reason", e.brk.Reason()))
		if e.metrics != nil {
			e.metrics.RecordBreakerTrip()
		}
	}
	if e.metrics != nil {
		e.metrics.RecordTrade(t.Strategy, string(t.ExitReason))
	}
}
