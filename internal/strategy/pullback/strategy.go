// Package pullback implements the pullback-continuation generator: in a
// confirmed trend, the first and second counter-swing pullbacks after a new
// extreme each produce a with-trend entry, with a measured-move target and
// a structure stop. The second entry is the primary signal.
package pullback

import (
	"fmt"
	"math"

	"github.com/mnqlab/fractal/internal/core"
	"github.com/mnqlab/fractal/internal/strategy"
)

const consumed = -1

// Pullback is the generator state machine. Counters reset on every fresh
// extreme in the trend direction and are consumed by the second entry.
type Pullback struct {
	stopBufferATR  float64
	maxStopATR     float64
	targetFallback float64
	measuredCapATR float64
	trackFirst     bool
	trailOnly      bool
	timeoutBars    int
	orderKind      core.OrderKind

	longCount  int
	shortCount int

	longTriggerHigh float64 // the higher high that started the long count
	longRefLow      float64 // the swing low before it (leg-1 start)
	shortTriggerLow float64
	shortRefHigh    float64
}

// New creates a pullback generator from config.
func New(cfg strategy.Config) (*Pullback, error) {
	timeout := cfg.Int("timeout_bars", 5)
	if timeout <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("timeout_bars must be positive, got %d", timeout))
	}

	kind := core.OrderMarket
	if cfg.String("entry_style", "market") == "limit" {
		kind = core.OrderLimit
	}

	return &Pullback{
		stopBufferATR:   cfg.Float("stop_buffer_atr", 0.5),
		maxStopATR:      cfg.Float("max_stop_atr", 2.0),
		targetFallback:  cfg.Float("target_atr_fallback", 2.0),
		measuredCapATR:  cfg.Float("measured_move_cap_atr", 5.0),
		trackFirst:      cfg.Bool("track_first_entries", true),
		trailOnly:       cfg.Bool("trail_only", false),
		timeoutBars:     timeout,
		orderKind:       kind,
		longTriggerHigh: math.NaN(),
		longRefLow:      math.NaN(),
		shortTriggerLow: math.NaN(),
		shortRefHigh:    math.NaN(),
	}, nil
}

func (p *Pullback) Name() string {
	return "pullback"
}

func (p *Pullback) Description() string {
	return "second-entry pullback continuation with measured-move targets"
}

func (p *Pullback) RegimeGated() bool {
	return false
}

// Generate advances the pullback counters with this bar's confirmed swings
// and emits a signal on the first or second qualifying pullback.
func (p *Pullback) Generate(snap strategy.Snapshot) (*core.Signal, error) {
	var sig *core.Signal

	if snap.Trend == core.TrendUp {
		if snap.NewHigh != nil {
			if newest, prior, ok := snap.Swings.Highs(); ok && newest > prior {
				// Fresh higher high: restart the count from this leg.
				p.longCount = 0
				p.longTriggerHigh = newest
				p.longRefLow = math.NaN()
				if low, _, okLow := lowsNewest(snap); okLow {
					p.longRefLow = low
				}
			}
		}
		if snap.NewLow != nil && p.longCount != consumed {
			p.longCount++
			switch {
			case p.longCount == 1 && p.trackFirst:
				sig = p.makeSignal(snap, core.Long, snap.NewLow.Price, p.longTriggerHigh, p.longRefLow, 1)
			case p.longCount == 2:
				sig = p.makeSignal(snap, core.Long, snap.NewLow.Price, p.longTriggerHigh, p.longRefLow, 2)
				p.longCount = consumed // wait for the next higher high
			}
		}
	} else {
		p.longCount = 0
	}

	if snap.Trend == core.TrendDown {
		if snap.NewLow != nil {
			if newest, prior, ok := snap.Swings.Lows(); ok && newest < prior {
				p.shortCount = 0
				p.shortTriggerLow = newest
				p.shortRefHigh = math.NaN()
				if high, _, okHigh := highsNewest(snap); okHigh {
					p.shortRefHigh = high
				}
			}
		}
		if snap.NewHigh != nil && p.shortCount != consumed {
			p.shortCount++
			switch {
			case p.shortCount == 1 && p.trackFirst:
				sig = p.makeSignal(snap, core.Short, snap.NewHigh.Price, p.shortTriggerLow, p.shortRefHigh, 1)
			case p.shortCount == 2:
				sig = p.makeSignal(snap, core.Short, snap.NewHigh.Price, p.shortTriggerLow, p.shortRefHigh, 2)
				p.shortCount = consumed
			}
		}
	} else {
		p.shortCount = 0
	}

	return sig, nil
}

func lowsNewest(snap strategy.Snapshot) (float64, float64, bool) {
	newest, prior, ok := snap.Swings.Lows()
	if !ok && snap.Swings.LastLow() != nil {
		return snap.Swings.LastLow().Price, 0, true
	}
	return newest, prior, ok
}

func highsNewest(snap strategy.Snapshot) (float64, float64, bool) {
	newest, prior, ok := snap.Swings.Highs()
	if !ok && snap.Swings.LastHigh() != nil {
		return snap.Swings.LastHigh().Price, 0, true
	}
	return newest, prior, ok
}

// makeSignal builds the entry with structure stop and measured-move target.
// Returns nil when the ATR is not ready.
func (p *Pullback) makeSignal(snap strategy.Snapshot, dir core.Direction, swingPrice, trigger, ref float64, entryType int) *core.Signal {
	atr := snap.ATR
	if math.IsNaN(atr) || atr == 0 {
		return nil
	}

	var stop, target float64

	if dir == core.Long {
		stop = swingPrice - p.stopBufferATR*atr
		if swingPrice-stop > p.maxStopATR*atr {
			stop = swingPrice - p.maxStopATR*atr
		}
		target = swingPrice + p.targetFallback*atr
		if !math.IsNaN(trigger) && !math.IsNaN(ref) {
			leg1 := math.Abs(trigger - ref)
			mm := swingPrice + leg1
			if mm > swingPrice && mm-swingPrice <= p.measuredCapATR*atr {
				target = mm
			}
		}
	} else {
		stop = swingPrice + p.stopBufferATR*atr
		if stop-swingPrice > p.maxStopATR*atr {
			stop = swingPrice + p.maxStopATR*atr
		}
		target = swingPrice - p.targetFallback*atr
		if !math.IsNaN(trigger) && !math.IsNaN(ref) {
			leg1 := math.Abs(ref - trigger)
			mm := swingPrice - leg1
			if mm < swingPrice && swingPrice-mm <= p.measuredCapATR*atr {
				target = mm
			}
		}
	}

	if p.trailOnly {
		target = 0
	}

	return &core.Signal{
		Direction: dir,
		Kind:      p.orderKind,
		Limit:     swingPrice,
		Stop:      stop,
		Target:    target,
		EntryType: entryType,
		Bar:       snap.Index,
		ExpiresAt: snap.Index + p.timeoutBars,
		Strategy:  p.Name(),
		Reason:    fmt.Sprintf("pullback %d in %s trend", entryType, snap.Trend),
	}
}
