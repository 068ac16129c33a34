// Package meanrev implements the fade generator for the high-volatility
// chop regime: extreme Z-score stretches away from the EMA are faded back
// toward it, with the last confirmed swing as the structure stop.
package meanrev

import (
	"fmt"
	"math"

	"github.com/mnqlab/fractal/internal/core"
	"github.com/mnqlab/fractal/internal/strategy"
)

// MeanRev fades Z-score extremes. Entries only exist inside the chop
// regime; the position manager closes open fades when the regime ends.
type MeanRev struct {
	zThreshold  float64
	proximity   int
	waveFilter  bool
	stopATRMult float64
	maxStopATR  float64
	timeoutBars int
}

// New creates a mean-reversion generator from config.
func New(cfg strategy.Config) (*MeanRev, error) {
	z := cfg.Float("z_threshold", 3.0)
	if z <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("z_threshold must be positive, got %v", z))
	}
	timeout := cfg.Int("timeout_bars", 5)
	if timeout <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("timeout_bars must be positive, got %d", timeout))
	}

	return &MeanRev{
		zThreshold:  z,
		proximity:   cfg.Int("swing_proximity", 10),
		waveFilter:  cfg.Bool("use_wave_filter", true),
		stopATRMult: cfg.Float("stop_atr_mult", 1.0),
		maxStopATR:  cfg.Float("max_stop_atr", 2.0),
		timeoutBars: timeout,
	}, nil
}

func (m *MeanRev) Name() string {
	return "meanrev"
}

func (m *MeanRev) Description() string {
	return "fade z-score extremes back to the EMA inside the chop regime"
}

func (m *MeanRev) RegimeGated() bool {
	return true
}

// Generate fades a stretch when all gates line up: chop regime active,
// |Z| at the threshold, the wave structure leaning against the stretch,
// and a recent confirmed swing to anchor the stop.
func (m *MeanRev) Generate(snap strategy.Snapshot) (*core.Signal, error) {
	if !snap.Chop {
		return nil, nil
	}
	if math.IsNaN(snap.ZScore) || math.IsNaN(snap.ATR) || snap.ATR == 0 {
		return nil, nil
	}

	if snap.ZScore <= -m.zThreshold {
		return m.fade(snap, core.Long), nil
	}
	if snap.ZScore >= m.zThreshold {
		return m.fade(snap, core.Short), nil
	}
	return nil, nil
}

func (m *MeanRev) fade(snap strategy.Snapshot, dir core.Direction) *core.Signal {
	var (
		anchor *core.SwingPoint
		since  int
		wave   bool
	)
	if dir == core.Long {
		// A downside stretch: the stop anchors under the last swing low,
		// and the wave filter wants the highs already rolling over.
		anchor = snap.Swings.LastLow()
		since = snap.Swings.BarsSinceLow()
		wave = snap.Swings.BearishWave()
	} else {
		anchor = snap.Swings.LastHigh()
		since = snap.Swings.BarsSinceHigh()
		wave = snap.Swings.BullishWave()
	}

	if anchor == nil || since < 0 || since > m.proximity {
		return nil
	}
	if m.waveFilter && !wave {
		return nil
	}

	// Stop risk from the entry price is capped: a stale anchor far from the
	// current stretch must not widen the stop past max_stop_atr.
	var stop float64
	if dir == core.Long {
		stop = anchor.Price - m.stopATRMult*snap.ATR
		if snap.Bar.Close-stop > m.maxStopATR*snap.ATR {
			stop = snap.Bar.Close - m.maxStopATR*snap.ATR
		}
	} else {
		stop = anchor.Price + m.stopATRMult*snap.ATR
		if stop-snap.Bar.Close > m.maxStopATR*snap.ATR {
			stop = snap.Bar.Close + m.maxStopATR*snap.ATR
		}
	}

	return &core.Signal{
		Direction: dir,
		Kind:      core.OrderMarket,
		Stop:      stop,
		EMATarget: true,
		Bar:       snap.Index,
		ExpiresAt: snap.Index + m.timeoutBars,
		Strategy:  m.Name(),
		Reason:    fmt.Sprintf("fade z=%.2f in chop regime", snap.ZScore),
	}
}
