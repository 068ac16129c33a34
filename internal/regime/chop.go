package regime

import (
	"math"

	"github.com/mnqlab/fractal/internal/core"
	"github.com/mnqlab/fractal/internal/indicator"
)

// ChopConfig parameterizes the high-vol-chop detector.
type ChopConfig struct {
	Window           int     // rolling window for amplitude and choppiness
	AmpThreshold     float64 // normalized amplitude floor
	ChopThreshold    float64 // choppiness floor
	EnergyPercentile float64 // percentile of recent energy the bar must exceed
}

// DefaultChopConfig mirrors the parameters validated in research.
func DefaultChopConfig() ChopConfig {
	return ChopConfig{
		Window:           20,
		AmpThreshold:     0.6,
		ChopThreshold:    0.3,
		EnergyPercentile: 50,
	}
}

// ChopDetector flags the high-volatility-chop regime: wide bars relative to
// ATR, small bodies relative to range, and above-percentile traded energy,
// all over a rolling window. It is a filter input and exit trigger, never a
// replacement for the trend state.
type ChopDetector struct {
	cfg       ChopConfig
	ampMean   *indicator.RollingMean
	chopMean  *indicator.RollingMean
	energyPct *indicator.RollingPercentile
	active    bool
}

// NewChopDetector creates a detector with the given config.
func NewChopDetector(cfg ChopConfig) *ChopDetector {
	return &ChopDetector{
		cfg:      cfg,
		ampMean:  indicator.NewRollingMean(cfg.Window),
		chopMean: indicator.NewRollingMean(cfg.Window),
		// Energy is ranked against a longer history than the flag window.
		energyPct: indicator.NewRollingPercentile(cfg.Window*5, cfg.EnergyPercentile),
	}
}

// Push consumes the next bar with its current ATR and returns whether the
// chop regime is active. False during warm-up.
func (d *ChopDetector) Push(bar core.Bar, atr float64) bool {
	d.active = false

	body := math.Abs(bar.Close - bar.Open)
	energy := float64(bar.Volume) * body
	threshold := d.energyPct.Push(energy)

	if math.IsNaN(atr) || atr <= 0 {
		return false
	}
	amp := d.ampMean.Push(bar.Range() / atr)

	if bar.Range() <= 0 {
		return false
	}
	chop := d.chopMean.Push(1 - body/bar.Range())

	if math.IsNaN(amp) || math.IsNaN(chop) || math.IsNaN(threshold) {
		return false
	}

	d.active = amp > d.cfg.AmpThreshold &&
		chop > d.cfg.ChopThreshold &&
		energy > threshold
	return d.active
}

// Active returns the regime flag from the last Push.
func (d *ChopDetector) Active() bool {
	return d.active
}
