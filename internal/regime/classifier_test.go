package regime

import (
	"math"
	"testing"
	"time"

	"github.com/mnqlab/fractal/internal/core"
	"github.com/mnqlab/fractal/internal/swing"
)

func observe(h *swing.History, kind core.SwingKind, price float64) {
	h.Observe([]core.SwingPoint{{Kind: kind, Price: price}})
}

func TestClassifier_Up(t *testing.T) {
	// Swing highs [100, 105], swing lows [90, 95]: higher high + higher low.
	h := swing.NewHistory()
	c := NewClassifier(false)

	observe(h, core.SwingHigh, 100)
	observe(h, core.SwingLow, 90)
	if got := c.Update(h, 0, math.NaN()); got != core.TrendUnknown {
		t.Errorf("trend with one of each = %v, want UNKNOWN", got)
	}

	observe(h, core.SwingHigh, 105)
	observe(h, core.SwingLow, 95)
	if got := c.Update(h, 0, math.NaN()); got != core.TrendUp {
		t.Errorf("trend = %v, want UP", got)
	}
}

func TestClassifier_Down(t *testing.T) {
	h := swing.NewHistory()
	c := NewClassifier(false)

	observe(h, core.SwingHigh, 110)
	observe(h, core.SwingLow, 100)
	observe(h, core.SwingHigh, 105)
	observe(h, core.SwingLow, 96)

	if got := c.Update(h, 0, math.NaN()); got != core.TrendDown {
		t.Errorf("trend = %v, want DOWN", got)
	}
}

func TestClassifier_MixedIsRange(t *testing.T) {
	// Higher high + lower low: expanding range.
	h := swing.NewHistory()
	c := NewClassifier(false)

	observe(h, core.SwingHigh, 100)
	observe(h, core.SwingLow, 95)
	observe(h, core.SwingHigh, 104)
	observe(h, core.SwingLow, 92)

	if got := c.Update(h, 0, math.NaN()); got != core.TrendRange {
		t.Errorf("trend = %v, want RANGE", got)
	}
}

func TestClassifier_EMAConfirmationDemotes(t *testing.T) {
	h := swing.NewHistory()
	observe(h, core.SwingHigh, 100)
	observe(h, core.SwingLow, 90)
	observe(h, core.SwingHigh, 105)
	observe(h, core.SwingLow, 95)

	c := NewClassifier(true)
	if got := c.Update(h, 104, 100); got != core.TrendUp {
		t.Errorf("close above EMA keeps UP, got %v", got)
	}
	if got := c.Update(h, 98, 100); got != core.TrendRange {
		t.Errorf("close below EMA demotes UP to RANGE, got %v", got)
	}

	// EMA not warm yet: no demotion.
	if got := c.Update(h, 98, math.NaN()); got != core.TrendUp {
		t.Errorf("NaN EMA must not demote, got %v", got)
	}
}

func chopBar(tm time.Time, rng, body float64, vol int64) core.Bar {
	open := 100.0
	return core.Bar{
		Time:   tm,
		Open:   open,
		High:   open + rng,
		Low:    open,
		Close:  open + body,
		Volume: vol,
	}
}

func TestChopDetector(t *testing.T) {
	cfg := ChopConfig{Window: 3, AmpThreshold: 0.5, ChopThreshold: 0.3, EnergyPercentile: 50}
	d := NewChopDetector(cfg)
	base := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

	// Wide choppy bars with rising volume: amplitude/ATR ~1, chop 0.75.
	active := false
	for i := 0; i < 20; i++ {
		b := chopBar(base.Add(time.Duration(i)*5*time.Minute), 4, 1, int64(100+i*20))
		active = d.Push(b, 4.0)
	}
	if !active {
		t.Error("wide choppy high-energy bars should flag the regime")
	}

	// Strongly directional bars (body ≈ range) kill the choppiness term.
	for i := 0; i < 5; i++ {
		b := chopBar(base.Add(time.Duration(20+i)*5*time.Minute), 4, 3.9, 5000)
		active = d.Push(b, 4.0)
	}
	if active {
		t.Error("directional bars should clear the chop flag")
	}
}

func TestChopDetector_WarmupAndBadATR(t *testing.T) {
	d := NewChopDetector(DefaultChopConfig())
	b := chopBar(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), 4, 1, 100)

	if d.Push(b, math.NaN()) {
		t.Error("NaN ATR must not activate the regime")
	}
	if d.Push(b, 4.0) {
		t.Error("regime must stay inactive during warm-up")
	}
}
