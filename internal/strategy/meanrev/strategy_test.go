package meanrev

import (
	"math"
	"testing"

	"github.com/mnqlab/fractal/internal/core"
	"github.com/mnqlab/fractal/internal/strategy"
	"github.com/mnqlab/fractal/internal/swing"
)

// fallingHighs builds a history with lower highs (bearish wave) and a
// recent swing low at the given price.
func fallingHighs(lowPrice float64) *swing.History {
	h := swing.NewHistory()
	h.Observe([]core.SwingPoint{{Kind: core.SwingHigh, Price: 110}})
	h.Observe([]core.SwingPoint{{Kind: core.SwingHigh, Price: 105}})
	h.Observe([]core.SwingPoint{{Kind: core.SwingLow, Price: lowPrice}})
	return h
}

func risingLows(highPrice float64) *swing.History {
	h := swing.NewHistory()
	h.Observe([]core.SwingPoint{{Kind: core.SwingLow, Price: 90}})
	h.Observe([]core.SwingPoint{{Kind: core.SwingLow, Price: 95}})
	h.Observe([]core.SwingPoint{{Kind: core.SwingHigh, Price: highPrice}})
	return h
}

func baseSnap(h *swing.History, z float64) strategy.Snapshot {
	// A stretched close sits below the mean when z is negative, above
	// it when positive.
	close := 95.0
	if z > 0 {
		close = 105.0
	}
	return strategy.Snapshot{
		Bar:    core.Bar{Open: close, High: close, Low: close, Close: close},
		Index:  100,
		ATR:    2.0,
		ZScore: z,
		Chop:   true,
		Swings: h,
	}
}

func mustNew(t *testing.T, params map[string]any) *MeanRev {
	t.Helper()
	m, err := New(strategy.Config{Params: params})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestMeanRev_LongFade(t *testing.T) {
	m := mustNew(t, nil)
	sig, err := m.Generate(baseSnap(fallingHighs(94), -3.2))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sig == nil {
		t.Fatal("expected a long fade")
	}
	if sig.Direction != core.Long || sig.Kind != core.OrderMarket {
		t.Fatalf("got %s %s, want LONG market", sig.Direction, sig.Kind)
	}
	if !sig.EMATarget {
		t.Error("fade must exit at the EMA")
	}
	// Stop = swing low 94 - 1.0*ATR = 92.
	if sig.Stop != 92 {
		t.Errorf("stop = %v, want 92", sig.Stop)
	}
}

func TestMeanRev_ShortFade(t *testing.T) {
	m := mustNew(t, nil)
	sig, err := m.Generate(baseSnap(risingLows(106), 3.5))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sig == nil || sig.Direction != core.Short {
		t.Fatalf("want SHORT, got %+v", sig)
	}
	if sig.Stop != 108 {
		t.Errorf("stop = %v, want swing high + ATR = 108", sig.Stop)
	}
}

func TestMeanRev_StopCappedAtMaxATR(t *testing.T) {
	m := mustNew(t, nil)

	// Anchor low far below the close: raw stop 85 - 2 = 83 is 12 points of
	// risk from close 95, capped to 2.0 ATR = 4 points.
	sig, err := m.Generate(baseSnap(fallingHighs(85), -3.2))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sig == nil {
		t.Fatal("expected a long fade")
	}
	if sig.Stop != 91 {
		t.Errorf("stop = %v, want close - 2 ATR = 91", sig.Stop)
	}

	// Short mirror: raw stop 115 + 2 = 117 capped to 105 + 4.
	sig, err = m.Generate(baseSnap(risingLows(115), 3.5))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sig == nil {
		t.Fatal("expected a short fade")
	}
	if sig.Stop != 109 {
		t.Errorf("stop = %v, want close + 2 ATR = 109", sig.Stop)
	}

	// A wider cap keeps the structure stop.
	wide := mustNew(t, map[string]any{"max_stop_atr": 10.0})
	sig, err = wide.Generate(baseSnap(fallingHighs(85), -3.2))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sig == nil || sig.Stop != 83 {
		t.Errorf("wide cap: want structure stop 83, got %+v", sig)
	}
}

func TestMeanRev_RequiresChopRegime(t *testing.T) {
	m := mustNew(t, nil)
	s := baseSnap(fallingHighs(94), -3.2)
	s.Chop = false
	if sig, _ := m.Generate(s); sig != nil {
		t.Errorf("no entries outside the regime, got %+v", sig)
	}
}

func TestMeanRev_ZBelowThreshold(t *testing.T) {
	m := mustNew(t, nil)
	if sig, _ := m.Generate(baseSnap(fallingHighs(94), -2.9)); sig != nil {
		t.Errorf("z inside the band must not fire, got %+v", sig)
	}
}

func TestMeanRev_WaveFilterBlocksAlignedStructure(t *testing.T) {
	m := mustNew(t, nil)

	// Rising highs: the structure agrees with the downside stretch being
	// bought back already, so the long fade is blocked.
	h := swing.NewHistory()
	h.Observe([]core.SwingPoint{{Kind: core.SwingHigh, Price: 100}})
	h.Observe([]core.SwingPoint{{Kind: core.SwingHigh, Price: 105}})
	h.Observe([]core.SwingPoint{{Kind: core.SwingLow, Price: 94}})

	if sig, _ := m.Generate(baseSnap(h, -3.2)); sig != nil {
		t.Errorf("rising highs must block the long fade, got %+v", sig)
	}

	// Same stretch with the filter off fires.
	off := mustNew(t, map[string]any{"use_wave_filter": false})
	if sig, _ := off.Generate(baseSnap(h, -3.2)); sig == nil {
		t.Error("filter disabled: the fade should fire")
	}
}

func TestMeanRev_SwingProximity(t *testing.T) {
	m := mustNew(t, map[string]any{"swing_proximity": 3})

	h := fallingHighs(94)
	for i := 0; i < 5; i++ {
		h.Observe(nil) // five bars pass since the low
	}
	if sig, _ := m.Generate(baseSnap(h, -3.2)); sig != nil {
		t.Errorf("stale swing low must block the fade, got %+v", sig)
	}

	// No swing low at all: nothing to anchor the stop.
	empty := swing.NewHistory()
	if sig, _ := m.Generate(baseSnap(empty, -3.2)); sig != nil {
		t.Errorf("no anchor swing, got %+v", sig)
	}
}

func TestMeanRev_WarmupGuards(t *testing.T) {
	m := mustNew(t, nil)

	s := baseSnap(fallingHighs(94), math.NaN())
	if sig, _ := m.Generate(s); sig != nil {
		t.Errorf("NaN z-score must not fire, got %+v", sig)
	}

	s = baseSnap(fallingHighs(94), -3.2)
	s.ATR = math.NaN()
	if sig, _ := m.Generate(s); sig != nil {
		t.Errorf("NaN ATR must not fire, got %+v", sig)
	}
}

func TestMeanRev_ConfigValidation(t *testing.T) {
	if _, err := New(strategy.Config{Params: map[string]any{"z_threshold": -1.0}}); err == nil {
		t.Error("negative z_threshold must be rejected")
	}
	if _, err := New(strategy.Config{Params: map[string]any{"timeout_bars": 0}}); err == nil {
		t.Error("zero timeout must be rejected")
	}
}
