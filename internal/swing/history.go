package swing

import "github.com/mnqlab/fractal/internal/core"

// History tracks confirmed swing points as they arrive. It keeps the last
// two highs and last two lows (newest first), bars-since counters, and the
// wave direction derived from consecutive same-type swings.
type History struct {
	highs  [2]float64
	nHighs int
	lows   [2]float64
	nLows  int

	lastHigh *core.SwingPoint
	lastLow  *core.SwingPoint

	barsSinceHigh int
	barsSinceLow  int

	// Wave direction carries forward until the next same-type swing:
	// bullish when swing lows are rising, bearish when swing highs are
	// falling. The two are independent flags, matching the research code.
	bullishWave bool
	bearishWave bool
}

// NewHistory creates an empty swing history.
func NewHistory() *History {
	return &History{barsSinceHigh: -1, barsSinceLow: -1}
}

// Observe advances the history by one bar, folding in any swing points the
// detector confirmed on that bar. Call exactly once per bar.
func (h *History) Observe(points []core.SwingPoint) {
	if h.barsSinceHigh >= 0 {
		h.barsSinceHigh++
	}
	if h.barsSinceLow >= 0 {
		h.barsSinceLow++
	}

	for i := range points {
		p := points[i]
		switch p.Kind {
		case core.SwingHigh:
			if h.nHighs > 0 {
				h.bearishWave = p.Price < h.highs[0]
			}
			h.highs[1] = h.highs[0]
			h.highs[0] = p.Price
			if h.nHighs < 2 {
				h.nHighs++
			}
			h.lastHigh = &p
			h.barsSinceHigh = 0
		case core.SwingLow:
			if h.nLows > 0 {
				h.bullishWave = p.Price > h.lows[0]
			}
			h.lows[1] = h.lows[0]
			h.lows[0] = p.Price
			if h.nLows < 2 {
				h.nLows++
			}
			h.lastLow = &p
			h.barsSinceLow = 0
		}
	}
}

// Highs returns the newest and prior swing high prices. ok is false until
// two highs have been observed.
func (h *History) Highs() (newest, prior float64, ok bool) {
	return h.highs[0], h.highs[1], h.nHighs >= 2
}

// Lows returns the newest and prior swing low prices. ok is false until two
// lows have been observed.
func (h *History) Lows() (newest, prior float64, ok bool) {
	return h.lows[0], h.lows[1], h.nLows >= 2
}

// LastHigh returns the most recent confirmed swing high, or nil.
func (h *History) LastHigh() *core.SwingPoint {
	return h.lastHigh
}

// LastLow returns the most recent confirmed swing low, or nil.
func (h *History) LastLow() *core.SwingPoint {
	return h.lastLow
}

// BarsSinceHigh returns bars elapsed since the last confirmed swing high,
// or -1 if none has been observed.
func (h *History) BarsSinceHigh() int {
	return h.barsSinceHigh
}

// BarsSinceLow returns bars elapsed since the last confirmed swing low,
// or -1 if none has been observed.
func (h *History) BarsSinceLow() int {
	return h.barsSinceLow
}

// BullishWave reports rising swing lows.
func (h *History) BullishWave() bool {
	return h.bullishWave
}

// BearishWave reports falling swing highs.
func (h *History) BearishWave() bool {
	return h.bearishWave
}
