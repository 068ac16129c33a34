// Package regime classifies market state from confirmed swing structure:
// the trend state machine (UP/DOWN/RANGE/UNKNOWN) and the optional
// high-volatility-chop flag used to gate mean-reversion entries.
package regime

import (
	"math"

	"github.com/mnqlab/fractal/internal/core"
	"github.com/mnqlab/fractal/internal/swing"
)

// Classifier derives the trend state from the last two confirmed swing
// highs and last two confirmed swing lows.
type Classifier struct {
	emaConfirm bool
	state      core.TrendState
}

// NewClassifier creates a classifier. With emaConfirm set, a trend whose
// close is on the wrong side of the EMA is demoted to RANGE.
func NewClassifier(emaConfirm bool) *Classifier {
	return &Classifier{emaConfirm: emaConfirm, state: core.TrendUnknown}
}

// Update re-evaluates the trend from the swing history. close and ema are
// only consulted when EMA confirmation is enabled; pass NaN for ema before
// warm-up.
func (c *Classifier) Update(h *swing.History, close, ema float64) core.TrendState {
	newestHigh, priorHigh, okHighs := h.Highs()
	newestLow, priorLow, okLows := h.Lows()

	// Fewer than two of either type: no classification yet.
	if !okHighs || !okLows {
		c.state = core.TrendUnknown
		return c.state
	}

	hh := newestHigh > priorHigh
	hl := newestLow > priorLow
	lh := newestHigh < priorHigh
	ll := newestLow < priorLow

	switch {
	case hh && hl:
		c.state = core.TrendUp
	case lh && ll:
		c.state = core.TrendDown
	default:
		c.state = core.TrendRange
	}

	if c.emaConfirm && !math.IsNaN(ema) {
		if c.state == core.TrendUp && close < ema {
			c.state = core.TrendRange
		} else if c.state == core.TrendDown && close > ema {
			c.state = core.TrendRange
		}
	}

	return c.state
}

// State returns the most recent classification.
func (c *Classifier) State() core.TrendState {
	return c.state
}
