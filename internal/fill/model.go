// Package fill turns pending signals into open positions. A signal created
// on bar N is first eligible on bar N+1: market orders fill at that bar's
// open with full slippage, limit orders fill only when the bar's wick
// crosses the reference price and then at the limit price exactly.
package fill

import (
	"github.com/mnqlab/fractal/internal/core"
	"go.uber.org/zap"
)

// Model applies the fill semantics. Slippage is in price points, charged
// adversely on market fills only.
type Model struct {
	slippage float64
	logger   *zap.Logger
}

// NewModel creates a fill model.
func NewModel(slippage float64, logger ...*zap.Logger) *Model {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Model{slippage: slippage, logger: l}
}

// TryFill evaluates the pending signal against the current bar. It returns
// the opened position when the order fills, and expired=true when the
// signal has passed its timeout and must be discarded. Expiry is silent:
// no position, no cost.
func (m *Model) TryFill(sig *core.Signal, bar core.Bar, index int) (pos *core.Position, expired bool) {
	if sig == nil {
		return nil, false
	}
	if sig.Expired(index) {
		m.logger.Debug("signal expired",
			zap.String("strategy", sig.Strategy),
			zap.Int("placed", sig.Bar),
			zap.Int("bar", index))
		return nil, true
	}
	// One-bar delay: never fill on the signal's own bar.
	if index <= sig.Bar {
		return nil, false
	}

	var price float64
	switch sig.Kind {
	case core.OrderMarket:
		if sig.Direction == core.Long {
			price = bar.Open + m.slippage
		} else {
			price = bar.Open - m.slippage
		}
	case core.OrderLimit:
		if sig.Direction == core.Long {
			if bar.Low > sig.Limit {
				return nil, false
			}
		} else {
			if bar.High < sig.Limit {
				return nil, false
			}
		}
		price = sig.Limit
	default:
		return nil, false
	}

	m.logger.Debug("order filled",
		zap.String("strategy", sig.Strategy),
		zap.String("direction", string(sig.Direction)),
		zap.Float64("price", price),
		zap.Int("bar", index))

	return &core.Position{
		Direction:    sig.Direction,
		EntryBar:     index,
		EntryTime:    bar.Time,
		EntryPrice:   price,
		Stop:         sig.Stop,
		OriginalStop: sig.Stop,
		Target:       sig.Target,
		EMATarget:    sig.EMATarget,
		EntryType:    sig.EntryType,
		Strategy:     sig.Strategy,
	}, false
}
