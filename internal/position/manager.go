// Package position owns the open position from fill to exit: grace period,
// breakeven move, trailing ratchet, and the fixed-priority exit checks.
package position

import (
	"math"

	"github.com/mnqlab/fractal/internal/core"
	"go.uber.org/zap"
)

// StopFillPolicy selects the exit price when the stop is breached.
type StopFillPolicy string

const (
	// StopFillLevel exits at the stop level itself. Understates losses
	// when price gaps through the stop.
	StopFillLevel StopFillPolicy = "stop"
	// StopFillClose exits at the bar close. The realistic default.
	StopFillClose StopFillPolicy = "close"
)

// Policy is the position-management configuration.
type Policy struct {
	GraceBars      int     // bars after entry with no stop check at all
	MaxHold        int     // bars-held limit, 0 disables the time exit
	TrailBufferATR float64 // trail stop = swing price -/+ buffer*ATR
	UseBreakeven   bool    // first favorable swing moves the stop to entry
	StopFill       StopFillPolicy
	Commission     float64 // per round trip, charged at exit
	PointValue     float64 // dollars per point per contract
}

// BarContext is the per-bar input to the manager: the bar itself plus the
// causal indicator and regime state the exit checks need.
type BarContext struct {
	Bar   core.Bar
	Index int

	ATR float64
	EMA float64

	NewHigh *core.SwingPoint
	NewLow  *core.SwingPoint

	// RegimeGated and RegimeOK drive the REGIME exit: when the entry was
	// regime-gated and the regime has flipped away, the position closes.
	RegimeGated bool
	RegimeOK    bool
}

// Manager applies the per-bar stop management and exit priority. It holds
// no position state itself; the caller owns the Position.
type Manager struct {
	policy Policy
	logger *zap.Logger
}

// NewManager creates a manager. An empty StopFill policy defaults to close.
func NewManager(p Policy, logger ...*zap.Logger) *Manager {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	if p.StopFill == "" {
		p.StopFill = StopFillClose
	}
	if p.PointValue == 0 {
		p.PointValue = 1
	}
	return &Manager{policy: p, logger: l}
}

// Update evaluates one bar for the open position: first the stop
// management (breakeven, ratchet), then the exit checks in priority order
// target, stop, time, regime. Returns the closing trade, or nil if the
// position stays open. Safe to call on the fill bar itself (bars held 0).
func (m *Manager) Update(pos *core.Position, ctx BarContext) *core.Trade {
	pos.BarsHeld = ctx.Index - pos.EntryBar

	m.manageStop(pos, ctx)

	if t := m.checkTarget(pos, ctx); t != nil {
		return t
	}
	if t := m.checkStop(pos, ctx); t != nil {
		return t
	}
	if m.policy.MaxHold > 0 && pos.BarsHeld >= m.policy.MaxHold {
		return m.close(pos, ctx.Bar, ctx.Index, ctx.Bar.Close, core.ExitTime)
	}
	if ctx.RegimeGated && !ctx.RegimeOK {
		return m.close(pos, ctx.Bar, ctx.Index, ctx.Bar.Close, core.ExitRegime)
	}
	return nil
}

// Close closes the position unconditionally at the given price. The engine
// uses it for the end-of-data liquidation.
func (m *Manager) Close(pos *core.Position, bar core.Bar, index int, price float64, reason core.ExitReason) *core.Trade {
	pos.BarsHeld = index - pos.EntryBar
	return m.close(pos, bar, index, price, reason)
}

// manageStop applies the breakeven move and the trailing ratchet on every
// favorable confirmed swing beyond the entry price. The stop only ever
// tightens.
func (m *Manager) manageStop(pos *core.Position, ctx BarContext) {
	var swing *core.SwingPoint
	if pos.Direction == core.Long {
		swing = ctx.NewLow
	} else {
		swing = ctx.NewHigh
	}
	if swing == nil {
		return
	}

	favorable := (pos.Direction == core.Long && swing.Price > pos.EntryPrice) ||
		(pos.Direction == core.Short && swing.Price < pos.EntryPrice)
	if !favorable {
		return
	}

	if m.policy.UseBreakeven && !pos.Breakeven {
		pos.Breakeven = true
		if tighter(pos.Direction, pos.EntryPrice, pos.Stop) {
			pos.Stop = pos.EntryPrice
			m.logger.Debug("stop moved to breakeven", zap.Int("bar", ctx.Index))
		}
		return
	}

	if math.IsNaN(ctx.ATR) {
		return
	}
	var candidate float64
	if pos.Direction == core.Long {
		candidate = swing.Price - m.policy.TrailBufferATR*ctx.ATR
	} else {
		candidate = swing.Price + m.policy.TrailBufferATR*ctx.ATR
	}
	if tighter(pos.Direction, candidate, pos.Stop) {
		pos.Stop = candidate
		pos.TrailCount++
		m.logger.Debug("stop trailed",
			zap.Float64("stop", candidate),
			zap.Int("bar", ctx.Index))
	}
}

// tighter reports whether candidate is closer to price than current for
// the given direction.
func tighter(dir core.Direction, candidate, current float64) bool {
	if dir == core.Long {
		return candidate > current
	}
	return candidate < current
}

func (m *Manager) checkTarget(pos *core.Position, ctx BarContext) *core.Trade {
	level := pos.Target
	if pos.EMATarget {
		if math.IsNaN(ctx.EMA) {
			return nil
		}
		level = ctx.EMA
	}
	if level == 0 {
		return nil
	}

	hit := (pos.Direction == core.Long && ctx.Bar.High >= level) ||
		(pos.Direction == core.Short && ctx.Bar.Low <= level)
	if !hit {
		return nil
	}
	return m.close(pos, ctx.Bar, ctx.Index, level, core.ExitTarget)
}

func (m *Manager) checkStop(pos *core.Position, ctx BarContext) *core.Trade {
	// Grace period: the stop simply does not exist yet.
	if pos.BarsHeld < m.policy.GraceBars {
		return nil
	}

	breached := (pos.Direction == core.Long && ctx.Bar.Low <= pos.Stop) ||
		(pos.Direction == core.Short && ctx.Bar.High >= pos.Stop)
	if !breached {
		return nil
	}

	price := ctx.Bar.Close
	if m.policy.StopFill == StopFillLevel {
		price = pos.Stop
	}

	reason := core.ExitStop
	if pos.TrailCount > 0 || pos.Breakeven {
		reason = core.ExitTrail
	}
	return m.close(pos, ctx.Bar, ctx.Index, price, reason)
}

func (m *Manager) close(pos *core.Position, bar core.Bar, index int, price float64, reason core.ExitReason) *core.Trade {
	points := price - pos.EntryPrice
	if pos.Direction == core.Short {
		points = -points
	}
	pnl := points*m.policy.PointValue - m.policy.Commission

	t := &core.Trade{
		Direction:  pos.Direction,
		EntryBar:   pos.EntryBar,
		ExitBar:    index,
		EntryTime:  pos.EntryTime,
		ExitTime:   bar.Time,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		Stop:       pos.OriginalStop,
		FinalStop:  pos.Stop,
		Target:     pos.Target,
		PnL:        pnl,
		BarsHeld:   pos.BarsHeld,
		EntryType:  pos.EntryType,
		ExitReason: reason,
		TrailCount: pos.TrailCount,
		Strategy:   pos.Strategy,
	}
	m.logger.Debug("position closed",
		zap.String("reason", string(reason)),
		zap.Float64("pnl", pnl),
		zap.Int("bars_held", pos.BarsHeld))
	return t
}
