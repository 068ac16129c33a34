// Package breaker enforces the loss-limit gates. The breaker only blocks
// NEW entries: exit logic on an open position must never consult it, so a
// tripped breaker can never leave a position unprotected.
package breaker

import (
	"fmt"

	"go.uber.org/zap"
)

// Breaker tracks realized P&L against the daily, weekly and
// consecutive-loss limits. State updates exactly once per realized trade,
// never on unrealized P&L.
type Breaker struct {
	dailyLossLimit  float64 // negative; 0 disables
	weeklyLossLimit float64 // negative; 0 disables
	maxConsecLosses int     // 0 disables

	dailyPnL     float64
	weeklyPnL    float64
	consecLosses int
	tripped      bool
	reason       string

	logger *zap.Logger
}

// New creates a breaker. Loss limits are negative numbers; zero disables
// that gate.
func New(dailyLossLimit, weeklyLossLimit float64, maxConsecLosses int, logger ...*zap.Logger) *Breaker {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Breaker{
		dailyLossLimit:  dailyLossLimit,
		weeklyLossLimit: weeklyLossLimit,
		maxConsecLosses: maxConsecLosses,
		logger:          l,
	}
}

// Allow reports whether a new entry may be taken.
func (b *Breaker) Allow() bool {
	return !b.tripped
}

// Reason returns why the breaker is tripped, or "".
func (b *Breaker) Reason() string {
	return b.reason
}

// RecordTrade folds one realized trade into the counters and re-evaluates
// the gates. A winning trade resets the consecutive-loss count.
func (b *Breaker) RecordTrade(pnl float64) {
	b.dailyPnL += pnl
	b.weeklyPnL += pnl
	if pnl < 0 {
		b.consecLosses++
	} else {
		b.consecLosses = 0
	}

	switch {
	case b.dailyLossLimit != 0 && b.dailyPnL <= b.dailyLossLimit:
		b.trip(fmt.Sprintf("daily loss limit: %.2f <= %.2f", b.dailyPnL, b.dailyLossLimit))
	case b.weeklyLossLimit != 0 && b.weeklyPnL <= b.weeklyLossLimit:
		b.trip(fmt.Sprintf("weekly loss limit: %.2f <= %.2f", b.weeklyPnL, b.weeklyLossLimit))
	case b.maxConsecLosses > 0 && b.consecLosses >= b.maxConsecLosses:
		b.trip(fmt.Sprintf("consecutive losses: %d >= %d", b.consecLosses, b.maxConsecLosses))
	}
}

func (b *Breaker) trip(reason string) {
	if !b.tripped {
		b.logger.Warn("circuit breaker tripped", zap.String("reason", reason))
	}
	b.tripped = true
	b.reason = reason
}

// NewTradingDay resets the daily P&L and the losing streak at a session
// boundary. A daily or consecutive-loss trip clears; a weekly trip
// persists until the week rolls over.
func (b *Breaker) NewTradingDay() {
	b.dailyPnL = 0
	b.consecLosses = 0
	if b.tripped && (b.weeklyLossLimit == 0 || b.weeklyPnL > b.weeklyLossLimit) {
		b.tripped = false
		b.reason = ""
	}
}

// NewTradingWeek resets the weekly P&L and clears a weekly trip. Implies a
// new trading day.
func (b *Breaker) NewTradingWeek() {
	b.weeklyPnL = 0
	b.NewTradingDay()
}

// DailyPnL returns the realized P&L for the current trading day.
func (b *Breaker) DailyPnL() float64 {
	return b.dailyPnL
}

// ConsecutiveLosses returns the current losing streak.
func (b *Breaker) ConsecutiveLosses() int {
	return b.consecLosses
}
