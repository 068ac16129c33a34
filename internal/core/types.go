package core

import "time"

// Bar is one OHLCV sample at a fixed interval. Immutable once ingested.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// IsValid checks the bar has a sane price range.
func (b Bar) IsValid() bool {
	return !b.Time.IsZero() &&
		b.High >= b.Low &&
		b.High >= b.Open && b.High >= b.Close &&
		b.Low <= b.Open && b.Low <= b.Close &&
		b.Low > 0
}

// Range returns the high-low spread.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// SwingKind distinguishes swing highs from swing lows.
type SwingKind string

const (
	SwingHigh SwingKind = "HIGH"
	SwingLow  SwingKind = "LOW"
)

// SwingPoint is a confirmed local extremum. It is only usable at or after
// ConfirmedAt; consuming it earlier is a look-ahead bug.
type SwingPoint struct {
	Kind        SwingKind
	Price       float64
	BarIndex    int // index of the extremum bar
	ConfirmedAt int // BarIndex + strength
}

// TrendState is the swing-structure trend classification.
type TrendState string

const (
	TrendUnknown TrendState = "UNKNOWN"
	TrendUp      TrendState = "UP"
	TrendDown    TrendState = "DOWN"
	TrendRange   TrendState = "RANGE"
)

// Direction of a signal or position.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// OrderKind selects the fill semantics for a signal.
type OrderKind string

const (
	OrderMarket OrderKind = "market"
	OrderLimit  OrderKind = "limit"
)

// Signal is a candidate entry emitted by a generator and consumed once by
// the fill model. At most one signal is pending at a time; a new signal
// replaces any unfilled one.
type Signal struct {
	Direction Direction
	Kind      OrderKind
	Limit     float64 // reference price for limit entries; unused for market
	Stop      float64 // initial stop price
	Target    float64 // 0 means no fixed target (trail/time managed)
	EMATarget bool    // exit at the EMA instead of a fixed level
	EntryType int     // 1 = first pullback entry, 2 = second entry, 0 = n/a
	Bar       int     // creation bar index
	ExpiresAt int     // creation bar + timeout
	Strategy  string
	Reason    string
}

// Expired reports whether the signal has passed its validity window at index.
func (s Signal) Expired(index int) bool {
	return index > s.ExpiresAt
}

// Position is the single open position, owned by the position manager
// from fill until exit. One contract, no pyramiding, no partial exits.
type Position struct {
	Direction    Direction
	EntryBar     int
	EntryTime    time.Time
	EntryPrice   float64
	Stop         float64 // current stop, ratchets only toward price
	OriginalStop float64
	Target       float64 // 0 means no fixed target
	EMATarget    bool    // exit at the EMA instead of a fixed level
	Breakeven    bool    // stop has been moved to entry
	TrailCount   int     // favorable swing adjustments applied
	BarsHeld     int
	EntryType    int
	Strategy     string
}

// ExitReason tags how a trade was closed.
type ExitReason string

const (
	ExitTarget ExitReason = "TARGET"
	ExitStop   ExitReason = "STOP"
	ExitTrail  ExitReason = "TRAIL_STOP"
	ExitTime   ExitReason = "TIME"
	ExitRegime ExitReason = "REGIME"
	// ExitForced marks the end-of-data close. It is not a normal exit type;
	// statistics may exclude it.
	ExitForced ExitReason = "FORCED"
)

// Trade is an immutable completed record, created on exit. The append-only
// trade log is the sole output consumed by downstream tooling.
type Trade struct {
	Direction  Direction
	EntryBar   int
	ExitBar    int
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Stop       float64 // original stop
	FinalStop  float64 // stop at exit, after trailing
	Target     float64
	PnL        float64 // realized, after commission and slippage
	BarsHeld   int
	EntryType  int
	ExitReason ExitReason
	TrailCount int
	Strategy   string
}

// IsWin returns true if the trade was profitable.
func (t Trade) IsWin() bool {
	return t.PnL > 0
}

// Forced returns true for the end-of-data liquidation record.
func (t Trade) Forced() bool {
	return t.ExitReason == ExitForced
}
