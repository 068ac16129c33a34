// Package session handles the regular-trading-hours window and trading-day
// boundaries. Bar timestamps are assumed to already be exchange-local;
// calendar preprocessing (RTH filtering, contract rolls) happens upstream.
package session

import "time"

// Window is an intraday time window in fractional hours, half-open:
// [Start, End). 8.5 means 08:30.
type Window struct {
	Start float64
	End   float64
}

// DefaultRTH is the regular session used throughout the research:
// 08:30 to 15:00 exchange time.
func DefaultRTH() Window {
	return Window{Start: 8.5, End: 15.0}
}

// Contains reports whether the fractional hour falls inside the window.
func (w Window) Contains(hour float64) bool {
	return hour >= w.Start && hour < w.End
}

// Hour returns the fractional hour of day for the timestamp's wall clock.
func Hour(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
}

// SameTradingDay reports whether two timestamps fall on the same calendar
// date.
func SameTradingDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SameTradingWeek reports whether two timestamps fall in the same ISO week.
func SameTradingWeek(a, b time.Time) bool {
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay == by && aw == bw
}
