// Package indicator provides incremental per-bar indicators. Each type
// consumes one value per bar and returns NaN until its warm-up window is
// full, so callers can gate on readiness without tracking bar counts.
package indicator

import (
	"math"

	"github.com/mnqlab/fractal/internal/core"
)

// ATR is the Average True Range as a simple rolling mean of true range.
type ATR struct {
	period    int
	ring      []float64
	head      int
	count     int
	sum       float64
	prevClose float64
	seen      bool
}

// NewATR creates an ATR with the given period.
func NewATR(period int) *ATR {
	return &ATR{period: period, ring: make([]float64, period)}
}

// Push consumes the next bar and returns the current ATR, or NaN during
// warm-up.
func (a *ATR) Push(bar core.Bar) float64 {
	tr := bar.High - bar.Low
	if a.seen {
		tr = math.Max(tr, math.Max(
			math.Abs(bar.High-a.prevClose),
			math.Abs(bar.Low-a.prevClose),
		))
	}
	a.prevClose = bar.Close
	a.seen = true

	if a.count == a.period {
		a.sum -= a.ring[a.head]
	} else {
		a.count++
	}
	a.ring[a.head] = tr
	a.sum += tr
	a.head = (a.head + 1) % a.period

	if a.count < a.period {
		return math.NaN()
	}
	return a.sum / float64(a.period)
}

// Value returns the current ATR without consuming a bar, or NaN during
// warm-up.
func (a *ATR) Value() float64 {
	if a.count < a.period {
		return math.NaN()
	}
	return a.sum / float64(a.period)
}
