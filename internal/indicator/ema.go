package indicator

import "math"

// EMA is an exponential moving average seeded with the first observation.
type EMA struct {
	alpha  float64
	value  float64
	seeded bool
}

// NewEMA creates an EMA with the standard 2/(period+1) smoothing factor.
func NewEMA(period int) *EMA {
	return &EMA{alpha: 2.0 / float64(period+1)}
}

// Push consumes the next value and returns the updated EMA.
func (e *EMA) Push(v float64) float64 {
	if !e.seeded {
		e.value = v
		e.seeded = true
		return e.value
	}
	e.value = e.alpha*v + (1-e.alpha)*e.value
	return e.value
}

// Value returns the current EMA, or NaN before any value was pushed.
func (e *EMA) Value() float64 {
	if !e.seeded {
		return math.NaN()
	}
	return e.value
}
