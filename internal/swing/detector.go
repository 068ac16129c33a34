// Package swing implements fractal swing-point detection with
// confirmation-delay semantics. A bar is a swing high iff its high strictly
// exceeds the highs of the S bars on both sides; ties are not swings. The
// point is confirmed S bars after the extremum, and must never be consumed
// before its confirmation index.
package swing

import (
	"fmt"

	"github.com/mnqlab/fractal/internal/core"
)

// At examines bars[center-strength .. center+strength] and reports whether
// the center bar is a swing high and/or a swing low. Pure function of the
// window; both neighborhoods must be fully available.
func At(bars []core.Bar, center, strength int) (high, low *core.SwingPoint, err error) {
	if strength <= 0 {
		return nil, nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("swing strength must be positive, got %d", strength))
	}
	if center-strength < 0 || center+strength >= len(bars) {
		return nil, nil, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("window [%d-%d, %d+%d] outside %d bars", center, strength, center, strength, len(bars)))
	}

	isHigh, isLow := true, true
	for j := center - strength; j <= center+strength; j++ {
		if j == center {
			continue
		}
		if bars[j].High >= bars[center].High {
			isHigh = false
		}
		if bars[j].Low <= bars[center].Low {
			isLow = false
		}
		if !isHigh && !isLow {
			break
		}
	}

	// A bar can be both in pathological flat data; the two are independent.
	if isHigh {
		high = &core.SwingPoint{
			Kind:        core.SwingHigh,
			Price:       bars[center].High,
			BarIndex:    center,
			ConfirmedAt: center + strength,
		}
	}
	if isLow {
		low = &core.SwingPoint{
			Kind:        core.SwingLow,
			Price:       bars[center].Low,
			BarIndex:    center,
			ConfirmedAt: center + strength,
		}
	}
	return high, low, nil
}

// Detector detects swings incrementally from a bar stream. It keeps only a
// bounded trailing window, so there is structurally no way to peek at future
// bars: a swing at bar i-S is reported when bar i arrives, never earlier.
type Detector struct {
	strength int
	window   []core.Bar // trailing 2*strength+1 bars
	pushed   int
}

// NewDetector creates a detector with the given strength.
func NewDetector(strength int) (*Detector, error) {
	if strength <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("swing strength must be positive, got %d", strength))
	}
	return &Detector{
		strength: strength,
		window:   make([]core.Bar, 0, 2*strength+1),
	}, nil
}

// Strength returns the configured neighborhood size.
func (d *Detector) Strength() int {
	return d.strength
}

// Push feeds the next bar and returns the swing points confirmed by it:
// at most one high and one low, both at bar index pushed-1-strength.
func (d *Detector) Push(bar core.Bar) []core.SwingPoint {
	size := 2*d.strength + 1
	if len(d.window) == size {
		copy(d.window, d.window[1:])
		d.window = d.window[:size-1]
	}
	d.window = append(d.window, bar)
	d.pushed++

	if len(d.window) < size {
		return nil
	}

	// Window is full; its center is the candidate extremum.
	confirmIdx := d.pushed - 1
	centerIdx := confirmIdx - d.strength

	high, low, err := At(d.window, d.strength, d.strength)
	if err != nil {
		return nil
	}

	var out []core.SwingPoint
	if high != nil {
		high.BarIndex = centerIdx
		high.ConfirmedAt = confirmIdx
		out = append(out, *high)
	}
	if low != nil {
		low.BarIndex = centerIdx
		low.ConfirmedAt = confirmIdx
		out = append(out, *low)
	}
	return out
}
