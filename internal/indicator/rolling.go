package indicator

import (
	"math"
	"sort"
)

// RollingMean is a fixed-window arithmetic mean.
type RollingMean struct {
	window int
	ring   []float64
	head   int
	count  int
	sum    float64
}

// NewRollingMean creates a rolling mean over the given window.
func NewRollingMean(window int) *RollingMean {
	return &RollingMean{window: window, ring: make([]float64, window)}
}

// Push consumes the next value and returns the window mean, or NaN until
// the window is full.
func (m *RollingMean) Push(v float64) float64 {
	if m.count == m.window {
		m.sum -= m.ring[m.head]
	} else {
		m.count++
	}
	m.ring[m.head] = v
	m.sum += v
	m.head = (m.head + 1) % m.window

	if m.count < m.window {
		return math.NaN()
	}
	return m.sum / float64(m.window)
}

// Value returns the current mean, or NaN until the window is full.
func (m *RollingMean) Value() float64 {
	if m.count < m.window {
		return math.NaN()
	}
	return m.sum / float64(m.window)
}

// RollingStd is a fixed-window sample standard deviation.
type RollingStd struct {
	window int
	ring   []float64
	head   int
	count  int
	sum    float64
	sumSq  float64
}

// NewRollingStd creates a rolling standard deviation over the given window.
func NewRollingStd(window int) *RollingStd {
	return &RollingStd{window: window, ring: make([]float64, window)}
}

// Push consumes the next value and returns the sample standard deviation of
// the window, or NaN until it is full.
func (s *RollingStd) Push(v float64) float64 {
	if s.count == s.window {
		old := s.ring[s.head]
		s.sum -= old
		s.sumSq -= old * old
	} else {
		s.count++
	}
	s.ring[s.head] = v
	s.sum += v
	s.sumSq += v * v
	s.head = (s.head + 1) % s.window

	return s.Value()
}

// Value returns the current standard deviation, or NaN until the window is
// full.
func (s *RollingStd) Value() float64 {
	if s.count < s.window || s.window < 2 {
		return math.NaN()
	}
	n := float64(s.count)
	variance := (s.sumSq - s.sum*s.sum/n) / (n - 1)
	if variance < 0 {
		variance = 0 // floating-point noise on near-constant input
	}
	return math.Sqrt(variance)
}

// RollingPercentile reports a percentile of a fixed trailing window,
// including the current value.
type RollingPercentile struct {
	window int
	pct    float64 // 0..100
	ring   []float64
	head   int
	count  int
	sorted []float64
}

// NewRollingPercentile creates a rolling percentile (0..100) over the given
// window.
func NewRollingPercentile(window int, pct float64) *RollingPercentile {
	return &RollingPercentile{
		window: window,
		pct:    pct,
		ring:   make([]float64, window),
		sorted: make([]float64, 0, window),
	}
}

// Push consumes the next value and returns the window percentile, or NaN
// until the window is full.
func (p *RollingPercentile) Push(v float64) float64 {
	if p.count < p.window {
		p.count++
	}
	p.ring[p.head] = v
	p.head = (p.head + 1) % p.window

	if p.count < p.window {
		return math.NaN()
	}

	p.sorted = p.sorted[:p.count]
	copy(p.sorted, p.ring[:p.count])
	sort.Float64s(p.sorted)

	// Linear interpolation between closest ranks.
	rank := p.pct / 100 * float64(p.count-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return p.sorted[lo]
	}
	frac := rank - float64(lo)
	return p.sorted[lo]*(1-frac) + p.sorted[hi]*frac
}
