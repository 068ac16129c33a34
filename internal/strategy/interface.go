// Package strategy defines the signal-generator contract. Generators see a
// bounded per-bar Snapshot, never the whole series, so look-ahead is
// structurally impossible.
package strategy

import (
	"github.com/mnqlab/fractal/internal/core"
	"github.com/mnqlab/fractal/internal/swing"
)

// Config holds generator configuration as a flat parameter bag. Which keys
// are active depends on the selected generator.
type Config struct {
	Params map[string]any
}

// Float returns a float parameter or the default.
func (c Config) Float(key string, def float64) float64 {
	switch v := c.Params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// Int returns an integer parameter or the default.
func (c Config) Int(key string, def int) int {
	switch v := c.Params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Bool returns a boolean parameter or the default.
func (c Config) Bool(key string, def bool) bool {
	if v, ok := c.Params[key].(bool); ok {
		return v
	}
	return def
}

// String returns a string parameter or the default.
func (c Config) String(key, def string) string {
	if v, ok := c.Params[key].(string); ok {
		return v
	}
	return def
}

// Snapshot is the per-bar view handed to generators: the current bar, the
// current indicator values, the confirmed-swing history, and the regime
// flags. All values are causal as of this bar.
type Snapshot struct {
	Bar   core.Bar
	Index int

	ATR      float64 // NaN during warm-up
	EMA      float64
	ZScore   float64 // NaN during warm-up
	ATRRatio float64 // current ATR / 50-bar rolling mean, NaN during warm-up

	Trend core.TrendState
	Chop  bool // high-vol-chop regime flag

	// Swings confirmed on this bar, nil otherwise. The history already
	// includes them.
	NewHigh *core.SwingPoint
	NewLow  *core.SwingPoint
	Swings  *swing.History

	SessionHour float64 // fractional exchange-local hour of day
}

// Generator produces at most one entry candidate per bar. It is only
// invoked while flat; pending-signal replacement and expiry are the fill
// model's concern.
type Generator interface {
	Name() string
	Description() string

	// RegimeGated reports whether entries require the chop regime; when
	// true, the position manager applies the REGIME exit on regime flip.
	RegimeGated() bool

	Generate(snap Snapshot) (*core.Signal, error)
}
