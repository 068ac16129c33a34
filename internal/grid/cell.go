// Package grid filters entries by historically validated probability cells.
// A cell is a small tuple of discretized features: EMA-distance bucket,
// time-of-day bucket, direction, and optionally a volatility bucket. The
// allowed-cell table is mined offline and injected read-only; the engine
// only performs the lookup.
package grid

import (
	"math"
	"strings"

	"github.com/mnqlab/fractal/internal/core"
)

// EMABucket discretizes the close-to-EMA distance measured in ATR units.
// Returns "" when the distance is not yet computable.
func EMABucket(distATR float64) string {
	switch {
	case math.IsNaN(distATR):
		return ""
	case distATR < -2:
		return "ema<-2"
	case distATR < -1:
		return "ema-2..-1"
	case distATR < 0:
		return "ema-1..0"
	case distATR < 1:
		return "ema0..1"
	case distATR < 2:
		return "ema1..2"
	default:
		return "ema>2"
	}
}

// TODBucket discretizes the exchange-local fractional hour. Returns ""
// outside the regular session.
func TODBucket(hour float64) string {
	switch {
	case hour >= 8.5 && hour < 9.5:
		return "open"
	case hour >= 9.5 && hour < 12.0:
		return "morning"
	case hour >= 12.0 && hour < 15.0:
		return "afternoon"
	default:
		return ""
	}
}

// VolBucket discretizes the volatility regime: current ATR over its 50-bar
// rolling mean.
func VolBucket(atrRatio float64) string {
	switch {
	case math.IsNaN(atrRatio):
		return ""
	case atrRatio < 0.9:
		return "low_vol"
	case atrRatio < 1.2:
		return "norm_vol"
	default:
		return "high_vol"
	}
}

// FineKey builds the three-feature cell key.
func FineKey(emaBucket, tod string, dir core.Direction) string {
	return strings.Join([]string{emaBucket, tod, string(dir)}, "|")
}

// UltraKey builds the four-feature cell key including the vol bucket.
func UltraKey(emaBucket, tod string, dir core.Direction, vol string) string {
	return strings.Join([]string{emaBucket, tod, string(dir), vol}, "|")
}

// Table is a read-only set of tradeable cell keys.
type Table map[string]struct{}

// NewTable builds a table from a list of cell keys.
func NewTable(keys []string) Table {
	t := make(Table, len(keys))
	for _, k := range keys {
		t[k] = struct{}{}
	}
	return t
}

// Allowed reports whether the key is tradeable.
func (t Table) Allowed(key string) bool {
	_, ok := t[key]
	return ok
}

// StableFineCells are the three-feature cells that held up under split-half
// validation on MNQ 5-minute data.
func StableFineCells() Table {
	return NewTable([]string{
		"ema<-2|open|SHORT",
		"ema<-2|afternoon|SHORT",
		"ema<-2|morning|SHORT",
		"ema-2..-1|afternoon|SHORT",
		"ema>2|open|LONG",
		"ema>2|morning|LONG",
	})
}

// StableUltraCells are the split-half validated four-feature cells.
func StableUltraCells() Table {
	return NewTable([]string{
		"ema<-2|open|SHORT|high_vol",
		"ema<-2|morning|SHORT|high_vol",
		"ema-2..-1|afternoon|SHORT|norm_vol",
		"ema-1..0|morning|SHORT|norm_vol",
		"ema0..1|morning|LONG|norm_vol",
		"ema0..1|afternoon|LONG|norm_vol",
		"ema>2|open|LONG|high_vol",
		"ema>2|afternoon|LONG|low_vol",
	})
}
