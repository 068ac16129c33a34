package grid

import (
	"math"

	"github.com/mnqlab/fractal/internal/core"
	"github.com/mnqlab/fractal/internal/strategy"
	"go.uber.org/zap"
)

// Mode selects how many features make up the cell key.
type Mode string

const (
	ModeFine  Mode = "fine"  // EMA bucket × time-of-day × direction
	ModeUltra Mode = "ultra" // fine + volatility bucket
)

// Filter wraps a generator and suppresses signals whose cell is not in the
// allowed table. Suppression is silent; the inner generator still advances
// its state every bar.
type Filter struct {
	inner  strategy.Generator
	table  Table
	mode   Mode
	logger *zap.Logger
}

// NewFilter wraps gen with a cell filter. A nil table falls back to the
// stable cells for the chosen mode.
func NewFilter(gen strategy.Generator, table Table, mode Mode, logger ...*zap.Logger) *Filter {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	if table == nil {
		if mode == ModeUltra {
			table = StableUltraCells()
		} else {
			table = StableFineCells()
		}
	}
	return &Filter{inner: gen, table: table, mode: mode, logger: l}
}

func (f *Filter) Name() string {
	return f.inner.Name() + "+grid"
}

func (f *Filter) Description() string {
	return f.inner.Description() + ", cell-filtered"
}

func (f *Filter) RegimeGated() bool {
	return f.inner.RegimeGated()
}

// Generate delegates to the wrapped generator and drops the signal when its
// cell is unclassifiable or not allowed.
func (f *Filter) Generate(snap strategy.Snapshot) (*core.Signal, error) {
	sig, err := f.inner.Generate(snap)
	if err != nil || sig == nil {
		return sig, err
	}

	key, ok := f.Key(snap, sig.Direction)
	if !ok || !f.table.Allowed(key) {
		f.logger.Debug("signal outside allowed cells",
			zap.String("cell", key),
			zap.Int("bar", snap.Index))
		return nil, nil
	}
	return sig, nil
}

// Key classifies the snapshot into a cell key for the given direction.
// ok is false when any feature is unclassifiable.
func (f *Filter) Key(snap strategy.Snapshot, dir core.Direction) (string, bool) {
	dist := math.NaN()
	if !math.IsNaN(snap.ATR) && snap.ATR > 0 && !math.IsNaN(snap.EMA) {
		dist = (snap.Bar.Close - snap.EMA) / snap.ATR
	}

	emaBkt := EMABucket(dist)
	tod := TODBucket(snap.SessionHour)
	if emaBkt == "" || tod == "" {
		return "", false
	}

	if f.mode == ModeUltra {
		vol := VolBucket(snap.ATRRatio)
		if vol == "" {
			return "", false
		}
		return UltraKey(emaBkt, tod, dir, vol), true
	}
	return FineKey(emaBkt, tod, dir), true
}
