package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnqlab/fractal/internal/core"
	"github.com/mnqlab/fractal/internal/position"
	"github.com/mnqlab/fractal/internal/session"
	"github.com/mnqlab/fractal/internal/strategy"
)

// scripted emits pre-planned signals at fixed bar indexes.
type scripted struct {
	signals map[int]*core.Signal
	gated   bool
	calls   []int
}

func (s *scripted) Name() string        { return "scripted" }
func (s *scripted) Description() string { return "" }
func (s *scripted) RegimeGated() bool   { return s.gated }
func (s *scripted) Generate(snap strategy.Snapshot) (*core.Signal, error) {
	s.calls = append(s.calls, snap.Index)
	return s.signals[snap.Index], nil
}

var sessionStart = time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

func flat(price float64, i int) core.Bar {
	return core.Bar{
		Time:  sessionStart.Add(time.Duration(i) * 5 * time.Minute),
		Open:  price, High: price, Low: price, Close: price,
	}
}

func bar(i int, o, h, l, c float64) core.Bar {
	return core.Bar{
		Time:  sessionStart.Add(time.Duration(i) * 5 * time.Minute),
		Open:  o, High: h, Low: l, Close: c,
	}
}

func baseConfig() Config {
	return Config{
		SwingStrength: 2,
		ATRPeriod:     3,
		EMAPeriod:     5,
		ZScorePeriod:  5,
		Session:       session.DefaultRTH(),
		Position:      position.Policy{StopFill: position.StopFillLevel},
	}
}

func marketSig(idx int, dir core.Direction, stop, target float64) *core.Signal {
	return &core.Signal{
		Direction: dir,
		Kind:      core.OrderMarket,
		Stop:      stop,
		Target:    target,
		Bar:       idx,
		ExpiresAt: idx + 5,
		Strategy:  "scripted",
	}
}

func TestEngine_RoundTrip(t *testing.T) {
	cfg := baseConfig()
	cfg.Slippage = 0.5
	gen := &scripted{signals: map[int]*core.Signal{3: marketSig(3, core.Long, 90, 104)}}

	e, err := New(cfg, gen)
	require.NoError(t, err)

	bars := []core.Bar{
		flat(100, 0), flat(100, 1), flat(100, 2), flat(100, 3),
		flat(100, 4), flat(100, 5),
		bar(6, 101, 105, 100, 103),
		flat(103, 7),
	}
	res, err := e.Run(bars)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, 4, tr.EntryBar, "market order fills one bar after the signal")
	assert.Equal(t, 100.5, tr.EntryPrice, "fill at next open plus slippage")
	assert.Equal(t, 6, tr.ExitBar)
	assert.Equal(t, core.ExitTarget, tr.ExitReason)
	assert.Equal(t, 104.0, tr.ExitPrice)
	assert.Equal(t, 3.5, tr.PnL)
	assert.Equal(t, 2, tr.BarsHeld)

	assert.Equal(t, 8, res.Bars)
	assert.Equal(t, 1, res.Stats.Trades)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "scripted", res.Strategy)
}

func TestEngine_GeneratorOnlyRunsWhileFlat(t *testing.T) {
	cfg := baseConfig()
	gen := &scripted{signals: map[int]*core.Signal{2: marketSig(2, core.Long, 90, 0)}}
	e, err := New(cfg, gen)
	require.NoError(t, err)

	bars := make([]core.Bar, 8)
	for i := range bars {
		bars[i] = flat(100, i)
	}
	_, err = e.Run(bars)
	require.NoError(t, err)

	// Called on bars 0-2 while flat, then never while the position is on
	// (it survives to the forced close).
	assert.Equal(t, []int{0, 1, 2}, gen.calls)
}

func TestEngine_BreakerGatesEntriesOnly(t *testing.T) {
	cfg := baseConfig()
	cfg.DailyLossLimit = -5
	gen := &scripted{signals: map[int]*core.Signal{
		2:  marketSig(2, core.Long, 97, 0),
		5:  marketSig(5, core.Long, 97, 0),
		9:  marketSig(9, core.Long, 97, 0), // must be swallowed by the gate
		12: marketSig(12, core.Long, 97, 0),
	}}
	e, err := New(cfg, gen)
	require.NoError(t, err)

	day2 := sessionStart.Add(24 * time.Hour)
	dip := func(i int) core.Bar { return bar(i, 100, 100, 96, 98) }
	bars := []core.Bar{
		flat(100, 0), flat(100, 1), flat(100, 2),
		flat(100, 3), // fill A at 100
		dip(4),       // stop A at 97, pnl -3
		flat(100, 5),
		flat(100, 6), // fill B
		dip(7),       // stop B, daily -6 trips the breaker
		flat(100, 8),
	}
	for _, b := range bars {
		_, _, err := e.OnBar(b)
		require.NoError(t, err)
	}

	// Bar 9: scripted signal exists but the breaker gate must stop it
	// before the generator runs.
	sig, _, err := e.OnBar(flat(100, 9))
	require.NoError(t, err)
	assert.Nil(t, sig)
	assert.NotContains(t, gen.calls, 9)

	// Next trading day: the gate lifts.
	for i := 10; i < 12; i++ {
		b := flat(100, i)
		b.Time = day2.Add(time.Duration(i-10) * 5 * time.Minute)
		_, _, err := e.OnBar(b)
		require.NoError(t, err)
	}
	b := flat(100, 12)
	b.Time = day2.Add(2 * 5 * time.Minute)
	sig, _, err = e.OnBar(b)
	require.NoError(t, err)
	assert.NotNil(t, sig, "entries resume after the daily reset")

	trades := e.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, -3.0, trades[0].PnL)
	assert.Equal(t, -3.0, trades[1].PnL)
}

func TestEngine_PreSessionBarDoesNotResetBreaker(t *testing.T) {
	cfg := baseConfig()
	cfg.DailyLossLimit = -5
	gen := &scripted{signals: map[int]*core.Signal{
		0: marketSig(0, core.Long, 97, 0),
	}}
	e, err := New(cfg, gen)
	require.NoError(t, err)

	bars := []core.Bar{
		flat(100, 0),
		flat(100, 1),             // fill at 100
		bar(2, 100, 100, 96, 98), // stop at 97, pnl -3
	}
	for _, b := range bars {
		_, _, err := e.OnBar(b)
		require.NoError(t, err)
	}
	e.brk.RecordTrade(-3) // second loss breaches the -5 daily limit
	require.False(t, e.brk.Allow())

	// 07:00 the next date is before the session opens: no reset yet.
	pre := flat(100, 3)
	pre.Time = time.Date(2024, 3, 6, 7, 0, 0, 0, time.UTC)
	_, _, err = e.OnBar(pre)
	require.NoError(t, err)
	assert.False(t, e.brk.Allow())

	// The first in-session bar of the new date clears the daily trip.
	open := flat(100, 4)
	open.Time = time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	_, _, err = e.OnBar(open)
	require.NoError(t, err)
	assert.True(t, e.brk.Allow())
}

func TestEngine_OpenPositionExitsWhileTripped(t *testing.T) {
	// Consecutive-loss limit of 1 trips on the first loss; the exit that
	// produced it must still have run unhindered, and the stop on any
	// later bar must not consult the breaker.
	cfg := baseConfig()
	cfg.MaxConsecLosses = 1
	gen := &scripted{signals: map[int]*core.Signal{2: marketSig(2, core.Long, 97, 0)}}
	e, err := New(cfg, gen)
	require.NoError(t, err)

	bars := []core.Bar{
		flat(100, 0), flat(100, 1), flat(100, 2), flat(100, 3),
		bar(4, 100, 100, 96, 98),
	}
	var closed *core.Trade
	for _, b := range bars {
		_, tr, err := e.OnBar(b)
		require.NoError(t, err)
		if tr != nil {
			closed = tr
		}
	}
	require.NotNil(t, closed)
	assert.Equal(t, core.ExitStop, closed.ExitReason)
}

func TestEngine_LimitExpiresSilently(t *testing.T) {
	cfg := baseConfig()
	gen := &scripted{signals: map[int]*core.Signal{2: {
		Direction: core.Long,
		Kind:      core.OrderLimit,
		Limit:     98,
		Stop:      95,
		Bar:       2,
		ExpiresAt: 4,
		Strategy:  "scripted",
	}}}
	e, err := New(cfg, gen)
	require.NoError(t, err)

	bars := make([]core.Bar, 8)
	for i := range bars {
		bars[i] = flat(100, i) // the wick never reaches 98
	}
	res, err := e.Run(bars)
	require.NoError(t, err)
	assert.Empty(t, res.Trades, "unfilled expiry opens nothing and costs nothing")

	// The generator keeps running once the pending signal is gone.
	assert.Contains(t, gen.calls, 6)
}

func TestEngine_SessionFilterBlocksGeneration(t *testing.T) {
	cfg := baseConfig()
	cfg.Session = session.Window{Start: 9.5, End: 15.0}
	gen := &scripted{signals: map[int]*core.Signal{0: marketSig(0, core.Long, 90, 0)}}
	e, err := New(cfg, gen)
	require.NoError(t, err)

	// 09:00 is before the 09:30 open.
	sig, _, err := e.OnBar(flat(100, 0))
	require.NoError(t, err)
	assert.Nil(t, sig)
	assert.Empty(t, gen.calls, "generator must not run outside the session")
}

func TestEngine_ForcedCloseAtEndOfData(t *testing.T) {
	cfg := baseConfig()
	gen := &scripted{signals: map[int]*core.Signal{1: marketSig(1, core.Long, 90, 0)}}
	e, err := New(cfg, gen)
	require.NoError(t, err)

	bars := []core.Bar{flat(100, 0), flat(100, 1), flat(100, 2), flat(99, 3)}
	res, err := e.Run(bars)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, core.ExitForced, tr.ExitReason)
	assert.Equal(t, 99.0, tr.ExitPrice, "forced close at the final bar close")
	assert.True(t, tr.Forced())
	assert.Empty(t, WithoutForced(res.Trades))
}

func TestEngine_RejectsBadData(t *testing.T) {
	e, err := New(baseConfig(), &scripted{})
	require.NoError(t, err)

	_, _, err = e.OnBar(flat(100, 0))
	require.NoError(t, err)

	// Same timestamp again.
	_, _, err = e.OnBar(flat(100, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDataInvalid))

	// Malformed bar.
	_, _, err = e.OnBar(core.Bar{Time: sessionStart.Add(time.Hour), High: 90, Low: 100, Open: 95, Close: 95})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDataInvalid))
}

func TestEngine_DetectsCorruptedState(t *testing.T) {
	e, err := New(baseConfig(), &scripted{})
	require.NoError(t, err)

	e.pos = &core.Position{Direction: core.Long, EntryPrice: 100}
	e.pending = marketSig(0, core.Long, 95, 105)

	_, _, err = e.OnBar(flat(100, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrStateViolation))
}

func TestEngine_RunEmpty(t *testing.T) {
	e, err := New(baseConfig(), &scripted{})
	require.NoError(t, err)

	_, err = e.Run(nil)
	assert.True(t, errors.Is(err, core.ErrNoData))
}

func TestEngine_ConfigValidation(t *testing.T) {
	cfg := baseConfig()
	cfg.ATRPeriod = 0
	_, err := New(cfg, &scripted{})
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	cfg = baseConfig()
	cfg.Session = session.Window{Start: 15, End: 9}
	_, err = New(cfg, &scripted{})
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	_, err = New(baseConfig(), nil)
	assert.True(t, errors.Is(err, core.ErrConfigMissing))

	cfg = baseConfig()
	cfg.SwingStrength = -1
	_, err = New(cfg, &scripted{})
	assert.Error(t, err)
}
