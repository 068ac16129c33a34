package engine

import (
	"math"

	"github.com/mnqlab/fractal/internal/core"
)

// Stats summarizes a trade log. Monetary fields are in account currency;
// GrossLoss, AvgLoss and MaxDrawdown are positive magnitudes.
type Stats struct {
	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	WinRate float64 `json:"win_rate"`

	NetPnL      float64 `json:"net_pnl"`
	GrossProfit float64 `json:"gross_profit"`
	GrossLoss   float64 `json:"gross_loss"`

	// ProfitFactor is gross profit over gross loss. With zero gross loss
	// and positive profit it is +Inf, never zero.
	ProfitFactor float64 `json:"profit_factor"`

	AvgWin      float64 `json:"avg_win"`
	AvgLoss     float64 `json:"avg_loss"`
	MaxDrawdown float64 `json:"max_drawdown"`
	MeanPnL     float64 `json:"mean_pnl"`
	StdPnL      float64 `json:"std_pnl"`
	AvgBarsHeld float64 `json:"avg_bars_held"`
}

// Compute calculates summary statistics over the trade log.
func Compute(trades []core.Trade) Stats {
	s := Stats{Trades: len(trades)}
	if len(trades) == 0 {
		return s
	}

	var (
		cum, peak, maxDD float64
		sumBars          int
	)
	pnls := make([]float64, 0, len(trades))

	for _, t := range trades {
		pnls = append(pnls, t.PnL)
		s.NetPnL += t.PnL
		sumBars += t.BarsHeld

		if t.IsWin() {
			s.Wins++
			s.GrossProfit += t.PnL
		} else {
			s.Losses++
			s.GrossLoss += -t.PnL
		}

		cum += t.PnL
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > maxDD {
			maxDD = dd
		}
	}

	s.WinRate = float64(s.Wins) / float64(len(trades))
	s.MaxDrawdown = maxDD
	s.AvgBarsHeld = float64(sumBars) / float64(len(trades))

	switch {
	case s.GrossLoss > 0:
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	case s.GrossProfit > 0:
		s.ProfitFactor = math.Inf(1)
	default:
		s.ProfitFactor = 0
	}

	if s.Wins > 0 {
		s.AvgWin = s.GrossProfit / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = s.GrossLoss / float64(s.Losses)
	}

	s.MeanPnL = s.NetPnL / float64(len(trades))
	if len(pnls) > 1 {
		var variance float64
		for _, p := range pnls {
			variance += (p - s.MeanPnL) * (p - s.MeanPnL)
		}
		s.StdPnL = math.Sqrt(variance / float64(len(pnls)-1))
	}
	return s
}

// WithoutForced drops the end-of-data liquidation record, so statistics
// can be computed over organic exits only.
func WithoutForced(trades []core.Trade) []core.Trade {
	out := make([]core.Trade, 0, len(trades))
	for _, t := range trades {
		if !t.Forced() {
			out = append(out, t)
		}
	}
	return out
}

// ByExitReason splits the log per exit reason.
func ByExitReason(trades []core.Trade) map[core.ExitReason]Stats {
	groups := make(map[core.ExitReason][]core.Trade)
	for _, t := range trades {
		groups[t.ExitReason] = append(groups[t.ExitReason], t)
	}
	out := make(map[core.ExitReason]Stats, len(groups))
	for reason, g := range groups {
		out[reason] = Compute(g)
	}
	return out
}

// ByDirection splits the log into long and short trades.
func ByDirection(trades []core.Trade) map[core.Direction]Stats {
	groups := make(map[core.Direction][]core.Trade)
	for _, t := range trades {
		groups[t.Direction] = append(groups[t.Direction], t)
	}
	out := make(map[core.Direction]Stats, len(groups))
	for dir, g := range groups {
		out[dir] = Compute(g)
	}
	return out
}

// ByEntryType splits the log per entry type (first vs second pullback).
func ByEntryType(trades []core.Trade) map[int]Stats {
	groups := make(map[int][]core.Trade)
	for _, t := range trades {
		groups[t.EntryType] = append(groups[t.EntryType], t)
	}
	out := make(map[int]Stats, len(groups))
	for et, g := range groups {
		out[et] = Compute(g)
	}
	return out
}
