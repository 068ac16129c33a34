// Package tradelog serializes the trade log to the tabular form the
// downstream validation tooling consumes: one row per trade.
package tradelog

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mnqlab/fractal/internal/core"
)

var header = []string{
	"entry_time", "exit_time", "direction", "entry_bar", "exit_bar",
	"entry_price", "exit_price", "stop", "final_stop", "target",
	"pnl", "bars_held", "entry_type", "exit_reason", "trail_count", "strategy",
}

// Write emits the trade log as CSV to w.
func Write(w io.Writer, trades []core.Trade) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return err
	}
	for _, t := range trades {
		row := []string{
			formatTime(t.EntryTime),
			formatTime(t.ExitTime),
			string(t.Direction),
			strconv.Itoa(t.EntryBar),
			strconv.Itoa(t.ExitBar),
			formatF(t.EntryPrice),
			formatF(t.ExitPrice),
			formatF(t.Stop),
			formatF(t.FinalStop),
			formatF(t.Target),
			formatF(t.PnL),
			strconv.Itoa(t.BarsHeld),
			strconv.Itoa(t.EntryType),
			string(t.ExitReason),
			strconv.Itoa(t.TrailCount),
			t.Strategy,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the trade log to a CSV file.
func WriteFile(path string, trades []core.Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, trades); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02T15:04:05Z07:00")
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
