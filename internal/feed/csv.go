// Package feed loads bar series from CSV. The engine requires strictly
// time-ordered bars; the loader enforces that here so the hot loop never
// re-validates.
package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mnqlab/fractal/internal/core"
)

// timeLayouts are tried in order when parsing the timestamp column.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// LoadCSV reads a bar series from a CSV file with columns
// time,open,high,low,close,volume. A header row is skipped when present.
// Timestamps without a zone are interpreted in loc (nil means UTC).
func LoadCSV(path string, loc *time.Location) ([]core.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.WrapError(core.ErrDataInvalid, err)
	}
	defer f.Close()
	return Read(f, loc)
}

// Read parses bars from r. See LoadCSV.
func Read(r io.Reader, loc *time.Location) ([]core.Bar, error) {
	if loc == nil {
		loc = time.UTC
	}
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	var bars []core.Bar
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrDataInvalid, err)
		}
		line++

		if line == 1 && isHeader(record) {
			continue
		}
		if len(record) < 6 {
			return nil, core.WrapError(core.ErrDataInvalid,
				fmt.Errorf("line %d: want 6 columns, got %d", line, len(record)))
		}

		bar, err := parseBar(record, loc)
		if err != nil {
			return nil, core.WrapError(core.ErrDataInvalid,
				fmt.Errorf("line %d: %w", line, err))
		}
		if !bar.IsValid() {
			return nil, core.WrapError(core.ErrDataInvalid,
				fmt.Errorf("line %d: malformed bar at %s", line, bar.Time))
		}
		if n := len(bars); n > 0 && !bar.Time.After(bars[n-1].Time) {
			return nil, core.WrapError(core.ErrDataInvalid,
				fmt.Errorf("line %d: %s is not after %s", line, bar.Time, bars[n-1].Time))
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, core.ErrNoData
	}
	return bars, nil
}

func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(record[len(record)-1]), 64)
	return err != nil
}

func parseBar(record []string, loc *time.Location) (core.Bar, error) {
	ts, err := parseTime(strings.TrimSpace(record[0]), loc)
	if err != nil {
		return core.Bar{}, err
	}

	fields := make([]float64, 4)
	for i := 0; i < 4; i++ {
		fields[i], err = strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
		if err != nil {
			return core.Bar{}, fmt.Errorf("column %d: %w", i+2, err)
		}
	}
	vol, err := strconv.ParseFloat(strings.TrimSpace(record[5]), 64)
	if err != nil {
		return core.Bar{}, fmt.Errorf("column 6: %w", err)
	}

	return core.Bar{
		Time:   ts,
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: int64(vol),
	}, nil
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
