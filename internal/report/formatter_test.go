package report

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"SwingSentinel/internal/model"
)

func TestFormatValidation(t *testing.T) {
	v := &Validation{
		Symbol:     "SPX500",
		Resolution: "1d",
		Source:     "csv",
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		RawCount:   25,
		Removed:    2,
		BarCount:   23,
		Windows: []WindowResult{
			{Window: 2, Swings: []model.SwingPoint{
				{Index: 3, Timestamp: 1704499200, Price: 4800.5, Kind: model.SwingHigh, Window: 2},
				{Index: 7, Timestamp: 1704844800, Price: 4700, Kind: model.SwingLow, Window: 2},
			}},
			{Window: 20, Err: &model.InsufficientDataError{Window: 20, Need: 41, Have: 23}},
			{Window: 5, Err: errors.New("boom")},
		},
	}

	out := FormatValidation(v, false)
	assert.Contains(t, out, "SPX500 1d | 2024-01-01 → 2024-02-01")
	assert.Contains(t, out, "Raw bars: 25 | Duplicates removed: 2 | Bars: 23")
	assert.Contains(t, out, "Window 2: 1 highs, 1 lows")
	assert.Contains(t, out, "Window 20: insufficient data (need 41 bars, have 23)")
	assert.Contains(t, out, "Window 5: boom")
	assert.NotContains(t, out, "#3")

	out = FormatValidation(v, true)
	assert.Contains(t, out, "high #3 2024-01-06 00:00 4800.50 (w=2)")
	assert.Contains(t, out, "low  #7 2024-01-10 00:00 4700.00 (w=2)")
}

func TestFormatValidation_CapHidesOlderSwings(t *testing.T) {
	w2 := []model.SwingPoint{
		{Index: 2, Timestamp: 120, Price: 5, Kind: model.SwingHigh, Window: 2},
		{Index: 5, Timestamp: 300, Price: 1, Kind: model.SwingLow, Window: 2},
		{Index: 8, Timestamp: 480, Price: 6, Kind: model.SwingHigh, Window: 2},
	}
	w3 := []model.SwingPoint{
		{Index: 5, Timestamp: 300, Price: 1, Kind: model.SwingLow, Window: 3},
	}
	v := &Validation{
		Windows:  []WindowResult{{Window: 2, Swings: w2}, {Window: 3, Swings: w3}},
		Detected: 4,
		// Canonical order: (2,2) (5,2) (5,3) (8,2); cap 2 keeps the last two.
		Retained: []model.SwingPoint{w3[0], w2[2]},
	}

	out := FormatValidation(v, true)
	assert.Contains(t, out, "Window 2: 2 highs, 1 lows")
	assert.NotContains(t, out, "#2 ")
	assert.NotContains(t, out, "#5 1970-01-01 00:05 1.00 (w=2)")
	assert.Contains(t, out, "#5 1970-01-01 00:05 1.00 (w=3)")
	assert.Contains(t, out, "#8 ")
	assert.Contains(t, out, "... 2 earlier swings omitted by the cap")
	assert.Contains(t, out, "Retained 2 of 4 swings (cap)")
}

func TestFormatSnapshot(t *testing.T) {
	st := model.SwingState{
		Swings: []model.SwingPoint{
			{Index: 1, Timestamp: 60, Price: 1, Kind: model.SwingLow, Window: 1},
			{Index: 3, Timestamp: 180, Price: 5, Kind: model.SwingHigh, Window: 1},
			{Index: 5, Timestamp: 300, Price: 2, Kind: model.SwingLow, Window: 1},
		},
		Pending:       &model.SwingPoint{Index: 7, Timestamp: 420, Price: 9, Kind: model.SwingHigh, Window: 1},
		Version:       4,
		BarCount:      8,
		LastTimestamp: 420,
		Paused:        true,
		Buffered:      3,
		Stale:         true,
		Fault:         "writer fault",
	}

	out := FormatSnapshot("BTC", st, 2)
	assert.Contains(t, out, "BTC | v4")
	assert.Contains(t, out, "Bars: 8 (last 1970-01-01 00:07)")
	assert.Contains(t, out, "Paused, 3 bars buffered")
	assert.Contains(t, out, "STALE: writer fault")
	assert.Contains(t, out, "Swings: 1 highs, 2 lows")
	assert.NotContains(t, out, "#1 ")
	assert.Contains(t, out, "#3 ")
	assert.Contains(t, out, "Pending: high #7")

	out = FormatSnapshot("BTC", model.SwingState{Swings: []model.SwingPoint{}}, 0)
	assert.Contains(t, out, "Bars: 0\n")
	assert.Contains(t, out, "Swings: 0 highs, 0 lows")
}
