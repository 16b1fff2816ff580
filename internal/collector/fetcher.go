package collector

import (
	"context"
	"time"

	"SwingSentinel/internal/aggregator"
	"SwingSentinel/internal/model"
)

// Fetcher loads raw bars for a symbol. Bars may come back unsorted or with
// duplicate timestamps; the collector normalizes them.
type Fetcher interface {
	FetchBars(ctx context.Context, symbol string, res aggregator.Resolution, start, end time.Time) ([]model.Bar, error)
	Name() string
}

// inRange reports whether ts falls in [start, end). Zero bounds are open.
func inRange(ts int64, start, end time.Time) bool {
	if !start.IsZero() && ts < start.Unix() {
		return false
	}
	if !end.IsZero() && ts >= end.Unix() {
		return false
	}
	return true
}
