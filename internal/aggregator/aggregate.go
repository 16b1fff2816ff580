// Package aggregator folds bars into coarser resolutions.
package aggregator

import (
	"fmt"

	"SwingSentinel/internal/model"
	"SwingSentinel/internal/normalizer"
)

// Aggregate folds a normalized series into res buckets. Each output bar is
// stamped with its bucket start.
func Aggregate(series model.BarSeries, res Resolution) (model.BarSeries, error) {
	if res.Seconds() <= 0 {
		return nil, fmt.Errorf("aggregate: unsupported resolution %q", res)
	}
	if err := normalizer.Validate(series); err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	f := NewFolder(res)
	out := make(model.BarSeries, 0, len(series))
	for _, b := range series {
		if closed := f.Push(b); closed != nil {
			out = append(out, *closed)
		}
	}
	if last := f.Flush(); last != nil {
		out = append(out, *last)
	}
	return out, nil
}

// Folder aggregates a live bar stream. It is not safe for concurrent use;
// it belongs to the writer.
type Folder struct {
	res     Resolution
	current *model.Bar
}

// NewFolder returns a Folder for res.
func NewFolder(res Resolution) *Folder {
	return &Folder{res: res}
}

// Push adds b to the open bucket. When b starts a new bucket, the previous
// bucket is closed and returned. Bars must arrive in chronological order.
func (f *Folder) Push(b model.Bar) *model.Bar {
	start := f.res.Align(b.Timestamp)
	if f.current != nil && f.current.Timestamp == start {
		c := f.current
		if b.High > c.High {
			c.High = b.High
		}
		if b.Low < c.Low {
			c.Low = b.Low
		}
		c.Close = b.Close
		c.Volume += b.Volume
		return nil
	}
	closed := f.current
	f.current = &model.Bar{
		Timestamp: start,
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
	}
	return closed
}

// Current returns a copy of the open bucket, if any.
func (f *Folder) Current() (model.Bar, bool) {
	if f.current == nil {
		return model.Bar{}, false
	}
	return *f.current, true
}

// Flush closes and returns the open bucket.
func (f *Folder) Flush() *model.Bar {
	c := f.current
	f.current = nil
	return c
}
