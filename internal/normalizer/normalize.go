package normalizer

import (
	"cmp"
	"log"
	"slices"

	"SwingSentinel/internal/model"
)

// maxLoggedDuplicates bounds per-timestamp warning lines for a single call.
const maxLoggedDuplicates = 5

// Result is the output of Normalize.
type Result struct {
	Series   model.BarSeries
	Removed  int
	Warnings []model.DuplicateTimestampWarning
}

// Normalize sorts raw bars by timestamp and removes duplicate timestamps,
// keeping the bar that appeared last in the input. The input is not modified.
func Normalize(raw []model.Bar) (Result, error) {
	if len(raw) == 0 {
		return Result{Series: model.BarSeries{}}, nil
	}

	sorted := make([]model.Bar, len(raw))
	copy(sorted, raw)
	// Stable: equal timestamps keep input order, so the last of a run is the
	// most recent correction.
	slices.SortStableFunc(sorted, func(a, b model.Bar) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})

	var res Result
	out := make(model.BarSeries, 0, len(sorted))
	for i := 0; i < len(sorted); {
		j := i
		for j+1 < len(sorted) && sorted[j+1].Timestamp == sorted[i].Timestamp {
			j++
		}
		out = append(out, sorted[j])
		if dropped := j - i; dropped > 0 {
			res.Removed += dropped
			res.Warnings = append(res.Warnings, model.DuplicateTimestampWarning{
				Timestamp: sorted[i].Timestamp,
				Dropped:   dropped,
			})
		}
		i = j + 1
	}
	res.Series = out

	if res.Removed > 0 {
		for i, w := range res.Warnings {
			if i == maxLoggedDuplicates {
				log.Printf("[WARN] ... %d more duplicate timestamps", len(res.Warnings)-i)
				break
			}
			log.Printf("[WARN] duplicate timestamp, keeping last: %s", w)
		}
		log.Printf("[WARN] removed %d duplicate bars", res.Removed)
	}

	if err := Validate(out); err != nil {
		return Result{}, err
	}
	return res, nil
}

// Validate checks that timestamps are strictly increasing and every value is
// finite. Ordering failures are *model.OrderingError, non-finite values
// *model.InvalidPriceError.
func Validate(series model.BarSeries) error {
	if err := series.CheckFinite(); err != nil {
		return err
	}
	for i := 1; i < len(series); i++ {
		if series[i].Timestamp <= series[i-1].Timestamp {
			return &model.OrderingError{
				Index: i,
				Prev:  series[i-1].Timestamp,
				Curr:  series[i].Timestamp,
			}
		}
	}
	return nil
}
