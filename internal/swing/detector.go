// Package swing detects local price extrema over symmetric lookback windows.
package swing

import (
	"fmt"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"SwingSentinel/internal/model"
	"SwingSentinel/internal/rangeindex"
)

// Detector finds swing points using range-max/min tables.
type Detector struct {
	Tie TieBreak
}

// NewDetector returns a detector using the given tie-break policy.
func NewDetector(tie TieBreak) *Detector {
	return &Detector{Tie: tie}
}

// NormalizeWindows validates windows and returns them sorted and deduplicated.
func NormalizeWindows(windows []int) ([]int, error) {
	if len(windows) == 0 {
		return nil, fmt.Errorf("no swing windows: %w", model.ErrInvalidWindow)
	}
	out := slices.Clone(windows)
	slices.Sort(out)
	out = slices.Compact(out)
	if out[0] < 1 {
		return nil, fmt.Errorf("window %d: %w", out[0], model.ErrInvalidWindow)
	}
	return out, nil
}

// CheckWindow returns an *InsufficientDataError if n bars cannot hold one
// full window of size w.
func CheckWindow(n, w int) error {
	if need := 2*w + 1; n < need {
		return &model.InsufficientDataError{Window: w, Need: need, Have: n}
	}
	return nil
}

// Detect returns the swings of every window, in canonical order. It fails if
// any window needs more bars than the series holds, or if a bar holds a
// non-finite value.
func (d *Detector) Detect(series model.BarSeries, windows []int) ([]model.SwingPoint, error) {
	ws, err := checkInput(series, windows)
	if err != nil {
		return nil, err
	}

	highs := rangeindex.NewMax(series.Highs())
	lows := rangeindex.NewMin(series.Lows())

	results := make([][]model.SwingPoint, len(ws))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, w := range ws {
		i, w := i, w
		g.Go(func() error {
			results[i] = d.DetectRange(series, highs, lows, w, w, len(series)-1-w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []model.SwingPoint
	for _, r := range results {
		out = append(out, r...)
	}
	slices.SortFunc(out, model.CompareSwings)
	return out, nil
}

// checkInput validates windows against series and rejects non-finite bars.
// Range tables are not ordered under NaN, so such bars never reach them.
func checkInput(series model.BarSeries, windows []int) ([]int, error) {
	ws, err := NormalizeWindows(windows)
	if err != nil {
		return nil, err
	}
	for _, w := range ws {
		if err := CheckWindow(len(series), w); err != nil {
			return nil, err
		}
	}
	if err := series.CheckFinite(); err != nil {
		return nil, err
	}
	return ws, nil
}

// DetectWindow detects swings for a single window.
func (d *Detector) DetectWindow(series model.BarSeries, w int) ([]model.SwingPoint, error) {
	return d.Detect(series, []int{w})
}

// DetectRange evaluates centers from..to (inclusive) for window w against
// prebuilt tables. Centers outside [w, N-1-w] are skipped. The result is in
// index order.
func (d *Detector) DetectRange(series model.BarSeries, highs, lows *rangeindex.SparseTable, w, from, to int) []model.SwingPoint {
	n := len(series)
	if from < w {
		from = w
	}
	if to > n-1-w {
		to = n - 1 - w
	}
	var out []model.SwingPoint
	for i := from; i <= to; i++ {
		if sp, ok := d.classify(series, highs, lows, w, i, i+w); ok {
			out = append(out, sp)
		}
	}
	return out
}

// Pending returns the most recent provisional swing for window w: a bar in
// the last w positions whose left side is complete and which is the extreme
// of [i-w, N-1]. It may be superseded as further bars arrive.
func (d *Detector) Pending(series model.BarSeries, highs, lows *rangeindex.SparseTable, w int) *model.SwingPoint {
	n := len(series)
	lo := n - w
	if lo < w {
		lo = w
	}
	for i := n - 1; i >= lo; i-- {
		if sp, ok := d.classify(series, highs, lows, w, i, n-1); ok {
			return &sp
		}
	}
	return nil
}

// classify checks center i over [i-w, right]. A bar that is both the window
// high and the window low is reported as a high.
func (d *Detector) classify(series model.BarSeries, highs, lows *rangeindex.SparseTable, w, i, right int) (model.SwingPoint, bool) {
	left := i - w
	b := series[i]
	if d.isExtreme(highs, b.High, left, i, right, func(a, b float64) bool { return a < b }) {
		return model.SwingPoint{Index: i, Timestamp: b.Timestamp, Price: b.High, Kind: model.SwingHigh, Window: w}, true
	}
	if d.isExtreme(lows, b.Low, left, i, right, func(a, b float64) bool { return a > b }) {
		return model.SwingPoint{Index: i, Timestamp: b.Timestamp, Price: b.Low, Kind: model.SwingLow, Window: w}, true
	}
	return model.SwingPoint{}, false
}

// isExtreme reports whether v at index i is the extreme of [left, right]
// under the tie policy. beaten(x, v) is true when x is strictly less extreme
// than v.
func (d *Detector) isExtreme(tbl *rangeindex.SparseTable, v float64, left, i, right int, beaten func(x, v float64) bool) bool {
	if tbl.Query(left, right) != v {
		return false
	}
	leftClear := i == left || beaten(tbl.Query(left, i-1), v)
	rightClear := i == right || beaten(tbl.Query(i+1, right), v)
	switch d.Tie {
	case Rightmost:
		return rightClear
	case All:
		return true
	case Strict:
		return leftClear && rightClear
	default:
		return leftClear
	}
}

// Cap keeps the n most recent swings. n <= 0 keeps everything.
func Cap(swings []model.SwingPoint, n int) []model.SwingPoint {
	if n <= 0 || len(swings) <= n {
		return swings
	}
	return swings[len(swings)-n:]
}
