package swing

import (
	"slices"

	"SwingSentinel/internal/model"
)

// DetectNaive scans every window directly in O(N·W). It applies the same
// rules as Detector and is kept as a reference for differential tests.
func DetectNaive(series model.BarSeries, windows []int, tie TieBreak) ([]model.SwingPoint, error) {
	ws, err := checkInput(series, windows)
	if err != nil {
		return nil, err
	}

	var out []model.SwingPoint
	for _, w := range ws {
		for i := w; i < len(series)-w; i++ {
			b := series[i]
			if naiveExtreme(series, i, w, tie, func(x model.Bar) float64 { return x.High }, func(x, v float64) bool { return x > v }) {
				out = append(out, model.SwingPoint{Index: i, Timestamp: b.Timestamp, Price: b.High, Kind: model.SwingHigh, Window: w})
			} else if naiveExtreme(series, i, w, tie, func(x model.Bar) float64 { return x.Low }, func(x, v float64) bool { return x < v }) {
				out = append(out, model.SwingPoint{Index: i, Timestamp: b.Timestamp, Price: b.Low, Kind: model.SwingLow, Window: w})
			}
		}
	}
	slices.SortFunc(out, model.CompareSwings)
	return out, nil
}

// naiveExtreme reports whether bar i is the extreme of [i-w, i+w]. beats(x, v)
// is true when x is strictly more extreme than v.
func naiveExtreme(series model.BarSeries, i, w int, tie TieBreak, price func(model.Bar) float64, beats func(x, v float64) bool) bool {
	v := price(series[i])
	for j := i - w; j <= i+w; j++ {
		if j == i {
			continue
		}
		x := price(series[j])
		if beats(x, v) {
			return false
		}
		if x != v {
			continue
		}
		switch {
		case tie == Leftmost && j < i,
			tie == Rightmost && j > i,
			tie == Strict:
			return false
		}
	}
	return true
}
