// Package report formats validation runs and swing snapshots as plain text.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"SwingSentinel/internal/model"
)

const timeLayout = "2006-01-02 15:04"

// WindowResult is the outcome of detecting one window.
type WindowResult struct {
	Window int
	Swings []model.SwingPoint
	Err    error
}

// Validation summarizes a validate run.
type Validation struct {
	Symbol     string
	Resolution string
	Source     string
	Start      time.Time
	End        time.Time
	RawCount   int
	Removed    int
	BarCount   int
	Windows    []WindowResult
	// Detected counts swings over all windows; Retained is what survives the
	// swing cap, in canonical order. A nil Retained means no cap was applied.
	Detected int
	Retained []model.SwingPoint
}

// retained reports whether s is among the swings kept by the cap.
func (v *Validation) retained(s model.SwingPoint) bool {
	if v.Retained == nil || len(v.Retained) == v.Detected {
		return true
	}
	// Retained is a suffix of the canonical order, so one comparison with its
	// first element decides membership.
	return len(v.Retained) > 0 && model.CompareSwings(s, v.Retained[0]) >= 0
}

// FormatValidation renders a validate run. verbose lists every swing.
func FormatValidation(v *Validation, verbose bool) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("SwingSentinel validate | %s %s | %s → %s\n\n",
		v.Symbol, v.Resolution, v.Start.Format("2006-01-02"), v.End.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Source: %s\n", v.Source))
	b.WriteString(fmt.Sprintf("Raw bars: %d | Duplicates removed: %d | Bars: %d\n\n", v.RawCount, v.Removed, v.BarCount))

	for _, w := range v.Windows {
		var insufficient *model.InsufficientDataError
		switch {
		case errors.As(w.Err, &insufficient):
			b.WriteString(fmt.Sprintf("Window %d: insufficient data (need %d bars, have %d)\n",
				w.Window, insufficient.Need, insufficient.Have))
			continue
		case w.Err != nil:
			b.WriteString(fmt.Sprintf("Window %d: %v\n", w.Window, w.Err))
			continue
		}
		highs, lows := countKinds(w.Swings)
		b.WriteString(fmt.Sprintf("Window %d: %d highs, %d lows\n", w.Window, highs, lows))
		if verbose {
			var omitted int
			for _, s := range w.Swings {
				if !v.retained(s) {
					omitted++
					continue
				}
				b.WriteString("  " + formatSwing(s) + "\n")
			}
			if omitted > 0 {
				b.WriteString(fmt.Sprintf("  ... %d earlier swings omitted by the cap\n", omitted))
			}
		}
	}
	if v.Retained != nil && len(v.Retained) < v.Detected {
		b.WriteString(fmt.Sprintf("\nRetained %d of %d swings (cap)\n", len(v.Retained), v.Detected))
	}
	return b.String()
}

// FormatSnapshot renders the current swing state. At most limit recent
// swings are listed; limit <= 0 lists all.
func FormatSnapshot(symbol string, st model.SwingState, limit int) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("SwingSentinel | %s | v%d\n", symbol, st.Version))
	if st.LastTimestamp > 0 {
		b.WriteString(fmt.Sprintf("Bars: %d (last %s)\n", st.BarCount, formatTS(st.LastTimestamp)))
	} else {
		b.WriteString(fmt.Sprintf("Bars: %d\n", st.BarCount))
	}
	if st.Paused {
		b.WriteString(fmt.Sprintf("Paused, %d bars buffered\n", st.Buffered))
	}
	if st.Stale {
		b.WriteString(fmt.Sprintf("STALE: %s\n", st.Fault))
	}

	highs, lows := countKinds(st.Swings)
	b.WriteString(fmt.Sprintf("\nSwings: %d highs, %d lows\n", highs, lows))
	swings := st.Swings
	if limit > 0 && len(swings) > limit {
		swings = swings[len(swings)-limit:]
	}
	for _, s := range swings {
		b.WriteString("  " + formatSwing(s) + "\n")
	}
	if st.Pending != nil {
		b.WriteString("Pending: " + formatSwing(*st.Pending) + "\n")
	}
	return b.String()
}

func countKinds(swings []model.SwingPoint) (highs, lows int) {
	for _, s := range swings {
		if s.Kind == model.SwingHigh {
			highs++
		} else {
			lows++
		}
	}
	return highs, lows
}

func formatSwing(s model.SwingPoint) string {
	return fmt.Sprintf("%-4s #%d %s %.2f (w=%d)", s.Kind, s.Index, formatTS(s.Timestamp), s.Price, s.Window)
}

func formatTS(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(timeLayout)
}
