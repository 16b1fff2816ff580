package aggregator

import (
	"fmt"
	"strings"
)

// Resolution is a supported aggregation period.
type Resolution string

const (
	Res1m  Resolution = "1m"
	Res5m  Resolution = "5m"
	Res15m Resolution = "15m"
	Res30m Resolution = "30m"
	Res1h  Resolution = "1h"
	Res4h  Resolution = "4h"
	Res1d  Resolution = "1d"
	Res1w  Resolution = "1w"
)

// Resolutions lists every supported period from finest to coarsest.
var Resolutions = []Resolution{Res1m, Res5m, Res15m, Res30m, Res1h, Res4h, Res1d, Res1w}

// firstMonday is 1970-01-05, the first Monday after the epoch. Weekly buckets
// are anchored to it.
const firstMonday = 4 * 24 * 3600

func (r Resolution) String() string { return string(r) }

// ParseResolution accepts the canonical names and common aliases.
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1m", "m1", "1min":
		return Res1m, nil
	case "5m", "m5", "5min":
		return Res5m, nil
	case "15m", "m15", "15min":
		return Res15m, nil
	case "30m", "m30", "30min":
		return Res30m, nil
	case "1h", "h1", "60m":
		return Res1h, nil
	case "4h", "h4":
		return Res4h, nil
	case "1d", "d1", "1day", "day", "daily":
		return Res1d, nil
	case "1w", "w1", "1wk", "week", "weekly":
		return Res1w, nil
	default:
		return "", fmt.Errorf("unsupported resolution %q", s)
	}
}

// Seconds returns the bucket width.
func (r Resolution) Seconds() int64 {
	switch r {
	case Res1m:
		return 60
	case Res5m:
		return 5 * 60
	case Res15m:
		return 15 * 60
	case Res30m:
		return 30 * 60
	case Res1h:
		return 3600
	case Res4h:
		return 4 * 3600
	case Res1d:
		return 24 * 3600
	case Res1w:
		return 7 * 24 * 3600
	default:
		return 0
	}
}

// Align floors ts (epoch seconds, UTC) to the start of its bucket.
func (r Resolution) Align(ts int64) int64 {
	d := r.Seconds()
	if d <= 0 {
		return ts
	}
	if r == Res1w {
		return floorDiv(ts-firstMonday, d)*d + firstMonday
	}
	return floorDiv(ts, d) * d
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// ForZoom picks the finest resolution, no finer than base, at which span
// bars of base fold into at most maxBars bars. It falls back to the
// coarsest resolution.
func ForZoom(base Resolution, span, maxBars int) Resolution {
	if maxBars <= 0 || span <= maxBars {
		return base
	}
	width := int64(span) * base.Seconds()
	for _, r := range Resolutions {
		if r.Seconds() < base.Seconds() {
			continue
		}
		if (width+r.Seconds()-1)/r.Seconds() <= int64(maxBars) {
			return r
		}
	}
	return Resolutions[len(Resolutions)-1]
}
