package model

import "math"

// Bar represents a single OHLCV record. Timestamp is epoch seconds.
type Bar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// NonFinite returns the name and value of the first OHLCV field that is NaN
// or infinite.
func (b Bar) NonFinite() (string, float64, bool) {
	for _, f := range [...]struct {
		name string
		v    float64
	}{
		{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}, {"volume", b.Volume},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return f.name, f.v, true
		}
	}
	return "", 0, false
}

// BarSeries is an ordered sequence of bars. Once normalized, timestamps are
// strictly increasing.
type BarSeries []Bar

// Highs returns the high of every bar in order.
func (s BarSeries) Highs() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.High
	}
	return out
}

// Lows returns the low of every bar in order.
func (s BarSeries) Lows() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Low
	}
	return out
}

// Last returns the final bar and false if the series is empty.
func (s BarSeries) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// CheckFinite returns an *InvalidPriceError for the first bar holding a
// non-finite value.
func (s BarSeries) CheckFinite() error {
	for i, b := range s {
		if field, v, bad := b.NonFinite(); bad {
			return &InvalidPriceError{Index: i, Timestamp: b.Timestamp, Field: field, Value: v}
		}
	}
	return nil
}

// Clone returns an independent copy.
func (s BarSeries) Clone() BarSeries {
	if s == nil {
		return nil
	}
	out := make(BarSeries, len(s))
	copy(out, s)
	return out
}
