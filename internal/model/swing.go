package model

import "fmt"

// SwingKind tells whether a swing is a local high or a local low.
type SwingKind int

const (
	SwingHigh SwingKind = iota
	SwingLow
)

func (k SwingKind) String() string {
	switch k {
	case SwingHigh:
		return "high"
	case SwingLow:
		return "low"
	default:
		return fmt.Sprintf("SwingKind(%d)", int(k))
	}
}

func (k SwingKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *SwingKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "high":
		*k = SwingHigh
	case "low":
		*k = SwingLow
	default:
		return fmt.Errorf("unknown swing kind %q", string(b))
	}
	return nil
}

// SwingPoint is a bar whose high (or low) is the extreme of the symmetric
// window around it.
type SwingPoint struct {
	Index     int       `json:"index"`
	Timestamp int64     `json:"timestamp"`
	Price     float64   `json:"price"`
	Kind      SwingKind `json:"kind"`
	Window    int       `json:"window"`
}

// CompareSwings orders swings by index, then window, then kind.
func CompareSwings(a, b SwingPoint) int {
	switch {
	case a.Index != b.Index:
		return cmpInt(a.Index, b.Index)
	case a.Window != b.Window:
		return cmpInt(a.Window, b.Window)
	default:
		return cmpInt(int(a.Kind), int(b.Kind))
	}
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// SwingState is a frozen view of the live swing state.
type SwingState struct {
	Swings        []SwingPoint `json:"swings"`
	Pending       *SwingPoint  `json:"pending,omitempty"`
	Version       uint64       `json:"version"`
	BarCount      int          `json:"bar_count"`
	LastTimestamp int64        `json:"last_timestamp"`
	Paused        bool         `json:"paused"`
	Buffered      int          `json:"buffered"`
	Fault         string       `json:"fault,omitempty"`
	Stale         bool         `json:"stale"`
}
