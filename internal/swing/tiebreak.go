package swing

import (
	"fmt"
	"strings"
)

// TieBreak decides which bar of a flat top (or bottom) is reported.
type TieBreak int

const (
	// Leftmost reports the earliest bar equal to the window extreme.
	Leftmost TieBreak = iota
	// Rightmost reports the latest bar equal to the window extreme.
	Rightmost
	// All reports every bar equal to the window extreme.
	All
	// Strict reports a bar only if it is the unique extreme of its window.
	Strict
)

func (t TieBreak) String() string {
	switch t {
	case Leftmost:
		return "leftmost"
	case Rightmost:
		return "rightmost"
	case All:
		return "all"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("TieBreak(%d)", int(t))
	}
}

// ParseTieBreak parses a policy name. The empty string means Leftmost.
func ParseTieBreak(s string) (TieBreak, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "leftmost", "left":
		return Leftmost, nil
	case "rightmost", "right":
		return Rightmost, nil
	case "all":
		return All, nil
	case "strict", "none":
		return Strict, nil
	default:
		return Leftmost, fmt.Errorf("unknown tie-break policy %q", s)
	}
}
