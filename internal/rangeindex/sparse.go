// Package rangeindex answers range-max and range-min queries in O(1) after an
// O(N log N) build.
package rangeindex

import (
	"fmt"
	"math/bits"
)

// Op selects the aggregate a table answers.
type Op int

const (
	Max Op = iota
	Min
)

func (o Op) String() string {
	if o == Min {
		return "min"
	}
	return "max"
}

func (o Op) combine(a, b float64) float64 {
	if o == Min {
		if b < a {
			return b
		}
		return a
	}
	if b > a {
		return b
	}
	return a
}

// SparseTable holds level[k][i] = op(values[i .. i+2^k-1]) for every k with
// 2^k <= N. Only idempotent ops (max, min) are supported, since queries
// combine two overlapping blocks.
type SparseTable struct {
	op     Op
	levels [][]float64
}

// Build constructs a table over values. values is copied.
func Build(values []float64, op Op) *SparseTable {
	t := &SparseTable{op: op}
	if len(values) == 0 {
		return t
	}
	base := make([]float64, len(values))
	copy(base, values)
	t.levels = append(t.levels, base)
	n := len(values)
	for k := 1; 1<<k <= n; k++ {
		prev := t.levels[k-1]
		half := 1 << (k - 1)
		row := make([]float64, n-(1<<k)+1)
		for i := range row {
			row[i] = op.combine(prev[i], prev[i+half])
		}
		t.levels = append(t.levels, row)
	}
	return t
}

// NewMax builds a range-maximum table.
func NewMax(values []float64) *SparseTable { return Build(values, Max) }

// NewMin builds a range-minimum table.
func NewMin(values []float64) *SparseTable { return Build(values, Min) }

// Op returns the aggregate the table answers.
func (t *SparseTable) Op() Op { return t.op }

// Len returns the number of indexed values.
func (t *SparseTable) Len() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels[0])
}

// Levels returns the number of levels, floor(log2(N))+1 for N > 0.
func (t *SparseTable) Levels() int { return len(t.levels) }

// Query returns the aggregate over [lo, hi] inclusive. It panics on an
// invalid range, like slice indexing.
func (t *SparseTable) Query(lo, hi int) float64 {
	if lo < 0 || hi >= t.Len() || lo > hi {
		panic(fmt.Sprintf("rangeindex: query [%d, %d] out of range for length %d", lo, hi, t.Len()))
	}
	k := bits.Len(uint(hi-lo+1)) - 1
	row := t.levels[k]
	return t.op.combine(row[lo], row[hi-(1<<k)+1])
}

// Append extends the table with new trailing values. For each value only the
// entries whose block ends at the new element are computed, one per level,
// and a new level is added when N reaches the next power of two.
func (t *SparseTable) Append(values ...float64) {
	for _, v := range values {
		if len(t.levels) == 0 {
			t.levels = append(t.levels, nil)
		}
		t.levels[0] = append(t.levels[0], v)
		n := len(t.levels[0])
		for k := 1; 1<<k <= n; k++ {
			if k == len(t.levels) {
				t.levels = append(t.levels, make([]float64, 0, 1))
			}
			i := n - (1 << k)
			prev := t.levels[k-1]
			t.levels[k] = append(t.levels[k], t.op.combine(prev[i], prev[i+(1<<(k-1))]))
		}
	}
}

// Truncate drops trailing values so that Len() == n. Truncating to n and
// appending the same values again restores the previous table.
func (t *SparseTable) Truncate(n int) {
	if n < 0 || n > t.Len() {
		panic(fmt.Sprintf("rangeindex: truncate to %d out of range for length %d", n, t.Len()))
	}
	k := 0
	for ; k < len(t.levels) && 1<<k <= n; k++ {
		t.levels[k] = t.levels[k][:n-(1<<k)+1]
	}
	t.levels = t.levels[:k]
	if n == 0 {
		t.levels = nil
	}
}
