package rangeindex

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bruteForce(values []float64, lo, hi int, op Op) float64 {
	out := values[lo]
	for i := lo + 1; i <= hi; i++ {
		out = op.combine(out, values[i])
	}
	return out
}

func randomValues(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		// Small value range so ties are frequent.
		out[i] = float64(rng.Intn(20))
	}
	return out
}

func TestQuery_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, op := range []Op{Max, Min} {
		for trial := 0; trial < 30; trial++ {
			values := randomValues(rng, rng.Intn(70)+1)
			tbl := Build(values, op)
			require.Equal(t, len(values), tbl.Len())
			for lo := 0; lo < len(values); lo++ {
				for hi := lo; hi < len(values); hi++ {
					require.Equal(t, bruteForce(values, lo, hi, op), tbl.Query(lo, hi),
						"op=%s lo=%d hi=%d", op, lo, hi)
				}
			}
		}
	}
}

func TestAppend_EquivalentToBuild(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, op := range []Op{Max, Min} {
		values := randomValues(rng, 131)
		inc := Build(nil, op)
		for i, v := range values {
			inc.Append(v)
			full := Build(values[:i+1], op)
			require.Equal(t, full.Levels(), inc.Levels(), "levels after %d appends", i+1)
			for lo := 0; lo <= i; lo++ {
				for hi := lo; hi <= i; hi++ {
					require.Equal(t, full.Query(lo, hi), inc.Query(lo, hi))
				}
			}
		}
	}
}

func TestAppend_Batch(t *testing.T) {
	values := []float64{4, 1, 7, 3, 3, 9, 2, 8, 5, 6}
	tbl := NewMax(values[:3])
	tbl.Append(values[3:]...)
	assert.Equal(t, NewMax(values).levels, tbl.levels)
}

func TestLevels(t *testing.T) {
	tests := []struct{ n, want int }{{0, 0}, {1, 1}, {2, 2}, {3, 2}, {4, 3}, {7, 3}, {8, 4}, {1000, 10}}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewMin(make([]float64, tt.n)).Levels(), "n=%d", tt.n)
	}
}

func TestTruncate(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	values := randomValues(rng, 40)
	tbl := NewMax(values)
	for _, n := range []int{33, 32, 17, 16, 1, 0} {
		tbl.Truncate(n)
		assert.Equal(t, NewMax(values[:n]).levels, tbl.levels, "n=%d", n)
	}
	tbl.Append(values...)
	assert.Equal(t, NewMax(values).levels, tbl.levels)
}

func TestQuery_Example(t *testing.T) {
	highs := []float64{5, 6, 9, 7, 6, 8, 10, 8, 6}
	tbl := NewMax(highs)
	assert.Equal(t, 9.0, tbl.Query(0, 4))
	assert.Equal(t, 10.0, tbl.Query(4, 8))
	assert.Equal(t, 8.0, tbl.Query(5, 5))

	lows := NewMin([]float64{3, math.Inf(1), -2, 0})
	assert.Equal(t, -2.0, lows.Query(0, 3))
	assert.Equal(t, 3.0, lows.Query(0, 1))
}

func TestQuery_PanicsOnInvalidRange(t *testing.T) {
	tbl := NewMax([]float64{1, 2, 3})
	assert.Panics(t, func() { tbl.Query(-1, 1) })
	assert.Panics(t, func() { tbl.Query(2, 1) })
	assert.Panics(t, func() { tbl.Query(0, 3) })
}
