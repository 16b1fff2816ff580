package state

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SwingSentinel/internal/model"
	"SwingSentinel/internal/rangeindex"
	"SwingSentinel/internal/swing"
)

func randomBars(seed int64, n int) model.BarSeries {
	rng := rand.New(rand.NewSource(seed))
	out := make(model.BarSeries, n)
	px := 100.0
	for i := range out {
		px += float64(rng.Intn(7) - 3)
		spread := float64(rng.Intn(3))
		out[i] = model.Bar{Timestamp: 1_700_000_000 + int64(i)*60, Open: px, High: px + spread, Low: px - spread, Close: px, Volume: 5}
	}
	return out
}

// expected runs a full detection over the windows the series can satisfy.
func expected(t *testing.T, series model.BarSeries, windows []int, tie swing.TieBreak, limit int) []model.SwingPoint {
	t.Helper()
	var usable []int
	for _, w := range windows {
		if swing.CheckWindow(len(series), w) == nil {
			usable = append(usable, w)
		}
	}
	if len(usable) == 0 {
		return []model.SwingPoint{}
	}
	out, err := swing.DetectNaive(series, usable, tie)
	require.NoError(t, err)
	if out == nil {
		out = []model.SwingPoint{}
	}
	return swing.Cap(out, limit)
}

func TestNewManager_RejectsUnnormalizedSeed(t *testing.T) {
	seed := model.BarSeries{{Timestamp: 10}, {Timestamp: 5}}
	_, err := NewManager(seed, Options{Windows: []int{2}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrOrdering))

	seed = model.BarSeries{{Timestamp: 10}, {Timestamp: 10}}
	_, err = NewManager(seed, Options{Windows: []int{2}})
	assert.ErrorIs(t, err, model.ErrOrdering)
}

func TestNewManager_RejectsBadWindows(t *testing.T) {
	_, err := NewManager(nil, Options{Windows: []int{0}})
	assert.ErrorIs(t, err, model.ErrInvalidWindow)
}

func TestAppendBar_MatchesFullDetection(t *testing.T) {
	bars := randomBars(1, 260)
	windows := []int{2, 5, 9}
	for _, tie := range []swing.TieBreak{swing.Leftmost, swing.Rightmost, swing.All, swing.Strict} {
		t.Run(tie.String(), func(t *testing.T) {
			m, err := NewManager(bars[:4], Options{Windows: windows, TieBreak: tie})
			require.NoError(t, err)
			for i := 4; i < len(bars); i++ {
				require.NoError(t, m.AppendBar(bars[i]))
				if i%37 == 0 {
					assert.Equal(t, expected(t, bars[:i+1], windows, tie, 0), m.Snapshot().Swings)
				}
			}
			st := m.Snapshot()
			assert.Equal(t, expected(t, bars, windows, tie, 0), st.Swings)
			assert.Equal(t, len(bars), st.BarCount)
			assert.Equal(t, bars[len(bars)-1].Timestamp, st.LastTimestamp)
			assert.Equal(t, uint64(1+len(bars)-4), st.Version)
		})
	}
}

func TestAppendBar_Cap(t *testing.T) {
	bars := randomBars(2, 300)
	windows := []int{1, 4}
	m, err := NewManager(bars[:50], Options{Windows: windows, Cap: 15})
	require.NoError(t, err)
	for _, b := range bars[50:] {
		require.NoError(t, m.AppendBar(b))
	}
	st := m.Snapshot()
	assert.Len(t, st.Swings, 15)
	assert.Equal(t, expected(t, bars, windows, swing.Leftmost, 15), st.Swings)
}

func TestAppendBar_RejectsNonAdvancingTimestamp(t *testing.T) {
	bars := randomBars(3, 20)
	m, err := NewManager(bars, Options{Windows: []int{2}})
	require.NoError(t, err)
	before := m.Snapshot()

	for _, ts := range []int64{bars[19].Timestamp, bars[3].Timestamp} {
		err = m.AppendBar(model.Bar{Timestamp: ts, High: 1, Low: 1})
		var oe *model.OrderingError
		require.ErrorAs(t, err, &oe)
		assert.Equal(t, 20, oe.Index)
	}
	assert.Equal(t, before, m.Snapshot())
}

func TestAppendBar_RejectsNonFinite(t *testing.T) {
	bars := randomBars(4, 20)
	m, err := NewManager(bars, Options{Windows: []int{2}})
	require.NoError(t, err)
	before := m.Snapshot()

	next := bars[19].Timestamp + 60
	for _, b := range []model.Bar{
		{Timestamp: next, Open: 1, High: math.NaN(), Low: 1, Close: 1},
		{Timestamp: next, Open: 1, High: 1, Low: math.Inf(-1), Close: 1},
	} {
		err = m.AppendBar(b)
		var pe *model.InvalidPriceError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, 20, pe.Index)
		assert.False(t, errors.Is(err, model.ErrWriterFault))
	}
	assert.Equal(t, before, m.Snapshot())

	require.NoError(t, m.AppendBar(model.Bar{Timestamp: next, Open: 1, High: 1, Low: 1, Close: 1}))
	assert.Equal(t, 21, m.Snapshot().BarCount)
}

func TestNewManager_RejectsNonFiniteSeed(t *testing.T) {
	seed := randomBars(5, 10)
	seed[4].Close = math.Inf(1)
	_, err := NewManager(seed, Options{Windows: []int{2}})
	assert.ErrorIs(t, err, model.ErrInvalidPrice)
}

func TestPending(t *testing.T) {
	highs := []float64{5, 6, 9, 7, 6, 8, 10, 8}
	seed := make(model.BarSeries, len(highs))
	for i, h := range highs {
		seed[i] = model.Bar{Timestamp: int64(i + 1), High: h, Low: h - 100}
	}
	m, err := NewManager(seed, Options{Windows: []int{2}})
	require.NoError(t, err)

	st := m.Snapshot()
	require.NotNil(t, st.Pending)
	assert.Equal(t, 6, st.Pending.Index)
	assert.Equal(t, []int{2}, highIndices(st.Swings))

	require.NoError(t, m.AppendBar(model.Bar{Timestamp: 9, High: 6, Low: -94}))
	st = m.Snapshot()
	assert.Equal(t, []int{2, 6}, highIndices(st.Swings))
}

func highIndices(swings []model.SwingPoint) []int {
	var out []int
	for _, s := range swings {
		if s.Kind == model.SwingHigh {
			out = append(out, s.Index)
		}
	}
	return out
}

func TestPauseResume(t *testing.T) {
	bars := randomBars(4, 120)
	windows := []int{3}
	m, err := NewManager(bars[:60], Options{Windows: windows})
	require.NoError(t, err)

	m.Pause()
	assert.True(t, m.Paused())
	v := m.Version()
	for _, b := range bars[60:] {
		require.NoError(t, m.AppendBar(b))
	}
	st := m.Snapshot()
	assert.Equal(t, v, st.Version)
	assert.Equal(t, 60, st.BarCount)
	assert.Equal(t, 60, st.Buffered)
	assert.True(t, st.Paused)

	require.NoError(t, m.Resume(context.Background()))
	st = m.Snapshot()
	assert.False(t, st.Paused)
	assert.Zero(t, st.Buffered)
	assert.Equal(t, 120, st.BarCount)
	assert.Equal(t, expected(t, bars, windows, swing.Leftmost, 0), st.Swings)
}

func TestResume_RejectsOutOfOrderBufferedBars(t *testing.T) {
	bars := randomBars(5, 40)
	m, err := NewManager(bars[:20], Options{Windows: []int{2}})
	require.NoError(t, err)

	m.Pause()
	require.NoError(t, m.AppendBar(bars[20]))
	require.NoError(t, m.AppendBar(bars[5])) // stale
	require.NoError(t, m.AppendBar(bars[21]))

	err = m.Resume(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrOrdering)
	assert.Equal(t, 22, m.Snapshot().BarCount)
	assert.False(t, m.Paused())
}

func TestResume_Cancelled(t *testing.T) {
	bars := randomBars(6, 30)
	m, err := NewManager(bars[:10], Options{Windows: []int{2}})
	require.NoError(t, err)

	m.Pause()
	for _, b := range bars[10:] {
		require.NoError(t, m.AppendBar(b))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = m.Resume(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	st := m.Snapshot()
	assert.True(t, st.Paused)
	assert.Equal(t, 20, st.Buffered)
	assert.Equal(t, 10, st.BarCount)
}

func TestWriterFault_IsIsolated(t *testing.T) {
	bars := randomBars(7, 80)
	windows := []int{2, 4}
	m, err := NewManager(bars[:40], Options{Windows: windows})
	require.NoError(t, err)
	good := m.Snapshot()

	healthy := m.detect
	m.detect = func(model.BarSeries, *rangeindex.SparseTable, *rangeindex.SparseTable, int, int, int) []model.SwingPoint {
		panic("boom")
	}
	err = m.AppendBar(bars[40])
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrWriterFault)

	st := m.Snapshot()
	assert.True(t, st.Stale)
	assert.Contains(t, st.Fault, "boom")
	assert.Equal(t, good.Swings, st.Swings)
	assert.Equal(t, good.BarCount, st.BarCount)
	assert.Greater(t, st.Version, good.Version)

	m.detect = healthy
	for _, b := range bars[40:] {
		require.NoError(t, m.AppendBar(b))
	}
	st = m.Snapshot()
	assert.False(t, st.Stale)
	assert.Empty(t, st.Fault)
	assert.Equal(t, expected(t, bars, windows, swing.Leftmost, 0), st.Swings)
}

func TestResume_StopsOnWriterFault(t *testing.T) {
	bars := randomBars(8, 50)
	m, err := NewManager(bars[:30], Options{Windows: []int{2}})
	require.NoError(t, err)

	m.Pause()
	for _, b := range bars[30:] {
		require.NoError(t, m.AppendBar(b))
	}
	healthy := m.detect
	m.detect = func(model.BarSeries, *rangeindex.SparseTable, *rangeindex.SparseTable, int, int, int) []model.SwingPoint {
		panic("bad state")
	}
	err = m.Resume(context.Background())
	assert.ErrorIs(t, err, model.ErrWriterFault)
	st := m.Snapshot()
	assert.True(t, st.Paused)
	assert.Equal(t, 19, st.Buffered)
	assert.Equal(t, 30, st.BarCount)

	m.detect = healthy
	require.NoError(t, m.Resume(context.Background()))
	assert.Equal(t, 49, m.Snapshot().BarCount)
}

func TestSnapshot_IsFrozen(t *testing.T) {
	bars := randomBars(9, 60)
	m, err := NewManager(bars[:40], Options{Windows: []int{2}})
	require.NoError(t, err)

	st := m.Snapshot()
	require.NotEmpty(t, st.Swings)
	first := st.Swings[0]
	st.Swings[0].Price = -1
	assert.Equal(t, first, m.Snapshot().Swings[0])

	b := m.Bars()
	b[0].High = -1
	assert.Equal(t, bars[0], m.Bars()[0])
}

func TestSnapshot_ConsistentUnderConcurrentWrites(t *testing.T) {
	bars := randomBars(10, 400)
	windows := []int{2, 6}
	const seedLen = 10

	want := make(map[int]int, len(bars))
	for n := seedLen; n <= len(bars); n++ {
		want[n] = len(expected(t, bars[:n], windows, swing.Leftmost, 0))
	}

	m, err := NewManager(bars[:seedLen], Options{Windows: windows})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan string, 8)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				st := m.Snapshot()
				if st.BarCount != seedLen+int(st.Version-1) {
					errs <- "version does not match bar count"
					return
				}
				if len(st.Swings) != want[st.BarCount] {
					errs <- "swings do not match bar count"
					return
				}
			}
		}()
	}

	in := make(chan model.Bar)
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, in) }()
	for _, b := range bars[seedLen:] {
		in <- b
	}
	close(in)
	require.NoError(t, <-done)
	cancel()
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
	assert.Equal(t, len(bars), m.Snapshot().BarCount)
}

func TestRun_StopsOnCancel(t *testing.T) {
	m, err := NewManager(randomBars(11, 10), Options{Windows: []int{2}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, make(chan model.Bar)) }()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("writer did not stop")
	}
}

func TestTracker(t *testing.T) {
	m, err := NewManager(randomBars(12, 10), Options{Windows: []int{2}})
	require.NoError(t, err)

	var tr Tracker
	assert.True(t, tr.Changed(m.Version()))
	assert.False(t, tr.Changed(m.Version()))
	require.NoError(t, m.AppendBar(model.Bar{Timestamp: 1_800_000_000, High: 1, Low: 1}))
	assert.True(t, tr.Changed(m.Version()))
}
