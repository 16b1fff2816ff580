// Package state owns the live bar series and its swing points. One writer
// mutates it through AppendBar; any number of readers take Snapshots.
package state

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"sync/atomic"

	"SwingSentinel/internal/model"
	"SwingSentinel/internal/normalizer"
	"SwingSentinel/internal/rangeindex"
	"SwingSentinel/internal/swing"
)

// Options configures a Manager.
type Options struct {
	Windows  []int
	Cap      int
	TieBreak swing.TieBreak
}

type detectFunc func(series model.BarSeries, highs, lows *rangeindex.SparseTable, w, from, to int) []model.SwingPoint

// Manager holds the canonical SwingState. All mutation happens under mu;
// helpers with a Locked suffix expect mu to be held and never take it.
type Manager struct {
	mu sync.Mutex

	windows  []int
	cap      int
	detector *swing.Detector
	detect   detectFunc

	bars   model.BarSeries
	highs  *rangeindex.SparseTable
	lows   *rangeindex.SparseTable
	next   map[int]int // next unevaluated center per window
	swings []model.SwingPoint

	pending *model.SwingPoint
	version atomic.Uint64

	paused bool
	buffer []model.Bar

	fault error
}

// NewManager validates seed and computes its swings. The seed must already
// be normalized; it is never re-normalized here.
func NewManager(seed model.BarSeries, opts Options) (*Manager, error) {
	if err := normalizer.Validate(seed); err != nil {
		return nil, fmt.Errorf("seed series: %w", err)
	}
	windows, err := swing.NormalizeWindows(opts.Windows)
	if err != nil {
		return nil, err
	}

	d := swing.NewDetector(opts.TieBreak)
	m := &Manager{
		windows:  windows,
		cap:      opts.Cap,
		detector: d,
		detect:   d.DetectRange,
		bars:     seed.Clone(),
		highs:    rangeindex.NewMax(seed.Highs()),
		lows:     rangeindex.NewMin(seed.Lows()),
		next:     make(map[int]int, len(windows)),
	}
	if m.bars == nil {
		m.bars = model.BarSeries{}
	}
	for _, w := range windows {
		m.next[w] = w
	}
	added := m.evaluateLocked()
	m.swings = swing.Cap(added, m.cap)
	m.pending = m.pendingLocked()
	m.version.Store(1)

	log.Printf("[INFO] swing state seeded: %d bars, %d swings, windows %v", len(m.bars), len(m.swings), m.windows)
	return m, nil
}

// AppendBar applies one bar, or buffers it while paused. A bar that fails
// unexpectedly is dropped, the last good state stays readable and the
// returned error wraps model.ErrWriterFault.
func (m *Manager) AppendBar(b model.Bar) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paused {
		m.buffer = append(m.buffer, b)
		return nil
	}
	return m.applyLocked(b)
}

// Pause stops AppendBar from applying bars; they are buffered instead.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

// Resume applies buffered bars in arrival order and lifts the pause. Readers
// see either none or all of them. Bars that do not advance the series are
// dropped and reported together. ctx is checked between bars; on
// cancellation, or on a writer fault, the remaining bars stay buffered and
// the manager stays paused.
func (m *Manager) Resume(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for len(m.buffer) > 0 {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		b := m.buffer[0]
		m.buffer = m.buffer[1:]
		if err := m.applyLocked(b); err != nil {
			errs = append(errs, err)
			if errors.Is(err, model.ErrWriterFault) {
				return errors.Join(errs...)
			}
		}
	}
	m.buffer = nil
	m.paused = false
	return errors.Join(errs...)
}

// Paused reports whether writes are currently buffered.
func (m *Manager) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Snapshot returns a deep copy of the current state.
func (m *Manager) Snapshot() model.SwingState {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := model.SwingState{
		Swings:   slices.Clone(m.swings),
		Version:  m.version.Load(),
		BarCount: len(m.bars),
		Paused:   m.paused,
		Buffered: len(m.buffer),
	}
	if st.Swings == nil {
		st.Swings = []model.SwingPoint{}
	}
	if m.pending != nil {
		p := *m.pending
		st.Pending = &p
	}
	if last, ok := m.bars.Last(); ok {
		st.LastTimestamp = last.Timestamp
	}
	if m.fault != nil {
		st.Fault = m.fault.Error()
		st.Stale = true
	}
	return st
}

// Version returns the state version without taking the lock.
func (m *Manager) Version() uint64 {
	return m.version.Load()
}

// Bars returns a copy of the series.
func (m *Manager) Bars() model.BarSeries {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bars.Clone()
}

// Windows returns the configured windows, sorted.
func (m *Manager) Windows() []int {
	return slices.Clone(m.windows)
}

// applyLocked appends b and confirms newly evaluable swings. On an unexpected
// panic the series and tables are rolled back to the last good length.
func (m *Manager) applyLocked(b model.Bar) (err error) {
	if last, ok := m.bars.Last(); ok && b.Timestamp <= last.Timestamp {
		return &model.OrderingError{Index: len(m.bars), Prev: last.Timestamp, Curr: b.Timestamp}
	}
	if field, v, bad := b.NonFinite(); bad {
		return &model.InvalidPriceError{Index: len(m.bars), Timestamp: b.Timestamp, Field: field, Value: v}
	}

	n := len(m.bars)
	next := make(map[int]int, len(m.next))
	for w, c := range m.next {
		next[w] = c
	}
	defer func() {
		if r := recover(); r != nil {
			m.bars = m.bars[:n]
			m.highs.Truncate(n)
			m.lows.Truncate(n)
			m.next = next
			m.fault = fmt.Errorf("%w: applying bar %d: %v", model.ErrWriterFault, b.Timestamp, r)
			// Bumped so dirty-checking readers pick up the stale flag.
			m.version.Add(1)
			log.Printf("[ERROR] %v", m.fault)
			err = m.fault
		}
	}()

	m.bars = append(m.bars, b)
	m.highs.Append(b.High)
	m.lows.Append(b.Low)

	added := m.evaluateLocked()
	pending := m.pendingLocked()

	m.swings = swing.Cap(mergeSwings(m.swings, added), m.cap)
	m.pending = pending
	m.fault = nil
	m.version.Add(1)
	return nil
}

// evaluateLocked runs detection over the centers that became confirmable
// since the last call, for every window, and advances m.next.
func (m *Manager) evaluateLocked() []model.SwingPoint {
	n := len(m.bars)
	var added []model.SwingPoint
	for _, w := range m.windows {
		if swing.CheckWindow(n, w) != nil {
			continue
		}
		from, to := m.next[w], n-1-w
		if from > to {
			continue
		}
		added = append(added, m.detect(m.bars, m.highs, m.lows, w, from, to)...)
		m.next[w] = to + 1
	}
	slices.SortFunc(added, model.CompareSwings)
	return added
}

// pendingLocked returns the provisional swing of the smallest window.
func (m *Manager) pendingLocked() *model.SwingPoint {
	w := m.windows[0]
	if len(m.bars) < w+1 {
		return nil
	}
	return m.detector.Pending(m.bars, m.highs, m.lows, w)
}

// mergeSwings merges two canonically ordered slices into a new slice.
func mergeSwings(a, b []model.SwingPoint) []model.SwingPoint {
	if len(b) == 0 {
		return a
	}
	out := make([]model.SwingPoint, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if model.CompareSwings(a[i], b[j]) <= 0 {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
