package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"SwingSentinel/internal/model"
)

func TestObserveState(t *testing.T) {
	m := New()
	m.ObserveState(model.SwingState{
		Version: 12,
		Swings: []model.SwingPoint{
			{Kind: model.SwingHigh}, {Kind: model.SwingLow}, {Kind: model.SwingHigh},
		},
		Buffered: 3,
		Stale:    true,
	})

	assert.Equal(t, 12.0, testutil.ToFloat64(m.StateVersion))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Swings.WithLabelValues("high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Swings.WithLabelValues("low")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BarsBuffered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Stale))

	m.DuplicatesRemoved.Add(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.DuplicatesRemoved))
}
