// Package metrics exposes Prometheus counters for ingestion and swing state.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"SwingSentinel/internal/model"
)

const namespace = "swing_sentinel"

// Metrics is the set of collectors, registered on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	BarsAppended      prometheus.Counter
	BarsBuffered      prometheus.Gauge
	DuplicatesRemoved prometheus.Counter
	OrderingErrors    prometheus.Counter
	InvalidBars       prometheus.Counter
	LoadErrors        prometheus.Counter
	WriterFaults      prometheus.Counter
	StateVersion      prometheus.Gauge
	Swings            *prometheus.GaugeVec
	Stale             prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		BarsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bars_appended_total",
			Help:      "Bars applied to the swing state",
		}),
		BarsBuffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bars_buffered",
			Help:      "Bars waiting while the state is paused",
		}),
		DuplicatesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_removed_total",
			Help:      "Bars dropped by keep-last timestamp dedup",
		}),
		OrderingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ordering_errors_total",
			Help:      "Bars or series rejected for non-increasing timestamps",
		}),
		InvalidBars: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_bars_total",
			Help:      "Bars or series rejected for NaN or infinite values",
		}),
		LoadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_errors_total",
			Help:      "Failed fetches from the data source",
		}),
		WriterFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writer_faults_total",
			Help:      "Unexpected failures while applying a bar",
		}),
		StateVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state_version",
			Help:      "Current swing state version",
		}),
		Swings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "swings",
			Help:      "Swings currently retained, by kind",
		}, []string{"kind"}),
		Stale: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state_stale",
			Help:      "1 while the last bar application faulted",
		}),
	}
	m.Registry.MustRegister(
		m.BarsAppended, m.BarsBuffered, m.DuplicatesRemoved, m.OrderingErrors,
		m.InvalidBars, m.LoadErrors, m.WriterFaults, m.StateVersion, m.Swings, m.Stale,
	)
	return m
}

// ObserveState updates the state gauges from a snapshot.
func (m *Metrics) ObserveState(st model.SwingState) {
	m.StateVersion.Set(float64(st.Version))
	m.BarsBuffered.Set(float64(st.Buffered))
	var highs, lows int
	for _, s := range st.Swings {
		if s.Kind == model.SwingHigh {
			highs++
		} else {
			lows++
		}
	}
	m.Swings.WithLabelValues(model.SwingHigh.String()).Set(float64(highs))
	m.Swings.WithLabelValues(model.SwingLow.String()).Set(float64(lows))
	if st.Stale {
		m.Stale.Set(1)
	} else {
		m.Stale.Set(0)
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
