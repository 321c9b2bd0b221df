package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart mutations, persistence outcomes and open sessions.
type CartMetrics struct {
	mutations       *prometheus.CounterVec
	persistFailures prometheus.Counter
	restoreFailures prometheus.Counter
	openSessions    prometheus.Gauge
}

// NewCartMetrics registers the cart metrics on the provided registerer. A nil
// registerer yields a no-op recorder.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations that changed state, by operation.",
	}, []string{"op"})
	persistFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_persist_failures_total",
		Help: "Cart snapshots that could not be written to storage.",
	})
	restoreFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_restore_failures_total",
		Help: "Persisted carts that could not be read back and were reset to empty.",
	})
	openSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cart_open_sessions",
		Help: "Cart sessions currently held in memory.",
	})
	reg.MustRegister(mutations, persistFailures, restoreFailures, openSessions)
	return &CartMetrics{
		mutations:       mutations,
		persistFailures: persistFailures,
		restoreFailures: restoreFailures,
		openSessions:    openSessions,
	}
}

// IncMutation counts a state-changing cart operation.
func (c *CartMetrics) IncMutation(op string) {
	if c == nil || c.mutations == nil {
		return
	}
	c.mutations.WithLabelValues(normalizeLabel(op)).Inc()
}

func (c *CartMetrics) IncPersistFailure() {
	if c == nil || c.persistFailures == nil {
		return
	}
	c.persistFailures.Inc()
}

func (c *CartMetrics) IncRestoreFailure() {
	if c == nil || c.restoreFailures == nil {
		return
	}
	c.restoreFailures.Inc()
}

// SetOpenSessions reports the number of sessions the provider holds.
func (c *CartMetrics) SetOpenSessions(n int) {
	if c == nil || c.openSessions == nil {
		return
	}
	c.openSessions.Set(float64(n))
}

func normalizeLabel(op string) string {
	if op == "" {
		return "unknown"
	}
	return op
}
