package recipecache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultError   = "error"
	resultStored  = "stored"
	resultSkipped = "skipped"
	resultOK      = "ok"
)

// Metrics holds the cache collectors.
type Metrics struct {
	lookups       *prometheus.CounterVec
	writes        *prometheus.CounterVec
	storeErrors   *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// With a nil reg the collectors are created but not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recipe_cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		writes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recipe_cache",
			Name:      "writes_total",
			Help:      "Cache population attempts by result (stored, skipped, error).",
		}, []string{"result"}),
		storeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recipe_cache",
			Name:      "store_errors_total",
			Help:      "Failed store operations by operation.",
		}, []string{"op"}),
		invalidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recipe_cache",
			Name:      "invalidations_total",
			Help:      "Invalidated cache targets by mutation kind and result.",
		}, []string{"kind", "result"}),
	}
}

func (m *Metrics) lookup(result string) {
	m.lookups.WithLabelValues(result).Inc()
}

func (m *Metrics) write(result string) {
	m.writes.WithLabelValues(result).Inc()
}

func (m *Metrics) storeError(op string) {
	m.storeErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) invalidation(kind Kind, result string) {
	m.invalidations.WithLabelValues(string(kind), result).Inc()
}
