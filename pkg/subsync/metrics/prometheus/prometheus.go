package prommetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements subsync.Metrics using Prometheus.
type Metrics struct {
	reconcilesTotal    *prometheus.CounterVec
	upsertsTotal       *prometheus.CounterVec
	mappingMissesTotal prometheus.Counter
	planFallbacksTotal prometheus.Counter
	staleEventsTotal   prometheus.Counter
}

// NewMetrics creates a new Prometheus metrics implementation for the
// Reconciler.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		reconcilesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciles_total",
			Help:      "Total number of subscription reconciliation attempts.",
		}, []string{"status"}),

		upsertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upserts_total",
			Help:      "Total number of projection upserts per table.",
		}, []string{"table", "status"}),

		mappingMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mapping_misses_total",
			Help:      "Total number of reconciliations skipped for missing customer mappings.",
		}),

		planFallbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_fallbacks_total",
			Help:      "Total number of price ids resolved to the fallback plan.",
		}),

		staleEventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_events_total",
			Help:      "Total number of events dropped by the ordering guard.",
		}),
	}
}

func (m *Metrics) RecordReconcile(status string) {
	m.reconcilesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordUpsert(table, status string) {
	m.upsertsTotal.WithLabelValues(table, status).Inc()
}

func (m *Metrics) RecordMappingMiss() {
	m.mappingMissesTotal.Inc()
}

func (m *Metrics) RecordPlanFallback() {
	m.planFallbacksTotal.Inc()
}

func (m *Metrics) RecordStaleEvent() {
	m.staleEventsTotal.Inc()
}
