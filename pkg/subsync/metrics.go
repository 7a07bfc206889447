package subsync

// Metrics defines the interface for tracking reconciliation operations.
// All methods are optional - the Reconciler gracefully handles a nil value
// by substituting NoopMetrics.
type Metrics interface {
	// RecordReconcile records one reconciliation attempt.
	// status: "success", "partial", "skipped" or "error"
	RecordReconcile(status string)

	// RecordUpsert records one projection write.
	// table: "subscriptions" or "provider_subscriptions"
	// status: "success" or "error"
	RecordUpsert(table, status string)

	// RecordMappingMiss records a reconciliation skipped because no
	// customer mapping exists yet.
	RecordMappingMiss()

	// RecordPlanFallback records a price id that resolved to the fallback plan.
	RecordPlanFallback()

	// RecordStaleEvent records an event dropped by the ordering guard.
	RecordStaleEvent()
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordReconcile(_ string) {}
func (n *NoopMetrics) RecordUpsert(_, _ string) {}
func (n *NoopMetrics) RecordMappingMiss()       {}
func (n *NoopMetrics) RecordPlanFallback()      {}
func (n *NoopMetrics) RecordStaleEvent()        {}
