// Package subsync keeps locally persisted subscription state in sync with a
// payment provider. The Reconciler idempotently projects a provider
// subscription snapshot onto two records: a user-facing SubscriptionRecord
// (plan name, normalized status) and a provider-native mirror. Webhook
// delivery is at-least-once and unordered; every write is an upsert by
// natural key so replays collapse into a single row.
package subsync

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	reconcileSuccess = "success"
	reconcilePartial = "partial"
	reconcileSkipped = "skipped"
	reconcileError   = "error"

	tableSubscriptions         = "subscriptions"
	tableProviderSubscriptions = "provider_subscriptions"
)

// Config holds Reconciler configuration.
type Config struct {
	// Storage persists both projections (required)
	Storage Storage

	// Plans maps provider price ids to plan names (required)
	Plans *PlanTable

	// Logger receives structured reconciliation logs.
	// If nil, logging is silently ignored (no-op).
	Logger Logger

	// Metrics is an optional metrics collector.
	// If nil, metrics are silently ignored (no-op).
	Metrics Metrics

	// WriteTimeout bounds each persistence write. Zero disables the bound
	// and writes inherit the caller's context deadline only.
	WriteTimeout time.Duration

	// GuardOrdering drops events whose timestamp is not newer than the
	// stored record's UpdatedAt. Off by default: without it the last write
	// wins and a stale redelivery may overwrite newer state until the next
	// event arrives.
	GuardOrdering bool

	// Atomic applies both upserts in one transaction when Storage
	// implements AtomicStorage. Off by default: the default policy is
	// best-effort per-table writes where a failure in one projection does
	// not abort the other.
	Atomic bool
}

// Reconciler projects provider subscription state onto local records.
type Reconciler struct {
	storage       Storage
	plans         *PlanTable
	logger        Logger
	metrics       Metrics
	writeTimeout  time.Duration
	guardOrdering bool
	atomic        bool
}

// NewReconciler creates a Reconciler from config, applying defaults for
// optional fields.
func NewReconciler(config Config) (*Reconciler, error) {
	if config.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if config.Plans == nil {
		return nil, fmt.Errorf("plan table is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}

	return &Reconciler{
		storage:       config.Storage,
		plans:         config.Plans,
		logger:        logger,
		metrics:       metrics,
		writeTimeout:  config.WriteTimeout,
		guardOrdering: config.GuardOrdering,
		atomic:        config.Atomic,
	}, nil
}

// Apply reconciles one subscription snapshot.
//
// A missing customer mapping is a silent skip, not an error: customer
// creation order is not guaranteed relative to webhook delivery, and a later
// event will be reconciled once the mapping exists. Persistence failures are
// logged and counted per table but never returned - the caller responds
// success and the provider's next delivery corrects state. Only lookup
// failures (storage errors on the read path) propagate, so the webhook
// handler can answer 5xx and trigger redelivery.
func (r *Reconciler) Apply(ctx context.Context, state *SubscriptionState) error {
	if state == nil || state.CustomerID == "" {
		return fmt.Errorf("%w: missing customer id", ErrInvalidRecord)
	}

	mapping, err := r.storage.GetCustomerMapping(ctx, state.CustomerID)
	if errors.Is(err, ErrMappingNotFound) {
		r.logger.Info("no customer mapping, skipping reconciliation",
			Field{Key: "customer_id", Value: state.CustomerID},
			Field{Key: "subscription_id", Value: state.SubscriptionID},
		)
		r.metrics.RecordMappingMiss()
		r.metrics.RecordReconcile(reconcileSkipped)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get customer mapping: %w", err)
	}

	updatedAt := state.EventTimestamp
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	if r.guardOrdering {
		stale, err := r.isStale(ctx, mapping.UserID, updatedAt)
		if err != nil {
			return err
		}
		if stale {
			r.logger.Debug("stale event dropped by ordering guard",
				Field{Key: "user_id", Value: mapping.UserID},
				Field{Key: "subscription_id", Value: state.SubscriptionID},
			)
			r.metrics.RecordStaleEvent()
			r.metrics.RecordReconcile(reconcileSkipped)
			return nil
		}
	}

	plan := r.plans.Plan(state.PriceID)
	if !r.plans.Known(state.PriceID) {
		r.logger.Warn("unknown price id, using fallback plan",
			Field{Key: "price_id", Value: state.PriceID},
			Field{Key: "plan", Value: plan},
		)
		r.metrics.RecordPlanFallback()
	}

	providerRec := &ProviderSubscriptionRecord{
		CustomerID:        state.CustomerID,
		SubscriptionID:    state.SubscriptionID,
		PriceID:           state.PriceID,
		Status:            state.Status,
		PeriodStart:       state.PeriodStart,
		PeriodEnd:         state.PeriodEnd,
		CancelAtPeriodEnd: state.CancelAtPeriodEnd,
		UpdatedAt:         updatedAt,
	}

	subRec := &SubscriptionRecord{
		UserID:            mapping.UserID,
		Plan:              plan,
		Status:            NormalizeStatus(state.Status),
		PeriodStart:       state.PeriodStartTime(),
		PeriodEnd:         state.PeriodEndTime(),
		CancelAtPeriodEnd: state.CancelAtPeriodEnd,
		UpdatedAt:         updatedAt,
	}

	if r.atomic {
		if atomicStorage, ok := r.storage.(AtomicStorage); ok {
			return r.applyAtomic(ctx, atomicStorage, subRec, providerRec)
		}
	}

	// Best-effort dual write: each upsert is attempted regardless of the
	// sibling's outcome, and failures surface only in logs and metrics.
	providerOK := r.upsertProvider(ctx, providerRec)
	subOK := r.upsertSubscription(ctx, subRec)

	switch {
	case providerOK && subOK:
		r.metrics.RecordReconcile(reconcileSuccess)
		r.logger.Info("subscription reconciled",
			Field{Key: "user_id", Value: mapping.UserID},
			Field{Key: "customer_id", Value: state.CustomerID},
			Field{Key: "plan", Value: plan},
			Field{Key: "status", Value: string(subRec.Status)},
		)
	case providerOK || subOK:
		r.metrics.RecordReconcile(reconcilePartial)
	default:
		r.metrics.RecordReconcile(reconcileError)
	}

	return nil
}

// isStale reports whether an event timestamp is not newer than the stored
// user record.
func (r *Reconciler) isStale(ctx context.Context, userID string, eventTime time.Time) (bool, error) {
	existing, err := r.storage.GetSubscription(ctx, userID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get subscription: %w", err)
	}
	return !eventTime.After(existing.UpdatedAt), nil
}

func (r *Reconciler) applyAtomic(ctx context.Context, storage AtomicStorage, sub *SubscriptionRecord, provider *ProviderSubscriptionRecord) error {
	writeCtx, cancel := r.writeContext(ctx)
	defer cancel()

	if err := storage.UpsertBoth(writeCtx, sub, provider); err != nil {
		r.logger.Error("atomic upsert failed",
			Field{Key: "user_id", Value: sub.UserID},
			Field{Key: "customer_id", Value: provider.CustomerID},
			Field{Key: "error", Value: err.Error()},
		)
		r.metrics.RecordUpsert(tableSubscriptions, reconcileError)
		r.metrics.RecordUpsert(tableProviderSubscriptions, reconcileError)
		r.metrics.RecordReconcile(reconcileError)
		return nil
	}

	r.metrics.RecordUpsert(tableSubscriptions, reconcileSuccess)
	r.metrics.RecordUpsert(tableProviderSubscriptions, reconcileSuccess)
	r.metrics.RecordReconcile(reconcileSuccess)
	r.logger.Info("subscription reconciled",
		Field{Key: "user_id", Value: sub.UserID},
		Field{Key: "customer_id", Value: provider.CustomerID},
		Field{Key: "plan", Value: sub.Plan},
		Field{Key: "status", Value: string(sub.Status)},
	)
	return nil
}

func (r *Reconciler) upsertProvider(ctx context.Context, rec *ProviderSubscriptionRecord) bool {
	writeCtx, cancel := r.writeContext(ctx)
	defer cancel()

	if err := r.storage.UpsertProviderSubscription(writeCtx, rec); err != nil {
		r.logger.Error("provider subscription upsert failed",
			Field{Key: "customer_id", Value: rec.CustomerID},
			Field{Key: "subscription_id", Value: rec.SubscriptionID},
			Field{Key: "error", Value: err.Error()},
		)
		r.metrics.RecordUpsert(tableProviderSubscriptions, reconcileError)
		return false
	}

	r.metrics.RecordUpsert(tableProviderSubscriptions, reconcileSuccess)
	return true
}

func (r *Reconciler) upsertSubscription(ctx context.Context, rec *SubscriptionRecord) bool {
	writeCtx, cancel := r.writeContext(ctx)
	defer cancel()

	if err := r.storage.UpsertSubscription(writeCtx, rec); err != nil {
		r.logger.Error("subscription upsert failed",
			Field{Key: "user_id", Value: rec.UserID},
			Field{Key: "plan", Value: rec.Plan},
			Field{Key: "error", Value: err.Error()},
		)
		r.metrics.RecordUpsert(tableSubscriptions, reconcileError)
		return false
	}

	r.metrics.RecordUpsert(tableSubscriptions, reconcileSuccess)
	return true
}

// writeContext bounds a persistence write with the configured timeout.
func (r *Reconciler) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.writeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.writeTimeout)
}

// Plans returns the reconciler's plan table.
func (r *Reconciler) Plans() *PlanTable {
	return r.plans
}

// Storage returns the reconciler's storage.
func (r *Reconciler) Storage() Storage {
	return r.storage
}
