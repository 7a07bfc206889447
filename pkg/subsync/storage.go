package subsync

import "context"

// Storage persists the customer mapping and both subscription projections.
// Upserts must be idempotent by their natural key (user_id for
// SubscriptionRecord, customer_id for ProviderSubscriptionRecord) so that
// duplicate webhook deliveries collapse into a single row.
type Storage interface {
	// GetCustomerMapping returns the mapping for a provider customer id.
	// Returns ErrMappingNotFound when no mapping exists.
	GetCustomerMapping(ctx context.Context, customerID string) (*CustomerMapping, error)

	// SetCustomerMapping inserts or updates a mapping keyed by customer id.
	SetCustomerMapping(ctx context.Context, mapping *CustomerMapping) error

	// GetSubscription returns the user-facing record for a user id.
	// Returns ErrSubscriptionNotFound when no record exists.
	GetSubscription(ctx context.Context, userID string) (*SubscriptionRecord, error)

	// UpsertSubscription inserts or updates the user-facing record,
	// conflict target user_id.
	UpsertSubscription(ctx context.Context, rec *SubscriptionRecord) error

	// GetProviderSubscription returns the provider mirror for a customer id.
	// Returns ErrSubscriptionNotFound when no record exists.
	GetProviderSubscription(ctx context.Context, customerID string) (*ProviderSubscriptionRecord, error)

	// UpsertProviderSubscription inserts or updates the provider mirror,
	// conflict target customer_id.
	UpsertProviderSubscription(ctx context.Context, rec *ProviderSubscriptionRecord) error
}

// AtomicStorage is an optional extension for backends that can apply both
// subscription projections in a single transaction, eliminating the
// partial-failure window of the default best-effort dual write.
type AtomicStorage interface {
	Storage

	// UpsertBoth applies both upserts atomically.
	UpsertBoth(ctx context.Context, sub *SubscriptionRecord, provider *ProviderSubscriptionRecord) error
}
