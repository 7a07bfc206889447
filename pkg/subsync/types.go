package subsync

import (
	"time"
)

// Status is the normalized lifecycle status of a user's subscription.
type Status string

const (
	// StatusActive means the provider reports the subscription as active
	StatusActive Status = "active"
	// StatusInactive covers every other provider status (past_due, canceled,
	// unpaid, trialing, incomplete, ...)
	StatusInactive Status = "inactive"
)

// NormalizeStatus maps a provider-native status string to the internal
// two-state vocabulary. Only the exact string "active" maps to StatusActive.
func NormalizeStatus(providerStatus string) Status {
	if providerStatus == "active" {
		return StatusActive
	}
	return StatusInactive
}

// CustomerMapping links a payment-provider customer to an internal user.
// Created once per user on first checkout or portal access; corrective
// updates are allowed if the provider's customer record is recreated.
type CustomerMapping struct {
	CustomerID string
	UserID     string
	Email      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SubscriptionRecord is the user-facing projection of a provider
// subscription. At most one row per user; upserted by UserID.
type SubscriptionRecord struct {
	UserID            string
	Plan              string
	Status            Status
	PeriodStart       time.Time
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
	UpdatedAt         time.Time
}

// ProviderSubscriptionRecord mirrors the provider's subscription object,
// keyed by the provider's customer id. Status and period bounds are kept
// provider-native (raw status string, epoch seconds).
type ProviderSubscriptionRecord struct {
	CustomerID        string
	SubscriptionID    string
	PriceID           string
	Status            string
	PeriodStart       int64
	PeriodEnd         int64
	CancelAtPeriodEnd bool
	UpdatedAt         time.Time
}

// SubscriptionState is a provider-agnostic snapshot of a subscription as
// carried by a webhook event or an API re-fetch. The Reconciler projects it
// onto the two persisted records.
type SubscriptionState struct {
	// SubscriptionID is the provider's subscription identifier
	SubscriptionID string

	// CustomerID is the provider's customer identifier
	CustomerID string

	// PriceID is the first line item's price identifier.
	// Empty when the subscription has no line items.
	PriceID string

	// Status is the provider-native status string
	Status string

	// PeriodStart and PeriodEnd are epoch seconds as sent on the wire
	PeriodStart int64
	PeriodEnd   int64

	// CancelAtPeriodEnd reports whether the subscription is scheduled to
	// cancel when the current period ends
	CancelAtPeriodEnd bool

	// EventTimestamp is when the provider emitted the event carrying this
	// snapshot. Used by the optional ordering guard.
	EventTimestamp time.Time
}

// PeriodStartTime returns the period start as UTC time.
func (s *SubscriptionState) PeriodStartTime() time.Time {
	return time.Unix(s.PeriodStart, 0).UTC()
}

// PeriodEndTime returns the period end as UTC time.
func (s *SubscriptionState) PeriodEndTime() time.Time {
	return time.Unix(s.PeriodEnd, 0).UTC()
}
