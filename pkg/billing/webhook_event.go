package billing

import "time"

// WebhookEvent describes a successfully reconciled webhook event. It is
// passed to the optional OnEvent callback after both projections have been
// attempted.
type WebhookEvent struct {
	// CustomerID is the provider's customer identifier
	CustomerID string

	// SubscriptionID is the provider's subscription identifier
	SubscriptionID string

	// Provider is the billing provider name ("stripe")
	Provider string

	// EventType is the provider-specific event type
	// (e.g. "customer.subscription.updated", "invoice.payment_succeeded")
	EventType string

	// EventTimestamp is when the event occurred (from the provider)
	EventTimestamp time.Time
}
