package billing

import (
	"context"
	"net/http"
)

// Provider is the generic interface that any payment backend must implement.
// This keeps the reconciliation flow independent of the concrete provider.
type Provider interface {
	// Name returns the provider name (e.g., "stripe")
	Name() string

	// WebhookHandler returns the HTTP handler that processes real-time
	// lifecycle events. The implementation handles signature verification,
	// event routing, and reconciliation internally.
	WebhookHandler() http.Handler

	// SyncUser forces a synchronization of the user's subscription state
	// from the provider to local storage. Used for "restore" flows or
	// nightly reconciliation jobs. Returns the resolved plan name.
	SyncUser(ctx context.Context, userID string) (string, error)
}
