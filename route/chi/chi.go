// Package chi mounts the billing webhook and subscription API endpoints on
// a chi router.
package chi

import (
	"fmt"

	"github.com/go-chi/chi/v5"

	"github.com/mihaimyh/subsync/pkg/api"
	"github.com/mihaimyh/subsync/pkg/billing"
)

// Config holds route registration options
type Config struct {
	// Provider handles incoming billing webhooks (required)
	Provider billing.Provider

	// API optionally serves the subscription read endpoints
	API *api.Handler

	// WebhookPath overrides the default "/webhooks/<provider>" path
	WebhookPath string

	// SubscriptionPath overrides the default "/v1/subscription" path
	SubscriptionPath string

	// SyncPath overrides the default "/v1/subscription/sync" path
	SyncPath string
}

// Register mounts the webhook handler (and the API handler when configured)
// on the given chi router.
func Register(r chi.Router, config Config) error {
	if config.Provider == nil {
		return fmt.Errorf("provider is required")
	}
	webhookPath := config.WebhookPath
	if webhookPath == "" {
		webhookPath = "/webhooks/" + config.Provider.Name()
	}

	r.Method("POST", webhookPath, config.Provider.WebhookHandler())

	if config.API != nil {
		subscriptionPath := config.SubscriptionPath
		if subscriptionPath == "" {
			subscriptionPath = "/v1/subscription"
		}
		syncPath := config.SyncPath
		if syncPath == "" {
			syncPath = "/v1/subscription/sync"
		}
		r.Get(subscriptionPath, config.API.GetSubscription)
		r.Post(syncPath, config.API.SyncSubscription)
	}
	return nil
}
