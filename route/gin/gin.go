// Package gin mounts the billing webhook and subscription API endpoints on
// a Gin router.
package gin

import (
	"fmt"

	gongin "github.com/gin-gonic/gin"

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
// on the given Gin router group.
func Register(r gongin.IRouter, config Config) error {
	if config.Provider == nil {
		return fmt.Errorf("provider is required")
	}
	webhookPath := config.WebhookPath
	if webhookPath == "" {
		webhookPath = "/webhooks/" + config.Provider.Name()
	}

	r.POST(webhookPath, gongin.WrapH(config.Provider.WebhookHandler()))

	if config.API != nil {
		subscriptionPath := config.SubscriptionPath
		if subscriptionPath == "" {
			subscriptionPath = "/v1/subscription"
		}
		syncPath := config.SyncPath
		if syncPath == "" {
			syncPath = "/v1/subscription/sync"
		}
		r.GET(subscriptionPath, gongin.WrapF(config.API.GetSubscription))
		r.POST(syncPath, gongin.WrapF(config.API.SyncSubscription))
	}
	return nil
}
