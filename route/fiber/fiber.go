// Package fiber mounts the billing webhook and subscription API endpoints
// on a Fiber app via the net/http adaptor.
package fiber

import (
	"fmt"
	"net/http"

	gofiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

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
// on the given Fiber app.
func Register(app *gofiber.App, config Config) error {
	if config.Provider == nil {
		return fmt.Errorf("provider is required")
	}
	webhookPath := config.WebhookPath
	if webhookPath == "" {
		webhookPath = "/webhooks/" + config.Provider.Name()
	}

	app.Post(webhookPath, adaptor.HTTPHandler(config.Provider.WebhookHandler()))

	if config.API != nil {
		subscriptionPath := config.SubscriptionPath
		if subscriptionPath == "" {
			subscriptionPath = "/v1/subscription"
		}
		syncPath := config.SyncPath
		if syncPath == "" {
			syncPath = "/v1/subscription/sync"
		}
		app.Get(subscriptionPath, adaptor.HTTPHandler(http.HandlerFunc(config.API.GetSubscription)))
		app.Post(syncPath, adaptor.HTTPHandler(http.HandlerFunc(config.API.SyncSubscription)))
	}
	return nil
}
