// Package echo mounts the billing webhook and subscription API endpoints on
// an Echo router.
package echo

import (
	"fmt"
	"net/http"

	goecho "github.com/labstack/echo/v4"

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
// on the given Echo instance.
func Register(e *goecho.Echo, config Config) error {
	if config.Provider == nil {
		return fmt.Errorf("provider is required")
	}
	webhookPath := config.WebhookPath
	if webhookPath == "" {
		webhookPath = "/webhooks/" + config.Provider.Name()
	}

	e.POST(webhookPath, goecho.WrapHandler(config.Provider.WebhookHandler()))

	if config.API != nil {
		subscriptionPath := config.SubscriptionPath
		if subscriptionPath == "" {
			subscriptionPath = "/v1/subscription"
		}
		syncPath := config.SyncPath
		if syncPath == "" {
			syncPath = "/v1/subscription/sync"
		}
		e.GET(subscriptionPath, goecho.WrapHandler(http.HandlerFunc(config.API.GetSubscription)))
		e.POST(syncPath, goecho.WrapHandler(http.HandlerFunc(config.API.SyncSubscription)))
	}
	return nil
}
