// Package http mounts the billing webhook and subscription API endpoints on
// a standard net/http ServeMux.
package http

import (
	"fmt"
	"net/http"

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

func (c *Config) defaults() error {
	if c.Provider == nil {
		return fmt.Errorf("provider is required")
	}
	if c.WebhookPath == "" {
		c.WebhookPath = "/webhooks/" + c.Provider.Name()
	}
	if c.SubscriptionPath == "" {
		c.SubscriptionPath = "/v1/subscription"
	}
	if c.SyncPath == "" {
		c.SyncPath = "/v1/subscription/sync"
	}
	return nil
}

// Register mounts the webhook handler (and the API handler when configured)
// on the given mux.
func Register(mux *http.ServeMux, config Config) error {
	if err := config.defaults(); err != nil {
		return err
	}

	mux.Handle(config.WebhookPath, config.Provider.WebhookHandler())
	if config.API != nil {
		mux.HandleFunc(config.SubscriptionPath, config.API.GetSubscription)
		mux.HandleFunc(config.SyncPath, config.API.SyncSubscription)
	}
	return nil
}

// NewServeMux builds a mux with the billing routes registered.
func NewServeMux(config Config) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	if err := Register(mux, config); err != nil {
		return nil, err
	}
	return mux, nil
}
