// Package mux mounts the billing webhook and subscription API endpoints on
// a gorilla/mux router.
package mux

import (
	"fmt"
	"net/http"

	gomux "github.com/gorilla/mux"

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
// on the given gorilla/mux router.
func Register(r *gomux.Router, config Config) error {
	if config.Provider == nil {
		return fmt.Errorf("provider is required")
	}
	webhookPath := config.WebhookPath
	if webhookPath == "" {
		webhookPath = "/webhooks/" + config.Provider.Name()
	}

	r.Handle(webhookPath, config.Provider.WebhookHandler()).Methods(http.MethodPost)

	if config.API != nil {
		subscriptionPath := config.SubscriptionPath
		if subscriptionPath == "" {
			subscriptionPath = "/v1/subscription"
		}
		syncPath := config.SyncPath
		if syncPath == "" {
			syncPath = "/v1/subscription/sync"
		}
		r.HandleFunc(subscriptionPath, config.API.GetSubscription).Methods(http.MethodGet)
		r.HandleFunc(syncPath, config.API.SyncSubscription).Methods(http.MethodPost)
	}
	return nil
}
