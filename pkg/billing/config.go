package billing

import (
	"net/http"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

// Config defines the standard configuration all providers should accept.
type Config struct {
	// Reconciler projects provider subscription state onto local records
	Reconciler *subsync.Reconciler

	// WebhookSecret is used to verify incoming webhook requests
	// (e.g. the Stripe-Signature signing secret).
	WebhookSecret string

	// APIKey is used for outbound API calls to the provider
	// (re-fetching subscriptions, SyncUser).
	APIKey string

	// HTTPClient is an optional HTTP client for API calls.
	// If nil, a default client with a 10s timeout is used.
	// Allows custom timeouts, proxies, or instrumentation.
	HTTPClient *http.Client

	// Metrics is an optional metrics collector for webhook and API
	// operations. If nil, metrics are silently ignored (no-op).
	// Use billing/metrics/prometheus.NewMetrics for Prometheus metrics.
	Metrics Metrics

	// Logger receives structured provider logs. If nil, logging is
	// silently ignored (no-op).
	Logger subsync.Logger

	// OnEvent is an optional callback invoked after an event has been
	// reconciled successfully. It runs synchronously; keep it cheap.
	OnEvent func(event *WebhookEvent)
}
