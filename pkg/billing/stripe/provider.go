package stripe

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/subsync/pkg/billing"
	"github.com/mihaimyh/subsync/pkg/billing/internal"
	"github.com/mihaimyh/subsync/pkg/subsync"
)

const (
	providerName             = "stripe"
	defaultHTTPTimeout       = 10 * time.Second
	defaultProviderTimeout   = 10 * time.Second
	defaultRateLimitWindow   = time.Minute
	defaultRateLimitRequests = 100
	maxWebhookBodyBytes      = 256 * 1024
	subscriptionStatusActive = "active"
	metadataUserIDKey        = "user_id"
)

// Config extends billing.Config with Stripe-specific options
type Config struct {
	billing.Config // Base config (Reconciler, WebhookSecret, etc.)

	// Stripe-specific
	StripeAPIKey        string
	StripeWebhookSecret string

	// Performance Hook (Optional)
	// If provided, SyncUser and checkout flows use this for O(1) customer
	// lookup. If nil, falls back to the stored CustomerMapping and then to
	// the slow Stripe Search API.
	CustomerIDResolver func(context.Context, string) (string, error)

	// ProviderTimeout bounds outbound Stripe API calls made while handling
	// a webhook (subscription re-fetches). Defaults to 10s.
	ProviderTimeout time.Duration
}

// Provider implements the billing.Provider interface for Stripe
type Provider struct {
	reconciler         *subsync.Reconciler
	config             Config
	httpClient         *http.Client
	rateLimiter        *internal.RateLimiter
	webhookSecret      []byte
	apiKey             string
	stripeClient       *stripe.Client
	customerIDResolver func(context.Context, string) (string, error)
	providerTimeout    time.Duration
	metrics            billing.Metrics
	logger             subsync.Logger
	onEvent            func(*billing.WebhookEvent)
}

// NewProvider creates a new Stripe billing provider
func NewProvider(config Config) (*Provider, error) {
	if config.Reconciler == nil {
		return nil, billing.ErrProviderNotConfigured
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultHTTPTimeout,
		}
	}

	apiKey := strings.TrimSpace(config.StripeAPIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(config.APIKey)
	}
	if apiKey == "" {
		return nil, billing.ErrProviderNotConfigured
	}

	stripeClient := stripe.NewClient(apiKey)

	webhookSecretStr := strings.TrimSpace(config.StripeWebhookSecret)
	if webhookSecretStr == "" {
		webhookSecretStr = strings.TrimSpace(config.WebhookSecret)
	}
	webhookSecret := []byte(webhookSecretStr)

	providerTimeout := config.ProviderTimeout
	if providerTimeout <= 0 {
		providerTimeout = defaultProviderTimeout
	}

	limiter := internal.NewRateLimiter(defaultRateLimitRequests, defaultRateLimitWindow)

	metrics := config.Metrics
	if metrics == nil {
		metrics = &billing.NoopMetrics{}
	}

	logger := config.Logger
	if logger == nil {
		logger = &subsync.NoopLogger{}
	}

	return &Provider{
		reconciler:         config.Reconciler,
		config:             config,
		httpClient:         httpClient,
		rateLimiter:        limiter,
		webhookSecret:      webhookSecret,
		apiKey:             apiKey,
		stripeClient:       stripeClient,
		customerIDResolver: config.CustomerIDResolver,
		providerTimeout:    providerTimeout,
		metrics:            metrics,
		logger:             logger,
		onEvent:            config.OnEvent,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// WebhookHandler returns the HTTP handler for Stripe webhooks
func (p *Provider) WebhookHandler() http.Handler {
	handler := http.HandlerFunc(p.handleWebhook)
	// Wrap with rate limiting
	return p.rateLimiter.Middleware(handler)
}

// SyncUser synchronizes a user's subscription state from Stripe
func (p *Provider) SyncUser(ctx context.Context, userID string) (string, error) {
	return p.syncUserFromAPI(ctx, userID)
}

// apiContext bounds an outbound Stripe API call made during webhook handling.
func (p *Provider) apiContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.providerTimeout)
}
