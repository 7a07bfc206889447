package stripe

import (
	"testing"

	"github.com/mihaimyh/subsync/pkg/billing"
	"github.com/mihaimyh/subsync/pkg/subsync"
	"github.com/mihaimyh/subsync/storage/memory"
)

const (
	testStripeAPIKey        = "sk_test_1234567890"
	testStripeWebhookSecret = "whsec_test_secret"
	testUserID              = "test-user-123"
	testCustomerID          = "cus_test_123"
	testSubscriptionID      = "sub_test_123"
	testPriceIDBasic        = "price_basic_monthly"
	testPriceIDPro          = "price_pro_monthly"
	testPlanBasic           = "basic"
	testPlanPro             = "pro"
)

// newTestReconciler builds a reconciler backed by in-memory storage
func newTestReconciler(t *testing.T) (*subsync.Reconciler, *memory.Storage) {
	t.Helper()
	store := memory.New()
	plans := subsync.NewPlanTable(map[string]string{
		testPriceIDBasic: testPlanBasic,
		testPriceIDPro:   testPlanPro,
	}, "")
	rec, err := subsync.NewReconciler(subsync.Config{
		Storage: store,
		Plans:   plans,
	})
	if err != nil {
		t.Fatalf("Failed to create reconciler: %v", err)
	}
	return rec, store
}

func newTestProvider(t *testing.T, config Config) *Provider {
	t.Helper()
	if config.StripeAPIKey == "" {
		config.StripeAPIKey = testStripeAPIKey
	}
	if config.StripeWebhookSecret == "" {
		config.StripeWebhookSecret = testStripeWebhookSecret
	}
	provider, err := NewProvider(config)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	return provider
}

func TestNewProvider_Validation(t *testing.T) {
	rec, _ := newTestReconciler(t)

	_, err := NewProvider(Config{
		StripeAPIKey:        testStripeAPIKey,
		StripeWebhookSecret: testStripeWebhookSecret,
	})
	if err != billing.ErrProviderNotConfigured {
		t.Errorf("Missing reconciler: error = %v, want ErrProviderNotConfigured", err)
	}

	_, err = NewProvider(Config{
		Config:              billing.Config{Reconciler: rec},
		StripeWebhookSecret: testStripeWebhookSecret,
	})
	if err != billing.ErrProviderNotConfigured {
		t.Errorf("Missing API key: error = %v, want ErrProviderNotConfigured", err)
	}

	provider, err := NewProvider(Config{
		Config:              billing.Config{Reconciler: rec},
		StripeAPIKey:        testStripeAPIKey,
		StripeWebhookSecret: testStripeWebhookSecret,
	})
	if err != nil {
		t.Fatalf("Valid config failed: %v", err)
	}
	if provider == nil {
		t.Fatal("Expected provider, got nil")
	}
}

func TestProvider_Name(t *testing.T) {
	rec, _ := newTestReconciler(t)
	provider := newTestProvider(t, Config{Config: billing.Config{Reconciler: rec}})

	if provider.Name() != providerName {
		t.Errorf("Expected name %s, got %s", providerName, provider.Name())
	}
}

func TestProvider_WebhookHandler(t *testing.T) {
	rec, _ := newTestReconciler(t)
	provider := newTestProvider(t, Config{Config: billing.Config{Reconciler: rec}})

	if provider.WebhookHandler() == nil {
		t.Error("Expected webhook handler, got nil")
	}
}

func TestProvider_APIKeyFallsBackToBaseConfig(t *testing.T) {
	rec, _ := newTestReconciler(t)
	provider, err := NewProvider(Config{
		Config: billing.Config{
			Reconciler:    rec,
			APIKey:        testStripeAPIKey,
			WebhookSecret: testStripeWebhookSecret,
		},
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	if provider.apiKey != testStripeAPIKey {
		t.Errorf("apiKey = %q, want base config value", provider.apiKey)
	}
	if string(provider.webhookSecret) != testStripeWebhookSecret {
		t.Errorf("webhookSecret = %q, want base config value", provider.webhookSecret)
	}
}
