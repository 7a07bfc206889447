// Package firestore provides a Firestore implementation of the
// subsync.Storage interface, using Google Cloud Firestore for
// production-grade subscription persistence.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

// Storage implements subsync.Storage using Google Cloud Firestore
type Storage struct {
	client                  *firestore.Client
	mappingsCollection      string
	subscriptionsCollection string
	providerCollection      string
}

// Config holds Firestore storage configuration
type Config struct {
	// MappingsCollection is the Firestore collection for customer mappings
	// Default: "billing_customer_mappings"
	MappingsCollection string

	// SubscriptionsCollection is the Firestore collection for user-facing
	// subscription records. Default: "billing_subscriptions"
	SubscriptionsCollection string

	// ProviderCollection is the Firestore collection for provider
	// subscription mirrors. Default: "billing_provider_subscriptions"
	ProviderCollection string
}

// New creates a new Firestore storage adapter
func New(client *firestore.Client, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}

	// Set defaults
	if config.MappingsCollection == "" {
		config.MappingsCollection = "billing_customer_mappings"
	}
	if config.SubscriptionsCollection == "" {
		config.SubscriptionsCollection = "billing_subscriptions"
	}
	if config.ProviderCollection == "" {
		config.ProviderCollection = "billing_provider_subscriptions"
	}

	return &Storage{
		client:                  client,
		mappingsCollection:      config.MappingsCollection,
		subscriptionsCollection: config.SubscriptionsCollection,
		providerCollection:      config.ProviderCollection,
	}, nil
}

// GetCustomerMapping implements subsync.Storage
func (s *Storage) GetCustomerMapping(ctx context.Context, customerID string) (*subsync.CustomerMapping, error) {
	doc := s.client.Collection(s.mappingsCollection).Doc(customerID)
	snap, err := doc.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, subsync.ErrMappingNotFound
		}
		return nil, fmt.Errorf("failed to get customer mapping: %w", err)
	}

	data := snap.Data()
	return &subsync.CustomerMapping{
		CustomerID: customerID,
		UserID:     getString(data, "userId"),
		Email:      getString(data, "email"),
		CreatedAt:  getTime(data, "createdAt"),
		UpdatedAt:  getTime(data, "updatedAt"),
	}, nil
}

// SetCustomerMapping implements subsync.Storage
func (s *Storage) SetCustomerMapping(ctx context.Context, mapping *subsync.CustomerMapping) error {
	if mapping == nil || mapping.CustomerID == "" || mapping.UserID == "" {
		return subsync.ErrInvalidRecord
	}

	doc := s.client.Collection(s.mappingsCollection).Doc(mapping.CustomerID)
	data := map[string]interface{}{
		"userId":    mapping.UserID,
		"email":     mapping.Email,
		"createdAt": mapping.CreatedAt,
		"updatedAt": mapping.UpdatedAt,
	}

	if _, err := doc.Set(ctx, data, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to set customer mapping: %w", err)
	}
	return nil
}

// GetSubscription implements subsync.Storage
func (s *Storage) GetSubscription(ctx context.Context, userID string) (*subsync.SubscriptionRecord, error) {
	doc := s.client.Collection(s.subscriptionsCollection).Doc(userID)
	snap, err := doc.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, subsync.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	data := snap.Data()
	return &subsync.SubscriptionRecord{
		UserID:            userID,
		Plan:              getString(data, "plan"),
		Status:            subsync.Status(getString(data, "status")),
		PeriodStart:       getTime(data, "periodStart"),
		PeriodEnd:         getTime(data, "periodEnd"),
		CancelAtPeriodEnd: getBool(data, "cancelAtPeriodEnd"),
		UpdatedAt:         getTime(data, "updatedAt"),
	}, nil
}

// UpsertSubscription implements subsync.Storage
func (s *Storage) UpsertSubscription(ctx context.Context, rec *subsync.SubscriptionRecord) error {
	if rec == nil || rec.UserID == "" {
		return subsync.ErrInvalidRecord
	}

	doc := s.client.Collection(s.subscriptionsCollection).Doc(rec.UserID)
	if _, err := doc.Set(ctx, subscriptionData(rec), firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// GetProviderSubscription implements subsync.Storage
func (s *Storage) GetProviderSubscription(ctx context.Context, customerID string) (*subsync.ProviderSubscriptionRecord, error) {
	doc := s.client.Collection(s.providerCollection).Doc(customerID)
	snap, err := doc.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, subsync.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get provider subscription: %w", err)
	}

	data := snap.Data()
	return &subsync.ProviderSubscriptionRecord{
		CustomerID:        customerID,
		SubscriptionID:    getString(data, "subscriptionId"),
		PriceID:           getString(data, "priceId"),
		Status:            getString(data, "status"),
		PeriodStart:       getInt64(data, "periodStart"),
		PeriodEnd:         getInt64(data, "periodEnd"),
		CancelAtPeriodEnd: getBool(data, "cancelAtPeriodEnd"),
		UpdatedAt:         getTime(data, "updatedAt"),
	}, nil
}

// UpsertProviderSubscription implements subsync.Storage
func (s *Storage) UpsertProviderSubscription(ctx context.Context, rec *subsync.ProviderSubscriptionRecord) error {
	if rec == nil || rec.CustomerID == "" {
		return subsync.ErrInvalidRecord
	}

	doc := s.client.Collection(s.providerCollection).Doc(rec.CustomerID)
	if _, err := doc.Set(ctx, providerData(rec), firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to upsert provider subscription: %w", err)
	}
	return nil
}

// UpsertBoth implements subsync.AtomicStorage using a Firestore
// transaction, so both projections commit or neither does.
func (s *Storage) UpsertBoth(ctx context.Context, sub *subsync.SubscriptionRecord, provider *subsync.ProviderSubscriptionRecord) error {
	if sub == nil || sub.UserID == "" || provider == nil || provider.CustomerID == "" {
		return subsync.ErrInvalidRecord
	}

	subDoc := s.client.Collection(s.subscriptionsCollection).Doc(sub.UserID)
	provDoc := s.client.Collection(s.providerCollection).Doc(provider.CustomerID)

	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(provDoc, providerData(provider), firestore.MergeAll); err != nil {
			return err
		}
		return tx.Set(subDoc, subscriptionData(sub), firestore.MergeAll)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert both projections: %w", err)
	}
	return nil
}

func subscriptionData(rec *subsync.SubscriptionRecord) map[string]interface{} {
	return map[string]interface{}{
		"plan":              rec.Plan,
		"status":            string(rec.Status),
		"periodStart":       rec.PeriodStart,
		"periodEnd":         rec.PeriodEnd,
		"cancelAtPeriodEnd": rec.CancelAtPeriodEnd,
		"updatedAt":         rec.UpdatedAt,
	}
}

func providerData(rec *subsync.ProviderSubscriptionRecord) map[string]interface{} {
	return map[string]interface{}{
		"subscriptionId":    rec.SubscriptionID,
		"priceId":           rec.PriceID,
		"status":            rec.Status,
		"periodStart":       rec.PeriodStart,
		"periodEnd":         rec.PeriodEnd,
		"cancelAtPeriodEnd": rec.CancelAtPeriodEnd,
		"updatedAt":         rec.UpdatedAt,
	}
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func getBool(data map[string]interface{}, key string) bool {
	if v, ok := data[key].(bool); ok {
		return v
	}
	return false
}

func getInt64(data map[string]interface{}, key string) int64 {
	switch v := data[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func getTime(data map[string]interface{}, key string) time.Time {
	if v, ok := data[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}
