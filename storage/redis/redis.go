// Package redis provides a Redis implementation of the subsync.Storage
// interface. Records are stored as JSON values under prefixed keys. Suited
// as a cache layer or for deployments where Redis is already the primary
// store; for durable billing state prefer the postgres backend.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

// Storage implements subsync.Storage using Redis
type Storage struct {
	client redis.UniversalClient
	config Config
}

// Config holds Redis storage configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "subsync:")
	KeyPrefix string

	// MappingTTL is the TTL for customer mapping keys (0 = no expiration)
	MappingTTL time.Duration

	// SubscriptionTTL is the TTL for subscription record keys
	// (0 = no expiration)
	SubscriptionTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix:       "subsync:",
		MappingTTL:      0, // Mappings are permanent
		SubscriptionTTL: 0,
	}
}

// New creates a new Redis storage adapter.
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring
func New(client redis.UniversalClient, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = "subsync:"
	}

	return &Storage{
		client: client,
		config: config,
	}, nil
}

func (s *Storage) mappingKey(customerID string) string {
	return s.config.KeyPrefix + "mapping:" + customerID
}

func (s *Storage) subscriptionKey(userID string) string {
	return s.config.KeyPrefix + "sub:" + userID
}

func (s *Storage) providerKey(customerID string) string {
	return s.config.KeyPrefix + "provider:" + customerID
}

// GetCustomerMapping implements subsync.Storage
func (s *Storage) GetCustomerMapping(ctx context.Context, customerID string) (*subsync.CustomerMapping, error) {
	data, err := s.client.Get(ctx, s.mappingKey(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, subsync.ErrMappingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer mapping: %w", err)
	}

	var m subsync.CustomerMapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal customer mapping: %w", err)
	}
	return &m, nil
}

// SetCustomerMapping implements subsync.Storage
func (s *Storage) SetCustomerMapping(ctx context.Context, mapping *subsync.CustomerMapping) error {
	if mapping == nil || mapping.CustomerID == "" || mapping.UserID == "" {
		return subsync.ErrInvalidRecord
	}

	data, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal customer mapping: %w", err)
	}

	if err := s.client.Set(ctx, s.mappingKey(mapping.CustomerID), data, s.config.MappingTTL).Err(); err != nil {
		return fmt.Errorf("failed to set customer mapping: %w", err)
	}
	return nil
}

// GetSubscription implements subsync.Storage
func (s *Storage) GetSubscription(ctx context.Context, userID string) (*subsync.SubscriptionRecord, error) {
	data, err := s.client.Get(ctx, s.subscriptionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, subsync.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	var rec subsync.SubscriptionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscription: %w", err)
	}
	return &rec, nil
}

// UpsertSubscription implements subsync.Storage
func (s *Storage) UpsertSubscription(ctx context.Context, rec *subsync.SubscriptionRecord) error {
	if rec == nil || rec.UserID == "" {
		return subsync.ErrInvalidRecord
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	if err := s.client.Set(ctx, s.subscriptionKey(rec.UserID), data, s.config.SubscriptionTTL).Err(); err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// GetProviderSubscription implements subsync.Storage
func (s *Storage) GetProviderSubscription(ctx context.Context, customerID string) (*subsync.ProviderSubscriptionRecord, error) {
	data, err := s.client.Get(ctx, s.providerKey(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, subsync.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider subscription: %w", err)
	}

	var rec subsync.ProviderSubscriptionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provider subscription: %w", err)
	}
	return &rec, nil
}

// UpsertProviderSubscription implements subsync.Storage
func (s *Storage) UpsertProviderSubscription(ctx context.Context, rec *subsync.ProviderSubscriptionRecord) error {
	if rec == nil || rec.CustomerID == "" {
		return subsync.ErrInvalidRecord
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal provider subscription: %w", err)
	}

	if err := s.client.Set(ctx, s.providerKey(rec.CustomerID), data, s.config.SubscriptionTTL).Err(); err != nil {
		return fmt.Errorf("failed to upsert provider subscription: %w", err)
	}
	return nil
}
