// Package tiered provides a Hot/Cold tiered storage adapter that layers a
// fast ephemeral backend (Hot, e.g. Redis or memory) over a durable
// persistent backend (Cold, e.g. Postgres or Firestore). Reads go through
// the cache with read-repair; writes land in Cold first, Cold being the
// source of truth.
package tiered

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

// Config configures the tiered storage behavior
type Config struct {
	// Hot is the L1 cache storage (e.g., Redis, Memory) for fast lookups
	Hot subsync.Storage

	// Cold is the L2 persistence storage (e.g., Postgres, Firestore) as
	// the source of truth
	Cold subsync.Storage
}

// Storage implements subsync.Storage with a read-through / write-through
// Hot+Cold pair. If Cold implements subsync.AtomicStorage, so does this
// adapter: UpsertBoth runs atomically on Cold and best-effort on Hot.
type Storage struct {
	hot  subsync.Storage
	cold subsync.Storage

	// group collapses concurrent cold reads for the same key while the
	// hot tier is being refilled
	group singleflight.Group
}

// New creates a new tiered storage adapter.
func New(config Config) (*Storage, error) {
	if config.Hot == nil || config.Cold == nil {
		return nil, errors.New("tiered storage: both hot and cold storage are required")
	}

	return &Storage{
		hot:  config.Hot,
		cold: config.Cold,
	}, nil
}

// --- Strategy: Read-Through (Hot → Cold → Populate Hot) ---

// GetCustomerMapping implements subsync.Storage with read-through strategy.
func (s *Storage) GetCustomerMapping(ctx context.Context, customerID string) (*subsync.CustomerMapping, error) {
	m, err := s.hot.GetCustomerMapping(ctx, customerID)
	if err == nil {
		return m, nil
	}

	v, err, _ := s.group.Do("mapping:"+customerID, func() (interface{}, error) {
		m, err := s.cold.GetCustomerMapping(ctx, customerID)
		if err != nil {
			return nil, err
		}
		// Cache fill - errors are non-critical
		_ = s.hot.SetCustomerMapping(ctx, m) //nolint:errcheck
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*subsync.CustomerMapping), nil
}

// GetSubscription implements subsync.Storage with read-through strategy.
func (s *Storage) GetSubscription(ctx context.Context, userID string) (*subsync.SubscriptionRecord, error) {
	rec, err := s.hot.GetSubscription(ctx, userID)
	if err == nil {
		return rec, nil
	}

	v, err, _ := s.group.Do("sub:"+userID, func() (interface{}, error) {
		rec, err := s.cold.GetSubscription(ctx, userID)
		if err != nil {
			return nil, err
		}
		_ = s.hot.UpsertSubscription(ctx, rec) //nolint:errcheck
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*subsync.SubscriptionRecord), nil
}

// GetProviderSubscription implements subsync.Storage with read-through strategy.
func (s *Storage) GetProviderSubscription(ctx context.Context, customerID string) (*subsync.ProviderSubscriptionRecord, error) {
	rec, err := s.hot.GetProviderSubscription(ctx, customerID)
	if err == nil {
		return rec, nil
	}

	v, err, _ := s.group.Do("provider:"+customerID, func() (interface{}, error) {
		rec, err := s.cold.GetProviderSubscription(ctx, customerID)
		if err != nil {
			return nil, err
		}
		_ = s.hot.UpsertProviderSubscription(ctx, rec) //nolint:errcheck
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*subsync.ProviderSubscriptionRecord), nil
}

// --- Strategy: Write-Through (Cold → Hot) ---
// Billing state must be durable first.

// SetCustomerMapping implements subsync.Storage with write-through strategy.
func (s *Storage) SetCustomerMapping(ctx context.Context, mapping *subsync.CustomerMapping) error {
	if err := s.cold.SetCustomerMapping(ctx, mapping); err != nil {
		return err
	}
	// Best effort - Cold is source of truth
	_ = s.hot.SetCustomerMapping(ctx, mapping) //nolint:errcheck
	return nil
}

// UpsertSubscription implements subsync.Storage with write-through strategy.
func (s *Storage) UpsertSubscription(ctx context.Context, rec *subsync.SubscriptionRecord) error {
	if err := s.cold.UpsertSubscription(ctx, rec); err != nil {
		return err
	}
	_ = s.hot.UpsertSubscription(ctx, rec) //nolint:errcheck
	return nil
}

// UpsertProviderSubscription implements subsync.Storage with write-through strategy.
func (s *Storage) UpsertProviderSubscription(ctx context.Context, rec *subsync.ProviderSubscriptionRecord) error {
	if err := s.cold.UpsertProviderSubscription(ctx, rec); err != nil {
		return err
	}
	_ = s.hot.UpsertProviderSubscription(ctx, rec) //nolint:errcheck
	return nil
}

// UpsertBoth applies both projections atomically on Cold when it supports
// it, then refreshes Hot best-effort. Returns an error if Cold does not
// implement subsync.AtomicStorage.
func (s *Storage) UpsertBoth(ctx context.Context, sub *subsync.SubscriptionRecord, provider *subsync.ProviderSubscriptionRecord) error {
	atomic, ok := s.cold.(subsync.AtomicStorage)
	if !ok {
		return errors.New("tiered storage: cold backend does not support atomic upserts")
	}

	if err := atomic.UpsertBoth(ctx, sub, provider); err != nil {
		return err
	}

	_ = s.hot.UpsertSubscription(ctx, sub)              //nolint:errcheck
	_ = s.hot.UpsertProviderSubscription(ctx, provider) //nolint:errcheck
	return nil
}
