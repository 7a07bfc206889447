// Package memory provides an in-memory implementation of the subsync.Storage
// interface. This implementation is primarily intended for testing and
// development.
package memory

import (
	"context"
	"sync"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

// Storage implements subsync.Storage using in-memory maps
type Storage struct {
	mu            sync.RWMutex
	mappings      map[string]*subsync.CustomerMapping            // customer_id -> mapping
	subscriptions map[string]*subsync.SubscriptionRecord         // user_id -> record
	provider      map[string]*subsync.ProviderSubscriptionRecord // customer_id -> record
}

// New creates a new in-memory storage adapter
func New() *Storage {
	return &Storage{
		mappings:      make(map[string]*subsync.CustomerMapping),
		subscriptions: make(map[string]*subsync.SubscriptionRecord),
		provider:      make(map[string]*subsync.ProviderSubscriptionRecord),
	}
}

// GetCustomerMapping implements subsync.Storage
func (s *Storage) GetCustomerMapping(ctx context.Context, customerID string) (*subsync.CustomerMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.mappings[customerID]
	if !ok {
		return nil, subsync.ErrMappingNotFound
	}

	// Return a copy to prevent external mutations
	mCopy := *m
	return &mCopy, nil
}

// SetCustomerMapping implements subsync.Storage
func (s *Storage) SetCustomerMapping(ctx context.Context, mapping *subsync.CustomerMapping) error {
	if mapping == nil || mapping.CustomerID == "" || mapping.UserID == "" {
		return subsync.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mCopy := *mapping
	s.mappings[mapping.CustomerID] = &mCopy
	return nil
}

// GetSubscription implements subsync.Storage
func (s *Storage) GetSubscription(ctx context.Context, userID string) (*subsync.SubscriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.subscriptions[userID]
	if !ok {
		return nil, subsync.ErrSubscriptionNotFound
	}

	recCopy := *rec
	return &recCopy, nil
}

// UpsertSubscription implements subsync.Storage
func (s *Storage) UpsertSubscription(ctx context.Context, rec *subsync.SubscriptionRecord) error {
	if rec == nil || rec.UserID == "" {
		return subsync.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recCopy := *rec
	s.subscriptions[rec.UserID] = &recCopy
	return nil
}

// GetProviderSubscription implements subsync.Storage
func (s *Storage) GetProviderSubscription(ctx context.Context, customerID string) (*subsync.ProviderSubscriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.provider[customerID]
	if !ok {
		return nil, subsync.ErrSubscriptionNotFound
	}

	recCopy := *rec
	return &recCopy, nil
}

// UpsertProviderSubscription implements subsync.Storage
func (s *Storage) UpsertProviderSubscription(ctx context.Context, rec *subsync.ProviderSubscriptionRecord) error {
	if rec == nil || rec.CustomerID == "" {
		return subsync.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recCopy := *rec
	s.provider[rec.CustomerID] = &recCopy
	return nil
}
