package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

func TestCustomerMapping_RoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.GetCustomerMapping(ctx, "cus_missing")
	if !errors.Is(err, subsync.ErrMappingNotFound) {
		t.Fatalf("GetCustomerMapping error = %v, want ErrMappingNotFound", err)
	}

	mapping := &subsync.CustomerMapping{
		CustomerID: "cus_123",
		UserID:     "user-1",
		Email:      "user@example.com",
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.SetCustomerMapping(ctx, mapping); err != nil {
		t.Fatalf("SetCustomerMapping failed: %v", err)
	}

	got, err := s.GetCustomerMapping(ctx, "cus_123")
	if err != nil {
		t.Fatalf("GetCustomerMapping failed: %v", err)
	}
	if got.UserID != "user-1" || got.Email != "user@example.com" {
		t.Errorf("Got mapping %+v", got)
	}

	// Returned value is a copy
	got.UserID = "mutated"
	again, _ := s.GetCustomerMapping(ctx, "cus_123")
	if again.UserID != "user-1" {
		t.Error("Stored mapping was mutated through the returned copy")
	}
}

func TestSetCustomerMapping_Invalid(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.SetCustomerMapping(ctx, nil); !errors.Is(err, subsync.ErrInvalidRecord) {
		t.Errorf("nil mapping: error = %v, want ErrInvalidRecord", err)
	}
	if err := s.SetCustomerMapping(ctx, &subsync.CustomerMapping{UserID: "u"}); !errors.Is(err, subsync.ErrInvalidRecord) {
		t.Errorf("missing customer id: error = %v, want ErrInvalidRecord", err)
	}
}

func TestSubscription_UpsertIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := &subsync.SubscriptionRecord{
		UserID:    "user-1",
		Plan:      "pro",
		Status:    subsync.StatusActive,
		UpdatedAt: time.Now().UTC(),
	}
	for i := 0; i < 3; i++ {
		if err := s.UpsertSubscription(ctx, rec); err != nil {
			t.Fatalf("UpsertSubscription failed: %v", err)
		}
	}

	got, err := s.GetSubscription(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetSubscription failed: %v", err)
	}
	if got.Plan != "pro" || got.Status != subsync.StatusActive {
		t.Errorf("Got record %+v", got)
	}

	// Overwrite with new state
	rec.Plan = "free"
	rec.Status = subsync.StatusInactive
	if err := s.UpsertSubscription(ctx, rec); err != nil {
		t.Fatalf("UpsertSubscription failed: %v", err)
	}
	got, _ = s.GetSubscription(ctx, "user-1")
	if got.Plan != "free" || got.Status != subsync.StatusInactive {
		t.Errorf("After overwrite: %+v", got)
	}
}

func TestProviderSubscription_RoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.GetProviderSubscription(ctx, "cus_missing")
	if !errors.Is(err, subsync.ErrSubscriptionNotFound) {
		t.Fatalf("GetProviderSubscription error = %v, want ErrSubscriptionNotFound", err)
	}

	rec := &subsync.ProviderSubscriptionRecord{
		CustomerID:     "cus_123",
		SubscriptionID: "sub_123",
		PriceID:        "price_pro",
		Status:         "active",
		PeriodStart:    1700000000,
		PeriodEnd:      1702592000,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := s.UpsertProviderSubscription(ctx, rec); err != nil {
		t.Fatalf("UpsertProviderSubscription failed: %v", err)
	}

	got, err := s.GetProviderSubscription(ctx, "cus_123")
	if err != nil {
		t.Fatalf("GetProviderSubscription failed: %v", err)
	}
	if got.SubscriptionID != "sub_123" || got.PeriodStart != 1700000000 {
		t.Errorf("Got record %+v", got)
	}
}
