package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

const (
	testProjectID = "test-project"
	emulatorHost  = "localhost:8080"
)

func setupFirestoreStorage(t *testing.T) *Storage {
	t.Helper()

	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		os.Setenv("FIRESTORE_EMULATOR_HOST", emulatorHost)
	}

	ctx := context.Background()
	client, err := firestore.NewClient(ctx, testProjectID)
	if err != nil {
		t.Skipf("Firestore emulator not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	// Unique collections per test run so tests do not interfere
	suffix := time.Now().UnixNano()
	storage, err := New(client, Config{
		MappingsCollection:      fmt.Sprintf("test_mappings_%d", suffix),
		SubscriptionsCollection: fmt.Sprintf("test_subs_%d", suffix),
		ProviderCollection:      fmt.Sprintf("test_provider_%d", suffix),
	})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	// Probe the emulator with a read; skip if unreachable
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := storage.GetCustomerMapping(probeCtx, "probe"); err != nil && !errors.Is(err, subsync.ErrMappingNotFound) {
		t.Skipf("Firestore emulator not reachable: %v", err)
	}

	return storage
}

func TestNew_RequiresClient(t *testing.T) {
	if _, err := New(nil, Config{}); err == nil {
		t.Error("Expected error for nil client")
	}
}

func TestStorage_CustomerMapping(t *testing.T) {
	storage := setupFirestoreStorage(t)
	ctx := context.Background()

	_, err := storage.GetCustomerMapping(ctx, "cus_missing")
	if !errors.Is(err, subsync.ErrMappingNotFound) {
		t.Errorf("Expected ErrMappingNotFound, got %v", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	mapping := &subsync.CustomerMapping{
		CustomerID: "cus_fs_1",
		UserID:     "user-fs-1",
		Email:      "fs@example.com",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := storage.SetCustomerMapping(ctx, mapping); err != nil {
		t.Fatalf("SetCustomerMapping failed: %v", err)
	}

	got, err := storage.GetCustomerMapping(ctx, "cus_fs_1")
	if err != nil {
		t.Fatalf("GetCustomerMapping failed: %v", err)
	}
	if got.UserID != "user-fs-1" || got.Email != "fs@example.com" {
		t.Errorf("Got mapping %+v", got)
	}
}

func TestStorage_SubscriptionRoundTrip(t *testing.T) {
	storage := setupFirestoreStorage(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	rec := &subsync.SubscriptionRecord{
		UserID:      "user-fs-1",
		Plan:        "pro",
		Status:      subsync.StatusActive,
		PeriodStart: now,
		PeriodEnd:   now.Add(30 * 24 * time.Hour),
		UpdatedAt:   now,
	}

	for i := 0; i < 2; i++ {
		if err := storage.UpsertSubscription(ctx, rec); err != nil {
			t.Fatalf("UpsertSubscription failed: %v", err)
		}
	}

	got, err := storage.GetSubscription(ctx, "user-fs-1")
	if err != nil {
		t.Fatalf("GetSubscription failed: %v", err)
	}
	if got.Plan != "pro" || got.Status != subsync.StatusActive {
		t.Errorf("Got record %+v", got)
	}
}

func TestStorage_UpsertBoth(t *testing.T) {
	storage := setupFirestoreStorage(t)
	ctx := context.Background()

	now := time.Now().UTC()
	sub := &subsync.SubscriptionRecord{
		UserID:    "user-fs-1",
		Plan:      "basic",
		Status:    subsync.StatusActive,
		UpdatedAt: now,
	}
	provider := &subsync.ProviderSubscriptionRecord{
		CustomerID:     "cus_fs_1",
		SubscriptionID: "sub_fs_1",
		Status:         "active",
		PeriodStart:    1700000000,
		PeriodEnd:      1702592000,
		UpdatedAt:      now,
	}

	if err := storage.UpsertBoth(ctx, sub, provider); err != nil {
		t.Fatalf("UpsertBoth failed: %v", err)
	}

	gotProv, err := storage.GetProviderSubscription(ctx, "cus_fs_1")
	if err != nil {
		t.Fatalf("GetProviderSubscription failed: %v", err)
	}
	if gotProv.PeriodStart != 1700000000 {
		t.Errorf("PeriodStart = %d", gotProv.PeriodStart)
	}

	if err := storage.UpsertBoth(ctx, nil, provider); !errors.Is(err, subsync.ErrInvalidRecord) {
		t.Errorf("UpsertBoth(nil, ...) error = %v, want ErrInvalidRecord", err)
	}
}
