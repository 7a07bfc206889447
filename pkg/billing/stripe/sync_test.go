package stripe

import (
	"context"
	"testing"
	"time"

	"github.com/mihaimyh/subsync/pkg/billing"
	"github.com/mihaimyh/subsync/pkg/subsync"
)

func TestSyncToFallbackPlan(t *testing.T) {
	rec, store := newTestReconciler(t)
	provider := newTestProvider(t, Config{Config: billing.Config{Reconciler: rec}})

	plan, err := provider.syncToFallbackPlan(context.Background(), testUserID, time.Now())
	if err != nil {
		t.Fatalf("syncToFallbackPlan failed: %v", err)
	}
	if plan != subsync.FallbackPlan {
		t.Errorf("Plan = %q, want %q", plan, subsync.FallbackPlan)
	}

	sub, err := store.GetSubscription(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("GetSubscription failed: %v", err)
	}
	if sub.Plan != subsync.FallbackPlan || sub.Status != subsync.StatusInactive {
		t.Errorf("Record = %+v", sub)
	}
}

func TestEnsureMapping(t *testing.T) {
	rec, store := newTestReconciler(t)
	provider := newTestProvider(t, Config{Config: billing.Config{Reconciler: rec}})
	ctx := context.Background()

	if err := provider.ensureMapping(ctx, testCustomerID, testUserID); err != nil {
		t.Fatalf("ensureMapping failed: %v", err)
	}

	mapping, err := store.GetCustomerMapping(ctx, testCustomerID)
	if err != nil {
		t.Fatalf("GetCustomerMapping failed: %v", err)
	}
	if mapping.UserID != testUserID {
		t.Errorf("UserID = %q, want %q", mapping.UserID, testUserID)
	}

	// Second call must not overwrite the existing mapping
	created := mapping.CreatedAt
	if err := provider.ensureMapping(ctx, testCustomerID, "someone-else"); err != nil {
		t.Fatalf("ensureMapping failed: %v", err)
	}
	mapping, _ = store.GetCustomerMapping(ctx, testCustomerID)
	if mapping.UserID != testUserID {
		t.Errorf("UserID = %q, existing mapping must be kept", mapping.UserID)
	}
	if !mapping.CreatedAt.Equal(created) {
		t.Error("CreatedAt changed on repeat call")
	}
}

func TestSyncUser_NoAPIKeyConfigured(t *testing.T) {
	rec, _ := newTestReconciler(t)
	provider := newTestProvider(t, Config{Config: billing.Config{Reconciler: rec}})
	provider.apiKey = ""

	plan, err := provider.SyncUser(context.Background(), testUserID)
	if err != billing.ErrProviderNotConfigured {
		t.Errorf("Error = %v, want ErrProviderNotConfigured", err)
	}
	if plan != subsync.FallbackPlan {
		t.Errorf("Plan = %q, want fallback", plan)
	}
}
