package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/subsync/pkg/billing"
	"github.com/mihaimyh/subsync/pkg/subsync"
)

// syncUserFromAPI synchronizes a user's subscription state from the Stripe
// API. This is the pull-based complement to the webhook flow, used for
// "restore purchases" endpoints and scheduled reconciliation jobs.
func (p *Provider) syncUserFromAPI(ctx context.Context, userID string) (string, error) {
	startTime := time.Now()
	if strings.TrimSpace(p.apiKey) == "" {
		p.metrics.RecordUserSync(providerName, "error")
		return p.fallbackPlan(), billing.ErrProviderNotConfigured
	}

	var customerID string
	var err error

	// FAST PATH: App provides the mapping (O(1))
	if p.customerIDResolver != nil {
		customerID, err = p.customerIDResolver(ctx, userID)
		if err != nil {
			p.logger.Debug("customer id resolver failed, falling back to search",
				subsync.Field{Key: "user_id", Value: userID},
				subsync.Field{Key: "error", Value: err.Error()})
			customerID = ""
		}
	}

	// SLOW PATH: Stripe Search API (O(N), ~500ms, eventually consistent)
	if customerID == "" {
		p.metrics.RecordAPICall(providerName, "/customers/search", "slow_path")
		customerID, err = p.searchCustomerByMetadata(ctx, userID)
		if err != nil {
			// No Stripe customer exists for this user: project the
			// fallback plan so the local record reflects reality.
			return p.syncToFallbackPlan(ctx, userID, startTime)
		}
	}

	return p.syncCustomer(ctx, customerID, userID, startTime)
}

// searchCustomerByMetadata searches for a customer by metadata using the
// Stripe Search API
func (p *Provider) searchCustomerByMetadata(ctx context.Context, userID string) (string, error) {
	params := &stripe.CustomerSearchParams{}
	params.Query = fmt.Sprintf("metadata['user_id']:'%s'", userID)

	for cust, err := range p.stripeClient.V1Customers.Search(ctx, params) {
		if err != nil {
			return "", fmt.Errorf("stripe search error: %w", err)
		}
		// Verify exact match (Search API can return partial matches)
		if cust.Metadata != nil && cust.Metadata[metadataUserIDKey] == userID {
			return cust.ID, nil
		}
	}

	return "", billing.ErrUserNotFound
}

// syncCustomer lists the customer's active subscriptions and reconciles the
// most recently created one. A customer with no active subscriptions is
// projected onto the fallback plan.
func (p *Provider) syncCustomer(ctx context.Context, customerID, userID string, startTime time.Time) (string, error) {
	params := &stripe.SubscriptionListParams{}
	params.Customer = stripe.String(customerID)
	params.Status = stripe.String(subscriptionStatusActive)

	var newest *stripe.Subscription

	for sub, err := range p.stripeClient.V1Subscriptions.List(ctx, params) {
		if err != nil {
			p.metrics.RecordAPICall(providerName, "/subscriptions/list", "error")
			p.metrics.RecordUserSync(providerName, "error")
			p.metrics.RecordUserSyncDuration(providerName, time.Since(startTime))
			return p.fallbackPlan(), fmt.Errorf("failed to list subscriptions: %w", err)
		}
		if sub.Status != subscriptionStatusActive {
			continue
		}
		if newest == nil || sub.Created > newest.Created {
			newest = sub
		}
	}

	p.metrics.RecordAPICall(providerName, "/subscriptions/list", "200")
	p.metrics.RecordAPICallDuration(providerName, "/subscriptions/list", time.Since(startTime))

	// Make sure the mapping exists before reconciling, otherwise the
	// reconciler skips the event as an unknown customer.
	if err := p.ensureMapping(ctx, customerID, userID); err != nil {
		p.metrics.RecordUserSync(providerName, "error")
		p.metrics.RecordUserSyncDuration(providerName, time.Since(startTime))
		return p.fallbackPlan(), err
	}

	var state *subsync.SubscriptionState
	if newest != nil {
		state = stateFromSubscription(newest, time.Now().UTC())
		if state.CustomerID == "" {
			state.CustomerID = customerID
		}
	} else {
		// No active subscriptions: an empty snapshot normalizes to the
		// fallback plan with inactive status.
		state = &subsync.SubscriptionState{
			CustomerID:     customerID,
			EventTimestamp: time.Now().UTC(),
		}
	}

	if err := p.reconciler.Apply(ctx, state); err != nil {
		p.metrics.RecordUserSync(providerName, "error")
		p.metrics.RecordUserSyncDuration(providerName, time.Since(startTime))
		return p.fallbackPlan(), fmt.Errorf("failed to reconcile subscription: %w", err)
	}

	p.metrics.RecordUserSync(providerName, "success")
	p.metrics.RecordUserSyncDuration(providerName, time.Since(startTime))
	return p.reconciler.Plans().Plan(state.PriceID), nil
}

// syncToFallbackPlan writes the fallback record directly. There is no
// Stripe customer to reconcile against, but the user id is known, so the
// user-facing row can be written without going through the mapping.
func (p *Provider) syncToFallbackPlan(ctx context.Context, userID string, startTime time.Time) (string, error) {
	rec := &subsync.SubscriptionRecord{
		UserID:    userID,
		Plan:      p.fallbackPlan(),
		Status:    subsync.StatusInactive,
		UpdatedAt: time.Now().UTC(),
	}

	if err := p.reconciler.Storage().UpsertSubscription(ctx, rec); err != nil {
		p.metrics.RecordUserSync(providerName, "error")
		p.metrics.RecordUserSyncDuration(providerName, time.Since(startTime))
		return p.fallbackPlan(), fmt.Errorf("failed to set fallback plan: %w", err)
	}

	p.metrics.RecordUserSync(providerName, "success")
	p.metrics.RecordUserSyncDuration(providerName, time.Since(startTime))
	return p.fallbackPlan(), nil
}

// ensureMapping inserts the customer mapping if it is missing.
func (p *Provider) ensureMapping(ctx context.Context, customerID, userID string) error {
	_, err := p.reconciler.Storage().GetCustomerMapping(ctx, customerID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, subsync.ErrMappingNotFound) {
		return fmt.Errorf("failed to look up customer mapping: %w", err)
	}

	now := time.Now().UTC()
	mapping := &subsync.CustomerMapping{
		CustomerID: customerID,
		UserID:     userID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.reconciler.Storage().SetCustomerMapping(ctx, mapping); err != nil {
		return fmt.Errorf("failed to record customer mapping: %w", err)
	}
	return nil
}

func (p *Provider) fallbackPlan() string {
	return p.reconciler.Plans().Fallback()
}
