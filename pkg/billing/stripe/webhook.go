package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/subsync/pkg/billing"
	"github.com/mihaimyh/subsync/pkg/billing/internal"
	"github.com/mihaimyh/subsync/pkg/subsync"
)

// handleWebhook processes incoming Stripe webhook events
func (p *Provider) handleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	setSecurityHeaders(w)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if len(p.webhookSecret) == 0 {
		http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
		return
	}

	select {
	case <-r.Context().Done():
		http.Error(w, "request timeout", http.StatusRequestTimeout)
		return
	default:
	}

	// Read and validate body (with size limit protection)
	body, err := internal.ReadBody(w, r, maxWebhookBodyBytes)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			p.metrics.RecordWebhookError(providerName, "payload_too_large")
		} else {
			http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
			p.metrics.RecordWebhookError(providerName, "invalid_payload")
		}
		return
	}

	// Extract signature from header
	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		sig = r.Header.Get("stripe-signature")
	}

	// Verify webhook signature before trusting any part of the payload
	event, err := stripe.ConstructEvent(body, sig, string(p.webhookSecret))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		p.metrics.RecordWebhookError(providerName, "auth_failed")
		p.logger.Warn("webhook signature verification failed",
			subsync.Field{Key: "remote_addr", Value: internal.ClientIP(r)})
		return
	}

	eventType := string(event.Type)
	if eventType == "" {
		eventType = "UNKNOWN"
	}

	if err := p.processWebhookEvent(r.Context(), &event); err != nil {
		// A non-nil error means the local view could not be brought up to
		// date at all; a 500 makes Stripe redeliver the event.
		http.Error(w, "failed to process webhook", http.StatusInternalServerError)
		p.metrics.RecordWebhookEvent(providerName, eventType, "error")
		p.metrics.RecordWebhookError(providerName, "processing_error")
		p.metrics.RecordWebhookProcessingDuration(providerName, eventType, time.Since(startTime))
		p.logger.Error("webhook processing failed",
			subsync.Field{Key: "event_id", Value: event.ID},
			subsync.Field{Key: "event_type", Value: eventType},
			subsync.Field{Key: "error", Value: err.Error()})
		return
	}

	// Stripe only needs a 2xx; the body is for humans reading delivery logs.
	_ = internal.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})

	p.metrics.RecordWebhookEvent(providerName, eventType, "success")
	p.metrics.RecordWebhookProcessingDuration(providerName, eventType, time.Since(startTime))
}

// processWebhookEvent routes a verified event to its handler
func (p *Provider) processWebhookEvent(ctx context.Context, event *stripe.Event) error {
	eventTimestamp := time.Unix(event.Created, 0).UTC()

	switch event.Type {
	case "checkout.session.completed":
		return p.handleCheckoutSessionCompleted(ctx, event, eventTimestamp)
	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted":
		return p.handleSubscriptionEvent(ctx, event, eventTimestamp)
	case "invoice.payment_succeeded":
		return p.handleInvoicePaymentSucceeded(ctx, event, eventTimestamp)
	case "invoice.payment_failed":
		return p.handleInvoicePaymentFailed(ctx, event)
	default:
		// Unknown event type - acknowledge without side effects so Stripe
		// does not retry event types we never subscribed to.
		p.logger.Debug("ignoring webhook event",
			subsync.Field{Key: "event_type", Value: string(event.Type)})
		p.metrics.RecordWebhookEvent(providerName, string(event.Type), "ignored")
		return nil
	}
}

// handleSubscriptionEvent processes customer.subscription.* events. The
// three lifecycle events share one path: the payload carries the full
// subscription object, and the reconciler projects whatever status it finds
// (a deleted subscription arrives with status "canceled").
func (p *Provider) handleSubscriptionEvent(ctx context.Context, event *stripe.Event, eventTimestamp time.Time) error {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	state := stateFromSubscription(&subscription, eventTimestamp)
	return p.reconcile(ctx, state, string(event.Type))
}

// handleInvoicePaymentSucceeded processes invoice.payment_succeeded events.
// The invoice payload does not carry period bounds or price, so the
// subscription is re-fetched from the API before reconciling.
func (p *Provider) handleInvoicePaymentSucceeded(
	ctx context.Context, event *stripe.Event, eventTimestamp time.Time,
) error {
	subscriptionID := subscriptionIDFromInvoice(event.Data.Raw)
	if subscriptionID == "" {
		// Not a subscription invoice - ignore
		return nil
	}

	apiCtx, cancel := p.apiContext(ctx)
	defer cancel()

	sub, err := p.stripeClient.V1Subscriptions.Retrieve(apiCtx, subscriptionID, nil)
	if err != nil {
		p.metrics.RecordAPICall(providerName, "/subscriptions/retrieve", "error")
		return fmt.Errorf("failed to fetch subscription: %w", err)
	}
	p.metrics.RecordAPICall(providerName, "/subscriptions/retrieve", "200")

	state := stateFromSubscription(sub, eventTimestamp)
	return p.reconcile(ctx, state, string(event.Type))
}

// handleInvoicePaymentFailed records the failure but does not change local
// state. Stripe moves the subscription to past_due and emits a
// customer.subscription.updated event, which is where the status flip lands.
func (p *Provider) handleInvoicePaymentFailed(_ context.Context, event *stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	customerID := ""
	if invoice.Customer != nil {
		customerID = invoice.Customer.ID
	}
	p.logger.Warn("invoice payment failed",
		subsync.Field{Key: "customer_id", Value: customerID},
		subsync.Field{Key: "invoice_id", Value: invoice.ID})
	p.metrics.RecordWebhookEvent(providerName, "invoice.payment_failed", "warning")
	return nil
}

// handleCheckoutSessionCompleted processes checkout.session.completed events.
// This is where the customer mapping is born: the session metadata carries
// the user id planted at checkout creation, and the mapping row must exist
// before any customer.subscription.* event can be attributed to a user.
func (p *Provider) handleCheckoutSessionCompleted(
	ctx context.Context, event *stripe.Event, eventTimestamp time.Time,
) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	subscriptionID := ""
	if session.Subscription != nil {
		subscriptionID = session.Subscription.ID
	}
	if subscriptionID == "" {
		// One-time payment checkout - nothing to reconcile. Checked before
		// the user id so unrelated checkouts on the same account never
		// trigger a redelivery loop.
		return nil
	}

	userID := ""
	if session.Metadata != nil {
		userID = session.Metadata[metadataUserIDKey]
	}
	if userID == "" && session.ClientReferenceID != "" {
		userID = session.ClientReferenceID
	}
	if userID == "" {
		return fmt.Errorf("%w: metadata.user_id missing on checkout session %s",
			billing.ErrInvalidWebhookPayload, session.ID)
	}

	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	email := ""
	if session.CustomerDetails != nil {
		email = session.CustomerDetails.Email
	}

	// Record the customer mapping first. If this write fails the event must
	// be redelivered, otherwise every later subscription event for this
	// customer would be dropped as unknown.
	if customerID != "" {
		mapping := &subsync.CustomerMapping{
			CustomerID: customerID,
			UserID:     userID,
			Email:      email,
			CreatedAt:  eventTimestamp,
			UpdatedAt:  eventTimestamp,
		}
		if err := p.reconciler.Storage().SetCustomerMapping(ctx, mapping); err != nil {
			return fmt.Errorf("failed to record customer mapping: %w", err)
		}
	}

	apiCtx, cancel := p.apiContext(ctx)
	defer cancel()

	// Re-fetch the subscription: the session payload only carries its id.
	sub, err := p.stripeClient.V1Subscriptions.Retrieve(apiCtx, subscriptionID, nil)
	if err != nil {
		p.metrics.RecordAPICall(providerName, "/subscriptions/retrieve", "error")
		return fmt.Errorf("failed to fetch subscription: %w", err)
	}
	p.metrics.RecordAPICall(providerName, "/subscriptions/retrieve", "200")

	// Patch the user id onto the subscription so later events and manual
	// syncs can attribute it without going through the checkout session.
	if sub.Metadata == nil || sub.Metadata[metadataUserIDKey] == "" {
		params := &stripe.SubscriptionUpdateParams{}
		params.AddMetadata(metadataUserIDKey, userID)
		sub, err = p.stripeClient.V1Subscriptions.Update(apiCtx, subscriptionID, params)
		if err != nil {
			return fmt.Errorf("failed to patch subscription metadata: %w", err)
		}
	}

	state := stateFromSubscription(sub, eventTimestamp)
	if state.CustomerID == "" {
		state.CustomerID = customerID
	}
	return p.reconcile(ctx, state, string(event.Type))
}

// reconcile projects a subscription snapshot through the reconciler and
// fires the OnEvent callback on success.
func (p *Provider) reconcile(ctx context.Context, state *subsync.SubscriptionState, eventType string) error {
	if err := p.reconciler.Apply(ctx, state); err != nil {
		return err
	}

	if p.onEvent != nil {
		p.onEvent(&billing.WebhookEvent{
			CustomerID:     state.CustomerID,
			SubscriptionID: state.SubscriptionID,
			Provider:       providerName,
			EventType:      eventType,
			EventTimestamp: state.EventTimestamp,
		})
	}
	return nil
}

// stateFromSubscription converts a Stripe subscription object into the
// provider-agnostic snapshot the reconciler consumes. Price and period
// bounds come from the first line item; a subscription with no items yields
// an empty price id, which the plan table resolves to the fallback plan.
func stateFromSubscription(sub *stripe.Subscription, eventTimestamp time.Time) *subsync.SubscriptionState {
	state := &subsync.SubscriptionState{
		SubscriptionID:    sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		EventTimestamp:    eventTimestamp,
	}

	if sub.Customer != nil {
		state.CustomerID = sub.Customer.ID
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			state.PriceID = item.Price.ID
		}
		// v83 carries period bounds on the item, not the subscription
		state.PeriodStart = item.CurrentPeriodStart
		state.PeriodEnd = item.CurrentPeriodEnd
	}

	return state
}

// subscriptionIDFromInvoice extracts the subscription id from raw invoice
// JSON. Depending on expansion the field is either an id string or an
// embedded object; the v83 Invoice struct does not surface it directly.
func subscriptionIDFromInvoice(raw json.RawMessage) string {
	var rawData map[string]interface{}
	if err := json.Unmarshal(raw, &rawData); err != nil {
		return ""
	}
	switch v := rawData["subscription"].(type) {
	case string:
		return v
	case map[string]interface{}:
		if id, ok := v["id"].(string); ok {
			return id
		}
	}
	return ""
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
