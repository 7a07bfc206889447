package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

const maxUserIDLen = 255

// Handler provides HTTP endpoints for subscription inspection
type Handler struct {
	config Config
}

// GetSubscription returns the user's current subscription standing. Users
// with no record yet are reported on the fallback plan rather than 404.
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := h.config.GetUserID(r)
	if userID == "" {
		h.handleError(w, r, fmt.Errorf("user ID not found"), http.StatusUnauthorized)
		return
	}
	if len(userID) > maxUserIDLen {
		h.handleError(w, r, fmt.Errorf("invalid user ID format"), http.StatusBadRequest)
		return
	}

	rec, err := h.config.Storage.GetSubscription(ctx, userID)
	if err != nil && !errors.Is(err, subsync.ErrSubscriptionNotFound) {
		h.handleError(w, r, fmt.Errorf("failed to get subscription: %w", err), http.StatusInternalServerError)
		return
	}

	resp := SubscriptionResponse{
		UserID: userID,
		Plan:   subsync.FallbackPlan,
		Status: string(subsync.StatusInactive),
	}
	if rec != nil {
		resp.Plan = rec.Plan
		resp.Status = string(rec.Status)
		resp.CancelAtPeriodEnd = rec.CancelAtPeriodEnd
		if !rec.PeriodStart.IsZero() {
			start := rec.PeriodStart
			resp.PeriodStart = &start
		}
		if !rec.PeriodEnd.IsZero() {
			end := rec.PeriodEnd
			resp.PeriodEnd = &end
		}
		if !rec.UpdatedAt.IsZero() {
			updated := rec.UpdatedAt
			resp.UpdatedAt = &updated
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// SyncSubscription forces a re-synchronization of the user's subscription
// from the payment provider. Requires a Provider in the config.
func (h *Handler) SyncSubscription(w http.ResponseWriter, r *http.Request) {
	if h.config.Provider == nil {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := h.config.GetUserID(r)
	if userID == "" {
		h.handleError(w, r, fmt.Errorf("user ID not found"), http.StatusUnauthorized)
		return
	}

	plan, err := h.config.Provider.SyncUser(r.Context(), userID)
	if err != nil {
		h.config.Logger.Error("user sync failed",
			subsync.Field{Key: "user_id", Value: userID},
			subsync.Field{Key: "error", Value: err.Error()})
		h.handleError(w, r, fmt.Errorf("failed to sync subscription: %w", err), http.StatusBadGateway)
		return
	}

	h.writeJSON(w, http.StatusOK, SyncResponse{UserID: userID, Plan: plan})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response already committed
		_ = err
	}
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if h.config.OnError != nil {
		h.config.OnError(w, r, err)
		return
	}

	h.writeJSON(w, statusCode, map[string]string{"error": err.Error()})
}
