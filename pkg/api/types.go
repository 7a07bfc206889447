package api

import "time"

// SubscriptionResponse is the user-facing view of a subscription record.
// Users without any record get the fallback plan with inactive status, so
// the endpoint never 404s for a valid user.
type SubscriptionResponse struct {
	UserID            string     `json:"user_id"`
	Plan              string     `json:"plan"`
	Status            string     `json:"status"` // "active" or "inactive"
	PeriodStart       *time.Time `json:"period_start,omitempty"`
	PeriodEnd         *time.Time `json:"period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// SyncResponse is returned by the sync endpoint after a forced
// re-synchronization from the payment provider.
type SyncResponse struct {
	UserID string `json:"user_id"`
	Plan   string `json:"plan"`
}
