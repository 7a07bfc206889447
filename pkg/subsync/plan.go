package subsync

import "strings"

// FallbackPlan is the plan assigned when a price id is unknown or missing.
const FallbackPlan = "free"

// PlanTable maps provider price identifiers to internal plan names.
// It is a pure, total lookup: every input resolves to a plan, unknown inputs
// resolve to the fallback. Build one with NewPlanTable and treat it as
// immutable; pass it into the Reconciler rather than sharing module state.
type PlanTable struct {
	plans    map[string]string
	fallback string
}

// NewPlanTable builds a PlanTable from a price id -> plan name mapping.
// Keys are matched case-insensitively. An empty fallback defaults to
// FallbackPlan.
func NewPlanTable(mapping map[string]string, fallback string) *PlanTable {
	if fallback == "" {
		fallback = FallbackPlan
	}
	plans := make(map[string]string, len(mapping))
	for priceID, plan := range mapping {
		plans[strings.ToLower(strings.TrimSpace(priceID))] = plan
	}
	return &PlanTable{plans: plans, fallback: fallback}
}

// Plan resolves a price id to a plan name. Empty or unknown price ids
// resolve to the fallback plan and never fail.
func (t *PlanTable) Plan(priceID string) string {
	if priceID == "" {
		return t.fallback
	}
	if plan, ok := t.plans[strings.ToLower(strings.TrimSpace(priceID))]; ok {
		return plan
	}
	return t.fallback
}

// Known reports whether a price id has an explicit mapping.
func (t *PlanTable) Known(priceID string) bool {
	if priceID == "" {
		return false
	}
	_, ok := t.plans[strings.ToLower(strings.TrimSpace(priceID))]
	return ok
}

// Fallback returns the fallback plan name.
func (t *PlanTable) Fallback() string {
	return t.fallback
}

// PriceID returns a price id mapped to the given plan, or empty if none.
// This is the reverse of Plan; when multiple price ids map to the same plan
// (e.g. monthly and yearly), the first match found is returned.
func (t *PlanTable) PriceID(plan string) string {
	for priceID, mapped := range t.plans {
		if mapped == plan {
			return priceID
		}
	}
	return ""
}
