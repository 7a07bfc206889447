package subsync

import "testing"

func TestPlanTable_Plan(t *testing.T) {
	table := NewPlanTable(map[string]string{
		"price_basic_monthly": "basic",
		"Price_Pro_Monthly":   "pro",
	}, "")

	tests := []struct {
		name    string
		priceID string
		want    string
	}{
		{"known price", "price_basic_monthly", "basic"},
		{"case insensitive", "PRICE_PRO_MONTHLY", "pro"},
		{"whitespace trimmed", "  price_basic_monthly ", "basic"},
		{"unknown price", "price_enterprise_yearly", FallbackPlan},
		{"empty price", "", FallbackPlan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := table.Plan(tt.priceID); got != tt.want {
				t.Errorf("Plan(%q) = %q, want %q", tt.priceID, got, tt.want)
			}
		})
	}
}

func TestPlanTable_CustomFallback(t *testing.T) {
	table := NewPlanTable(map[string]string{"price_1": "pro"}, "starter")

	if got := table.Plan("price_unknown"); got != "starter" {
		t.Errorf("Plan(unknown) = %q, want starter", got)
	}
	if got := table.Fallback(); got != "starter" {
		t.Errorf("Fallback() = %q, want starter", got)
	}
}

func TestPlanTable_Known(t *testing.T) {
	table := NewPlanTable(map[string]string{"price_1": "pro"}, "")

	if !table.Known("price_1") {
		t.Error("Known(price_1) = false, want true")
	}
	if table.Known("price_2") {
		t.Error("Known(price_2) = true, want false")
	}
	if table.Known("") {
		t.Error("Known(\"\") = true, want false")
	}
}

func TestPlanTable_PriceID(t *testing.T) {
	table := NewPlanTable(map[string]string{"price_pro": "pro"}, "")

	if got := table.PriceID("pro"); got != "price_pro" {
		t.Errorf("PriceID(pro) = %q, want price_pro", got)
	}
	if got := table.PriceID("missing"); got != "" {
		t.Errorf("PriceID(missing) = %q, want empty", got)
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		providerStatus string
		want           Status
	}{
		{"active", StatusActive},
		{"past_due", StatusInactive},
		{"canceled", StatusInactive},
		{"unpaid", StatusInactive},
		{"trialing", StatusInactive},
		{"incomplete", StatusInactive},
		{"incomplete_expired", StatusInactive},
		{"paused", StatusInactive},
		{"", StatusInactive},
		{"ACTIVE", StatusInactive},
	}

	for _, tt := range tests {
		if got := NormalizeStatus(tt.providerStatus); got != tt.want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", tt.providerStatus, got, tt.want)
		}
	}
}
