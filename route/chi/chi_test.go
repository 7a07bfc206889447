package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mihaimyh/subsync/pkg/api"
	"github.com/mihaimyh/subsync/storage/memory"
)

type stubProvider struct{}

func (s *stubProvider) Name() string { return "stripe" }
func (s *stubProvider) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
func (s *stubProvider) SyncUser(context.Context, string) (string, error) {
	return "free", nil
}

func TestRegister(t *testing.T) {
	apiHandler, err := api.NewHandler(api.Config{
		Storage:   memory.New(),
		GetUserID: api.FromHeader("X-User-ID"),
	})
	if err != nil {
		t.Fatalf("Failed to create API handler: %v", err)
	}

	r := chi.NewRouter()
	if err := Register(r, Config{Provider: &stubProvider{}, API: apiHandler}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Webhook status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/subscription", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("API status = %d, want 200", rec.Code)
	}
}

func TestRegister_RequiresProvider(t *testing.T) {
	if err := Register(chi.NewRouter(), Config{}); err == nil {
		t.Error("Expected error for missing provider")
	}
}
