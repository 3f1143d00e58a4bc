package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ManaviP/dark-cart-emporium-sub001/internal/auth"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func orderPlacedPayload(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(domain.OrderPlacedEvent{
		OrderID: "order-1",
		UserID:  "user-1",
		Total:   "42.50",
		Items: []domain.OrderItem{
			{ID: "item-1", ProductID: "p-1", Name: "Rice", Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	return payload
}

func TestNotificationHandler_HandleOrderPlaced(t *testing.T) {
	t.Run("sends confirmation email and advances order", func(t *testing.T) {
		var emailSent bool
		emailServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/send" {
				t.Errorf("expected /send, got %s", r.URL.Path)
			}
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode email body: %v", err)
			}
			if body["to"] != "user-1@example.com" {
				t.Errorf("unexpected recipient: %s", body["to"])
			}
			emailSent = true
			w.WriteHeader(http.StatusOK)
		}))
		defer emailServer.Close()

		var orderAdvanced bool
		storefrontServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPatch {
				t.Errorf("expected PATCH, got %s", r.Method)
			}
			if r.URL.Path != "/orders/order-1/status" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.Header.Get(auth.HeaderUserRole) != "logistics" {
				t.Errorf("expected logistics role header, got %q", r.Header.Get(auth.HeaderUserRole))
			}
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode status body: %v", err)
			}
			if body["status"] != string(domain.OrderStatusProcessing) {
				t.Errorf("expected processing, got %s", body["status"])
			}
			orderAdvanced = true
			w.WriteHeader(http.StatusOK)
		}))
		defer storefrontServer.Close()

		handler := NewNotificationHandler(emailServer.URL, storefrontServer.URL, http.DefaultClient, discardLogger())

		if err := handler.HandleOrderPlaced(context.Background(), orderPlacedPayload(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !emailSent {
			t.Error("expected email to be sent")
		}
		if !orderAdvanced {
			t.Error("expected order status to be advanced")
		}
	})

	t.Run("treats conflict on status advance as success", func(t *testing.T) {
		emailServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer emailServer.Close()

		storefrontServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
		}))
		defer storefrontServer.Close()

		handler := NewNotificationHandler(emailServer.URL, storefrontServer.URL, http.DefaultClient, discardLogger())

		if err := handler.HandleOrderPlaced(context.Background(), orderPlacedPayload(t)); err != nil {
			t.Fatalf("expected conflict to be swallowed, got %v", err)
		}
	})

	t.Run("returns error when email service fails", func(t *testing.T) {
		emailServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer emailServer.Close()

		handler := NewNotificationHandler(emailServer.URL, "http://unused", http.DefaultClient, discardLogger())

		if err := handler.HandleOrderPlaced(context.Background(), orderPlacedPayload(t)); err == nil {
			t.Error("expected error when email service fails")
		}
	})

	t.Run("returns error for malformed payload", func(t *testing.T) {
		handler := NewNotificationHandler("http://unused", "http://unused", http.DefaultClient, discardLogger())

		if err := handler.HandleOrderPlaced(context.Background(), []byte("not json")); err == nil {
			t.Error("expected error for malformed payload")
		}
	})
}

func TestNotificationHandler_HandleDonationFulfilled(t *testing.T) {
	payload, err := json.Marshal(domain.DonationFulfilledEvent{
		RequestID:     "req-1",
		FulfillmentID: "ful-1",
		SellerID:      "seller-1",
		Organization:  "Food Bank",
		ContactEmail:  "contact@foodbank.org",
		Allocations: []domain.DonationAllocation{
			{ProductID: "p-1", Quantity: 5},
		},
	})
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}

	t.Run("notifies the requesting organization", func(t *testing.T) {
		var emailSent bool
		emailServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode email body: %v", err)
			}
			if body["to"] != "contact@foodbank.org" {
				t.Errorf("unexpected recipient: %s", body["to"])
			}
			emailSent = true
			w.WriteHeader(http.StatusOK)
		}))
		defer emailServer.Close()

		handler := NewNotificationHandler(emailServer.URL, "http://unused", http.DefaultClient, discardLogger())

		if err := handler.HandleDonationFulfilled(context.Background(), payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !emailSent {
			t.Error("expected email to be sent")
		}
	})

	t.Run("returns error when email service is down", func(t *testing.T) {
		handler := NewNotificationHandler("http://localhost:99999", "http://unused", &http.Client{}, discardLogger())

		if err := handler.HandleDonationFulfilled(context.Background(), payload); err == nil {
			t.Error("expected error when email service unreachable")
		}
	})
}
