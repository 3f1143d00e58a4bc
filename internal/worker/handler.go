package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ManaviP/dark-cart-emporium-sub001/internal/auth"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/domain"
)

// NotificationHandler reacts to storefront events: it sends emails through
// the email service and nudges freshly placed orders into processing.
type NotificationHandler struct {
	emailServiceURL      string
	storefrontServiceURL string
	httpClient           *http.Client
	logger               *slog.Logger
}

func NewNotificationHandler(emailServiceURL, storefrontServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL:      emailServiceURL,
		storefrontServiceURL: storefrontServiceURL,
		httpClient:           client,
		logger:               logger,
	}
}

// HandleOrderPlaced consumes an order.placed payload. Returning an error
// leaves the offset uncommitted so the message is redelivered.
func (h *NotificationHandler) HandleOrderPlaced(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order placed event: %w", err)
	}

	h.logger.Info("processing order placed event", "order_id", event.OrderID, "user_id", event.UserID)

	// The event carries no buyer email; accounts live in the hosted auth
	// provider. Until profile lookup exists, derive a placeholder address.
	body := map[string]string{
		"to":      event.UserID + "@example.com",
		"subject": "Order Confirmation: " + event.OrderID,
		"body":    fmt.Sprintf("Your order %s with %d items (total %s) has been received.", event.OrderID, len(event.Items), event.Total),
	}
	if err := h.sendEmail(ctx, body); err != nil {
		h.logger.Error("failed to send confirmation email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send confirmation email: %w", err)
	}

	if err := h.advanceOrder(ctx, event.OrderID, domain.OrderStatusProcessing); err != nil {
		h.logger.Error("failed to advance order", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("advance order: %w", err)
	}

	h.logger.Info("order placed event processed", "order_id", event.OrderID)
	return nil
}

// HandleDonationFulfilled notifies the requesting organization.
func (h *NotificationHandler) HandleDonationFulfilled(ctx context.Context, payload []byte) error {
	var event domain.DonationFulfilledEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal donation fulfilled event: %w", err)
	}

	h.logger.Info("processing donation fulfilled event", "request_id", event.RequestID, "seller_id", event.SellerID)

	body := map[string]string{
		"to":      event.ContactEmail,
		"subject": "Donation Request Fulfilled",
		"body": fmt.Sprintf("Good news, %s: your donation request has been accepted by a seller with %d product allocation(s).",
			event.Organization, len(event.Allocations)),
	}
	if err := h.sendEmail(ctx, body); err != nil {
		h.logger.Error("failed to send fulfillment email", "error", err, "request_id", event.RequestID)
		return fmt.Errorf("send fulfillment email: %w", err)
	}

	h.logger.Info("donation fulfilled event processed", "request_id", event.RequestID)
	return nil
}

func (h *NotificationHandler) sendEmail(ctx context.Context, body map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}

func (h *NotificationHandler) advanceOrder(ctx context.Context, orderID string, status domain.OrderStatus) error {
	data, err := json.Marshal(map[string]string{"status": string(status)})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/orders/%s/status", h.storefrontServiceURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	// The worker runs inside the service network; it acts with the logistics
	// role rather than on behalf of a user session.
	req.Header.Set(auth.HeaderUserRole, "logistics")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	// A 409 means someone already moved the order past pending; that is not
	// worth a redelivery loop.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("storefront service returned status %d", resp.StatusCode)
	}

	return nil
}
