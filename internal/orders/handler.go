package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ManaviP/dark-cart-emporium-sub001/internal/auth"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/domain"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/messaging"
)

type Handler struct {
	repo     *OrderRepository
	producer *messaging.Producer
	logger   *slog.Logger
}

func NewHandler(repo *OrderRepository, producer *messaging.Producer, logger *slog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		producer: producer,
		logger:   logger,
	}
}

type placeOrderRequest struct {
	AddressID     string `json:"address_id"`
	PaymentMethod string `json:"payment_method"`
}

func (h *Handler) HandlePlace(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AddressID == "" {
		h.writeError(w, http.StatusBadRequest, "missing address id")
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "cash_on_delivery"
	}

	order, err := h.repo.Place(r.Context(), userID, req.AddressID, req.PaymentMethod)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyCart):
			h.writeError(w, http.StatusUnprocessableEntity, "cart is empty")
		case errors.Is(err, ErrAddressNotFound):
			h.writeError(w, http.StatusNotFound, "address not found")
		case errors.Is(err, domain.ErrInsufficientStock):
			h.writeError(w, http.StatusConflict, "insufficient stock")
		default:
			h.logger.Error("failed to place order", "error", err, "user_id", userID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	if h.producer != nil {
		event := domain.OrderPlacedEvent{
			OrderID:   order.ID,
			UserID:    order.UserID,
			Total:     order.Total.String(),
			Items:     order.Items,
			Timestamp: order.CreatedAt,
		}
		if err := h.producer.Publish(r.Context(), order.ID, event); err != nil {
			h.logger.Error("failed to publish order placed event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.Info("order placed", "order_id", order.ID, "user_id", userID, "total", order.Total)
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.repo.GetByID(r.Context(), userID, id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	orders, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("orders listed", "user_id", userID, "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.repo.Cancel(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			h.writeError(w, http.StatusConflict, "order can no longer be cancelled")
			return
		}
		h.logger.Error("failed to cancel order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.logger.Info("order cancelled", "order_id", id, "user_id", userID)
	h.writeJSON(w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	role := auth.UserRole(r)
	if role != "seller" && role != "logistics" && role != "admin" {
		h.writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	order, err := h.repo.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			h.writeError(w, http.StatusConflict, "invalid status transition")
			return
		}
		h.logger.Error("failed to update order status", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.logger.Info("order status updated", "order_id", id, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
}

type updatePaymentRequest struct {
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
}

// HandleUpdatePayment records the outcome of payment capture. Cash on
// delivery is settled by logistics at the door, so the same roles that move
// order status may record payment.
func (h *Handler) HandleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	role := auth.UserRole(r)
	if role != "seller" && role != "logistics" && role != "admin" {
		h.writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.PaymentStatus.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid payment status")
		return
	}

	found, err := h.repo.MarkPaid(r.Context(), id, req.PaymentStatus)
	if err != nil {
		h.logger.Error("failed to update payment status", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !found {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.logger.Info("payment status updated", "order_id", id, "payment_status", req.PaymentStatus)
	h.writeJSON(w, http.StatusOK, map[string]domain.PaymentStatus{"payment_status": req.PaymentStatus})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
