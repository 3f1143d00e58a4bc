package donations

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ManaviP/dark-cart-emporium-sub001/internal/auth"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/domain"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/messaging"
)

type Handler struct {
	repo     *DonationRepository
	producer *messaging.Producer
	logger   *slog.Logger
}

func NewHandler(repo *DonationRepository, producer *messaging.Producer, logger *slog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		producer: producer,
		logger:   logger,
	}
}

type submitRequest struct {
	Organization   string          `json:"organization"`
	ContactName    string          `json:"contact_name"`
	ContactEmail   string          `json:"contact_email"`
	ContactPhone   string          `json:"contact_phone"`
	FoodTypes      []string        `json:"food_types"`
	QuantityText   string          `json:"quantity_text"`
	Urgency        domain.Priority `json:"urgency"`
	Purpose        string          `json:"purpose"`
	LogisticsNotes string          `json:"logistics_notes"`
}

// HandleSubmit accepts donation requests from anyone, authenticated or not.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Organization == "" || req.ContactName == "" || req.ContactEmail == "" {
		h.writeError(w, http.StatusBadRequest, "organization, contact_name and contact_email are required")
		return
	}
	if req.Urgency == "" {
		req.Urgency = domain.PriorityMedium
	}
	if !req.Urgency.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid urgency")
		return
	}

	request := &domain.DonationRequest{
		Organization:   req.Organization,
		ContactName:    req.ContactName,
		ContactEmail:   req.ContactEmail,
		ContactPhone:   req.ContactPhone,
		FoodTypes:      req.FoodTypes,
		QuantityText:   req.QuantityText,
		Urgency:        req.Urgency,
		Purpose:        req.Purpose,
		LogisticsNotes: req.LogisticsNotes,
	}

	if err := h.repo.Submit(r.Context(), request); err != nil {
		h.logger.Error("failed to submit donation request", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("donation request submitted", "request_id", request.ID, "organization", request.Organization)
	h.writeJSON(w, http.StatusCreated, request)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing request id")
		return
	}

	request, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get donation request", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if request == nil {
		h.writeError(w, http.StatusNotFound, "donation request not found")
		return
	}

	h.writeJSON(w, http.StatusOK, request)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	status := domain.DonationStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	requests, err := h.repo.List(r.Context(), status)
	if err != nil {
		h.logger.Error("failed to list donation requests", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("donation requests listed", "count", len(requests))
	h.writeJSON(w, http.StatusOK, requests)
}

type acceptRequest struct {
	Allocations []domain.DonationAllocation `json:"allocations"`
}

func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	sellerID := auth.UserID(r)
	if sellerID == "" {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing request id")
		return
	}

	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Allocations) == 0 {
		h.writeError(w, http.StatusBadRequest, "at least one allocation is required")
		return
	}
	for _, a := range req.Allocations {
		if a.ProductID == "" || a.Quantity < 1 {
			h.writeError(w, http.StatusBadRequest, "allocations need a product id and a positive quantity")
			return
		}
	}

	fulfillment, err := h.repo.Accept(r.Context(), id, sellerID, req.Allocations)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientStock):
			h.writeError(w, http.StatusConflict, "insufficient stock")
		case errors.Is(err, domain.ErrInvalidTransition):
			h.writeError(w, http.StatusConflict, "donation request already resolved")
		default:
			h.logger.Error("failed to accept donation request", "error", err, "id", id, "seller_id", sellerID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	if fulfillment == nil {
		h.writeError(w, http.StatusNotFound, "donation request not found")
		return
	}

	if h.producer != nil {
		request, err := h.repo.GetByID(r.Context(), id)
		if err != nil {
			h.logger.Error("failed to reload donation request", "error", err, "id", id)
		} else if request != nil {
			event := domain.DonationFulfilledEvent{
				RequestID:     id,
				FulfillmentID: fulfillment.ID,
				SellerID:      sellerID,
				Organization:  request.Organization,
				ContactEmail:  request.ContactEmail,
				Allocations:   fulfillment.Allocations,
				Timestamp:     time.Now().UTC(),
			}
			if err := h.producer.Publish(r.Context(), id, event); err != nil {
				h.logger.Error("failed to publish donation fulfilled event", "error", err, "request_id", id)
			}
		}
	}

	h.logger.Info("donation request accepted", "request_id", id, "seller_id", sellerID, "fulfillment_id", fulfillment.ID)
	h.writeJSON(w, http.StatusCreated, fulfillment)
}

type updateStatusRequest struct {
	Status domain.DonationStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	role := auth.UserRole(r)
	if role != "seller" && role != "admin" {
		h.writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing request id")
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

	request, err := h.repo.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			h.writeError(w, http.StatusConflict, "invalid status transition")
			return
		}
		h.logger.Error("failed to update donation status", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if request == nil {
		h.writeError(w, http.StatusNotFound, "donation request not found")
		return
	}

	h.logger.Info("donation status updated", "request_id", id, "status", request.Status)
	h.writeJSON(w, http.StatusOK, request)
}

func (h *Handler) HandleListFulfillments(w http.ResponseWriter, r *http.Request) {
	sellerID := auth.UserID(r)
	if sellerID == "" {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	fulfillments, err := h.repo.ListFulfillmentsBySeller(r.Context(), sellerID)
	if err != nil {
		h.logger.Error("failed to list fulfillments", "error", err, "seller_id", sellerID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, fulfillments)
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
