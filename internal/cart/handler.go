package cart

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ManaviP/dark-cart-emporium-sub001/internal/auth"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/database"
)

type Handler struct {
	repo   *CartRepository
	logger *slog.Logger
}

func NewHandler(repo *CartRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	cart, err := h.repo.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get cart", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, cart)
}

type addRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 {
		h.writeError(w, http.StatusBadRequest, "quantity must be at least 1")
		return
	}

	if err := h.repo.Add(r.Context(), userID, req.ProductID, req.Quantity); err != nil {
		if database.IsForeignKeyViolation(err) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to add to cart", "error", err, "user_id", userID, "product_id", req.ProductID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("cart item added", "user_id", userID, "product_id", req.ProductID, "quantity", req.Quantity)
	h.respondWithCart(w, r, userID)
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	itemID := r.PathValue("itemId")
	if itemID == "" {
		h.writeError(w, http.StatusBadRequest, "missing item id")
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	found, err := h.repo.UpdateQuantity(r.Context(), userID, itemID, req.Quantity)
	if err != nil {
		h.logger.Error("failed to update cart quantity", "error", err, "user_id", userID, "item_id", itemID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !found {
		h.writeError(w, http.StatusNotFound, "cart item not found")
		return
	}

	h.logger.Info("cart quantity updated", "user_id", userID, "item_id", itemID, "quantity", req.Quantity)
	h.respondWithCart(w, r, userID)
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	itemID := r.PathValue("itemId")
	if itemID == "" {
		h.writeError(w, http.StatusBadRequest, "missing item id")
		return
	}

	found, err := h.repo.Remove(r.Context(), userID, itemID)
	if err != nil {
		h.logger.Error("failed to remove cart item", "error", err, "user_id", userID, "item_id", itemID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !found {
		h.writeError(w, http.StatusNotFound, "cart item not found")
		return
	}

	h.logger.Info("cart item removed", "user_id", userID, "item_id", itemID)
	h.respondWithCart(w, r, userID)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.repo.Clear(r.Context(), userID); err != nil {
		h.logger.Error("failed to clear cart", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("cart cleared", "user_id", userID)
	h.respondWithCart(w, r, userID)
}

// respondWithCart re-fetches the full cart after a mutation so the response
// never diverges from what is stored.
func (h *Handler) respondWithCart(w http.ResponseWriter, r *http.Request, userID string) {
	cart, err := h.repo.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to reload cart", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, cart)
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
