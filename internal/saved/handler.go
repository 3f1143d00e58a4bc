package saved

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ManaviP/dark-cart-emporium-sub001/internal/auth"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/database"
)

type Handler struct {
	repo   *SavedRepository
	logger *slog.Logger
}

func NewHandler(repo *SavedRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	saved, err := h.repo.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list saved products", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) HandleIsSaved(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	productID := r.PathValue("productId")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	saved, err := h.repo.IsSaved(r.Context(), userID, productID)
	if err != nil {
		h.logger.Error("failed to check saved product", "error", err, "user_id", userID, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}

type saveRequest struct {
	ProductID string `json:"product_id"`
}

func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	if err := h.repo.Save(r.Context(), userID, req.ProductID); err != nil {
		if database.IsForeignKeyViolation(err) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to save product", "error", err, "user_id", userID, "product_id", req.ProductID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("product saved", "user_id", userID, "product_id", req.ProductID)
	h.writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

func (h *Handler) HandleUnsave(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	savedID := r.PathValue("id")
	if savedID == "" {
		h.writeError(w, http.StatusBadRequest, "missing saved product id")
		return
	}

	found, err := h.repo.Unsave(r.Context(), userID, savedID)
	if err != nil {
		h.logger.Error("failed to unsave product", "error", err, "user_id", userID, "saved_id", savedID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !found {
		h.writeError(w, http.StatusNotFound, "saved product not found")
		return
	}

	h.logger.Info("product unsaved", "user_id", userID, "saved_id", savedID)
	w.WriteHeader(http.StatusNoContent)
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
