package addresses

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ManaviP/dark-cart-emporium-sub001/internal/auth"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/domain"
)

type Handler struct {
	repo   *AddressRepository
	logger *slog.Logger
}

func NewHandler(repo *AddressRepository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

type createRequest struct {
	Label      string `json:"label"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
	IsDefault  bool   `json:"is_default"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Line1 == "" || req.City == "" || req.PostalCode == "" {
		h.writeError(w, http.StatusBadRequest, "line1, city and postal_code are required")
		return
	}

	address := &domain.Address{
		UserID:     userID,
		Label:      req.Label,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Phone:      req.Phone,
		IsDefault:  req.IsDefault,
	}

	if err := h.repo.Create(r.Context(), address); err != nil {
		h.logger.Error("failed to create address", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("address created", "address_id", address.ID, "user_id", userID)
	h.writeJSON(w, http.StatusCreated, address)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	list, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list addresses", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing address id")
		return
	}

	found, err := h.repo.Delete(r.Context(), userID, id)
	if err != nil {
		h.logger.Error("failed to delete address", "error", err, "id", id, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !found {
		h.writeError(w, http.StatusNotFound, "address not found")
		return
	}

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
