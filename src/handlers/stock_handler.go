package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/tillpoint/backend/src/logger"
	"github.com/username/tillpoint/backend/src/models"
	"github.com/username/tillpoint/backend/src/services"
	"github.com/username/tillpoint/backend/src/utils"
)

type StockHandler struct {
	stockService services.StockService
}

func NewStockHandler(stockService services.StockService) *StockHandler {
	return &StockHandler{stockService: stockService}
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.New("invalid limit parameter")
	}
	return limit, nil
}

// AdjustStockHandler records a manual stock correction. Positive deltas
// book as additions, negative ones as adjustments.
func (h *StockHandler) AdjustStockHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "User not authenticated", http.StatusUnauthorized)
		return
	}

	var req struct {
		ProductID int64  `json:"product_id"`
		Delta     int    `json:"delta"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProductID < 1 {
		utils.SendJSONError(w, "Product ID required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		utils.SendJSONError(w, "Reason required", http.StatusBadRequest)
		return
	}

	movement, err := h.stockService.Adjust(req.ProductID, req.Delta, req.Reason, userID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrProductNotFound):
			utils.SendJSONError(w, "Product not found", http.StatusNotFound)
		case errors.Is(err, models.ErrInsufficientStock):
			utils.SendJSONError(w, err.Error(), http.StatusConflict)
		default:
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(movement); err != nil {
		logger.L.Error("error encoding movement response", "error", err)
	}
}

func (h *StockHandler) ProductMovementsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid product ID", http.StatusBadRequest)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid limit parameter", http.StatusBadRequest)
		return
	}

	movements, err := h.stockService.MovementsFor(id, limit)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			utils.SendJSONError(w, "Product not found", http.StatusNotFound)
			return
		}
		logger.L.Error("movement listing failed", "productID", id, "error", err)
		utils.SendJSONError(w, "Error fetching movements", http.StatusInternalServerError)
		return
	}
	if movements == nil {
		movements = []models.StockMovement{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(movements)
}

func (h *StockHandler) RecentMovementsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid limit parameter", http.StatusBadRequest)
		return
	}

	movements, err := h.stockService.RecentMovements(limit)
	if err != nil {
		logger.L.Error("recent movement listing failed", "error", err)
		utils.SendJSONError(w, "Error fetching movements", http.StatusInternalServerError)
		return
	}
	if movements == nil {
		movements = []models.StockMovement{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(movements)
}

func (h *StockHandler) LowStockHandler(w http.ResponseWriter, r *http.Request) {
	products, err := h.stockService.LowStock()
	if err != nil {
		logger.L.Error("low stock listing failed", "error", err)
		utils.SendJSONError(w, "Error fetching low stock products", http.StatusInternalServerError)
		return
	}
	if products == nil {
		products = []models.Product{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(products)
}
