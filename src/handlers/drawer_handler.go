package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/username/tillpoint/backend/src/logger"
	"github.com/username/tillpoint/backend/src/models"
	"github.com/username/tillpoint/backend/src/services"
	"github.com/username/tillpoint/backend/src/utils"
)

type DrawerHandler struct {
	drawerService  services.DrawerService
	receiptService services.ReceiptService
}

func NewDrawerHandler(drawerService services.DrawerService, receiptService services.ReceiptService) *DrawerHandler {
	return &DrawerHandler{drawerService: drawerService, receiptService: receiptService}
}

// dateOrToday falls back to the current business date when the client does
// not name one, which is the common case at the till.
func dateOrToday(date string) string {
	if date == "" {
		return utils.BusinessDate(time.Now())
	}
	return date
}

func respondDrawerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrDayNotStarted):
		utils.SendJSONError(w, "Day has not been started", http.StatusNotFound)
	case errors.Is(err, models.ErrDayAlreadyStarted):
		utils.SendJSONError(w, "Day has already been started", http.StatusConflict)
	case errors.Is(err, models.ErrAlreadyReconciled):
		utils.SendJSONError(w, "Day has already been reconciled", http.StatusConflict)
	default:
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	}
}

func (h *DrawerHandler) StartDayHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "User not authenticated", http.StatusUnauthorized)
		return
	}

	var req struct {
		Date          string  `json:"date"`
		OpeningAmount float64 `json:"opening_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.drawerService.StartDay(dateOrToday(req.Date), req.OpeningAmount, userID)
	if err != nil {
		respondDrawerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		logger.L.Error("error encoding drawer response", "error", err)
	}
}

func (h *DrawerHandler) CurrentDayHandler(w http.ResponseWriter, r *http.Request) {
	date := dateOrToday(r.URL.Query().Get("date"))

	rec, err := h.drawerService.CurrentDay(date)
	if err != nil {
		respondDrawerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// RecomputeHandler refreshes the drawer's sales totals from the persisted
// sales of the date, for the mid-day "what should be in the till" check.
func (h *DrawerHandler) RecomputeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.drawerService.RecomputeSalesTotals(dateOrToday(req.Date))
	if err != nil {
		respondDrawerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

func (h *DrawerHandler) WithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "User not authenticated", http.StatusUnauthorized)
		return
	}

	var req struct {
		Date   string  `json:"date"`
		Amount float64 `json:"amount"`
		Reason string  `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.drawerService.RecordWithdrawal(dateOrToday(req.Date), req.Amount, req.Reason, userID)
	if err != nil {
		respondDrawerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

func (h *DrawerHandler) ReconcileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "User not authenticated", http.StatusUnauthorized)
		return
	}

	var req struct {
		Date         string  `json:"date"`
		ActualAmount float64 `json:"actual_amount"`
		Notes        string  `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.drawerService.Reconcile(dateOrToday(req.Date), req.ActualAmount, req.Notes, userID)
	if err != nil {
		respondDrawerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.L.Error("error encoding reconcile response", "error", err)
	}
}

func (h *DrawerHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			utils.SendJSONError(w, "Invalid days parameter", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	records, err := h.drawerService.History(days)
	if err != nil {
		logger.L.Error("drawer history listing failed", "error", err)
		utils.SendJSONError(w, "Error fetching drawer history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []models.DailyCash{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func (h *DrawerHandler) ActivityLogHandler(w http.ResponseWriter, r *http.Request) {
	date := dateOrToday(r.URL.Query().Get("date"))

	entries, err := h.drawerService.ActivityLog(date)
	if err != nil {
		respondDrawerError(w, err)
		return
	}
	if entries == nil {
		entries = []models.CashLogEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// DayReportHandler renders the printable cash-up slip for a date as plain
// text.
func (h *DrawerHandler) DayReportHandler(w http.ResponseWriter, r *http.Request) {
	date := dateOrToday(r.URL.Query().Get("date"))

	text, err := h.receiptService.DayReportText(date)
	if err != nil {
		if errors.Is(err, models.ErrDayNotStarted) {
			respondDrawerError(w, err)
			return
		}
		logger.L.Error("cash-up report rendering failed", "date", date, "error", err)
		utils.SendJSONError(w, "Error rendering cash-up report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(text))
}
