package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/tillpoint/backend/src/logger"
	"github.com/username/tillpoint/backend/src/services"
	"github.com/username/tillpoint/backend/src/utils"
)

type ReportHandler struct {
	reportService services.ReportService
	notifier      services.NotifierService
}

func NewReportHandler(reportService services.ReportService, notifier services.NotifierService) *ReportHandler {
	return &ReportHandler{reportService: reportService, notifier: notifier}
}

func (h *ReportHandler) DailySummaryHandler(w http.ResponseWriter, r *http.Request) {
	date := dateOrToday(r.URL.Query().Get("date"))

	summary, err := h.reportService.DailySummary(date)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		logger.L.Error("error encoding daily summary", "date", date, "error", err)
	}
}

func (h *ReportHandler) RangeSummaryHandler(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start == "" || end == "" {
		utils.SendJSONError(w, "start and end parameters required", http.StatusBadRequest)
		return
	}

	summary, err := h.reportService.RangeSummary(start, end)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

func (h *ReportHandler) TopProductsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	start := query.Get("start")
	end := query.Get("end")
	if start == "" || end == "" {
		utils.SendJSONError(w, "start and end parameters required", http.StatusBadRequest)
		return
	}

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			utils.SendJSONError(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	products, err := h.reportService.TopProducts(start, end, limit)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if products == nil {
		products = []services.ProductSales{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(products)
}

func (h *ReportHandler) StockAlertsHandler(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.reportService.StockAlerts()
	if err != nil {
		logger.L.Error("stock alert listing failed", "error", err)
		utils.SendJSONError(w, "Error fetching stock alerts", http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []services.StockAlert{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(alerts)
}

// EmailSummaryHandler mails the end-of-day summary, typically to the owner
// after closing the till.
func (h *ReportHandler) EmailSummaryHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Recipient string `json:"recipient"`
		Date      string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Recipient) == "" {
		utils.SendJSONError(w, "Recipient email required", http.StatusBadRequest)
		return
	}
	date := dateOrToday(req.Date)

	if err := h.notifier.SendDailySummary(r.Context(), req.Recipient, date); err != nil {
		logger.L.Error("summary email failed", "date", date, "error", err)
		utils.SendJSONError(w, "Error sending summary", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Summary for " + date + " sent to " + req.Recipient})
}
