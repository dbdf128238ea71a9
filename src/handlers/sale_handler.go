package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/username/tillpoint/backend/src/logger"
	"github.com/username/tillpoint/backend/src/models"
	"github.com/username/tillpoint/backend/src/services"
	"github.com/username/tillpoint/backend/src/utils"
)

type SaleHandler struct {
	saleService    services.SaleService
	receiptService services.ReceiptService
	notifier       services.NotifierService
}

func NewSaleHandler(saleService services.SaleService, receiptService services.ReceiptService, notifier services.NotifierService) *SaleHandler {
	return &SaleHandler{
		saleService:    saleService,
		receiptService: receiptService,
		notifier:       notifier,
	}
}

// saleView wraps a sale with its derived money fields. Totals are never
// stored, so the JSON shape has to compute them at the edge.
type saleView struct {
	*models.Sale
	Subtotal    float64 `json:"subtotal"`
	VATAmount   float64 `json:"vat_amount"`
	TotalAmount float64 `json:"total_amount"`
	ItemCount   int     `json:"item_count"`
}

func newSaleView(s *models.Sale) *saleView {
	return &saleView{
		Sale:        s,
		Subtotal:    s.Subtotal(),
		VATAmount:   s.VATAmount(),
		TotalAmount: s.TotalAmount(),
		ItemCount:   s.ItemCount(),
	}
}

func saleViews(sales []models.Sale) []*saleView {
	views := make([]*saleView, 0, len(sales))
	for i := range sales {
		views = append(views, newSaleView(&sales[i]))
	}
	return views
}

func writeSale(w http.ResponseWriter, status int, s *models.Sale) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(newSaleView(s)); err != nil {
		logger.L.Error("error encoding sale response", "error", err)
	}
}

// respondSaleError maps builder and lookup failures onto HTTP statuses.
// Unrecognized errors are treated as bad input rather than server faults
// because the builder validates before it touches the database.
func respondSaleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNoActiveSale):
		utils.SendJSONError(w, "No active sale", http.StatusConflict)
	case errors.Is(err, models.ErrSaleNotFound):
		utils.SendJSONError(w, "Sale not found", http.StatusNotFound)
	case errors.Is(err, models.ErrProductNotFound):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrInsufficientStock):
		utils.SendJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, models.ErrSaleAlreadyVoided):
		utils.SendJSONError(w, "Sale is already voided", http.StatusConflict)
	case errors.Is(err, models.ErrEmptySale):
		utils.SendJSONError(w, "Sale has no items", http.StatusBadRequest)
	case errors.Is(err, models.ErrInvalidPayment):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	}
}

func (h *SaleHandler) StartSaleHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "User not authenticated", http.StatusUnauthorized)
		return
	}

	sale, err := h.saleService.StartSale(userID)
	if err != nil {
		logger.L.Error("failed to start sale", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error starting sale", http.StatusInternalServerError)
		return
	}
	writeSale(w, http.StatusCreated, sale)
}

func (h *SaleHandler) CurrentSaleHandler(w http.ResponseWriter, r *http.Request) {
	sale, err := h.saleService.CurrentSale()
	if err != nil {
		if errors.Is(err, models.ErrNoActiveSale) {
			utils.SendJSONError(w, "No active sale", http.StatusNotFound)
			return
		}
		logger.L.Error("failed to fetch current sale", "error", err)
		utils.SendJSONError(w, "Error fetching sale", http.StatusInternalServerError)
		return
	}
	writeSale(w, http.StatusOK, sale)
}

func (h *SaleHandler) AddItemHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID int64  `json:"product_id"`
		Barcode   string `json:"barcode"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	var (
		sale *models.Sale
		err  error
	)
	switch {
	case req.ProductID > 0:
		sale, err = h.saleService.AddItem(req.ProductID, req.Quantity)
	case req.Barcode != "":
		sale, err = h.saleService.AddItemByBarcode(req.Barcode, req.Quantity)
	default:
		utils.SendJSONError(w, "Product ID or barcode required", http.StatusBadRequest)
		return
	}
	if err != nil {
		respondSaleError(w, err)
		return
	}
	writeSale(w, http.StatusOK, sale)
}

func (h *SaleHandler) RemoveItemHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid product ID", http.StatusBadRequest)
		return
	}

	sale, err := h.saleService.RemoveItem(productID)
	if err != nil {
		respondSaleError(w, err)
		return
	}
	writeSale(w, http.StatusOK, sale)
}

func (h *SaleHandler) UpdateItemQuantityHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid product ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sale, err := h.saleService.UpdateItemQuantity(productID, req.Quantity)
	if err != nil {
		respondSaleError(w, err)
		return
	}
	writeSale(w, http.StatusOK, sale)
}

func (h *SaleHandler) SetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method     string  `json:"method"`
		CashAmount float64 `json:"cash_amount"`
		CardAmount float64 `json:"card_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sale, err := h.saleService.SetPayment(req.Method, req.CashAmount, req.CardAmount)
	if err != nil {
		respondSaleError(w, err)
		return
	}
	writeSale(w, http.StatusOK, sale)
}

func (h *SaleHandler) ValidatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	valid, err := h.saleService.ValidatePayment()
	if err != nil {
		respondSaleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"valid": valid})
}

func (h *SaleHandler) CancelSaleHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.saleService.CancelSale(); err != nil {
		respondSaleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SaleHandler) CompleteSaleHandler(w http.ResponseWriter, r *http.Request) {
	sale, err := h.saleService.CompleteSale()
	if err != nil {
		respondSaleError(w, err)
		return
	}
	writeSale(w, http.StatusCreated, sale)
}

func (h *SaleHandler) VoidSaleHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "User not authenticated", http.StatusUnauthorized)
		return
	}
	saleID, err := pathID(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid sale ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		utils.SendJSONError(w, "Void reason required", http.StatusBadRequest)
		return
	}

	sale, err := h.saleService.VoidSale(saleID, userID, req.Reason)
	if err != nil {
		respondSaleError(w, err)
		return
	}
	writeSale(w, http.StatusOK, sale)
}

func (h *SaleHandler) GetSaleHandler(w http.ResponseWriter, r *http.Request) {
	saleID, err := pathID(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid sale ID", http.StatusBadRequest)
		return
	}

	sale, err := h.saleService.GetSale(saleID)
	if err != nil {
		respondSaleError(w, err)
		return
	}
	writeSale(w, http.StatusOK, sale)
}

func (h *SaleHandler) GetSaleByRefHandler(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	if ref == "" {
		utils.SendJSONError(w, "Transaction reference required", http.StatusBadRequest)
		return
	}

	sale, err := h.saleService.GetSaleByRef(ref)
	if err != nil {
		respondSaleError(w, err)
		return
	}
	writeSale(w, http.StatusOK, sale)
}

// ListSalesHandler serves completed sales for one business date or a range.
func (h *SaleHandler) ListSalesHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var (
		sales []models.Sale
		err   error
	)
	switch {
	case query.Get("date") != "":
		sales, err = h.saleService.SalesByDate(query.Get("date"))
	case query.Get("start") != "" && query.Get("end") != "":
		sales, err = h.saleService.SalesByDateRange(query.Get("start"), query.Get("end"))
	default:
		utils.SendJSONError(w, "date or start/end parameters required", http.StatusBadRequest)
		return
	}
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(saleViews(sales)); err != nil {
		logger.L.Error("error encoding sales response", "error", err)
	}
}

// ReceiptHandler renders the printable till slip as plain text. reprint=true
// adds the reprint markers.
func (h *SaleHandler) ReceiptHandler(w http.ResponseWriter, r *http.Request) {
	saleID, err := pathID(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid sale ID", http.StatusBadRequest)
		return
	}

	var text string
	if r.URL.Query().Get("reprint") == "true" {
		text, err = h.receiptService.ReprintText(saleID)
	} else {
		text, err = h.receiptService.ReceiptText(saleID)
	}
	if err != nil {
		if errors.Is(err, models.ErrSaleNotFound) {
			utils.SendJSONError(w, "Sale not found", http.StatusNotFound)
			return
		}
		logger.L.Error("receipt rendering failed", "saleID", saleID, "error", err)
		utils.SendJSONError(w, "Error rendering receipt", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(text))
}

func (h *SaleHandler) EmailReceiptHandler(w http.ResponseWriter, r *http.Request) {
	saleID, err := pathID(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid sale ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Recipient string `json:"recipient"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Recipient) == "" {
		utils.SendJSONError(w, "Recipient email required", http.StatusBadRequest)
		return
	}

	if err := h.notifier.SendReceipt(r.Context(), req.Recipient, saleID); err != nil {
		if errors.Is(err, models.ErrSaleNotFound) {
			utils.SendJSONError(w, "Sale not found", http.StatusNotFound)
			return
		}
		logger.L.Error("receipt email failed", "saleID", saleID, "error", err)
		utils.SendJSONError(w, "Error sending receipt", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Receipt sent to " + req.Recipient})
}
