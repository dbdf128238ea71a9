package services

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/username/tillpoint/backend/src/logger"
	"github.com/username/tillpoint/backend/src/models"
	"github.com/username/tillpoint/backend/src/security/validation"
	"github.com/username/tillpoint/backend/src/utils"
)

// saleServiceImpl stages the till's single in-progress sale in memory and
// makes it durable on completion. The mutex serializes builder operations;
// the till has one operator but handlers run on separate goroutines.
type saleServiceImpl struct {
	db      *sql.DB
	stock   StockService
	reports ReportService

	mu      sync.Mutex
	current *models.Sale
}

// NewSaleService creates a SaleService. The report service may be nil when
// no summary caching is wanted.
func NewSaleService(db *sql.DB, stock StockService, reports ReportService) SaleService {
	return &saleServiceImpl{db: db, stock: stock, reports: reports}
}

// snapshotLocked copies the working sale so callers never hold a reference
// into state the next operation may rewrite. Callers must hold s.mu.
func (s *saleServiceImpl) snapshotLocked() *models.Sale {
	cp := *s.current
	cp.Items = append([]models.SaleItem(nil), s.current.Items...)
	return &cp
}

func (s *saleServiceImpl) StartSale(userID int64) (*models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		logger.L.Warn("abandoning open sale", "transactionRef", s.current.TransactionRef,
			"items", len(s.current.Items))
	}
	s.current = &models.Sale{
		TransactionRef: utils.GenerateTransactionRef(),
		DateTime:       time.Now(),
		UserID:         userID,
	}
	logger.L.Info("sale started", "transactionRef", s.current.TransactionRef, "userID", userID)
	return s.snapshotLocked(), nil
}

func (s *saleServiceImpl) CurrentSale() (*models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, models.ErrNoActiveSale
	}
	return s.snapshotLocked(), nil
}

func (s *saleServiceImpl) AddItem(productID int64, quantity int) (*models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, models.ErrNoActiveSale
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	p, err := models.GetProductByID(s.db, productID)
	if err != nil {
		return nil, err
	}
	return s.addProductLocked(p, quantity)
}

func (s *saleServiceImpl) AddItemByBarcode(barcode string, quantity int) (*models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, models.ErrNoActiveSale
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	p, err := models.GetProductByBarcode(s.db, barcode)
	if err != nil {
		return nil, err
	}
	return s.addProductLocked(p, quantity)
}

// addProductLocked merges the product into the working sale, re-validating
// the combined line quantity against live stock. Callers must hold s.mu.
func (s *saleServiceImpl) addProductLocked(p *models.Product, quantity int) (*models.Sale, error) {
	if p.Archived {
		return nil, fmt.Errorf("%w: product %d is archived", models.ErrProductNotFound, p.ID)
	}

	existing := s.current.ItemFor(p.ID)
	combined := quantity
	if existing != nil {
		combined += existing.Quantity
	}
	if combined > p.CurrentStock {
		return nil, fmt.Errorf("%w: available %d, required %d", models.ErrInsufficientStock, p.CurrentStock, combined)
	}

	if existing != nil {
		existing.Quantity = combined
		existing.TotalPrice = utils.RoundCurrency(existing.UnitPrice * float64(combined))
	} else {
		item, err := models.NewSaleItem(p, quantity)
		if err != nil {
			return nil, err
		}
		s.current.Items = append(s.current.Items, *item)
	}
	return s.snapshotLocked(), nil
}

func (s *saleServiceImpl) RemoveItem(productID int64) (*models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeItemLocked(productID)
}

func (s *saleServiceImpl) removeItemLocked(productID int64) (*models.Sale, error) {
	if s.current == nil {
		return nil, models.ErrNoActiveSale
	}
	for i := range s.current.Items {
		if s.current.Items[i].ProductID == productID {
			s.current.Items = append(s.current.Items[:i], s.current.Items[i+1:]...)
			return s.snapshotLocked(), nil
		}
	}
	return nil, fmt.Errorf("product %d is not in the current sale", productID)
}

func (s *saleServiceImpl) UpdateItemQuantity(productID int64, quantity int) (*models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, models.ErrNoActiveSale
	}
	if quantity <= 0 {
		return s.removeItemLocked(productID)
	}

	item := s.current.ItemFor(productID)
	if item == nil {
		return nil, fmt.Errorf("product %d is not in the current sale", productID)
	}
	p, err := models.GetProductByID(s.db, productID)
	if err != nil {
		return nil, err
	}
	if quantity > p.CurrentStock {
		return nil, fmt.Errorf("%w: available %d, required %d", models.ErrInsufficientStock, p.CurrentStock, quantity)
	}

	item.Quantity = quantity
	item.TotalPrice = utils.RoundCurrency(item.UnitPrice * float64(quantity))
	return s.snapshotLocked(), nil
}

// SetPayment records tendered amounts and computes change. For mixed
// payments the card amount offsets the total first; only the remaining cash
// due can generate change.
func (s *saleServiceImpl) SetPayment(method string, cashAmount, cardAmount float64) (*models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, models.ErrNoActiveSale
	}
	if !models.ValidPaymentMethod(method) {
		return nil, fmt.Errorf("%w: unknown method %q", models.ErrInvalidPayment, method)
	}
	if cashAmount < 0 || cardAmount < 0 {
		return nil, fmt.Errorf("%w: tendered amounts must not be negative", models.ErrInvalidPayment)
	}

	total := s.current.TotalAmount()
	switch method {
	case models.PaymentCash:
		s.current.CashAmount = cashAmount
		s.current.CardAmount = 0
		s.current.ChangeAmount = utils.RoundCurrency(max(0, cashAmount-total))
	case models.PaymentCard:
		s.current.CashAmount = 0
		s.current.CardAmount = total
		s.current.ChangeAmount = 0
	case models.PaymentMixed:
		cashDue := max(0, total-cardAmount)
		s.current.CashAmount = cashAmount
		s.current.CardAmount = cardAmount
		s.current.ChangeAmount = utils.RoundCurrency(max(0, cashAmount-cashDue))
	}
	s.current.PaymentMethod = method
	return s.snapshotLocked(), nil
}

// ValidatePayment reports whether the recorded amounts cover the total.
// Change is not considered.
func (s *saleServiceImpl) ValidatePayment() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return false, models.ErrNoActiveSale
	}
	return s.paymentCoversLocked(), nil
}

func (s *saleServiceImpl) paymentCoversLocked() bool {
	return s.current.CashAmount+s.current.CardAmount >= s.current.TotalAmount()
}

func (s *saleServiceImpl) CancelSale() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return models.ErrNoActiveSale
	}
	logger.L.Info("sale cancelled", "transactionRef", s.current.TransactionRef,
		"items", len(s.current.Items))
	s.current = nil
	return nil
}

// CompleteSale makes the working sale durable. The sale row, its line items
// and every stock reduction commit as one transaction; any failure leaves
// the sale open and the ledger untouched.
func (s *saleServiceImpl) CompleteSale() (*models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, models.ErrNoActiveSale
	}
	if len(s.current.Items) == 0 {
		return nil, models.ErrEmptySale
	}
	if s.current.PaymentMethod == "" {
		return nil, fmt.Errorf("%w: no payment recorded", models.ErrInvalidPayment)
	}
	if !s.paymentCoversLocked() {
		return nil, fmt.Errorf("%w: tendered %.2f does not cover total %.2f",
			models.ErrInvalidPayment, s.current.CashAmount+s.current.CardAmount, s.current.TotalAmount())
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	s.current.DateTime = time.Now()
	if err := models.InsertSale(dbTx, s.current); err != nil {
		return nil, err
	}
	for i := range s.current.Items {
		item := &s.current.Items[i]
		_, err := s.stock.ReduceForSale(dbTx, item.ProductID, item.Quantity, s.current.UserID, s.current.ID)
		if err != nil {
			s.current.ID = 0
			return nil, err
		}
	}
	if err := dbTx.Commit(); err != nil {
		s.current.ID = 0
		return nil, fmt.Errorf("failed to commit sale %s: %w", s.current.TransactionRef, err)
	}

	completed := s.snapshotLocked()
	s.current = nil
	if s.reports != nil {
		s.reports.InvalidateDate(completed.SaleDate)
	}
	logger.L.Info("sale completed", "transactionRef", completed.TransactionRef,
		"saleID", completed.ID, "total", completed.TotalAmount(),
		"method", completed.PaymentMethod, "items", len(completed.Items))
	return completed, nil
}

// VoidSale cancels a completed sale and returns its quantities to the shelf.
// The void flag and every restore movement commit as one transaction. A
// voided sale's record survives; only its stock effect is reversed.
func (s *saleServiceImpl) VoidSale(saleID int64, userID int64, reason string) (*models.Sale, error) {
	reason = validation.CleanReason(reason, 200)
	if reason == "" {
		return nil, fmt.Errorf("void reason is required")
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	sale, err := models.GetSaleByID(dbTx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Voided {
		return nil, fmt.Errorf("%w: id %d", models.ErrSaleAlreadyVoided, saleID)
	}

	now := time.Now()
	if err := models.MarkSaleVoided(dbTx, saleID, userID, reason, now); err != nil {
		return nil, err
	}
	for _, item := range sale.Items {
		_, err := s.stock.RestoreFromVoid(dbTx, item.ProductID, item.Quantity, userID, saleID, sale.TransactionRef)
		if err != nil {
			// A force-deleted product has no shelf to restore to. The void
			// itself still stands; the ledger simply has no row to update.
			if errors.Is(err, models.ErrProductNotFound) {
				logger.L.Warn("skipping stock restore for removed product",
					"productID", item.ProductID, "transactionRef", sale.TransactionRef)
				continue
			}
			return nil, err
		}
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit void of sale %d: %w", saleID, err)
	}

	sale.Voided = true
	sale.VoidedBy = userID
	sale.VoidedAt = &now
	sale.VoidReason = reason
	if s.reports != nil {
		s.reports.InvalidateDate(sale.SaleDate)
	}
	logger.L.Info("sale voided", "transactionRef", sale.TransactionRef,
		"saleID", saleID, "reason", reason, "userID", userID)
	return sale, nil
}

func (s *saleServiceImpl) GetSale(saleID int64) (*models.Sale, error) {
	return models.GetSaleByID(s.db, saleID)
}

func (s *saleServiceImpl) GetSaleByRef(ref string) (*models.Sale, error) {
	return models.GetSaleByRef(s.db, ref)
}

func (s *saleServiceImpl) SalesByDate(date string) ([]models.Sale, error) {
	if _, err := utils.ParseBusinessDate(date); err != nil {
		return nil, err
	}
	return models.SalesByDate(s.db, date)
}

func (s *saleServiceImpl) SalesByDateRange(start, end string) ([]models.Sale, error) {
	if _, err := utils.ParseBusinessDate(start); err != nil {
		return nil, err
	}
	if _, err := utils.ParseBusinessDate(end); err != nil {
		return nil, err
	}
	return models.SalesByDateRange(s.db, start, end)
}
