package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/username/tillpoint/backend/src/utils"
)

// Product categories. The catalog accepts no others.
const (
	CategoryFood       = "Food"
	CategoryHousehold  = "Household"
	CategorySweets     = "Sweets"
	CategoryCooldrinks = "Cooldrinks"
	CategoryOther      = "Other"
)

// Categories lists the valid product categories in display order.
var Categories = []string{
	CategoryFood,
	CategoryHousehold,
	CategorySweets,
	CategoryCooldrinks,
	CategoryOther,
}

// ValidCategory reports whether c is a known product category.
func ValidCategory(c string) bool {
	for _, cat := range Categories {
		if cat == c {
			return true
		}
	}
	return false
}

// Stock movement kinds.
const (
	MovementAddition   = "addition"
	MovementSale       = "sale"
	MovementAdjustment = "adjustment"
	MovementDeletion   = "deletion"
)

// Payment methods.
const (
	PaymentCash  = "cash"
	PaymentCard  = "card"
	PaymentMixed = "mixed"
)

// ValidPaymentMethod reports whether m is a supported payment method.
func ValidPaymentMethod(m string) bool {
	return m == PaymentCash || m == PaymentCard || m == PaymentMixed
}

// Product is a catalog entry. CurrentStock is owned by the stock ledger and
// is never written outside ApplyStockDelta.
type Product struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Barcode      string    `json:"barcode,omitempty"`
	Category     string    `json:"category"`
	CostPrice    float64   `json:"cost_price"`
	SellPrice    float64   `json:"sell_price"`
	CurrentStock int       `json:"current_stock"`
	MonthlyStock int       `json:"monthly_stock"`
	MinStock     int       `json:"min_stock"`
	VATRate      float64   `json:"vat_rate"`
	VATInclusive bool      `json:"vat_inclusive"`
	Archived     bool      `json:"archived"`
	ExpiryDate   string    `json:"expiry_date,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks the catalog invariants before a product is written.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("product name is required")
	}
	if !ValidCategory(p.Category) {
		return fmt.Errorf("invalid category %q, must be one of %s", p.Category, strings.Join(Categories, ", "))
	}
	if p.CostPrice < 0 || p.SellPrice < 0 {
		return fmt.Errorf("prices cannot be negative")
	}
	if p.CurrentStock < 0 {
		return fmt.Errorf("current stock cannot be negative")
	}
	if p.MinStock < 0 {
		return fmt.Errorf("minimum stock cannot be negative")
	}
	if p.VATRate < 0 {
		return fmt.Errorf("VAT rate cannot be negative")
	}
	return nil
}

// StockMovement is one append-only audit entry for a stock change.
// Invariant: NewStock = PreviousStock + QuantityChange, and NewStock >= 0.
type StockMovement struct {
	ID             int64     `json:"id"`
	ProductID      int64     `json:"product_id"`
	ProductName    string    `json:"product_name,omitempty"`
	MovementType   string    `json:"movement_type"`
	QuantityChange int       `json:"quantity_change"`
	PreviousStock  int       `json:"previous_stock"`
	NewStock       int       `json:"new_stock"`
	UserID         int64     `json:"user_id"`
	Username       string    `json:"username,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	ReferenceID    int64     `json:"reference_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SaleItem is one line of a sale. Name, unit price and VAT rate are
// snapshots taken when the line was added; later catalog edits do not
// affect persisted sales.
type SaleItem struct {
	ID          int64   `json:"id"`
	SaleID      int64   `json:"sale_id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
	VATRate     float64 `json:"vat_rate"`
}

// VATAmount returns the VAT contained in the line total. Prices are
// VAT-inclusive, so the share is back-calculated by division; a line
// snapshotted with rate 0 (VAT-exclusive product) contributes nothing.
func (i *SaleItem) VATAmount() float64 {
	if i.VATRate > 0 {
		return i.TotalPrice * (i.VATRate / (100 + i.VATRate))
	}
	return 0
}

// NewSaleItem snapshots a product into a sale line.
func NewSaleItem(p *Product, quantity int) (*SaleItem, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	vatRate := 0.0
	if p.VATInclusive {
		vatRate = p.VATRate
	}
	return &SaleItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    quantity,
		UnitPrice:   p.SellPrice,
		TotalPrice:  utils.RoundCurrency(p.SellPrice * float64(quantity)),
		VATRate:     vatRate,
	}, nil
}

// Sale is a till transaction. Totals are always derived from the items so
// they cannot drift from the lines; they are not stored.
type Sale struct {
	ID             int64      `json:"id"`
	TransactionRef string     `json:"transaction_ref"`
	DateTime       time.Time  `json:"date_time"`
	SaleDate       string     `json:"sale_date"`
	UserID         int64      `json:"user_id"`
	Items          []SaleItem `json:"items"`
	PaymentMethod  string     `json:"payment_method,omitempty"`
	CashAmount     float64    `json:"cash_amount"`
	CardAmount     float64    `json:"card_amount"`
	ChangeAmount   float64    `json:"change_amount"`
	Voided         bool       `json:"voided"`
	VoidedBy       int64      `json:"voided_by,omitempty"`
	VoidedAt       *time.Time `json:"voided_at,omitempty"`
	VoidReason     string     `json:"void_reason,omitempty"`
}

// TotalAmount is the grand total: the sum of all line totals.
func (s *Sale) TotalAmount() float64 {
	var total float64
	for i := range s.Items {
		total += s.Items[i].TotalPrice
	}
	return total
}

// VATAmount is the VAT share of the grand total.
func (s *Sale) VATAmount() float64 {
	var vat float64
	for i := range s.Items {
		vat += s.Items[i].VATAmount()
	}
	return vat
}

// Subtotal is the grand total excluding VAT.
func (s *Sale) Subtotal() float64 {
	var sub float64
	for i := range s.Items {
		sub += s.Items[i].TotalPrice - s.Items[i].VATAmount()
	}
	return sub
}

// ItemCount is the number of units across all lines.
func (s *Sale) ItemCount() int {
	var n int
	for i := range s.Items {
		n += s.Items[i].Quantity
	}
	return n
}

// ItemFor returns the line for a product, or nil if the product is not on
// the sale.
func (s *Sale) ItemFor(productID int64) *SaleItem {
	for i := range s.Items {
		if s.Items[i].ProductID == productID {
			return &s.Items[i]
		}
	}
	return nil
}

// DailyCash is the cash drawer record for one business date.
type DailyCash struct {
	ID              int64      `json:"id"`
	Date            string     `json:"date"`
	OpeningAmount   float64    `json:"opening_amount"`
	CashSales       float64    `json:"cash_sales"`
	CardSales       float64    `json:"card_sales"`
	Withdrawals     float64    `json:"withdrawals"`
	ExpectedClosing float64    `json:"expected_closing"`
	ActualClosing   float64    `json:"actual_closing"`
	Variance        float64    `json:"variance"`
	Reconciled      bool       `json:"reconciled"`
	ReconciledBy    int64      `json:"reconciled_by,omitempty"`
	ReconciledAt    *time.Time `json:"reconciled_at,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	OpenedBy        int64      `json:"opened_by"`
	CreatedAt       time.Time  `json:"created_at"`
}

// CashLogEntry is one line of the cash drawer activity log.
type CashLogEntry struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	ActivityTime time.Time `json:"activity_time"`
	Description  string    `json:"description"`
}
