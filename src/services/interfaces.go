package services

import (
	"context"
	"time"

	"github.com/username/tillpoint/backend/src/model"
	"github.com/username/tillpoint/backend/src/models"
)

// ProductInput carries the fields accepted when creating or updating a product.
type ProductInput struct {
	Name         string  `json:"name" validate:"required,min=1,max=120"`
	Barcode      string  `json:"barcode" validate:"omitempty,max=64"`
	Category     string  `json:"category" validate:"required,category"`
	CostPrice    float64 `json:"cost_price" validate:"gte=0"`
	SellPrice    float64 `json:"sell_price" validate:"gte=0"`
	InitialStock int     `json:"initial_stock" validate:"gte=0"`
	MinStock     int     `json:"min_stock" validate:"gte=0"`
	VATInclusive bool    `json:"vat_inclusive"`
	VATRate      float64 `json:"vat_rate" validate:"gte=0,lte=100"`
	ExpiryDate   string  `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
}

// DeletionCheck reports what stands in the way of removing a product.
type DeletionCheck struct {
	CanDelete     bool   `json:"can_delete"`
	SaleCount     int    `json:"sale_count"`
	MovementCount int    `json:"movement_count"`
	Suggestion    string `json:"suggestion,omitempty"`
}

// ProductService defines the catalog operations.
type ProductService interface {
	CreateProduct(input ProductInput, userID int64) (*models.Product, error)
	UpdateProduct(id int64, input ProductInput) (*models.Product, error)
	GetProduct(id int64) (*models.Product, error)
	GetProductByBarcode(barcode string) (*models.Product, error)
	SearchProducts(query string) ([]models.Product, error)
	ProductsByCategory(category string) ([]models.Product, error)
	ListProducts(includeArchived bool) ([]models.Product, error)
	ArchivedProducts() ([]models.Product, error)
	DeletionConstraints(id int64) (*DeletionCheck, error)
	DeleteProduct(id int64, userID int64, force bool) error
	ArchiveProduct(id int64, userID int64) error
	RestoreProduct(id int64, userID int64) error
}

// StockService defines the append-only stock ledger. Every quantity change
// goes through it so the movement history stays complete.
type StockService interface {
	Adjust(productID int64, delta int, reason string, userID int64) (*models.StockMovement, error)
	ReduceForSale(q models.DBTX, productID int64, quantity int, userID, saleID int64) (*models.StockMovement, error)
	RestoreFromVoid(q models.DBTX, productID int64, quantity int, userID, saleID int64, transactionRef string) (*models.StockMovement, error)
	MovementsFor(productID int64, limit int) ([]models.StockMovement, error)
	RecentMovements(limit int) ([]models.StockMovement, error)
	LowStock() ([]models.Product, error)
}

// SaleService builds the till's single in-progress sale and persists
// completed ones.
type SaleService interface {
	StartSale(userID int64) (*models.Sale, error)
	CurrentSale() (*models.Sale, error)
	AddItem(productID int64, quantity int) (*models.Sale, error)
	AddItemByBarcode(barcode string, quantity int) (*models.Sale, error)
	RemoveItem(productID int64) (*models.Sale, error)
	UpdateItemQuantity(productID int64, quantity int) (*models.Sale, error)
	SetPayment(method string, cashAmount, cardAmount float64) (*models.Sale, error)
	ValidatePayment() (bool, error)
	CancelSale() error
	CompleteSale() (*models.Sale, error)
	VoidSale(saleID int64, userID int64, reason string) (*models.Sale, error)
	GetSale(saleID int64) (*models.Sale, error)
	GetSaleByRef(ref string) (*models.Sale, error)
	SalesByDate(date string) ([]models.Sale, error)
	SalesByDateRange(start, end string) ([]models.Sale, error)
}

// ReconcileResult pairs a closed drawer record with its computed outcome.
type ReconcileResult struct {
	Record   *models.DailyCash `json:"record"`
	Variance float64           `json:"variance"`
	Status   string            `json:"status"`
}

// Drawer reconciliation statuses.
const (
	DrawerBalanced = "balanced"
	DrawerOver     = "over"
	DrawerShort    = "short"
)

// DrawerService manages the cash drawer's daily lifecycle. Dates are
// business dates in YYYY-MM-DD form.
type DrawerService interface {
	StartDay(date string, openingAmount float64, userID int64) (*models.DailyCash, error)
	CurrentDay(date string) (*models.DailyCash, error)
	RecomputeSalesTotals(date string) (*models.DailyCash, error)
	RecordWithdrawal(date string, amount float64, reason string, userID int64) (*models.DailyCash, error)
	Reconcile(date string, actualAmount float64, notes string, userID int64) (*ReconcileResult, error)
	History(days int) ([]models.DailyCash, error)
	ActivityLog(date string) ([]models.CashLogEntry, error)
}

// SettingsService reads and writes shop configuration stored in the database.
type SettingsService interface {
	Get(key string) (string, error)
	GetFloat(key string) (float64, error)
	GetInt(key string) (int, error)
	Set(key, value string) error
	All() ([]model.Setting, error)
	EnsureDefaults() error
}

// ReceiptLine is one printed line item.
type ReceiptLine struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
}

// ReceiptData holds everything a printed or emailed receipt shows.
type ReceiptData struct {
	TransactionRef string        `json:"transaction_ref"`
	DateTime       time.Time     `json:"date_time"`
	ShopName       string        `json:"shop_name"`
	Items          []ReceiptLine `json:"items"`
	ItemCount      int           `json:"item_count"`
	Subtotal       float64       `json:"subtotal"`
	VATRate        float64       `json:"vat_rate"`
	VATAmount      float64       `json:"vat_amount"`
	Total          float64       `json:"total"`
	PaymentMethod  string        `json:"payment_method"`
	CashAmount     float64       `json:"cash_amount"`
	CardAmount     float64       `json:"card_amount"`
	ChangeAmount   float64       `json:"change_amount"`
	Footer         string        `json:"footer"`
}

// ReceiptService renders printable till documents: proof-of-purchase slips
// for completed sales and the end-of-day cash-up report.
type ReceiptService interface {
	ReceiptData(saleID int64) (*ReceiptData, error)
	ReceiptText(saleID int64) (string, error)
	ReprintText(saleID int64) (string, error)
	DayReportText(date string) (string, error)
}

// ProductSales is one row of a top-sellers breakdown.
type ProductSales struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Total     float64 `json:"total"`
}

// DailySalesSummary aggregates one business date's completed sales.
type DailySalesSummary struct {
	Date          string             `json:"date"`
	SaleCount     int                `json:"sale_count"`
	ItemsSold     int                `json:"items_sold"`
	GrossTotal    float64            `json:"gross_total"`
	VATTotal      float64            `json:"vat_total"`
	NetTotal      float64            `json:"net_total"`
	PaymentTotals map[string]float64 `json:"payment_totals"`
	TopProducts   []ProductSales     `json:"top_products"`
}

// StockAlert flags a product at or under its minimum level.
type StockAlert struct {
	Product models.Product `json:"product"`
	Deficit int            `json:"deficit"`
}

// ReportService aggregates sales and stock into read-only summaries.
type ReportService interface {
	DailySummary(date string) (*DailySalesSummary, error)
	RangeSummary(start, end string) (*DailySalesSummary, error)
	TopProducts(start, end string, limit int) ([]ProductSales, error)
	StockAlerts() ([]StockAlert, error)
	InvalidateDate(date string)
}

// EmailData encapsulates the details of an email to be sent.
type EmailData struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// EmailService defines the interface for sending emails.
type EmailService interface {
	SendEmail(ctx context.Context, data EmailData) error
}

// NotifierService turns till events into outbound messages.
type NotifierService interface {
	SendReceipt(ctx context.Context, recipient string, saleID int64) error
	SendDailySummary(ctx context.Context, recipient string, date string) error
}
