package services

import (
	"testing"

	"github.com/patrickmn/go-cache"
	"github.com/username/tillpoint/backend/src/models"
)

// TestDailySummaryMath aggregates a day of mixed sales and checks every
// derived figure.
func TestDailySummaryMath(t *testing.T) {
	db := newTestDB(t)
	products := NewProductService(db)
	sales := newSaleService(db)
	reports := NewReportService(db, nil)

	x := seedProduct(t, db, "Milk 1L", "6006001", 11.50, 20)
	y, err := products.CreateProduct(ProductInput{
		Name: "Brown Bread", Barcode: "6006002", Category: models.CategoryFood,
		SellPrice: 40.00, InitialStock: 20, VATInclusive: false,
	}, testUserID)
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}

	// Sale 1: 2x Milk for cash, 23.00.
	completeCashSale(t, sales, x.ID, 2)

	// Sale 2: 1x Milk + 1x Bread on card, 51.50.
	if _, err := sales.StartSale(testUserID); err != nil {
		t.Fatalf("StartSale failed: %v", err)
	}
	if _, err := sales.AddItem(x.ID, 1); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if _, err := sales.AddItem(y.ID, 1); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if _, err := sales.SetPayment(models.PaymentCard, 0, 0); err != nil {
		t.Fatalf("SetPayment failed: %v", err)
	}
	second, err := sales.CompleteSale()
	if err != nil {
		t.Fatalf("CompleteSale failed: %v", err)
	}

	summary, err := reports.DailySummary(second.SaleDate)
	if err != nil {
		t.Fatalf("DailySummary failed: %v", err)
	}
	if summary.SaleCount != 2 {
		t.Errorf("expected 2 sales, got %d", summary.SaleCount)
	}
	if summary.ItemsSold != 4 {
		t.Errorf("expected 4 items sold, got %d", summary.ItemsSold)
	}
	if summary.GrossTotal != 74.50 {
		t.Errorf("expected gross 74.50, got %.2f", summary.GrossTotal)
	}
	// Only the milk lines carry VAT: 34.50 inclusive at 15% backs out 4.50.
	if summary.VATTotal != 4.50 {
		t.Errorf("expected VAT 4.50, got %.2f", summary.VATTotal)
	}
	if summary.NetTotal != 70.00 {
		t.Errorf("expected net 70.00, got %.2f", summary.NetTotal)
	}
	if summary.PaymentTotals[models.PaymentCash] != 23.00 {
		t.Errorf("expected cash total 23.00, got %.2f", summary.PaymentTotals[models.PaymentCash])
	}
	if summary.PaymentTotals[models.PaymentCard] != 51.50 {
		t.Errorf("expected card total 51.50, got %.2f", summary.PaymentTotals[models.PaymentCard])
	}

	if len(summary.TopProducts) != 2 {
		t.Fatalf("expected 2 top products, got %d", len(summary.TopProducts))
	}
	if summary.TopProducts[0].ProductID != x.ID || summary.TopProducts[0].Quantity != 3 {
		t.Errorf("expected Milk first with quantity 3, got %+v", summary.TopProducts[0])
	}
	if summary.TopProducts[0].Total != 34.50 {
		t.Errorf("expected Milk total 34.50, got %.2f", summary.TopProducts[0].Total)
	}
}

// TestDailySummaryEmptyDay returns zeroes rather than an error.
func TestDailySummaryEmptyDay(t *testing.T) {
	db := newTestDB(t)
	reports := NewReportService(db, nil)

	summary, err := reports.DailySummary("2025-01-15")
	if err != nil {
		t.Fatalf("DailySummary failed: %v", err)
	}
	if summary.SaleCount != 0 || summary.GrossTotal != 0 {
		t.Errorf("expected empty summary, got %+v", summary)
	}
	if summary.Date != "2025-01-15" {
		t.Errorf("expected date label, got %q", summary.Date)
	}
	if len(summary.TopProducts) != 0 {
		t.Errorf("expected no top products, got %d", len(summary.TopProducts))
	}

	if _, err := reports.DailySummary("15/01/2025"); err == nil {
		t.Error("expected error for malformed date")
	}
}

// TestDailySummaryCache proves summaries are served from cache until the
// date is invalidated.
func TestDailySummaryCache(t *testing.T) {
	db := newTestDB(t)
	reports := NewReportService(db, cache.New(DefaultCacheExpiration, CacheCleanupInterval))
	// This sale service deliberately has no report hook, so completing a
	// sale does not invalidate anything by itself.
	sales := NewSaleService(db, NewStockService(db), nil)
	p := seedProduct(t, db, "Chips Small", "6006003", 6.00, 50)

	first := completeCashSale(t, sales, p.ID, 1)
	date := first.SaleDate

	summary, err := reports.DailySummary(date)
	if err != nil {
		t.Fatalf("DailySummary failed: %v", err)
	}
	if summary.SaleCount != 1 {
		t.Fatalf("expected 1 sale, got %d", summary.SaleCount)
	}

	completeCashSale(t, sales, p.ID, 1)

	cached, err := reports.DailySummary(date)
	if err != nil {
		t.Fatalf("DailySummary failed: %v", err)
	}
	if cached.SaleCount != 1 {
		t.Errorf("expected stale cached summary with 1 sale, got %d", cached.SaleCount)
	}

	reports.InvalidateDate(date)
	fresh, err := reports.DailySummary(date)
	if err != nil {
		t.Fatalf("DailySummary failed: %v", err)
	}
	if fresh.SaleCount != 2 {
		t.Errorf("expected refreshed summary with 2 sales, got %d", fresh.SaleCount)
	}
}

// TestSaleCompletionInvalidatesSummary checks the wired-up path: completing
// or voiding a sale refreshes that date's summary.
func TestSaleCompletionInvalidatesSummary(t *testing.T) {
	db := newTestDB(t)
	reports := NewReportService(db, cache.New(DefaultCacheExpiration, CacheCleanupInterval))
	sales := NewSaleService(db, NewStockService(db), reports)
	p := seedProduct(t, db, "Chips Large", "6006004", 12.00, 50)

	first := completeCashSale(t, sales, p.ID, 1)
	date := first.SaleDate

	if summary, err := reports.DailySummary(date); err != nil || summary.SaleCount != 1 {
		t.Fatalf("expected 1 sale in summary, got %v / %v", summary, err)
	}

	completeCashSale(t, sales, p.ID, 2)
	summary, err := reports.DailySummary(date)
	if err != nil {
		t.Fatalf("DailySummary failed: %v", err)
	}
	if summary.SaleCount != 2 {
		t.Errorf("expected completion to invalidate the cache, got %d sales", summary.SaleCount)
	}

	if _, err := sales.VoidSale(first.ID, testUserID, "wrong item"); err != nil {
		t.Fatalf("VoidSale failed: %v", err)
	}
	summary, err = reports.DailySummary(date)
	if err != nil {
		t.Fatalf("DailySummary failed: %v", err)
	}
	if summary.SaleCount != 1 {
		t.Errorf("expected void to invalidate the cache, got %d sales", summary.SaleCount)
	}
}

// TestRangeSummary spans dates and labels the result with the range.
func TestRangeSummary(t *testing.T) {
	db := newTestDB(t)
	reports := NewReportService(db, nil)
	sales := newSaleService(db)
	p := seedProduct(t, db, "Sweets Mix", "6006005", 2.00, 100)

	completed := completeCashSale(t, sales, p.ID, 5)

	summary, err := reports.RangeSummary("2020-01-01", "2099-12-31")
	if err != nil {
		t.Fatalf("RangeSummary failed: %v", err)
	}
	if summary.Date != "2020-01-01 to 2099-12-31" {
		t.Errorf("unexpected range label %q", summary.Date)
	}
	if summary.SaleCount != 1 || summary.GrossTotal != 10.00 {
		t.Errorf("expected the sale inside the range, got %+v", summary)
	}

	// A range before the sale sees nothing.
	empty, err := reports.RangeSummary("2019-01-01", "2019-12-31")
	if err != nil {
		t.Fatalf("RangeSummary failed: %v", err)
	}
	if empty.SaleCount != 0 {
		t.Errorf("expected empty range, got %d sales", empty.SaleCount)
	}

	if _, err := reports.RangeSummary(completed.SaleDate, "soon"); err == nil {
		t.Error("expected error for malformed end date")
	}
}

// TestTopProductsOrdering ranks by quantity, then revenue, then name.
func TestTopProductsOrdering(t *testing.T) {
	db := newTestDB(t)
	reports := NewReportService(db, nil)
	sales := newSaleService(db)

	apples := seedProduct(t, db, "Apples", "6006006", 10.00, 100)
	bananas := seedProduct(t, db, "Bananas", "6006007", 10.00, 100)
	cheese := seedProduct(t, db, "Cheese", "6006008", 12.00, 100)

	// Apples and Bananas tie on quantity and revenue; Cheese sells fewer
	// units but earns more per unit.
	if _, err := sales.StartSale(testUserID); err != nil {
		t.Fatalf("StartSale failed: %v", err)
	}
	for _, add := range []struct {
		id  int64
		qty int
	}{{apples.ID, 5}, {bananas.ID, 5}, {cheese.ID, 4}} {
		if _, err := sales.AddItem(add.id, add.qty); err != nil {
			t.Fatalf("AddItem failed: %v", err)
		}
	}
	current, err := sales.CurrentSale()
	if err != nil {
		t.Fatalf("CurrentSale failed: %v", err)
	}
	if _, err := sales.SetPayment(models.PaymentCash, current.TotalAmount(), 0); err != nil {
		t.Fatalf("SetPayment failed: %v", err)
	}
	completed, err := sales.CompleteSale()
	if err != nil {
		t.Fatalf("CompleteSale failed: %v", err)
	}

	top, err := reports.TopProducts(completed.SaleDate, completed.SaleDate, 0)
	if err != nil {
		t.Fatalf("TopProducts failed: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("expected 3 ranked products, got %d", len(top))
	}
	if top[0].Name != "Apples" || top[1].Name != "Bananas" {
		t.Errorf("expected alphabetical tie-break [Apples, Bananas], got [%s, %s]",
			top[0].Name, top[1].Name)
	}
	if top[2].Name != "Cheese" || top[2].Quantity != 4 || top[2].Total != 48.00 {
		t.Errorf("expected Cheese last with 4 units for 48.00, got %+v", top[2])
	}

	limited, err := reports.TopProducts(completed.SaleDate, completed.SaleDate, 1)
	if err != nil {
		t.Fatalf("TopProducts with limit failed: %v", err)
	}
	if len(limited) != 1 || limited[0].Name != "Apples" {
		t.Errorf("expected only the top seller, got %+v", limited)
	}
}

// TestStockAlerts reports each low product with its shortfall.
func TestStockAlerts(t *testing.T) {
	db := newTestDB(t)
	reports := NewReportService(db, nil)
	products := NewProductService(db)

	if _, err := products.CreateProduct(ProductInput{
		Name: "Running Low", Category: models.CategoryFood,
		SellPrice: 5, InitialStock: 3, MinStock: 5, VATInclusive: true,
	}, testUserID); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if _, err := products.CreateProduct(ProductInput{
		Name: "Fully Stocked", Category: models.CategoryFood,
		SellPrice: 5, InitialStock: 40, MinStock: 5, VATInclusive: true,
	}, testUserID); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}

	alerts, err := reports.StockAlerts()
	if err != nil {
		t.Fatalf("StockAlerts failed: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Product.Name != "Running Low" {
		t.Errorf("expected Running Low flagged, got %q", alerts[0].Product.Name)
	}
	if alerts[0].Deficit != 2 {
		t.Errorf("expected deficit 2, got %d", alerts[0].Deficit)
	}
}
