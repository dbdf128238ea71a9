package services

import (
	"errors"
	"testing"

	"github.com/username/tillpoint/backend/src/models"
)

// TestCreateProductRecordsInitialStock verifies opening stock lands in the
// ledger, not just on the product row.
func TestCreateProductRecordsInitialStock(t *testing.T) {
	db := newTestDB(t)
	products := NewProductService(db)
	stock := NewStockService(db)

	p, err := products.CreateProduct(ProductInput{
		Name:         "Samp 1kg",
		Barcode:      "6002001",
		Category:     models.CategoryFood,
		CostPrice:    9.00,
		SellPrice:    14.50,
		InitialStock: 24,
		MinStock:     6,
		VATInclusive: true,
	}, testUserID)
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("created product has no ID")
	}
	if p.CurrentStock != 24 {
		t.Errorf("expected current stock 24, got %d", p.CurrentStock)
	}
	if p.MonthlyStock != 24 {
		t.Errorf("expected monthly stock 24, got %d", p.MonthlyStock)
	}

	movements, err := stock.MovementsFor(p.ID, 0)
	if err != nil {
		t.Fatalf("MovementsFor failed: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected a single initial movement, got %d", len(movements))
	}
	initial := movements[0]
	if initial.MovementType != models.MovementAddition {
		t.Errorf("expected addition, got %s", initial.MovementType)
	}
	if initial.Reason != "Initial stock" {
		t.Errorf("expected reason %q, got %q", "Initial stock", initial.Reason)
	}
	if initial.PreviousStock != 0 || initial.NewStock != 24 {
		t.Errorf("unexpected movement figures: %+v", initial)
	}
}

// TestCreateProductWithoutStock writes no movement at all.
func TestCreateProductWithoutStock(t *testing.T) {
	db := newTestDB(t)
	products := NewProductService(db)
	stock := NewStockService(db)

	p, err := products.CreateProduct(ProductInput{
		Name:         "Seasonal Item",
		Category:     models.CategoryOther,
		SellPrice:    5.00,
		VATInclusive: true,
	}, testUserID)
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	movements, err := stock.MovementsFor(p.ID, 0)
	if err != nil {
		t.Fatalf("MovementsFor failed: %v", err)
	}
	if len(movements) != 0 {
		t.Errorf("expected no movements for zero opening stock, got %d", len(movements))
	}
}

// TestCreateProductVATDefaulting pins down the VAT snapshot rules: inclusive
// products without an explicit rate get the configured default, exclusive
// products carry rate zero no matter what was sent.
func TestCreateProductVATDefaulting(t *testing.T) {
	db := newTestDB(t)
	products := NewProductService(db)

	inclusive, err := products.CreateProduct(ProductInput{
		Name: "Standard Rated", Category: models.CategoryFood,
		SellPrice: 10, VATInclusive: true,
	}, testUserID)
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if inclusive.VATRate != 15.0 {
		t.Errorf("expected default VAT rate 15.0, got %g", inclusive.VATRate)
	}

	explicit, err := products.CreateProduct(ProductInput{
		Name: "Custom Rated", Category: models.CategoryFood,
		SellPrice: 10, VATInclusive: true, VATRate: 14.0,
	}, testUserID)
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if explicit.VATRate != 14.0 {
		t.Errorf("expected explicit VAT rate 14.0, got %g", explicit.VATRate)
	}

	exempt, err := products.CreateProduct(ProductInput{
		Name: "Zero Rated", Category: models.CategoryFood,
		SellPrice: 10, VATInclusive: false, VATRate: 15.0,
	}, testUserID)
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if exempt.VATRate != 0 {
		t.Errorf("expected VAT-exclusive product to carry rate 0, got %g", exempt.VATRate)
	}
}

// TestCreateProductValidation rejects bad catalog entries.
func TestCreateProductValidation(t *testing.T) {
	db := newTestDB(t)
	products := NewProductService(db)

	if _, err := products.CreateProduct(ProductInput{
		Name: "   ", Category: models.CategoryFood, SellPrice: 5,
	}, testUserID); err == nil {
		t.Error("expected error for blank name")
	}
	if _, err := products.CreateProduct(ProductInput{
		Name: "Bad Category", Category: "Electronics", SellPrice: 5,
	}, testUserID); err == nil {
		t.Error("expected error for unknown category")
	}
	if _, err := products.CreateProduct(ProductInput{
		Name: "Negative", Category: models.CategoryFood, SellPrice: -1,
	}, testUserID); err == nil {
		t.Error("expected error for negative price")
	}
}

// TestDuplicateBarcode maps the unique constraint to the domain sentinel.
func TestDuplicateBarcode(t *testing.T) {
	db := newTestDB(t)
	products := NewProductService(db)

	seedProduct(t, db, "First", "7771111", 10, 5)
	_, err := products.CreateProduct(ProductInput{
		Name: "Second", Barcode: "7771111", Category: models.CategoryFood,
		SellPrice: 12, VATInclusive: true,
	}, testUserID)
	if !errors.Is(err, models.ErrDuplicateBarcode) {
		t.Errorf("expected ErrDuplicateBarcode, got %v", err)
	}

	// Products without barcodes never collide with each other.
	if _, err := products.CreateProduct(ProductInput{
		Name: "Loose Veg A", Category: models.CategoryFood, SellPrice: 3, VATInclusive: true,
	}, testUserID); err != nil {
		t.Fatalf("CreateProduct without barcode failed: %v", err)
	}
	if _, err := products.CreateProduct(ProductInput{
		Name: "Loose Veg B", Category: models.CategoryFood, SellPrice: 4, VATInclusive: true,
	}, testUserID); err != nil {
		t.Fatalf("second CreateProduct without barcode failed: %v", err)
	}
}

// TestUpdateProductPreservesStock confirms catalog edits cannot move stock.
func TestUpdateProductPreservesStock(t *testing.T) {
	db := newTestDB(t)
	products := NewProductService(db)
	p := seedProduct(t, db, "Eggs 6pk", "6002002", 18.00, 30)

	updated, err := products.UpdateProduct(p.ID, ProductInput{
		Name:         "Eggs Half Dozen",
		Barcode:      "6002002",
		Category:     models.CategoryFood,
		CostPrice:    12.00,
		SellPrice:    19.50,
		InitialStock: 999, // ignored on update
		MinStock:     10,
		VATInclusive: true,
	})
	if err != nil {
		t.Fatalf("UpdateProduct failed: %v", err)
	}
	if updated.Name != "Eggs Half Dozen" || updated.SellPrice != 19.50 {
		t.Errorf("expected updated attributes, got %q at %.2f", updated.Name, updated.SellPrice)
	}
	if updated.CurrentStock != 30 {
		t.Errorf("expected stock untouched at 30, got %d", updated.CurrentStock)
	}
	if updated.MinStock != 10 {
		t.Errorf("expected min stock 10, got %d", updated.MinStock)
	}

	if _, err := products.UpdateProduct(999999, ProductInput{
		Name: "Ghost", Category: models.CategoryFood, SellPrice: 1, VATInclusive: true,
	}); !errors.Is(err, models.ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}

// TestArchiveAndRestore verifies the soft-delete lifecycle and its effect on
// the listings.
func TestArchiveAndRestore(t *testing.T) {
	db := newTestDB(t)
	products := NewProductService(db)
	p := seedProduct(t, db, "Discontinued Chips", "6002003", 9.00, 4)
	seedProduct(t, db, "Active Chips", "6002004", 9.00, 4)

	if err := products.ArchiveProduct(p.ID, testUserID); err != nil {
		t.Fatalf("ArchiveProduct failed: %v", err)
	}

	active, err := products.ListProducts(false)
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if len(active) != 1 || active[0].Name != "Active Chips" {
		t.Errorf("expected only the active product, got %+v", active)
	}

	everything, err := products.ListProducts(true)
	if err != nil {
		t.Fatalf("ListProducts(true) failed: %v", err)
	}
	if len(everything) != 2 {
		t.Errorf("expected both products when including archived, got %d", len(everything))
	}

	archived, err := products.ArchivedProducts()
	if err != nil {
		t.Fatalf("ArchivedProducts failed: %v", err)
	}
	if len(archived) != 1 || archived[0].ID != p.ID {
		t.Errorf("expected the archived product, got %+v", archived)
	}

	// Archived entries still resolve by ID so history views keep working.
	if _, err := products.GetProduct(p.ID); err != nil {
		t.Errorf("expected archived product to load by ID, got %v", err)
	}

	if err := products.RestoreProduct(p.ID, testUserID); err != nil {
		t.Fatalf("RestoreProduct failed: %v", err)
	}
	active, err = products.ListProducts(false)
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("expected restored product back in listings, got %d", len(active))
	}

	if err := products.ArchiveProduct(123456, testUserID); !errors.Is(err, models.ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound archiving ghost, got %v", err)
	}
}

// TestDeletionConstraints checks the advice given before removing a product.
func TestDeletionConstraints(t *testing.T) {
	db := newTestDB(t)
	products := NewProductService(db)
	sales := newSaleService(db)
	p := seedProduct(t, db, "Scale Test Item", "6002005", 10.00, 8)

	check, err := products.DeletionConstraints(p.ID)
	if err != nil {
		t.Fatalf("DeletionConstraints failed: %v", err)
	}
	if !check.CanDelete {
		t.Error("expected unsold product to be deletable")
	}
	if check.MovementCount != 1 {
		t.Errorf("expected 1 movement (initial stock), got %d", check.MovementCount)
	}

	completeCashSale(t, sales, p.ID, 2)

	check, err = products.DeletionConstraints(p.ID)
	if err != nil {
		t.Fatalf("DeletionConstraints failed: %v", err)
	}
	if check.CanDelete {
		t.Error("expected product with sales history to resist deletion")
	}
	if check.SaleCount != 1 {
		t.Errorf("expected 1 referencing sale line, got %d", check.SaleCount)
	}
	if check.Suggestion != "archive" {
		t.Errorf("expected archive suggestion, got %q", check.Suggestion)
	}

	if _, err := products.DeletionConstraints(888888); !errors.Is(err, models.ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}

// TestDeleteProduct covers the plain delete, the history guard and the
// forced override with its write-off movement.
func TestDeleteProduct(t *testing.T) {
	db := newTestDB(t)
	products := NewProductService(db)
	sales := newSaleService(db)

	clean := seedProduct(t, db, "Never Sold", "6002006", 6.00, 5)
	if err := products.DeleteProduct(clean.ID, testUserID, false); err != nil {
		t.Fatalf("DeleteProduct failed: %v", err)
	}
	if _, err := products.GetProduct(clean.ID); !errors.Is(err, models.ErrProductNotFound) {
		t.Errorf("expected deleted product gone, got %v", err)
	}

	sold := seedProduct(t, db, "Sold Once", "6002007", 6.00, 5)
	completeCashSale(t, sales, sold.ID, 1)

	err := products.DeleteProduct(sold.ID, testUserID, false)
	if !errors.Is(err, models.ErrProductHasHistory) {
		t.Errorf("expected ErrProductHasHistory, got %v", err)
	}

	if err := products.DeleteProduct(sold.ID, testUserID, true); err != nil {
		t.Fatalf("forced DeleteProduct failed: %v", err)
	}
	if _, err := products.GetProduct(sold.ID); !errors.Is(err, models.ErrProductNotFound) {
		t.Errorf("expected force-deleted product gone, got %v", err)
	}

	// The remaining shelf count was written off in the ledger on the way out.
	movements, err := models.RecentMovements(db, 0)
	if err != nil {
		t.Fatalf("RecentMovements failed: %v", err)
	}
	var writeOff *models.StockMovement
	for i := range movements {
		if movements[i].ProductID == sold.ID && movements[i].MovementType == models.MovementDeletion {
			writeOff = &movements[i]
			break
		}
	}
	if writeOff == nil {
		t.Fatal("expected a deletion movement for the written-off stock")
	}
	if writeOff.QuantityChange != -4 || writeOff.NewStock != 0 {
		t.Errorf("expected write-off of remaining 4 units, got %+v", writeOff)
	}
	if writeOff.Reason != "Product deleted" {
		t.Errorf("expected reason %q, got %q", "Product deleted", writeOff.Reason)
	}
}

// TestSearchAndCategoryListing covers the till's lookup paths.
func TestSearchAndCategoryListing(t *testing.T) {
	db := newTestDB(t)
	products := NewProductService(db)

	seedProduct(t, db, "Coke 330ml", "5449000000111", 12.00, 10)
	seedProduct(t, db, "Coke 1L", "5449000000222", 22.00, 10)
	fanta := seedProduct(t, db, "Fanta 330ml", "5449000000333", 12.00, 10)

	byName, err := products.SearchProducts("Coke")
	if err != nil {
		t.Fatalf("SearchProducts failed: %v", err)
	}
	if len(byName) != 2 {
		t.Errorf("expected 2 matches for Coke, got %d", len(byName))
	}

	byBarcode, err := products.SearchProducts("5449000000333")
	if err != nil {
		t.Fatalf("SearchProducts by barcode failed: %v", err)
	}
	if len(byBarcode) != 1 || byBarcode[0].ID != fanta.ID {
		t.Errorf("expected barcode search to find Fanta, got %+v", byBarcode)
	}

	// Archived products drop out of search.
	if err := products.ArchiveProduct(fanta.ID, testUserID); err != nil {
		t.Fatalf("ArchiveProduct failed: %v", err)
	}
	byName, err = products.SearchProducts("330ml")
	if err != nil {
		t.Fatalf("SearchProducts failed: %v", err)
	}
	if len(byName) != 1 {
		t.Errorf("expected archived product out of search, got %d matches", len(byName))
	}

	food, err := products.ProductsByCategory(models.CategoryFood)
	if err != nil {
		t.Fatalf("ProductsByCategory failed: %v", err)
	}
	if len(food) != 2 {
		t.Errorf("expected 2 active food products, got %d", len(food))
	}
	if _, err := products.ProductsByCategory("Hardware"); err == nil {
		t.Error("expected error for unknown category")
	}

	scanned, err := products.GetProductByBarcode("5449000000111")
	if err != nil {
		t.Fatalf("GetProductByBarcode failed: %v", err)
	}
	if scanned.Name != "Coke 330ml" {
		t.Errorf("expected Coke 330ml, got %q", scanned.Name)
	}
	if _, err := products.GetProductByBarcode("none"); !errors.Is(err, models.ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}
