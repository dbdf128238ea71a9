package services

import (
	"database/sql"
	"fmt"

	"github.com/username/tillpoint/backend/src/config"
	"github.com/username/tillpoint/backend/src/logger"
	"github.com/username/tillpoint/backend/src/models"
	"github.com/username/tillpoint/backend/src/security/validation"
)

type productServiceImpl struct {
	db *sql.DB
}

// NewProductService creates a ProductService backed by the given database.
func NewProductService(db *sql.DB) ProductService {
	return &productServiceImpl{db: db}
}

func productFromInput(input ProductInput) *models.Product {
	p := &models.Product{
		Name:         validation.CleanText(input.Name),
		Barcode:      validation.CleanText(input.Barcode),
		Category:     input.Category,
		CostPrice:    input.CostPrice,
		SellPrice:    input.SellPrice,
		MinStock:     input.MinStock,
		VATInclusive: input.VATInclusive,
		VATRate:      input.VATRate,
		ExpiryDate:   input.ExpiryDate,
	}
	if p.VATInclusive && p.VATRate == 0 {
		p.VATRate = config.Cfg.DefaultVATRate
	}
	if !p.VATInclusive {
		p.VATRate = 0
	}
	return p
}

func (s *productServiceImpl) CreateProduct(input ProductInput, userID int64) (*models.Product, error) {
	p := productFromInput(input)
	p.MonthlyStock = input.InitialStock
	if err := p.Validate(); err != nil {
		return nil, err
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if err := models.InsertProduct(dbTx, p); err != nil {
		return nil, err
	}
	if input.InitialStock > 0 {
		movement, err := models.ApplyStockDelta(dbTx, p.ID, input.InitialStock,
			models.MovementAddition, userID, "Initial stock", 0)
		if err != nil {
			return nil, err
		}
		p.CurrentStock = movement.NewStock
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit product creation: %w", err)
	}
	logger.L.Info("product created", "productID", p.ID, "name", p.Name, "initialStock", input.InitialStock, "userID", userID)
	return p, nil
}

func (s *productServiceImpl) UpdateProduct(id int64, input ProductInput) (*models.Product, error) {
	current, err := models.GetProductByID(s.db, id)
	if err != nil {
		return nil, err
	}

	p := productFromInput(input)
	p.ID = id
	p.CurrentStock = current.CurrentStock
	p.MonthlyStock = current.MonthlyStock
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := models.UpdateProductRow(s.db, p); err != nil {
		return nil, err
	}
	return models.GetProductByID(s.db, id)
}

func (s *productServiceImpl) GetProduct(id int64) (*models.Product, error) {
	return models.GetProductByID(s.db, id)
}

func (s *productServiceImpl) GetProductByBarcode(barcode string) (*models.Product, error) {
	return models.GetProductByBarcode(s.db, barcode)
}

func (s *productServiceImpl) SearchProducts(query string) ([]models.Product, error) {
	return models.SearchProducts(s.db, query)
}

func (s *productServiceImpl) ProductsByCategory(category string) ([]models.Product, error) {
	if !models.ValidCategory(category) {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	return models.ProductsByCategory(s.db, category)
}

func (s *productServiceImpl) ListProducts(includeArchived bool) ([]models.Product, error) {
	return models.AllProducts(s.db, includeArchived)
}

func (s *productServiceImpl) ArchivedProducts() ([]models.Product, error) {
	return models.ArchivedProducts(s.db)
}

// DeletionConstraints reports whether a product can be removed outright.
// Products referenced by sales or stock history should be archived instead
// so past receipts and the movement ledger keep their context.
func (s *productServiceImpl) DeletionConstraints(id int64) (*DeletionCheck, error) {
	if _, err := models.GetProductByID(s.db, id); err != nil {
		return nil, err
	}
	saleCount, err := models.CountSalesForProduct(s.db, id)
	if err != nil {
		return nil, err
	}
	movementCount, err := models.CountMovementsForProduct(s.db, id)
	if err != nil {
		return nil, err
	}

	check := &DeletionCheck{
		SaleCount:     saleCount,
		MovementCount: movementCount,
		CanDelete:     saleCount == 0,
	}
	if !check.CanDelete {
		check.Suggestion = "archive"
	}
	return check, nil
}

func (s *productServiceImpl) DeleteProduct(id int64, userID int64, force bool) error {
	p, err := models.GetProductByID(s.db, id)
	if err != nil {
		return err
	}
	check, err := s.DeletionConstraints(id)
	if err != nil {
		return err
	}
	if !check.CanDelete && !force {
		return fmt.Errorf("%w: %d sales reference product %d", models.ErrProductHasHistory, check.SaleCount, id)
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if p.CurrentStock > 0 {
		_, err := models.ApplyStockDelta(dbTx, id, -p.CurrentStock,
			models.MovementDeletion, userID, "Product deleted", 0)
		if err != nil {
			return err
		}
	}
	if err := models.DeleteProductRow(dbTx, id); err != nil {
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit product deletion: %w", err)
	}
	logger.L.Info("product deleted", "productID", id, "name", p.Name, "forced", force, "userID", userID)
	return nil
}

func (s *productServiceImpl) ArchiveProduct(id int64, userID int64) error {
	if err := models.SetProductArchived(s.db, id, true); err != nil {
		return err
	}
	logger.L.Info("product archived", "productID", id, "userID", userID)
	return nil
}

func (s *productServiceImpl) RestoreProduct(id int64, userID int64) error {
	if err := models.SetProductArchived(s.db, id, false); err != nil {
		return err
	}
	logger.L.Info("product restored", "productID", id, "userID", userID)
	return nil
}

