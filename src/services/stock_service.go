package services

import (
	"database/sql"
	"fmt"

	"github.com/username/tillpoint/backend/src/logger"
	"github.com/username/tillpoint/backend/src/models"
	"github.com/username/tillpoint/backend/src/security/validation"
)

type stockServiceImpl struct {
	db *sql.DB
}

// NewStockService creates a StockService backed by the given database.
func NewStockService(db *sql.DB) StockService {
	return &stockServiceImpl{db: db}
}

// Adjust applies a manual stock correction in its own transaction. Positive
// deltas are recorded as additions, negative ones as adjustments.
func (s *stockServiceImpl) Adjust(productID int64, delta int, reason string, userID int64) (*models.StockMovement, error) {
	if delta == 0 {
		return nil, fmt.Errorf("quantity change must not be zero")
	}
	reason = validation.CleanReason(reason, 200)
	movementType := models.MovementAddition
	if delta < 0 {
		movementType = models.MovementAdjustment
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	movement, err := models.ApplyStockDelta(dbTx, productID, delta, movementType, userID, reason, 0)
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit stock adjustment: %w", err)
	}

	logger.L.Info("stock adjusted", "productID", productID, "delta", delta,
		"newStock", movement.NewStock, "reason", reason, "userID", userID)
	return movement, nil
}

// ReduceForSale takes sold quantity off the shelf inside the caller's
// transaction, so a failed sale leaves no movement behind.
func (s *stockServiceImpl) ReduceForSale(q models.DBTX, productID int64, quantity int, userID, saleID int64) (*models.StockMovement, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("sale quantity must be positive, got %d", quantity)
	}
	return models.ApplyStockDelta(q, productID, -quantity, models.MovementSale, userID, "Sale transaction", saleID)
}

// RestoreFromVoid returns a voided sale's quantity to the shelf inside the
// caller's transaction. The restore is recorded as an adjustment so the
// ledger distinguishes it from ordinary restocking.
func (s *stockServiceImpl) RestoreFromVoid(q models.DBTX, productID int64, quantity int, userID, saleID int64, transactionRef string) (*models.StockMovement, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("restore quantity must be positive, got %d", quantity)
	}
	reason := fmt.Sprintf("Stock restored from voided sale %s", transactionRef)
	return models.ApplyStockDelta(q, productID, quantity, models.MovementAdjustment, userID, reason, saleID)
}

func (s *stockServiceImpl) MovementsFor(productID int64, limit int) ([]models.StockMovement, error) {
	if _, err := models.GetProductByID(s.db, productID); err != nil {
		return nil, err
	}
	return models.MovementsForProduct(s.db, productID, limit)
}

func (s *stockServiceImpl) RecentMovements(limit int) ([]models.StockMovement, error) {
	return models.RecentMovements(s.db, limit)
}

func (s *stockServiceImpl) LowStock() ([]models.Product, error) {
	return models.LowStockProducts(s.db)
}
