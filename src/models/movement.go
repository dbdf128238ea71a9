package models

import (
	"database/sql"
	"fmt"
	"time"
)

// ApplyStockDelta is the single mutation path for a product's stock level.
// It reads the current count, applies the delta, and appends the audit
// movement in the same call. The stock never goes below zero. Callers that
// need the read-check-write to be atomic against other writers must pass a
// *sql.Tx.
func ApplyStockDelta(q DBTX, productID int64, delta int, kind string, userID int64, reason string, referenceID int64) (*StockMovement, error) {
	var current int
	err := q.QueryRow(`SELECT current_stock FROM products WHERE id = ?`, productID).Scan(&current)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
		}
		return nil, fmt.Errorf("reading stock for product %d: %w", productID, err)
	}

	newStock := current + delta
	if newStock < 0 {
		return nil, fmt.Errorf("%w: available %d, requested change %d", ErrInsufficientStock, current, delta)
	}

	now := time.Now()
	if _, err := q.Exec(`UPDATE products SET current_stock = ?, updated_at = ? WHERE id = ?`,
		newStock, now, productID); err != nil {
		return nil, fmt.Errorf("updating stock for product %d: %w", productID, err)
	}

	m := &StockMovement{
		ProductID:      productID,
		MovementType:   kind,
		QuantityChange: delta,
		PreviousStock:  current,
		NewStock:       newStock,
		UserID:         userID,
		Reason:         reason,
		ReferenceID:    referenceID,
		CreatedAt:      now,
	}

	var refID any
	if referenceID != 0 {
		refID = referenceID
	}
	res, err := q.Exec(`
		INSERT INTO stock_movements (product_id, movement_type, quantity_change,
			previous_stock, new_stock, user_id, reason, reference_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ProductID, m.MovementType, m.QuantityChange,
		m.PreviousStock, m.NewStock, m.UserID, m.Reason, refID, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("recording stock movement for product %d: %w", productID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	m.ID = id
	return m, nil
}

func queryMovements(q DBTX, query string, args ...any) ([]StockMovement, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		var reason sql.NullString
		var refID sql.NullInt64
		var productName, username sql.NullString
		err := rows.Scan(&m.ID, &m.ProductID, &m.MovementType, &m.QuantityChange,
			&m.PreviousStock, &m.NewStock, &m.UserID, &reason, &refID, &m.CreatedAt,
			&productName, &username)
		if err != nil {
			return nil, err
		}
		m.Reason = reason.String
		m.ReferenceID = refID.Int64
		m.ProductName = productName.String
		m.Username = username.String
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

const movementSelect = `
	SELECT m.id, m.product_id, m.movement_type, m.quantity_change,
		m.previous_stock, m.new_stock, m.user_id, m.reason, m.reference_id,
		m.created_at, p.name, u.username
	FROM stock_movements m
	LEFT JOIN products p ON p.id = m.product_id
	LEFT JOIN users u ON u.id = m.user_id`

// MovementsForProduct lists a product's audit trail, newest first.
func MovementsForProduct(q DBTX, productID int64, limit int) ([]StockMovement, error) {
	if limit <= 0 {
		limit = 50
	}
	return queryMovements(q, movementSelect+`
		WHERE m.product_id = ?
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ?`, productID, limit)
}

// RecentMovements lists the latest audit entries across all products.
func RecentMovements(q DBTX, limit int) ([]StockMovement, error) {
	if limit <= 0 {
		limit = 50
	}
	return queryMovements(q, movementSelect+`
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ?`, limit)
}

// LowStockProducts lists active products at or below their minimum stock,
// most urgent first.
func LowStockProducts(q DBTX) ([]Product, error) {
	return queryProducts(q, `
		SELECT `+productColumns+` FROM products
		WHERE archived = 0 AND current_stock <= min_stock
		ORDER BY current_stock, name`)
}
