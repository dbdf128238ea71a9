package models

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const productColumns = `id, name, barcode, category, cost_price, sell_price,
	current_stock, monthly_stock, min_stock, vat_rate, vat_inclusive,
	archived, expiry_date, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*Product, error) {
	var p Product
	var barcode, expiry sql.NullString
	err := row.Scan(
		&p.ID, &p.Name, &barcode, &p.Category, &p.CostPrice, &p.SellPrice,
		&p.CurrentStock, &p.MonthlyStock, &p.MinStock, &p.VATRate, &p.VATInclusive,
		&p.Archived, &expiry, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Barcode = barcode.String
	p.ExpiryDate = expiry.String
	return &p, nil
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// InsertProduct writes a new catalog entry and sets its assigned ID.
func InsertProduct(q DBTX, p *Product) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	res, err := q.Exec(`
		INSERT INTO products (name, barcode, category, cost_price, sell_price,
			current_stock, monthly_stock, min_stock, vat_rate, vat_inclusive,
			archived, expiry_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, nullIfEmpty(p.Barcode), p.Category, p.CostPrice, p.SellPrice,
		p.CurrentStock, p.MonthlyStock, p.MinStock, p.VATRate, p.VATInclusive,
		p.Archived, nullIfEmpty(p.ExpiryDate), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed: products.barcode") {
			return fmt.Errorf("%w: %s", ErrDuplicateBarcode, p.Barcode)
		}
		return fmt.Errorf("inserting product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

// UpdateProductRow rewrites a product's catalog attributes. Stock and the
// archived flag have their own mutation paths and are left alone here.
func UpdateProductRow(q DBTX, p *Product) error {
	p.UpdatedAt = time.Now()
	res, err := q.Exec(`
		UPDATE products
		SET name = ?, barcode = ?, category = ?, cost_price = ?, sell_price = ?,
			monthly_stock = ?, min_stock = ?, vat_rate = ?, vat_inclusive = ?,
			expiry_date = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, nullIfEmpty(p.Barcode), p.Category, p.CostPrice, p.SellPrice,
		p.MonthlyStock, p.MinStock, p.VATRate, p.VATInclusive,
		nullIfEmpty(p.ExpiryDate), p.UpdatedAt, p.ID)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed: products.barcode") {
			return fmt.Errorf("%w: %s", ErrDuplicateBarcode, p.Barcode)
		}
		return fmt.Errorf("updating product %d: %w", p.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrProductNotFound, p.ID)
	}
	return nil
}

// GetProductByID loads one product, archived or not.
func GetProductByID(q DBTX, id int64) (*Product, error) {
	p, err := scanProduct(q.QueryRow(`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, id)
		}
		return nil, fmt.Errorf("loading product %d: %w", id, err)
	}
	return p, nil
}

// GetProductByBarcode loads one product by its barcode.
func GetProductByBarcode(q DBTX, barcode string) (*Product, error) {
	p, err := scanProduct(q.QueryRow(`SELECT `+productColumns+` FROM products WHERE barcode = ?`, barcode))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: barcode %s", ErrProductNotFound, barcode)
		}
		return nil, fmt.Errorf("loading product by barcode %s: %w", barcode, err)
	}
	return p, nil
}

func queryProducts(q DBTX, query string, args ...any) ([]Product, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// SearchProducts matches active products by name or barcode.
func SearchProducts(q DBTX, term string) ([]Product, error) {
	pattern := "%" + term + "%"
	return queryProducts(q, `
		SELECT `+productColumns+` FROM products
		WHERE archived = 0 AND (name LIKE ? OR barcode LIKE ?)
		ORDER BY name`, pattern, pattern)
}

// ProductsByCategory lists active products in one category.
func ProductsByCategory(q DBTX, category string) ([]Product, error) {
	return queryProducts(q, `
		SELECT `+productColumns+` FROM products
		WHERE archived = 0 AND category = ?
		ORDER BY name`, category)
}

// AllProducts lists the catalog, optionally including archived entries.
func AllProducts(q DBTX, includeArchived bool) ([]Product, error) {
	if includeArchived {
		return queryProducts(q, `SELECT `+productColumns+` FROM products ORDER BY name`)
	}
	return queryProducts(q, `SELECT `+productColumns+` FROM products WHERE archived = 0 ORDER BY name`)
}

// ArchivedProducts lists only archived entries.
func ArchivedProducts(q DBTX) ([]Product, error) {
	return queryProducts(q, `SELECT `+productColumns+` FROM products WHERE archived = 1 ORDER BY name`)
}

// SetProductArchived flips the soft-delete flag.
func SetProductArchived(q DBTX, id int64, archived bool) error {
	res, err := q.Exec(`UPDATE products SET archived = ?, updated_at = ? WHERE id = ?`,
		archived, time.Now(), id)
	if err != nil {
		return fmt.Errorf("archiving product %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrProductNotFound, id)
	}
	return nil
}

// DeleteProductRow removes a catalog row. Callers are responsible for the
// history checks; movement and sale rows referencing the product are kept.
func DeleteProductRow(q DBTX, id int64) error {
	res, err := q.Exec(`DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrProductNotFound, id)
	}
	return nil
}

// CountSalesForProduct counts sale lines that reference the product.
func CountSalesForProduct(q DBTX, id int64) (int, error) {
	var n int
	err := q.QueryRow(`SELECT COUNT(*) FROM sale_items WHERE product_id = ?`, id).Scan(&n)
	return n, err
}

// CountMovementsForProduct counts audit entries that reference the product.
func CountMovementsForProduct(q DBTX, id int64) (int, error) {
	var n int
	err := q.QueryRow(`SELECT COUNT(*) FROM stock_movements WHERE product_id = ?`, id).Scan(&n)
	return n, err
}
