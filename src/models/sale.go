package models

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/username/tillpoint/backend/src/utils"
)

// InsertSale persists a sale and its lines, setting the assigned IDs.
// Run it inside a transaction together with the stock reductions so a
// completed sale and its ledger effect are one durable unit.
func InsertSale(q DBTX, s *Sale) error {
	var voidedBy, voidReason any
	var voidedAt any
	if s.Voided {
		voidedBy = s.VoidedBy
		voidReason = s.VoidReason
		voidedAt = s.VoidedAt
	}
	s.SaleDate = utils.BusinessDate(s.DateTime)
	res, err := q.Exec(`
		INSERT INTO sales (transaction_ref, date_time, sale_date, user_id,
			payment_method, cash_amount, card_amount, change_amount,
			voided, voided_by, voided_at, void_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.TransactionRef, s.DateTime, s.SaleDate, s.UserID,
		s.PaymentMethod, s.CashAmount, s.CardAmount, s.ChangeAmount,
		s.Voided, voidedBy, voidedAt, voidReason)
	if err != nil {
		return fmt.Errorf("inserting sale %s: %w", s.TransactionRef, err)
	}
	saleID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = saleID

	for i := range s.Items {
		item := &s.Items[i]
		item.SaleID = saleID
		res, err := q.Exec(`
			INSERT INTO sale_items (sale_id, product_id, product_name,
				quantity, unit_price, total_price, vat_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.SaleID, item.ProductID, item.ProductName,
			item.Quantity, item.UnitPrice, item.TotalPrice, item.VATRate)
		if err != nil {
			return fmt.Errorf("inserting sale item for %s: %w", s.TransactionRef, err)
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		item.ID = itemID
	}
	return nil
}

const saleJoinSelect = `
	SELECT s.id, s.transaction_ref, s.date_time, s.sale_date, s.user_id, s.payment_method,
		s.cash_amount, s.card_amount, s.change_amount,
		s.voided, s.voided_by, s.voided_at, s.void_reason,
		si.id, si.product_id, si.product_name, si.quantity,
		si.unit_price, si.total_price, si.vat_rate
	FROM sales s
	LEFT JOIN sale_items si ON si.sale_id = s.id`

// querySales runs a sale+items join and folds the rows back into sales.
// The query must be ordered by sale first so lines group together.
func querySales(q DBTX, query string, args ...any) ([]Sale, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []Sale
	var current *Sale
	for rows.Next() {
		var s Sale
		var method sql.NullString
		var voidedBy sql.NullInt64
		var voidedAt sql.NullTime
		var voidReason sql.NullString
		var itemID, productID, quantity sql.NullInt64
		var productName sql.NullString
		var unitPrice, totalPrice, vatRate sql.NullFloat64

		err := rows.Scan(&s.ID, &s.TransactionRef, &s.DateTime, &s.SaleDate, &s.UserID, &method,
			&s.CashAmount, &s.CardAmount, &s.ChangeAmount,
			&s.Voided, &voidedBy, &voidedAt, &voidReason,
			&itemID, &productID, &productName, &quantity,
			&unitPrice, &totalPrice, &vatRate)
		if err != nil {
			return nil, err
		}
		s.PaymentMethod = method.String
		s.VoidedBy = voidedBy.Int64
		if voidedAt.Valid {
			t := voidedAt.Time
			s.VoidedAt = &t
		}
		s.VoidReason = voidReason.String

		if current == nil || current.ID != s.ID {
			sales = append(sales, s)
			current = &sales[len(sales)-1]
		}
		if itemID.Valid {
			current.Items = append(current.Items, SaleItem{
				ID:          itemID.Int64,
				SaleID:      current.ID,
				ProductID:   productID.Int64,
				ProductName: productName.String,
				Quantity:    int(quantity.Int64),
				UnitPrice:   unitPrice.Float64,
				TotalPrice:  totalPrice.Float64,
				VATRate:     vatRate.Float64,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

// GetSaleByID loads one sale with its lines, voided or not.
func GetSaleByID(q DBTX, id int64) (*Sale, error) {
	sales, err := querySales(q, saleJoinSelect+` WHERE s.id = ? ORDER BY si.id`, id)
	if err != nil {
		return nil, fmt.Errorf("loading sale %d: %w", id, err)
	}
	if len(sales) == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrSaleNotFound, id)
	}
	return &sales[0], nil
}

// GetSaleByRef loads one sale by its transaction reference.
func GetSaleByRef(q DBTX, ref string) (*Sale, error) {
	sales, err := querySales(q, saleJoinSelect+` WHERE s.transaction_ref = ? ORDER BY si.id`, ref)
	if err != nil {
		return nil, fmt.Errorf("loading sale %s: %w", ref, err)
	}
	if len(sales) == 0 {
		return nil, fmt.Errorf("%w: ref %s", ErrSaleNotFound, ref)
	}
	return &sales[0], nil
}

// SalesByDate lists the non-voided sales of one business date, newest first.
func SalesByDate(q DBTX, date string) ([]Sale, error) {
	return querySales(q, saleJoinSelect+`
		WHERE s.sale_date = ? AND s.voided = 0
		ORDER BY s.date_time DESC, s.id DESC, si.id`, date)
}

// SalesByDateRange lists non-voided sales between two business dates,
// inclusive, newest first.
func SalesByDateRange(q DBTX, start, end string) ([]Sale, error) {
	return querySales(q, saleJoinSelect+`
		WHERE s.sale_date >= ? AND s.sale_date <= ? AND s.voided = 0
		ORDER BY s.date_time DESC, s.id DESC, si.id`, start, end)
}

// MarkSaleVoided flips a sale to voided with its metadata. The guard on the
// voided flag makes a double void fail even under concurrent callers.
func MarkSaleVoided(q DBTX, id int64, userID int64, reason string, at time.Time) error {
	res, err := q.Exec(`
		UPDATE sales
		SET voided = 1, voided_by = ?, voided_at = ?, void_reason = ?
		WHERE id = ? AND voided = 0`,
		userID, at, reason, id)
	if err != nil {
		return fmt.Errorf("voiding sale %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrSaleAlreadyVoided, id)
	}
	return nil
}
