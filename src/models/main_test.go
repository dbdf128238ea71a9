package models

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/username/tillpoint/backend/src/database"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "models_test.db"))
	if err != nil {
		t.Fatalf("opening test database failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.EnsureSchema(db); err != nil {
		t.Fatalf("applying schema failed: %v", err)
	}
	return db
}

func insertTestProduct(t *testing.T, db *sql.DB, name, barcode string, price float64, stock int) *Product {
	t.Helper()
	p := &Product{
		Name:         name,
		Barcode:      barcode,
		Category:     CategoryFood,
		CostPrice:    price / 2,
		SellPrice:    price,
		CurrentStock: stock,
		MonthlyStock: stock,
		MinStock:     2,
		VATRate:      15.0,
		VATInclusive: true,
	}
	if err := InsertProduct(db, p); err != nil {
		t.Fatalf("inserting product %q failed: %v", name, err)
	}
	return p
}

func insertTestSale(t *testing.T, db *sql.DB, ref string, at time.Time, method string, items []SaleItem) *Sale {
	t.Helper()
	s := &Sale{
		TransactionRef: ref,
		DateTime:       at,
		UserID:         1,
		Items:          items,
		PaymentMethod:  method,
	}
	total := s.TotalAmount()
	switch method {
	case PaymentCash:
		s.CashAmount = total
	case PaymentCard:
		s.CardAmount = total
	}
	if err := InsertSale(db, s); err != nil {
		t.Fatalf("inserting sale %s failed: %v", ref, err)
	}
	return s
}
