package models

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/username/tillpoint/backend/src/utils"
)

// InsertDailyCash opens the drawer record for a business date. The UNIQUE
// constraint on date turns a second open into ErrDayAlreadyStarted.
func InsertDailyCash(q DBTX, rec *DailyCash) error {
	res, err := q.Exec(`
		INSERT INTO daily_cash (date, opening_amount, cash_sales, card_sales,
			withdrawals, expected_closing, actual_closing, variance,
			reconciled, opened_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		rec.Date, rec.OpeningAmount, rec.CashSales, rec.CardSales,
		rec.Withdrawals, rec.ExpectedClosing, rec.ActualClosing, rec.Variance,
		rec.OpenedBy, rec.CreatedAt)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed: daily_cash.date") {
			return fmt.Errorf("%w: %s", ErrDayAlreadyStarted, rec.Date)
		}
		return fmt.Errorf("opening drawer for %s: %w", rec.Date, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}

const dailyCashColumns = `id, date, opening_amount, cash_sales, card_sales,
	withdrawals, expected_closing, actual_closing, variance,
	reconciled, reconciled_by, reconciled_at, notes, opened_by, created_at`

func scanDailyCash(row interface{ Scan(dest ...any) error }) (*DailyCash, error) {
	var rec DailyCash
	var reconciledBy sql.NullInt64
	var reconciledAt sql.NullTime
	var notes sql.NullString
	err := row.Scan(&rec.ID, &rec.Date, &rec.OpeningAmount, &rec.CashSales,
		&rec.CardSales, &rec.Withdrawals, &rec.ExpectedClosing,
		&rec.ActualClosing, &rec.Variance,
		&rec.Reconciled, &reconciledBy, &reconciledAt, &notes,
		&rec.OpenedBy, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.ReconciledBy = reconciledBy.Int64
	if reconciledAt.Valid {
		t := reconciledAt.Time
		rec.ReconciledAt = &t
	}
	rec.Notes = notes.String
	return &rec, nil
}

// GetDailyCashByDate loads the drawer record for one business date.
func GetDailyCashByDate(q DBTX, date string) (*DailyCash, error) {
	row := q.QueryRow(`SELECT `+dailyCashColumns+` FROM daily_cash WHERE date = ?`, date)
	rec, err := scanDailyCash(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrDayNotStarted, date)
		}
		return nil, fmt.Errorf("loading drawer for %s: %w", date, err)
	}
	return rec, nil
}

// SalesTotalsForDate sums the completed sales of a date into the drawer's
// cash and card columns. The cash side counts what stayed in the till, so
// change handed back is excluded and the card leg of a mixed payment is not
// double counted.
func SalesTotalsForDate(q DBTX, date string) (cashTotal, cardTotal float64, err error) {
	row := q.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN payment_method IN ('cash', 'mixed')
				THEN cash_amount - change_amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN payment_method IN ('card', 'mixed')
				THEN card_amount ELSE 0 END), 0)
		FROM sales
		WHERE sale_date = ? AND voided = 0`, date)
	if err := row.Scan(&cashTotal, &cardTotal); err != nil {
		return 0, 0, fmt.Errorf("summing sales for %s: %w", date, err)
	}
	return cashTotal, cardTotal, nil
}

// UpdateDailySalesTotals writes refreshed sales totals and the expected
// closing amount onto an open drawer record.
func UpdateDailySalesTotals(q DBTX, date string, cashSales, cardSales, expected float64) error {
	_, err := q.Exec(`
		UPDATE daily_cash
		SET cash_sales = ?, card_sales = ?, expected_closing = ?
		WHERE date = ? AND reconciled = 0`,
		cashSales, cardSales, expected, date)
	if err != nil {
		return fmt.Errorf("updating drawer totals for %s: %w", date, err)
	}
	return nil
}

// AddDailyWithdrawal accumulates a cash withdrawal and lowers the expected
// closing amount to match.
func AddDailyWithdrawal(q DBTX, date string, amount, expected float64) error {
	res, err := q.Exec(`
		UPDATE daily_cash
		SET withdrawals = withdrawals + ?, expected_closing = ?
		WHERE date = ? AND reconciled = 0`,
		amount, expected, date)
	if err != nil {
		return fmt.Errorf("recording withdrawal for %s: %w", date, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyReconciled, date)
	}
	return nil
}

// MarkDailyCashReconciled closes the drawer with the counted amount. The
// guard on the reconciled flag makes a second count fail.
func MarkDailyCashReconciled(q DBTX, date string, actual, variance float64, notes string, userID int64, at time.Time) error {
	res, err := q.Exec(`
		UPDATE daily_cash
		SET actual_closing = ?, variance = ?, notes = ?,
			reconciled = 1, reconciled_by = ?, reconciled_at = ?
		WHERE date = ? AND reconciled = 0`,
		actual, variance, notes, userID, at, date)
	if err != nil {
		return fmt.Errorf("reconciling drawer for %s: %w", date, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyReconciled, date)
	}
	return nil
}

// ListDailyCash returns the most recent drawer records, newest date first.
func ListDailyCash(q DBTX, limit int) ([]DailyCash, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := q.Query(`SELECT `+dailyCashColumns+` FROM daily_cash ORDER BY date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DailyCash
	for rows.Next() {
		rec, err := scanDailyCash(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// InsertCashLog appends one line to the drawer activity log.
func InsertCashLog(q DBTX, entry *CashLogEntry) error {
	res, err := q.Exec(`
		INSERT INTO cash_log (user_id, activity_time, activity_date, description)
		VALUES (?, ?, ?, ?)`,
		entry.UserID, entry.ActivityTime, utils.BusinessDate(entry.ActivityTime), entry.Description)
	if err != nil {
		return fmt.Errorf("writing cash log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = id
	return nil
}

// CashLogForDate lists drawer activity for one business date, oldest first.
func CashLogForDate(q DBTX, date string) ([]CashLogEntry, error) {
	rows, err := q.Query(`
		SELECT cl.id, cl.user_id, COALESCE(u.username, ''), cl.activity_time, cl.description
		FROM cash_log cl
		LEFT JOIN users u ON u.id = cl.user_id
		WHERE cl.activity_date = ?
		ORDER BY cl.activity_time, cl.id`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []CashLogEntry
	for rows.Next() {
		var e CashLogEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Username, &e.ActivityTime, &e.Description); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
