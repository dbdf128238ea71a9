package services

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/username/tillpoint/backend/src/logger"
	"github.com/username/tillpoint/backend/src/models"
	"github.com/username/tillpoint/backend/src/security/validation"
	"github.com/username/tillpoint/backend/src/utils"
)

type drawerServiceImpl struct {
	db *sql.DB
}

// NewDrawerService creates a DrawerService backed by the given database.
func NewDrawerService(db *sql.DB) DrawerService {
	return &drawerServiceImpl{db: db}
}

func (s *drawerServiceImpl) logActivity(userID int64, description string) {
	entry := &models.CashLogEntry{
		UserID:       userID,
		ActivityTime: time.Now(),
		Description:  description,
	}
	if err := models.InsertCashLog(s.db, entry); err != nil {
		logger.L.Warn("failed to write cash log entry", "description", description, "error", err)
	}
}

func (s *drawerServiceImpl) StartDay(date string, openingAmount float64, userID int64) (*models.DailyCash, error) {
	if _, err := utils.ParseBusinessDate(date); err != nil {
		return nil, err
	}
	if openingAmount < 0 {
		return nil, fmt.Errorf("opening amount must not be negative")
	}

	rec := &models.DailyCash{
		Date:            date,
		OpeningAmount:   openingAmount,
		ExpectedClosing: openingAmount,
		OpenedBy:        userID,
		CreatedAt:       time.Now(),
	}
	if err := models.InsertDailyCash(s.db, rec); err != nil {
		return nil, err
	}

	s.logActivity(userID, fmt.Sprintf("Day started with opening amount R%.2f", openingAmount))
	logger.L.Info("drawer day started", "date", date, "opening", openingAmount, "userID", userID)
	return rec, nil
}

func (s *drawerServiceImpl) CurrentDay(date string) (*models.DailyCash, error) {
	return models.GetDailyCashByDate(s.db, date)
}

// RecomputeSalesTotals re-derives the drawer's cash and card totals from the
// persisted sales of the date, then refreshes the expected closing amount.
func (s *drawerServiceImpl) RecomputeSalesTotals(date string) (*models.DailyCash, error) {
	rec, err := models.GetDailyCashByDate(s.db, date)
	if err != nil {
		return nil, err
	}
	if rec.Reconciled {
		return nil, fmt.Errorf("%w: %s", models.ErrAlreadyReconciled, date)
	}

	cashSales, cardSales, err := models.SalesTotalsForDate(s.db, date)
	if err != nil {
		return nil, err
	}
	expected := utils.RoundCurrency(rec.OpeningAmount + cashSales - rec.Withdrawals)
	if err := models.UpdateDailySalesTotals(s.db, date, cashSales, cardSales, expected); err != nil {
		return nil, err
	}

	rec.CashSales = cashSales
	rec.CardSales = cardSales
	rec.ExpectedClosing = expected
	return rec, nil
}

func (s *drawerServiceImpl) RecordWithdrawal(date string, amount float64, reason string, userID int64) (*models.DailyCash, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("withdrawal amount must be positive")
	}
	reason = validation.CleanReason(reason, 200)
	if reason == "" {
		return nil, fmt.Errorf("withdrawal reason is required")
	}

	rec, err := models.GetDailyCashByDate(s.db, date)
	if err != nil {
		return nil, err
	}
	if rec.Reconciled {
		return nil, fmt.Errorf("%w: %s", models.ErrAlreadyReconciled, date)
	}

	expected := utils.RoundCurrency(rec.OpeningAmount + rec.CashSales - (rec.Withdrawals + amount))
	if err := models.AddDailyWithdrawal(s.db, date, amount, expected); err != nil {
		return nil, err
	}

	s.logActivity(userID, fmt.Sprintf("Cash withdrawal: R%.2f - %s", amount, reason))
	logger.L.Info("cash withdrawal recorded", "date", date, "amount", amount, "reason", reason, "userID", userID)

	rec.Withdrawals = utils.RoundCurrency(rec.Withdrawals + amount)
	rec.ExpectedClosing = expected
	return rec, nil
}

// Reconcile closes the drawer for the date against a physical count. Sales
// totals are always recomputed first so the variance never reflects stale
// figures. The refreshed totals and the terminal flag commit together.
func (s *drawerServiceImpl) Reconcile(date string, actualAmount float64, notes string, userID int64) (*ReconcileResult, error) {
	if actualAmount < 0 {
		return nil, fmt.Errorf("counted amount must not be negative")
	}
	notes = validation.CleanReason(notes, 500)

	rec, err := models.GetDailyCashByDate(s.db, date)
	if err != nil {
		return nil, err
	}
	if rec.Reconciled {
		return nil, fmt.Errorf("%w: %s", models.ErrAlreadyReconciled, date)
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	cashSales, cardSales, err := models.SalesTotalsForDate(dbTx, date)
	if err != nil {
		return nil, err
	}
	expected := utils.RoundCurrency(rec.OpeningAmount + cashSales - rec.Withdrawals)
	if err := models.UpdateDailySalesTotals(dbTx, date, cashSales, cardSales, expected); err != nil {
		return nil, err
	}

	variance := utils.RoundCurrency(actualAmount - expected)
	status := DrawerBalanced
	switch {
	case variance >= 0.01:
		status = DrawerOver
	case variance <= -0.01:
		status = DrawerShort
	}

	now := time.Now()
	if err := models.MarkDailyCashReconciled(dbTx, date, actualAmount, variance, notes, userID, now); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reconciliation for %s: %w", date, err)
	}

	if status == DrawerBalanced {
		s.logActivity(userID, "Till reconciled: balanced")
	} else {
		s.logActivity(userID, fmt.Sprintf("Till reconciled: %s by R%.2f", status, math.Abs(variance)))
	}
	logger.L.Info("drawer reconciled", "date", date, "expected", expected,
		"actual", actualAmount, "variance", variance, "status", status, "userID", userID)

	rec.CashSales = cashSales
	rec.CardSales = cardSales
	rec.ExpectedClosing = expected
	rec.ActualClosing = actualAmount
	rec.Variance = variance
	rec.Reconciled = true
	rec.ReconciledBy = userID
	rec.ReconciledAt = &now
	rec.Notes = notes
	return &ReconcileResult{Record: rec, Variance: variance, Status: status}, nil
}

func (s *drawerServiceImpl) History(days int) ([]models.DailyCash, error) {
	return models.ListDailyCash(s.db, days)
}

func (s *drawerServiceImpl) ActivityLog(date string) ([]models.CashLogEntry, error) {
	if _, err := utils.ParseBusinessDate(date); err != nil {
		return nil, err
	}
	return models.CashLogForDate(s.db, date)
}
