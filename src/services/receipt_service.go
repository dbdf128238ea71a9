package services

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/username/tillpoint/backend/src/config"
	"github.com/username/tillpoint/backend/src/logger"
	"github.com/username/tillpoint/backend/src/models"
	"github.com/username/tillpoint/backend/src/utils"
)

const receiptWidth = 50

type receiptServiceImpl struct {
	db       *sql.DB
	settings SettingsService
}

// NewReceiptService creates a ReceiptService. Shop name, footer, currency
// symbol and the displayed VAT rate come from the settings service.
func NewReceiptService(db *sql.DB, settings SettingsService) ReceiptService {
	return &receiptServiceImpl{db: db, settings: settings}
}

func (s *receiptServiceImpl) settingOr(key, fallback string) string {
	value, err := s.settings.Get(key)
	if err != nil {
		logger.L.Warn("falling back to default for setting", "key", key, "error", err)
		return fallback
	}
	return value
}

// ReceiptData assembles everything a receipt shows for one completed sale.
func (s *receiptServiceImpl) ReceiptData(saleID int64) (*ReceiptData, error) {
	sale, err := models.GetSaleByID(s.db, saleID)
	if err != nil {
		return nil, err
	}

	vatRate, err := s.settings.GetFloat(SettingVATRate)
	if err != nil {
		vatRate = config.Cfg.DefaultVATRate
	}

	data := &ReceiptData{
		TransactionRef: sale.TransactionRef,
		DateTime:       sale.DateTime,
		ShopName:       s.settingOr(SettingShopName, config.Cfg.ShopName),
		ItemCount:      sale.ItemCount(),
		Subtotal:       utils.RoundCurrency(sale.Subtotal()),
		VATRate:        vatRate,
		VATAmount:      utils.RoundCurrency(sale.VATAmount()),
		Total:          utils.RoundCurrency(sale.TotalAmount()),
		PaymentMethod:  sale.PaymentMethod,
		CashAmount:     sale.CashAmount,
		CardAmount:     sale.CardAmount,
		ChangeAmount:   sale.ChangeAmount,
		Footer:         s.settingOr(SettingReceiptFooter, config.Cfg.ReceiptFooter),
	}
	for _, item := range sale.Items {
		data.Items = append(data.Items, ReceiptLine{
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Total:     item.TotalPrice,
		})
	}
	return data, nil
}

// ReceiptText renders the proof-of-purchase slip for a 50-column printer.
func (s *receiptServiceImpl) ReceiptText(saleID int64) (string, error) {
	data, err := s.ReceiptData(saleID)
	if err != nil {
		return "", err
	}
	symbol := s.settingOr(SettingCurrencySymbol, config.Cfg.CurrencySymbol)

	double := strings.Repeat("=", receiptWidth)
	single := strings.Repeat("-", receiptWidth)

	var lines []string
	lines = append(lines,
		double,
		center("PROOF OF PURCHASE", receiptWidth),
		double,
		"",
		center(data.ShopName, receiptWidth),
		"",
		fmt.Sprintf("Transaction: %s", data.TransactionRef),
		fmt.Sprintf("Date: %s", data.DateTime.Format("2006-01-02 15:04:05")),
		"",
		single,
		fmt.Sprintf("%-20s %-5s %-10s %-10s", "Item", "Qty", "Price", "Total"),
		single,
	)
	for _, item := range data.Items {
		name := item.Name
		if runes := []rune(name); len(runes) > 18 {
			name = string(runes[:18])
		}
		lines = append(lines, fmt.Sprintf("%-20s %-5d %s%-9.2f %s%-9.2f",
			name, item.Quantity, symbol, item.UnitPrice, symbol, item.Total))
	}
	lines = append(lines,
		single,
		fmt.Sprintf("%-30s %5d", "Items:", data.ItemCount),
		"",
		fmt.Sprintf("%-30s %s%12.2f", "Subtotal:", symbol, data.Subtotal),
		fmt.Sprintf("%-30s %s%12.2f", fmt.Sprintf("VAT (%g%%):", data.VATRate), symbol, data.VATAmount),
		fmt.Sprintf("%-30s %s%12.2f", "TOTAL:", symbol, data.Total),
		double,
	)

	switch data.PaymentMethod {
	case models.PaymentCash:
		lines = append(lines,
			fmt.Sprintf("%-30s %15s", "Payment Method:", "CASH"),
			fmt.Sprintf("%-30s %s%12.2f", "Cash Received:", symbol, data.CashAmount),
			fmt.Sprintf("%-30s %s%12.2f", "Change Given:", symbol, data.ChangeAmount),
		)
	case models.PaymentCard:
		lines = append(lines,
			fmt.Sprintf("%-30s %15s", "Payment Method:", "CARD"),
			fmt.Sprintf("%-30s %s%12.2f", "Card Amount:", symbol, data.CardAmount),
		)
	case models.PaymentMixed:
		lines = append(lines,
			fmt.Sprintf("%-30s %15s", "Payment Method:", "MIXED"),
			fmt.Sprintf("%-30s %s%12.2f", "Card Amount:", symbol, data.CardAmount),
			fmt.Sprintf("%-30s %s%12.2f", "Cash Amount:", symbol, data.CashAmount),
			fmt.Sprintf("%-30s %s%12.2f", "Change Given:", symbol, data.ChangeAmount),
		)
	}

	lines = append(lines,
		"",
		double,
		"",
		center(data.Footer, receiptWidth),
		"",
		center("Keep this receipt for your records", receiptWidth),
		center("Photo with your cell phone if needed", receiptWidth),
		"",
		double,
	)
	return strings.Join(lines, "\n"), nil
}

// ReprintText renders the slip wrapped in reprint markers so a duplicate is
// never mistaken for the original.
func (s *receiptServiceImpl) ReprintText(saleID int64) (string, error) {
	text, err := s.ReceiptText(saleID)
	if err != nil {
		return "", err
	}
	return "\n*** REPRINT ***\n" + text + "\n*** REPRINT ***\n", nil
}

// DayReportText renders the end-of-day cash-up slip for one business date:
// drawer totals, reconciliation outcome and the day's activity log.
func (s *receiptServiceImpl) DayReportText(date string) (string, error) {
	day, err := models.GetDailyCashByDate(s.db, date)
	if err != nil {
		return "", err
	}
	log, err := models.CashLogForDate(s.db, date)
	if err != nil {
		return "", err
	}
	symbol := s.settingOr(SettingCurrencySymbol, config.Cfg.CurrencySymbol)

	double := strings.Repeat("=", receiptWidth)
	single := strings.Repeat("-", receiptWidth)

	var lines []string
	lines = append(lines,
		double,
		center("CASH-UP REPORT", receiptWidth),
		double,
		"",
		center(s.settingOr(SettingShopName, config.Cfg.ShopName), receiptWidth),
		"",
		fmt.Sprintf("Date: %s", day.Date),
		"",
		single,
		fmt.Sprintf("%-30s %s%12.2f", "Opening Float:", symbol, day.OpeningAmount),
		fmt.Sprintf("%-30s %s%12.2f", "Cash Sales:", symbol, day.CashSales),
		fmt.Sprintf("%-30s %s%12.2f", "Card Sales:", symbol, day.CardSales),
		fmt.Sprintf("%-30s %s%12.2f", "Withdrawals:", symbol, day.Withdrawals),
		single,
		fmt.Sprintf("%-30s %s%12.2f", "Expected in Drawer:", symbol, day.ExpectedClosing),
	)

	if day.Reconciled {
		status := DrawerBalanced
		switch {
		case day.Variance >= 0.01:
			status = DrawerOver
		case day.Variance <= -0.01:
			status = DrawerShort
		}
		lines = append(lines,
			fmt.Sprintf("%-30s %s%12.2f", "Counted:", symbol, day.ActualClosing),
			fmt.Sprintf("%-30s %s%12.2f", "Variance:", symbol, day.Variance),
			"",
			center(fmt.Sprintf("*** %s ***", strings.ToUpper(status)), receiptWidth),
		)
		if day.ReconciledAt != nil {
			lines = append(lines, fmt.Sprintf("Reconciled at: %s", day.ReconciledAt.Format("2006-01-02 15:04:05")))
		}
		if day.Notes != "" {
			lines = append(lines, fmt.Sprintf("Notes: %s", day.Notes))
		}
	} else {
		lines = append(lines, "", center("TILL NOT YET RECONCILED", receiptWidth))
	}

	if len(log) > 0 {
		lines = append(lines, "", single, "Activity:", single)
		for _, entry := range log {
			lines = append(lines, fmt.Sprintf("%s  %s", entry.ActivityTime.Format("15:04"), entry.Description))
		}
	}

	lines = append(lines, "", double)
	return strings.Join(lines, "\n"), nil
}

// center pads a line on both sides to the given width. Lines already at or
// over the width are returned unchanged.
func center(text string, width int) string {
	gap := width - len([]rune(text))
	if gap <= 0 {
		return text
	}
	left := gap / 2
	return strings.Repeat(" ", left) + text + strings.Repeat(" ", gap-left)
}
