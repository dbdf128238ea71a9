package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/username/tillpoint/backend/src/config"
	"github.com/username/tillpoint/backend/src/logger"
)

type notifierServiceImpl struct {
	email    EmailService
	receipts ReceiptService
	reports  ReportService
	settings SettingsService
}

// NewNotifierService creates a NotifierService that renders till documents
// and hands them to the email transport.
func NewNotifierService(email EmailService, receipts ReceiptService, reports ReportService, settings SettingsService) NotifierService {
	return &notifierServiceImpl{email: email, receipts: receipts, reports: reports, settings: settings}
}

func (s *notifierServiceImpl) shopName() string {
	name, err := s.settings.Get(SettingShopName)
	if err != nil {
		return config.Cfg.ShopName
	}
	return name
}

func (s *notifierServiceImpl) currencySymbol() string {
	symbol, err := s.settings.Get(SettingCurrencySymbol)
	if err != nil {
		return config.Cfg.CurrencySymbol
	}
	return symbol
}

func (s *notifierServiceImpl) SendReceipt(ctx context.Context, recipient string, saleID int64) error {
	if strings.TrimSpace(recipient) == "" {
		return fmt.Errorf("recipient email is required")
	}

	data, err := s.receipts.ReceiptData(saleID)
	if err != nil {
		return err
	}
	text, err := s.receipts.ReceiptText(saleID)
	if err != nil {
		return err
	}

	err = s.email.SendEmail(ctx, EmailData{
		To:       recipient,
		Subject:  fmt.Sprintf("Receipt %s from %s", data.TransactionRef, data.ShopName),
		TextBody: text,
		HTMLBody: fmt.Sprintf("<pre>%s</pre>", text),
	})
	if err != nil {
		return err
	}
	logger.L.Info("receipt emailed", "transactionRef", data.TransactionRef, "to", recipient)
	return nil
}

func (s *notifierServiceImpl) SendDailySummary(ctx context.Context, recipient string, date string) error {
	if strings.TrimSpace(recipient) == "" {
		return fmt.Errorf("recipient email is required")
	}

	summary, err := s.reports.DailySummary(date)
	if err != nil {
		return err
	}
	symbol := s.currencySymbol()

	var b strings.Builder
	fmt.Fprintf(&b, "Daily sales summary for %s\n\n", summary.Date)
	fmt.Fprintf(&b, "Sales completed: %d\n", summary.SaleCount)
	fmt.Fprintf(&b, "Items sold: %d\n", summary.ItemsSold)
	fmt.Fprintf(&b, "Gross total: %s%.2f\n", symbol, summary.GrossTotal)
	fmt.Fprintf(&b, "VAT: %s%.2f\n", symbol, summary.VATTotal)
	fmt.Fprintf(&b, "Net: %s%.2f\n", symbol, summary.NetTotal)
	if len(summary.PaymentTotals) > 0 {
		fmt.Fprintf(&b, "\nBy payment method:\n")
		for _, method := range []string{"cash", "card", "mixed"} {
			if total, ok := summary.PaymentTotals[method]; ok {
				fmt.Fprintf(&b, "  %-6s %s%.2f\n", method, symbol, total)
			}
		}
	}
	if len(summary.TopProducts) > 0 {
		fmt.Fprintf(&b, "\nTop sellers:\n")
		for _, p := range summary.TopProducts {
			fmt.Fprintf(&b, "  %-30s x%-4d %s%.2f\n", p.Name, p.Quantity, symbol, p.Total)
		}
	}

	err = s.email.SendEmail(ctx, EmailData{
		To:       recipient,
		Subject:  fmt.Sprintf("Daily summary %s - %s", summary.Date, s.shopName()),
		TextBody: b.String(),
	})
	if err != nil {
		return err
	}
	logger.L.Info("daily summary emailed", "date", date, "to", recipient)
	return nil
}
