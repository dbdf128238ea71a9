package services

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/username/tillpoint/backend/src/config"
	"github.com/username/tillpoint/backend/src/logger"
	"github.com/username/tillpoint/backend/src/model"
)

// Shop configuration keys stored in system_config.
const (
	SettingShopName          = "shop_name"
	SettingVATRate           = "vat_rate"
	SettingCurrencyCode      = "currency_code"
	SettingCurrencySymbol    = "currency_symbol"
	SettingReceiptFooter     = "receipt_footer"
	SettingLowStockThreshold = "low_stock_threshold"
)

type settingsServiceImpl struct {
	db *sql.DB
}

// NewSettingsService creates a SettingsService backed by the given database.
func NewSettingsService(db *sql.DB) SettingsService {
	return &settingsServiceImpl{db: db}
}

func (s *settingsServiceImpl) Get(key string) (string, error) {
	return model.GetSetting(s.db, key)
}

func (s *settingsServiceImpl) GetFloat(key string) (float64, error) {
	value, err := model.GetSetting(s.db, key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("setting %s is not numeric: %w", key, err)
	}
	return f, nil
}

func (s *settingsServiceImpl) GetInt(key string) (int, error) {
	value, err := model.GetSetting(s.db, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("setting %s is not an integer: %w", key, err)
	}
	return n, nil
}

func (s *settingsServiceImpl) Set(key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("setting key is required")
	}

	switch key {
	case SettingVATRate:
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil || rate < 0 || rate > 100 {
			return fmt.Errorf("vat_rate must be a percentage between 0 and 100")
		}
	case SettingLowStockThreshold:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("low_stock_threshold must be a non-negative integer")
		}
	case SettingShopName:
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("shop_name must not be empty")
		}
	}

	if err := model.SetSetting(s.db, key, value); err != nil {
		return err
	}
	logger.L.Info("setting updated", "key", key, "value", value)
	return nil
}

func (s *settingsServiceImpl) All() ([]model.Setting, error) {
	return model.AllSettings(s.db)
}

// EnsureDefaults seeds any missing configuration rows. Existing values are
// never overwritten, so a fresh database gets the configured defaults and an
// upgraded one keeps what the shop set.
func (s *settingsServiceImpl) EnsureDefaults() error {
	defaults := []struct {
		key, value, description string
	}{
		{SettingShopName, config.Cfg.ShopName, "Name printed on receipts"},
		{SettingVATRate, strconv.FormatFloat(config.Cfg.DefaultVATRate, 'f', 1, 64), "VAT percentage applied to VAT-inclusive products"},
		{SettingCurrencyCode, config.Cfg.CurrencyCode, "ISO currency code"},
		{SettingCurrencySymbol, config.Cfg.CurrencySymbol, "Symbol shown before amounts"},
		{SettingReceiptFooter, config.Cfg.ReceiptFooter, "Closing line printed on receipts"},
		{SettingLowStockThreshold, strconv.Itoa(config.Cfg.LowStockThreshold), "Default minimum stock level for new products"},
	}
	for _, d := range defaults {
		if err := model.EnsureSetting(s.db, d.key, d.value, d.description); err != nil {
			return fmt.Errorf("seeding setting %s: %w", d.key, err)
		}
	}
	return nil
}
