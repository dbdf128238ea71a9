package services

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/tillpoint/backend/src/logger"
	"github.com/username/tillpoint/backend/src/models"
	"github.com/username/tillpoint/backend/src/utils"
)

const (
	// DefaultCacheExpiration is how long cached summaries stay fresh.
	DefaultCacheExpiration = 15 * time.Minute
	// CacheCleanupInterval is how often expired cache entries are purged.
	CacheCleanupInterval = 30 * time.Minute

	ckDailySummary = "report_daily_summary_%s"
)

type reportServiceImpl struct {
	db    *sql.DB
	cache *cache.Cache
}

// NewReportService creates a ReportService. Daily summaries are cached until
// a sale or void on the date invalidates them.
func NewReportService(db *sql.DB, c *cache.Cache) ReportService {
	return &reportServiceImpl{db: db, cache: c}
}

func (s *reportServiceImpl) DailySummary(date string) (*DailySalesSummary, error) {
	if _, err := utils.ParseBusinessDate(date); err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf(ckDailySummary, date)
	if s.cache != nil {
		if cached, found := s.cache.Get(cacheKey); found {
			if summary, ok := cached.(*DailySalesSummary); ok {
				logger.L.Debug("daily summary served from cache", "date", date)
				return summary, nil
			}
		}
	}

	sales, err := models.SalesByDate(s.db, date)
	if err != nil {
		return nil, err
	}
	summary := summarize(date, sales)

	if s.cache != nil {
		s.cache.Set(cacheKey, summary, DefaultCacheExpiration)
	}
	return summary, nil
}

func (s *reportServiceImpl) RangeSummary(start, end string) (*DailySalesSummary, error) {
	if _, err := utils.ParseBusinessDate(start); err != nil {
		return nil, err
	}
	if _, err := utils.ParseBusinessDate(end); err != nil {
		return nil, err
	}

	sales, err := models.SalesByDateRange(s.db, start, end)
	if err != nil {
		return nil, err
	}
	return summarize(fmt.Sprintf("%s to %s", start, end), sales), nil
}

func (s *reportServiceImpl) TopProducts(start, end string, limit int) ([]ProductSales, error) {
	if _, err := utils.ParseBusinessDate(start); err != nil {
		return nil, err
	}
	if _, err := utils.ParseBusinessDate(end); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	sales, err := models.SalesByDateRange(s.db, start, end)
	if err != nil {
		return nil, err
	}
	return topProducts(sales, limit), nil
}

func (s *reportServiceImpl) StockAlerts() ([]StockAlert, error) {
	products, err := models.LowStockProducts(s.db)
	if err != nil {
		return nil, err
	}
	alerts := make([]StockAlert, 0, len(products))
	for _, p := range products {
		alerts = append(alerts, StockAlert{
			Product: p,
			Deficit: p.MinStock - p.CurrentStock,
		})
	}
	return alerts, nil
}

// InvalidateDate drops the cached summary for a business date. Called after
// any sale completes or is voided on that date.
func (s *reportServiceImpl) InvalidateDate(date string) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(fmt.Sprintf(ckDailySummary, date))
}

func summarize(label string, sales []models.Sale) *DailySalesSummary {
	summary := &DailySalesSummary{
		Date:          label,
		PaymentTotals: make(map[string]float64),
	}
	for i := range sales {
		sale := &sales[i]
		summary.SaleCount++
		summary.ItemsSold += sale.ItemCount()
		summary.GrossTotal += sale.TotalAmount()
		summary.VATTotal += sale.VATAmount()
		summary.PaymentTotals[sale.PaymentMethod] += sale.TotalAmount()
	}
	summary.GrossTotal = utils.RoundCurrency(summary.GrossTotal)
	summary.VATTotal = utils.RoundCurrency(summary.VATTotal)
	summary.NetTotal = utils.RoundCurrency(summary.GrossTotal - summary.VATTotal)
	for method, total := range summary.PaymentTotals {
		summary.PaymentTotals[method] = utils.RoundCurrency(total)
	}
	summary.TopProducts = topProducts(sales, 10)
	return summary
}

func topProducts(sales []models.Sale, limit int) []ProductSales {
	byProduct := make(map[int64]*ProductSales)
	for i := range sales {
		for _, item := range sales[i].Items {
			entry, ok := byProduct[item.ProductID]
			if !ok {
				entry = &ProductSales{ProductID: item.ProductID, Name: item.ProductName}
				byProduct[item.ProductID] = entry
			}
			entry.Quantity += item.Quantity
			entry.Total += item.TotalPrice
		}
	}

	ranked := make([]ProductSales, 0, len(byProduct))
	for _, entry := range byProduct {
		entry.Total = utils.RoundCurrency(entry.Total)
		ranked = append(ranked, *entry)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Quantity != ranked[j].Quantity {
			return ranked[i].Quantity > ranked[j].Quantity
		}
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
