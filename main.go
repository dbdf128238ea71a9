package main

import (
	"database/sql"
	"encoding/json"
	stdlog "log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/tillpoint/backend/src/config"
	"github.com/username/tillpoint/backend/src/database"
	"github.com/username/tillpoint/backend/src/handlers"
	"github.com/username/tillpoint/backend/src/logger"
	"github.com/username/tillpoint/backend/src/model"
	"github.com/username/tillpoint/backend/src/security"
	"github.com/username/tillpoint/backend/src/services"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == config.Cfg.CORSAllowedOrigin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Requested-With, Cookie")
			w.Header().Set("Access-Control-Expose-Headers", "X-CSRF-Token")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// seedAdminUser creates the initial admin account on an empty database so the
// shop can log in at all. The password must be changed on first use.
func seedAdminUser(db *sql.DB) {
	count, err := model.CountUsers(db)
	if err != nil {
		logger.L.Error("Failed to count users for admin seed", "error", err)
		stdlog.Fatalf("Failed to count users: %v", err)
	}
	if count > 0 {
		return
	}

	admin := &model.User{
		Username: "admin",
		FullName: "Administrator",
		Role:     security.RoleAdmin,
		Active:   true,
	}
	if err := admin.HashPassword("admin123"); err != nil {
		stdlog.Fatalf("Failed to hash seed admin password: %v", err)
	}
	if err := admin.CreateUser(db); err != nil {
		stdlog.Fatalf("Failed to create seed admin user: %v", err)
	}
	logger.L.Warn("Seeded default admin account with password 'admin123'. Change it immediately.", "username", admin.Username)
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Tillpoint backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}
	if len(config.Cfg.CSRFAuthKey) < 32 {
		logger.L.Error("CSRF_AUTH_KEY must be at least 32 bytes long.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	db, err := database.Open(config.Cfg.DatabasePath)
	if err != nil {
		logger.L.Error("Failed to open database", "error", err)
		stdlog.Fatalf("Failed to open database: %v", err)
	}
	if err := database.EnsureSchema(db); err != nil {
		logger.L.Error("Failed to prepare database schema", "error", err)
		stdlog.Fatalf("Failed to prepare database schema: %v", err)
	}
	logger.L.Info("Database initialized successfully.")
	seedAdminUser(db)

	logger.L.Info("Initializing report cache...")
	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(config.Cfg.JWTSecret)
	settingsService := services.NewSettingsService(db)
	if err := settingsService.EnsureDefaults(); err != nil {
		logger.L.Error("Failed to seed settings", "error", err)
		stdlog.Fatalf("Failed to seed settings: %v", err)
	}

	reportService := services.NewReportService(db, reportCache)
	stockService := services.NewStockService(db)
	productService := services.NewProductService(db)
	saleService := services.NewSaleService(db, stockService, reportService)
	drawerService := services.NewDrawerService(db)
	receiptService := services.NewReceiptService(db, settingsService)
	emailService := services.NewEmailService()
	notifierService := services.NewNotifierService(emailService, receiptService, reportService, settingsService)

	userHandler := handlers.NewUserHandler(db, authService)
	productHandler := handlers.NewProductHandler(productService)
	stockHandler := handlers.NewStockHandler(stockService)
	saleHandler := handlers.NewSaleHandler(saleService, receiptService, notifierService)
	drawerHandler := handlers.NewDrawerHandler(drawerService, receiptService)
	reportHandler := handlers.NewReportHandler(reportService, notifierService)
	settingsHandler := handlers.NewSettingsHandler(settingsService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	csrfProtection := handlers.CSRFMiddleware()
	// protect wires CSRF, authentication and optionally a permission area in
	// front of a handler. An empty permission means any signed-in user.
	protect := func(permission string, handler http.HandlerFunc) http.Handler {
		var h http.Handler = handler
		if permission != "" {
			h = userHandler.RequirePermission(permission)(h)
		}
		return csrfProtection(userHandler.AuthMiddleware(h))
	}

	// Auth endpoints. Login and refresh are reachable without a token.
	apiRouter.HandleFunc("GET /api/auth/csrf", handlers.GetCSRFToken)
	apiRouter.Handle("POST /api/auth/login", csrfProtection(http.HandlerFunc(userHandler.LoginUserHandler)))
	apiRouter.Handle("POST /api/auth/refresh", csrfProtection(http.HandlerFunc(userHandler.RefreshTokenHandler)))
	apiRouter.Handle("POST /api/auth/logout", protect("", userHandler.LogoutUserHandler))

	// Staff administration.
	apiRouter.Handle("POST /api/users", protect(security.PermUserManagement, userHandler.RegisterUserHandler))
	apiRouter.Handle("GET /api/users", protect(security.PermUserManagement, userHandler.ListUsersHandler))
	apiRouter.Handle("PATCH /api/users/{id}/active", protect(security.PermUserManagement, userHandler.SetUserActiveHandler))
	apiRouter.Handle("GET /api/users/login-log", protect(security.PermUserManagement, userHandler.LoginLogHandler))

	// Product catalog. Reads are open to till roles, writes to product managers.
	apiRouter.Handle("GET /api/products", protect(security.PermSales, productHandler.ListProductsHandler))
	apiRouter.Handle("GET /api/products/categories", protect(security.PermSales, productHandler.CategoriesHandler))
	apiRouter.Handle("GET /api/products/archived", protect(security.PermProductManagement, productHandler.ArchivedProductsHandler))
	apiRouter.Handle("GET /api/products/barcode/{barcode}", protect(security.PermSales, productHandler.GetProductByBarcodeHandler))
	apiRouter.Handle("GET /api/products/{id}", protect(security.PermSales, productHandler.GetProductHandler))
	apiRouter.Handle("POST /api/products", protect(security.PermProductManagement, productHandler.CreateProductHandler))
	apiRouter.Handle("PUT /api/products/{id}", protect(security.PermProductManagement, productHandler.UpdateProductHandler))
	apiRouter.Handle("DELETE /api/products/{id}", protect(security.PermProductManagement, productHandler.DeleteProductHandler))
	apiRouter.Handle("GET /api/products/{id}/deletion-check", protect(security.PermProductManagement, productHandler.DeletionCheckHandler))
	apiRouter.Handle("POST /api/products/{id}/archive", protect(security.PermProductManagement, productHandler.ArchiveProductHandler))
	apiRouter.Handle("POST /api/products/{id}/restore", protect(security.PermProductManagement, productHandler.RestoreProductHandler))

	// Stock ledger.
	apiRouter.Handle("POST /api/stock/adjust", protect(security.PermStockAdjustment, stockHandler.AdjustStockHandler))
	apiRouter.Handle("GET /api/stock/movements", protect(security.PermStockAdjustment, stockHandler.RecentMovementsHandler))
	apiRouter.Handle("GET /api/stock/movements/{id}", protect(security.PermStockAdjustment, stockHandler.ProductMovementsHandler))
	apiRouter.Handle("GET /api/stock/low", protect(security.PermStockAdjustment, stockHandler.LowStockHandler))

	// Till operations on the single active sale.
	apiRouter.Handle("POST /api/sales/start", protect(security.PermSales, saleHandler.StartSaleHandler))
	apiRouter.Handle("GET /api/sales/current", protect(security.PermSales, saleHandler.CurrentSaleHandler))
	apiRouter.Handle("POST /api/sales/current/items", protect(security.PermSales, saleHandler.AddItemHandler))
	apiRouter.Handle("DELETE /api/sales/current/items/{id}", protect(security.PermSales, saleHandler.RemoveItemHandler))
	apiRouter.Handle("PATCH /api/sales/current/items/{id}", protect(security.PermSales, saleHandler.UpdateItemQuantityHandler))
	apiRouter.Handle("POST /api/sales/current/payment", protect(security.PermSales, saleHandler.SetPaymentHandler))
	apiRouter.Handle("GET /api/sales/current/payment/validate", protect(security.PermSales, saleHandler.ValidatePaymentHandler))
	apiRouter.Handle("POST /api/sales/current/cancel", protect(security.PermSales, saleHandler.CancelSaleHandler))
	apiRouter.Handle("POST /api/sales/current/complete", protect(security.PermSales, saleHandler.CompleteSaleHandler))

	// Completed sales.
	apiRouter.Handle("GET /api/sales", protect(security.PermSales, saleHandler.ListSalesHandler))
	apiRouter.Handle("GET /api/sales/{id}", protect(security.PermSales, saleHandler.GetSaleHandler))
	apiRouter.Handle("GET /api/sales/ref/{ref}", protect(security.PermSales, saleHandler.GetSaleByRefHandler))
	apiRouter.Handle("GET /api/sales/{id}/receipt", protect(security.PermSales, saleHandler.ReceiptHandler))
	apiRouter.Handle("POST /api/sales/{id}/receipt/email", protect(security.PermSales, saleHandler.EmailReceiptHandler))
	apiRouter.Handle("POST /api/sales/{id}/void", protect(security.PermVoidTransaction, saleHandler.VoidSaleHandler))

	// Cash drawer.
	apiRouter.Handle("POST /api/cash/start", protect(security.PermCashManagement, drawerHandler.StartDayHandler))
	apiRouter.Handle("GET /api/cash/current", protect(security.PermCashManagement, drawerHandler.CurrentDayHandler))
	apiRouter.Handle("POST /api/cash/recompute", protect(security.PermCashManagement, drawerHandler.RecomputeHandler))
	apiRouter.Handle("POST /api/cash/withdrawal", protect(security.PermCashManagement, drawerHandler.WithdrawalHandler))
	apiRouter.Handle("POST /api/cash/reconcile", protect(security.PermCashManagement, drawerHandler.ReconcileHandler))
	apiRouter.Handle("GET /api/cash/history", protect(security.PermCashManagement, drawerHandler.HistoryHandler))
	apiRouter.Handle("GET /api/cash/activity", protect(security.PermCashManagement, drawerHandler.ActivityLogHandler))
	apiRouter.Handle("GET /api/cash/report", protect(security.PermCashManagement, drawerHandler.DayReportHandler))

	// Reports.
	apiRouter.Handle("GET /api/reports/daily", protect(security.PermReports, reportHandler.DailySummaryHandler))
	apiRouter.Handle("GET /api/reports/range", protect(security.PermReports, reportHandler.RangeSummaryHandler))
	apiRouter.Handle("GET /api/reports/top-products", protect(security.PermReports, reportHandler.TopProductsHandler))
	apiRouter.Handle("GET /api/reports/stock-alerts", protect(security.PermReports, reportHandler.StockAlertsHandler))
	apiRouter.Handle("POST /api/reports/daily/email", protect(security.PermReports, reportHandler.EmailSummaryHandler))

	// Shop settings. Till roles may read them, only admins change them.
	apiRouter.Handle("GET /api/settings", protect("", settingsHandler.ListSettingsHandler))
	apiRouter.Handle("GET /api/settings/{key}", protect("", settingsHandler.GetSettingHandler))
	apiRouter.Handle("PUT /api/settings/{key}", protect(security.PermSettings, settingsHandler.UpdateSettingHandler))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Tillpoint backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", serverAddr)
	if err != nil {
		logger.L.Error("Failed to listen", "address", serverAddr, "error", err)
		stdlog.Fatalf("Failed to listen on %s: %v", serverAddr, err)
	}
	ln = netutil.LimitListener(ln, config.Cfg.MaxConnections)

	logger.L.Info("Server starting", "address", serverAddr, "maxConnections", config.Cfg.MaxConnections)
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
