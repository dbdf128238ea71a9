package database

import (
	"database/sql"
	"fmt"
	stdlog "log"

	"github.com/username/tillpoint/backend/src/logger"
	_ "modernc.org/sqlite"
)

// Open opens the SQLite database at the given path. The caller owns the
// returned handle; nothing in this package keeps a reference to it.
func Open(databasePath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", databasePath, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database at %s: %w", databasePath, err)
	}
	return db, nil
}

// EnsureSchema creates any missing tables and indices and applies column
// migrations for databases created by older builds.
func EnsureSchema(db *sql.DB) error {
	if logger.L != nil {
		logger.L.Info("Checking database migrations")
	} else {
		stdlog.Println("Checking database migrations")
	}
	migrateProductTable(db)
	migrateSaleTables(db)

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL DEFAULT '',
		password TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'pos_operator',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		user_agent TEXT,
		client_ip TEXT,
		is_blocked BOOLEAN DEFAULT FALSE,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS login_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		attempt_time TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		ip_address TEXT
	);

	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		barcode TEXT UNIQUE,
		category TEXT NOT NULL DEFAULT 'Other',
		cost_price REAL NOT NULL DEFAULT 0,
		sell_price REAL NOT NULL DEFAULT 0,
		current_stock INTEGER NOT NULL DEFAULT 0,
		monthly_stock INTEGER NOT NULL DEFAULT 0,
		min_stock INTEGER NOT NULL DEFAULT 0,
		vat_rate REAL NOT NULL DEFAULT 15.0,
		vat_inclusive BOOLEAN NOT NULL DEFAULT TRUE,
		archived BOOLEAN NOT NULL DEFAULT FALSE,
		expiry_date TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS stock_movements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL,
		movement_type TEXT NOT NULL,
		quantity_change INTEGER NOT NULL,
		previous_stock INTEGER NOT NULL,
		new_stock INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		reason TEXT,
		reference_id INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_ref TEXT NOT NULL UNIQUE,
		date_time TIMESTAMP NOT NULL,
		sale_date TEXT NOT NULL,
		user_id INTEGER NOT NULL,
		payment_method TEXT NOT NULL,
		cash_amount REAL NOT NULL DEFAULT 0,
		card_amount REAL NOT NULL DEFAULT 0,
		change_amount REAL NOT NULL DEFAULT 0,
		voided BOOLEAN NOT NULL DEFAULT FALSE,
		voided_by INTEGER,
		voided_at TIMESTAMP,
		void_reason TEXT
	);

	CREATE TABLE IF NOT EXISTS sale_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sale_id INTEGER NOT NULL,
		product_id INTEGER NOT NULL,
		product_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price REAL NOT NULL,
		total_price REAL NOT NULL,
		vat_rate REAL NOT NULL DEFAULT 0,
		FOREIGN KEY(sale_id) REFERENCES sales(id)
	);

	CREATE TABLE IF NOT EXISTS daily_cash (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL UNIQUE,
		opening_amount REAL NOT NULL DEFAULT 0,
		cash_sales REAL NOT NULL DEFAULT 0,
		card_sales REAL NOT NULL DEFAULT 0,
		withdrawals REAL NOT NULL DEFAULT 0,
		expected_closing REAL NOT NULL DEFAULT 0,
		actual_closing REAL NOT NULL DEFAULT 0,
		variance REAL NOT NULL DEFAULT 0,
		reconciled BOOLEAN NOT NULL DEFAULT FALSE,
		reconciled_by INTEGER,
		reconciled_at TIMESTAMP,
		notes TEXT,
		opened_by INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS cash_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		activity_time TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		activity_date TEXT,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS system_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		description TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sales_sale_date ON sales(sale_date);
	CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id);
	CREATE INDEX IF NOT EXISTS idx_stock_movements_product ON stock_movements(product_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_token ON sessions(token);
	CREATE INDEX IF NOT EXISTS idx_cash_log_date ON cash_log(activity_date);
	`

	if _, err := db.Exec(createTableStatement); err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
	return nil
}

func tableColumns(db *sql.DB, table string) (map[string]bool, bool) {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("table does not exist yet, no migration needed", "table", table)
			} else {
				stdlog.Printf("table %q does not exist yet, no migration needed", table)
			}
			return nil, false
		}
		if logger.L != nil {
			logger.L.Error("Error checking for table", "table", table, "error", err)
		} else {
			stdlog.Printf("Error checking for table %q: %v", table, err)
		}
		return nil, false
	}

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema", "table", table, "error", err)
		} else {
			stdlog.Printf("Error querying table schema for %q: %v", table, err)
		}
		return nil, false
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info", "table", table, "error", err)
			} else {
				stdlog.Printf("Error scanning column info for %q: %v", table, err)
			}
			return nil, false
		}
		columnExists[name] = true
	}
	if err := rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info", "table", table, "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for %q: %v", table, err)
		}
		return nil, false
	}
	return columnExists, true
}

func addColumn(db *sql.DB, table, column, definition string) {
	_, err := db.Exec("ALTER TABLE " + table + " ADD COLUMN " + column + " " + definition)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error adding column", "table", table, "column", column, "error", err)
		} else {
			stdlog.Printf("Error adding %q column to %q: %v", column, table, err)
		}
		return
	}
	if logger.L != nil {
		logger.L.Info("Added column", "table", table, "column", column)
	} else {
		stdlog.Printf("Added %q column to %q", column, table)
	}
}

func migrateProductTable(db *sql.DB) {
	columnExists, ok := tableColumns(db, "products")
	if !ok {
		return
	}

	if !columnExists["monthly_stock"] {
		addColumn(db, "products", "monthly_stock", "INTEGER NOT NULL DEFAULT 0")
		if _, err := db.Exec("UPDATE products SET monthly_stock = current_stock WHERE monthly_stock = 0"); err != nil {
			if logger.L != nil {
				logger.L.Error("Error backfilling monthly_stock for existing rows", "error", err)
			} else {
				stdlog.Printf("Error backfilling monthly_stock for existing rows: %v", err)
			}
		}
	}
	if !columnExists["expiry_date"] {
		addColumn(db, "products", "expiry_date", "TEXT")
	}
	if !columnExists["archived"] {
		addColumn(db, "products", "archived", "BOOLEAN NOT NULL DEFAULT FALSE")
	}
}

func migrateSaleTables(db *sql.DB) {
	columnExists, ok := tableColumns(db, "sales")
	if ok && !columnExists["sale_date"] {
		addColumn(db, "sales", "sale_date", "TEXT NOT NULL DEFAULT ''")
		// Stored timestamps carry the till's local offset, so the business
		// date is the leading date portion of the text, not DATE() in UTC.
		if _, err := db.Exec("UPDATE sales SET sale_date = substr(date_time, 1, 10) WHERE sale_date = ''"); err != nil {
			if logger.L != nil {
				logger.L.Error("Error backfilling sale_date for existing rows", "error", err)
			} else {
				stdlog.Printf("Error backfilling sale_date for existing rows: %v", err)
			}
		}
	}

	columnExists, ok = tableColumns(db, "cash_log")
	if ok && !columnExists["activity_date"] {
		addColumn(db, "cash_log", "activity_date", "TEXT")
		if _, err := db.Exec("UPDATE cash_log SET activity_date = substr(activity_time, 1, 10) WHERE activity_date IS NULL"); err != nil {
			if logger.L != nil {
				logger.L.Error("Error backfilling activity_date for existing rows", "error", err)
			} else {
				stdlog.Printf("Error backfilling activity_date for existing rows: %v", err)
			}
		}
	}
}
