package model

import (
	"database/sql"
	"errors"
	"time"
)

var ErrSettingNotFound = errors.New("setting not found")

// Setting is one row of the system_config table.
type Setting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GetSetting retrieves a single configuration value by key.
func GetSetting(db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM system_config WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrSettingNotFound
		}
		return "", err
	}
	return value, nil
}

// SetSetting writes a configuration value, inserting the key if it is new.
func SetSetting(db *sql.DB, key, value string) error {
	_, err := db.Exec(`
	INSERT INTO system_config (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now())
	return err
}

// EnsureSetting inserts a default value only when the key does not exist yet.
func EnsureSetting(db *sql.DB, key, value, description string) error {
	_, err := db.Exec(`
	INSERT OR IGNORE INTO system_config (key, value, description, updated_at)
	VALUES (?, ?, ?, ?)`,
		key, value, description, time.Now())
	return err
}

// AllSettings returns every configuration row ordered by key.
func AllSettings(db *sql.DB) ([]Setting, error) {
	rows, err := db.Query(`SELECT key, value, COALESCE(description, ''), updated_at FROM system_config ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.Description, &s.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return settings, nil
}
