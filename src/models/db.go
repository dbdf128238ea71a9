package models

import "database/sql"

// DBTX is the subset of database/sql methods the model layer needs. It is
// satisfied by both *sql.DB and *sql.Tx, so the same queries run standalone
// or inside a transaction.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}
