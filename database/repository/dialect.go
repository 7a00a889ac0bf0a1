// Package repository holds small helpers shared by the per-entity
// repository packages (wallet, transaction, order, trade, position).
package repository

import "github.com/spikeycoins/tradeengine/database"

// GetSQLDialect returns the goose dialect name for the active driver,
// so migrations run identically against Postgres in production and
// SQLite in tests.
func GetSQLDialect() string {
	switch database.DB.Config.Driver {
	case database.DBPostgreSQL:
		return "postgres"
	default:
		return "sqlite3"
	}
}

// LockClause returns the row-lock suffix to append to a SELECT that
// must hold its rows through the rest of the enclosing transaction, per
// the concurrency model in spec §5: every query that a caller will go
// on to mutate in the same transaction takes this lock. Postgres
// honors "FOR UPDATE"; SQLite's driver has no such clause and the
// dev/test deployment instead serializes through
// drivers/sqlite3.Connect's single-connection pool, so the clause is
// empty there rather than a syntax error.
func LockClause() string {
	if GetSQLDialect() == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}
