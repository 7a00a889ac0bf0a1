// Package postgres opens the production database connection via
// lib/pq.
package postgres

import (
	"database/sql"
	"fmt"

	// registers the "postgres" database/sql driver
	_ "github.com/lib/pq"

	"github.com/spikeycoins/tradeengine/database"
)

// Connect opens a Postgres connection per conn.ConnectionDetails,
// assigns it to database.DB, and returns the resulting Instance.
func Connect(conn *database.Config) (*database.Instance, error) {
	cd := conn.ConnectionDetails
	sslMode := cd.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cd.Host, cd.Port, cd.Username, cd.Password, cd.Database, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	database.DB.SQL = db
	database.DB.Config = conn
	return database.DB, nil
}
