// Package sqlite3 opens a local SQLite database via mattn/go-sqlite3,
// used for development and for tests that want to exercise real SQL
// without a network dependency on Postgres.
package sqlite3

import (
	"database/sql"
	"fmt"
	"path/filepath"

	// registers the "sqlite3" database/sql driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/spikeycoins/tradeengine/database"
)

// Connect opens name (a file path, or ":memory:") as a SQLite database
// under database.DB.DataPath when name is relative.
func Connect(name string) (*database.Instance, error) {
	path := name
	if name != ":memory:" && !filepath.IsAbs(name) && database.DB.DataPath != "" {
		path = filepath.Join(database.DB.DataPath, name)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite3: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("sqlite3: ping: %w", err)
	}
	// the matching engine's transactional contract needs real
	// serialization; SQLite handles this most predictably with one
	// connection in process.
	db.SetMaxOpenConns(1)

	var details database.Config
	if database.DB.Config != nil {
		details = *database.DB.Config
	}
	details.Driver = database.DBSQLite3
	database.DB.SQL = db
	database.DB.Config = &details
	return database.DB, nil
}
