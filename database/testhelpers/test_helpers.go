// Package testhelpers connects repository and engine tests to a
// temporary SQLite database, migrated with goose, so they exercise
// real SQL without a network dependency. Modeled directly on the
// teacher's own database/testhelpers/test_helpers.go.
package testhelpers

import (
	"database/sql"
	"os"
	"path/filepath"
	"reflect"

	"github.com/thrasher-corp/goose"

	"github.com/spikeycoins/tradeengine/database"
	"github.com/spikeycoins/tradeengine/database/drivers"
	sqliteConn "github.com/spikeycoins/tradeengine/database/drivers/sqlite3"
	"github.com/spikeycoins/tradeengine/database/repository"
)

var (
	// TempDir is the temp folder holding the SQLite file of the most
	// recent ConnectSQLite call.
	TempDir string
	// MigrationDir is the default folder containing goose migrations.
	MigrationDir = findMigrationDir()
)

func findMigrationDir() string {
	return filepath.Join(repoRoot(), "database", "migrations")
}

// repoRoot walks up from the working directory looking for go.mod so
// tests run correctly regardless of which package directory invokes
// `go test`.
func repoRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "."
		}
		dir = parent
	}
}

// ConnectSQLite opens a fresh temporary SQLite database and migrates it
// up, returning the resulting Instance.
func ConnectSQLite() (*database.Instance, error) {
	dir, err := os.MkdirTemp("", "tradeengine-test")
	if err != nil {
		return nil, err
	}
	TempDir = dir

	cfg := &database.Config{
		Enabled:           true,
		Driver:            database.DBSQLite3,
		ConnectionDetails: drivers.ConnectionDetails{Database: "test.db"},
	}
	if err := database.DB.SetConfig(cfg); err != nil {
		return nil, err
	}
	database.DB.DataPath = TempDir

	dbConn, err := sqliteConn.Connect(cfg.ConnectionDetails.Database)
	if err != nil {
		return nil, err
	}
	if err := migrateDB(dbConn.SQL); err != nil {
		return nil, err
	}
	database.DB.SetConnected(true)
	return dbConn, nil
}

// CloseDatabase closes the connection and clears the connected flag.
func CloseDatabase(conn *database.Instance) error {
	if conn == nil || conn.SQL == nil {
		return nil
	}
	database.DB.SetConnected(false)
	return conn.SQL.Close()
}

// CheckValidConfig reports whether connection details were actually
// supplied (used to skip Postgres-backed tests when no CI database is
// configured).
func CheckValidConfig(conn *drivers.ConnectionDetails) bool {
	return !reflect.DeepEqual(drivers.ConnectionDetails{}, *conn)
}

func migrateDB(db *sql.DB) error {
	return goose.Run("up", db, repository.GetSQLDialect(), MigrationDir, "")
}
