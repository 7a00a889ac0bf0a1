// Package database holds the process-wide database handle and the
// config/driver plumbing used to open it. The shape here is modeled
// directly on the teacher's own database package: a Config value, a
// DBTX-shaped connection Instance, and driver constants the connection
// helpers switch on.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/spikeycoins/tradeengine/database/drivers"
	"github.com/spikeycoins/tradeengine/log"
)

var subLogger = log.NewSubLogger("DATABASE")

// Driver names the supported SQL backends.
type Driver string

// Recognized drivers.
const (
	DBInvalid    Driver = ""
	DBPostgreSQL Driver = "postgres"
	DBSQLite3    Driver = "sqlite3"
	DBSQLite     Driver = "sqlite"
)

// Config is the process's database configuration.
type Config struct {
	Enabled           bool
	Driver            Driver
	ConnectionDetails drivers.ConnectionDetails
}

// Instance wraps an open *sql.DB plus the config it was opened with.
type Instance struct {
	SQL       *sql.DB
	Config    *Config
	DataPath  string
	connected bool
	mu        sync.RWMutex
}

// DB is the process-wide instance, mirroring the teacher's
// database.DB singleton. Tests and alternate deployments may construct
// their own *Instance instead of using the global for isolation.
var DB = &Instance{}

// SetConfig assigns conn as the active configuration. It does not open
// a connection; that is the driver package's job.
func (i *Instance) SetConfig(conn *Config) error {
	if conn == nil {
		return fmt.Errorf("database: nil config")
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Config = conn
	return nil
}

// SetConnected records whether SQL holds a live connection.
func (i *Instance) SetConnected(connected bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.connected = connected
}

// IsConnected reports whether the instance believes it holds a live
// connection.
func (i *Instance) IsConnected() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.connected
}

// DBTX is satisfied by both *sql.DB and *sql.Tx, letting a repository
// method run against either a plain connection (reads outside a
// transaction, e.g. order-book queries) or an open transaction (every
// write path, and reads that must observe a row lock).
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Logger adapts the engine's own sub-logger to sqlboiler-style debug
// writers and other io.Writer consumers that want raw SQL tracing. It
// is retained as a thin bridge, not because this repo uses sqlboiler
// (it does not; see DESIGN.md), but because verbose-query tracing
// during tests is a useful ambient facility the teacher's own
// `database.Logger` fills the same role for.
type Logger struct{}

// Write implements io.Writer, forwarding to the database sub-logger.
func (Logger) Write(p []byte) (int, error) {
	subLogger.Debug(string(p))
	return len(p), nil
}
