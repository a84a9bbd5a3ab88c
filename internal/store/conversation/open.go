package conversation

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Supported backend drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// OpenBackend builds the backend named by driver. dsn is a directory for the
// file driver, a database path for sqlite and a connection URL for postgres.
func OpenBackend(ctx context.Context, driver, dsn string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMemory:
		return NewMemoryBackend(0), nil
	case "", DriverFile:
		return NewFileBackend(dsn)
	case DriverSQLite:
		if filepath.Ext(dsn) == "" {
			dsn = filepath.Join(dsn, "history.db")
		}
		return NewSQLiteBackend(dsn)
	case DriverPostgres:
		return NewPostgresBackend(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
