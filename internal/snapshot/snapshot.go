// Package snapshot persists offline documents. Every store keeps one full
// document per name and rewrites it wholesale on save; the offline mirror
// calls Save after each successful mutation so the stored copy never lags
// the in-memory one by more than a crash window.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"strings"

	"flexilims/pkg/domain"
)

// Store loads and saves whole offline documents.
type Store interface {
	// Load returns the stored document, or an empty one when nothing has
	// been saved yet.
	Load(ctx context.Context) (domain.Document, error)
	// Save replaces the stored document.
	Save(ctx context.Context, doc domain.Document) error
	// Close releases any underlying resources.
	Close() error
}

// Driver identifies a concrete snapshot backend.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverFile     Driver = "file"     // JSON or YAML file, chosen by extension
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Open selects a backend using environment variables. Defaults to a JSON
// file when unset.
//
//	FLEXILIMS_OFFLINE_DRIVER: memory|file|sqlite|postgres (default file)
//	FLEXILIMS_OFFLINE_PATH: path to the file or sqlite database
//	FLEXILIMS_POSTGRES_DSN: postgres DSN when driver=postgres
func Open() (Store, error) {
	driver := os.Getenv("FLEXILIMS_OFFLINE_DRIVER")
	if driver == "" {
		driver = string(DriverFile)
	}
	switch Driver(strings.ToLower(driver)) {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile:
		return NewFileStore(os.Getenv("FLEXILIMS_OFFLINE_PATH"))
	case DriverSQLite:
		return NewSQLiteStore(os.Getenv("FLEXILIMS_OFFLINE_PATH"))
	case DriverPostgres:
		return NewPostgresStore(os.Getenv("FLEXILIMS_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown offline driver %s", driver)
	}
}
