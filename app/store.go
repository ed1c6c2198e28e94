package app

import (
	"fmt"

	"audit-trail/pkg/config"
	"audit-trail/pkg/db"
)

// OpenStore opens the version store selected by cfg.StoreDriver
func OpenStore(cfg *config.Config) (db.IVersionStore, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		store, err := db.NewPostgresVersionStore(cfg.GetDatabaseConnectionString())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return store, nil
	case config.DriverSQLite:
		store, err := db.NewSQLiteVersionStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil
	case config.DriverMemory:
		return db.NewMemoryVersionStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
