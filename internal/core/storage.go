package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"campuscore/internal/infra/persistence/memory"
	"campuscore/internal/infra/persistence/postgres"
	"campuscore/internal/infra/persistence/sqlite"
	"campuscore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / demo)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and parameterises a backend.
type StorageConfig struct {
	Driver      StorageDriver `yaml:"driver"`
	SQLitePath  string        `yaml:"sqlite_path"`
	PostgresDSN string        `yaml:"postgres_dsn"`
}

// StorageConfigFromEnv reads the storage settings from the environment.
// The driver defaults to sqlite when unset.
//
//	CAMPUSCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	CAMPUSCORE_SQLITE_PATH: path to sqlite file (default ./campuscore.db)
//	CAMPUSCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func StorageConfigFromEnv() StorageConfig {
	cfg := StorageConfig{
		Driver:      StorageDriver(strings.ToLower(strings.TrimSpace(os.Getenv("CAMPUSCORE_STORAGE_DRIVER")))),
		SQLitePath:  os.Getenv("CAMPUSCORE_SQLITE_PATH"),
		PostgresDSN: os.Getenv("CAMPUSCORE_POSTGRES_DSN"),
	}
	if cfg.Driver == "" {
		cfg.Driver = StorageSQLite
	}
	return cfg
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenPersistentStore opens the backend named by cfg. The returned closer
// releases the underlying database handle and is never nil.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *domain.RulesEngine) (domain.PersistentStore, io.Closer, error) {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	switch cfg.Driver {
	case StorageMemory:
		return memory.NewStore(engine), nopCloser{}, nil
	case StorageSQLite, "":
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case StoragePostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, nil, fmt.Errorf("postgres driver requires a dsn")
		}
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
