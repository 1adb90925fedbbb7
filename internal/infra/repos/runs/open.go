package runs

import (
	"context"
	"fmt"
	"strings"
)

// Open connects to the reporting DB for the given driver ("sqlite" or
// "postgres") and applies pending migrations.
func Open(ctx context.Context, driver, dsn string) (*Store, []MigrationResult, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		repo := NewSQLiteRepository(dsn)
		applied, err := repo.Init(ctx)
		if err != nil {
			return nil, nil, err
		}
		return repo.Store, applied, nil
	case "postgres", "postgresql":
		repo := NewPostgresRepository(dsn)
		applied, err := repo.Init(ctx)
		if err != nil {
			return nil, nil, err
		}
		return repo.Store, applied, nil
	default:
		return nil, nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}
