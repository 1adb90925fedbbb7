package runs

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// MigrationResult is one applied migration, for CLI output.
type MigrationResult struct {
	Version  int64  `json:"version" yaml:"version"`
	Source   string `json:"source" yaml:"source"`
	Duration string `json:"duration" yaml:"duration"`
}

func applyMigrations(ctx context.Context, db *sql.DB, d dialect) ([]MigrationResult, error) {
	var (
		gooseDialect goose.Dialect
		dir          string
	)
	switch d {
	case dialectSQLite:
		gooseDialect, dir = goose.DialectSQLite3, "migrations/sqlite"
	case dialectPostgres:
		gooseDialect, dir = goose.DialectPostgres, "migrations/postgres"
	default:
		return nil, fmt.Errorf("unsupported dialect %q", d)
	}

	fsys, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("configure migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	out := make([]MigrationResult, 0, len(results))
	for _, r := range results {
		out = append(out, MigrationResult{
			Version:  r.Source.Version,
			Source:   r.Source.Path,
			Duration: r.Duration.String(),
		})
	}
	return out, nil
}
