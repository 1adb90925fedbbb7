package runs

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	*Store
	dbPath string
}

func NewSQLiteRepository(dbPath string) *SQLiteRepository {
	return &SQLiteRepository{dbPath: dbPath, Store: &Store{dialect: dialectSQLite}}
}

// Init opens the database file, creating its directory when missing, and
// brings the schema up to date.
func (r *SQLiteRepository) Init(ctx context.Context) ([]MigrationResult, error) {
	if dir := filepath.Dir(r.dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", r.dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	r.db = db

	applied, err := applyMigrations(ctx, r.db, r.dialect)
	if err != nil {
		_ = db.Close()
		r.db = nil
		return nil, err
	}
	return applied, nil
}
