package runs

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "github.com/lib/pq"
)

type PostgresRepository struct {
	*Store
	dsn string
}

func NewPostgresRepository(dsn string) *PostgresRepository {
	return &PostgresRepository{dsn: strings.TrimSpace(dsn), Store: &Store{dialect: dialectPostgres}}
}

func (r *PostgresRepository) Init(ctx context.Context) ([]MigrationResult, error) {
	if r.dsn == "" {
		return nil, errors.New("reporting db dsn is required")
	}
	db, err := sql.Open("postgres", r.dsn)
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
