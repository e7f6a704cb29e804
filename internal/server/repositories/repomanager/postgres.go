package repomanager

import (
	"database/sql"

	"github.com/dmaft/dmaft-server/internal/server/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

func openPostgres(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

func migratePostgres(db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, "postgres")
}
