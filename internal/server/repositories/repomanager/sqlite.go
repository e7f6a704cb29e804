package repomanager

import (
	"database/sql"

	"github.com/dmaft/dmaft-server/internal/server/migrations"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

func openSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers anyway and the driver misbehaves with
	// concurrent connections to :memory: databases.
	db.SetMaxOpenConns(1)
	return db, nil
}

func migrateSQLite(db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, "sqlite")
}
