// Package repomanager wires the per-table repositories to a concrete SQL
// backend and owns schema migration and verification.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmaft/dmaft-server/internal/common"
	"github.com/dmaft/dmaft-server/internal/server/repositories/challenges"
	"github.com/dmaft/dmaft-server/internal/server/repositories/conversations"
	"github.com/dmaft/dmaft-server/internal/server/repositories/mailbox"
	"github.com/dmaft/dmaft-server/internal/server/repositories/tokens"
	"github.com/dmaft/dmaft-server/internal/server/repositories/users"
)

// RepositoryManager hands out the repository for each table.
type RepositoryManager interface {
	Users() users.Repository
	Challenges() challenges.Repository
	Tokens() tokens.Repository
	Conversations() conversations.Repository
	Mailbox() mailbox.Repository
}

// SQLRepositoryManager implements RepositoryManager over a single *sql.DB.
type SQLRepositoryManager struct {
	db            *sql.DB
	users         users.Repository
	challenges    challenges.Repository
	tokens        tokens.Repository
	conversations conversations.Repository
	mailbox       mailbox.Repository
}

// New opens the database named by driver and dsn, runs pending migrations,
// verifies the resulting schema and returns the manager together with the
// underlying handle (the caller owns closing it).
func New(ctx context.Context, driver string, dsn string) (*SQLRepositoryManager, *sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case "postgres", "pgx":
		db, err = openPostgres(dsn)
	case "sqlite3", "sqlite":
		db, err = openSQLite(dsn)
	default:
		return nil, nil, fmt.Errorf("%w: unsupported database driver %q", common.ErrInvalidArgument, driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	m, err := NewWithDB(ctx, driver, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return m, db, nil
}

// NewWithDB builds a manager over an already opened handle, still running
// migrations and schema verification. Used by tests that manage their own
// connection.
func NewWithDB(ctx context.Context, driver string, db *sql.DB) (*SQLRepositoryManager, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	var err error
	switch driver {
	case "postgres", "pgx":
		err = migratePostgres(db)
	case "sqlite3", "sqlite":
		err = migrateSQLite(db)
	default:
		return nil, fmt.Errorf("%w: unsupported database driver %q", common.ErrInvalidArgument, driver)
	}
	if err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if err := verifySchema(ctx, driver, db); err != nil {
		return nil, err
	}

	return &SQLRepositoryManager{
		db:            db,
		users:         users.NewSQLRepository(db),
		challenges:    challenges.NewSQLRepository(db),
		tokens:        tokens.NewSQLRepository(db),
		conversations: conversations.NewSQLRepository(db),
		mailbox:       mailbox.NewSQLRepository(db),
	}, nil
}

func (m *SQLRepositoryManager) Users() users.Repository                 { return m.users }
func (m *SQLRepositoryManager) Challenges() challenges.Repository       { return m.challenges }
func (m *SQLRepositoryManager) Tokens() tokens.Repository               { return m.tokens }
func (m *SQLRepositoryManager) Conversations() conversations.Repository { return m.conversations }
func (m *SQLRepositoryManager) Mailbox() mailbox.Repository             { return m.mailbox }
