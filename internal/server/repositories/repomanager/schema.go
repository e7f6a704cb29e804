package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmaft/dmaft-server/internal/common"
)

// expectedColumns is the authoritative column set per table. Verification
// fails loudly on any drift so a half-migrated database never serves traffic.
var expectedColumns = map[string][]string{
	"registered_users": {"user_id", "public_key_hash", "conversation_ids", "user_name", "status", "bio", "profile_pic"},
	"conversations":    {"conversation_id", "participants"},
	"mailbox":          {"row_id", "conversation_id", "arrive_timestamp", "expire_timestamp", "recipient", "message"},
	"challenges":       {"challenge_id", "challenge", "user_public_key", "user_id", "expire_timestamp"},
	"tokens":           {"token_id", "token_hash", "user_id", "expire_timestamp"},
}

func verifySchema(ctx context.Context, driver string, db *sql.DB) error {
	var query string
	switch driver {
	case "postgres", "pgx":
		query = `SELECT column_name FROM information_schema.columns WHERE table_name = $1`
	case "sqlite3", "sqlite":
		query = `SELECT name FROM pragma_table_info($1)`
	default:
		return fmt.Errorf("%w: unsupported database driver %q", common.ErrInvalidArgument, driver)
	}

	for table, expected := range expectedColumns {
		actual, err := tableColumns(ctx, db, query, table)
		if err != nil {
			return fmt.Errorf("inspecting table %s: %w", table, err)
		}
		for _, col := range expected {
			if !actual[col] {
				return fmt.Errorf("%w: table %s is missing column %s", common.ErrInternal, table, col)
			}
		}
		if len(actual) != len(expected) {
			return fmt.Errorf("%w: table %s has %d columns, want %d", common.ErrInternal, table, len(actual), len(expected))
		}
	}
	return nil
}

func tableColumns(ctx context.Context, db *sql.DB, query string, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns[name] = true
	}
	return columns, rows.Err()
}
