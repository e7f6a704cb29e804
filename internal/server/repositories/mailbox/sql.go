package mailbox

import (
	"context"
	"fmt"
	"time"

	"github.com/dmaft/dmaft-server/internal/common"
	"github.com/dmaft/dmaft-server/internal/dbx"
	"github.com/dmaft/dmaft-server/internal/server/models"
)

// SQLRepository implements Repository over dbx.DBTX.
type SQLRepository struct {
	db dbx.DBTX
}

// NewSQLRepository constructs a repository bound to the given DBTX.
func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Add(ctx context.Context, entry *models.MailboxEntry) (int64, error) {
	now := time.Now()
	if !entry.Expires.After(now) {
		return 0, fmt.Errorf("%w: mailbox entry already expired", common.ErrInvalidArgument)
	}
	entry.Arrived = now

	query := `
		INSERT INTO mailbox (conversation_id, arrive_timestamp, expire_timestamp, recipient, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING row_id
	`
	row := r.db.QueryRowContext(ctx, query,
		entry.ConversationID, entry.Arrived.Unix(), entry.Expires.Unix(), entry.Recipient, entry.Message)
	if err := row.Scan(&entry.RowID); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return entry.RowID, nil
}

func (r *SQLRepository) ListForUser(ctx context.Context, userID string) ([]*models.MailboxEntry, error) {
	query := `
		SELECT row_id, conversation_id, arrive_timestamp, expire_timestamp, recipient, message
		FROM mailbox
		WHERE upper(recipient) = upper($1)
		ORDER BY arrive_timestamp ASC, row_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.MailboxEntry
	for rows.Next() {
		e := &models.MailboxEntry{}
		var arrived, expires int64
		if err := rows.Scan(&e.RowID, &e.ConversationID, &arrived, &expires, &e.Recipient, &e.Message); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		e.Arrived = time.Unix(arrived, 0)
		e.Expires = time.Unix(expires, 0)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) Delete(ctx context.Context, rowID int64) error {
	query := `DELETE FROM mailbox WHERE row_id = $1`
	if _, err := r.db.ExecContext(ctx, query, rowID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	query := `DELETE FROM mailbox WHERE upper(recipient) = upper($1)`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) PruneExpired(ctx context.Context) error {
	query := `DELETE FROM mailbox WHERE expire_timestamp < $1`
	if _, err := r.db.ExecContext(ctx, query, time.Now().Unix()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
