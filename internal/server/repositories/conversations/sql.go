package conversations

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmaft/dmaft-server/internal/dbx"
	"github.com/dmaft/dmaft-server/internal/server/models"
	"github.com/google/uuid"
)

// SQLRepository implements Repository over dbx.DBTX.
type SQLRepository struct {
	db dbx.DBTX
}

// NewSQLRepository constructs a repository bound to the given DBTX.
func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, participants []string) (*models.Conversation, error) {
	conv := &models.Conversation{
		ConversationID: strings.ToUpper(uuid.NewString()),
		Participants:   participants,
	}

	encoded, err := json.Marshal(participants)
	if err != nil {
		return nil, fmt.Errorf("encoding participants: %w", err)
	}

	query := `
		INSERT INTO conversations (conversation_id, participants)
		VALUES ($1, $2)
	`
	if _, err := r.db.ExecContext(ctx, query, conv.ConversationID, string(encoded)); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return conv, nil
}

func (r *SQLRepository) Get(ctx context.Context, conversationID string) ([]*models.Conversation, error) {
	query := `
		SELECT conversation_id, participants FROM conversations
		WHERE upper(conversation_id) = upper($1)
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Conversation
	for rows.Next() {
		c := &models.Conversation{}
		var encoded string
		if err := rows.Scan(&c.ConversationID, &encoded); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if err := json.Unmarshal([]byte(encoded), &c.Participants); err != nil {
			return nil, fmt.Errorf("decoding participants: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) Exists(ctx context.Context, conversationID string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM conversations
		WHERE upper(conversation_id) = upper($1)
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, conversationID).Scan(&count); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return count > 0, nil
}

func (r *SQLRepository) UpdateParticipants(ctx context.Context, conversationID string, participants []string) error {
	encoded, err := json.Marshal(participants)
	if err != nil {
		return fmt.Errorf("encoding participants: %w", err)
	}

	query := `
		UPDATE conversations SET participants = $1
		WHERE upper(conversation_id) = upper($2)
	`
	if _, err := r.db.ExecContext(ctx, query, string(encoded), conversationID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Delete(ctx context.Context, conversationID string) error {
	query := `DELETE FROM conversations WHERE upper(conversation_id) = upper($1)`
	if _, err := r.db.ExecContext(ctx, query, conversationID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
