package tokens

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/dmaft/dmaft-server/internal/common"
	"github.com/dmaft/dmaft-server/internal/cryptox"
	"github.com/dmaft/dmaft-server/internal/dbx"
	"github.com/dmaft/dmaft-server/internal/server/models"
	"github.com/google/uuid"
)

const secretSize = 32

// SQLRepository implements Repository over dbx.DBTX.
type SQLRepository struct {
	db dbx.DBTX
}

// NewSQLRepository constructs a repository bound to the given DBTX.
func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, userID string, validity time.Duration) (*models.TokenGrant, error) {
	grant := &models.TokenGrant{
		UserID:  userID,
		TokenID: strings.ToUpper(uuid.NewString()),
		Secret:  common.GenerateRandByteArray(secretSize),
	}

	query := `
		INSERT INTO tokens (token_id, token_hash, user_id, expire_timestamp)
		VALUES ($1, $2, $3, $4)
	`
	digest := cryptox.DigestSHA256(grant.Secret)
	expires := time.Now().Add(validity).Unix()
	if _, err := r.db.ExecContext(ctx, query, grant.TokenID, digest, userID, expires); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return grant, nil
}

func (r *SQLRepository) Validate(ctx context.Context, tokenID string, secret []byte) (string, error) {
	if err := r.Prune(ctx); err != nil {
		return "", err
	}

	query := `
		SELECT token_hash, user_id FROM tokens
		WHERE upper(token_id) = upper($1)
	`
	rows, err := r.db.QueryContext(ctx, query, tokenID)
	if err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	type match struct {
		hash   []byte
		userID string
	}
	var matches []match
	for rows.Next() {
		var m match
		if err := rows.Scan(&m.hash, &m.userID); err != nil {
			return "", fmt.Errorf("db error: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}

	if len(matches) != 1 {
		return "", common.ErrInvalidToken
	}
	digest := cryptox.DigestSHA256(secret)
	if subtle.ConstantTimeCompare(digest, matches[0].hash) != 1 {
		return "", common.ErrInvalidToken
	}
	return matches[0].userID, nil
}

func (r *SQLRepository) DeleteByID(ctx context.Context, tokenID string) error {
	query := `DELETE FROM tokens WHERE upper(token_id) = upper($1)`
	if _, err := r.db.ExecContext(ctx, query, tokenID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) DeleteByUser(ctx context.Context, userID string) error {
	query := `DELETE FROM tokens WHERE upper(user_id) = upper($1)`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Prune(ctx context.Context) error {
	query := `DELETE FROM tokens WHERE expire_timestamp < $1`
	if _, err := r.db.ExecContext(ctx, query, time.Now().Unix()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
