package challenges

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmaft/dmaft-server/internal/common"
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

func (r *SQLRepository) AddBatch(ctx context.Context, nonces [][]byte, publicKeys [][]byte, userIDs []string, validity time.Duration) ([]*models.Challenge, error) {
	if len(nonces) != len(publicKeys) || len(nonces) != len(userIDs) {
		return nil, fmt.Errorf("%w: challenge batch slices differ in length", common.ErrInvalidArgument)
	}

	expires := time.Now().Add(validity)

	result := make([]*models.Challenge, 0, len(nonces))
	for i := range nonces {
		result = append(result, &models.Challenge{
			ChallengeID: strings.ToUpper(uuid.NewString()),
			Nonce:       nonces[i],
			PublicKey:   publicKeys[i],
			UserID:      userIDs[i],
			Expires:     expires,
		})
	}

	// The batch is inserted atomically when the handle allows it, so a client
	// never ends up with only some of its challenges issued.
	if db, ok := r.db.(*sql.DB); ok {
		err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return insertChallenges(ctx, tx, result)
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := insertChallenges(ctx, r.db, result); err != nil {
		return nil, err
	}
	return result, nil
}

func insertChallenges(ctx context.Context, db dbx.DBTX, batch []*models.Challenge) error {
	query := `
		INSERT INTO challenges (challenge_id, challenge, user_public_key, user_id, expire_timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, c := range batch {
		boundUser := sql.NullString{String: c.UserID, Valid: c.UserID != ""}
		if _, err := db.ExecContext(ctx, query, c.ChallengeID, c.Nonce, c.PublicKey, boundUser, c.Expires.Unix()); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, challengeID string) ([]*models.Challenge, error) {
	if err := r.Prune(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT challenge_id, challenge, user_public_key, user_id, expire_timestamp
		FROM challenges
		WHERE upper(challenge_id) = upper($1)
	`
	rows, err := r.db.QueryContext(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Challenge
	for rows.Next() {
		c := &models.Challenge{}
		var boundUser sql.NullString
		var expires int64
		if err := rows.Scan(&c.ChallengeID, &c.Nonce, &c.PublicKey, &boundUser, &expires); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		c.UserID = boundUser.String
		c.Expires = time.Unix(expires, 0)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) Delete(ctx context.Context, challengeID string) error {
	query := `DELETE FROM challenges WHERE upper(challenge_id) = upper($1)`
	if _, err := r.db.ExecContext(ctx, query, challengeID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Prune(ctx context.Context) error {
	query := `DELETE FROM challenges WHERE expire_timestamp < $1`
	if _, err := r.db.ExecContext(ctx, query, time.Now().Unix()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
