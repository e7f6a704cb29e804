package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmaft/dmaft-server/internal/common"
	"github.com/dmaft/dmaft-server/internal/dbx"
	"github.com/dmaft/dmaft-server/internal/server/models"
	"github.com/google/uuid"
)

// SQLRepository implements Repository over dbx.DBTX (satisfied by *sql.DB or
// *sql.Tx). The queries use ordinal placeholders in ascending order so they
// run unchanged on PostgreSQL and SQLite.
type SQLRepository struct {
	db dbx.DBTX
}

// NewSQLRepository constructs a repository bound to the given DBTX.
func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, publicKeyHash []byte) (*models.User, error) {
	user := &models.User{
		UserID:        strings.ToUpper(uuid.NewString()),
		PublicKeyHash: publicKeyHash,
	}

	query := `
		INSERT INTO registered_users (user_id, public_key_hash, user_name, status, bio)
		VALUES ($1, $2, '', '', '')
	`
	if _, err := r.db.ExecContext(ctx, query, user.UserID, user.PublicKeyHash); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *SQLRepository) Exists(ctx context.Context, userID string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM registered_users
		WHERE upper(user_id) = upper($1)
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return count > 0, nil
}

func (r *SQLRepository) SearchByID(ctx context.Context, userID string) ([]*models.User, error) {
	query := `
		SELECT user_id, user_name FROM registered_users
		WHERE upper(user_id) = upper($1)
	`
	return r.scanSummaries(ctx, query, userID)
}

func (r *SQLRepository) SearchByName(ctx context.Context, term string) ([]*models.User, error) {
	query := `
		SELECT user_id, user_name FROM registered_users
		WHERE upper(user_name) LIKE upper($1)
	`
	return r.scanSummaries(ctx, query, "%"+term+"%")
}

func (r *SQLRepository) scanSummaries(ctx context.Context, query string, arg any) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.UserID, &u.UserName); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) UpdateProfile(ctx context.Context, userID string, p *models.Profile) error {
	query := `
		UPDATE registered_users
		SET user_name = $1, status = $2, bio = $3, profile_pic = $4
		WHERE upper(user_id) = upper($5)
	`
	res, err := r.db.ExecContext(ctx, query, p.UserName, p.Status, p.Bio, p.ProfilePic, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}
	return nil
}
