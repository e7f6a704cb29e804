package tokens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmaft/dmaft-server/internal/common"
	"github.com/dmaft/dmaft-server/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO tokens").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "USER-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewSQLRepository(db)
	grant, err := repo.Create(context.Background(), "USER-1", 24*time.Hour)

	require.NoError(t, err)
	assert.Equal(t, "USER-1", grant.UserID)
	assert.Len(t, grant.TokenID, 36)
	assert.Len(t, grant.Secret, 32)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidate(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	digest := cryptox.DigestSHA256(secret)

	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		secret  []byte
		want    string
		wantErr error
	}{
		{
			name:   "valid",
			rows:   sqlmock.NewRows([]string{"token_hash", "user_id"}).AddRow(digest, "USER-1"),
			secret: secret,
			want:   "USER-1",
		},
		{
			name:    "unknown token",
			rows:    sqlmock.NewRows([]string{"token_hash", "user_id"}),
			secret:  secret,
			wantErr: common.ErrInvalidToken,
		},
		{
			name:    "wrong secret",
			rows:    sqlmock.NewRows([]string{"token_hash", "user_id"}).AddRow(digest, "USER-1"),
			secret:  []byte("ffffffffffffffffffffffffffffffff"),
			wantErr: common.ErrInvalidToken,
		},
		{
			name: "ambiguous match",
			rows: sqlmock.NewRows([]string{"token_hash", "user_id"}).
				AddRow(digest, "USER-1").
				AddRow(digest, "USER-2"),
			secret:  secret,
			wantErr: common.ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectExec("DELETE FROM tokens WHERE expire_timestamp").
				WithArgs(sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery("SELECT token_hash, user_id FROM tokens").
				WithArgs("TOK-1").
				WillReturnRows(tt.rows)

			repo := NewSQLRepository(db)
			got, err := repo.Validate(context.Background(), "TOK-1", tt.secret)

			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDeleteByID(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM tokens WHERE upper\\(token_id\\)").
		WithArgs("TOK-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewSQLRepository(db)
	require.NoError(t, repo.DeleteByID(context.Background(), "TOK-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByUser(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM tokens WHERE upper\\(user_id\\)").
		WithArgs("USER-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	repo := NewSQLRepository(db)
	require.NoError(t, repo.DeleteByUser(context.Background(), "USER-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
