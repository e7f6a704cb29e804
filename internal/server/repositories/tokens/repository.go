// Package tokens declares the repository contract for ephemeral session
// tokens. Only a SHA-256 digest of a token's secret is persisted; the
// plaintext exists solely in the grant handed to the client.
package tokens

import (
	"context"
	"time"

	"github.com/dmaft/dmaft-server/internal/server/models"
)

// Repository defines operations over the tokens table.
type Repository interface {
	// Create mints a token for the user and returns the grant carrying the
	// one-time plaintext secret.
	Create(ctx context.Context, userID string, validity time.Duration) (*models.TokenGrant, error)

	// Validate checks the presented credentials and returns the bound UserID.
	// Expired rows are pruned first; anything but exactly one matching row
	// with a matching secret digest yields common.ErrInvalidToken.
	Validate(ctx context.Context, tokenID string, secret []byte) (string, error)

	// DeleteByID revokes a single token.
	DeleteByID(ctx context.Context, tokenID string) error

	// DeleteByUser revokes every token held by the user.
	DeleteByUser(ctx context.Context, userID string) error

	// Prune removes all expired tokens.
	Prune(ctx context.Context) error
}
