// Package challenges declares the repository contract for pending
// authentication challenges.
package challenges

import (
	"context"
	"time"

	"github.com/dmaft/dmaft-server/internal/server/models"
)

// Repository defines operations over the challenges table. Challenges are
// short-lived: every read path prunes expired rows first so a stale challenge
// can never authenticate.
type Repository interface {
	// AddBatch stores one challenge per nonce. The three slices are parallel;
	// a length mismatch yields common.ErrInvalidArgument. An empty userID
	// marks a registration challenge (stored as NULL).
	AddBatch(ctx context.Context, nonces [][]byte, publicKeys [][]byte, userIDs []string, validity time.Duration) ([]*models.Challenge, error)

	// Get returns every live challenge with the given ID, pruning expired
	// rows beforehand.
	Get(ctx context.Context, challengeID string) ([]*models.Challenge, error)

	// Delete removes the challenge. Deleting an absent ID is not an error.
	Delete(ctx context.Context, challengeID string) error

	// Prune removes all expired challenges.
	Prune(ctx context.Context) error
}
