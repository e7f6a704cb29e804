// Package mailbox declares the repository contract for store-and-forward
// message rows awaiting offline recipients.
package mailbox

import (
	"context"

	"github.com/dmaft/dmaft-server/internal/server/models"
)

// Repository defines operations over the mailbox table.
type Repository interface {
	// Add stores a pending message for one recipient, stamping the arrival
	// time. An expiry at or before now yields common.ErrInvalidArgument.
	Add(ctx context.Context, entry *models.MailboxEntry) (int64, error)

	// ListForUser returns the user's pending messages in arrival order.
	ListForUser(ctx context.Context, userID string) ([]*models.MailboxEntry, error)

	// Delete removes a single delivered row.
	Delete(ctx context.Context, rowID int64) error

	// DeleteAllForUser clears the user's mailbox.
	DeleteAllForUser(ctx context.Context, userID string) error

	// PruneExpired removes rows whose retention window has lapsed.
	PruneExpired(ctx context.Context) error
}
