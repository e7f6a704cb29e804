// Package conversations declares the repository contract for conversation
// membership records.
package conversations

import (
	"context"

	"github.com/dmaft/dmaft-server/internal/server/models"
)

// Repository defines operations over the conversations table. The
// participant list is stored as a JSON array in a single column.
type Repository interface {
	// Create stores a new conversation with the given participants and
	// returns it with a freshly allocated ConversationID.
	Create(ctx context.Context, participants []string) (*models.Conversation, error)

	// Get returns every conversation with the given ID (zero or one in
	// practice, the slice makes missing rows explicit to the caller).
	Get(ctx context.Context, conversationID string) ([]*models.Conversation, error)

	// Exists reports whether the conversation is known.
	Exists(ctx context.Context, conversationID string) (bool, error)

	// UpdateParticipants replaces the participant list.
	UpdateParticipants(ctx context.Context, conversationID string, participants []string) error

	// Delete removes the conversation record.
	Delete(ctx context.Context, conversationID string) error
}
