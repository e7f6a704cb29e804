package services

import (
	"context"
	"time"

	"github.com/dmaft/dmaft-server/internal/logging"
	"github.com/dmaft/dmaft-server/internal/server/models"
	"github.com/dmaft/dmaft-server/internal/server/repositories/mailbox"
)

// Broadcaster is the live fan-out surface the delivery service needs from
// the connection registry.
type Broadcaster interface {
	// Broadcast sends the frame to every listed user, returning those that
	// could not be reached on any channel.
	Broadcast(userIDs []string, message []byte) []string
	// SendToUser sends the frame to one user, erroring if no channel
	// accepted it.
	SendToUser(userID string, message []byte) error
}

// DeliveryService pushes frames to live recipients and parks the rest in
// the mailbox for later drains.
type DeliveryService struct {
	mailbox     mailbox.Repository
	broadcaster Broadcaster
	logger      logging.Logger
}

// NewDeliveryService constructs the service.
func NewDeliveryService(m mailbox.Repository, b Broadcaster, logger logging.Logger) *DeliveryService {
	return &DeliveryService{
		mailbox:     m,
		broadcaster: b,
		logger:      logger.With("module", "delivery"),
	}
}

// Notify fans the payload out to every recipient that is online and stores
// a mailbox row for each one that is not, retained for the given window.
// Delivery is best effort: persistence failures are logged and never
// propagate to the request that triggered the notification.
func (s *DeliveryService) Notify(ctx context.Context, recipients []string, conversationID string, payload []byte, retention time.Duration) {
	unreached := s.broadcaster.Broadcast(recipients, payload)
	if len(unreached) == 0 {
		return
	}

	expires := time.Now().Add(retention)
	for _, recipient := range unreached {
		_, err := s.mailbox.Add(ctx, &models.MailboxEntry{
			ConversationID: conversationID,
			Expires:        expires,
			Recipient:      recipient,
			Message:        payload,
		})
		if err != nil {
			s.logger.Error(ctx, "failed to store undelivered message",
				"recipient", recipient, "conversation_id", conversationID, "error", err.Error())
		}
	}
}

// Drain flushes the user's pending mailbox in arrival order. Rows are only
// removed once their frame was accepted by a live channel; if nothing could
// be delivered the mailbox is left untouched for the next attempt.
func (s *DeliveryService) Drain(ctx context.Context, userID string) error {
	if err := s.mailbox.PruneExpired(ctx); err != nil {
		return err
	}

	pending, err := s.mailbox.ListForUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	var delivered []int64
	for _, entry := range pending {
		if err := s.broadcaster.SendToUser(userID, entry.Message); err != nil {
			s.logger.Warn(ctx, "mailbox delivery failed, keeping row",
				"recipient", userID, "row_id", entry.RowID)
			continue
		}
		delivered = append(delivered, entry.RowID)
	}

	if len(delivered) == len(pending) {
		return s.mailbox.DeleteAllForUser(ctx, userID)
	}
	for _, rowID := range delivered {
		if err := s.mailbox.Delete(ctx, rowID); err != nil {
			return err
		}
	}
	return nil
}
