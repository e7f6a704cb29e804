package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmaft/dmaft-server/internal/common"
	"github.com/dmaft/dmaft-server/internal/logging"
	"github.com/dmaft/dmaft-server/internal/server/models"
	"github.com/dmaft/dmaft-server/internal/server/protocol"
	"github.com/dmaft/dmaft-server/internal/server/repositories/conversations"
	"github.com/dmaft/dmaft-server/internal/server/repositories/users"
)

// ConversationService manages conversation membership and the pushes that
// announce membership changes.
type ConversationService struct {
	users           users.Repository
	conversations   conversations.Repository
	delivery        *DeliveryService
	noticeRetention time.Duration
	logger          logging.Logger
}

// NewConversationService constructs the service. noticeRetention bounds how
// long membership notices wait in the mailbox for offline members.
func NewConversationService(u users.Repository, c conversations.Repository, d *DeliveryService,
	noticeRetention time.Duration, logger logging.Logger) *ConversationService {
	return &ConversationService{
		users:           u,
		conversations:   c,
		delivery:        d,
		noticeRetention: noticeRetention,
		logger:          logger.With("module", "conversation"),
	}
}

// Create starts a conversation between the sender and the given recipients.
// Recipient IDs are normalized to upper case, deduplicated and must all be
// registered; the sender is excluded from the recipient list and re-added
// as a member. Every member gets a NEWCONVERSATIONCREATED notice.
func (s *ConversationService) Create(ctx context.Context, sender string, recipientIDs []string) (*models.Conversation, error) {
	sender = strings.ToUpper(sender)

	seen := make(map[string]bool, len(recipientIDs))
	var recipients []string
	for _, id := range recipientIDs {
		id = strings.ToUpper(id)
		if id == "" || id == sender || seen[id] {
			continue
		}
		seen[id] = true
		recipients = append(recipients, id)
	}
	if len(recipients) == 0 {
		return nil, common.ErrNoRecipients
	}

	for _, recipient := range recipients {
		exists, err := s.users.Exists(ctx, recipient)
		if err != nil {
			return nil, fmt.Errorf("validating recipients: %w", common.ErrTransient)
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s is not a registered user", common.ErrInvalidRecipient, recipient)
		}
	}

	members := append(recipients, sender)
	conv, err := s.conversations.Create(ctx, members)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", common.ErrTransient)
	}
	s.logger.Info(ctx, "conversation created", "conversation_id", conv.ConversationID, "members", len(members))

	push := protocol.NewConversationCreatedPush{
		Command:         protocol.CommandNewConversationCreated,
		ServerTimestamp: time.Now().Unix(),
		CreatorID:       sender,
		Members:         members,
		ConversationID:  conv.ConversationID,
	}
	if payload, err := json.Marshal(push); err == nil {
		s.delivery.Notify(ctx, members, models.SystemConversationID, payload, s.noticeRetention)
	}

	return conv, nil
}

// Leave removes the user from the conversation. The last member leaving
// deletes the conversation record; otherwise the remaining members get a
// USERLEFT notice.
func (s *ConversationService) Leave(ctx context.Context, userID string, conversationID string) error {
	conv, err := s.lookup(ctx, conversationID)
	if err != nil {
		return err
	}

	var remaining []string
	member := false
	for _, p := range conv.Participants {
		if strings.EqualFold(p, userID) {
			member = true
			continue
		}
		remaining = append(remaining, p)
	}
	if !member {
		return fmt.Errorf("%w: not a participant", common.ErrInvalidConversation)
	}

	if len(remaining) == 0 {
		if err := s.conversations.Delete(ctx, conv.ConversationID); err != nil {
			return fmt.Errorf("deleting empty conversation: %w", common.ErrTransient)
		}
		s.logger.Info(ctx, "conversation deleted, last member left", "conversation_id", conv.ConversationID)
		return nil
	}

	if err := s.conversations.UpdateParticipants(ctx, conv.ConversationID, remaining); err != nil {
		return fmt.Errorf("updating participants: %w", common.ErrTransient)
	}

	push := protocol.UserLeftPush{
		Command:         protocol.CommandUserLeft,
		ServerTimestamp: time.Now().Unix(),
		ConversationID:  conv.ConversationID,
		UserID:          strings.ToUpper(userID),
	}
	if payload, err := json.Marshal(push); err == nil {
		s.delivery.Notify(ctx, remaining, models.SystemConversationID, payload, s.noticeRetention)
	}
	return nil
}

// lookup fetches exactly one conversation or classifies the miss.
func (s *ConversationService) lookup(ctx context.Context, conversationID string) (*models.Conversation, error) {
	matched, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("looking up conversation: %w", common.ErrTransient)
	}
	switch len(matched) {
	case 0:
		return nil, common.ErrInvalidConversation
	case 1:
		return matched[0], nil
	default:
		return nil, fmt.Errorf("conversation id matched %d rows: %w", len(matched), common.ErrInternal)
	}
}
