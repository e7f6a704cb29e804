package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmaft/dmaft-server/internal/common"
	"github.com/dmaft/dmaft-server/internal/logging"
	"github.com/dmaft/dmaft-server/internal/server/protocol"
	"github.com/dmaft/dmaft-server/internal/server/repositories/conversations"
)

// MessageService relays chat messages to conversation participants.
type MessageService struct {
	conversations    conversations.Repository
	delivery         *DeliveryService
	messageRetention time.Duration
	logger           logging.Logger
}

// NewMessageService constructs the service. messageRetention bounds how
// long an undelivered chat message waits in the mailbox.
func NewMessageService(c conversations.Repository, d *DeliveryService,
	messageRetention time.Duration, logger logging.Logger) *MessageService {
	return &MessageService{
		conversations:    c,
		delivery:         d,
		messageRetention: messageRetention,
		logger:           logger.With("module", "message"),
	}
}

// Send validates the message and fans an INCOMINGMESSAGE push out to every
// other participant. The sender must belong to the conversation. Fan-out is
// best effort; the sender's ack does not depend on it.
func (s *MessageService) Send(ctx context.Context, sender string, req *protocol.SendMessageRequest) error {
	if !protocol.ValidMessageType(req.MessageType) {
		return fmt.Errorf("%w: MessageType must be one of Text, Image, Video, File", common.ErrInvalidArgument)
	}

	matched, err := s.conversations.Get(ctx, req.ConversationID)
	if err != nil {
		return fmt.Errorf("looking up conversation: %w", common.ErrTransient)
	}
	if len(matched) == 0 {
		return common.ErrInvalidConversation
	}
	if len(matched) > 1 {
		return fmt.Errorf("conversation id matched %d rows: %w", len(matched), common.ErrInternal)
	}
	conv := matched[0]

	var recipients []string
	member := false
	for _, p := range conv.Participants {
		if strings.EqualFold(p, sender) {
			member = true
			continue
		}
		recipients = append(recipients, p)
	}
	if !member {
		return fmt.Errorf("%w: sender is not a participant", common.ErrInvalidConversation)
	}

	push := protocol.IncomingMessagePush{
		Command:                  protocol.CommandIncomingMessage,
		OriginalReceiptTimestamp: time.Now().Unix(),
		SenderID:                 strings.ToUpper(sender),
		ConversationID:           conv.ConversationID,
		MessageType:              req.MessageType,
		MessageData:              req.MessageData,
		MessageID:                req.MessageID,
	}
	payload, err := json.Marshal(push)
	if err != nil {
		return fmt.Errorf("encoding message push: %w", common.ErrInternal)
	}

	s.delivery.Notify(ctx, recipients, conv.ConversationID, payload, s.messageRetention)
	return nil
}
