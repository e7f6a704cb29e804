package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dmaft/dmaft-server/internal/common"
	"github.com/dmaft/dmaft-server/internal/server/models"
	"github.com/dmaft/dmaft-server/internal/server/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type convFixture struct {
	svc           *ConversationService
	users         *fakeUsers
	conversations *fakeConversations
	mailbox       *fakeMailbox
	broadcaster   *fakeBroadcaster
}

func newConvFixture(onlineUsers ...string) *convFixture {
	f := &convFixture{
		users:         newFakeUsers(),
		conversations: newFakeConversations(),
		mailbox:       newFakeMailbox(),
		broadcaster:   newFakeBroadcaster(onlineUsers...),
	}
	delivery := NewDeliveryService(f.mailbox, f.broadcaster, testLogger())
	f.svc = NewConversationService(f.users, f.conversations, delivery, 14*24*time.Hour, testLogger())
	return f
}

func TestCreateConversation(t *testing.T) {
	f := newConvFixture("USER-1", "USER-2")
	f.users.add("USER-1")
	f.users.add("USER-2")
	f.users.add("USER-3")

	conv, err := f.svc.Create(context.Background(), "user-1", []string{"user-2", "USER-2", "USER-3", "USER-1"})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"USER-1", "USER-2", "USER-3"}, conv.Participants)

	// online members got the push
	require.Len(t, f.broadcaster.sentTo("USER-2"), 1)
	var push protocol.NewConversationCreatedPush
	require.NoError(t, json.Unmarshal(f.broadcaster.sentTo("USER-2")[0], &push))
	assert.Equal(t, protocol.CommandNewConversationCreated, push.Command)
	assert.Equal(t, "USER-1", push.CreatorID)
	assert.Equal(t, conv.ConversationID, push.ConversationID)

	// the offline member got a mailboxed system notice
	require.Len(t, f.mailbox.entries, 1)
	assert.Equal(t, "USER-3", f.mailbox.entries[0].Recipient)
	assert.Equal(t, models.SystemConversationID, f.mailbox.entries[0].ConversationID)
}

func TestCreateConversationNoRecipients(t *testing.T) {
	f := newConvFixture()
	f.users.add("USER-1")

	_, err := f.svc.Create(context.Background(), "USER-1", []string{"USER-1", "user-1", ""})
	assert.True(t, errors.Is(err, common.ErrNoRecipients))
}

func TestCreateConversationUnknownRecipient(t *testing.T) {
	f := newConvFixture()
	f.users.add("USER-1")

	_, err := f.svc.Create(context.Background(), "USER-1", []string{"GHOST"})
	assert.True(t, errors.Is(err, common.ErrInvalidRecipient))
}

func TestLeaveConversation(t *testing.T) {
	f := newConvFixture("USER-2")
	f.conversations.add("CONV-1", []string{"USER-1", "USER-2"})

	err := f.svc.Leave(context.Background(), "user-1", "CONV-1")

	require.NoError(t, err)
	remaining, err := f.conversations.Get(context.Background(), "CONV-1")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, []string{"USER-2"}, remaining[0].Participants)

	require.Len(t, f.broadcaster.sentTo("USER-2"), 1)
	var push protocol.UserLeftPush
	require.NoError(t, json.Unmarshal(f.broadcaster.sentTo("USER-2")[0], &push))
	assert.Equal(t, protocol.CommandUserLeft, push.Command)
	assert.Equal(t, "USER-1", push.UserID)
	assert.Equal(t, "CONV-1", push.ConversationID)
}

func TestLeaveConversationLastMemberDeletes(t *testing.T) {
	f := newConvFixture()
	f.conversations.add("CONV-1", []string{"USER-1"})

	require.NoError(t, f.svc.Leave(context.Background(), "USER-1", "CONV-1"))

	exists, err := f.conversations.Exists(context.Background(), "CONV-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLeaveConversationNotAMember(t *testing.T) {
	f := newConvFixture()
	f.conversations.add("CONV-1", []string{"USER-1"})

	err := f.svc.Leave(context.Background(), "USER-9", "CONV-1")
	assert.True(t, errors.Is(err, common.ErrInvalidConversation))
}

func TestLeaveUnknownConversation(t *testing.T) {
	f := newConvFixture()
	err := f.svc.Leave(context.Background(), "USER-1", "CONV-GONE")
	assert.True(t, errors.Is(err, common.ErrInvalidConversation))
}
