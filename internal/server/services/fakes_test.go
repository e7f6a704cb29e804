package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dmaft/dmaft-server/internal/common"
	"github.com/dmaft/dmaft-server/internal/logging"
	"github.com/dmaft/dmaft-server/internal/server/models"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

type fakeUsers struct {
	mu        sync.Mutex
	byID      map[string]*models.User
	seq       int
	existsErr error
	updateErr error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: make(map[string]*models.User)}
}

func (f *fakeUsers) add(userID string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{UserID: strings.ToUpper(userID)}
	f.byID[u.UserID] = u
	return u
}

func (f *fakeUsers) Create(_ context.Context, publicKeyHash []byte) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	u := &models.User{UserID: fmt.Sprintf("NEW-USER-%d", f.seq), PublicKeyHash: publicKeyHash}
	f.byID[u.UserID] = u
	return u, nil
}

func (f *fakeUsers) Exists(_ context.Context, userID string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byID[strings.ToUpper(userID)]
	return ok, nil
}

func (f *fakeUsers) SearchByID(_ context.Context, userID string) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[strings.ToUpper(userID)]; ok {
		return []*models.User{u}, nil
	}
	return nil, nil
}

func (f *fakeUsers) SearchByName(_ context.Context, term string) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*models.User
	for _, u := range f.byID {
		if strings.Contains(strings.ToUpper(u.UserName), strings.ToUpper(term)) {
			result = append(result, u)
		}
	}
	return result, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, userID string, p *models.Profile) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[strings.ToUpper(userID)]
	if !ok {
		return common.ErrNotFound
	}
	u.UserName = p.UserName
	u.Status = p.Status
	u.Bio = p.Bio
	u.ProfilePic = p.ProfilePic
	return nil
}

type fakeChallenges struct {
	mu   sync.Mutex
	byID map[string]*models.Challenge
	seq  int
}

func newFakeChallenges() *fakeChallenges {
	return &fakeChallenges{byID: make(map[string]*models.Challenge)}
}

func (f *fakeChallenges) AddBatch(_ context.Context, nonces [][]byte, publicKeys [][]byte, userIDs []string, validity time.Duration) ([]*models.Challenge, error) {
	if len(nonces) != len(publicKeys) || len(nonces) != len(userIDs) {
		return nil, common.ErrInvalidArgument
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*models.Challenge
	for i := range nonces {
		f.seq++
		c := &models.Challenge{
			ChallengeID: fmt.Sprintf("CH-%d", f.seq),
			Nonce:       nonces[i],
			PublicKey:   publicKeys[i],
			UserID:      userIDs[i],
			Expires:     time.Now().Add(validity),
		}
		f.byID[c.ChallengeID] = c
		result = append(result, c)
	}
	return result, nil
}

func (f *fakeChallenges) Get(_ context.Context, challengeID string) ([]*models.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[strings.ToUpper(challengeID)]
	if !ok || c.Expires.Before(time.Now()) {
		return nil, nil
	}
	return []*models.Challenge{c}, nil
}

func (f *fakeChallenges) Delete(_ context.Context, challengeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, strings.ToUpper(challengeID))
	return nil
}

func (f *fakeChallenges) Prune(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, c := range f.byID {
		if c.Expires.Before(time.Now()) {
			delete(f.byID, id)
		}
	}
	return nil
}

type fakeTokens struct {
	mu        sync.Mutex
	secrets   map[string][]byte
	userByID  map[string]string
	seq       int
	createErr error
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{secrets: make(map[string][]byte), userByID: make(map[string]string)}
}

func (f *fakeTokens) Create(_ context.Context, userID string, _ time.Duration) (*models.TokenGrant, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	grant := &models.TokenGrant{
		UserID:  userID,
		TokenID: fmt.Sprintf("TOK-%d", f.seq),
		Secret:  common.GenerateRandByteArray(32),
	}
	f.secrets[grant.TokenID] = grant.Secret
	f.userByID[grant.TokenID] = userID
	return grant, nil
}

func (f *fakeTokens) Validate(_ context.Context, tokenID string, secret []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.secrets[tokenID]
	if !ok || !bytes.Equal(stored, secret) {
		return "", common.ErrInvalidToken
	}
	return f.userByID[tokenID], nil
}

func (f *fakeTokens) DeleteByID(_ context.Context, tokenID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.secrets, tokenID)
	delete(f.userByID, tokenID)
	return nil
}

func (f *fakeTokens) DeleteByUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, bound := range f.userByID {
		if strings.EqualFold(bound, userID) {
			delete(f.secrets, id)
			delete(f.userByID, id)
		}
	}
	return nil
}

func (f *fakeTokens) Prune(_ context.Context) error { return nil }

type fakeConversations struct {
	mu   sync.Mutex
	byID map[string][]string
	seq  int
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{byID: make(map[string][]string)}
}

func (f *fakeConversations) add(conversationID string, participants []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[strings.ToUpper(conversationID)] = participants
}

func (f *fakeConversations) Create(_ context.Context, participants []string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	c := &models.Conversation{ConversationID: fmt.Sprintf("CONV-%d", f.seq), Participants: participants}
	f.byID[c.ConversationID] = participants
	return c, nil
}

func (f *fakeConversations) Get(_ context.Context, conversationID string) ([]*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	participants, ok := f.byID[strings.ToUpper(conversationID)]
	if !ok {
		return nil, nil
	}
	return []*models.Conversation{{ConversationID: strings.ToUpper(conversationID), Participants: participants}}, nil
}

func (f *fakeConversations) Exists(_ context.Context, conversationID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byID[strings.ToUpper(conversationID)]
	return ok, nil
}

func (f *fakeConversations) UpdateParticipants(_ context.Context, conversationID string, participants []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[strings.ToUpper(conversationID)] = participants
	return nil
}

func (f *fakeConversations) Delete(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, strings.ToUpper(conversationID))
	return nil
}

type fakeMailbox struct {
	mu      sync.Mutex
	entries []*models.MailboxEntry
	seq     int64
	addErr  error
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{}
}

func (f *fakeMailbox) Add(_ context.Context, entry *models.MailboxEntry) (int64, error) {
	if f.addErr != nil {
		return 0, f.addErr
	}
	if !entry.Expires.After(time.Now()) {
		return 0, common.ErrInvalidArgument
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	entry.RowID = f.seq
	entry.Arrived = time.Now()
	f.entries = append(f.entries, entry)
	return entry.RowID, nil
}

func (f *fakeMailbox) ListForUser(_ context.Context, userID string) ([]*models.MailboxEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*models.MailboxEntry
	for _, e := range f.entries {
		if strings.EqualFold(e.Recipient, userID) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (f *fakeMailbox) Delete(_ context.Context, rowID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.entries {
		if e.RowID == rowID {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeMailbox) DeleteAllForUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*models.MailboxEntry
	for _, e := range f.entries {
		if !strings.EqualFold(e.Recipient, userID) {
			kept = append(kept, e)
		}
	}
	f.entries = kept
	return nil
}

func (f *fakeMailbox) PruneExpired(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*models.MailboxEntry
	for _, e := range f.entries {
		if e.Expires.After(time.Now()) {
			kept = append(kept, e)
		}
	}
	f.entries = kept
	return nil
}

// fakeBroadcaster treats users in online as reachable and records every
// frame per user.
type fakeBroadcaster struct {
	mu        sync.Mutex
	online    map[string]bool
	sent      map[string][][]byte
	failAfter int // fail SendToUser once this many sends happened, 0 disables
	sends     int
}

func newFakeBroadcaster(onlineUsers ...string) *fakeBroadcaster {
	b := &fakeBroadcaster{online: make(map[string]bool), sent: make(map[string][][]byte)}
	for _, u := range onlineUsers {
		b.online[strings.ToUpper(u)] = true
	}
	return b
}

func (b *fakeBroadcaster) SendToUser(userID string, message []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := strings.ToUpper(userID)
	if !b.online[key] {
		return errors.New("user offline")
	}
	if b.failAfter > 0 && b.sends >= b.failAfter {
		return errors.New("channel stalled")
	}
	b.sends++
	b.sent[key] = append(b.sent[key], message)
	return nil
}

func (b *fakeBroadcaster) Broadcast(userIDs []string, message []byte) []string {
	var unreached []string
	seen := make(map[string]bool)
	for _, userID := range userIDs {
		key := strings.ToUpper(userID)
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := b.SendToUser(userID, message); err != nil {
			unreached = append(unreached, userID)
		}
	}
	return unreached
}

func (b *fakeBroadcaster) sentTo(userID string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent[strings.ToUpper(userID)]
}
