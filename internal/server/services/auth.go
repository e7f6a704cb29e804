// Package services implements the command semantics behind the wire
// protocol: authentication, conversations, messaging, profiles and the
// store-and-forward delivery path.
package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/dmaft/dmaft-server/internal/common"
	"github.com/dmaft/dmaft-server/internal/cryptox"
	"github.com/dmaft/dmaft-server/internal/logging"
	"github.com/dmaft/dmaft-server/internal/server/models"
	"github.com/dmaft/dmaft-server/internal/server/protocol"
	"github.com/dmaft/dmaft-server/internal/server/repositories/challenges"
	"github.com/dmaft/dmaft-server/internal/server/repositories/tokens"
	"github.com/dmaft/dmaft-server/internal/server/repositories/users"
)

const challengeSize = 32

// AuthService implements the challenge-response handshake and token
// validation.
type AuthService struct {
	users             users.Repository
	challenges        challenges.Repository
	tokens            tokens.Repository
	challengeValidity time.Duration
	tokenValidity     time.Duration
	logger            logging.Logger
}

// NewAuthService constructs the service.
func NewAuthService(u users.Repository, c challenges.Repository, t tokens.Repository,
	challengeValidity, tokenValidity time.Duration, logger logging.Logger) *AuthService {
	return &AuthService{
		users:             u,
		challenges:        c,
		tokens:            t,
		challengeValidity: challengeValidity,
		tokenValidity:     tokenValidity,
		logger:            logger.With("module", "auth"),
	}
}

// Connect validates the submitted public key and issues a fresh challenge.
// An empty UserId requires Register to be set; a non-empty UserId must name
// a registered user.
func (s *AuthService) Connect(ctx context.Context, req *protocol.ConnectRequest) (*protocol.ConnectResponse, error) {
	if req.UserID == "" && !bool(req.Register) {
		return nil, fmt.Errorf("%w: no UserId specified and Register not set", common.ErrInvalidArgument)
	}

	if req.UserID != "" {
		exists, err := s.users.Exists(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("checking user: %w", common.ErrTransient)
		}
		if !exists {
			return nil, common.ErrInvalidUser
		}
	}

	pubKey, err := cryptox.PublicKeyFromComponents(req.UserPublicKeyExp, req.UserPublicKeyMod)
	if err != nil {
		return nil, err
	}
	keyBytes, err := cryptox.MarshalPublicKey(pubKey)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot encode the submitted public key", common.ErrInvalidArgument)
	}

	// Old challenges must be gone before new ones are minted so an
	// attacker cannot stockpile them.
	if err := s.challenges.Prune(ctx); err != nil {
		return nil, fmt.Errorf("pruning challenges: %w", common.ErrTransient)
	}

	nonce := common.GenerateRandByteArray(challengeSize)
	created, err := s.challenges.AddBatch(ctx,
		[][]byte{nonce}, [][]byte{keyBytes}, []string{strings.ToUpper(req.UserID)}, s.challengeValidity)
	if err != nil {
		return nil, fmt.Errorf("storing challenge: %w", common.ErrInternal)
	}
	if len(created) != 1 {
		return nil, fmt.Errorf("challenge batch came back with %d entries: %w", len(created), common.ErrInternal)
	}

	s.logger.Debug(ctx, "issued challenge", "challenge_id", created[0].ChallengeID, "registration", req.UserID == "")

	return &protocol.ConnectResponse{
		ResponseHeader:    protocol.NewResponseHeader(req.Envelope),
		ChallengeRequired: true,
		ChallengeID:       created[0].ChallengeID,
		ChallengeData:     base64.StdEncoding.EncodeToString(created[0].Nonce),
	}, nil
}

// Authenticate consumes a challenge and verifies the client's signature
// over its nonce. The challenge row is deleted before verification so a
// failed attempt burns it. Registration challenges create the user record
// on success.
func (s *AuthService) Authenticate(ctx context.Context, req *protocol.AuthenticateRequest) (*protocol.AuthenticateResponse, error) {
	if !strings.EqualFold(req.HashAlgorithm, "SHA256") {
		return nil, fmt.Errorf("%w: only SHA256 signatures are supported", common.ErrInvalidArgument)
	}
	if req.ChallengeID == "" || req.Signature == "" {
		return nil, fmt.Errorf("%w: ChallengeId and Signature must be non-empty", common.ErrInvalidArgument)
	}
	signature, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: Signature is not valid base64", common.ErrInvalidArgument)
	}

	matched, err := s.challenges.Get(ctx, req.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("looking up challenge: %w", common.ErrTransient)
	}
	if len(matched) != 1 {
		return nil, common.ErrInvalidChallenge
	}
	challenge := matched[0]

	// Burn the challenge before verifying so it cannot be replayed even
	// if this attempt fails.
	if err := s.challenges.Delete(ctx, req.ChallengeID); err != nil {
		return nil, fmt.Errorf("consuming challenge: %w", common.ErrTransient)
	}

	pubKey, err := cryptox.ParsePublicKey(challenge.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("decoding stored public key: %w", common.ErrInternal)
	}
	if err := cryptox.VerifySignature(pubKey, challenge.Nonce, signature); err != nil {
		return nil, common.ErrInvalidSignature
	}

	userID := challenge.UserID
	if userID == "" {
		user, err := s.registerUser(ctx, challenge)
		if err != nil {
			return nil, err
		}
		userID = user.UserID
		s.logger.Info(ctx, "registered new user", "user_id", userID)
	}

	resp := &protocol.AuthenticateResponse{
		ResponseHeader: protocol.NewResponseHeader(req.Envelope),
		UserID:         userID,
	}

	grant, err := s.tokens.Create(ctx, userID, s.tokenValidity)
	if err != nil {
		// Authentication itself succeeded. Hand back the user ID with an
		// empty token pair; the client can mint a token on its own.
		s.logger.Warn(ctx, "token creation failed after successful authentication", "user_id", userID, "error", err.Error())
		return resp, nil
	}

	resp.TokenID = grant.TokenID
	resp.TokenSecret = base64.StdEncoding.EncodeToString(grant.Secret)
	return resp, nil
}

func (s *AuthService) registerUser(ctx context.Context, challenge *models.Challenge) (*models.User, error) {
	user, err := s.users.Create(ctx, cryptox.DigestSHA512(challenge.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("registering user: %w", common.ErrInternal)
	}
	return user, nil
}

// ValidateToken checks the credentials attached to an authenticated request
// and returns the bound UserID. The claimed and bound IDs must match
// case-insensitively so a stolen token cannot be replayed under another
// identity.
func (s *AuthService) ValidateToken(ctx context.Context, creds protocol.Credentials) (string, error) {
	if !creds.Present() {
		return "", fmt.Errorf("%w: UserId, TokenId and TokenSecret are all required", common.ErrInvalidArgument)
	}
	secret, err := base64.StdEncoding.DecodeString(creds.TokenSecret)
	if err != nil {
		return "", fmt.Errorf("%w: TokenSecret is not valid base64", common.ErrInvalidArgument)
	}

	exists, err := s.users.Exists(ctx, creds.UserID)
	if err != nil {
		return "", fmt.Errorf("checking user: %w", common.ErrTransient)
	}
	if !exists {
		return "", common.ErrInvalidUser
	}

	boundUser, err := s.tokens.Validate(ctx, creds.TokenID, secret)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(boundUser, creds.UserID) {
		return "", common.ErrInvalidToken
	}
	return boundUser, nil
}
