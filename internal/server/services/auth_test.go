package services

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/dmaft/dmaft-server/internal/common"
	"github.com/dmaft/dmaft-server/internal/cryptox"
	"github.com/dmaft/dmaft-server/internal/server/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	svc        *AuthService
	users      *fakeUsers
	challenges *fakeChallenges
	tokens     *fakeTokens
	key        *rsa.PrivateKey
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &authFixture{
		users:      newFakeUsers(),
		challenges: newFakeChallenges(),
		tokens:     newFakeTokens(),
		key:        key,
	}
	f.svc = NewAuthService(f.users, f.challenges, f.tokens, 5*time.Minute, 24*time.Hour, testLogger())
	return f
}

func (f *authFixture) connectRequest(userID string, register bool) *protocol.ConnectRequest {
	return &protocol.ConnectRequest{
		Envelope:         protocol.Envelope{Command: protocol.CommandConnect},
		UserPublicKeyMod: f.key.PublicKey.N.String(),
		UserPublicKeyExp: "65537",
		UserID:           userID,
		Register:         protocol.FlexBool(register),
	}
}

func (f *authFixture) sign(t *testing.T, nonce []byte) string {
	t.Helper()
	sig, err := rsa.SignPKCS1v15(rand.Reader, f.key, crypto.SHA256, cryptox.DigestSHA256(nonce))
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(sig)
}

func TestConnectRegistration(t *testing.T) {
	f := newAuthFixture(t)

	resp, err := f.svc.Connect(context.Background(), f.connectRequest("", true))

	require.NoError(t, err)
	assert.True(t, resp.Successful)
	assert.True(t, resp.ChallengeRequired)
	assert.NotEmpty(t, resp.ChallengeID)

	nonce, err := base64.StdEncoding.DecodeString(resp.ChallengeData)
	require.NoError(t, err)
	assert.Len(t, nonce, 32)

	stored, err := f.challenges.Get(context.Background(), resp.ChallengeID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Empty(t, stored[0].UserID)
}

func TestConnectExistingUser(t *testing.T) {
	f := newAuthFixture(t)
	f.users.add("USER-1")

	resp, err := f.svc.Connect(context.Background(), f.connectRequest("user-1", false))

	require.NoError(t, err)
	stored, err := f.challenges.Get(context.Background(), resp.ChallengeID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "USER-1", stored[0].UserID)
}

func TestConnectUnknownUser(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.svc.Connect(context.Background(), f.connectRequest("GHOST", false))
	assert.True(t, errors.Is(err, common.ErrInvalidUser))
}

func TestConnectNoUserNoRegister(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.svc.Connect(context.Background(), f.connectRequest("", false))
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))
}

func TestConnectMalformedKey(t *testing.T) {
	f := newAuthFixture(t)
	req := f.connectRequest("", true)
	req.UserPublicKeyMod = "not-a-number"

	_, err := f.svc.Connect(context.Background(), req)
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))
}

func TestConnectUserLookupFailureIsTransient(t *testing.T) {
	f := newAuthFixture(t)
	f.users.existsErr = errors.New("db down")

	_, err := f.svc.Connect(context.Background(), f.connectRequest("USER-1", false))
	assert.True(t, errors.Is(err, common.ErrTransient))
}

func TestAuthenticateRegistersAndMintsToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	connectResp, err := f.svc.Connect(ctx, f.connectRequest("", true))
	require.NoError(t, err)
	nonce, err := base64.StdEncoding.DecodeString(connectResp.ChallengeData)
	require.NoError(t, err)

	resp, err := f.svc.Authenticate(ctx, &protocol.AuthenticateRequest{
		Envelope:      protocol.Envelope{Command: protocol.CommandAuthenticate},
		ChallengeID:   connectResp.ChallengeID,
		Signature:     f.sign(t, nonce),
		HashAlgorithm: "SHA256",
	})

	require.NoError(t, err)
	assert.True(t, resp.Successful)
	assert.NotEmpty(t, resp.UserID)
	assert.NotEmpty(t, resp.TokenID)

	secret, err := base64.StdEncoding.DecodeString(resp.TokenSecret)
	require.NoError(t, err)
	assert.Len(t, secret, 32)

	registered, err := f.users.Exists(ctx, resp.UserID)
	require.NoError(t, err)
	assert.True(t, registered)
}

func TestAuthenticateChallengeSingleUse(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	connectResp, err := f.svc.Connect(ctx, f.connectRequest("", true))
	require.NoError(t, err)
	nonce, err := base64.StdEncoding.DecodeString(connectResp.ChallengeData)
	require.NoError(t, err)

	req := &protocol.AuthenticateRequest{
		Envelope:      protocol.Envelope{Command: protocol.CommandAuthenticate},
		ChallengeID:   connectResp.ChallengeID,
		Signature:     f.sign(t, nonce),
		HashAlgorithm: "SHA256",
	}

	_, err = f.svc.Authenticate(ctx, req)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, req)
	assert.True(t, errors.Is(err, common.ErrInvalidChallenge))
}

func TestAuthenticateBadSignatureBurnsChallenge(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	connectResp, err := f.svc.Connect(ctx, f.connectRequest("", true))
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, &protocol.AuthenticateRequest{
		ChallengeID:   connectResp.ChallengeID,
		Signature:     f.sign(t, []byte("the wrong bytes")),
		HashAlgorithm: "SHA256",
	})
	assert.True(t, errors.Is(err, common.ErrInvalidSignature))

	// failed attempt consumed the challenge anyway
	stored, err := f.challenges.Get(ctx, connectResp.ChallengeID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestAuthenticateRejectsOtherAlgorithms(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.svc.Authenticate(context.Background(), &protocol.AuthenticateRequest{
		ChallengeID:   "CH-1",
		Signature:     "c2ln",
		HashAlgorithm: "SHA512",
	})
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))
}

func TestAuthenticateUnknownChallenge(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.svc.Authenticate(context.Background(), &protocol.AuthenticateRequest{
		ChallengeID:   "CH-MISSING",
		Signature:     "c2ln",
		HashAlgorithm: "SHA256",
	})
	assert.True(t, errors.Is(err, common.ErrInvalidChallenge))
}

func TestAuthenticateTokenMintFailureStillSucceeds(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.tokens.createErr = errors.New("tokens table locked")

	connectResp, err := f.svc.Connect(ctx, f.connectRequest("", true))
	require.NoError(t, err)
	nonce, err := base64.StdEncoding.DecodeString(connectResp.ChallengeData)
	require.NoError(t, err)

	resp, err := f.svc.Authenticate(ctx, &protocol.AuthenticateRequest{
		ChallengeID:   connectResp.ChallengeID,
		Signature:     f.sign(t, nonce),
		HashAlgorithm: "SHA256",
	})

	require.NoError(t, err)
	assert.True(t, resp.Successful)
	assert.NotEmpty(t, resp.UserID)
	assert.Empty(t, resp.TokenID)
	assert.Empty(t, resp.TokenSecret)
}

func TestValidateToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.users.add("USER-1")
	grant, err := f.tokens.Create(ctx, "USER-1", time.Hour)
	require.NoError(t, err)

	encoded := base64.StdEncoding.EncodeToString(grant.Secret)

	userID, err := f.svc.ValidateToken(ctx, protocol.Credentials{
		UserID: "user-1", TokenID: grant.TokenID, TokenSecret: encoded,
	})
	require.NoError(t, err)
	assert.Equal(t, "USER-1", userID)

	_, err = f.svc.ValidateToken(ctx, protocol.Credentials{
		UserID: "USER-1", TokenID: grant.TokenID,
	})
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))

	_, err = f.svc.ValidateToken(ctx, protocol.Credentials{
		UserID: "GHOST", TokenID: grant.TokenID, TokenSecret: encoded,
	})
	assert.True(t, errors.Is(err, common.ErrInvalidUser))
}

func TestValidateTokenRejectsSubstitutedUser(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.users.add("USER-1")
	f.users.add("USER-2")
	grant, err := f.tokens.Create(ctx, "USER-1", time.Hour)
	require.NoError(t, err)

	_, err = f.svc.ValidateToken(ctx, protocol.Credentials{
		UserID:      "USER-2",
		TokenID:     grant.TokenID,
		TokenSecret: base64.StdEncoding.EncodeToString(grant.Secret),
	})
	assert.True(t, errors.Is(err, common.ErrInvalidToken))
}
