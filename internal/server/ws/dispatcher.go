package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dmaft/dmaft-server/internal/common"
	"github.com/dmaft/dmaft-server/internal/logging"
	"github.com/dmaft/dmaft-server/internal/server/protocol"
	"github.com/dmaft/dmaft-server/internal/server/registry"
	"github.com/dmaft/dmaft-server/internal/server/services"
)

// Dispatcher routes a decoded frame to the service implementing its
// command. PING, CONNECT and AUTHENTICATE run unauthenticated; every other
// command must carry valid token credentials.
type Dispatcher struct {
	auth          *services.AuthService
	conversations *services.ConversationService
	messages      *services.MessageService
	profiles      *services.ProfileService
	delivery      *services.DeliveryService
	registry      *registry.Registry
	logger        logging.Logger
}

// NewDispatcher constructs the dispatcher.
func NewDispatcher(auth *services.AuthService, conversations *services.ConversationService,
	messages *services.MessageService, profiles *services.ProfileService,
	delivery *services.DeliveryService, reg *registry.Registry, logger logging.Logger) *Dispatcher {
	return &Dispatcher{
		auth:          auth,
		conversations: conversations,
		messages:      messages,
		profiles:      profiles,
		delivery:      delivery,
		registry:      reg,
		logger:        logger.With("module", "dispatcher"),
	}
}

// Dispatch processes one inbound frame and returns the response frame. The
// connection survives malformed input; only the offending request fails.
func (d *Dispatcher) Dispatch(ctx context.Context, ch registry.Channel, frame []byte) []byte {
	var env protocol.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return marshal(protocol.NewError(protocol.Envelope{}, protocol.ErrTypeNonJSONRequest, false,
			"This server only accepts JSON requests."))
	}

	switch strings.ToUpper(env.Command) {
	case protocol.CommandPing:
		return d.handlePing(ctx, ch, env, frame)
	case protocol.CommandConnect:
		return d.handleConnect(ctx, env, frame)
	case protocol.CommandAuthenticate:
		return d.handleAuthenticate(ctx, ch, env, frame)
	default:
		return d.handleAuthenticated(ctx, ch, env, frame)
	}
}

func (d *Dispatcher) handlePing(ctx context.Context, ch registry.Channel, env protocol.Envelope, frame []byte) []byte {
	var req protocol.PingRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		return marshal(badRequest(env))
	}

	resp := protocol.PingResponse{ResponseHeader: protocol.NewResponseHeader(env)}

	// Credentials on a PING are optional; when present the reply reports
	// whether they checked out, and a valid set re-binds the channel and
	// flushes the mailbox.
	if req.UserID != "" || req.TokenID != "" || req.TokenSecret != "" {
		authenticated := false
		if userID, err := d.auth.ValidateToken(ctx, req.Credentials); err == nil {
			authenticated = true
			d.bindAndDrain(ctx, ch, userID)
		}
		resp.AuthSuccessful = &authenticated
	}

	return marshal(resp)
}

func (d *Dispatcher) handleConnect(ctx context.Context, env protocol.Envelope, frame []byte) []byte {
	var req protocol.ConnectRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		return marshal(badRequest(env))
	}

	resp, err := d.auth.Connect(ctx, &req)
	if err != nil {
		return marshal(errorFor(env, err))
	}
	return marshal(resp)
}

func (d *Dispatcher) handleAuthenticate(ctx context.Context, ch registry.Channel, env protocol.Envelope, frame []byte) []byte {
	var req protocol.AuthenticateRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		return marshal(badRequest(env))
	}

	resp, err := d.auth.Authenticate(ctx, &req)
	if err != nil {
		return marshal(errorFor(env, err))
	}

	d.bindAndDrain(ctx, ch, resp.UserID)
	return marshal(resp)
}

func (d *Dispatcher) handleAuthenticated(ctx context.Context, ch registry.Channel, env protocol.Envelope, frame []byte) []byte {
	var creds protocol.Credentials
	if err := json.Unmarshal(frame, &creds); err != nil {
		return marshal(badRequest(env))
	}

	userID, err := d.auth.ValidateToken(ctx, creds)
	if err != nil {
		return marshal(errorFor(env, err))
	}
	d.registry.Bind(ch, userID)

	switch strings.ToUpper(env.Command) {
	case protocol.CommandNewConversation:
		return d.handleNewConversation(ctx, env, userID, frame)
	case protocol.CommandSendMessage:
		return d.handleSendMessage(ctx, env, userID, frame)
	case protocol.CommandLeaveConversation:
		return d.handleLeaveConversation(ctx, env, userID, frame)
	case protocol.CommandSearchUsers:
		return d.handleSearchUsers(ctx, env, frame)
	case protocol.CommandUpdateProfile:
		return d.handleUpdateProfile(ctx, env, userID, frame)
	default:
		return marshal(protocol.NewError(env, protocol.ErrTypeBadRequest, false,
			"Invalid command received from client."))
	}
}

func (d *Dispatcher) handleNewConversation(ctx context.Context, env protocol.Envelope, userID string, frame []byte) []byte {
	var req protocol.NewConversationRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		return marshal(badRequest(env))
	}

	conv, err := d.conversations.Create(ctx, userID, req.RecipientIDs)
	if err != nil {
		return marshal(errorFor(env, err))
	}
	return marshal(protocol.NewConversationResponse{
		ResponseHeader:    protocol.NewResponseHeader(env),
		NewConversationID: conv.ConversationID,
	})
}

func (d *Dispatcher) handleSendMessage(ctx context.Context, env protocol.Envelope, userID string, frame []byte) []byte {
	var req protocol.SendMessageRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		return marshal(badRequest(env))
	}

	if err := d.messages.Send(ctx, userID, &req); err != nil {
		return marshal(errorFor(env, err))
	}
	return marshal(protocol.Ack{ResponseHeader: protocol.NewResponseHeader(env)})
}

func (d *Dispatcher) handleLeaveConversation(ctx context.Context, env protocol.Envelope, userID string, frame []byte) []byte {
	var req protocol.LeaveConversationRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		return marshal(badRequest(env))
	}

	if err := d.conversations.Leave(ctx, userID, req.ConversationID); err != nil {
		return marshal(errorFor(env, err))
	}
	return marshal(protocol.Ack{ResponseHeader: protocol.NewResponseHeader(env)})
}

func (d *Dispatcher) handleSearchUsers(ctx context.Context, env protocol.Envelope, frame []byte) []byte {
	var req protocol.SearchUsersRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		return marshal(badRequest(env))
	}

	results, err := d.profiles.Search(ctx, req.SearchBy, req.SearchTerm)
	if err != nil {
		return marshal(errorFor(env, err))
	}
	return marshal(protocol.SearchUsersResponse{
		ResponseHeader: protocol.NewResponseHeader(env),
		Results:        results,
	})
}

func (d *Dispatcher) handleUpdateProfile(ctx context.Context, env protocol.Envelope, userID string, frame []byte) []byte {
	var req protocol.UpdateProfileRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		return marshal(badRequest(env))
	}

	// Only the authenticated identity's own profile can change, whatever
	// UserId the request body claims.
	if err := d.profiles.UpdateProfile(ctx, userID, req.NewProfile); err != nil {
		return marshal(errorFor(env, err))
	}
	return marshal(protocol.Ack{ResponseHeader: protocol.NewResponseHeader(env)})
}

// bindAndDrain marks the channel as belonging to the user and flushes any
// messages that queued up while they were offline.
func (d *Dispatcher) bindAndDrain(ctx context.Context, ch registry.Channel, userID string) {
	d.registry.Bind(ch, userID)
	if err := d.delivery.Drain(ctx, userID); err != nil {
		d.logger.Error(ctx, "mailbox drain failed", "user_id", userID, "error", err.Error())
	}
}

// errorFor converts a service error into the wire taxonomy. Messages stay
// generic so failure responses do not reveal more than the client needs for
// its next step.
func errorFor(env protocol.Envelope, err error) *protocol.ErrorEnvelope {
	retry := errors.Is(err, common.ErrTransient)

	switch {
	case errors.Is(err, common.ErrInvalidArgument):
		return protocol.NewError(env, protocol.ErrTypeBadRequest, false, trimmedMessage(err))
	case errors.Is(err, common.ErrInvalidUser):
		return protocol.NewError(env, protocol.ErrTypeInvalidUserID, false,
			"The specified UserId does not exist. Please specify a different user or send a registration request.")
	case errors.Is(err, common.ErrInvalidChallenge):
		return protocol.NewError(env, protocol.ErrTypeInvalidChallengeID, false,
			"The specified challenge does not exist. Please request a new challenge.")
	case errors.Is(err, common.ErrInvalidSignature):
		return protocol.NewError(env, protocol.ErrTypeInvalidResponse, false,
			"The challenge signature could not be verified. Please request a new challenge.")
	case errors.Is(err, common.ErrInvalidToken):
		return protocol.NewError(env, protocol.ErrTypeInvalidToken, false,
			"The provided token is invalid. Please authenticate.")
	case errors.Is(err, common.ErrInvalidRecipient):
		return protocol.NewError(env, protocol.ErrTypeInvalidRecipientID, false,
			"One of the specified recipients is not a registered user.")
	case errors.Is(err, common.ErrNoRecipients):
		return protocol.NewError(env, protocol.ErrTypeNoRecipientsSpecified, false,
			"At least one UserId other than yours must be specified in the recipient list.")
	case errors.Is(err, common.ErrInvalidConversation):
		return protocol.NewError(env, protocol.ErrTypeInvalidConversationID, false,
			"Invalid conversation ID provided.")
	default:
		return protocol.NewError(env, protocol.ErrTypeServerInternalError, retry,
			"The server failed to process the request. Please try again.")
	}
}

// trimmedMessage strips wrapped sentinel noise, leaving the human-readable
// part for BadRequest responses.
func trimmedMessage(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return msg
}

func badRequest(env protocol.Envelope) *protocol.ErrorEnvelope {
	return protocol.NewError(env, protocol.ErrTypeBadRequest, false,
		"One of the JSON keys is malformed or missing a required value.")
}

func marshal(v any) []byte {
	out, err := json.Marshal(v)
	if err != nil {
		// every response type marshals cleanly, this is unreachable in
		// practice
		return []byte(`{"Successful":false,"ErrorType":"ServerInternalError","RetryOperation":false,"UserErrorMessage":"Failed to encode the response."}`)
	}
	return out
}
