// Package protocol defines the JSON wire format spoken over the client
// channel: request envelopes, typed per-command requests, success responses,
// server pushes and the uniform error envelope.
package protocol

// Client-issued commands.
const (
	CommandPing              = "PING"
	CommandConnect           = "CONNECT"
	CommandAuthenticate      = "AUTHENTICATE"
	CommandNewConversation   = "NEWCONVERSATION"
	CommandSendMessage       = "SENDMESSAGE"
	CommandLeaveConversation = "LEAVECONVERSATION"
	CommandSearchUsers       = "SEARCHUSERS"
	CommandUpdateProfile     = "UPDATEPROFILE"
)

// Server-initiated pushes.
const (
	CommandNewConversationCreated = "NEWCONVERSATIONCREATED"
	CommandIncomingMessage        = "INCOMINGMESSAGE"
	CommandUserLeft               = "USERLEFT"
)

// Error envelope types.
const (
	ErrTypeBadRequest            = "BadRequest"
	ErrTypeInvalidToken          = "InvalidToken"
	ErrTypeInvalidResponse       = "InvalidResponse"
	ErrTypeInvalidChallengeID    = "InvalidChallengeId"
	ErrTypeInvalidUserID         = "InvalidUserId"
	ErrTypeInvalidRecipientID    = "InvalidRecipientId"
	ErrTypeNoRecipientsSpecified = "NoRecipientsSpecified"
	ErrTypeInvalidConversationID = "InvalidConversationId"
	ErrTypeServerInternalError   = "ServerInternalError"
	ErrTypeUserBanned            = "UserBanned"
	ErrTypeNonJSONRequest        = "NonJSONRequest"
)

// Accepted SENDMESSAGE payload kinds.
var messageTypes = map[string]bool{
	"Text":  true,
	"Image": true,
	"Video": true,
	"File":  true,
}

// ValidMessageType reports whether t is an accepted MessageType value.
func ValidMessageType(t string) bool {
	return messageTypes[t]
}
