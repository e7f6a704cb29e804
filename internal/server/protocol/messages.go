package protocol

// PingRequest keeps the connection alive; credentials are optional and, if
// present, the reply reports whether they validated.
type PingRequest struct {
	Envelope
	Credentials
}

// ConnectRequest opens an authentication attempt. The public key arrives as
// decimal strings for the modulus and exponent; Register marks a first-time
// sign-up with no prior UserId.
type ConnectRequest struct {
	Envelope
	UserPublicKeyMod string   `json:"UserPublicKeyMod"`
	UserPublicKeyExp string   `json:"UserPublicKeyExp"`
	UserID           string   `json:"UserId"`
	Register         FlexBool `json:"Register"`
}

// AuthenticateRequest answers a challenge. Signature is base64.
type AuthenticateRequest struct {
	Envelope
	ChallengeID   string `json:"ChallengeId"`
	Signature     string `json:"Signature"`
	HashAlgorithm string `json:"HashAlgorithm"`
}

// NewConversationRequest starts a conversation with the listed recipients.
type NewConversationRequest struct {
	Envelope
	Credentials
	RecipientIDs []string `json:"RecipientIds"`
}

// SendMessageRequest posts a message into a conversation. MessageData is
// base64 for binary types; MessageId is a client-chosen correlation handle.
type SendMessageRequest struct {
	Envelope
	Credentials
	ConversationID string `json:"ConversationId"`
	MessageType    string `json:"MessageType"`
	MessageData    string `json:"MessageData"`
	MessageID      string `json:"MessageId,omitempty"`
}

// LeaveConversationRequest removes the sender from a conversation.
type LeaveConversationRequest struct {
	Envelope
	Credentials
	ConversationID string `json:"ConversationId"`
}

// SearchUsersRequest looks up users by ID or by name substring.
type SearchUsersRequest struct {
	Envelope
	Credentials
	SearchBy   string `json:"SearchBy"`
	SearchTerm string `json:"SearchTerm"`
}

// Profile is the user-editable profile block. UserProfilePic stays base64;
// the server never needs the raw bytes.
type Profile struct {
	UserName       string `json:"UserName"`
	UserProfilePic string `json:"UserProfilePic"`
	UserStatus     string `json:"UserStatus"`
	UserBio        string `json:"UserBio"`
}

// UpdateProfileRequest replaces the sender's profile.
type UpdateProfileRequest struct {
	Envelope
	Credentials
	NewProfile *Profile `json:"NewProfile"`
}

// PingResponse acknowledges a PING. AuthSuccessful is present only when the
// request carried credentials.
type PingResponse struct {
	ResponseHeader
	AuthSuccessful *bool `json:"AuthSuccessful,omitempty"`
}

// ConnectResponse hands the client its challenge. ChallengeData is the
// base64 nonce to sign.
type ConnectResponse struct {
	ResponseHeader
	ChallengeRequired bool   `json:"ChallengeRequired"`
	ChallengeID       string `json:"ChallengeId"`
	ChallengeData     string `json:"ChallengeData"`
}

// AuthenticateResponse returns the session grant. TokenSecret is base64 and
// is the only time the plaintext secret crosses the wire.
type AuthenticateResponse struct {
	ResponseHeader
	UserID      string `json:"UserId"`
	TokenID     string `json:"TokenId"`
	TokenSecret string `json:"TokenSecret"`
}

// NewConversationResponse acknowledges conversation creation.
type NewConversationResponse struct {
	ResponseHeader
	NewConversationID string `json:"NewConversationId"`
}

// Ack is a bare success response for commands with no extra payload.
type Ack struct {
	ResponseHeader
}

// UserSummary is the privacy-preserving search result shape.
type UserSummary struct {
	UserID   string `json:"UserId"`
	UserName string `json:"UserName"`
}

// SearchUsersResponse carries the search results. Results is never null on
// the wire, an empty search yields [].
type SearchUsersResponse struct {
	ResponseHeader
	Results []UserSummary `json:"Results"`
}

// NewConversationCreatedPush notifies every member of a fresh conversation.
type NewConversationCreatedPush struct {
	Command         string   `json:"Command"`
	ServerTimestamp int64    `json:"ServerTimestamp"`
	CreatorID       string   `json:"CreatorId"`
	Members         []string `json:"Members"`
	ConversationID  string   `json:"ConversationId"`
}

// IncomingMessagePush delivers a chat message to a participant. The
// OriginalReceiptTimestamp is when the server first accepted the message,
// which may be long before a mailboxed copy finally arrives.
type IncomingMessagePush struct {
	Command                  string `json:"Command"`
	OriginalReceiptTimestamp int64  `json:"OriginalReceiptTimestamp"`
	SenderID                 string `json:"SenderId"`
	ConversationID           string `json:"ConversationId"`
	MessageType              string `json:"MessageType"`
	MessageData              string `json:"MessageData"`
	MessageID                string `json:"MessageId,omitempty"`
}

// UserLeftPush notifies remaining members that a participant left.
type UserLeftPush struct {
	Command         string `json:"Command"`
	ServerTimestamp int64  `json:"ServerTimestamp"`
	ConversationID  string `json:"ConversationId"`
	UserID          string `json:"UserId"`
}
