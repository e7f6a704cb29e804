package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Envelope carries the fields common to every client request. The
// ClientTimestamp is kept opaque and echoed back verbatim; clients send it
// in whatever shape their clock library produces.
type Envelope struct {
	Command         string          `json:"Command"`
	ClientTimestamp json.RawMessage `json:"ClientTimestamp,omitempty"`
}

// Credentials are the token fields attached to every authenticated request.
// TokenSecret is base64 on the wire.
type Credentials struct {
	UserID      string `json:"UserId,omitempty"`
	TokenID     string `json:"TokenId,omitempty"`
	TokenSecret string `json:"TokenSecret,omitempty"`
}

// Present reports whether all three credential fields were supplied.
func (c Credentials) Present() bool {
	return c.UserID != "" && c.TokenID != "" && c.TokenSecret != ""
}

// FlexBool decodes a boolean that clients may send as a JSON bool, a quoted
// string or a number.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true", `"true"`, `"True"`, "1", `"1"`:
		*b = true
	case "false", `"false"`, `"False"`, "0", `"0"`, "null", `""`:
		*b = false
	default:
		return fmt.Errorf("cannot interpret %s as a boolean", data)
	}
	return nil
}

func (b FlexBool) MarshalJSON() ([]byte, error) {
	if b {
		return []byte("true"), nil
	}
	return []byte("false"), nil
}

// ResponseHeader carries the fields common to every success response.
type ResponseHeader struct {
	Command         string          `json:"Command"`
	Successful      bool            `json:"Successful"`
	ClientTimestamp json.RawMessage `json:"ClientTimestamp,omitempty"`
	ServerTimestamp int64           `json:"ServerTimestamp"`
}

// NewResponseHeader stamps a success header for the given request envelope.
func NewResponseHeader(env Envelope) ResponseHeader {
	return ResponseHeader{
		Command:         env.Command,
		Successful:      true,
		ClientTimestamp: env.ClientTimestamp,
		ServerTimestamp: time.Now().Unix(),
	}
}

// ErrorEnvelope is the uniform failure shape. Successful is always false;
// RetryOperation is true only for transient server-side failures that are
// safe to repeat.
type ErrorEnvelope struct {
	Successful       bool            `json:"Successful"`
	ErrorType        string          `json:"ErrorType"`
	RetryOperation   bool            `json:"RetryOperation"`
	UserErrorMessage string          `json:"UserErrorMessage"`
	ServerTimestamp  int64           `json:"ServerTimestamp"`
	Command          string          `json:"Command,omitempty"`
	ClientTimestamp  json.RawMessage `json:"ClientTimestamp,omitempty"`
	BanExpiry        *int64          `json:"BanExpiry,omitempty"`
	PermanentBan     *bool           `json:"PermanentBan,omitempty"`
}

// NewError builds an error envelope echoing the request's command and
// timestamp.
func NewError(env Envelope, errorType string, retry bool, message string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Successful:       false,
		ErrorType:        errorType,
		RetryOperation:   retry,
		UserErrorMessage: message,
		ServerTimestamp:  time.Now().Unix(),
		Command:          env.Command,
		ClientTimestamp:  env.ClientTimestamp,
	}
}
