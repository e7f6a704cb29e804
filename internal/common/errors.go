// Package common defines shared constants and sentinel errors used across
// the server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")

	// Service-level errors (generic/internal flow control).
	ErrInternal = errors.New("internal error")

	// ErrTransient marks a failure that is safe to retry (pruning, lookups).
	// Wrap it alongside ErrInternal so the dispatcher can set RetryOperation.
	ErrTransient = errors.New("transient")

	// Identity and authorization errors.
	ErrInvalidUser      = errors.New("invalid user id")
	ErrInvalidChallenge = errors.New("invalid challenge id")
	ErrInvalidSignature = errors.New("invalid challenge response")
	ErrInvalidToken     = errors.New("invalid token")

	// Conversation errors.
	ErrInvalidConversation = errors.New("invalid conversation id")
	ErrInvalidRecipient    = errors.New("invalid recipient id")
	ErrNoRecipients        = errors.New("no recipients specified")
)
