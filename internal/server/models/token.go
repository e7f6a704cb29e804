package models

import "time"

// Token is a row in the tokens table. Only the SHA-256 digest of the secret
// is stored; the raw secret exists solely in the TokenGrant handed to the
// client at creation time.
type Token struct {
	TokenID    string
	SecretHash []byte
	UserID     string
	Expires    time.Time
}

// TokenGrant is the one-time result of minting a token. Secret is never
// persisted.
type TokenGrant struct {
	UserID  string
	TokenID string
	Secret  []byte
}
