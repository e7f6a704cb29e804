package models

import "time"

// Challenge is a row in the challenges table: a one-time nonce bound to the
// public key that must sign it. UserID is empty for registration attempts.
type Challenge struct {
	ChallengeID string
	Nonce       []byte
	PublicKey   []byte // DER-encoded SubjectPublicKeyInfo
	UserID      string
	Expires     time.Time
}
