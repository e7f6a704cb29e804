// Package models defines the structs backing the five durable tables.
package models

// User is a row in registered_users. PublicKeyHash is the SHA-512 digest of
// the DER-encoded public key the account was registered with; it uniquely
// identifies the credential bound to the account.
type User struct {
	UserID        string
	PublicKeyHash []byte
	UserName      string
	Status        string
	Bio           string
	ProfilePic    []byte
}

// Profile carries the user-editable subset of a User record.
type Profile struct {
	UserName   string
	Status     string
	Bio        string
	ProfilePic []byte
}
