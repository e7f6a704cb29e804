package models

import "time"

// SystemConversationID marks mailbox entries that are not chat content
// (membership changes and other server notices).
const SystemConversationID = "SYSTEM"

// MailboxEntry is a row in the mailbox table: a serialized notification
// waiting for an offline recipient. RowID is the only handle for targeted
// deletion.
type MailboxEntry struct {
	RowID          int64
	ConversationID string
	Arrived        time.Time
	Expires        time.Time
	Recipient      string
	Message        []byte
}
