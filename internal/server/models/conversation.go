package models

// Conversation is a row in the conversations table. Participants is an
// unordered set of UserIDs, serialized as a JSON array in storage.
type Conversation struct {
	ConversationID string
	Participants   []string
}
