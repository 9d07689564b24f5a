// Package realtime tracks who is connected and pushes events to them.
package realtime

// Event types pushed to clients.
const (
	TypeNewMessage   = "newMessage"
	TypeMessagesSeen = "messagesSeen"
	TypeOnlineUsers  = "onlineUsers"
	TypeError        = "error"
)

// Event is the envelope written to a connection.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// SeenPayload tells a sender that their messages were read. MessageID is empty when a
// whole conversation was marked.
type SeenPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId,omitempty"`
	ReaderID       string `json:"readerId"`
}

// NewMessage wraps a persisted message.
func NewMessage(msg any) Event {
	return Event{Type: TypeNewMessage, Payload: msg}
}

// MessagesSeen reports that readerID has seen messages of a conversation.
func MessagesSeen(conversationID, messageID, readerID string) Event {
	return Event{Type: TypeMessagesSeen, Payload: SeenPayload{
		ConversationID: conversationID,
		MessageID:      messageID,
		ReaderID:       readerID,
	}}
}

// OnlineUsers carries the ids currently registered.
func OnlineUsers(ids []string) Event {
	return Event{Type: TypeOnlineUsers, Payload: ids}
}

// Error is sent back on a connection when an inbound frame cannot be handled.
func Error(message string) Event {
	return Event{Type: TypeError, Payload: map[string]string{"message": message}}
}
