package chat

// DeliveryStatus is the client-local lifecycle of an optimistic message.
// It is presentation state and is never persisted.
type DeliveryStatus string

const (
	StatusSending DeliveryStatus = "sending"
	StatusSent    DeliveryStatus = "sent"
	StatusFailed  DeliveryStatus = "failed"
)

// LocalMessage wraps a provisional message for optimistic rendering. It is
// deliberately a separate type so client-side state is never confused with
// the server-authoritative Message.
type LocalMessage struct {
	Message
	Status DeliveryStatus
}

// NewLocalMessage builds the provisional entry shown before the store
// acknowledges the send.
func NewLocalMessage(conversationID, senderID, text string) LocalMessage {
	return LocalMessage{
		Message: Message{
			ConversationID: conversationID,
			SenderID:       senderID,
			Text:           text,
		},
		Status: StatusSending,
	}
}

// Confirm replaces the provisional payload with the committed message.
func (m LocalMessage) Confirm(committed Message) LocalMessage {
	return LocalMessage{Message: committed, Status: StatusSent}
}

// Fail marks the provisional message for a manual retry affordance.
func (m LocalMessage) Fail() LocalMessage {
	m.Status = StatusFailed
	return m
}
