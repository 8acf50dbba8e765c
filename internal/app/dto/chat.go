package dto

import "time"

// Participant is the cached display snapshot of one chat party.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// ListingContext ties a conversation to the listing it was started from.
type ListingContext struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url,omitempty"`
}

// LastMessage previews the newest message for conversation lists.
type LastMessage struct {
	Text     string    `json:"text"`
	SenderID string    `json:"sender_id"`
	SentAt   time.Time `json:"sent_at"`
}

// Conversation describes chat thread metadata.
type Conversation struct {
	ID           string               `json:"id"`
	Participants []Participant        `json:"participants"`
	Listing      *ListingContext      `json:"listing,omitempty"`
	LastMessage  *LastMessage         `json:"last_message,omitempty"`
	Reads        map[string]time.Time `json:"reads,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// ConversationList is the inbox payload.
type ConversationList struct {
	Items []Conversation `json:"items"`
}

// ChatMessage contains a single message payload.
type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChatMessageList is a paginated message list in display order.
type ChatMessageList struct {
	Items      []ChatMessage `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}
