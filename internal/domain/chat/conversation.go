package chat

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// IDSeparator joins the two participant ids into a canonical conversation id.
// It must not appear inside user identifiers.
const IDSeparator = "_"

// PreviewLimit caps the number of runes kept in the last-message snippet.
const PreviewLimit = 500

var (
	ErrUnauthenticated      = errors.New("chat: acting user is not authenticated")
	ErrCounterpartyRequired = errors.New("chat: counterparty id is required")
	ErrSelfConversation     = errors.New("chat: cannot start a conversation with yourself")
	ErrEmptyMessage         = errors.New("chat: message text is empty")
	ErrNotParticipant       = errors.New("chat: sender is not a conversation participant")
	ErrConversationNotFound = errors.New("chat: conversation not found")
	ErrMergeConflict        = errors.New("chat: conversation merge conflict")
)

// EstablishError reports an exhausted retry budget while establishing a
// conversation. Callers should offer a manual retry.
type EstablishError struct {
	ConversationID string
	Attempts       int
	Err            error
}

func (e *EstablishError) Error() string {
	return fmt.Sprintf("chat: establish conversation %s failed after %d attempts: %v", e.ConversationID, e.Attempts, e.Err)
}

func (e *EstablishError) Unwrap() error { return e.Err }

// Identity is the authenticated principal acting on the chat API.
type Identity struct {
	ID          string
	DisplayName string
	AvatarURL   string
}

// ParticipantInfo is a display snapshot cached on the conversation for list
// rendering. The user profile stays authoritative.
type ParticipantInfo struct {
	DisplayName string `bson:"display_name" json:"display_name"`
	AvatarURL   string `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
}

// ListingRef ties a conversation to the listing that motivated it. Each new
// contact attempt that carries a listing overwrites the previous reference.
type ListingRef struct {
	ID       string `bson:"id" json:"id"`
	Title    string `bson:"title" json:"title"`
	ImageURL string `bson:"image_url,omitempty" json:"image_url,omitempty"`
}

// LastMessage is the denormalized preview of the newest message, kept in
// lockstep with the message log.
type LastMessage struct {
	Text     string    `bson:"text" json:"text"`
	SenderID string    `bson:"sender_id" json:"sender_id"`
	SentAt   time.Time `bson:"sent_at" json:"sent_at"`
}

// Conversation is a two-party messaging thread. Participants are stored
// sorted ascending and never change after creation.
type Conversation struct {
	ID              string
	Participants    []string
	ParticipantInfo map[string]ParticipantInfo
	Listing         *ListingRef
	LastMessage     *LastMessage
	Reads           map[string]time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Message is one unit of communication inside a conversation. Messages are
// immutable once acknowledged by the store.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Text           string
	CreatedAt      time.Time
}

// CanonicalConversationID derives the order-independent thread id for a pair
// of users. Either side computes the same id without coordination.
func CanonicalConversationID(a, b string) string {
	ids := []string{strings.TrimSpace(a), strings.TrimSpace(b)}
	sort.Strings(ids)
	return ids[0] + IDSeparator + ids[1]
}

// HasParticipant reports whether userID belongs to the thread.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Counterparty resolves the other participant and its cached display snapshot.
func (c *Conversation) Counterparty(userID string) (string, ParticipantInfo) {
	for _, p := range c.Participants {
		if p != userID {
			return p, c.ParticipantInfo[p]
		}
	}
	return "", ParticipantInfo{}
}

// Clone returns a deep copy so merge functions never alias store state.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	if c.ParticipantInfo != nil {
		out.ParticipantInfo = make(map[string]ParticipantInfo, len(c.ParticipantInfo))
		for k, v := range c.ParticipantInfo {
			out.ParticipantInfo[k] = v
		}
	}
	if c.Reads != nil {
		out.Reads = make(map[string]time.Time, len(c.Reads))
		for k, v := range c.Reads {
			out.Reads[k] = v
		}
	}
	if c.Listing != nil {
		ref := *c.Listing
		out.Listing = &ref
	}
	if c.LastMessage != nil {
		lm := *c.LastMessage
		out.LastMessage = &lm
	}
	return &out
}

// Validate rejects malformed records at the store-read boundary instead of
// trusting document shape at every call site.
func (c *Conversation) Validate() error {
	if c == nil {
		return errors.New("chat: conversation is nil")
	}
	if len(c.Participants) != 2 {
		return fmt.Errorf("chat: conversation %s has %d participants, want 2", c.ID, len(c.Participants))
	}
	if c.Participants[0] == c.Participants[1] {
		return fmt.Errorf("chat: conversation %s repeats participant %s", c.ID, c.Participants[0])
	}
	if !sort.StringsAreSorted(c.Participants) {
		return fmt.Errorf("chat: conversation %s participants are not sorted", c.ID)
	}
	if want := CanonicalConversationID(c.Participants[0], c.Participants[1]); c.ID != want {
		return fmt.Errorf("chat: conversation id %s does not match participants (want %s)", c.ID, want)
	}
	if c.CreatedAt.IsZero() {
		return fmt.Errorf("chat: conversation %s has no creation time", c.ID)
	}
	return nil
}

// PreviewSnippet trims message text to the bounded last-message preview.
func PreviewSnippet(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= PreviewLimit {
		return string(runes)
	}
	return string(runes[:PreviewLimit])
}
