package chat

import (
	"context"
	"time"
)

// MergeFunc builds the next state of a conversation from the currently
// committed one (nil when absent). It must be a pure function of its inputs:
// the store may evaluate it more than once while resolving write conflicts.
type MergeFunc func(current *Conversation, now time.Time) (*Conversation, error)

// CancelFunc stops a watch registration.
type CancelFunc func()

// Store is the document-store boundary the coordinator runs against. Any
// store offering transactional read-modify-write on a keyed record, atomic
// append with server-assigned timestamps, ordered cursor pagination and
// change subscriptions satisfies it.
type Store interface {
	// Merge atomically applies fn to the record keyed by id, creating it when
	// absent. Retryable contention surfaces as ErrMergeConflict.
	Merge(ctx context.Context, id string, fn MergeFunc) (*Conversation, error)

	// Get returns the conversation or ErrConversationNotFound.
	Get(ctx context.Context, id string) (*Conversation, error)

	// Append inserts a message with a server-assigned timestamp and updates
	// the conversation preview in the same transaction. Both commit or
	// neither does.
	Append(ctx context.Context, conversationID, senderID, text string) (*Message, error)

	// Messages returns up to limit messages newest-first, continuing before
	// the given opaque cursor, plus the cursor for the next older page.
	Messages(ctx context.Context, conversationID string, limit int, before string) ([]Message, string, error)

	// ConversationsByUser lists the user's threads, most recently updated first.
	ConversationsByUser(ctx context.Context, userID string) ([]Conversation, error)

	// MarkRead upserts the user's read marker. Read markers do not bump
	// UpdatedAt, so reading never reorders the inbox.
	MarkRead(ctx context.Context, conversationID, userID string, at time.Time) error

	// WatchConversation invokes fn for every committed change to the thread record.
	WatchConversation(ctx context.Context, conversationID string, fn func(Conversation)) (CancelFunc, error)

	// WatchMessages invokes fn for every message committed to the thread.
	WatchMessages(ctx context.Context, conversationID string, fn func(Message)) (CancelFunc, error)
}

// EventPublisher receives best-effort notifications after chat commits. A
// publish failure never fails the originating operation.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}
