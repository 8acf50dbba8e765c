package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Kafka topics fed by the coordinator.
const (
	TopicConversationEstablished = "chat.conversation.established"
	TopicMessageSent             = "chat.message.sent"
)

const (
	defaultEstablishAttempts = 3
	defaultEstablishBackoff  = 50 * time.Millisecond
	defaultPageSize          = 50
	maxPageSize              = 200
)

// Coordinator guarantees that two users attempting to start or continue a
// conversation converge on a single thread record, and keeps the message log
// and its preview consistent. It is stateless between calls; all state lives
// in the store.
type Coordinator struct {
	store    Store
	events   EventPublisher
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
}

// Options tune the coordinator. Zero values fall back to defaults.
type Options struct {
	Events   EventPublisher
	Logger   *slog.Logger
	Attempts int
	Backoff  time.Duration
}

// NewCoordinator builds a coordinator over the given store.
func NewCoordinator(store Store, opts Options) *Coordinator {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = defaultEstablishAttempts
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultEstablishBackoff
	}
	return &Coordinator{
		store:    store,
		events:   opts.Events,
		logger:   opts.Logger,
		attempts: attempts,
		backoff:  backoff,
	}
}

// Handle is the result of establishing a conversation, with the counterparty
// resolved from the cached participant snapshots for convenience.
type Handle struct {
	Conversation   *Conversation
	CounterpartyID string
	Counterparty   ParticipantInfo
}

// Establish creates the canonical thread for the pair or merges into the
// existing one. Concurrent attempts by both parties collapse onto the same
// transactional target; contention is retried within a bounded budget.
func (c *Coordinator) Establish(ctx context.Context, acting Identity, counterpartyID string, hint ParticipantInfo, listing *ListingRef) (*Handle, error) {
	if strings.TrimSpace(acting.ID) == "" {
		return nil, ErrUnauthenticated
	}
	counterpartyID = strings.TrimSpace(counterpartyID)
	if counterpartyID == "" {
		return nil, ErrCounterpartyRequired
	}
	if counterpartyID == acting.ID {
		return nil, ErrSelfConversation
	}

	id := CanonicalConversationID(acting.ID, counterpartyID)
	merge := establishMerge(acting, counterpartyID, hint, listing)

	var conv *Conversation
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		conv, err = c.store.Merge(ctx, id, merge)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrMergeConflict) {
			return nil, err
		}
		if attempt == c.attempts {
			break
		}
		if c.logger != nil {
			c.logger.Debug("conversation merge conflict, retrying", "conversation_id", id, "attempt", attempt)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
	if err != nil {
		return nil, &EstablishError{ConversationID: id, Attempts: c.attempts, Err: err}
	}

	c.publish(ctx, TopicConversationEstablished, id, conversationEstablishedEvent{
		ConversationID: id,
		Participants:   conv.Participants,
		ListingID:      listingID(conv.Listing),
		At:             conv.UpdatedAt,
	})

	cpID, cpInfo := conv.Counterparty(acting.ID)
	return &Handle{Conversation: conv, CounterpartyID: cpID, Counterparty: cpInfo}, nil
}

// establishMerge is the pure create-or-merge step run inside the store
// transaction. Absent listing context leaves the stored reference untouched;
// participants, creation time and the message preview are never rewritten.
func establishMerge(acting Identity, counterpartyID string, hint ParticipantInfo, listing *ListingRef) MergeFunc {
	return func(current *Conversation, now time.Time) (*Conversation, error) {
		if current == nil {
			participants := []string{acting.ID, counterpartyID}
			sort.Strings(participants)
			conv := &Conversation{
				ID:           CanonicalConversationID(acting.ID, counterpartyID),
				Participants: participants,
				ParticipantInfo: map[string]ParticipantInfo{
					acting.ID:      {DisplayName: acting.DisplayName, AvatarURL: acting.AvatarURL},
					counterpartyID: hint,
				},
				CreatedAt: now,
				UpdatedAt: now,
			}
			if listing != nil {
				ref := *listing
				conv.Listing = &ref
			}
			return conv, nil
		}

		next := current.Clone()
		if next.ParticipantInfo == nil {
			next.ParticipantInfo = make(map[string]ParticipantInfo, 2)
		}
		next.ParticipantInfo[acting.ID] = ParticipantInfo{DisplayName: acting.DisplayName, AvatarURL: acting.AvatarURL}
		if _, ok := next.ParticipantInfo[counterpartyID]; !ok && hint != (ParticipantInfo{}) {
			next.ParticipantInfo[counterpartyID] = hint
		}
		if listing != nil {
			ref := *listing
			next.Listing = &ref
		}
		next.UpdatedAt = now
		return next, nil
	}
}

// SendMessage appends a message and updates the thread preview atomically.
// Transient failures are surfaced to the caller rather than retried, since a
// blind retry risks duplicate sends.
func (c *Coordinator) SendMessage(ctx context.Context, conversationID, senderID, text string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	conv, err := c.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		if c.logger != nil {
			c.logger.Warn("rejected message from non-participant", "conversation_id", conversationID, "sender_id", senderID)
		}
		return nil, ErrNotParticipant
	}
	msg, err := c.store.Append(ctx, conversationID, senderID, text)
	if err != nil {
		return nil, err
	}
	c.publish(ctx, TopicMessageSent, conversationID, messageSentEvent{
		ConversationID: conversationID,
		MessageID:      msg.ID,
		SenderID:       senderID,
		Preview:        PreviewSnippet(text),
		At:             msg.CreatedAt,
	})
	return msg, nil
}

// ListMessages returns one page in display order, oldest first. Pages are
// fetched newest-first internally so "load older" is a cursor continuation.
// Re-issuing the same cursor yields the same page; messages are never deleted.
func (c *Coordinator) ListMessages(ctx context.Context, conversationID string, pageSize int, cursor string) ([]Message, string, error) {
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	msgs, next, err := c.store.Messages(ctx, conversationID, pageSize, cursor)
	if err != nil {
		return nil, "", err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, next, nil
}

// Conversation loads thread metadata by id.
func (c *Coordinator) Conversation(ctx context.Context, conversationID string) (*Conversation, error) {
	return c.store.Get(ctx, conversationID)
}

// Conversations renders the user's inbox, most recently updated first.
func (c *Coordinator) Conversations(ctx context.Context, userID string) ([]Conversation, error) {
	return c.store.ConversationsByUser(ctx, userID)
}

// MarkRead records that the user has seen the thread up to now.
func (c *Coordinator) MarkRead(ctx context.Context, conversationID, userID string) error {
	conv, err := c.store.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return ErrNotParticipant
	}
	return c.store.MarkRead(ctx, conversationID, userID, time.Now().UTC())
}

// WatchConversation subscribes to thread record changes.
func (c *Coordinator) WatchConversation(ctx context.Context, conversationID string, fn func(Conversation)) (CancelFunc, error) {
	return c.store.WatchConversation(ctx, conversationID, fn)
}

// WatchMessages subscribes to new messages in the thread.
func (c *Coordinator) WatchMessages(ctx context.Context, conversationID string, fn func(Message)) (CancelFunc, error) {
	return c.store.WatchMessages(ctx, conversationID, fn)
}

type conversationEstablishedEvent struct {
	ConversationID string    `json:"conversation_id"`
	Participants   []string  `json:"participants"`
	ListingID      string    `json:"listing_id,omitempty"`
	At             time.Time `json:"at"`
}

type messageSentEvent struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	SenderID       string    `json:"sender_id"`
	Preview        string    `json:"preview"`
	At             time.Time `json:"at"`
}

func (c *Coordinator) publish(ctx context.Context, topic, key string, event any) {
	if c.events == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		if c.logger != nil {
			c.logger.Error("chat event encode failed", "topic", topic, "error", err)
		}
		return
	}
	if err := c.events.Publish(ctx, topic, key, payload); err != nil && c.logger != nil {
		c.logger.Warn("chat event publish failed", "topic", topic, "key", key, "error", err)
	}
}

func listingID(ref *ListingRef) string {
	if ref == nil {
		return ""
	}
	return ref.ID
}
