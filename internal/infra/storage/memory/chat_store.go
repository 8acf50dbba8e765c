package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradepost/internal/domain/chat"
)

// ChatStore keeps conversations and messages in memory. Merges are serialized
// under one lock, which gives the same isolation the coordinator expects from
// a transactional document store. Not suitable for production.
type ChatStore struct {
	mu            sync.Mutex
	conversations map[string]*chat.Conversation
	messages      map[string][]chat.Message
	lastStamp     time.Time
	clock         func() time.Time

	watchSeq  int
	convWatch map[string]map[int]func(chat.Conversation)
	msgWatch  map[string]map[int]func(chat.Message)
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		conversations: make(map[string]*chat.Conversation),
		messages:      make(map[string][]chat.Message),
		clock:         time.Now,
		convWatch:     make(map[string]map[int]func(chat.Conversation)),
		msgWatch:      make(map[string]map[int]func(chat.Message)),
	}
}

// Merge applies fn to the stored record under the store lock.
func (s *ChatStore) Merge(ctx context.Context, id string, fn chat.MergeFunc) (*chat.Conversation, error) {
	s.mu.Lock()
	current := s.conversations[id].Clone()
	next, err := fn(current, s.stampLocked())
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.conversations[id] = next.Clone()
	notify := s.convNotifyLocked(id, *next.Clone())
	s.mu.Unlock()

	notify()
	return next, nil
}

func (s *ChatStore) Get(ctx context.Context, id string) (*chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, chat.ErrConversationNotFound
	}
	return conv.Clone(), nil
}

// Append inserts the message and updates the preview under one lock, so no
// observer ever sees one without the other.
func (s *ChatStore) Append(ctx context.Context, conversationID, senderID, text string) (*chat.Message, error) {
	s.mu.Lock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		s.mu.Unlock()
		return nil, chat.ErrConversationNotFound
	}
	now := s.stampLocked()
	msg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      now,
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	conv.LastMessage = &chat.LastMessage{Text: chat.PreviewSnippet(text), SenderID: senderID, SentAt: now}
	conv.UpdatedAt = now

	notifyConv := s.convNotifyLocked(conversationID, *conv.Clone())
	notifyMsg := s.msgNotifyLocked(conversationID, msg)
	s.mu.Unlock()

	notifyConv()
	notifyMsg()
	return &msg, nil
}

// Messages pages newest-first; the cursor is the id of the oldest message in
// the previous page.
func (s *ChatStore) Messages(ctx context.Context, conversationID string, limit int, before string) ([]chat.Message, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return nil, "", chat.ErrConversationNotFound
	}
	log := s.messages[conversationID]
	end := len(log)
	if before != "" {
		end = 0
		for i := len(log) - 1; i >= 0; i-- {
			if log[i].ID == before {
				end = i
				break
			}
		}
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	page := make([]chat.Message, 0, end-start)
	for i := end - 1; i >= start; i-- {
		page = append(page, log[i])
	}
	next := ""
	if start > 0 && len(page) > 0 {
		next = page[len(page)-1].ID
	}
	return page, next, nil
}

func (s *ChatStore) ConversationsByUser(ctx context.Context, userID string) ([]chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.HasParticipant(userID) {
			out = append(out, *conv.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *ChatStore) MarkRead(ctx context.Context, conversationID, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return chat.ErrConversationNotFound
	}
	if conv.Reads == nil {
		conv.Reads = make(map[string]time.Time, 2)
	}
	conv.Reads[userID] = at.UTC()
	return nil
}

func (s *ChatStore) WatchConversation(ctx context.Context, conversationID string, fn func(chat.Conversation)) (chat.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchSeq++
	id := s.watchSeq
	if s.convWatch[conversationID] == nil {
		s.convWatch[conversationID] = make(map[int]func(chat.Conversation))
	}
	s.convWatch[conversationID][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.convWatch[conversationID], id)
	}, nil
}

func (s *ChatStore) WatchMessages(ctx context.Context, conversationID string, fn func(chat.Message)) (chat.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchSeq++
	id := s.watchSeq
	if s.msgWatch[conversationID] == nil {
		s.msgWatch[conversationID] = make(map[int]func(chat.Message))
	}
	s.msgWatch[conversationID][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.msgWatch[conversationID], id)
	}, nil
}

// stampLocked assigns strictly increasing timestamps, standing in for the
// store's server-side monotonic clock.
func (s *ChatStore) stampLocked() time.Time {
	now := s.clock().UTC()
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Millisecond)
	}
	s.lastStamp = now
	return now
}

func (s *ChatStore) convNotifyLocked(conversationID string, snapshot chat.Conversation) func() {
	fns := make([]func(chat.Conversation), 0, len(s.convWatch[conversationID]))
	for _, fn := range s.convWatch[conversationID] {
		fns = append(fns, fn)
	}
	return func() {
		for _, fn := range fns {
			fn(snapshot)
		}
	}
}

func (s *ChatStore) msgNotifyLocked(conversationID string, msg chat.Message) func() {
	fns := make([]func(chat.Message), 0, len(s.msgWatch[conversationID]))
	for _, fn := range s.msgWatch[conversationID] {
		fns = append(fns, fn)
	}
	return func() {
		for _, fn := range fns {
			fn(msg)
		}
	}
}

var _ chat.Store = (*ChatStore)(nil)
