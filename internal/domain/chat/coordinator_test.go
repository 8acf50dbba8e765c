package chat_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepost/internal/domain/chat"
	"tradepost/internal/infra/storage/memory"
)

func newCoordinator(t *testing.T, opts chat.Options) (*chat.Coordinator, *memory.ChatStore) {
	t.Helper()
	store := memory.NewChatStore()
	return chat.NewCoordinator(store, opts), store
}

func TestEstablishCreatesCanonicalThread(t *testing.T) {
	coord, _ := newCoordinator(t, chat.Options{})

	handle, err := coord.Establish(context.Background(),
		chat.Identity{ID: "u2", DisplayName: "Bea"},
		"u1",
		chat.ParticipantInfo{DisplayName: "Ana"},
		&chat.ListingRef{ID: "L100", Title: "Bicycle"},
	)
	require.NoError(t, err)

	conv := handle.Conversation
	assert.Equal(t, "u1_u2", conv.ID)
	assert.Equal(t, []string{"u1", "u2"}, conv.Participants)
	assert.Equal(t, "Bea", conv.ParticipantInfo["u2"].DisplayName)
	assert.Equal(t, "Ana", conv.ParticipantInfo["u1"].DisplayName)
	require.NotNil(t, conv.Listing)
	assert.Equal(t, "Bicycle", conv.Listing.Title)
	assert.Equal(t, "u1", handle.CounterpartyID)
	assert.Equal(t, "Ana", handle.Counterparty.DisplayName)
	assert.False(t, conv.CreatedAt.IsZero())
}

func TestEstablishValidation(t *testing.T) {
	coord, _ := newCoordinator(t, chat.Options{})
	ctx := context.Background()

	_, err := coord.Establish(ctx, chat.Identity{}, "u1", chat.ParticipantInfo{}, nil)
	assert.ErrorIs(t, err, chat.ErrUnauthenticated)

	_, err = coord.Establish(ctx, chat.Identity{ID: "u1"}, "  ", chat.ParticipantInfo{}, nil)
	assert.ErrorIs(t, err, chat.ErrCounterpartyRequired)

	_, err = coord.Establish(ctx, chat.Identity{ID: "u1"}, "u1", chat.ParticipantInfo{}, nil)
	assert.ErrorIs(t, err, chat.ErrSelfConversation)
}

func TestEstablishMergesExistingThread(t *testing.T) {
	coord, _ := newCoordinator(t, chat.Options{})
	ctx := context.Background()

	first, err := coord.Establish(ctx,
		chat.Identity{ID: "u2", DisplayName: "Bea"},
		"u1",
		chat.ParticipantInfo{DisplayName: "Seller"},
		&chat.ListingRef{ID: "L1", Title: "Bike"},
	)
	require.NoError(t, err)

	// The other side joins: same thread, their snapshot refreshed, the stale
	// hint for them replaced by their authoritative identity.
	second, err := coord.Establish(ctx,
		chat.Identity{ID: "u1", DisplayName: "Ana", AvatarURL: "http://a/ana.png"},
		"u2",
		chat.ParticipantInfo{DisplayName: "ignored hint"},
		nil,
	)
	require.NoError(t, err)

	assert.Equal(t, first.Conversation.ID, second.Conversation.ID)
	assert.Equal(t, first.Conversation.CreatedAt, second.Conversation.CreatedAt, "creation time survives merges")
	assert.Equal(t, "Ana", second.Conversation.ParticipantInfo["u1"].DisplayName)
	assert.Equal(t, "Bea", second.Conversation.ParticipantInfo["u2"].DisplayName, "existing snapshot beats the hint")
	require.NotNil(t, second.Conversation.Listing)
	assert.Equal(t, "Bike", second.Conversation.Listing.Title, "absent listing context leaves the reference untouched")

	// A later contact about a different listing repoints the reference.
	third, err := coord.Establish(ctx,
		chat.Identity{ID: "u2", DisplayName: "Bea"},
		"u1",
		chat.ParticipantInfo{},
		&chat.ListingRef{ID: "L2", Title: "Helmet"},
	)
	require.NoError(t, err)
	assert.Equal(t, "Helmet", third.Conversation.Listing.Title)
}

func TestConcurrentEstablishConverges(t *testing.T) {
	coord, _ := newCoordinator(t, chat.Options{})

	const attempts = 16
	ids := make([]string, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acting, counterparty := "u1", "u2"
			if i%2 == 0 {
				acting, counterparty = counterparty, acting
			}
			handle, err := coord.Establish(context.Background(),
				chat.Identity{ID: acting, DisplayName: acting},
				counterparty,
				chat.ParticipantInfo{},
				nil,
			)
			if assert.NoError(t, err) {
				ids[i] = handle.Conversation.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, "u1_u2", id)
	}
	inbox, err := coord.Conversations(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, inbox, 1, "all racers must land on one thread")
}

// conflictStore fails the first n merges with ErrMergeConflict before
// delegating, mimicking write contention on the thread record.
type conflictStore struct {
	chat.Store
	mu        sync.Mutex
	remaining int
	calls     int
}

func (s *conflictStore) Merge(ctx context.Context, id string, fn chat.MergeFunc) (*chat.Conversation, error) {
	s.mu.Lock()
	s.calls++
	conflict := s.remaining > 0
	if conflict {
		s.remaining--
	}
	s.mu.Unlock()
	if conflict {
		return nil, chat.ErrMergeConflict
	}
	return s.Store.Merge(ctx, id, fn)
}

func TestEstablishRetriesMergeConflicts(t *testing.T) {
	store := &conflictStore{Store: memory.NewChatStore(), remaining: 2}
	coord := chat.NewCoordinator(store, chat.Options{Attempts: 3, Backoff: time.Millisecond})

	handle, err := coord.Establish(context.Background(), chat.Identity{ID: "u1"}, "u2", chat.ParticipantInfo{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "u1_u2", handle.Conversation.ID)
	assert.Equal(t, 3, store.calls)
}

func TestEstablishGivesUpAfterRetryBudget(t *testing.T) {
	store := &conflictStore{Store: memory.NewChatStore(), remaining: 10}
	coord := chat.NewCoordinator(store, chat.Options{Attempts: 2, Backoff: time.Millisecond})

	_, err := coord.Establish(context.Background(), chat.Identity{ID: "u1"}, "u2", chat.ParticipantInfo{}, nil)
	require.Error(t, err)

	var establishErr *chat.EstablishError
	require.ErrorAs(t, err, &establishErr)
	assert.Equal(t, "u1_u2", establishErr.ConversationID)
	assert.Equal(t, 2, establishErr.Attempts)
	assert.ErrorIs(t, err, chat.ErrMergeConflict)
	assert.Equal(t, 2, store.calls)
}

func TestSendMessageUpdatesPreview(t *testing.T) {
	coord, _ := newCoordinator(t, chat.Options{})
	ctx := context.Background()

	handle, err := coord.Establish(ctx, chat.Identity{ID: "u1"}, "u2", chat.ParticipantInfo{}, nil)
	require.NoError(t, err)

	msg, err := coord.SendMessage(ctx, handle.Conversation.ID, "u1", "  hola  ")
	require.NoError(t, err)
	assert.Equal(t, "hola", msg.Text, "text is trimmed before storage")

	conv, err := coord.Conversation(ctx, handle.Conversation.ID)
	require.NoError(t, err)
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, "hola", conv.LastMessage.Text)
	assert.Equal(t, "u1", conv.LastMessage.SenderID)
	assert.Equal(t, msg.CreatedAt, conv.UpdatedAt, "preview moves with the appended message")
}

func TestSendMessageRejections(t *testing.T) {
	coord, _ := newCoordinator(t, chat.Options{})
	ctx := context.Background()

	handle, err := coord.Establish(ctx, chat.Identity{ID: "u1"}, "u2", chat.ParticipantInfo{}, nil)
	require.NoError(t, err)

	_, err = coord.SendMessage(ctx, handle.Conversation.ID, "u1", "   ")
	assert.ErrorIs(t, err, chat.ErrEmptyMessage)

	_, err = coord.SendMessage(ctx, handle.Conversation.ID, "intruder", "hey")
	assert.ErrorIs(t, err, chat.ErrNotParticipant)

	_, err = coord.SendMessage(ctx, "nope_zz", "u1", "hey")
	assert.ErrorIs(t, err, chat.ErrConversationNotFound)
}

func TestListMessagesPagination(t *testing.T) {
	coord, _ := newCoordinator(t, chat.Options{})
	ctx := context.Background()

	handle, err := coord.Establish(ctx, chat.Identity{ID: "u1"}, "u2", chat.ParticipantInfo{}, nil)
	require.NoError(t, err)
	id := handle.Conversation.ID

	texts := []string{"m1", "m2", "m3", "m4", "m5"}
	for _, text := range texts {
		_, err := coord.SendMessage(ctx, id, "u1", text)
		require.NoError(t, err)
	}

	page1, cursor1, err := coord.ListMessages(ctx, id, 2, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"m4", "m5"}, messageTexts(page1), "pages come back oldest first")
	require.NotEmpty(t, cursor1)

	// Same cursor, same page.
	again, cursorAgain, err := coord.ListMessages(ctx, id, 2, "")
	require.NoError(t, err)
	assert.Equal(t, messageTexts(page1), messageTexts(again))
	assert.Equal(t, cursor1, cursorAgain)

	page2, cursor2, err := coord.ListMessages(ctx, id, 2, cursor1)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m3"}, messageTexts(page2))

	page3, cursor3, err := coord.ListMessages(ctx, id, 2, cursor2)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, messageTexts(page3))
	assert.Empty(t, cursor3, "no cursor past the oldest message")
}

func TestMarkRead(t *testing.T) {
	coord, _ := newCoordinator(t, chat.Options{})
	ctx := context.Background()

	handle, err := coord.Establish(ctx, chat.Identity{ID: "u1"}, "u2", chat.ParticipantInfo{}, nil)
	require.NoError(t, err)
	id := handle.Conversation.ID
	before := handle.Conversation.UpdatedAt

	require.NoError(t, coord.MarkRead(ctx, id, "u2"))
	assert.ErrorIs(t, coord.MarkRead(ctx, id, "intruder"), chat.ErrNotParticipant)

	conv, err := coord.Conversation(ctx, id)
	require.NoError(t, err)
	assert.False(t, conv.Reads["u2"].IsZero())
	assert.Equal(t, before, conv.UpdatedAt, "reading must not reorder the inbox")
}

// capturePublisher records chat events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	topics []string
	bodies [][]byte
}

func (p *capturePublisher) Publish(_ context.Context, topic, _ string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.bodies = append(p.bodies, payload)
	return nil
}

func TestCoordinatorPublishesEvents(t *testing.T) {
	events := &capturePublisher{}
	coord, _ := newCoordinator(t, chat.Options{Events: events})
	ctx := context.Background()

	handle, err := coord.Establish(ctx, chat.Identity{ID: "u1"}, "u2", chat.ParticipantInfo{}, &chat.ListingRef{ID: "L1"})
	require.NoError(t, err)
	_, err = coord.SendMessage(ctx, handle.Conversation.ID, "u1", "hola")
	require.NoError(t, err)

	require.Equal(t, []string{chat.TopicConversationEstablished, chat.TopicMessageSent}, events.topics)

	var established struct {
		ConversationID string `json:"conversation_id"`
		ListingID      string `json:"listing_id"`
	}
	require.NoError(t, json.Unmarshal(events.bodies[0], &established))
	assert.Equal(t, "u1_u2", established.ConversationID)
	assert.Equal(t, "L1", established.ListingID)
}

func TestWatchMessages(t *testing.T) {
	coord, _ := newCoordinator(t, chat.Options{})
	ctx := context.Background()

	handle, err := coord.Establish(ctx, chat.Identity{ID: "u1"}, "u2", chat.ParticipantInfo{}, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []string
	cancel, err := coord.WatchMessages(ctx, handle.Conversation.ID, func(msg chat.Message) {
		mu.Lock()
		seen = append(seen, msg.Text)
		mu.Unlock()
	})
	require.NoError(t, err)

	_, err = coord.SendMessage(ctx, handle.Conversation.ID, "u1", "first")
	require.NoError(t, err)

	cancel()
	_, err = coord.SendMessage(ctx, handle.Conversation.ID, "u2", "after cancel")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first"}, seen)
}

func TestBuyerSellerScenario(t *testing.T) {
	coord, _ := newCoordinator(t, chat.Options{})
	ctx := context.Background()

	seller := chat.Identity{ID: "u1", DisplayName: "Ana"}
	buyer := chat.Identity{ID: "u2", DisplayName: "Bea"}

	// Buyer taps "contact seller" on the bicycle listing.
	handle, err := coord.Establish(ctx, buyer, seller.ID,
		chat.ParticipantInfo{DisplayName: seller.DisplayName},
		&chat.ListingRef{ID: "L100", Title: "Bicycle"},
	)
	require.NoError(t, err)
	require.Equal(t, "u1_u2", handle.Conversation.ID)

	_, err = coord.SendMessage(ctx, handle.Conversation.ID, buyer.ID, "¿Sigue disponible?")
	require.NoError(t, err)

	// Seller opens their inbox and replies.
	inbox, err := coord.Conversations(ctx, seller.ID)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.NotNil(t, inbox[0].LastMessage)
	assert.Equal(t, "¿Sigue disponible?", inbox[0].LastMessage.Text)

	_, err = coord.SendMessage(ctx, handle.Conversation.ID, seller.ID, "Sí")
	require.NoError(t, err)

	messages, _, err := coord.ListMessages(ctx, handle.Conversation.ID, 50, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"¿Sigue disponible?", "Sí"}, messageTexts(messages))

	inbox, err = coord.Conversations(ctx, buyer.ID)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Sí", inbox[0].LastMessage.Text)
	assert.Equal(t, seller.ID, inbox[0].LastMessage.SenderID)
}

func messageTexts(messages []chat.Message) []string {
	out := make([]string, 0, len(messages))
	for _, msg := range messages {
		out = append(out, msg.Text)
	}
	return out
}
