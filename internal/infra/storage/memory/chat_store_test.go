package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepost/internal/domain/chat"
)

func seedConversation(t *testing.T, store *ChatStore, a, b string) *chat.Conversation {
	t.Helper()
	conv, err := store.Merge(context.Background(), chat.CanonicalConversationID(a, b), func(current *chat.Conversation, now time.Time) (*chat.Conversation, error) {
		if current != nil {
			return current.Clone(), nil
		}
		participants := []string{a, b}
		if participants[0] > participants[1] {
			participants[0], participants[1] = participants[1], participants[0]
		}
		return &chat.Conversation{
			ID:           chat.CanonicalConversationID(a, b),
			Participants: participants,
			CreatedAt:    now,
			UpdatedAt:    now,
		}, nil
	})
	require.NoError(t, err)
	return conv
}

func TestChatStoreMergeValidates(t *testing.T) {
	store := NewChatStore()
	_, err := store.Merge(context.Background(), "u1_u1", func(_ *chat.Conversation, now time.Time) (*chat.Conversation, error) {
		return &chat.Conversation{ID: "u1_u1", Participants: []string{"u1", "u1"}, CreatedAt: now}, nil
	})
	assert.Error(t, err, "malformed records must not be committed")

	_, err = store.Get(context.Background(), "u1_u1")
	assert.ErrorIs(t, err, chat.ErrConversationNotFound)
}

func TestChatStoreTimestampsAreStrictlyIncreasing(t *testing.T) {
	store := NewChatStore()
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return frozen }

	conv := seedConversation(t, store, "u1", "u2")

	first, err := store.Append(context.Background(), conv.ID, "u1", "a")
	require.NoError(t, err)
	second, err := store.Append(context.Background(), conv.ID, "u1", "b")
	require.NoError(t, err)

	assert.True(t, second.CreatedAt.After(first.CreatedAt), "stamps advance even under a frozen clock")
}

func TestChatStoreAppendKeepsPreviewInLockstep(t *testing.T) {
	store := NewChatStore()
	conv := seedConversation(t, store, "u1", "u2")

	msg, err := store.Append(context.Background(), conv.ID, "u2", "hola")
	require.NoError(t, err)

	stored, err := store.Get(context.Background(), conv.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastMessage)
	assert.Equal(t, msg.Text, stored.LastMessage.Text)
	assert.Equal(t, msg.CreatedAt, stored.LastMessage.SentAt)
	assert.Equal(t, msg.CreatedAt, stored.UpdatedAt)

	_, err = store.Append(context.Background(), "missing_pair", "u1", "x")
	assert.ErrorIs(t, err, chat.ErrConversationNotFound)
}

func TestChatStoreMessagesCursor(t *testing.T) {
	store := NewChatStore()
	conv := seedConversation(t, store, "u1", "u2")
	for _, text := range []string{"m1", "m2", "m3"} {
		_, err := store.Append(context.Background(), conv.ID, "u1", text)
		require.NoError(t, err)
	}

	page, cursor, err := store.Messages(context.Background(), conv.ID, 2, "")
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m3", page[0].Text, "pages are newest first")
	assert.Equal(t, "m2", page[1].Text)
	require.NotEmpty(t, cursor)

	older, next, err := store.Messages(context.Background(), conv.ID, 2, cursor)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, "m1", older[0].Text)
	assert.Empty(t, next)
}

func TestChatStoreConversationsByUserOrdersByActivity(t *testing.T) {
	store := NewChatStore()
	first := seedConversation(t, store, "u1", "u2")
	second := seedConversation(t, store, "u1", "u3")

	_, err := store.Append(context.Background(), first.ID, "u2", "bump")
	require.NoError(t, err)

	inbox, err := store.ConversationsByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, first.ID, inbox[0].ID, "most recently active thread leads")
	assert.Equal(t, second.ID, inbox[1].ID)

	other, err := store.ConversationsByUser(context.Background(), "u3")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestChatStoreMarkReadDoesNotBumpUpdatedAt(t *testing.T) {
	store := NewChatStore()
	conv := seedConversation(t, store, "u1", "u2")

	require.NoError(t, store.MarkRead(context.Background(), conv.ID, "u1", time.Now()))

	stored, err := store.Get(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.False(t, stored.Reads["u1"].IsZero())
	assert.Equal(t, conv.UpdatedAt, stored.UpdatedAt)

	assert.ErrorIs(t, store.MarkRead(context.Background(), "missing_pair", "u1", time.Now()), chat.ErrConversationNotFound)
}

func TestChatStoreWatchers(t *testing.T) {
	store := NewChatStore()
	conv := seedConversation(t, store, "u1", "u2")

	var convEvents []chat.Conversation
	cancelConv, err := store.WatchConversation(context.Background(), conv.ID, func(c chat.Conversation) {
		convEvents = append(convEvents, c)
	})
	require.NoError(t, err)

	var msgEvents []chat.Message
	cancelMsg, err := store.WatchMessages(context.Background(), conv.ID, func(m chat.Message) {
		msgEvents = append(msgEvents, m)
	})
	require.NoError(t, err)

	_, err = store.Append(context.Background(), conv.ID, "u1", "hola")
	require.NoError(t, err)

	require.Len(t, convEvents, 1)
	require.Len(t, msgEvents, 1)
	assert.Equal(t, "hola", msgEvents[0].Text)
	require.NotNil(t, convEvents[0].LastMessage)

	cancelConv()
	cancelMsg()
	_, err = store.Append(context.Background(), conv.ID, "u2", "adios")
	require.NoError(t, err)
	assert.Len(t, convEvents, 1)
	assert.Len(t, msgEvents, 1)
}
