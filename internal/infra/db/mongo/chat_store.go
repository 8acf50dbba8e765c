package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tradepost/internal/domain/chat"
)

// ChatStore implements the chat document-store boundary on MongoDB:
// multi-document transactions for merge and append, change streams for
// watches, and created_at/_id cursors for message pages.
type ChatStore struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
	logger        *slog.Logger
}

func NewChatStore(db *mongo.Database, logger *slog.Logger) *ChatStore {
	return &ChatStore{
		conversations: db.Collection("chat_conversations"),
		messages:      db.Collection("chat_messages"),
		logger:        logger,
	}
}

// Merge runs the read-modify-write inside one transaction keyed by id.
// Transient transaction errors and duplicate-create races surface as
// chat.ErrMergeConflict so the coordinator can retry.
func (s *ChatStore) Merge(ctx context.Context, id string, fn chat.MergeFunc) (*chat.Conversation, error) {
	session, err := s.conversations.Database().Client().StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var current *chat.Conversation
		var doc conversationDocument
		findErr := s.conversations.FindOne(sc, bson.M{"_id": id}).Decode(&doc)
		switch {
		case findErr == nil:
			current, findErr = doc.toDomain()
			if findErr != nil {
				return nil, findErr
			}
		case errors.Is(findErr, mongo.ErrNoDocuments):
			current = nil
		default:
			return nil, findErr
		}

		next, mergeErr := fn(current, time.Now().UTC())
		if mergeErr != nil {
			return nil, mergeErr
		}
		if validateErr := next.Validate(); validateErr != nil {
			return nil, validateErr
		}
		opts := options.Replace().SetUpsert(true)
		if _, replaceErr := s.conversations.ReplaceOne(sc, bson.M{"_id": id}, newConversationDocument(next), opts); replaceErr != nil {
			return nil, replaceErr
		}
		return next, nil
	})
	if err != nil {
		if isRetryableTxnError(err) {
			return nil, fmt.Errorf("%w: %v", chat.ErrMergeConflict, err)
		}
		return nil, err
	}
	return result.(*chat.Conversation), nil
}

func (s *ChatStore) Get(ctx context.Context, id string) (*chat.Conversation, error) {
	var doc conversationDocument
	if err := s.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, chat.ErrConversationNotFound
		}
		return nil, err
	}
	return doc.toDomain()
}

// Append commits the message insert and the preview update together.
func (s *ChatStore) Append(ctx context.Context, conversationID, senderID, text string) (*chat.Message, error) {
	session, err := s.conversations.Database().Client().StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		now := time.Now().UTC()
		msg := chat.Message{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			SenderID:       senderID,
			Text:           text,
			CreatedAt:      now,
		}
		if _, insertErr := s.messages.InsertOne(sc, newMessageDocument(msg)); insertErr != nil {
			return nil, insertErr
		}
		update := bson.M{"$set": bson.M{
			"last_message": lastMessageDocument{
				Text:     chat.PreviewSnippet(text),
				SenderID: senderID,
				SentAt:   now.UnixMilli(),
			},
			"updated_at": now.UnixMilli(),
		}}
		res, updateErr := s.conversations.UpdateOne(sc, bson.M{"_id": conversationID}, update)
		if updateErr != nil {
			return nil, updateErr
		}
		if res.MatchedCount == 0 {
			return nil, chat.ErrConversationNotFound
		}
		return &msg, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*chat.Message), nil
}

func (s *ChatStore) Messages(ctx context.Context, conversationID string, limit int, before string) ([]chat.Message, string, error) {
	filter := bson.M{"conversation_id": conversationID}
	if before != "" {
		at, id, err := decodeMessageCursor(before)
		if err != nil {
			return nil, "", err
		}
		filter["$or"] = bson.A{
			bson.M{"created_at": bson.M{"$lt": at}},
			bson.M{"created_at": at, "_id": bson.M{"$lt": id}},
		}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, "", err
	}
	defer cursor.Close(ctx)

	page := make([]chat.Message, 0, limit)
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, "", err
		}
		page = append(page, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(page) == limit {
		last := page[len(page)-1]
		next = encodeMessageCursor(last.CreatedAt.UnixMilli(), last.ID)
	}
	return page, next, nil
}

func (s *ChatStore) ConversationsByUser(ctx context.Context, userID string) ([]chat.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := s.conversations.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make([]chat.Conversation, 0)
	for cursor.Next(ctx) {
		var doc conversationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		conv, err := doc.toDomain()
		if err != nil {
			// skip malformed records instead of failing the whole inbox
			if s.logger != nil {
				s.logger.Warn("skipping malformed conversation", "conversation_id", doc.ID, "error", err)
			}
			continue
		}
		out = append(out, *conv)
	}
	return out, cursor.Err()
}

func (s *ChatStore) MarkRead(ctx context.Context, conversationID, userID string, at time.Time) error {
	update := bson.M{"$set": bson.M{"reads." + userID: at.UTC().UnixMilli()}}
	res, err := s.conversations.UpdateOne(ctx, bson.M{"_id": conversationID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return chat.ErrConversationNotFound
	}
	return nil
}

func (s *ChatStore) WatchConversation(ctx context.Context, conversationID string, fn func(chat.Conversation)) (chat.CancelFunc, error) {
	pipeline := mongo.Pipeline{bson.D{{Key: "$match", Value: bson.D{
		{Key: "documentKey._id", Value: conversationID},
	}}}}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := s.conversations.Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, err
	}
	watchCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer stream.Close(context.Background())
		for stream.Next(watchCtx) {
			var event struct {
				FullDocument conversationDocument `bson:"fullDocument"`
			}
			if err := stream.Decode(&event); err != nil {
				s.logWatchError("conversation", conversationID, err)
				continue
			}
			conv, err := event.FullDocument.toDomain()
			if err != nil {
				s.logWatchError("conversation", conversationID, err)
				continue
			}
			fn(*conv)
		}
	}()
	return chat.CancelFunc(cancel), nil
}

func (s *ChatStore) WatchMessages(ctx context.Context, conversationID string, fn func(chat.Message)) (chat.CancelFunc, error) {
	pipeline := mongo.Pipeline{bson.D{{Key: "$match", Value: bson.D{
		{Key: "operationType", Value: "insert"},
		{Key: "fullDocument.conversation_id", Value: conversationID},
	}}}}
	stream, err := s.messages.Watch(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	watchCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer stream.Close(context.Background())
		for stream.Next(watchCtx) {
			var event struct {
				FullDocument messageDocument `bson:"fullDocument"`
			}
			if err := stream.Decode(&event); err != nil {
				s.logWatchError("messages", conversationID, err)
				continue
			}
			fn(event.FullDocument.toDomain())
		}
	}()
	return chat.CancelFunc(cancel), nil
}

func (s *ChatStore) logWatchError(kind, conversationID string, err error) {
	if s.logger != nil {
		s.logger.Warn("change stream decode failed", "watch", kind, "conversation_id", conversationID, "error", err)
	}
}

func isRetryableTxnError(err error) bool {
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.HasErrorLabel("TransientTransactionError") || cmdErr.HasErrorLabel("UnknownTransactionCommitResult")
	}
	return false
}

type conversationDocument struct {
	ID              string                          `bson:"_id"`
	Participants    []string                        `bson:"participants"`
	ParticipantInfo map[string]chat.ParticipantInfo `bson:"participant_info,omitempty"`
	Listing         *chat.ListingRef                `bson:"listing,omitempty"`
	LastMessage     *lastMessageDocument            `bson:"last_message,omitempty"`
	Reads           map[string]int64                `bson:"reads,omitempty"`
	CreatedAt       int64                           `bson:"created_at"`
	UpdatedAt       int64                           `bson:"updated_at"`
}

type lastMessageDocument struct {
	Text     string `bson:"text"`
	SenderID string `bson:"sender_id"`
	SentAt   int64  `bson:"sent_at"`
}

func newConversationDocument(c *chat.Conversation) conversationDocument {
	doc := conversationDocument{
		ID:              c.ID,
		Participants:    append([]string(nil), c.Participants...),
		ParticipantInfo: c.ParticipantInfo,
		Listing:         c.Listing,
		CreatedAt:       c.CreatedAt.UnixMilli(),
		UpdatedAt:       c.UpdatedAt.UnixMilli(),
	}
	if c.LastMessage != nil {
		doc.LastMessage = &lastMessageDocument{
			Text:     c.LastMessage.Text,
			SenderID: c.LastMessage.SenderID,
			SentAt:   c.LastMessage.SentAt.UnixMilli(),
		}
	}
	if len(c.Reads) > 0 {
		doc.Reads = make(map[string]int64, len(c.Reads))
		for user, at := range c.Reads {
			doc.Reads[user] = at.UnixMilli()
		}
	}
	return doc
}

func (d conversationDocument) toDomain() (*chat.Conversation, error) {
	conv := &chat.Conversation{
		ID:              d.ID,
		Participants:    append([]string(nil), d.Participants...),
		ParticipantInfo: d.ParticipantInfo,
		Listing:         d.Listing,
		CreatedAt:       timestampToTime(d.CreatedAt),
		UpdatedAt:       timestampToTime(d.UpdatedAt),
	}
	if d.LastMessage != nil {
		conv.LastMessage = &chat.LastMessage{
			Text:     d.LastMessage.Text,
			SenderID: d.LastMessage.SenderID,
			SentAt:   timestampToTime(d.LastMessage.SentAt),
		}
	}
	if len(d.Reads) > 0 {
		conv.Reads = make(map[string]time.Time, len(d.Reads))
		for user, at := range d.Reads {
			conv.Reads[user] = timestampToTime(at)
		}
	}
	if err := conv.Validate(); err != nil {
		return nil, err
	}
	return conv, nil
}

type messageDocument struct {
	ID             string `bson:"_id"`
	ConversationID string `bson:"conversation_id"`
	SenderID       string `bson:"sender_id"`
	Text           string `bson:"text"`
	CreatedAt      int64  `bson:"created_at"`
}

func newMessageDocument(m chat.Message) messageDocument {
	return messageDocument{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Text:           m.Text,
		CreatedAt:      m.CreatedAt.UnixMilli(),
	}
}

func (d messageDocument) toDomain() chat.Message {
	return chat.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		Text:           d.Text,
		CreatedAt:      timestampToTime(d.CreatedAt),
	}
}

func encodeMessageCursor(atMilli int64, id string) string {
	return strconv.FormatInt(atMilli, 10) + "|" + id
}

func decodeMessageCursor(cursor string) (int64, string, error) {
	at, id, ok := strings.Cut(cursor, "|")
	if !ok {
		return 0, "", fmt.Errorf("chat: malformed message cursor %q", cursor)
	}
	ms, err := strconv.ParseInt(at, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("chat: malformed message cursor %q: %w", cursor, err)
	}
	return ms, id, nil
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ chat.Store = (*ChatStore)(nil)
