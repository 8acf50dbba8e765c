package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"tradepost/internal/app/dto"
	domainchat "tradepost/internal/domain/chat"
	domainlistings "tradepost/internal/domain/listings"
	domainuser "tradepost/internal/domain/user"
)

// ChatHTTP exposes chat endpoints.
type ChatHTTP interface {
	ListMyConversations(c *gin.Context)
	GetConversation(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	StartListingConversation(c *gin.Context)
	StartDirectConversation(c *gin.Context)
	MarkRead(c *gin.Context)
}

// ChatHandler bridges HTTP with the chat session coordinator.
type ChatHandler struct {
	Chat     *domainchat.Coordinator
	Listings domainlistings.Repository
	Users    domainuser.Repository
	Logger   *slog.Logger
}

// ListMyConversations returns the caller's inbox, newest activity first.
func (h ChatHandler) ListMyConversations(c *gin.Context) {
	principal, ok := requireRole(c, "")
	if !ok {
		return
	}
	conversations, err := h.Chat.Conversations(c.Request.Context(), principal.ID)
	if err != nil {
		h.respondChatError(c, err, "list conversations", "user_id", principal.ID)
		return
	}
	collection := dto.ConversationList{Items: make([]dto.Conversation, 0, len(conversations))}
	for i := range conversations {
		collection.Items = append(collection.Items, mapConversation(&conversations[i]))
	}
	c.JSON(http.StatusOK, collection)
}

// GetConversation returns thread metadata if the caller participates.
func (h ChatHandler) GetConversation(c *gin.Context) {
	_, conversation, ok := h.loadParticipantConversation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, mapConversation(conversation))
}

// ListMessages returns one page of messages in display order, oldest first.
func (h ChatHandler) ListMessages(c *gin.Context) {
	_, conversation, ok := h.loadParticipantConversation(c)
	if !ok {
		return
	}
	limit := parsePositiveIntStrict(c.Query("limit"), 50)
	cursor := c.Query("cursor")

	messages, next, err := h.Chat.ListMessages(c.Request.Context(), conversation.ID, limit, cursor)
	if err != nil {
		h.respondChatError(c, err, "list messages", "conversation_id", conversation.ID)
		return
	}
	collection := dto.ChatMessageList{
		Items:      make([]dto.ChatMessage, 0, len(messages)),
		NextCursor: next,
	}
	for _, msg := range messages {
		collection.Items = append(collection.Items, mapMessage(msg))
	}
	c.JSON(http.StatusOK, collection)
}

// SendMessage posts a message to a conversation the caller participates in.
func (h ChatHandler) SendMessage(c *gin.Context) {
	principal, ok := requireRole(c, "")
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	message, err := h.Chat.SendMessage(c.Request.Context(), conversationID, principal.ID, req.Text)
	if err != nil {
		h.respondChatError(c, err, "send message", "conversation_id", conversationID, "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusCreated, mapMessage(*message))
}

// StartListingConversation gets or creates the buyer/seller thread for a listing.
func (h ChatHandler) StartListingConversation(c *gin.Context) {
	principal, ok := requireRole(c, "")
	if !ok {
		return
	}
	listingID := strings.TrimSpace(c.Param("id"))
	if listingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing id is required"})
		return
	}
	if h.Listings == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "listings unavailable"})
		return
	}
	listing, err := h.Listings.ByID(c.Request.Context(), domainlistings.ListingID(listingID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
		return
	}
	ownerID := string(listing.Owner)
	handle, err := h.Chat.Establish(
		c.Request.Context(),
		principal.identity(),
		ownerID,
		h.displayHint(c, ownerID),
		&domainchat.ListingRef{ID: string(listing.ID), Title: listing.Title, ImageURL: listing.Thumbnail()},
	)
	if err != nil {
		h.respondChatError(c, err, "start listing conversation", "listing_id", listingID, "user_id", principal.ID, "owner_id", ownerID)
		return
	}
	c.JSON(http.StatusOK, mapConversation(handle.Conversation))
}

// StartDirectConversation opens a thread with another user without listing context.
func (h ChatHandler) StartDirectConversation(c *gin.Context) {
	principal, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	handle, err := h.Chat.Establish(
		c.Request.Context(),
		principal.identity(),
		req.UserID,
		h.displayHint(c, req.UserID),
		nil,
	)
	if err != nil {
		h.respondChatError(c, err, "start direct conversation", "user_id", principal.ID, "peer_id", req.UserID)
		return
	}
	c.JSON(http.StatusOK, mapConversation(handle.Conversation))
}

// MarkRead records that the caller has seen the thread.
func (h ChatHandler) MarkRead(c *gin.Context) {
	principal, ok := requireRole(c, "")
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	if err := h.Chat.MarkRead(c.Request.Context(), conversationID, principal.ID); err != nil {
		h.respondChatError(c, err, "mark read", "conversation_id", conversationID, "user_id", principal.ID)
		return
	}
	c.Status(http.StatusNoContent)
}

// displayHint resolves a best-effort snapshot for the counterparty. A failed
// profile read never blocks conversation establishment.
func (h ChatHandler) displayHint(c *gin.Context, userID string) domainchat.ParticipantInfo {
	if h.Users == nil || userID == "" {
		return domainchat.ParticipantInfo{}
	}
	user, err := h.Users.ByID(c.Request.Context(), domainuser.ID(userID))
	if err != nil {
		if h.Logger != nil {
			h.Logger.Debug("counterparty profile lookup failed", "user_id", userID, "error", err)
		}
		return domainchat.ParticipantInfo{}
	}
	return domainchat.ParticipantInfo{DisplayName: user.Name, AvatarURL: user.AvatarURL}
}

func (h ChatHandler) loadParticipantConversation(c *gin.Context) (principal, *domainchat.Conversation, bool) {
	p, ok := requireRole(c, "")
	if !ok {
		return principal{}, nil, false
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return principal{}, nil, false
	}
	conversation, err := h.Chat.Conversation(c.Request.Context(), conversationID)
	if err != nil {
		h.respondChatError(c, err, "load conversation", "conversation_id", conversationID, "user_id", p.ID)
		return principal{}, nil, false
	}
	if !p.HasRole("admin") && !conversation.HasParticipant(p.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
		return principal{}, nil, false
	}
	return p, conversation, true
}

func (h ChatHandler) respondChatError(c *gin.Context, err error, action string, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Error("chat call failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	var establishErr *domainchat.EstablishError
	switch {
	case errors.Is(err, domainchat.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
	case errors.Is(err, domainchat.ErrSelfConversation),
		errors.Is(err, domainchat.ErrCounterpartyRequired),
		errors.Is(err, domainchat.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domainchat.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
	case errors.Is(err, domainchat.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &establishErr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "conversation is busy, please retry"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "chat unavailable"})
	}
}

func mapConversation(conv *domainchat.Conversation) dto.Conversation {
	out := dto.Conversation{
		ID:           conv.ID,
		Participants: make([]dto.Participant, 0, len(conv.Participants)),
		Reads:        conv.Reads,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
	}
	for _, id := range conv.Participants {
		info := conv.ParticipantInfo[id]
		out.Participants = append(out.Participants, dto.Participant{
			ID:          id,
			DisplayName: info.DisplayName,
			AvatarURL:   info.AvatarURL,
		})
	}
	if conv.Listing != nil {
		out.Listing = &dto.ListingContext{ID: conv.Listing.ID, Title: conv.Listing.Title, ImageURL: conv.Listing.ImageURL}
	}
	if conv.LastMessage != nil {
		out.LastMessage = &dto.LastMessage{Text: conv.LastMessage.Text, SenderID: conv.LastMessage.SenderID, SentAt: conv.LastMessage.SentAt}
	}
	return out
}

func mapMessage(msg domainchat.Message) dto.ChatMessage {
	return dto.ChatMessage{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Text:           msg.Text,
		CreatedAt:      msg.CreatedAt,
	}
}

func parsePositiveIntStrict(raw string, def int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return def
	}
	return value
}

var _ ChatHTTP = (*ChatHandler)(nil)
