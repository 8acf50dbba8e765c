package ginserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tradepost/internal/app/dto"
	authservice "tradepost/internal/app/services/auth"
	domainchat "tradepost/internal/domain/chat"
	"tradepost/internal/infra/broker/kafka"
	"tradepost/internal/infra/obs"
	"tradepost/internal/infra/security"
	"tradepost/internal/infra/storage/memory"
	"tradepost/internal/infra/storage/s3"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := memory.NewUserRepository()
	listings := memory.NewListingRepository()

	authSvc := &authservice.Service{
		Users:      users,
		Sessions:   memory.NewSessionStore(),
		Passwords:  security.BcryptHasher{Cost: bcrypt.MinCost},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: time.Hour,
	}
	chat := domainchat.NewCoordinator(memory.NewChatStore(), domainchat.Options{Events: kafka.NoopPublisher{}})

	return NewRouter("test", Handlers{
		Auth:      AuthHandler{Service: authSvc},
		Chat:      ChatHandler{Chat: chat, Listings: listings, Users: users},
		Listings:  ListingHandler{Listings: listings},
		Jobs:      JobHandler{Jobs: memory.NewJobRepository()},
		Favorites: FavoriteHandler{Favorites: memory.NewFavoriteRepository(), Listings: listings},
		Reviews:   ReviewHandler{Reviews: memory.NewReviewRepository()},
		Admin:     AdminHandler{Users: users, Listings: listings},
		Uploads:   UploadHandler{Uploader: s3.NoopUploader{}},
		AuthMW:    AuthMiddleware{Service: authSvc},
		Health:    obs.HealthHandlers{},
	})
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, router *gin.Engine, email, name string) (token, id string) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":    email,
		"name":     name,
		"password": "correct horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp dto.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token, resp.User.ID
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t)
	assert.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/livez", "", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/readyz", "", nil).Code)
}

func TestChatRequiresAuth(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/api/v1/chat/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListingContactFlow(t *testing.T) {
	router := newTestRouter(t)

	sellerToken, sellerID := registerUser(t, router, "ana@example.com", "Ana")
	buyerToken, buyerID := registerUser(t, router, "bea@example.com", "Bea")

	// Seller publishes a bicycle.
	rec := doJSON(t, router, http.MethodPost, "/api/v1/listings", sellerToken, gin.H{
		"title":       "Bicycle",
		"price_cents": 15000,
		"category":    "sports",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var listing dto.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))

	rec = doJSON(t, router, http.MethodPost, "/api/v1/listings/"+listing.ID+"/publish", sellerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Buyer taps "contact seller".
	rec = doJSON(t, router, http.MethodPost, "/api/v1/listings/"+listing.ID+"/conversation", buyerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var conversation dto.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conversation))
	assert.Equal(t, domainchat.CanonicalConversationID(sellerID, buyerID), conversation.ID)
	require.NotNil(t, conversation.Listing)
	assert.Equal(t, "Bicycle", conversation.Listing.Title)

	// Contacting again lands on the same thread.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/listings/"+listing.ID+"/conversation", buyerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var again dto.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Equal(t, conversation.ID, again.ID)

	// Exchange messages.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/chat/conversations/"+conversation.ID+"/messages", buyerToken, gin.H{"text": "¿Sigue disponible?"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = doJSON(t, router, http.MethodPost, "/api/v1/chat/conversations/"+conversation.ID+"/messages", sellerToken, gin.H{"text": "Sí"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/v1/chat/conversations/"+conversation.ID+"/messages", buyerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page dto.ChatMessageList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 2)
	assert.Equal(t, "¿Sigue disponible?", page.Items[0].Text)
	assert.Equal(t, "Sí", page.Items[1].Text)

	// Seller's inbox shows the newest preview.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/chat/conversations", sellerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var inbox dto.ConversationList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inbox))
	require.Len(t, inbox.Items, 1)
	require.NotNil(t, inbox.Items[0].LastMessage)
	assert.Equal(t, "Sí", inbox.Items[0].LastMessage.Text)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/chat/conversations/"+conversation.ID+"/read", buyerToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestChatRejectsOutsiders(t *testing.T) {
	router := newTestRouter(t)

	sellerToken, sellerID := registerUser(t, router, "ana@example.com", "Ana")
	_, buyerID := registerUser(t, router, "bea@example.com", "Bea")
	intruderToken, _ := registerUser(t, router, "eve@example.com", "Eve")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/chat/conversations", sellerToken, gin.H{"user_id": buyerID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	conversationID := domainchat.CanonicalConversationID(sellerID, buyerID)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/chat/conversations/"+conversationID+"/messages", intruderToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/chat/conversations/"+conversationID+"/messages", intruderToken, gin.H{"text": "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Self-conversations are rejected up front.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/chat/conversations", sellerToken, gin.H{"user_id": sellerID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListingOwnershipEnforced(t *testing.T) {
	router := newTestRouter(t)

	ownerToken, _ := registerUser(t, router, "ana@example.com", "Ana")
	otherToken, _ := registerUser(t, router, "bea@example.com", "Bea")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/listings", ownerToken, gin.H{"title": "Bike", "price_cents": 100})
	require.Equal(t, http.StatusCreated, rec.Code)
	var listing dto.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))

	rec = doJSON(t, router, http.MethodPost, "/api/v1/listings/"+listing.ID+"/publish", otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/listings/"+listing.ID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminRoutesRequireRole(t *testing.T) {
	router := newTestRouter(t)
	userToken, _ := registerUser(t, router, "ana@example.com", "Ana")

	rec := doJSON(t, router, http.MethodGet, "/api/v1/admin/stats", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/admin/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
