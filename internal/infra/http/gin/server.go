package ginserver

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"tradepost/internal/infra/obs"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth      AuthHandler
	Chat      ChatHandler
	Listings  ListingHandler
	Jobs      JobHandler
	Favorites FavoriteHandler
	Reviews   ReviewHandler
	Admin     AdminHandler
	Uploads   UploadHandler
	AuthMW    AuthMiddleware
	Health    obs.HealthHandlers
	Logger    *slog.Logger
}

// NewRouter wires middleware and all API routes.
func NewRouter(env string, h Handlers) *gin.Engine {
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	mw := obs.Middleware{Logger: h.Logger}
	router.Use(mw.RequestID())
	router.Use(mw.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(h.AuthMW.Handle)

	router.GET("/livez", h.Health.Livez)
	router.GET("/readyz", h.Health.Readyz)

	api := router.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.Auth.Register)
			authGroup.POST("/login", h.Auth.Login)
			authGroup.POST("/logout", h.Auth.Logout)
			authGroup.GET("/me", h.Auth.Me)
		}

		listingGroup := api.Group("/listings")
		{
			listingGroup.GET("", h.Listings.Search)
			listingGroup.GET("/mine", h.Listings.Mine)
			listingGroup.POST("", h.Listings.Create)
			listingGroup.GET("/:id", h.Listings.Get)
			listingGroup.PUT("/:id", h.Listings.Update)
			listingGroup.POST("/:id/publish", h.Listings.Publish)
			listingGroup.POST("/:id/archive", h.Listings.Archive)
			listingGroup.DELETE("/:id", h.Listings.Delete)
			listingGroup.POST("/:id/conversation", h.Chat.StartListingConversation)
			listingGroup.PUT("/:id/favorite", h.Favorites.Add)
			listingGroup.DELETE("/:id/favorite", h.Favorites.Remove)
		}

		jobGroup := api.Group("/jobs")
		{
			jobGroup.GET("", h.Jobs.List)
			jobGroup.POST("", h.Jobs.Create)
			jobGroup.GET("/:id", h.Jobs.Get)
			jobGroup.POST("/:id/close", h.Jobs.Close)
		}

		chatGroup := api.Group("/chat")
		{
			chatGroup.POST("/conversations", h.Chat.StartDirectConversation)
			chatGroup.GET("/conversations", h.Chat.ListMyConversations)
			chatGroup.GET("/conversations/:id", h.Chat.GetConversation)
			chatGroup.GET("/conversations/:id/messages", h.Chat.ListMessages)
			chatGroup.POST("/conversations/:id/messages", h.Chat.SendMessage)
			chatGroup.POST("/conversations/:id/read", h.Chat.MarkRead)
		}

		api.GET("/favorites", h.Favorites.List)

		sellerGroup := api.Group("/sellers")
		{
			sellerGroup.GET("/:id/reviews", h.Reviews.Seller)
			sellerGroup.POST("/:id/reviews", h.Reviews.Submit)
		}

		api.POST("/uploads", h.Uploads.Upload)

		adminGroup := api.Group("/admin")
		{
			adminGroup.GET("/stats", h.Admin.Stats)
			adminGroup.POST("/users/:id/block", h.Admin.SetUserBlocked)
			adminGroup.POST("/listings/:id/archive", h.Admin.ArchiveListing)
		}
	}

	return router
}
