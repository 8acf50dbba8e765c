package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"tradepost/internal/app/dto"
	domainfavorites "tradepost/internal/domain/favorites"
	domainlistings "tradepost/internal/domain/listings"
)

// FavoriteHandler manages the caller's saved listings.
type FavoriteHandler struct {
	Favorites domainfavorites.Repository
	Listings  domainlistings.Repository
	Logger    *slog.Logger
}

// List returns the caller's saved listings, newest first.
func (h FavoriteHandler) List(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	favorites, err := h.Favorites.ListByUser(c.Request.Context(), p.ID)
	if err != nil {
		h.respondFavoriteError(c, err, "list favorites", "user_id", p.ID)
		return
	}
	items := make([]dto.Favorite, 0, len(favorites))
	for _, fav := range favorites {
		items = append(items, dto.Favorite{ListingID: string(fav.ListingID), CreatedAt: fav.CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Add saves a listing. Saving the same listing twice is a no-op.
func (h FavoriteHandler) Add(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	listingID := domainlistings.ListingID(c.Param("id"))
	if h.Listings != nil {
		if _, err := h.Listings.ByID(c.Request.Context(), listingID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
			return
		}
	}
	err := h.Favorites.Add(c.Request.Context(), domainfavorites.Favorite{
		UserID:    p.ID,
		ListingID: listingID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		h.respondFavoriteError(c, err, "add favorite", "user_id", p.ID, "listing_id", string(listingID))
		return
	}
	c.Status(http.StatusNoContent)
}

// Remove unsaves a listing.
func (h FavoriteHandler) Remove(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	listingID := domainlistings.ListingID(c.Param("id"))
	if err := h.Favorites.Remove(c.Request.Context(), p.ID, listingID); err != nil {
		h.respondFavoriteError(c, err, "remove favorite", "user_id", p.ID, "listing_id", string(listingID))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h FavoriteHandler) respondFavoriteError(c *gin.Context, err error, action string, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Warn("favorite call failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	if errors.Is(err, domainfavorites.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
