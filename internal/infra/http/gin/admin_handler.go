package ginserver

import (
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"tradepost/internal/app/dto"
	domainlistings "tradepost/internal/domain/listings"
	domainuser "tradepost/internal/domain/user"
)

// AdminHandler serves moderation endpoints. All routes require the admin role.
type AdminHandler struct {
	Users    domainuser.Repository
	Listings domainlistings.Repository
	Logger   *slog.Logger
}

// Stats returns platform totals for the dashboard.
func (h AdminHandler) Stats(c *gin.Context) {
	if _, ok := requireRole(c, "admin"); !ok {
		return
	}
	users, err := h.Users.Count(c.Request.Context())
	if err != nil {
		h.respondAdminError(c, err, "count users")
		return
	}
	listings, err := h.Listings.Count(c.Request.Context())
	if err != nil {
		h.respondAdminError(c, err, "count listings")
		return
	}
	c.JSON(http.StatusOK, dto.AdminStats{Users: users, Listings: listings})
}

// SetUserBlocked toggles a user's blocked flag.
func (h AdminHandler) SetUserBlocked(c *gin.Context) {
	admin, ok := requireRole(c, "admin")
	if !ok {
		return
	}
	var req struct {
		Blocked bool `json:"blocked"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	userID := c.Param("id")
	if userID == admin.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot block yourself"})
		return
	}
	user, err := h.Users.ByID(c.Request.Context(), domainuser.ID(userID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	user.SetBlocked(req.Blocked, time.Now())
	if err := h.Users.Save(c.Request.Context(), user); err != nil {
		h.respondAdminError(c, err, "save user", "user_id", userID)
		return
	}
	if h.Logger != nil {
		h.Logger.Info("user block flag changed", "user_id", userID, "blocked", req.Blocked, "admin_id", admin.ID)
	}
	c.JSON(http.StatusOK, mapUser(user, true))
}

// ArchiveListing pulls any listing from the catalog.
func (h AdminHandler) ArchiveListing(c *gin.Context) {
	admin, ok := requireRole(c, "admin")
	if !ok {
		return
	}
	listing, err := h.Listings.ByID(c.Request.Context(), domainlistings.ListingID(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	listing.Archive(time.Now())
	if err := h.Listings.Save(c.Request.Context(), listing); err != nil {
		h.respondAdminError(c, err, "save listing", "listing_id", string(listing.ID))
		return
	}
	if h.Logger != nil {
		h.Logger.Info("listing archived by moderator", "listing_id", listing.ID, "admin_id", admin.ID)
	}
	c.JSON(http.StatusOK, mapListing(listing))
}

func (h AdminHandler) respondAdminError(c *gin.Context, err error, action string, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Error("admin call failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
