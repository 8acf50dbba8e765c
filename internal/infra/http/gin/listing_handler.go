package ginserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tradepost/internal/app/dto"
	domainlistings "tradepost/internal/domain/listings"
)

// TopicListingPublished announces catalog additions to downstream consumers.
const TopicListingPublished = "listing.published"

// EventPublisher is the broker port used for domain events.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// ListingHandler serves the classifieds catalog.
type ListingHandler struct {
	Listings domainlistings.Repository
	Events   EventPublisher
	Logger   *slog.Logger
}

type listingPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	PriceCents  int64    `json:"price_cents"`
	Currency    string   `json:"currency"`
	Category    string   `json:"category"`
	City        string   `json:"city"`
	Images      []string `json:"images"`
}

// Search returns one catalog page matching the query filters.
func (h ListingHandler) Search(c *gin.Context) {
	filter := domainlistings.Filter{
		Category: strings.TrimSpace(c.Query("category")),
		City:     strings.TrimSpace(c.Query("city")),
		Query:    strings.TrimSpace(c.Query("q")),
		OnlyLive: true,
		Limit:    parsePositiveIntStrict(c.Query("limit"), 20),
		Cursor:   c.Query("cursor"),
	}
	if raw := c.Query("max_price"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
			filter.MaxPrice = v
		}
	}
	items, next, err := h.Listings.Search(c.Request.Context(), filter)
	if err != nil {
		h.respondListingError(c, err, "search listings")
		return
	}
	c.JSON(http.StatusOK, mapListingPage(items, next))
}

// Mine returns the caller's own listings, drafts included.
func (h ListingHandler) Mine(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	items, next, err := h.Listings.Search(c.Request.Context(), domainlistings.Filter{
		OwnerID: domainlistings.OwnerID(p.ID),
		Limit:   parsePositiveIntStrict(c.Query("limit"), 20),
		Cursor:  c.Query("cursor"),
	})
	if err != nil {
		h.respondListingError(c, err, "list own listings", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, mapListingPage(items, next))
}

// Get returns a single listing by id.
func (h ListingHandler) Get(c *gin.Context) {
	listing, err := h.Listings.ByID(c.Request.Context(), domainlistings.ListingID(c.Param("id")))
	if err != nil {
		h.respondListingError(c, err, "get listing", "listing_id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, mapListing(listing))
}

// Create stores a new draft listing owned by the caller.
func (h ListingHandler) Create(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req listingPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	listing, err := domainlistings.NewListing(domainlistings.CreateParams{
		ID:          domainlistings.ListingID(uuid.NewString()),
		Owner:       domainlistings.OwnerID(p.ID),
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		Category:    req.Category,
		City:        req.City,
		Images:      req.Images,
		Now:         time.Now(),
	})
	if err != nil {
		h.respondListingError(c, err, "create listing", "user_id", p.ID)
		return
	}
	if err := h.Listings.Save(c.Request.Context(), listing); err != nil {
		h.respondListingError(c, err, "save listing", "listing_id", string(listing.ID))
		return
	}
	c.JSON(http.StatusCreated, mapListing(listing))
}

// Update replaces the mutable fields of a listing the caller owns.
func (h ListingHandler) Update(c *gin.Context) {
	listing, ok := h.loadOwned(c)
	if !ok {
		return
	}
	var req listingPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := listing.Update(domainlistings.UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Category:    req.Category,
		City:        req.City,
		Images:      req.Images,
		Now:         time.Now(),
	}); err != nil {
		h.respondListingError(c, err, "update listing", "listing_id", string(listing.ID))
		return
	}
	if err := h.Listings.Save(c.Request.Context(), listing); err != nil {
		h.respondListingError(c, err, "save listing", "listing_id", string(listing.ID))
		return
	}
	c.JSON(http.StatusOK, mapListing(listing))
}

// Publish makes a draft listing visible in the catalog.
func (h ListingHandler) Publish(c *gin.Context) {
	listing, ok := h.loadOwned(c)
	if !ok {
		return
	}
	if err := listing.Publish(time.Now()); err != nil {
		h.respondListingError(c, err, "publish listing", "listing_id", string(listing.ID))
		return
	}
	if err := h.Listings.Save(c.Request.Context(), listing); err != nil {
		h.respondListingError(c, err, "save listing", "listing_id", string(listing.ID))
		return
	}
	h.announcePublished(c.Request.Context(), listing)
	c.JSON(http.StatusOK, mapListing(listing))
}

// announcePublished emits a best-effort catalog event after the save commits.
func (h ListingHandler) announcePublished(ctx context.Context, listing *domainlistings.Listing) {
	if h.Events == nil {
		return
	}
	payload, err := json.Marshal(struct {
		ListingID string    `json:"listing_id"`
		OwnerID   string    `json:"owner_id"`
		Title     string    `json:"title"`
		At        time.Time `json:"at"`
	}{
		ListingID: string(listing.ID),
		OwnerID:   string(listing.Owner),
		Title:     listing.Title,
		At:        listing.UpdatedAt,
	})
	if err != nil {
		return
	}
	if err := h.Events.Publish(ctx, TopicListingPublished, string(listing.ID), payload); err != nil && h.Logger != nil {
		h.Logger.Warn("listing event publish failed", "listing_id", listing.ID, "error", err)
	}
}

// Archive removes the listing from the catalog without deleting it.
func (h ListingHandler) Archive(c *gin.Context) {
	listing, ok := h.loadOwned(c)
	if !ok {
		return
	}
	listing.Archive(time.Now())
	if err := h.Listings.Save(c.Request.Context(), listing); err != nil {
		h.respondListingError(c, err, "save listing", "listing_id", string(listing.ID))
		return
	}
	c.JSON(http.StatusOK, mapListing(listing))
}

// Delete removes a listing the caller owns.
func (h ListingHandler) Delete(c *gin.Context) {
	listing, ok := h.loadOwned(c)
	if !ok {
		return
	}
	if err := h.Listings.Delete(c.Request.Context(), listing.ID); err != nil {
		h.respondListingError(c, err, "delete listing", "listing_id", string(listing.ID))
		return
	}
	c.Status(http.StatusNoContent)
}

// loadOwned fetches the listing and checks ownership; admins bypass the check.
func (h ListingHandler) loadOwned(c *gin.Context) (*domainlistings.Listing, bool) {
	p, ok := requireRole(c, "")
	if !ok {
		return nil, false
	}
	listing, err := h.Listings.ByID(c.Request.Context(), domainlistings.ListingID(c.Param("id")))
	if err != nil {
		h.respondListingError(c, err, "get listing", "listing_id", c.Param("id"))
		return nil, false
	}
	if string(listing.Owner) != p.ID && !p.HasRole("admin") {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the listing owner"})
		return nil, false
	}
	return listing, true
}

func (h ListingHandler) respondListingError(c *gin.Context, err error, action string, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Warn("listing call failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	switch {
	case errors.Is(err, domainlistings.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domainlistings.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the listing owner"})
	case errors.Is(err, domainlistings.ErrTitleRequired),
		errors.Is(err, domainlistings.ErrInvalidPrice),
		errors.Is(err, domainlistings.ErrTooManyImages),
		errors.Is(err, domainlistings.ErrImageURLNeeded),
		errors.Is(err, domainlistings.ErrAlreadyActive),
		errors.Is(err, domainlistings.ErrArchived):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func mapListing(l *domainlistings.Listing) dto.Listing {
	return dto.Listing{
		ID:          string(l.ID),
		OwnerID:     string(l.Owner),
		Title:       l.Title,
		Description: l.Description,
		PriceCents:  l.PriceCents,
		Currency:    l.Currency,
		Category:    l.Category,
		City:        l.City,
		Images:      append([]string(nil), l.Images...),
		Status:      string(l.Status),
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func mapListingPage(items []*domainlistings.Listing, next string) dto.ListingList {
	page := dto.ListingList{Items: make([]dto.Listing, 0, len(items)), NextCursor: next}
	for _, item := range items {
		page.Items = append(page.Items, mapListing(item))
	}
	return page
}
