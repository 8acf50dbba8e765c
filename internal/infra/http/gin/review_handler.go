package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tradepost/internal/app/dto"
	domainreviews "tradepost/internal/domain/reviews"
)

// ReviewHandler serves seller reputation.
type ReviewHandler struct {
	Reviews domainreviews.Repository
	Logger  *slog.Logger
}

// Seller returns a seller's rating summary and latest reviews.
func (h ReviewHandler) Seller(c *gin.Context) {
	sellerID := c.Param("id")
	average, count, err := h.Reviews.AverageRating(c.Request.Context(), sellerID)
	if err != nil {
		h.respondReviewError(c, err, "rating summary", "seller_id", sellerID)
		return
	}
	limit := parsePositiveIntStrict(c.Query("limit"), 20)
	items, err := h.Reviews.ListBySeller(c.Request.Context(), sellerID, limit, 0)
	if err != nil {
		h.respondReviewError(c, err, "list reviews", "seller_id", sellerID)
		return
	}
	summary := dto.ReviewSummary{
		SellerID: sellerID,
		Average:  average,
		Count:    count,
		Items:    make([]dto.Review, 0, len(items)),
	}
	for _, review := range items {
		summary.Items = append(summary.Items, mapReview(review))
	}
	c.JSON(http.StatusOK, summary)
}

// Submit rates a seller. Resubmitting replaces the caller's previous review.
func (h ReviewHandler) Submit(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	sellerID := c.Param("id")
	var req struct {
		Rating int    `json:"rating"`
		Text   string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	review, err := domainreviews.Submit(domainreviews.SubmitParams{
		ID:        domainreviews.ReviewID(uuid.NewString()),
		SellerID:  sellerID,
		AuthorID:  p.ID,
		Rating:    req.Rating,
		Text:      req.Text,
		CreatedAt: time.Now(),
	})
	if err != nil {
		h.respondReviewError(c, err, "submit review", "seller_id", sellerID, "author_id", p.ID)
		return
	}
	if err := h.Reviews.Save(c.Request.Context(), review); err != nil {
		h.respondReviewError(c, err, "save review", "review_id", string(review.ID))
		return
	}
	c.JSON(http.StatusCreated, mapReview(review))
}

func (h ReviewHandler) respondReviewError(c *gin.Context, err error, action string, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Warn("review call failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	switch {
	case errors.Is(err, domainreviews.ErrInvalidRating), errors.Is(err, domainreviews.ErrSelfReview):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domainreviews.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func mapReview(r *domainreviews.Review) dto.Review {
	return dto.Review{
		ID:        string(r.ID),
		SellerID:  r.SellerID,
		AuthorID:  r.AuthorID,
		Rating:    r.Rating,
		Text:      r.Text,
		CreatedAt: r.CreatedAt,
	}
}
