package reviews

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidRating = errors.New("reviews: rating must be between 1 and 5")
	ErrSelfReview    = errors.New("reviews: cannot review yourself")
	ErrNotFound      = errors.New("reviews: not found")
)

type ReviewID string

// Review rates a seller. One review per author/seller pair; resubmitting
// replaces the previous one.
type Review struct {
	ID        ReviewID
	SellerID  string
	AuthorID  string
	Rating    int
	Text      string
	CreatedAt time.Time
}

type Repository interface {
	BySellerAndAuthor(ctx context.Context, sellerID, authorID string) (*Review, error)
	ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]*Review, error)
	Save(ctx context.Context, review *Review) error
	AverageRating(ctx context.Context, sellerID string) (float64, int64, error)
}

type SubmitParams struct {
	ID        ReviewID
	SellerID  string
	AuthorID  string
	Rating    int
	Text      string
	CreatedAt time.Time
}

func Submit(params SubmitParams) (*Review, error) {
	if params.Rating < 1 || params.Rating > 5 {
		return nil, ErrInvalidRating
	}
	if params.SellerID == params.AuthorID {
		return nil, ErrSelfReview
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	return &Review{
		ID:        params.ID,
		SellerID:  params.SellerID,
		AuthorID:  params.AuthorID,
		Rating:    params.Rating,
		Text:      strings.TrimSpace(params.Text),
		CreatedAt: now.UTC(),
	}, nil
}
