package favorites

import (
	"context"
	"errors"
	"time"

	"tradepost/internal/domain/listings"
)

var ErrNotFound = errors.New("favorites: not found")

// Favorite marks a listing saved by a user. Adding twice is idempotent.
type Favorite struct {
	UserID    string
	ListingID listings.ListingID
	CreatedAt time.Time
}

type Repository interface {
	Add(ctx context.Context, fav Favorite) error
	Remove(ctx context.Context, userID string, listingID listings.ListingID) error
	ListByUser(ctx context.Context, userID string) ([]Favorite, error)
	Exists(ctx context.Context, userID string, listingID listings.ListingID) (bool, error)
}
