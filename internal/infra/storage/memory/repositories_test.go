package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainfavorites "tradepost/internal/domain/favorites"
	domainlistings "tradepost/internal/domain/listings"
	domainreviews "tradepost/internal/domain/reviews"
)

func seedListing(t *testing.T, repo *ListingRepository, id, title, category string, price int64, createdAt time.Time, publish bool) {
	t.Helper()
	listing, err := domainlistings.NewListing(domainlistings.CreateParams{
		ID:         domainlistings.ListingID(id),
		Owner:      "owner",
		Title:      title,
		PriceCents: price,
		Category:   category,
		Now:        createdAt,
	})
	require.NoError(t, err)
	if publish {
		require.NoError(t, listing.Publish(createdAt))
	}
	require.NoError(t, repo.Save(context.Background(), listing))
}

func TestListingRepositorySearchFilters(t *testing.T) {
	repo := NewListingRepository()
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	seedListing(t, repo, "l1", "Mountain bike", "sports", 25000, base, true)
	seedListing(t, repo, "l2", "City bike", "sports", 12000, base.Add(time.Minute), true)
	seedListing(t, repo, "l3", "Sofa", "furniture", 8000, base.Add(2*time.Minute), true)
	seedListing(t, repo, "l4", "Draft bike", "sports", 100, base.Add(3*time.Minute), false)

	items, _, err := repo.Search(context.Background(), domainlistings.Filter{Query: "bike", OnlyLive: true})
	require.NoError(t, err)
	require.Len(t, items, 2, "drafts stay out of the live catalog")

	items, _, err = repo.Search(context.Background(), domainlistings.Filter{Category: "Sports", MaxPrice: 15000, OnlyLive: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domainlistings.ListingID("l2"), items[0].ID)
}

func TestListingRepositorySearchPagination(t *testing.T) {
	repo := NewListingRepository()
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedListing(t, repo, fmt.Sprintf("l%d", i), fmt.Sprintf("Item %d", i), "misc", 100, base.Add(time.Duration(i)*time.Minute), true)
	}

	page1, cursor, err := repo.Search(context.Background(), domainlistings.Filter{Limit: 2, OnlyLive: true})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, domainlistings.ListingID("l4"), page1[0].ID, "newest first")
	require.NotEmpty(t, cursor)

	page2, cursor, err := repo.Search(context.Background(), domainlistings.Filter{Limit: 2, OnlyLive: true, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, domainlistings.ListingID("l2"), page2[0].ID)

	page3, cursor, err := repo.Search(context.Background(), domainlistings.Filter{Limit: 2, OnlyLive: true, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Empty(t, cursor)
}

func TestListingRepositoryDelete(t *testing.T) {
	repo := NewListingRepository()
	seedListing(t, repo, "l1", "Bike", "sports", 100, time.Now(), true)

	require.NoError(t, repo.Delete(context.Background(), "l1"))
	_, err := repo.ByID(context.Background(), "l1")
	assert.ErrorIs(t, err, domainlistings.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(context.Background(), "l1"), domainlistings.ErrNotFound)
}

func TestFavoriteRepositoryIsIdempotent(t *testing.T) {
	repo := NewFavoriteRepository()
	ctx := context.Background()
	first := domainfavorites.Favorite{UserID: "u1", ListingID: "l1", CreatedAt: time.Now().UTC()}

	require.NoError(t, repo.Add(ctx, first))
	require.NoError(t, repo.Add(ctx, domainfavorites.Favorite{UserID: "u1", ListingID: "l1", CreatedAt: first.CreatedAt.Add(time.Hour)}))

	favorites, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, first.CreatedAt, favorites[0].CreatedAt, "re-adding keeps the original save time")

	exists, err := repo.Exists(ctx, "u1", "l1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repo.Remove(ctx, "u1", "l1"))
	assert.ErrorIs(t, repo.Remove(ctx, "u1", "l1"), domainfavorites.ErrNotFound)
}

func TestReviewRepositoryUpsertsPerAuthor(t *testing.T) {
	repo := NewReviewRepository()
	ctx := context.Background()

	submit := func(author string, rating int, at time.Time) {
		review, err := domainreviews.Submit(domainreviews.SubmitParams{
			ID:        domainreviews.ReviewID(author + "-rev"),
			SellerID:  "seller",
			AuthorID:  author,
			Rating:    rating,
			CreatedAt: at,
		})
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, review))
	}

	now := time.Now()
	submit("a1", 2, now)
	submit("a2", 4, now.Add(time.Minute))
	submit("a1", 5, now.Add(2*time.Minute)) // replaces a1's earlier rating

	average, count, err := repo.AverageRating(ctx, "seller")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.InDelta(t, 4.5, average, 0.001)

	latest, err := repo.ListBySeller(ctx, "seller", 10, 0)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "a1", latest[0].AuthorID, "newest review first")
}
