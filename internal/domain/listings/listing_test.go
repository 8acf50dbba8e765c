package listings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestListing(t *testing.T) *Listing {
	t.Helper()
	listing, err := NewListing(CreateParams{
		ID:         "l1",
		Owner:      "u1",
		Title:      "  Mountain bike  ",
		PriceCents: 25000,
		Currency:   "eur",
		Category:   " Sports ",
		Now:        time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return listing
}

func TestNewListingNormalizes(t *testing.T) {
	listing := newTestListing(t)
	assert.Equal(t, "Mountain bike", listing.Title)
	assert.Equal(t, "EUR", listing.Currency)
	assert.Equal(t, "sports", listing.Category)
	assert.Equal(t, StatusDraft, listing.Status, "new listings start as drafts")
}

func TestNewListingValidation(t *testing.T) {
	_, err := NewListing(CreateParams{Owner: "u1", Title: "x"})
	assert.ErrorIs(t, err, ErrIDRequired)

	_, err = NewListing(CreateParams{ID: "l1", Title: "x"})
	assert.ErrorIs(t, err, ErrOwnerRequired)

	_, err = NewListing(CreateParams{ID: "l1", Owner: "u1", Title: "   "})
	assert.ErrorIs(t, err, ErrTitleRequired)

	_, err = NewListing(CreateParams{ID: "l1", Owner: "u1", Title: "x", PriceCents: -1})
	assert.ErrorIs(t, err, ErrInvalidPrice)

	images := make([]string, MaxImages+1)
	_, err = NewListing(CreateParams{ID: "l1", Owner: "u1", Title: "x", Images: images})
	assert.ErrorIs(t, err, ErrTooManyImages)
}

func TestListingLifecycle(t *testing.T) {
	listing := newTestListing(t)
	now := time.Now()

	require.NoError(t, listing.Publish(now))
	assert.Equal(t, StatusActive, listing.Status)
	assert.ErrorIs(t, listing.Publish(now), ErrAlreadyActive)

	listing.Archive(now)
	assert.Equal(t, StatusArchived, listing.Status)
	assert.ErrorIs(t, listing.Publish(now), ErrArchived)
	assert.ErrorIs(t, listing.Update(UpdateParams{Title: "x"}), ErrArchived)
}

func TestListingImagesAndThumbnail(t *testing.T) {
	listing := newTestListing(t)
	assert.Empty(t, listing.Thumbnail())

	require.NoError(t, listing.AddImage("http://img/1.jpg", time.Now()))
	require.NoError(t, listing.AddImage("http://img/2.jpg", time.Now()))
	assert.Equal(t, "http://img/1.jpg", listing.Thumbnail())

	assert.ErrorIs(t, listing.AddImage("  ", time.Now()), ErrImageURLNeeded)
	for i := len(listing.Images); i < MaxImages; i++ {
		require.NoError(t, listing.AddImage("http://img/more.jpg", time.Now()))
	}
	assert.ErrorIs(t, listing.AddImage("http://img/over.jpg", time.Now()), ErrTooManyImages)
}
