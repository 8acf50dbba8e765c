package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	domainfavorites "tradepost/internal/domain/favorites"
	domainjobs "tradepost/internal/domain/jobs"
	domainlistings "tradepost/internal/domain/listings"
	domainreviews "tradepost/internal/domain/reviews"
)

// ListingRepository keeps classifieds in memory. Not suitable for production.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[domainlistings.ListingID]*domainlistings.Listing
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{items: make(map[domainlistings.ListingID]*domainlistings.Listing)}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if l, ok := r.items[id]; ok {
		return cloneListing(l), nil
	}
	return nil, domainlistings.ErrNotFound
}

func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	if listing == nil {
		return domainlistings.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[listing.ID] = cloneListing(listing)
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, id domainlistings.ListingID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domainlistings.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

// Search filters and pages by creation time descending; the cursor is the id
// of the last listing of the previous page.
func (r *ListingRepository) Search(ctx context.Context, filter domainlistings.Filter) ([]*domainlistings.Listing, string, error) {
	r.mu.RLock()
	all := make([]*domainlistings.Listing, 0, len(r.items))
	for _, l := range r.items {
		if matchesListing(l, filter) {
			all = append(all, cloneListing(l))
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	start := 0
	if filter.Cursor != "" {
		for i, l := range all {
			if string(l.ID) == filter.Cursor {
				start = i + 1
				break
			}
		}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	page := all[start:end]
	next := ""
	if end < len(all) && len(page) > 0 {
		next = string(page[len(page)-1].ID)
	}
	return page, next, nil
}

func (r *ListingRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.items)), nil
}

func matchesListing(l *domainlistings.Listing, f domainlistings.Filter) bool {
	if f.OnlyLive && l.Status != domainlistings.StatusActive {
		return false
	}
	if f.OwnerID != "" && l.Owner != f.OwnerID {
		return false
	}
	if f.Category != "" && l.Category != strings.ToLower(f.Category) {
		return false
	}
	if f.City != "" && !strings.EqualFold(l.City, f.City) {
		return false
	}
	if f.MaxPrice > 0 && l.PriceCents > f.MaxPrice {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(l.Title), q) && !strings.Contains(strings.ToLower(l.Description), q) {
			return false
		}
	}
	return true
}

func cloneListing(l *domainlistings.Listing) *domainlistings.Listing {
	if l == nil {
		return nil
	}
	out := *l
	out.Images = append([]string(nil), l.Images...)
	return &out
}

// JobRepository keeps job posts in memory.
type JobRepository struct {
	mu    sync.RWMutex
	items map[domainjobs.JobID]*domainjobs.Job
}

func NewJobRepository() *JobRepository {
	return &JobRepository{items: make(map[domainjobs.JobID]*domainjobs.Job)}
}

func (r *JobRepository) ByID(ctx context.Context, id domainjobs.JobID) (*domainjobs.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if j, ok := r.items[id]; ok {
		out := *j
		return &out, nil
	}
	return nil, domainjobs.ErrNotFound
}

func (r *JobRepository) Save(ctx context.Context, job *domainjobs.Job) error {
	if job == nil {
		return domainjobs.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := *job
	r.items[job.ID] = &out
	return nil
}

func (r *JobRepository) Delete(ctx context.Context, id domainjobs.JobID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domainjobs.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *JobRepository) List(ctx context.Context, filter domainjobs.Filter) ([]*domainjobs.Job, string, error) {
	r.mu.RLock()
	all := make([]*domainjobs.Job, 0, len(r.items))
	for _, j := range r.items {
		if matchesJob(j, filter) {
			out := *j
			all = append(all, &out)
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	start := 0
	if filter.Cursor != "" {
		for i, j := range all {
			if string(j.ID) == filter.Cursor {
				start = i + 1
				break
			}
		}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	page := all[start:end]
	next := ""
	if end < len(all) && len(page) > 0 {
		next = string(page[len(page)-1].ID)
	}
	return page, next, nil
}

func matchesJob(j *domainjobs.Job, f domainjobs.Filter) bool {
	if !j.Open {
		return false
	}
	if f.City != "" && !strings.EqualFold(j.City, f.City) {
		return false
	}
	if f.Remote != nil && j.Remote != *f.Remote {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(j.Title), q) &&
			!strings.Contains(strings.ToLower(j.Company), q) &&
			!strings.Contains(strings.ToLower(j.Description), q) {
			return false
		}
	}
	return true
}

// FavoriteRepository keeps saved listings in memory.
type FavoriteRepository struct {
	mu    sync.RWMutex
	items map[string]map[domainlistings.ListingID]domainfavorites.Favorite
}

func NewFavoriteRepository() *FavoriteRepository {
	return &FavoriteRepository{items: make(map[string]map[domainlistings.ListingID]domainfavorites.Favorite)}
}

func (r *FavoriteRepository) Add(ctx context.Context, fav domainfavorites.Favorite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.items[fav.UserID] == nil {
		r.items[fav.UserID] = make(map[domainlistings.ListingID]domainfavorites.Favorite)
	}
	if _, ok := r.items[fav.UserID][fav.ListingID]; ok {
		return nil
	}
	if fav.CreatedAt.IsZero() {
		fav.CreatedAt = time.Now().UTC()
	}
	r.items[fav.UserID][fav.ListingID] = fav
	return nil
}

func (r *FavoriteRepository) Remove(ctx context.Context, userID string, listingID domainlistings.ListingID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[userID][listingID]; !ok {
		return domainfavorites.ErrNotFound
	}
	delete(r.items[userID], listingID)
	return nil
}

func (r *FavoriteRepository) ListByUser(ctx context.Context, userID string) ([]domainfavorites.Favorite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domainfavorites.Favorite, 0, len(r.items[userID]))
	for _, fav := range r.items[userID] {
		out = append(out, fav)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *FavoriteRepository) Exists(ctx context.Context, userID string, listingID domainlistings.ListingID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[userID][listingID]
	return ok, nil
}

// ReviewRepository keeps seller reviews in memory.
type ReviewRepository struct {
	mu    sync.RWMutex
	items map[string]*domainreviews.Review // seller|author
}

func NewReviewRepository() *ReviewRepository {
	return &ReviewRepository{items: make(map[string]*domainreviews.Review)}
}

func reviewKey(sellerID, authorID string) string {
	return sellerID + "|" + authorID
}

func (r *ReviewRepository) BySellerAndAuthor(ctx context.Context, sellerID, authorID string) (*domainreviews.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rev, ok := r.items[reviewKey(sellerID, authorID)]; ok {
		out := *rev
		return &out, nil
	}
	return nil, domainreviews.ErrNotFound
}

func (r *ReviewRepository) ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]*domainreviews.Review, error) {
	r.mu.RLock()
	all := make([]*domainreviews.Review, 0)
	for _, rev := range r.items {
		if rev.SellerID == sellerID {
			out := *rev
			all = append(all, &out)
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return []*domainreviews.Review{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *ReviewRepository) Save(ctx context.Context, review *domainreviews.Review) error {
	if review == nil {
		return domainreviews.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := *review
	r.items[reviewKey(review.SellerID, review.AuthorID)] = &out
	return nil
}

func (r *ReviewRepository) AverageRating(ctx context.Context, sellerID string) (float64, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum, count int64
	for _, rev := range r.items {
		if rev.SellerID == sellerID {
			sum += int64(rev.Rating)
			count++
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(count), count, nil
}
