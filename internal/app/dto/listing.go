package dto

import "time"

// Listing is the public classifieds payload.
type Listing struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	Category    string    `json:"category,omitempty"`
	City        string    `json:"city,omitempty"`
	Images      []string  `json:"images"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListingList is a paginated catalog page.
type ListingList struct {
	Items      []Listing `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// Job is the public job post payload.
type Job struct {
	ID             string    `json:"id"`
	PosterID       string    `json:"poster_id"`
	Company        string    `json:"company"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	City           string    `json:"city,omitempty"`
	Remote         bool      `json:"remote"`
	SalaryMinCents int64     `json:"salary_min_cents,omitempty"`
	SalaryMaxCents int64     `json:"salary_max_cents,omitempty"`
	Open           bool      `json:"open"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// JobList is a paginated job board page.
type JobList struct {
	Items      []Job  `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// Favorite marks a saved listing.
type Favorite struct {
	ListingID string    `json:"listing_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Review is a seller rating.
type Review struct {
	ID        string    `json:"id"`
	SellerID  string    `json:"seller_id"`
	AuthorID  string    `json:"author_id"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewSummary aggregates a seller's reputation.
type ReviewSummary struct {
	SellerID string   `json:"seller_id"`
	Average  float64  `json:"average"`
	Count    int64    `json:"count"`
	Items    []Review `json:"items"`
}
