package listings

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired     = errors.New("listings: id is required")
	ErrOwnerRequired  = errors.New("listings: owner is required")
	ErrTitleRequired  = errors.New("listings: title is required")
	ErrInvalidPrice   = errors.New("listings: price must not be negative")
	ErrNotFound       = errors.New("listings: not found")
	ErrNotOwner       = errors.New("listings: caller does not own this listing")
	ErrAlreadyActive  = errors.New("listings: already published")
	ErrArchived       = errors.New("listings: listing is archived")
	ErrTooManyImages  = errors.New("listings: too many images")
	ErrImageURLNeeded = errors.New("listings: image url is required")
)

const MaxImages = 10

type ListingID string

type OwnerID string

type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Listing is a classified ad.
type Listing struct {
	ID          ListingID
	Owner       OwnerID
	Title       string
	Description string
	PriceCents  int64
	Currency    string
	Category    string
	City        string
	Images      []string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filter narrows catalog searches. Zero values mean "any".
type Filter struct {
	Category  string
	City      string
	Query     string
	MaxPrice  int64
	OwnerID   OwnerID
	OnlyLive  bool
	Limit     int
	Cursor    string
}

type Repository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
	Delete(ctx context.Context, id ListingID) error
	Search(ctx context.Context, filter Filter) ([]*Listing, string, error)
	Count(ctx context.Context) (int64, error)
}

type CreateParams struct {
	ID          ListingID
	Owner       OwnerID
	Title       string
	Description string
	PriceCents  int64
	Currency    string
	Category    string
	City        string
	Images      []string
	Now         time.Time
}

func NewListing(params CreateParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(string(params.Owner)) == "" {
		return nil, ErrOwnerRequired
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if params.PriceCents < 0 {
		return nil, ErrInvalidPrice
	}
	if len(params.Images) > MaxImages {
		return nil, ErrTooManyImages
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "EUR"
	}
	return &Listing{
		ID:          params.ID,
		Owner:       params.Owner,
		Title:       title,
		Description: strings.TrimSpace(params.Description),
		PriceCents:  params.PriceCents,
		Currency:    currency,
		Category:    strings.ToLower(strings.TrimSpace(params.Category)),
		City:        strings.TrimSpace(params.City),
		Images:      append([]string(nil), params.Images...),
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type UpdateParams struct {
	Title       string
	Description string
	PriceCents  int64
	Category    string
	City        string
	Images      []string
	Now         time.Time
}

func (l *Listing) Update(params UpdateParams) error {
	if l.Status == StatusArchived {
		return ErrArchived
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return ErrTitleRequired
	}
	if params.PriceCents < 0 {
		return ErrInvalidPrice
	}
	if len(params.Images) > MaxImages {
		return ErrTooManyImages
	}
	l.Title = title
	l.Description = strings.TrimSpace(params.Description)
	l.PriceCents = params.PriceCents
	l.Category = strings.ToLower(strings.TrimSpace(params.Category))
	l.City = strings.TrimSpace(params.City)
	l.Images = append([]string(nil), params.Images...)
	l.touch(params.Now)
	return nil
}

func (l *Listing) Publish(now time.Time) error {
	switch l.Status {
	case StatusActive:
		return ErrAlreadyActive
	case StatusArchived:
		return ErrArchived
	}
	l.Status = StatusActive
	l.touch(now)
	return nil
}

func (l *Listing) Archive(now time.Time) {
	l.Status = StatusArchived
	l.touch(now)
}

func (l *Listing) AddImage(url string, now time.Time) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrImageURLNeeded
	}
	if len(l.Images) >= MaxImages {
		return ErrTooManyImages
	}
	l.Images = append(l.Images, url)
	l.touch(now)
	return nil
}

// Thumbnail is the image carried into chat listing references.
func (l *Listing) Thumbnail() string {
	if len(l.Images) == 0 {
		return ""
	}
	return l.Images[0]
}

func (l *Listing) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	l.UpdatedAt = now.UTC()
}
