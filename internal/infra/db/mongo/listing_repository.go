package mongo

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "tradepost/internal/domain/listings"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection("listings")}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	doc := newListingDocument(listing)
	opts := options.Replace().SetUpsert(true)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

func (r *ListingRepository) Delete(ctx context.Context, id domainlistings.ListingID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainlistings.ErrNotFound
	}
	return nil
}

// Search pages by creation time descending; the cursor is the id of the last
// listing of the previous page.
func (r *ListingRepository) Search(ctx context.Context, filter domainlistings.Filter) ([]*domainlistings.Listing, string, error) {
	query := bson.M{}
	if filter.OnlyLive {
		query["status"] = string(domainlistings.StatusActive)
	}
	if filter.OwnerID != "" {
		query["owner_id"] = string(filter.OwnerID)
	}
	if filter.Category != "" {
		query["category"] = strings.ToLower(filter.Category)
	}
	if filter.City != "" {
		query["city"] = filter.City
	}
	if filter.MaxPrice > 0 {
		query["price_cents"] = bson.M{"$lte": filter.MaxPrice}
	}
	if filter.Query != "" {
		pattern := escapeRegex(filter.Query)
		query["$or"] = bson.A{
			bson.M{"title": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"description": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}
	if filter.Cursor != "" {
		var anchor listingDocument
		if err := r.col.FindOne(ctx, bson.M{"_id": filter.Cursor}).Decode(&anchor); err == nil {
			query["$and"] = bson.A{bson.M{"$or": bson.A{
				bson.M{"created_at": bson.M{"$lt": anchor.CreatedAt}},
				bson.M{"created_at": anchor.CreatedAt, "_id": bson.M{"$lt": anchor.ID}},
			}}}
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, "", err
	}
	defer cursor.Close(ctx)

	page := make([]*domainlistings.Listing, 0, limit)
	for cursor.Next(ctx) {
		var doc listingDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, "", err
		}
		page = append(page, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(page) == limit {
		next = string(page[len(page)-1].ID)
	}
	return page, next, nil
}

func (r *ListingRepository) Count(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{})
}

func escapeRegex(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`, `.`, `\.`, `+`, `\+`, `*`, `\*`, `?`, `\?`,
		`(`, `\(`, `)`, `\)`, `[`, `\[`, `]`, `\]`, `{`, `\{`, `}`, `\}`,
		`^`, `\^`, `$`, `\$`, `|`, `\|`,
	)
	return replacer.Replace(s)
}

type listingDocument struct {
	ID          string   `bson:"_id"`
	OwnerID     string   `bson:"owner_id"`
	Title       string   `bson:"title"`
	Description string   `bson:"description,omitempty"`
	PriceCents  int64    `bson:"price_cents"`
	Currency    string   `bson:"currency"`
	Category    string   `bson:"category,omitempty"`
	City        string   `bson:"city,omitempty"`
	Images      []string `bson:"images,omitempty"`
	Status      string   `bson:"status"`
	CreatedAt   int64    `bson:"created_at"`
	UpdatedAt   int64    `bson:"updated_at"`
}

func newListingDocument(l *domainlistings.Listing) listingDocument {
	return listingDocument{
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
		CreatedAt:   l.CreatedAt.UnixMilli(),
		UpdatedAt:   l.UpdatedAt.UnixMilli(),
	}
}

func (d listingDocument) toDomain() *domainlistings.Listing {
	return &domainlistings.Listing{
		ID:          domainlistings.ListingID(d.ID),
		Owner:       domainlistings.OwnerID(d.OwnerID),
		Title:       d.Title,
		Description: d.Description,
		PriceCents:  d.PriceCents,
		Currency:    d.Currency,
		Category:    d.Category,
		City:        d.City,
		Images:      append([]string(nil), d.Images...),
		Status:      domainlistings.Status(d.Status),
		CreatedAt:   timestampToTime(d.CreatedAt),
		UpdatedAt:   timestampToTime(d.UpdatedAt),
	}
}
