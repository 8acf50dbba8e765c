package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainreviews "tradepost/internal/domain/reviews"
)

type ReviewRepository struct {
	col *mongo.Collection
}

func NewReviewRepository(db *mongo.Database) *ReviewRepository {
	return &ReviewRepository{col: db.Collection("reviews")}
}

func reviewID(sellerID, authorID string) string {
	return sellerID + "|" + authorID
}

func (r *ReviewRepository) BySellerAndAuthor(ctx context.Context, sellerID, authorID string) (*domainreviews.Review, error) {
	var doc reviewDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": reviewID(sellerID, authorID)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainreviews.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *ReviewRepository) ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]*domainreviews.Review, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts = opts.SetSkip(int64(offset))
	}
	cursor, err := r.col.Find(ctx, bson.M{"seller_id": sellerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make([]*domainreviews.Review, 0)
	for cursor.Next(ctx) {
		var doc reviewDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, cursor.Err()
}

func (r *ReviewRepository) Save(ctx context.Context, review *domainreviews.Review) error {
	doc := newReviewDocument(review)
	opts := options.Replace().SetUpsert(true)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

func (r *ReviewRepository) AverageRating(ctx context.Context, sellerID string) (float64, int64, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "seller_id", Value: sellerID}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "avg", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, err
	}
	defer cursor.Close(ctx)

	if cursor.Next(ctx) {
		var row struct {
			Avg   float64 `bson:"avg"`
			Count int64   `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return 0, 0, err
		}
		return row.Avg, row.Count, nil
	}
	return 0, 0, cursor.Err()
}

type reviewDocument struct {
	ID        string `bson:"_id"`
	ReviewID  string `bson:"review_id"`
	SellerID  string `bson:"seller_id"`
	AuthorID  string `bson:"author_id"`
	Rating    int    `bson:"rating"`
	Text      string `bson:"text,omitempty"`
	CreatedAt int64  `bson:"created_at"`
}

func newReviewDocument(rev *domainreviews.Review) reviewDocument {
	return reviewDocument{
		ID:        reviewID(rev.SellerID, rev.AuthorID),
		ReviewID:  string(rev.ID),
		SellerID:  rev.SellerID,
		AuthorID:  rev.AuthorID,
		Rating:    rev.Rating,
		Text:      rev.Text,
		CreatedAt: rev.CreatedAt.UnixMilli(),
	}
}

func (d reviewDocument) toDomain() *domainreviews.Review {
	return &domainreviews.Review{
		ID:        domainreviews.ReviewID(d.ReviewID),
		SellerID:  d.SellerID,
		AuthorID:  d.AuthorID,
		Rating:    d.Rating,
		Text:      d.Text,
		CreatedAt: timestampToTime(d.CreatedAt),
	}
}
