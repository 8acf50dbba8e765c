package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainfavorites "tradepost/internal/domain/favorites"
	domainlistings "tradepost/internal/domain/listings"
)

type FavoriteRepository struct {
	col *mongo.Collection
}

func NewFavoriteRepository(db *mongo.Database) *FavoriteRepository {
	return &FavoriteRepository{col: db.Collection("favorites")}
}

func favoriteID(userID string, listingID domainlistings.ListingID) string {
	return userID + "|" + string(listingID)
}

func (r *FavoriteRepository) Add(ctx context.Context, fav domainfavorites.Favorite) error {
	if fav.CreatedAt.IsZero() {
		fav.CreatedAt = time.Now().UTC()
	}
	doc := favoriteDocument{
		ID:        favoriteID(fav.UserID, fav.ListingID),
		UserID:    fav.UserID,
		ListingID: string(fav.ListingID),
		CreatedAt: fav.CreatedAt.UnixMilli(),
	}
	// upsert keeps the add idempotent
	opts := options.Update().SetUpsert(true)
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$setOnInsert": doc}, opts)
	return err
}

func (r *FavoriteRepository) Remove(ctx context.Context, userID string, listingID domainlistings.ListingID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": favoriteID(userID, listingID)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainfavorites.ErrNotFound
	}
	return nil
}

func (r *FavoriteRepository) ListByUser(ctx context.Context, userID string) ([]domainfavorites.Favorite, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make([]domainfavorites.Favorite, 0)
	for cursor.Next(ctx) {
		var doc favoriteDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, domainfavorites.Favorite{
			UserID:    doc.UserID,
			ListingID: domainlistings.ListingID(doc.ListingID),
			CreatedAt: timestampToTime(doc.CreatedAt),
		})
	}
	return out, cursor.Err()
}

func (r *FavoriteRepository) Exists(ctx context.Context, userID string, listingID domainlistings.ListingID) (bool, error) {
	count, err := r.col.CountDocuments(ctx, bson.M{"_id": favoriteID(userID, listingID)})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type favoriteDocument struct {
	ID        string `bson:"_id"`
	UserID    string `bson:"user_id"`
	ListingID string `bson:"listing_id"`
	CreatedAt int64  `bson:"created_at"`
}
