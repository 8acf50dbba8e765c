package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainjobs "tradepost/internal/domain/jobs"
)

type JobRepository struct {
	col *mongo.Collection
}

func NewJobRepository(db *mongo.Database) *JobRepository {
	return &JobRepository{col: db.Collection("jobs")}
}

func (r *JobRepository) ByID(ctx context.Context, id domainjobs.JobID) (*domainjobs.Job, error) {
	var doc jobDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainjobs.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *JobRepository) Save(ctx context.Context, job *domainjobs.Job) error {
	doc := newJobDocument(job)
	opts := options.Replace().SetUpsert(true)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

func (r *JobRepository) Delete(ctx context.Context, id domainjobs.JobID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainjobs.ErrNotFound
	}
	return nil
}

func (r *JobRepository) List(ctx context.Context, filter domainjobs.Filter) ([]*domainjobs.Job, string, error) {
	query := bson.M{"open": true}
	if filter.City != "" {
		query["city"] = filter.City
	}
	if filter.Remote != nil {
		query["remote"] = *filter.Remote
	}
	if filter.Query != "" {
		pattern := escapeRegex(filter.Query)
		query["$or"] = bson.A{
			bson.M{"title": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"company": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"description": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}
	if filter.Cursor != "" {
		var anchor jobDocument
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

	page := make([]*domainjobs.Job, 0, limit)
	for cursor.Next(ctx) {
		var doc jobDocument
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

type jobDocument struct {
	ID             string `bson:"_id"`
	PosterID       string `bson:"poster_id"`
	Company        string `bson:"company"`
	Title          string `bson:"title"`
	Description    string `bson:"description,omitempty"`
	City           string `bson:"city,omitempty"`
	Remote         bool   `bson:"remote"`
	SalaryMinCents int64  `bson:"salary_min_cents,omitempty"`
	SalaryMaxCents int64  `bson:"salary_max_cents,omitempty"`
	Open           bool   `bson:"open"`
	CreatedAt      int64  `bson:"created_at"`
	UpdatedAt      int64  `bson:"updated_at"`
}

func newJobDocument(j *domainjobs.Job) jobDocument {
	return jobDocument{
		ID:             string(j.ID),
		PosterID:       j.PosterID,
		Company:        j.Company,
		Title:          j.Title,
		Description:    j.Description,
		City:           j.City,
		Remote:         j.Remote,
		SalaryMinCents: j.SalaryMinCents,
		SalaryMaxCents: j.SalaryMaxCents,
		Open:           j.Open,
		CreatedAt:      j.CreatedAt.UnixMilli(),
		UpdatedAt:      j.UpdatedAt.UnixMilli(),
	}
}

func (d jobDocument) toDomain() *domainjobs.Job {
	return &domainjobs.Job{
		ID:             domainjobs.JobID(d.ID),
		PosterID:       d.PosterID,
		Company:        d.Company,
		Title:          d.Title,
		Description:    d.Description,
		City:           d.City,
		Remote:         d.Remote,
		SalaryMinCents: d.SalaryMinCents,
		SalaryMaxCents: d.SalaryMaxCents,
		Open:           d.Open,
		CreatedAt:      timestampToTime(d.CreatedAt),
		UpdatedAt:      timestampToTime(d.UpdatedAt),
	}
}
