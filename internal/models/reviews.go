package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (m *MongoDB) InsertReview(ctx context.Context, r *Review) error {
	r.ID = primitive.NewObjectID()
	r.CreatedAt = time.Now().UTC()
	_, err := m.Reviews.InsertOne(ctx, r)
	return err
}

func (m *MongoDB) ListReviews(ctx context.Context, productID primitive.ObjectID, page, limit int) (*Page[*Review], error) {
	sort := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	return paginate[*Review](ctx, m.Reviews, bson.M{"productId": productID}, sort, page, limit)
}

func (m *MongoDB) ListAllReviews(ctx context.Context, page, limit int) (*Page[*Review], error) {
	sort := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	return paginate[*Review](ctx, m.Reviews, bson.M{}, sort, page, limit)
}

func (m *MongoDB) DeleteReview(ctx context.Context, id primitive.ObjectID) error {
	res, err := m.Reviews.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNoRecord
	}
	return nil
}

func (m *MongoDB) ProductRating(ctx context.Context, productID primitive.ObjectID) (Rating, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"productId": productID}},
		{"$group": bson.M{"_id": nil, "average": bson.M{"$avg": "$rating"}, "count": bson.M{"$sum": 1}}},
	}
	cur, err := m.Reviews.Aggregate(ctx, pipeline)
	if err != nil {
		return Rating{}, err
	}
	defer cur.Close(ctx)

	var results []Rating
	if err := cur.All(ctx, &results); err != nil || len(results) == 0 {
		return Rating{}, err
	}
	return results[0], nil
}
