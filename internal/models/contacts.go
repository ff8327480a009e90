package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (m *MongoDB) InsertContact(ctx context.Context, c *ContactMessage) error {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.Status = ContactNew
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := m.Contacts.InsertOne(ctx, c)
	return err
}

func (m *MongoDB) ListContacts(ctx context.Context, status ContactStatus, page, limit int) (*Page[*ContactMessage], error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	sort := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	return paginate[*ContactMessage](ctx, m.Contacts, filter, sort, page, limit)
}

func (m *MongoDB) SetContactStatus(ctx context.Context, id primitive.ObjectID, status ContactStatus) error {
	update := bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}}
	res, err := m.Contacts.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoRecord
	}
	return nil
}
