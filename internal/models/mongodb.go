package models

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoDB struct {
	client *mongo.Client

	Products   *mongo.Collection
	Reviews    *mongo.Collection
	Users      *mongo.Collection
	Orders     *mongo.Collection
	Categories *mongo.Collection
	Deliveries *mongo.Collection
	Invoices   *mongo.Collection
	Contacts   *mongo.Collection
	Settings   *mongo.Collection
	Intents    *mongo.Collection
}

// Connect dials uri, pings the primary and binds every collection of dbName.
func Connect(ctx context.Context, uri, dbName string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return New(client, dbName), nil
}

func New(client *mongo.Client, dbName string) *MongoDB {
	db := client.Database(dbName)
	return &MongoDB{
		client:     client,
		Products:   db.Collection("products"),
		Reviews:    db.Collection("reviews"),
		Users:      db.Collection("users"),
		Orders:     db.Collection("orders"),
		Categories: db.Collection("categories"),
		Deliveries: db.Collection("deliveries"),
		Invoices:   db.Collection("invoices"),
		Contacts:   db.Collection("contacts"),
		Settings:   db.Collection("settings"),
		Intents:    db.Collection("shipment_intents"),
	}
}

func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the stores rely on. The unique ones back
// the one-per-order invariants for deliveries, invoices and shipment intents.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{m.Users, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique}},
		{m.Products, mongo.IndexModel{Keys: bson.D{{Key: "slug", Value: 1}}, Options: unique}},
		{m.Products, mongo.IndexModel{Keys: bson.D{{Key: "sku", Value: 1}}}},
		{m.Products, mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "categoryId", Value: 1}}}},
		{m.Categories, mongo.IndexModel{Keys: bson.D{{Key: "slug", Value: 1}}, Options: unique}},
		{m.Reviews, mongo.IndexModel{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "createdAt", Value: -1}}}},
		{m.Orders, mongo.IndexModel{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}}},
		{m.Orders, mongo.IndexModel{Keys: bson.D{{Key: "payment.gatewayOrderId", Value: 1}}}},
		{m.Deliveries, mongo.IndexModel{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: unique}},
		{m.Deliveries, mongo.IndexModel{Keys: bson.D{{Key: "trackingNumber", Value: 1}}}},
		{m.Invoices, mongo.IndexModel{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: unique}},
		{m.Intents, mongo.IndexModel{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: unique}},
		{m.Intents, mongo.IndexModel{Keys: bson.D{{Key: "step", Value: 1}, {Key: "updatedAt", Value: 1}}}},
		{m.Contacts, mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}}},
	}
	for _, s := range indexes {
		if _, err := s.coll.Indexes().CreateOne(ctx, s.model); err != nil {
			return fmt.Errorf("index on %s: %w", s.coll.Name(), err)
		}
	}
	return nil
}
