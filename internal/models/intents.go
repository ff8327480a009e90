package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (m *MongoDB) GetIntent(ctx context.Context, orderID primitive.ObjectID) (*ShipmentIntent, error) {
	var in ShipmentIntent
	if err := m.Intents.FindOne(ctx, bson.M{"orderId": orderID}).Decode(&in); err != nil {
		return nil, translate(err)
	}
	return &in, nil
}

// SaveIntent upserts the intent keyed by its order.
func (m *MongoDB) SaveIntent(ctx context.Context, in *ShipmentIntent) error {
	now := time.Now().UTC()
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now
	}
	in.UpdatedAt = now
	update := bson.M{
		"$set": bson.M{
			"idempotencyKey": in.IdempotencyKey,
			"step":           in.Step,
			"carrierOrderId": in.CarrierOrderID,
			"shipmentId":     in.ShipmentID,
			"courierId":      in.CourierID,
			"attempts":       in.Attempts,
			"lastError":      in.LastError,
			"updatedAt":      in.UpdatedAt,
		},
		"$setOnInsert": bson.M{"createdAt": in.CreatedAt},
	}
	_, err := m.Intents.UpdateOne(ctx, bson.M{"orderId": in.OrderID}, update, options.Update().SetUpsert(true))
	return err
}

// Resumable reports whether a background pass should pick the intent up:
// every create step, and an assign step only once an attempt has failed.
// Untouched assign steps wait for the back office to choose a courier.
func (in *ShipmentIntent) Resumable() bool {
	switch in.Step {
	case StepCreate:
		return true
	case StepAssign:
		return in.LastError != ""
	}
	return false
}

func resumableIntentFilter() bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"step": StepCreate},
		bson.M{"step": StepAssign, "lastError": bson.M{"$exists": true, "$ne": ""}},
	}}
}

// ListResumableIntents returns up to limit intents that Resumable would
// accept, least recently touched first.
func (m *MongoDB) ListResumableIntents(ctx context.Context, limit int) ([]*ShipmentIntent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: 1}}).SetLimit(int64(limit))
	return findAll[*ShipmentIntent](ctx, m.Intents, resumableIntentFilter(), opts)
}
