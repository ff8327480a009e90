package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TrackingUpdate carries what a status sync learned. A nil Status keeps the
// stored status.
type TrackingUpdate struct {
	Status       *DeliveryStatus
	LastLocation string
	Notes        string
	DeliveredAt  *time.Time
}

func (m *MongoDB) GetDeliveryByOrder(ctx context.Context, orderID primitive.ObjectID) (*Delivery, error) {
	var d Delivery
	if err := m.Deliveries.FindOne(ctx, bson.M{"orderId": orderID}).Decode(&d); err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (m *MongoDB) GetDeliveryByTracking(ctx context.Context, awb string) (*Delivery, error) {
	var d Delivery
	if err := m.Deliveries.FindOne(ctx, bson.M{"trackingNumber": awb}).Decode(&d); err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

// UpsertDelivery creates the delivery for orderID with the given estimate,
// or refreshes the tracking fields of the existing one. It reports whether a
// new record was created.
func (m *MongoDB) UpsertDelivery(ctx context.Context, orderID primitive.ObjectID, awb, carrier string, estimate time.Time) (bool, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"trackingNumber": awb,
			"carrier":        carrier,
			"updatedAt":      now,
		},
		"$setOnInsert": bson.M{
			"orderId":           orderID,
			"status":            DeliveryPending,
			"estimatedDelivery": estimate,
			"createdAt":         now,
		},
	}
	res, err := m.Deliveries.UpdateOne(ctx, bson.M{"orderId": orderID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, translate(err)
	}
	return res.UpsertedCount == 1, nil
}

func (m *MongoDB) UpdateDeliveryTracking(ctx context.Context, awb string, u TrackingUpdate) (*Delivery, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	if u.LastLocation != "" {
		set["lastLocation"] = u.LastLocation
	}
	if u.Notes != "" {
		set["notes"] = u.Notes
	}
	if u.DeliveredAt != nil {
		set["actualDelivery"] = *u.DeliveredAt
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var d Delivery
	err := m.Deliveries.FindOneAndUpdate(ctx, bson.M{"trackingNumber": awb}, bson.M{"$set": set}, opts).Decode(&d)
	if err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (m *MongoDB) ListDeliveries(ctx context.Context, status DeliveryStatus, page, limit int) (*Page[*Delivery], error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	sort := bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}}
	return paginate[*Delivery](ctx, m.Deliveries, filter, sort, page, limit)
}

// UpdateDelivery applies a manual edit from the back office.
func (m *MongoDB) UpdateDelivery(ctx context.Context, id primitive.ObjectID, u TrackingUpdate, estimate *time.Time) (*Delivery, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	if u.LastLocation != "" {
		set["lastLocation"] = u.LastLocation
	}
	if u.Notes != "" {
		set["notes"] = u.Notes
	}
	if u.DeliveredAt != nil {
		set["actualDelivery"] = *u.DeliveredAt
	}
	if estimate != nil {
		set["estimatedDelivery"] = *estimate
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var d Delivery
	if err := m.Deliveries.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&d); err != nil {
		return nil, translate(err)
	}
	return &d, nil
}
