package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderFilter struct {
	UserID        *primitive.ObjectID
	Status        OrderStatus
	PaymentStatus PaymentStatus
	OrderNumber   string
}

func (f OrderFilter) BSON() bson.M {
	filter := bson.M{}
	if f.UserID != nil {
		filter["userId"] = *f.UserID
	}
	if f.Status != "" {
		filter["orderStatus"] = f.Status
	}
	if f.PaymentStatus != "" {
		filter["payment.status"] = f.PaymentStatus
	}
	if f.OrderNumber != "" {
		filter["orderNumber"] = f.OrderNumber
	}
	return filter
}

func (m *MongoDB) InsertOrder(ctx context.Context, o *Order) error {
	now := time.Now().UTC()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	o.CreatedAt, o.UpdatedAt = now, now
	_, err := m.Orders.InsertOne(ctx, o)
	return translate(err)
}

func (m *MongoDB) GetOrder(ctx context.Context, id primitive.ObjectID) (*Order, error) {
	var o Order
	if err := m.Orders.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (m *MongoDB) GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*Order, error) {
	var o Order
	if err := m.Orders.FindOne(ctx, bson.M{"payment.gatewayOrderId": gatewayOrderID}).Decode(&o); err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (m *MongoDB) ListOrders(ctx context.Context, f OrderFilter, page, limit int) (*Page[*Order], error) {
	sort := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	return paginate[*Order](ctx, m.Orders, f.BSON(), sort, page, limit)
}

func (m *MongoDB) SetGatewayOrderID(ctx context.Context, id primitive.ObjectID, gatewayOrderID string) error {
	update := bson.M{"$set": bson.M{"payment.gatewayOrderId": gatewayOrderID, "updatedAt": time.Now().UTC()}}
	_, err := m.Orders.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// SetOrderStatus moves an order from one status to another. The update only
// applies while the stored status still equals from, so a concurrent change
// surfaces as ErrNoRecord instead of being overwritten.
func (m *MongoDB) SetOrderStatus(ctx context.Context, id primitive.ObjectID, from, to OrderStatus, reason string) error {
	set := bson.M{"orderStatus": to, "updatedAt": time.Now().UTC()}
	if reason != "" {
		set["cancelReason"] = reason
	}
	res, err := m.Orders.UpdateOne(ctx, bson.M{"_id": id, "orderStatus": from}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoRecord
	}
	return nil
}

// MarkPaid records a verified payment and confirms a pending order.
func (m *MongoDB) MarkPaid(ctx context.Context, id primitive.ObjectID, paymentID string) error {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"payment.status":           PaymentPaid,
		"payment.gatewayPaymentId": paymentID,
		"payment.paidAt":           now,
		"orderStatus":              OrderConfirmed,
		"updatedAt":                now,
	}}
	res, err := m.Orders.UpdateOne(ctx, bson.M{"_id": id, "orderStatus": OrderPending}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoRecord
	}
	return nil
}

func (m *MongoDB) MarkPaymentFailed(ctx context.Context, id primitive.ObjectID, paymentID string) error {
	update := bson.M{"$set": bson.M{
		"payment.status":           PaymentFailed,
		"payment.gatewayPaymentId": paymentID,
		"updatedAt":                time.Now().UTC(),
	}}
	_, err := m.Orders.UpdateOne(ctx, bson.M{"_id": id, "payment.status": PaymentPending}, update)
	return err
}

// SetShipment stores the carrier ids. It refuses to overwrite an existing
// shipment id and reports ErrDuplicate in that case.
func (m *MongoDB) SetShipment(ctx context.Context, id primitive.ObjectID, carrierOrderID, shipmentID int64, weight float64) error {
	filter := bson.M{"_id": id, "shipmentId": bson.M{"$in": bson.A{nil, 0}}}
	update := bson.M{"$set": bson.M{
		"carrierOrderId": carrierOrderID,
		"shipmentId":     shipmentID,
		"totalWeight":    weight,
		"updatedAt":      time.Now().UTC(),
	}}
	res, err := m.Orders.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrDuplicate
	}
	return nil
}

// SetAssignment records the booked courier and marks the order shipped.
func (m *MongoDB) SetAssignment(ctx context.Context, id primitive.ObjectID, awb, courier string) error {
	update := bson.M{"$set": bson.M{
		"awb":         awb,
		"courierName": courier,
		"orderStatus": OrderShipped,
		"updatedAt":   time.Now().UTC(),
	}}
	res, err := m.Orders.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoRecord
	}
	return nil
}

func (m *MongoDB) TotalRevenue(ctx context.Context) (float64, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"payment.status": PaymentPaid, "orderStatus": bson.M{"$ne": OrderCancelled}}},
		{"$group": bson.M{"_id": nil, "total": bson.M{"$sum": "$totals.total"}}},
	}
	cur, err := m.Orders.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)

	var results []bson.M
	if err = cur.All(ctx, &results); err != nil || len(results) == 0 {
		return 0, err
	}
	switch v := results[0]["total"].(type) {
	case float64:
		return v, nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, nil
	}
}

func (m *MongoDB) OrderCountsByStatus(ctx context.Context) (map[OrderStatus]int64, error) {
	pipeline := []bson.M{
		{"$group": bson.M{"_id": "$orderStatus", "count": bson.M{"$sum": 1}}},
	}
	cur, err := m.Orders.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Status OrderStatus `bson:"_id"`
		Count  int64       `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[OrderStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}
