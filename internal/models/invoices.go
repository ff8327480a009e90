package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InsertInvoice stores the invoice of an order. The unique index on orderId
// turns a second attempt into ErrDuplicate.
func (m *MongoDB) InsertInvoice(ctx context.Context, inv *Invoice) error {
	inv.ID = primitive.NewObjectID()
	if inv.IssuedAt.IsZero() {
		inv.IssuedAt = time.Now().UTC()
	}
	_, err := m.Invoices.InsertOne(ctx, inv)
	return translate(err)
}

func (m *MongoDB) GetInvoiceByOrder(ctx context.Context, orderID primitive.ObjectID) (*Invoice, error) {
	var inv Invoice
	if err := m.Invoices.FindOne(ctx, bson.M{"orderId": orderID}).Decode(&inv); err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (m *MongoDB) SetInvoicePaymentStatus(ctx context.Context, orderID primitive.ObjectID, status PaymentStatus) error {
	_, err := m.Invoices.UpdateOne(ctx, bson.M{"orderId": orderID}, bson.M{"$set": bson.M{"paymentStatus": status}})
	return err
}
