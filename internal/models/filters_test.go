package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestProductFilterBSON(t *testing.T) {
	cat := primitive.NewObjectID()
	f := ProductFilter{
		Search:     "c++ (2nd",
		CategoryID: &cat,
		Status:     ProductActive,
		MinPrice:   100,
		InStock:    true,
	}

	got := f.BSON()
	assert.Equal(t, cat, got["categoryId"])
	assert.Equal(t, ProductActive, got["status"])
	assert.Equal(t, bson.M{"$gte": 100.0}, got["price"])
	assert.Equal(t, bson.M{"$gt": 0}, got["stock"])

	or := got["$or"].(bson.A)
	assert.Equal(t, bson.M{"$regex": `c\+\+ \(2nd`, "$options": "i"}, or[0].(bson.M)["name"])
}

func TestProductFilterEmpty(t *testing.T) {
	assert.Empty(t, ProductFilter{}.BSON())
}

func TestProductFilterSort(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}, ProductFilter{Sort: "price_asc"}.SortBSON())
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}, ProductFilter{Sort: "bogus"}.SortBSON())
}

func TestOrderFilterBSON(t *testing.T) {
	user := primitive.NewObjectID()
	got := OrderFilter{UserID: &user, Status: OrderShipped, PaymentStatus: PaymentPaid}.BSON()
	assert.Equal(t, bson.M{
		"userId":         user,
		"orderStatus":    OrderShipped,
		"payment.status": PaymentPaid,
	}, got)
}

func TestParseID(t *testing.T) {
	id := primitive.NewObjectID()
	got, err := ParseID(id.Hex())
	assert.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseID("not-an-id")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestShipmentIntentResumable(t *testing.T) {
	tests := []struct {
		in   ShipmentIntent
		want bool
	}{
		{ShipmentIntent{Step: StepCreate}, true},
		{ShipmentIntent{Step: StepCreate, LastError: "timeout"}, true},
		{ShipmentIntent{Step: StepAssign}, false},
		{ShipmentIntent{Step: StepAssign, LastError: "timeout"}, true},
		{ShipmentIntent{Step: StepDone, LastError: "order cancelled or removed"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.Resumable(), "%s/%q", tt.in.Step, tt.in.LastError)
	}
}

func TestResumableIntentFilter(t *testing.T) {
	or := resumableIntentFilter()["$or"].(bson.A)
	assert.Len(t, or, 2)
	assert.Equal(t, bson.M{"step": StepCreate}, or[0])
	assert.Equal(t, bson.M{"step": StepAssign, "lastError": bson.M{"$exists": true, "$ne": ""}}, or[1])
}
