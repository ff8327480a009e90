package orders

import (
	"errors"

	"bookshop/internal/models"
)

var ErrInvalidTransition = errors.New("orders: invalid status transition")

// Cancellation is allowed until the parcel leaves the warehouse.
var validNext = map[models.OrderStatus]map[models.OrderStatus]bool{
	models.OrderPending:   {models.OrderConfirmed: true, models.OrderCancelled: true},
	models.OrderConfirmed: {models.OrderShipped: true, models.OrderCancelled: true},
	models.OrderShipped:   {models.OrderDelivered: true},
	models.OrderDelivered: {},
	models.OrderCancelled: {},
}

func CanTransition(from, to models.OrderStatus) bool {
	return validNext[from][to]
}

func ValidStatus(s models.OrderStatus) bool {
	_, ok := validNext[s]
	return ok
}
