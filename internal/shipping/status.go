package shipping

import (
	"strings"

	"bookshop/internal/models"
)

var carrierStatuses = map[string]models.DeliveryStatus{
	"NEW":                           models.DeliveryPending,
	"AWB ASSIGNED":                  models.DeliveryPending,
	"PICKUP SCHEDULED":              models.DeliveryPending,
	"PICKUP GENERATED":              models.DeliveryPending,
	"PICKUP QUEUED":                 models.DeliveryPending,
	"OUT FOR PICKUP":                models.DeliveryPending,
	"PICKED UP":                     models.DeliveryPickedUp,
	"SHIPPED":                       models.DeliveryInTransit,
	"IN TRANSIT":                    models.DeliveryInTransit,
	"REACHED AT DESTINATION HUB":    models.DeliveryInTransit,
	"IN TRANSIT-AT DESTINATION HUB": models.DeliveryInTransit,
	"OUT FOR DELIVERY":              models.DeliveryOutForDelivery,
	"DELIVERED":                     models.DeliveryDelivered,
	"UNDELIVERED":                   models.DeliveryFailed,
	"FAILED":                        models.DeliveryFailed,
	"DELIVERY FAILED":               models.DeliveryFailed,
	"LOST":                          models.DeliveryFailed,
	"DAMAGED":                       models.DeliveryFailed,
	"RTO INITIATED":                 models.DeliveryReturned,
	"RTO IN TRANSIT":                models.DeliveryReturned,
	"RTO DELIVERED":                 models.DeliveryReturned,
	"RETURNED":                      models.DeliveryReturned,
}

// MapStatus translates a carrier shipment status into a delivery status.
// The second result is false for statuses outside the table; callers keep
// the stored status in that case.
func MapStatus(carrierStatus string) (models.DeliveryStatus, bool) {
	key := strings.ToUpper(strings.TrimSpace(carrierStatus))
	key = strings.ReplaceAll(key, "_", " ")
	key = strings.Join(strings.Fields(key), " ")
	s, ok := carrierStatuses[key]
	return s, ok
}
