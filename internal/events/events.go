// Package events publishes domain events about orders and deliveries.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	OrderPlaced      = "order.placed"
	OrderConfirmed   = "order.confirmed"
	OrderCancelled   = "order.cancelled"
	ShipmentCreated  = "shipment.created"
	ShipmentAssigned = "shipment.assigned"
	DeliveryUpdated  = "delivery.updated"
)

const Version = 1

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload for eventType. correlationID is the order id and
// doubles as the partition key, so events of one order stay in order.
func NewEnvelope(producer, eventType, correlationID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  Version,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

type Publisher interface {
	Publish(ctx context.Context, eventType, correlationID string, payload any) error
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, string, any) error { return nil }

type OrderPayload struct {
	OrderID     string  `json:"order_id"`
	OrderNumber string  `json:"order_number"`
	UserID      string  `json:"user_id,omitempty"`
	Status      string  `json:"status"`
	Method      string  `json:"payment_method,omitempty"`
	Total       float64 `json:"total"`
	Reason      string  `json:"reason,omitempty"`
}

type ShipmentPayload struct {
	OrderID        string `json:"order_id"`
	CarrierOrderID int64  `json:"carrier_order_id,omitempty"`
	ShipmentID     int64  `json:"shipment_id,omitempty"`
	AWB            string `json:"awb,omitempty"`
	CourierName    string `json:"courier_name,omitempty"`
}

type DeliveryPayload struct {
	OrderID        string `json:"order_id"`
	TrackingNumber string `json:"tracking_number"`
	Status         string `json:"status"`
	Location       string `json:"location,omitempty"`
}
