// Package fulfillment books shipments with the carrier aggregator and keeps
// deliveries in step with carrier tracking.
//
// Booking is two carrier calls (create, then assign) with database writes
// after each. Neither the carrier nor the database sees them as one unit, so
// every order carries a ShipmentIntent recording which step comes next and
// what went wrong last. Steps are safe to repeat: create is skipped once the
// order holds carrier ids, assign once it holds an AWB.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bookshop/internal/events"
	"bookshop/internal/models"
	"bookshop/internal/orders"
	"bookshop/internal/redisx"
	"bookshop/internal/shipping"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrAlreadyShipped = errors.New("fulfillment: order already shipped")
	ErrNoShipment     = errors.New("fulfillment: order has no carrier shipment")
	ErrNotShippable   = errors.New("fulfillment: order is not ready to ship")
)

// EstimatedTransit is added to the assignment time for a new delivery's
// estimated date.
const EstimatedTransit = 5 * 24 * time.Hour

type Store interface {
	GetOrder(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	SetShipment(ctx context.Context, id primitive.ObjectID, carrierOrderID, shipmentID int64, weight float64) error
	SetAssignment(ctx context.Context, id primitive.ObjectID, awb, courier string) error
	SetOrderStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus, reason string) error
	GetDeliveryByOrder(ctx context.Context, orderID primitive.ObjectID) (*models.Delivery, error)
	UpsertDelivery(ctx context.Context, orderID primitive.ObjectID, awb, carrier string, estimate time.Time) (bool, error)
	UpdateDeliveryTracking(ctx context.Context, awb string, u models.TrackingUpdate) (*models.Delivery, error)
	GetIntent(ctx context.Context, orderID primitive.ObjectID) (*models.ShipmentIntent, error)
	SaveIntent(ctx context.Context, in *models.ShipmentIntent) error
	ListResumableIntents(ctx context.Context, limit int) ([]*models.ShipmentIntent, error)
}

type Carrier interface {
	Serviceability(ctx context.Context, pickup, delivery string, weightKg float64, cod bool) ([]shipping.Courier, error)
	CreateOrder(ctx context.Context, r shipping.CreateOrderRequest) (*shipping.CreatedOrder, error)
	AssignAWB(ctx context.Context, shipmentID int64, courierID int) (*shipping.Assignment, error)
	TrackAWB(ctx context.Context, awb string) (*shipping.Tracking, error)
}

type SettingsSource interface {
	Current() models.Settings
}

type Service struct {
	Store    Store
	Carrier  Carrier
	Locker   redisx.Locker
	Events   events.Publisher
	Settings SettingsSource
	InfoLog  *log.Logger
	ErrorLog *log.Logger

	// Attempts and Backoff bound the retries made by Resume. Request
	// handlers always make a single attempt.
	Attempts int
	Backoff  time.Duration
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) lock(ctx context.Context, orderID primitive.ObjectID) (func(), error) {
	return s.Locker.Acquire(ctx, fmt.Sprintf(redisx.KeyShipmentLock, orderID.Hex()), redisx.TTLShipmentLock)
}

// Couriers lists the couriers that can carry the order from the store's
// pickup pincode.
func (s *Service) Couriers(ctx context.Context, orderID primitive.ObjectID) ([]shipping.Courier, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	cfg := s.Settings.Current()
	if cfg.PickupPincode == "" {
		return nil, models.Invalid("pickupPincode", "is not configured in settings")
	}
	weight := shipping.ResolveWeight(o.TotalWeight, o.Items)
	return s.Carrier.Serviceability(ctx, cfg.PickupPincode, o.Shipping.Pincode, weight, o.Payment.Method == models.PaymentCOD)
}

func (s *Service) intentFor(ctx context.Context, orderID primitive.ObjectID) (*models.ShipmentIntent, error) {
	in, err := s.Store.GetIntent(ctx, orderID)
	if errors.Is(err, models.ErrNoRecord) {
		return &models.ShipmentIntent{
			OrderID:        orderID,
			IdempotencyKey: uuid.NewString(),
			Step:           models.StepCreate,
		}, nil
	}
	return in, err
}

func (s *Service) recordFailure(ctx context.Context, in *models.ShipmentIntent, cause error) {
	in.LastError = cause.Error()
	if err := s.Store.SaveIntent(ctx, in); err != nil {
		s.ErrorLog.Printf("fulfillment: save intent %s: %v", in.IdempotencyKey, err)
	}
}

// CreateShipment books the order with the carrier. A failed call leaves the
// order untouched and records the carrier's message on the intent.
func (s *Service) CreateShipment(ctx context.Context, orderID primitive.ObjectID) (*models.Order, error) {
	release, err := s.lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.createShipment(ctx, orderID)
}

func (s *Service) createShipment(ctx context.Context, orderID primitive.ObjectID) (*models.Order, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CarrierOrderID != 0 || o.ShipmentID != 0 {
		return nil, ErrAlreadyShipped
	}
	if o.Status != models.OrderConfirmed {
		return nil, fmt.Errorf("%w: order is %s", ErrNotShippable, o.Status)
	}

	in, err := s.intentFor(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	in.Step = models.StepCreate
	in.Attempts++

	cfg := s.Settings.Current()
	req := BuildCreateRequest(o, cfg, s.now())

	// A booking that reached the carrier but not the order is replayed from
	// the ids kept on the intent instead of booking twice.
	if in.ShipmentID == 0 {
		created, err := s.Carrier.CreateOrder(ctx, req)
		if err != nil {
			s.recordFailure(ctx, in, err)
			return nil, fmt.Errorf("fulfillment: create shipment for %s: %w", o.OrderNumber, err)
		}
		in.CarrierOrderID, in.ShipmentID = created.OrderID, created.ShipmentID
		if err := s.Store.SaveIntent(ctx, in); err != nil {
			s.ErrorLog.Printf("fulfillment: save intent %s: %v", in.IdempotencyKey, err)
		}
	}

	if err := s.Store.SetShipment(ctx, o.ID, in.CarrierOrderID, in.ShipmentID, req.Weight); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return nil, ErrAlreadyShipped
		}
		s.recordFailure(ctx, in, err)
		return nil, fmt.Errorf("fulfillment: store shipment for %s: %w", o.OrderNumber, err)
	}
	o.CarrierOrderID, o.ShipmentID, o.TotalWeight = in.CarrierOrderID, in.ShipmentID, req.Weight

	in.Step = models.StepAssign
	in.Attempts = 0
	in.LastError = ""
	if err := s.Store.SaveIntent(ctx, in); err != nil {
		s.ErrorLog.Printf("fulfillment: save intent %s: %v", in.IdempotencyKey, err)
	}

	s.publish(ctx, events.ShipmentCreated, o.ID.Hex(), events.ShipmentPayload{
		OrderID:        o.ID.Hex(),
		CarrierOrderID: in.CarrierOrderID,
		ShipmentID:     in.ShipmentID,
	})
	s.InfoLog.Printf("order %s booked: carrier order %d shipment %d", o.OrderNumber, in.CarrierOrderID, in.ShipmentID)
	return o, nil
}

// BuildCreateRequest turns an order into the carrier's create payload.
func BuildCreateRequest(o *models.Order, cfg models.Settings, now time.Time) shipping.CreateOrderRequest {
	first, last := shipping.SplitName(o.Shipping.FullName)
	method := "Prepaid"
	if o.Payment.Method == models.PaymentCOD {
		method = "COD"
	}
	country := o.Shipping.Country
	if country == "" {
		country = "India"
	}

	lines := make([]shipping.OrderLine, len(o.Items))
	for i, it := range o.Items {
		lines[i] = shipping.OrderLine{
			Name:         it.Name,
			SKU:          it.SKU,
			Units:        it.Quantity,
			SellingPrice: it.Price,
			Tax:          it.Tax.CGST + it.Tax.SGST,
		}
	}

	return shipping.CreateOrderRequest{
		OrderID:           o.OrderNumber,
		OrderDate:         now.Format("2006-01-02 15:04"),
		PickupLocation:    cfg.PickupLocation,
		BillingFirstName:  first,
		BillingLastName:   last,
		BillingAddress:    o.Shipping.Line1,
		BillingAddress2:   o.Shipping.Line2,
		BillingCity:       o.Shipping.City,
		BillingPincode:    o.Shipping.Pincode,
		BillingState:      o.Shipping.State,
		BillingCountry:    country,
		BillingEmail:      o.Shipping.Email,
		BillingPhone:      o.Shipping.Phone,
		ShippingIsBilling: true,
		Items:             lines,
		PaymentMethod:     method,
		ShippingCharges:   o.Totals.Shipping,
		SubTotal:          o.Totals.Total,
		Length:            shipping.DefaultLength,
		Breadth:           shipping.DefaultBreadth,
		Height:            shipping.DefaultHeight,
		Weight:            shipping.ResolveWeight(o.TotalWeight, o.Items),
	}
}

// AssignCourier gets an AWB for the order's shipment. courierID 0 lets the
// carrier choose.
func (s *Service) AssignCourier(ctx context.Context, orderID primitive.ObjectID, courierID int) (*models.Order, *models.Delivery, error) {
	release, err := s.lock(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	defer release()
	return s.assignCourier(ctx, orderID, courierID)
}

func (s *Service) assignCourier(ctx context.Context, orderID primitive.ObjectID, courierID int) (*models.Order, *models.Delivery, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if o.ShipmentID == 0 {
		return nil, nil, ErrNoShipment
	}

	in, err := s.intentFor(ctx, o.ID)
	if err != nil {
		return nil, nil, err
	}

	if o.AWB == "" {
		if !orders.CanTransition(o.Status, models.OrderShipped) {
			return nil, nil, fmt.Errorf("%w: order is %s", ErrNotShippable, o.Status)
		}
		in.Step = models.StepAssign
		in.CourierID = courierID
		in.Attempts++

		a, err := s.Carrier.AssignAWB(ctx, o.ShipmentID, courierID)
		if err != nil {
			s.recordFailure(ctx, in, err)
			return nil, nil, fmt.Errorf("fulfillment: assign courier for %s: %w", o.OrderNumber, err)
		}
		if err := s.Store.SetAssignment(ctx, o.ID, a.AWB, a.CourierName); err != nil {
			s.recordFailure(ctx, in, err)
			return nil, nil, fmt.Errorf("fulfillment: store assignment for %s: %w", o.OrderNumber, err)
		}
		o.AWB, o.CourierName, o.Status = a.AWB, a.CourierName, models.OrderShipped
		s.publish(ctx, events.ShipmentAssigned, o.ID.Hex(), events.ShipmentPayload{
			OrderID:     o.ID.Hex(),
			ShipmentID:  o.ShipmentID,
			AWB:         a.AWB,
			CourierName: a.CourierName,
		})
	}

	if _, err := s.Store.UpsertDelivery(ctx, o.ID, o.AWB, o.CourierName, s.now().Add(EstimatedTransit)); err != nil {
		s.recordFailure(ctx, in, err)
		return nil, nil, fmt.Errorf("fulfillment: upsert delivery for %s: %w", o.OrderNumber, err)
	}

	in.Step = models.StepDone
	in.LastError = ""
	if err := s.Store.SaveIntent(ctx, in); err != nil {
		s.ErrorLog.Printf("fulfillment: save intent %s: %v", in.IdempotencyKey, err)
	}

	d, err := s.Store.GetDeliveryByOrder(ctx, o.ID)
	if err != nil {
		return nil, nil, err
	}
	s.InfoLog.Printf("order %s assigned to %s (awb %s)", o.OrderNumber, o.CourierName, o.AWB)
	return o, d, nil
}

// SyncStatus pulls tracking for awb and applies it to the delivery. A
// carrier status outside the known vocabulary keeps the stored status but
// still records location and notes.
func (s *Service) SyncStatus(ctx context.Context, awb string) (*models.Delivery, error) {
	tr, err := s.Carrier.TrackAWB(ctx, awb)
	if err != nil {
		return nil, fmt.Errorf("fulfillment: track %s: %w", awb, err)
	}

	u := models.TrackingUpdate{LastLocation: tr.Location, Notes: tr.Activity}
	status, known := shipping.MapStatus(tr.CurrentStatus)
	if known {
		u.Status = &status
		if status == models.DeliveryDelivered {
			at := s.now()
			u.DeliveredAt = &at
		}
	} else if tr.CurrentStatus != "" {
		s.InfoLog.Printf("awb %s: unmapped carrier status %q", awb, tr.CurrentStatus)
	}

	d, err := s.Store.UpdateDeliveryTracking(ctx, awb, u)
	if err != nil {
		return nil, err
	}

	if known && status == models.DeliveryDelivered {
		err := s.Store.SetOrderStatus(ctx, d.OrderID, models.OrderShipped, models.OrderDelivered, "")
		if err != nil && !errors.Is(err, models.ErrNoRecord) {
			s.ErrorLog.Printf("fulfillment: mark order %s delivered: %v", d.OrderID.Hex(), err)
		}
	}
	if known {
		s.publish(ctx, events.DeliveryUpdated, d.OrderID.Hex(), events.DeliveryPayload{
			OrderID:        d.OrderID.Hex(),
			TrackingNumber: awb,
			Status:         string(d.Status),
			Location:       d.LastLocation,
		})
	}
	return d, nil
}

func (s *Service) publish(ctx context.Context, eventType, orderID string, p any) {
	if err := s.Events.Publish(ctx, eventType, orderID, p); err != nil {
		s.ErrorLog.Printf("fulfillment: publish %s for %s: %v", eventType, orderID, err)
	}
}
