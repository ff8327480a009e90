package fulfillment

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"sort"
	"testing"
	"time"

	"bookshop/internal/events"
	"bookshop/internal/models"
	"bookshop/internal/redisx"
	"bookshop/internal/shipping"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memStore struct {
	orders     map[primitive.ObjectID]*models.Order
	deliveries map[primitive.ObjectID]*models.Delivery
	intents    map[primitive.ObjectID]*models.ShipmentIntent
	writes     int
	shipErr    error
	clock      time.Time
}

func newMemStore(orders ...*models.Order) *memStore {
	m := &memStore{
		orders:     map[primitive.ObjectID]*models.Order{},
		deliveries: map[primitive.ObjectID]*models.Delivery{},
		intents:    map[primitive.ObjectID]*models.ShipmentIntent{},
		clock:      fixedNow,
	}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *memStore) GetOrder(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, models.ErrNoRecord
	}
	c := *o
	return &c, nil
}

func (m *memStore) SetShipment(ctx context.Context, id primitive.ObjectID, carrierOrderID, shipmentID int64, weight float64) error {
	if m.shipErr != nil {
		return m.shipErr
	}
	o := m.orders[id]
	if o.ShipmentID != 0 {
		return models.ErrDuplicate
	}
	m.writes++
	o.CarrierOrderID, o.ShipmentID, o.TotalWeight = carrierOrderID, shipmentID, weight
	return nil
}

func (m *memStore) SetAssignment(ctx context.Context, id primitive.ObjectID, awb, courier string) error {
	m.writes++
	o := m.orders[id]
	o.AWB, o.CourierName, o.Status = awb, courier, models.OrderShipped
	return nil
}

func (m *memStore) SetOrderStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus, reason string) error {
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return models.ErrNoRecord
	}
	m.writes++
	o.Status = to
	return nil
}

func (m *memStore) GetDeliveryByOrder(ctx context.Context, orderID primitive.ObjectID) (*models.Delivery, error) {
	d, ok := m.deliveries[orderID]
	if !ok {
		return nil, models.ErrNoRecord
	}
	c := *d
	return &c, nil
}

func (m *memStore) UpsertDelivery(ctx context.Context, orderID primitive.ObjectID, awb, carrier string, estimate time.Time) (bool, error) {
	if d, ok := m.deliveries[orderID]; ok {
		d.TrackingNumber, d.Carrier = awb, carrier
		return false, nil
	}
	m.deliveries[orderID] = &models.Delivery{
		ID: primitive.NewObjectID(), OrderID: orderID, TrackingNumber: awb, Carrier: carrier,
		Status: models.DeliveryPending, EstimatedDelivery: &estimate,
	}
	return true, nil
}

func (m *memStore) UpdateDeliveryTracking(ctx context.Context, awb string, u models.TrackingUpdate) (*models.Delivery, error) {
	for _, d := range m.deliveries {
		if d.TrackingNumber != awb {
			continue
		}
		if u.Status != nil {
			d.Status = *u.Status
		}
		if u.LastLocation != "" {
			d.LastLocation = u.LastLocation
		}
		if u.Notes != "" {
			d.Notes = u.Notes
		}
		if u.DeliveredAt != nil {
			d.ActualDelivery = u.DeliveredAt
		}
		c := *d
		return &c, nil
	}
	return nil, models.ErrNoRecord
}

func (m *memStore) GetIntent(ctx context.Context, orderID primitive.ObjectID) (*models.ShipmentIntent, error) {
	in, ok := m.intents[orderID]
	if !ok {
		return nil, models.ErrNoRecord
	}
	c := *in
	return &c, nil
}

func (m *memStore) SaveIntent(ctx context.Context, in *models.ShipmentIntent) error {
	m.clock = m.clock.Add(time.Second)
	in.UpdatedAt = m.clock
	c := *in
	m.intents[in.OrderID] = &c
	return nil
}

// ListResumableIntents applies the same filter, order and limit as the
// Mongo store.
func (m *memStore) ListResumableIntents(ctx context.Context, limit int) ([]*models.ShipmentIntent, error) {
	var out []*models.ShipmentIntent
	for _, in := range m.intents {
		if in.Resumable() {
			c := *in
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].OrderID.Hex() < out[j].OrderID.Hex()
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeCarrier struct {
	createCalls int
	createErrs  []error
	lastCreate  shipping.CreateOrderRequest
	assignCalls int
	assignErr   error
	tracking    *shipping.Tracking
}

func (c *fakeCarrier) Serviceability(ctx context.Context, pickup, delivery string, weightKg float64, cod bool) ([]shipping.Courier, error) {
	if delivery == "000000" {
		return nil, shipping.ErrNotServiceable
	}
	return []shipping.Courier{{ID: 7, Name: "Bluedart", Rate: 60}}, nil
}

func (c *fakeCarrier) CreateOrder(ctx context.Context, r shipping.CreateOrderRequest) (*shipping.CreatedOrder, error) {
	c.createCalls++
	c.lastCreate = r
	if len(c.createErrs) > 0 {
		err := c.createErrs[0]
		c.createErrs = c.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &shipping.CreatedOrder{OrderID: 111, ShipmentID: 222}, nil
}

func (c *fakeCarrier) AssignAWB(ctx context.Context, shipmentID int64, courierID int) (*shipping.Assignment, error) {
	c.assignCalls++
	if c.assignErr != nil {
		return nil, c.assignErr
	}
	return &shipping.Assignment{AWB: "AWB123", CourierName: "Bluedart"}, nil
}

func (c *fakeCarrier) TrackAWB(ctx context.Context, awb string) (*shipping.Tracking, error) {
	return c.tracking, nil
}

type staticSettings struct{ s models.Settings }

func (s staticSettings) Current() models.Settings { return s.s }

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newService(store *memStore, carrier *fakeCarrier) *Service {
	cfg := models.DefaultSettings()
	cfg.PickupPincode = "411001"
	discard := log.New(io.Discard, "", 0)
	return &Service{
		Store:    store,
		Carrier:  carrier,
		Locker:   redisx.NoopLocker{},
		Events:   events.Noop{},
		Settings: staticSettings{cfg},
		InfoLog:  discard,
		ErrorLog: discard,
		Attempts: 3,
		Backoff:  time.Millisecond,
		Now:      func() time.Time { return fixedNow },
	}
}

func confirmedOrder() *models.Order {
	return &models.Order{
		ID:          primitive.NewObjectID(),
		OrderNumber: "BK-20260301-ABCDEF12",
		Status:      models.OrderConfirmed,
		Items: []models.OrderItem{
			{Name: "Dune", SKU: "BK-1", Price: 500, Quantity: 2, Weight: 300, WeightUnit: "g"},
		},
		Shipping: models.ShippingDetails{
			FullName: "Asha Kumari Rao", Phone: "9999999999", Line1: "1 MG Road",
			City: "Pune", State: "Maharashtra", Pincode: "560001",
		},
		Payment: models.PaymentInfo{Method: models.PaymentCOD, Status: models.PaymentPending},
		Totals:  models.Totals{Subtotal: 1000, Shipping: 0, Total: 1120},
	}
}

func TestCreateShipmentPersistsCarrierIDs(t *testing.T) {
	o := confirmedOrder()
	store := newMemStore(o)
	carrier := &fakeCarrier{}
	svc := newService(store, carrier)

	got, err := svc.CreateShipment(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(111), got.CarrierOrderID)
	assert.Equal(t, int64(222), got.ShipmentID)
	assert.Equal(t, int64(222), store.orders[o.ID].ShipmentID)

	req := carrier.lastCreate
	assert.Equal(t, "Asha", req.BillingFirstName)
	assert.Equal(t, "Kumari Rao", req.BillingLastName)
	assert.Equal(t, "COD", req.PaymentMethod)
	assert.Equal(t, 0.6, req.Weight)
	assert.Equal(t, 10.0, req.Length)
	assert.Equal(t, 10.0, req.Breadth)
	assert.Equal(t, 10.0, req.Height)
	assert.Equal(t, "India", req.BillingCountry)
	assert.Equal(t, "Primary", req.PickupLocation)

	in := store.intents[o.ID]
	require.NotNil(t, in)
	assert.Equal(t, models.StepAssign, in.Step)
	assert.NotEmpty(t, in.IdempotencyKey)
	assert.Empty(t, in.LastError)
}

func TestCreateShipmentRefusesSecondBooking(t *testing.T) {
	tests := []struct {
		name  string
		setup func(o *models.Order)
	}{
		{"shipment id present", func(o *models.Order) { o.ShipmentID = 9 }},
		{"carrier order id present", func(o *models.Order) { o.CarrierOrderID = 9 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := confirmedOrder()
			tt.setup(o)
			store := newMemStore(o)
			carrier := &fakeCarrier{}

			_, err := newService(store, carrier).CreateShipment(context.Background(), o.ID)
			require.ErrorIs(t, err, ErrAlreadyShipped)
			assert.Zero(t, carrier.createCalls)
			assert.Zero(t, store.writes)
		})
	}
}

func TestCreateShipmentFailureLeavesOrderUntouched(t *testing.T) {
	o := confirmedOrder()
	store := newMemStore(o)
	carrier := &fakeCarrier{createErrs: []error{&shipping.APIError{HTTPStatus: 200, Code: 422, Message: "Invalid pincode"}}}
	svc := newService(store, carrier)

	_, err := svc.CreateShipment(context.Background(), o.ID)
	var apiErr *shipping.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid pincode", apiErr.Message)

	assert.Zero(t, store.orders[o.ID].ShipmentID)
	assert.Zero(t, store.writes)
	assert.Equal(t, 1, carrier.createCalls, "no retry in the request path")

	in := store.intents[o.ID]
	require.NotNil(t, in)
	assert.Equal(t, models.StepCreate, in.Step)
	assert.Contains(t, in.LastError, "Invalid pincode")
	assert.Equal(t, 1, in.Attempts)
}

func TestCreateShipmentRequiresConfirmedOrder(t *testing.T) {
	o := confirmedOrder()
	o.Status = models.OrderPending
	_, err := newService(newMemStore(o), &fakeCarrier{}).CreateShipment(context.Background(), o.ID)
	assert.ErrorIs(t, err, ErrNotShippable)
}

func TestCreateShipmentReplaysStoredIDsAfterWriteFailure(t *testing.T) {
	o := confirmedOrder()
	store := newMemStore(o)
	store.shipErr = errors.New("write timeout")
	carrier := &fakeCarrier{}
	svc := newService(store, carrier)

	_, err := svc.CreateShipment(context.Background(), o.ID)
	require.Error(t, err)
	assert.Equal(t, int64(222), store.intents[o.ID].ShipmentID)

	store.shipErr = nil
	got, err := svc.CreateShipment(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(222), got.ShipmentID)
	assert.Equal(t, 1, carrier.createCalls, "carrier booked once")
}

func TestCreateShipmentLocked(t *testing.T) {
	o := confirmedOrder()
	svc := newService(newMemStore(o), &fakeCarrier{})
	svc.Locker = lockedLocker{}

	_, err := svc.CreateShipment(context.Background(), o.ID)
	assert.ErrorIs(t, err, redisx.ErrLocked)
}

type lockedLocker struct{}

func (lockedLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, redisx.ErrLocked
}

func TestAssignCourierRequiresShipment(t *testing.T) {
	o := confirmedOrder()
	carrier := &fakeCarrier{}
	_, _, err := newService(newMemStore(o), carrier).AssignCourier(context.Background(), o.ID, 7)
	require.ErrorIs(t, err, ErrNoShipment)
	assert.Zero(t, carrier.assignCalls)
}

func TestAssignCourierShipsAndCreatesDelivery(t *testing.T) {
	o := confirmedOrder()
	o.ShipmentID = 222
	store := newMemStore(o)
	svc := newService(store, &fakeCarrier{})

	got, d, err := svc.AssignCourier(context.Background(), o.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipped, got.Status)
	assert.Equal(t, "AWB123", store.orders[o.ID].AWB)
	assert.Equal(t, "Bluedart", store.orders[o.ID].CourierName)

	require.NotNil(t, d)
	assert.Equal(t, "AWB123", d.TrackingNumber)
	assert.Equal(t, models.DeliveryPending, d.Status)
	require.NotNil(t, d.EstimatedDelivery)
	assert.Equal(t, fixedNow.Add(5*24*time.Hour), *d.EstimatedDelivery)
	assert.Equal(t, models.StepDone, store.intents[o.ID].Step)
}

func TestAssignCourierUpdatesExistingDelivery(t *testing.T) {
	o := confirmedOrder()
	o.ShipmentID = 222
	store := newMemStore(o)
	est := fixedNow.Add(-time.Hour)
	store.deliveries[o.ID] = &models.Delivery{OrderID: o.ID, TrackingNumber: "OLD", Status: models.DeliveryInTransit, EstimatedDelivery: &est}

	_, d, err := newService(store, &fakeCarrier{}).AssignCourier(context.Background(), o.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, "AWB123", d.TrackingNumber)
	assert.Equal(t, models.DeliveryInTransit, d.Status)
	assert.Equal(t, est, *d.EstimatedDelivery)
	assert.Len(t, store.deliveries, 1)
}

func TestAssignCourierFailureRecorded(t *testing.T) {
	o := confirmedOrder()
	o.ShipmentID = 222
	store := newMemStore(o)
	carrier := &fakeCarrier{assignErr: &shipping.APIError{HTTPStatus: 200, Message: "Courier not available"}}

	_, _, err := newService(store, carrier).AssignCourier(context.Background(), o.ID, 7)
	require.Error(t, err)
	assert.Equal(t, models.OrderConfirmed, store.orders[o.ID].Status)
	assert.Empty(t, store.deliveries)
	assert.Equal(t, 7, store.intents[o.ID].CourierID)
	assert.Contains(t, store.intents[o.ID].LastError, "Courier not available")
}

func shippedWithDelivery() (*models.Order, *memStore) {
	o := confirmedOrder()
	o.ShipmentID, o.AWB, o.Status = 222, "AWB123", models.OrderShipped
	store := newMemStore(o)
	store.deliveries[o.ID] = &models.Delivery{OrderID: o.ID, TrackingNumber: "AWB123", Status: models.DeliveryPending}
	return o, store
}

func TestSyncStatusDelivered(t *testing.T) {
	o, store := shippedWithDelivery()
	carrier := &fakeCarrier{tracking: &shipping.Tracking{CurrentStatus: "DELIVERED", Location: "Bengaluru", Activity: "Delivered to consignee"}}

	d, err := newService(store, carrier).SyncStatus(context.Background(), "AWB123")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryDelivered, d.Status)
	assert.Equal(t, "Bengaluru", d.LastLocation)
	require.NotNil(t, d.ActualDelivery)
	assert.Equal(t, fixedNow, *d.ActualDelivery)
	assert.Equal(t, models.OrderDelivered, store.orders[o.ID].Status)
}

func TestSyncStatusUnknownKeepsStatus(t *testing.T) {
	o, store := shippedWithDelivery()
	store.deliveries[o.ID].Status = models.DeliveryInTransit
	carrier := &fakeCarrier{tracking: &shipping.Tracking{CurrentStatus: "MISROUTED TO MARS", Location: "Hub 4", Activity: "Sorting"}}

	d, err := newService(store, carrier).SyncStatus(context.Background(), "AWB123")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryInTransit, d.Status)
	assert.Equal(t, "Hub 4", d.LastLocation)
	assert.Equal(t, "Sorting", d.Notes)
	assert.Equal(t, models.OrderShipped, store.orders[o.ID].Status)
}

func TestSyncStatusUnknownAWB(t *testing.T) {
	_, store := shippedWithDelivery()
	carrier := &fakeCarrier{tracking: &shipping.Tracking{CurrentStatus: "IN TRANSIT"}}
	_, err := newService(store, carrier).SyncStatus(context.Background(), "NOPE")
	assert.ErrorIs(t, err, models.ErrNoRecord)
}

func TestCouriers(t *testing.T) {
	o := confirmedOrder()
	svc := newService(newMemStore(o), &fakeCarrier{})

	cs, err := svc.Couriers(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, 7, cs[0].ID)

	o.Shipping.Pincode = "000000"
	_, err = svc.Couriers(context.Background(), o.ID)
	assert.ErrorIs(t, err, shipping.ErrNotServiceable)
}

func TestResumeRetriesTransientFailures(t *testing.T) {
	o := confirmedOrder()
	store := newMemStore(o)
	carrier := &fakeCarrier{createErrs: []error{
		&shipping.APIError{HTTPStatus: http.StatusBadGateway, Message: "upstream"},
		&shipping.APIError{HTTPStatus: http.StatusServiceUnavailable, Message: "upstream"},
	}}
	store.intents[o.ID] = &models.ShipmentIntent{OrderID: o.ID, IdempotencyKey: "k1", Step: models.StepCreate, LastError: "upstream"}

	rep, err := newService(store, carrier).Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResumeReport{Scanned: 1, Completed: 1}, rep)
	assert.Equal(t, 3, carrier.createCalls)
	assert.Equal(t, int64(222), store.orders[o.ID].ShipmentID)
	assert.Equal(t, models.StepAssign, store.intents[o.ID].Step)
}

func TestResumeDoesNotRetryEnvelopeFailures(t *testing.T) {
	o := confirmedOrder()
	store := newMemStore(o)
	carrier := &fakeCarrier{createErrs: []error{&shipping.APIError{HTTPStatus: 200, Code: 400, Message: "bad address"}}}
	store.intents[o.ID] = &models.ShipmentIntent{OrderID: o.ID, IdempotencyKey: "k1", Step: models.StepCreate}

	rep, err := newService(store, carrier).Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, carrier.createCalls)
}

func TestResumeLeavesUntouchedAssignAndClosesCancelled(t *testing.T) {
	waiting := confirmedOrder()
	waiting.ShipmentID = 222
	cancelled := confirmedOrder()
	cancelled.Status = models.OrderCancelled
	store := newMemStore(waiting, cancelled)
	store.intents[waiting.ID] = &models.ShipmentIntent{OrderID: waiting.ID, Step: models.StepAssign}
	store.intents[cancelled.ID] = &models.ShipmentIntent{OrderID: cancelled.ID, Step: models.StepCreate}
	carrier := &fakeCarrier{}

	rep, err := newService(store, carrier).Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResumeReport{Scanned: 1, Completed: 1}, rep)
	assert.Zero(t, carrier.createCalls)
	assert.Zero(t, carrier.assignCalls)
	assert.Equal(t, models.StepDone, store.intents[cancelled.ID].Step)
	assert.Equal(t, models.StepAssign, store.intents[waiting.ID].Step)
}

func TestResumeReachesCreatePastWaitingAssignments(t *testing.T) {
	store := newMemStore()
	for i := 0; i < resumeBatch; i++ {
		o := confirmedOrder()
		o.ShipmentID = int64(1000 + i)
		store.orders[o.ID] = o
		store.intents[o.ID] = &models.ShipmentIntent{OrderID: o.ID, Step: models.StepAssign, UpdatedAt: fixedNow.Add(-time.Hour)}
	}
	pending := confirmedOrder()
	store.orders[pending.ID] = pending
	store.intents[pending.ID] = &models.ShipmentIntent{OrderID: pending.ID, IdempotencyKey: "k1", Step: models.StepCreate, LastError: "timeout", UpdatedAt: fixedNow}
	carrier := &fakeCarrier{}

	rep, err := newService(store, carrier).Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResumeReport{Scanned: 1, Completed: 1}, rep)
	assert.Equal(t, 1, carrier.createCalls)
	assert.Equal(t, int64(222), store.orders[pending.ID].ShipmentID)
}

func TestResumeRotatesPastPermanentFailures(t *testing.T) {
	store := newMemStore()
	var newest *models.Order
	for i := 0; i <= resumeBatch; i++ {
		o := confirmedOrder()
		store.orders[o.ID] = o
		store.intents[o.ID] = &models.ShipmentIntent{OrderID: o.ID, Step: models.StepCreate, UpdatedAt: fixedNow.Add(time.Duration(i-resumeBatch) * time.Minute)}
		newest = o
	}
	rejected := make([]error, resumeBatch)
	for i := range rejected {
		rejected[i] = &shipping.APIError{HTTPStatus: 200, Code: 400, Message: "bad address"}
	}
	carrier := &fakeCarrier{createErrs: rejected}
	svc := newService(store, carrier)

	rep, err := svc.Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, resumeBatch, rep.Failed)
	assert.Zero(t, store.orders[newest.ID].ShipmentID)
	assert.Empty(t, store.intents[newest.ID].LastError)

	rep, err = svc.Resume(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rep.Completed, 1)
	assert.Equal(t, int64(222), store.orders[newest.ID].ShipmentID)
}

func TestResumeClosesIntentOfOrderShippedElsewhere(t *testing.T) {
	o := confirmedOrder()
	o.Status = models.OrderShipped
	store := newMemStore(o)
	store.intents[o.ID] = &models.ShipmentIntent{OrderID: o.ID, Step: models.StepCreate, LastError: "timeout"}
	carrier := &fakeCarrier{}

	rep, err := newService(store, carrier).Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Completed)
	assert.Zero(t, carrier.createCalls)
	assert.Equal(t, models.StepDone, store.intents[o.ID].Step)
	assert.Equal(t, "order is shipped", store.intents[o.ID].LastError)
}

func TestResumeTouchesIntentAfterRefusal(t *testing.T) {
	o := confirmedOrder()
	o.CarrierOrderID = 111
	store := newMemStore(o)
	store.intents[o.ID] = &models.ShipmentIntent{OrderID: o.ID, Step: models.StepCreate, UpdatedAt: fixedNow.Add(-time.Hour)}

	rep, err := newService(store, &fakeCarrier{}).Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	in := store.intents[o.ID]
	assert.True(t, in.UpdatedAt.After(fixedNow.Add(-time.Hour)))
	assert.Contains(t, in.LastError, "already shipped")
}

func TestResumeReplaysFailedAssignment(t *testing.T) {
	o := confirmedOrder()
	o.ShipmentID = 222
	store := newMemStore(o)
	store.intents[o.ID] = &models.ShipmentIntent{OrderID: o.ID, Step: models.StepAssign, CourierID: 7, LastError: "timeout"}
	carrier := &fakeCarrier{}

	rep, err := newService(store, carrier).Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Completed)
	assert.Equal(t, 1, carrier.assignCalls)
	assert.Equal(t, models.OrderShipped, store.orders[o.ID].Status)
	assert.Equal(t, models.StepDone, store.intents[o.ID].Step)
}
