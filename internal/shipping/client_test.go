package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCarrier(t *testing.T, routes map[string]http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var logins int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&logins, 1)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
	})
	for path, h := range routes {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "ops@example.com", "secret", 5*time.Second), &logins
}

func TestCreateOrderSuccess(t *testing.T) {
	c, logins := newCarrier(t, map[string]http.HandlerFunc{
		"/orders/create/adhoc": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			var req CreateOrderRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "ORD-1", req.OrderID)
			assert.Equal(t, 0.5, req.Weight)
			_, _ = w.Write([]byte(`{"order_id": 101, "shipment_id": 202, "status": "NEW", "status_code": 1}`))
		},
	})

	out, err := c.CreateOrder(context.Background(), CreateOrderRequest{OrderID: "ORD-1", Weight: 0.5})
	require.NoError(t, err)
	assert.Equal(t, int64(101), out.OrderID)
	assert.Equal(t, int64(202), out.ShipmentID)

	_, err = c.CreateOrder(context.Background(), CreateOrderRequest{OrderID: "ORD-1", Weight: 0.5})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(logins), "token should be cached")
}

func TestEnvelopeFailureSurfacesMessage(t *testing.T) {
	c, _ := newCarrier(t, map[string]http.HandlerFunc{
		"/orders/create/adhoc": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status_code": 422, "message": "Pickup location not found"}`))
		},
	})

	_, err := c.CreateOrder(context.Background(), CreateOrderRequest{OrderID: "ORD-2"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 422, apiErr.Code)
	assert.Contains(t, err.Error(), "Pickup location not found")
	assert.False(t, Retryable(err))
}

func TestServiceabilityNotFound(t *testing.T) {
	c, _ := newCarrier(t, map[string]http.HandlerFunc{
		"/courier/serviceability/": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message": "No courier serviceable", "status": 404}`))
		},
	})

	_, err := c.Serviceability(context.Background(), "400001", "999999", 0.5, false)
	assert.ErrorIs(t, err, ErrNotServiceable)
}

func TestServiceabilityListsCouriers(t *testing.T) {
	c, _ := newCarrier(t, map[string]http.HandlerFunc{
		"/courier/serviceability/": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "400001", r.URL.Query().Get("pickup_postcode"))
			assert.Equal(t, "560001", r.URL.Query().Get("delivery_postcode"))
			assert.Equal(t, "1", r.URL.Query().Get("cod"))
			_, _ = w.Write([]byte(`{"status": 200, "data": {"available_courier_companies": [
				{"courier_company_id": 10, "courier_name": "Swift", "rate": 72.5, "etd": "Oct 20, 2026"}
			]}}`))
		},
	})

	couriers, err := c.Serviceability(context.Background(), "400001", "560001", 1, true)
	require.NoError(t, err)
	require.Len(t, couriers, 1)
	assert.Equal(t, 10, couriers[0].ID)
	assert.Equal(t, "Swift", couriers[0].Name)
	assert.Equal(t, 72.5, couriers[0].Rate)
}

func TestUnauthorizedTriggersRelogin(t *testing.T) {
	var calls int32
	c, logins := newCarrier(t, map[string]http.HandlerFunc{
		"/courier/assign/awb": func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"awb_assign_status": 1, "response": {"data": {"awb_code": "AWB123", "courier_name": "Swift"}}}`))
		},
	})

	a, err := c.AssignAWB(context.Background(), 202, 10)
	require.NoError(t, err)
	assert.Equal(t, "AWB123", a.AWB)
	assert.Equal(t, "Swift", a.CourierName)
	assert.Equal(t, int32(2), atomic.LoadInt32(logins))
}

func TestAssignAWBRejected(t *testing.T) {
	c, _ := newCarrier(t, map[string]http.HandlerFunc{
		"/courier/assign/awb": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"awb_assign_status": 0, "message": "Courier not available"}`))
		},
	})

	_, err := c.AssignAWB(context.Background(), 202, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Courier not available")
}

func TestTrackAWB(t *testing.T) {
	c, _ := newCarrier(t, map[string]http.HandlerFunc{
		"/courier/track/awb/AWB123": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"tracking_data": {"track_status": 1,
				"shipment_track": [{"current_status": "OUT FOR DELIVERY", "destination": "Bengaluru"}],
				"shipment_track_activities": [{"date": "2026-10-14 09:00", "status": "OUT FOR DELIVERY", "activity": "Out for delivery", "location": "BLR Hub"}]
			}}`))
		},
	})

	tr, err := c.TrackAWB(context.Background(), "AWB123")
	require.NoError(t, err)
	assert.Equal(t, "OUT FOR DELIVERY", tr.CurrentStatus)
	assert.Equal(t, "BLR Hub", tr.Location)
	assert.Equal(t, "Out for delivery", tr.Activity)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(&APIError{HTTPStatus: 502}))
	assert.False(t, Retryable(&APIError{HTTPStatus: 400}))
	assert.False(t, Retryable(&APIError{HTTPStatus: 404}))
	assert.True(t, Retryable(errors.New("connection reset")))
	assert.False(t, Retryable(nil))
}

func TestEnvelopeOK(t *testing.T) {
	for code, want := range map[int]bool{
		0: false, 1: true, 2: false, 199: false, 200: true, 201: true, 299: true, 300: false, 400: false, 422: false,
	} {
		assert.Equal(t, want, envelopeOK(code), "status_code %d", code)
	}
}
