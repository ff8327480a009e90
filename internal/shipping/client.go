package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const DefaultBaseURL = "https://apiv2.shiprocket.in/v1/external"

// tokenTTL is kept below the aggregator's ten day token lifetime.
const tokenTTL = 9 * 24 * time.Hour

var ErrNotServiceable = errors.New("route not serviceable")

// APIError is a failure reported by the aggregator, either through the HTTP
// status or through the status_code field of a 2xx response.
type APIError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("shipping: carrier error (http %d, code %d)", e.HTTPStatus, e.Code)
	}
	return "shipping: " + e.Message
}

// Unwrap lets errors.Is match ErrNotServiceable on a 404, which is how the
// aggregator reports an unsupported pincode pair.
func (e *APIError) Unwrap() error {
	if e.HTTPStatus == http.StatusNotFound {
		return ErrNotServiceable
	}
	return nil
}

// Retryable reports whether err is worth another attempt: transport failures
// and 5xx responses. Envelope rejections are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatus >= 500
	}
	return !errors.Is(err, ErrNotServiceable) && !errors.Is(err, context.Canceled)
}

type Client struct {
	baseURL  string
	email    string
	password string
	client   *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewClient(baseURL, email, password string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		email:    email,
		password: password,
		client:   &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	StatusCode *int   `json:"status_code"`
	Message    string `json:"message"`
}

func (c *Client) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{"email": c.email, "password": c.password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("shipping: build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("shipping: login: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp.StatusCode, raw)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("shipping: decode login response: %w", err)
	}
	if out.Token == "" {
		return "", &APIError{HTTPStatus: resp.StatusCode, Message: "login returned no token"}
	}
	c.token = out.Token
	c.tokenExp = time.Now().Add(tokenTTL)
	return c.token, nil
}

func (c *Client) dropToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// do sends an authenticated request and decodes the response into out. A 401
// drops the cached token and retries once with a fresh login.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("shipping: marshal request: %w", err)
		}
		payload = b
	}

	for attempt := 0; ; attempt++ {
		token, err := c.authToken(ctx)
		if err != nil {
			return err
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return fmt.Errorf("shipping: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("shipping: %s %s: %w", method, path, err)
		}
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("shipping: read response: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			c.dropToken()
			continue
		}
		if resp.StatusCode >= 400 {
			return decodeAPIError(resp.StatusCode, raw)
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err == nil && env.StatusCode != nil {
			if code := *env.StatusCode; !envelopeOK(code) {
				return &APIError{HTTPStatus: resp.StatusCode, Code: code, Message: env.Message}
			}
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("shipping: decode response: %w", err)
		}
		return nil
	}
}

// envelopeOK accepts the carrier's own success code 1 and any 2xx code.
func envelopeOK(code int) bool {
	return code == 1 || (code >= 200 && code <= 299)
}

func decodeAPIError(status int, raw []byte) error {
	var env envelope
	_ = json.Unmarshal(raw, &env)
	apiErr := &APIError{HTTPStatus: status, Message: env.Message}
	if env.StatusCode != nil {
		apiErr.Code = *env.StatusCode
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

type Courier struct {
	ID            int     `json:"courier_company_id"`
	Name          string  `json:"courier_name"`
	Rate          float64 `json:"rate"`
	EstimatedDays string  `json:"estimated_delivery_days"`
	ETD           string  `json:"etd"`
	COD           int     `json:"cod"`
}

// Serviceability lists the couriers able to carry a parcel of weightKg
// between the two pincodes. A 404 from the aggregator means no courier
// serves the pair and is reported as ErrNotServiceable.
func (c *Client) Serviceability(ctx context.Context, pickup, delivery string, weightKg float64, cod bool) ([]Courier, error) {
	q := url.Values{}
	q.Set("pickup_postcode", pickup)
	q.Set("delivery_postcode", delivery)
	q.Set("weight", strconv.FormatFloat(weightKg, 'f', -1, 64))
	if cod {
		q.Set("cod", "1")
	} else {
		q.Set("cod", "0")
	}

	var out struct {
		Data struct {
			Couriers []Courier `json:"available_courier_companies"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/courier/serviceability/?"+q.Encode(), nil, &out); err != nil {
		if errors.Is(err, ErrNotServiceable) {
			return nil, ErrNotServiceable
		}
		return nil, err
	}
	if len(out.Data.Couriers) == 0 {
		return nil, ErrNotServiceable
	}
	return out.Data.Couriers, nil
}

type OrderLine struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Units        int     `json:"units"`
	SellingPrice float64 `json:"selling_price"`
	Tax          float64 `json:"tax,omitempty"`
}

type CreateOrderRequest struct {
	OrderID           string      `json:"order_id"`
	OrderDate         string      `json:"order_date"`
	PickupLocation    string      `json:"pickup_location"`
	BillingFirstName  string      `json:"billing_customer_name"`
	BillingLastName   string      `json:"billing_last_name"`
	BillingAddress    string      `json:"billing_address"`
	BillingAddress2   string      `json:"billing_address_2,omitempty"`
	BillingCity       string      `json:"billing_city"`
	BillingPincode    string      `json:"billing_pincode"`
	BillingState      string      `json:"billing_state"`
	BillingCountry    string      `json:"billing_country"`
	BillingEmail      string      `json:"billing_email"`
	BillingPhone      string      `json:"billing_phone"`
	ShippingIsBilling bool        `json:"shipping_is_billing"`
	Items             []OrderLine `json:"order_items"`
	PaymentMethod     string      `json:"payment_method"`
	ShippingCharges   float64     `json:"shipping_charges"`
	SubTotal          float64     `json:"sub_total"`
	Length            float64     `json:"length"`
	Breadth           float64     `json:"breadth"`
	Height            float64     `json:"height"`
	Weight            float64     `json:"weight"`
}

type CreatedOrder struct {
	OrderID    int64  `json:"order_id"`
	ShipmentID int64  `json:"shipment_id"`
	Status     string `json:"status"`
}

func (c *Client) CreateOrder(ctx context.Context, r CreateOrderRequest) (*CreatedOrder, error) {
	var out CreatedOrder
	if err := c.do(ctx, http.MethodPost, "/orders/create/adhoc", r, &out); err != nil {
		return nil, err
	}
	if out.ShipmentID == 0 {
		return nil, &APIError{HTTPStatus: http.StatusOK, Message: "carrier returned no shipment id"}
	}
	return &out, nil
}

type Assignment struct {
	AWB         string
	CourierName string
}

func (c *Client) AssignAWB(ctx context.Context, shipmentID int64, courierID int) (*Assignment, error) {
	in := map[string]any{"shipment_id": shipmentID}
	if courierID > 0 {
		in["courier_id"] = courierID
	}

	var out struct {
		AssignStatus int    `json:"awb_assign_status"`
		Message      string `json:"message"`
		Response     struct {
			Data struct {
				AWB         string `json:"awb_code"`
				CourierName string `json:"courier_name"`
			} `json:"data"`
		} `json:"response"`
	}
	if err := c.do(ctx, http.MethodPost, "/courier/assign/awb", in, &out); err != nil {
		return nil, err
	}
	if out.AssignStatus != 1 || out.Response.Data.AWB == "" {
		msg := out.Message
		if msg == "" {
			msg = "awb assignment failed"
		}
		return nil, &APIError{HTTPStatus: http.StatusOK, Message: msg}
	}
	return &Assignment{AWB: out.Response.Data.AWB, CourierName: out.Response.Data.CourierName}, nil
}

type Activity struct {
	Date     string `json:"date"`
	Status   string `json:"status"`
	Activity string `json:"activity"`
	Location string `json:"location"`
}

type Tracking struct {
	CurrentStatus string
	Location      string
	Activity      string
	Activities    []Activity
}

func (c *Client) TrackAWB(ctx context.Context, awb string) (*Tracking, error) {
	var out struct {
		TrackingData struct {
			TrackStatus int    `json:"track_status"`
			Error       string `json:"error"`
			Track       []struct {
				CurrentStatus string `json:"current_status"`
				Destination   string `json:"destination"`
			} `json:"shipment_track"`
			Activities []Activity `json:"shipment_track_activities"`
		} `json:"tracking_data"`
	}
	if err := c.do(ctx, http.MethodGet, "/courier/track/awb/"+url.PathEscape(awb), nil, &out); err != nil {
		return nil, err
	}
	td := out.TrackingData
	if td.TrackStatus == 0 && td.Error != "" {
		return nil, &APIError{HTTPStatus: http.StatusOK, Message: td.Error}
	}

	t := &Tracking{Activities: td.Activities}
	if len(td.Track) > 0 {
		t.CurrentStatus = td.Track[0].CurrentStatus
		t.Location = td.Track[0].Destination
	}
	if len(td.Activities) > 0 {
		latest := td.Activities[0]
		if t.CurrentStatus == "" {
			t.CurrentStatus = latest.Status
		}
		if latest.Location != "" {
			t.Location = latest.Location
		}
		t.Activity = latest.Activity
	}
	return t, nil
}
