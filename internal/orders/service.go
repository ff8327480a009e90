// Package orders places orders and moves them through their lifecycle up to
// the point where fulfillment takes over.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"bookshop/internal/events"
	"bookshop/internal/models"
	"bookshop/internal/payment"
	"bookshop/internal/pricing"
	"bookshop/internal/shipping"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxLineQuantity = 100

// OutOfStockError names the product that could not be reserved.
type OutOfStockError struct {
	SKU       string
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("orders: %s is out of stock (available %d)", e.SKU, e.Available)
}

type Store interface {
	GetProductsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Product, error)
	DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error)
	IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) error
	InsertOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	SetGatewayOrderID(ctx context.Context, id primitive.ObjectID, gatewayOrderID string) error
	SetOrderStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus, reason string) error
	MarkPaid(ctx context.Context, id primitive.ObjectID, paymentID string) error
	MarkPaymentFailed(ctx context.Context, id primitive.ObjectID, paymentID string) error
	InsertInvoice(ctx context.Context, inv *models.Invoice) error
	SetInvoicePaymentStatus(ctx context.Context, orderID primitive.ObjectID, status models.PaymentStatus) error
}

type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*payment.Order, error)
}

type SettingsSource interface {
	Current() models.Settings
}

type Service struct {
	Store    Store
	Gateway  Gateway
	Settings SettingsSource
	Events   events.Publisher
	// KeyID is handed to the browser to open the gateway checkout.
	KeyID string
	// Secret signs checkout callbacks; WebhookSecret signs webhooks.
	Secret        string
	WebhookSecret string
	InfoLog       *log.Logger
	ErrorLog      *log.Logger
	Now           func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type LineRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CheckoutRequest struct {
	Items         []LineRequest           `json:"items"`
	Shipping      models.ShippingDetails  `json:"shipping"`
	Billing       *models.ShippingDetails `json:"billing,omitempty"`
	PaymentMethod models.PaymentMethod    `json:"paymentMethod"`
}

// GatewayCheckout is what the browser needs to open the payment window.
type GatewayCheckout struct {
	KeyID    string `json:"keyId"`
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type CheckoutResult struct {
	Order   *models.Order    `json:"order"`
	Invoice *models.Invoice  `json:"invoice,omitempty"`
	Gateway *GatewayCheckout `json:"gateway,omitempty"`
}

var pincodeRX = regexp.MustCompile(`^[1-9][0-9]{5}$`)

// ValidPincode reports whether pin is a six digit Indian postal code.
func ValidPincode(pin string) bool {
	return pincodeRX.MatchString(pin)
}

func validateAddress(field string, d models.ShippingDetails) error {
	switch {
	case strings.TrimSpace(d.FullName) == "":
		return models.Invalid(field+".fullName", "is required")
	case strings.TrimSpace(d.Phone) == "":
		return models.Invalid(field+".phone", "is required")
	case strings.TrimSpace(d.Line1) == "":
		return models.Invalid(field+".line1", "is required")
	case strings.TrimSpace(d.City) == "":
		return models.Invalid(field+".city", "is required")
	case strings.TrimSpace(d.State) == "":
		return models.Invalid(field+".state", "is required")
	case !pincodeRX.MatchString(d.Pincode):
		return models.Invalid(field+".pincode", "must be a 6 digit pincode")
	}
	return nil
}

type wantedLine struct {
	id  primitive.ObjectID
	qty int
}

// normalizeLines validates the requested lines and merges repeats of the
// same product, keeping first-seen order.
func normalizeLines(lines []LineRequest) ([]wantedLine, error) {
	if len(lines) == 0 {
		return nil, models.Invalid("items", "must not be empty")
	}
	var out []wantedLine
	index := map[primitive.ObjectID]int{}
	for _, l := range lines {
		id, err := models.ParseID(l.ProductID)
		if err != nil {
			return nil, models.Invalid("items.productId", "is not a valid id")
		}
		if l.Quantity < 1 {
			return nil, models.Invalid("items.quantity", "must be at least 1")
		}
		if i, ok := index[id]; ok {
			out[i].qty += l.Quantity
		} else {
			index[id] = len(out)
			out = append(out, wantedLine{id: id, qty: l.Quantity})
		}
	}
	for _, w := range out {
		if w.qty > maxLineQuantity {
			return nil, models.Invalid("items.quantity", fmt.Sprintf("must not exceed %d", maxLineQuantity))
		}
	}
	return out, nil
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "BK-" + now.Format("20060102") + "-" + suffix
}

// Checkout places an order for userID (nil for guests). Stock is reserved
// before the order is written and given back if anything after that fails.
func (s *Service) Checkout(ctx context.Context, userID *primitive.ObjectID, req CheckoutRequest) (*CheckoutResult, error) {
	cfg := s.Settings.Current()

	wanted, err := normalizeLines(req.Items)
	if err != nil {
		return nil, err
	}
	if err := validateAddress("shipping", req.Shipping); err != nil {
		return nil, err
	}
	billing := req.Shipping
	if req.Billing != nil {
		if err := validateAddress("billing", *req.Billing); err != nil {
			return nil, err
		}
		billing = *req.Billing
	}
	switch req.PaymentMethod {
	case models.PaymentOnline:
		if !cfg.EnableOnlinePayment {
			return nil, models.Invalid("paymentMethod", "online payment is disabled")
		}
	case models.PaymentCOD:
		if !cfg.EnableCOD {
			return nil, models.Invalid("paymentMethod", "cash on delivery is disabled")
		}
	default:
		return nil, models.Invalid("paymentMethod", "must be online or cod")
	}

	ids := make([]primitive.ObjectID, len(wanted))
	for i, w := range wanted {
		ids[i] = w.id
	}
	products, err := s.Store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("orders: load products: %w", err)
	}

	items := make([]models.OrderItem, 0, len(wanted))
	for _, w := range wanted {
		p, ok := products[w.id]
		if !ok || p.Status != models.ProductActive {
			return nil, models.Invalid("items.productId", "product "+w.id.Hex()+" is not available")
		}
		if p.Stock < w.qty {
			return nil, &OutOfStockError{SKU: p.SKU, Available: p.Stock}
		}
		items = append(items, models.OrderItem{
			ProductID:  p.ID,
			Name:       p.Name,
			SKU:        p.SKU,
			Price:      p.SellingPrice(),
			Quantity:   w.qty,
			Weight:     p.Weight,
			WeightUnit: p.WeightUnit,
			Tax:        p.Tax,
		})
	}

	lines, totals := pricing.Price(items, cfg, pricing.InterState(cfg.StoreState, req.Shipping.State))

	if err := s.reserve(ctx, items); err != nil {
		return nil, err
	}

	now := s.now()
	order := &models.Order{
		OrderNumber: newOrderNumber(now),
		UserID:      userID,
		Items:       items,
		Shipping:    req.Shipping,
		Billing:     billing,
		Payment:     models.PaymentInfo{Method: req.PaymentMethod, Status: models.PaymentPending},
		Status:      models.OrderPending,
		Totals:      totals,
		TotalWeight: shipping.ResolveWeight(0, items),
	}
	if req.PaymentMethod == models.PaymentCOD {
		order.Status = models.OrderConfirmed
	}
	if err := s.Store.InsertOrder(ctx, order); err != nil {
		s.restock(ctx, items)
		return nil, fmt.Errorf("orders: insert order: %w", err)
	}

	result := &CheckoutResult{Order: order}

	invoice := &models.Invoice{
		InvoiceNumber: "INV-" + strings.TrimPrefix(order.OrderNumber, "BK-"),
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		StoreName:     cfg.StoreName,
		Lines:         lines,
		Billing:       billing,
		Shipping:      req.Shipping,
		Totals:        totals,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: models.PaymentPending,
		IssuedAt:      now,
	}
	if err := s.Store.InsertInvoice(ctx, invoice); err != nil {
		s.ErrorLog.Printf("orders: invoice for %s: %v", order.OrderNumber, err)
	} else {
		result.Invoice = invoice
	}

	if req.PaymentMethod == models.PaymentOnline {
		amount := pricing.MinorUnits(totals.Total)
		gw, err := s.Gateway.CreateOrder(ctx, amount, cfg.Currency, order.OrderNumber, map[string]string{"orderId": order.ID.Hex()})
		if err != nil {
			s.abandon(ctx, order, "payment gateway unavailable")
			return nil, fmt.Errorf("orders: create gateway order: %w", err)
		}
		if err := s.Store.SetGatewayOrderID(ctx, order.ID, gw.ID); err != nil {
			s.abandon(ctx, order, "payment gateway unavailable")
			return nil, fmt.Errorf("orders: store gateway order: %w", err)
		}
		order.Payment.GatewayOrderID = gw.ID
		result.Gateway = &GatewayCheckout{KeyID: s.KeyID, OrderID: gw.ID, Amount: amount, Currency: cfg.Currency}
	}

	s.publish(ctx, events.OrderPlaced, order, "")
	s.InfoLog.Printf("order %s placed (%s, %.2f)", order.OrderNumber, req.PaymentMethod, totals.Total)
	return result, nil
}

func (s *Service) reserve(ctx context.Context, items []models.OrderItem) error {
	for i, it := range items {
		ok, err := s.Store.DecrementStock(ctx, it.ProductID, it.Quantity)
		if err == nil && ok {
			continue
		}
		s.restock(ctx, items[:i])
		if err != nil {
			return fmt.Errorf("orders: reserve %s: %w", it.SKU, err)
		}
		return &OutOfStockError{SKU: it.SKU}
	}
	return nil
}

func (s *Service) restock(ctx context.Context, items []models.OrderItem) {
	for _, it := range items {
		if err := s.Store.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			s.ErrorLog.Printf("orders: restock %s x%d: %v", it.SKU, it.Quantity, err)
		}
	}
}

// abandon cancels a freshly placed order that can never be paid.
func (s *Service) abandon(ctx context.Context, o *models.Order, reason string) {
	if err := s.Store.SetOrderStatus(ctx, o.ID, o.Status, models.OrderCancelled, reason); err != nil {
		s.ErrorLog.Printf("orders: abandon %s: %v", o.OrderNumber, err)
		return
	}
	s.restock(ctx, o.Items)
}

// ConfirmPayment checks the checkout callback signature and records the
// payment. Repeating a confirmation for an already paid order is a no-op.
func (s *Service) ConfirmPayment(ctx context.Context, gatewayOrderID, paymentID, signature string) (*models.Order, error) {
	if !payment.Verify(s.Secret, gatewayOrderID, paymentID, signature) {
		return nil, payment.ErrInvalidSignature
	}
	o, err := s.Store.GetOrderByGatewayID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	return s.markPaid(ctx, o, paymentID)
}

func (s *Service) markPaid(ctx context.Context, o *models.Order, paymentID string) (*models.Order, error) {
	if o.Payment.Status == models.PaymentPaid {
		return o, nil
	}
	if err := s.Store.MarkPaid(ctx, o.ID, paymentID); err != nil {
		if errors.Is(err, models.ErrNoRecord) {
			return nil, fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, o.OrderNumber, o.Status)
		}
		return nil, err
	}
	if err := s.Store.SetInvoicePaymentStatus(ctx, o.ID, models.PaymentPaid); err != nil {
		s.ErrorLog.Printf("orders: invoice payment status for %s: %v", o.OrderNumber, err)
	}

	paidAt := s.now()
	o.Payment.Status = models.PaymentPaid
	o.Payment.GatewayPaymentID = paymentID
	o.Payment.PaidAt = &paidAt
	o.Status = models.OrderConfirmed

	s.publish(ctx, events.OrderConfirmed, o, "")
	s.InfoLog.Printf("order %s paid (%s)", o.OrderNumber, paymentID)
	return o, nil
}

// webhookEvent is the subset of a gateway webhook body we act on.
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// HandleWebhook applies a signed gateway webhook. Events for orders we do
// not know are ignored.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !payment.VerifyWebhook(s.WebhookSecret, body, signature) {
		return payment.ErrInvalidSignature
	}
	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return models.Invalid("body", "malformed webhook payload")
	}
	entity := ev.Payload.Payment.Entity
	if entity.OrderID == "" {
		return nil
	}
	o, err := s.Store.GetOrderByGatewayID(ctx, entity.OrderID)
	if errors.Is(err, models.ErrNoRecord) {
		return nil
	}
	if err != nil {
		return err
	}

	switch ev.Event {
	case "payment.captured", "order.paid":
		_, err = s.markPaid(ctx, o, entity.ID)
		if errors.Is(err, ErrInvalidTransition) {
			s.ErrorLog.Printf("orders: captured payment %s for %s order %s", entity.ID, o.Status, o.OrderNumber)
			return nil
		}
		return err
	case "payment.failed":
		if err := s.Store.MarkPaymentFailed(ctx, o.ID, entity.ID); err != nil {
			return err
		}
		if err := s.Store.SetInvoicePaymentStatus(ctx, o.ID, models.PaymentFailed); err != nil {
			s.ErrorLog.Printf("orders: invoice payment status for %s: %v", o.OrderNumber, err)
		}
	}
	return nil
}

// Cancel cancels an order on behalf of its owner. A non-nil owner must match
// the order's user; a mismatch looks like a missing order.
func (s *Service) Cancel(ctx context.Context, id primitive.ObjectID, owner *primitive.ObjectID, reason string) (*models.Order, error) {
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner != nil && (o.UserID == nil || *o.UserID != *owner) {
		return nil, models.ErrNoRecord
	}
	if reason == "" {
		reason = "cancelled by customer"
	}
	return s.transition(ctx, o, models.OrderCancelled, reason)
}

// UpdateStatus is the admin path for moving an order along.
func (s *Service) UpdateStatus(ctx context.Context, id primitive.ObjectID, to models.OrderStatus, reason string) (*models.Order, error) {
	if !ValidStatus(to) {
		return nil, models.Invalid("status", "unknown order status")
	}
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, o, to, reason)
}

func (s *Service) transition(ctx context.Context, o *models.Order, to models.OrderStatus, reason string) (*models.Order, error) {
	if !CanTransition(o.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	if to != models.OrderCancelled {
		reason = ""
	}
	if err := s.Store.SetOrderStatus(ctx, o.ID, o.Status, to, reason); err != nil {
		if errors.Is(err, models.ErrNoRecord) {
			return nil, fmt.Errorf("%w: order %s changed concurrently", ErrInvalidTransition, o.OrderNumber)
		}
		return nil, err
	}
	o.Status = to
	o.UpdatedAt = s.now()

	if to == models.OrderCancelled {
		o.CancelReason = reason
		s.restock(ctx, o.Items)
		if o.Payment.Status == models.PaymentPaid {
			s.InfoLog.Printf("order %s cancelled after payment %s, refund manually", o.OrderNumber, o.Payment.GatewayPaymentID)
		}
		s.publish(ctx, events.OrderCancelled, o, reason)
	}
	return o, nil
}

func (s *Service) publish(ctx context.Context, eventType string, o *models.Order, reason string) {
	p := events.OrderPayload{
		OrderID:     o.ID.Hex(),
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		Method:      string(o.Payment.Method),
		Total:       o.Totals.Total,
		Reason:      reason,
	}
	if o.UserID != nil {
		p.UserID = o.UserID.Hex()
	}
	if err := s.Events.Publish(ctx, eventType, p.OrderID, p); err != nil {
		s.ErrorLog.Printf("orders: publish %s for %s: %v", eventType, o.OrderNumber, err)
	}
}
