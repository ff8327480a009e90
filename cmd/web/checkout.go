package main

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"bookshop/internal/auth"
	"bookshop/internal/models"
	"bookshop/internal/orders"
	"bookshop/internal/shipping"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// checkout places an order for the signed-in user or for a guest.
func (app *application) checkout(w http.ResponseWriter, r *http.Request) {
	var req orders.CheckoutRequest
	if err := app.readJSON(w, r, &req); err != nil {
		app.errorFromErr(w, err)
		return
	}

	var userID *primitive.ObjectID
	if id, err := app.sessionUserID(r); err == nil {
		userID = &id
	}

	res, err := app.orders.Checkout(r.Context(), userID, req)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusCreated, res)
}

// verifyPayment receives the fields the gateway's checkout widget hands to
// the browser after a successful payment.
func (app *application) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var input struct {
		OrderID   string `json:"razorpay_order_id"`
		PaymentID string `json:"razorpay_payment_id"`
		Signature string `json:"razorpay_signature"`
	}
	if err := app.readJSON(w, r, &input); err != nil {
		app.errorFromErr(w, err)
		return
	}
	if input.OrderID == "" || input.PaymentID == "" || input.Signature == "" {
		app.errorFromErr(w, models.Invalid("body", "razorpay_order_id, razorpay_payment_id and razorpay_signature are required"))
		return
	}

	o, err := app.orders.ConfirmPayment(r.Context(), input.OrderID, input.PaymentID, input.Signature)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"order": o})
}

func (app *application) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		app.errorFromErr(w, models.Invalid("body", "could not be read"))
		return
	}
	if err := app.orders.HandleWebhook(r.Context(), body, r.Header.Get("X-Razorpay-Signature")); err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"status": "ok"})
}

// serviceability quotes couriers from the store's pickup pincode to the
// requested one.
func (app *application) serviceability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pincode := q.Get("pincode")
	if !orders.ValidPincode(pincode) {
		app.errorFromErr(w, models.Invalid("pincode", "must be a 6 digit pincode"))
		return
	}
	weight, err := floatParam(q.Get("weight"), "weight")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	if weight <= 0 {
		weight = shipping.MinWeightKg
	}
	cod, err := boolParam(q.Get("cod"), "cod")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}

	cfg := app.settings.Current()
	if cfg.PickupPincode == "" {
		app.errorJSON(w, http.StatusServiceUnavailable, "shipping is not configured")
		return
	}

	couriers, err := app.carrier.Serviceability(r.Context(), cfg.PickupPincode, pincode, weight, cod)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"data": couriers})
}

// shippingWebhook acknowledges a carrier status push at once and leaves the
// refresh to the tracking worker. A full queue drops the push; the next one,
// or a manual sync, catches up.
func (app *application) shippingWebhook(w http.ResponseWriter, r *http.Request) {
	if token := app.cfg.Shipping.WebhookToken; token != "" {
		got := r.Header.Get("X-Api-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			app.clientError(w, http.StatusUnauthorized)
			return
		}
	}

	var input struct {
		AWB           string `json:"awb"`
		CurrentStatus string `json:"current_status"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || strings.TrimSpace(input.AWB) == "" {
		app.errorFromErr(w, models.Invalid("awb", "is required"))
		return
	}

	select {
	case app.trackingQueue <- strings.TrimSpace(input.AWB):
	default:
		app.errorLog.Printf("tracking queue full, dropped update for %s (%s)", input.AWB, input.CurrentStatus)
	}
	app.writeJSON(w, http.StatusOK, envelope{"status": "ok"})
}

func (app *application) trackShipment(w http.ResponseWriter, r *http.Request) {
	d, err := app.DB.GetDeliveryByTracking(r.Context(), r.URL.Query().Get(":awb"))
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"delivery": d})
}

func (app *application) listMyOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := app.sessionUserID(r)
	if err != nil {
		app.clientError(w, http.StatusUnauthorized)
		return
	}
	page, limit, err := paginationParams(r)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	f := models.OrderFilter{UserID: &userID, Status: models.OrderStatus(r.URL.Query().Get("status"))}
	res, err := app.DB.ListOrders(r.Context(), f, page, limit)
	if err != nil {
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, res)
}

// ownOrder loads the order named in the path. Orders of other users are
// reported as missing unless the caller is an admin.
func (app *application) ownOrder(r *http.Request) (*models.Order, error) {
	id, err := idParam(r, "id")
	if err != nil {
		return nil, err
	}
	o, err := app.DB.GetOrder(r.Context(), id)
	if err != nil {
		return nil, err
	}
	p := app.principal(r)
	if o.UserID != nil && o.UserID.Hex() == p.UserID {
		return o, nil
	}
	if app.policy.Authorize(p, auth.Admin).Allowed {
		return o, nil
	}
	return nil, models.ErrNoRecord
}

func (app *application) showMyOrder(w http.ResponseWriter, r *http.Request) {
	o, err := app.ownOrder(r)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	resp := envelope{"order": o}
	d, err := app.DB.GetDeliveryByOrder(r.Context(), o.ID)
	switch {
	case err == nil:
		resp["delivery"] = d
	case !errors.Is(err, models.ErrNoRecord):
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, resp)
}

func (app *application) cancelMyOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := app.sessionUserID(r)
	if err != nil {
		app.clientError(w, http.StatusUnauthorized)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	var input struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := app.readJSON(w, r, &input); err != nil {
			app.errorFromErr(w, err)
			return
		}
	}

	o, err := app.orders.Cancel(r.Context(), id, &userID, strings.TrimSpace(input.Reason))
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"order": o})
}

// showInvoice returns the invoice as JSON, or as a printable page with
// ?format=html.
func (app *application) showInvoice(w http.ResponseWriter, r *http.Request) {
	o, err := app.ownOrder(r)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	inv, err := app.DB.GetInvoiceByOrder(r.Context(), o.ID)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}

	if r.URL.Query().Get("format") == "html" {
		app.render(w, http.StatusOK, "invoice.page.tmpl", &templateData{Invoice: inv, Order: o})
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"invoice": inv})
}
