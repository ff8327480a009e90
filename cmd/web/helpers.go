package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"

	"bookshop/internal/fulfillment"
	"bookshop/internal/models"
	"bookshop/internal/orders"
	"bookshop/internal/payment"
	"bookshop/internal/redisx"
	"bookshop/internal/repository"
	"bookshop/internal/shipping"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxBodyBytes = 1 << 20

type envelope map[string]any

func (app *application) writeJSON(w http.ResponseWriter, status int, data any) {
	js, err := json.Marshal(data)
	if err != nil {
		app.serverError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(js, '\n'))
}

// readJSON decodes a single JSON value from the body into dst. Unknown
// fields, trailing data and bodies over 1 MB are rejected as validation
// errors.
func (app *application) readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &syntaxErr):
			return models.Invalid("body", fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset))
		case errors.Is(err, io.ErrUnexpectedEOF):
			return models.Invalid("body", "malformed JSON")
		case errors.As(err, &typeErr):
			if typeErr.Field != "" {
				return models.Invalid(typeErr.Field, "has the wrong type")
			}
			return models.Invalid("body", "has the wrong type")
		case errors.Is(err, io.EOF):
			return models.Invalid("body", "must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return models.Invalid(strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`), "is not allowed")
		case errors.As(err, &maxErr):
			return models.Invalid("body", "must not be larger than 1MB")
		default:
			return err
		}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return models.Invalid("body", "must contain a single JSON value")
	}
	return nil
}

func (app *application) serverError(w http.ResponseWriter, err error) {
	trace := fmt.Sprintf("%s\n%s", err.Error(), debug.Stack())
	app.errorLog.Output(2, trace)
	app.errorJSON(w, http.StatusInternalServerError, "internal server error")
}

func (app *application) clientError(w http.ResponseWriter, status int) {
	app.errorJSON(w, status, strings.ToLower(http.StatusText(status)))
}

func (app *application) errorJSON(w http.ResponseWriter, status int, message string) {
	app.writeJSON(w, status, envelope{"error": message})
}

// errorFromErr answers with the status that err maps to. Anything it does
// not recognise is logged and answered with a generic 500.
func (app *application) errorFromErr(w http.ResponseWriter, err error) {
	var (
		validation *models.ValidationError
		stock      *orders.OutOfStockError
		carrierErr *shipping.APIError
		gatewayErr *payment.APIError
	)
	switch {
	case errors.As(err, &validation):
		app.errorJSON(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, models.ErrInvalidID):
		app.errorJSON(w, http.StatusBadRequest, "invalid id")
	case errors.Is(err, payment.ErrInvalidSignature):
		app.errorJSON(w, http.StatusBadRequest, "invalid payment signature")
	case errors.Is(err, repository.ErrInvalidCredentials):
		app.errorJSON(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, models.ErrNoRecord):
		app.clientError(w, http.StatusNotFound)
	case errors.Is(err, shipping.ErrNotServiceable):
		app.errorJSON(w, http.StatusUnprocessableEntity, shipping.ErrNotServiceable.Error())
	case errors.As(err, &stock):
		app.errorJSON(w, http.StatusConflict, fmt.Sprintf("%s is out of stock (available %d)", stock.SKU, stock.Available))
	case errors.Is(err, models.ErrDuplicate):
		app.errorJSON(w, http.StatusConflict, "already exists")
	case errors.Is(err, fulfillment.ErrAlreadyShipped):
		app.errorJSON(w, http.StatusConflict, "order already shipped")
	case errors.Is(err, fulfillment.ErrNoShipment):
		app.errorJSON(w, http.StatusConflict, "order has no carrier shipment yet")
	case errors.Is(err, fulfillment.ErrNotShippable):
		app.errorJSON(w, http.StatusConflict, "order must be confirmed before shipping")
	case errors.Is(err, orders.ErrInvalidTransition):
		app.errorJSON(w, http.StatusConflict, "order status cannot change that way")
	case errors.Is(err, redisx.ErrLocked):
		app.errorJSON(w, http.StatusConflict, "order is being processed, try again shortly")
	case errors.As(err, &carrierErr):
		app.errorJSON(w, http.StatusBadGateway, carrierErr.Message)
	case errors.As(err, &gatewayErr):
		app.errorJSON(w, http.StatusBadGateway, gatewayErr.Description)
	case errors.Is(err, context.DeadlineExceeded):
		app.errorJSON(w, http.StatusGatewayTimeout, "upstream timed out")
	default:
		app.serverError(w, err)
	}
}

// paginationParams reads page and limit from the query string. Missing
// values fall back to the defaults; malformed ones are rejected.
func paginationParams(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), "page")
	if err != nil {
		return 0, 0, err
	}
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		return 0, 0, err
	}
	page, limit = models.NormalizePage(page, limit)
	return page, limit, nil
}

func intParam(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, models.Invalid(field, "must be a positive integer")
	}
	return n, nil
}

func floatParam(raw, field string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0, models.Invalid(field, "must be a positive number")
	}
	return f, nil
}

// boolParam accepts what strconv.ParseBool does, so both cod=1 and
// cod=true work.
func boolParam(raw, field string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, models.Invalid(field, "must be true or false")
	}
	return b, nil
}

// idParam parses the pat capture name as an ObjectID.
func idParam(r *http.Request, name string) (primitive.ObjectID, error) {
	return models.ParseID(r.URL.Query().Get(":" + name))
}
