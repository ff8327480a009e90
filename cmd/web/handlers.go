package main

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"bookshop/internal/models"
	"bookshop/internal/orders"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const minPasswordLength = 8

func (app *application) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := app.DB.Ping(ctx); err != nil {
		app.errorLog.Printf("healthz: %v", err)
		app.errorJSON(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"status": "ok"})
}

func validEmail(email string) bool {
	a, err := mail.ParseAddress(email)
	return err == nil && a.Address == email
}

func (app *application) register(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := app.readJSON(w, r, &input); err != nil {
		app.errorFromErr(w, err)
		return
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)

	switch {
	case input.Name == "":
		app.errorFromErr(w, models.Invalid("name", "is required"))
		return
	case !validEmail(input.Email):
		app.errorFromErr(w, models.Invalid("email", "must be a valid email address"))
		return
	case len(input.Password) < minPasswordLength:
		app.errorFromErr(w, models.Invalid("password", "must be at least 8 characters"))
		return
	}

	user, err := app.users.Insert(r.Context(), input.Name, input.Email, input.Password, models.RoleUser)
	if err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			app.errorJSON(w, http.StatusConflict, "email address is already in use")
			return
		}
		app.serverError(w, err)
		return
	}
	if err := app.startSession(r, user); err != nil {
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusCreated, envelope{"user": user})
}

func (app *application) login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := app.readJSON(w, r, &input); err != nil {
		app.errorFromErr(w, err)
		return
	}

	user, err := app.users.Authenticate(r.Context(), input.Email, input.Password)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	if err := app.startSession(r, user); err != nil {
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"user": user})
}

// startSession renews the session token before storing the identity, so a
// token issued before login is never promoted.
func (app *application) startSession(r *http.Request, user *models.User) error {
	if err := app.session.RenewToken(r.Context()); err != nil {
		return err
	}
	app.session.Put(r.Context(), "authenticatedUserID", user.ID.Hex())
	app.session.Put(r.Context(), "userRole", string(user.Role))
	app.session.Put(r.Context(), "userEmail", user.Email)
	return nil
}

func (app *application) logout(w http.ResponseWriter, r *http.Request) {
	if err := app.session.RenewToken(r.Context()); err != nil {
		app.serverError(w, err)
		return
	}
	app.session.Remove(r.Context(), "authenticatedUserID")
	app.session.Remove(r.Context(), "userRole")
	app.session.Remove(r.Context(), "userEmail")
	app.writeJSON(w, http.StatusOK, envelope{"status": "logged out"})
}

// sessionUserID is only called behind requireAuthentication.
func (app *application) sessionUserID(r *http.Request) (primitive.ObjectID, error) {
	return models.ParseID(app.session.GetString(r.Context(), "authenticatedUserID"))
}

func (app *application) currentUser(w http.ResponseWriter, r *http.Request) {
	id, err := app.sessionUserID(r)
	if err != nil {
		app.clientError(w, http.StatusUnauthorized)
		return
	}
	user, err := app.users.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNoRecord) {
			app.session.Remove(r.Context(), "authenticatedUserID")
			app.clientError(w, http.StatusUnauthorized)
			return
		}
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"user": user})
}

func validateBookAddress(a models.Address) error {
	switch {
	case strings.TrimSpace(a.FullName) == "":
		return models.Invalid("fullName", "is required")
	case strings.TrimSpace(a.Phone) == "":
		return models.Invalid("phone", "is required")
	case strings.TrimSpace(a.Line1) == "":
		return models.Invalid("line1", "is required")
	case strings.TrimSpace(a.City) == "":
		return models.Invalid("city", "is required")
	case strings.TrimSpace(a.State) == "":
		return models.Invalid("state", "is required")
	case !orders.ValidPincode(a.Pincode):
		return models.Invalid("pincode", "must be a 6 digit pincode")
	}
	return nil
}

func (app *application) listAddresses(w http.ResponseWriter, r *http.Request) {
	id, err := app.sessionUserID(r)
	if err != nil {
		app.clientError(w, http.StatusUnauthorized)
		return
	}
	user, err := app.users.Get(r.Context(), id)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"addresses": user.Addresses, "defaultAddressId": user.DefaultAddressID})
}

func (app *application) addAddress(w http.ResponseWriter, r *http.Request) {
	userID, err := app.sessionUserID(r)
	if err != nil {
		app.clientError(w, http.StatusUnauthorized)
		return
	}
	var a models.Address
	if err := app.readJSON(w, r, &a); err != nil {
		app.errorFromErr(w, err)
		return
	}
	if a.Country == "" {
		a.Country = "India"
	}
	if err := validateBookAddress(a); err != nil {
		app.errorFromErr(w, err)
		return
	}

	saved, err := app.users.AddAddress(r.Context(), userID, a)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusCreated, envelope{"address": saved})
}

func (app *application) updateAddress(w http.ResponseWriter, r *http.Request) {
	userID, err := app.sessionUserID(r)
	if err != nil {
		app.clientError(w, http.StatusUnauthorized)
		return
	}
	addressID, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	var a models.Address
	if err := app.readJSON(w, r, &a); err != nil {
		app.errorFromErr(w, err)
		return
	}
	a.ID = addressID
	if a.Country == "" {
		a.Country = "India"
	}
	if err := validateBookAddress(a); err != nil {
		app.errorFromErr(w, err)
		return
	}

	if err := app.users.UpdateAddress(r.Context(), userID, a); err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"address": a})
}

func (app *application) removeAddress(w http.ResponseWriter, r *http.Request) {
	userID, err := app.sessionUserID(r)
	if err != nil {
		app.clientError(w, http.StatusUnauthorized)
		return
	}
	addressID, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	if err := app.users.RemoveAddress(r.Context(), userID, addressID); err != nil {
		app.errorFromErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	userID, err := app.sessionUserID(r)
	if err != nil {
		app.clientError(w, http.StatusUnauthorized)
		return
	}
	addressID, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	if err := app.users.SetDefaultAddress(r.Context(), userID, addressID); err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"defaultAddressId": addressID})
}

// productFilter reads the catalogue query string shared by the public and
// admin listings.
func productFilter(r *http.Request) (models.ProductFilter, error) {
	q := r.URL.Query()
	f := models.ProductFilter{
		Search:  strings.TrimSpace(q.Get("q")),
		InStock: q.Get("inStock") == "true",
		Sort:    q.Get("sort"),
	}
	if raw := q.Get("category"); raw != "" {
		id, err := models.ParseID(raw)
		if err != nil {
			return f, models.Invalid("category", "must be a category id")
		}
		f.CategoryID = &id
	}
	var err error
	if f.MinPrice, err = floatParam(q.Get("minPrice"), "minPrice"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = floatParam(q.Get("maxPrice"), "maxPrice"); err != nil {
		return f, err
	}
	return f, nil
}

func (app *application) listProducts(w http.ResponseWriter, r *http.Request) {
	page, limit, err := paginationParams(r)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	f, err := productFilter(r)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	f.Status = models.ProductActive

	res, err := app.DB.ListProducts(r.Context(), f, page, limit)
	if err != nil {
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, res)
}

func (app *application) showProduct(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get(":slug")
	p, err := app.DB.GetProductBySlug(r.Context(), slug)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	if p.Status != models.ProductActive {
		app.clientError(w, http.StatusNotFound)
		return
	}

	rating, err := app.DB.ProductRating(r.Context(), p.ID)
	if err != nil {
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"product": p, "rating": rating})
}

func (app *application) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := app.DB.ListCategories(r.Context(), true)
	if err != nil {
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"data": cats})
}

func (app *application) categoryTree(w http.ResponseWriter, r *http.Request) {
	tree, err := app.DB.CategoryTree(r.Context())
	if err != nil {
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"data": tree})
}

func (app *application) listProductReviews(w http.ResponseWriter, r *http.Request) {
	productID, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	page, limit, err := paginationParams(r)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	res, err := app.DB.ListReviews(r.Context(), productID, page, limit)
	if err != nil {
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, res)
}

// createReview accepts reviews from signed-in users and from guests, who
// must leave a name and an email.
func (app *application) createReview(w http.ResponseWriter, r *http.Request) {
	productID, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	var input struct {
		Rating  int    `json:"rating"`
		Title   string `json:"title"`
		Comment string `json:"comment"`
		Name    string `json:"name"`
		Email   string `json:"email"`
	}
	if err := app.readJSON(w, r, &input); err != nil {
		app.errorFromErr(w, err)
		return
	}
	if input.Rating < 1 || input.Rating > 5 {
		app.errorFromErr(w, models.Invalid("rating", "must be between 1 and 5"))
		return
	}
	if strings.TrimSpace(input.Comment) == "" {
		app.errorFromErr(w, models.Invalid("comment", "is required"))
		return
	}

	p, err := app.DB.GetProduct(r.Context(), productID)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	if p.Status != models.ProductActive {
		app.clientError(w, http.StatusNotFound)
		return
	}

	review := &models.Review{
		ProductID: productID,
		Rating:    input.Rating,
		Title:     strings.TrimSpace(input.Title),
		Comment:   strings.TrimSpace(input.Comment),
	}
	if userID, err := app.sessionUserID(r); err == nil {
		user, err := app.users.Get(r.Context(), userID)
		if err != nil {
			app.errorFromErr(w, err)
			return
		}
		review.UserID = &user.ID
		review.AuthorName = user.Name
	} else {
		input.Name = strings.TrimSpace(input.Name)
		input.Email = strings.TrimSpace(input.Email)
		if input.Name == "" {
			app.errorFromErr(w, models.Invalid("name", "is required for guest reviews"))
			return
		}
		if !validEmail(input.Email) {
			app.errorFromErr(w, models.Invalid("email", "must be a valid email address"))
			return
		}
		review.AuthorName = input.Name
		review.GuestEmail = input.Email
	}

	if err := app.DB.InsertReview(r.Context(), review); err != nil {
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusCreated, envelope{"review": review})
}

func (app *application) createContact(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		Subject string `json:"subject"`
		Message string `json:"message"`
	}
	if err := app.readJSON(w, r, &input); err != nil {
		app.errorFromErr(w, err)
		return
	}
	c := &models.ContactMessage{
		Name:    strings.TrimSpace(input.Name),
		Email:   strings.TrimSpace(input.Email),
		Phone:   strings.TrimSpace(input.Phone),
		Subject: strings.TrimSpace(input.Subject),
		Message: strings.TrimSpace(input.Message),
		Status:  models.ContactNew,
	}
	switch {
	case c.Name == "":
		app.errorFromErr(w, models.Invalid("name", "is required"))
		return
	case !validEmail(c.Email):
		app.errorFromErr(w, models.Invalid("email", "must be a valid email address"))
		return
	case c.Message == "":
		app.errorFromErr(w, models.Invalid("message", "is required"))
		return
	}

	if err := app.DB.InsertContact(r.Context(), c); err != nil {
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusCreated, envelope{"id": c.ID})
}

// publicSettings exposes what the storefront needs to price a basket and
// pick a payment method.
func (app *application) publicSettings(w http.ResponseWriter, r *http.Request) {
	s := app.settings.Current()
	app.writeJSON(w, http.StatusOK, envelope{
		"storeName":             s.StoreName,
		"currency":              s.Currency,
		"shippingTiers":         s.ShippingTiers,
		"freeShippingThreshold": s.FreeShippingThreshold,
		"enableOnlinePayment":   s.EnableOnlinePayment,
		"enableCod":             s.EnableCOD,
		"paymentKeyId":          app.cfg.Payment.KeyID,
	})
}
