package main

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"bookshop/internal/export"
	"bookshop/internal/models"
	"bookshop/internal/orders"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var slugRX = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	return strings.Trim(slugRX.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

type productInput struct {
	SKU           string               `json:"sku"`
	Name          string               `json:"name"`
	Slug          string               `json:"slug"`
	Description   string               `json:"description"`
	Images        []string             `json:"images"`
	CategoryID    *primitive.ObjectID  `json:"categoryId"`
	Price         float64              `json:"price"`
	DiscountPrice float64              `json:"discountPrice"`
	Stock         int                  `json:"stock"`
	Tax           models.TaxRates      `json:"tax"`
	Weight        float64              `json:"weight"`
	WeightUnit    string               `json:"weightUnit"`
	Dimensions    models.Dimensions    `json:"dimensions"`
	Status        models.ProductStatus `json:"status"`
}

// apply validates in and copies it onto p.
func (in productInput) apply(p *models.Product) error {
	in.SKU = strings.TrimSpace(in.SKU)
	in.Name = strings.TrimSpace(in.Name)
	if in.Slug == "" {
		in.Slug = in.Name
	}
	in.Slug = slugify(in.Slug)
	if in.Status == "" {
		in.Status = models.ProductDraft
	}
	if in.WeightUnit == "" {
		in.WeightUnit = "kg"
	}

	switch {
	case in.SKU == "":
		return models.Invalid("sku", "is required")
	case in.Name == "":
		return models.Invalid("name", "is required")
	case in.Slug == "":
		return models.Invalid("slug", "must contain letters or digits")
	case in.Price <= 0:
		return models.Invalid("price", "must be greater than zero")
	case in.DiscountPrice < 0 || (in.DiscountPrice > 0 && in.DiscountPrice >= in.Price):
		return models.Invalid("discountPrice", "must be below the price")
	case in.Stock < 0:
		return models.Invalid("stock", "must not be negative")
	case in.Weight < 0:
		return models.Invalid("weight", "must not be negative")
	case in.Tax.CGST < 0 || in.Tax.SGST < 0 || in.Tax.IGST < 0:
		return models.Invalid("tax", "rates must not be negative")
	case !in.Status.Valid():
		return models.Invalid("status", "must be active, inactive or draft")
	}

	p.SKU = in.SKU
	p.Name = in.Name
	p.Slug = in.Slug
	p.Description = in.Description
	p.Images = in.Images
	if p.Images == nil {
		p.Images = []string{}
	}
	p.CategoryID = in.CategoryID
	p.Price = in.Price
	p.DiscountPrice = in.DiscountPrice
	p.Stock = in.Stock
	p.Tax = in.Tax
	p.Weight = in.Weight
	p.WeightUnit = in.WeightUnit
	p.Dimensions = in.Dimensions
	p.Status = in.Status
	return nil
}

func (app *application) adminDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	revenue, err := app.DB.TotalRevenue(ctx)
	if err != nil {
		app.serverError(w, err)
		return
	}
	counts, err := app.DB.OrderCountsByStatus(ctx)
	if err != nil {
		app.serverError(w, err)
		return
	}
	products, err := app.DB.CountProducts(ctx)
	if err != nil {
		app.serverError(w, err)
		return
	}
	lowStock, err := app.DB.LowStockProducts(ctx, app.settings.Current().LowStockThreshold)
	if err != nil {
		app.serverError(w, err)
		return
	}

	var totalOrders int64
	for _, n := range counts {
		totalOrders += n
	}
	app.writeJSON(w, http.StatusOK, envelope{
		"totalRevenue":   revenue,
		"totalOrders":    totalOrders,
		"ordersByStatus": counts,
		"totalProducts":  products,
		"lowStock":       lowStock,
	})
}

func (app *application) adminListProducts(w http.ResponseWriter, r *http.Request) {
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
	if s := models.ProductStatus(r.URL.Query().Get("status")); s != "" {
		if !s.Valid() {
			app.errorFromErr(w, models.Invalid("status", "must be active, inactive or draft"))
			return
		}
		f.Status = s
	}

	res, err := app.DB.ListProducts(r.Context(), f, page, limit)
	if err != nil {
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, res)
}

func (app *application) adminShowProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	p, err := app.DB.GetProduct(r.Context(), id)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"product": p})
}

func (app *application) adminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in productInput
	if err := app.readJSON(w, r, &in); err != nil {
		app.errorFromErr(w, err)
		return
	}
	p := &models.Product{}
	if err := in.apply(p); err != nil {
		app.errorFromErr(w, err)
		return
	}
	if err := app.DB.InsertProduct(r.Context(), p); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			app.errorJSON(w, http.StatusConflict, "sku or slug already in use")
			return
		}
		app.serverError(w, err)
		return
	}
	app.infoLog.Printf("product %s created (%s)", p.SKU, p.ID.Hex())
	app.writeJSON(w, http.StatusCreated, envelope{"product": p})
}

func (app *application) adminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	var in productInput
	if err := app.readJSON(w, r, &in); err != nil {
		app.errorFromErr(w, err)
		return
	}
	p, err := app.DB.GetProduct(r.Context(), id)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	if err := in.apply(p); err != nil {
		app.errorFromErr(w, err)
		return
	}
	if err := app.DB.UpdateProduct(r.Context(), p); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			app.errorJSON(w, http.StatusConflict, "sku or slug already in use")
			return
		}
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"product": p})
}

func (app *application) adminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	if err := app.DB.DeleteProduct(r.Context(), id); err != nil {
		app.errorFromErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) adminExportProducts(w http.ResponseWriter, r *http.Request) {
	products, names, err := app.catalogueForExport(r.Context())
	if err != nil {
		app.serverError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="products-`+time.Now().UTC().Format("20060102")+`.csv"`)
	if err := export.WriteProductsCSV(w, products, names); err != nil {
		// Headers are gone by now; all we can do is log.
		app.errorLog.Printf("export products: %v", err)
	}
}

type categoryInput struct {
	Name        string              `json:"name"`
	Slug        string              `json:"slug"`
	Description string              `json:"description"`
	ParentID    *primitive.ObjectID `json:"parentId"`
	IsActive    *bool               `json:"isActive"`
}

func (in categoryInput) apply(c *models.Category) error {
	name := strings.TrimSpace(in.Name)
	slug := in.Slug
	if slug == "" {
		slug = name
	}
	slug = slugify(slug)
	switch {
	case name == "":
		return models.Invalid("name", "is required")
	case slug == "":
		return models.Invalid("slug", "must contain letters or digits")
	case in.ParentID != nil && *in.ParentID == c.ID:
		return models.Invalid("parentId", "must not be the category itself")
	}
	c.Name = name
	c.Slug = slug
	c.Description = strings.TrimSpace(in.Description)
	c.ParentID = in.ParentID
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	return nil
}

func (app *application) validateCategoryParent(ctx context.Context, c *models.Category) error {
	if c.ParentID == nil {
		return nil
	}
	cats, err := app.DB.ListCategories(ctx, false)
	if err != nil {
		return err
	}
	return checkCategoryParent(cats, c)
}

// checkCategoryParent requires c's parent to exist and not to sit below c.
func checkCategoryParent(cats []*models.Category, c *models.Category) error {
	found := false
	for _, other := range cats {
		if other.ID == *c.ParentID {
			found = true
			break
		}
	}
	switch {
	case !found:
		return models.Invalid("parentId", "does not exist")
	case !c.ID.IsZero() && models.ParentCreatesCycle(cats, c.ID, *c.ParentID):
		return models.Invalid("parentId", "must not be a subcategory of the category")
	}
	return nil
}

func (app *application) adminListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := app.DB.ListCategories(r.Context(), false)
	if err != nil {
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"data": cats})
}

func (app *application) adminCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in categoryInput
	if err := app.readJSON(w, r, &in); err != nil {
		app.errorFromErr(w, err)
		return
	}
	c := &models.Category{}
	if err := in.apply(c); err != nil {
		app.errorFromErr(w, err)
		return
	}
	if err := app.validateCategoryParent(r.Context(), c); err != nil {
		app.errorFromErr(w, err)
		return
	}
	if err := app.DB.InsertCategory(r.Context(), c); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			app.errorJSON(w, http.StatusConflict, "slug already in use")
			return
		}
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusCreated, envelope{"category": c})
}

func (app *application) adminUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	var in categoryInput
	if err := app.readJSON(w, r, &in); err != nil {
		app.errorFromErr(w, err)
		return
	}
	c, err := app.DB.GetCategory(r.Context(), id)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	if err := in.apply(c); err != nil {
		app.errorFromErr(w, err)
		return
	}
	if err := app.validateCategoryParent(r.Context(), c); err != nil {
		app.errorFromErr(w, err)
		return
	}
	if err := app.DB.UpdateCategory(r.Context(), c); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			app.errorJSON(w, http.StatusConflict, "slug already in use")
			return
		}
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"category": c})
}

func (app *application) adminDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	if err := app.DB.DeactivateCategory(r.Context(), id); err != nil {
		app.errorFromErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) adminListReviews(w http.ResponseWriter, r *http.Request) {
	page, limit, err := paginationParams(r)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	res, err := app.DB.ListAllReviews(r.Context(), page, limit)
	if err != nil {
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, res)
}

func (app *application) adminDeleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	if err := app.DB.DeleteReview(r.Context(), id); err != nil {
		app.errorFromErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) adminListOrders(w http.ResponseWriter, r *http.Request) {
	page, limit, err := paginationParams(r)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	q := r.URL.Query()
	f := models.OrderFilter{
		Status:        models.OrderStatus(q.Get("status")),
		PaymentStatus: models.PaymentStatus(q.Get("paymentStatus")),
		OrderNumber:   strings.TrimSpace(q.Get("orderNumber")),
	}
	if f.Status != "" && !orders.ValidStatus(f.Status) {
		app.errorFromErr(w, models.Invalid("status", "unknown order status"))
		return
	}
	res, err := app.DB.ListOrders(r.Context(), f, page, limit)
	if err != nil {
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, res)
}

func (app *application) adminShowOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	o, err := app.DB.GetOrder(r.Context(), id)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	resp := envelope{"order": o}
	if d, err := app.DB.GetDeliveryByOrder(r.Context(), id); err == nil {
		resp["delivery"] = d
	} else if !errors.Is(err, models.ErrNoRecord) {
		app.serverError(w, err)
		return
	}
	if in, err := app.DB.GetIntent(r.Context(), id); err == nil {
		resp["shipmentIntent"] = in
	} else if !errors.Is(err, models.ErrNoRecord) {
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, resp)
}

func (app *application) adminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	var input struct {
		Status models.OrderStatus `json:"status"`
		Reason string             `json:"reason"`
	}
	if err := app.readJSON(w, r, &input); err != nil {
		app.errorFromErr(w, err)
		return
	}
	if input.Status == models.OrderCancelled && strings.TrimSpace(input.Reason) == "" {
		input.Reason = "cancelled by store"
	}

	o, err := app.orders.UpdateStatus(r.Context(), id, input.Status, strings.TrimSpace(input.Reason))
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"order": o})
}

func (app *application) adminCouriers(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	couriers, err := app.shipments.Couriers(r.Context(), id)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"data": couriers})
}

func (app *application) adminCreateShipment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	o, err := app.shipments.CreateShipment(r.Context(), id)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusCreated, envelope{"order": o})
}

func (app *application) adminAssignCourier(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	var input struct {
		CourierID int `json:"courierId"`
	}
	if r.ContentLength != 0 {
		if err := app.readJSON(w, r, &input); err != nil {
			app.errorFromErr(w, err)
			return
		}
	}
	if input.CourierID < 0 {
		app.errorFromErr(w, models.Invalid("courierId", "must not be negative"))
		return
	}

	o, d, err := app.shipments.AssignCourier(r.Context(), id, input.CourierID)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"order": o, "delivery": d})
}

func (app *application) adminSyncTracking(w http.ResponseWriter, r *http.Request) {
	d, err := app.shipments.SyncStatus(r.Context(), r.URL.Query().Get(":awb"))
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"delivery": d})
}

func (app *application) adminListDeliveries(w http.ResponseWriter, r *http.Request) {
	page, limit, err := paginationParams(r)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	status := models.DeliveryStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		app.errorFromErr(w, models.Invalid("status", "unknown delivery status"))
		return
	}
	res, err := app.DB.ListDeliveries(r.Context(), status, page, limit)
	if err != nil {
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, res)
}

// adminUpdateDelivery records a manual tracking edit. Marking a delivery
// delivered also completes its shipped order.
func (app *application) adminUpdateDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	var input struct {
		Status            *models.DeliveryStatus `json:"status"`
		LastLocation      string                 `json:"lastLocation"`
		Notes             string                 `json:"notes"`
		EstimatedDelivery *time.Time             `json:"estimatedDelivery"`
	}
	if err := app.readJSON(w, r, &input); err != nil {
		app.errorFromErr(w, err)
		return
	}
	if input.Status != nil && !input.Status.Valid() {
		app.errorFromErr(w, models.Invalid("status", "unknown delivery status"))
		return
	}

	u := models.TrackingUpdate{
		Status:       input.Status,
		LastLocation: strings.TrimSpace(input.LastLocation),
		Notes:        strings.TrimSpace(input.Notes),
	}
	delivered := input.Status != nil && *input.Status == models.DeliveryDelivered
	if delivered {
		now := time.Now().UTC()
		u.DeliveredAt = &now
	}

	d, err := app.DB.UpdateDelivery(r.Context(), id, u, input.EstimatedDelivery)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	if delivered {
		_, err := app.orders.UpdateStatus(r.Context(), d.OrderID, models.OrderDelivered, "")
		if err != nil && !errors.Is(err, orders.ErrInvalidTransition) {
			app.errorLog.Printf("mark order %s delivered: %v", d.OrderID.Hex(), err)
		}
	}
	app.writeJSON(w, http.StatusOK, envelope{"delivery": d})
}

func (app *application) adminListContacts(w http.ResponseWriter, r *http.Request) {
	page, limit, err := paginationParams(r)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	status := models.ContactStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		app.errorFromErr(w, models.Invalid("status", "must be new, read or replied"))
		return
	}
	res, err := app.DB.ListContacts(r.Context(), status, page, limit)
	if err != nil {
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, res)
}

func (app *application) adminSetContactStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	var input struct {
		Status models.ContactStatus `json:"status"`
	}
	if err := app.readJSON(w, r, &input); err != nil {
		app.errorFromErr(w, err)
		return
	}
	if !input.Status.Valid() {
		app.errorFromErr(w, models.Invalid("status", "must be new, read or replied"))
		return
	}
	if err := app.DB.SetContactStatus(r.Context(), id, input.Status); err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"id": id, "status": input.Status})
}

func (app *application) adminListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, err := paginationParams(r)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	res, err := app.users.List(r.Context(), page, limit)
	if err != nil {
		app.serverError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, res)
}

func (app *application) adminSetUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	var input struct {
		Role models.Role `json:"role"`
	}
	if err := app.readJSON(w, r, &input); err != nil {
		app.errorFromErr(w, err)
		return
	}
	if input.Role != models.RoleUser && input.Role != models.RoleAdmin {
		app.errorFromErr(w, models.Invalid("role", "must be user or admin"))
		return
	}
	if id.Hex() == app.principal(r).UserID && input.Role != models.RoleAdmin {
		app.errorFromErr(w, models.Invalid("role", "you cannot demote yourself"))
		return
	}
	if err := app.users.SetRole(r.Context(), id, input.Role); err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"id": id, "role": input.Role})
}

func (app *application) adminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	if id.Hex() == app.principal(r).UserID {
		app.errorFromErr(w, models.Invalid("id", "you cannot delete your own account"))
		return
	}
	if err := app.users.Delete(r.Context(), id); err != nil {
		app.errorFromErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) adminGetSettings(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, http.StatusOK, envelope{"settings": app.settings.Current()})
}

func (app *application) adminUpdateSettings(w http.ResponseWriter, r *http.Request) {
	s := app.settings.Current()
	if err := app.readJSON(w, r, &s); err != nil {
		app.errorFromErr(w, err)
		return
	}
	saved, err := app.settings.Update(r.Context(), s)
	if err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.infoLog.Printf("settings updated by %s", app.principal(r).Email)
	app.writeJSON(w, http.StatusOK, envelope{"settings": saved})
}

func (app *application) adminReloadSettings(w http.ResponseWriter, r *http.Request) {
	if err := app.settings.Reload(r.Context()); err != nil {
		app.errorFromErr(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"settings": app.settings.Current()})
}
