package main

import (
	"net/http"

	"github.com/bmizerany/pat"
)

func (app *application) routes() http.Handler {
	mux := pat.New()

	mux.Get("/healthz", http.HandlerFunc(app.healthz))

	mux.Post("/api/auth/register", http.HandlerFunc(app.register))
	mux.Post("/api/auth/login", http.HandlerFunc(app.login))
	mux.Post("/api/auth/logout", http.HandlerFunc(app.logout))
	mux.Get("/api/auth/me", app.requireAuthentication(app.currentUser))

	mux.Get("/api/user/addresses", app.requireAuthentication(app.listAddresses))
	mux.Post("/api/user/addresses", app.requireAuthentication(app.addAddress))
	mux.Put("/api/user/addresses/:id", app.requireAuthentication(app.updateAddress))
	mux.Del("/api/user/addresses/:id", app.requireAuthentication(app.removeAddress))
	mux.Post("/api/user/addresses/:id/default", app.requireAuthentication(app.setDefaultAddress))

	mux.Get("/api/products", http.HandlerFunc(app.listProducts))
	mux.Get("/api/products/:id/reviews", http.HandlerFunc(app.listProductReviews))
	mux.Post("/api/products/:id/reviews", http.HandlerFunc(app.createReview))
	mux.Get("/api/products/:slug", http.HandlerFunc(app.showProduct))
	mux.Get("/api/categories/tree", http.HandlerFunc(app.categoryTree))
	mux.Get("/api/categories", http.HandlerFunc(app.listCategories))

	mux.Post("/api/checkout", http.HandlerFunc(app.checkout))
	mux.Post("/api/payment/verify", http.HandlerFunc(app.verifyPayment))
	mux.Post("/api/payment/webhook", http.HandlerFunc(app.paymentWebhook))

	mux.Get("/api/shipping/serviceability", http.HandlerFunc(app.serviceability))
	mux.Post("/api/shipping/webhook", http.HandlerFunc(app.shippingWebhook))
	mux.Get("/api/track/:awb", http.HandlerFunc(app.trackShipment))

	mux.Get("/api/orders", app.requireAuthentication(app.listMyOrders))
	mux.Get("/api/orders/:id/invoice", app.requireAuthentication(app.showInvoice))
	mux.Post("/api/orders/:id/cancel", app.requireAuthentication(app.cancelMyOrder))
	mux.Get("/api/orders/:id", app.requireAuthentication(app.showMyOrder))

	mux.Post("/api/contact", http.HandlerFunc(app.createContact))
	mux.Get("/api/settings", http.HandlerFunc(app.publicSettings))

	mux.Get("/api/admin/dashboard", app.requireAdmin(app.adminDashboard))

	mux.Get("/api/admin/products/export", app.requireAdmin(app.adminExportProducts))
	mux.Get("/api/admin/products", app.requireAdmin(app.adminListProducts))
	mux.Post("/api/admin/products", app.requireAdmin(app.adminCreateProduct))
	mux.Get("/api/admin/products/:id", app.requireAdmin(app.adminShowProduct))
	mux.Put("/api/admin/products/:id", app.requireAdmin(app.adminUpdateProduct))
	mux.Del("/api/admin/products/:id", app.requireAdmin(app.adminDeleteProduct))

	mux.Get("/api/admin/categories", app.requireAdmin(app.adminListCategories))
	mux.Post("/api/admin/categories", app.requireAdmin(app.adminCreateCategory))
	mux.Put("/api/admin/categories/:id", app.requireAdmin(app.adminUpdateCategory))
	mux.Del("/api/admin/categories/:id", app.requireAdmin(app.adminDeleteCategory))

	mux.Get("/api/admin/reviews", app.requireAdmin(app.adminListReviews))
	mux.Del("/api/admin/reviews/:id", app.requireAdmin(app.adminDeleteReview))

	mux.Get("/api/admin/orders", app.requireAdmin(app.adminListOrders))
	mux.Get("/api/admin/orders/:id/couriers", app.requireAdmin(app.adminCouriers))
	mux.Post("/api/admin/orders/:id/shipment/assign", app.requireAdmin(app.adminAssignCourier))
	mux.Post("/api/admin/orders/:id/shipment", app.requireAdmin(app.adminCreateShipment))
	mux.Put("/api/admin/orders/:id/status", app.requireAdmin(app.adminUpdateOrderStatus))
	mux.Get("/api/admin/orders/:id", app.requireAdmin(app.adminShowOrder))
	mux.Post("/api/admin/tracking/:awb/sync", app.requireAdmin(app.adminSyncTracking))

	mux.Get("/api/admin/deliveries", app.requireAdmin(app.adminListDeliveries))
	mux.Put("/api/admin/deliveries/:id", app.requireAdmin(app.adminUpdateDelivery))

	mux.Get("/api/admin/contacts", app.requireAdmin(app.adminListContacts))
	mux.Put("/api/admin/contacts/:id/status", app.requireAdmin(app.adminSetContactStatus))

	mux.Get("/api/admin/users", app.requireAdmin(app.adminListUsers))
	mux.Put("/api/admin/users/:id/role", app.requireAdmin(app.adminSetUserRole))
	mux.Del("/api/admin/users/:id", app.requireAdmin(app.adminDeleteUser))

	mux.Get("/api/admin/settings", app.requireAdmin(app.adminGetSettings))
	mux.Put("/api/admin/settings", app.requireAdmin(app.adminUpdateSettings))
	mux.Post("/api/admin/settings/reload", app.requireAdmin(app.adminReloadSettings))

	return app.requestID(app.logRequest(app.recoverPanic(app.session.LoadAndSave(mux))))
}
