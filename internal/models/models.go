package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Address struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	FullName string             `bson:"fullName" json:"fullName"`
	Phone    string             `bson:"phone" json:"phone"`
	Line1    string             `bson:"line1" json:"line1"`
	Line2    string             `bson:"line2,omitempty" json:"line2,omitempty"`
	City     string             `bson:"city" json:"city"`
	State    string             `bson:"state" json:"state"`
	Pincode  string             `bson:"pincode" json:"pincode"`
	Country  string             `bson:"country" json:"country"`
}

type User struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name             string              `bson:"name" json:"name"`
	Email            string              `bson:"email" json:"email"`
	PasswordHash     string              `bson:"passwordHash" json:"-"`
	Role             Role                `bson:"role" json:"role"`
	Addresses        []Address           `bson:"addresses" json:"addresses"`
	DefaultAddressID *primitive.ObjectID `bson:"defaultAddressId,omitempty" json:"defaultAddressId,omitempty"`
	CreatedAt        time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time           `bson:"updatedAt" json:"updatedAt"`
}

type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
	ProductDraft    ProductStatus = "draft"
)

func (s ProductStatus) Valid() bool {
	switch s {
	case ProductActive, ProductInactive, ProductDraft:
		return true
	}
	return false
}

// TaxRates are percentages, e.g. 9 for 9%.
type TaxRates struct {
	CGST float64 `bson:"cgst" json:"cgst"`
	SGST float64 `bson:"sgst" json:"sgst"`
	IGST float64 `bson:"igst" json:"igst"`
}

func (t TaxRates) IsZero() bool {
	return t.CGST == 0 && t.SGST == 0 && t.IGST == 0
}

type Dimensions struct {
	Length float64 `bson:"length" json:"length"`
	Width  float64 `bson:"width" json:"width"`
	Height float64 `bson:"height" json:"height"`
}

type Product struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	SKU           string              `bson:"sku" json:"sku"`
	Name          string              `bson:"name" json:"name"`
	Slug          string              `bson:"slug" json:"slug"`
	Description   string              `bson:"description" json:"description"`
	Images        []string            `bson:"images" json:"images"`
	CategoryID    *primitive.ObjectID `bson:"categoryId,omitempty" json:"categoryId,omitempty"`
	Price         float64             `bson:"price" json:"price"`
	DiscountPrice float64             `bson:"discountPrice,omitempty" json:"discountPrice,omitempty"`
	Stock         int                 `bson:"stock" json:"stock"`
	Tax           TaxRates            `bson:"tax" json:"tax"`
	Weight        float64             `bson:"weight" json:"weight"`
	WeightUnit    string              `bson:"weightUnit" json:"weightUnit"`
	Dimensions    Dimensions          `bson:"dimensions" json:"dimensions"`
	Status        ProductStatus       `bson:"status" json:"status"`
	CreatedAt     time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// SellingPrice is the discount price when one is set below the list price.
func (p *Product) SellingPrice() float64 {
	if p.DiscountPrice > 0 && p.DiscountPrice < p.Price {
		return p.DiscountPrice
	}
	return p.Price
}

type Category struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name        string              `bson:"name" json:"name"`
	Slug        string              `bson:"slug" json:"slug"`
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	ParentID    *primitive.ObjectID `bson:"parentId,omitempty" json:"parentId,omitempty"`
	IsActive    bool                `bson:"isActive" json:"isActive"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

type CategoryNode struct {
	*Category
	Children []*CategoryNode `json:"children"`
}

type Review struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ProductID  primitive.ObjectID  `bson:"productId" json:"productId"`
	UserID     *primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`
	AuthorName string              `bson:"authorName" json:"authorName"`
	GuestEmail string              `bson:"guestEmail,omitempty" json:"-"`
	Rating     int                 `bson:"rating" json:"rating"`
	Title      string              `bson:"title,omitempty" json:"title,omitempty"`
	Comment    string              `bson:"comment" json:"comment"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
}

type Rating struct {
	Average float64 `bson:"average" json:"average"`
	Count   int64   `bson:"count" json:"count"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentOnline PaymentMethod = "online"
	PaymentCOD    PaymentMethod = "cod"
)

// OrderItem is a snapshot of the product at purchase time. Later product
// edits never touch it.
type OrderItem struct {
	ProductID  primitive.ObjectID `bson:"productId" json:"productId"`
	Name       string             `bson:"name" json:"name"`
	SKU        string             `bson:"sku" json:"sku"`
	Price      float64            `bson:"price" json:"price"`
	Quantity   int                `bson:"quantity" json:"quantity"`
	Weight     float64            `bson:"weight,omitempty" json:"weight,omitempty"`
	WeightUnit string             `bson:"weightUnit,omitempty" json:"weightUnit,omitempty"`
	Tax        TaxRates           `bson:"tax" json:"tax"`
	TaxAmount  float64            `bson:"taxAmount" json:"taxAmount"`
	LineTotal  float64            `bson:"lineTotal" json:"lineTotal"`
}

type ShippingDetails struct {
	FullName string `bson:"fullName" json:"fullName"`
	Email    string `bson:"email" json:"email"`
	Phone    string `bson:"phone" json:"phone"`
	Line1    string `bson:"line1" json:"line1"`
	Line2    string `bson:"line2,omitempty" json:"line2,omitempty"`
	City     string `bson:"city" json:"city"`
	State    string `bson:"state" json:"state"`
	Pincode  string `bson:"pincode" json:"pincode"`
	Country  string `bson:"country" json:"country"`
}

type PaymentInfo struct {
	Method           PaymentMethod `bson:"method" json:"method"`
	Status           PaymentStatus `bson:"status" json:"status"`
	GatewayOrderID   string        `bson:"gatewayOrderId,omitempty" json:"gatewayOrderId,omitempty"`
	GatewayPaymentID string        `bson:"gatewayPaymentId,omitempty" json:"gatewayPaymentId,omitempty"`
	PaidAt           *time.Time    `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
}

type Totals struct {
	Subtotal float64 `bson:"subtotal" json:"subtotal"`
	CGST     float64 `bson:"cgst" json:"cgst"`
	SGST     float64 `bson:"sgst" json:"sgst"`
	IGST     float64 `bson:"igst" json:"igst"`
	Tax      float64 `bson:"tax" json:"tax"`
	Shipping float64 `bson:"shipping" json:"shipping"`
	Total    float64 `bson:"total" json:"total"`
}

type Order struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OrderNumber    string              `bson:"orderNumber" json:"orderNumber"`
	UserID         *primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`
	Items          []OrderItem         `bson:"items" json:"items"`
	Shipping       ShippingDetails     `bson:"shipping" json:"shipping"`
	Billing        ShippingDetails     `bson:"billing" json:"billing"`
	Payment        PaymentInfo         `bson:"payment" json:"payment"`
	Status         OrderStatus         `bson:"orderStatus" json:"orderStatus"`
	Totals         Totals              `bson:"totals" json:"totals"`
	TotalWeight    float64             `bson:"totalWeight,omitempty" json:"totalWeight,omitempty"`
	CarrierOrderID int64               `bson:"carrierOrderId,omitempty" json:"carrierOrderId,omitempty"`
	ShipmentID     int64               `bson:"shipmentId,omitempty" json:"shipmentId,omitempty"`
	AWB            string              `bson:"awb,omitempty" json:"awb,omitempty"`
	CourierName    string              `bson:"courierName,omitempty" json:"courierName,omitempty"`
	CancelReason   string              `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time           `bson:"updatedAt" json:"updatedAt"`
}

type DeliveryStatus string

const (
	DeliveryPending        DeliveryStatus = "pending"
	DeliveryPickedUp       DeliveryStatus = "picked_up"
	DeliveryInTransit      DeliveryStatus = "in_transit"
	DeliveryOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryDelivered      DeliveryStatus = "delivered"
	DeliveryFailed         DeliveryStatus = "failed"
	DeliveryReturned       DeliveryStatus = "returned"
)

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryPending, DeliveryPickedUp, DeliveryInTransit, DeliveryOutForDelivery,
		DeliveryDelivered, DeliveryFailed, DeliveryReturned:
		return true
	}
	return false
}

type Delivery struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderID           primitive.ObjectID `bson:"orderId" json:"orderId"`
	TrackingNumber    string             `bson:"trackingNumber" json:"trackingNumber"`
	Carrier           string             `bson:"carrier" json:"carrier"`
	Status            DeliveryStatus     `bson:"status" json:"status"`
	EstimatedDelivery *time.Time         `bson:"estimatedDelivery,omitempty" json:"estimatedDelivery,omitempty"`
	ActualDelivery    *time.Time         `bson:"actualDelivery,omitempty" json:"actualDelivery,omitempty"`
	LastLocation      string             `bson:"lastLocation,omitempty" json:"lastLocation,omitempty"`
	Notes             string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type InvoiceLine struct {
	Name      string  `bson:"name" json:"name"`
	SKU       string  `bson:"sku" json:"sku"`
	Quantity  int     `bson:"quantity" json:"quantity"`
	UnitPrice float64 `bson:"unitPrice" json:"unitPrice"`
	Taxable   float64 `bson:"taxable" json:"taxable"`
	CGST      float64 `bson:"cgst" json:"cgst"`
	SGST      float64 `bson:"sgst" json:"sgst"`
	IGST      float64 `bson:"igst" json:"igst"`
	Total     float64 `bson:"total" json:"total"`
}

// Invoice is written once at order placement. Only PaymentStatus changes
// afterwards.
type Invoice struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	InvoiceNumber string             `bson:"invoiceNumber" json:"invoiceNumber"`
	OrderID       primitive.ObjectID `bson:"orderId" json:"orderId"`
	OrderNumber   string             `bson:"orderNumber" json:"orderNumber"`
	StoreName     string             `bson:"storeName" json:"storeName"`
	Lines         []InvoiceLine      `bson:"lines" json:"lines"`
	Billing       ShippingDetails    `bson:"billing" json:"billing"`
	Shipping      ShippingDetails    `bson:"shipping" json:"shipping"`
	Totals        Totals             `bson:"totals" json:"totals"`
	PaymentMethod PaymentMethod      `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	IssuedAt      time.Time          `bson:"issuedAt" json:"issuedAt"`
}

type ContactStatus string

const (
	ContactNew     ContactStatus = "new"
	ContactRead    ContactStatus = "read"
	ContactReplied ContactStatus = "replied"
)

func (s ContactStatus) Valid() bool {
	return s == ContactNew || s == ContactRead || s == ContactReplied
}

type ContactMessage struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Phone     string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Subject   string             `bson:"subject" json:"subject"`
	Message   string             `bson:"message" json:"message"`
	Status    ContactStatus      `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// SettingsID is the fixed _id of the one settings document.
const SettingsID = "global"

type ShippingTier struct {
	MinSubtotal float64 `bson:"minSubtotal" json:"minSubtotal" mapstructure:"minSubtotal"`
	Cost        float64 `bson:"cost" json:"cost" mapstructure:"cost"`
}

type Settings struct {
	ID                    string         `bson:"_id" json:"-"`
	StoreName             string         `bson:"storeName" json:"storeName"`
	StoreState            string         `bson:"storeState" json:"storeState"`
	Currency              string         `bson:"currency" json:"currency"`
	TaxRate               float64        `bson:"taxRate" json:"taxRate"`
	ShippingTiers         []ShippingTier `bson:"shippingTiers" json:"shippingTiers"`
	FreeShippingThreshold float64        `bson:"freeShippingThreshold" json:"freeShippingThreshold"`
	EnableOnlinePayment   bool           `bson:"enableOnlinePayment" json:"enableOnlinePayment"`
	EnableCOD             bool           `bson:"enableCod" json:"enableCod"`
	PickupPincode         string         `bson:"pickupPincode" json:"pickupPincode"`
	PickupLocation        string         `bson:"pickupLocation" json:"pickupLocation"`
	LowStockThreshold     int            `bson:"lowStockThreshold" json:"lowStockThreshold"`
	UpdatedAt             time.Time      `bson:"updatedAt" json:"updatedAt"`
}

// DefaultSettings is written on first start when no settings document exists.
func DefaultSettings() Settings {
	return Settings{
		ID:         SettingsID,
		StoreName:  "Bookshop",
		StoreState: "Maharashtra",
		Currency:   "INR",
		TaxRate:    18,
		ShippingTiers: []ShippingTier{
			{MinSubtotal: 0, Cost: 80},
			{MinSubtotal: 500, Cost: 40},
		},
		FreeShippingThreshold: 999,
		EnableOnlinePayment:   true,
		EnableCOD:             true,
		PickupLocation:        "Primary",
		LowStockThreshold:     5,
	}
}

type IntentStep string

const (
	StepCreate IntentStep = "create"
	StepAssign IntentStep = "assign"
	StepDone   IntentStep = "done"
)

// ShipmentIntent records how far the shipment workflow for an order got.
type ShipmentIntent struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderID        primitive.ObjectID `bson:"orderId" json:"orderId"`
	IdempotencyKey string             `bson:"idempotencyKey" json:"idempotencyKey"`
	Step           IntentStep         `bson:"step" json:"step"`
	CarrierOrderID int64              `bson:"carrierOrderId,omitempty" json:"carrierOrderId,omitempty"`
	ShipmentID     int64              `bson:"shipmentId,omitempty" json:"shipmentId,omitempty"`
	CourierID      int                `bson:"courierId,omitempty" json:"courierId,omitempty"`
	Attempts       int                `bson:"attempts" json:"attempts"`
	LastError      string             `bson:"lastError,omitempty" json:"lastError,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}
