// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStatus is the fulfilment state of an order. Legal transitions are
// defined in package orderflow.
type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusAccepted       OrderStatus = "accepted"
	StatusPreparing      OrderStatus = "preparing"
	StatusReadyForPickup OrderStatus = "ready_for_pickup"
	StatusDispatched     OrderStatus = "dispatched"
	StatusInTransit      OrderStatus = "in_transit"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
)

// OrderStatuses lists every status along the happy path, then cancelled.
var OrderStatuses = []OrderStatus{
	StatusPending, StatusAccepted, StatusPreparing, StatusReadyForPickup,
	StatusDispatched, StatusInTransit, StatusDelivered, StatusCancelled,
}

func (s OrderStatus) String() string { return string(s) }

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusPreparing, StatusReadyForPickup,
		StatusDispatched, StatusInTransit, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s ends the order's lifecycle.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentTelebirr       PaymentMethod = "telebirr"
	PaymentCBEBirr        PaymentMethod = "cbe_birr"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
)

var PaymentMethods = []PaymentMethod{
	PaymentCashOnDelivery, PaymentTelebirr, PaymentCBEBirr, PaymentBankTransfer,
}

func (p PaymentMethod) Valid() bool {
	for _, m := range PaymentMethods {
		if p == m {
			return true
		}
	}
	return false
}

// PaymentStatus tracks settlement independently of fulfilment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// OrderItem is one line of an order. Name, image and price are copied
// from the product when the order is placed.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"product" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Image     string             `bson:"image,omitempty" json:"image,omitempty"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Price     Money              `bson:"price" json:"price"`
	SellerID  primitive.ObjectID `bson:"seller" json:"sellerId"`
	Category  Category           `bson:"category,omitempty" json:"category,omitempty"`
	LineTotal Money              `bson:"lineTotal" json:"lineTotal"`
}

// TrackingUpdate is one entry of the append-only tracking log.
type TrackingUpdate struct {
	ID        string             `bson:"id" json:"id"`
	Status    OrderStatus        `bson:"status" json:"status"`
	Message   string             `bson:"message" json:"message"`
	Location  string             `bson:"location,omitempty" json:"location,omitempty"`
	ActorID   primitive.ObjectID `bson:"actor,omitempty" json:"actorId,omitempty"`
	ActorRole Role               `bson:"actorRole,omitempty" json:"actorRole,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// Order is a customer purchase, possibly spanning several sellers.
type Order struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNumber string             `bson:"orderNumber" json:"orderNumber"`
	CustomerID  primitive.ObjectID `bson:"customer" json:"customerId"`
	Items       []OrderItem        `bson:"items" json:"items"`

	ShippingAddress Address       `bson:"shippingAddress" json:"shippingAddress"`
	ContactPhone    string        `bson:"contactPhone,omitempty" json:"contactPhone,omitempty"`
	PaymentMethod   PaymentMethod `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus   PaymentStatus `bson:"paymentStatus" json:"paymentStatus"`

	Status          OrderStatus         `bson:"orderStatus" json:"orderStatus"`
	DeliveryAgentID *primitive.ObjectID `bson:"deliveryAgent,omitempty" json:"deliveryAgentId,omitempty"`
	TrackingUpdates []TrackingUpdate    `bson:"trackingUpdates" json:"trackingUpdates"`

	Notes        string `bson:"notes,omitempty" json:"notes,omitempty"`
	CancelReason string `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`

	Subtotal    Money `bson:"subtotal" json:"subtotal"`
	DeliveryFee Money `bson:"deliveryFee" json:"deliveryFee"`
	VAT         Money `bson:"vat" json:"vat"`
	Total       Money `bson:"total" json:"total"`

	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt" json:"updatedAt"`
	DeliveredAt *time.Time `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
}

// HasSeller reports whether any line belongs to the seller.
func (o *Order) HasSeller(sellerID primitive.ObjectID) bool {
	for i := range o.Items {
		if o.Items[i].SellerID == sellerID {
			return true
		}
	}
	return false
}

// HasProduct reports whether any line is for the product.
func (o *Order) HasProduct(productID primitive.ObjectID) bool {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return true
		}
	}
	return false
}

// SellerIDs returns the distinct sellers in item order.
func (o *Order) SellerIDs() []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(o.Items))
	ids := make([]primitive.ObjectID, 0, len(o.Items))
	for i := range o.Items {
		id := o.Items[i].SellerID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// IsAssignedTo reports whether the delivery agent owns this order.
func (o *Order) IsAssignedTo(agentID primitive.ObjectID) bool {
	return o.DeliveryAgentID != nil && *o.DeliveryAgentID == agentID
}

// ItemCount is the total number of units.
func (o *Order) ItemCount() int {
	n := 0
	for i := range o.Items {
		n += o.Items[i].Quantity
	}
	return n
}

// LastUpdate returns the newest tracking entry, if any.
func (o *Order) LastUpdate() (TrackingUpdate, bool) {
	if len(o.TrackingUpdates) == 0 {
		return TrackingUpdate{}, false
	}
	return o.TrackingUpdates[len(o.TrackingUpdates)-1], true
}

// Pricing holds the checkout rules applied to an order.
type Pricing struct {
	VATRate               float64
	DeliveryFee           Money
	FreeDeliveryThreshold Money
}

// ApplyPricing fills line totals and the order totals from the items.
// Delivery is free when the subtotal reaches the threshold. VAT is charged
// on the subtotal only.
func (o *Order) ApplyPricing(p Pricing) {
	subtotal := Money{}
	for i := range o.Items {
		o.Items[i].LineTotal = o.Items[i].Price.Times(o.Items[i].Quantity)
		subtotal = subtotal.Add(o.Items[i].LineTotal)
	}
	o.Subtotal = subtotal
	o.DeliveryFee = p.DeliveryFee
	if p.FreeDeliveryThreshold.IsPositive() && subtotal.Cmp(p.FreeDeliveryThreshold) >= 0 {
		o.DeliveryFee = Money{}
	}
	o.VAT = subtotal.Rate(p.VATRate)
	o.Total = SumMoney(o.Subtotal, o.DeliveryFee, o.VAT)
}

// SellerSubtotal is the sum of line totals that belong to one seller.
func (o *Order) SellerSubtotal(sellerID primitive.ObjectID) Money {
	total := Money{}
	for i := range o.Items {
		if o.Items[i].SellerID == sellerID {
			total = total.Add(o.Items[i].LineTotal)
		}
	}
	return total
}
