// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/events"
	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/metrics"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/notify"
	"github.com/tomtom215/merkato/internal/orderflow"
	"github.com/tomtom215/merkato/internal/store"
	"github.com/tomtom215/merkato/internal/validation"
)

const (
	orderNumberPrefix   = "MRK"
	orderNumberAttempts = 3
	maxOrderLines       = 50
)

// assignableStatuses are the statuses in which an agent may still be
// attached: not terminal and not yet dispatched.
var assignableStatuses = []models.OrderStatus{
	models.StatusPending,
	models.StatusAccepted,
	models.StatusPreparing,
	models.StatusReadyForPickup,
}

// OrderItemInput is one requested line.
type OrderItemInput struct {
	ProductID string `json:"productId" validate:"required,objectid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=100"`
}

// PlaceOrderInput is the body of POST /orders. Items is ignored when
// FromCart is set.
type PlaceOrderInput struct {
	Items           []OrderItemInput `json:"items" validate:"max=50,dive"`
	FromCart        bool             `json:"fromCart"`
	ShippingAddress AddressInput     `json:"shippingAddress"`
	ContactPhone    string           `json:"contactPhone" validate:"omitempty,et_phone"`
	PaymentMethod   string           `json:"paymentMethod" validate:"omitempty,payment_method"`
	Notes           string           `json:"notes" validate:"max=500"`
}

// StatusInput is the body of PATCH /orders/{id}/status.
type StatusInput struct {
	Status   string `json:"status" validate:"required,order_status"`
	Message  string `json:"message" validate:"max=500"`
	Location string `json:"location" validate:"max=200"`
	Reason   string `json:"reason" validate:"max=500"`
}

// PlacedOrder is the result of a checkout.
type PlacedOrder struct {
	Order        *models.Order        `json:"order"`
	PriceChanges []models.PriceChange `json:"priceChanges,omitempty"`
}

// OrderService places orders and drives them through the status machine.
type OrderService struct {
	*base
}

type orderLine struct {
	productID primitive.ObjectID
	quantity  int
	snapshot  *models.CartItem
}

// Place creates an order for customer. Stock is reserved per line with a
// conditional decrement; when any line cannot be reserved the lines
// reserved so far are returned and the request fails with a StockError.
// The order always uses live prices; differences from cart snapshots are
// reported as PriceChanges.
func (s *OrderService) Place(ctx context.Context, customer *models.User, in PlaceOrderInput) (*PlacedOrder, error) {
	placed, err := s.place(ctx, customer, in)
	if err != nil {
		metrics.RecordOrderPlacementFailure(placementFailure(err))
	}
	return placed, err
}

// placementFailure buckets a Place error for the failure counter.
func placementFailure(err error) string {
	var verr *validation.RequestValidationError
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return "unavailable"
	case errors.As(err, &verr), errors.Is(err, ErrBadRequest), errors.Is(err, ErrEmptyOrder):
		return "validation"
	default:
		return "internal"
	}
}

func (s *OrderService) place(ctx context.Context, customer *models.User, in PlaceOrderInput) (*PlacedOrder, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	lines, err := s.lines(ctx, customer.ID, in)
	if err != nil {
		return nil, err
	}

	products := make([]*models.Product, len(lines))
	for i, l := range lines {
		p, err := s.purchasable(ctx, l.productID)
		if err != nil {
			return nil, err
		}
		if p.SellerID == customer.ID {
			return nil, badRequest("You cannot order your own product " + p.Name)
		}
		if !p.InStock(l.quantity) {
			return nil, &StockError{ProductID: p.ID.Hex(), Name: p.Name, Requested: l.quantity, Available: p.Stock}
		}
		products[i] = p
	}

	reserved, err := s.reserve(ctx, lines, products)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := s.buildOrder(customer, in, lines, products, now)
	if err := s.create(ctx, order); err != nil {
		s.release(ctx, lines[:reserved])
		return nil, err
	}

	var changes []models.PriceChange
	for i, l := range lines {
		if l.snapshot != nil && !l.snapshot.Price.Equal(products[i].Price) {
			changes = append(changes, models.PriceChange{
				ProductID: products[i].ID,
				Name:      products[i].Name,
				OldPrice:  l.snapshot.Price,
				NewPrice:  products[i].Price,
			})
		}
	}
	if in.FromCart {
		if err := s.store().Carts.Clear(ctx, customer.ID); err != nil {
			logWarn(ctx, err, "Failed to clear cart after checkout")
		}
	}

	metrics.RecordOrderPlaced(string(order.PaymentMethod), order.Total.Float64())
	s.emit(ctx, events.TopicOrderCreated, events.NewOrderCreated(order))
	s.email(ctx, customer, notify.TemplateOrderConfirmation, notify.OrderConfirmationData{Order: order})
	for _, p := range products {
		s.checkLowStock(ctx, p)
	}

	logging.Ctx(ctx).Info().
		Str("order_id", order.ID.Hex()).
		Str("order_number", order.OrderNumber).
		Str("total", order.Total.String()).
		Int("lines", len(order.Items)).
		Msg("Order placed")
	return &PlacedOrder{Order: order, PriceChanges: changes}, nil
}

// lines resolves the requested lines, merging repeated products.
func (s *OrderService) lines(ctx context.Context, customerID primitive.ObjectID, in PlaceOrderInput) ([]orderLine, error) {
	var raw []orderLine
	if in.FromCart {
		cart, err := s.store().Carts.Get(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("load cart: %w", err)
		}
		for i := range cart.Items {
			item := cart.Items[i]
			raw = append(raw, orderLine{productID: item.ProductID, quantity: item.Quantity, snapshot: &item})
		}
		if len(raw) == 0 {
			return nil, newError(ErrEmptyOrder, "Your cart is empty")
		}
	} else {
		if len(in.Items) == 0 {
			return nil, validation.NewRequestError("items", "items must contain at least one product")
		}
		for _, it := range in.Items {
			id, _ := primitive.ObjectIDFromHex(it.ProductID)
			raw = append(raw, orderLine{productID: id, quantity: it.Quantity})
		}
	}

	merged := make([]orderLine, 0, len(raw))
	index := make(map[primitive.ObjectID]int, len(raw))
	for _, l := range raw {
		if i, ok := index[l.productID]; ok {
			merged[i].quantity += l.quantity
			continue
		}
		index[l.productID] = len(merged)
		merged = append(merged, l)
	}
	if len(merged) > maxOrderLines {
		return nil, validation.NewRequestError("items", "items must contain at most 50 products")
	}
	return merged, nil
}

// reserve decrements stock line by line. On failure it restores the lines
// already reserved. It returns how many lines were reserved and refreshes
// products with their post-decrement state.
func (s *OrderService) reserve(ctx context.Context, lines []orderLine, products []*models.Product) (int, error) {
	for i, l := range lines {
		updated, err := s.store().Products.DecrementStock(ctx, l.productID, l.quantity)
		if err != nil {
			s.release(ctx, lines[:i])
			if errors.Is(err, store.ErrInsufficientStock) {
				available := products[i].Stock
				if fresh, ferr := s.store().Products.GetByID(ctx, l.productID); ferr == nil {
					available = fresh.Stock
				}
				return 0, &StockError{ProductID: l.productID.Hex(), Name: products[i].Name, Requested: l.quantity, Available: available}
			}
			return 0, fmt.Errorf("reserve stock: %w", err)
		}
		products[i] = updated
	}
	return len(lines), nil
}

// release returns reserved stock. Failures are logged; the caller has
// already failed and cannot do more.
func (s *OrderService) release(ctx context.Context, lines []orderLine) {
	for _, l := range lines {
		if err := s.store().Products.IncrementStock(ctx, l.productID, l.quantity); err != nil {
			logging.Ctx(ctx).Error().Err(err).
				Str("product_id", l.productID.Hex()).
				Int("quantity", l.quantity).
				Msg("Failed to restore reserved stock")
		}
	}
}

func (s *OrderService) buildOrder(customer *models.User, in PlaceOrderInput, lines []orderLine, products []*models.Product, now time.Time) *models.Order {
	method := models.PaymentMethod(in.PaymentMethod)
	if method == "" {
		method = models.PaymentCashOnDelivery
	}
	phone := in.ContactPhone
	if phone == "" {
		phone = customer.Phone
	}

	o := &models.Order{
		CustomerID:      customer.ID,
		Items:           make([]models.OrderItem, len(lines)),
		ShippingAddress: *in.ShippingAddress.Model(),
		ContactPhone:    validation.NormalizePhone(phone),
		PaymentMethod:   method,
		PaymentStatus:   models.PaymentPending,
		Status:          models.StatusPending,
		Notes:           strings.TrimSpace(in.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
		TrackingUpdates: []models.TrackingUpdate{{
			ID:        uuid.NewString(),
			Status:    models.StatusPending,
			Message:   "Order placed",
			ActorID:   customer.ID,
			ActorRole: customer.Role,
			Timestamp: now,
		}},
	}
	for i, l := range lines {
		p := products[i]
		o.Items[i] = models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     p.PrimaryImage(),
			Quantity:  l.quantity,
			Price:     p.Price,
			SellerID:  p.SellerID,
			Category:  p.Category,
		}
	}
	o.ApplyPricing(s.pricing())
	return o
}

// create inserts the order, drawing a new number when one collides.
func (s *OrderService) create(ctx context.Context, o *models.Order) error {
	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		o.OrderNumber = NewOrderNumber(o.CreatedAt)
		err = s.store().Orders.Create(ctx, o)
		if !errors.Is(err, store.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// NewOrderNumber formats MRK-YYYYMMDD-XXXXXX with six random hex digits.
func NewOrderNumber(t time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return orderNumberPrefix + "-" + t.UTC().Format("20060102") + "-" + suffix
}

// List returns the orders visible to actor: their own as a customer,
// orders containing their products as a seller, assigned orders as an
// agent and everything as an admin.
func (s *OrderService) List(ctx context.Context, actor *models.User, statuses []models.OrderStatus, page store.Page) ([]models.Order, int64, error) {
	f := store.OrderFilter{Statuses: statuses, Page: page}
	id := actor.ID
	switch actor.Role {
	case models.RoleCustomer:
		f.CustomerID = &id
	case models.RoleSeller:
		f.SellerID = &id
	case models.RoleDeliveryAgent:
		f.AgentID = &id
	case models.RoleAdmin:
	default:
		return nil, 0, forbidden("Not authorized to list orders")
	}
	return s.store().Orders.List(ctx, f)
}

// Get returns an order visible to actor. Orders the actor cannot see fail
// with ErrForbidden.
func (s *OrderService) Get(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Order, error) {
	o, err := s.order(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, o) {
		return nil, forbidden("Not authorized to view this order")
	}
	return o, nil
}

func canView(u *models.User, o *models.Order) bool {
	if u == nil {
		return false
	}
	switch u.Role {
	case models.RoleAdmin:
		return true
	case models.RoleCustomer:
		return o.CustomerID == u.ID
	case models.RoleSeller:
		return o.HasSeller(u.ID)
	case models.RoleDeliveryAgent:
		return o.IsAssignedTo(u.ID)
	}
	return false
}

// UpdateStatus moves an order to a new status on behalf of actor. The move
// must be legal and permitted for the actor's role, and the actor must be
// a party to the order. The store applies it only if nobody changed the
// status in between.
func (s *OrderService) UpdateStatus(ctx context.Context, actor *models.User, id primitive.ObjectID, in StatusInput) (*models.Order, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	to, err := orderflow.Parse(in.Status)
	if err != nil {
		return nil, validation.NewRequestError("status", "status must be a valid order status")
	}
	o, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, o, to, in)
}

// Cancel is UpdateStatus to cancelled with a reason.
func (s *OrderService) Cancel(ctx context.Context, actor *models.User, id primitive.ObjectID, reason string) (*models.Order, error) {
	return s.UpdateStatus(ctx, actor, id, StatusInput{Status: string(models.StatusCancelled), Reason: reason})
}

func (s *OrderService) transition(ctx context.Context, actor *models.User, o *models.Order, to models.OrderStatus, in StatusInput) (*models.Order, error) {
	from := o.Status
	if err := orderflow.Validate(from, to, actor.Role); err != nil {
		return nil, err
	}

	now := s.now()
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		msg = "Order " + strings.ToLower(orderflow.Describe(to).Label)
	}
	change := store.StatusChange{
		From: from,
		To:   to,
		Update: models.TrackingUpdate{
			ID:        uuid.NewString(),
			Status:    to,
			Message:   msg,
			Location:  strings.TrimSpace(in.Location),
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Timestamp: now,
		},
		At: now,
	}
	switch to {
	case models.StatusCancelled:
		reason := strings.TrimSpace(in.Reason)
		if reason == "" {
			reason = strings.TrimSpace(in.Message)
		}
		if reason == "" {
			reason = "Cancelled by " + strings.ReplaceAll(string(actor.Role), "_", " ")
		}
		change.CancelReason = reason
		if o.PaymentStatus == models.PaymentPaid {
			change.PaymentStatus = models.PaymentRefunded
		}
	case models.StatusDelivered:
		change.DeliveredAt = &now
		if o.PaymentMethod == models.PaymentCashOnDelivery {
			change.PaymentStatus = models.PaymentPaid
		}
	}

	updated, err := s.store().Orders.UpdateStatus(ctx, o.ID, change)
	if errors.Is(err, store.ErrConflict) {
		return nil, conflict("Order status changed concurrently, please reload and retry")
	}
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if to == models.StatusCancelled {
		s.restock(ctx, updated)
	}
	metrics.RecordOrderTransition(string(from), string(to), string(actor.Role))
	s.emit(ctx, events.TopicOrderStatusChanged, events.NewOrderStatusChanged(updated, from, actor))
	if customer, err := s.store().Users.GetByID(ctx, updated.CustomerID); err == nil {
		s.email(ctx, customer, notify.TemplateOrderStatusUpdate, notify.OrderStatusData{
			OrderID:     updated.ID.Hex(),
			OrderNumber: updated.OrderNumber,
			Status:      to,
			Message:     change.Update.Message,
			Location:    change.Update.Location,
		})
	}

	logging.Ctx(ctx).Info().
		Str("order_id", updated.ID.Hex()).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor_role", string(actor.Role)).
		Msg("Order status changed")
	return updated, nil
}

func (s *OrderService) restock(ctx context.Context, o *models.Order) {
	for _, it := range o.Items {
		if err := s.store().Products.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			logging.Ctx(ctx).Error().Err(err).
				Str("order_id", o.ID.Hex()).
				Str("product_id", it.ProductID.Hex()).
				Msg("Failed to restore stock for cancelled order")
		}
	}
}

// assign attaches agent to the order. requireUnassigned rejects orders that
// already have an agent, which is how concurrent claims are settled.
func (s *OrderService) assign(ctx context.Context, actor, agent *models.User, o *models.Order, requireUnassigned bool, statuses []models.OrderStatus) (*models.Order, error) {
	if !agent.CanDeliver() {
		return nil, badRequest("Delivery agent must be active and approved")
	}
	now := s.now()
	updated, err := s.store().Orders.Assign(ctx, o.ID, store.Assignment{
		AgentID:           agent.ID,
		Statuses:          statuses,
		RequireUnassigned: requireUnassigned,
		Update: models.TrackingUpdate{
			ID:        uuid.NewString(),
			Status:    o.Status,
			Message:   "Assigned to delivery agent " + agent.Name,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Timestamp: now,
		},
		At: now,
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, conflict("Order can no longer be assigned")
	}
	if err != nil {
		return nil, fmt.Errorf("assign order: %w", err)
	}

	s.emit(ctx, events.TopicOrderAssigned, events.OrderAssigned{
		OrderID:     updated.ID.Hex(),
		OrderNumber: updated.OrderNumber,
		CustomerID:  updated.CustomerID.Hex(),
		AgentID:     agent.ID.Hex(),
		AssignedBy:  actor.ID.Hex(),
		At:          now,
	})
	s.email(ctx, agent, notify.TemplateDeliveryAssignment, notify.DeliveryAssignmentData{
		OrderID:       updated.ID.Hex(),
		OrderNumber:   updated.OrderNumber,
		Address:       updated.ShippingAddress,
		ContactPhone:  updated.ContactPhone,
		ItemCount:     updated.ItemCount(),
		Total:         updated.Total,
		PaymentMethod: updated.PaymentMethod,
	})
	return updated, nil
}

// TrackingEntry is one tracking update with its presentation.
type TrackingEntry struct {
	models.TrackingUpdate
	Presentation orderflow.Presentation `json:"presentation"`
}

// Tracking is the tracking view of an order.
type Tracking struct {
	OrderID         string                 `json:"orderId"`
	OrderNumber     string                 `json:"orderNumber"`
	Status          models.OrderStatus     `json:"status"`
	Presentation    orderflow.Presentation `json:"presentation"`
	Progress        int                    `json:"progress"`
	DeliveryAgentID *primitive.ObjectID    `json:"deliveryAgentId,omitempty"`
	DeliveredAt     *time.Time             `json:"deliveredAt,omitempty"`
	Updates         []TrackingEntry        `json:"updates"`
	AllowedNext     []models.OrderStatus   `json:"allowedNext"`
}

// Tracking returns the tracking log of an order visible to actor.
func (s *OrderService) Tracking(ctx context.Context, actor *models.User, id primitive.ObjectID) (*Tracking, error) {
	o, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	t := &Tracking{
		OrderID:         o.ID.Hex(),
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		Presentation:    orderflow.Describe(o.Status),
		Progress:        orderflow.Progress(o.Status),
		DeliveryAgentID: o.DeliveryAgentID,
		DeliveredAt:     o.DeliveredAt,
		Updates:         make([]TrackingEntry, len(o.TrackingUpdates)),
		AllowedNext:     orderflow.AllowedFor(o.Status, actor.Role),
	}
	for i, u := range o.TrackingUpdates {
		t.Updates[i] = TrackingEntry{TrackingUpdate: u, Presentation: orderflow.Describe(u.Status)}
	}
	return t, nil
}

// StatusFlow is the transition table clients use to render order actions.
type StatusFlow struct {
	Statuses    []orderflow.Presentation `json:"statuses"`
	Transitions []orderflow.Edge         `json:"transitions"`
}

// StatusFlow returns every status with its presentation and the legal
// transitions with the roles allowed on each.
func (s *OrderService) StatusFlow() StatusFlow {
	return StatusFlow{Statuses: orderflow.DescribeAll(), Transitions: orderflow.Table()}
}
