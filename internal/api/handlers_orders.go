// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package api

import (
	"net/http"

	"github.com/tomtom215/merkato/internal/response"
	"github.com/tomtom215/merkato/internal/service"
)

// cancelRequest is the optional body of POST /orders/{id}/cancel.
type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// OrderStatusFlow describes the order state machine.
//
// @Summary Order status flow
// @Description Every status with its label and the transitions each role may perform.
// @Tags Orders
// @Produce json
// @Success 200 {object} response.Envelope{data=service.StatusFlow}
// @Router /api/orders/status-flow [get]
func (h *Handler) OrderStatusFlow(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.svc.Orders.StatusFlow())
}

// PlaceOrder checks out the given items or the customer's cart.
//
// @Summary Place order
// @Description Stock is reserved atomically per line. Prices are read live; differences from the cart are listed in priceChanges.
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.PlaceOrderInput true "Order"
// @Success 201 {object} response.Envelope{data=service.PlacedOrder}
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Insufficient stock"
// @Router /api/orders [post]
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var in service.PlaceOrderInput
	if !decode(w, r, &in) {
		return
	}
	placed, err := h.svc.Orders.Place(r.Context(), currentUser(r), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.Created(w, "Order placed successfully", placed)
}

// ListOrders lists the orders visible to the caller: their own as a
// customer, those containing their products as a seller, those assigned
// to them as an agent, all of them as an administrator.
//
// @Summary List orders
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope{data=[]models.Order}
// @Router /api/orders [get]
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	statuses := q.statuses("status")
	page := h.page(q)
	if verr := q.err(); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	orders, total, err := h.svc.Orders.List(r.Context(), currentUser(r), statuses, page)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	paginated(w, nonNilSlice(orders), page, total)
}

// GetOrder returns one order.
//
// @Summary Get order
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order id"
// @Success 200 {object} response.Envelope{data=models.Order}
// @Failure 404 {object} response.Envelope
// @Router /api/orders/{id} [get]
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Order")
	if !ok {
		return
	}
	o, err := h.svc.Orders.Get(r.Context(), currentUser(r), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OK(w, o)
}

// OrderTracking returns the append-only tracking log.
//
// @Summary Track order
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order id"
// @Success 200 {object} response.Envelope{data=service.Tracking}
// @Router /api/orders/{id}/tracking [get]
func (h *Handler) OrderTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Order")
	if !ok {
		return
	}
	t, err := h.svc.Orders.Tracking(r.Context(), currentUser(r), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OK(w, t)
}

// UpdateOrderStatus moves an order along the state machine.
//
// @Summary Update order status
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order id"
// @Param body body service.StatusInput true "New status"
// @Success 200 {object} response.Envelope{data=models.Order}
// @Failure 400 {object} response.Envelope "Invalid transition"
// @Failure 403 {object} response.Envelope
// @Router /api/orders/{id}/status [patch]
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Order")
	if !ok {
		return
	}
	var in service.StatusInput
	if !decode(w, r, &in) {
		return
	}
	o, err := h.svc.Orders.UpdateStatus(r.Context(), currentUser(r), id, in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Order status updated", o)
}

// CancelOrder cancels an order and restocks its items.
//
// @Summary Cancel order
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order id"
// @Success 200 {object} response.Envelope{data=models.Order}
// @Router /api/orders/{id}/cancel [post]
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Order")
	if !ok {
		return
	}
	var in cancelRequest
	if r.ContentLength != 0 && !decode(w, r, &in) {
		return
	}
	o, err := h.svc.Orders.Cancel(r.Context(), currentUser(r), id, in.Reason)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Order cancelled", o)
}
