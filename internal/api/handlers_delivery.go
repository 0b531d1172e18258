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

type availabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

// AssignedDeliveries lists orders assigned to the agent.
//
// @Summary Assigned deliveries
// @Tags Delivery
// @Produce json
// @Security BearerAuth
// @Param status query string false "Comma separated statuses"
// @Success 200 {object} response.Envelope{data=[]models.Order}
// @Router /api/delivery/orders [get]
func (h *Handler) AssignedDeliveries(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	statuses := q.statuses("status")
	page := h.page(q)
	if verr := q.err(); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	orders, total, err := h.svc.Delivery.Assigned(r.Context(), currentUser(r), statuses, page)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	paginated(w, nonNilSlice(orders), page, total)
}

// AvailableDeliveries lists unassigned orders ready for pickup.
//
// @Summary Available deliveries
// @Tags Delivery
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=[]models.Order}
// @Router /api/delivery/orders/available [get]
func (h *Handler) AvailableDeliveries(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	page := h.page(q)
	if verr := q.err(); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	orders, total, err := h.svc.Delivery.Available(r.Context(), page)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	paginated(w, nonNilSlice(orders), page, total)
}

// ClaimDelivery assigns an available order to the calling agent.
//
// @Summary Claim delivery
// @Tags Delivery
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order id"
// @Success 200 {object} response.Envelope{data=models.Order}
// @Failure 409 {object} response.Envelope "Already assigned"
// @Router /api/delivery/orders/{id}/claim [post]
func (h *Handler) ClaimDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Order")
	if !ok {
		return
	}
	o, err := h.svc.Delivery.Claim(r.Context(), currentUser(r), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Delivery claimed", o)
}

// UpdateDeliveryStatus records delivery progress.
//
// @Summary Update delivery status
// @Tags Delivery
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order id"
// @Param body body service.StatusInput true "New status"
// @Success 200 {object} response.Envelope{data=models.Order}
// @Router /api/delivery/orders/{id}/status [patch]
func (h *Handler) UpdateDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Order")
	if !ok {
		return
	}
	var in service.StatusInput
	if !decode(w, r, &in) {
		return
	}
	o, err := h.svc.Delivery.UpdateStatus(r.Context(), currentUser(r), id, in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Delivery status updated", o)
}

// SetAvailability toggles whether the agent accepts new assignments.
//
// @Summary Set availability
// @Tags Delivery
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.User}
// @Router /api/delivery/availability [patch]
func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	var in availabilityRequest
	if !decode(w, r, &in) {
		return
	}
	u, err := h.svc.Delivery.SetAvailability(r.Context(), currentUser(r), *in.Available)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	msg := "You are now unavailable"
	if *in.Available {
		msg = "You are now available"
	}
	response.OKMessage(w, msg, u)
}

// DeliveryStats summarises the agent's workload.
//
// @Summary Delivery stats
// @Tags Delivery
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=service.DeliveryStats}
// @Router /api/delivery/stats [get]
func (h *Handler) DeliveryStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Delivery.Stats(r.Context(), currentUser(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OK(w, st)
}
