// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package api

import (
	"net/http"
	"strings"

	"github.com/tomtom215/merkato/internal/audit"
	"github.com/tomtom215/merkato/internal/response"
	"github.com/tomtom215/merkato/internal/service"
	"github.com/tomtom215/merkato/internal/store"
)

type productStatusRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

type productFeatureRequest struct {
	IsFeatured *bool `json:"isFeatured" validate:"required"`
}

// AdminListUsers lists accounts.
//
// @Summary List users
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param role query string false "customer, seller, delivery_agent or admin"
// @Param isApproved query bool false "Approval state"
// @Param isActive query bool false "Active state"
// @Param available query bool false "Delivery agent availability"
// @Param search query string false "Name, email or business name"
// @Success 200 {object} response.Envelope{data=[]models.User}
// @Router /api/admin/users [get]
func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	f := store.UserFilter{
		Role:       q.role("role"),
		IsApproved: q.boolean("isApproved"),
		IsActive:   q.boolean("isActive"),
		Available:  q.boolean("available"),
		Search:     q.str("search"),
		Page:       h.page(q),
	}
	if verr := q.err(); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	users, total, err := h.svc.Admin.ListUsers(r.Context(), f)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	paginated(w, nonNilSlice(users), f.Page, total)
}

// AdminGetUser returns one account.
//
// @Summary Get user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User id"
// @Success 200 {object} response.Envelope{data=models.User}
// @Router /api/admin/users/{id} [get]
func (h *Handler) AdminGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "User")
	if !ok {
		return
	}
	u, err := h.svc.Admin.GetUser(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OK(w, u)
}

// AdminSetUserStatus activates or deactivates an account.
//
// @Summary Set user status
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User id"
// @Param body body service.UserStatusInput true "Status"
// @Success 200 {object} response.Envelope{data=models.User}
// @Router /api/admin/users/{id}/status [patch]
func (h *Handler) AdminSetUserStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "User")
	if !ok {
		return
	}
	var in service.UserStatusInput
	if !decode(w, r, &in) {
		return
	}
	u, err := h.svc.Admin.SetUserActive(r.Context(), currentUser(r), id, in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	msg := "User deactivated"
	if u.IsActive {
		msg = "User activated"
	}
	response.OKMessage(w, msg, u)
}

// AdminApproveUser approves a seller or delivery agent.
//
// @Summary Approve user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User id"
// @Success 200 {object} response.Envelope{data=models.User}
// @Router /api/admin/users/{id}/approve [patch]
func (h *Handler) AdminApproveUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "User")
	if !ok {
		return
	}
	u, err := h.svc.Admin.Approve(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "User approved", u)
}

// AdminDeleteUser removes an account.
//
// @Summary Delete user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User id"
// @Success 200 {object} response.Envelope
// @Router /api/admin/users/{id} [delete]
func (h *Handler) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "User")
	if !ok {
		return
	}
	if err := h.svc.Admin.DeleteUser(r.Context(), currentUser(r), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "User deleted", nil)
}

// AdminListProducts lists every product, inactive ones included.
//
// @Summary List all products
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=[]models.Product}
// @Router /api/admin/products [get]
func (h *Handler) AdminListProducts(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	f := h.productFilter(q)
	if verr := q.err(); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	products, total, err := h.svc.Admin.ListProducts(r.Context(), f)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	paginated(w, nonNilSlice(products), f.Page, total)
}

// AdminSetProductStatus activates or hides a product.
//
// @Summary Set product status
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product id"
// @Success 200 {object} response.Envelope{data=models.Product}
// @Router /api/admin/products/{id}/status [patch]
func (h *Handler) AdminSetProductStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Product")
	if !ok {
		return
	}
	var in productStatusRequest
	if !decode(w, r, &in) {
		return
	}
	p, err := h.svc.Admin.SetProductActive(r.Context(), id, *in.IsActive)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Product status updated", p)
}

// AdminSetProductFeatured features or unfeatures a product.
//
// @Summary Feature product
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product id"
// @Success 200 {object} response.Envelope{data=models.Product}
// @Router /api/admin/products/{id}/feature [patch]
func (h *Handler) AdminSetProductFeatured(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Product")
	if !ok {
		return
	}
	var in productFeatureRequest
	if !decode(w, r, &in) {
		return
	}
	p, err := h.svc.Admin.SetProductFeatured(r.Context(), id, *in.IsFeatured)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Product updated", p)
}

// AdminDeleteProduct removes any product.
//
// @Summary Delete product
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product id"
// @Success 200 {object} response.Envelope
// @Router /api/admin/products/{id} [delete]
func (h *Handler) AdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Product")
	if !ok {
		return
	}
	if err := h.svc.Admin.DeleteProduct(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Product deleted", nil)
}

// AdminListOrders lists every order.
//
// @Summary List all orders
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Comma separated statuses"
// @Param unassigned query bool false "Only orders without a delivery agent"
// @Param customer query string false "Customer id"
// @Param seller query string false "Seller id"
// @Param agent query string false "Delivery agent id"
// @Success 200 {object} response.Envelope{data=[]models.Order}
// @Router /api/admin/orders [get]
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	f := store.OrderFilter{
		CustomerID: q.objectID("customer"),
		SellerID:   q.objectID("seller"),
		AgentID:    q.objectID("agent"),
		Statuses:   q.statuses("status"),
		Page:       h.page(q),
	}
	if un := q.boolean("unassigned"); un != nil {
		f.Unassigned = *un
	}
	if verr := q.err(); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	orders, total, err := h.svc.Admin.ListOrders(r.Context(), f)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	paginated(w, nonNilSlice(orders), f.Page, total)
}

// AdminAssignOrder assigns or reassigns a delivery agent.
//
// @Summary Assign delivery agent
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order id"
// @Param body body service.AssignInput true "Agent"
// @Success 200 {object} response.Envelope{data=models.Order}
// @Failure 400 {object} response.Envelope "Agent not approved, inactive or unavailable"
// @Router /api/admin/orders/{id}/assign [patch]
func (h *Handler) AdminAssignOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Order")
	if !ok {
		return
	}
	var in service.AssignInput
	if !decode(w, r, &in) {
		return
	}
	o, err := h.svc.Admin.AssignOrder(r.Context(), currentUser(r), id, in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Delivery agent assigned", o)
}

// AdminUpdateOrderStatus overrides an order's status. Transitions are
// still checked.
//
// @Summary Override order status
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order id"
// @Param body body service.StatusInput true "New status"
// @Success 200 {object} response.Envelope{data=models.Order}
// @Router /api/admin/orders/{id}/status [patch]
func (h *Handler) AdminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Order")
	if !ok {
		return
	}
	var in service.StatusInput
	if !decode(w, r, &in) {
		return
	}
	o, err := h.svc.Admin.UpdateOrderStatus(r.Context(), currentUser(r), id, in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Order status updated", o)
}

// AdminBulkEmail queues one message to every active user, or to one role.
// Sends are spaced out in the background; the totals land in the audit trail.
//
// @Summary Bulk email
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.BulkEmailInput true "Message"
// @Success 202 {object} response.Envelope{data=service.BulkJob}
// @Failure 503 {object} response.Envelope "Email not configured"
// @Router /api/admin/emails/bulk [post]
func (h *Handler) AdminBulkEmail(w http.ResponseWriter, r *http.Request) {
	var in service.BulkEmailInput
	if !decode(w, r, &in) {
		return
	}
	res, err := h.svc.Admin.BulkEmail(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.Accepted(w, "Bulk email queued", res)
}

// AdminAuditTrail searches the audit log.
//
// @Summary Audit trail
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param type query string false "Comma separated event types"
// @Param actor query string false "Actor id"
// @Param target query string false "Target id"
// @Param targetType query string false "user, product or order"
// @Param outcome query string false "success or failure"
// @Param since query string false "RFC 3339 time or date"
// @Param until query string false "RFC 3339 time or date"
// @Success 200 {object} response.Envelope{data=[]audit.Event}
// @Failure 503 {object} response.Envelope "Audit disabled"
// @Router /api/admin/audit [get]
func (h *Handler) AdminAuditTrail(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	page := h.page(q)
	f := audit.Filter{
		ActorID:    q.str("actor"),
		TargetID:   q.str("target"),
		TargetType: q.str("targetType"),
		Since:      q.timestamp("since"),
		Until:      q.timestamp("until"),
		Limit:      page.Limit,
		Offset:     page.Skip(),
	}
	if types := q.str("type"); types != "" {
		for _, t := range strings.Split(types, ",") {
			f.Types = append(f.Types, audit.EventType(strings.TrimSpace(t)))
		}
	}
	switch o := audit.Outcome(q.str("outcome")); o {
	case "", audit.OutcomeSuccess, audit.OutcomeFailure:
		f.Outcome = o
	default:
		q.fail("outcome must be success or failure")
	}
	if !f.Since.IsZero() && !f.Until.IsZero() && f.Until.Before(f.Since) {
		q.fail("until must not be before since")
	}
	if verr := q.err(); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	events, total, err := h.svc.Admin.AuditTrail(r.Context(), f)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	paginated(w, nonNilSlice(events), page, total)
}

// AdminDashboard returns marketplace totals and the sales report.
//
// @Summary Admin dashboard
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param days query int false "Report window in days" default(30)
// @Success 200 {object} response.Envelope{data=service.AdminDashboard}
// @Router /api/admin/analytics/dashboard [get]
func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	days := q.integer("days", 0)
	if verr := q.err(); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	d, err := h.svc.Dashboards.Admin(r.Context(), days)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OK(w, d)
}

// PerformanceReport is the body of GET /admin/performance.
type PerformanceReport struct {
	Endpoints interface{} `json:"endpoints"`
	Recent    interface{} `json:"recent"`
}

// AdminPerformance reports per-route latency percentiles.
//
// @Summary Request performance
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param recent query int false "Number of recent requests" default(50)
// @Success 200 {object} response.Envelope{data=PerformanceReport}
// @Router /api/admin/performance [get]
func (h *Handler) AdminPerformance(w http.ResponseWriter, r *http.Request) {
	if h.perfMon == nil {
		response.Error(w, r, http.StatusServiceUnavailable, "Performance monitoring is disabled")
		return
	}
	q := newQueryParams(r)
	n := q.integer("recent", 50)
	if verr := q.err(); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	response.OK(w, PerformanceReport{
		Endpoints: h.perfMon.GetStats(),
		Recent:    h.perfMon.GetRecentMetrics(n),
	})
}
