// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package api

import (
	"net/http"

	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/response"
	"github.com/tomtom215/merkato/internal/service"
)

type quantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1,lte=100"`
}

type wishlistRequest struct {
	ProductID string `json:"productId" validate:"required,objectid"`
}

type moveToCartRequest struct {
	Quantity int `json:"quantity" validate:"omitempty,gte=1,lte=100"`
}

// ListSellers lists approved, active sellers.
//
// @Summary List sellers
// @Tags Users
// @Produce json
// @Param search query string false "Business name"
// @Success 200 {object} response.Envelope{data=[]models.PublicSeller}
// @Router /api/users/sellers [get]
func (h *Handler) ListSellers(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	search := q.str("search")
	page := h.page(q)
	if verr := q.err(); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	sellers, total, err := h.svc.Users.Sellers(r.Context(), search, page)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	paginated(w, nonNilSlice(sellers), page, total)
}

// GetSeller returns a seller's public profile.
//
// @Summary Seller profile
// @Tags Users
// @Produce json
// @Param id path string true "Seller id"
// @Success 200 {object} response.Envelope{data=models.PublicSeller}
// @Router /api/users/sellers/{id} [get]
func (h *Handler) GetSeller(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Seller")
	if !ok {
		return
	}
	s, err := h.svc.Users.PublicSeller(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OK(w, s)
}

// GetProfile returns the caller's account.
//
// @Summary My profile
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.User}
// @Router /api/users/me [get]
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Users.Profile(r.Context(), currentUser(r).ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OK(w, u)
}

// UpdateProfile changes the caller's profile fields.
//
// @Summary Update profile
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.ProfileInput true "Changed fields"
// @Success 200 {object} response.Envelope{data=models.User}
// @Router /api/users/me [put]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in service.ProfileInput
	if !decode(w, r, &in) {
		return
	}
	u, err := h.svc.Users.UpdateProfile(r.Context(), currentUser(r).ID, in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Profile updated", u)
}

// ChangePassword replaces the caller's password.
//
// @Summary Change password
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.PasswordInput true "Passwords"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope "Current password is wrong"
// @Router /api/users/me/password [put]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var in service.PasswordInput
	if !decode(w, r, &in) {
		return
	}
	if err := h.svc.Users.ChangePassword(r.Context(), currentUser(r).ID, in, h.ips.ClientIP(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Password changed", nil)
}

// MyDashboard returns the dashboard for the caller's role.
//
// @Summary My dashboard
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param days query int false "Report window in days for sellers and admins"
// @Success 200 {object} response.Envelope
// @Router /api/users/me/dashboard [get]
func (h *Handler) MyDashboard(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	days := q.integer("days", 0)
	if verr := q.err(); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	u := currentUser(r)
	var (
		data interface{}
		err  error
	)
	switch u.Role {
	case models.RoleAdmin:
		data, err = h.svc.Dashboards.Admin(r.Context(), days)
	case models.RoleSeller:
		data, err = h.svc.Dashboards.Seller(r.Context(), u, days)
	case models.RoleDeliveryAgent:
		data, err = h.svc.Dashboards.Delivery(r.Context(), u)
	default:
		data, err = h.svc.Dashboards.Customer(r.Context(), u)
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OK(w, data)
}

// ========================
// Cart
// ========================

// GetCart returns the cart with recomputed totals.
//
// @Summary Get cart
// @Tags Cart
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=service.CartView}
// @Router /api/users/me/cart [get]
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.svc.Cart.Get(r.Context(), currentUser(r).ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OK(w, cart)
}

// AddToCart adds a product or increases its quantity.
//
// @Summary Add to cart
// @Tags Cart
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CartItemInput true "Item"
// @Success 200 {object} response.Envelope{data=service.CartView}
// @Failure 409 {object} response.Envelope "Insufficient stock"
// @Router /api/users/me/cart/items [post]
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var in service.CartItemInput
	if !decode(w, r, &in) {
		return
	}
	cart, err := h.svc.Cart.Add(r.Context(), currentUser(r).ID, in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Item added to cart", cart)
}

// UpdateCartItem sets the quantity of a line.
//
// @Summary Update cart item
// @Tags Cart
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param productId path string true "Product id"
// @Success 200 {object} response.Envelope{data=service.CartView}
// @Router /api/users/me/cart/items/{productId} [put]
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	pid, ok := pathID(w, r, "productId", "Product")
	if !ok {
		return
	}
	var in quantityRequest
	if !decode(w, r, &in) {
		return
	}
	cart, err := h.svc.Cart.SetQuantity(r.Context(), currentUser(r).ID, pid, in.Quantity)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Cart updated", cart)
}

// RemoveCartItem drops a line.
//
// @Summary Remove cart item
// @Tags Cart
// @Produce json
// @Security BearerAuth
// @Param productId path string true "Product id"
// @Success 200 {object} response.Envelope{data=service.CartView}
// @Router /api/users/me/cart/items/{productId} [delete]
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	pid, ok := pathID(w, r, "productId", "Product")
	if !ok {
		return
	}
	cart, err := h.svc.Cart.Remove(r.Context(), currentUser(r).ID, pid)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Item removed from cart", cart)
}

// ClearCart empties the cart.
//
// @Summary Clear cart
// @Tags Cart
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=service.CartView}
// @Router /api/users/me/cart [delete]
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.svc.Cart.Clear(r.Context(), currentUser(r).ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Cart cleared", cart)
}

// ========================
// Wishlist
// ========================

// GetWishlist returns the wishlist.
//
// @Summary Get wishlist
// @Tags Wishlist
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.Wishlist}
// @Router /api/users/me/wishlist [get]
func (h *Handler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	wl, err := h.svc.Cart.Wishlist(r.Context(), currentUser(r).ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OK(w, wl)
}

// AddToWishlist saves a product. Adding it twice is a no-op.
//
// @Summary Add to wishlist
// @Tags Wishlist
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.Wishlist}
// @Router /api/users/me/wishlist [post]
func (h *Handler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	var in wishlistRequest
	if !decode(w, r, &in) {
		return
	}
	pid, err := service.ParseID(in.ProductID, "Product")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	wl, err := h.svc.Cart.AddToWishlist(r.Context(), currentUser(r).ID, pid)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Added to wishlist", wl)
}

// RemoveFromWishlist drops a saved product.
//
// @Summary Remove from wishlist
// @Tags Wishlist
// @Produce json
// @Security BearerAuth
// @Param productId path string true "Product id"
// @Success 200 {object} response.Envelope{data=models.Wishlist}
// @Router /api/users/me/wishlist/{productId} [delete]
func (h *Handler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	pid, ok := pathID(w, r, "productId", "Product")
	if !ok {
		return
	}
	wl, err := h.svc.Cart.RemoveFromWishlist(r.Context(), currentUser(r).ID, pid)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Removed from wishlist", wl)
}

// MoveWishlistItemToCart moves a saved product into the cart.
//
// @Summary Move to cart
// @Tags Wishlist
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param productId path string true "Product id"
// @Success 200 {object} response.Envelope{data=service.CartView}
// @Router /api/users/me/wishlist/{productId}/move-to-cart [post]
func (h *Handler) MoveWishlistItemToCart(w http.ResponseWriter, r *http.Request) {
	pid, ok := pathID(w, r, "productId", "Product")
	if !ok {
		return
	}
	var in moveToCartRequest
	if r.ContentLength != 0 && !decode(w, r, &in) {
		return
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	cart, err := h.svc.Cart.MoveToCart(r.Context(), currentUser(r).ID, pid, in.Quantity)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Moved to cart", cart)
}

// ========================
// Notifications
// ========================

// ListNotifications lists the caller's notifications, newest first.
//
// @Summary List notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param unread query bool false "Only unread"
// @Success 200 {object} response.Envelope{data=service.NotificationPage}
// @Router /api/users/me/notifications [get]
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	unread := q.boolean("unread")
	page := h.page(q)
	if verr := q.err(); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	np, err := h.svc.Notifications.List(r.Context(), currentUser(r).ID, unread != nil && *unread, page)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	np.Items = nonNilSlice(np.Items)
	response.Page(w, np, response.NewPagination(page.Page, page.Limit, np.Total))
}

// UnreadNotificationCount returns the unread badge count.
//
// @Summary Unread count
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /api/users/me/notifications/unread-count [get]
func (h *Handler) UnreadNotificationCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Notifications.UnreadCount(r.Context(), currentUser(r).ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OK(w, map[string]int64{"unreadCount": n})
}

// MarkNotificationRead marks one notification read.
//
// @Summary Mark read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification id"
// @Success 200 {object} response.Envelope
// @Router /api/users/me/notifications/{id}/read [patch]
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Notification")
	if !ok {
		return
	}
	if err := h.svc.Notifications.MarkRead(r.Context(), currentUser(r).ID, id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Notification marked as read", nil)
}

// MarkAllNotificationsRead marks every notification read.
//
// @Summary Mark all read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /api/users/me/notifications/read-all [patch]
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Notifications.MarkAllRead(r.Context(), currentUser(r).ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "All notifications marked as read", map[string]int64{"updated": n})
}
