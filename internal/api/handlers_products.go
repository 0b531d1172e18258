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

// stockRequest is the body of PATCH /products/{id}/stock.
type stockRequest struct {
	Stock *int `json:"stock" validate:"required,gte=0,lte=1000000"`
}

// ListProducts lists the public catalog.
//
// @Summary List products
// @Tags Products
// @Produce json
// @Param category query string false "Category"
// @Param region query string false "Region"
// @Param seller query string false "Seller id"
// @Param search query string false "Text search"
// @Param minPrice query string false "Minimum price in ETB"
// @Param maxPrice query string false "Maximum price in ETB"
// @Param inStock query bool false "Only products with stock"
// @Param featured query bool false "Only featured products"
// @Param sort query string false "newest, price_asc, price_desc, rating, popular"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} response.Envelope{data=[]models.Product}
// @Failure 400 {object} response.Envelope
// @Router /api/products [get]
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	f := h.productFilter(q)
	if verr := q.err(); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	products, total, err := h.svc.Catalog.List(r.Context(), f)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	paginated(w, nonNilSlice(products), f.Page, total)
}

// FeaturedProducts lists featured products for the storefront.
//
// @Summary Featured products
// @Tags Products
// @Produce json
// @Param limit query int false "Maximum products" default(8)
// @Success 200 {object} response.Envelope{data=[]models.Product}
// @Router /api/products/featured [get]
func (h *Handler) FeaturedProducts(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	limit := q.integer("limit", 0)
	if verr := q.err(); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	products, err := h.svc.Catalog.Featured(r.Context(), limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OK(w, nonNilSlice(products))
}

// ProductCategories counts active products per category.
//
// @Summary Product categories
// @Tags Products
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.CategoryCount}
// @Router /api/products/categories [get]
func (h *Handler) ProductCategories(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Catalog.Categories(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OK(w, nonNilSlice(counts))
}

// GetProduct returns one product. Inactive products are visible only to
// their seller and administrators.
//
// @Summary Get product
// @Tags Products
// @Produce json
// @Param id path string true "Product id"
// @Success 200 {object} response.Envelope{data=models.Product}
// @Failure 404 {object} response.Envelope
// @Router /api/products/{id} [get]
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Product")
	if !ok {
		return
	}
	p, err := h.svc.Catalog.Get(r.Context(), id, currentUser(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OK(w, p)
}

// ProductReviews lists reviews newest first.
//
// @Summary Product reviews
// @Tags Products
// @Produce json
// @Param id path string true "Product id"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope{data=[]models.Review}
// @Router /api/products/{id}/reviews [get]
func (h *Handler) ProductReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Product")
	if !ok {
		return
	}
	q := newQueryParams(r)
	page := h.page(q)
	if verr := q.err(); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	reviews, total, err := h.svc.Catalog.Reviews(r.Context(), id, page)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	paginated(w, nonNilSlice(reviews), page, total)
}

// AddReview rates a product the customer has received.
//
// @Summary Review product
// @Tags Products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product id"
// @Param body body service.ReviewInput true "Review"
// @Success 201 {object} response.Envelope{data=models.Review}
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /api/products/{id}/reviews [post]
func (h *Handler) AddReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Product")
	if !ok {
		return
	}
	var in service.ReviewInput
	if !decode(w, r, &in) {
		return
	}
	review, err := h.svc.Catalog.AddReview(r.Context(), currentUser(r), id, in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.Created(w, "Review added", review)
}

// MyProducts lists the seller's own products, inactive ones included.
//
// @Summary My products
// @Tags Products
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=[]models.Product}
// @Router /api/products/mine [get]
func (h *Handler) MyProducts(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	f := h.productFilter(q)
	if verr := q.err(); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	products, total, err := h.svc.Catalog.Mine(r.Context(), currentUser(r), f)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	paginated(w, nonNilSlice(products), f.Page, total)
}

// CreateProduct lists a new product. The seller must be approved.
//
// @Summary Create product
// @Tags Products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.ProductInput true "Product"
// @Success 201 {object} response.Envelope{data=models.Product}
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /api/products [post]
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if !decode(w, r, &in) {
		return
	}
	p, err := h.svc.Catalog.Create(r.Context(), currentUser(r), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.Created(w, "Product created", p)
}

// UpdateProduct applies a partial update.
//
// @Summary Update product
// @Tags Products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product id"
// @Param body body service.ProductPatch true "Changed fields"
// @Success 200 {object} response.Envelope{data=models.Product}
// @Router /api/products/{id} [put]
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Product")
	if !ok {
		return
	}
	var in service.ProductPatch
	if !decode(w, r, &in) {
		return
	}
	p, err := h.svc.Catalog.Update(r.Context(), currentUser(r), id, in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Product updated", p)
}

// SetProductStock replaces the stock level.
//
// @Summary Set stock
// @Tags Products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product id"
// @Success 200 {object} response.Envelope{data=models.Product}
// @Router /api/products/{id}/stock [patch]
func (h *Handler) SetProductStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Product")
	if !ok {
		return
	}
	var in stockRequest
	if !decode(w, r, &in) {
		return
	}
	p, err := h.svc.Catalog.SetStock(r.Context(), currentUser(r), id, *in.Stock)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Stock updated", p)
}

// DeleteProduct removes a product owned by the seller.
//
// @Summary Delete product
// @Tags Products
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product id"
// @Success 200 {object} response.Envelope
// @Router /api/products/{id} [delete]
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Product")
	if !ok {
		return
	}
	if err := h.svc.Catalog.Delete(r.Context(), currentUser(r), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	response.OKMessage(w, "Product deleted", nil)
}
