// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/auth"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/orderflow"
	"github.com/tomtom215/merkato/internal/response"
	"github.com/tomtom215/merkato/internal/service"
	"github.com/tomtom215/merkato/internal/store"
	"github.com/tomtom215/merkato/internal/validation"
)

// decode reads and validates a JSON body. On failure the 400 response has
// already been written.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if verr := validation.DecodeJSON(r, dst); verr != nil {
		respondValidation(w, r, verr)
		return false
	}
	return true
}

// currentUser returns the authenticated account. Routes behind
// Authenticate always have one.
func currentUser(r *http.Request) *models.User {
	u, _ := auth.UserFromContext(r.Context())
	return u
}

// pathID parses an ObjectID path parameter. An invalid value is answered
// with 404 naming noun.
func pathID(w http.ResponseWriter, r *http.Request, param, noun string) (primitive.ObjectID, bool) {
	id, err := service.ParseID(chi.URLParam(r, param), noun)
	if err != nil {
		respondServiceError(w, r, err)
		return primitive.NilObjectID, false
	}
	return id, true
}

// queryParams collects query-string problems so one response can report
// all of them.
type queryParams struct {
	r        *http.Request
	messages []string
}

func newQueryParams(r *http.Request) *queryParams {
	return &queryParams{r: r}
}

func (q *queryParams) fail(msg string) {
	q.messages = append(q.messages, msg)
}

// err returns the collected problems or nil.
func (q *queryParams) err() *validation.RequestValidationError {
	if len(q.messages) == 0 {
		return nil
	}
	verr := validation.NewRequestError("query", q.messages[0])
	for _, m := range q.messages[1:] {
		verr = verr.Add("query", m)
	}
	return verr
}

func (q *queryParams) str(key string) string {
	return strings.TrimSpace(q.r.URL.Query().Get(key))
}

func (q *queryParams) integer(key string, def int) int {
	s := q.str(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		q.fail(key + " must be a whole number")
		return def
	}
	return n
}

// boolean returns nil when the parameter is absent.
func (q *queryParams) boolean(key string) *bool {
	s := q.str(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		q.fail(key + " must be true or false")
		return nil
	}
	return &v
}

func (q *queryParams) money(key string) *models.Money {
	s := q.str(key)
	if s == "" {
		return nil
	}
	m, err := models.ParseMoney(s)
	if err != nil || m.IsNegative() {
		q.fail(key + " must be a non-negative amount")
		return nil
	}
	return &m
}

func (q *queryParams) objectID(key string) *primitive.ObjectID {
	s := q.str(key)
	if s == "" {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		q.fail(key + " must be a valid id")
		return nil
	}
	return &id
}

func (q *queryParams) timestamp(key string) time.Time {
	s := q.str(key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		if d, derr := time.Parse(time.DateOnly, s); derr == nil {
			return d
		}
		q.fail(key + " must be an RFC 3339 timestamp or a date")
		return time.Time{}
	}
	return t
}

// statuses parses status=a,b.
func (q *queryParams) statuses(key string) []models.OrderStatus {
	s := q.str(key)
	if s == "" {
		return nil
	}
	var out []models.OrderStatus
	for _, part := range strings.Split(s, ",") {
		st, err := orderflow.Parse(strings.TrimSpace(part))
		if err != nil {
			q.fail("unknown order status '" + part + "'")
			continue
		}
		out = append(out, st)
	}
	return out
}

func (q *queryParams) role(key string) models.Role {
	s := q.str(key)
	if s == "" {
		return ""
	}
	role := models.Role(s)
	if !role.Valid() {
		q.fail("unknown role '" + s + "'")
		return ""
	}
	return role
}

// page reads page and limit, applying the configured defaults.
func (h *Handler) page(q *queryParams) store.Page {
	def := h.config.API.DefaultPageSize
	if def <= 0 {
		def = store.DefaultPageSize
	}
	limit := q.integer("limit", def)
	if max := h.config.API.MaxPageSize; max > 0 && limit > max {
		limit = max
	}
	return store.NewPage(q.integer("page", 1), limit)
}

// productFilter reads the public catalog filters.
func (h *Handler) productFilter(q *queryParams) store.ProductFilter {
	f := store.ProductFilter{
		SellerID: q.objectID("seller"),
		Search:   q.str("search"),
		MinPrice: q.money("minPrice"),
		MaxPrice: q.money("maxPrice"),
		Featured: q.boolean("featured"),
		Sort:     store.ParseProductSort(q.str("sort")),
		Page:     h.page(q),
	}
	if f.Search == "" {
		f.Search = q.str("q")
	}
	if c := q.str("category"); c != "" {
		if !models.Category(c).Valid() {
			q.fail("unknown category '" + c + "'")
		}
		f.Category = models.Category(c)
	}
	if reg := q.str("region"); reg != "" {
		if !models.Region(reg).Valid() {
			q.fail("unknown region '" + reg + "'")
		}
		f.Region = models.Region(reg)
	}
	if inStock := q.boolean("inStock"); inStock != nil {
		f.InStock = *inStock
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		q.fail("minPrice must not exceed maxPrice")
	}
	return f
}

// paginated writes a list page.
func paginated(w http.ResponseWriter, data interface{}, page store.Page, total int64) {
	response.Page(w, data, response.NewPagination(page.Page, page.Limit, total))
}

// nonNilSlice keeps empty lists as [] in JSON.
func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
