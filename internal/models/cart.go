// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartItem is a snapshot of product fields taken when the item was added.
// The snapshot is not kept in sync with the product; checkout compares it
// against live prices and reports drift.
type CartItem struct {
	ProductID primitive.ObjectID `bson:"product" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Image     string             `bson:"image,omitempty" json:"image,omitempty"`
	Price     Money              `bson:"price" json:"price"`
	SellerID  primitive.ObjectID `bson:"seller" json:"sellerId"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	MaxStock  int                `bson:"maxStock" json:"maxStock"`
	AddedAt   time.Time          `bson:"addedAt" json:"addedAt"`
}

// CartItemFromProduct snapshots a product.
func CartItemFromProduct(p *Product, qty int, now time.Time) CartItem {
	return CartItem{
		ProductID: p.ID,
		Name:      p.Name,
		Image:     p.PrimaryImage(),
		Price:     p.Price,
		SellerID:  p.SellerID,
		Quantity:  qty,
		MaxStock:  p.Stock,
		AddedAt:   now,
	}
}

// Cart is the server-side cart of one user.
type Cart struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID    primitive.ObjectID `bson:"user" json:"userId"`
	Items     []CartItem         `bson:"items" json:"items"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CartTotals are always recomputed from the full item list.
type CartTotals struct {
	ItemCount int   `json:"itemCount"`
	Subtotal  Money `json:"subtotal"`
}

// Totals reduces the item list: item count is the sum of quantities and
// subtotal the sum of price times quantity.
func (c *Cart) Totals() CartTotals {
	t := CartTotals{}
	for i := range c.Items {
		t.ItemCount += c.Items[i].Quantity
		t.Subtotal = t.Subtotal.Add(c.Items[i].Price.Times(c.Items[i].Quantity))
	}
	return t
}

func (c *Cart) indexOf(productID primitive.ObjectID) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Add merges item into the cart. An existing line for the same product gets
// its quantity increased and its snapshot refreshed. Quantity is capped at
// item.MaxStock when that is positive. Returns the resulting quantity.
func (c *Cart) Add(item CartItem) int {
	if idx := c.indexOf(item.ProductID); idx >= 0 {
		item.Quantity += c.Items[idx].Quantity
		item.AddedAt = c.Items[idx].AddedAt
		c.Items[idx] = item
		return c.capAt(idx)
	}
	c.Items = append(c.Items, item)
	return c.capAt(len(c.Items) - 1)
}

func (c *Cart) capAt(idx int) int {
	if maxQty := c.Items[idx].MaxStock; maxQty > 0 && c.Items[idx].Quantity > maxQty {
		c.Items[idx].Quantity = maxQty
	}
	return c.Items[idx].Quantity
}

// SetQuantity changes a line's quantity; zero or less removes the line.
// Reports whether the product was in the cart.
func (c *Cart) SetQuantity(productID primitive.ObjectID, qty int) bool {
	idx := c.indexOf(productID)
	if idx < 0 {
		return false
	}
	if qty <= 0 {
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		return true
	}
	c.Items[idx].Quantity = qty
	c.capAt(idx)
	return true
}

// Remove drops a line. Reports whether it was present.
func (c *Cart) Remove(productID primitive.ObjectID) bool {
	return c.SetQuantity(productID, 0)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = []CartItem{}
}

// PriceChange reports a cart snapshot whose price differs from the live
// product at checkout.
type PriceChange struct {
	ProductID primitive.ObjectID `json:"productId"`
	Name      string             `json:"name"`
	OldPrice  Money              `json:"oldPrice"`
	NewPrice  Money              `json:"newPrice"`
}

// WishlistItem is a snapshot of a saved product.
type WishlistItem struct {
	ProductID primitive.ObjectID `bson:"product" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Image     string             `bson:"image,omitempty" json:"image,omitempty"`
	Price     Money              `bson:"price" json:"price"`
	SellerID  primitive.ObjectID `bson:"seller" json:"sellerId"`
	AddedAt   time.Time          `bson:"addedAt" json:"addedAt"`
}

// Wishlist is the saved-products list of one user.
type Wishlist struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID    primitive.ObjectID `bson:"user" json:"userId"`
	Items     []WishlistItem     `bson:"items" json:"items"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Add appends the product unless already present. Reports whether it was added.
func (w *Wishlist) Add(p *Product, now time.Time) bool {
	if w.Has(p.ID) {
		return false
	}
	w.Items = append(w.Items, WishlistItem{
		ProductID: p.ID,
		Name:      p.Name,
		Image:     p.PrimaryImage(),
		Price:     p.Price,
		SellerID:  p.SellerID,
		AddedAt:   now,
	})
	return true
}

func (w *Wishlist) Has(productID primitive.ObjectID) bool {
	for i := range w.Items {
		if w.Items[i].ProductID == productID {
			return true
		}
	}
	return false
}

// Remove drops the product. Reports whether it was present.
func (w *Wishlist) Remove(productID primitive.ObjectID) bool {
	for i := range w.Items {
		if w.Items[i].ProductID == productID {
			w.Items = append(w.Items[:i], w.Items[i+1:]...)
			return true
		}
	}
	return false
}
