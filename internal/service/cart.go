// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package service

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/validation"
)

const maxCartQuantity = 100

// CartItemInput is the body of POST /users/me/cart.
type CartItemInput struct {
	ProductID string `json:"productId" validate:"required,objectid"`
	Quantity  int    `json:"quantity" validate:"omitempty,gte=1,lte=100"`
}

// CartView is a cart with its recomputed totals.
type CartView struct {
	Items     []models.CartItem `json:"items"`
	ItemCount int               `json:"itemCount"`
	Subtotal  models.Money      `json:"subtotal"`
}

func viewOf(c *models.Cart) *CartView {
	t := c.Totals()
	items := c.Items
	if items == nil {
		items = []models.CartItem{}
	}
	return &CartView{Items: items, ItemCount: t.ItemCount, Subtotal: t.Subtotal}
}

// CartService manages carts and wishlists.
type CartService struct {
	*base
}

// Get returns the user's cart.
func (s *CartService) Get(ctx context.Context, userID primitive.ObjectID) (*CartView, error) {
	c, err := s.store().Carts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return viewOf(c), nil
}

// Add snapshots a purchasable product into the cart. Quantities merge with
// an existing line and are capped at the live stock.
func (s *CartService) Add(ctx context.Context, userID primitive.ObjectID, in CartItemInput) (*CartView, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	productID, _ := primitive.ObjectIDFromHex(in.ProductID)
	p, err := s.purchasable(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.Stock <= 0 {
		return nil, conflict(p.Name + " is out of stock")
	}

	c, err := s.store().Carts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	c.Add(models.CartItemFromProduct(p, in.Quantity, s.now()))
	return s.save(ctx, c)
}

// SetQuantity changes a line's quantity. Zero removes the line.
func (s *CartService) SetQuantity(ctx context.Context, userID, productID primitive.ObjectID, qty int) (*CartView, error) {
	if qty < 0 || qty > maxCartQuantity {
		return nil, validation.NewRequestError("quantity", "quantity must be between 0 and 100")
	}
	c, err := s.store().Carts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if !c.SetQuantity(productID, qty) {
		return nil, notFound("Item not found in cart")
	}
	return s.save(ctx, c)
}

// Remove drops a line from the cart.
func (s *CartService) Remove(ctx context.Context, userID, productID primitive.ObjectID) (*CartView, error) {
	c, err := s.store().Carts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if !c.Remove(productID) {
		return nil, notFound("Item not found in cart")
	}
	return s.save(ctx, c)
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, userID primitive.ObjectID) (*CartView, error) {
	if err := s.store().Carts.Clear(ctx, userID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}
	return viewOf(&models.Cart{UserID: userID}), nil
}

func (s *CartService) save(ctx context.Context, c *models.Cart) (*CartView, error) {
	c.UpdatedAt = s.now()
	if err := s.store().Carts.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return viewOf(c), nil
}

// purchasable loads a product that an order may contain: active and
// listed by an approved, active seller.
func (b *base) purchasable(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	p, err := b.product(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, notFound("Product not found")
	}
	seller, err := b.store().Users.GetByID(ctx, p.SellerID)
	if err != nil || !seller.CanSell() {
		return nil, conflict(p.Name + " is not available from this seller")
	}
	return p, nil
}

// Wishlist returns the user's saved products.
func (s *CartService) Wishlist(ctx context.Context, userID primitive.ObjectID) (*models.Wishlist, error) {
	w, err := s.store().Wishlists.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load wishlist: %w", err)
	}
	return w, nil
}

// AddToWishlist saves a product. Adding a saved product again is a no-op.
func (s *CartService) AddToWishlist(ctx context.Context, userID, productID primitive.ObjectID) (*models.Wishlist, error) {
	p, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, notFound("Product not found")
	}
	w, err := s.Wishlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !w.Add(p, s.now()) {
		return w, nil
	}
	return s.saveWishlist(ctx, w)
}

// RemoveFromWishlist drops a saved product.
func (s *CartService) RemoveFromWishlist(ctx context.Context, userID, productID primitive.ObjectID) (*models.Wishlist, error) {
	w, err := s.Wishlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !w.Remove(productID) {
		return nil, notFound("Item not found in wishlist")
	}
	return s.saveWishlist(ctx, w)
}

// MoveToCart adds a saved product to the cart and removes it from the
// wishlist. The wishlist is only changed once the cart accepted the item.
func (s *CartService) MoveToCart(ctx context.Context, userID, productID primitive.ObjectID, qty int) (*CartView, error) {
	w, err := s.Wishlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !w.Has(productID) {
		return nil, notFound("Item not found in wishlist")
	}
	view, err := s.Add(ctx, userID, CartItemInput{ProductID: productID.Hex(), Quantity: qty})
	if err != nil {
		return nil, err
	}
	w.Remove(productID)
	if _, err := s.saveWishlist(ctx, w); err != nil {
		return nil, err
	}
	return view, nil
}

func (s *CartService) saveWishlist(ctx context.Context, w *models.Wishlist) (*models.Wishlist, error) {
	w.UpdatedAt = s.now()
	if err := s.store().Wishlists.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("save wishlist: %w", err)
	}
	return w, nil
}
