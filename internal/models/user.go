// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the account type. It decides which route groups a user reaches
// and which order transitions they may perform.
type Role string

const (
	RoleCustomer      Role = "customer"
	RoleSeller        Role = "seller"
	RoleDeliveryAgent Role = "delivery_agent"
	RoleAdmin         Role = "admin"
)

// Roles lists every role in display order.
var Roles = []Role{RoleCustomer, RoleSeller, RoleDeliveryAgent, RoleAdmin}

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSeller, RoleDeliveryAgent, RoleAdmin:
		return true
	}
	return false
}

// SelfRegistrable reports whether the role can be chosen at sign-up.
// Admin accounts are only created by the seed tool.
func (r Role) SelfRegistrable() bool {
	return r == RoleCustomer || r == RoleSeller || r == RoleDeliveryAgent
}

// RequiresApproval reports whether new accounts of this role start
// unapproved and wait for an administrator.
func (r Role) RequiresApproval() bool {
	return r == RoleSeller || r == RoleDeliveryAgent
}

func (r Role) String() string { return string(r) }

// Address is a delivery or business address in Ethiopia.
type Address struct {
	Street     string `bson:"street,omitempty" json:"street,omitempty"`
	Subcity    string `bson:"subcity,omitempty" json:"subcity,omitempty"`
	Woreda     string `bson:"woreda,omitempty" json:"woreda,omitempty"`
	City       string `bson:"city" json:"city"`
	Region     Region `bson:"region" json:"region"`
	PostalCode string `bson:"postalCode,omitempty" json:"postalCode,omitempty"`
	Landmark   string `bson:"landmark,omitempty" json:"landmark,omitempty"`
}

// IsZero reports whether no address was provided.
func (a Address) IsZero() bool {
	return a.City == "" && a.Region == "" && a.Street == ""
}

// Rating is a running average over submitted reviews.
type Rating struct {
	Average float64 `bson:"average" json:"average"`
	Count   int     `bson:"count" json:"count"`
}

// Add folds one more score into the aggregate.
func (r Rating) Add(score int) Rating {
	total := r.Average*float64(r.Count) + float64(score)
	r.Count++
	r.Average = roundTo(total/float64(r.Count), 2)
	return r
}

// SellerProfile is filled for sellers.
type SellerProfile struct {
	BusinessName string `bson:"businessName" json:"businessName"`
	Description  string `bson:"description,omitempty" json:"description,omitempty"`
	TIN          string `bson:"tin,omitempty" json:"tin,omitempty"`
}

// DeliveryProfile is filled for delivery agents.
type DeliveryProfile struct {
	VehicleType  string `bson:"vehicleType" json:"vehicleType"`
	LicensePlate string `bson:"licensePlate,omitempty" json:"licensePlate,omitempty"`
	Available    bool   `bson:"available" json:"available"`
}

// User is an account of any role.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	PasswordHash string             `bson:"password" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	Address      *Address           `bson:"address,omitempty" json:"address,omitempty"`

	// IsApproved gates sellers and delivery agents. An unapproved seller's
	// products are hidden and an unapproved agent cannot be assigned.
	IsApproved bool `bson:"isApproved" json:"isApproved"`
	IsActive   bool `bson:"isActive" json:"isActive"`

	Rating   Rating           `bson:"rating" json:"rating"`
	Seller   *SellerProfile   `bson:"sellerProfile,omitempty" json:"sellerProfile,omitempty"`
	Delivery *DeliveryProfile `bson:"deliveryProfile,omitempty" json:"deliveryProfile,omitempty"`

	LastLoginAt *time.Time `bson:"lastLoginAt,omitempty" json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// CanSell reports whether the user may list products and receive orders.
func (u *User) CanSell() bool {
	return u.Role == RoleSeller && u.IsApproved && u.IsActive
}

// CanDeliver reports whether the user may be assigned deliveries.
func (u *User) CanDeliver() bool {
	return u.Role == RoleDeliveryAgent && u.IsApproved && u.IsActive
}

// DisplayName is the business name for sellers and the personal name otherwise.
func (u *User) DisplayName() string {
	if u.Seller != nil && u.Seller.BusinessName != "" {
		return u.Seller.BusinessName
	}
	return u.Name
}

// PublicSeller is the storefront view of a seller.
type PublicSeller struct {
	ID           primitive.ObjectID `json:"id"`
	Name         string             `json:"name"`
	BusinessName string             `json:"businessName,omitempty"`
	Description  string             `json:"description,omitempty"`
	City         string             `json:"city,omitempty"`
	Region       Region             `json:"region,omitempty"`
	Rating       Rating             `json:"rating"`
	MemberSince  time.Time          `json:"memberSince"`
}

// PublicSellerView strips private fields from a seller account.
func (u *User) PublicSellerView() PublicSeller {
	ps := PublicSeller{
		ID:          u.ID,
		Name:        u.Name,
		Rating:      u.Rating,
		MemberSince: u.CreatedAt,
	}
	if u.Seller != nil {
		ps.BusinessName = u.Seller.BusinessName
		ps.Description = u.Seller.Description
	}
	if u.Address != nil {
		ps.City = u.Address.City
		ps.Region = u.Address.Region
	}
	return ps
}
