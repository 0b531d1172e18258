// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package service

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/audit"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/notify"
	"github.com/tomtom215/merkato/internal/store"
	"github.com/tomtom215/merkato/internal/validation"
)

// ProfileInput is the body of PUT /users/me. Nil fields are left alone.
type ProfileInput struct {
	Name    *string       `json:"name" validate:"omitempty,min=2,max=100"`
	Phone   *string       `json:"phone" validate:"omitempty,et_phone"`
	Address *AddressInput `json:"address" validate:"omitempty"`

	BusinessName        *string `json:"businessName" validate:"omitempty,min=2,max=150"`
	BusinessDescription *string `json:"businessDescription" validate:"omitempty,max=1000"`

	VehicleType  *string `json:"vehicleType" validate:"omitempty,oneof=motorcycle bicycle car van truck on_foot"`
	LicensePlate *string `json:"licensePlate" validate:"omitempty,max=20"`
}

// PasswordInput is the body of PUT /users/me/password.
type PasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72,nefield=CurrentPassword"`
}

// UserService manages a user's own account.
type UserService struct {
	*base
}

// Profile returns the caller's account.
func (s *UserService) Profile(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.user(ctx, id, "User")
}

// UpdateProfile applies the non-nil fields of in. Role specific fields are
// ignored for other roles.
func (s *UserService) UpdateProfile(ctx context.Context, id primitive.ObjectID, in ProfileInput) (*models.User, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	u, err := s.user(ctx, id, "User")
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		u.Phone = validation.NormalizePhone(*in.Phone)
	}
	if in.Address != nil {
		u.Address = in.Address.Model()
	}
	if u.Role == models.RoleSeller {
		if u.Seller == nil {
			u.Seller = &models.SellerProfile{BusinessName: u.Name}
		}
		if in.BusinessName != nil {
			u.Seller.BusinessName = strings.TrimSpace(*in.BusinessName)
		}
		if in.BusinessDescription != nil {
			u.Seller.Description = strings.TrimSpace(*in.BusinessDescription)
		}
	}
	if u.Role == models.RoleDeliveryAgent {
		if u.Delivery == nil {
			u.Delivery = &models.DeliveryProfile{VehicleType: "motorcycle"}
		}
		if in.VehicleType != nil {
			u.Delivery.VehicleType = *in.VehicleType
		}
		if in.LicensePlate != nil {
			u.Delivery.LicensePlate = strings.ToUpper(strings.TrimSpace(*in.LicensePlate))
		}
	}

	u.UpdatedAt = s.now()
	if err := s.store().Users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

// ChangePassword replaces the password after checking the current one.
// ip is recorded in the confirmation email.
func (s *UserService) ChangePassword(ctx context.Context, id primitive.ObjectID, in PasswordInput, ip string) error {
	if err := validate(in); err != nil {
		return err
	}
	u, err := s.user(ctx, id, "User")
	if err != nil {
		return err
	}
	if err := s.deps.Hasher.Check(u.PasswordHash, in.CurrentPassword); err != nil {
		return newError(ErrInvalidCredentials, "Current password is incorrect")
	}
	hash, err := s.deps.Hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	u.PasswordHash = hash
	u.UpdatedAt = now
	if err := s.store().Users.Update(ctx, u); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.deps.Audit.Log(ctx, &audit.Event{
		Type:        audit.EventPasswordChanged,
		Outcome:     audit.OutcomeSuccess,
		Actor:       audit.Actor{ID: u.ID.Hex(), Email: u.Email, Role: string(u.Role)},
		Target:      userTarget(u),
		Description: "Password changed",
	})
	s.email(ctx, u, notify.TemplatePasswordChanged, notify.PasswordChangedData{ChangedAt: now, IP: ip})
	return nil
}

// PublicSeller returns a storefront view of an approved, active seller.
func (s *UserService) PublicSeller(ctx context.Context, id primitive.ObjectID) (*models.PublicSeller, error) {
	u, err := s.user(ctx, id, "Seller")
	if err != nil {
		return nil, err
	}
	if !u.CanSell() {
		return nil, notFound("Seller not found")
	}
	v := u.PublicSellerView()
	return &v, nil
}

// Sellers lists approved, active sellers for the storefront directory.
func (s *UserService) Sellers(ctx context.Context, search string, page store.Page) ([]models.PublicSeller, int64, error) {
	users, total, err := s.store().Users.List(ctx, store.UserFilter{
		Role:       models.RoleSeller,
		IsApproved: boolPtr(true),
		IsActive:   boolPtr(true),
		Search:     search,
		Page:       page,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list sellers: %w", err)
	}
	out := make([]models.PublicSeller, 0, len(users))
	for i := range users {
		out = append(out, users[i].PublicSellerView())
	}
	return out, total, nil
}
