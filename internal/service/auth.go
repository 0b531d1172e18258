// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/merkato/internal/audit"
	"github.com/tomtom215/merkato/internal/auth"
	"github.com/tomtom215/merkato/internal/events"
	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/metrics"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/notify"
	"github.com/tomtom215/merkato/internal/store"
	"github.com/tomtom215/merkato/internal/validation"
)

// AddressInput is a client-supplied address.
type AddressInput struct {
	Street     string `json:"street" validate:"max=200"`
	Subcity    string `json:"subcity" validate:"max=100"`
	Woreda     string `json:"woreda" validate:"max=100"`
	City       string `json:"city" validate:"required,max=100"`
	Region     string `json:"region" validate:"required,region"`
	PostalCode string `json:"postalCode" validate:"max=20"`
	Landmark   string `json:"landmark" validate:"max=200"`
}

// Model converts the input into a stored address.
func (a *AddressInput) Model() *models.Address {
	if a == nil {
		return nil
	}
	return &models.Address{
		Street:     strings.TrimSpace(a.Street),
		Subcity:    strings.TrimSpace(a.Subcity),
		Woreda:     strings.TrimSpace(a.Woreda),
		City:       strings.TrimSpace(a.City),
		Region:     models.Region(a.Region),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Landmark:   strings.TrimSpace(a.Landmark),
	}
}

// RegisterInput is the body of POST /auth/register.
type RegisterInput struct {
	Name     string        `json:"name" validate:"required,min=2,max=100"`
	Email    string        `json:"email" validate:"required,email,max=254"`
	Password string        `json:"password" validate:"required,min=8,max=72"`
	Phone    string        `json:"phone" validate:"required,et_phone"`
	Role     string        `json:"role" validate:"omitempty,signup_role"`
	Address  *AddressInput `json:"address" validate:"omitempty"`

	BusinessName        string `json:"businessName" validate:"max=150"`
	BusinessDescription string `json:"businessDescription" validate:"max=1000"`
	TIN                 string `json:"tin" validate:"omitempty,numeric,len=10"`

	VehicleType  string `json:"vehicleType" validate:"omitempty,oneof=motorcycle bicycle car van truck on_foot"`
	LicensePlate string `json:"licensePlate" validate:"max=20"`
}

// LoginInput is the body of POST /auth/login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is a signed-in user with their access token.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// AuthService handles registration and sign-in.
type AuthService struct {
	*base
}

// Register creates an account. Customers are approved immediately; sellers
// and delivery agents wait for an administrator.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (_ *Session, err error) {
	defer func() { metrics.RecordAuthAttempt("register", err == nil) }()
	if err := validate(in); err != nil {
		return nil, err
	}
	role := models.Role(in.Role)
	if role == "" {
		role = models.RoleCustomer
	}

	hash, err := s.deps.Hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u := &models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:        validation.NormalizePhone(in.Phone),
		PasswordHash: hash,
		Role:         role,
		Address:      in.Address.Model(),
		IsApproved:   !role.RequiresApproval(),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	switch role {
	case models.RoleSeller:
		name := strings.TrimSpace(in.BusinessName)
		if name == "" {
			name = u.Name
		}
		u.Seller = &models.SellerProfile{
			BusinessName: name,
			Description:  strings.TrimSpace(in.BusinessDescription),
			TIN:          in.TIN,
		}
	case models.RoleDeliveryAgent:
		vehicle := in.VehicleType
		if vehicle == "" {
			vehicle = "motorcycle"
		}
		u.Delivery = &models.DeliveryProfile{
			VehicleType:  vehicle,
			LicensePlate: strings.ToUpper(strings.TrimSpace(in.LicensePlate)),
			Available:    true,
		}
	}

	if err := s.store().Users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, newError(ErrDuplicate, "User already exists with this email")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	sess, err := s.issue(u)
	if err != nil {
		return nil, err
	}

	s.deps.Audit.Registered(ctx, u)
	region := ""
	if u.Address != nil {
		region = string(u.Address.Region)
	}
	s.emit(ctx, events.TopicUserRegistered, events.UserRegistered{
		UserID: u.ID.Hex(),
		Email:  u.Email,
		Name:   u.Name,
		Role:   u.Role,
		Region: region,
		At:     now,
	})
	s.email(ctx, u, notify.TemplateWelcome, notify.WelcomeData{Role: u.Role, NeedsApproval: !u.IsApproved})

	logging.Ctx(ctx).Info().Str("user_id", u.ID.Hex()).Str("role", string(u.Role)).Msg("User registered")
	return sess, nil
}

// Login verifies credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (_ *Session, err error) {
	defer func() { metrics.RecordAuthAttempt("login", err == nil) }()
	if err := validate(in); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))

	u, err := s.store().Users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		s.deps.Audit.LoginFailed(ctx, email, "unknown email")
		return nil, newError(ErrInvalidCredentials, "Invalid email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := s.deps.Hasher.Check(u.PasswordHash, in.Password); err != nil {
		s.deps.Audit.LoginFailed(ctx, email, "wrong password")
		return nil, newError(ErrInvalidCredentials, "Invalid email or password")
	}
	if !u.IsActive {
		s.deps.Audit.LoginFailed(ctx, email, "account inactive")
		return nil, newError(ErrAccountInactive, "Your account has been deactivated. Please contact support.")
	}

	now := s.now()
	if err := s.store().Users.TouchLogin(ctx, u.ID, now); err != nil {
		logWarn(ctx, err, "Failed to record last login")
	}
	u.LastLoginAt = &now

	sess, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	s.deps.Audit.LoginSucceeded(ctx, u)
	return sess, nil
}

// Logout revokes the presented token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return nil
	}
	if err := s.revoke(ctx, claims); err != nil {
		return err
	}
	s.deps.Audit.Log(ctx, &audit.Event{
		Type:        audit.EventLogout,
		Action:      "logout",
		Description: "User signed out",
	})
	return nil
}

// Refresh issues a new token for u and revokes the one presented.
func (s *AuthService) Refresh(ctx context.Context, claims *auth.Claims, u *models.User) (_ *Session, err error) {
	defer func() { metrics.RecordAuthAttempt("refresh", err == nil) }()
	if u == nil {
		return nil, newError(ErrInvalidCredentials, "Not authorized")
	}
	if !u.IsActive {
		return nil, newError(ErrAccountInactive, "Your account has been deactivated")
	}
	sess, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	if claims != nil {
		if err := s.revoke(ctx, claims); err != nil {
			logWarn(ctx, err, "Failed to revoke refreshed token")
		}
	}
	return sess, nil
}

func (s *AuthService) revoke(ctx context.Context, claims *auth.Claims) error {
	if s.deps.Revoked == nil || claims.ID == "" {
		return nil
	}
	ttl := claims.Remaining(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.deps.Revoked.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *AuthService) issue(u *models.User) (*Session, error) {
	if s.deps.Tokens == nil {
		return nil, newError(ErrUnavailable, "Authentication is not configured")
	}
	token, claims, err := s.deps.Tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: u}, nil
}
