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

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/audit"
	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/notify"
	"github.com/tomtom215/merkato/internal/store"
)

// UserStatusInput is the body of PATCH /admin/users/{id}/status.
type UserStatusInput struct {
	IsActive *bool  `json:"isActive" validate:"required"`
	Reason   string `json:"reason" validate:"max=500"`
}

// AssignInput is the body of PATCH /admin/orders/{id}/assign.
type AssignInput struct {
	AgentID string `json:"deliveryAgentId" validate:"required,objectid"`
}

// BulkEmailInput is the body of POST /admin/emails/bulk.
type BulkEmailInput struct {
	Role    string `json:"role" validate:"omitempty,role"`
	Subject string `json:"subject" validate:"required,min=3,max=200"`
	Body    string `json:"body" validate:"required,min=3,max=10000"`
}

// AdminService implements moderation. Every mutation is written to the
// audit trail.
type AdminService struct {
	*base
	orders *OrderService
}

// ListUsers lists accounts matching f.
func (s *AdminService) ListUsers(ctx context.Context, f store.UserFilter) ([]models.User, int64, error) {
	return s.store().Users.List(ctx, f)
}

// GetUser returns one account.
func (s *AdminService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.user(ctx, id, "User")
}

// SetUserActive activates or deactivates an account. Admins cannot
// deactivate themselves.
func (s *AdminService) SetUserActive(ctx context.Context, admin *models.User, id primitive.ObjectID, in UserStatusInput) (*models.User, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	active := *in.IsActive
	if id == admin.ID && !active {
		return nil, badRequest("You cannot deactivate your own account")
	}
	u, err := s.user(ctx, id, "User")
	if err != nil {
		return nil, err
	}
	if u.IsActive == active {
		return u, nil
	}
	u.IsActive = active
	u.UpdatedAt = s.now()
	if err := s.store().Users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	typ, verb := audit.EventUserDeactivated, "deactivated"
	if active {
		typ, verb = audit.EventUserActivated, "activated"
	}
	s.auditAdmin(ctx, typ, userTarget(u), "Account "+verb, map[string]string{"reason": in.Reason})
	s.email(ctx, u, notify.TemplateAccountStatus, notify.AccountStatusData{Active: active, Reason: in.Reason})
	s.deliver(ctx, &models.Notification{
		UserID:  u.ID,
		Type:    models.NotificationAccountStatus,
		Title:   "Account " + verb,
		Message: "Your account has been " + verb + ".",
	})
	return u, nil
}

// Approve approves a seller or delivery agent.
func (s *AdminService) Approve(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := s.user(ctx, id, "User")
	if err != nil {
		return nil, err
	}
	if !u.Role.RequiresApproval() {
		return nil, badRequest("Only sellers and delivery agents need approval")
	}
	if u.IsApproved {
		return u, nil
	}
	u.IsApproved = true
	u.UpdatedAt = s.now()
	if err := s.store().Users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("approve user: %w", err)
	}

	s.auditAdmin(ctx, audit.EventUserApproved, userTarget(u), "Approved "+string(u.Role), nil)
	data := notify.SellerApprovedData{Role: u.Role}
	if u.Seller != nil {
		data.BusinessName = u.Seller.BusinessName
	}
	s.email(ctx, u, notify.TemplateSellerApproved, data)
	s.deliver(ctx, &models.Notification{
		UserID:  u.ID,
		Type:    models.NotificationAccountStatus,
		Title:   "Account approved",
		Message: "Your account has been approved. Welcome to Merkato!",
	})
	return u, nil
}

// DeleteUser removes an account permanently. Admins cannot delete
// themselves.
func (s *AdminService) DeleteUser(ctx context.Context, admin *models.User, id primitive.ObjectID) error {
	if id == admin.ID {
		return badRequest("You cannot delete your own account")
	}
	u, err := s.user(ctx, id, "User")
	if err != nil {
		return err
	}
	if err := s.store().Users.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.auditAdmin(ctx, audit.EventUserDeleted, userTarget(u), "Deleted "+string(u.Role)+" account", map[string]string{"email": u.Email})
	return nil
}

// ListProducts lists every product including inactive ones.
func (s *AdminService) ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, int64, error) {
	f.IncludeInactive = true
	f.ExcludeSellers = nil
	return s.store().Products.List(ctx, f)
}

// SetProductActive activates or deactivates a product.
func (s *AdminService) SetProductActive(ctx context.Context, id primitive.ObjectID, active bool) (*models.Product, error) {
	return s.moderate(ctx, id, store.ProductChanges{IsActive: &active}, func() string {
		if active {
			return "Product activated"
		}
		return "Product deactivated"
	})
}

// SetProductFeatured features or unfeatures a product.
func (s *AdminService) SetProductFeatured(ctx context.Context, id primitive.ObjectID, featured bool) (*models.Product, error) {
	return s.moderate(ctx, id, store.ProductChanges{IsFeatured: &featured}, func() string {
		if featured {
			return "Product featured"
		}
		return "Product unfeatured"
	})
}

func (s *AdminService) moderate(ctx context.Context, id primitive.ObjectID, c store.ProductChanges, describe func() string) (*models.Product, error) {
	c.UpdatedAt = s.now()
	p, err := s.store().Products.Update(ctx, id, c)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Product not found")
	}
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	s.auditAdmin(ctx, audit.EventProductModerated, productTarget(p), describe(), map[string]bool{
		"isActive":   p.IsActive,
		"isFeatured": p.IsFeatured,
	})
	return p, nil
}

// DeleteProduct removes any product.
func (s *AdminService) DeleteProduct(ctx context.Context, id primitive.ObjectID) error {
	p, err := s.product(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store().Products.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.auditAdmin(ctx, audit.EventProductDeleted, productTarget(p), "Product deleted", map[string]string{"seller": p.SellerID.Hex()})
	return nil
}

// ListOrders lists every order.
func (s *AdminService) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, int64, error) {
	f.CustomerID, f.SellerID = nil, nil
	return s.store().Orders.List(ctx, f)
}

// AssignOrder attaches an active, approved delivery agent to an order that
// has not been dispatched yet. An existing assignment is replaced.
func (s *AdminService) AssignOrder(ctx context.Context, admin *models.User, id primitive.ObjectID, in AssignInput) (*models.Order, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	agentID, _ := primitive.ObjectIDFromHex(in.AgentID)
	agent, err := s.user(ctx, agentID, "Delivery agent")
	if err != nil {
		return nil, err
	}
	if agent.Role != models.RoleDeliveryAgent {
		return nil, badRequest("User is not a delivery agent")
	}
	o, err := s.order(ctx, id)
	if err != nil {
		return nil, err
	}
	if !assignable(o.Status) {
		return nil, conflict("Order can no longer be assigned in status " + string(o.Status))
	}

	updated, err := s.orders.assign(ctx, admin, agent, o, false, assignableStatuses)
	if err != nil {
		return nil, err
	}
	s.auditAdmin(ctx, audit.EventOrderAssigned, orderTarget(updated), "Assigned to "+agent.Name, map[string]string{
		"agentId":         agent.ID.Hex(),
		"previousAgentId": hexOrEmpty(o.DeliveryAgentID),
	})
	return updated, nil
}

// UpdateOrderStatus is an administrative status change. Admins may make
// any legal transition.
func (s *AdminService) UpdateOrderStatus(ctx context.Context, admin *models.User, id primitive.ObjectID, in StatusInput) (*models.Order, error) {
	before, err := s.order(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.orders.UpdateStatus(ctx, admin, id, in)
	if err != nil {
		return nil, err
	}
	s.auditAdmin(ctx, audit.EventOrderStatusOverride, orderTarget(updated),
		fmt.Sprintf("Status changed from %s to %s", before.Status, updated.Status),
		map[string]string{"from": string(before.Status), "to": string(updated.Status), "message": in.Message})
	return updated, nil
}

// BulkJob acknowledges a queued bulk email.
type BulkJob struct {
	Role       string `json:"role"`
	Recipients int    `json:"recipients"`
}

// BulkEmail queues an announcement to every active user of a role, or to
// all active users when role is empty. In-app notifications are created
// before it returns; the emails go out in the background at the mailer's
// bulk pace and the outcome is written to the audit trail.
func (s *AdminService) BulkEmail(ctx context.Context, in BulkEmailInput) (*BulkJob, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	if s.deps.Mailer == nil {
		return nil, newError(ErrUnavailable, "Email is not configured")
	}
	users, _, err := s.store().Users.List(ctx, store.UserFilter{Role: models.Role(in.Role), IsActive: boolPtr(true)})
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	if len(users) == 0 {
		return nil, notFound("No recipients match the selected role")
	}

	recipients := make([]notify.Recipient, 0, len(users))
	for i := range users {
		recipients = append(recipients, notify.Recipient{Email: users[i].Email, Name: users[i].Name})
	}
	subject := strings.TrimSpace(in.Subject)
	target := &audit.Target{ID: in.Role, Type: audit.TargetRole, Name: in.Role}
	if in.Role == "" {
		target = &audit.Target{ID: "all", Type: audit.TargetRole, Name: "all users"}
	}

	bg := context.WithoutCancel(ctx)
	err = s.deps.Mailer.DispatchBulk(bg, recipients, notify.TemplateAnnouncement, notify.AnnouncementData{
		Subject: subject,
		Body:    in.Body,
	}, func(result notify.BulkResult) {
		s.auditAdmin(bg, audit.EventBulkEmail, target, "Bulk email: "+subject, map[string]any{
			"total":     result.Total,
			"sent":      result.Sent,
			"failed":    result.Failed,
			"cancelled": result.Cancelled,
		})
		logging.Ctx(bg).Info().Str("role", in.Role).Int("sent", result.Sent).Int("failed", result.Failed).Msg("Bulk email sent")
	})
	if errors.Is(err, notify.ErrMailerClosed) {
		return nil, newError(ErrUnavailable, "Email is shutting down")
	}
	if err != nil {
		return nil, fmt.Errorf("queue bulk email: %w", err)
	}

	for i := range users {
		s.deliver(bg, &models.Notification{
			UserID:  users[i].ID,
			Type:    models.NotificationAnnouncement,
			Title:   subject,
			Message: in.Body,
		})
	}
	return &BulkJob{Role: in.Role, Recipients: len(recipients)}, nil
}

// AuditTrail queries the audit log.
func (s *AdminService) AuditTrail(ctx context.Context, f audit.Filter) ([]audit.Event, int64, error) {
	if s.deps.Audit == nil {
		return []audit.Event{}, 0, nil
	}
	events, total, err := s.deps.Audit.Query(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit trail: %w", err)
	}
	return events, total, nil
}

func assignable(status models.OrderStatus) bool {
	for _, s := range assignableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func userTarget(u *models.User) *audit.Target {
	return &audit.Target{ID: u.ID.Hex(), Type: audit.TargetUser, Name: u.Email}
}

func productTarget(p *models.Product) *audit.Target {
	return &audit.Target{ID: p.ID.Hex(), Type: audit.TargetProduct, Name: p.Name}
}

func orderTarget(o *models.Order) *audit.Target {
	return &audit.Target{ID: o.ID.Hex(), Type: audit.TargetOrder, Name: o.OrderNumber}
}

func hexOrEmpty(id *primitive.ObjectID) string {
	if id == nil {
		return ""
	}
	return id.Hex()
}
