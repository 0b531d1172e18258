// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package notify

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/orderflow"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Name identifies a built-in email template.
type Name string

const (
	TemplateWelcome            Name = "welcome"
	TemplateOrderConfirmation  Name = "order_confirmation"
	TemplateOrderStatusUpdate  Name = "order_status_update"
	TemplateSellerApproved     Name = "seller_approved"
	TemplateAccountStatus      Name = "account_status"
	TemplateDeliveryAssignment Name = "delivery_assignment"
	TemplatePasswordChanged    Name = "password_changed"
	TemplateLowStockAlert      Name = "low_stock_alert"
	TemplateAnnouncement       Name = "announcement"
)

// Templates lists every built-in template.
var Templates = []Name{
	TemplateWelcome,
	TemplateOrderConfirmation,
	TemplateOrderStatusUpdate,
	TemplateSellerApproved,
	TemplateAccountStatus,
	TemplateDeliveryAssignment,
	TemplatePasswordChanged,
	TemplateLowStockAlert,
	TemplateAnnouncement,
}

// ErrUnknownTemplate is returned when rendering a name that is not registered.
var ErrUnknownTemplate = errors.New("unknown email template")

// WelcomeData is the payload for TemplateWelcome.
type WelcomeData struct {
	Role          models.Role
	NeedsApproval bool
}

// OrderConfirmationData is the payload for TemplateOrderConfirmation.
type OrderConfirmationData struct {
	Order *models.Order
}

// OrderStatusData is the payload for TemplateOrderStatusUpdate.
type OrderStatusData struct {
	OrderID     string
	OrderNumber string
	Status      models.OrderStatus
	Message     string
	Location    string
}

// SellerApprovedData is the payload for TemplateSellerApproved. It is also
// used for approved delivery agents.
type SellerApprovedData struct {
	Role         models.Role
	BusinessName string
}

// AccountStatusData is the payload for TemplateAccountStatus.
type AccountStatusData struct {
	Active bool
	Reason string
}

// DeliveryAssignmentData is the payload for TemplateDeliveryAssignment.
type DeliveryAssignmentData struct {
	OrderID       string
	OrderNumber   string
	Address       models.Address
	ContactPhone  string
	ItemCount     int
	Total         models.Money
	PaymentMethod models.PaymentMethod
}

// PasswordChangedData is the payload for TemplatePasswordChanged.
type PasswordChangedData struct {
	ChangedAt time.Time
	IP        string
}

// LowStockData is the payload for TemplateLowStockAlert.
type LowStockData struct {
	ProductID   string
	ProductName string
	Stock       int
	Threshold   int
}

// AnnouncementData is the payload for TemplateAnnouncement.
type AnnouncementData struct {
	Subject string
	Body    string
}

// Site carries branding shared by every template.
type Site struct {
	Name           string
	URL            string
	SupportAddress string
}

// Recipient is one addressee.
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Rendered is a fully rendered message.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// view is the root value every template executes against.
type view struct {
	Site      Site
	Recipient Recipient
	Data      any
	Year      int
}

type compiled struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// Renderer executes the built-in templates. It is safe for concurrent use.
type Renderer struct {
	site      Site
	templates map[Name]compiled
	now       func() time.Time
}

// NewRenderer parses every built-in template. Each template file defines
// "subject", "html" and "text" blocks and may use the shared layout blocks.
func NewRenderer(site Site) (*Renderer, error) {
	if site.Name == "" {
		site.Name = "Merkato"
	}
	site.URL = strings.TrimRight(site.URL, "/")

	r := &Renderer{
		site:      site,
		templates: make(map[Name]compiled, len(Templates)),
		now:       time.Now,
	}
	for _, name := range Templates {
		files := []string{"templates/layout.tmpl", "templates/" + string(name) + ".tmpl"}

		h, err := htmltemplate.New(string(name)).Funcs(htmltemplate.FuncMap(funcMap())).ParseFS(templateFS, files...)
		if err != nil {
			return nil, fmt.Errorf("parse html template %s: %w", name, err)
		}
		t, err := texttemplate.New(string(name)).Funcs(funcMap()).ParseFS(templateFS, files...)
		if err != nil {
			return nil, fmt.Errorf("parse text template %s: %w", name, err)
		}
		r.templates[name] = compiled{html: h, text: t}
	}
	return r, nil
}

// Has reports whether name is a registered template.
func (r *Renderer) Has(name Name) bool {
	_, ok := r.templates[name]
	return ok
}

// Render produces the subject and both bodies for one recipient.
func (r *Renderer) Render(name Name, to Recipient, data any) (*Rendered, error) {
	tpl, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	v := view{Site: r.site, Recipient: to, Data: data, Year: r.now().Year()}

	var subject, text, html bytes.Buffer
	if err := tpl.text.ExecuteTemplate(&subject, "subject", v); err != nil {
		return nil, fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := tpl.text.ExecuteTemplate(&text, "text", v); err != nil {
		return nil, fmt.Errorf("render %s text: %w", name, err)
	}
	if err := tpl.html.ExecuteTemplate(&html, "html", v); err != nil {
		return nil, fmt.Errorf("render %s html: %w", name, err)
	}

	out := &Rendered{
		Subject: sanitizeHeader(subject.String()),
		HTML:    strings.TrimSpace(html.String()),
		Text:    strings.TrimSpace(text.String()) + "\n",
	}
	if out.Subject == "" {
		return nil, fmt.Errorf("render %s: empty subject", name)
	}
	return out, nil
}

// sanitizeHeader collapses whitespace so a value cannot inject headers.
func sanitizeHeader(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func funcMap() texttemplate.FuncMap {
	return texttemplate.FuncMap{
		"money": func(m models.Money) string {
			return m.String() + " ETB"
		},
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("January 2, 2006")
		},
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.UTC().Format("January 2, 2006 15:04 MST")
		},
		"statusLabel": func(s models.OrderStatus) string {
			return orderflow.Describe(s).Label
		},
		"progress": orderflow.Progress,
		"roleLabel": func(r models.Role) string {
			switch r {
			case models.RoleDeliveryAgent:
				return "delivery agent"
			case "":
				return "member"
			default:
				return string(r)
			}
		},
		"paymentLabel": paymentLabel,
		"default": func(def, v string) string {
			if strings.TrimSpace(v) == "" {
				return def
			}
			return v
		},
		"paragraphs": func(s string) []string {
			var out []string
			for _, p := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n\n") {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			return out
		},
	}
}

func paymentLabel(p models.PaymentMethod) string {
	switch p {
	case models.PaymentCashOnDelivery:
		return "Cash on delivery"
	case models.PaymentTelebirr:
		return "telebirr"
	case models.PaymentCBEBirr:
		return "CBE Birr"
	case models.PaymentBankTransfer:
		return "Bank transfer"
	default:
		return string(p)
	}
}
