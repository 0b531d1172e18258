// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

/*
Package notify renders and sends transactional email.

Templates are embedded from templates/*.tmpl. Each file defines a "subject",
an "html" and a "text" block executed against a root value carrying site
branding, the recipient and a typed payload:

	TemplateWelcome            WelcomeData
	TemplateOrderConfirmation  OrderConfirmationData
	TemplateOrderStatusUpdate  OrderStatusData
	TemplateSellerApproved     SellerApprovedData
	TemplateAccountStatus      AccountStatusData
	TemplateDeliveryAssignment DeliveryAssignmentData
	TemplatePasswordChanged    PasswordChangedData
	TemplateLowStockAlert      LowStockData
	TemplateAnnouncement       AnnouncementData

The HTML body goes through html/template, so payload values are escaped.

Mailer.SendEmail never fails loudly: the Result says whether the message was
accepted and why not. SendBulk sends sequentially with a fixed delay between
recipients. Dispatch and DispatchBulk run sends in the background. Close
waits for them during shutdown and cancels bulk sends still running when
its context expires.

When email is disabled the LogTransport records each message instead of
sending it. Otherwise SMTPTransport (STARTTLS, PLAIN auth) runs behind a
gobreaker circuit breaker that opens after consecutive transient failures.
*/
package notify
