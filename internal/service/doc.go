// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

/*
Package service implements the marketplace use cases on top of the store.

Each service takes the acting user explicitly; HTTP handlers resolve it from
the request context. Failures the client should see are returned as *Error,
whose Kind is one of the sentinel errors declared in errors.go, so handlers
map them to status codes with errors.Is. Validation failures are returned as
*validation.RequestValidationError.

Side effects run after the primary write succeeded:

  - domain events go to the event bus; the notification and analytics
    consumers react to them
  - transactional email is queued on the mailer and never fails a request
  - administrative actions are written to the audit trail

Placing an order reserves stock line by line with a conditional decrement
and returns what was already reserved when a later line fails, so an order
is either created with all of its stock or leaves stock untouched.
*/
package service
