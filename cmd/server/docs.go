// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

// Package main provides the Merkato HTTP server
//
// @title Merkato API
// @version 1.0
// @description Multi-role marketplace for Ethiopian regional commerce: customers, sellers, delivery agents and administrators.
// @description
// @description ## Authentication
// @description
// @description Obtain a token from `/api/auth/login` or `/api/auth/register` and send it as `Authorization: Bearer <token>`.
// @description
// @description ## Rate Limiting
// @description
// @description Default rate limit: 100 requests per 15 minutes per client IP. Login and registration allow 5 attempts per minute.
// @description
// @description ## Error Responses
// @description
// @description ```json
// @description { "success": false, "message": "Validation failed", "errors": ["Email is required"] }
// @description ```
//
// @contact.name GitHub Repository
// @contact.url https://github.com/tomtom215/merkato
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @BasePath /
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT access token as: Bearer {token}
//
// @tag.name Auth
// @tag.description Registration, login and session management
//
// @tag.name Products
// @tag.description Catalog browsing, seller product management and reviews
//
// @tag.name Orders
// @tag.description Checkout, order status flow and tracking
//
// @tag.name Delivery
// @tag.description Delivery agent order claiming and status updates
//
// @tag.name Admin
// @tag.description User approval, moderation, assignment, analytics and bulk email
//
// @tag.name Users
// @tag.description Profile, cart, wishlist, notifications and seller directory
package main
