// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

/*
Package auth authenticates API callers and limits request rates.

# Tokens

Access tokens are HS256 JWTs issued by TokenManager. Claims carry the user
ID, email, role and a unique token ID (jti). Logging out revokes the jti in
a RevocationStore backed by BadgerDB, with a TTL equal to the token's
remaining lifetime so the store never outgrows the set of live tokens.

# Middleware

Authenticator.Authenticate reads a Bearer token from the Authorization
header or the "token" cookie, rejects revoked tokens, reloads the account
and rejects deactivated users. RequireRole restricts a route to a set of
roles; admins pass every role check.

# Rate limiting

SlidingWindowLimiter keeps per-IP request timestamps in memory and prunes
them by age. RedisSlidingWindowLimiter implements the same window with a
Redis sorted set so limits hold across replicas. RouteLimit adds the
stricter fixed limits used on login and write routes (go-chi/httprate),
and UpgradeLimiter throttles websocket upgrades with token buckets.

IPResolver decides which address a request is counted against. Forwarding
headers are honoured only when the immediate peer is a trusted proxy.
*/
package auth
