// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

/*
Package websocket pushes realtime notifications to signed-in users.

The Hub keeps a set of connections per user id. Order status changes,
delivery assignments and other notifications are persisted by the
notification service and then handed to Hub.PushNotification, which queues
them for every open connection of the recipient. Administrators can
Broadcast announcements to everyone.

Each Client runs two goroutines:
  - readPump: answers application-level pings and detects disconnects
  - writePump: writes queued messages and sends protocol pings

A client whose send buffer fills up is disconnected instead of slowing
down delivery to other users. The hub runs under the supervisor via
RunWithContext and closes every client on shutdown.

Message types:

  - connected: sent once after registration
  - notification: a stored models.Notification
  - announcement: an admin broadcast
  - ping/pong: keepalive initiated by the client

The HTTP upgrade endpoint lives in package api (GET /ws?token=...), which
authenticates the token and throttles upgrades per client IP.
*/
package websocket
