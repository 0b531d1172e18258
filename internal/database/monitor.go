// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package database

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"

	"github.com/tomtom215/merkato/internal/metrics"
)

// commandTimer feeds driver command events into the mongo operation
// histogram. Started events remember the collection per request ID until
// the matching succeeded or failed event arrives.
type commandTimer struct {
	mu       sync.Mutex
	inflight map[int64]string
	record   func(operation, collection string, d time.Duration)
}

func newCommandTimer() *commandTimer {
	return &commandTimer{
		inflight: make(map[int64]string),
		record:   metrics.RecordMongoOperation,
	}
}

// Monitor returns the driver hook.
func (c *commandTimer) Monitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Started: func(_ context.Context, e *event.CommandStartedEvent) {
			c.started(e.RequestID, e.CommandName, e.Command)
		},
		Succeeded: func(_ context.Context, e *event.CommandSucceededEvent) {
			c.finished(e.RequestID, e.CommandName, e.Duration)
		},
		Failed: func(_ context.Context, e *event.CommandFailedEvent) {
			c.finished(e.RequestID, e.CommandName, e.Duration)
		},
	}
}

func (c *commandTimer) started(id int64, name string, cmd bson.Raw) {
	coll := commandCollection(name, cmd)
	if coll == "" {
		return
	}
	c.mu.Lock()
	c.inflight[id] = coll
	c.mu.Unlock()
}

func (c *commandTimer) finished(id int64, name string, d time.Duration) {
	c.mu.Lock()
	coll, ok := c.inflight[id]
	delete(c.inflight, id)
	c.mu.Unlock()
	if ok {
		c.record(name, coll, d)
	}
}

// commandCollection extracts the target collection. Commands such as
// ping, hello and endSessions carry none and are not timed.
func commandCollection(name string, cmd bson.Raw) string {
	if name == "getMore" {
		coll, _ := cmd.Lookup("collection").StringValueOK()
		return coll
	}
	if len(cmd) == 0 {
		return ""
	}
	coll, _ := cmd.Lookup(name).StringValueOK()
	return coll
}
