// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package database

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
)

type timedCommand struct {
	operation  string
	collection string
	duration   time.Duration
}

func rawCommand(t *testing.T, doc bson.D) bson.Raw {
	t.Helper()
	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return raw
}

func TestCommandTimer(t *testing.T) {
	var got []timedCommand
	timer := newCommandTimer()
	timer.record = func(op, coll string, d time.Duration) {
		got = append(got, timedCommand{op, coll, d})
	}
	mon := timer.Monitor()
	ctx := context.Background()

	mon.Started(ctx, &event.CommandStartedEvent{
		RequestID:   1,
		CommandName: "find",
		Command:     rawCommand(t, bson.D{{Key: "find", Value: CollProducts}, {Key: "filter", Value: bson.D{}}}),
	})
	mon.Started(ctx, &event.CommandStartedEvent{
		RequestID:   2,
		CommandName: "getMore",
		Command:     rawCommand(t, bson.D{{Key: "getMore", Value: int64(42)}, {Key: "collection", Value: CollOrders}}),
	})
	mon.Started(ctx, &event.CommandStartedEvent{
		RequestID:   3,
		CommandName: "ping",
		Command:     rawCommand(t, bson.D{{Key: "ping", Value: 1}}),
	})

	finish := func(id int64, name string, d time.Duration) event.CommandFinishedEvent {
		return event.CommandFinishedEvent{RequestID: id, CommandName: name, Duration: d}
	}
	mon.Succeeded(ctx, &event.CommandSucceededEvent{CommandFinishedEvent: finish(1, "find", 4*time.Millisecond)})
	mon.Failed(ctx, &event.CommandFailedEvent{CommandFinishedEvent: finish(2, "getMore", 9*time.Millisecond), Failure: "cursor killed"})
	mon.Succeeded(ctx, &event.CommandSucceededEvent{CommandFinishedEvent: finish(3, "ping", time.Millisecond)})
	// A finish without a start is ignored.
	mon.Succeeded(ctx, &event.CommandSucceededEvent{CommandFinishedEvent: finish(99, "find", time.Millisecond)})

	want := []timedCommand{
		{"find", CollProducts, 4 * time.Millisecond},
		{"getMore", CollOrders, 9 * time.Millisecond},
	}
	if len(got) != len(want) {
		t.Fatalf("recorded %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if len(timer.inflight) != 0 {
		t.Errorf("inflight = %v, want empty", timer.inflight)
	}
}
