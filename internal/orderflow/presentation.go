// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package orderflow

import "github.com/tomtom215/merkato/internal/models"

// Presentation is how clients render a status badge.
type Presentation struct {
	Status models.OrderStatus `json:"status"`
	Label  string             `json:"label"`
	Color  string             `json:"color"`
	Icon   string             `json:"icon"`

	// Step is the 1-based position on the happy path; 0 for cancelled.
	Step int `json:"step"`
}

// happyPath is the delivery sequence without cancellation.
var happyPath = []models.OrderStatus{
	models.StatusPending,
	models.StatusAccepted,
	models.StatusPreparing,
	models.StatusReadyForPickup,
	models.StatusDispatched,
	models.StatusInTransit,
	models.StatusDelivered,
}

var presentations = map[models.OrderStatus]Presentation{
	models.StatusPending:        {Label: "Pending", Color: "yellow", Icon: "clock"},
	models.StatusAccepted:       {Label: "Accepted", Color: "blue", Icon: "check-circle"},
	models.StatusPreparing:      {Label: "Preparing", Color: "indigo", Icon: "package"},
	models.StatusReadyForPickup: {Label: "Ready for pickup", Color: "purple", Icon: "archive"},
	models.StatusDispatched:     {Label: "Dispatched", Color: "cyan", Icon: "send"},
	models.StatusInTransit:      {Label: "In transit", Color: "orange", Icon: "truck"},
	models.StatusDelivered:      {Label: "Delivered", Color: "green", Icon: "home"},
	models.StatusCancelled:      {Label: "Cancelled", Color: "red", Icon: "x-circle"},
}

// Describe returns the presentation for s. Unknown statuses render grey.
func Describe(s models.OrderStatus) Presentation {
	p, ok := presentations[s]
	if !ok {
		return Presentation{Status: s, Label: string(s), Color: "gray", Icon: "help-circle"}
	}
	p.Status = s
	p.Step = step(s)
	return p
}

// DescribeAll returns presentations for every status in display order.
func DescribeAll() []Presentation {
	out := make([]Presentation, 0, len(models.OrderStatuses))
	for _, s := range models.OrderStatuses {
		out = append(out, Describe(s))
	}
	return out
}

func step(s models.OrderStatus) int {
	for i, h := range happyPath {
		if h == s {
			return i + 1
		}
	}
	return 0
}

// Progress is the percentage of the happy path completed. Cancelled
// orders report 0.
func Progress(s models.OrderStatus) int {
	st := step(s)
	if st == 0 {
		return 0
	}
	return (st - 1) * 100 / (len(happyPath) - 1)
}

// Edge is one row of the exported transition table.
type Edge struct {
	From  models.OrderStatus `json:"from"`
	To    models.OrderStatus `json:"to"`
	Roles []models.Role      `json:"roles"`
}

// Table exports the transition table with the roles allowed on each edge,
// ordered by source status.
func Table() []Edge {
	edges := []Edge{}
	for _, from := range models.OrderStatuses {
		for _, to := range transitions[from] {
			roles := []models.Role{}
			for _, r := range models.Roles {
				if Permitted(r, from, to) {
					roles = append(roles, r)
				}
			}
			edges = append(edges, Edge{From: from, To: to, Roles: roles})
		}
	}
	return edges
}
