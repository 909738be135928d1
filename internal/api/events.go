package api

import (
	"time"

	"spotmm/pkg/types"
)

// DashboardEvent is the wrapper for every message sent to a connected
// dashboard client.
type DashboardEvent struct {
	Type      string      `json:"type"` // "snapshot" or "fill"
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// FillEventPayload is a single deduplicated fill, formatted for the
// dashboard.
type FillEventPayload struct {
	Hash  string `json:"hash"`
	Side  string `json:"side"`
	Price string `json:"price"`
	Size  string `json:"size"`
	Fee   string `json:"fee"`
	At    string `json:"at"`
}

// NewFillEvent builds a DashboardEvent carrying one fill.
func NewFillEvent(f types.Fill) DashboardEvent {
	return DashboardEvent{
		Type:      "fill",
		Timestamp: f.At,
		Data: FillEventPayload{
			Hash:  f.Hash,
			Side:  string(f.Side),
			Price: f.Price.String(),
			Size:  f.Size.String(),
			Fee:   f.Fee.String(),
			At:    f.At.Format(time.RFC3339),
		},
	}
}
