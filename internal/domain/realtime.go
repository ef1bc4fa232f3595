package domain

import "time"

// Change event kinds.
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// ChangeEvent is a row-level change pushed by the backend feed.
// Delivery is at-least-once; consumers must tolerate duplicates.
type ChangeEvent struct {
	Event     string         `json:"event"`
	Schema    string         `json:"schema"`
	Table     string         `json:"table"`
	Old       map[string]any `json:"old"`
	New       map[string]any `json:"new"`
	Timestamp time.Time      `json:"commit_timestamp"`
}
