package models

import "time"

const (
	EventUserDeleted   = "user.deleted"
	EventTenantDeleted = "tenant.deleted"
)

// Event is a best-effort notification emitted after a committed change.
type Event struct {
	Type      string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}
