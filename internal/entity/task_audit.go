package entity

import (
	"time"
)

type ActionType string

const (
	ActionCreate ActionType = "Create"
	ActionUpdate ActionType = "Update"
	ActionDelete ActionType = "Delete"
)

// SystemActor is recorded as the user of every audit entry; the service has
// no authenticated users.
const SystemActor = 0

const AuditEntityTask = "task"

type TaskAudit struct {
	ID         int64      `json:"id"`
	UserID     int        `json:"userId"`
	Action     ActionType `json:"action"`
	EntityType string     `json:"entityType"`
	EntityID   int64      `json:"entityId"`
	OldValues  *string    `json:"oldValues"`
	NewValues  *string    `json:"newValues"`
	Changes    *string    `json:"changes"`
	ChangedAt  time.Time  `json:"changedAt"`
}

type AuditMessage struct {
	UserID    int            `json:"user_id"`
	Action    ActionType     `json:"action"`
	EntityID  int64          `json:"entity_id"`
	OldValues map[string]any `json:"old_values"`
	NewValues map[string]any `json:"new_values"`
	Changes   map[string]any `json:"changes"`
	Timestamp time.Time      `json:"timestamp"`
}
