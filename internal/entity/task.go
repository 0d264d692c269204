package entity

import (
	"encoding/json"
	"strings"
	"time"
)

type TaskStatus string

const (
	StatusPending   TaskStatus = "PENDING"
	StatusCompleted TaskStatus = "COMPLETED"
	StatusCancelled TaskStatus = "CANCELLED"
)

// TaskStatuses lists every accepted status in declaration order.
var TaskStatuses = []TaskStatus{StatusPending, StatusCompleted, StatusCancelled}

func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition operation may leave the status.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// UnmarshalJSON accepts only the exact enum tokens; anything else is an
// *InvalidEnumError so the HTTP layer can report the accepted values.
func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status := TaskStatus(raw)
	if !status.IsValid() {
		return &InvalidEnumError{Field: "status", Value: raw, Accepted: statusNames()}
	}
	*s = status
	return nil
}

// ParseTaskStatus parses a status token case-insensitively.
func ParseTaskStatus(token string) (TaskStatus, bool) {
	status := TaskStatus(strings.ToUpper(strings.TrimSpace(token)))
	return status, status.IsValid()
}

func statusNames() []string {
	names := make([]string, len(TaskStatuses))
	for i, s := range TaskStatuses {
		names[i] = string(s)
	}
	return names
}

type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// валидация: см. validation.go
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      TaskStatus `json:"status"`
}

// UpdateTaskRequest is a partial replacement: a blank title keeps the stored
// one, description is always overwritten, an empty status keeps the stored one.
type UpdateTaskRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      TaskStatus `json:"status"`
}

type Statistics struct {
	Total          int64   `json:"total"`
	Pending        int64   `json:"pending"`
	Completed      int64   `json:"completed"`
	Cancelled      int64   `json:"cancelled"`
	CompletionRate float64 `json:"completionRate"`
}
