package entity

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestCreateTaskRequestValidate(t *testing.T) {
	tests := []struct {
		name       string
		req        CreateTaskRequest
		wantFields []string
	}{
		{name: "valid", req: CreateTaskRequest{Title: "Buy milk"}},
		{name: "valid with accents", req: CreateTaskRequest{Title: "Revisão técnica!"}},
		{name: "minimum length", req: CreateTaskRequest{Title: "abc"}},
		{name: "maximum length", req: CreateTaskRequest{Title: strings.Repeat("a", 100)}},
		{name: "missing title", req: CreateTaskRequest{}, wantFields: []string{"title"}},
		{name: "blank title", req: CreateTaskRequest{Title: "   "}, wantFields: []string{"title"}},
		{name: "short title", req: CreateTaskRequest{Title: "AB"}, wantFields: []string{"title"}},
		{name: "trimmed too short", req: CreateTaskRequest{Title: "  ab  "}, wantFields: []string{"title"}},
		{name: "long title", req: CreateTaskRequest{Title: strings.Repeat("a", 101)}, wantFields: []string{"title"}},
		{name: "symbols", req: CreateTaskRequest{Title: "Pay <bills>"}, wantFields: []string{"title"}},
		{
			name:       "long description",
			req:        CreateTaskRequest{Title: "Buy milk", Description: ptr(strings.Repeat("d", 1001))},
			wantFields: []string{"description"},
		},
		{
			name:       "bad status",
			req:        CreateTaskRequest{Title: "Buy milk", Status: TaskStatus("DONE")},
			wantFields: []string{"status"},
		},
		{
			name:       "several fields",
			req:        CreateTaskRequest{Title: "x", Description: ptr(strings.Repeat("d", 1001))},
			wantFields: []string{"title", "description"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Len(t, verr.Fields, len(tt.wantFields))
			for _, f := range tt.wantFields {
				assert.Contains(t, verr.Fields, f)
			}
		})
	}
}

func TestCreateTaskRequestDescriptionLimit(t *testing.T) {
	req := CreateTaskRequest{Title: "Buy milk", Description: ptr(strings.Repeat("é", 1000))}
	assert.NoError(t, req.Validate())

	req.Description = ptr("  " + strings.Repeat("d", 1000) + "  ")
	assert.NoError(t, req.Validate(), "surrounding whitespace is not counted")
}

func TestUpdateTaskRequestValidate(t *testing.T) {
	assert.NoError(t, (&UpdateTaskRequest{}).Validate())
	assert.NoError(t, (&UpdateTaskRequest{Title: "  "}).Validate())
	assert.NoError(t, (&UpdateTaskRequest{Title: "New title", Status: StatusCancelled}).Validate())

	err := (&UpdateTaskRequest{Title: "ab"}).Validate()
	assert.ErrorIs(t, err, ErrInvalidTaskData)
}

func TestTrimmedDescription(t *testing.T) {
	assert.Nil(t, TrimmedDescription(nil))
	assert.Equal(t, "notes", *TrimmedDescription(ptr("  notes\n")))
	assert.Equal(t, "", *TrimmedDescription(ptr("   ")))
}

func TestParseTaskStatus(t *testing.T) {
	for _, token := range []string{"pending", "PENDING", "Pending", " completed ", "cAnCeLlEd"} {
		status, ok := ParseTaskStatus(token)
		assert.True(t, ok, token)
		assert.True(t, status.IsValid(), token)
	}

	_, ok := ParseTaskStatus("DONE")
	assert.False(t, ok)
	_, ok = ParseTaskStatus("")
	assert.False(t, ok)
}

func TestTaskStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
}

func TestTaskStatusUnmarshalJSON(t *testing.T) {
	var req CreateTaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{"title":"Buy milk","status":"COMPLETED"}`), &req))
	assert.Equal(t, StatusCompleted, req.Status)

	req = CreateTaskRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"title":"Buy milk","status":null}`), &req))
	assert.Equal(t, TaskStatus(""), req.Status)

	err := json.Unmarshal([]byte(`{"title":"Buy milk","status":"completed"}`), &req)
	var enumErr *InvalidEnumError
	require.ErrorAs(t, err, &enumErr)
	assert.Equal(t, "status", enumErr.Field)
	assert.Equal(t, "completed", enumErr.Value)
	assert.Equal(t, []string{"PENDING", "COMPLETED", "CANCELLED"}, enumErr.Accepted)
}

func TestTaskJSONShape(t *testing.T) {
	data, err := json.Marshal(Task{ID: 1, Title: "Buy milk", Status: StatusPending})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"id", "title", "description", "status", "createdAt", "updatedAt"} {
		assert.Contains(t, fields, key)
	}
	assert.Nil(t, fields["description"])
}

func TestErrorKinds(t *testing.T) {
	notFound := &NotFoundError{ID: 42}
	assert.ErrorIs(t, notFound, ErrTaskNotFound)
	assert.Equal(t, "Task with ID 42 was not found", notFound.Error())

	rule := &BusinessRuleError{Rule: RuleAlreadyCompleted, Message: "Task 'x' is already completed"}
	assert.ErrorIs(t, rule, ErrBusinessRule)
	assert.NotErrorIs(t, rule, ErrInvalidTaskData)

	conflict := NewConflictError(ConflictDuplicate, assert.AnError)
	assert.ErrorIs(t, conflict, ErrDataConflict)
	assert.ErrorIs(t, conflict, assert.AnError)
	assert.Equal(t, "A record with these unique values already exists", conflict.Error())
	assert.Equal(t, "Relationship between records violated", NewConflictError(ConflictConstraint, nil).Error())
}
