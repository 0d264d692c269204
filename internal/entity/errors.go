package entity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrInvalidTaskData = errors.New("invalid task data")
	ErrBusinessRule    = errors.New("business rule violated")
	ErrDataConflict    = errors.New("data conflict")
)

// Business rule names reported in error details.
const (
	RuleAlreadyCompleted        = "ALREADY_COMPLETED"
	RuleCannotCompleteCancelled = "CANNOT_COMPLETE_CANCELLED"
	RuleAlreadyCancelled        = "ALREADY_CANCELLED"
	RuleCannotCancelCompleted   = "CANNOT_CANCEL_COMPLETED"
	RuleStatusInvalid           = "STATUS_INVALID"
	RuleSearchTooShort          = "SEARCH_TOO_SHORT"
)

// NotFoundError carries the id that could not be found.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Task with ID %d was not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrTaskNotFound
}

// BusinessRuleError is a domain-level rejection, distinct from input validation.
type BusinessRuleError struct {
	Rule         string
	CurrentState string
	Message      string
}

func (e *BusinessRuleError) Error() string {
	return e.Message
}

func (e *BusinessRuleError) Is(target error) bool {
	return target == ErrBusinessRule
}

// ValidationError maps field names to violation messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidTaskData
}

// Conflict kinds.
const (
	ConflictDuplicate  = "DUPLICATE"
	ConflictConstraint = "CONSTRAINT"
)

// DataConflictError is a store-level constraint violation.
type DataConflictError struct {
	Kind    string
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *DataConflictError) Error() string {
	return e.Message
}

func (e *DataConflictError) Unwrap() error {
	return e.Err
}

func (e *DataConflictError) Is(target error) bool {
	return target == ErrDataConflict
}

// NewConflictError builds a conflict error with the standard message for kind.
func NewConflictError(kind string, err error) *DataConflictError {
	msg := "Data integrity rule violated"
	switch kind {
	case ConflictDuplicate:
		msg = "A record with these unique values already exists"
	case ConflictConstraint:
		msg = "Relationship between records violated"
	}
	return &DataConflictError{Kind: kind, Message: msg, Err: err}
}

// InvalidEnumError is returned when a JSON token is not one of the enum values.
type InvalidEnumError struct {
	Field    string
	Value    string
	Accepted []string
}

func (e *InvalidEnumError) Error() string {
	return fmt.Sprintf("invalid value %q for field %s, accepted values: %s",
		e.Value, e.Field, strings.Join(e.Accepted, ", "))
}
