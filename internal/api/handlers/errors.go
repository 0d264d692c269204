package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/St1cky1/tarefa-service/internal/entity"
)

// Error categories reported in the envelope.
const (
	CategoryValidation       = "Validation Error"
	CategoryInvalidJSON      = "Invalid JSON"
	CategoryInvalidParameter = "Invalid Parameter"
	CategoryMissingParameter = "Missing Parameter"
	CategoryNotFound         = "Not Found"
	CategoryEndpointNotFound = "Endpoint Not Found"
	CategoryMethodNotAllowed = "Method Not Allowed"
	CategoryUnsupportedMedia = "Unsupported Media Type"
	CategoryDataConflict     = "Data Conflict"
	CategoryBusinessRule     = "Business Rule Violated"
	CategoryInternal         = "Internal Server Error"
)

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Timestamp     time.Time         `json:"timestamp"`
	HTTPStatus    int               `json:"httpStatus"`
	ErrorCategory string            `json:"errorCategory"`
	Message       string            `json:"message"`
	Details       map[string]string `json:"details"`
}

// InvalidJSONError - тело запроса не разбирается
type InvalidJSONError struct {
	Field    string
	Value    string
	Accepted []string
	Err      error
}

func (e *InvalidJSONError) Error() string {
	return fmt.Sprintf("invalid JSON body (field %s): %v", e.Field, e.Err)
}

func (e *InvalidJSONError) Unwrap() error { return e.Err }

// InvalidParameterError - path/query параметр неверного типа
type InvalidParameterError struct {
	Parameter    string
	Value        string
	ExpectedType string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("Parameter '%s' must be of type %s", e.Parameter, e.ExpectedType)
}

type MissingParameterError struct {
	Parameter string
	Type      string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("Required parameter '%s' was not provided", e.Parameter)
}

type EndpointNotFoundError struct {
	Method string
	URL    string
}

func (e *EndpointNotFoundError) Error() string {
	return fmt.Sprintf("Endpoint '%s %s' does not exist", e.Method, e.URL)
}

type MethodNotAllowedError struct {
	Method    string
	Supported []string
	URL       string
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("HTTP method '%s' is not supported for this URL", e.Method)
}

type UnsupportedMediaTypeError struct {
	Received  string
	Supported []string
}

func (e *UnsupportedMediaTypeError) Error() string {
	return "Request content type is not supported"
}

// translate maps an error to its status, category, message and details.
// Anything outside the known kinds is an internal error and its text is never exposed.
func translate(err error) (int, string, string, map[string]string) {
	var (
		validationErr *entity.ValidationError
		notFoundErr   *entity.NotFoundError
		ruleErr       *entity.BusinessRuleError
		conflictErr   *entity.DataConflictError
		jsonErr       *InvalidJSONError
		paramErr      *InvalidParameterError
		missingErr    *MissingParameterError
		endpointErr   *EndpointNotFoundError
		methodErr     *MethodNotAllowedError
		mediaErr      *UnsupportedMediaTypeError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, CategoryValidation, "Invalid data provided", validationErr.Fields

	case errors.As(err, &jsonErr):
		if jsonErr.Accepted != nil {
			return http.StatusBadRequest, CategoryInvalidJSON, "Invalid value for enum field", map[string]string{
				"field":          jsonErr.Field,
				"receivedValue":  jsonErr.Value,
				"acceptedValues": "[" + strings.Join(jsonErr.Accepted, ", ") + "]",
			}
		}
		return http.StatusBadRequest, CategoryInvalidJSON, "Invalid or malformed JSON", map[string]string{
			"field": jsonErr.Field,
		}

	case errors.As(err, &paramErr):
		return http.StatusBadRequest, CategoryInvalidParameter, paramErr.Error(), map[string]string{
			"parameter":     paramErr.Parameter,
			"receivedValue": paramErr.Value,
			"expectedType":  paramErr.ExpectedType,
		}

	case errors.As(err, &missingErr):
		return http.StatusBadRequest, CategoryMissingParameter, missingErr.Error(), map[string]string{
			"parameter": missingErr.Parameter,
			"type":      missingErr.Type,
		}

	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, CategoryNotFound, notFoundErr.Error(), map[string]string{
			"id": strconv.FormatInt(notFoundErr.ID, 10),
		}

	case errors.As(err, &endpointErr):
		return http.StatusNotFound, CategoryEndpointNotFound, endpointErr.Error(), map[string]string{
			"method": endpointErr.Method,
			"url":    endpointErr.URL,
		}

	case errors.As(err, &methodErr):
		return http.StatusMethodNotAllowed, CategoryMethodNotAllowed, methodErr.Error(), map[string]string{
			"method":           methodErr.Method,
			"supportedMethods": strings.Join(methodErr.Supported, ", "),
			"url":              methodErr.URL,
		}

	case errors.As(err, &mediaErr):
		received := mediaErr.Received
		if received == "" {
			received = "null"
		}
		return http.StatusUnsupportedMediaType, CategoryUnsupportedMedia, mediaErr.Error(), map[string]string{
			"receivedType":   received,
			"supportedTypes": "[" + strings.Join(mediaErr.Supported, ", ") + "]",
		}

	case errors.As(err, &conflictErr):
		details := map[string]string{"type": conflictErr.Kind}
		if conflictErr.Field != "" {
			details["field"] = conflictErr.Field
			details["value"] = conflictErr.Value
		}
		return http.StatusConflict, CategoryDataConflict, conflictErr.Message, details

	case errors.As(err, &ruleErr):
		details := map[string]string{"rule": ruleErr.Rule}
		if ruleErr.CurrentState != "" {
			details["currentState"] = ruleErr.CurrentState
		}
		return http.StatusUnprocessableEntity, CategoryBusinessRule, ruleErr.Message, details
	}

	return http.StatusInternalServerError, CategoryInternal, "An unexpected error occurred", map[string]string{
		"category": "internal",
	}
}

// WriteError translates err and writes the error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, category, message, details := translate(err)

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "url", r.URL.Path, "error", err)
	} else {
		slog.Warn("request rejected", "method", r.Method, "url", r.URL.Path, "category", category, "error", err)
	}

	writeJSON(w, status, &ErrorResponse{
		Timestamp:     time.Now().UTC(),
		HTTPStatus:    status,
		ErrorCategory: category,
		Message:       message,
		Details:       details,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// decodeJSON reads the request body into dst, reporting decode failures as *InvalidJSONError.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return nil
	}

	var (
		enumErr *entity.InvalidEnumError
		typeErr *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &enumErr):
		return &InvalidJSONError{Field: enumErr.Field, Value: enumErr.Value, Accepted: enumErr.Accepted, Err: err}
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return &InvalidJSONError{Field: typeErr.Field, Err: err}
	}
	// syntax errors, empty body, wrong top-level type
	return &InvalidJSONError{Field: "root", Err: err}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &InvalidParameterError{Parameter: "id", Value: raw, ExpectedType: "int64"}
	}
	return id, nil
}
