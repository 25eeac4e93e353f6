// Package apierror is the error taxonomy of the API and the single place where errors are
// turned into HTTP responses.
package apierror

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NonFieldKey collects validation messages that do not belong to a single field
const NonFieldKey = "non_field_errors"

// Error is an error with a status code and an optional set of field-level messages
type Error struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches errors with the same status, message and field messages, so the sentinels
// below and validation sentinels built with NonField work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Status == e.Status && t.Message == e.Message && reflect.DeepEqual(t.Fields, e.Fields)
}

var (
	ErrAuthenticationRequired = &Error{Status: http.StatusUnauthorized, Message: "Authentication credentials were not provided."}
	ErrInvalidToken           = &Error{Status: http.StatusUnauthorized, Message: "Given token not valid for any token type"}
	ErrPermissionDenied       = &Error{Status: http.StatusForbidden, Message: "You do not have permission to perform this action."}
	ErrNotFound               = &Error{Status: http.StatusNotFound, Message: "Not found."}
	ErrMalformedBody          = &Error{Status: http.StatusBadRequest, Message: "Malformed request body."}
	ErrThrottled              = &Error{Status: http.StatusTooManyRequests, Message: "Request was throttled."}
)

// ValidationMessage is the top-level message of every validation error
const ValidationMessage = "Invalid input."

// Validation builds a validation error from field-level messages
func Validation(fields map[string][]string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Message: ValidationMessage, Fields: fields}
}

// NonField builds a validation error that is not tied to a field
func NonField(msg string) *Error {
	return Validation(map[string][]string{NonFieldKey: {msg}})
}

// FieldErrors accumulates validation messages per field
type FieldErrors map[string][]string

// Add records a message for field
func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// Err returns nil when nothing was recorded, otherwise a validation error
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return Validation(f)
}

// Respond writes err as a JSON response and aborts the chain.
// Unknown errors are logged and reported as a generic server error.
func Respond(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
	case errors.Is(err, gorm.ErrRecordNotFound):
		apiErr = ErrNotFound
	default:
		zap.L().Error("unhandled error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error."})
		return
	}

	body := gin.H{"error": apiErr.Message}
	if len(apiErr.Fields) > 0 {
		body["fields"] = apiErr.Fields
	}
	c.AbortWithStatusJSON(apiErr.Status, body)
}
