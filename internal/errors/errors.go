package errors

import (
	"net/http"
)

// Stable error codes exposed to clients so the frontend can render
// specific guidance ("map is locked by another editor" vs "too many districts").
const (
	CodeValidation       = "validation_error"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeDocumentLocked   = "document_locked"
	CodeNotShatterable   = "not_shatterable"
	CodeNoSuchParent     = "no_such_parent"
	CodeCorruptHierarchy = "corrupt_hierarchy"
	CodeZoneNotFound     = "zone_not_found"
	CodeInternal         = "internal_error"
)

// APIError is the error type handlers push through c.Error();
// the ErrorHandler middleware renders it as JSON.
type APIError struct {
	Status   int    `json:"-"`
	Code     string `json:"code"`
	Message  string `json:"error"`
	Internal error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *APIError) Unwrap() error {
	return e.Internal
}

func New(status int, code, message string, err error) *APIError {
	return &APIError{Status: status, Code: code, Message: message, Internal: err}
}

func BadRequest(message string, err error) *APIError {
	return New(http.StatusBadRequest, CodeValidation, message, err)
}

func NotFound(message string, err error) *APIError {
	return New(http.StatusNotFound, CodeNotFound, message, err)
}

func Conflict(message string, err error) *APIError {
	return New(http.StatusConflict, CodeConflict, message, err)
}

func Locked(message string, err error) *APIError {
	return New(http.StatusLocked, CodeDocumentLocked, message, err)
}

func Internal(err error) *APIError {
	return New(http.StatusInternalServerError, CodeInternal, "Internal server error", err)
}

func NewValidationError(err error) *APIError {
	return New(http.StatusBadRequest, CodeValidation, "Invalid input", err)
}
