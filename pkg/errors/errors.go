// Package errors provides a structured error system for the inventory router with error codes,
// categories, and context.
package errors

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for inventory operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Configuration Errors
	ErrCodeInvalidConfig       ErrorCode = "INVALID_CONFIG"
	ErrCodeMissingLocalService ErrorCode = "MISSING_LOCAL_SERVICE"
	ErrCodeConfigLoad          ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigSave          ErrorCode = "CONFIG_SAVE"

	// Transport Errors
	ErrCodeTransportFailed ErrorCode = "TRANSPORT_FAILED"
	ErrCodeRemoteStatus    ErrorCode = "REMOTE_STATUS"
	ErrCodeDecodeFailed    ErrorCode = "DECODE_FAILED"
	ErrCodeConnectorBuild  ErrorCode = "CONNECTOR_BUILD"

	// Storage Errors
	ErrCodeStorageRead  ErrorCode = "STORAGE_READ"
	ErrCodeStorageWrite ErrorCode = "STORAGE_WRITE"
	ErrCodeStorageOpen  ErrorCode = "STORAGE_OPEN"

	// Request Errors
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	ErrCodeUnknownVerb     ErrorCode = "UNKNOWN_VERB"

	// Internal System Errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryTransport     ErrorCategory = "transport"
	CategoryStorage       ErrorCategory = "storage"
	CategoryRequest       ErrorCategory = "request"
	CategoryInternal      ErrorCategory = "internal"
)

// InventoryError represents a structured error with context and metadata.
type InventoryError struct {
	Code     ErrorCode     `json:"code"`
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`

	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`

	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`
}

// Error implements the error interface.
func (e *InventoryError) Error() string {
	var b strings.Builder
	if e.Component != "" {
		b.WriteString("[")
		b.WriteString(e.Component)
		if e.Operation != "" {
			b.WriteString(":")
			b.WriteString(e.Operation)
		}
		b.WriteString("] ")
	}
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *InventoryError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *InventoryError) Is(target error) bool {
	if other, ok := target.(*InventoryError); ok {
		return e.Code == other.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *InventoryError) String() string {
	parts := []string{
		fmt.Sprintf("Code=%s", e.Code),
		fmt.Sprintf("Category=%s", e.Category),
		fmt.Sprintf("Message=%q", e.Message),
	}

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, e.Context[k]))
		}
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("InventoryError{%s}", strings.Join(parts, ", "))
}

// JSON returns the error as a JSON string.
func (e *InventoryError) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal error: %s"}`, err.Error())
	}
	return string(data)
}

// NewError creates a new inventory error with default values.
func NewError(code ErrorCode, message string) *InventoryError {
	return &InventoryError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
		Context:   make(map[string]string),
	}
}

// Wrap creates a new error of the given code around cause.
func Wrap(code ErrorCode, message string, cause error) *InventoryError {
	return NewError(code, message).WithCause(cause)
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeInvalidConfig, ErrCodeMissingLocalService, ErrCodeConfigLoad, ErrCodeConfigSave:
		return CategoryConfiguration
	case ErrCodeTransportFailed, ErrCodeRemoteStatus, ErrCodeDecodeFailed, ErrCodeConnectorBuild:
		return CategoryTransport
	case ErrCodeStorageRead, ErrCodeStorageWrite, ErrCodeStorageOpen:
		return CategoryStorage
	case ErrCodeInvalidArgument, ErrCodeUnknownVerb:
		return CategoryRequest
	default:
		return CategoryInternal
	}
}

// IsTransport reports whether err is a transport-category inventory error.
func IsTransport(err error) bool {
	if ie, ok := err.(*InventoryError); ok {
		return ie.Category == CategoryTransport
	}
	return false
}

// WithContext adds contextual information to an error
func (e *InventoryError) WithContext(key, value string) *InventoryError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *InventoryError) WithComponent(component string) *InventoryError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *InventoryError) WithOperation(operation string) *InventoryError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause
func (e *InventoryError) WithCause(cause error) *InventoryError {
	e.Cause = cause
	return e
}
