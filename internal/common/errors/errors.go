// Package errors provides standardized error handling for BPMN workflow integration
// and the admin HTTP API.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Complaint lifecycle errors
const (
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeComplaintNotFound    ErrorCode = "COMPLAINT_NOT_FOUND"
	ErrCodeInvalidTransition    ErrorCode = "INVALID_TRANSITION"
	ErrCodeWorkerNotFound       ErrorCode = "WORKER_NOT_FOUND"
	ErrCodeWorkerUnavailable    ErrorCode = "WORKER_UNAVAILABLE"
	ErrCodeWorkerAmbiguous      ErrorCode = "WORKER_AMBIGUOUS"
	ErrCodeWorkerBusy           ErrorCode = "WORKER_BUSY"
	ErrCodeCategoryMismatch     ErrorCode = "CATEGORY_MISMATCH"
	ErrCodeStoreOperationFailed ErrorCode = "STORE_OPERATION_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeSearchFailed           ErrorCode = "SEARCH_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationFailedError creates a non-retryable input validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewComplaintNotFoundError(complaintID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeComplaintNotFound,
		Message:   "Complaint not found",
		Details:   fmt.Sprintf("complaintId: %d", complaintID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError reports a status change the lifecycle does not allow.
func NewInvalidTransitionError(complaintID int64, from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Status transition not allowed",
		Details:   fmt.Sprintf("complaintId: %d, from: %s, to: %s", complaintID, from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewWorkerNotFoundError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWorkerNotFound,
		Message:   "Field worker not found",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewWorkerUnavailableError is returned when the worker already holds an open
// complaint, including when a concurrent assignment won the race.
func NewWorkerUnavailableError(workerID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeWorkerUnavailable,
		Message:   "Field worker is not available",
		Details:   fmt.Sprintf("fieldWorkerId: %d", workerID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewWorkerAmbiguousError(name string, matches int) *StandardError {
	return &StandardError{
		Code:      ErrCodeWorkerAmbiguous,
		Message:   "Field worker name matches more than one worker",
		Details:   fmt.Sprintf("name: %s, matches: %d", name, matches),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewWorkerBusyError(workerID int64, openAssignments int) *StandardError {
	return &StandardError{
		Code:      ErrCodeWorkerBusy,
		Message:   "Field worker holds an open complaint",
		Details:   fmt.Sprintf("fieldWorkerId: %d, openAssignments: %d", workerID, openAssignments),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCategoryMismatchError(complaintCategory, workerCategory string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCategoryMismatch,
		Message:   "Field worker category does not match complaint",
		Details:   fmt.Sprintf("complaintCategory: %s, workerCategory: %s", complaintCategory, workerCategory),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreOperationFailedError creates a retryable persistence error. The message
// is safe to show to API clients; the cause stays in Details.
func NewStoreOperationFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreOperationFailed,
		Message:   "Store operation failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewSearchFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchFailed,
		Message:   "Complaint search failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidationFailed:       "VALIDATION_FAILED",
	ErrCodeComplaintNotFound:      "COMPLAINT_NOT_FOUND",
	ErrCodeInvalidTransition:      "INVALID_TRANSITION",
	ErrCodeWorkerNotFound:         "WORKER_NOT_FOUND",
	ErrCodeWorkerUnavailable:      "WORKER_UNAVAILABLE",
	ErrCodeWorkerAmbiguous:        "WORKER_AMBIGUOUS",
	ErrCodeWorkerBusy:             "WORKER_BUSY",
	ErrCodeCategoryMismatch:       "CATEGORY_MISMATCH",
	ErrCodeStoreOperationFailed:   "STORE_OPERATION_FAILED",
	ErrCodeNotificationSendFailed: "NOTIFICATION_SEND_FAILED",
	ErrCodeSearchFailed:           "SEARCH_FAILED",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreOperationFailed,
		ErrCodeNotificationSendFailed,
		"EXTERNAL_SERVICE_ERROR":
		return 3

	case "TIMEOUT_ERROR":
		return 2

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError unwraps err to a StandardError when one is in the chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "NOT_FOUND"
	case strings.HasPrefix(codeStr, "WORKER") || codeStr == string(ErrCodeInvalidTransition) || codeStr == string(ErrCodeCategoryMismatch):
		return "CONFLICT"
	case strings.Contains(codeStr, "STORE"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
