// Package errors provides standardized error handling for the retrieval engine
// and its BPMN workflow integration.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Retrieval taxonomy. None of these abort a search.
	ErrCodeSourceUnavailable  ErrorCode = "SOURCE_UNAVAILABLE"
	ErrCodeSourceTimeout      ErrorCode = "SOURCE_TIMEOUT"
	ErrCodeEmptyResultSet     ErrorCode = "EMPTY_RESULT_SET"
	ErrCodeMalformedHit       ErrorCode = "MALFORMED_HIT"
	ErrCodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"

	ErrCodeInvalidQuery      ErrorCode = "INVALID_QUERY"
	ErrCodeInvalidFeedback   ErrorCode = "INVALID_FEEDBACK"
	ErrCodeInvalidSource     ErrorCode = "INVALID_SOURCE"
	ErrCodeSearchCancelled   ErrorCode = "SEARCH_CANCELLED"
	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"

	ErrCodeCatalogLoadFailed        ErrorCode = "CATALOG_LOAD_FAILED"
	ErrCodeCacheUnavailable         ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeBusinessRule     ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeExternalService  ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout          ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeAuthentication   ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key to the error's metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// CodeOf returns the code of the first StandardError in err's chain, or
// ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
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

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewSourceUnavailableError wraps a failed per-source call.
func NewSourceUnavailableError(source string, err error) *StandardError {
	return newError(ErrCodeSourceUnavailable, "Source call failed",
		fmt.Sprintf("source: %s, error: %v", source, err), true, err).
		WithMetadata("source", source)
}

// NewSourceTimeoutError marks a source that did not answer within the per-source timeout.
func NewSourceTimeoutError(source string, timeout time.Duration) *StandardError {
	return newError(ErrCodeSourceTimeout, "Source call timed out",
		fmt.Sprintf("source: %s, timeout: %s", source, timeout), true, nil).
		WithMetadata("source", source)
}

// NewEmptyResultSetError records that no source produced a usable hit.
func NewEmptyResultSetError(region, query string) *StandardError {
	return newError(ErrCodeEmptyResultSet, "No source returned results",
		fmt.Sprintf("region: %s, query: %s", region, query), false, nil)
}

// NewMalformedHitError records a dropped hit.
func NewMalformedHitError(source, missing string) *StandardError {
	return newError(ErrCodeMalformedHit, "Hit is missing required fields",
		fmt.Sprintf("source: %s, missing: %s", source, missing), false, nil).
		WithMetadata("source", source)
}

// NewPersistenceFailureError wraps a failed write to the learning log.
func NewPersistenceFailureError(operation string, err error) *StandardError {
	return newError(ErrCodePersistenceFailure, "Learning log write failed",
		fmt.Sprintf("operation: %s, error: %v", operation, err), true, err)
}

func NewInvalidQueryError(details string) *StandardError {
	return newError(ErrCodeInvalidQuery, "Invalid search query", details, false, nil)
}

func NewInvalidFeedbackError(details string) *StandardError {
	return newError(ErrCodeInvalidFeedback, "Invalid feedback", details, false, nil)
}

func NewInvalidSourceError(details string) *StandardError {
	return newError(ErrCodeInvalidSource, "Invalid source definition", details, false, nil)
}

// NewSearchCancelledError is returned when the caller abandons a search.
func NewSearchCancelledError(err error) *StandardError {
	return newError(ErrCodeSearchCancelled, "Search cancelled by caller", err.Error(), false, err)
}

// NewSearchQueryFailedError wraps an index query failure.
func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("index: %s, error: %v", index, err), true, err)
}

func NewCatalogLoadFailedError(origin string, err error) *StandardError {
	return newError(ErrCodeCatalogLoadFailed, "Source catalog could not be loaded",
		fmt.Sprintf("origin: %s, error: %v", origin, err), false, err)
}

func NewCacheUnavailableError(err error) *StandardError {
	return newError(ErrCodeCacheUnavailable, "Result cache unavailable", err.Error(), true, err)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true, err)
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %v", channel, err), true, err)
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return newError(ErrCodeBusinessRule, message, details, false, nil)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true, err)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("Resource not found in %s", service), details, false, nil)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false, nil)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal codes to the error codes modelled in the
// retrieval BPMN processes. Unmapped codes pass through unchanged.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidQuery:       "INVALID_QUERY",
	ErrCodeInvalidFeedback:    "INVALID_FEEDBACK",
	ErrCodeInvalidSource:      "INVALID_SOURCE",
	ErrCodeSearchCancelled:    "SEARCH_CANCELLED",
	ErrCodePersistenceFailure: "LEARNING_PERSISTENCE_FAILED",
	ErrCodeCatalogLoadFailed:  "CATALOG_LOAD_FAILED",
	ErrCodeCacheUnavailable:   "CACHE_UNAVAILABLE",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeCacheUnavailable,
		ErrCodeExternalService,
		ErrCodeNotificationSendFailed,
		ErrCodePersistenceFailure,
		ErrCodeSearchQueryFailed:
		return 3

	case ErrCodeSourceTimeout,
		ErrCodeTimeout:
		return 2

	case ErrCodeSourceUnavailable:
		return 1

	default:
		return 0 // validation and business errors
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

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "SOURCE") || strings.Contains(codeStr, "RESULT") || strings.Contains(codeStr, "HIT"):
		return "RETRIEVAL"
	case strings.Contains(codeStr, "PERSISTENCE") || strings.Contains(codeStr, "DATABASE"):
		return "STORAGE"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "CATALOG"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
