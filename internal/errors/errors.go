package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Common error types that can be used across the application
var (
	ErrNotFound          = New(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists     = New(ErrCodeAlreadyExists, "resource already exists")
	ErrVersionConflict   = New(ErrCodeVersionConflict, "version conflict")
	ErrValidation        = New(ErrCodeValidation, "validation error")
	ErrInvalidOperation  = New(ErrCodeInvalidOperation, "invalid operation")
	ErrInvalidTransition = New(ErrCodeInvalidTransition, "invalid permit state transition")
	ErrPricingCoverage   = New(ErrCodePricingCoverage, "no product covers the requested period")
	ErrExternalService   = New(ErrCodeExternalService, "external service error")
	ErrDuplicateEvent    = New(ErrCodeDuplicateEvent, "event already processed")
	ErrPermissionDenied  = New(ErrCodePermissionDenied, "permission denied")
	ErrHTTPClient        = New(ErrCodeHTTPClient, "http client error")
	ErrDatabase          = New(ErrCodeDatabase, "database error")
	ErrSystem            = New(ErrCodeSystemError, "system error")
	// maps errors to http status codes
	statusCodeMap = map[error]int{
		ErrHTTPClient:        http.StatusBadGateway,
		ErrExternalService:   http.StatusBadGateway,
		ErrDatabase:          http.StatusInternalServerError,
		ErrNotFound:          http.StatusNotFound,
		ErrAlreadyExists:     http.StatusConflict,
		ErrVersionConflict:   http.StatusConflict,
		ErrInvalidTransition: http.StatusConflict,
		ErrDuplicateEvent:    http.StatusOK,
		ErrValidation:        http.StatusBadRequest,
		ErrInvalidOperation:  http.StatusBadRequest,
		ErrPricingCoverage:   http.StatusUnprocessableEntity,
		ErrPermissionDenied:  http.StatusForbidden,
		ErrSystem:            http.StatusInternalServerError,
	}
)

const (
	ErrCodeHTTPClient        = "http_client_error"
	ErrCodeSystemError       = "system_error"
	ErrCodeNotFound          = "not_found"
	ErrCodeAlreadyExists     = "already_exists"
	ErrCodeVersionConflict   = "version_conflict"
	ErrCodeValidation        = "validation_error"
	ErrCodeInvalidOperation  = "invalid_operation"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodePricingCoverage   = "pricing_coverage_error"
	ErrCodeExternalService   = "external_service_error"
	ErrCodeDuplicateEvent    = "duplicate_event"
	ErrCodePermissionDenied  = "permission_denied"
	ErrCodeDatabase          = "database_error"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

// New creates a new InternalError
func New(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsVersionConflict checks if an error is a version conflict error
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidOperation checks if an error is an invalid operation error
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsInvalidTransition checks if an error is a permit state machine violation
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsPricingCoverage checks if an error is caused by a gap in the product table
func IsPricingCoverage(err error) bool {
	return errors.Is(err, ErrPricingCoverage)
}

// IsExternalService checks if an error came from the payment provider or a registry
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService)
}

// IsDuplicateEvent checks if an error signals an already processed provider event
func IsDuplicateEvent(err error) bool {
	return errors.Is(err, ErrDuplicateEvent)
}

// IsPermissionDenied checks if an error is a permission denied error
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsHTTPClient checks if an error is an http client error
func IsHTTPClient(err error) bool {
	return errors.Is(err, ErrHTTPClient)
}

// IsRetryable reports whether the caller may retry the operation that produced err.
// Only failures of external collaborators are retryable.
func IsRetryable(err error) bool {
	return IsExternalService(err) || IsHTTPClient(err)
}

func HTTPStatusFromErr(err error) int {
	for e, status := range statusCodeMap {
		if errors.Is(err, e) {
			return status
		}
	}
	return http.StatusInternalServerError
}
