package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeTimeout     ErrorType = "provider_timeout"
	ErrorTypeProvider    ErrorType = "provider_error"
	ErrorTypeQuota       ErrorType = "quota_exceeded"
	ErrorTypeCircuitOpen ErrorType = "circuit_open"
	ErrorTypeExhausted   ErrorType = "all_providers_exhausted"
	ErrorTypeInternal    ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables
//
// Quota and circuit errors are skip decisions inside the fallback chain; they
// are never returned to callers of the orchestrator.
var (
	ErrNegativeUsage      = NewDomainError(ErrorTypeValidation, "usage counts must be non-negative", nil)
	ErrEmptyPrompt        = NewDomainError(ErrorTypeValidation, "prompt cannot be empty", nil)
	ErrInvalidProvider    = NewDomainError(ErrorTypeValidation, "invalid provider configuration", nil)
	ErrProviderTimeout    = NewDomainError(ErrorTypeTimeout, "provider call timed out", nil)
	ErrProviderFailure    = NewDomainError(ErrorTypeProvider, "provider returned an error", nil)
	ErrQuotaExceeded      = NewDomainError(ErrorTypeQuota, "daily quota exhausted", nil)
	ErrCircuitOpen        = NewDomainError(ErrorTypeCircuitOpen, "circuit breaker open", nil)
	ErrProvidersExhausted = NewDomainError(ErrorTypeExhausted, "all providers exhausted", nil)
	ErrInternal           = NewDomainError(ErrorTypeInternal, "internal error", nil)
)

// Error type checking helper functions

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsTimeoutError checks if an error is a provider timeout error
func IsTimeoutError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeTimeout
	}
	return false
}

// IsProviderError checks if an error is a remote provider failure
func IsProviderError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeProvider
	}
	return false
}

// IsExhaustedError checks if an error is a fallback-chain exhaustion error
func IsExhaustedError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeExhausted
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapProvider wraps an error as a remote provider failure
func WrapProvider(message string, err error) error {
	return NewDomainError(ErrorTypeProvider, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
