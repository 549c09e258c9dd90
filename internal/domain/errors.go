package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error classes. Every error produced by the pipeline wraps exactly one of these.
var (
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTransient          = errors.New("transient service failure")
	ErrMalformedResponse  = errors.New("malformed service response")
	ErrInvalidAction      = errors.New("invalid action")
	ErrStorageFailure     = errors.New("storage failure")
	ErrNotFound           = errors.New("not found")
	ErrNoAudio            = errors.New("no audio captured")
)

// ServiceCode is the failure taxonomy shared by the transcription, extraction and enrichment contracts.
type ServiceCode string

const (
	CodeNoCredentials        ServiceCode = "no_credentials"
	CodeInvalidResponse      ServiceCode = "invalid_response"
	CodeRateLimited          ServiceCode = "rate_limited"
	CodeServerError          ServiceCode = "server_error"
	CodeNetworkError         ServiceCode = "network_error"
	CodeDeserializationError ServiceCode = "deserialization_error"
	CodeBadRequest           ServiceCode = "bad_request"
)

// ServiceError describes a failed call to an external service.
type ServiceError struct {
	Service    string
	Code       ServiceCode
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func NewServiceError(service string, code ServiceCode, err error) *ServiceError {
	return &ServiceError{Service: service, Code: code, Err: err}
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Service, e.Code)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Class returns the error class sentinel for the code.
func (e *ServiceError) Class() error {
	switch e.Code {
	case CodeRateLimited, CodeServerError, CodeNetworkError:
		return ErrTransient
	case CodeInvalidResponse, CodeDeserializationError:
		return ErrMalformedResponse
	default:
		return ErrServiceUnavailable
	}
}

// Retryable reports whether the failure may succeed on a later attempt.
func (e *ServiceError) Retryable() bool {
	return e.Class() == ErrTransient
}

// Unwrap exposes both the class sentinel and the underlying cause.
func (e *ServiceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Class()}
	}
	return []error{e.Class(), e.Err}
}

// Remedy is the user-facing suggestion for this failure.
func (e *ServiceError) Remedy() string {
	switch e.Code {
	case CodeNoCredentials:
		return "Check the API credentials in settings."
	case CodeRateLimited:
		return "The service is busy. Wait a moment and try again."
	case CodeServerError:
		return "The service is having trouble. Try again shortly."
	case CodeNetworkError:
		return "Check your internet connection and try again."
	case CodeInvalidResponse, CodeDeserializationError:
		return "The response could not be understood. Try again."
	default:
		return "The request was rejected. Try rephrasing and record again."
	}
}

// ExhaustedError reports that transient retries ran out.
type ExhaustedError struct {
	Service  string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s unavailable after %d attempts: %v", e.Service, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrServiceUnavailable, e.Last}
}

// InvalidActionError describes a candidate action missing a required field.
type InvalidActionError struct {
	Kind   ActionKind
	Field  string
	Reason string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid %s action: %s %s", e.Kind, e.Field, e.Reason)
}

func (e *InvalidActionError) Unwrap() error { return ErrInvalidAction }

// NewInvalidAction creates an InvalidActionError for a single field.
func NewInvalidAction(kind ActionKind, field, reason string) *InvalidActionError {
	return &InvalidActionError{Kind: kind, Field: field, Reason: reason}
}

// StorageError wraps a persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageFailure, e.Err}
}

// NewStorageError returns nil when err is nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// UserMessage turns an error into a specific, actionable message for the UI.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		var svcErr *ServiceError
		if errors.As(exhausted.Last, &svcErr) {
			return fmt.Sprintf("The %s service is unavailable right now. %s", exhausted.Service, svcErr.Remedy())
		}
		return fmt.Sprintf("The %s service is unavailable right now. Wait a moment and try again.", exhausted.Service)
	}

	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		switch svcErr.Code {
		case CodeNoCredentials:
			return fmt.Sprintf("No API key is configured for %s. %s", svcErr.Service, svcErr.Remedy())
		default:
			return fmt.Sprintf("The %s request failed. %s", svcErr.Service, svcErr.Remedy())
		}
	}

	var invalid *InvalidActionError
	if errors.As(err, &invalid) {
		return fmt.Sprintf("Could not log %s: %s %s.", invalid.Kind, invalid.Field, invalid.Reason)
	}

	switch {
	case errors.Is(err, ErrNoAudio):
		return "No audio was captured. Check the microphone and try again."
	case errors.Is(err, ErrStorageFailure):
		return "Saving failed on this device. Check free storage and try again."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out. Check your connection and try again."
	case errors.Is(err, ErrServiceUnavailable):
		return "The service is unavailable. Check credentials and connectivity."
	case errors.Is(err, ErrMalformedResponse):
		return "The response could not be understood. Try again."
	}
	return err.Error()
}
