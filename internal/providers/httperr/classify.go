// Package httperr maps HTTP API failures onto the service error taxonomy.
package httperr

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"voicelog/internal/domain"
)

// FromStatus classifies an HTTP status code.
func FromStatus(service string, status int, header http.Header, cause error) *domain.ServiceError {
	code := domain.CodeBadRequest
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = domain.CodeNoCredentials
	case status == http.StatusTooManyRequests:
		code = domain.CodeRateLimited
	case status == http.StatusRequestTimeout:
		code = domain.CodeNetworkError
	case status >= 500:
		code = domain.CodeServerError
	}
	return &domain.ServiceError{
		Service:    service,
		Code:       code,
		StatusCode: status,
		RetryAfter: RetryAfter(header),
		Err:        cause,
	}
}

// FromTransport classifies a failure that produced no HTTP response.
// Caller cancellation is returned unchanged.
func FromTransport(ctx context.Context, service string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	return domain.NewServiceError(service, domain.CodeNetworkError, err)
}

// RetryAfter parses a Retry-After header in seconds or HTTP-date form.
func RetryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	raw := strings.TrimSpace(header.Get("Retry-After"))
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// NoCredentials reports a missing API key before any request is made.
func NoCredentials(service, keyName string) *domain.ServiceError {
	return domain.NewServiceError(service, domain.CodeNoCredentials, errors.New(keyName+" is not configured"))
}
