package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
)

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindAuth       ErrorKind = "auth"
	KindPlatform   ErrorKind = "platform"
	KindRateLimit  ErrorKind = "rate_limited"
	KindTimeout    ErrorKind = "timeout"
	KindInternal   ErrorKind = "internal"
)

// ValidationError rejects a request before any adapter is called.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrPublishInProgress rejects a publish while another one holds the post.
var ErrPublishInProgress = &ValidationError{Field: "postId", Message: "post is already being published"}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// AuthError reports a missing, expired or rejected credential. NeedsReauth is
// set when the owner has to reconnect the account.
type AuthError struct {
	Platform    models.Platform
	Message     string
	NeedsReauth bool
	Err         error
}

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Platform == "" {
		return "auth: " + msg
	}
	return fmt.Sprintf("%s auth: %s", e.Platform, msg)
}

func (e *AuthError) Unwrap() error { return e.Err }

// PlatformError carries the remote rejection payload for diagnostics.
type PlatformError struct {
	Platform   models.Platform
	StatusCode int
	Message    string
	Payload    []byte
}

func (e *PlatformError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Platform, e.Message)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Platform, e.Message, e.StatusCode)
}

type RateLimitError struct {
	Platform   models.Platform
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Platform, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Platform)
}

// TimeoutError means remote processing did not finish inside the poll window.
// The remote side may still complete on its own.
type TimeoutError struct {
	Platform    models.Platform
	ContainerID string
	Attempts    int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: container %s not ready after %d status checks", e.Platform, e.ContainerID, e.Attempts)
}

func KindOf(err error) ErrorKind {
	var (
		validationErr *ValidationError
		authErr       *AuthError
		platformErr   *PlatformError
		rateErr       *RateLimitError
		timeoutErr    *TimeoutError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &authErr):
		return KindAuth
	case errors.As(err, &rateErr):
		return KindRateLimit
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.As(err, &platformErr):
		return KindPlatform
	}
	return KindInternal
}

func NeedsReauth(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.NeedsReauth
}

func IsRateLimited(err error) bool {
	var rateErr *RateLimitError
	return errors.As(err, &rateErr)
}

// looksLikeGrantFailure matches the OAuth signals that mean the stored grant
// is no longer usable.
func looksLikeGrantFailure(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "invalid_grant") || strings.Contains(msg, "expired")
}
