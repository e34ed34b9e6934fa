package errors

import (
	"errors"
	"fmt"
)

var (
	ErrImportNotFound    = errors.New("import file not found")
	ErrInvalidFileFormat = errors.New("invalid file format")
	ErrSchemaValidation  = errors.New("schema validation failed")
	ErrNoRefreshToken    = errors.New("no refresh token available")
	ErrUnknownStation    = errors.New("station not found in reference data")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrMalformedPayload  = errors.New("stored payload is malformed")
)

// ScheduleError is a schedule-policy rejection. It is surfaced before the
// observation is persisted, is user-correctable and is never auto-retried.
type ScheduleError struct {
	Reason string
}

func (e ScheduleError) Error() string {
	return e.Reason
}

type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s",
		e.Field, e.Value, e.Message)
}

// RetryableError marks transport-level failures (timeouts, 5xx, 429) that a
// bounded backoff loop may retry.
type RetryableError struct {
	Err     error
	Message string
}

func (e RetryableError) Error() string {
	return fmt.Sprintf("retryable error: %s - %s", e.Message, e.Err.Error())
}

func (e RetryableError) Unwrap() error {
	return e.Err
}

func NewRetryableError(err error, message string) error {
	return RetryableError{
		Err:     err,
		Message: message,
	}
}

func IsRetryable(err error) bool {
	var re RetryableError
	return errors.As(err, &re)
}

// AuthError is a rejection that persisted after one refresh-and-retry, or a
// refresh that cannot even be attempted. The caller must re-authenticate;
// the engine deliberately gives up rather than loop.
type AuthError struct {
	Err error
}

func (e AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Err.Error())
}

func (e AuthError) Unwrap() error {
	return e.Err
}

func NewAuthError(err error) error {
	return AuthError{Err: err}
}

func IsAuthError(err error) bool {
	var ae AuthError
	return errors.As(err, &ae)
}

// PayloadError marks a locally malformed stored payload. The record stays
// FAILED without any network attempt until its content is corrected.
type PayloadError struct {
	Err error
}

func (e PayloadError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformedPayload.Error(), e.Err.Error())
}

func (e PayloadError) Unwrap() error {
	return e.Err
}
