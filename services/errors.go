package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrInvalidSignature means a webhook did not carry a valid signature.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedWebhook means a signed webhook body could not be decoded.
	ErrMalformedWebhook = errors.New("malformed webhook payload")
)

type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every problem found in a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when nothing was added, so callers can `return v.OrNil()`.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

// GatewayError is a failed call to the payment provider. StatusCode is zero when
// no HTTP response arrived (timeout, connection refused).
type GatewayError struct {
	StatusCode int
	Message    string
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("payment gateway unreachable: %v", e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("payment gateway returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("payment gateway returned %d", e.StatusCode)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Transient reports whether retrying later may succeed.
func (e *GatewayError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Unavailable reports whether the database could not be reached at all, as
// opposed to rejecting the statement.
func (e *StoreError) Unavailable() bool {
	var netErr net.Error
	return errors.Is(e.Err, driver.ErrBadConn) ||
		errors.Is(e.Err, sql.ErrConnDone) ||
		errors.Is(e.Err, context.DeadlineExceeded) ||
		errors.As(e.Err, &netErr)
}

// AuthError deliberately carries no detail.
type AuthError struct{}

func (e *AuthError) Error() string { return "unauthorized" }

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// lookupErr turns gorm's not-found into NotFoundError and anything else into a
// StoreError.
func lookupErr(resource, key string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Resource: resource, Key: key}
	}
	return storeErr("find "+resource, err)
}
