package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEmptyBody is returned when a comment body is blank after trimming.
	ErrEmptyBody = errors.New("comment body cannot be empty")
	// ErrNotOwner is returned when the viewer did not author the comment.
	ErrNotOwner = errors.New("only the author can modify this comment")
	// ErrInFlight is returned while a conflicting mutation is still pending.
	ErrInFlight = errors.New("a previous submission is still in flight")
	// ErrCommentNotFound is returned when the comment is not in the discussion.
	ErrCommentNotFound = errors.New("comment not found")
	// ErrPendingComment is returned for comments the server has not confirmed yet.
	ErrPendingComment = errors.New("comment is not confirmed yet")
)

// ValidationError is a locally detected problem; no store call was made.
type ValidationError struct {
	Op  string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s comment: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// TransportError wraps any failure reported by the comment store.
type TransportError struct {
	Op     string
	TaskID string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to %s comment, please try again: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err came from the comment store.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsValidation reports whether err was detected locally.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NormalizeBody trims a comment body and rejects empty text
func NormalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyBody
	}
	return body, nil
}

// ValidateActorRole validates an actor role
func ValidateActorRole(role string) error {
	switch ActorRole(role) {
	case ActorRoleEmployee, ActorRoleHR, ActorRoleManager, ActorRoleDepartmentHead, ActorRoleSuperAdmin, ActorRoleSystem:
		return nil
	default:
		return fmt.Errorf("invalid actor role: must be one of: employee, hr, manager, department_head, super_admin, system")
	}
}

// timestampFormats lists the layouts accepted from stores, most specific first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05", // SQLite datetime() format
}

// ParseTimestamp parses a timestamp string in various formats
func ParseTimestamp(s string) (time.Time, error) {
	for _, format := range timestampFormats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", s)
}

// ParseTimestampOrEpoch parses s, degrading malformed values to the zero time
// so they sort first instead of failing.
func ParseTimestampOrEpoch(s string) time.Time {
	t, err := ParseTimestamp(strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

// ETagMismatchError is returned when an etag doesn't match
type ETagMismatchError struct {
	Expected int64
	Actual   int64
}

func (e *ETagMismatchError) Error() string {
	return fmt.Sprintf("etag mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// CheckETag validates an etag against the current value
func CheckETag(expected, actual int64) error {
	if expected != actual {
		return &ETagMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}
