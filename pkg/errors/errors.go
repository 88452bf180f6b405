package errors

import (
	"fmt"
	"strings"
)

// ErrorType represents different types of errors a page fetch can fail with
type ErrorType string

const (
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeMissingResult  ErrorType = "missing_result"
	ErrorTypeParsing        ErrorType = "parsing"
	ErrorTypeServerError    ErrorType = "server_error"
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// Error represents a market-data API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeRateLimit, ErrorTypeMissingResult, ErrorTypeParsing, ErrorTypeServerError, ErrorTypeTimeout:
		return true
	case ErrorTypeNetwork, ErrorTypeInvalidRequest, ErrorTypeUnknown:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504:
		return true
	case 400, 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

// MalformedCheckpointError is returned when a prior dataset cannot be used
// as a resume point.
type MalformedCheckpointError struct {
	Path   string
	Row    int
	Value  string
	Reason string
}

func (e *MalformedCheckpointError) Error() string {
	var b strings.Builder
	b.WriteString("malformed checkpoint")
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, " (row %d", e.Row)
		if e.Value != "" {
			fmt.Fprintf(&b, ", value %q", e.Value)
		}
		b.WriteString(")")
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	return b.String()
}

// SchemaMismatchError is returned when the checkpoint and the freshly
// fetched records disagree on which optional fields are present.
type SchemaMismatchError struct {
	Checkpoint string
	Fetched    string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: checkpoint has %s, fetched records have %s", e.Checkpoint, e.Fetched)
}
