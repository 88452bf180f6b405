package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	errs "cryptodata/pkg/errors"
)

// Reasons a fatal error ends a collection run.
const (
	ReasonDisconnected = "disconnected"
	ReasonCanceled     = "canceled"
	ReasonUnclassified = "unclassified_error"
)

// Classification is the verdict on a single fetch error.
type Classification struct {
	Retryable bool
	// Type is the error category, ErrorTypeUnknown when it could not be determined.
	Type errs.ErrorType
	// Reason is set for fatal errors only.
	Reason string
}

// Classify decides whether err is transient. Typed API errors are judged by
// their type; bare transport errors are inspected for disconnects, timeouts
// and cancellation. Anything else is fatal and unclassified.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Type: errs.ErrorTypeUnknown, Reason: ReasonUnclassified}
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		if errs.IsRetryable(apiErr.Type) {
			return Classification{Retryable: true, Type: apiErr.Type}
		}
		if apiErr.Type == errs.ErrorTypeNetwork {
			return Classification{Type: apiErr.Type, Reason: ReasonDisconnected}
		}
		return Classification{Type: apiErr.Type, Reason: ReasonUnclassified}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Classification{Type: errs.ErrorTypeUnknown, Reason: ReasonCanceled}
	}

	if IsDisconnect(err) {
		return Classification{Type: errs.ErrorTypeNetwork, Reason: ReasonDisconnected}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Classification{Retryable: true, Type: errs.ErrorTypeTimeout}
	}

	return Classification{Type: errs.ErrorTypeUnknown, Reason: ReasonUnclassified}
}

// IsDisconnect reports whether err means the connection to the remote end was
// lost or could not be established.
func IsDisconnect(err error) bool {
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH):
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && !opErr.Timeout() {
		return true
	}

	return false
}
