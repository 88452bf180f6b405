package logger

import (
	"time"
)

// LogRequest logs a completed HTTP round trip
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogPage logs a successfully fetched page
func LogPage(l Logger, pair string, page, trades int, cursor time.Time) {
	l.DebugWithFields("Page fetched", map[string]interface{}{
		"pair":   pair,
		"page":   page,
		"trades": trades,
		"cursor": cursor,
	})
}

// LogRetry logs a retryable failure and the delay before the next attempt
func LogRetry(l Logger, err error, errorType string, attempt int, delay time.Duration) {
	l.WithError(err).WarnWithFields("Fetch failed, retrying", map[string]interface{}{
		"error_type": errorType,
		"attempt":    attempt,
		"delay":      delay,
	})
}

// LogStop logs why a collection run ended
func LogStop(l Logger, reason string, pages, trades int, err error) {
	fields := map[string]interface{}{
		"reason": reason,
		"pages":  pages,
		"trades": trades,
	}
	if err != nil {
		l.WithError(err).WarnWithFields("Collection stopped early", fields)
		return
	}
	l.InfoWithFields("Collection stopped", fields)
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, settings map[string]interface{}) {
	l.WithField("component", component).InfoWithFields("Component started", settings)
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (n nopLogger) Debug(string)                                   {}
func (n nopLogger) Info(string)                                    {}
func (n nopLogger) Warn(string)                                    {}
func (n nopLogger) Error(string)                                   {}
func (n nopLogger) WithField(string, interface{}) Logger           { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger       { return n }
func (n nopLogger) WithError(error) Logger                         { return n }
func (n nopLogger) DebugWithFields(string, map[string]interface{}) {}
func (n nopLogger) InfoWithFields(string, map[string]interface{})  {}
func (n nopLogger) WarnWithFields(string, map[string]interface{})  {}
func (n nopLogger) ErrorWithFields(string, map[string]interface{}) {}
