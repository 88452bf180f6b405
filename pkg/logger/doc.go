// Package logger provides structured logging for the trade collector.
//
// It wraps zerolog behind a small Logger interface. Console output goes to
// stderr with colored levels, so progress lines on stdout stay clean. When a
// log file is configured, records are also written as JSON to a file rotated
// by lumberjack.
//
//	err := logger.Initialize(&cfg.Logging)
//	logger.WithField("pair", "XETHZEUR").Info("Collection started")
//
// Domain helpers such as LogPage and LogRetry keep field names consistent
// between the engine and the command layer. Tests use NewTestLogger to capture
// messages, or NewNopLogger to drop them.
package logger
