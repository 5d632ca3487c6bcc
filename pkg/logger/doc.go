// Package logger provides the structured logging interface used across the
// ETL pipeline.
//
// It wraps zerolog with a small Logger interface supporting:
//   - Leveled logging (Debug, Info, Warn, Error, Fatal)
//   - Field-scoped child loggers (WithField, WithFields, WithError)
//   - Colored console output or JSON lines
//   - Optional file output alongside the console
//
// Basic usage:
//
//	err := logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("component", "scheduler")
//	log.InfoWithFields("Cycle completed", map[string]interface{}{
//	    "stations":   50,
//	    "departures": 812,
//	})
//
// Tests use NewTestLogger to capture messages, or NewNopLogger to discard them.
package logger
