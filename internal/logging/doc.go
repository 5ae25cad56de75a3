// Package logging provides structured logging for the E1.33 SLP bridge.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used by the reactor, the SLP thread and the CLI. It provides both
// general logging functions and helpers for registration and discovery events.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (queue drains, timer scheduling)
//   - Info: Normal operations (registrations, discovery cycles)
//   - Warn: Non-fatal issues (lifetime clamping, renewal failures)
//   - Error: Fatal issues (startup failures, agent errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Registered service",
//	    zap.String("endpoint", "192.168.1.20:5568"),
//	    zap.Uint16("lifetime", 300),
//	)
//
// # Specialized Logging
//
// Registration Logging:
//
//	logging.LogRegistration("register", endpoint, lifetime, ok)
//	logging.LogRegistration("renew", endpoint, lifetime, ok)
//
// Discovery Logging:
//
//	logging.LogDiscovery(ok, len(endpoints), nextRun)
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given, the E133SLP_LOG_LEVEL environment variable is
// consulted. When that is also empty, logging is silent.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. SetLogger must not race
// with logging calls; it is intended for process startup and tests.
package logging
