// Package logging provides structured logging for the VegeHub tools.
//
// This package wraps a global zap logger with convenience functions for the
// patterns used throughout the hub client and the push bridge. Logging is silent
// by default so CLI output stays clean; set VEGEHUB_LOG_LEVEL (or pass
// --log-level) to enable it.
//
// # Log Levels
//
//   - Debug: every device request attempt, raw push bodies
//   - Info: setup results, bridge start/stop, published updates
//   - Warn: failed attempts that will be retried, info refresh failures
//   - Error: exhausted retries, broker failures
//
// # Structured Logging
//
//	logging.Info("Hub configured",
//	    zap.String("device", "192.168.0.100"),
//	    zap.String("server_url", "http://10.0.0.2:8123/api/vegehub/update"),
//	)
//
// # Device Traffic
//
//	logging.LogDeviceRequest(address, "POST", "/api/info/get", attempt)
//	logging.LogDeviceResponse(address, "POST", "/api/info/get", 200, elapsed)
//	logging.LogPayload(remoteAddr, mac, body)
//
// # Output Format
//
// Logs are written to stderr in console format:
//
//	2026-03-02T10:30:45.123-0800  DEBUG  Device request  device=192.168.0.100 method=POST path=/api/info/get attempt=1
package logging
