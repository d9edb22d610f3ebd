package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "VEGEHUB_LOG_LEVEL"

// maxDumpBytes bounds how much of a raw body is rendered into a log line.
const maxDumpBytes = 256

// Initialize creates a new logger with the specified level.
// If level is empty, it checks VEGEHUB_LOG_LEVEL.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	zapLevel, err := ParseLevel(level)
	if err != nil {
		// Unknown level - use info when something was explicitly requested
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	built, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = built

	return nil
}

// InitializeFromEnv initializes the logger from VEGEHUB_LOG_LEVEL.
func InitializeFromEnv() error {
	return Initialize("")
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer cores.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// LogDeviceRequest logs a single request attempt against a hub.
func LogDeviceRequest(device, method, path string, attempt int) {
	Debug("Device request",
		zap.String("device", device),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("attempt", attempt),
	)
}

// LogDeviceResponse logs the status a hub answered with.
func LogDeviceResponse(device, method, path string, statusCode int, elapsed time.Duration) {
	Debug("Device response",
		zap.String("device", device),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", statusCode),
		zap.Duration("elapsed", elapsed),
	)
}

// LogPayload logs an inbound push body from a hub.
func LogPayload(remoteAddr, mac string, body []byte) {
	fields := []zap.Field{
		zap.String("remote_addr", remoteAddr),
		zap.String("mac", mac),
		zap.Int("length", len(body)),
	}

	if GetLogger().Core().Enabled(zapcore.DebugLevel) {
		fields = append(fields, zap.String("body", asciiDump(body)))
	}

	Debug("Update payload received", fields...)
}

// LogRawBytes logs raw bytes (useful for debugging firmware responses)
func LogRawBytes(label string, data []byte) {
	Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

func hexDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) > maxDumpBytes {
		return hex.EncodeToString(data[:maxDumpBytes]) + "..."
	}
	return hex.EncodeToString(data)
}

func asciiDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	truncated := len(data) > maxDumpBytes
	if truncated {
		data = data[:maxDumpBytes]
	}

	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	if truncated {
		return string(result) + "..."
	}
	return string(result)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
