package vegehub

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (connection reset, unreachable, etc.)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeHTTP indicates the hub answered with a non-2xx status
	ErrTypeHTTP
	// ErrTypeParse indicates a 2xx response body that is not valid JSON
	ErrTypeParse
	// ErrTypeValidation indicates invalid arguments, rejected before any I/O
	ErrTypeValidation
	// ErrTypeDataShape indicates a 2xx response missing a required key
	ErrTypeDataShape
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the hub refused the connection
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeDataShape:
		return "Data Shape Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError represents a single failed interaction with a hub
type DeviceError struct {
	Type           ErrorType           // Category of error
	Message        string              // Human-readable error message
	StatusCode     int                 // HTTP status code (if applicable)
	Err            error               // Underlying error (if any)
	NetworkSubtype NetworkErrorSubtype // More specific network error type
	DeviceIP       string              // Hub address (for context)
	Retryable      bool                // Whether another attempt may succeed
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// ConnectionError is returned once every attempt of a request has failed.
// Last holds the failure of the final attempt.
type ConnectionError struct {
	Device   string
	Method   string
	Path     string
	Attempts int
	Last     *DeviceError
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	msg := fmt.Sprintf("%s %s on %s failed after %d attempt(s)", e.Method, e.Path, e.Device, e.Attempts)
	if e.Last != nil {
		return msg + ": " + e.Last.Error()
	}
	return msg
}

// Unwrap exposes the last attempt's failure
func (e *ConnectionError) Unwrap() error {
	if e.Last == nil {
		return nil
	}
	return e.Last
}

// StatusCode returns the HTTP status of the last attempt, or 0 for transport failures
func (e *ConnectionError) StatusCode() int {
	if e.Last == nil {
		return 0
	}
	return e.Last.StatusCode
}

// ClassifyNetworkError analyzes a transport error and returns a more specific error type.
// Every transport failure is retryable against a LAN hub.
func ClassifyNetworkError(err error, deviceIP string) *DeviceError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &DeviceError{
			Type:           ErrTypeTimeout,
			Message:        "Request timed out",
			Err:            err,
			NetworkSubtype: NetworkErrorTimeout,
			DeviceIP:       deviceIP,
			Retryable:      true,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &DeviceError{
			Type:           ErrTypeDNS,
			Message:        fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:            err,
			NetworkSubtype: NetworkErrorDNS,
			DeviceIP:       deviceIP,
			Retryable:      true,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return &DeviceError{
				Type:           ErrTypeConnectionRefused,
				Message:        "Hub refused connection",
				Err:            err,
				NetworkSubtype: NetworkErrorConnectionRefused,
				DeviceIP:       deviceIP,
				Retryable:      true,
			}
		}
		if errors.Is(opErr.Err, syscall.EHOSTUNREACH) {
			return &DeviceError{
				Type:           ErrTypeNetwork,
				Message:        "Host unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorHostUnreachable,
				DeviceIP:       deviceIP,
				Retryable:      true,
			}
		}
		if errors.Is(opErr.Err, syscall.ENETUNREACH) {
			return &DeviceError{
				Type:           ErrTypeNetwork,
				Message:        "Network unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorNetworkUnreachable,
				DeviceIP:       deviceIP,
				Retryable:      true,
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassifyNetworkError(urlErr.Err, deviceIP)
	}

	return &DeviceError{
		Type:           ErrTypeNetwork,
		Message:        "Network error occurred",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
		DeviceIP:       deviceIP,
		Retryable:      true,
	}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(message string, err error) *DeviceError {
	classified := ClassifyNetworkError(err, "")
	if classified != nil {
		classified.Message = message
		return classified
	}
	return &DeviceError{
		Type:      ErrTypeNetwork,
		Message:   message,
		Retryable: true,
	}
}

// NewHTTPError creates an HTTP-level error. Any non-2xx answer is retried.
func NewHTTPError(statusCode int, message string) *DeviceError {
	return &DeviceError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  true,
	}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeParse,
		Message: message,
		Err:     err,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeValidation,
		Message: message,
	}
}

// NewDataShapeError creates an error for a 2xx response lacking a required key
func NewDataShapeError(message string) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeDataShape,
		Message: message,
	}
}

func asDeviceError(err error) (*DeviceError, bool) {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr, true
	}
	return nil, false
}

// IsConnectionError reports whether err means the hub could not be reached
// within the retry budget.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// IsNetworkError checks if an error is a network error (including timeout, connection refused, DNS, etc.)
func IsNetworkError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeNetwork ||
			devErr.Type == ErrTypeTimeout ||
			devErr.Type == ErrTypeConnectionRefused ||
			devErr.Type == ErrTypeDNS
	}
	return false
}

// IsHTTPError checks if an error is an HTTP error
func IsHTTPError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeHTTP
	}
	return false
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeParse
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeValidation
	}
	return false
}

// IsDataShapeError checks if the hub answered successfully but omitted required data
func IsDataShapeError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeDataShape
	}
	return false
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	if IsConnectionError(err) {
		return false
	}
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Retryable
	}
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	devErr, ok := asDeviceError(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The hub did not respond in time.",
			"Troubleshooting:",
			"  • Check that the hub is powered and awake (battery hubs sleep between samples)",
			"  • Press the hub's button to wake it, then retry",
			"  • Move the hub closer to the access point",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The hub refused the connection.",
			"Troubleshooting:",
			"  • The hub's web server may still be starting - wait a few seconds",
			"  • Verify the address points at the hub and not another device",
			"  • Reboot the hub",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the hub hostname.",
			"Troubleshooting:",
			"  • Use the IP address instead of the hostname",
			"  • Run 'vegehub-cfg scan' to find the hub on the local network",
		}, "\n")

	case ErrTypeNetwork:
		hint := []string{"Network communication failed."}

		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			hint = append(hint, "The hub is not reachable on the network.",
				"Troubleshooting:",
				"  • Verify the hub IP address is correct",
				"  • Check that you're on the same network as the hub",
				"  • Try pinging the hub: ping "+devErr.DeviceIP)

		case NetworkErrorNetworkUnreachable:
			hint = append(hint, "Your computer cannot reach the hub's network.",
				"Troubleshooting:",
				"  • Check your network adapter settings",
				"  • Verify WiFi is enabled on your computer")

		default:
			hint = append(hint, "Troubleshooting:",
				"  • Check your network connection",
				"  • Verify the hub is powered on and joined to WiFi")
		}

		return strings.Join(hint, "\n")

	case ErrTypeHTTP:
		if devErr.StatusCode >= 500 {
			return strings.Join([]string{
				fmt.Sprintf("The hub returned an error (HTTP %d).", devErr.StatusCode),
				"Troubleshooting:",
				"  • Reboot the hub",
				"  • Check if a firmware update is available",
			}, "\n")
		}
		return fmt.Sprintf("The hub returned HTTP error %d. The firmware may not support this request.", devErr.StatusCode)

	case ErrTypeParse, ErrTypeDataShape:
		return strings.Join([]string{
			"The hub answered with data this tool does not understand.",
			"This usually means a firmware version mismatch.",
			"Troubleshooting:",
			"  • Run 'vegehub-cfg info' to check the firmware version",
			"  • Update the hub firmware",
		}, "\n")

	case ErrTypeValidation:
		return "The request values are invalid. Check the error message for details."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	devErr, ok := asDeviceError(err)
	if !ok {
		return err.Error()
	}

	prefix := ""
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		prefix = fmt.Sprintf("After %d attempt(s): ", connErr.Attempts)
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return prefix + "Hub not responding (timeout)"
	case ErrTypeConnectionRefused:
		return prefix + "Hub refused connection"
	case ErrTypeDNS:
		return prefix + "Cannot resolve hub hostname"
	case ErrTypeNetwork:
		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			return prefix + "Hub unreachable - check network connection"
		case NetworkErrorNetworkUnreachable:
			return prefix + "Network unreachable - check WiFi connection"
		default:
			return prefix + "Network error - check connection"
		}
	case ErrTypeHTTP:
		return prefix + fmt.Sprintf("Hub error (HTTP %d)", devErr.StatusCode)
	case ErrTypeParse:
		return "Failed to parse hub response"
	case ErrTypeDataShape:
		return "Unexpected hub response: " + devErr.Message
	default:
		return devErr.Message
	}
}
