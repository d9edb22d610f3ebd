package vegehub

import (
	"fmt"
	"net/url"
	"strings"
)

// MaxAPIKeyLength is the longest API key the firmware stores
const MaxAPIKeyLength = 64

// MaxActuatorDuration bounds a single actuation (one day, in seconds)
const MaxActuatorDuration = 86400

// ValidateAPIKey validates an upstream API key.
// Keys must be non-empty, at most 64 characters, and contain no whitespace.
func ValidateAPIKey(key string) error {
	if key == "" {
		return NewValidationError("API key cannot be empty")
	}
	if len(key) > MaxAPIKeyLength {
		return NewValidationError(fmt.Sprintf("API key too long (max %d chars): %d chars", MaxAPIKeyLength, len(key)))
	}
	if strings.ContainsAny(key, " \t\r\n") {
		return NewValidationError("API key cannot contain whitespace")
	}
	return nil
}

// ValidateServerURL validates the URL the hub will push updates to.
// Only absolute http and https URLs with a host are accepted.
func ValidateServerURL(raw string) error {
	if raw == "" {
		return NewValidationError("server URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return NewValidationError(fmt.Sprintf("invalid server URL %q: %v", raw, err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewValidationError(fmt.Sprintf("server URL must use http or https, got %q", u.Scheme))
	}
	if u.Host == "" {
		return NewValidationError(fmt.Sprintf("server URL %q has no host", raw))
	}
	return nil
}

// ValidateSetupParams validates the arguments of Setup.
// Returns a slice of validation errors (empty if valid).
func ValidateSetupParams(apiKey, serverURL string) []error {
	var errs []error

	if err := ValidateAPIKey(apiKey); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateServerURL(serverURL); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// ValidateActuatorCommand validates an actuator set command
func ValidateActuatorCommand(state, slot, durationSeconds int) error {
	if state != 0 && state != 1 {
		return NewValidationError(fmt.Sprintf("actuator state must be 0 or 1, got %d", state))
	}
	if slot < 0 {
		return NewValidationError(fmt.Sprintf("actuator slot must be >= 0, got %d", slot))
	}
	if durationSeconds < 0 {
		return NewValidationError(fmt.Sprintf("actuator duration must be >= 0, got %d", durationSeconds))
	}
	if durationSeconds > MaxActuatorDuration {
		return NewValidationError(fmt.Sprintf("actuator duration too long (max %d s): %d s", MaxActuatorDuration, durationSeconds))
	}
	return nil
}

// ValidateActuatorSlot checks slot against the hub's reported actuator count
func ValidateActuatorSlot(slot, numActuators int) error {
	if slot < 0 || slot >= numActuators {
		return NewValidationError(fmt.Sprintf("actuator slot %d out of range (hub has %d actuators)", slot, numActuators))
	}
	return nil
}
