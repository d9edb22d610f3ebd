package vegehub

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// VerificationOptions configures how setup verification behaves
type VerificationOptions struct {
	// MaxAttempts is the number of times the config is re-read
	// Default: 3
	MaxAttempts int

	// InitialDelay gives the hub time to persist the config before the first read
	// Default: 200ms
	InitialDelay time.Duration

	// RetryDelay is the delay between verification attempts
	// Default: 300ms
	RetryDelay time.Duration

	// Retries is the request budget of each config read
	// Default: DefaultRetries
	Retries int
}

// DefaultVerificationOptions returns sensible defaults for verification
func DefaultVerificationOptions() *VerificationOptions {
	return &VerificationOptions{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		RetryDelay:   300 * time.Millisecond,
		Retries:      DefaultRetries,
	}
}

// VerificationResult contains the results of a setup verification
type VerificationResult struct {
	// Success indicates whether verification succeeded
	Success bool

	// Attempts is the number of config reads made
	Attempts int

	// Schema is the schema of the config last read ("endpoints", "legacy", "unrecognized")
	Schema string

	// ActualConfig is the configuration last read from the hub
	ActualConfig map[string]any

	// Mismatches lists all differences between expected and actual config
	Mismatches []string

	// Error is any error that occurred during verification
	Error error
}

// VerifySetup re-reads the hub config and checks that it reports to serverURL
// with apiKey
func (h *Hub) VerifySetup(ctx context.Context, apiKey, serverURL string, opts *VerificationOptions) *VerificationResult {
	if opts == nil {
		opts = DefaultVerificationOptions()
	}

	result := &VerificationResult{Mismatches: []string{}}

	if err := sleepContext(ctx, opts.InitialDelay); err != nil {
		result.Error = err
		return result
	}

	attempts := max(opts.MaxAttempts, 1)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, opts.RetryDelay); err != nil {
				result.Error = err
				return result
			}
		}
		result.Attempts++

		blob, err := h.FetchConfig(ctx, opts.Retries)
		if err != nil {
			result.Error = fmt.Errorf("attempt %d: failed to read config: %w", attempt+1, err)
			continue
		}

		result.ActualConfig = blob
		result.Schema = SchemaName(ClassifyConfig(blob))
		result.Mismatches = CheckSetup(blob, apiKey, serverURL)

		if len(result.Mismatches) == 0 {
			result.Success = true
			result.Error = nil
			return result
		}

		result.Error = fmt.Errorf("verification failed after %d attempt(s): %s", result.Attempts, formatMismatches(result.Mismatches))
	}

	return result
}

// CheckSetup compares a config blob against the expected upstream settings.
// Returns a list of mismatches (empty if the blob matches).
func CheckSetup(blob map[string]any, apiKey, serverURL string) []string {
	var mismatches []string

	switch shape := ClassifyConfig(blob).(type) {
	case *EndpointsConfig:
		ep, ok := FindEndpoint(shape.Endpoints, ReservedEndpointName)
		if !ok {
			return []string{fmt.Sprintf("endpoint %q not found", ReservedEndpointName)}
		}
		if ep["enabled"] != true {
			mismatches = append(mismatches, fmt.Sprintf("endpoint enabled: expected true, got %v", ep["enabled"]))
		}
		if ep["type"] != ReservedEndpointType {
			mismatches = append(mismatches, fmt.Sprintf("endpoint type: expected %s, got %v", ReservedEndpointType, ep["type"]))
		}
		cfg, _ := ep["config"].(map[string]any)
		if cfg["api_key"] != apiKey {
			mismatches = append(mismatches, fmt.Sprintf("endpoint api_key: expected %s, got %v", apiKey, cfg["api_key"]))
		}
		if cfg["url"] != serverURL {
			mismatches = append(mismatches, fmt.Sprintf("endpoint url: expected %s, got %v", serverURL, cfg["url"]))
		}
		if cfg["data_format"] != ReservedDataFormat {
			mismatches = append(mismatches, fmt.Sprintf("endpoint data_format: expected %s, got %v", ReservedDataFormat, cfg["data_format"]))
		}

	case *LegacyConfig:
		if shape.Blob["api_key"] != apiKey {
			mismatches = append(mismatches, fmt.Sprintf("api_key: expected %s, got %v", apiKey, shape.Blob["api_key"]))
		}
		if shape.Hub["server_url"] != serverURL {
			mismatches = append(mismatches, fmt.Sprintf("hub.server_url: expected %s, got %v", serverURL, shape.Hub["server_url"]))
		}
		if n, ok := intValue(shape.Hub["server_type"]); !ok || n != LegacyServerType {
			mismatches = append(mismatches, fmt.Sprintf("hub.server_type: expected %d, got %v", LegacyServerType, shape.Hub["server_type"]))
		}

	case UnrecognizedConfig:
		mismatches = append(mismatches, "unrecognized config schema: "+shape.Reason)
	}

	return mismatches
}

// formatMismatches creates a human-readable summary of mismatches
func formatMismatches(mismatches []string) string {
	switch len(mismatches) {
	case 0:
		return "none"
	case 1:
		return mismatches[0]
	default:
		return fmt.Sprintf("%d mismatches: %s", len(mismatches), strings.Join(mismatches, "; "))
	}
}

// SetupAndVerify runs Setup and, if it wrote the config, verifies it was applied
func (h *Hub) SetupAndVerify(ctx context.Context, apiKey, serverURL string, retries int, opts *VerificationOptions) *VerificationResult {
	ok, err := h.Setup(ctx, apiKey, serverURL, retries)
	if err != nil {
		return &VerificationResult{Error: fmt.Errorf("setup failed: %w", err)}
	}
	if !ok {
		return &VerificationResult{Error: fmt.Errorf("setup failed: hub config not recognized")}
	}
	return h.VerifySetup(ctx, apiKey, serverURL, opts)
}
