package vegehub

import (
	"context"
	"net/http"
)

// Reserved upstream endpoint installed by Setup on endpoint-schema firmware.
const (
	ReservedEndpointName     = "HomeAssistant"
	ReservedEndpointType     = "custom"
	ReservedConnectionMethod = "wifi"
	ReservedDataFormat       = "json"
)

// LegacyServerType is the hub.server_type value selecting a custom JSON server
// on flat-schema firmware.
const LegacyServerType = 3

// ConfigShape is the result of classifying a config blob. It is one of
// *EndpointsConfig, *LegacyConfig or UnrecognizedConfig.
type ConfigShape interface {
	schema() string
}

// EndpointsConfig is a blob in the endpoint-array schema
type EndpointsConfig struct {
	Blob      map[string]any
	Endpoints []any
}

// LegacyConfig is a blob in the flat api_key/hub schema
type LegacyConfig struct {
	Blob map[string]any
	Hub  map[string]any
}

// UnrecognizedConfig is a blob matching neither schema
type UnrecognizedConfig struct {
	Reason string
}

func (*EndpointsConfig) schema() string { return "endpoints" }

func (*LegacyConfig) schema() string { return "legacy" }

func (UnrecognizedConfig) schema() string { return "unrecognized" }

// SchemaName returns "endpoints", "legacy" or "unrecognized"
func SchemaName(shape ConfigShape) string {
	if shape == nil {
		return "unrecognized"
	}
	return shape.schema()
}

// ClassifyConfig determines which schema a config blob speaks.
// Classification is structural: an "endpoints" array selects the endpoint
// schema, otherwise both "api_key" and a "hub" object select the legacy schema.
// The returned shapes reference blob; they do not copy it.
func ClassifyConfig(blob map[string]any) ConfigShape {
	if len(blob) == 0 {
		return UnrecognizedConfig{Reason: "empty config"}
	}

	if raw, ok := blob["endpoints"]; ok {
		if endpoints, isArray := raw.([]any); isArray {
			return &EndpointsConfig{Blob: blob, Endpoints: endpoints}
		}
	}

	_, hasKey := blob["api_key"]
	rawHub, hasHub := blob["hub"]
	switch {
	case !hasKey && !hasHub:
		return UnrecognizedConfig{Reason: "neither endpoints nor api_key/hub present"}
	case !hasKey:
		return UnrecognizedConfig{Reason: "legacy config missing api_key"}
	case !hasHub:
		return UnrecognizedConfig{Reason: "legacy config missing hub"}
	}

	hub, ok := rawHub.(map[string]any)
	if !ok {
		return UnrecognizedConfig{Reason: "legacy config hub is not an object"}
	}
	return &LegacyConfig{Blob: blob, Hub: hub}
}

// ReconcileConfig returns a copy of blob that reports to serverURL with apiKey.
// The input is never modified. It reports false when the blob matches neither
// schema.
func ReconcileConfig(blob map[string]any, apiKey, serverURL string) (map[string]any, bool) {
	updated := CloneConfig(blob)

	switch shape := ClassifyConfig(updated).(type) {
	case *EndpointsConfig:
		updated["endpoints"] = upsertReservedEndpoint(shape.Endpoints, apiKey, serverURL)
		return updated, true

	case *LegacyConfig:
		updated["api_key"] = apiKey
		shape.Hub["server_url"] = serverURL
		shape.Hub["server_type"] = LegacyServerType
		return updated, true

	default:
		return nil, false
	}
}

// upsertReservedEndpoint overwrites the reserved endpoint in place, keeping its
// id, or appends it with the next free id. Other endpoints keep their order.
func upsertReservedEndpoint(endpoints []any, apiKey, serverURL string) []any {
	endpoint := map[string]any{
		"name":              ReservedEndpointName,
		"type":              ReservedEndpointType,
		"enabled":           true,
		"connection_method": ReservedConnectionMethod,
		"config": map[string]any{
			"api_key":     apiKey,
			"data_format": ReservedDataFormat,
			"url":         serverURL,
		},
	}

	maxID, hasID := 0, false
	for i, raw := range endpoints {
		existing, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if existing["name"] == ReservedEndpointName {
			endpoint["id"] = existing["id"]
			endpoints[i] = endpoint
			return endpoints
		}
		if id, ok := intValue(existing["id"]); ok && (!hasID || id > maxID) {
			maxID, hasID = id, true
		}
	}

	nextID := 1
	if hasID {
		nextID = maxID + 1
	}
	endpoint["id"] = nextID
	return append(endpoints, endpoint)
}

// FindEndpoint returns the endpoint object with the given name
func FindEndpoint(endpoints []any, name string) (map[string]any, bool) {
	for _, raw := range endpoints {
		if ep, ok := raw.(map[string]any); ok && ep["name"] == name {
			return ep, true
		}
	}
	return nil, false
}

// CloneConfig deep-copies a decoded JSON object
func CloneConfig(blob map[string]any) map[string]any {
	if blob == nil {
		return nil
	}
	return cloneValue(blob).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

// FetchConfig reads the hub's configuration blob.
// A hub answering with an empty body yields a nil blob.
func (h *Hub) FetchConfig(ctx context.Context, retries int) (map[string]any, error) {
	return h.requestObject(ctx, http.MethodPost, PathConfigGet, struct{}{}, retries)
}

// SetConfig writes a full configuration blob to the hub
func (h *Hub) SetConfig(ctx context.Context, blob map[string]any, retries int) error {
	if blob == nil {
		return NewValidationError("refusing to write an empty config")
	}
	_, err := h.request(ctx, http.MethodPost, PathConfigSet, blob, retries)
	return err
}
