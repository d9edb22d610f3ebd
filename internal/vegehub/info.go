package vegehub

import (
	"context"
	"encoding/hex"
	"net/http"
	"strings"
)

// DeviceInfo is the hub's self-description from /api/info/get.
// The derived fields are projected from Raw in one step; a nil field means the
// hub did not report that key.
type DeviceInfo struct {
	// Raw is the "hub" object exactly as reported
	Raw map[string]any

	NumSensors   *int
	NumActuators *int
	Version      *string
	IsAC         *bool
}

// projectInfo derives every typed field from the raw hub object
func projectInfo(raw map[string]any) *DeviceInfo {
	info := &DeviceInfo{Raw: raw}

	if n, ok := intValue(raw["num_channels"]); ok {
		info.NumSensors = &n
	}
	if n, ok := intValue(raw["num_actuators"]); ok {
		info.NumActuators = &n
	}
	if v, ok := raw["version"].(string); ok {
		info.Version = &v
	}
	switch v := raw["is_ac"].(type) {
	case bool:
		info.IsAC = &v
	case float64:
		ac := v != 0
		info.IsAC = &ac
	}

	return info
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// FetchInfo reads the hub's info and replaces the cached copy.
// It returns nil info (and no error) when the hub reports no "hub" object; the
// cache is unset in that case. On error the cache is left untouched.
func (h *Hub) FetchInfo(ctx context.Context, retries int) (*DeviceInfo, error) {
	body, err := h.requestObject(ctx, http.MethodPost, PathInfoGet, struct{}{}, retries)
	if err != nil {
		return nil, err
	}

	raw, ok := body["hub"].(map[string]any)
	if !ok {
		h.info = nil
		return nil, nil
	}

	h.info = projectInfo(raw)
	return h.info, nil
}

// FetchMacAddress reads the hub's WiFi MAC address and caches both renderings.
// It reports false when the hub answers without a usable address; only an
// exhausted retry budget (or a cancelled context) is returned as an error.
func (h *Hub) FetchMacAddress(ctx context.Context, retries int) (bool, error) {
	body, err := h.requestObject(ctx, http.MethodPost, PathInfoGet, struct{}{}, retries)
	if err != nil {
		if IsParseError(err) {
			return false, nil
		}
		return false, err
	}

	wifi, _ := body["wifi"].(map[string]any)
	raw, _ := wifi["mac_addr"].(string)

	canonical, simple, ok := NormalizeMAC(raw)
	if !ok {
		return false, nil
	}

	h.macAddress = canonical
	h.simpleMAC = simple
	return true, nil
}

// NormalizeMAC returns the canonical (AA:BB:CC:DD:EE:FF) and simple
// (aabbccddeeff) forms of a MAC address written with any of ':', '-', '.' or
// no separators.
func NormalizeMAC(raw string) (canonical, simple string, ok bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '-', '.', ' ', '\t':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	if len(cleaned) != 12 {
		return "", "", false
	}
	if _, err := hex.DecodeString(cleaned); err != nil {
		return "", "", false
	}

	simple = strings.ToLower(cleaned)
	upper := strings.ToUpper(cleaned)
	parts := make([]string, 0, 6)
	for i := 0; i < 12; i += 2 {
		parts = append(parts, upper[i:i+2])
	}
	return strings.Join(parts, ":"), simple, true
}

// Info returns the cached info, or nil if unset
func (h *Hub) Info() *DeviceInfo {
	return h.info
}

// NumSensors returns the cached analog channel count
func (h *Hub) NumSensors() (int, bool) {
	if h.info == nil || h.info.NumSensors == nil {
		return 0, false
	}
	return *h.info.NumSensors, true
}

// NumActuators returns the cached actuator count
func (h *Hub) NumActuators() (int, bool) {
	if h.info == nil || h.info.NumActuators == nil {
		return 0, false
	}
	return *h.info.NumActuators, true
}

// SoftwareVersion returns the cached firmware version
func (h *Hub) SoftwareVersion() (string, bool) {
	if h.info == nil || h.info.Version == nil {
		return "", false
	}
	return *h.info.Version, true
}

// IsAC reports whether the hub is mains powered, if known
func (h *Hub) IsAC() (ac bool, known bool) {
	if h.info == nil || h.info.IsAC == nil {
		return false, false
	}
	return *h.info.IsAC, true
}

// MACAddress returns the cached canonical MAC address, or "" if not fetched
func (h *Hub) MACAddress() string {
	return h.macAddress
}

// SimpleMACAddress returns the cached lowercase separator-free MAC, or ""
func (h *Hub) SimpleMACAddress() string {
	return h.simpleMAC
}
