package vegehub

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

func optionalInt(v *int) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%d", *v)
}

func optionalString(v *string) string {
	if v == nil || *v == "" {
		return "unknown"
	}
	return *v
}

// PowerSource describes how the hub is powered
func (di *DeviceInfo) PowerSource() string {
	if di == nil || di.IsAC == nil {
		return "unknown"
	}
	if *di.IsAC {
		return "AC"
	}
	return "battery"
}

// Summary returns a one-line summary of the hub. A nil info renders as unknown.
func (di *DeviceInfo) Summary() string {
	if di == nil {
		di = &DeviceInfo{}
	}
	return fmt.Sprintf("VegeHub FW %s (%s sensors, %s actuators, %s)",
		optionalString(di.Version), optionalInt(di.NumSensors), optionalInt(di.NumActuators), di.PowerSource())
}

// FormatCompact returns a compact multi-line format suitable for terminal display
func (di *DeviceInfo) FormatCompact() string {
	if di == nil {
		di = &DeviceInfo{}
	}
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Firmware:  %s\n", optionalString(di.Version)))
	b.WriteString(fmt.Sprintf("Sensors:   %s\n", optionalInt(di.NumSensors)))
	b.WriteString(fmt.Sprintf("Actuators: %s\n", optionalInt(di.NumActuators)))
	b.WriteString(fmt.Sprintf("Power:     %s\n", di.PowerSource()))

	return b.String()
}

// FormatDetailed returns the compact format followed by every other reported key
func (di *DeviceInfo) FormatDetailed() string {
	if di == nil {
		di = &DeviceInfo{}
	}
	var b strings.Builder

	b.WriteString("=== Hub Information ===\n")
	b.WriteString(di.FormatCompact())

	known := map[string]bool{"num_channels": true, "num_actuators": true, "version": true, "is_ac": true}
	keys := make([]string, 0, len(di.Raw))
	for k := range di.Raw {
		if !known[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return b.String()
	}
	sort.Strings(keys)

	b.WriteString("\n=== Additional Fields ===\n")
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("%-14s %v\n", k+":", di.Raw[k]))
	}

	return b.String()
}

func formatUnix(ts int64) string {
	if ts <= 0 {
		return "-"
	}
	return time.Unix(ts, 0).Local().Format("2006-01-02 15:04")
}

// FormatActuatorStates renders actuator status as a table
func FormatActuatorStates(states []ActuatorState) string {
	if len(states) == 0 {
		return "No actuators reported\n"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-5s %-6s %-17s %-17s %-17s %8s %8s %5s\n",
		"SLOT", "STATE", "LAST RUN", "WINDOW START", "WINDOW END", "CUR mA", "TYP mA", "ERR"))

	for _, s := range states {
		state := "OFF"
		if s.On() {
			state = "ON"
		}
		b.WriteString(fmt.Sprintf("%-5d %-6s %-17s %-17s %-17s %8.1f %8.1f %5d\n",
			s.Slot, state,
			formatUnix(s.LastRun), formatUnix(s.NextWindowStart), formatUnix(s.NextWindowEnd),
			s.CurrentMA, s.TypicalMA, s.Error))
	}

	return b.String()
}

// FormatConfigSummary describes a config blob's schema and upstream targets
func FormatConfigSummary(blob map[string]any) string {
	var b strings.Builder

	switch shape := ClassifyConfig(blob).(type) {
	case *EndpointsConfig:
		b.WriteString(fmt.Sprintf("Schema:    endpoints (%d configured)\n", len(shape.Endpoints)))
		for _, raw := range shape.Endpoints {
			ep, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			enabled := "disabled"
			if ep["enabled"] == true {
				enabled = "enabled"
			}
			target := ""
			if cfg, ok := ep["config"].(map[string]any); ok {
				if u, ok := cfg["url"].(string); ok {
					target = u
				} else if u, ok := cfg["server_url"].(string); ok {
					target = u
				}
			}
			b.WriteString(fmt.Sprintf("  [%v] %-16v %-10v %-8s %s\n", ep["id"], ep["name"], ep["type"], enabled, target))
		}

	case *LegacyConfig:
		b.WriteString("Schema:    legacy\n")
		b.WriteString(fmt.Sprintf("Server:    %v (type %v)\n", shape.Hub["server_url"], shape.Hub["server_type"]))

	case UnrecognizedConfig:
		b.WriteString(fmt.Sprintf("Schema:    unrecognized (%s)\n", shape.Reason))
	}

	return b.String()
}
