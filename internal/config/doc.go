// Package config provides user configuration management for the VegeHub tools.
//
// This package manages a YAML-based registry of the hubs a user has set up:
// nicknames, last known addresses, channel counts and per-channel sensor types,
// plus CLI preferences and the push bridge settings. The configuration follows
// OS-specific conventions for storage location.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/vegehub/config.yaml or $HOME/.config/vegehub/config.yaml
//   - macOS: $HOME/.config/vegehub/config.yaml
//   - Windows: %LOCALAPPDATA%\vegehub\config.yaml
//
// # Security
//
// The registry never stores the MQTT broker password. The bridge reads it from
// the VEGEHUB_MQTT_PASSWORD environment variable.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.SetDeviceNickname("7c9ebd4b49d8", "Greenhouse")
//	if err := registry.SetChannel("7c9ebd4b49d8", 1, "Bed 1 moisture", "vh400"); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// Devices are keyed by the hub's simple MAC (lowercase, no separators). A
// registered hub also carries the api_key it was given, which the bridge
// checks on every push.
package config
