package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/vegetronix/vegehub/internal/calibration"
)

// Registry represents the entire user configuration file
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by simple MAC
	Preferences *Preferences       `yaml:"preferences,omitempty"`
	Bridge      *BridgeConfig      `yaml:"bridge,omitempty"`
}

// Device represents what the user knows about one hub
type Device struct {
	Nickname     string               `yaml:"nickname,omitempty"`
	APIKey       string               `yaml:"api_key,omitempty"` // key the hub sends to the bridge
	LastIP       string               `yaml:"last_ip,omitempty"`
	LastSeen     time.Time            `yaml:"last_seen,omitempty"`
	NumSensors   int                  `yaml:"num_sensors"`
	NumActuators int                  `yaml:"num_actuators"`
	AllActuators bool                 `yaml:"all_actuators,omitempty"` // every update slot is an actuator
	Channels     map[int]*ChannelMeta `yaml:"channels,omitempty"`      // Keyed by analog channel (1-based)
}

// ChannelMeta labels one analog channel and names its probe
type ChannelMeta struct {
	Label  string `yaml:"label,omitempty"`
	Sensor string `yaml:"sensor,omitempty"` // raw, vh400 or therm200
}

// Preferences holds CLI defaults
type Preferences struct {
	DiscoverTimeout int `yaml:"discover_timeout"` // seconds
	Retries         int `yaml:"retries"`
}

// BridgeConfig configures the push bridge
type BridgeConfig struct {
	Listen        string      `yaml:"listen"`
	UpdatePath    string      `yaml:"update_path"`
	PublicURL     string      `yaml:"public_url,omitempty"` // URL hubs are told to post to
	AcceptUnknown bool        `yaml:"accept_unknown,omitempty"`
	MQTT          *MQTTConfig `yaml:"mqtt,omitempty"`
}

// MQTTConfig locates the broker. The password is never stored.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	Username    string `yaml:"username,omitempty"`
	TopicPrefix string `yaml:"topic_prefix"`
}

const (
	DefaultListen      = ":8123"
	DefaultUpdatePath  = "/api/vegehub/update"
	DefaultTopicPrefix = "vegehub"
)

// DefaultPreferences returns the CLI defaults
func DefaultPreferences() *Preferences {
	return &Preferences{DiscoverTimeout: 5, Retries: 3}
}

// DefaultBridgeConfig returns the bridge defaults
func DefaultBridgeConfig() *BridgeConfig {
	return &BridgeConfig{
		Listen:     DefaultListen,
		UpdatePath: DefaultUpdatePath,
		MQTT:       &MQTTConfig{TopicPrefix: DefaultTopicPrefix},
	}
}

// NewRegistry creates a new Registry with default values
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: DefaultPreferences(),
		Bridge:      DefaultBridgeConfig(),
	}
}

// applyDefaults fills in sections and fields missing from a loaded file
func (r *Registry) applyDefaults() {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	if r.Preferences == nil {
		r.Preferences = DefaultPreferences()
	}
	if r.Preferences.DiscoverTimeout <= 0 {
		r.Preferences.DiscoverTimeout = DefaultPreferences().DiscoverTimeout
	}
	if r.Bridge == nil {
		r.Bridge = DefaultBridgeConfig()
	}
	if r.Bridge.Listen == "" {
		r.Bridge.Listen = DefaultListen
	}
	if r.Bridge.UpdatePath == "" {
		r.Bridge.UpdatePath = DefaultUpdatePath
	}
	if r.Bridge.MQTT == nil {
		r.Bridge.MQTT = &MQTTConfig{}
	}
	if r.Bridge.MQTT.TopicPrefix == "" {
		r.Bridge.MQTT.TopicPrefix = DefaultTopicPrefix
	}
}

func deviceKey(mac string) string {
	return strings.ToLower(mac)
}

// GetDevice retrieves device metadata by simple MAC.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(mac string) *Device {
	return r.Devices[deviceKey(mac)]
}

// EnsureDevice returns the entry for mac, creating an empty one if needed
func (r *Registry) EnsureDevice(mac string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	key := deviceKey(mac)
	if device, exists := r.Devices[key]; exists {
		return device
	}

	device := &Device{Channels: make(map[int]*ChannelMeta)}
	r.Devices[key] = device
	return device
}

// UpdateDeviceLastSeen updates the last seen timestamp and IP for a device
func (r *Registry) UpdateDeviceLastSeen(mac, ip string) {
	device := r.EnsureDevice(mac)
	device.LastSeen = time.Now()
	device.LastIP = ip
}

// SetDeviceNickname sets a user-friendly nickname for a device
func (r *Registry) SetDeviceNickname(mac, nickname string) {
	r.EnsureDevice(mac).Nickname = nickname
}

// SetChannel labels an analog channel and sets its probe type
func (r *Registry) SetChannel(mac string, channel int, label, sensor string) error {
	if channel < 1 {
		return fmt.Errorf("channel must be >= 1, got %d", channel)
	}
	typ, err := calibration.ParseSensorType(sensor)
	if err != nil {
		return err
	}

	device := r.EnsureDevice(mac)
	if device.Channels == nil {
		device.Channels = make(map[int]*ChannelMeta)
	}
	device.Channels[channel] = &ChannelMeta{Label: label, Sensor: string(typ)}
	return nil
}

// FindDevice resolves ref as a simple MAC, a nickname (case-insensitive) or a
// last known IP. It returns the registry key with the device.
func (r *Registry) FindDevice(ref string) (string, *Device) {
	if ref == "" {
		return "", nil
	}
	if device := r.GetDevice(ref); device != nil {
		return deviceKey(ref), device
	}
	for mac, device := range r.Devices {
		if strings.EqualFold(device.Nickname, ref) || device.LastIP == ref {
			return mac, device
		}
	}
	return "", nil
}

// SensorType returns the probe type configured for an analog channel (1-based).
// Unknown channels and unparseable names are raw.
func (d *Device) SensorType(channel int) calibration.SensorType {
	if d == nil || d.Channels == nil {
		return calibration.SensorRaw
	}
	meta := d.Channels[channel]
	if meta == nil {
		return calibration.SensorRaw
	}
	typ, err := calibration.ParseSensorType(meta.Sensor)
	if err != nil {
		return calibration.SensorRaw
	}
	return typ
}

// ChannelLabel returns the user label of a channel, or ""
func (d *Device) ChannelLabel(channel int) string {
	if d == nil || d.Channels[channel] == nil {
		return ""
	}
	return d.Channels[channel].Label
}

// DisplayName returns the nickname, falling back to mac
func (d *Device) DisplayName(mac string) string {
	if d != nil && d.Nickname != "" {
		return d.Nickname
	}
	return mac
}
