package bridge

import (
	"strings"
	"time"

	"github.com/vegetronix/vegehub/internal/calibration"
	"github.com/vegetronix/vegehub/internal/config"
	"github.com/vegetronix/vegehub/internal/update"
)

// Reading is one published channel value
type Reading struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
	Sensor string  `json:"sensor,omitempty"`
	Label  string  `json:"label,omitempty"`
}

// DeviceState is the normalized view of one push
type DeviceState struct {
	MAC          string             `json:"mac"`
	Name         string             `json:"name"`
	SentAt       time.Time          `json:"sent_at"`
	ReceivedAt   time.Time          `json:"received_at"`
	WiFiStrength int                `json:"wifi_strength"`
	ErrorCode    int                `json:"error_code"`
	Readings     map[string]Reading `json:"readings"`

	// Raw is every slot's latest value keyed "{mac}_{slot}"
	Raw map[string]float64 `json:"-"`
}

// BuildState normalizes p for device. A nil device (an unregistered hub) yields
// raw values only, since slot roles cannot be told apart without channel counts.
// It returns the number of readings dropped: slots whose latest sample is not a
// number plus values calibration rejected.
func BuildState(p *update.Payload, device *config.Device, now time.Time) (*DeviceState, int) {
	mac := p.SimpleMAC()
	state := &DeviceState{
		MAC:          mac,
		Name:         device.DisplayName(mac),
		SentAt:       p.SentAt(),
		ReceivedAt:   now.UTC(),
		WiFiStrength: p.WiFiStrength,
		ErrorCode:    p.ErrorCode,
		Readings:     make(map[string]Reading),
		Raw:          update.LatestValues(p),
	}
	if state.SentAt.IsZero() {
		state.SentAt = state.ReceivedAt
	}
	dropped := p.InvalidSlots()
	if device == nil {
		return state, dropped
	}

	values := update.HomeAssistantValues(p, device.NumSensors, device.NumActuators, device.AllActuators)
	for key, raw := range values {
		if idx, ok := update.AnalogIndex(key); ok {
			channel := idx + 1
			sensor := device.SensorType(channel)
			value, ok := calibration.Apply(sensor, raw)
			if !ok {
				dropped++
				continue
			}
			state.Readings[key] = Reading{
				Value:  value,
				Unit:   sensor.Unit(),
				Sensor: string(sensor),
				Label:  device.ChannelLabel(channel),
			}
			continue
		}

		switch {
		case key == update.BatteryKey:
			state.Readings[key] = Reading{Value: raw, Unit: "V"}
		case strings.HasPrefix(key, update.ActuatorPrefix):
			state.Readings[key] = Reading{Value: raw}
		}
	}

	return state, dropped
}

// SlotValues re-keys Raw by slot number alone
func (s *DeviceState) SlotValues() map[string]float64 {
	out := make(map[string]float64, len(s.Raw))
	for key, v := range s.Raw {
		if i := strings.LastIndex(key, "_"); i >= 0 {
			out[key[i+1:]] = v
		}
	}
	return out
}
