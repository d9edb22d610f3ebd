package bridge

import (
	"math"
	"testing"
	"time"

	"github.com/vegetronix/vegehub/internal/config"
	"github.com/vegetronix/vegehub/internal/update"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func samplePayload(values ...float64) *update.Payload {
	p := &update.Payload{APIKey: "aabbccddeeff", MAC: "AA:BB:CC:DD:EE:FF", SendTime: 1746100000, WiFiStrength: -61}
	for i, v := range values {
		p.Sensors = append(p.Sensors, update.SensorReport{
			Slot:    i + 1,
			Samples: []update.Sample{{Value: 0, Time: "old"}, {Value: v, Time: "new"}},
		})
	}
	return p
}

func testDevice() *config.Device {
	return &config.Device{
		Nickname:     "greenhouse",
		NumSensors:   2,
		NumActuators: 1,
		Channels: map[int]*config.ChannelMeta{
			1: {Label: "bed A", Sensor: "vh400"},
			2: {Sensor: "therm200"},
		},
	}
}

func TestBuildState(t *testing.T) {
	state, dropped := BuildState(samplePayload(2.2, 1.2, 3.9, 1), testDevice(), testNow)
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}
	if state.MAC != "aabbccddeeff" || state.Name != "greenhouse" {
		t.Errorf("identity = %s/%s", state.MAC, state.Name)
	}
	if !state.SentAt.Equal(time.Unix(1746100000, 0)) {
		t.Errorf("SentAt = %v", state.SentAt)
	}
	if state.WiFiStrength != -61 {
		t.Errorf("WiFiStrength = %d", state.WiFiStrength)
	}

	tests := []struct {
		key   string
		value float64
		unit  string
		label string
	}{
		{"analog_0", 50, "%", "bed A"},
		{"analog_1", 41.67*1.2 - 40, "°C", ""},
		{"battery", 3.9, "V", ""},
		{"actuator_0", 1, "", ""},
	}
	for _, tt := range tests {
		got, ok := state.Readings[tt.key]
		if !ok {
			t.Errorf("missing reading %s", tt.key)
			continue
		}
		if math.Abs(got.Value-tt.value) > 1e-9 || got.Unit != tt.unit || got.Label != tt.label {
			t.Errorf("%s = %+v, want value %v unit %q label %q", tt.key, got, tt.value, tt.unit, tt.label)
		}
	}
	if len(state.Readings) != len(tests) {
		t.Errorf("got %d readings, want %d", len(state.Readings), len(tests))
	}
	if len(state.Raw) != 4 || state.Raw["aa:bb:cc:dd:ee:ff_3"] != 3.9 {
		t.Errorf("Raw = %v", state.Raw)
	}
}

func TestBuildState_DropsInvalidReadings(t *testing.T) {
	state, dropped := BuildState(samplePayload(math.NaN(), 1.0), testDevice(), testNow)
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if _, ok := state.Readings["analog_0"]; ok {
		t.Error("invalid analog_0 should not be published")
	}
	if _, ok := state.Readings["analog_1"]; !ok {
		t.Error("analog_1 should survive")
	}
}

func TestBuildState_UnknownDevice(t *testing.T) {
	p := samplePayload(1.5, 2.5)
	p.SendTime = 0

	state, dropped := BuildState(p, nil, testNow)
	if dropped != 0 || len(state.Readings) != 0 {
		t.Errorf("unknown device should have raw values only, got %v", state.Readings)
	}
	if state.Name != state.MAC {
		t.Errorf("Name = %q, want the MAC", state.Name)
	}
	if !state.SentAt.Equal(testNow) {
		t.Errorf("SentAt = %v, want receive time when send_time is absent", state.SentAt)
	}

	slots := state.SlotValues()
	if slots["1"] != 1.5 || slots["2"] != 2.5 {
		t.Errorf("SlotValues() = %v", slots)
	}
}
