package update

import (
	"testing"
	"time"
)

const updateData = `{
	"api_key": "",
	"mac": "7C9EBD4B49D8",
	"error_code": 0,
	"sensors": [
		{"slot": 1, "samples": [{"v": 1.5, "t": "2025-01-15T16:51:23Z"}]},
		{"slot": 2, "samples": [{"v": 1.45599997, "t": "2025-01-15T16:51:23Z"}]},
		{"slot": 3, "samples": [{"v": 1.330000043, "t": "2025-01-15T16:51:23Z"}]},
		{"slot": 4, "samples": [{"v": 0.075999998, "t": "2025-01-15T16:51:23Z"}]},
		{"slot": 5, "samples": [{"v": 9.314800262, "t": "2025-01-15T16:51:23Z"}]},
		{"slot": 6, "samples": [{"v": 1, "t": "2025-01-15T16:51:23Z"}]},
		{"slot": 7, "samples": [{"v": 0, "t": "2025-01-15T16:51:23Z"}]}
	],
	"send_time": 1736959883,
	"wifi_str": -27
}`

// Hub with actuators configured but none reported in this push.
const updateDataNoActuators = `{
	"api_key": "",
	"mac": "7C9EBD4B49D8",
	"error_code": 0,
	"sensors": [
		{"slot": 1, "samples": [{"v": 1.518, "t": "2025-05-16T20:38:40Z"}]},
		{"slot": 2, "samples": [{"v": 1.498, "t": "2025-05-16T20:38:40Z"}]},
		{"slot": 3, "samples": [{"v": 0.026, "t": "2025-05-16T20:38:40Z"}]},
		{"slot": 4, "samples": [{"v": 2.346, "t": "2025-05-16T20:38:40Z"}]},
		{"slot": 5, "samples": [{"v": 9.3588, "t": "2025-05-16T20:38:40Z"}]}
	],
	"send_time": 1747427920,
	"wifi_str": -28
}`

const updateDataAllActuators = `{
	"api_key": "",
	"mac": "7C9EBD4B49D8",
	"error_code": 0,
	"sensors": [
		{"slot": 1, "samples": [{"v": 1, "t": "2025-01-15T16:51:23Z"}]},
		{"slot": 2, "samples": [{"v": 0, "t": "2025-01-15T16:51:23Z"}]},
		{"slot": 3, "samples": [{"v": 1, "t": "2025-01-15T16:51:23Z"}]},
		{"slot": 4, "samples": [{"v": 0, "t": "2025-01-15T16:51:23Z"}]}
	],
	"send_time": 1736959883,
	"wifi_str": -27
}`

func mustParse(t *testing.T, data string) *Payload {
	t.Helper()
	p, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return p
}

func TestParse(t *testing.T) {
	p := mustParse(t, updateData)

	if p.MAC != "7C9EBD4B49D8" {
		t.Errorf("MAC = %q, want 7C9EBD4B49D8", p.MAC)
	}
	if len(p.Sensors) != 7 {
		t.Fatalf("len(Sensors) = %d, want 7", len(p.Sensors))
	}
	if p.WiFiStrength != -27 {
		t.Errorf("WiFiStrength = %d, want -27", p.WiFiStrength)
	}
	if got := p.SimpleMAC(); got != "7c9ebd4b49d8" {
		t.Errorf("SimpleMAC() = %q, want 7c9ebd4b49d8", got)
	}
	want := time.Date(2025, 1, 15, 16, 51, 23, 0, time.UTC)
	if got := p.SentAt(); !got.Equal(want) {
		t.Errorf("SentAt() = %v, want %v", got, want)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("{not json")); err == nil {
		t.Error("Parse() expected error for malformed body")
	}
}

// One push mixing good slots with a string value, a null value, a broken
// sample entry and a broken sensor entry.
const updateDataMixed = `{
	"api_key": "k",
	"mac": "7C9EBD4B49D8",
	"error_code": "0",
	"sensors": [
		{"slot": 1, "samples": [{"v": 1.5, "t": "2025-01-15T16:51:23Z"}]},
		{"slot": 2, "samples": [{"v": "1.2", "t": "2025-01-15T16:51:23Z"}]},
		{"slot": 3, "samples": [{"v": 0.5, "t": 1}, {"v": null, "t": "2025-01-15T16:51:23Z"}]},
		{"slot": 4, "samples": [{"v": 0.7, "t": "x"}, 42]},
		"garbage",
		{"slot": 5.5, "samples": [{"v": 3}]},
		{"slot": 6, "samples": [{"v": 9.3, "t": "2025-01-15T16:51:23Z"}]}
	],
	"send_time": 1736959883.0,
	"wifi_str": -27
}`

func TestParse_MixedValues(t *testing.T) {
	p := mustParse(t, updateDataMixed)

	if p.SendTime != 1736959883 {
		t.Errorf("SendTime = %d, want 1736959883", p.SendTime)
	}
	if p.ErrorCode != 0 || p.WiFiStrength != -27 {
		t.Errorf("ErrorCode = %d, WiFiStrength = %d", p.ErrorCode, p.WiFiStrength)
	}
	if len(p.Sensors) != 5 {
		t.Fatalf("len(Sensors) = %d, want 5 (non-object entry and fractional slot dropped)", len(p.Sensors))
	}

	data := LatestValues(p)
	want := map[string]float64{
		"7c9ebd4b49d8_1": 1.5,
		"7c9ebd4b49d8_2": 1.2,
		"7c9ebd4b49d8_6": 9.3,
	}
	if len(data) != len(want) {
		t.Errorf("LatestValues() = %v, want %v", data, want)
	}
	for key, value := range want {
		if got, ok := data[key]; !ok || got != value {
			t.Errorf("%s = %v (present %v), want %v", key, got, ok, value)
		}
	}
	if _, ok := data["7c9ebd4b49d8_3"]; ok {
		t.Error("a null latest sample must not be published as 0")
	}

	// slot 3 (null) and slot 4 (broken latest entry)
	if got := p.InvalidSlots(); got != 2 {
		t.Errorf("InvalidSlots() = %d, want 2", got)
	}

	ha := HomeAssistantValues(p, 4, 0, false)
	if ha["analog_1"] != 1.2 {
		t.Errorf("analog_1 = %v, want 1.2 from a string value", ha["analog_1"])
	}
	if _, ok := ha["analog_2"]; ok {
		t.Error("analog_2 should be skipped for a null value")
	}
}

func TestParse_NonObject(t *testing.T) {
	for _, body := range []string{`[]`, `"text"`, `12`} {
		if _, err := Parse([]byte(body)); err == nil {
			t.Errorf("Parse(%s) expected error", body)
		}
	}
}

func TestSimpleMAC_Separators(t *testing.T) {
	p := &Payload{MAC: "7C:9E:BD-4B.49:D8"}
	if got := p.SimpleMAC(); got != "7c9ebd4b49d8" {
		t.Errorf("SimpleMAC() = %q, want 7c9ebd4b49d8", got)
	}

	var nilPayload *Payload
	if got := nilPayload.SimpleMAC(); got != "" {
		t.Errorf("nil SimpleMAC() = %q, want empty", got)
	}
	if got := nilPayload.SentAt(); !got.IsZero() {
		t.Errorf("nil SentAt() = %v, want zero time", got)
	}
}

func TestLatestValues(t *testing.T) {
	data := LatestValues(mustParse(t, updateData))

	if len(data) != 7 {
		t.Errorf("len(LatestValues) = %d, want 7", len(data))
	}
	if got := data["7c9ebd4b49d8_1"]; got != 1.5 {
		t.Errorf("7c9ebd4b49d8_1 = %v, want 1.5", got)
	}
	if got := data["7c9ebd4b49d8_5"]; got != 9.314800262 {
		t.Errorf("7c9ebd4b49d8_5 = %v, want 9.314800262", got)
	}
}

func TestLatestValues_UsesLastSample(t *testing.T) {
	p := &Payload{
		MAC: "AABBCCDDEEFF",
		Sensors: []SensorReport{
			{Slot: 1, Samples: []Sample{{Value: 0.1}, {Value: 0.2}, {Value: 0.3}}},
			{Slot: 2, Samples: nil},
		},
	}

	data := LatestValues(p)
	if got := data["aabbccddeeff_1"]; got != 0.3 {
		t.Errorf("aabbccddeeff_1 = %v, want 0.3", got)
	}
	if _, ok := data["aabbccddeeff_2"]; ok {
		t.Error("slot without samples should be skipped")
	}
}

func TestLatestValues_Empty(t *testing.T) {
	if got := LatestValues(nil); len(got) != 0 {
		t.Errorf("LatestValues(nil) = %v, want empty", got)
	}
	if got := LatestValues(&Payload{MAC: "7C9EBD4B49D8"}); len(got) != 0 {
		t.Errorf("LatestValues(no sensors) = %v, want empty", got)
	}
}

func TestHomeAssistantValues(t *testing.T) {
	data := HomeAssistantValues(mustParse(t, updateData), 4, 2, false)

	want := map[string]float64{
		"analog_0":   1.5,
		"analog_1":   1.45599997,
		"analog_2":   1.330000043,
		"analog_3":   0.075999998,
		"battery":    9.314800262,
		"actuator_0": 1,
		"actuator_1": 0,
	}
	if len(data) != len(want) {
		t.Errorf("len(HomeAssistantValues) = %d, want %d (%v)", len(data), len(want), data)
	}
	for key, value := range want {
		got, ok := data[key]
		if !ok {
			t.Errorf("missing key %q", key)
			continue
		}
		if got != value {
			t.Errorf("%s = %v, want %v", key, got, value)
		}
	}
}

func TestHomeAssistantValues_NoActuatorsReported(t *testing.T) {
	data := HomeAssistantValues(mustParse(t, updateDataNoActuators), 4, 1, false)

	if got := data["analog_0"]; got != 1.518 {
		t.Errorf("analog_0 = %v, want 1.518", got)
	}
	if got := data["battery"]; got != 9.3588 {
		t.Errorf("battery = %v, want 9.3588", got)
	}
	if _, ok := data["actuator_0"]; ok {
		t.Error("actuator_0 should be absent when not reported")
	}
}

func TestHomeAssistantValues_AllActuators(t *testing.T) {
	data := HomeAssistantValues(mustParse(t, updateDataAllActuators), 0, 4, true)

	if _, ok := data["battery"]; ok {
		t.Error("battery should be absent in all-actuator mode")
	}
	if _, ok := data["analog_0"]; ok {
		t.Error("analog_0 should be absent in all-actuator mode")
	}
	checks := map[string]float64{"actuator_0": 1, "actuator_1": 0, "actuator_2": 1, "actuator_3": 0}
	for key, value := range checks {
		if got, ok := data[key]; !ok || got != value {
			t.Errorf("%s = %v (present %v), want %v", key, got, ok, value)
		}
	}
	if _, ok := data["actuator_4"]; ok {
		t.Error("actuator_4 should be absent")
	}
}

func TestHomeAssistantValues_IgnoresSlotsBeyondActuators(t *testing.T) {
	p := mustParse(t, updateData)
	data := HomeAssistantValues(p, 4, 1, false)

	if _, ok := data["actuator_1"]; ok {
		t.Error("slot beyond configured actuators should be ignored")
	}
	if got := data["actuator_0"]; got != 1 {
		t.Errorf("actuator_0 = %v, want 1", got)
	}
}

func TestHomeAssistantValues_BadData(t *testing.T) {
	tests := []struct {
		name    string
		payload *Payload
	}{
		{"nil payload", nil},
		{"empty payload", &Payload{}},
		{"no sensors", &Payload{MAC: "7C9EBD4B49D8", Sensors: []SensorReport{}}},
		{"no samples", &Payload{MAC: "7C9EBD4B49D8", Sensors: []SensorReport{{Slot: 1}}}},
		{"zero slot", &Payload{Sensors: []SensorReport{{Slot: 0, Samples: []Sample{{Value: 1}}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := HomeAssistantValues(tt.payload, 4, 2, false)
			if len(data) != 0 {
				t.Errorf("HomeAssistantValues() = %v, want empty", data)
			}
			if _, ok := data[BatteryKey]; ok {
				t.Error("battery should be absent")
			}
		})
	}
}

func TestKeyIndex(t *testing.T) {
	tests := []struct {
		key       string
		analog    bool
		wantIndex int
		wantOK    bool
	}{
		{"analog_0", true, 0, true},
		{"analog_12", true, 12, true},
		{"analog_x", true, 0, false},
		{"battery", true, 0, false},
		{"actuator_3", false, 3, true},
		{"actuator_-1", false, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			var got int
			var ok bool
			if tt.analog {
				got, ok = AnalogIndex(tt.key)
			} else {
				got, ok = ActuatorIndex(tt.key)
			}
			if got != tt.wantIndex || ok != tt.wantOK {
				t.Errorf("index(%q) = %d, %v; want %d, %v", tt.key, got, ok, tt.wantIndex, tt.wantOK)
			}
		})
	}
}
