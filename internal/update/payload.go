// Package update parses and normalizes the telemetry payloads a VegeHub pushes to
// its configured upstream endpoint.
//
// A hub POSTs one payload per reporting interval (or on demand after
// /api/update/send). Each sensor slot carries a time-ordered list of samples; the
// normalizers here reduce that to the latest value per channel.
package update

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vegetronix/vegehub/internal/calibration"
)

// Payload is the push body sent by the hub.
//
// Decoding is lenient: fields of the wrong type are zeroed and malformed sensor
// entries are dropped, so one bad reading never discards the rest of a push.
type Payload struct {
	APIKey       string         `json:"api_key"`
	MAC          string         `json:"mac"`
	ErrorCode    int            `json:"error_code"`
	Sensors      []SensorReport `json:"sensors"`
	SendTime     int64          `json:"send_time"`
	WiFiStrength int            `json:"wifi_str"`
}

// SensorReport holds the samples collected for one 1-based slot.
type SensorReport struct {
	Slot    int      `json:"slot"`
	Samples []Sample `json:"samples"`
}

// Sample is a single reading. Samples are ordered oldest first.
// Value is kept as sent: normally a number, occasionally a string or null.
type Sample struct {
	Value any    `json:"v"`
	Time  string `json:"t"`
}

// Float coerces the sample value. Null, non-numeric and non-finite values are invalid.
func (s Sample) Float() (float64, bool) {
	return calibration.ToFloat(s.Value)
}

// Parse decodes a push payload. Only a body that is not a JSON object fails.
func Parse(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse update payload: %w", err)
	}
	return &p, nil
}

// UnmarshalJSON decodes a payload without failing on mistyped fields
func (p *Payload) UnmarshalJSON(data []byte) error {
	var raw struct {
		APIKey       any             `json:"api_key"`
		MAC          any             `json:"mac"`
		ErrorCode    any             `json:"error_code"`
		Sensors      json.RawMessage `json:"sensors"`
		SendTime     any             `json:"send_time"`
		WiFiStrength any             `json:"wifi_str"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Payload{
		APIKey:       stringOf(raw.APIKey),
		MAC:          stringOf(raw.MAC),
		ErrorCode:    int(integerOf(raw.ErrorCode)),
		SendTime:     integerOf(raw.SendTime),
		WiFiStrength: int(integerOf(raw.WiFiStrength)),
	}

	var entries []json.RawMessage
	if json.Unmarshal(raw.Sensors, &entries) != nil {
		return nil
	}
	for _, entry := range entries {
		var report SensorReport
		if json.Unmarshal(entry, &report) != nil {
			continue
		}
		p.Sensors = append(p.Sensors, report)
	}
	return nil
}

// UnmarshalJSON decodes a report. A missing or non-integer slot is an error,
// which drops the report from its payload.
func (r *SensorReport) UnmarshalJSON(data []byte) error {
	var raw struct {
		Slot    any             `json:"slot"`
		Samples json.RawMessage `json:"samples"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	slot, ok := calibration.ToFloat(raw.Slot)
	if !ok || slot != math.Trunc(slot) {
		return fmt.Errorf("invalid slot %v", raw.Slot)
	}
	*r = SensorReport{Slot: int(slot)}

	var entries []json.RawMessage
	if json.Unmarshal(raw.Samples, &entries) != nil {
		return nil
	}
	for _, entry := range entries {
		var sample Sample
		if json.Unmarshal(entry, &sample) != nil {
			// keep the position so a broken latest sample is not replaced by an older one
			sample = Sample{}
		}
		r.Samples = append(r.Samples, sample)
	}
	return nil
}

// UnmarshalJSON decodes a sample, accepting any JSON type for v and t
func (s *Sample) UnmarshalJSON(data []byte) error {
	var raw struct {
		V any `json:"v"`
		T any `json:"t"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Sample{Value: raw.V, Time: stringOf(raw.T)}
	return nil
}

func stringOf(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func integerOf(v any) int64 {
	f, ok := calibration.ToFloat(v)
	if !ok {
		return 0
	}
	return int64(f)
}

// SimpleMAC returns the payload MAC lowercased with separators removed.
func (p *Payload) SimpleMAC() string {
	if p == nil {
		return ""
	}
	r := strings.NewReplacer(":", "", "-", "", ".", "")
	return strings.ToLower(r.Replace(p.MAC))
}

// SentAt returns the hub-reported send time, or the zero time if absent.
func (p *Payload) SentAt() time.Time {
	if p == nil || p.SendTime == 0 {
		return time.Time{}
	}
	return time.Unix(p.SendTime, 0).UTC()
}

// Latest returns the last sample of the report, if any.
func (r SensorReport) Latest() (Sample, bool) {
	if len(r.Samples) == 0 {
		return Sample{}, false
	}
	return r.Samples[len(r.Samples)-1], true
}

// LatestValue returns the numeric value of the last sample. It is false when
// there are no samples or the last one is not a finite number.
func (r SensorReport) LatestValue() (float64, bool) {
	sample, ok := r.Latest()
	if !ok {
		return 0, false
	}
	return sample.Float()
}

// InvalidSlots counts slots whose latest sample exists but is not a number.
// Those slots are left out of LatestValues and HomeAssistantValues.
func (p *Payload) InvalidSlots() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, sensor := range p.Sensors {
		if _, ok := sensor.Latest(); !ok || sensor.Slot < 1 {
			continue
		}
		if _, ok := sensor.LatestValue(); !ok {
			n++
		}
	}
	return n
}

// LatestValues maps "{mac}_{slot}" to the last sampled value of every slot.
// The MAC is lowercased exactly as reported, without stripping separators.
func LatestValues(p *Payload) map[string]float64 {
	out := make(map[string]float64)
	if p == nil {
		return out
	}

	mac := strings.ToLower(p.MAC)
	for _, sensor := range p.Sensors {
		value, ok := sensor.LatestValue()
		if !ok {
			continue
		}
		out[mac+"_"+strconv.Itoa(sensor.Slot)] = value
	}
	return out
}

// Home Assistant channel key prefixes.
const (
	AnalogPrefix   = "analog_"
	ActuatorPrefix = "actuator_"
	BatteryKey     = "battery"
)

// HomeAssistantValues splits the payload into sensor, battery and actuator keys.
//
// Slots 1..numSensors become analog_0..analog_{numSensors-1}. The slot right after
// the analog channels is the hub's battery channel. The next numActuators slots
// become actuator_0..actuator_{numActuators-1}; slots beyond that are ignored.
// When allActuators is set every slot is an actuator (actuator_{slot-1}).
// Slots without a numeric latest sample are skipped, so an empty map means there was no usable data.
func HomeAssistantValues(p *Payload, numSensors, numActuators int, allActuators bool) map[string]float64 {
	out := make(map[string]float64)
	if p == nil {
		return out
	}

	batterySlot := numSensors + 1
	for _, sensor := range p.Sensors {
		value, ok := sensor.LatestValue()
		if !ok || sensor.Slot < 1 {
			continue
		}
		slot := sensor.Slot

		switch {
		case allActuators:
			out[ActuatorPrefix+strconv.Itoa(slot-1)] = value
		case slot <= numSensors:
			out[AnalogPrefix+strconv.Itoa(slot-1)] = value
		case slot == batterySlot:
			out[BatteryKey] = value
		case slot <= batterySlot+numActuators:
			out[ActuatorPrefix+strconv.Itoa(slot-batterySlot-1)] = value
		}
	}
	return out
}

// AnalogIndex reports the zero-based channel index encoded in an analog_N key.
func AnalogIndex(key string) (int, bool) {
	return keyIndex(key, AnalogPrefix)
}

// ActuatorIndex reports the zero-based actuator index encoded in an actuator_N key.
func ActuatorIndex(key string) (int, bool) {
	return keyIndex(key, ActuatorPrefix)
}

func keyIndex(key, prefix string) (int, bool) {
	if !strings.HasPrefix(key, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(key, prefix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
