package vegehub

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

// ActuatorState is one entry of /api/actuators/status
type ActuatorState struct {
	Slot            int     `json:"slot"`
	State           int     `json:"state"`
	LastRun         int64   `json:"last_run"`
	NextWindowStart int64   `json:"next_window_start"`
	NextWindowEnd   int64   `json:"next_window_end"`
	CurrentMA       float64 `json:"cur_ma"`
	TypicalMA       float64 `json:"typ_ma"`
	Error           int     `json:"error"`
}

// On reports whether the actuator is energized
func (a ActuatorState) On() bool {
	return a.State == 1
}

type actuatorCommand struct {
	Slot     int `json:"slot"`
	State    int `json:"state"`
	Duration int `json:"duration"`
}

// SetActuator switches the actuator in slot to state (0 or 1) for durationSeconds.
// Invalid arguments are rejected before any request is made.
func (h *Hub) SetActuator(ctx context.Context, state, slot, durationSeconds, retries int) (bool, error) {
	if err := ValidateActuatorCommand(state, slot, durationSeconds); err != nil {
		return false, err
	}

	cmd := actuatorCommand{Slot: slot, State: state, Duration: durationSeconds}
	if _, err := h.request(ctx, http.MethodPost, PathActuatorsSet, cmd, retries); err != nil {
		return false, err
	}
	return true, nil
}

// ActuatorStates reads the status of every actuator.
// A successful answer without an "actuators" array is a data-shape error and is
// not retried.
func (h *Hub) ActuatorStates(ctx context.Context, retries int) ([]ActuatorState, error) {
	data, err := h.request(ctx, http.MethodGet, PathActuatorsStatus, nil, retries)
	if err != nil {
		return nil, err
	}
	return parseActuatorStates(data)
}

func parseActuatorStates(data []byte) ([]ActuatorState, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewDataShapeError("actuator status response is empty")
	}

	var resp struct {
		Actuators json.RawMessage `json:"actuators"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, NewParseError("failed to parse actuator status response", err)
	}

	if len(resp.Actuators) == 0 || bytes.Equal(resp.Actuators, []byte("null")) {
		return nil, NewDataShapeError("actuator status response has no actuators key")
	}

	var states []ActuatorState
	if err := json.Unmarshal(resp.Actuators, &states); err != nil {
		devErr := NewDataShapeError("actuators is not a list of actuator objects")
		devErr.Err = err
		return nil, devErr
	}
	return states, nil
}

// RequestUpdate asks the hub to push a telemetry update to its endpoints now
func (h *Hub) RequestUpdate(ctx context.Context, retries int) error {
	_, err := h.request(ctx, http.MethodGet, PathUpdateSend, nil, retries)
	return err
}
