package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vegetronix/vegehub/internal/config"
)

type fakePublisher struct {
	mu     sync.Mutex
	states []*DeviceState
	err    error
	closed bool
}

func (p *fakePublisher) Publish(_ context.Context, state *DeviceState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.states = append(p.states, state)
	return nil
}

func (p *fakePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func newTestServer(t *testing.T, cfg Config, pub Publisher) (*Server, *httptest.Server) {
	t.Helper()
	reg := config.NewRegistry()
	*reg.EnsureDevice("aabbccddeeff") = *testDevice()
	keyed := testDevice()
	keyed.APIKey = testKey
	*reg.EnsureDevice("0a0b0c0d0e0f") = *keyed

	s := New(cfg, reg, pub)
	s.now = func() time.Time { return testNow }
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

const testKey = "5f0c9e2a7d4b4e1d9a3c6b8e2f1a7c40"

const validPush = `{"api_key": "AABBCCDDEEFF", "mac": "AA:BB:CC:DD:EE:FF", "error_code": 0, "send_time": 1746100000,
	"sensors": [{"slot": 1, "samples": [{"v": 2.2, "t": "2026-05-01T11:59:00"}]},
	            {"slot": 3, "samples": [{"v": 3.9, "t": "2026-05-01T11:59:00"}]}]}`

func post(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_Update(t *testing.T) {
	pub := &fakePublisher{}
	s, ts := newTestServer(t, Config{}, pub)

	resp := post(t, ts, config.DefaultUpdatePath, validPush)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(pub.states) != 1 {
		t.Fatalf("published %d states, want 1", len(pub.states))
	}
	got := pub.states[0]
	if got.Name != "greenhouse" || got.Readings["analog_0"].Value != 50 || got.Readings["battery"].Value != 3.9 {
		t.Errorf("state = %+v", got)
	}

	if _, ok := s.State("AA-BB-CC-DD-EE-FF"); !ok {
		t.Error("State() should find the hub by any MAC form")
	}
}

func TestServer_UpdateRejections(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		body       string
		pubErr     error
		wantStatus int
	}{
		{"bad json", Config{}, `{"mac": `, nil, http.StatusBadRequest},
		{"missing mac", Config{}, `{"api_key": "x"}`, nil, http.StatusBadRequest},
		{"wrong key", Config{}, strings.Replace(validPush, "AABBCCDDEEFF", "nope", 1), nil, http.StatusUnauthorized},
		{"unknown hub", Config{}, `{"api_key": "112233445566", "mac": "11:22:33:44:55:66"}`, nil, http.StatusNotFound},
		{"mac instead of stored key", Config{}, `{"api_key": "0a0b0c0d0e0f", "mac": "0A:0B:0C:0D:0E:0F"}`, nil, http.StatusUnauthorized},
		{"another hub's key", Config{}, strings.Replace(validPush, "AABBCCDDEEFF", testKey, 1), nil, http.StatusUnauthorized},
		{"publish failure", Config{}, validPush, errors.New("broker down"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{err: tt.pubErr}
			s, ts := newTestServer(t, tt.cfg, pub)

			resp := post(t, ts, config.DefaultUpdatePath, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if len(pub.states) != 0 {
				t.Error("rejected payloads must not be published")
			}
			if _, ok := s.State("aabbccddeeff"); ok {
				t.Error("rejected payloads must not be stored")
			}
		})
	}
}

func TestServer_UpdateKeepsGoodReadings(t *testing.T) {
	pub := &fakePublisher{}
	_, ts := newTestServer(t, Config{}, pub)

	resp := post(t, ts, config.DefaultUpdatePath, `{"api_key": "aabbccddeeff", "mac": "AA:BB:CC:DD:EE:FF",
		"sensors": [{"slot": 1, "samples": [{"v": "2.2", "t": "x"}]},
		            {"slot": 2, "samples": [{"v": null, "t": "x"}]},
		            {"slot": 3, "samples": [{"v": 3.9, "t": "x"}]}]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(pub.states) != 1 {
		t.Fatalf("published %d states, want 1", len(pub.states))
	}

	got := pub.states[0].Readings
	if got["analog_0"].Value != 50 {
		t.Errorf("analog_0 = %v, want 50 from a string voltage", got["analog_0"])
	}
	if _, ok := got["analog_1"]; ok {
		t.Error("a null reading must not be published")
	}
	if got["battery"].Value != 3.9 {
		t.Errorf("battery = %v, want 3.9", got["battery"])
	}

	metrics, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer metrics.Body.Close()
	body, _ := io.ReadAll(metrics.Body)
	if !strings.Contains(string(body), "vegehub_bridge_readings_dropped_total 1") {
		t.Error("the null reading should be counted as dropped")
	}
}

func TestServer_UpdateWithStoredKey(t *testing.T) {
	pub := &fakePublisher{}
	s, ts := newTestServer(t, Config{}, pub)

	resp := post(t, ts, config.DefaultUpdatePath, `{"api_key": "`+testKey+`", "mac": "0A:0B:0C:0D:0E:0F",
		"sensors": [{"slot": 3, "samples": [{"v": 4.1, "t": "x"}]}]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	st, ok := s.State("0a0b0c0d0e0f")
	if !ok || st.Readings["battery"].Value != 4.1 {
		t.Errorf("state = %+v, %v", st, ok)
	}
}

func TestServer_AcceptUnknown(t *testing.T) {
	pub := &fakePublisher{}
	_, ts := newTestServer(t, Config{AcceptUnknown: true, UpdatePath: "hook"}, pub)

	resp := post(t, ts, "/hook", `{"api_key": "112233445566", "mac": "11:22:33:44:55:66",
		"sensors": [{"slot": 1, "samples": [{"v": 1.25, "t": "x"}]}]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(pub.states) != 1 || len(pub.states[0].Readings) != 0 || pub.states[0].SlotValues()["1"] != 1.25 {
		t.Errorf("unknown hub should publish raw values only, got %+v", pub.states)
	}
}

func TestServer_Devices(t *testing.T) {
	_, ts := newTestServer(t, Config{}, &fakePublisher{})
	post(t, ts, config.DefaultUpdatePath, validPush)

	resp, err := http.Get(ts.URL + "/devices")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var list []DeviceState
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode /devices: %v", err)
	}
	if len(list) != 1 || list[0].MAC != "aabbccddeeff" {
		t.Errorf("/devices = %+v", list)
	}

	one, err := http.Get(ts.URL + "/devices/AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatal(err)
	}
	one.Body.Close()
	if one.StatusCode != http.StatusOK {
		t.Errorf("/devices/{mac} status = %d", one.StatusCode)
	}

	missing, err := http.Get(ts.URL + "/devices/001122334455")
	if err != nil {
		t.Fatal(err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want 404", missing.StatusCode)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(t, Config{}, &fakePublisher{})
	post(t, ts, config.DefaultUpdatePath, validPush)
	post(t, ts, config.DefaultUpdatePath, `not json`)

	health, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d", health.StatusCode)
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		"vegehub_bridge_payloads_received_total 2",
		`vegehub_bridge_payloads_rejected_total{reason="bad_payload"} 1`,
		"vegehub_bridge_states_published_total 1",
		`vegehub_bridge_last_update_timestamp_seconds{mac="aabbccddeeff"}`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}

func TestServer_ServeStopsOnContext(t *testing.T) {
	pub := &fakePublisher{}
	s := New(Config{}, config.NewRegistry(), pub)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, listener) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
	if !pub.closed {
		t.Error("publisher should be closed on shutdown")
	}
}

func TestKeyMatches(t *testing.T) {
	keyed := &config.Device{APIKey: testKey}

	tests := []struct {
		name   string
		key    string
		device *config.Device
		want   bool
	}{
		{"simple mac", "aabbccddeeff", nil, true},
		{"upper mac", "AABBCCDDEEFF", &config.Device{}, true},
		{"colon mac", "AA:BB:CC:DD:EE:FF", nil, true},
		{"empty", "", nil, false},
		{"other mac", "aabbccddeef0", nil, false},
		{"stored key", testKey, keyed, true},
		{"mac with stored key", "aabbccddeeff", keyed, false},
		{"stored key upper case", strings.ToUpper(testKey), keyed, false},
		{"empty with stored key", "", keyed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keyMatches(tt.key, "aabbccddeeff", tt.device); got != tt.want {
				t.Errorf("keyMatches(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}
