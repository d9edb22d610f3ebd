package vegehub

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const (
	testAPIKey = "1234567890ABCD"
	testServer = "http://example.com"
	testMAC    = "AA:BB:CC:DD:EE:FF"
	testSimple = "aabbccddeeff"
)

const hubInfoPayload = `{
	"hub": {
		"first_boot": false,
		"page_updated": false,
		"error_message": 0,
		"num_channels": 4,
		"num_actuators": 2,
		"version": "3.4.5",
		"agenda": 1,
		"batt_v": 9.0,
		"num_vsens": 0,
		"is_ac": 0,
		"has_sd": 0,
		"on_ap": 0
	},
	"wifi": {
		"ssid": "YourWiFiName",
		"strength": "-29",
		"chan": "4",
		"ip": "192.168.0.100",
		"status": "3",
		"mac_addr": "AA:BB:CC:DD:EE:FF"
	}
}`

const actuatorInfoPayload = `{
	"actuators": [{
		"slot": 0,
		"state": 0,
		"last_run": 1730911079,
		"next_window_start": 1730916000,
		"next_window_end": 1730916600,
		"cur_ma": 0,
		"typ_ma": 0,
		"error": 0
	}],
	"error": "success"
}`

// reply is one scripted answer of the fake hub
type reply struct {
	status int
	body   string
}

func replyJSON(body string) reply { return reply{status: http.StatusOK, body: body} }

func replyStatus(status int) reply { return reply{status: status} }

// fakeHub serves scripted answers per "METHOD path". Answers are consumed in
// order and the last one repeats.
type fakeHub struct {
	mu      sync.Mutex
	scripts map[string][]reply
	calls   map[string]int
	bodies  map[string][]string
	server  *httptest.Server
}

func newFakeHub(t *testing.T) *fakeHub {
	t.Helper()
	f := &fakeHub{
		scripts: make(map[string][]reply),
		calls:   make(map[string]int),
		bodies:  make(map[string][]string),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeHub) on(method, path string, replies ...reply) *fakeHub {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[method+" "+path] = append(f.scripts[method+" "+path], replies...)
	return f
}

func (f *fakeHub) serve(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.calls[key]++
	f.bodies[key] = append(f.bodies[key], string(body))
	script := f.scripts[key]
	var next reply
	switch len(script) {
	case 0:
		next = replyStatus(http.StatusNotFound)
	case 1:
		next = script[0]
	default:
		next = script[0]
		f.scripts[key] = script[1:]
	}
	f.mu.Unlock()

	if next.body != "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(next.status)
	_, _ = w.Write([]byte(next.body))
}

func (f *fakeHub) callCount(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method+" "+path]
}

func (f *fakeHub) lastBody(t *testing.T, method, path string) map[string]any {
	t.Helper()
	f.mu.Lock()
	bodies := f.bodies[method+" "+path]
	f.mu.Unlock()

	if len(bodies) == 0 {
		t.Fatalf("no %s %s request recorded", method, path)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(bodies[len(bodies)-1]), &out); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	return out
}

func (f *fakeHub) address() string {
	return strings.TrimPrefix(f.server.URL, "http://")
}

// hub returns a Hub talking to the fake with backoff disabled
func (f *fakeHub) hub() *Hub {
	h := NewHub(f.address(), testSimple, f.server.Client())
	h.RetryDelay = 0
	h.MaxRetryDelay = 0
	return h
}

// statefulConfigHub simulates a hub whose config/set persists for config/get
type statefulConfigHub struct {
	mu       sync.Mutex
	config   string
	setCalls int
	server   *httptest.Server
}

func newStatefulConfigHub(t *testing.T, initial string) *statefulConfigHub {
	t.Helper()
	s := &statefulConfigHub{config: initial}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		switch r.URL.Path {
		case PathConfigGet:
			_, _ = w.Write([]byte(s.config))
		case PathConfigSet:
			body, _ := io.ReadAll(r.Body)
			s.config = string(body)
			s.setCalls++
		case PathInfoGet:
			_, _ = w.Write([]byte(hubInfoPayload))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *statefulConfigHub) hub() *Hub {
	h := NewHub(strings.TrimPrefix(s.server.URL, "http://"), testSimple, s.server.Client())
	h.RetryDelay = 0
	h.MaxRetryDelay = 0
	return h
}

func (s *statefulConfigHub) current(t *testing.T) map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	var out map[string]any
	if err := json.Unmarshal([]byte(s.config), &out); err != nil {
		t.Fatalf("stored config is not JSON: %v", err)
	}
	return out
}

func decodeBlob(t *testing.T, data string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		t.Fatalf("invalid test JSON: %v", err)
	}
	return out
}
