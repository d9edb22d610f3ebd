package vegehub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vegetronix/vegehub/internal/logging"
	"github.com/vegetronix/vegehub/internal/version"
)

const (
	// DefaultTimeout is the HTTP timeout of a hub-owned client
	DefaultTimeout = 10 * time.Second

	// DefaultRetries is the attempt budget used when callers have no preference
	DefaultRetries = 3

	// DefaultRetryDelay is the delay before the second attempt
	DefaultRetryDelay = 100 * time.Millisecond

	// DefaultMaxRetryDelay caps exponential backoff; keeps retries sub-second on a LAN
	DefaultMaxRetryDelay = 800 * time.Millisecond
)

// Hub API paths, relative to BaseURL.
const (
	PathInfoGet         = "/api/info/get"
	PathConfigGet       = "/api/config/get"
	PathConfigSet       = "/api/config/set"
	PathUpdateSend      = "/api/update/send"
	PathActuatorsSet    = "/api/actuators/set"
	PathActuatorsStatus = "/api/actuators/status"
)

// HTTPDoer is the transport a Hub sends requests through. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Hub is a handle to one VegeHub on the local network.
//
// A Hub caches what it has read from the device (info and MAC address). It does
// no internal locking: callers issuing overlapping calls against the same Hub
// must serialize them. Separate Hubs are independent and may share a transport.
type Hub struct {
	// Address is the hub's host, optionally with ":port" (port 80 is implied)
	Address string

	// RetryDelay is the delay before the second attempt of a request
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration

	uniqueID string
	doer     HTTPDoer

	// owned is set when the hub created its own transport and must release it
	owned *http.Client

	info       *DeviceInfo
	macAddress string
	simpleMAC  string
}

// NewHub creates a handle for the hub at address.
// uniqueID is an optional caller-chosen stable identifier (typically the simple MAC).
// If doer is nil the hub creates its own *http.Client, released by Close; an
// injected doer stays owned by the caller.
func NewHub(address, uniqueID string, doer HTTPDoer) *Hub {
	h := &Hub{
		Address:       address,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
		uniqueID:      uniqueID,
		doer:          doer,
	}
	if doer == nil {
		h.owned = &http.Client{Timeout: DefaultTimeout}
		h.doer = h.owned
	}
	return h
}

// Close releases the idle connections of a hub-owned transport.
// It is a no-op for injected transports.
func (h *Hub) Close() {
	if h.owned != nil {
		h.owned.CloseIdleConnections()
	}
}

// BaseURL returns the root URL of the hub's HTTP API
func (h *Hub) BaseURL() string {
	return "http://" + h.Address
}

// UniqueID returns the identifier supplied at construction
func (h *Hub) UniqueID() string {
	return h.uniqueID
}

// request performs method path against the hub, retrying transport failures and
// non-2xx answers. It makes max(retries, 1) attempts and returns the raw body of
// the first successful one; after the last failure it returns a *ConnectionError.
func (h *Hub) request(ctx context.Context, method, path string, body any, retries int) ([]byte, error) {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, NewValidationError(fmt.Sprintf("failed to encode request body: %v", err))
		}
		payload = encoded
	}

	attempts := max(retries, 1)
	currentDelay := h.RetryDelay
	var lastErr *DeviceError

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, currentDelay); err != nil {
				return nil, err
			}

			currentDelay *= 2
			if currentDelay > h.MaxRetryDelay {
				currentDelay = h.MaxRetryDelay
			}
		}

		data, devErr := h.attempt(ctx, method, path, payload, attempt+1)
		if devErr == nil {
			return data, nil
		}

		// An abandoned attempt is not a device failure
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = devErr
		if !devErr.Retryable {
			return nil, devErr
		}

		logging.Warn("Hub request attempt failed",
			zap.String("device", h.Address),
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Int("attempts", attempts),
			zap.Error(devErr),
		)
	}

	logging.Error("Hub request failed",
		zap.String("device", h.Address),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("attempts", attempts),
	)

	return nil, &ConnectionError{
		Device:   h.Address,
		Method:   method,
		Path:     path,
		Attempts: attempts,
		Last:     lastErr,
	}
}

// attempt performs a single request
func (h *Hub) attempt(ctx context.Context, method, path string, payload []byte, n int) ([]byte, *DeviceError) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.BaseURL()+path, reader)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("failed to create %s request: %v", method, err))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent("vegehub"))

	logging.LogDeviceRequest(h.Address, method, path, n)
	start := time.Now()

	resp, err := h.doer.Do(req)
	if err != nil {
		devErr := ClassifyNetworkError(err, h.Address)
		devErr.Message = fmt.Sprintf("%s %s: %s", method, path, devErr.Message)
		return nil, devErr
	}
	defer func() { _ = resp.Body.Close() }()

	logging.LogDeviceResponse(h.Address, method, path, resp.StatusCode, time.Since(start))

	data, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		devErr := NewHTTPError(resp.StatusCode, fmt.Sprintf("%s %s returned status %d", method, path, resp.StatusCode))
		devErr.DeviceIP = h.Address
		return nil, devErr
	}

	if readErr != nil {
		devErr := NewNetworkError("failed to read response body", readErr)
		devErr.DeviceIP = h.Address
		return nil, devErr
	}

	return data, nil
}

// requestObject performs a request whose answer is a JSON object.
// An empty body or literal null yields a nil map and no error.
func (h *Hub) requestObject(ctx context.Context, method, path string, body any, retries int) (map[string]any, error) {
	data, err := h.request(ctx, method, path, body, retries)
	if err != nil {
		return nil, err
	}
	return decodeObject(path, data)
}

func decodeObject(path string, data []byte) (map[string]any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		logging.LogRawBytes("Unparsable hub response", data)
		return nil, NewParseError(fmt.Sprintf("failed to parse %s response", path), err)
	}
	return out, nil
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
