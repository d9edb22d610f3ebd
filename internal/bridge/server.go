package bridge

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vegetronix/vegehub/internal/config"
	"github.com/vegetronix/vegehub/internal/logging"
	"github.com/vegetronix/vegehub/internal/update"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Config holds the bridge server configuration
type Config struct {
	Listen        string
	UpdatePath    string
	AcceptUnknown bool // publish raw values for hubs missing from the registry
}

// Devices resolves registered hubs by simple MAC
type Devices interface {
	GetDevice(mac string) *config.Device
}

// Server accepts hub pushes and forwards them to a Publisher
type Server struct {
	config    Config
	devices   Devices
	publisher Publisher
	metrics   *metrics
	now       func() time.Time

	mu     sync.RWMutex
	states map[string]*DeviceState
}

// New creates a Server. Empty config fields take the registry defaults.
func New(cfg Config, devices Devices, publisher Publisher) *Server {
	if cfg.Listen == "" {
		cfg.Listen = config.DefaultListen
	}
	if cfg.UpdatePath == "" {
		cfg.UpdatePath = config.DefaultUpdatePath
	}
	if !strings.HasPrefix(cfg.UpdatePath, "/") {
		cfg.UpdatePath = "/" + cfg.UpdatePath
	}
	if publisher == nil {
		publisher = LogPublisher{}
	}

	return &Server{
		config:    cfg,
		devices:   devices,
		publisher: publisher,
		metrics:   newMetrics(),
		now:       time.Now,
		states:    make(map[string]*DeviceState),
	}
}

// Handler returns the HTTP routes of the bridge
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post(s.config.UpdatePath, s.handleUpdate)
	r.Get("/devices", s.handleDevices)
	r.Get("/devices/{mac}", s.handleDevice)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	return r
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts down
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info("Bridge listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("update_path", s.config.UpdatePath),
		zap.Bool("accept_unknown", s.config.AcceptUnknown),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping bridge...")
	case <-ctx.Done():
		logging.Info("Context done, stopping bridge...")
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down bridge: %w", err)
	}
	if err := s.publisher.Close(); err != nil {
		logging.Warn("Publisher close failed", zap.Error(err))
	}
	logging.Info("Bridge stopped")
	return nil
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.metrics.received.Inc()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.reject(w, http.StatusBadRequest, reasonBadPayload, "failed to read body")
		return
	}

	p, err := update.Parse(body)
	if err != nil {
		logging.LogPayload(r.RemoteAddr, "", body)
		s.reject(w, http.StatusBadRequest, reasonBadPayload, "invalid JSON")
		return
	}
	mac := p.SimpleMAC()
	logging.LogPayload(r.RemoteAddr, mac, body)
	if mac == "" {
		s.reject(w, http.StatusBadRequest, reasonBadPayload, "mac is required")
		return
	}

	var device *config.Device
	if s.devices != nil {
		device = s.devices.GetDevice(mac)
	}
	if !keyMatches(p.APIKey, mac, device) {
		logging.Warn("Rejected payload with wrong api_key", zap.String("mac", mac), zap.String("remote_addr", r.RemoteAddr))
		s.reject(w, http.StatusUnauthorized, reasonUnauthorized, "api_key does not match device")
		return
	}
	if device == nil && !s.config.AcceptUnknown {
		logging.Warn("Rejected payload from unregistered hub", zap.String("mac", mac))
		s.reject(w, http.StatusNotFound, reasonUnknownDevice, "device is not registered")
		return
	}

	state, dropped := BuildState(p, device, s.now())
	if dropped > 0 {
		s.metrics.dropped.Add(float64(dropped))
		logging.Debug("Dropped invalid readings", zap.String("mac", mac), zap.Int("count", dropped))
	}

	if err := s.publisher.Publish(r.Context(), state); err != nil {
		logging.Error("Publish failed", zap.String("mac", mac), zap.Error(err))
		s.reject(w, http.StatusBadGateway, reasonPublish, "failed to publish state")
		return
	}

	s.mu.Lock()
	s.states[mac] = state
	s.mu.Unlock()

	s.metrics.published.Inc()
	s.metrics.lastUpdate.WithLabelValues(mac).Set(float64(state.ReceivedAt.Unix()))
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "readings": len(state.Readings)})
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	out := make([]*DeviceState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].MAC < out[j].MAC })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	mac := simplifyMAC(chi.URLParam(r, "mac"))

	s.mu.RLock()
	st, ok := s.states[mac]
	s.mu.RUnlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no state for " + mac})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// State returns the last accepted state for mac
func (s *Server) State(mac string) (*DeviceState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[simplifyMAC(mac)]
	return st, ok
}

func (s *Server) reject(w http.ResponseWriter, status int, reason, msg string) {
	s.metrics.rejected.WithLabelValues(reason).Inc()
	writeJSON(w, status, map[string]string{"error": msg})
}

// keyMatches checks the api_key a hub sent against the key stored at
// registration. Hubs without a stored key must send their simple MAC, which
// only identifies the hub.
func keyMatches(apiKey, mac string, device *config.Device) bool {
	if apiKey == "" {
		return false
	}
	if device != nil && device.APIKey != "" {
		return subtle.ConstantTimeCompare([]byte(apiKey), []byte(device.APIKey)) == 1
	}
	return simplifyMAC(apiKey) == mac
}

func simplifyMAC(s string) string {
	return (&update.Payload{MAC: s}).SimpleMAC()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}
