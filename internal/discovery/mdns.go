package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/vegetronix/vegehub/internal/logging"
)

const (
	// ServiceType is the mDNS service type VegeHubs advertise
	ServiceType = "_vege._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for device discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is the default HTTP port of a hub
	DefaultPort = 80
)

// Scanner handles mDNS device discovery
type Scanner struct {
	// Timeout is the maximum time to wait for device discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForDevices discovers all hubs on the local network
func (s *Scanner) ScanForDevices() ([]*Device, error) {
	return s.ScanForDevicesWithContext(context.Background())
}

// ScanForDevicesWithContext discovers hubs until the scanner timeout or ctx ends.
// Each hub is reported once, in the order it first answered.
func (s *Scanner) ScanForDevicesWithContext(ctx context.Context) ([]*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	collector := newCollector()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			collector.add(parseServiceEntry(entry))
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// zeroconf closes entries once the browse context ends
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	devices := collector.list()
	logging.Debug("mDNS scan finished", zap.Int("devices", len(devices)), zap.Duration("timeout", s.Timeout))
	return devices, nil
}

// WaitForDeviceWithContext browses until a hub whose instance name or hostname
// matches name answers, the scanner timeout passes or ctx ends
func (s *Scanner) WaitForDeviceWithContext(ctx context.Context, name string) (*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	deviceChan := make(chan *Device, 1)

	go func() {
		for entry := range entries {
			device := parseServiceEntry(entry)
			if device != nil && device.Matches(name) {
				select {
				case deviceChan <- device:
				default:
				}
				cancel()
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case device := <-deviceChan:
		return device, nil
	case <-ctx.Done():
		select {
		case device := <-deviceChan:
			return device, nil
		default:
		}
		return nil, fmt.Errorf("hub %q not found within %s", name, s.Timeout)
	}
}

// Matches reports whether name refers to this hub by instance or hostname,
// ignoring case and the ".local." suffix
func (d *Device) Matches(name string) bool {
	want := trimLocal(name)
	if want == "" {
		return false
	}
	return strings.EqualFold(want, trimLocal(d.Instance)) || strings.EqualFold(want, trimLocal(d.Hostname))
}

func trimLocal(name string) string {
	name = strings.TrimSuffix(name, ".")
	name = strings.TrimSuffix(name, ".local")
	return name
}

// collector deduplicates entries by instance name
type collector struct {
	mu      sync.Mutex
	seen    map[string]bool
	devices []*Device
}

func newCollector() *collector {
	return &collector{seen: make(map[string]bool)}
}

func (c *collector) add(device *Device) {
	if device == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := strings.ToLower(device.Instance + "|" + device.IP)
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.devices = append(c.devices, device)
}

func (c *collector) list() []*Device {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Device, len(c.devices))
	copy(out, c.devices)
	return out
}

// parseServiceEntry converts a zeroconf service entry to a Device.
// Returns nil if the entry carries no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Device {
	if entry == nil {
		return nil
	}

	// Prefer IPv4
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		if key != "" {
			metadata[key] = value
		}
	}

	instance := entry.Instance
	if instance == "" {
		instance = trimLocal(entry.HostName)
	}

	return &Device{
		Instance:     instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// ScanForDevices is a convenience function to scan for devices with a custom timeout
func ScanForDevices(timeout time.Duration) ([]*Device, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.ScanForDevices()
}
