package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Device is a VegeHub found on the network
type Device struct {
	// Instance is the advertised service instance name (e.g., "Vege_4B_49_D8")
	Instance string

	// Hostname is the mDNS hostname (e.g., "Vege_4B_49_D8.local.")
	Hostname string

	// IP is the hub's address, IPv4 when available
	IP string

	// Port is the HTTP port (typically 80)
	Port int

	// Metadata contains the TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the hub answered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("VegeHub %s (%s) at %s", d.Instance, d.Hostname, d.Address())
}

// Address returns the host[:port] form used to reach the hub's HTTP API.
// The port is omitted when it is the default.
func (d *Device) Address() string {
	if d.Port == 0 || d.Port == DefaultPort {
		if ip := net.ParseIP(d.IP); ip != nil && ip.To4() == nil {
			return "[" + d.IP + "]"
		}
		return d.IP
	}
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// BaseURL returns the HTTP base URL for the device
func (d *Device) BaseURL() string {
	return "http://" + d.Address()
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
