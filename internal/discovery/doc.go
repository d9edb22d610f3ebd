// Package discovery locates VegeHub devices on the local network over mDNS.
//
// VegeHubs advertise a "_vege._tcp" service in the "local." domain. The
// scanner browses for that service type for a fixed window and returns every
// hub that answered with a usable address.
//
// # Usage Example
//
//	devices, err := discovery.ScanForDevices(5 * time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, device := range devices {
//	    fmt.Printf("Found: %s at %s\n", device.Instance, device.Address())
//	}
//
// mDNS only reports where a hub is. Its MAC address, channel counts and
// firmware version come from the hub's HTTP API (see package vegehub).
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Hubs must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
