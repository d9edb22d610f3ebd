package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vegetronix/vegehub/internal/config"
	"github.com/vegetronix/vegehub/internal/discovery"
	"github.com/vegetronix/vegehub/internal/vegehub"
)

// Global flags
var (
	deviceRef    string
	retries      int
	configPath   string
	logLevel     string
	outputFormat string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceRef, "device", "", "Hub IP/host[:port], registered nickname or MAC (skips discovery)")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", 0, "Request attempts per operation (default from registry preferences)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Registry file (default: OS config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); VEGEHUB_LOG_LEVEL if unset")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, compact, json)")
}

// target is a resolved hub plus its registry entry, if any
type target struct {
	hub    *vegehub.Hub
	mac    string
	device *config.Device
}

func loadRegistry() (*config.Registry, error) {
	if configPath != "" {
		return config.LoadRegistryFrom(configPath)
	}
	return config.LoadRegistry()
}

func saveRegistry(reg *config.Registry) error {
	if configPath != "" {
		return reg.SaveTo(configPath)
	}
	return reg.Save()
}

func retryBudget(reg *config.Registry) int {
	if retries > 0 {
		return retries
	}
	if reg != nil && reg.Preferences != nil && reg.Preferences.Retries > 0 {
		return reg.Preferences.Retries
	}
	return vegehub.DefaultRetries
}

// resolveAddress turns a --device reference into a host[:port] address.
// Registry entries are matched first, then the reference is used verbatim.
func resolveAddress(reg *config.Registry, ref string) (address, mac string, device *config.Device) {
	if reg != nil {
		if key, d := reg.FindDevice(ref); d != nil {
			if d.LastIP != "" {
				return d.LastIP, key, d
			}
			return ref, key, d
		}
		if _, simple, ok := vegehub.NormalizeMAC(ref); ok {
			if d := reg.GetDevice(simple); d != nil && d.LastIP != "" {
				return d.LastIP, simple, d
			}
		}
	}
	return ref, "", nil
}

// connect resolves the target hub from --device or by discovery
func connect(ctx context.Context, reg *config.Registry) (*target, error) {
	ref := deviceRef
	if ref == "" {
		found, err := discoverOne(ctx, reg)
		if err != nil {
			return nil, err
		}
		ref = found.Address()
	}

	address, mac, device := resolveAddress(reg, ref)
	if strings.HasPrefix(address, ":") || strings.Contains(address, "/") {
		return nil, fmt.Errorf("invalid device address %q (want host[:port])", address)
	}

	return &target{
		hub:    vegehub.NewHub(address, mac, nil),
		mac:    mac,
		device: device,
	}, nil
}

func discoverOne(ctx context.Context, reg *config.Registry) (*discovery.Device, error) {
	timeout := 5 * time.Second
	if reg != nil && reg.Preferences != nil && reg.Preferences.DiscoverTimeout > 0 {
		timeout = time.Duration(reg.Preferences.DiscoverTimeout) * time.Second
	}

	fmt.Println("No device specified, attempting auto-discovery...")
	scanner := &discovery.Scanner{Timeout: timeout}
	devices, err := scanner.ScanForDevicesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}

	switch len(devices) {
	case 0:
		return nil, fmt.Errorf("no hubs found. Use --device to specify one manually")
	case 1:
		fmt.Printf("Found %s\n\n", devices[0])
		return devices[0], nil
	default:
		fmt.Printf("Found %d hubs:\n", len(devices))
		for i, d := range devices {
			fmt.Printf("%d. %s\n", i+1, d)
		}
		return nil, fmt.Errorf("multiple hubs found. Use --device to specify which one")
	}
}

// remember records the hub's address and MAC in the registry
func remember(reg *config.Registry, t *target) {
	if reg == nil || t.hub.SimpleMACAddress() == "" {
		return
	}
	reg.UpdateDeviceLastSeen(t.hub.SimpleMACAddress(), t.hub.Address)
}
