package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vegetronix/vegehub/internal/config"
	"github.com/vegetronix/vegehub/internal/discovery"
	"github.com/vegetronix/vegehub/internal/ui"
	"github.com/vegetronix/vegehub/internal/vegehub"
)

// Command flags
var (
	scanTimeout int
	waitFor     string
	verify      bool
	safe        bool
	bridgeURL   string
	nickname    string
	registerKey string
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(updateCmd)
}

// scanCmd discovers hubs on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for VegeHubs on the network",
	Long: `Scan for VegeHubs using mDNS/DNS-SD discovery (_vege._tcp).

Every hub that answers is listed with its address and whether it is already
in the local registry.`,
	Example: `  # Scan for 10 seconds (default)
  vegehub-cfg scan

  # Quick 3-second scan
  vegehub-cfg scan --timeout 3

  # Wait up to 60 seconds for a battery hub to wake and announce itself
  vegehub-cfg scan --wait vegehub-4b49d8 --timeout 60`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 10, "Scan timeout in seconds")
	scanCmd.Flags().StringVar(&waitFor, "wait", "", "Stop as soon as the hub with this instance name or hostname answers")
}

func runScan(cmd *cobra.Command, args []string) error {
	timeout := time.Duration(scanTimeout) * time.Second

	var devices []*discovery.Device
	if waitFor != "" {
		fmt.Printf("Waiting for %s (timeout: %ds)...\n\n", waitFor, scanTimeout)
		scanner := &discovery.Scanner{Timeout: timeout}
		device, err := scanner.WaitForDeviceWithContext(cmd.Context(), waitFor)
		if err != nil {
			return err
		}
		devices = []*discovery.Device{device}
	} else {
		fmt.Printf("Scanning for VegeHubs (timeout: %ds)...\n\n", scanTimeout)
		found, err := discovery.ScanForDevices(timeout)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		devices = found
	}

	if len(devices) == 0 {
		fmt.Println("No hubs found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the hub is powered and joined to this network")
		fmt.Println("  - Battery hubs only answer while awake; press the hub's button")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Use --device to specify the IP manually if discovery fails")
		return nil
	}

	reg, _ := loadRegistry()
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		known := ""
		if reg != nil {
			if _, dev := reg.FindDevice(d.IP); dev != nil {
				known = dev.DisplayName("registered")
			}
		}
		rows = append(rows, []string{d.Instance, d.Address(), d.Hostname, known})
	}

	fmt.Printf("Found %d hub(s):\n\n", len(devices))
	fmt.Println(ui.RenderTable([]string{"Name", "Address", "Host", "Registry"}, rows))
	fmt.Println()
	fmt.Println("Use 'vegehub-cfg info --device <ip>' to view hub details")
	fmt.Println("Use 'vegehub-cfg register --device <ip>' to send readings to vegehub-bridge")
	return nil
}

// infoCmd displays hub information
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show hub information",
	Long: `Display what the hub reports about itself: firmware version, channel and
actuator counts, power source and MAC address.`,
	Example: `  vegehub-cfg info --device 192.168.0.42
  vegehub-cfg info --device greenhouse --format json`,
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	t, err := connect(ctx, reg)
	if err != nil {
		return err
	}
	defer t.hub.Close()

	n := retryBudget(reg)
	info, err := t.hub.FetchInfo(ctx, n)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("hub at %s answered without a hub info object", t.hub.Address)
	}
	if _, err := t.hub.FetchMacAddress(ctx, n); err != nil {
		return err
	}

	switch outputFormat {
	case "json":
		data, err := json.MarshalIndent(map[string]any{
			"address": t.hub.Address,
			"mac":     t.hub.MACAddress(),
			"hub":     info.Raw,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
	case "compact":
		fmt.Println(info.FormatCompact())
	default:
		fmt.Println(ui.RenderCommandHeader(ui.HeaderConfig{
			Title:   "VegeHub",
			Command: "info",
			Params: []ui.Detail{
				{Key: "Address", Value: t.hub.Address},
				{Key: "MAC", Value: t.hub.MACAddress()},
			},
		}))
		fmt.Println(info.FormatDetailed())
	}
	return nil
}

// setupCmd points the hub at an upstream server
var setupCmd = &cobra.Command{
	Use:   "setup <api-key> <server-url>",
	Short: "Point the hub's reporting at a server",
	Long: `Configure the hub to push its readings to server-url, authenticated with api-key.

Whichever config schema the firmware speaks is preserved: newer firmware gets a
reserved "HomeAssistant" endpoint (created or updated in place), older firmware
gets its single upstream server replaced.

--verify re-reads the config after the write. --safe also snapshots the config
first and writes it back if verification fails.`,
	Example: `  vegehub-cfg setup mykey http://192.168.0.5:8123/api/vegehub/update --device 192.168.0.42
  vegehub-cfg setup mykey https://example.com/hook --device greenhouse --safe`,
	Args: cobra.ExactArgs(2),
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVar(&verify, "verify", false, "Re-read the config to verify the change")
	setupCmd.Flags().BoolVar(&safe, "safe", false, "Snapshot first and roll back if verification fails")
}

func runSetup(cmd *cobra.Command, args []string) error {
	apiKey, serverURL := args[0], args[1]
	if errs := vegehub.ValidateSetupParams(apiKey, serverURL); len(errs) > 0 {
		return errs[0]
	}

	ctx := cmd.Context()
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	t, err := connect(ctx, reg)
	if err != nil {
		return err
	}
	defer t.hub.Close()

	fmt.Println(ui.RenderCommandHeader(ui.HeaderConfig{
		Title:   "VegeHub Setup",
		Command: "setup",
		Params: []ui.Detail{
			{Key: "Hub", Value: t.hub.Address},
			{Key: "Server", Value: serverURL},
		},
	}))

	if err := applySetup(ctx, t, apiKey, serverURL, retryBudget(reg)); err != nil {
		return err
	}

	if _, err := t.hub.FetchMacAddress(ctx, retryBudget(reg)); err == nil {
		remember(reg, t)
		if err := saveRegistry(reg); err != nil {
			fmt.Println(ui.RenderWarning("Registry not saved", []ui.Detail{{Key: "Error", Value: err.Error()}}))
		}
	}
	return nil
}

// applySetup runs plain, verified or safe setup per the flags and reports the result
func applySetup(ctx context.Context, t *target, apiKey, serverURL string, n int) error {
	details := []ui.Detail{{Key: "Server", Value: serverURL}}

	switch {
	case safe:
		sm := vegehub.NewSnapshotManager(t.hub)
		sm.Retries = n
		result := sm.SafeSetup(ctx, apiKey, serverURL, nil)
		if !result.Success {
			fmt.Println(result.String())
			if result.Error != nil {
				return result.Error
			}
			return fmt.Errorf("setup failed")
		}
		details = append(details, ui.Detail{Key: "Verified", Value: strconv.Itoa(result.Verification.Attempts) + " attempt(s)"})

	case verify:
		result := t.hub.SetupAndVerify(ctx, apiKey, serverURL, n, nil)
		if !result.Success {
			for _, m := range result.Mismatches {
				fmt.Printf("  - %s\n", m)
			}
			return fmt.Errorf("setup not verified: %w", result.Error)
		}
		details = append(details,
			ui.Detail{Key: "Schema", Value: result.Schema},
			ui.Detail{Key: "Verified", Value: strconv.Itoa(result.Attempts) + " attempt(s)"},
		)

	default:
		ok, err := t.hub.Setup(ctx, apiKey, serverURL, n)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println(ui.RenderWarning("Hub not configured", []ui.Detail{
				{Key: "Reason", Value: "the hub config is empty or uses an unknown schema"},
			}))
			return fmt.Errorf("setup made no change")
		}
		details = append(details, ui.Detail{Key: "Verified", Value: "no (use --verify)"})
	}

	if info := t.hub.Info(); info != nil {
		details = append(details, ui.Detail{Key: "Hub", Value: info.Summary()})
	}
	fmt.Println(ui.RenderSuccess("Hub configured", details))
	return nil
}

// registerCmd wires a hub to the bridge and records it in the registry
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Send a hub's readings to vegehub-bridge and record it in the registry",
	Long: `Register a hub with the local vegehub-bridge.

The hub is set up to push to the bridge URL (--bridge-url, or bridge.public_url
from the registry) with a random API key, then verified. The key is stored in
the registry next to the hub's channel and actuator counts, which the bridge
uses to check pushes and map slots to sensors and actuators. Re-registering
keeps the stored key unless --api-key is given.`,
	Example: `  vegehub-cfg register --device 192.168.0.42 --nickname greenhouse
  vegehub-cfg register --device greenhouse --api-key 0f4c2d9e81b7
  vegehub-cfg register --device 192.168.0.42 --bridge-url http://192.168.0.5:8123/api/vegehub/update`,
	RunE: runRegister,
}

func init() {
	registerCmd.Flags().StringVar(&bridgeURL, "bridge-url", "", "URL hubs push to (default: bridge.public_url)")
	registerCmd.Flags().StringVar(&nickname, "nickname", "", "Friendly name for the hub")
	registerCmd.Flags().StringVar(&registerKey, "api-key", "", "API key the hub sends to the bridge (default: stored or generated)")
}

// hubKey returns the key a registered hub should send: explicit, stored, then new
func hubKey(reg *config.Registry, mac, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if d := reg.GetDevice(mac); d != nil && d.APIKey != "" {
		return d.APIKey
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	url := bridgeURL
	if url == "" && reg.Bridge != nil {
		url = reg.Bridge.PublicURL
	}
	if url == "" {
		return fmt.Errorf("no bridge URL: pass --bridge-url or set bridge.public_url in the registry")
	}
	if err := vegehub.ValidateServerURL(url); err != nil {
		return err
	}
	if registerKey != "" {
		if err := vegehub.ValidateAPIKey(registerKey); err != nil {
			return err
		}
	}

	t, err := connect(ctx, reg)
	if err != nil {
		return err
	}
	defer t.hub.Close()

	n := retryBudget(reg)
	ok, err := t.hub.FetchMacAddress(ctx, n)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("hub at %s did not report a usable MAC address", t.hub.Address)
	}
	// Counts come from this read: the refresh after setup may leave the cache empty
	info, err := t.hub.FetchInfo(ctx, n)
	if err != nil {
		return err
	}
	if info == nil || info.NumSensors == nil {
		return fmt.Errorf("hub at %s did not report its channel count", t.hub.Address)
	}

	mac := t.hub.SimpleMACAddress()
	key := hubKey(reg, mac, registerKey)
	verify = true
	if err := applySetup(ctx, t, key, url, n); err != nil {
		return err
	}

	recordHub(reg, mac, t.hub.Address, info, nickname)
	reg.EnsureDevice(mac).APIKey = key
	if err := saveRegistry(reg); err != nil {
		return fmt.Errorf("hub configured but registry not saved: %w", err)
	}

	fmt.Printf("Registered %s as %s\n", t.hub.MACAddress(), reg.GetDevice(mac).DisplayName(mac))
	fmt.Println("Label channels with 'vegehub-cfg channel <n> <sensor> [label]'")
	return nil
}

// recordHub stores what the hub reported about itself. Counts missing from info
// keep their registry values.
func recordHub(reg *config.Registry, mac, address string, info *vegehub.DeviceInfo, nick string) {
	reg.UpdateDeviceLastSeen(mac, address)
	device := reg.EnsureDevice(mac)
	if info != nil && info.NumSensors != nil {
		device.NumSensors = *info.NumSensors
	}
	if info != nil && info.NumActuators != nil {
		device.NumActuators = *info.NumActuators
	}
	if nick != "" {
		reg.SetDeviceNickname(mac, nick)
	}
}

// updateCmd asks the hub to push its readings now
var updateCmd = &cobra.Command{
	Use:     "update",
	Short:   "Ask the hub to send its readings now",
	Example: `  vegehub-cfg update --device greenhouse`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		t, err := connect(ctx, reg)
		if err != nil {
			return err
		}
		defer t.hub.Close()

		if err := t.hub.RequestUpdate(ctx, retryBudget(reg)); err != nil {
			return err
		}
		fmt.Println(ui.RenderSuccess("Update requested", []ui.Detail{{Key: "Hub", Value: t.hub.Address}}))
		return nil
	},
}
