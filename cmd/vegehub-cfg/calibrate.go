package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vegetronix/vegehub/internal/calibration"
	"github.com/vegetronix/vegehub/internal/ui"
)

var channelLabel string

func init() {
	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(channelCmd)
	channelCmd.Flags().StringVar(&channelLabel, "label", "", "Label shown by the bridge")
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate <sensor> <voltage>",
	Short: "Convert a probe voltage into its physical reading",
	Long: `Apply a probe transform to a raw voltage.

Sensors: raw (volts), vh400 (soil moisture, %), therm200 (soil temperature, °C).`,
	Example: `  vegehub-cfg calibrate vh400 1.82
  vegehub-cfg calibrate therm200 1.5`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sensor, err := calibration.ParseSensorType(args[0])
		if err != nil {
			return err
		}
		value, ok := calibration.Apply(sensor, args[1])
		if !ok {
			return fmt.Errorf("invalid voltage %q", args[1])
		}
		fmt.Printf("%s %s\n", strconv.FormatFloat(value, 'f', 2, 64), sensor.Unit())
		return nil
	},
}

var channelCmd = &cobra.Command{
	Use:   "channel <channel> <sensor>",
	Short: "Set the probe type of a registered hub's analog channel",
	Long: `Record which probe is wired to analog channel <channel> (1-based) so the
bridge can calibrate its readings. The hub must be registered.`,
	Example: `  vegehub-cfg channel 1 vh400 --label "bed A" --device greenhouse`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid channel value: %w", err)
		}
		if deviceRef == "" {
			return fmt.Errorf("--device is required")
		}

		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		mac, device := reg.FindDevice(deviceRef)
		if device == nil {
			return fmt.Errorf("%s is not registered (run 'vegehub-cfg register' first)", deviceRef)
		}
		if device.NumSensors > 0 && channel > device.NumSensors {
			return fmt.Errorf("channel %d out of range (hub has %d)", channel, device.NumSensors)
		}
		if err := reg.SetChannel(mac, channel, channelLabel, args[1]); err != nil {
			return err
		}
		if err := saveRegistry(reg); err != nil {
			return err
		}

		fmt.Println(ui.RenderSuccess("Channel updated", []ui.Detail{
			{Key: "Hub", Value: device.DisplayName(mac)},
			{Key: "Channel", Value: strconv.Itoa(channel)},
			{Key: "Sensor", Value: string(device.SensorType(channel))},
		}))
		return nil
	},
}
