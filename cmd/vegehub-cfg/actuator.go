package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vegetronix/vegehub/internal/ui"
	"github.com/vegetronix/vegehub/internal/vegehub"
)

func init() {
	actuatorCmd.AddCommand(actuatorSetCmd)
	actuatorCmd.AddCommand(actuatorStatusCmd)
	rootCmd.AddCommand(actuatorCmd)
}

var actuatorCmd = &cobra.Command{
	Use:   "actuator",
	Short: "Drive or inspect the hub's actuators (valves, relays)",
}

var actuatorSetCmd = &cobra.Command{
	Use:   "set <slot> <state> <duration>",
	Short: "Switch an actuator on or off for a duration",
	Long: `Switch actuator <slot> (0-based) to <state> for <duration> seconds.

State is on/off or 1/0. Duration is capped at one day.`,
	Example: `  # Open valve 0 for ten minutes
  vegehub-cfg actuator set 0 on 600 --device greenhouse

  # Close it again
  vegehub-cfg actuator set 0 off 0 --device greenhouse`,
	Args: cobra.ExactArgs(3),
	RunE: runActuatorSet,
}

func parseState(s string) (int, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true":
		return 1, nil
	case "off", "0", "false":
		return 0, nil
	}
	return 0, fmt.Errorf("invalid state %q (use on/off)", s)
}

func runActuatorSet(cmd *cobra.Command, args []string) error {
	slot, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid slot value: %w", err)
	}
	state, err := parseState(args[1])
	if err != nil {
		return err
	}
	duration, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	if err := vegehub.ValidateActuatorCommand(state, slot, duration); err != nil {
		return err
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

	if t.device != nil && t.device.NumActuators > 0 {
		if err := vegehub.ValidateActuatorSlot(slot, t.device.NumActuators); err != nil {
			return err
		}
	}

	if _, err := t.hub.SetActuator(ctx, state, slot, duration, retryBudget(reg)); err != nil {
		return err
	}

	word := "OFF"
	if state == 1 {
		word = "ON"
	}
	fmt.Println(ui.RenderSuccess("Actuator switched", []ui.Detail{
		{Key: "Hub", Value: t.hub.Address},
		{Key: "Slot", Value: strconv.Itoa(slot)},
		{Key: "State", Value: word},
		{Key: "Duration", Value: fmt.Sprintf("%ds", duration)},
	}))
	return nil
}

var actuatorStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show the state of every actuator",
	Example: `  vegehub-cfg actuator status --device greenhouse`,
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

		states, err := t.hub.ActuatorStates(ctx, retryBudget(reg))
		if err != nil {
			return err
		}
		fmt.Print(vegehub.FormatActuatorStates(states))
		return nil
	},
}
