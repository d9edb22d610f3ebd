package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vegetronix/vegehub/internal/ui"
	"github.com/vegetronix/vegehub/internal/vegehub"
)

var (
	dumpOutput string
	assumeYes  bool
)

func init() {
	configCmd.AddCommand(configDumpCmd)
	configCmd.AddCommand(configRestoreCmd)
	rootCmd.AddCommand(configCmd)

	configDumpCmd.Flags().StringVarP(&dumpOutput, "output", "o", "", "Write the config to a file instead of stdout")
	configRestoreCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Back up or restore the hub's raw configuration",
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print or save the hub's configuration as JSON",
	Example: `  vegehub-cfg config dump --device greenhouse
  vegehub-cfg config dump --device greenhouse -o greenhouse.json`,
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

		blob, err := t.hub.FetchConfig(ctx, retryBudget(reg))
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(blob, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}

		if dumpOutput == "" {
			fmt.Println(string(data))
			return nil
		}
		if err := os.WriteFile(dumpOutput, append(data, '\n'), 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", dumpOutput, err)
		}
		fmt.Println(vegehub.FormatConfigSummary(blob))
		fmt.Println(ui.RenderSuccess("Config saved", []ui.Detail{{Key: "File", Value: dumpOutput}}))
		return nil
	},
}

var configRestoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Write a saved configuration back to the hub",
	Long: `Replace the hub's whole configuration with the JSON in <file>.

The current configuration is snapshotted first and written back if the restore fails.`,
	Example: `  vegehub-cfg config restore greenhouse.json --device greenhouse`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := args[0]
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		var blob map[string]any
		if err := json.Unmarshal(data, &blob); err != nil {
			return fmt.Errorf("%s is not a JSON object: %w", file, err)
		}
		if _, ok := vegehub.ClassifyConfig(blob).(vegehub.UnrecognizedConfig); ok {
			fmt.Println(ui.RenderWarning("Unrecognized config schema", []ui.Detail{{Key: "File", Value: file}}))
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

		if !assumeYes && !ui.RestoreConfirmation(os.Stdin, os.Stdout, t.hub.Address, file) {
			return nil
		}

		n := retryBudget(reg)
		sm := vegehub.NewSnapshotManager(t.hub)
		sm.Retries = n
		if _, err := sm.SaveSnapshot(ctx, "before restore of "+file); err != nil {
			return fmt.Errorf("failed to snapshot current config: %w", err)
		}

		if err := t.hub.SetConfig(ctx, blob, n); err != nil {
			if rbErr := sm.RestoreLatest(ctx); rbErr != nil {
				return fmt.Errorf("restore failed (%v) and rollback failed: %w", err, rbErr)
			}
			return fmt.Errorf("restore failed, previous config written back: %w", err)
		}

		fmt.Println(ui.RenderSuccess("Config restored", []ui.Detail{
			{Key: "Hub", Value: t.hub.Address},
			{Key: "File", Value: file},
		}))
		return nil
	},
}
