// Vegehub-bridge receives the readings VegeHubs push and republishes them.
//
// Hubs registered with 'vegehub-cfg register' post to the bridge, which
// calibrates analog channels per the registry and publishes retained JSON
// states to an MQTT broker (or the log when no broker is configured).
//
// Usage:
//
//	vegehub-bridge serve [flags]
//
// See 'vegehub-bridge serve --help' for available options.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vegetronix/vegehub/internal/bridge"
	"github.com/vegetronix/vegehub/internal/config"
	"github.com/vegetronix/vegehub/internal/logging"
	"github.com/vegetronix/vegehub/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vegehub-bridge",
	Short: "VegeHub push bridge",
	Long: `Receives the telemetry VegeHubs push over HTTP and republishes calibrated
readings to MQTT.

Register hubs with the separate 'vegehub-cfg register' command first.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command flags
var (
	configPath    string
	listen        string
	updatePath    string
	mqttBroker    string
	mqttUsername  string
	topicPrefix   string
	acceptUnknown bool
	logLevel      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bridge",
	Long: `Start the HTTP endpoint hubs push to.

Flags override the bridge section of the registry. Without a broker, states are
written to the log. The broker password is read from ` + bridge.PasswordEnv + `.`,
	Example: `  # Listen on the default :8123 and log states
  vegehub-bridge serve

  # Publish to a local broker under "garden/"
  vegehub-bridge serve --mqtt-broker tcp://localhost:1883 --topic-prefix garden

  # Accept hubs missing from the registry (raw values only)
  vegehub-bridge serve --accept-unknown --log-level debug`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Registry file (default: OS config dir)")
	serveCmd.Flags().StringVar(&listen, "listen", "", "Listen address (default "+config.DefaultListen+")")
	serveCmd.Flags().StringVar(&updatePath, "update-path", "", "Path hubs POST to (default "+config.DefaultUpdatePath+")")
	serveCmd.Flags().StringVar(&mqttBroker, "mqtt-broker", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	serveCmd.Flags().StringVar(&mqttUsername, "mqtt-username", "", "MQTT username")
	serveCmd.Flags().StringVar(&topicPrefix, "topic-prefix", "", "MQTT topic prefix (default "+config.DefaultTopicPrefix+")")
	serveCmd.Flags().BoolVar(&acceptUnknown, "accept-unknown", false, "Accept pushes from hubs missing from the registry")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	var reg *config.Registry
	var err error
	if configPath != "" {
		reg, err = config.LoadRegistryFrom(configPath)
	} else {
		reg, err = config.LoadRegistry()
	}
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	bc := mergeFlags(reg.Bridge, cmd)
	logging.Info("Starting VegeHub bridge",
		zap.String("version", version.Full()),
		zap.Int("registered_hubs", len(reg.Devices)),
	)

	var publisher bridge.Publisher = bridge.LogPublisher{}
	if bc.MQTT != nil && bc.MQTT.Broker != "" {
		mp, err := bridge.NewMQTTPublisher(bc.MQTT)
		if err != nil {
			return err
		}
		publisher = mp
	} else {
		logging.Warn("No MQTT broker configured, states will only be logged")
	}

	srv := bridge.New(bridge.Config{
		Listen:        bc.Listen,
		UpdatePath:    bc.UpdatePath,
		AcceptUnknown: bc.AcceptUnknown,
	}, reg, publisher)

	return srv.Run(context.Background())
}

// mergeFlags overlays explicitly set flags on the registry's bridge section
func mergeFlags(base *config.BridgeConfig, cmd *cobra.Command) *config.BridgeConfig {
	bc := config.DefaultBridgeConfig()
	if base != nil {
		*bc = *base
	}
	if bc.MQTT == nil {
		bc.MQTT = &config.MQTTConfig{}
	} else {
		mqtt := *bc.MQTT
		bc.MQTT = &mqtt
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		bc.Listen = listen
	}
	if flags.Changed("update-path") {
		bc.UpdatePath = updatePath
	}
	if flags.Changed("accept-unknown") {
		bc.AcceptUnknown = acceptUnknown
	}
	if flags.Changed("mqtt-broker") {
		bc.MQTT.Broker = mqttBroker
	}
	if flags.Changed("mqtt-username") {
		bc.MQTT.Username = mqttUsername
	}
	if flags.Changed("topic-prefix") {
		bc.MQTT.TopicPrefix = topicPrefix
	}
	return bc
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vegehub-bridge %s\n", version.Full())
	},
}
