package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vegetronix/vegehub/internal/config"
	"github.com/vegetronix/vegehub/internal/logging"
)

// PasswordEnv names the variable holding the MQTT broker password
const PasswordEnv = "VEGEHUB_MQTT_PASSWORD"

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	qos            = 1
)

// Publisher delivers normalized device states
type Publisher interface {
	Publish(ctx context.Context, state *DeviceState) error
	Close() error
}

// MQTTPublisher publishes retained JSON states to an MQTT broker.
//
// Topics, relative to the configured prefix:
//
//	{prefix}/bridge/state       "online" / "offline" (last will)
//	{prefix}/{mac}/state        normalized readings
//	{prefix}/{mac}/raw          latest value per slot
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
}

// NewMQTTPublisher connects to the broker described by cfg
func NewMQTTPublisher(cfg *config.MQTTConfig) (*MQTTPublisher, error) {
	if cfg == nil || cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	prefix := topicPrefix(cfg.TopicPrefix)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("vegehub-bridge-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout).
		SetWill(prefix+"/bridge/state", "offline", qos, true).
		SetOnConnectHandler(func(c mqtt.Client) {
			logging.Info("MQTT connected", zap.String("broker", cfg.Broker))
			c.Publish(prefix+"/bridge/state", qos, true, "online")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logging.Warn("MQTT connection lost", zap.Error(err))
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if pw := os.Getenv(PasswordEnv); pw != "" {
		opts.SetPassword(pw)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}

	return newMQTTPublisher(client, prefix), nil
}

func newMQTTPublisher(client mqtt.Client, prefix string) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: topicPrefix(prefix)}
}

func topicPrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return config.DefaultTopicPrefix
	}
	return prefix
}

// StateTopic returns the topic normalized states for mac are published on
func (p *MQTTPublisher) StateTopic(mac string) string {
	return p.prefix + "/" + mac + "/state"
}

// RawTopic returns the topic raw slot values for mac are published on
func (p *MQTTPublisher) RawTopic(mac string) string {
	return p.prefix + "/" + mac + "/raw"
}

// Publish sends the state and raw values as retained messages
func (p *MQTTPublisher) Publish(ctx context.Context, state *DeviceState) error {
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	raw, err := json.Marshal(state.SlotValues())
	if err != nil {
		return fmt.Errorf("failed to encode raw values: %w", err)
	}

	if err := p.publish(ctx, p.StateTopic(state.MAC), body); err != nil {
		return err
	}
	return p.publish(ctx, p.RawTopic(state.MAC), raw)
}

func (p *MQTTPublisher) publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, qos, true, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	logging.Debug("Published", zap.String("topic", topic), zap.Int("bytes", len(payload)))
	return nil
}

// Close marks the bridge offline and disconnects
func (p *MQTTPublisher) Close() error {
	if p.client.IsConnected() {
		p.client.Publish(p.prefix+"/bridge/state", qos, true, "offline").WaitTimeout(publishTimeout)
	}
	p.client.Disconnect(250)
	return nil
}

// LogPublisher writes states to the log. It is used when no broker is configured.
type LogPublisher struct{}

// Publish logs the state at info level
func (LogPublisher) Publish(_ context.Context, state *DeviceState) error {
	fields := []zap.Field{
		zap.String("mac", state.MAC),
		zap.String("name", state.Name),
		zap.Int("readings", len(state.Readings)),
	}
	for key, r := range state.Readings {
		fields = append(fields, zap.Float64(key, r.Value))
	}
	logging.Info("Device state", fields...)
	return nil
}

// Close is a no-op
func (LogPublisher) Close() error { return nil }
