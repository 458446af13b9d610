// Package homeassistant exposes resolver state as Home Assistant sensors over
// MQTT discovery.
package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/electrohold/pkg/common"
	"github.com/raterudder/electrohold/pkg/log"
	"github.com/raterudder/electrohold/pkg/types"
)

const (
	availabilityOnline  = "online"
	availabilityOffline = "offline"

	unitEURPerKWh = "EUR/kWh"
)

// Message is an outgoing MQTT message.
type Message struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// tokenPublisher is the part of mqtt.Client the Publisher needs.
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type sensor struct {
	key  string
	name string
}

var sensors = []sensor{
	{key: "current", name: "Current Tariff"},
	{key: string(types.BandDay), name: "Day Tariff"},
	{key: string(types.BandNight), name: "Night Tariff"},
}

// Publisher announces the tariff sensors and publishes every resolved state.
type Publisher struct {
	client     tokenPublisher
	prefix     string
	deviceID   string
	deviceName string
	timeout    time.Duration

	broker   string
	username string
	password string
	clientID string

	// discovered is reset on every (re)connect so configs are re-announced.
	discovered atomic.Bool
}

// NewPublisher returns a Publisher sending through client.
func NewPublisher(client tokenPublisher, prefix, deviceName string) *Publisher {
	return &Publisher{
		client:     client,
		prefix:     prefix,
		deviceID:   deviceID(deviceName),
		deviceName: deviceName,
		timeout:    10 * time.Second,
	}
}

// Configured registers the MQTT flags. The returned Publisher is disabled if no
// broker is configured.
func Configured() *Publisher {
	p := NewPublisher(nil, "", "")
	broker := lflag.String("mqtt-broker", "", "MQTT broker address (host:port), empty disables Home Assistant publishing")
	username := lflag.String("mqtt-username", "", "MQTT username")
	password := lflag.String("mqtt-password", os.Getenv("MQTT_PASSWORD"), "MQTT password")
	clientID := lflag.String("mqtt-client-id", "electrohold-tariffs", "MQTT client ID")
	prefix := lflag.String("mqtt-discovery-prefix", "homeassistant", "Home Assistant MQTT discovery prefix")
	deviceName := lflag.String("mqtt-device-name", "Electrohold Tariff", "Home Assistant device name")

	lflag.Do(func() {
		p.broker = *broker
		p.username = *username
		p.password = *password
		p.clientID = *clientID
		p.prefix = *prefix
		p.deviceName = *deviceName
		p.deviceID = deviceID(*deviceName)
	})

	return p
}

// Enabled reports whether a broker is configured.
func (p *Publisher) Enabled() bool {
	return p.broker != "" || p.client != nil
}

// Connect connects to the configured broker. A failed first connection is
// returned as an error; once connected the client reconnects on its own. The
// returned function disconnects.
func (p *Publisher) Connect(ctx context.Context) (func(), error) {
	opts := p.clientOptions(ctx)
	broker := p.brokerURL()

	client := mqtt.NewClient(opts)
	log.Ctx(ctx).InfoContext(ctx, "connecting to mqtt broker", slog.String("broker", broker))
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker: %w", token.Error())
	}
	p.client = client

	return func() {
		if client.IsConnected() {
			client.Disconnect(250)
			log.Ctx(ctx).InfoContext(ctx, "disconnected from mqtt broker")
		}
	}, nil
}

func (p *Publisher) brokerURL() string {
	if !strings.Contains(p.broker, "://") {
		return "tcp://" + p.broker
	}
	return p.broker
}

func (p *Publisher) clientOptions(ctx context.Context) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	broker := p.brokerURL()
	opts.AddBroker(broker)
	opts.SetClientID(p.clientID)
	opts.SetUsername(p.username)
	opts.SetPassword(p.password)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Ctx(ctx).WarnContext(ctx, "mqtt connection lost", slog.Any("error", err))
	})
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Ctx(ctx).InfoContext(ctx, "connected to mqtt broker", slog.String("broker", broker))
		p.discovered.Store(false)
	})
	return opts
}

// Publish implements scheduler.Publisher. It is a no-op when no broker is
// configured.
func (p *Publisher) Publish(ctx context.Context, state types.SensorState) error {
	if !p.Enabled() {
		return nil
	}
	if p.client == nil {
		return fmt.Errorf("mqtt client not connected")
	}
	msgs, err := p.messages(state, !p.discovered.Load())
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if err := p.send(msg); err != nil {
			return err
		}
	}
	p.discovered.Store(true)
	log.Ctx(ctx).DebugContext(ctx, "published state to home assistant", slog.Int("messages", len(msgs)))
	return nil
}

func (p *Publisher) send(msg Message) error {
	token := p.client.Publish(msg.Topic, msg.QoS, msg.Retain, msg.Payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("timed out publishing to %s", msg.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", msg.Topic, err)
	}
	return nil
}

func (p *Publisher) messages(state types.SensorState, withDiscovery bool) ([]Message, error) {
	var msgs []Message
	if withDiscovery {
		for _, s := range sensors {
			msg, err := p.discoveryMessage(s)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, msg)
		}
	}

	values := map[string]any{
		"current":               nullableFloat(state.Current.Value.Valid, state.Current.Value.Decimal.InexactFloat64()),
		string(types.BandDay):   nullableFloat(state.Day.Value.Valid, state.Day.Value.Decimal.InexactFloat64()),
		string(types.BandNight): nullableFloat(state.Night.Value.Valid, state.Night.Value.Decimal.InexactFloat64()),
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, Message{Topic: p.stateTopic(), Payload: payload, QoS: 1, Retain: true})

	for _, s := range sensors {
		var attrs map[string]any
		available := false
		switch s.key {
		case "current":
			attrs = state.Attributes()
			available = state.Current.Value.Valid
		default:
			b := types.Band(s.key)
			attrs = state.BandAttributes(b)
			available = state.Reading(b).Value.Valid
		}
		b, err := json.Marshal(attrs)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, Message{Topic: p.sensorTopic(s, "attributes"), Payload: b, QoS: 1, Retain: true})

		availability := availabilityOffline
		if available {
			availability = availabilityOnline
		}
		msgs = append(msgs, Message{Topic: p.sensorTopic(s, "availability"), Payload: []byte(availability), QoS: 1, Retain: true})
	}
	return msgs, nil
}

type haDeviceConfig struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

type haEntityConfig struct {
	Name                string         `json:"name,omitempty"`
	DeviceClass         string         `json:"device_class"`
	StateTopic          string         `json:"state_topic"`
	JsonAttributesTopic string         `json:"json_attributes_topic,omitempty"`
	AvailabilityTopic   string         `json:"availability_topic,omitempty"`
	UnitOfMeasure       string         `json:"unit_of_measurement,omitempty"`
	ValueTemplate       string         `json:"value_template"`
	UniqueId            string         `json:"unique_id"`
	DisplayPrecision    int            `json:"suggested_display_precision,omitempty"`
	Device              haDeviceConfig `json:"device"`
}

func (p *Publisher) discoveryMessage(s sensor) (Message, error) {
	config := haEntityConfig{
		Name:                s.name,
		DeviceClass:         "monetary",
		StateTopic:          p.stateTopic(),
		JsonAttributesTopic: p.sensorTopic(s, "attributes"),
		AvailabilityTopic:   p.sensorTopic(s, "availability"),
		UnitOfMeasure:       unitEURPerKWh,
		ValueTemplate:       "{{ value_json." + s.key + " }}",
		UniqueId:            p.deviceID + "_" + s.key,
		DisplayPrecision:    5,
		Device: haDeviceConfig{
			Identifiers:  []string{p.deviceID},
			Name:         p.deviceName,
			Manufacturer: "Electrohold",
			Model:        "Regulated household tariff",
			SWVersion:    common.Version(),
		},
	}
	payload, err := json.Marshal(config)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Topic:   p.prefix + "/sensor/" + p.deviceID + "_" + s.key + "/config",
		Payload: payload,
		QoS:     1,
		Retain:  true,
	}, nil
}

func (p *Publisher) stateTopic() string {
	return p.prefix + "/sensor/" + p.deviceID + "/state"
}

func (p *Publisher) sensorTopic(s sensor, kind string) string {
	return p.prefix + "/sensor/" + p.deviceID + "_" + s.key + "/" + kind
}

func deviceID(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

func nullableFloat(ok bool, v float64) any {
	if !ok {
		return nil
	}
	return v
}
