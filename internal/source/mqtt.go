package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/lox/envmon/internal/metrics"
	"github.com/lox/envmon/internal/models"
)

const (
	DefaultMQTTTopic    = "sensors/environment"
	DefaultMQTTClientID = "envmon"
	mqttQueueSize       = 256
)

// MQTT reads JSON sensor messages published on a topic. Automatic reconnects
// are disabled so a lost connection surfaces from Next.
type MQTT struct {
	broker string
	topic  string
	client mqtt.Client
	msgs   chan mqttMessage
	lost   chan error
	log    *slog.Logger
}

type mqttMessage struct {
	payload    []byte
	receivedAt time.Time
}

func DialMQTT(ctx context.Context, broker, topic, clientID string, logger *slog.Logger) (*MQTT, error) {
	m := &MQTT{
		broker: broker,
		topic:  topic,
		msgs:   make(chan mqttMessage, mqttQueueSize),
		lost:   make(chan error, 1),
		log:    logger,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(false).
		SetConnectTimeout(10 * time.Second).
		SetOrderMatters(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		select {
		case m.lost <- err:
		default:
		}
	})
	m.client = mqtt.NewClient(opts)

	if err := waitToken(ctx, m.client.Connect()); err != nil {
		return nil, fmt.Errorf("connect %s: %w", broker, err)
	}
	if err := waitToken(ctx, m.client.Subscribe(topic, 1, m.handle)); err != nil {
		m.client.Disconnect(250)
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	logger.Info("source: mqtt subscribed", "broker", broker, "topic", topic)
	return m, nil
}

// MQTTDialer returns a Dialer for use with Reconnecting.
func MQTTDialer(broker, topic, clientID string, logger *slog.Logger) Dialer {
	return func(ctx context.Context) (Conn, error) {
		return DialMQTT(ctx, broker, topic, clientID, logger)
	}
}

func (m *MQTT) handle(_ mqtt.Client, msg mqtt.Message) {
	select {
	case m.msgs <- mqttMessage{payload: msg.Payload(), receivedAt: time.Now()}:
	default:
		metrics.ReadingsRejected.WithLabelValues("mqtt", "overflow").Inc()
		m.log.Warn("source: mqtt queue full, dropping message", "topic", msg.Topic())
	}
}

func (m *MQTT) Next(ctx context.Context) (models.RawReading, error) {
	for {
		select {
		case <-ctx.Done():
			return models.RawReading{}, ctx.Err()
		case err := <-m.lost:
			return models.RawReading{}, fmt.Errorf("mqtt connection to %s lost: %w", m.broker, err)
		case msg := <-m.msgs:
			if r, ok := accept("mqtt", msg.payload, msg.receivedAt, m.log); ok {
				return r, nil
			}
		}
	}
}

func (m *MQTT) Close() error {
	if m.client.IsConnected() {
		m.client.Unsubscribe(m.topic)
	}
	m.client.Disconnect(250)
	return nil
}

func waitToken(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tok.Done():
		return tok.Error()
	}
}
