package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

// Publisher is satisfied by *mqtt.Client
type Publisher interface {
	Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error
}

// MQTTChannel publishes the alert event as JSON for home automation
type MQTTChannel struct {
	enabled   bool
	publisher Publisher
	topic     string
	qos       byte
}

func NewMQTTChannel(enabled bool, publisher Publisher, topic string, qos byte) *MQTTChannel {
	return &MQTTChannel{enabled: enabled, publisher: publisher, topic: topic, qos: qos}
}

func (c *MQTTChannel) Name() string  { return "mqtt" }
func (c *MQTTChannel) Enabled() bool { return c.enabled && c.publisher != nil }

type mqttMessage struct {
	Title string             `json:"title"`
	Alert *models.AlertEvent `json:"alert"`
}

func (c *MQTTChannel) Send(ctx context.Context, p *Payload) error {
	body, err := json.Marshal(mqttMessage{Title: p.Title, Alert: p.Event})
	if err != nil {
		return &models.TransportError{Channel: c.Name(), Err: fmt.Errorf("encode alert: %w", err)}
	}
	if err := c.publisher.Publish(ctx, c.topic, c.qos, false, body); err != nil {
		return &models.TransportError{Channel: c.Name(), Err: err}
	}
	return nil
}
