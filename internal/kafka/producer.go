package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

type Producer struct {
	producer       sarama.SyncProducer
	heartbeatTopic string
	alertTopic     string
}

func NewProducer(brokers []string, heartbeatTopic, alertTopic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return NewProducerFromSync(producer, heartbeatTopic, alertTopic), nil
}

// NewProducerFromSync wraps an existing sarama producer
func NewProducerFromSync(producer sarama.SyncProducer, heartbeatTopic, alertTopic string) *Producer {
	return &Producer{
		producer:       producer,
		heartbeatTopic: heartbeatTopic,
		alertTopic:     alertTopic,
	}
}

func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}

// SendHeartbeat publishes the node status keyed by node name
func (p *Producer) SendHeartbeat(msg models.Heartbeat) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.send(p.heartbeatTopic, msg.Node, payload)
}

// SendAlert publishes an already encoded alert record keyed by alert id
func (p *Producer) SendAlert(alertID string, payload []byte) error {
	return p.send(p.alertTopic, alertID, payload)
}

func (p *Producer) send(topic, key string, payload []byte) error {
	kafkaMsg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}

	if _, _, err := p.producer.SendMessage(kafkaMsg); err != nil {
		return fmt.Errorf("send to %s: %w", topic, err)
	}
	return nil
}
