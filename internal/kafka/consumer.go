package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Consumer wraps a sarama ConsumerGroup and pushes every record into a channel
type Consumer struct {
	group     sarama.ConsumerGroup
	topic     string
	messages  chan Message
	closed    chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

// Message is one record together with the session needed to commit it
type Message struct {
	Key       []byte
	Value     []byte
	Timestamp time.Time

	session sarama.ConsumerGroupSession
	message *sarama.ConsumerMessage
}

// Ack marks the record as consumed
func (m Message) Ack() {
	if m.session != nil && m.message != nil {
		m.session.MarkMessage(m.message, "")
	}
}

func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	// stale frames are useless to a live detector
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return newConsumer(group, topic, logger), nil
}

func newConsumer(group sarama.ConsumerGroup, topic string, logger *zap.Logger) *Consumer {
	return &Consumer{
		group:    group,
		topic:    topic,
		messages: make(chan Message),
		closed:   make(chan struct{}),
		logger:   logger.Named("kafka-consumer"),
	}
}

// StartListening consumes in the background until ctx is done.
// The Messages channel is closed when it returns.
func (c *Consumer) StartListening(ctx context.Context) {
	handler := &consumerGroupHandler{
		messages: c.messages,
		closed:   c.closed,
	}

	go func() {
		defer close(c.messages)

		retryDelay := 5 * time.Second
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("context cancelled, stopping")
				return
			case <-c.closed:
				return
			default:
			}

			c.logger.Debug("starting consumption cycle", zap.String("topic", c.topic))
			if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
				c.logger.Warn("consume error, retrying", zap.Error(err), zap.Duration("delay", retryDelay))
				select {
				case <-ctx.Done():
					return
				case <-c.closed:
					return
				case <-time.After(retryDelay):
				}
				continue
			}

			if ctx.Err() != nil {
				return
			}
		}
	}()
}

// Close stops the consumer and releases the group
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return c.group.Close()
}

func (c *Consumer) Messages() <-chan Message {
	return c.messages
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	messages chan<- Message
	closed   <-chan struct{}
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			select {
			case h.messages <- Message{
				Key:       msg.Key,
				Value:     msg.Value,
				Timestamp: msg.Timestamp,
				session:   sess,
				message:   msg,
			}:
			case <-sess.Context().Done():
				return nil
			case <-h.closed:
				return nil
			}
		case <-sess.Context().Done():
			return nil
		case <-h.closed:
			return nil
		}
	}
}
