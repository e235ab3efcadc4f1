package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

func TestSendHeartbeat(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "heartbeats", msg.Topic)

		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, "gate-cam", string(key))

		value, err := msg.Value.Encode()
		require.NoError(t, err)
		var hb models.Heartbeat
		require.NoError(t, json.Unmarshal(value, &hb))
		assert.True(t, hb.Armed)
		assert.Equal(t, int64(42), hb.FramesProcessed)
		return nil
	})

	p := NewProducerFromSync(sp, "heartbeats", "alerts")
	err := p.SendHeartbeat(models.Heartbeat{
		Node:            "gate-cam",
		Armed:           true,
		FramesProcessed: 42,
		TimeStamp:       time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestSendAlert(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "alerts", msg.Topic)
		key, _ := msg.Key.Encode()
		assert.Equal(t, "alert-1", string(key))
		return nil
	})

	p := NewProducerFromSync(sp, "heartbeats", "alerts")
	require.NoError(t, p.SendAlert("alert-1", []byte(`{}`)))
	require.NoError(t, p.Close())
}

func TestSendAlert_BrokerFailure(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	p := NewProducerFromSync(sp, "heartbeats", "alerts")
	err := p.SendAlert("alert-1", []byte(`{}`))
	require.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, p.Close())
}
