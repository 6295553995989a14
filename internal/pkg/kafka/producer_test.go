package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/Nexus/config"
	"github.com/Gopher0727/Nexus/internal/model"
)

func newMockProducer(t *testing.T) *mocks.SyncProducer {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	return mocks.NewSyncProducer(t, cfg)
}

func TestPublisher_Publish(t *testing.T) {
	t.Run("sends json event", func(t *testing.T) {
		producer := newMockProducer(t)
		at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			var got model.GuildEvent
			if err := json.Unmarshal(val, &got); err != nil {
				return err
			}
			if got.Type != model.EventGuildCreated || got.GuildName != "Alpha" || !got.At.Equal(at) {
				return fmt.Errorf("unexpected event %+v", got)
			}
			return nil
		})

		p := NewPublisherWithProducer(producer, "nexus.guilds", nil)
		err := p.Publish(context.Background(), model.GuildEvent{
			Type:      model.EventGuildCreated,
			GuildID:   "65a1f0c2e4b0a1b2c3d4e5f6",
			GuildName: "Alpha",
			At:        at,
		})
		require.NoError(t, err)
		require.NoError(t, p.Close())
	})

	t.Run("surfaces broker failures", func(t *testing.T) {
		producer := newMockProducer(t)
		producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

		p := NewPublisherWithProducer(producer, "nexus.guilds", nil)
		err := p.Publish(context.Background(), model.GuildEvent{Type: model.EventGuildWiped, Count: 3})
		require.Error(t, err)
		assert.True(t, errors.Is(err, sarama.ErrOutOfBrokers))
		require.NoError(t, p.Close())
	})

	t.Run("cancelled context sends nothing", func(t *testing.T) {
		producer := newMockProducer(t)
		p := NewPublisherWithProducer(producer, "nexus.guilds", nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := p.Publish(ctx, model.GuildEvent{Type: model.EventGuildDeleted})
		assert.ErrorIs(t, err, context.Canceled)
		require.NoError(t, p.Close())
	})
}

func TestGuildEventKey(t *testing.T) {
	assert.Equal(t, "abc", model.GuildEvent{GuildID: "abc"}.Key())
	assert.Equal(t, "*", model.GuildEvent{Type: model.EventGuildWiped}.Key())
}

func TestNewSaramaConfig(t *testing.T) {
	cfg := NewSaramaConfig(&config.KafkaConfig{MaxRetries: 7})

	assert.True(t, cfg.Producer.Return.Successes)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	assert.Equal(t, 7, cfg.Producer.Retry.Max)
	assert.True(t, cfg.Producer.Idempotent)
	assert.NoError(t, cfg.Validate())

	cfg = NewSaramaConfig(&config.KafkaConfig{})
	assert.Equal(t, 1, cfg.Producer.Retry.Max)
	assert.NoError(t, cfg.Validate())
}

// TestNewPublisher tests the creation of a real producer.
// ! This test requires a running Kafka instance.
func TestNewPublisher(t *testing.T) {
	p, err := NewPublisher(&config.KafkaConfig{
		Brokers:    []string{"127.0.0.1:9092"},
		Topic:      "test.guilds",
		MaxRetries: 1,
	}, nil)
	if err != nil {
		t.Skipf("Skipping test: Kafka not available: %v", err)
		return
	}
	defer p.Close()

	assert.NotNil(t, p.producer)
}
