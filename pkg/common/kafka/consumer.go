package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/recipelens/platform/pkg/common/logger"
	"github.com/recipelens/platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

const maxRetryBackoff = 30 * time.Second

type Consumer struct {
	reader       *kafka.Reader
	retryBackoff time.Duration
}

type EventHandler func(ctx context.Context, event models.Event) error

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{reader: reader, retryBackoff: time.Second}
}

// Consume processes messages until ctx is cancelled. A message is committed
// only after handler succeeds; a failing handler is retried in place.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Log.WithError(err).Error("Failed to fetch message")
			continue
		}

		var event models.Event
		if err := json.Unmarshal(message.Value, &event); err != nil {
			logger.Log.WithError(err).Error("Failed to unmarshal event")
			c.commit(ctx, message)
			continue
		}

		if err := c.handle(ctx, handler, event); err != nil {
			// Only cancellation ends the retry loop; leave the message for
			// the next member of the group.
			return err
		}

		c.commit(ctx, message)
	}
}

// handle retries handler until it succeeds. Moving past a failed message
// would let a later commit acknowledge it.
func (c *Consumer) handle(ctx context.Context, handler EventHandler, event models.Event) error {
	backoff := c.retryBackoff
	for {
		err := handler(ctx, event)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"event_id": event.ID,
			"backoff":  backoff.String(),
		}).Error("Failed to process event, retrying")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
}

func (c *Consumer) commit(ctx context.Context, message kafka.Message) {
	if err := c.reader.CommitMessages(ctx, message); err != nil {
		logger.Log.WithError(err).Error("Failed to commit message")
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
