package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/recipelens/platform/pkg/common/logger"
)

// Starter launches a workflow instance without waiting for it to finish.
type Starter interface {
	Start(ctx context.Context, instanceID string) error
}

// Publisher is the slice of the Kafka producer the starter needs.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType, source, key string, data map[string]interface{}) error
}

const InstanceIDKey = "instance_id"

// KafkaStarter hands instances to workers through the Kafka topic.
type KafkaStarter struct {
	publisher Publisher
	eventType string
	source    string
}

func NewKafkaStarter(publisher Publisher, eventType, source string) *KafkaStarter {
	return &KafkaStarter{publisher: publisher, eventType: eventType, source: source}
}

func (s *KafkaStarter) Start(ctx context.Context, instanceID string) error {
	return s.publisher.PublishEvent(ctx, s.eventType, s.source, instanceID, map[string]interface{}{
		InstanceIDKey: instanceID,
	})
}

const (
	busyRetryBackoff    = time.Second
	maxBusyRetryBackoff = 30 * time.Second
)

// InlineStarter runs instances on goroutines of the current process.
type InlineStarter struct {
	base    context.Context
	run     func(ctx context.Context, instanceID string) error
	wg      sync.WaitGroup
	backoff time.Duration
}

// NewInlineStarter runs instances under base rather than the caller's
// (usually request-scoped) context.
func NewInlineStarter(base context.Context, run func(ctx context.Context, instanceID string) error) *InlineStarter {
	return &InlineStarter{base: base, run: run, backoff: busyRetryBackoff}
}

func (s *InlineStarter) Start(_ context.Context, instanceID string) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.runUntilFree(instanceID); err != nil {
			logger.Log.WithError(err).WithField("instance_id", instanceID).Error("workflow instance aborted")
		}
	}()
	return nil
}

// runUntilFree retries while the instance is locked elsewhere, so a lock left
// behind by a dead process delays the instance instead of dropping it.
func (s *InlineStarter) runUntilFree(instanceID string) error {
	backoff := s.backoff
	for {
		err := s.run(s.base, instanceID)
		if !errors.Is(err, ErrLocked) {
			return err
		}
		logger.Log.WithField("instance_id", instanceID).WithField("retry_in", backoff).Debug("workflow instance busy")
		if sErr := sleepContext(s.base, backoff); sErr != nil {
			return err
		}
		backoff *= 2
		if backoff > maxBusyRetryBackoff {
			backoff = maxBusyRetryBackoff
		}
	}
}

// Wait blocks until every started instance has returned.
func (s *InlineStarter) Wait() {
	s.wg.Wait()
}
