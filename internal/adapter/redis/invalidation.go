package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
)

const questionInvalidationChannel = "question:invalidate"

// SnapshotInvalidator is the slice of the local snapshot cache the
// subscriber needs.
type SnapshotInvalidator interface {
	Remove(questionID int)
}

// InvalidationSubscriber listens for question invalidation events published
// by other instances and evicts the matching local cache entries.
type InvalidationSubscriber struct {
	rdb   *goredis.Client
	cache SnapshotInvalidator
}

func NewInvalidationSubscriber(rdb *goredis.Client, cache SnapshotInvalidator) *InvalidationSubscriber {
	return &InvalidationSubscriber{rdb: rdb, cache: cache}
}

// Start blocks consuming invalidation messages until ctx is cancelled.
func (s *InvalidationSubscriber) Start(ctx context.Context) {
	pubsub := s.rdb.Subscribe(ctx, questionInvalidationChannel)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			s.handleInvalidation(msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (s *InvalidationSubscriber) handleInvalidation(payload string) {
	questionID, err := strconv.Atoi(payload)
	if err != nil {
		slog.Warn("Malformed question invalidation message", "payload", payload)
		return
	}

	s.cache.Remove(questionID)
	slog.Debug("Question cache invalidated via pub/sub", "question_id", questionID)
}

// PublishInvalidation notifies other instances that questionID was written.
func PublishInvalidation(ctx context.Context, rdb *goredis.Client, questionID int) error {
	if err := rdb.Publish(ctx, questionInvalidationChannel, strconv.Itoa(questionID)).Err(); err != nil {
		return fmt.Errorf("failed to publish question invalidation: %w", err)
	}
	return nil
}
