package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryingPublisher retries a failing publisher with exponential backoff
type RetryingPublisher struct {
	next       Publisher
	logger     *slog.Logger
	maxRetries uint64
	maxElapsed time.Duration
	interval   time.Duration
}

func NewRetryingPublisher(next Publisher, logger *slog.Logger, maxRetries uint64, maxElapsed time.Duration) *RetryingPublisher {
	return &RetryingPublisher{
		next:       next,
		logger:     logger,
		maxRetries: maxRetries,
		maxElapsed: maxElapsed,
		interval:   200 * time.Millisecond,
	}
}

func (p *RetryingPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.interval
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = p.maxElapsed
	bo.Reset()

	attempt := 0
	operation := func() error {
		attempt++
		err := p.next.Publish(ctx, eventType, payload, partitionKey)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if err != nil {
			p.logger.WarnContext(ctx, "event publish failed, retrying",
				"event_type", eventType, "attempt", attempt, "error", err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, p.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		p.logger.ErrorContext(ctx, "event publish gave up",
			"event_type", eventType, "attempts", attempt, "error", err)
		return err
	}
	return nil
}
