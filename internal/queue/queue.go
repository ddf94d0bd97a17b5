// Package queue escalates retry-exhausted submissions onto a durable,
// redis-backed task queue for deferred reprocessing. Delivery is
// at-least-once; the per-submission task ID guarantees at most one enqueued
// reprocess attempt per submission at a time.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TypeReprocessAnalysis identifies deferred analysis reprocessing tasks.
const TypeReprocessAnalysis = "analysis:reprocess"

const analysisQueue = "analysis"

// ReprocessPayload is the task body for a deferred reprocess.
type ReprocessPayload struct {
	SubmissionID string    `json:"submission_id"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

// Enqueuer hands submissions to the durable queue.
type Enqueuer interface {
	EnqueueReprocess(ctx context.Context, submissionID string) error
}

// Client wraps the asynq producer side.
type Client struct {
	client *asynq.Client
	delay  time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewClient builds a queue producer from a redis connection option.
func NewClient(redisOpt asynq.RedisConnOpt, delay time.Duration, logger zerolog.Logger) *Client {
	if delay <= 0 {
		delay = 30 * time.Second
	}
	return &Client{
		client: asynq.NewClient(redisOpt),
		delay:  delay,
		logger: logger.With().Str("component", "reprocess_queue").Logger(),
		now:    time.Now,
	}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueReprocess schedules a deferred reprocess. A submission already
// sitting in the queue is left as-is.
func (c *Client) EnqueueReprocess(ctx context.Context, submissionID string) error {
	payload, err := json.Marshal(ReprocessPayload{
		SubmissionID: submissionID,
		EnqueuedAt:   c.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal reprocess payload: %w", err)
	}

	task := asynq.NewTask(TypeReprocessAnalysis, payload)
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.TaskID("reprocess:"+submissionID),
		asynq.Queue(analysisQueue),
		asynq.ProcessIn(c.delay),
		asynq.MaxRetry(10),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		c.logger.Debug().Str("submission_id", submissionID).Msg("reprocess already queued")
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue reprocess for %s: %w", submissionID, err)
	}

	c.logger.Info().Str("submission_id", submissionID).Msg("submission escalated to reprocess queue")
	return nil
}
