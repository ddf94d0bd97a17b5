package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// ReprocessHandler is implemented by the orchestrator: Reprocess re-drives a
// queued submission through the pipeline, Expire moves an aged-out one to its
// terminal errored state.
type ReprocessHandler interface {
	Reprocess(ctx context.Context, submissionID string) error
	Expire(ctx context.Context, submissionID string) error
}

// Worker consumes reprocess tasks.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	handler ReprocessHandler
	maxAge  time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// NewWorker builds the queue consumer. maxAge bounds how long a submission
// may wait in the queue before it expires.
func NewWorker(redisOpt asynq.RedisConnOpt, handler ReprocessHandler, maxAge time.Duration, logger zerolog.Logger) *Worker {
	if maxAge <= 0 {
		maxAge = time.Hour
	}

	workerLogger := logger.With().Str("component", "reprocess_worker").Logger()

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 4,
		Queues: map[string]int{
			analysisQueue: 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			workerLogger.Error().Err(err).Str("type", task.Type()).Msg("reprocess task failed")
		}),
	})

	worker := &Worker{
		server:  server,
		mux:     asynq.NewServeMux(),
		handler: handler,
		maxAge:  maxAge,
		logger:  workerLogger,
		now:     time.Now,
	}
	worker.mux.HandleFunc(TypeReprocessAnalysis, worker.handleReprocess)
	return worker
}

// Start runs the consumer loop until Stop is called.
func (w *Worker) Start() error {
	w.logger.Info().Msg("reprocess worker starting")
	return w.server.Start(w.mux)
}

// Stop drains in-flight tasks and shuts the consumer down.
func (w *Worker) Stop() {
	w.server.Stop()
	w.server.Shutdown()
}

func (w *Worker) handleReprocess(ctx context.Context, task *asynq.Task) error {
	var payload ReprocessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// Malformed payloads can never succeed; drop instead of retrying.
		w.logger.Error().Err(err).Msg("dropping malformed reprocess payload")
		return nil
	}

	if w.now().UTC().Sub(payload.EnqueuedAt) > w.maxAge {
		w.logger.Warn().Str("submission_id", payload.SubmissionID).Msg("queued submission expired")
		return w.handler.Expire(ctx, payload.SubmissionID)
	}

	if err := w.handler.Reprocess(ctx, payload.SubmissionID); err != nil {
		return fmt.Errorf("reprocess %s: %w", payload.SubmissionID, err)
	}
	return nil
}
