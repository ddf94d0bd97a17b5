package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// PipelineEvent announces a submission reaching completed, queued or errored.
type PipelineEvent struct {
	SubmissionID string    `json:"submission_id"`
	UserID       uint      `json:"user_id"`
	Status       string    `json:"status"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	At           time.Time `json:"at"`
}

// PipelineEventPublisher fans pipeline events out to interested consumers.
// Publishing is best-effort: event loss never fails the pipeline.
type PipelineEventPublisher interface {
	PublishPipelineEvent(ctx context.Context, event PipelineEvent)
}

type natsEventPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSEventPublisher publishes pipeline events on a NATS subject.
func NewNATSEventPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) PipelineEventPublisher {
	if subject == "" {
		subject = "skillforge.pipeline.events"
	}
	return &natsEventPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "pipeline_events").Logger(),
	}
}

func (p *natsEventPublisher) PublishPipelineEvent(_ context.Context, event PipelineEvent) {
	if p.conn == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("submission_id", event.SubmissionID).Msg("failed to publish pipeline event")
	}
}

type nopEventPublisher struct{}

// NewNopEventPublisher returns a publisher that drops every event. Used when
// NATS is not configured and in tests.
func NewNopEventPublisher() PipelineEventPublisher {
	return nopEventPublisher{}
}

func (nopEventPublisher) PublishPipelineEvent(context.Context, PipelineEvent) {}
