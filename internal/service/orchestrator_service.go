package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/avelio/skillforge-api/internal/models"
	"github.com/avelio/skillforge-api/internal/observability"
	"github.com/avelio/skillforge-api/internal/queue"
	"github.com/avelio/skillforge-api/internal/repository"
	"github.com/avelio/skillforge-api/pkg/analysis"
)

// ErrSubmissionNotFound indicates the submission cannot be located.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrUnsupportedLanguage indicates the requested language is not analysable.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// errorKindInternal marks terminal failures originating in a downstream
// component rather than the analysis contract.
const errorKindInternal = "internal"

// Leaser grants per-submission processing leases.
type Leaser interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

// Lease is an acquired per-submission claim.
type Lease interface {
	Release(ctx context.Context) error
}

// ErrLeaseHeld indicates another worker is processing the submission.
var ErrLeaseHeld = errors.New("submission lease held by another worker")

// SubmissionInput is the caller-facing submit payload.
type SubmissionInput struct {
	UserID   uint   `validate:"required"`
	Code     string `validate:"required,min=1"`
	Language string `validate:"required"`
	Topic    string
}

// SubmissionResult is the terminal answer for one submission: completed with
// its artefacts, queued for deferred reprocessing, or errored with a typed
// kind and message.
type SubmissionResult struct {
	Status       string                  `json:"status"`
	Submission   models.Submission       `json:"submission"`
	Outcome      *models.AnalysisOutcome `json:"outcome,omitempty"`
	Growth       *models.GrowthState     `json:"growth,omitempty"`
	Practice     *PracticeSet            `json:"practice,omitempty"`
	ErrorKind    string                  `json:"error_kind,omitempty"`
	ErrorMessage string                  `json:"error_message,omitempty"`
}

// Orchestrator drives a submission through the analysis pipeline:
// Received, Analyzing, Aggregating, Scoring, Generating, Completed, with
// Errored absorbing failures and Queued holding retry-exhausted submissions.
type Orchestrator interface {
	Submit(ctx context.Context, input SubmissionInput) (SubmissionResult, error)
	GetSubmission(ctx context.Context, id string) (models.Submission, *models.AnalysisOutcome, error)

	// Reprocess and Expire serve the durable queue worker.
	Reprocess(ctx context.Context, submissionID string) error
	Expire(ctx context.Context, submissionID string) error
}

// OrchestratorConfig tunes the pipeline.
type OrchestratorConfig struct {
	// Languages is the analysable language allowlist.
	Languages []string
	// PracticeCount is the size of the generated practice set.
	PracticeCount int
}

// DefaultOrchestratorConfig returns the standard pipeline tuning.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Languages:     []string{"python", "javascript", "typescript", "go", "java"},
		PracticeCount: 5,
	}
}

type orchestrator struct {
	users       repository.UserRepository
	submissions repository.SubmissionRepository
	provider    analysis.Provider
	aggregator  WeakAreaAggregator
	growth      GrowthScoreEngine
	selector    PracticeSelector
	leaser      Leaser
	enqueuer    queue.Enqueuer
	events      PipelineEventPublisher
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	cfg         OrchestratorConfig
	languages   map[string]bool
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewOrchestrator wires the pipeline. The provider is expected to already
// carry the retry/backoff discipline (analysis.WithRetry).
func NewOrchestrator(
	users repository.UserRepository,
	submissions repository.SubmissionRepository,
	provider analysis.Provider,
	aggregator WeakAreaAggregator,
	growth GrowthScoreEngine,
	selector PracticeSelector,
	leaser Leaser,
	enqueuer queue.Enqueuer,
	events PipelineEventPublisher,
	validate *validator.Validate,
	cfg OrchestratorConfig,
	logger zerolog.Logger,
) Orchestrator {
	if cfg.PracticeCount <= 0 {
		cfg.PracticeCount = 5
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = DefaultOrchestratorConfig().Languages
	}
	languages := make(map[string]bool, len(cfg.Languages))
	for _, language := range cfg.Languages {
		languages[strings.ToLower(language)] = true
	}

	return &orchestrator{
		users:       users,
		submissions: submissions,
		provider:    provider,
		aggregator:  aggregator,
		growth:      growth,
		selector:    selector,
		leaser:      leaser,
		enqueuer:    enqueuer,
		events:      events,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		cfg:         cfg,
		languages:   languages,
		logger:      logger.With().Str("component", "orchestrator").Logger(),
		tracer:      otel.Tracer("github.com/avelio/skillforge-api/internal/service/orchestrator"),
		now:         time.Now,
	}
}

func (o *orchestrator) Submit(parent context.Context, input SubmissionInput) (SubmissionResult, error) {
	if err := o.validator.Struct(input); err != nil {
		return SubmissionResult{}, err
	}

	language := strings.ToLower(strings.TrimSpace(input.Language))
	if !o.languages[language] {
		return SubmissionResult{}, ErrUnsupportedLanguage
	}

	ctx, span := o.tracer.Start(parent, "pipeline.submit", trace.WithAttributes(
		attribute.Int("user_id", int(input.UserID)),
		attribute.String("language", language),
	))
	defer span.End()

	submission := models.Submission{
		ID:          uuid.NewString(),
		OwnerID:     input.UserID,
		Language:    language,
		Topic:       strings.TrimSpace(input.Topic),
		CodeText:    input.Code,
		SubmittedAt: o.now().UTC(),
		Status:      models.SubmissionStatusReceived,
	}
	if err := o.submissions.Put(ctx, &submission); err != nil {
		return SubmissionResult{}, err
	}
	observability.PipelineTransition(models.SubmissionStatusReceived)

	// Referential integrity is checked before any external call.
	user, err := o.users.GetByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return o.markErrored(ctx, submission, string(analysis.KindReferentialIntegrity), "submission references unknown user"), nil
		}
		return SubmissionResult{}, err
	}

	leaseClaim, err := o.leaser.Acquire(ctx, submission.ID)
	if err != nil {
		return SubmissionResult{}, err
	}
	defer func() {
		if err := leaseClaim.Release(ctx); err != nil {
			o.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("lease release failed")
		}
	}()

	return o.runPipeline(ctx, submission, user, true)
}

// runPipeline advances the submission from Analyzing to its terminal state.
// escalate controls whether retry exhaustion enqueues a reprocess task; the
// queue worker path relies on asynq redelivery instead.
func (o *orchestrator) runPipeline(ctx context.Context, submission models.Submission, user models.User, escalate bool) (SubmissionResult, error) {
	if err := o.transition(ctx, &submission, models.SubmissionStatusAnalyzing); err != nil {
		return SubmissionResult{}, err
	}

	report, err := o.provider.Analyze(ctx, analysis.Request{
		SubmissionID: submission.ID,
		Code:         submission.CodeText,
		Language:     submission.Language,
		Topic:        submission.Topic,
	})
	if err != nil {
		kind := analysis.KindOf(err)
		if !kind.Retryable() {
			return o.markErrored(ctx, submission, string(kind), analysis.MessageOf(err)), nil
		}
		return o.escalateToQueue(ctx, submission, escalate)
	}

	outcome := o.buildOutcome(submission, report)
	if err := o.submissions.PutOutcome(ctx, &outcome); err != nil {
		return o.markErrored(ctx, submission, errorKindInternal, "storing analysis outcome failed: "+err.Error()), nil
	}
	// Re-read so retried deliveries observe the first, canonical outcome.
	canonical, err := o.submissions.GetOutcome(ctx, submission.ID)
	if err != nil {
		return o.markErrored(ctx, submission, errorKindInternal, "loading analysis outcome failed: "+err.Error()), nil
	}

	if err := o.transition(ctx, &submission, models.SubmissionStatusAggregating); err != nil {
		return SubmissionResult{}, err
	}
	if _, err := o.aggregator.Ingest(ctx, user.ID, canonical); err != nil {
		return o.markErrored(ctx, submission, errorKindInternal, "weak-area aggregation failed: "+err.Error()), nil
	}

	if err := o.transition(ctx, &submission, models.SubmissionStatusScoring); err != nil {
		return SubmissionResult{}, err
	}
	growthState, err := o.growth.RecordSubmission(ctx, user.ID, canonical)
	if err != nil {
		return o.markErrored(ctx, submission, errorKindInternal, "growth scoring failed: "+err.Error()), nil
	}

	if err := o.transition(ctx, &submission, models.SubmissionStatusGenerating); err != nil {
		return SubmissionResult{}, err
	}
	ranked, err := o.aggregator.Ranked(ctx, user.ID)
	if err != nil {
		return o.markErrored(ctx, submission, errorKindInternal, "weak-area ranking failed: "+err.Error()), nil
	}
	practice, err := o.selector.Select(ctx, ranked, user.NormalizedSkillLevel(), o.cfg.PracticeCount)
	if err != nil {
		return o.markErrored(ctx, submission, errorKindInternal, "practice selection failed: "+err.Error()), nil
	}

	if err := o.transition(ctx, &submission, models.SubmissionStatusCompleted); err != nil {
		return SubmissionResult{}, err
	}
	observability.PipelineOutcome(models.SubmissionStatusCompleted)
	o.events.PublishPipelineEvent(ctx, PipelineEvent{
		SubmissionID: submission.ID,
		UserID:       user.ID,
		Status:       models.SubmissionStatusCompleted,
		At:           o.now().UTC(),
	})

	o.logger.Info().
		Str("submission_id", submission.ID).
		Uint("user_id", user.ID).
		Float64("quality_score", canonical.QualityScore).
		Msg("submission completed")

	return SubmissionResult{
		Status:     models.SubmissionStatusCompleted,
		Submission: submission,
		Outcome:    &canonical,
		Growth:     &growthState,
		Practice:   &practice,
	}, nil
}

func (o *orchestrator) escalateToQueue(ctx context.Context, submission models.Submission, escalate bool) (SubmissionResult, error) {
	if err := o.transition(ctx, &submission, models.SubmissionStatusQueued); err != nil {
		return SubmissionResult{}, err
	}

	if escalate {
		if err := o.enqueuer.EnqueueReprocess(ctx, submission.ID); err != nil {
			return o.markErrored(ctx, submission, errorKindInternal, "queue escalation failed: "+err.Error()), nil
		}
	}

	observability.QueueEscalation()
	observability.PipelineOutcome(models.SubmissionStatusQueued)
	o.events.PublishPipelineEvent(ctx, PipelineEvent{
		SubmissionID: submission.ID,
		UserID:       submission.OwnerID,
		Status:       models.SubmissionStatusQueued,
		At:           o.now().UTC(),
	})

	return SubmissionResult{
		Status:     models.SubmissionStatusQueued,
		Submission: submission,
	}, nil
}

func (o *orchestrator) buildOutcome(submission models.Submission, report *analysis.RawReport) models.AnalysisOutcome {
	codeErrors := make([]models.CodeError, 0, len(report.Errors))
	for _, e := range report.Errors {
		codeErrors = append(codeErrors, models.CodeError{
			Type:       strings.ToLower(strings.TrimSpace(e.Type)),
			Severity:   e.Severity,
			Line:       e.Line,
			Message:    strings.TrimSpace(o.sanitizer.Sanitize(e.Message)),
			Suggestion: strings.TrimSpace(o.sanitizer.Sanitize(e.Suggestion)),
		})
	}

	weakAreas := make([]string, 0, len(report.WeakAreas))
	seen := map[string]bool{}
	for _, tag := range report.WeakAreas {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		weakAreas = append(weakAreas, tag)
	}

	return models.AnalysisOutcome{
		SubmissionID: submission.ID,
		UserID:       submission.OwnerID,
		Errors:       codeErrors,
		WeakAreas:    weakAreas,
		QualityScore: report.QualityScore,
		SubmittedAt:  submission.SubmittedAt,
		CodeLines:    countLines(submission.CodeText),
		Raw: datatypes.JSONMap{
			"analysis_time_ms": report.AnalysisTimeMs,
			"provider":         o.provider.Name(),
		},
		CompletedAt: o.now().UTC(),
	}
}

func (o *orchestrator) transition(ctx context.Context, submission *models.Submission, status string) error {
	if err := o.submissions.UpdateStatus(ctx, submission.ID, status); err != nil {
		return err
	}
	submission.Status = status
	observability.PipelineTransition(status)
	o.logger.Debug().Str("submission_id", submission.ID).Str("status", status).Msg("pipeline transition")
	return nil
}

func (o *orchestrator) markErrored(ctx context.Context, submission models.Submission, kind, message string) SubmissionResult {
	if err := o.submissions.MarkErrored(ctx, submission.ID, kind, message); err != nil {
		o.logger.Error().Err(err).Str("submission_id", submission.ID).Msg("failed to persist errored state")
	}
	submission.Status = models.SubmissionStatusErrored
	submission.ErrorKind = kind
	submission.ErrorDetail = message

	observability.PipelineTransition(models.SubmissionStatusErrored)
	observability.PipelineOutcome(models.SubmissionStatusErrored)
	o.events.PublishPipelineEvent(ctx, PipelineEvent{
		SubmissionID: submission.ID,
		UserID:       submission.OwnerID,
		Status:       models.SubmissionStatusErrored,
		ErrorKind:    kind,
		At:           o.now().UTC(),
	})

	o.logger.Warn().
		Str("submission_id", submission.ID).
		Str("error_kind", kind).
		Str("error_detail", message).
		Msg("submission errored")

	return SubmissionResult{
		Status:       models.SubmissionStatusErrored,
		Submission:   submission,
		ErrorKind:    kind,
		ErrorMessage: message,
	}
}

// Reprocess re-drives a queued submission. A retry-exhausted attempt leaves
// the submission queued and returns an error so the queue redelivers later.
func (o *orchestrator) Reprocess(ctx context.Context, submissionID string) error {
	submission, err := o.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if submission.IsTerminal() {
		return nil
	}

	user, err := o.users.GetByID(ctx, submission.OwnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			o.markErrored(ctx, submission, string(analysis.KindReferentialIntegrity), "submission references unknown user")
			return nil
		}
		return err
	}

	leaseClaim, err := o.leaser.Acquire(ctx, submission.ID)
	if err != nil {
		return ErrLeaseHeld
	}
	defer func() {
		if err := leaseClaim.Release(ctx); err != nil {
			o.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("lease release failed")
		}
	}()

	result, err := o.runPipeline(ctx, submission, user, false)
	if err != nil {
		return err
	}
	if result.Status == models.SubmissionStatusQueued {
		return errors.New("analysis still unavailable, awaiting redelivery")
	}
	return nil
}

// Expire moves an aged-out queued submission to its terminal errored state.
func (o *orchestrator) Expire(ctx context.Context, submissionID string) error {
	submission, err := o.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if submission.IsTerminal() {
		return nil
	}

	o.markErrored(ctx, submission, string(analysis.KindExpired), "submission exceeded the maximum queue age")
	return nil
}

func (o *orchestrator) GetSubmission(ctx context.Context, id string) (models.Submission, *models.AnalysisOutcome, error) {
	submission, err := o.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, nil, ErrSubmissionNotFound
		}
		return models.Submission{}, nil, err
	}

	outcome, err := o.submissions.GetOutcome(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return submission, nil, nil
		}
		return models.Submission{}, nil, err
	}
	return submission, &outcome, nil
}

func countLines(code string) int {
	if code == "" {
		return 1
	}
	return strings.Count(code, "\n") + 1
}
