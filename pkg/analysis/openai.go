package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIConfig defines configuration options for the OpenAI analyzer.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIAnalyzer implements Provider against the OpenAI chat completion API.
type OpenAIAnalyzer struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIAnalyzer builds the remote LLM analysis provider.
func NewOpenAIAnalyzer(cfg OpenAIConfig) (*OpenAIAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OpenAIAnalyzer{
		client: openai.NewClientWithConfig(openai.DefaultConfig(cfg.APIKey)),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/avelio/skillforge-api/pkg/analysis/openai"),
		logger: logger.With().Str("component", "openai_analyzer").Logger(),
	}, nil
}

// Name identifies the provider variant.
func (a *OpenAIAnalyzer) Name() string { return "openai" }

// Analyze sends the submission to OpenAI and parses the structured report.
func (a *OpenAIAnalyzer) Analyze(parent context.Context, req Request) (*RawReport, error) {
	ctx, span := a.tracer.Start(parent, "openai.analyze", trace.WithAttributes(
		attribute.String("model", a.cfg.Model),
		attribute.String("submission_id", req.SubmissionID),
		attribute.String("language", req.Language),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: analyzerSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildAnalysisPrompt(req),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := a.client.CreateChatCompletion(ctx, request)
	if err != nil {
		classified := classifyOpenAIError(err)
		span.RecordError(classified)
		span.SetStatus(codes.Error, classified.Error())
		return nil, classified
	}

	if len(resp.Choices) == 0 {
		err := NewError(KindInvalidResponse, "no choices returned from openai", nil)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	report, err := ParseReport([]byte(content))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return report, nil
}

// classifyOpenAIError maps transport and API failures onto the error
// taxonomy. Rate limits and server errors are transient; other API-level
// rejections are caller errors and never retried.
func classifyOpenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500:
			return NewError(KindTransient, "openai unavailable", err)
		case apiErr.HTTPStatusCode >= 400:
			return NewError(KindRejected, "openai rejected the request", err)
		}
	}

	return NewError(KindTransient, "openai request failed", err)
}

func analyzerSystemPrompt() string {
	return "You are an automated code analyzer. Respond with a JSON object containing: errors (array of {type, severity, line," +
		" message, suggestion} where severity is low|medium|high and type is a short topic tag such as recursion or error-hand" +
		"ling), weak_areas (array of topic tags; must be non-empty when errors is non-empty), quality_score (number 0-100), a" +
		"nd analysis_time_ms (integer). Be precise about line numbers and keep tags consistent across responses."
}

func buildAnalysisPrompt(req Request) string {
	builder := strings.Builder{}
	builder.WriteString("## Language\n")
	builder.WriteString(req.Language)
	if req.Topic != "" {
		builder.WriteString("\n\n## Topic\n")
		builder.WriteString(req.Topic)
	}
	builder.WriteString("\n\n## Code\n")
	builder.WriteString(req.Code)
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}
